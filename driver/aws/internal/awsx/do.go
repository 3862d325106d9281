package awsx

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// Do executes an AWS API request.
//
// fn executes the request, typically a method on a [dynamodb.Client].
//
// m, if non-nil, is called with the input value before the request is sent.
// It may mutate the input in-place, and returns any options to use when
// sending the request.
func Do[In, Out any](
	ctx context.Context,
	fn func(context.Context, *In, ...func(*dynamodb.Options)) (Out, error),
	m func(any) []func(*dynamodb.Options),
	in *In,
) (out Out, err error) {
	var options []func(*dynamodb.Options)
	if m != nil {
		options = m(in)
	}
	return fn(ctx, in, options...)
}
