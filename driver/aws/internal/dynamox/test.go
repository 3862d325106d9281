package dynamox

import (
	"context"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// NewTestClient returns a new DynamoDB client for use in a test.
//
// It connects to the DynamoDB-compatible endpoint named by the
// DBPROXY_DYNAMODB_ENDPOINT environment variable, such as a local
// "amazon/dynamodb-local" container, and skips the test if the variable is
// unset.
func NewTestClient(t testing.TB) *dynamodb.Client {
	endpoint := os.Getenv("DBPROXY_DYNAMODB_ENDPOINT")
	if endpoint == "" {
		t.Skip("set DBPROXY_DYNAMODB_ENDPOINT to run this test")
	}

	cfg, err := config.LoadDefaultConfig(
		context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("id", "secret", ""),
		),
		config.WithRetryer(
			func() aws.Retryer {
				return aws.NopRetryer{}
			},
		),
	)
	if err != nil {
		t.Fatal(err)
	}

	return dynamodb.NewFromConfig(
		cfg,
		func(opts *dynamodb.Options) {
			opts.BaseEndpoint = aws.String(endpoint)
		},
	)
}
