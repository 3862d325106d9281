package dynamostore

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/skinsch/dbproxy/driver/aws/internal/awsx"
	"github.com/skinsch/dbproxy/driver/aws/internal/dynamox"
	"github.com/skinsch/dbproxy/store"
)

// handle is an implementation of [store.Table] that manipulates one partition
// of a DynamoDB table.
//
// Each handle owns a prepared copy of every request it sends, sharing the
// attribute values in h.attr. A handle must not be used concurrently.
type handle struct {
	Client    *dynamodb.Client
	OnRequest func(any) []func(*dynamodb.Options)

	schema string
	name   string

	attr struct {
		Namespace types.AttributeValueMemberS
		Key       types.AttributeValueMemberB
		Value     types.AttributeValueMemberB
	}

	request struct {
		Get    dynamodb.GetItemInput
		Has    dynamodb.GetItemInput
		Query  dynamodb.QueryInput
		Count  dynamodb.QueryInput
		Put    dynamodb.PutItemInput
		Delete dynamodb.DeleteItemInput
	}
}

func (h *handle) Schema() string {
	return h.schema
}

func (h *handle) Name() string {
	return h.name
}

func (h *handle) Get(ctx context.Context, k []byte) ([]byte, bool, error) {
	h.attr.Key.Value = k

	out, err := awsx.Do(
		ctx,
		h.Client.GetItem,
		h.OnRequest,
		&h.request.Get,
	)
	if err != nil || out.Item == nil {
		return nil, false, err
	}

	v, err := dynamox.AttrAs[*types.AttributeValueMemberB](out.Item, valueAttr)
	if err != nil {
		return nil, false, err
	}

	return v.Value, true, nil
}

func (h *handle) Has(ctx context.Context, k []byte) (bool, error) {
	h.attr.Key.Value = k

	out, err := awsx.Do(
		ctx,
		h.Client.GetItem,
		h.OnRequest,
		&h.request.Has,
	)
	if err != nil {
		return false, err
	}

	return out.Item != nil, nil
}

func (h *handle) Set(ctx context.Context, k, v []byte) error {
	h.attr.Key.Value = k
	h.attr.Value.Value = v

	_, err := awsx.Do(
		ctx,
		h.Client.PutItem,
		h.OnRequest,
		&h.request.Put,
	)

	return err
}

func (h *handle) Delete(ctx context.Context, k []byte) (bool, error) {
	h.attr.Key.Value = k

	out, err := awsx.Do(
		ctx,
		h.Client.DeleteItem,
		h.OnRequest,
		&h.request.Delete,
	)
	if err != nil {
		return false, err
	}

	return out.Attributes != nil, nil
}

func (h *handle) Len(ctx context.Context) (int, error) {
	n := 0

	h.request.Count.ExclusiveStartKey = nil

	for {
		out, err := awsx.Do(
			ctx,
			h.Client.Query,
			h.OnRequest,
			&h.request.Count,
		)
		if err != nil {
			return 0, err
		}

		n += int(out.Count)

		if out.LastEvaluatedKey == nil {
			return n, nil
		}

		h.request.Count.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (h *handle) Range(ctx context.Context, fn store.RangeFunc) error {
	return dynamox.Range(
		ctx,
		h.Client,
		h.OnRequest,
		&h.request.Query,
		func(ctx context.Context, item map[string]types.AttributeValue) (bool, error) {
			k, err := dynamox.AttrAs[*types.AttributeValueMemberB](item, keyAttr)
			if err != nil {
				return false, err
			}

			v, err := dynamox.AttrAs[*types.AttributeValueMemberB](item, valueAttr)
			if err != nil {
				return false, err
			}

			return fn(ctx, k.Value, v.Value)
		},
	)
}

func (h *handle) Close() error {
	return nil
}
