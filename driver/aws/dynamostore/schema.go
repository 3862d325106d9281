package dynamostore

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/skinsch/dbproxy/driver/aws/internal/dynamox"
)

var (
	// namespaceAttr is the name of the attribute that stores the combined
	// (schema, table) identity on each item. Together with [keyAttr], it
	// forms the primary key of the DynamoDB table.
	namespaceAttr = "N"

	// keyAttr is the name of the attribute that stores the key on each item.
	// Together with [namespaceAttr], it forms the primary key of the DynamoDB
	// table.
	keyAttr = "K"

	// valueAttr is the name of the attribute that stores the value on each
	// item.
	valueAttr = "V"

	// nonExistentAttr is the name of an attribute that does not exist on any
	// item. It is used to test for the existence of an item without fetching
	// unnecessary data.
	nonExistentAttr = "X"
)

// createTable creates the DynamoDB table if it does not already exist.
func (s *dynamoStore) createTable(ctx context.Context) error {
	return dynamox.CreateTableIfNotExists(
		ctx,
		s.Client,
		s.Table,
		s.OnRequest,
		dynamox.KeyAttr{
			Name:    &namespaceAttr,
			Type:    types.ScalarAttributeTypeS,
			KeyType: types.KeyTypeHash,
		},
		dynamox.KeyAttr{
			Name:    &keyAttr,
			Type:    types.ScalarAttributeTypeB,
			KeyType: types.KeyTypeRange,
		},
	)
}

func (h *handle) prepareRequests(table string) {
	key := map[string]types.AttributeValue{
		namespaceAttr: &h.attr.Namespace,
		keyAttr:       &h.attr.Key,
	}

	// Get fetches the value associated with h.attr.Key.
	h.request.Get = dynamodb.GetItemInput{
		TableName:            &table,
		Key:                  key,
		ProjectionExpression: aws.String(`#V`),
		ExpressionAttributeNames: map[string]string{
			"#V": valueAttr,
		},
	}

	// Has requests [nonExistentAttr] for the item at h.attr.Key to check if
	// the item exists at all.
	h.request.Has = dynamodb.GetItemInput{
		TableName:            &table,
		Key:                  key,
		ProjectionExpression: &nonExistentAttr,
	}

	// Query fetches all key/value pairs in the table.
	h.request.Query = dynamodb.QueryInput{
		TableName:              &table,
		KeyConditionExpression: aws.String(`#N = :N`),
		ProjectionExpression:   aws.String("#K, #V"),
		ExpressionAttributeNames: map[string]string{
			"#N": namespaceAttr,
			"#K": keyAttr,
			"#V": valueAttr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":N": &h.attr.Namespace,
		},
	}

	// Count counts the key/value pairs in the table without fetching them.
	h.request.Count = dynamodb.QueryInput{
		TableName:              &table,
		KeyConditionExpression: aws.String(`#N = :N`),
		Select:                 types.SelectCount,
		ExpressionAttributeNames: map[string]string{
			"#N": namespaceAttr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":N": &h.attr.Namespace,
		},
	}

	// Put sets the value associated with h.attr.Key to h.attr.Value.
	h.request.Put = dynamodb.PutItemInput{
		TableName: &table,
		Item: map[string]types.AttributeValue{
			namespaceAttr: &h.attr.Namespace,
			keyAttr:       &h.attr.Key,
			valueAttr:     &h.attr.Value,
		},
	}

	// Delete removes the h.attr.Key key. ALL_OLD lets the caller learn
	// whether the key existed.
	h.request.Delete = dynamodb.DeleteItemInput{
		TableName:    &table,
		Key:          key,
		ReturnValues: types.ReturnValueAllOld,
	}
}
