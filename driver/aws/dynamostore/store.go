// Package dynamostore provides a [store.Store] implementation that persists
// tables as item collections within a single DynamoDB table.
package dynamostore

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/skinsch/dbproxy/internal/x/xsync"
	"github.com/skinsch/dbproxy/store"
)

type dynamoStore struct {
	Client    *dynamodb.Client
	Table     string
	OnRequest func(any) []func(*dynamodb.Options)

	createTableOnce xsync.SucceedOnce
}

// New returns a [store.Store] that uses the given DynamoDB client to store
// key/value pairs in the given DynamoDB table.
//
// All (schema, table) pairs share the one DynamoDB table; each pair maps to
// one partition within it.
func New(
	client *dynamodb.Client,
	table string,
	options ...Option,
) store.Store {
	if table == "" {
		panic("table name must not be empty")
	}

	s := &dynamoStore{
		Client: client,
		Table:  table,
	}

	for _, opt := range options {
		opt(s)
	}

	return s
}

// Option is a functional option that changes the behavior of [New].
type Option func(*dynamoStore)

// WithRequestHook is an [Option] that configures fn as a pre-request hook.
//
// Before each DynamoDB API request, fn is passed a pointer to the input
// struct, e.g. [dynamodb.GetItemInput], which it may modify in-place. It may
// be called with any DynamoDB request type. The types of requests used may
// change in any version without notice.
//
// Any functions returned by fn are applied to the request's options before
// the request is sent.
func WithRequestHook(fn func(any) []func(*dynamodb.Options)) Option {
	return func(s *dynamoStore) {
		s.OnRequest = fn
	}
}

// Open returns the table with the given name within the given schema.
func (s *dynamoStore) Open(ctx context.Context, schema, table string) (store.Table, error) {
	if err := s.createTableOnce.Do(ctx, s.createTable); err != nil {
		return nil, err
	}

	h := &handle{
		Client:    s.Client,
		OnRequest: s.OnRequest,
		schema:    schema,
		name:      table,
	}

	h.attr.Namespace.Value = schema + "\x00" + table
	h.prepareRequests(s.Table)

	return h, nil
}
