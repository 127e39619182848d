// Package dynamo implements counter.Store on DynamoDB. Atomicity comes from
// UpdateItem ADD (native upsert-increment) and conditional expressions.
//
// Table schema:
//   - Partition key: model_name (string)
//   - Sort key: field_name (string)
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name autonum-counters \
//	  --attribute-definitions AttributeName=model_name,AttributeType=S AttributeName=field_name,AttributeType=S \
//	  --key-schema AttributeName=model_name,KeyType=HASH AttributeName=field_name,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"autonum/internal/envutil"
	"autonum/pkg/apperror"
	"autonum/pkg/counter"
)

// DefaultTable is the counter table name unless overridden.
const DefaultTable = "autonum-counters"

// Client is the interface for DynamoDB operations the store needs.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Store implements counter.Store on a DynamoDB table.
type Store struct {
	client Client
	table  string
}

// NewStore creates a counter store over the client.
func NewStore(client Client, table string) *Store {
	if table == "" {
		table = DefaultTable
	}
	return &Store{client: client, table: table}
}

// Connect loads the default AWS configuration and builds a store against the
// table named by AUTONUM_DYNAMO_TABLE.
func Connect(ctx context.Context) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, apperror.NewUnavailable(fmt.Errorf("load aws config: %w", err))
	}
	return NewStore(dynamodb.NewFromConfig(cfg), envutil.Get("AUTONUM_DYNAMO_TABLE", DefaultTable)), nil
}

// Ensure compile-time interface compliance.
var _ counter.Store = (*Store)(nil)

func (s *Store) keyOf(sc counter.Scope) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"model_name": &types.AttributeValueMemberS{Value: sc.Model},
		"field_name": &types.AttributeValueMemberS{Value: sc.Field},
	}
}

func numberAttr(v int64) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(v, 10)}
}

func valueFrom(item map[string]types.AttributeValue) (int64, error) {
	attr, ok := item["value"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, errors.New("invalid value attribute in DynamoDB item")
	}
	return strconv.ParseInt(attr.Value, 10, 64)
}

// FindScope implements counter.Store.
func (s *Store) FindScope(ctx context.Context, sc counter.Scope) (*counter.Record, error) {
	resp, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.keyOf(sc),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, apperror.NewUnavailable(err)
	}
	if len(resp.Item) == 0 {
		return nil, apperror.NewNotFound("counter scope", sc.String())
	}
	v, err := valueFrom(resp.Item)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	return &counter.Record{Field: sc.Field, Model: sc.Model, Value: v}, nil
}

// CreateScope implements counter.Store. The conditional put only succeeds
// when no item exists for the scope yet.
func (s *Store) CreateScope(ctx context.Context, sc counter.Scope, initial int64) error {
	item := s.keyOf(sc)
	item["value"] = numberAttr(initial)

	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(model_name)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return apperror.NewDuplicateScope(sc.Field, sc.Model)
		}
		return apperror.NewUnavailable(err)
	}
	return nil
}

// IncrementAndFetch implements counter.Store. ADD creates the item with the
// delta applied to a zero baseline when it is absent.
func (s *Store) IncrementAndFetch(ctx context.Context, sc counter.Scope, delta int64) (int64, error) {
	resp, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       s.keyOf(sc),
		UpdateExpression:          aws.String("ADD #v :d"),
		ExpressionAttributeNames:  map[string]string{"#v": "value"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":d": numberAttr(delta)},
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, apperror.NewUnavailable(err)
	}
	v, err := valueFrom(resp.Attributes)
	if err != nil {
		return 0, apperror.NewInternal(err)
	}
	return v, nil
}

// SetIfGreater implements counter.Store. A failed condition means the stored
// value is already at or above the candidate, which is the intended no-op.
func (s *Store) SetIfGreater(ctx context.Context, sc counter.Scope, candidate int64) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       s.keyOf(sc),
		UpdateExpression:          aws.String("SET #v = :c"),
		ConditionExpression:       aws.String("attribute_not_exists(#v) OR #v < :c"),
		ExpressionAttributeNames:  map[string]string{"#v": "value"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":c": numberAttr(candidate)},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return nil
		}
		return apperror.NewUnavailable(err)
	}
	return nil
}

// ResetScope implements counter.Store.
func (s *Store) ResetScope(ctx context.Context, sc counter.Scope, value int64) error {
	item := s.keyOf(sc)
	item["value"] = numberAttr(value)

	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return apperror.NewUnavailable(err)
	}
	return nil
}

// ReadScope implements counter.Store.
func (s *Store) ReadScope(ctx context.Context, sc counter.Scope) (int64, error) {
	rec, err := s.FindScope(ctx, sc)
	if err != nil {
		return 0, err
	}
	return rec.Value, nil
}
