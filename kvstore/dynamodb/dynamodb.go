// Package dynamodb implements kvstore.Store on Amazon DynamoDB for
// deployments that sync the device's backing store through the cloud.
package dynamodb

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/Hemakotibonthada/CancerDetector-sub005/kvstore"
)

// Config defines the configuration options for the DynamoDB store.
type Config struct {
	Table string
}

// Store implements the kvstore.Store interface using Amazon DynamoDB as
// the storage backend.
type Store struct {
	client *dynamodb.Client

	table string
	now   func() time.Time
}

type storeItem struct {
	Key       string `json:"k" dynamodbav:"k"`
	Value     []byte `json:"v" dynamodbav:"v"`
	UpdatedAt int64  `json:"updated_at" dynamodbav:"updated_at"`
}

func (s *Store) Get(ctx context.Context, k string) ([]byte, error) {
	key, err := attributevalue.Marshal(k)
	if err != nil {
		return nil, err
	}

	output, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		Key: map[string]types.AttributeValue{
			"k": key,
		},
		ConsistentRead: aws.Bool(true),
		TableName:      aws.String(s.table),
	})
	if err != nil {
		return nil, err
	}

	if output.Item == nil {
		return nil, kvstore.ErrNotFound
	}

	var item storeItem
	if err := attributevalue.UnmarshalMap(output.Item, &item); err != nil {
		return nil, err
	}

	return item.Value, nil
}

func (s *Store) Set(ctx context.Context, k string, v []byte) error {
	av, err := attributevalue.MarshalMap(storeItem{
		Key:       k,
		Value:     v,
		UpdatedAt: s.now().UTC().Unix(),
	})
	if err != nil {
		return err
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	})
	return err
}

func (s *Store) Remove(ctx context.Context, k string) error {
	key, err := attributevalue.Marshal(k)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"k": key,
		},
	})
	return err
}

func (s *Store) ListKeys(ctx context.Context) ([]string, error) {
	var keys []string

	var startKey map[string]types.AttributeValue
	for {
		output, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:            aws.String(s.table),
			ProjectionExpression: aws.String("k"),
			ExclusiveStartKey:    startKey,
		})
		if err != nil {
			return nil, err
		}

		for _, item := range output.Items {
			var si storeItem
			if err := attributevalue.UnmarshalMap(item, &si); err != nil {
				return nil, err
			}
			keys = append(keys, si.Key)
		}

		if output.LastEvaluatedKey == nil {
			break
		}
		startKey = output.LastEvaluatedKey
	}

	return keys, nil
}

// New creates a new DynamoDB store with the provided configuration.
// Returns an error if the client is nil or the table name is empty.
func New(client *dynamodb.Client, config *Config) (*Store, error) {
	if client == nil {
		return nil, kvstore.ValidationError{
			Reason: "nil client",
		}
	}
	if config == nil || config.Table == "" {
		return nil, kvstore.ValidationError{
			Reason: "empty table name",
		}
	}

	return &Store{
		client: client,

		table: config.Table,
		now:   time.Now,
	}, nil
}
