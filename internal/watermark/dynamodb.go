package watermark

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/quotesync/quote-sync-service/internal/config"
)

// DynamoDBStore persists the watermark as a single item in a DynamoDB table,
// keyed by a fixed id so multiple bridge instances can share one table.
type DynamoDBStore struct {
	client    *dynamodb.DynamoDB
	tableName string
	key       string
	fallback  int64
}

// NewDynamoDBStore creates a DynamoDB-backed watermark store.
func NewDynamoDBStore(cfg config.WatermarkConfig) (*DynamoDBStore, error) {
	awsConfig := &aws.Config{
		Region: aws.String(cfg.Region),
	}

	// For local testing with DynamoDB Local
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	store := &DynamoDBStore{
		client:    dynamodb.New(sess),
		tableName: cfg.TableName,
		key:       cfg.Key,
	}

	if err := store.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure table exists: %w", err)
	}

	return store, nil
}

// ensureTable creates the DynamoDB table if it doesn't exist
func (d *DynamoDBStore) ensureTable() error {
	_, err := d.client.DescribeTable(&dynamodb.DescribeTableInput{
		TableName: aws.String(d.tableName),
	})
	if err == nil {
		return nil // Table already exists
	}

	input := &dynamodb.CreateTableInput{
		TableName: aws.String(d.tableName),
		KeySchema: []*dynamodb.KeySchemaElement{
			{
				AttributeName: aws.String("id"),
				KeyType:       aws.String("HASH"),
			},
		},
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{
				AttributeName: aws.String("id"),
				AttributeType: aws.String("S"),
			},
		},
		BillingMode: aws.String("PAY_PER_REQUEST"),
	}

	if _, err := d.client.CreateTable(input); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	return d.client.WaitUntilTableExists(&dynamodb.DescribeTableInput{
		TableName: aws.String(d.tableName),
	})
}

func (d *DynamoDBStore) Get(ctx context.Context) (int64, error) {
	result, err := d.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"id": {S: aws.String(d.key)},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get watermark: %w", err)
	}

	if result.Item == nil {
		return d.fallback, nil
	}

	attr, ok := result.Item["value"]
	if !ok || attr.N == nil {
		return d.fallback, nil
	}

	ts, err := strconv.ParseInt(*attr.N, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse watermark value: %w", err)
	}
	return ts, nil
}

func (d *DynamoDBStore) Set(ctx context.Context, ts int64) error {
	_, err := d.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item: map[string]*dynamodb.AttributeValue{
			"id":    {S: aws.String(d.key)},
			"value": {N: aws.String(strconv.FormatInt(ts, 10))},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to store watermark: %w", err)
	}
	return nil
}

func (d *DynamoDBStore) Clear(ctx context.Context) error {
	_, err := d.client.DeleteItemWithContext(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"id": {S: aws.String(d.key)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to clear watermark: %w", err)
	}
	return nil
}
