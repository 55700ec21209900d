package kvstore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

var (
	_ DynamoAPI = (*dynamodb.Client)(nil)
	_ Store     = (*Dynamo)(nil)
)

// DynamoConfig holds DynamoDB client configuration.
type DynamoConfig struct {
	Region          string
	Endpoint        string // optional, e.g. http://localhost:8000 for DynamoDB Local
	AccessKeyID     string
	SecretAccessKey string
	Table           string
}

// Dynamo is the DynamoDB-backed Store.
type Dynamo struct {
	client DynamoAPI
	table  string
}

// NewDynamo wraps an existing client.
func NewDynamo(client DynamoAPI, table string) *Dynamo {
	return &Dynamo{client: client, table: table}
}

// NewDynamoFromConfig builds a DynamoDB client from static credentials when
// provided, otherwise from the default credential chain.
func NewDynamoFromConfig(ctx context.Context, cfg DynamoConfig, logger *zap.Logger) (*Dynamo, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	if logger != nil {
		logger.Info("DynamoDB store configured", zap.String("table", cfg.Table), zap.String("region", cfg.Region))
	}
	return NewDynamo(client, cfg.Table), nil
}

// Put creates or replaces an item.
func (d *Dynamo) Put(ctx context.Context, item interface{}) error {
	av, _, err := marshalItem(item)
	if err != nil {
		return err
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// Create writes an item guarded by attribute_not_exists(PK).
func (d *Dynamo) Create(ctx context.Context, item interface{}) error {
	av, _, err := marshalItem(item)
	if err != nil {
		return err
	}
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name(AttrPK))).
		Build()
	if err != nil {
		return fmt.Errorf("build condition: %w", err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(d.table),
		Item:                     av,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrConditionFailed
		}
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}

// Get loads one item.
func (d *Dynamo) Get(ctx context.Context, key Key, out interface{}) error {
	res, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.table),
		Key:       keyAttrs(key),
	})
	if err != nil {
		return fmt.Errorf("get item: %w", err)
	}
	if len(res.Item) == 0 {
		return ErrNotFound
	}
	if err := attributevalue.UnmarshalMap(res.Item, out); err != nil {
		return fmt.Errorf("unmarshal item: %w", err)
	}
	return nil
}

// Query runs a key-condition query with optional begins_with and filter.
func (d *Dynamo) Query(ctx context.Context, q Query, out interface{}) (string, error) {
	after, err := decodeCursor(q.Cursor)
	if err != nil {
		return "", err
	}
	pkName, skName := q.Index.KeyNames()
	keyCond := expression.Key(pkName).Equal(expression.Value(q.Partition))
	if q.SortPrefix != "" {
		keyCond = keyCond.And(expression.Key(skName).BeginsWith(q.SortPrefix))
	}
	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	if filter, ok := filterCondition(q.Filter); ok {
		builder = builder.WithFilter(filter)
	}
	expr, err := builder.Build()
	if err != nil {
		return "", fmt.Errorf("build query: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(d.table),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}
	if q.Index != IndexTable {
		input.IndexName = aws.String(string(q.Index))
	}
	if q.Limit > 0 {
		input.Limit = aws.Int32(int32(q.Limit))
	}
	if after != nil {
		input.ExclusiveStartKey = make(map[string]types.AttributeValue, len(after))
		for k, v := range after {
			input.ExclusiveStartKey[k] = &types.AttributeValueMemberS{Value: v}
		}
	}

	res, err := d.client.Query(ctx, input)
	if err != nil {
		return "", fmt.Errorf("query: %w", err)
	}
	if err := attributevalue.UnmarshalListOfMaps(res.Items, out); err != nil {
		return "", fmt.Errorf("unmarshal items: %w", err)
	}
	if len(res.LastEvaluatedKey) == 0 {
		return "", nil
	}
	next := make(map[string]string, len(res.LastEvaluatedKey))
	for k := range res.LastEvaluatedKey {
		next[k] = stringAttr(res.LastEvaluatedKey, k)
	}
	return encodeCursor(next), nil
}

// Delete removes one item.
func (d *Dynamo) Delete(ctx context.Context, key Key) error {
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.table),
		Key:       keyAttrs(key),
	})
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

func keyAttrs(key Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		AttrPK: &types.AttributeValueMemberS{Value: key.PK},
		AttrSK: &types.AttributeValueMemberS{Value: key.SK},
	}
}

func filterCondition(filter map[string]interface{}) (expression.ConditionBuilder, bool) {
	if len(filter) == 0 {
		return expression.ConditionBuilder{}, false
	}
	names := make([]string, 0, len(filter))
	for name := range filter {
		names = append(names, name)
	}
	sort.Strings(names)
	cond := expression.Name(names[0]).Equal(expression.Value(filter[names[0]]))
	for _, name := range names[1:] {
		cond = cond.And(expression.Name(name).Equal(expression.Value(filter[name])))
	}
	return cond, true
}
