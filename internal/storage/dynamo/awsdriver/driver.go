// Package awsdriver implements storage.Driver on the AWS SDK v2 DynamoDB
// client. It translates the engine's plain-map items to attribute values
// and maps service exceptions to the shared sentinel errors.
package awsdriver

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/MadlinksCoding/modstore/internal/storage"
)

// api is the slice of the DynamoDB client the driver uses.
type api interface {
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, opts ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Driver adapts a DynamoDB client to storage.Driver.
type Driver struct {
	client api
}

// New wraps an existing DynamoDB client.
func New(client *dynamodb.Client) *Driver {
	return &Driver{client: client}
}

// NewFromEnv builds a client from the ambient AWS configuration. A
// non-empty endpoint overrides the service URL (local DynamoDB).
func NewFromEnv(ctx context.Context, region, endpoint string) (*Driver, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}
	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return &Driver{client: client}, nil
}

// mapError translates service exceptions to the shared sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var (
		condFailed *ddbtypes.ConditionalCheckFailedException
		inUse      *ddbtypes.ResourceInUseException
		notFound   *ddbtypes.ResourceNotFoundException
		throughput *ddbtypes.ProvisionedThroughputExceededException
		reqLimit   *ddbtypes.RequestLimitExceeded
	)
	switch {
	case errors.As(err, &condFailed):
		return storage.ErrConditionalCheckFailed
	case errors.As(err, &inUse):
		return storage.ErrResourceInUse
	case errors.As(err, &notFound):
		return storage.ErrResourceNotFound
	case errors.As(err, &throughput), errors.As(err, &reqLimit):
		return storage.ErrThrottled
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ThrottlingException" {
		return storage.ErrThrottled
	}
	return err
}

func (d *Driver) CreateTable(ctx context.Context, in *storage.CreateTableInput) error {
	defs := make([]ddbtypes.AttributeDefinition, 0, len(in.Attributes))
	for name, typ := range in.Attributes {
		defs = append(defs, ddbtypes.AttributeDefinition{
			AttributeName: aws.String(name),
			AttributeType: ddbtypes.ScalarAttributeType(typ),
		})
	}
	gsis := make([]ddbtypes.GlobalSecondaryIndex, 0, len(in.Indexes))
	for _, idx := range in.Indexes {
		proj := &ddbtypes.Projection{ProjectionType: ddbtypes.ProjectionType(idx.Projection)}
		if idx.Projection == storage.ProjectionInclude {
			proj.NonKeyAttributes = idx.NonKeyAttributes
		}
		gsis = append(gsis, ddbtypes.GlobalSecondaryIndex{
			IndexName:  aws.String(idx.Name),
			KeySchema:  keySchema(idx.Keys),
			Projection: proj,
		})
	}
	_, err := d.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:              aws.String(in.TableName),
		AttributeDefinitions:   defs,
		KeySchema:              keySchema(in.Keys),
		GlobalSecondaryIndexes: gsis,
		BillingMode:            ddbtypes.BillingModePayPerRequest,
	})
	return mapError(err)
}

func keySchema(keys storage.KeySchema) []ddbtypes.KeySchemaElement {
	schema := []ddbtypes.KeySchemaElement{{
		AttributeName: aws.String(keys.PartitionKey),
		KeyType:       ddbtypes.KeyTypeHash,
	}}
	if keys.RangeKey != "" {
		schema = append(schema, ddbtypes.KeySchemaElement{
			AttributeName: aws.String(keys.RangeKey),
			KeyType:       ddbtypes.KeyTypeRange,
		})
	}
	return schema
}

func (d *Driver) PutItem(ctx context.Context, in *storage.PutInput) error {
	item, err := attributevalue.MarshalMap(in.Item)
	if err != nil {
		return err
	}
	req := &dynamodb.PutItemInput{
		TableName: aws.String(in.TableName),
		Item:      item,
	}
	if in.ConditionExpression != "" {
		req.ConditionExpression = aws.String(in.ConditionExpression)
		req.ExpressionAttributeNames = in.ExpressionAttributeNames
		if len(in.ExpressionAttributeValues) > 0 {
			values, err := attributevalue.MarshalMap(in.ExpressionAttributeValues)
			if err != nil {
				return err
			}
			req.ExpressionAttributeValues = values
		}
	}
	_, err = d.client.PutItem(ctx, req)
	return mapError(err)
}

func (d *Driver) GetItem(ctx context.Context, in *storage.GetInput) (map[string]any, error) {
	key, err := attributevalue.MarshalMap(in.Key)
	if err != nil {
		return nil, err
	}
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(in.TableName),
		Key:            key,
		ConsistentRead: aws.Bool(in.ConsistentRead),
	})
	if err != nil {
		return nil, mapError(err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var item map[string]any
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, err
	}
	return item, nil
}

func (d *Driver) DeleteItem(ctx context.Context, in *storage.DeleteInput) error {
	key, err := attributevalue.MarshalMap(in.Key)
	if err != nil {
		return err
	}
	_, err = d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(in.TableName),
		Key:       key,
	})
	return mapError(err)
}

func (d *Driver) Query(ctx context.Context, in *storage.QueryInput) (*storage.Page, error) {
	req := &dynamodb.QueryInput{
		TableName:              aws.String(in.TableName),
		KeyConditionExpression: aws.String(in.KeyConditionExpression),
		ScanIndexForward:       aws.Bool(in.ScanIndexForward),
	}
	if in.IndexName != "" {
		req.IndexName = aws.String(in.IndexName)
	}
	if in.FilterExpression != "" {
		req.FilterExpression = aws.String(in.FilterExpression)
	}
	if len(in.ExpressionAttributeNames) > 0 {
		req.ExpressionAttributeNames = in.ExpressionAttributeNames
	}
	if len(in.ExpressionAttributeValues) > 0 {
		values, err := attributevalue.MarshalMap(in.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		req.ExpressionAttributeValues = values
	}
	if in.Limit > 0 {
		req.Limit = aws.Int32(int32(in.Limit))
	}
	if len(in.ExclusiveStartKey) > 0 {
		start, err := attributevalue.MarshalMap(in.ExclusiveStartKey)
		if err != nil {
			return nil, err
		}
		req.ExclusiveStartKey = start
	}
	if in.Select == storage.SelectCount {
		req.Select = ddbtypes.SelectCount
	}
	out, err := d.client.Query(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}
	return buildPage(out.Items, int(out.Count), out.LastEvaluatedKey)
}

func (d *Driver) Scan(ctx context.Context, in *storage.ScanInput) (*storage.Page, error) {
	req := &dynamodb.ScanInput{TableName: aws.String(in.TableName)}
	if in.FilterExpression != "" {
		req.FilterExpression = aws.String(in.FilterExpression)
	}
	if len(in.ExpressionAttributeNames) > 0 {
		req.ExpressionAttributeNames = in.ExpressionAttributeNames
	}
	if len(in.ExpressionAttributeValues) > 0 {
		values, err := attributevalue.MarshalMap(in.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		req.ExpressionAttributeValues = values
	}
	if in.Limit > 0 {
		req.Limit = aws.Int32(int32(in.Limit))
	}
	if len(in.ExclusiveStartKey) > 0 {
		start, err := attributevalue.MarshalMap(in.ExclusiveStartKey)
		if err != nil {
			return nil, err
		}
		req.ExclusiveStartKey = start
	}
	if in.Select == storage.SelectCount {
		req.Select = ddbtypes.SelectCount
	}
	out, err := d.client.Scan(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}
	return buildPage(out.Items, int(out.Count), out.LastEvaluatedKey)
}

func buildPage(raw []map[string]ddbtypes.AttributeValue, count int, lastKey map[string]ddbtypes.AttributeValue) (*storage.Page, error) {
	page := &storage.Page{Count: count}
	if raw != nil {
		page.Items = make([]map[string]any, 0, len(raw))
		for _, av := range raw {
			var item map[string]any
			if err := attributevalue.UnmarshalMap(av, &item); err != nil {
				return nil, err
			}
			page.Items = append(page.Items, item)
		}
	}
	if len(lastKey) > 0 {
		var key map[string]any
		if err := attributevalue.UnmarshalMap(lastKey, &key); err != nil {
			return nil, err
		}
		page.LastEvaluatedKey = key
	}
	return page, nil
}
