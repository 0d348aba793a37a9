// Package dynamo implements the store gateway over a single DynamoDB table.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"example.com/activities/internal/domain"
	"example.com/activities/internal/observability"
	"example.com/activities/internal/persistence"
	"example.com/activities/internal/query"
)

// Client is the subset of the DynamoDB API used by the gateway.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// NewClient builds a DynamoDB client from the default credential chain. A non-empty endpoint
// points the client at a local emulator.
func NewClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// Gateway persists activities in one table keyed by id.
type Gateway struct {
	client Client
	table  string
	logger *zap.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// New constructs a Gateway over table.
func New(client Client, table string, opts ...Option) *Gateway {
	g := &Gateway{client: client, table: table, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// timeLayout is the fixed width UTC layout of stored time attributes. Key conditions compare
// startTime as a string, so every value must sort lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func encodeTime(t time.Time) (types.AttributeValue, error) {
	return &types.AttributeValueMemberS{Value: t.UTC().Format(timeLayout)}, nil
}

func marshalMap(in any) (map[string]types.AttributeValue, error) {
	return attributevalue.MarshalMapWithOptions(in, func(o *attributevalue.EncoderOptions) {
		o.EncodeTime = encodeTime
	})
}

// rangeBounds narrows the startTime bounds of values to whole milliseconds so they select the
// same items the stored layout can represent. It reports false when no stored value fits.
func rangeBounds(values map[string]any) bool {
	from, hasFrom := values[":fromStartTime"].(time.Time)
	if hasFrom {
		if floor := from.Truncate(time.Millisecond); floor.Before(from) {
			from = floor.Add(time.Millisecond)
		}
		values[":fromStartTime"] = from
	}
	to, hasTo := values[":toStartTime"].(time.Time)
	if hasTo {
		to = to.Truncate(time.Millisecond)
		values[":toStartTime"] = to
	}
	return !hasFrom || !hasTo || !from.After(to)
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		query.AttrID: &types.AttributeValueMemberS{Value: id},
	}
}

// Get returns the activity stored under id, or nil when there is none.
func (g *Gateway) Get(ctx context.Context, id string) (*domain.Activity, error) {
	defer observability.ObserveStore("get", time.Now())

	out, err := g.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(g.table),
		Key:       idKey(id),
	})
	if err != nil {
		return nil, storageError("get", err)
	}
	return decodeItem("get", out.Item)
}

// Put replaces the item stored under a.ID and returns the previous item, if any.
func (g *Gateway) Put(ctx context.Context, a domain.Activity) (*domain.Activity, error) {
	defer observability.ObserveStore("put", time.Now())

	item, err := marshalMap(a)
	if err != nil {
		return nil, &domain.StorageError{Op: "put", Code: "MarshalError", Message: err.Error(), Err: err}
	}
	out, err := g.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:    aws.String(g.table),
		Item:         item,
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return nil, storageError("put", err)
	}
	return decodeItem("put", out.Attributes)
}

// Delete removes the item stored under id and returns it, if any.
func (g *Gateway) Delete(ctx context.Context, id string) (*domain.Activity, error) {
	defer observability.ObserveStore("delete", time.Now())

	out, err := g.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(g.table),
		Key:          idKey(id),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return nil, storageError("delete", err)
	}
	return decodeItem("delete", out.Attributes)
}

// BatchPut writes items in chunks of persistence.MaxBatchSize issued concurrently. The first
// failing chunk fails the whole call; unprocessed items count as a failure.
func (g *Gateway) BatchPut(ctx context.Context, items []domain.Activity) error {
	defer observability.ObserveStore("batch_put", time.Now())

	requests := make([]types.WriteRequest, 0, len(items))
	for _, a := range items {
		item, err := marshalMap(a)
		if err != nil {
			return &domain.StorageError{Op: "batchPut", Code: "MarshalError", Message: err.Error(), Err: err}
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}

	group, gctx := errgroup.WithContext(ctx)
	for _, bounds := range persistence.Chunk(len(requests), persistence.MaxBatchSize) {
		chunk := requests[bounds[0]:bounds[1]]
		group.Go(func() error {
			out, err := g.client.BatchWriteItem(gctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{g.table: chunk},
			})
			if err != nil {
				return storageError("batchPut", err)
			}
			if pending := len(out.UnprocessedItems[g.table]); pending > 0 {
				g.logger.Warn("batch write left unprocessed items", zap.Int("unprocessed", pending))
				return &domain.StorageError{
					Op:         "batchPut",
					Code:       "UnprocessedItems",
					Message:    fmt.Sprintf("%d of %d items were not written", pending, len(chunk)),
					StatusCode: 500,
				}
			}
			return nil
		})
	}
	return group.Wait()
}

// QueryIndex runs q against its index and follows LastEvaluatedKey until the result is complete.
func (g *Gateway) QueryIndex(ctx context.Context, q query.Query) ([]domain.Activity, error) {
	defer observability.ObserveStore("query", time.Now())

	bounds := q.Values()
	if !rangeBounds(bounds) {
		return nil, nil
	}
	values, err := marshalMap(bounds)
	if err != nil {
		return nil, &domain.StorageError{Op: "query", Code: "MarshalError", Message: err.Error(), Err: err}
	}
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(g.table),
		IndexName:                 aws.String(q.Index),
		KeyConditionExpression:    aws.String(q.KeyConditionExpression()),
		ExpressionAttributeValues: values,
	}
	if filter := q.FilterExpression(); filter != "" {
		input.FilterExpression = aws.String(filter)
	}

	var out []domain.Activity
	for {
		page, err := g.client.Query(ctx, input)
		if err != nil {
			return nil, storageError("query", err)
		}
		observability.RecordQueryPage(q.Index)

		var items []domain.Activity
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, &domain.StorageError{Op: "query", Code: "UnmarshalError", Message: err.Error(), Err: err}
		}
		out = append(out, items...)

		if len(page.LastEvaluatedKey) == 0 {
			return out, nil
		}
		input.ExclusiveStartKey = page.LastEvaluatedKey
	}
}

func decodeItem(op string, item map[string]types.AttributeValue) (*domain.Activity, error) {
	if len(item) == 0 {
		return nil, nil
	}
	var a domain.Activity
	if err := attributevalue.UnmarshalMap(item, &a); err != nil {
		return nil, &domain.StorageError{Op: op, Code: "UnmarshalError", Message: err.Error(), Err: err}
	}
	return &a, nil
}

// storageError keeps the service error code, HTTP status and request id reported by DynamoDB.
func storageError(op string, err error) *domain.StorageError {
	se := &domain.StorageError{Op: op, Message: err.Error(), Err: err}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		se.Code = apiErr.ErrorCode()
		se.Message = apiErr.ErrorMessage()
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		se.StatusCode = respErr.HTTPStatusCode()
		se.RequestID = respErr.ServiceRequestID()
	}
	return se
}
