package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/naeri-labs/filmgraph/internal/apperr"
)

// FailureRecord is one write that exhausted its retry attempts within a
// round and is carried over to the next drain round.
type FailureRecord struct {
	RunID    string `dynamodbav:"run_id"`
	ItemID   string `dynamodbav:"item_id"`
	Kind     string `dynamodbav:"kind"` // "phase1" or "phase2"
	Payload  string `dynamodbav:"payload"`
	Attempts int    `dynamodbav:"attempts"`
	Round    int    `dynamodbav:"round"`
	LastErr  string `dynamodbav:"last_err"`
}

// FailureQueue persists the graph writer's failure queue across process
// restarts, so a drain round resumes where a prior run left off instead
// of silently losing unretried writes.
type FailureQueue struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewFailureQueue returns a FailureQueue backed by tableName.
func NewFailureQueue(client *dynamodb.Client, tableName string, logger *zap.Logger) *FailureQueue {
	return &FailureQueue{client: client, tableName: tableName, logger: logger}
}

func failureQueuePK(runID string) string { return fmt.Sprintf("FAILQ#%s", runID) }

// Push adds or replaces a failure record for itemID within runID.
func (q *FailureQueue) Push(ctx context.Context, rec FailureRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return apperr.Internal("failure queue marshal", err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: failureQueuePK(rec.RunID)}
	item["SK"] = &types.AttributeValueMemberS{Value: rec.Kind + "#" + rec.ItemID}

	_, err = q.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(q.tableName),
		Item:      item,
	})
	if err != nil {
		return apperr.Transient("failure queue push failed", err)
	}
	return nil
}

// Remove deletes a failure record once it has been successfully retried.
func (q *FailureQueue) Remove(ctx context.Context, runID, kind, itemID string) error {
	_, err := q.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(q.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: failureQueuePK(runID)},
			"SK": &types.AttributeValueMemberS{Value: kind + "#" + itemID},
		},
	})
	if err != nil {
		return apperr.Transient("failure queue remove failed", err)
	}
	return nil
}

// List returns every outstanding failure record for runID, for a drain
// round to pick up after a restart.
func (q *FailureQueue) List(ctx context.Context, runID string) ([]FailureRecord, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(failureQueuePK(runID)))
	builder, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, apperr.Internal("failure queue list expression build", err)
	}

	out, err := q.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(q.tableName),
		KeyConditionExpression:    builder.KeyCondition(),
		ExpressionAttributeNames:  builder.Names(),
		ExpressionAttributeValues: builder.Values(),
	})
	if err != nil {
		return nil, apperr.Transient("failure queue list failed", err)
	}

	records := make([]FailureRecord, 0, len(out.Items))
	for _, item := range out.Items {
		var rec FailureRecord
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			q.logger.Warn("failure queue: skipping unmarshalable record", zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// BumpRound rewrites rec with an incremented Round and Attempts reset to
// zero, ready for the next drain round.
func BumpRound(rec FailureRecord) FailureRecord {
	rec.Round++
	rec.Attempts = 0
	return rec
}

// BackoffFor returns the linear backoff delay for a retry attempt
// (1-indexed), attempt * unit.
func BackoffFor(attempt int, unit time.Duration) time.Duration {
	return time.Duration(attempt) * unit
}
