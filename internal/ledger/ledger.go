// Package ledger provides DynamoDB-backed coordination primitives for the
// graph writer: a canonical-id claim ledger that resolves the
// ConcurrentModification race when two Phase 1 workers both try to
// first-create the same (label, name) node, a distributed lock guarding
// the edge-pair delete-then-recreate race in Phase 2, and a durable
// failure queue so retry bookkeeping survives process restarts.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/naeri-labs/filmgraph/internal/apperr"
)

// ClaimLedger hands out exactly one "I created this node" claim per
// (label, name) pair using a conditional PutItem, so concurrent Phase 1
// workers racing to first-create the same node converge on one writer
// doing the create and the rest doing accumulation instead.
type ClaimLedger struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewClaimLedger returns a ClaimLedger backed by tableName.
func NewClaimLedger(client *dynamodb.Client, tableName string, logger *zap.Logger) *ClaimLedger {
	return &ClaimLedger{client: client, tableName: tableName, logger: logger}
}

// Claim attempts to be the first writer for (label, name). It returns
// true if this call won the race (the ledger had no prior record),
// false if another worker already claimed it.
func (l *ClaimLedger) Claim(ctx context.Context, label, name, ownerID string) (bool, error) {
	pk := fmt.Sprintf("NODE_CLAIM#%s#%s", label, name)
	input := &dynamodb.PutItemInput{
		TableName: aws.String(l.tableName),
		Item: map[string]types.AttributeValue{
			"PK":        &types.AttributeValueMemberS{Value: pk},
			"SK":        &types.AttributeValueMemberS{Value: "CLAIM"},
			"Owner":     &types.AttributeValueMemberS{Value: ownerID},
			"ClaimedAt": &types.AttributeValueMemberS{Value: time.Now().Format(time.RFC3339)},
		},
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	}
	_, err := l.client.PutItem(ctx, input)
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return false, nil
		}
		return false, apperr.Transient("claim ledger put failed", err)
	}
	return true, nil
}

// Lock is a held distributed lock on a resource name, released via
// Release.
type Lock struct {
	resource string
	owner    string
	ledger   *PairLock
}

// PairLock guards the edge-pair delete-then-recreate race in Phase 2:
// only one worker at a time may delete-and-recreate the edge for a given
// unordered (nameA, nameB) pair.
type PairLock struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewPairLock returns a PairLock backed by tableName.
func NewPairLock(client *dynamodb.Client, tableName string, logger *zap.Logger) *PairLock {
	return &PairLock{client: client, tableName: tableName, logger: logger}
}

func pairKey(nameA, nameB string) string {
	if nameA > nameB {
		nameA, nameB = nameB, nameA
	}
	return fmt.Sprintf("EDGE_PAIR#%s#%s", nameA, nameB)
}

// Acquire takes the lock for (nameA, nameB), valid for duration, or
// returns apperr.Conflict if another worker currently holds it.
func (p *PairLock) Acquire(ctx context.Context, nameA, nameB, ownerID string, duration time.Duration) (*Lock, error) {
	now := time.Now()
	expires := now.Add(duration)
	resource := pairKey(nameA, nameB)

	input := &dynamodb.PutItemInput{
		TableName: aws.String(p.tableName),
		Item: map[string]types.AttributeValue{
			"PK":        &types.AttributeValueMemberS{Value: resource},
			"SK":        &types.AttributeValueMemberS{Value: "LOCK"},
			"Owner":     &types.AttributeValueMemberS{Value: ownerID},
			"ExpiresAt": &types.AttributeValueMemberS{Value: expires.Format(time.RFC3339)},
		},
		ConditionExpression: aws.String("attribute_not_exists(PK) OR ExpiresAt < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
	}
	_, err := p.client.PutItem(ctx, input)
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, apperr.Conflict("edge pair lock held", err)
		}
		return nil, apperr.Transient("edge pair lock acquire failed", err)
	}
	return &Lock{resource: resource, owner: ownerID, ledger: p}, nil
}

// Release deletes the lock record if it is still owned by this caller.
func (l *Lock) Release(ctx context.Context) error {
	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(l.ledger.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: l.resource},
			"SK": &types.AttributeValueMemberS{Value: "LOCK"},
		},
		ConditionExpression: aws.String("Owner = :owner"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: l.owner},
		},
	}
	_, err := l.ledger.client.DeleteItem(ctx, input)
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil // already expired and reclaimed by someone else
		}
		return apperr.Transient("edge pair lock release failed", err)
	}
	return nil
}
