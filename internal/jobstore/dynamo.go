package jobstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

const (
	pkPrefix = "VIDEO#"
	skPrefix = "JOB#"
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoStore implements Store on a DynamoDB table.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

var _ Store = (*DynamoStore)(nil)

// NewDynamoStore creates a store for tableName. A ttl of zero uses DefaultTTL.
func NewDynamoStore(client DynamoAPI, tableName string, ttl time.Duration) *DynamoStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &DynamoStore{client: client, tableName: tableName, ttl: ttl, now: time.Now}
}

func key(videoID, jobID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pkPrefix + videoID},
		"SK": &types.AttributeValueMemberS{Value: skPrefix + jobID},
	}
}

func (s *DynamoStore) expiresAt() string {
	return strconv.FormatInt(s.now().Add(s.ttl).Unix(), 10)
}

// Put writes rec, stamping CreatedAt and UpdatedAt when unset.
func (s *DynamoStore) Put(ctx context.Context, rec *Record) error {
	now := s.now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal job %s/%s: %w", rec.VideoID, rec.JobID, err)
	}
	for k, v := range key(rec.VideoID, rec.JobID) {
		item[k] = v
	}
	item["expiresAt"] = &types.AttributeValueMemberN{Value: s.expiresAt()}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	}); err != nil {
		return fmt.Errorf("put job %s/%s: %w", rec.VideoID, rec.JobID, err)
	}

	log.Ctx(ctx).Debug().
		Str("videoId", rec.VideoID).
		Str("jobId", rec.JobID).
		Str("status", rec.Status).
		Msg("Job record persisted")
	return nil
}

// Get reads one record. Returns nil, nil when it does not exist.
func (s *DynamoStore) Get(ctx context.Context, videoID, jobID string) (*Record, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key:       key(videoID, jobID),
	})
	if err != nil {
		return nil, fmt.Errorf("get job %s/%s: %w", videoID, jobID, err)
	}
	if out.Item == nil {
		log.Ctx(ctx).Debug().Str("videoId", videoID).Str("jobId", jobID).Bool("found", false).Msg("Job record not found")
		return nil, nil
	}

	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal job %s/%s: %w", videoID, jobID, err)
	}
	rec.VideoID = videoID
	rec.JobID = jobID
	return &rec, nil
}

// UpdateStatus sets the status and error message without touching other
// fields. A record that does not exist yet is created with just these
// fields, so notifications for jobs submitted elsewhere are still kept.
//
// Finished and failed records are final: later updates are dropped and
// UpdateStatus reports false.
func (s *DynamoStore) UpdateStatus(ctx context.Context, videoID, jobID, status, errMsg string) (bool, error) {
	now, err := attributevalue.Marshal(s.now().UTC())
	if err != nil {
		return false, fmt.Errorf("marshal timestamp: %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 key(videoID, jobID),
		UpdateExpression:    aws.String("SET #s = :s, #e = :e, updatedAt = :u, createdAt = if_not_exists(createdAt, :u), expiresAt = :x"),
		ConditionExpression: aws.String("attribute_not_exists(#s) OR NOT (#s IN (:finished, :failed))"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status", // reserved word
			"#e": "errorMessage",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":s":        &types.AttributeValueMemberS{Value: status},
			":e":        &types.AttributeValueMemberS{Value: errMsg},
			":u":        now,
			":x":        &types.AttributeValueMemberN{Value: s.expiresAt()},
			":finished": &types.AttributeValueMemberS{Value: StatusFinished},
			":failed":   &types.AttributeValueMemberS{Value: StatusFailed},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			log.Ctx(ctx).Debug().Str("videoId", videoID).Str("jobId", jobID).Str("status", status).Msg("Job already final, status update skipped")
			return false, nil
		}
		return false, fmt.Errorf("update job status %s/%s -> %s: %w", videoID, jobID, status, err)
	}

	log.Ctx(ctx).Debug().Str("videoId", videoID).Str("jobId", jobID).Str("status", status).Msg("Job status updated")
	return true, nil
}
