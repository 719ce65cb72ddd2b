// Package events publishes ingest lifecycle events to EventBridge so other
// services can react to submitted and completed jobs.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog/log"
)

// Source is the EventBridge source of every event.
const Source = "dynamic-ingest"

// Detail types.
const (
	TypeIngestSubmitted  = "IngestSubmitted"
	TypeIngestJobUpdated = "IngestJobUpdated"
)

// IngestSubmitted is emitted after an ingest request is accepted.
type IngestSubmitted struct {
	IngestID    string    `json:"ingestId"`
	AccountID   string    `json:"accountId"`
	VideoID     string    `json:"videoId"`
	JobID       string    `json:"jobId"`
	Mode        string    `json:"mode"`
	Files       int       `json:"files"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// IngestJobUpdated is emitted when a job changes state.
type IngestJobUpdated struct {
	AccountID string    `json:"accountId"`
	VideoID   string    `json:"videoId"`
	JobID     string    `json:"jobId"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PutEventsAPI is the subset of the EventBridge client used here.
type PutEventsAPI interface {
	PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Publisher sends events to one bus.
type Publisher struct {
	client PutEventsAPI
	bus    string
}

// NewPublisher creates a publisher for bus. An empty bus name targets the
// default bus.
func NewPublisher(client PutEventsAPI, bus string) *Publisher {
	return &Publisher{client: client, bus: bus}
}

// Submitted publishes an IngestSubmitted event.
func (p *Publisher) Submitted(ctx context.Context, e IngestSubmitted) error {
	return p.put(ctx, TypeIngestSubmitted, e.VideoID, e.JobID, e)
}

// JobUpdated publishes an IngestJobUpdated event.
func (p *Publisher) JobUpdated(ctx context.Context, e IngestJobUpdated) error {
	return p.put(ctx, TypeIngestJobUpdated, e.VideoID, e.JobID, e)
}

func (p *Publisher) put(ctx context.Context, detailType, videoID, jobID string, event any) error {
	detail, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", detailType, err)
	}

	entry := eventbridgetypes.PutEventsRequestEntry{
		Source:     aws.String(Source),
		DetailType: aws.String(detailType),
		Detail:     aws.String(string(detail)),
	}
	if p.bus != "" {
		entry.EventBusName = aws.String(p.bus)
	}

	logger := log.Ctx(ctx)
	result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []eventbridgetypes.PutEventsRequestEntry{entry},
	})
	if err != nil {
		logger.Error().Err(err).Str("videoId", videoID).Str("jobId", jobID).Str("eventType", detailType).Msg("EventBridge PutEvents failed")
		return fmt.Errorf("PutEvents: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for i, e := range result.Entries {
			if e.ErrorCode != nil || e.ErrorMessage != nil {
				logger.Error().
					Int("index", i).
					Str("errorCode", aws.ToString(e.ErrorCode)).
					Str("errorMessage", aws.ToString(e.ErrorMessage)).
					Str("videoId", videoID).
					Str("eventType", detailType).
					Msg("EventBridge PutEvents entry failed")
				return fmt.Errorf("PutEvents entry %d failed: %s - %s", i, aws.ToString(e.ErrorCode), aws.ToString(e.ErrorMessage))
			}
		}
	}

	logger.Debug().Str("videoId", videoID).Str("jobId", jobID).Str("eventType", detailType).Msg("Event published")
	return nil
}
