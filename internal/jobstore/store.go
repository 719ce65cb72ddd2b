// Package jobstore persists ingest job records so job progress can be
// followed after the ingest call returns.
//
// Records live in a single DynamoDB table. The partition key is
// VIDEO#{videoId} and the sort key JOB#{jobId}, so every job for a video can
// be listed with one query. A TTL attribute (expiresAt) removes old records.
package jobstore

import (
	"context"
	"time"
)

// DefaultTTL is how long job records are kept when no TTL is configured.
const DefaultTTL = 30 * 24 * time.Hour

// Job statuses. Remote job states are stored as reported.
const (
	StatusSubmitted  = "submitted"
	StatusProcessing = "processing"
	StatusFinished   = "finished"
	StatusFailed     = "failed"
)

// Record is one ingest job.
type Record struct {
	AccountID string    `dynamodbav:"accountId" json:"accountId"`
	VideoID   string    `dynamodbav:"-" json:"videoId"`
	JobID     string    `dynamodbav:"-" json:"jobId"`
	Mode      string    `dynamodbav:"mode,omitempty" json:"mode,omitempty"`
	Status    string    `dynamodbav:"status" json:"status"`
	Error     string    `dynamodbav:"errorMessage,omitempty" json:"error,omitempty"`
	CreatedAt time.Time `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `dynamodbav:"updatedAt" json:"updatedAt"`
}

// Terminal reports whether the job will not change again.
func (r *Record) Terminal() bool {
	return r.Status == StatusFinished || r.Status == StatusFailed
}

// Store persists job records. Get returns (nil, nil) when the record does
// not exist. Put replaces the whole record. UpdateStatus reports whether the
// status was written; a record that is already Terminal is left unchanged.
type Store interface {
	Put(ctx context.Context, rec *Record) error
	Get(ctx context.Context, videoID, jobID string) (*Record, error)
	UpdateStatus(ctx context.Context, videoID, jobID, status, errMsg string) (bool, error)
}
