// Package tracking records submitted ingest jobs and announces them.
package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/dynamic-ingest/internal/brightcove"
	"github.com/fpang/dynamic-ingest/internal/events"
	"github.com/fpang/dynamic-ingest/internal/ingest"
	"github.com/fpang/dynamic-ingest/internal/jobstore"
)

// Publisher announces ingest lifecycle events.
type Publisher interface {
	Submitted(ctx context.Context, e events.IngestSubmitted) error
	JobUpdated(ctx context.Context, e events.IngestJobUpdated) error
}

// Tracker writes job records and events. Either side may be nil.
type Tracker struct {
	accountID string
	store     jobstore.Store
	publisher Publisher
	now       func() time.Time
}

// New creates a tracker for accountID.
func New(accountID string, store jobstore.Store, publisher Publisher) *Tracker {
	return &Tracker{accountID: accountID, store: store, publisher: publisher, now: time.Now}
}

// Enabled reports whether anything is recorded.
func (t *Tracker) Enabled() bool {
	return t != nil && (t.store != nil || t.publisher != nil)
}

// Submitted records a job started by a successful ingest. Responses without
// a job are ignored.
func (t *Tracker) Submitted(ctx context.Context, mode ingest.Mode, resp *ingest.Response) error {
	if !t.Enabled() {
		return nil
	}
	ref, ok := resp.JobRef()
	if !ok {
		return nil
	}
	now := t.now().UTC()

	if t.store != nil {
		rec := &jobstore.Record{
			AccountID: t.accountID,
			VideoID:   ref.VideoID,
			JobID:     ref.JobID,
			Mode:      string(mode),
			Status:    jobstore.StatusSubmitted,
		}
		if err := t.store.Put(ctx, rec); err != nil {
			return fmt.Errorf("record job %s: %w", ref.JobID, err)
		}
	}

	if t.publisher != nil {
		err := t.publisher.Submitted(ctx, events.IngestSubmitted{
			IngestID:    resp.IngestID,
			AccountID:   t.accountID,
			VideoID:     ref.VideoID,
			JobID:       ref.JobID,
			Mode:        string(mode),
			Files:       len(resp.Uploads),
			SubmittedAt: now,
		})
		if err != nil {
			return fmt.Errorf("publish submitted event for job %s: %w", ref.JobID, err)
		}
	}

	log.Ctx(ctx).Debug().Str("videoId", ref.VideoID).Str("jobId", ref.JobID).Msg("Ingest job tracked")
	return nil
}

// Updated records a polled job status. A terminal state is published only
// when it changed the stored record; without a store every terminal state is
// published.
func (t *Tracker) Updated(ctx context.Context, ref ingest.JobRef, status *brightcove.JobStatus) error {
	if !t.Enabled() || status == nil {
		return nil
	}

	var errMsg string
	if status.State == brightcove.JobStateFailed {
		errMsg = status.ErrorMessage
	}

	changed := true
	if t.store != nil {
		var err error
		changed, err = t.store.UpdateStatus(ctx, ref.VideoID, ref.JobID, status.State, errMsg)
		if err != nil {
			return fmt.Errorf("update job %s: %w", ref.JobID, err)
		}
	}

	if t.publisher != nil && changed && status.Terminal() {
		err := t.publisher.JobUpdated(ctx, events.IngestJobUpdated{
			AccountID: t.accountID,
			VideoID:   ref.VideoID,
			JobID:     ref.JobID,
			Status:    status.State,
			Error:     errMsg,
			UpdatedAt: t.now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("publish job event for %s: %w", ref.JobID, err)
		}
	}
	return nil
}
