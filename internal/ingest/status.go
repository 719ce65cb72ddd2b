package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/dynamic-ingest/internal/brightcove"
	"github.com/fpang/dynamic-ingest/internal/ingesterr"
)

// Job status poll settings.
const (
	initialPollInterval = 5 * time.Second
	maxPollInterval     = 30 * time.Second
	defaultPollTimeout  = 30 * time.Minute
)

// Status fetches the current state of a job started by Ingest.
func (o *Orchestrator) Status(ctx context.Context, ref JobRef) (*brightcove.JobStatus, error) {
	if ref.VideoID == "" || ref.JobID == "" {
		return nil, ingesterr.Validation(ingesterr.CodeNoVideoID, "status needs both a video id and a job id")
	}
	return o.api.IngestJobStatus(ctx, ref.VideoID, ref.JobID)
}

// Follow waits for the job started by resp and returns a copy of resp with
// the last polled status recorded. resp itself is not modified. A response
// without a job is returned as is.
func (o *Orchestrator) Follow(ctx context.Context, resp *Response, timeout time.Duration) (*Response, error) {
	ref, ok := resp.JobRef()
	if !ok {
		return resp, nil
	}
	rec := NewRecorderFrom(*resp)
	status, err := o.WaitForJob(ctx, ref, timeout)
	if status != nil {
		rec.RecordStatus(status)
	}
	snap := rec.Snapshot()
	return &snap, err
}

// WaitForJob polls job status until it reaches a terminal state
// (finished or failed) or timeout elapses. Uses exponential backoff:
// 5s, 10s, 20s, 30s (max). A failed job is returned along with an API error.
func (o *Orchestrator) WaitForJob(ctx context.Context, ref JobRef, timeout time.Duration) (*brightcove.JobStatus, error) {
	if timeout == 0 {
		timeout = defaultPollTimeout
	}
	logger := log.Ctx(ctx).With().Str("videoId", ref.VideoID).Str("jobId", ref.JobID).Logger()

	deadline := o.now().Add(timeout)
	interval := initialPollInterval
	var last *brightcove.JobStatus

	for {
		if !o.now().Before(deadline) {
			return last, fmt.Errorf("job %s: timed out after %s waiting for a terminal state", ref.JobID, timeout)
		}

		status, err := o.Status(ctx, ref)
		switch {
		case err != nil:
			if ingesterr.Is(err, ingesterr.KindValidation) || ingesterr.Is(err, ingesterr.KindAuthentication) {
				return last, err
			}
			logger.Warn().Err(err).Msg("Job status poll error, retrying")
		case status.State == brightcove.JobStateFinished:
			logger.Info().Msg("Ingest job finished")
			return status, nil
		case status.State == brightcove.JobStateFailed:
			return status, &ingesterr.Error{
				Kind:          ingesterr.KindAPI,
				Code:          ingesterr.CodeIngestRequestFailed,
				Op:            "wait for job",
				Message:       "ingest job failed",
				RemoteCode:    status.ErrorCode,
				RemoteMessage: status.ErrorMessage,
			}
		default:
			last = status
			logger.Debug().Str("state", status.State).Dur("nextPoll", interval).Msg("Ingest job still processing")
		}

		if err := o.sleep(ctx, interval); err != nil {
			return last, err
		}

		interval *= 2
		if interval > maxPollInterval {
			interval = maxPollInterval
		}
	}
}
