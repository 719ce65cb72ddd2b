// Package webhook receives Dynamic Ingest job notifications.
//
// Ingest requests may list callback URLs. The platform then POSTs one JSON
// notification per processed entity (each rendition, image, text track) and
// a final TITLE notification once the whole video is done:
//
//	POST /callback?token=<shared token>
//	{"entity": "...", "entityType": "TITLE", "videoId": "...", "jobId": "...",
//	 "action": "CREATE", "status": "SUCCESS", "errorMessage": ""}
//
// The platform does not sign notifications, so the handler requires a shared
// token in the query string. Each notification updates the job record until
// the job is finished or failed. The notification that makes the job final
// also publishes an IngestJobUpdated event.
package webhook

import (
	"context"
	"crypto/subtle"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/dynamic-ingest/internal/events"
	"github.com/fpang/dynamic-ingest/internal/jobstore"
	"github.com/fpang/dynamic-ingest/internal/jsonutil"
)

// maxBodySize bounds a notification body (64 KB).
const maxBodySize = 64 << 10

// Notification statuses and the entity type of the final notification.
const (
	StatusSuccess   = "SUCCESS"
	StatusFailed    = "FAILED"
	EntityTypeTitle = "TITLE"
)

// Notification is one Dynamic Ingest callback body.
type Notification struct {
	Entity       string `json:"entity"`
	EntityType   string `json:"entityType"`
	AccountID    string `json:"accountId,omitempty"`
	VideoID      string `json:"videoId"`
	JobID        string `json:"jobId"`
	Action       string `json:"action"`
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// JobStatus maps the notification onto a job record status. Failures of any
// entity fail the job; only a successful TITLE notification finishes it.
func (n Notification) JobStatus() string {
	switch {
	case strings.EqualFold(n.Status, StatusFailed):
		return jobstore.StatusFailed
	case strings.EqualFold(n.EntityType, EntityTypeTitle) && strings.EqualFold(n.Status, StatusSuccess):
		return jobstore.StatusFinished
	default:
		return jobstore.StatusProcessing
	}
}

// StatusUpdater records job status changes. UpdateStatus reports false when
// the job was already final and nothing changed.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, videoID, jobID, status, errMsg string) (bool, error)
}

// JobPublisher announces job status changes.
type JobPublisher interface {
	JobUpdated(ctx context.Context, e events.IngestJobUpdated) error
}

// Handler handles Dynamic Ingest notifications. store and publisher may be
// nil, in which case notifications are only logged.
type Handler struct {
	token     string
	store     StatusUpdater
	publisher JobPublisher
	now       func() time.Time
}

// NewHandler creates a callback handler that accepts requests carrying token.
func NewHandler(token string, store StatusUpdater, publisher JobPublisher) *Handler {
	return &Handler{token: token, store: store, publisher: publisher, now: time.Now}
}

// ServeHTTP accepts POST notifications only.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	logger := log.Ctx(r.Context())

	if !h.authorized(r.URL.Query().Get("token")) {
		logger.Warn().Str("remoteAddr", r.RemoteAddr).Msg("Ingest callback rejected: invalid token")
		http.Error(w, "invalid token", http.StatusForbidden)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	defer r.Body.Close()
	if err != nil {
		logger.Error().Err(err).Msg("Ingest callback: failed to read body")
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	body = jsonutil.StripControl(body)
	if jsonutil.IsEmpty(body) {
		logger.Warn().Msg("Ingest callback: empty body")
		http.Error(w, "empty body", http.StatusBadRequest)
		return
	}

	n, err := jsonutil.Decode[Notification](body)
	if err != nil {
		logger.Warn().Err(err).Str("body", jsonutil.Preview(body, 200)).Msg("Ingest callback: invalid JSON")
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if n.VideoID == "" || n.JobID == "" {
		logger.Warn().RawJSON("payload", body).Msg("Ingest callback: missing videoId or jobId")
		http.Error(w, "videoId and jobId are required", http.StatusBadRequest)
		return
	}

	status := n.JobStatus()
	logger.Info().
		Str("videoId", n.VideoID).
		Str("jobId", n.JobID).
		Str("entityType", n.EntityType).
		Str("action", n.Action).
		Str("status", n.Status).
		Str("jobStatus", status).
		Msg("Ingest callback received")

	ctx := r.Context()
	changed := true
	if h.store != nil {
		changed, err = h.store.UpdateStatus(ctx, n.VideoID, n.JobID, status, n.ErrorMessage)
		if err != nil {
			logger.Error().Err(err).Str("jobId", n.JobID).Msg("Ingest callback: job update failed")
			http.Error(w, "job update failed", http.StatusInternalServerError)
			return
		}
		if !changed {
			logger.Info().Str("jobId", n.JobID).Str("jobStatus", status).Msg("Ingest callback: job already final, ignored")
		}
	}

	if h.publisher != nil && changed && (status == jobstore.StatusFinished || status == jobstore.StatusFailed) {
		err := h.publisher.JobUpdated(ctx, events.IngestJobUpdated{
			AccountID: n.AccountID,
			VideoID:   n.VideoID,
			JobID:     n.JobID,
			Status:    status,
			Error:     n.ErrorMessage,
			UpdatedAt: h.now().UTC(),
		})
		if err != nil {
			// The record is already updated; the event is best effort.
			logger.Warn().Err(err).Str("jobId", n.JobID).Msg("Ingest callback: event publish failed")
		}
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) authorized(got string) bool {
	if h.token == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) == 1
}
