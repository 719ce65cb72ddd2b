package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fpang/dynamic-ingest/internal/brightcove"
	"github.com/fpang/dynamic-ingest/internal/events"
	"github.com/fpang/dynamic-ingest/internal/ingest"
	"github.com/fpang/dynamic-ingest/internal/jobstore"
)

type memStore struct {
	puts    []*jobstore.Record
	updates []string
	final   bool
	err     error
}

func (m *memStore) Put(ctx context.Context, rec *jobstore.Record) error {
	m.puts = append(m.puts, rec)
	return m.err
}

func (m *memStore) Get(ctx context.Context, videoID, jobID string) (*jobstore.Record, error) {
	return nil, nil
}

func (m *memStore) UpdateStatus(ctx context.Context, videoID, jobID, status, errMsg string) (bool, error) {
	if m.err != nil || m.final {
		return false, m.err
	}
	m.updates = append(m.updates, videoID+"/"+jobID+"="+status+":"+errMsg)
	return true, nil
}

type memPublisher struct {
	submitted []events.IngestSubmitted
	updated   []events.IngestJobUpdated
}

func (m *memPublisher) Submitted(ctx context.Context, e events.IngestSubmitted) error {
	m.submitted = append(m.submitted, e)
	return nil
}

func (m *memPublisher) JobUpdated(ctx context.Context, e events.IngestJobUpdated) error {
	m.updated = append(m.updated, e)
	return nil
}

func submittedResponse() *ingest.Response {
	return &ingest.Response{
		IngestID: "i-1",
		VideoID:  "v-1",
		Ingest:   &brightcove.IngestJob{ID: "j-1"},
		Uploads:  make([]ingest.UploadRecord, 2),
	}
}

func TestSubmitted(t *testing.T) {
	store, pub := &memStore{}, &memPublisher{}
	tr := New("111", store, pub)
	tr.now = func() time.Time { return time.Unix(1700000000, 0) }

	if err := tr.Submitted(context.Background(), ingest.ModeNewPush, submittedResponse()); err != nil {
		t.Fatalf("Submitted: %v", err)
	}
	if len(store.puts) != 1 {
		t.Fatalf("expected one record, got %d", len(store.puts))
	}
	rec := store.puts[0]
	if rec.AccountID != "111" || rec.VideoID != "v-1" || rec.JobID != "j-1" || rec.Mode != "new-push" || rec.Status != jobstore.StatusSubmitted {
		t.Errorf("unexpected record %+v", rec)
	}
	if len(pub.submitted) != 1 {
		t.Fatalf("expected one event, got %d", len(pub.submitted))
	}
	if e := pub.submitted[0]; e.IngestID != "i-1" || e.Files != 2 || !e.SubmittedAt.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("unexpected event %+v", e)
	}
}

func TestSubmittedWithoutJob(t *testing.T) {
	store := &memStore{}
	if err := New("111", store, nil).Submitted(context.Background(), ingest.ModeNewPull, &ingest.Response{VideoID: "v"}); err != nil {
		t.Fatalf("Submitted: %v", err)
	}
	if len(store.puts) != 0 {
		t.Error("no record expected without a job")
	}
}

func TestSubmittedStoreError(t *testing.T) {
	store, pub := &memStore{err: errors.New("throttled")}, &memPublisher{}
	err := New("111", store, pub).Submitted(context.Background(), ingest.ModeNewPull, submittedResponse())
	if !errors.Is(err, store.err) {
		t.Errorf("expected store error, got %v", err)
	}
	if len(pub.submitted) != 0 {
		t.Error("no event expected when the record failed")
	}
}

func TestUpdated(t *testing.T) {
	store, pub := &memStore{}, &memPublisher{}
	tr := New("111", store, pub)
	ref := ingest.JobRef{VideoID: "v-1", JobID: "j-1"}

	if err := tr.Updated(context.Background(), ref, &brightcove.JobStatus{State: brightcove.JobStateProcessing}); err != nil {
		t.Fatal(err)
	}
	if err := tr.Updated(context.Background(), ref, &brightcove.JobStatus{State: brightcove.JobStateFailed, ErrorMessage: "bad codec"}); err != nil {
		t.Fatal(err)
	}
	want := []string{"v-1/j-1=processing:", "v-1/j-1=failed:bad codec"}
	if len(store.updates) != 2 || store.updates[0] != want[0] || store.updates[1] != want[1] {
		t.Errorf("expected %v, got %v", want, store.updates)
	}
	if len(pub.updated) != 1 || pub.updated[0].Error != "bad codec" {
		t.Errorf("expected one terminal event, got %+v", pub.updated)
	}
}

func TestUpdatedFinalRecordNotPublished(t *testing.T) {
	store, pub := &memStore{final: true}, &memPublisher{}
	ref := ingest.JobRef{VideoID: "v-1", JobID: "j-1"}
	if err := New("111", store, pub).Updated(context.Background(), ref, &brightcove.JobStatus{State: brightcove.JobStateFinished}); err != nil {
		t.Fatal(err)
	}
	if len(pub.updated) != 0 {
		t.Errorf("expected no event for an unchanged record, got %+v", pub.updated)
	}
}

func TestDisabled(t *testing.T) {
	var tr *Tracker
	if tr.Enabled() {
		t.Error("nil tracker must be disabled")
	}
	if New("111", nil, nil).Enabled() {
		t.Error("tracker without store or publisher must be disabled")
	}
	if err := New("111", nil, nil).Submitted(context.Background(), ingest.ModeNewPull, submittedResponse()); err != nil {
		t.Errorf("disabled tracker returned %v", err)
	}
}
