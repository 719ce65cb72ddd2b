package ingest

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/fpang/dynamic-ingest/internal/brightcove"
	"github.com/fpang/dynamic-ingest/internal/s3util"
)

func TestRecorderSnapshotIsIsolated(t *testing.T) {
	rec := NewRecorder()
	rec.RecordVideoID("v-1")
	rec.RecordUploadURLs(brightcove.UploadURLs{ObjectKey: "a"})

	snap := rec.Snapshot()
	snap.UploadURLs[0].ObjectKey = "changed"
	rec.RecordUploadURLs(brightcove.UploadURLs{ObjectKey: "b"})

	again := rec.Snapshot()
	if again.UploadURLs[0].ObjectKey != "a" {
		t.Errorf("snapshot mutation leaked into recorder: %s", again.UploadURLs[0].ObjectKey)
	}
	if len(snap.UploadURLs) != 1 || len(again.UploadURLs) != 2 {
		t.Errorf("unexpected lengths %d/%d", len(snap.UploadURLs), len(again.UploadURLs))
	}
}

func TestRecorderEmptyListsEncode(t *testing.T) {
	snap := NewRecorder().Snapshot()
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"s3":[]`) || !strings.Contains(string(data), `"putFiles":[]`) {
		t.Errorf("expected empty lists in %s", data)
	}
	if strings.Contains(string(data), `"di"`) {
		t.Errorf("expected no di key before the trigger: %s", data)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	rec := NewRecorder()
	var video brightcove.Video
	if err := json.Unmarshal([]byte(`{"id":"v-9","name":"Heron","duration":1200}`), &video); err != nil {
		t.Fatalf("unmarshal video: %v", err)
	}
	rec.RecordVideo(&video)
	rec.RecordUploadURLs(brightcove.UploadURLs{Bucket: "b", ObjectKey: "k1", SecretAccessKey: "s"})
	rec.RecordUpload(UploadRecord{Kind: "video", FileName: "a.mp4", Result: &s3util.Result{Bucket: "b", Key: "k1", Size: 4}})
	rec.RecordUploadURLs(brightcove.UploadURLs{Bucket: "b", ObjectKey: "k2"})
	rec.RecordUpload(UploadRecord{Kind: "text_track", FileName: "en.vtt", Result: &s3util.Result{Bucket: "b", Key: "k2", Size: 2}})
	rec.RecordIngest(&brightcove.IngestJob{ID: "job-9"}, brightcove.IngestOptions{Master: &brightcove.Master{URL: "https://x/k1"}})

	first, err := json.Marshal(rec.Snapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Response
	if err := json.Unmarshal(first, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	second, err := json.Marshal(NewRecorderFrom(decoded).Snapshot())
	if err != nil {
		t.Fatalf("marshal again: %v", err)
	}
	if string(first) != string(second) {
		t.Errorf("round trip changed the response:\n%s\n%s", first, second)
	}
	if !strings.Contains(string(first), `"duration":1200`) {
		t.Errorf("expected full video record to be kept: %s", first)
	}
	if strings.Contains(string(first), `"secret_access_key":"s"`) {
		t.Errorf("expected upload secret to be redacted: %s", first)
	}
	ref, ok := decoded.JobRef()
	if !ok || ref.VideoID != "v-9" || ref.JobID != "job-9" {
		t.Errorf("unexpected job ref %+v", ref)
	}
}
