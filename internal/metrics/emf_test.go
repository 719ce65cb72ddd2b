package metrics

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := SetOutput(&buf)
	t.Cleanup(func() { SetOutput(prev) })
	functionName = ""
	return &buf
}

func TestNewAddsFunctionName(t *testing.T) {
	initOnce.Do(func() {})
	functionName = "ingest-lambda"
	t.Cleanup(func() { functionName = "" })

	r := New(DefaultNamespace)
	if r.dimensions["FunctionName"] != "ingest-lambda" {
		t.Errorf("expected FunctionName dimension, got %q", r.dimensions["FunctionName"])
	}
}

func TestFlushOutput(t *testing.T) {
	buf := captureOutput(t)

	rec := New(DefaultNamespace)
	rec.now = func() time.Time { return time.UnixMilli(1700000000000) }
	rec.Dimension("Mode", "new-push").
		Duration("IngestDuration", 1234*time.Millisecond).
		Metric("FilesUploaded", 3, UnitCount).
		Property("videoId", "v-1").
		Flush()

	if !bytes.HasSuffix(buf.Bytes(), []byte("\n")) || bytes.Count(buf.Bytes(), []byte("\n")) != 1 {
		t.Fatalf("expected a single line, got %q", buf.String())
	}

	var doc struct {
		AWS struct {
			Timestamp         int64 `json:"Timestamp"`
			CloudWatchMetrics []struct {
				Namespace  string     `json:"Namespace"`
				Dimensions [][]string `json:"Dimensions"`
				Metrics    []struct {
					Name string `json:"Name"`
					Unit string `json:"Unit"`
				} `json:"Metrics"`
			} `json:"CloudWatchMetrics"`
		} `json:"_aws"`
		Mode           string  `json:"Mode"`
		IngestDuration float64 `json:"IngestDuration"`
		FilesUploaded  float64 `json:"FilesUploaded"`
		VideoID        string  `json:"videoId"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("failed to parse EMF output: %v\n%s", err, buf.String())
	}

	if doc.AWS.Timestamp != 1700000000000 {
		t.Errorf("unexpected timestamp %d", doc.AWS.Timestamp)
	}
	cw := doc.AWS.CloudWatchMetrics[0]
	if cw.Namespace != DefaultNamespace {
		t.Errorf("expected namespace %s, got %s", DefaultNamespace, cw.Namespace)
	}
	if len(cw.Dimensions) != 1 || len(cw.Dimensions[0]) != 1 || cw.Dimensions[0][0] != "Mode" {
		t.Errorf("unexpected dimensions %v", cw.Dimensions)
	}
	if len(cw.Metrics) != 2 || cw.Metrics[0].Name != "FilesUploaded" || cw.Metrics[1].Unit != UnitMilliseconds {
		t.Errorf("expected sorted metric definitions, got %+v", cw.Metrics)
	}
	if doc.Mode != "new-push" || doc.IngestDuration != 1234 || doc.FilesUploaded != 3 || doc.VideoID != "v-1" {
		t.Errorf("unexpected values %+v", doc)
	}
}

func TestFlushEmpty(t *testing.T) {
	buf := captureOutput(t)
	New("Test").Property("id", "x").Flush()
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %s", buf.String())
	}
}

func TestCount(t *testing.T) {
	functionName = ""
	rec := New("Test").Count("IngestFailed")
	if rec.values["IngestFailed"] != 1 {
		t.Errorf("expected IngestFailed=1, got %v", rec.values["IngestFailed"])
	}
	if rec.metrics["IngestFailed"].Unit != UnitCount {
		t.Errorf("expected unit Count, got %s", rec.metrics["IngestFailed"].Unit)
	}
}
