package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

type sample struct {
	VideoID string   `json:"videoId"`
	Files   []string `json:"files"`
}

func TestWriteRead(t *testing.T) {
	want := sample{VideoID: "v-1", Files: []string{"a.mp4", "b.vtt"}}
	for _, name := range []string{"report.json", "report.json.gz", "report.json.zst", "nested/dir/report.json.gz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			if err := Write(path, want); err != nil {
				t.Fatalf("Write: %v", err)
			}
			var got sample
			if err := Read(path, &got); err != nil {
				t.Fatalf("Read: %v", err)
			}
			if got.VideoID != want.VideoID || len(got.Files) != 2 || got.Files[1] != "b.vtt" {
				t.Errorf("round trip mismatch: %+v", got)
			}
		})
	}
}

func TestGzipReportIsCompressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json.gz")
	if err := Write(path, sample{VideoID: "v-1"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) < 2 || raw[0] != 0x1f || raw[1] != 0x8b {
		t.Fatalf("expected gzip magic, got % x", raw)
	}
	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	if gz.Name != "report.json" {
		t.Errorf("expected gzip name report.json, got %q", gz.Name)
	}
}

func TestReadMissing(t *testing.T) {
	if err := Read(filepath.Join(t.TempDir(), "nope.json"), &sample{}); err == nil {
		t.Error("expected error for missing report")
	}
}
