package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fpang/dynamic-ingest/internal/brightcove"
	"github.com/fpang/dynamic-ingest/internal/s3util"
)

// fakeAPI records every remote call in order.
type fakeAPI struct {
	mu    sync.Mutex
	calls []string

	videoID      string
	createErr    error
	uploadURLErr map[string]error
	ingestErr    error
	statuses     []*brightcove.JobStatus
	statusErr    error

	payload brightcove.IngestOptions
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{videoID: "v-100", uploadURLErr: map[string]error{}}
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeAPI) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeAPI) CreateVideo(ctx context.Context, meta brightcove.VideoMetadata) (*brightcove.Video, error) {
	f.record("create:" + meta.Name)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &brightcove.Video{ID: f.videoID, Name: meta.Name}, nil
}

func (f *fakeAPI) UploadURLs(ctx context.Context, videoID, fileName string) (*brightcove.UploadURLs, error) {
	f.record("upload-urls:" + fileName)
	if err := f.uploadURLErr[fileName]; err != nil {
		return nil, err
	}
	return &brightcove.UploadURLs{
		Bucket:          "ingest-bucket",
		ObjectKey:       videoID + "/" + fileName,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "secret",
		SessionToken:    "session",
		APIRequestURL:   "https://ingest.example.com/" + videoID + "/" + fileName,
	}, nil
}

func (f *fakeAPI) CreateIngestRequest(ctx context.Context, videoID string, opts brightcove.IngestOptions) (*brightcove.IngestJob, error) {
	f.record("ingest:" + videoID)
	f.mu.Lock()
	f.payload = opts.Clone()
	f.mu.Unlock()
	if f.ingestErr != nil {
		return nil, f.ingestErr
	}
	return &brightcove.IngestJob{ID: "job-1"}, nil
}

func (f *fakeAPI) IngestJobStatus(ctx context.Context, videoID, jobID string) (*brightcove.JobStatus, error) {
	f.record("status:" + jobID)
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return nil, errors.New("no more statuses")
	}
	s := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return s, nil
}

type uploadCall struct {
	Key         string
	Path        string
	ContentType string
}

// fakeUploader records uploads and fails for paths in fail.
type fakeUploader struct {
	mu    sync.Mutex
	calls []uploadCall
	fail  map[string]error
}

func (u *fakeUploader) Upload(ctx context.Context, t s3util.Target, path, contentType string) (*s3util.Result, error) {
	u.mu.Lock()
	u.calls = append(u.calls, uploadCall{Key: t.Key, Path: path, ContentType: contentType})
	u.mu.Unlock()
	if err := u.fail[path]; err != nil {
		return nil, err
	}
	return &s3util.Result{Bucket: t.Bucket, Key: t.Key, ContentType: contentType, Size: 10, Parts: 1}, nil
}

func (u *fakeUploader) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.calls)
}

// writeFiles creates small files named names in a temp dir and returns
// their paths in the same order.
func writeFiles(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
		if err := os.WriteFile(paths[i], []byte("data"), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return paths
}
