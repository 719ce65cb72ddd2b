package ingest

import (
	"encoding/json"
	"sync"

	"github.com/fpang/dynamic-ingest/internal/brightcove"
	"github.com/fpang/dynamic-ingest/internal/s3util"
)

// UploadRecord is the outcome of one physical upload.
type UploadRecord struct {
	Kind     string         `json:"kind"`
	FileName string         `json:"fileName"`
	Result   *s3util.Result `json:"result"`
}

// Response aggregates every sub-call result of one Ingest call.
// UploadURLs[i] and Uploads[i] belong to the i-th processed asset or text
// track; UploadURLs may be one longer when the last upload failed.
type Response struct {
	IngestID   string                    `json:"ingestId,omitempty"`
	VideoID    string                    `json:"videoId,omitempty"`
	Video      *brightcove.Video         `json:"cms,omitempty"`
	UploadURLs []brightcove.UploadURLs   `json:"s3"`
	Uploads    []UploadRecord            `json:"putFiles"`
	Ingest     *brightcove.IngestJob     `json:"di,omitempty"`
	Payload    *brightcove.IngestOptions `json:"ingestPayload,omitempty"`
	Status     *brightcove.JobStatus     `json:"status,omitempty"`
}

// JobRef identifies an ingest job for status calls.
type JobRef struct {
	VideoID string `json:"videoId"`
	JobID   string `json:"jobId"`
}

// JobRef returns the job started by the ingest, if the trigger succeeded.
func (r *Response) JobRef() (JobRef, bool) {
	if r == nil || r.Ingest == nil || r.Ingest.ID == "" {
		return JobRef{}, false
	}
	return JobRef{VideoID: r.VideoID, JobID: r.Ingest.ID}, true
}

// Recorder collects sub-call results for one Ingest call.
type Recorder struct {
	mu   sync.Mutex
	resp Response
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{resp: Response{
		UploadURLs: []brightcove.UploadURLs{},
		Uploads:    []UploadRecord{},
	}}
}

// NewRecorderFrom seeds a recorder with a previously captured response.
func NewRecorderFrom(resp Response) *Recorder {
	r := NewRecorder()
	r.resp = copyResponse(resp)
	return r
}

// RecordVideo stores the create-video result.
func (r *Recorder) RecordVideo(v *brightcove.Video) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resp.Video = v
	if v != nil {
		r.resp.VideoID = v.ID
	}
}

// RecordVideoID stores the id of the video being ingested into.
func (r *Recorder) RecordVideoID(id string) {
	r.mu.Lock()
	r.resp.VideoID = id
	r.mu.Unlock()
}

// RecordUploadURLs appends an upload-urls result.
func (r *Recorder) RecordUploadURLs(u brightcove.UploadURLs) {
	r.mu.Lock()
	r.resp.UploadURLs = append(r.resp.UploadURLs, u)
	r.mu.Unlock()
}

// RecordUpload appends a physical upload result.
func (r *Recorder) RecordUpload(u UploadRecord) {
	r.mu.Lock()
	r.resp.Uploads = append(r.resp.Uploads, u)
	r.mu.Unlock()
}

// RecordIngest stores the ingest-trigger result and the payload it was sent.
func (r *Recorder) RecordIngest(job *brightcove.IngestJob, payload brightcove.IngestOptions) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resp.Ingest = job
	p := payload.Clone()
	r.resp.Payload = &p
}

// RecordStatus stores a status-poll result.
func (r *Recorder) RecordStatus(s *brightcove.JobStatus) {
	r.mu.Lock()
	r.resp.Status = s
	r.mu.Unlock()
}

// Snapshot returns a copy of everything recorded so far.
func (r *Recorder) Snapshot() Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyResponse(r.resp)
}

func copyResponse(in Response) Response {
	out := in
	out.UploadURLs = append([]brightcove.UploadURLs{}, in.UploadURLs...)
	out.Uploads = make([]UploadRecord, len(in.Uploads))
	for i, u := range in.Uploads {
		out.Uploads[i] = u
		if u.Result != nil {
			res := *u.Result
			out.Uploads[i].Result = &res
		}
	}
	if in.Video != nil {
		v := *in.Video
		v.Raw = append(json.RawMessage(nil), in.Video.Raw...)
		out.Video = &v
	}
	if in.Ingest != nil {
		j := *in.Ingest
		out.Ingest = &j
	}
	if in.Payload != nil {
		p := in.Payload.Clone()
		out.Payload = &p
	}
	if in.Status != nil {
		s := *in.Status
		out.Status = &s
	}
	return out
}
