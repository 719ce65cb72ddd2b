package brightcove

import (
	"encoding/json"
	"time"
)

// VideoMetadata is the body of a CMS API create-video request. Only the
// fields listed here are accepted; unknown fields are rejected on decode.
type VideoMetadata struct {
	Name            string            `json:"name" validate:"required"`
	Description     string            `json:"description,omitempty"`
	LongDescription string            `json:"long_description,omitempty"`
	ReferenceID     string            `json:"reference_id,omitempty"`
	State           string            `json:"state,omitempty" validate:"omitempty,oneof=ACTIVE INACTIVE"`
	Tags            []string          `json:"tags,omitempty"`
	CustomFields    map[string]string `json:"custom_fields,omitempty"`
	Economics       string            `json:"economics,omitempty" validate:"omitempty,oneof=AD_SUPPORTED FREE"`
	Link            *Link             `json:"link,omitempty"`
	Schedule        *Schedule         `json:"schedule,omitempty"`
}

// Link is the related link attached to a video.
type Link struct {
	URL  string `json:"url" validate:"required,url"`
	Text string `json:"text,omitempty"`
}

// Schedule bounds the availability window of a video.
type Schedule struct {
	StartsAt string `json:"starts_at,omitempty"`
	EndsAt   string `json:"ends_at,omitempty"`
}

// Video is the CMS API video record returned by create-video. Raw keeps
// the full record for callers that need fields not modelled here.
type Video struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id,omitempty"`
	Name        string          `json:"name,omitempty"`
	State       string          `json:"state,omitempty"`
	ReferenceID string          `json:"reference_id,omitempty"`
	CreatedAt   string          `json:"created_at,omitempty"`
	Raw         json.RawMessage `json:"-"`
}

// MarshalJSON emits the full record when it is available.
func (v Video) MarshalJSON() ([]byte, error) {
	if len(v.Raw) > 0 {
		return v.Raw, nil
	}
	type plain Video
	return json.Marshal(plain(v))
}

// UnmarshalJSON decodes the modelled fields and keeps the full record in Raw.
func (v *Video) UnmarshalJSON(data []byte) error {
	type plain Video
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*v = Video(p)
	v.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// IngestOptions is the body of a Dynamic Ingest request. The orchestrator
// fills Master, Poster, Thumbnail and TextTracks from upload URLs during a
// push ingest.
type IngestOptions struct {
	Profile       string         `json:"profile,omitempty"`
	CaptureImages *bool          `json:"capture-images,omitempty"`
	Master        *Master        `json:"master,omitempty"`
	Poster        *Image         `json:"poster,omitempty"`
	Thumbnail     *Image         `json:"thumbnail,omitempty"`
	TextTracks    []TextTrackRef `json:"text_tracks,omitempty" validate:"dive"`
	Callbacks     []string       `json:"callbacks,omitempty" validate:"dive,url"`
	Priority      string         `json:"priority,omitempty" validate:"omitempty,oneof=low normal"`
}

// Master references the source video.
type Master struct {
	URL               string `json:"url,omitempty"`
	UseArchivedMaster bool   `json:"use_archived_master,omitempty"`
}

// Image references a poster or thumbnail source.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// TextTrackRef references a caption or subtitle source in the ingest payload.
type TextTrackRef struct {
	URL     string `json:"url"`
	SrcLang string `json:"srclang" validate:"required"`
	Kind    string `json:"kind,omitempty"`
	Label   string `json:"label,omitempty"`
	Default bool   `json:"default,omitempty"`
}

// Clone returns a deep copy so callers can augment the payload without
// touching the request that owns it.
func (o IngestOptions) Clone() IngestOptions {
	c := o
	if o.CaptureImages != nil {
		v := *o.CaptureImages
		c.CaptureImages = &v
	}
	if o.Master != nil {
		m := *o.Master
		c.Master = &m
	}
	if o.Poster != nil {
		p := *o.Poster
		c.Poster = &p
	}
	if o.Thumbnail != nil {
		t := *o.Thumbnail
		c.Thumbnail = &t
	}
	if o.TextTracks != nil {
		c.TextTracks = append([]TextTrackRef(nil), o.TextTracks...)
	}
	if o.Callbacks != nil {
		c.Callbacks = append([]string(nil), o.Callbacks...)
	}
	return c
}

// UploadURLs is the response of the upload-urls endpoint: temporary S3
// credentials scoped to a single object plus the URL to reference the
// uploaded file in the ingest payload.
type UploadURLs struct {
	Bucket          string `json:"bucket"`
	ObjectKey       string `json:"object_key"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	SessionToken    string `json:"session_token"`
	SignedURL       string `json:"signed_url,omitempty"`
	APIRequestURL   string `json:"api_request_url"`
}

// MarshalJSON redacts the secret key and session token.
func (u UploadURLs) MarshalJSON() ([]byte, error) {
	type plain UploadURLs
	p := plain(u)
	if p.SecretAccessKey != "" {
		p.SecretAccessKey = "REDACTED"
	}
	if p.SessionToken != "" {
		p.SessionToken = "REDACTED"
	}
	return json.Marshal(p)
}

// IngestJob is the response of an ingest request.
type IngestJob struct {
	ID string `json:"id"`
}

// Job states reported by the ingest job status endpoint.
const (
	JobStateProcessing = "processing"
	JobStatePublishing = "publishing"
	JobStatePublished  = "published"
	JobStateFinished   = "finished"
	JobStateFailed     = "failed"
)

// JobStatus is the ingest job status record.
type JobStatus struct {
	ID                 string `json:"id"`
	State              string `json:"state"`
	AccountID          string `json:"account_id,omitempty"`
	VideoID            string `json:"video_id,omitempty"`
	ErrorCode          string `json:"error_code,omitempty"`
	ErrorMessage       string `json:"error_message,omitempty"`
	Priority           string `json:"priority,omitempty"`
	SubmittedAt        string `json:"submitted_at,omitempty"`
	StartedAt          string `json:"started_at,omitempty"`
	UpdatedAt          string `json:"updated_at,omitempty"`
	FinishedAt         string `json:"finished_at,omitempty"`
	SubmissionTime     string `json:"submission_time,omitempty"`
	TotalTimeInSeconds int    `json:"total_time_in_seconds,omitempty"`
}

// Terminal reports whether the job will not change state again.
func (s *JobStatus) Terminal() bool {
	return s.State == JobStateFinished || s.State == JobStateFailed
}

// Token is a cached OAuth access token.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Valid reports whether the token can be used at now. A token is expired
// once now reaches ExpiresAt; there is no skew margin.
func (t Token) Valid(now time.Time) bool {
	return t.Value != "" && now.Before(t.ExpiresAt)
}
