package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/fpang/dynamic-ingest/internal/brightcove"
	"github.com/fpang/dynamic-ingest/internal/ingesterr"
	"github.com/fpang/dynamic-ingest/internal/jsonutil"
)

// Mode names the request variant.
type Mode string

const (
	ModeNewPull      Mode = "new-pull"
	ModeNewPush      Mode = "new-push"
	ModeExistingPull Mode = "existing-pull"
	ModeExistingPush Mode = "existing-push"
)

// Request is one of NewPullRequest, NewPushRequest, ExistingPullRequest or
// ExistingPushRequest.
type Request interface {
	Mode() Mode
	// Options returns the caller-supplied ingest options.
	Options() brightcove.IngestOptions
	sealed()
}

// NewPullRequest creates a video and ingests media already reachable by URL.
type NewPullRequest struct {
	Video  brightcove.VideoMetadata
	Ingest brightcove.IngestOptions
}

// NewPushRequest creates a video and ingests local files.
type NewPushRequest struct {
	Video      brightcove.VideoMetadata
	Ingest     brightcove.IngestOptions
	Files      FileMap
	TextTracks []TextTrack
}

// ExistingPullRequest replaces or retranscodes an existing video from URLs.
type ExistingPullRequest struct {
	VideoID string
	Ingest  brightcove.IngestOptions
}

// ExistingPushRequest replaces the sources of an existing video with local files.
type ExistingPushRequest struct {
	VideoID string
	Ingest  brightcove.IngestOptions
	Files   FileMap
}

func (NewPullRequest) Mode() Mode      { return ModeNewPull }
func (NewPushRequest) Mode() Mode      { return ModeNewPush }
func (ExistingPullRequest) Mode() Mode { return ModeExistingPull }
func (ExistingPushRequest) Mode() Mode { return ModeExistingPush }

func (r NewPullRequest) Options() brightcove.IngestOptions      { return r.Ingest }
func (r NewPushRequest) Options() brightcove.IngestOptions      { return r.Ingest }
func (r ExistingPullRequest) Options() brightcove.IngestOptions { return r.Ingest }
func (r ExistingPushRequest) Options() brightcove.IngestOptions { return r.Ingest }

// WithCallbacks returns req with urls appended to its ingest callbacks.
// The caller's options are not modified.
func WithCallbacks(req Request, urls ...string) Request {
	if len(urls) == 0 {
		return req
	}
	add := func(o brightcove.IngestOptions) brightcove.IngestOptions {
		o = o.Clone()
		o.Callbacks = append(o.Callbacks, urls...)
		return o
	}
	switch r := req.(type) {
	case NewPullRequest:
		r.Ingest = add(r.Ingest)
		return r
	case NewPushRequest:
		r.Ingest = add(r.Ingest)
		return r
	case ExistingPullRequest:
		r.Ingest = add(r.Ingest)
		return r
	case ExistingPushRequest:
		r.Ingest = add(r.Ingest)
		return r
	}
	return req
}

func (NewPullRequest) sealed()      {}
func (NewPushRequest) sealed()      {}
func (ExistingPullRequest) sealed() {}
func (ExistingPushRequest) sealed() {}

// AssetKind is a source file role in a push ingest.
type AssetKind string

const (
	AssetVideo     AssetKind = "video"
	AssetPoster    AssetKind = "poster"
	AssetThumbnail AssetKind = "thumbnail"
)

// Asset is one entry of a FileMap.
type Asset struct {
	Kind AssetKind `json:"kind" validate:"required"`
	Path string    `json:"path" validate:"required"`
}

// FileMap maps asset kinds to local paths. It keeps the declared order,
// which is the order assets are uploaded and recorded in.
type FileMap []Asset

// UnmarshalJSON decodes a JSON object {"video": "/path", ...} keeping key order.
func (m *FileMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*m = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("files: expected object, got %v", tok)
	}
	var out FileMap
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		var path string
		if err := dec.Decode(&path); err != nil {
			return fmt.Errorf("files.%v: %w", keyTok, err)
		}
		out = append(out, Asset{Kind: AssetKind(keyTok.(string)), Path: path})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = out
	return nil
}

// MarshalJSON encodes the map as a JSON object in declared order.
func (m FileMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, a := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(string(a.Kind))
		v, _ := json.Marshal(a.Path)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// TextTrack is a local caption or subtitle file to upload.
type TextTrack struct {
	Path    string `json:"path" validate:"required"`
	SrcLang string `json:"srclang" validate:"required"`
	Kind    string `json:"kind,omitempty" validate:"omitempty,oneof=captions subtitles descriptions chapters metadata"`
	Label   string `json:"label,omitempty"`
	Default bool   `json:"default,omitempty"`
}

// wireRequest is the JSON request document accepted by ParseRequest.
type wireRequest struct {
	VideoID    string          `json:"video_id"`
	Video      json.RawMessage `json:"video"`
	Ingest     json.RawMessage `json:"ingest"`
	Files      json.RawMessage `json:"files"`
	TextTracks json.RawMessage `json:"text_tracks"`
}

// ParseRequest decodes a request document and selects its variant:
//
//	{"video": {...}, "ingest": {...}}                          new pull
//	{"video": {...}, "ingest": {...}, "files": {...},
//	 "text_tracks": [...]}                                     new push
//	{"video_id": "...", "ingest": {...}}                       existing pull
//	{"video_id": "...", "ingest": {...}, "files": {...}}       existing push
//
// Unknown fields are rejected at every level.
func ParseRequest(data []byte) (Request, error) {
	var w wireRequest
	if err := jsonutil.DecodeStrict(data, &w); err != nil {
		e := ingesterr.Validation(ingesterr.CodeInvalidIngestData, "invalid request document")
		e.Err = err
		return nil, e
	}

	hasVideo := present(w.Video)
	switch {
	case hasVideo && w.VideoID != "":
		return nil, ingesterr.Validation(ingesterr.CodeVideoDataAndVideoID, "video metadata and video_id are mutually exclusive")
	case !hasVideo && w.VideoID == "":
		return nil, ingesterr.Validation(ingesterr.CodeNoVideoID, "video_id is required when no video metadata is given")
	}

	var opts brightcove.IngestOptions
	if present(w.Ingest) {
		if err := jsonutil.DecodeStrict(w.Ingest, &opts); err != nil {
			return nil, decodeError(ingesterr.CodeInvalidIngestData, "ingest", err)
		}
	}

	var files FileMap
	push := present(w.Files)
	if push {
		if err := json.Unmarshal(w.Files, &files); err != nil {
			return nil, decodeError(ingesterr.CodeInvalidFilesData, "files", err)
		}
	}

	var tracks []TextTrack
	if present(w.TextTracks) {
		if !hasVideo || !push {
			return nil, ingesterr.Validation(ingesterr.CodeInvalidUploadOption, "text_tracks are only supported when pushing files for a new video")
		}
		if err := jsonutil.DecodeStrict(w.TextTracks, &tracks); err != nil {
			return nil, decodeError(ingesterr.CodeInvalidTextTracksData, "text_tracks", err)
		}
	}

	if !hasVideo {
		if push {
			return ExistingPushRequest{VideoID: w.VideoID, Ingest: opts, Files: files}, nil
		}
		return ExistingPullRequest{VideoID: w.VideoID, Ingest: opts}, nil
	}

	var meta brightcove.VideoMetadata
	if err := jsonutil.DecodeStrict(w.Video, &meta); err != nil {
		return nil, decodeError(ingesterr.CodeInvalidVideoData, "video", err)
	}
	if push {
		return NewPushRequest{Video: meta, Ingest: opts, Files: files, TextTracks: tracks}, nil
	}
	return NewPullRequest{Video: meta, Ingest: opts}, nil
}

func decodeError(code int, field string, err error) *ingesterr.Error {
	e := ingesterr.Validation(code, "invalid %s data", field)
	e.Err = err
	return e
}

func present(raw json.RawMessage) bool {
	return !jsonutil.IsEmpty(raw)
}
