package ingest

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/fpang/dynamic-ingest/internal/ingesterr"
)

func TestParseRequestVariants(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		mode Mode
	}{
		{
			name: "new pull",
			doc:  `{"video":{"name":"Heron"},"ingest":{"master":{"url":"https://example.com/a.mp4"},"profile":"multi-platform-standard-static"}}`,
			mode: ModeNewPull,
		},
		{
			name: "new push with tracks",
			doc:  `{"video":{"name":"Heron"},"files":{"video":"/tmp/a.mp4"},"text_tracks":[{"path":"/tmp/en.vtt","srclang":"en"}]}`,
			mode: ModeNewPush,
		},
		{
			name: "existing pull",
			doc:  `{"video_id":"123","ingest":{"master":{"use_archived_master":true}}}`,
			mode: ModeExistingPull,
		},
		{
			name: "existing push",
			doc:  `{"video_id":"123","files":{"poster":"/tmp/p.png"}}`,
			mode: ModeExistingPush,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseRequest([]byte(tt.doc))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if req.Mode() != tt.mode {
				t.Errorf("expected mode %s, got %s", tt.mode, req.Mode())
			}
		})
	}
}

func TestParseRequestFields(t *testing.T) {
	req, err := ParseRequest([]byte(`{
		"video": {"name": "Heron", "tags": ["bird"]},
		"ingest": {"profile": "p", "capture-images": false},
		"files": {"thumbnail": "/t.png", "video": "/v.mp4", "poster": "/p.png"},
		"text_tracks": [
			{"path": "/en.vtt", "srclang": "en", "kind": "captions", "default": true},
			{"path": "/fr.vtt", "srclang": "fr"}
		]
	}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	push, ok := req.(NewPushRequest)
	if !ok {
		t.Fatalf("expected NewPushRequest, got %T", req)
	}
	if push.Video.Name != "Heron" || len(push.Video.Tags) != 1 {
		t.Errorf("unexpected video: %+v", push.Video)
	}
	if push.Ingest.CaptureImages == nil || *push.Ingest.CaptureImages {
		t.Error("expected capture-images=false to be kept")
	}
	wantOrder := []AssetKind{AssetThumbnail, AssetVideo, AssetPoster}
	if len(push.Files) != len(wantOrder) {
		t.Fatalf("expected %d files, got %d", len(wantOrder), len(push.Files))
	}
	for i, k := range wantOrder {
		if push.Files[i].Kind != k {
			t.Errorf("file %d: expected %s, got %s", i, k, push.Files[i].Kind)
		}
	}
	if len(push.TextTracks) != 2 || push.TextTracks[1].SrcLang != "fr" || !push.TextTracks[0].Default {
		t.Errorf("unexpected text tracks: %+v", push.TextTracks)
	}
}

func TestParseRequestErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		code int
	}{
		{"video and video_id", `{"video":{"name":"a"},"video_id":"1"}`, ingesterr.CodeVideoDataAndVideoID},
		{"neither", `{"ingest":{}}`, ingesterr.CodeNoVideoID},
		{"malformed", `{"video":`, ingesterr.CodeInvalidIngestData},
		{"unknown top-level field", `{"video_id":"1","extra":true}`, ingesterr.CodeInvalidIngestData},
		{"unknown ingest field", `{"video_id":"1","ingest":{"profil":"x"}}`, ingesterr.CodeInvalidIngestData},
		{"unknown video field", `{"video":{"name":"a","nme":"b"}}`, ingesterr.CodeInvalidVideoData},
		{"files not an object", `{"video_id":"1","files":["a"]}`, ingesterr.CodeInvalidFilesData},
		{"tracks on pull", `{"video":{"name":"a"},"text_tracks":[{"path":"/a.vtt","srclang":"en"}]}`, ingesterr.CodeInvalidUploadOption},
		{"tracks on existing push", `{"video_id":"1","files":{"video":"/a.mp4"},"text_tracks":[{"path":"/a.vtt","srclang":"en"}]}`, ingesterr.CodeInvalidUploadOption},
		{"tracks malformed", `{"video":{"name":"a"},"files":{"video":"/a.mp4"},"text_tracks":{"path":"/a.vtt"}}`, ingesterr.CodeInvalidTextTracksData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequest([]byte(tt.doc))
			var e *ingesterr.Error
			if !errors.As(err, &e) {
				t.Fatalf("expected *ingesterr.Error, got %v", err)
			}
			if e.Kind != ingesterr.KindValidation {
				t.Errorf("expected validation kind, got %s", e.Kind)
			}
			if e.Code != tt.code {
				t.Errorf("expected code %d, got %d (%v)", tt.code, e.Code, err)
			}
		})
	}
}

func TestParseRequestNullFieldsAreAbsent(t *testing.T) {
	req, err := ParseRequest([]byte(`{"video_id":"9","video":null,"files":null}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := req.(ExistingPullRequest); !ok {
		t.Errorf("expected ExistingPullRequest, got %T", req)
	}
}

func TestFileMapMarshalKeepsOrder(t *testing.T) {
	m := FileMap{{Kind: AssetPoster, Path: "/p.png"}, {Kind: AssetVideo, Path: "/v.mp4"}}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"poster":"/p.png","video":"/v.mp4"}` {
		t.Errorf("unexpected encoding: %s", data)
	}

	var back FileMap
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(back) != 2 || back[0] != m[0] || back[1] != m[1] {
		t.Errorf("expected %+v, got %+v", m, back)
	}
}

func TestWithCallbacks(t *testing.T) {
	orig := NewPushRequest{Files: FileMap{{Kind: AssetVideo, Path: "/v.mp4"}}}
	orig.Ingest.Callbacks = []string{"https://a.example.com"}

	got := WithCallbacks(orig, "https://b.example.com/callback?token=x")
	r, ok := got.(NewPushRequest)
	if !ok {
		t.Fatalf("expected NewPushRequest, got %T", got)
	}
	if len(r.Ingest.Callbacks) != 2 || r.Ingest.Callbacks[1] != "https://b.example.com/callback?token=x" {
		t.Errorf("unexpected callbacks %v", r.Ingest.Callbacks)
	}
	if len(orig.Ingest.Callbacks) != 1 {
		t.Errorf("caller request was modified: %v", orig.Ingest.Callbacks)
	}
	if len(r.Files) != 1 {
		t.Error("files must be kept")
	}

	pull := WithCallbacks(ExistingPullRequest{VideoID: "9"}, "https://c.example.com")
	if cb := pull.Options().Callbacks; len(cb) != 1 || cb[0] != "https://c.example.com" {
		t.Errorf("unexpected callbacks %v", cb)
	}
}
