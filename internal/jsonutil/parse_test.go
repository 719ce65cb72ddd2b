package jsonutil

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestStripControl(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"clean", `{"id":"1"}`, `{"id":"1"}`},
		{"newlines", "{\n\"id\":\r\n\"1\"\t}", `{"id":"1"}`},
		{"embedded in string", "{\"name\":\"a\x01b\"}", `{"name":"ab"}`},
		{"unicode kept", `{"name":"Héron"}`, `{"name":"Héron"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(StripControl([]byte(tt.input)))
			if got != tt.want {
				t.Errorf("StripControl(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsEmpty(t *testing.T) {
	for _, body := range []string{"", "  ", "null", " null\n"} {
		if !IsEmpty([]byte(body)) {
			t.Errorf("IsEmpty(%q) = false, want true", body)
		}
	}
	if IsEmpty([]byte(`{}`)) {
		t.Error("IsEmpty({}) = true, want false")
	}
}

func TestDecode(t *testing.T) {
	type video struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	got, err := Decode[video]([]byte("{\"id\":\"42\",\n\"name\":\"Heron\x0b\"}"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "42" || got.Name != "Heron" {
		t.Errorf("unexpected result: %+v", got)
	}

	_, err = Decode[video]([]byte("not json"))
	if err == nil || !strings.Contains(err.Error(), "not json") {
		t.Errorf("expected error with body preview, got: %v", err)
	}
}

func TestDecodeStrict(t *testing.T) {
	var v struct {
		Profile string `json:"profile"`
	}
	if err := DecodeStrict([]byte(`{"profile":"multi-platform-standard-static"}`), &v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := DecodeStrict([]byte(`{"profile":"x","extra":true}`), &v); err == nil {
		t.Error("expected unknown field to be rejected")
	}
	if err := DecodeStrict([]byte(`{"profile":"x"} {}`), &v); err == nil {
		t.Error("expected trailing data to be rejected")
	}
}

func TestPreview(t *testing.T) {
	tests := []struct {
		input    string
		limit    int
		expected string
	}{
		{"short", 10, "short"},
		{"this is a long string", 10, "this is a ..."},
		{"exact", 5, "exact"},
		{"héllo wörld", 2, "h..."},
		{"日本語のタイトル", 4, "日..."},
	}
	for _, tt := range tests {
		got := Preview([]byte(tt.input), tt.limit)
		if got != tt.expected {
			t.Errorf("Preview(%q, %d) = %q, want %q", tt.input, tt.limit, got, tt.expected)
		}
		if !utf8.ValidString(got) {
			t.Errorf("Preview(%q, %d) returned invalid UTF-8", tt.input, tt.limit)
		}
	}
}
