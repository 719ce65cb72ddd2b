// Package jsonutil provides helpers for decoding API response bodies that may
// carry stray control characters, and for building short body previews for
// error messages and logs.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// StripControl removes ASCII and Unicode control characters from body.
// Whitespace that JSON treats as insignificant is removed as well, which is
// harmless outside string literals; inside string literals raw control
// characters are invalid JSON anyway.
func StripControl(body []byte) []byte {
	if bytes.IndexFunc(body, unicode.IsControl) == -1 {
		return body
	}
	out := make([]byte, 0, len(body))
	for len(body) > 0 {
		r, size := utf8.DecodeRune(body)
		if !unicode.IsControl(r) {
			out = append(out, body[:size]...)
		}
		body = body[size:]
	}
	return out
}

// IsEmpty reports whether body carries no JSON value: zero bytes, only
// whitespace, or the literal null.
func IsEmpty(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Decode strips control characters from raw and unmarshals it into T.
func Decode[T any](raw []byte) (T, error) {
	var result T
	clean := StripControl(raw)
	if err := json.Unmarshal(clean, &result); err != nil {
		var zero T
		return zero, fmt.Errorf("invalid JSON: %w (body: %s)", err, Preview(clean, 200))
	}
	return result, nil
}

// DecodeStrict unmarshals raw into v, rejecting fields v does not declare.
func DecodeStrict(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after JSON value")
	}
	return nil
}

// Preview returns at most the first n bytes of body as a string, appending
// "..." if truncated. The cut never splits a UTF-8 sequence.
func Preview(body []byte, n int) string {
	s := strings.TrimSpace(string(body))
	if len(s) <= n {
		return s
	}
	cut := max(n, 0)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
