package brightcove

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/fpang/dynamic-ingest/internal/ingesterr"
	"github.com/fpang/dynamic-ingest/internal/jsonutil"
)

// flexString accepts a JSON string or number. The platform reports error
// codes as either.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// errorEnvelope covers the object-shaped error payloads:
//
//	{"error": "...", "code": 103, "message": "...", "errors": [...]}
//	{"error": {"code": 103, "message": "..."}}
type errorEnvelope struct {
	Error   json.RawMessage `json:"error"`
	Code    flexString      `json:"code"`
	Message string          `json:"message"`
	Errors  []errorDetail   `json:"errors"`
}

type errorDetail struct {
	Error   string     `json:"error"`
	Code    flexString `json:"code"`
	Message string     `json:"message"`
}

// arrayError is the element of the list-shaped payload returned by the
// CMS and Dynamic Ingest APIs: [{"error_code": "...", "message": "..."}].
type arrayError struct {
	ErrorCode flexString `json:"error_code"`
	Message   string     `json:"message"`
}

// remoteError inspects a cleaned response body and returns the API error it
// carries, or nil when the call succeeded. A transient timeout code yields a
// KindTransient error so the caller can retry it.
func remoteError(op string, status int, body []byte) *ingesterr.Error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 {
		switch trimmed[0] {
		case '[':
			var items []arrayError
			if json.Unmarshal(trimmed, &items) == nil && len(items) > 0 && items[0].ErrorCode != "" {
				return apiError(op, status, string(items[0].ErrorCode), items[0].Message, "")
			}
		case '{':
			var env errorEnvelope
			if json.Unmarshal(trimmed, &env) == nil && hasValue(env.Error) {
				return envelopeError(op, status, env)
			}
		}
	}
	if status >= http.StatusBadRequest {
		e := apiError(op, status, strconv.Itoa(status), http.StatusText(status), "")
		if p := jsonutil.Preview(trimmed, 200); p != "" {
			e.RemoteDetail = p
		}
		return e
	}
	return nil
}

func envelopeError(op string, status int, env errorEnvelope) *ingesterr.Error {
	code, msg := string(env.Code), env.Message

	var nested errorDetail
	var text string
	switch {
	case json.Unmarshal(env.Error, &nested) == nil:
		if nested.Code != "" {
			code = string(nested.Code)
		}
		if nested.Message != "" {
			msg = nested.Message
		}
	case json.Unmarshal(env.Error, &text) == nil:
		if msg == "" {
			msg = text
		}
		if code == "" {
			code = text
		}
	}

	var detail string
	if len(env.Errors) > 0 {
		d := env.Errors[0]
		label := d.Error
		if label == "" {
			label = d.Message
		}
		detail = fmt.Sprintf("%s (%s)", label, d.Code)
	}
	return apiError(op, status, code, msg, detail)
}

func apiError(op string, status int, code, msg, detail string) *ingesterr.Error {
	kind := ingesterr.KindAPI
	if code == ingesterr.TransientTimeoutCode {
		kind = ingesterr.KindTransient
	}
	return &ingesterr.Error{
		Kind:          kind,
		Code:          ingesterr.CodeAPIError,
		Op:            op,
		Message:       "API error",
		RemoteCode:    code,
		RemoteMessage: msg,
		RemoteDetail:  detail,
		HTTPStatus:    status,
	}
}

func hasValue(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && !bytes.Equal(t, []byte("null")) && !bytes.Equal(t, []byte(`""`))
}
