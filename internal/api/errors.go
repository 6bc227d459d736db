package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/abelbrown/watchfloor/internal/enrich"
)

// codeUnconfigured is the backend error code for a missing AI provider.
const codeUnconfigured = "enrichment_unconfigured"

// StatusError is a non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Code       string // backend error code, if any
	Message    string
	Suggestion string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

// ValidationError is a rejected input, with the backend's explanation.
type ValidationError struct {
	Reason     string
	Suggestion string
}

func (e *ValidationError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (try: %s)", e.Reason, e.Suggestion)
	}
	return e.Reason
}

// unconfiguredError keeps the response details while matching
// enrich.ErrUnconfigured.
type unconfiguredError struct {
	*StatusError
}

func (e unconfiguredError) Unwrap() []error {
	return []error{enrich.ErrUnconfigured, e.StatusError}
}

// errorBody covers the error envelopes the backend produces:
// {"error": "msg"}, {"error": {"code": ..., "message": ...}}, or flat
// {"code", "message", "reason", "suggestion"}.
type errorBody struct {
	Error      json.RawMessage `json:"error"`
	Detail     string          `json:"detail"`
	Code       string          `json:"code"`
	Message    string          `json:"message"`
	Reason     string          `json:"reason"`
	Suggestion string          `json:"suggestion"`
}

type errorDetail struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Reason     string `json:"reason"`
	Suggestion string `json:"suggestion"`
}

func parseErrorBody(body []byte) errorDetail {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return errorDetail{Message: strings.TrimSpace(truncate(string(body), 200))}
	}
	d := errorDetail{Code: eb.Code, Message: eb.Message, Reason: eb.Reason, Suggestion: eb.Suggestion}
	if len(eb.Error) > 0 {
		var s string
		if err := json.Unmarshal(eb.Error, &s); err == nil {
			d.Message = firstNonEmpty(d.Message, s)
		} else {
			var inner errorDetail
			if err := json.Unmarshal(eb.Error, &inner); err == nil {
				d.Code = firstNonEmpty(d.Code, inner.Code)
				d.Message = firstNonEmpty(d.Message, inner.Message)
				d.Reason = firstNonEmpty(d.Reason, inner.Reason)
				d.Suggestion = firstNonEmpty(d.Suggestion, inner.Suggestion)
			}
		}
	}
	d.Message = firstNonEmpty(d.Message, eb.Detail)
	return d
}

func newStatusError(method, path string, status int, body []byte) *StatusError {
	d := parseErrorBody(body)
	return &StatusError{
		Method:     method,
		Path:       path,
		StatusCode: status,
		Code:       d.Code,
		Message:    firstNonEmpty(d.Reason, d.Message),
		Suggestion: d.Suggestion,
	}
}

// classify maps well-known failures onto the errors callers check for.
func classify(e *StatusError) error {
	if e.StatusCode == http.StatusServiceUnavailable || e.Code == codeUnconfigured {
		return unconfiguredError{e}
	}
	return e
}

// asValidation converts a 400/422 StatusError into a ValidationError.
// Other errors are returned unchanged.
func asValidation(err error) error {
	var se *StatusError
	if !errors.As(err, &se) {
		return err
	}
	if se.StatusCode != http.StatusBadRequest && se.StatusCode != http.StatusUnprocessableEntity {
		return err
	}
	return &ValidationError{
		Reason:     firstNonEmpty(se.Message, "rejected by server"),
		Suggestion: se.Suggestion,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
