package predict

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// FailureKind is the coarse classification of a failed prediction request.
type FailureKind int

const (
	FailureUnknown FailureKind = iota
	FailureTimeout
	FailureValidation
	FailureServer
)

func (k FailureKind) String() string {
	switch k {
	case FailureTimeout:
		return "timeout"
	case FailureValidation:
		return "validation"
	case FailureServer:
		return "server"
	default:
		return "unknown"
	}
}

// Failure describes why a prediction request did not produce a Result.
// Detail carries the server supplied message, when the error body had one.
type Failure struct {
	Kind       FailureKind
	StatusCode int
	Detail     string
	Err        error
}

func (f *Failure) Error() string {
	msg := "predict: " + f.Kind.String() + " failure"
	if f.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", f.StatusCode)
	}
	if f.Detail != "" {
		msg += ": " + f.Detail
	} else if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *Failure) Unwrap() error { return f.Err }

// AsFailure returns the Failure carried by err, classifying plain transport
// errors on the way. It returns nil for a nil err.
func AsFailure(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return classifyTransport(err)
}

func classifyTransport(err error) *Failure {
	if isTimeout(err) {
		return &Failure{Kind: FailureTimeout, Err: err}
	}
	return &Failure{Kind: FailureUnknown, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func classifyStatus(status int, body []byte) *Failure {
	f := &Failure{StatusCode: status, Err: errors.New(http.StatusText(status))}
	switch {
	case status == http.StatusUnprocessableEntity:
		f.Kind = FailureValidation
	case status >= http.StatusInternalServerError:
		f.Kind = FailureServer
	default:
		f.Kind = FailureUnknown
		f.Detail = errorDetail(body)
	}
	return f
}

// apiError mirrors the error body of the classification service. FastAPI
// sends detail as a string for HTTPException and as a list for request
// validation errors; only the string form is shown to users.
type apiError struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
}

func errorDetail(body []byte) string {
	var payload apiError
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	var detail string
	if len(payload.Detail) > 0 && json.Unmarshal(payload.Detail, &detail) == nil {
		if detail = strings.TrimSpace(detail); detail != "" {
			return detail
		}
	}
	return strings.TrimSpace(payload.Message)
}
