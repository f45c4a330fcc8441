package logging

import (
	"errors"

	"go.uber.org/zap"
)

// OperationError ties a failure to the workflow step that hit it and, for
// submissions, the request id the remote call was logged under.
type OperationError struct {
	Operation string
	RequestID string
	Err       error
}

func (e *OperationError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	prefix := e.Operation
	if e.RequestID != "" {
		prefix += " [" + e.RequestID + "]"
	}
	return prefix + ": " + e.Err.Error()
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewOperationError records operation and requestID on err. A nil err stays nil.
func NewOperationError(operation, requestID string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Operation: operation, RequestID: requestID, Err: err}
}

// ErrorFields describes err for a log entry. When err carries an
// OperationError its operation and request id become separate fields, so a
// failure reported by a handler can be matched to the submission log lines.
func ErrorFields(err error) []zap.Field {
	fields := []zap.Field{zap.Error(err)}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		fields = append(fields, zap.String("operation", opErr.Operation))
		if opErr.RequestID != "" {
			fields = append(fields, zap.String("request_id", opErr.RequestID))
		}
	}
	return fields
}
