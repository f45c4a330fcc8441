package upload

import (
	"errors"

	"github.com/RanjanPM/potato-disease-classification/internal/logging"
	"github.com/RanjanPM/potato-disease-classification/internal/predict"
)

// Kind identifies a user-facing upload failure.
type Kind int

const (
	InvalidFileType Kind = iota + 1
	FileTooLarge
	NoFileSelected
	Timeout
	RemoteValidationRejected
	RemoteServerFault
	UnknownTransportFailure
)

func (k Kind) String() string {
	switch k {
	case InvalidFileType:
		return "invalid_file_type"
	case FileTooLarge:
		return "file_too_large"
	case NoFileSelected:
		return "no_file_selected"
	case Timeout:
		return "timeout"
	case RemoteValidationRejected:
		return "remote_validation_rejected"
	case RemoteServerFault:
		return "remote_server_fault"
	case UnknownTransportFailure:
		return "unknown_transport_failure"
	default:
		return "none"
	}
}

// Remote reports whether the failure was detected after a request was sent.
func (k Kind) Remote() bool {
	return k >= Timeout
}

const (
	msgInvalidFileType = "Please select a valid image file"
	msgFileTooLarge    = "File size must be less than 10MB"
	msgNoFileSelected  = "Please select an image first"
	msgTimeout         = "Request timeout. Please try again."
	msgValidation      = "Invalid image format. Please try a different image."
	msgServerFault     = "Server error. Please check if the API is running on "
	msgUnknown         = "Failed to predict. Please try again."
)

// Error is a recoverable upload failure with the message shown to the user.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

var (
	// ErrSubmissionInFlight is returned by Submit while an earlier submission
	// for the same controller has not resolved. State is left untouched.
	ErrSubmissionInFlight = errors.New("upload: submission already in flight")

	// ErrSuperseded is returned by Submit when the candidate it was issued for
	// was replaced or cleared before the response arrived.
	ErrSuperseded = errors.New("upload: candidate superseded before response arrived")

	// ErrCanceled is returned by Submit when the caller's context was
	// cancelled before the response arrived. The candidate stays staged and
	// no error is recorded.
	ErrCanceled = errors.New("upload: submission cancelled by caller")

	// ErrNoCandidate is returned by Preview when nothing is staged.
	ErrNoCandidate = errors.New("upload: no image selected")
)

func newError(kind Kind) *Error {
	switch kind {
	case InvalidFileType:
		return &Error{Kind: kind, Message: msgInvalidFileType}
	case FileTooLarge:
		return &Error{Kind: kind, Message: msgFileTooLarge}
	case NoFileSelected:
		return &Error{Kind: kind, Message: msgNoFileSelected}
	default:
		return &Error{Kind: kind, Message: msgUnknown}
	}
}

// remoteError maps a failed prediction to the message shown to the user.
// serviceURL is the configured address of the classification service.
func remoteError(err error, requestID, serviceURL string) *Error {
	failure := predict.AsFailure(err)
	err = logging.NewOperationError("upload.submit", requestID, err)
	switch failure.Kind {
	case predict.FailureTimeout:
		return &Error{Kind: Timeout, Message: msgTimeout, Err: err}
	case predict.FailureValidation:
		return &Error{Kind: RemoteValidationRejected, Message: msgValidation, Err: err}
	case predict.FailureServer:
		return &Error{Kind: RemoteServerFault, Message: msgServerFault + serviceURL, Err: err}
	default:
		msg := failure.Detail
		if msg == "" {
			msg = msgUnknown
		}
		return &Error{Kind: UnknownTransportFailure, Message: msg, Err: err}
	}
}
