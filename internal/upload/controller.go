// Package upload stages a single candidate image, submits it to the
// classification service and tracks the resulting workflow state.
package upload

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RanjanPM/potato-disease-classification/internal/logging"
	"github.com/RanjanPM/potato-disease-classification/internal/predict"
	"github.com/RanjanPM/potato-disease-classification/internal/preview"
)

const (
	// MaxImageSize is the largest accepted candidate, in bytes (10 MiB).
	MaxImageSize int64 = 10 * 1024 * 1024

	// SubmitTimeout is the absolute ceiling for one submission.
	SubmitTimeout = 30 * time.Second
)

// State is the visible workflow state of a Controller.
type State int

const (
	StateIdle State = iota
	StateImageSelected
	StateSubmitting
	StateError
)

func (s State) String() string {
	switch s {
	case StateImageSelected:
		return "image_selected"
	case StateSubmitting:
		return "submitting"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

// File is a candidate image normalized from whichever surface acquired it.
type File struct {
	Name     string
	MIMEType string
	Size     int64
	Data     []byte
}

// Listener receives result lifecycle notifications. Calls are made while the
// controller holds its lock, so implementations must not call back into it.
type Listener interface {
	// PredictionReady delivers the result of the current candidate's submission.
	PredictionReady(result predict.Result)
	// ResultInvalidated tells the consumer to drop any result it is showing.
	ResultInvalidated()
}

type nopListener struct{}

func (nopListener) PredictionReady(predict.Result) {}
func (nopListener) ResultInvalidated()             {}

type candidate struct {
	id          string
	file        File
	preview     string
	previewDone chan struct{}
}

type submission struct {
	requestID   string
	candidateID string
	cancel      context.CancelFunc
}

// Options configures a Controller.
type Options struct {
	Predictor predict.Client
	Listener  Listener
	// ServiceURL is quoted to the user when the service reports a fault.
	ServiceURL string
	Logger     *zap.Logger
	// Timeout overrides SubmitTimeout.
	Timeout time.Duration
	// RenderPreview overrides preview.Render.
	RenderPreview func(mimeType string, data []byte) string
}

// Controller owns one candidate image and the state machine around it.
//
// Invariants, guarded by mu:
//   - state == StateSubmitting iff inflight != nil, and then candidate != nil
//     with candidate.id == inflight.candidateID.
//   - state == StateImageSelected implies candidate != nil.
//   - state == StateError iff err != nil.
//   - state == StateIdle implies candidate == nil.
type Controller struct {
	mu        sync.Mutex
	state     State
	candidate *candidate
	err       *Error
	inflight  *submission

	predictor     predict.Client
	listener      Listener
	serviceURL    string
	timeout       time.Duration
	renderPreview func(string, []byte) string
	logger        *zap.Logger
}

func NewController(opts Options) *Controller {
	c := &Controller{
		predictor:     opts.Predictor,
		listener:      opts.Listener,
		serviceURL:    opts.ServiceURL,
		timeout:       opts.Timeout,
		renderPreview: opts.RenderPreview,
		logger:        opts.Logger,
	}
	if c.listener == nil {
		c.listener = nopListener{}
	}
	if c.timeout <= 0 {
		c.timeout = SubmitTimeout
	}
	if c.renderPreview == nil {
		c.renderPreview = preview.Render
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.logger = c.logger.Named("upload_controller")
	return c
}

// SelectImage stages f as the candidate. An invalid file moves the controller
// to StateError and leaves the previous candidate in place. A valid file
// replaces the candidate, supersedes any outstanding submission and starts
// preview generation in the background.
func (c *Controller) SelectImage(f *File) error {
	if verr := validate(f); verr != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.fail(verr)
		c.logger.Info("image rejected", zap.Stringer("kind", verr.Kind))
		return verr
	}

	cand := &candidate{
		id:          uuid.NewString(),
		file:        *f,
		previewDone: make(chan struct{}),
	}

	c.mu.Lock()
	c.supersede()
	c.candidate = cand
	c.err = nil
	c.state = StateImageSelected
	c.listener.ResultInvalidated()
	c.mu.Unlock()

	c.logger.Debug("image selected",
		zap.String("candidate_id", cand.id),
		zap.String("mime_type", f.MIMEType),
		zap.Int64("size", f.Size),
	)

	go c.buildPreview(cand)
	return nil
}

func validate(f *File) *Error {
	if f == nil || !strings.HasPrefix(f.MIMEType, "image/") {
		return newError(InvalidFileType)
	}
	if f.Size > MaxImageSize || int64(len(f.Data)) > MaxImageSize {
		return newError(FileTooLarge)
	}
	return nil
}

func (c *Controller) buildPreview(cand *candidate) {
	url := c.renderPreview(cand.file.MIMEType, cand.file.Data)

	c.mu.Lock()
	cand.preview = url
	c.mu.Unlock()
	close(cand.previewDone)
}

// Submit sends the staged candidate to the classification service and waits
// for the single outcome, bounded by ctx and the submission timeout.
//
// Without a candidate it records NoFileSelected and makes no request. If the
// candidate is replaced or cleared while the request is outstanding, the
// response is dropped and ErrSuperseded returned without touching state. If
// ctx is cancelled the controller returns to StateImageSelected and Submit
// returns ErrCanceled.
func (c *Controller) Submit(ctx context.Context) (predict.Result, error) {
	c.mu.Lock()
	if c.candidate == nil {
		verr := newError(NoFileSelected)
		c.fail(verr)
		c.mu.Unlock()
		return predict.Result{}, verr
	}
	if c.inflight != nil {
		c.mu.Unlock()
		return predict.Result{}, ErrSubmissionInFlight
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	sub := &submission{
		requestID:   uuid.NewString(),
		candidateID: c.candidate.id,
		cancel:      cancel,
	}
	img := predict.Image{
		Name:     c.candidate.file.Name,
		MIMEType: c.candidate.file.MIMEType,
		Data:     c.candidate.file.Data,
	}
	c.inflight = sub
	c.state = StateSubmitting
	c.err = nil
	c.listener.ResultInvalidated()
	c.mu.Unlock()

	opLogger := logging.WithOperation(c.logger, "upload.submit", sub.requestID)
	opLogger.Info("submitting image", zap.String("candidate_id", sub.candidateID), zap.Int("size", len(img.Data)))
	started := time.Now()

	result, err := c.predictor.Predict(reqCtx, img)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inflight != sub {
		opLogger.Info("discarding response for superseded candidate", zap.Duration("elapsed", time.Since(started)))
		return predict.Result{}, ErrSuperseded
	}
	c.inflight = nil

	if err != nil && errors.Is(ctx.Err(), context.Canceled) {
		// the caller went away; the service did not fail
		c.state = StateImageSelected
		opLogger.Info("submission abandoned by caller", zap.Duration("elapsed", time.Since(started)))
		return predict.Result{}, ErrCanceled
	}

	if err != nil {
		uerr := remoteError(err, sub.requestID, c.serviceURL)
		c.err = uerr
		c.state = StateError
		opLogger.Warn("prediction failed",
			zap.Error(err),
			zap.Stringer("kind", uerr.Kind),
			zap.Duration("elapsed", time.Since(started)),
		)
		return predict.Result{}, uerr
	}

	c.state = StateImageSelected
	c.listener.PredictionReady(result)
	opLogger.Info("prediction delivered",
		zap.String("class", result.Label),
		zap.Float64("confidence", result.Confidence),
		zap.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

// Clear drops the candidate, its preview and any error, cancels an
// outstanding submission and returns to StateIdle.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.supersede()
	c.candidate = nil
	c.err = nil
	c.state = StateIdle
	c.listener.ResultInvalidated()
}

// fail records err as the single visible error. Any outstanding submission
// is superseded so its response cannot replace err. Callers hold mu.
func (c *Controller) fail(err *Error) {
	c.supersede()
	c.err = err
	c.state = StateError
	c.listener.ResultInvalidated()
}

// supersede cancels the outstanding submission, if any. Callers hold mu.
func (c *Controller) supersede() {
	if c.inflight == nil {
		return
	}
	c.logger.Debug("superseding submission", zap.String("request_id", c.inflight.requestID))
	c.inflight.cancel()
	c.inflight = nil
}

// Preview waits for the current candidate's preview data URL.
func (c *Controller) Preview(ctx context.Context) (string, error) {
	c.mu.Lock()
	cand := c.candidate
	c.mu.Unlock()
	if cand == nil {
		return "", ErrNoCandidate
	}

	select {
	case <-cand.previewDone:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return cand.preview, nil
}

// ImageInfo describes the staged candidate.
type ImageInfo struct {
	Name     string
	MIMEType string
	Size     int64
}

// View is a point-in-time copy of the controller's visible state.
type View struct {
	State State
	// Image is nil when nothing is staged.
	Image *ImageInfo
	// Preview is empty until the candidate's preview is ready.
	Preview string
	Error   *Error
}

func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{State: c.state}
	if c.candidate != nil {
		v.Image = &ImageInfo{
			Name:     c.candidate.file.Name,
			MIMEType: c.candidate.file.MIMEType,
			Size:     c.candidate.file.Size,
		}
		v.Preview = c.candidate.preview
	}
	if c.err != nil {
		errCopy := *c.err
		v.Error = &errCopy
	}
	return v
}
