package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/RanjanPM/potato-disease-classification/internal/logging"
)

const (
	// DefaultTimeout is the ceiling for a single prediction request.
	DefaultTimeout = 30 * time.Second

	predictPath = "/predict"
	formField   = "file"
)

type ClientOpts struct {
	BaseURL string
	Timeout time.Duration
	Logger  *zap.Logger
}

// HTTPClient talks to the classification service over multipart HTTP.
type HTTPClient struct {
	httpClient *resty.Client
	baseURL    string
	timeout    time.Duration
	logger     *zap.Logger
}

func NewClient(opts ClientOpts) *HTTPClient {
	c := HTTPClient{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.logger = c.logger.Named("predict_client")
	c.httpClient = resty.New().
		SetDebug(false).
		SetLogger(c.logger.Sugar()).
		SetBaseURL(c.baseURL).
		SetTimeout(c.timeout).
		SetHeader("Accept", "application/json")

	return &c
}

// BaseURL returns the service address requests are sent to.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// Predict uploads img as the "file" field of a multipart form and decodes the
// top prediction. Every failure is returned as a *Failure.
func (c *HTTPClient) Predict(ctx context.Context, img Image) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	name := img.Name
	if name == "" {
		name = "upload"
	}

	started := time.Now()
	res, err := c.httpClient.R().
		SetContext(ctx).
		SetMultipartField(formField, name, img.MIMEType, bytes.NewReader(img.Data)).
		Post(predictPath)
	if err != nil {
		failure := classifyTransport(err)
		c.logger.Warn("prediction request failed",
			zap.Error(logging.NewOperationError("predict.post", "", err)),
			zap.Stringer("kind", failure.Kind),
			zap.Duration("elapsed", time.Since(started)),
		)
		return Result{}, failure
	}

	if !res.IsSuccess() {
		failure := classifyStatus(res.StatusCode(), res.Body())
		c.logger.Warn("prediction rejected",
			zap.Int("status", res.StatusCode()),
			zap.Stringer("kind", failure.Kind),
			zap.String("detail", failure.Detail),
		)
		return Result{}, failure
	}

	result, err := decodeResult(res.Body())
	if err != nil {
		c.logger.Warn("unusable prediction response", zap.Error(err))
		return Result{}, &Failure{Kind: FailureUnknown, StatusCode: res.StatusCode(), Err: err}
	}

	c.logger.Debug("prediction received",
		zap.String("class", result.Label),
		zap.Float64("confidence", result.Confidence),
		zap.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

func decodeResult(body []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return Result{}, fmt.Errorf("decode prediction: %w", err)
	}
	if strings.TrimSpace(result.Label) == "" {
		return Result{}, errors.New("prediction has no class")
	}
	if math.IsNaN(result.Confidence) || result.Confidence < 0 || result.Confidence > 1 {
		return Result{}, fmt.Errorf("confidence %v outside [0,1]", result.Confidence)
	}
	return result, nil
}
