package predict

import "context"

// Image is the payload forwarded to the classification service.
type Image struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Result is the top prediction returned by the classification service.
type Result struct {
	Label      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

// Client exposes the subset of the remote service used by the upload flow.
type Client interface {
	Predict(ctx context.Context, img Image) (Result, error)
}
