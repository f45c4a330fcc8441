// Package preview turns staged image bytes into a data URL the page can show.
package preview

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	"github.com/nfnt/resize"
)

// MaxEdge bounds the longest side of a generated thumbnail, in pixels.
const MaxEdge = 640

// MaxPixels bounds the decoded size of an image considered for a thumbnail.
// Larger images are embedded as-is rather than decoded.
const MaxPixels int64 = 40_000_000

const fallbackMIME = "application/octet-stream"

// Render returns a data URL for the image. Decodable images larger than
// MaxEdge are downscaled; everything else, including bytes no decoder
// understands, is embedded as-is.
func Render(mimeType string, data []byte) string {
	if thumbMIME, thumb, ok := thumbnail(data); ok {
		return DataURL(thumbMIME, thumb)
	}
	return DataURL(mimeType, data)
}

// DataURL encodes data as a base64 data URL.
func DataURL(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = fallbackMIME
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func thumbnail(data []byte) (string, []byte, bool) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || (cfg.Width <= MaxEdge && cfg.Height <= MaxEdge) {
		return "", nil, false
	}
	// the header alone decides how much the decoder allocates
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return "", nil, false
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", nil, false
	}
	small := resize.Thumbnail(MaxEdge, MaxEdge, img, resize.Lanczos3)

	var buf bytes.Buffer
	if format == "jpeg" {
		if err := jpeg.Encode(&buf, small, &jpeg.Options{Quality: 85}); err != nil {
			return "", nil, false
		}
		return "image/jpeg", buf.Bytes(), true
	}
	// png keeps transparency for png and gif sources
	if err := png.Encode(&buf, small); err != nil {
		return "", nil, false
	}
	return "image/png", buf.Bytes(), true
}
