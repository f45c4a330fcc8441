// Package presenter maps a classification result to what the page displays.
package presenter

import (
	"math"
	"strings"

	"github.com/RanjanPM/potato-disease-classification/internal/predict"
)

type Icon string

const (
	IconCheck     Icon = "check"
	IconWarning   Icon = "warning"
	IconAlert     Icon = "alert"
	IconMagnifier Icon = "magnifier"
)

// Glyph returns the emoji rendered for the icon.
func (i Icon) Glyph() string {
	switch i {
	case IconCheck:
		return "✅"
	case IconWarning:
		return "⚠️"
	case IconAlert:
		return "🚨"
	default:
		return "🔍"
	}
}

// Tier buckets a confidence score for styling.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// Color returns the CSS color used for the confidence bar and text.
func (t Tier) Color() string {
	switch t {
	case TierHigh:
		return "#4CAF50"
	case TierMedium:
		return "#FF9800"
	default:
		return "#F44336"
	}
}

const Disclaimer = "This is an AI-powered prediction. For serious plant health concerns, " +
	"consult with a professional agricultural expert or plant pathologist."

// Outcome is the read-only view of one prediction.
type Outcome struct {
	Label             string   `json:"label"`
	Icon              Icon     `json:"icon"`
	Description       string   `json:"description"`
	Recommendations   []string `json:"recommendations"`
	ConfidencePercent int      `json:"confidence_percent"`
	Tier              Tier     `json:"tier"`
	Disclaimer        string   `json:"disclaimer"`
}

type guidance struct {
	icon            Icon
	description     string
	recommendations []string
}

var catalog = map[string]guidance{
	"healthy": {
		icon:        IconCheck,
		description: "The potato leaf appears to be healthy with no signs of disease.",
		recommendations: []string{
			"Continue regular monitoring",
			"Maintain proper plant spacing",
			"Ensure adequate nutrition",
		},
	},
	"early blight": {
		icon:        IconWarning,
		description: "Early blight detected. This is a common fungal disease that causes dark spots with concentric rings.",
		recommendations: []string{
			"Remove affected leaves immediately",
			"Apply fungicide treatment",
			"Improve air circulation",
			"Avoid overhead watering",
		},
	},
	"late blight": {
		icon:        IconAlert,
		description: "Late blight detected. This is a serious disease that can cause significant crop damage.",
		recommendations: []string{
			"Remove infected plants immediately",
			"Apply copper-based fungicide",
			"Improve drainage",
			"Consider resistant varieties for future planting",
		},
	},
}

var unrecognized = guidance{
	icon:        IconMagnifier,
	description: "Classification completed.",
}

// Present builds the Outcome for r. Labels are matched case-insensitively but
// otherwise exactly; unknown labels get a generic description and no
// recommendations.
func Present(r predict.Result) Outcome {
	g, ok := catalog[strings.ToLower(r.Label)]
	if !ok {
		g = unrecognized
	}

	recs := make([]string, len(g.recommendations))
	copy(recs, g.recommendations)

	return Outcome{
		Label:             r.Label,
		Icon:              g.icon,
		Description:       g.description,
		Recommendations:   recs,
		ConfidencePercent: ConfidencePercent(r.Confidence),
		Tier:              TierFor(r.Confidence),
		Disclaimer:        Disclaimer,
	}
}

// ConfidencePercent rounds confidence to a whole percentage in 0..100.
func ConfidencePercent(confidence float64) int {
	if math.IsNaN(confidence) {
		return 0
	}
	pct := math.Round(confidence * 100)
	return int(math.Max(0, math.Min(100, pct)))
}

func TierFor(confidence float64) Tier {
	switch {
	case confidence >= 0.8:
		return TierHigh
	case confidence >= 0.6:
		return TierMedium
	default:
		return TierLow
	}
}
