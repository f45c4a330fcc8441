package presenter

import (
	"math"
	"reflect"
	"testing"

	"github.com/RanjanPM/potato-disease-classification/internal/predict"
)

func TestPresentHealthyIgnoresCase(t *testing.T) {
	for _, label := range []string{"Healthy", "healthy", "HEALTHY"} {
		out := Present(predict.Result{Label: label, Confidence: 0.93})

		if out.ConfidencePercent != 93 {
			t.Fatalf("%q: expected 93%%, got %d", label, out.ConfidencePercent)
		}
		if out.Tier != TierHigh {
			t.Fatalf("%q: expected high tier, got %s", label, out.Tier)
		}
		if out.Icon != IconCheck {
			t.Fatalf("%q: expected check icon, got %s", label, out.Icon)
		}
		if out.Description != "The potato leaf appears to be healthy with no signs of disease." {
			t.Fatalf("%q: unexpected description %q", label, out.Description)
		}
		want := []string{"Continue regular monitoring", "Maintain proper plant spacing", "Ensure adequate nutrition"}
		if !reflect.DeepEqual(out.Recommendations, want) {
			t.Fatalf("%q: unexpected recommendations %v", label, out.Recommendations)
		}
		if out.Label != label {
			t.Fatalf("expected label to be kept verbatim, got %q", out.Label)
		}
	}
}

func TestPresentLateBlightLowConfidence(t *testing.T) {
	out := Present(predict.Result{Label: "Late Blight", Confidence: 0.47})

	if out.ConfidencePercent != 47 {
		t.Fatalf("expected 47%%, got %d", out.ConfidencePercent)
	}
	if out.Tier != TierLow {
		t.Fatalf("expected low tier, got %s", out.Tier)
	}
	if out.Icon != IconAlert {
		t.Fatalf("expected alert icon, got %s", out.Icon)
	}
	want := []string{
		"Remove infected plants immediately",
		"Apply copper-based fungicide",
		"Improve drainage",
		"Consider resistant varieties for future planting",
	}
	if !reflect.DeepEqual(out.Recommendations, want) {
		t.Fatalf("unexpected recommendations %v", out.Recommendations)
	}
}

func TestPresentEarlyBlight(t *testing.T) {
	out := Present(predict.Result{Label: "early BLIGHT", Confidence: 0.7})

	if out.Icon != IconWarning || out.Tier != TierMedium || len(out.Recommendations) != 4 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestPresentUnrecognizedLabel(t *testing.T) {
	out := Present(predict.Result{Label: "Septoria", Confidence: 0.81})

	if out.Icon != IconMagnifier {
		t.Fatalf("expected magnifier icon, got %s", out.Icon)
	}
	if padded := Present(predict.Result{Label: " Healthy ", Confidence: 0.81}); padded.Icon != IconMagnifier {
		t.Fatalf("expected padded label to be unrecognized, got %s", padded.Icon)
	}
	if out.Description != "Classification completed." {
		t.Fatalf("unexpected description %q", out.Description)
	}
	if out.Recommendations == nil || len(out.Recommendations) != 0 {
		t.Fatalf("expected empty non-nil recommendations, got %#v", out.Recommendations)
	}
}

func TestPresentDoesNotShareCatalogSlices(t *testing.T) {
	out := Present(predict.Result{Label: "healthy", Confidence: 1})
	out.Recommendations[0] = "mutated"

	again := Present(predict.Result{Label: "healthy", Confidence: 1})
	if again.Recommendations[0] != "Continue regular monitoring" {
		t.Fatal("catalog was mutated through an outcome")
	}
}

func TestConfidenceTiers(t *testing.T) {
	tests := []struct {
		confidence float64
		percent    int
		tier       Tier
	}{
		{confidence: 1, percent: 100, tier: TierHigh},
		{confidence: 0.8, percent: 80, tier: TierHigh},
		{confidence: 0.7999, percent: 80, tier: TierMedium},
		{confidence: 0.6, percent: 60, tier: TierMedium},
		{confidence: 0.5999, percent: 60, tier: TierLow},
		{confidence: 0.005, percent: 1, tier: TierLow},
		{confidence: 0, percent: 0, tier: TierLow},
		{confidence: math.NaN(), percent: 0, tier: TierLow},
	}

	for _, tt := range tests {
		if got := ConfidencePercent(tt.confidence); got != tt.percent {
			t.Errorf("ConfidencePercent(%v) = %d, want %d", tt.confidence, got, tt.percent)
		}
		if got := TierFor(tt.confidence); got != tt.tier {
			t.Errorf("TierFor(%v) = %s, want %s", tt.confidence, got, tt.tier)
		}
	}
}

func TestTierColorsAndGlyphs(t *testing.T) {
	if TierHigh.Color() != "#4CAF50" || TierMedium.Color() != "#FF9800" || TierLow.Color() != "#F44336" {
		t.Fatal("unexpected tier colors")
	}
	if IconMagnifier.Glyph() != "🔍" || IconCheck.Glyph() != "✅" {
		t.Fatal("unexpected glyphs")
	}
}
