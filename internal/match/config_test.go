package match

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// TestDefaultWeights verifies the default weight configuration.
func TestDefaultWeights(t *testing.T) {
	w := DefaultWeights()

	if w.Grant.Industry != 0.35 {
		t.Errorf("expected grant industry 0.35, got %f", w.Grant.Industry)
	}
	if w.Grant.Location != 0.20 {
		t.Errorf("expected grant location 0.20, got %f", w.Grant.Location)
	}
	if w.Grant.FundingFit != 0.20 {
		t.Errorf("expected grant funding_fit 0.20, got %f", w.Grant.FundingFit)
	}
	if w.Grant.Urgency != 0.15 {
		t.Errorf("expected grant urgency 0.15, got %f", w.Grant.Urgency)
	}
	if w.Grant.Confidence != 0.10 {
		t.Errorf("expected grant confidence 0.10, got %f", w.Grant.Confidence)
	}

	sum := w.Grant.Industry + w.Grant.Location + w.Grant.FundingFit +
		w.Grant.Urgency + w.Grant.Confidence
	if math.Abs(sum-1.0) > 0.001 {
		t.Errorf("expected grant weights to sum to 1.0, got %f", sum)
	}

	if w.News.Sector != 0.5 {
		t.Errorf("expected news sector 0.5, got %f", w.News.Sector)
	}
	if w.News.Recency != 0.5 {
		t.Errorf("expected news recency 0.5, got %f", w.News.Recency)
	}
	if w.UrgencyHorizonDays != 180 {
		t.Errorf("expected urgency horizon 180 days, got %d", w.UrgencyHorizonDays)
	}
}

// TestLoadCalibration_EmptyPath returns defaults without error.
func TestLoadCalibration_EmptyPath(t *testing.T) {
	w, err := LoadCalibration("")
	if err != nil {
		t.Fatalf("expected no error for empty path, got: %v", err)
	}
	if w.Grant.Industry != DefaultWeights().Grant.Industry {
		t.Error("expected default weights for empty path")
	}
}

// TestLoadCalibration_MissingFile falls back to defaults with an error.
func TestLoadCalibration_MissingFile(t *testing.T) {
	w, err := LoadCalibration("/nonexistent/calibration.json")
	if err == nil {
		t.Error("expected an error for a missing file")
	}
	if w == nil {
		t.Fatal("expected default weights despite the error")
	}
	if w.Grant.Industry != 0.35 {
		t.Errorf("expected default industry weight, got %f", w.Grant.Industry)
	}
}

// TestLoadCalibration_InvalidJSON falls back to defaults with an error.
func TestLoadCalibration_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	w, err := LoadCalibration(path)
	if err == nil {
		t.Error("expected an error for invalid JSON")
	}
	if w == nil || w.Grant.Industry != 0.35 {
		t.Error("expected default weights despite the error")
	}
}

// TestLoadCalibration_PartialOverride verifies that a calibration file may
// override any subset of weights, keeping defaults for the rest.
func TestLoadCalibration_PartialOverride(t *testing.T) {
	cfg := CalibrationConfig{
		Version: "1",
		Weights: Weights{
			Grant: GrantWeights{Industry: 0.5},
			News:  NewsWeights{Recency: 0.7},
		},
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "calibration.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	w, err := LoadCalibration(path)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if w.Grant.Industry != 0.5 {
		t.Errorf("expected overridden industry 0.5, got %f", w.Grant.Industry)
	}
	if w.Grant.Location != 0.20 {
		t.Errorf("expected default location 0.20, got %f", w.Grant.Location)
	}
	if w.News.Recency != 0.7 {
		t.Errorf("expected overridden news recency 0.7, got %f", w.News.Recency)
	}
	if w.News.Sector != 0.5 {
		t.Errorf("expected default news sector 0.5, got %f", w.News.Sector)
	}
	if w.UrgencyHorizonDays != 180 {
		t.Errorf("expected default urgency horizon, got %d", w.UrgencyHorizonDays)
	}
}

// TestMergeCalibration_NilInputs verifies nil handling.
func TestMergeCalibration_NilInputs(t *testing.T) {
	merged := MergeCalibration(nil, nil)
	if merged.Grant.Industry != 0.35 {
		t.Errorf("expected defaults from nil inputs, got %f", merged.Grant.Industry)
	}

	base := DefaultWeights()
	merged = MergeCalibration(base, nil)
	if merged == base {
		t.Error("expected a copy, not the base pointer")
	}
	if merged.Grant.Urgency != base.Grant.Urgency {
		t.Error("expected merged copy to equal base")
	}
}
