package match

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// GrantWeights defines the relevance weights for grant matching.
// The five components sum to 1.0 in the default configuration.
type GrantWeights struct {
	Industry   float64 `json:"industry"`    // Weight for industry-tag overlap (default: 0.35)
	Location   float64 `json:"location"`    // Weight for location exactness (default: 0.20)
	FundingFit float64 `json:"funding_fit"` // Weight for funding envelope fit (default: 0.20)
	Urgency    float64 `json:"urgency"`     // Weight for deadline actionability (default: 0.15)
	Confidence float64 `json:"confidence"`  // Weight for producer confidence hint (default: 0.10)
}

// NewsWeights defines the relevance weights for news matching.
type NewsWeights struct {
	Sector  float64 `json:"sector"`  // Weight for sector match (default: 0.5)
	Recency float64 `json:"recency"` // Weight for publication recency (default: 0.5)
}

// Weights holds all relevance weight configurations.
type Weights struct {
	Grant GrantWeights `json:"grant"` // Grant matching weights
	News  NewsWeights  `json:"news"`  // News matching weights

	// UrgencyHorizonDays is the deadline distance, in days, at which the
	// urgency component bottoms out at its "just opened" value.
	UrgencyHorizonDays int `json:"urgency_horizon_days"`
}

// CalibrationConfig is the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"` // Config version for future compatibility
	Weights Weights `json:"weights"` // Weight configurations
}

// DefaultWeights returns the default relevance weight configuration.
//
// Grant formula: score = (industry * 0.35) + (location * 0.20) +
// (funding_fit * 0.20) + (urgency * 0.15) + (confidence * 0.10)
// - Industry overlap dominates: it is the strongest intent signal
// - Location and funding fit share the middle tier
// - Urgency rewards actionable deadlines without overpowering fit
// - Producer confidence is a mild quality nudge
//
// News formula: score = (sector * 0.5 + recency * 0.5) damped by staleness.
//
// These defaults are a starting point, not production tuning; deployments
// override them through the calibration file.
func DefaultWeights() *Weights {
	return &Weights{
		Grant: GrantWeights{
			Industry:   0.35,
			Location:   0.20,
			FundingFit: 0.20,
			Urgency:    0.15,
			Confidence: 0.10,
		},
		News: NewsWeights{
			Sector:  0.5,
			Recency: 0.5,
		},
		UrgencyHorizonDays: 180,
	}
}

// LoadCalibration loads relevance weights from a JSON calibration file.
// Partial configurations are merged with defaults for graceful degradation.
// On error, returns default weights so matching still works.
func LoadCalibration(filePath string) (*Weights, error) {
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	merged := MergeCalibration(DefaultWeights(), &config.Weights)
	return merged, nil
}

// MergeCalibration merges override weights over base weights. Only non-zero
// values from the override are applied, so the calibration file may set any
// subset of weights.
func MergeCalibration(base *Weights, override *Weights) *Weights {
	if base == nil {
		base = DefaultWeights()
	}
	merged := *base
	if override == nil {
		return &merged
	}

	if override.Grant.Industry != 0 {
		merged.Grant.Industry = override.Grant.Industry
	}
	if override.Grant.Location != 0 {
		merged.Grant.Location = override.Grant.Location
	}
	if override.Grant.FundingFit != 0 {
		merged.Grant.FundingFit = override.Grant.FundingFit
	}
	if override.Grant.Urgency != 0 {
		merged.Grant.Urgency = override.Grant.Urgency
	}
	if override.Grant.Confidence != 0 {
		merged.Grant.Confidence = override.Grant.Confidence
	}
	if override.News.Sector != 0 {
		merged.News.Sector = override.News.Sector
	}
	if override.News.Recency != 0 {
		merged.News.Recency = override.News.Recency
	}
	if override.UrgencyHorizonDays != 0 {
		merged.UrgencyHorizonDays = override.UrgencyHorizonDays
	}
	return &merged
}
