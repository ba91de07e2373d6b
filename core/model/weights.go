package model

import (
	"encoding/json"
	"fmt"
)

// WeightsVersion is written into every exported ModelWeights.
const WeightsVersion = "1"

// ModelWeights is the portable form of a fitted linear model.
type ModelWeights struct {
	ModelType       string             `json:"model_type"`
	Version         string             `json:"version"`
	Coefficients    []float64          `json:"coefficients"`
	Intercept       float64            `json:"intercept"`
	Features        []string           `json:"features,omitempty"`
	Hyperparameters map[string]float64 `json:"hyperparameters,omitempty"`
	IsFitted        bool               `json:"is_fitted"`
}

// ToJSON はModelWeightsをJSON形式にシリアライズ
func (mw *ModelWeights) ToJSON() ([]byte, error) {
	return json.MarshalIndent(mw, "", "  ")
}

// FromJSON はJSON形式からModelWeightsをデシリアライズ
func (mw *ModelWeights) FromJSON(data []byte) error {
	return json.Unmarshal(data, mw)
}

// Validate はModelWeightsの妥当性を検証
func (mw *ModelWeights) Validate() error {
	if mw.ModelType == "" {
		return fmt.Errorf("model_type is required")
	}
	if mw.Version != WeightsVersion {
		return fmt.Errorf("unsupported weights version %q", mw.Version)
	}
	if !mw.IsFitted {
		return fmt.Errorf("weights of an unfitted model cannot be imported")
	}
	if len(mw.Coefficients) == 0 {
		return fmt.Errorf("fitted model must have coefficients")
	}
	if len(mw.Features) > 0 && len(mw.Features) != len(mw.Coefficients) {
		return fmt.Errorf("features (%d) and coefficients (%d) differ in length", len(mw.Features), len(mw.Coefficients))
	}
	return nil
}
