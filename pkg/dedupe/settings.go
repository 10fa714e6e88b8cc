package dedupe

import (
	"encoding/json"
	"fmt"
	"os"
)

// Settings is the learned model artifact written next to the uploaded file
// after a clustering run. Threshold adjustment jobs re-score from it without
// redoing the interactive training.
type Settings struct {
	FieldDefs FieldDefs          `json:"field_defs"`
	Weights   map[string]float64 `json:"weights"`
	Threshold float64            `json:"threshold"`
}

func SaveSettings(path string, settings *Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings %s: %w", path, err)
	}
	return nil
}

func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings %s: %w", path, err)
	}
	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}
	return &settings, nil
}
