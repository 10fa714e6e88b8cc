package upload

import (
	"encoding/json"
	"fmt"
	"os"

	"csv-dedupe-be/pkg/dedupe"
)

// SaveTraining persists a session's accumulated labels next to the upload so
// the clustering worker (and any later re-run) can re-fit from them.
func SaveTraining(path string, labels dedupe.LabelSet) error {
	data, err := json.Marshal(labels)
	if err != nil {
		return fmt.Errorf("upload: failed to marshal training labels: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("upload: failed to write training file %s: %w", path, err)
	}
	return nil
}

func LoadTraining(path string) (dedupe.LabelSet, error) {
	var labels dedupe.LabelSet
	data, err := os.ReadFile(path)
	if err != nil {
		return labels, fmt.Errorf("upload: failed to read training file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &labels); err != nil {
		return labels, fmt.Errorf("upload: failed to parse training file %s: %w", path, err)
	}
	return labels, nil
}
