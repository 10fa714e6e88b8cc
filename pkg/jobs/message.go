package jobs

import (
	"encoding/json"

	"csv-dedupe-be/pkg/dedupe"
)

// JobKind tags the unit of work carried by a job message.
type JobKind string

const (
	KindCluster   JobKind = "cluster"
	KindThreshold JobKind = "threshold"
)

// JobMessage is the wire envelope published to the job topic.
type JobMessage struct {
	Key     string          `json:"key"`
	Kind    JobKind         `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// ClusterJobArgs carries everything a full clustering run needs. Only paths
// and the session's in-memory training state cross the boundary; records are
// re-read by the worker.
type ClusterJobArgs struct {
	FieldDefs    dedupe.FieldDefs    `json:"field_defs"`
	TrainingPath string              `json:"training_path"`
	SourcePath   string              `json:"source_path"`
	SourceName   string              `json:"source_name"`
	SettingsPath string              `json:"settings_path"`
	DataSample   []dedupe.RecordPair `json:"data_sample"`
}

// ThresholdJobArgs re-scores a finished run from its settings artifact with a
// different precision/recall trade-off.
type ThresholdJobArgs struct {
	SettingsPath string  `json:"settings_path"`
	FilePath     string  `json:"file_path"`
	Filename     string  `json:"filename"`
	RecallWeight float64 `json:"recall_weight"`
}
