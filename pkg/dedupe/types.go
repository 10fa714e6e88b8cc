package dedupe

// Record is one normalized row: field name -> cleaned string value.
type Record map[string]string

// RecordPair is a candidate duplicate shown to the user for labeling.
type RecordPair struct {
	Left  Record `json:"left"`
	Right Record `json:"right"`
}

// FieldConfig describes the comparator for one field. Only string
// comparison is supported for now.
type FieldConfig struct {
	Type string `json:"type"`
}

// FieldDefs maps a column name to its comparator configuration.
type FieldDefs map[string]FieldConfig

// NewStringFields builds String-typed definitions for the chosen columns.
func NewStringFields(fields []string) FieldDefs {
	defs := make(FieldDefs, len(fields))
	for _, f := range fields {
		defs[f] = FieldConfig{Type: "String"}
	}
	return defs
}

// LabelSet accumulates the user's training decisions.
type LabelSet struct {
	Match    []RecordPair `json:"match"`
	Distinct []RecordPair `json:"distinct"`
}

// Cluster is one group of records judged to refer to the same entity.
type Cluster struct {
	RecordIDs  []int   `json:"record_ids"`
	Confidence float64 `json:"confidence"`
}

// ClusterResult is what a clustering job produces.
type ClusterResult struct {
	Clusters     []Cluster `json:"clusters"`
	RecordCount  int       `json:"record_count"`
	Threshold    float64   `json:"threshold"`
	SettingsPath string    `json:"settings_path,omitempty"`
}
