package dto

import "csv-dedupe-be/internal/entity"

type StartSessionResponse struct {
	SessionId string   `json:"session_id"`
	Filename  string   `json:"filename"`
	RowCount  int      `json:"row_count"`
	Fields    []string `json:"fields"`
}

type SelectFieldsRequest struct {
	Fields []string `json:"fields" validate:"required,min=1,dive,required"`
}

type SelectFieldsResponse struct {
	SessionId   string   `json:"session_id"`
	Fields      []string `json:"fields"`
	RecordCount int      `json:"record_count"`
}

// PairField is one field of the pair under review, rendered side by side.
type PairField struct {
	Field string `json:"field"`
	Left  string `json:"left"`
	Right string `json:"right"`
}

type NextPairResponse struct {
	Fields []PairField `json:"fields"`
}

type MarkPairResponse struct {
	Counter   *entity.Counter `json:"counter,omitempty"`
	Submitted bool            `json:"submitted,omitempty"`
	JobKey    string          `json:"job_key,omitempty"`
}
