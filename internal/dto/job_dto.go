package dto

import "encoding/json"

type PollResultResponse struct {
	Ready  bool            `json:"ready"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type AdjustThresholdResponse struct {
	JobKey string `json:"job_key"`
}
