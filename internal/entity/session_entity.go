package entity

import (
	"sync"
	"time"

	"csv-dedupe-be/pkg/dedupe"
	"csv-dedupe-be/pkg/upload"
)

// Counter tallies the user's label decisions. Monotonically non-decreasing
// within a session.
type Counter struct {
	Yes    int `json:"yes"`
	No     int `json:"no"`
	Unsure int `json:"unsure"`
}

// SessionState is one user's workflow progress, keyed by its capability
// token in the session store. The mutex serializes all mutations to one
// session; concurrent label actions must never drop or double count.
type SessionState struct {
	mu sync.Mutex

	Id              string
	LastInteraction time.Time

	File           *upload.File
	SelectedFields []string
	FieldDefs      dedupe.FieldDefs
	Records        map[int]dedupe.Record
	Engine         dedupe.Engine

	CurrentPair *dedupe.RecordPair
	Labels      dedupe.LabelSet
	Counter     Counter

	JobKey string
}

func (s *SessionState) Lock() {
	s.mu.Lock()
}

func (s *SessionState) Unlock() {
	s.mu.Unlock()
}
