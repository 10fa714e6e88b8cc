package dedupe

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"strings"
)

var (
	ErrNoSample   = errors.New("dedupe: no candidate sample, call Sample first")
	ErrNoTraining = errors.New("dedupe: no labeled pairs to train on")
)

// Engine is the capability interface over a matching engine. Any conforming
// implementation (statistical classifier, rule engine, ML model) can back the
// interactive workflow without the orchestrator knowing the difference.
type Engine interface {
	// Sample draws up to size candidate pairs from the record table.
	Sample(records map[int]Record, size int)

	// UncertainPairs returns candidate pairs ordered by how informative a
	// label on them would be, most informative first. Returns at least one
	// pair while unlabeled candidates remain.
	UncertainPairs() ([]RecordPair, error)

	// MarkPairs replaces the engine's training state with the accumulated
	// label set and re-fits the model.
	MarkPairs(labels LabelSet)

	// Train re-fits field weights and the match threshold from labels.
	Train() error

	// FieldComparators lists the compared fields in display order.
	FieldComparators() []string

	// DataSample exposes the drawn candidate pairs for job submission.
	DataSample() []RecordPair
}

// Factory builds an engine bound to a set of field definitions.
type Factory func(defs FieldDefs) Engine

type naiveEngine struct {
	fields    []string
	weights   map[string]float64
	threshold float64
	sample    []RecordPair
	labels    LabelSet
	labeled   map[string]bool
	rng       *rand.Rand
}

// NewEngine returns the reference engine: bigram string similarity with
// per-field weights fit from the labeled pairs.
func NewEngine(defs FieldDefs) Engine {
	fields := make([]string, 0, len(defs))
	weights := make(map[string]float64, len(defs))
	for field := range defs {
		fields = append(fields, field)
		weights[field] = 1
	}
	sort.Strings(fields)

	return &naiveEngine{
		fields:    fields,
		weights:   weights,
		threshold: 0.5,
		labeled:   make(map[string]bool),
		rng:       rand.New(rand.NewSource(1)),
	}
}

func (e *naiveEngine) Sample(records map[int]Record, size int) {
	ids := make([]int, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	n := len(ids)
	total := n * (n - 1) / 2

	if total <= size {
		// Small table: take every pair.
		pairs := make([]RecordPair, 0, total)
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				pairs = append(pairs, RecordPair{Left: records[ids[i]], Right: records[ids[j]]})
			}
		}
		e.sample = pairs
		return
	}

	pairs := make([]RecordPair, 0, size)
	seen := make(map[[2]int]bool, size)
	for len(pairs) < size {
		i := e.rng.Intn(n)
		j := e.rng.Intn(n)
		if i == j {
			continue
		}
		if i > j {
			i, j = j, i
		}
		if seen[[2]int{i, j}] {
			continue
		}
		seen[[2]int{i, j}] = true
		pairs = append(pairs, RecordPair{Left: records[ids[i]], Right: records[ids[j]]})
	}
	e.sample = pairs
}

func (e *naiveEngine) UncertainPairs() ([]RecordPair, error) {
	if len(e.sample) == 0 {
		return nil, ErrNoSample
	}

	candidates := make([]RecordPair, 0, len(e.sample))
	for _, pair := range e.sample {
		if !e.labeled[e.pairKey(pair)] {
			candidates = append(candidates, pair)
		}
	}
	if len(candidates) == 0 {
		// Everything labeled; fall back to the full sample so the
		// contract of "at least one pair" holds.
		candidates = e.sample
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		di := math.Abs(scorePair(candidates[i], e.weights) - e.threshold)
		dj := math.Abs(scorePair(candidates[j], e.weights) - e.threshold)
		return di < dj
	})

	if len(candidates) > 10 {
		candidates = candidates[:10]
	}
	return candidates, nil
}

func (e *naiveEngine) MarkPairs(labels LabelSet) {
	e.labels = labels
	for _, pair := range labels.Match {
		e.labeled[e.pairKey(pair)] = true
	}
	for _, pair := range labels.Distinct {
		e.labeled[e.pairKey(pair)] = true
	}
	// Refit is cheap; ignore the no-training case so unsure-only
	// sessions keep working on the default model.
	_ = e.Train()
}

func (e *naiveEngine) Train() error {
	if len(e.labels.Match) == 0 && len(e.labels.Distinct) == 0 {
		return ErrNoTraining
	}

	// Per-field weight: how much the field separates matches from
	// distincts. Floored so no field drops out entirely.
	for _, field := range e.fields {
		sep := e.meanFieldSim(e.labels.Match, field) - e.meanFieldSim(e.labels.Distinct, field)
		if sep < 0.05 {
			sep = 0.05
		}
		e.weights[field] = sep
	}

	matchMean := e.meanScore(e.labels.Match)
	distinctMean := e.meanScore(e.labels.Distinct)
	switch {
	case len(e.labels.Match) == 0:
		e.threshold = distinctMean + 0.2
	case len(e.labels.Distinct) == 0:
		e.threshold = matchMean - 0.2
	default:
		e.threshold = (matchMean + distinctMean) / 2
	}
	e.threshold = clamp(e.threshold, 0.05, 0.95)
	return nil
}

func (e *naiveEngine) FieldComparators() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

func (e *naiveEngine) DataSample() []RecordPair {
	out := make([]RecordPair, len(e.sample))
	copy(out, e.sample)
	return out
}

func (e *naiveEngine) meanFieldSim(pairs []RecordPair, field string) float64 {
	if len(pairs) == 0 {
		return 0
	}
	var total float64
	for _, pair := range pairs {
		total += diceCoefficient(pair.Left[field], pair.Right[field])
	}
	return total / float64(len(pairs))
}

func (e *naiveEngine) meanScore(pairs []RecordPair) float64 {
	if len(pairs) == 0 {
		return 0
	}
	var total float64
	for _, pair := range pairs {
		total += scorePair(pair, e.weights)
	}
	return total / float64(len(pairs))
}

func (e *naiveEngine) pairKey(pair RecordPair) string {
	var b strings.Builder
	for _, field := range e.fields {
		b.WriteString(pair.Left[field])
		b.WriteByte(0x1f)
	}
	b.WriteByte(0x1e)
	for _, field := range e.fields {
		b.WriteString(pair.Right[field])
		b.WriteByte(0x1f)
	}
	return b.String()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
