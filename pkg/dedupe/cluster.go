package dedupe

import (
	"context"
	"errors"
	"sort"
)

// ClusterArgs carries everything a clustering job needs. Paths are resolved
// and loaded by the caller; the clusterer only sees in-memory state.
type ClusterArgs struct {
	FieldDefs    FieldDefs
	Records      map[int]Record
	Labels       LabelSet
	Sample       []RecordPair
	SettingsPath string
}

// Clusterer runs the full, unbounded-cost matching step. It is only ever
// called from background workers, never on the request path.
type Clusterer interface {
	Cluster(ctx context.Context, args ClusterArgs) (*ClusterResult, error)
	ClusterWithSettings(ctx context.Context, records map[int]Record, settings *Settings, recallWeight float64) (*ClusterResult, error)
}

type naiveClusterer struct{}

// NewClusterer returns the reference clusterer matching NewEngine's model.
func NewClusterer() Clusterer {
	return &naiveClusterer{}
}

func (c *naiveClusterer) Cluster(ctx context.Context, args ClusterArgs) (*ClusterResult, error) {
	if len(args.Records) == 0 {
		return nil, errors.New("dedupe: no records to cluster")
	}

	// Refit the model from the session's labels, then score every pair.
	engine := NewEngine(args.FieldDefs).(*naiveEngine)
	engine.labels = args.Labels
	if err := engine.Train(); err != nil && !errors.Is(err, ErrNoTraining) {
		return nil, err
	}

	settings := &Settings{
		FieldDefs: args.FieldDefs,
		Weights:   engine.weights,
		Threshold: engine.threshold,
	}

	result, err := clusterRecords(ctx, args.Records, settings.Weights, settings.Threshold)
	if err != nil {
		return nil, err
	}

	if args.SettingsPath != "" {
		if err := SaveSettings(args.SettingsPath, settings); err != nil {
			return nil, err
		}
		result.SettingsPath = args.SettingsPath
	}
	return result, nil
}

func (c *naiveClusterer) ClusterWithSettings(ctx context.Context, records map[int]Record, settings *Settings, recallWeight float64) (*ClusterResult, error) {
	if len(records) == 0 {
		return nil, errors.New("dedupe: no records to cluster")
	}

	// Higher recall weight trades precision for recall by lowering the
	// acceptance threshold.
	threshold := settings.Threshold
	if recallWeight > 0 {
		threshold = clamp(threshold/(1+recallWeight), 0.05, 0.95)
	}

	result, err := clusterRecords(ctx, records, settings.Weights, threshold)
	if err != nil {
		return nil, err
	}
	result.Threshold = threshold
	return result, nil
}

// clusterRecords scores every record pair and unions those above threshold.
func clusterRecords(ctx context.Context, records map[int]Record, weights map[string]float64, threshold float64) (*ClusterResult, error) {
	ids := make([]int, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	parent := make(map[int]int, len(ids))
	for _, id := range ids {
		parent[id] = id
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}

	type edge struct {
		id    int
		score float64
	}
	edges := make([]edge, 0)
	for i := 0; i < len(ids); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j := i + 1; j < len(ids); j++ {
			score := scorePair(RecordPair{Left: records[ids[i]], Right: records[ids[j]]}, weights)
			if score < threshold {
				continue
			}
			ri, rj := find(ids[i]), find(ids[j])
			if ri != rj {
				parent[rj] = ri
			}
			edges = append(edges, edge{id: ids[i], score: score})
		}
	}

	// Attach edge scores to final roots only after all unions are done.
	edgeScores := make(map[int][]float64)
	for _, e := range edges {
		root := find(e.id)
		edgeScores[root] = append(edgeScores[root], e.score)
	}

	grouped := make(map[int][]int)
	for _, id := range ids {
		root := find(id)
		grouped[root] = append(grouped[root], id)
	}

	clusters := make([]Cluster, 0)
	for root, members := range grouped {
		if len(members) < 2 {
			continue
		}
		sort.Ints(members)
		var confidence float64
		if scores := edgeScores[root]; len(scores) > 0 {
			for _, s := range scores {
				confidence += s
			}
			confidence /= float64(len(scores))
		}
		clusters = append(clusters, Cluster{RecordIDs: members, Confidence: confidence})
	}
	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i].RecordIDs[0] < clusters[j].RecordIDs[0]
	})

	return &ClusterResult{
		Clusters:    clusters,
		RecordCount: len(records),
		Threshold:   threshold,
	}, nil
}
