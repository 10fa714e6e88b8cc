package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"csv-dedupe-be/internal/dto"
	"csv-dedupe-be/internal/repository/memory"
	"csv-dedupe-be/pkg/dedupe"
	"csv-dedupe-be/pkg/jobs"
	"csv-dedupe-be/pkg/upload"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const smallCSV = "name,city\nRobert Smith,Chicago\nBob Smith,Chicago\nJane Doe,Evanston\n"

const dupeCSV = `name,city
robert smith,chicago
bob smith,chicago
jane doe,evanston
jayne doe,evanston
alice jones,skokie
`

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}
func (nopLogger) Sync() error                                  { return nil }

type testStack struct {
	service  IDedupeSessionService
	worker   IWorkerService
	sessions *memory.SessionRepository
	gateway  *jobs.Gateway
	dir      string
}

func newTestStack(t *testing.T, startWorker bool) *testStack {
	t.Helper()

	dir := t.TempDir()
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	gateway := jobs.NewGateway(pubSub, "TEST_DEDUPE_JOBS", jobs.NewMemoryResultStore(), time.Hour)
	sessions := memory.NewSessionRepository(time.Minute)
	telemetry := NewTelemetryService(nil, nopLogger{})

	worker := NewWorkerService(pubSub, "TEST_DEDUPE_JOBS", gateway, dedupe.NewClusterer(), nil, nopLogger{})
	if startWorker {
		require.NoError(t, worker.Consume(context.Background()))
	}

	svc := NewDedupeSessionService(
		sessions, gateway, dedupe.NewEngine, telemetry, nopLogger{},
		dir, 1024*1024, 150000,
	)

	return &testStack{
		service:  svc,
		worker:   worker,
		sessions: sessions,
		gateway:  gateway,
		dir:      dir,
	}
}

func startLabelingSession(t *testing.T, stack *testStack, csv string, fields []string) string {
	t.Helper()
	ctx := context.Background()

	started, err := stack.service.StartSession(ctx, "people.csv", strings.NewReader(csv))
	require.NoError(t, err)

	_, err = stack.service.SelectFields(ctx, started.SessionId, fields)
	require.NoError(t, err)

	return started.SessionId
}

func TestStartSessionRejectsFileType(t *testing.T) {
	stack := newTestStack(t, false)

	_, err := stack.service.StartSession(context.Background(), "people.txt", strings.NewReader(smallCSV))
	assert.ErrorIs(t, err, ErrInvalidFileType)
}

func TestStartSessionBuildsState(t *testing.T) {
	stack := newTestStack(t, false)

	res, err := stack.service.StartSession(context.Background(), "people.csv", strings.NewReader(smallCSV))
	require.NoError(t, err)

	assert.NotEmpty(t, res.SessionId)
	assert.Equal(t, 3, res.RowCount)
	assert.Equal(t, []string{"name", "city"}, res.Fields)

	_, found := stack.sessions.Get(res.SessionId)
	assert.True(t, found)
}

func TestSelectFieldsGuards(t *testing.T) {
	stack := newTestStack(t, false)
	ctx := context.Background()

	_, err := stack.service.SelectFields(ctx, "missing", []string{"name"})
	assert.ErrorIs(t, err, ErrNoSession)

	started, err := stack.service.StartSession(ctx, "people.csv", strings.NewReader(smallCSV))
	require.NoError(t, err)

	_, err = stack.service.SelectFields(ctx, started.SessionId, nil)
	assert.ErrorIs(t, err, ErrNoFieldsSelected)
}

func TestSelectFieldsBuildsRecordTable(t *testing.T) {
	stack := newTestStack(t, false)
	ctx := context.Background()

	started, err := stack.service.StartSession(ctx, "people.csv", strings.NewReader(smallCSV))
	require.NoError(t, err)

	res, err := stack.service.SelectFields(ctx, started.SessionId, []string{"name"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.RecordCount)

	state, found := stack.sessions.Get(started.SessionId)
	require.True(t, found)
	assert.Len(t, state.Records, 3)
	assert.NotNil(t, state.Engine)
}

func TestNextPairDrawsFromUploadedRows(t *testing.T) {
	stack := newTestStack(t, false)
	sessionID := startLabelingSession(t, stack, smallCSV, []string{"name"})

	pair, err := stack.service.NextPair(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, pair.Fields, 1)

	names := []string{"robert smith", "bob smith", "jane doe"}
	assert.Equal(t, "name", pair.Fields[0].Field)
	assert.Contains(t, names, pair.Fields[0].Left)
	assert.Contains(t, names, pair.Fields[0].Right)
	assert.NotEqual(t, pair.Fields[0].Left, pair.Fields[0].Right)
}

func TestNextPairRequiresSession(t *testing.T) {
	stack := newTestStack(t, false)

	_, err := stack.service.NextPair(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestMarkPairWithoutFetchFails(t *testing.T) {
	stack := newTestStack(t, false)
	sessionID := startLabelingSession(t, stack, smallCSV, []string{"name"})
	ctx := context.Background()

	_, err := stack.service.MarkPair(ctx, sessionID, "yes")
	assert.ErrorIs(t, err, ErrNoCurrentPair)
	_, err = stack.service.MarkPair(ctx, sessionID, "no")
	assert.ErrorIs(t, err, ErrNoCurrentPair)

	// Counters are untouched by the rejected actions.
	state, found := stack.sessions.Get(sessionID)
	require.True(t, found)
	assert.Zero(t, state.Counter.Yes)
	assert.Zero(t, state.Counter.No)
}

func TestMarkPairUnknownAction(t *testing.T) {
	stack := newTestStack(t, false)
	sessionID := startLabelingSession(t, stack, smallCSV, []string{"name"})

	_, err := stack.service.MarkPair(context.Background(), sessionID, "maybe")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestLabelAccounting(t *testing.T) {
	stack := newTestStack(t, false)
	sessionID := startLabelingSession(t, stack, smallCSV, []string{"name"})
	ctx := context.Background()

	var last *dto.MarkPairResponse
	for i := 0; i < 5; i++ {
		_, err := stack.service.NextPair(ctx, sessionID)
		require.NoError(t, err)

		res, err := stack.service.MarkPair(ctx, sessionID, "no")
		require.NoError(t, err)
		last = res
	}

	assert.Equal(t, 0, last.Counter.Yes)
	assert.Equal(t, 5, last.Counter.No)
	assert.Equal(t, 0, last.Counter.Unsure)

	state, found := stack.sessions.Get(sessionID)
	require.True(t, found)
	assert.Len(t, state.Labels.Distinct, 5)
	assert.Empty(t, state.Labels.Match)
}

func TestLabelAccountingMixedDecisions(t *testing.T) {
	stack := newTestStack(t, false)
	sessionID := startLabelingSession(t, stack, dupeCSV, []string{"name", "city"})
	ctx := context.Background()

	actions := []string{"yes", "no", "unsure", "yes", "no", "unsure", "no"}
	for _, action := range actions {
		_, err := stack.service.NextPair(ctx, sessionID)
		require.NoError(t, err)
		_, err = stack.service.MarkPair(ctx, sessionID, action)
		require.NoError(t, err)
	}

	state, found := stack.sessions.Get(sessionID)
	require.True(t, found)
	assert.Equal(t, len(actions), state.Counter.Yes+state.Counter.No+state.Counter.Unsure)
	assert.Len(t, state.Labels.Match, state.Counter.Yes)
	assert.Len(t, state.Labels.Distinct, state.Counter.No)
}

func TestConcurrentLabelDecisionsAreSerialized(t *testing.T) {
	stack := newTestStack(t, false)
	sessionID := startLabelingSession(t, stack, dupeCSV, []string{"name", "city"})
	ctx := context.Background()

	_, err := stack.service.NextPair(ctx, sessionID)
	require.NoError(t, err)

	// Unsure keeps the outstanding pair, so every call is a pure counter
	// mutation racing on the same session.
	const decisions = 50
	var wg sync.WaitGroup
	for i := 0; i < decisions; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := stack.service.MarkPair(ctx, sessionID, "unsure")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	state, found := stack.sessions.Get(sessionID)
	require.True(t, found)
	assert.Equal(t, decisions, state.Counter.Unsure)
	assert.Zero(t, state.Counter.Yes)
	assert.Zero(t, state.Counter.No)
}

func TestFinishDeletesSessionAndSubmitsJob(t *testing.T) {
	// No worker: the job must stay pending so the handoff is observable.
	stack := newTestStack(t, false)
	sessionID := startLabelingSession(t, stack, dupeCSV, []string{"name", "city"})
	ctx := context.Background()

	_, err := stack.service.NextPair(ctx, sessionID)
	require.NoError(t, err)
	_, err = stack.service.MarkPair(ctx, sessionID, "yes")
	require.NoError(t, err)

	res, err := stack.service.MarkPair(ctx, sessionID, "finish")
	require.NoError(t, err)
	assert.True(t, res.Submitted)
	require.NotEmpty(t, res.JobKey)

	// The session is gone; the workflow now lives in the job handle.
	_, found := stack.sessions.Get(sessionID)
	assert.False(t, found)

	_, err = stack.service.MarkPair(ctx, sessionID, "finish")
	assert.ErrorIs(t, err, ErrNoSession)

	// Labels were persisted for the worker before the session died.
	trainingFiles, err := filepath.Glob(filepath.Join(stack.dir, "*-training.json"))
	require.NoError(t, err)
	assert.Len(t, trainingFiles, 1)

	poll, err := stack.service.PollResult(ctx, res.JobKey)
	require.NoError(t, err)
	assert.False(t, poll.Ready)
}

func TestClusterJobRunsToCompletion(t *testing.T) {
	stack := newTestStack(t, true)
	sessionID := startLabelingSession(t, stack, dupeCSV, []string{"name", "city"})
	ctx := context.Background()

	for _, action := range []string{"yes", "no", "yes"} {
		_, err := stack.service.NextPair(ctx, sessionID)
		require.NoError(t, err)
		_, err = stack.service.MarkPair(ctx, sessionID, action)
		require.NoError(t, err)
	}

	res, err := stack.service.MarkPair(ctx, sessionID, "finish")
	require.NoError(t, err)

	var ready *dto.PollResultResponse
	require.Eventually(t, func() bool {
		poll, err := stack.service.PollResult(ctx, res.JobKey)
		if err != nil || !poll.Ready {
			return false
		}
		ready = poll
		return true
	}, 5*time.Second, 20*time.Millisecond)

	require.NotNil(t, ready)
	assert.Empty(t, ready.Error)
	assert.NotEmpty(t, ready.Result)

	// Exactly-once: the consumed handle reads as pending forever after.
	poll, err := stack.service.PollResult(ctx, res.JobKey)
	require.NoError(t, err)
	assert.False(t, poll.Ready)

	// The job also produced the settings artifact for later adjustment.
	settings, err := filepath.Glob(filepath.Join(stack.dir, "*.dedupe"))
	require.NoError(t, err)
	assert.Len(t, settings, 1)
}

func TestPollResultSurfacesJobFailure(t *testing.T) {
	stack := newTestStack(t, false)
	ctx := context.Background()

	key, err := stack.gateway.Submit(ctx, jobs.KindCluster, jobs.ClusterJobArgs{})
	require.NoError(t, err)
	require.NoError(t, stack.gateway.Fail(ctx, key, errors.New("engine blew up")))

	poll, err := stack.service.PollResult(ctx, key)
	require.NoError(t, err)
	assert.True(t, poll.Ready)
	assert.Equal(t, "engine blew up", poll.Error)

	// Failures are consumed exactly once too.
	poll, err = stack.service.PollResult(ctx, key)
	require.NoError(t, err)
	assert.False(t, poll.Ready)
}

func TestAdjustThresholdGuards(t *testing.T) {
	stack := newTestStack(t, false)
	ctx := context.Background()

	_, err := stack.service.AdjustThreshold(ctx, "missing.csv", 1)
	assert.ErrorIs(t, err, ErrFileNotFound)

	// Upload present but no settings artifact yet.
	saved, err := upload.Save(stack.dir, "people.csv", strings.NewReader(dupeCSV), 1024*1024)
	require.NoError(t, err)

	_, err = stack.service.AdjustThreshold(ctx, saved.Name, 1)
	assert.ErrorIs(t, err, ErrNoSettings)
}

func TestAdjustThresholdResubmits(t *testing.T) {
	stack := newTestStack(t, true)
	ctx := context.Background()

	saved, err := upload.Save(stack.dir, "people.csv", strings.NewReader(dupeCSV), 1024*1024)
	require.NoError(t, err)

	settings := &dedupe.Settings{
		FieldDefs: dedupe.NewStringFields([]string{"name", "city"}),
		Weights:   map[string]float64{"name": 1, "city": 1},
		Threshold: 0.8,
	}
	require.NoError(t, dedupe.SaveSettings(upload.SettingsPath(stack.dir, saved.Name), settings))

	res, err := stack.service.AdjustThreshold(ctx, saved.Name, 2)
	require.NoError(t, err)
	require.NotEmpty(t, res.JobKey)

	var ready *dto.PollResultResponse
	require.Eventually(t, func() bool {
		poll, err := stack.service.PollResult(ctx, res.JobKey)
		if err != nil || !poll.Ready {
			return false
		}
		ready = poll
		return true
	}, 5*time.Second, 20*time.Millisecond)

	require.NotNil(t, ready)
	assert.Empty(t, ready.Error)
	assert.Contains(t, string(ready.Result), "record_count")
}

func TestUploadArtifactsLandInConfiguredDir(t *testing.T) {
	stack := newTestStack(t, false)

	res, err := stack.service.StartSession(context.Background(), "people.csv", strings.NewReader(smallCSV))
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(stack.dir, res.Filename))
	require.NoError(t, err)
	assert.False(t, info.IsDir())
}
