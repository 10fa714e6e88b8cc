package service

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"csv-dedupe-be/internal/websocket"
	"csv-dedupe-be/pkg/dedupe"
	"csv-dedupe-be/pkg/jobs"
	"csv-dedupe-be/pkg/upload"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jobReadyPush struct {
	Type   string              `json:"type"`
	JobKey string              `json:"job_key"`
	Data   jobs.ResultEnvelope `json:"data"`
}

func newWatchedWorker(t *testing.T, jobKey string) (*workerService, *jobs.Gateway, *websocket.Client) {
	t.Helper()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	gateway := jobs.NewGateway(pubSub, "TEST_DEDUPE_JOBS", jobs.NewMemoryResultStore(), time.Hour)
	hub := websocket.NewHub(nil, nopLogger{})
	go hub.Run()

	worker := NewWorkerService(pubSub, "TEST_DEDUPE_JOBS", gateway, dedupe.NewClusterer(), hub, nopLogger{}).(*workerService)

	watcher := &websocket.Client{Hub: hub, JobKey: jobKey, Send: make(chan []byte, 4)}
	hub.Register(watcher)
	time.Sleep(20 * time.Millisecond)

	return worker, gateway, watcher
}

func jobMessage(t *testing.T, key string, kind jobs.JobKind, args interface{}) *message.Message {
	t.Helper()
	payload, err := json.Marshal(args)
	require.NoError(t, err)
	body, err := json.Marshal(jobs.JobMessage{Key: key, Kind: kind, Payload: payload})
	require.NoError(t, err)
	return message.NewMessage(watermill.NewUUID(), body)
}

func receivePush(t *testing.T, watcher *websocket.Client) jobReadyPush {
	t.Helper()
	select {
	case data := <-watcher.Send:
		var push jobReadyPush
		require.NoError(t, json.Unmarshal(data, &push))
		return push
	case <-time.After(time.Second):
		t.Fatal("watcher never received a push")
		return jobReadyPush{}
	}
}

func TestWorkerPushesFailureEnvelopeToWatchers(t *testing.T) {
	worker, gateway, watcher := newWatchedWorker(t, "job-1")
	ctx := context.Background()

	args := jobs.ClusterJobArgs{SourcePath: filepath.Join(t.TempDir(), "missing.csv")}
	worker.processMessage(ctx, jobMessage(t, "job-1", jobs.KindCluster, args))

	push := receivePush(t, watcher)
	assert.Equal(t, "job_ready", push.Type)
	assert.Equal(t, "job-1", push.JobKey)
	assert.Equal(t, jobs.StatusError, push.Data.Status)
	assert.NotEmpty(t, push.Data.Message)

	// Pollers see the same failure in the result cell.
	envelope, err := gateway.Take(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, envelope)
	assert.Equal(t, jobs.StatusError, envelope.Status)
}

func TestWorkerPushesResultEnvelopeToWatchers(t *testing.T) {
	worker, _, watcher := newWatchedWorker(t, "job-2")
	ctx := context.Background()
	dir := t.TempDir()

	saved, err := upload.Save(dir, "people.csv", strings.NewReader(dupeCSV), 1024*1024)
	require.NoError(t, err)
	trainingPath := upload.TrainingPath(dir, saved.Name)
	require.NoError(t, upload.SaveTraining(trainingPath, dedupe.LabelSet{}))

	args := jobs.ClusterJobArgs{
		FieldDefs:    dedupe.NewStringFields([]string{"name", "city"}),
		TrainingPath: trainingPath,
		SourcePath:   saved.Path,
	}
	worker.processMessage(ctx, jobMessage(t, "job-2", jobs.KindCluster, args))

	push := receivePush(t, watcher)
	assert.Equal(t, jobs.StatusOK, push.Data.Status)
	assert.Empty(t, push.Data.Message)
	assert.Contains(t, string(push.Data.Value), "record_count")
}
