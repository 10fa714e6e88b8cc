package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T) (*Gateway, <-chan *JobMessage) {
	t.Helper()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	messages, err := pubSub.Subscribe(context.Background(), "TEST_JOBS")
	require.NoError(t, err)

	received := make(chan *JobMessage, 8)
	go func() {
		for msg := range messages {
			var job JobMessage
			if err := json.Unmarshal(msg.Payload, &job); err == nil {
				received <- &job
			}
			msg.Ack()
		}
	}()

	return NewGateway(pubSub, "TEST_JOBS", NewMemoryResultStore(), time.Hour), received
}

func TestSubmitPublishesJobMessage(t *testing.T) {
	gateway, received := newTestGateway(t)

	key, err := gateway.Submit(context.Background(), KindCluster, ClusterJobArgs{SourceName: "people.csv"})
	require.NoError(t, err)
	require.NotEmpty(t, key)

	select {
	case job := <-received:
		assert.Equal(t, key, job.Key)
		assert.Equal(t, KindCluster, job.Kind)

		var args ClusterJobArgs
		require.NoError(t, json.Unmarshal(job.Payload, &args))
		assert.Equal(t, "people.csv", args.SourceName)
	case <-time.After(2 * time.Second):
		t.Fatal("job message never arrived")
	}
}

func TestSubmitAllocatesDistinctKeys(t *testing.T) {
	gateway, _ := newTestGateway(t)

	first, err := gateway.Submit(context.Background(), KindCluster, ClusterJobArgs{})
	require.NoError(t, err)
	second, err := gateway.Submit(context.Background(), KindThreshold, ThresholdJobArgs{})
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestTakePendingUntilComplete(t *testing.T) {
	gateway, _ := newTestGateway(t)
	ctx := context.Background()

	key, err := gateway.Submit(ctx, KindCluster, ClusterJobArgs{})
	require.NoError(t, err)

	envelope, err := gateway.Take(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, envelope)

	require.NoError(t, gateway.Complete(ctx, key, map[string]int{"clusters": 2}))

	envelope, err = gateway.Take(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, envelope)
	assert.Equal(t, StatusOK, envelope.Status)
	assert.JSONEq(t, `{"clusters":2}`, string(envelope.Value))

	// The value is gone for good; later polls look pending again.
	envelope, err = gateway.Take(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, envelope)
}

func TestTakeDeliversExactlyOnceUnderConcurrency(t *testing.T) {
	gateway, _ := newTestGateway(t)
	ctx := context.Background()

	key, err := gateway.Submit(ctx, KindCluster, ClusterJobArgs{})
	require.NoError(t, err)
	require.NoError(t, gateway.Complete(ctx, key, "done"))

	const pollers = 16
	var delivered int64
	var wg sync.WaitGroup
	for i := 0; i < pollers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			envelope, err := gateway.Take(ctx, key)
			assert.NoError(t, err)
			if envelope != nil {
				atomic.AddInt64(&delivered, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), delivered)
}

func TestFailSurfacesThroughResultCell(t *testing.T) {
	gateway, _ := newTestGateway(t)
	ctx := context.Background()

	key, err := gateway.Submit(ctx, KindThreshold, ThresholdJobArgs{})
	require.NoError(t, err)
	require.NoError(t, gateway.Fail(ctx, key, errors.New("engine blew up")))

	envelope, err := gateway.Take(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, envelope)
	assert.Equal(t, StatusError, envelope.Status)
	assert.Equal(t, "engine blew up", envelope.Message)
	assert.Empty(t, envelope.Value)
}

func TestMemoryResultStoreTTL(t *testing.T) {
	store := NewMemoryResultStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", &ResultEnvelope{Status: StatusOK}, 20*time.Millisecond))
	time.Sleep(40 * time.Millisecond)

	_, found, err := store.GetDel(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}
