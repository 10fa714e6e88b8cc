package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// Gateway hands work to the background execution substrate and tracks its
// result cell. Submit returns immediately; Take is non-blocking and safe to
// call from any process instance.
type Gateway struct {
	publisher message.Publisher
	topic     string
	store     ResultStore
	resultTTL time.Duration
}

func NewGateway(publisher message.Publisher, topic string, store ResultStore, resultTTL time.Duration) *Gateway {
	return &Gateway{
		publisher: publisher,
		topic:     topic,
		store:     store,
		resultTTL: resultTTL,
	}
}

// Submit enqueues a job and returns its handle key. The key names the Redis
// result cell the worker will eventually fill.
func (g *Gateway) Submit(ctx context.Context, kind JobKind, args interface{}) (string, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("jobs: failed to marshal %s args: %w", kind, err)
	}

	key := uuid.NewString()
	body, err := json.Marshal(JobMessage{Key: key, Kind: kind, Payload: payload})
	if err != nil {
		return "", fmt.Errorf("jobs: failed to marshal job message: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), body)
	msg.SetContext(ctx)
	if err := g.publisher.Publish(g.topic, msg); err != nil {
		return "", fmt.Errorf("jobs: failed to publish %s job: %w", kind, err)
	}
	return key, nil
}

// Take reads and consumes the result cell in one atomic step, so the value
// is observed exactly once even under concurrent polls. A nil envelope means
// the job is still pending (or the handle was already consumed).
func (g *Gateway) Take(ctx context.Context, key string) (*ResultEnvelope, error) {
	envelope, ok, err := g.store.GetDel(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return envelope, nil
}

// Complete is the worker side: fill the cell with a success value.
func (g *Gateway) Complete(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("jobs: failed to marshal result for %s: %w", key, err)
	}
	return g.store.Set(ctx, key, &ResultEnvelope{Status: StatusOK, Value: data}, g.resultTTL)
}

// Fail records a background execution failure in the same cell, so pollers
// see it instead of waiting forever.
func (g *Gateway) Fail(ctx context.Context, key string, cause error) error {
	return g.store.Set(ctx, key, &ResultEnvelope{Status: StatusError, Message: cause.Error()}, g.resultTTL)
}
