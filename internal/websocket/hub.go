package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"csv-dedupe-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisChannel = "dedupe_job_events"

// Hub fans job-completion messages out to connected watchers. Clients
// subscribe by job key; a browser that polled /job can instead hold a socket
// open and be pushed the same envelope the moment the worker writes it.
type Hub struct {
	// Registered watchers: job key -> list of clients (multi-tab)
	clients map[string][]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Lock for safe map access
	mu sync.RWMutex

	// Redis connection for cross-instance delivery; the worker may run on a
	// different node than the one holding the socket.
	rdb *redis.Client

	// Instance tag stamped on published messages. The subscriber skips its
	// own, since NotifyJobReady already delivered them locally.
	instanceID string

	// Dedicated Logger
	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string][]*Client),
		rdb:        rdb,
		instanceID: uuid.NewString(),
		logger:     log,
	}
}

func (h *Hub) Run() {
	// Start Redis Subscriber if Redis is available
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.JobKey] = append(h.clients[client.JobKey], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Watcher registered", map[string]interface{}{"job_key": client.JobKey})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.JobKey]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.JobKey] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.JobKey]) == 0 {
					delete(h.clients, client.JobKey)
					h.logger.Info("Hub", "Job key fully unwatched", map[string]interface{}{"job_key": client.JobKey})
				}
			}
			h.mu.Unlock()
		}
	}
}

// Register attaches a watcher to its job key.
func (h *Hub) Register(c *Client) {
	h.register <- c
}

// NotifyJobReady pushes a job's result envelope to every watcher of its key,
// locally and across instances via Redis.
func (h *Hub) NotifyJobReady(jobKey string, result interface{}) {
	data, _ := json.Marshal(map[string]interface{}{
		"type":    "job_ready",
		"job_key": jobKey,
		"data":    result,
	})

	h.deliverLocal(jobKey, data)

	if h.rdb != nil {
		payload := map[string]interface{}{
			"origin":  h.instanceID,
			"job_key": jobKey,
			"message": json.RawMessage(data),
		}
		jsonPayload, _ := json.Marshal(payload)
		h.rdb.Publish(context.Background(), redisChannel, jsonPayload)
	}
}

func (h *Hub) deliverLocal(jobKey string, data []byte) {
	h.mu.RLock()
	clients, ok := h.clients[jobKey]
	h.mu.RUnlock()

	if !ok {
		return
	}
	for _, client := range clients {
		select {
		case client.Send <- data:
		default:
			// Unregister owns closing Send; closing here too would
			// double close the channel.
			h.logger.Warn("Hub", "Watcher Send buffer full, dropping watcher", map[string]interface{}{"job_key": jobKey})
			h.unregister <- client
		}
	}
}

func (h *Hub) subscribeToRedis() {
	// Every instance subscribes to the shared job-events channel and
	// delivers to whichever watchers it holds locally.
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()

	for msg := range ch {
		var payload struct {
			Origin  string          `json:"origin"`
			JobKey  string          `json:"job_key"`
			Message json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			log.Printf("Redis msg parse error: %v", err)
			continue
		}
		if payload.Origin == h.instanceID {
			// Already delivered locally by NotifyJobReady.
			continue
		}

		h.deliverLocal(payload.JobKey, payload.Message)
	}
}
