package service

import (
	"context"
	"encoding/json"
	"fmt"

	"csv-dedupe-be/internal/pkg/logger"
	"csv-dedupe-be/internal/websocket"
	"csv-dedupe-be/pkg/dedupe"
	"csv-dedupe-be/pkg/jobs"
	"csv-dedupe-be/pkg/upload"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IWorkerService interface {
	Consume(ctx context.Context) error
}

// workerService executes clustering and threshold jobs off the request path.
// Every outcome, including a panic, lands in the result cell so a poller
// never waits on a job that silently died.
type workerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	gateway   *jobs.Gateway
	clusterer dedupe.Clusterer
	hub       *websocket.Hub
	logger    logger.ILogger
}

func NewWorkerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	gateway *jobs.Gateway,
	clusterer dedupe.Clusterer,
	hub *websocket.Hub,
	log logger.ILogger,
) IWorkerService {
	return &workerService{
		pubSub:    pubSub,
		topicName: topicName,
		gateway:   gateway,
		clusterer: clusterer,
		hub:       hub,
		logger:    log,
	}
}

func (w *workerService) Consume(ctx context.Context) error {
	messages, err := w.pubSub.Subscribe(ctx, w.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			w.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (w *workerService) processMessage(ctx context.Context, msg *message.Message) {
	var job jobs.JobMessage
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		w.logger.Error("WorkerService", "Failed to unmarshal job message", map[string]interface{}{"error": err})
		msg.Ack() // Malformed messages are dropped, not retried.
		return
	}

	w.logger.Info("WorkerService", "Executing job", map[string]interface{}{
		"job_key": job.Key,
		"kind":    job.Kind,
	})

	result, err := w.execute(ctx, &job)

	// Watchers get the same tagged envelope the result cell carries, so a
	// failed job is distinguishable from an empty result over the socket.
	var envelope jobs.ResultEnvelope
	if err != nil {
		w.logger.Error("WorkerService", "Job failed", map[string]interface{}{
			"job_key": job.Key,
			"kind":    job.Kind,
			"error":   err,
		})
		if failErr := w.gateway.Fail(ctx, job.Key, err); failErr != nil {
			w.logger.Error("WorkerService", "Failed to record job failure", map[string]interface{}{
				"job_key": job.Key,
				"error":   failErr,
			})
			msg.Nack() // Result store unreachable; retry the whole job.
			return
		}
		envelope = jobs.ResultEnvelope{Status: jobs.StatusError, Message: err.Error()}
	} else {
		if completeErr := w.gateway.Complete(ctx, job.Key, result); completeErr != nil {
			w.logger.Error("WorkerService", "Failed to record job result", map[string]interface{}{
				"job_key": job.Key,
				"error":   completeErr,
			})
			msg.Nack()
			return
		}
		value, marshalErr := json.Marshal(result)
		if marshalErr != nil {
			value = nil
		}
		envelope = jobs.ResultEnvelope{Status: jobs.StatusOK, Value: value}
	}

	if w.hub != nil {
		w.hub.NotifyJobReady(job.Key, envelope)
	}
	msg.Ack()
}

// execute dispatches by job kind. Panics in the engine are converted into a
// tagged failure so they surface through the result cell like any other error.
func (w *workerService) execute(ctx context.Context, job *jobs.JobMessage) (result *dedupe.ClusterResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	switch job.Kind {
	case jobs.KindCluster:
		var args jobs.ClusterJobArgs
		if err := json.Unmarshal(job.Payload, &args); err != nil {
			return nil, fmt.Errorf("bad cluster args: %w", err)
		}
		return w.runCluster(ctx, &args)

	case jobs.KindThreshold:
		var args jobs.ThresholdJobArgs
		if err := json.Unmarshal(job.Payload, &args); err != nil {
			return nil, fmt.Errorf("bad threshold args: %w", err)
		}
		return w.runThreshold(ctx, &args)

	default:
		return nil, fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

func (w *workerService) runCluster(ctx context.Context, args *jobs.ClusterJobArgs) (*dedupe.ClusterResult, error) {
	records, err := upload.ReadFile(args.SourcePath)
	if err != nil {
		return nil, err
	}
	labels, err := upload.LoadTraining(args.TrainingPath)
	if err != nil {
		return nil, err
	}

	return w.clusterer.Cluster(ctx, dedupe.ClusterArgs{
		FieldDefs:    args.FieldDefs,
		Records:      records,
		Labels:       labels,
		Sample:       args.DataSample,
		SettingsPath: args.SettingsPath,
	})
}

func (w *workerService) runThreshold(ctx context.Context, args *jobs.ThresholdJobArgs) (*dedupe.ClusterResult, error) {
	settings, err := dedupe.LoadSettings(args.SettingsPath)
	if err != nil {
		return nil, err
	}
	records, err := upload.ReadFile(args.FilePath)
	if err != nil {
		return nil, err
	}

	return w.clusterer.ClusterWithSettings(ctx, records, settings, args.RecallWeight)
}
