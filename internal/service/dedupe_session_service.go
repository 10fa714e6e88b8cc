package service

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"csv-dedupe-be/internal/dto"
	"csv-dedupe-be/internal/entity"
	"csv-dedupe-be/internal/pkg/logger"
	"csv-dedupe-be/internal/repository/memory"
	"csv-dedupe-be/pkg/dedupe"
	"csv-dedupe-be/pkg/events"
	"csv-dedupe-be/pkg/jobs"
	"csv-dedupe-be/pkg/upload"
)

// IDedupeSessionService is the workflow orchestrator. It drives one session
// through UPLOADED -> LABELING -> SUBMITTED, delegating matching to the
// engine and the final clustering to the job gateway.
type IDedupeSessionService interface {
	StartSession(ctx context.Context, filename string, file io.Reader) (*dto.StartSessionResponse, error)
	SelectFields(ctx context.Context, sessionID string, fields []string) (*dto.SelectFieldsResponse, error)
	NextPair(ctx context.Context, sessionID string) (*dto.NextPairResponse, error)
	MarkPair(ctx context.Context, sessionID, action string) (*dto.MarkPairResponse, error)
	PollResult(ctx context.Context, jobKey string) (*dto.PollResultResponse, error)
	AdjustThreshold(ctx context.Context, filename string, recallWeight float64) (*dto.AdjustThresholdResponse, error)
}

type dedupeSessionService struct {
	sessions      *memory.SessionRepository
	gateway       *jobs.Gateway
	engineFactory dedupe.Factory
	telemetry     ITelemetryService
	logger        logger.ILogger

	uploadDir     string
	maxUploadSize int
	sampleSize    int
}

func NewDedupeSessionService(
	sessions *memory.SessionRepository,
	gateway *jobs.Gateway,
	engineFactory dedupe.Factory,
	telemetry ITelemetryService,
	log logger.ILogger,
	uploadDir string,
	maxUploadSize int,
	sampleSize int,
) IDedupeSessionService {
	return &dedupeSessionService{
		sessions:      sessions,
		gateway:       gateway,
		engineFactory: engineFactory,
		telemetry:     telemetry,
		logger:        log,
		uploadDir:     uploadDir,
		maxUploadSize: maxUploadSize,
		sampleSize:    sampleSize,
	}
}

func (s *dedupeSessionService) StartSession(ctx context.Context, filename string, file io.Reader) (*dto.StartSessionResponse, error) {
	saved, err := upload.Save(s.uploadDir, filename, file, s.maxUploadSize)
	if err != nil {
		s.telemetry.Track(ctx, events.TypeUploadRejected, map[string]interface{}{
			"filename": filename,
			"reason":   err.Error(),
		})
		if errors.Is(err, upload.ErrInvalidFileType) {
			return nil, ErrInvalidFileType
		}
		s.logger.Warn("DedupeSessionService", "Upload failed", map[string]interface{}{
			"filename": filename,
			"error":    err,
		})
		return nil, ErrUploadFailed
	}

	headers, err := upload.Headers(saved.Converted)
	if err != nil {
		return nil, ErrUploadFailed
	}

	state := &entity.SessionState{File: saved}
	sessionID := s.sessions.Create(state)

	s.telemetry.Track(ctx, events.TypeSessionStarted, map[string]interface{}{
		"session_id": sessionID,
		"file_type":  saved.FileType,
		"row_count":  saved.LineCount,
	})

	return &dto.StartSessionResponse{
		SessionId: sessionID,
		Filename:  saved.Name,
		RowCount:  saved.LineCount,
		Fields:    headers,
	}, nil
}

func (s *dedupeSessionService) SelectFields(ctx context.Context, sessionID string, fields []string) (*dto.SelectFieldsResponse, error) {
	state, found := s.sessions.Get(sessionID)
	if !found {
		return nil, ErrNoSession
	}
	if len(fields) == 0 {
		return nil, ErrNoFieldsSelected
	}
	s.sessions.Touch(sessionID)

	state.Lock()
	defer state.Unlock()

	records, err := upload.ReadData(state.File.Converted)
	if err != nil {
		s.logger.Error("DedupeSessionService", "Failed to build record table", map[string]interface{}{
			"session_id": sessionID,
			"error":      err,
		})
		return nil, ErrUploadFailed
	}

	defs := dedupe.NewStringFields(fields)
	engine := s.engineFactory(defs)

	start := time.Now()
	engine.Sample(records, s.sampleSize)

	state.SelectedFields = fields
	state.FieldDefs = defs
	state.Records = records
	state.Engine = engine

	s.telemetry.Track(ctx, events.TypeFieldsSelected, map[string]interface{}{
		"session_id":   sessionID,
		"fields":       fields,
		"init_seconds": int(time.Since(start).Seconds()),
		"record_count": len(records),
	})

	return &dto.SelectFieldsResponse{
		SessionId:   sessionID,
		Fields:      fields,
		RecordCount: len(records),
	}, nil
}

func (s *dedupeSessionService) NextPair(ctx context.Context, sessionID string) (*dto.NextPairResponse, error) {
	state, found := s.sessions.Get(sessionID)
	if !found {
		return nil, ErrNoSession
	}
	s.sessions.Touch(sessionID)

	state.Lock()
	defer state.Unlock()

	if state.Engine == nil {
		return nil, ErrNoFieldsSelected
	}

	pairs, err := state.Engine.UncertainPairs()
	if err != nil || len(pairs) == 0 {
		s.logger.Error("DedupeSessionService", "Engine returned no uncertain pairs", map[string]interface{}{
			"session_id": sessionID,
			"error":      err,
		})
		return nil, ErrNoFieldsSelected
	}

	// Refetch replaces an outstanding pair: last fetched wins.
	pair := pairs[0]
	state.CurrentPair = &pair

	pairFields := make([]dto.PairField, 0, len(state.FieldDefs))
	for _, field := range state.Engine.FieldComparators() {
		pairFields = append(pairFields, dto.PairField{
			Field: field,
			Left:  pair.Left[field],
			Right: pair.Right[field],
		})
	}

	return &dto.NextPairResponse{Fields: pairFields}, nil
}

func (s *dedupeSessionService) MarkPair(ctx context.Context, sessionID, action string) (*dto.MarkPairResponse, error) {
	state, found := s.sessions.Get(sessionID)
	if !found {
		return nil, ErrNoSession
	}
	s.sessions.Touch(sessionID)

	state.Lock()
	defer state.Unlock()

	switch action {
	case "yes":
		if state.CurrentPair == nil {
			return nil, ErrNoCurrentPair
		}
		state.Labels.Match = append(state.Labels.Match, *state.CurrentPair)
		state.Counter.Yes++
		state.CurrentPair = nil

	case "no":
		if state.CurrentPair == nil {
			return nil, ErrNoCurrentPair
		}
		state.Labels.Distinct = append(state.Labels.Distinct, *state.CurrentPair)
		state.Counter.No++
		state.CurrentPair = nil

	case "unsure":
		// No label recorded; the outstanding pair stays until replaced.
		state.Counter.Unsure++

	case "finish":
		return s.finish(ctx, state)

	default:
		return nil, ErrUnknownAction
	}

	if state.Engine != nil {
		state.Engine.MarkPairs(state.Labels)
	}

	s.telemetry.Track(ctx, events.TypePairLabeled, map[string]interface{}{
		"session_id": sessionID,
		"action":     action,
	})

	counter := state.Counter
	return &dto.MarkPairResponse{Counter: &counter}, nil
}

// finish hands the session off to the background worker and retires it. The
// rest of the workflow is tracked purely by the job handle: deleting the
// session here is what makes a second submit structurally impossible.
func (s *dedupeSessionService) finish(ctx context.Context, state *entity.SessionState) (*dto.MarkPairResponse, error) {
	if state.Engine == nil {
		return nil, ErrNoFieldsSelected
	}

	trainingPath := upload.TrainingPath(s.uploadDir, state.File.Name)
	if err := upload.SaveTraining(trainingPath, state.Labels); err != nil {
		s.logger.Error("DedupeSessionService", "Failed to persist training labels", map[string]interface{}{
			"session_id": state.Id,
			"error":      err,
		})
		return nil, ErrJobSubmission
	}

	args := jobs.ClusterJobArgs{
		FieldDefs:    state.FieldDefs,
		TrainingPath: trainingPath,
		SourcePath:   state.File.Path,
		SourceName:   state.File.Name,
		SettingsPath: upload.SettingsPath(s.uploadDir, state.File.Name),
		DataSample:   state.Engine.DataSample(),
	}

	key, err := s.gateway.Submit(ctx, jobs.KindCluster, args)
	if err != nil {
		s.logger.Error("DedupeSessionService", "Cluster job submission failed", map[string]interface{}{
			"session_id": state.Id,
			"error":      err,
		})
		return nil, ErrJobSubmission
	}

	state.JobKey = key
	s.sessions.Delete(state.Id)

	s.telemetry.Track(ctx, events.TypeJobSubmitted, map[string]interface{}{
		"session_id": state.Id,
		"job_key":    key,
		"labels":     state.Counter.Yes + state.Counter.No,
	})

	return &dto.MarkPairResponse{Submitted: true, JobKey: key}, nil
}

func (s *dedupeSessionService) PollResult(ctx context.Context, jobKey string) (*dto.PollResultResponse, error) {
	// Take consumes the cell atomically; the first ready observation is
	// the only one.
	envelope, err := s.gateway.Take(ctx, jobKey)
	if err != nil {
		s.logger.Error("DedupeSessionService", "Result poll failed", map[string]interface{}{
			"job_key": jobKey,
			"error":   err,
		})
		return nil, ErrJobSubmission
	}
	if envelope == nil {
		return &dto.PollResultResponse{Ready: false}, nil
	}

	if envelope.Status == jobs.StatusError {
		return &dto.PollResultResponse{Ready: true, Error: envelope.Message}, nil
	}
	return &dto.PollResultResponse{Ready: true, Result: envelope.Value}, nil
}

func (s *dedupeSessionService) AdjustThreshold(ctx context.Context, filename string, recallWeight float64) (*dto.AdjustThresholdResponse, error) {
	filePath := filepath.Join(s.uploadDir, filename)
	if _, err := os.Stat(filePath); err != nil {
		return nil, ErrFileNotFound
	}

	settingsPath, found := upload.FindSettings(s.uploadDir, filename)
	if !found {
		return nil, ErrNoSettings
	}

	args := jobs.ThresholdJobArgs{
		SettingsPath: settingsPath,
		FilePath:     filePath,
		Filename:     filename,
		RecallWeight: recallWeight,
	}

	key, err := s.gateway.Submit(ctx, jobs.KindThreshold, args)
	if err != nil {
		return nil, ErrJobSubmission
	}

	s.telemetry.Track(ctx, events.TypeThresholdAdjusted, map[string]interface{}{
		"filename":      filename,
		"recall_weight": recallWeight,
		"job_key":       key,
	})

	return &dto.AdjustThresholdResponse{JobKey: key}, nil
}
