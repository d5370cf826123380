package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"reelsmith/internal/logging"
	"reelsmith/internal/metrics"
	"reelsmith/internal/queue"
	"reelsmith/internal/services"
)

func (m *Manager) processItem(ctx context.Context, item *queue.Item) {
	stg, ok := m.stageByStart[item.Status]
	if !ok {
		m.logger.Warn("no stage configured for status", logging.String("status", string(item.Status)))
		return
	}

	requestID := uuid.NewString()
	stageCtx := services.WithRequestID(services.WithStage(services.WithItemID(ctx, item.ID), stg.name), requestID)
	stageLogger := logging.WithContext(stageCtx, m.logger)

	metrics.ActiveRuns.Inc()
	defer metrics.ActiveRuns.Dec()

	if err := m.transitionToProcessing(stageCtx, stg, item); err != nil {
		stageLogger.Error("failed to transition item to processing", logging.Error(err))
		m.setLastError(err)
		return
	}
	m.executeStage(stageCtx, stageLogger, stg, item)
}

func (m *Manager) executeStage(ctx context.Context, stageLogger *slog.Logger, stg pipelineStage, item *queue.Item) {
	stageStart := time.Now()
	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("source_file", strings.TrimSpace(item.SourcePath)))

	if err := stg.handler.Prepare(ctx, item); err != nil {
		m.handleStageFailure(ctx, stageLogger, stg.name, item, err)
		return
	}
	if err := m.store.Update(ctx, item); err != nil {
		stageLogger.Error("failed to persist stage preparation", logging.Error(err))
		m.setLastError(err)
		return
	}

	if err := stg.handler.Execute(ctx, item); err != nil {
		if errors.Is(err, context.Canceled) {
			stageLogger.Debug("stage interrupted by shutdown")
			return
		}
		m.handleStageFailure(ctx, stageLogger, stg.name, item, err)
		return
	}

	// Stages may park an item in review or fail it themselves; only a still
	// in-flight status advances to the stage's done status.
	if item.Status == stg.processingStatus || item.Status == "" {
		item.Status = stg.doneStatus
	}
	if item.Status == queue.StatusCompleted {
		if item.ProgressPercent < 100 {
			item.ProgressPercent = 100
		}
		if strings.TrimSpace(item.ProgressMessage) == "" {
			item.ProgressMessage = "Completed"
		}
		metrics.VideosProcessed.WithLabelValues("completed").Inc()
	}
	if err := m.store.Update(ctx, item); err != nil {
		stageLogger.Error("failed to persist stage result", logging.Error(err))
		m.setLastError(err)
		return
	}
	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(item.Status)),
		logging.Duration("stage_duration", time.Since(stageStart)))
}

func (m *Manager) transitionToProcessing(ctx context.Context, stg pipelineStage, item *queue.Item) error {
	item.Status = stg.processingStatus
	item.InitProgress(stageLabel(stg.name), stageLabel(stg.name)+" started")
	if err := m.store.Update(ctx, item); err != nil {
		return err
	}
	return nil
}

func (m *Manager) handleStageFailure(ctx context.Context, stageLogger *slog.Logger, stageName string, item *queue.Item, stageErr error) {
	message := strings.TrimSpace(stageErr.Error())
	if message == "" {
		message = stageName + " failed"
	}
	// Fatal classifications indicate a bug or bad config; blind retry cannot
	// help, so those park for review instead of failed.
	if services.IsFatal(stageErr) {
		item.SetReview(message)
		metrics.VideosProcessed.WithLabelValues("review").Inc()
	} else {
		item.SetFailed(message)
		metrics.VideosProcessed.WithLabelValues("failed").Inc()
	}

	attrs := []logging.Attr{
		logging.String("error_message", message),
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.Error(stageErr),
	}
	if services.IsFatal(stageErr) {
		attrs = append(attrs, logging.Bool("fatal", true))
	}
	stageLogger.Error("stage failed", logging.Args(attrs...)...)

	if err := m.store.Update(ctx, item); err != nil {
		if errors.Is(err, context.Canceled) {
			stageLogger.Debug("daemon shutting down, could not update stage failure")
		} else {
			stageLogger.Error("failed to persist stage failure", logging.Error(err))
		}
	}
	m.setLastError(stageErr)
}

func stageLabel(name string) string {
	if name == "" {
		return "Processing"
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
