package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/graphrapids/graphapi/internal/services"
	appErr "github.com/graphrapids/graphapi/pkg/errors"
	"github.com/graphrapids/graphapi/pkg/logger"
)

// TypeRenderSVG is the task type of an async SVG render.
const TypeRenderSVG = "render:svg"

// RenderTaskHandler runs queued render jobs.
type RenderTaskHandler struct {
	renderSvc services.RenderService
}

func NewRenderTaskHandler(renderSvc services.RenderService) *RenderTaskHandler {
	return &RenderTaskHandler{renderSvc: renderSvc}
}

func (h *RenderTaskHandler) HandleRender(ctx context.Context, t *asynq.Task) error {
	var p services.RenderJobPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		logger.L().Error("invalid render task payload", zap.Error(err))
		// A payload that cannot be decoded never will be.
		return fmt.Errorf("decode render payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.JobID == "" {
		logger.L().Error("render task without job id")
		return fmt.Errorf("render task without job id: %w", asynq.SkipRetry)
	}

	logger.L().Info("handling render task", zap.String("job_id", p.JobID), zap.String("graph_type_id", p.Input.GraphTypeID))
	if err := h.renderSvc.ProcessJob(ctx, &p); err != nil {
		logger.L().Error("render task failed", zap.String("job_id", p.JobID), zap.Error(err))
		return err
	}
	return nil
}

// Enqueuer is the part of asynq.Client the queue needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Queue submits render jobs to asynq. The job id doubles as the task id so
// a job is queued at most once while asynq retains it.
type Queue struct {
	client    Enqueuer
	timeout   time.Duration
	retention time.Duration
	maxRetry  int
}

func NewQueue(client Enqueuer, timeout, retention time.Duration) *Queue {
	return &Queue{client: client, timeout: timeout, retention: retention, maxRetry: 3}
}

var _ services.JobQueue = (*Queue)(nil)

func (q *Queue) EnqueueRender(ctx context.Context, payload *services.RenderJobPayload) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "encode render payload")
	}
	opts := []asynq.Option{asynq.TaskID(payload.JobID), asynq.MaxRetry(q.maxRetry)}
	if q.timeout > 0 {
		opts = append(opts, asynq.Timeout(q.timeout))
	}
	if q.retention > 0 {
		opts = append(opts, asynq.Retention(q.retention))
	}

	info, err := q.client.EnqueueContext(ctx, asynq.NewTask(TypeRenderSVG, b), opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		logger.L().Info("render task already queued", zap.String("job_id", payload.JobID))
		return nil
	}
	if err != nil {
		logger.L().Error("enqueue render task failed", zap.String("job_id", payload.JobID), zap.Error(err))
		return appErr.Wrap(err, appErr.CodeUnavailable, "enqueue render task failed").WithMeta("job_id", payload.JobID)
	}
	logger.L().Info("enqueued render task", zap.String("job_id", payload.JobID), zap.String("task_id", info.ID), zap.String("queue", info.Queue))
	return nil
}
