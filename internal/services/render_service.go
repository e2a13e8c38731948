package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/graphrapids/graphapi/internal/cache"
	"github.com/graphrapids/graphapi/internal/catalog"
	"github.com/graphrapids/graphapi/internal/models"
	"github.com/graphrapids/graphapi/internal/render"
	appErr "github.com/graphrapids/graphapi/pkg/errors"
	"github.com/graphrapids/graphapi/pkg/logger"
	"github.com/graphrapids/graphapi/pkg/metrics"
)

// Render job states.
const (
	JobPending = "pending"
	JobDone    = "done"
	JobFailed  = "failed"
)

const layoutBreakerName = "layout"

// RenderService renders YAML graphs against a resolved graph type, either
// inline or through the job queue.
type RenderService interface {
	RenderSVG(ctx context.Context, input *RenderInput) (*RenderResult, error)
	SubmitJob(ctx context.Context, input *RenderInput) (*RenderJob, error)
	GetJob(ctx context.Context, id string) (*RenderJob, error)
	ProcessJob(ctx context.Context, payload *RenderJobPayload) error
}

// JobQueue hands render jobs to workers. Enqueuing a job id that is already
// queued is not an error.
type JobQueue interface {
	EnqueueRender(ctx context.Context, payload *RenderJobPayload) error
}

type RenderInput struct {
	YAML        string       `json:"yaml"`
	GraphTypeID string       `json:"graphTypeId"`
	Stage       models.Stage `json:"stage"`
	Version     int          `json:"version,omitempty"`
	ThemeID     string       `json:"themeId"`
}

type RenderResult struct {
	SVG              []byte
	GraphTypeID      string
	GraphTypeVersion int
	RuntimeChecksum  string
	ThemeChecksum    string
}

type RenderJob struct {
	ID              string       `json:"id"`
	Status          string       `json:"status"`
	GraphTypeID     string       `json:"graphTypeId"`
	Stage           models.Stage `json:"stage"`
	RuntimeChecksum string       `json:"runtimeChecksum"`
	ThemeChecksum   string       `json:"themeChecksum,omitempty"`
	SVG             string       `json:"svg,omitempty"`
	Error           string       `json:"error,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

type RenderJobPayload struct {
	JobID string      `json:"jobId"`
	Input RenderInput `json:"input"`
}

type RenderOptions struct {
	// Timeout bounds one layout plus render.
	Timeout time.Duration
	// JobTTL is how long job records are kept.
	JobTTL time.Duration
	// BreakerFailures is the number of consecutive layout failures that
	// opens the breaker.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

type renderService struct {
	config   ConfigService
	layout   render.Layouter
	renderer render.Renderer
	breaker  *gobreaker.CircuitBreaker
	jobs     cache.Cache
	queue    JobQueue
	opts     RenderOptions
	now      func() time.Time
}

// NewRenderService wires the render pipeline. queue may be nil when async
// rendering is disabled; jobs may be nil in the same case.
func NewRenderService(config ConfigService, layout render.Layouter, renderer render.Renderer, jobs cache.Cache, queue JobQueue, opts RenderOptions) RenderService {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.JobTTL <= 0 {
		opts.JobTTL = time.Hour
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}
	if jobs == nil {
		jobs = cache.NewNullCache()
	}
	failures := opts.BreakerFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        layoutBreakerName,
		MaxRequests: 1,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.L().Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.SetBreakerState(name, int(to))
		},
		// Bad input is the caller's fault, not the engine's.
		IsSuccessful: func(err error) bool {
			return err == nil || appErr.IsCode(err, appErr.CodeInvalid)
		},
	})
	return &renderService{
		config:   config,
		layout:   layout,
		renderer: renderer,
		breaker:  cb,
		jobs:     jobs,
		queue:    queue,
		opts:     opts,
		now:      time.Now,
	}
}

var _ RenderService = (*renderService)(nil)

func withDefaults(in RenderInput) RenderInput {
	if in.GraphTypeID == "" {
		in.GraphTypeID = DefaultID
	}
	if in.Stage == "" {
		in.Stage = models.StagePublished
	}
	return in
}

// prepared is everything resolved before the layout engine runs.
type prepared struct {
	runtime  *models.Runtime
	canvas   *render.Canvas
	css      string
	themeSum string
}

func (s *renderService) prepare(ctx context.Context, in RenderInput) (*prepared, error) {
	rt, err := s.config.Runtime(ctx, in.GraphTypeID, RevisionQuery{Stage: in.Stage, Version: in.Version})
	if err != nil {
		return nil, err
	}
	cat, err := catalog.Build(rt)
	if err != nil {
		return nil, err
	}

	p := &prepared{runtime: rt}
	themeID := in.ThemeID
	if themeID == "" {
		themeID = DefaultID
	}
	doc, err := s.config.Theme(ctx, themeID, RevisionQuery{Stage: in.Stage})
	switch {
	case err == nil:
		p.css, p.themeSum = doc.RenderCSS, doc.Checksum
	case in.ThemeID == "" && (appErr.IsCode(err, appErr.CodeNotFound) || appErr.IsCode(err, appErr.CodeNoPublishedVersion)):
		// No explicit theme and no default one: render unstyled.
	default:
		return nil, err
	}

	g, err := render.ParseInput(in.YAML)
	if err != nil {
		return nil, err
	}
	if p.canvas, err = render.Enrich(g, rt, cat); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *renderService) RenderSVG(ctx context.Context, input *RenderInput) (*RenderResult, error) {
	in := withDefaults(*input)
	log := logger.FromContext(ctx)
	log.Info("render svg called", zap.String("graph_type_id", in.GraphTypeID), zap.String("stage", string(in.Stage)))

	p, err := s.prepare(ctx, in)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	start := time.Now()
	laid, err := s.runLayout(ctx, p.canvas)
	metrics.RecordRender("layout", err, time.Since(start))
	if err != nil {
		return nil, err
	}

	start = time.Now()
	svg, err := s.renderer.Render(ctx, laid, p.canvas, p.css)
	metrics.RecordRender("render", err, time.Since(start))
	if err != nil {
		return nil, err
	}

	log.Info("svg rendered",
		zap.String("graph_type_id", in.GraphTypeID),
		zap.Int("graph_type_version", p.runtime.GraphTypeVersion),
		zap.String("runtime_checksum", p.runtime.RuntimeChecksum),
		zap.Int("nodes", len(p.canvas.Nodes)),
		zap.Int("edges", len(p.canvas.Edges)),
	)
	return &RenderResult{
		SVG:              svg,
		GraphTypeID:      in.GraphTypeID,
		GraphTypeVersion: p.runtime.GraphTypeVersion,
		RuntimeChecksum:  p.runtime.RuntimeChecksum,
		ThemeChecksum:    p.themeSum,
	}, nil
}

// runLayout calls the layout engine exactly once, guarded by the breaker.
func (s *renderService) runLayout(ctx context.Context, c *render.Canvas) ([]byte, error) {
	out, err := s.breaker.Execute(func() (interface{}, error) {
		return s.layout.Layout(ctx, c)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, appErr.Wrap(err, appErr.CodeUnavailable, "layout engine unavailable")
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, appErr.Wrap(err, appErr.CodeDeadline, "layout timed out")
		}
		return nil, err
	}
	return out.([]byte), nil
}

func jobKey(id string) string { return "render-job:" + id }

func (s *renderService) SubmitJob(ctx context.Context, input *RenderInput) (*RenderJob, error) {
	if s.queue == nil {
		return nil, appErr.New(appErr.CodeUnavailable, "async rendering is not configured")
	}
	in := withDefaults(*input)

	// Resolving up front rejects bad input synchronously and fixes the
	// graph-type version the worker renders.
	p, err := s.prepare(ctx, in)
	if err != nil {
		return nil, err
	}
	if in.Stage == models.StagePublished {
		in.Version = p.runtime.GraphTypeVersion
	}

	now := s.now().UTC()
	job := &RenderJob{
		ID:              cache.JobKey(p.runtime.RuntimeChecksum, p.themeSum, in.YAML),
		Status:          JobPending,
		GraphTypeID:     in.GraphTypeID,
		Stage:           in.Stage,
		RuntimeChecksum: p.runtime.RuntimeChecksum,
		ThemeChecksum:   p.themeSum,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "encode render job")
	}
	created, err := s.jobs.SetNX(ctx, jobKey(job.ID), raw, s.opts.JobTTL)
	if err != nil {
		return nil, err
	}
	if !created {
		metrics.RecordRenderJob("deduplicated")
		logger.L().Info("render job already submitted", zap.String("job_id", job.ID))
		return s.GetJob(ctx, job.ID)
	}

	if err := s.queue.EnqueueRender(ctx, &RenderJobPayload{JobID: job.ID, Input: in}); err != nil {
		_ = s.jobs.Delete(ctx, jobKey(job.ID))
		return nil, err
	}
	metrics.RecordRenderJob("enqueued")
	logger.L().Info("render job enqueued", zap.String("job_id", job.ID), zap.String("graph_type_id", in.GraphTypeID))
	return job, nil
}

func (s *renderService) GetJob(ctx context.Context, id string) (*RenderJob, error) {
	raw, ok, err := s.jobs.Get(ctx, jobKey(id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErr.Newf(appErr.CodeNotFound, "render job %q not found", id).WithMeta("id", id)
	}
	var job RenderJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "decode render job").WithMeta("id", id)
	}
	return &job, nil
}

// ProcessJob renders a queued job and stores the outcome. Only transient
// failures are returned so the queue retries them; everything else is
// recorded on the job.
func (s *renderService) ProcessJob(ctx context.Context, payload *RenderJobPayload) error {
	job, err := s.GetJob(ctx, payload.JobID)
	if appErr.IsCode(err, appErr.CodeNotFound) {
		job = &RenderJob{ID: payload.JobID, GraphTypeID: payload.Input.GraphTypeID, Stage: payload.Input.Stage, CreatedAt: s.now().UTC()}
	} else if err != nil {
		return err
	}

	res, err := s.RenderSVG(ctx, &payload.Input)
	if err != nil && appErr.Retryable(err) {
		logger.L().Warn("render job will be retried", zap.String("job_id", job.ID), zap.Error(err))
		return err
	}

	job.UpdatedAt = s.now().UTC()
	if err != nil {
		job.Status, job.Error = JobFailed, err.Error()
		metrics.RecordRenderJob("failed")
		logger.L().Error("render job failed", zap.String("job_id", job.ID), zap.Error(err))
	} else {
		job.Status, job.SVG = JobDone, string(res.SVG)
		job.RuntimeChecksum, job.ThemeChecksum = res.RuntimeChecksum, res.ThemeChecksum
		metrics.RecordRenderJob("done")
		logger.L().Info("render job done", zap.String("job_id", job.ID))
	}

	raw, err := json.Marshal(job)
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "encode render job")
	}
	return s.jobs.Set(ctx, jobKey(job.ID), raw, s.opts.JobTTL)
}
