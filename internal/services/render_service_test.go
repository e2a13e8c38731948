package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/graphrapids/graphapi/internal/cache"
	"github.com/graphrapids/graphapi/internal/models"
	"github.com/graphrapids/graphapi/internal/render"
	"github.com/graphrapids/graphapi/internal/resolver"
	appErr "github.com/graphrapids/graphapi/pkg/errors"
)

const laidOutSVG = `<?xml version="1.0" encoding="UTF-8" standalone="no"?>
<svg xmlns="http://www.w3.org/2000/svg" width="200" height="100"><g id="graph0"></g></svg>`

const graphYAML = `
nodes:
  - id: api
    type: service
  - id: db
    type: database
links:
  - from: api
    to: db
    type: dependency
`

type mockLayouter struct{ mock.Mock }

func (m *mockLayouter) Layout(ctx context.Context, c *render.Canvas) ([]byte, error) {
	args := m.Called(ctx, c)
	out, _ := args.Get(0).([]byte)
	return out, args.Error(1)
}

type mockQueue struct{ mock.Mock }

func (m *mockQueue) EnqueueRender(ctx context.Context, payload *RenderJobPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

func newRenderService(t *testing.T, layout render.Layouter, jobs cache.Cache, queue JobQueue) RenderService {
	t.Helper()
	_, cfg := seeded(t)
	return NewRenderService(cfg, layout, render.NewSVGRenderer(), jobs, queue, RenderOptions{BreakerFailures: 2})
}

func TestRenderSVGLaysOutOnce(t *testing.T) {
	lay := &mockLayouter{}
	lay.On("Layout", mock.Anything, mock.Anything).Return([]byte(laidOutSVG), nil)
	svc := newRenderService(t, lay, nil, nil)

	res, err := svc.RenderSVG(context.Background(), &RenderInput{YAML: graphYAML})
	require.NoError(t, err)
	lay.AssertNumberOfCalls(t, "Layout", 1)

	out := string(res.SVG)
	require.Contains(t, out, `data-graph-type="default"`)
	require.Contains(t, out, `data-runtime-checksum="`+res.RuntimeChecksum+`"`)
	require.Contains(t, out, "font-family")
	require.NotContains(t, out, "<?xml")
	require.Equal(t, 1, res.GraphTypeVersion)
	require.NotEmpty(t, res.ThemeChecksum)

	_, err = svc.RenderSVG(context.Background(), &RenderInput{YAML: graphYAML})
	require.NoError(t, err)
	lay.AssertNumberOfCalls(t, "Layout", 2)
}

func TestRenderSVGPassesEnrichedCanvas(t *testing.T) {
	lay := &mockLayouter{}
	lay.On("Layout", mock.Anything, mock.MatchedBy(func(c *render.Canvas) bool {
		return len(c.Nodes) == 2 && c.Nodes[1].Icon == "mdi:database" && c.Edges[0].Type == "dependency"
	})).Return([]byte(laidOutSVG), nil).Once()
	svc := newRenderService(t, lay, nil, nil)

	_, err := svc.RenderSVG(context.Background(), &RenderInput{YAML: graphYAML})
	require.NoError(t, err)
	lay.AssertExpectations(t)
}

func TestRenderSVGRejectsBadInputWithoutLayout(t *testing.T) {
	lay := &mockLayouter{}
	svc := newRenderService(t, lay, nil, nil)

	_, err := svc.RenderSVG(context.Background(), &RenderInput{YAML: "nodes:\n  - id: x\n    type: spaceship\n"})
	require.True(t, appErr.IsCode(err, appErr.CodeInvalid))

	_, err = svc.RenderSVG(context.Background(), &RenderInput{YAML: graphYAML, ThemeID: "missing"})
	require.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	_, err = svc.RenderSVG(context.Background(), &RenderInput{YAML: graphYAML, GraphTypeID: "missing"})
	require.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	lay.AssertNotCalled(t, "Layout", mock.Anything, mock.Anything)
}

func TestRenderSVGWithoutDefaultTheme(t *testing.T) {
	reg := openRegistry(t)
	ctx := context.Background()
	for _, sd := range defaultSeeds() {
		if sd.kind == models.KindTheme {
			continue
		}
		_, err := reg.MustStore(sd.kind).Create(ctx, DefaultID, sd.content)
		require.NoError(t, err)
	}

	lay := &mockLayouter{}
	lay.On("Layout", mock.Anything, mock.Anything).Return([]byte(laidOutSVG), nil)
	svc := NewRenderService(NewConfigService(reg, resolver.New(reg)), lay, render.NewSVGRenderer(), nil, nil, RenderOptions{})

	res, err := svc.RenderSVG(ctx, &RenderInput{YAML: graphYAML, Stage: models.StageDraft})
	require.NoError(t, err)
	require.NotContains(t, string(res.SVG), "<style>")
	require.Empty(t, res.ThemeChecksum)

	_, err = svc.RenderSVG(ctx, &RenderInput{YAML: graphYAML, Stage: models.StageDraft, ThemeID: DefaultID})
	require.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}

func TestLayoutBreakerOpens(t *testing.T) {
	lay := &mockLayouter{}
	lay.On("Layout", mock.Anything, mock.Anything).Return(nil, errors.New("dot crashed"))
	svc := newRenderService(t, lay, nil, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.RenderSVG(ctx, &RenderInput{YAML: graphYAML})
		require.Error(t, err)
		require.False(t, appErr.IsCode(err, appErr.CodeUnavailable))
	}

	_, err := svc.RenderSVG(ctx, &RenderInput{YAML: graphYAML})
	require.True(t, appErr.IsCode(err, appErr.CodeUnavailable))
	lay.AssertNumberOfCalls(t, "Layout", 2)
}

func TestSubmitJobDeduplicates(t *testing.T) {
	lay := &mockLayouter{}
	lay.On("Layout", mock.Anything, mock.Anything).Return([]byte(laidOutSVG), nil)
	q := &mockQueue{}
	q.On("EnqueueRender", mock.Anything, mock.Anything).Return(nil).Once()
	jobs := cache.NewMemoryCache()
	svc := newRenderService(t, lay, jobs, q)
	ctx := context.Background()

	first, err := svc.SubmitJob(ctx, &RenderInput{YAML: graphYAML})
	require.NoError(t, err)
	require.Equal(t, JobPending, first.Status)

	second, err := svc.SubmitJob(ctx, &RenderInput{YAML: graphYAML})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	q.AssertExpectations(t)

	payload := q.Calls[0].Arguments.Get(1).(*RenderJobPayload)
	require.Equal(t, first.ID, payload.JobID)
	require.Equal(t, 1, payload.Input.Version)

	require.NoError(t, svc.ProcessJob(ctx, payload))
	done, err := svc.GetJob(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, JobDone, done.Status)
	require.Contains(t, done.SVG, "<svg")
	lay.AssertNumberOfCalls(t, "Layout", 1)
}

func TestSubmitJobEnqueueFailureReleasesRecord(t *testing.T) {
	lay := &mockLayouter{}
	q := &mockQueue{}
	q.On("EnqueueRender", mock.Anything, mock.Anything).Return(appErr.New(appErr.CodeUnavailable, "redis down")).Once()
	q.On("EnqueueRender", mock.Anything, mock.Anything).Return(nil).Once()
	svc := newRenderService(t, lay, cache.NewMemoryCache(), q)
	ctx := context.Background()

	_, err := svc.SubmitJob(ctx, &RenderInput{YAML: graphYAML})
	require.True(t, appErr.IsCode(err, appErr.CodeUnavailable))

	job, err := svc.SubmitJob(ctx, &RenderInput{YAML: graphYAML})
	require.NoError(t, err)
	require.Equal(t, JobPending, job.Status)
	q.AssertNumberOfCalls(t, "EnqueueRender", 2)
}

func TestProcessJobRecordsPermanentFailure(t *testing.T) {
	lay := &mockLayouter{}
	lay.On("Layout", mock.Anything, mock.Anything).Return(nil, appErr.New(appErr.CodeInvalid, "cycle in ports"))
	svc := newRenderService(t, lay, cache.NewMemoryCache(), &mockQueue{})
	ctx := context.Background()

	require.NoError(t, svc.ProcessJob(ctx, &RenderJobPayload{JobID: "rj-1", Input: RenderInput{YAML: graphYAML}}))
	job, err := svc.GetJob(ctx, "rj-1")
	require.NoError(t, err)
	require.Equal(t, JobFailed, job.Status)
	require.Contains(t, job.Error, "cycle in ports")
}

func TestAsyncDisabled(t *testing.T) {
	svc := newRenderService(t, &mockLayouter{}, nil, nil)
	_, err := svc.SubmitJob(context.Background(), &RenderInput{YAML: graphYAML})
	require.True(t, appErr.IsCode(err, appErr.CodeUnavailable))

	_, err = svc.GetJob(context.Background(), "rj-0")
	require.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}
