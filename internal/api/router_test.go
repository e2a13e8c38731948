package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphrapids/graphapi/internal/api/handlers"
	"github.com/graphrapids/graphapi/internal/cache"
	"github.com/graphrapids/graphapi/internal/registry"
	"github.com/graphrapids/graphapi/internal/render"
	"github.com/graphrapids/graphapi/internal/repository"
	"github.com/graphrapids/graphapi/internal/resolver"
	"github.com/graphrapids/graphapi/internal/services"
	"github.com/graphrapids/graphapi/internal/store"
	"github.com/graphrapids/graphapi/pkg/logger"
)

func TestMain(m *testing.M) {
	_, _ = logger.Init("info", "json")
	os.Exit(m.Run())
}

type staticLayout struct{ calls int }

func (l *staticLayout) Layout(ctx context.Context, c *render.Canvas) ([]byte, error) {
	l.calls++
	return []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"></svg>`), nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string         `json:"code"`
		Meta map[string]any `json:"meta"`
	} `json:"error"`
}

type testServer struct {
	t      *testing.T
	h      http.Handler
	layout *staticLayout
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	reg := registry.New(repository.NewMemoryRepository(), store.Options{})
	require.NoError(t, reg.Open(ctx))
	_, err := services.NewSeeder(reg).EnsureDefaults(ctx)
	require.NoError(t, err)

	cfg := services.NewConfigService(reg, resolver.New(reg))
	lay := &staticLayout{}
	rs := services.NewRenderService(cfg, lay, render.NewSVGRenderer(), cache.NewMemoryCache(), nil, services.RenderOptions{})
	v := handlers.NewValidator()

	h := NewRouter(Dependencies{
		Readiness:          reg,
		CollectionsHandler: handlers.NewCollectionsHandler(cfg, v),
		DerivedHandler:     handlers.NewDerivedHandler(cfg, v),
		RenderHandler:      handlers.NewRenderHandler(rs, v),
		MaxBodyBytes:       1 << 20,
	})
	return &testServer{t: t, h: h, layout: lay}
}

func (s *testServer) do(method, path, contentType, body string) *httptest.ResponseRecorder {
	s.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	s.h.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) json(method, path, body string, wantStatus int) envelope {
	s.t.Helper()
	rr := s.do(method, path, "application/json", body)
	require.Equal(s.t, wantStatus, rr.Code, rr.Body.String())
	var env envelope
	require.NoError(s.t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env
}

func TestCollectionLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	env := s.json(http.MethodPost, "/api/v1/icon-sets", `{"id":"cloud","name":"Cloud","entries":{"bucket":"mdi:bucket"}}`, http.StatusCreated)
	require.True(t, env.Success)

	s.json(http.MethodPost, "/api/v1/icon-sets", `{"id":"cloud","entries":{}}`, http.StatusConflict)

	env = s.json(http.MethodPut, "/api/v1/icon-sets/cloud/entries/vm", `{"value":"mdi:server"}`, http.StatusOK)
	var entity struct {
		DraftVersion int    `json:"draftVersion"`
		Checksum     string `json:"checksum"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &entity))
	require.Equal(t, 2, entity.DraftVersion)

	env = s.json(http.MethodGet, "/api/v1/icon-sets/cloud/published", "", http.StatusNotFound)
	require.Equal(t, "no_published_version", env.Error.Code)

	s.json(http.MethodPost, "/api/v1/icon-sets/cloud/publish", "", http.StatusOK)

	env = s.json(http.MethodGet, "/api/v1/icon-sets/cloud/bundle", "", http.StatusOK)
	var bundle struct {
		Revision struct {
			Version  int    `json:"version"`
			Checksum string `json:"checksum"`
		} `json:"revision"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &bundle))
	require.Equal(t, 1, bundle.Revision.Version)
	require.Equal(t, entity.Checksum, bundle.Revision.Checksum)

	s.json(http.MethodGet, "/api/v1/icon-sets/cloud/published?checksum=deadbeef", "", http.StatusConflict)
	s.json(http.MethodDelete, "/api/v1/icon-sets/cloud/entries/nope", "", http.StatusNotFound)
	s.json(http.MethodPost, "/api/v1/icon-sets", `{"id":"bad","entries":{"x":"not an icon"}}`, http.StatusBadRequest)
	s.json(http.MethodPost, "/api/v1/icon-sets", `{"entries":{}}`, http.StatusBadRequest)
	s.json(http.MethodGet, "/api/v1/icon-sets/cloud/draft?version=x", "", http.StatusBadRequest)

	env = s.json(http.MethodGet, "/api/v1/icon-sets", "", http.StatusOK)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 2)
}

func TestGraphTypeViews(t *testing.T) {
	s := newTestServer(t)

	env := s.json(http.MethodGet, "/api/v1/graph-types/default/runtime", "", http.StatusOK)
	var rt struct {
		RuntimeChecksum string `json:"runtimeChecksum"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &rt))
	require.NotEmpty(t, rt.RuntimeChecksum)

	env = s.json(http.MethodGet, "/api/v1/graph-types/default/catalog", "", http.StatusOK)
	require.Contains(t, string(env.Data), rt.RuntimeChecksum)

	s.json(http.MethodGet, "/api/v1/graph-types/nope/runtime", "", http.StatusNotFound)

	rr := s.do(http.MethodGet, "/api/v1/themes/default/css", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "text/css; charset=utf-8", rr.Header().Get("Content-Type"))
	require.Contains(t, rr.Body.String(), "font-family")

	s.json(http.MethodPost, "/api/v1/icon-sets/resolve", `{"iconSetRefs":[{"id":"default"}]}`, http.StatusOK)
	s.json(http.MethodPost, "/api/v1/icon-sets/resolve", `{"iconSetRefs":[{"id":"ghost"}]}`, http.StatusUnprocessableEntity)
}

func TestUnresolvedReferenceCarriesOwner(t *testing.T) {
	s := newTestServer(t)
	s.json(http.MethodPost, "/api/v1/graph-types", `{"id":"broken","document":{"layoutSetRef":{"id":"missing"},"linkSetRef":{"id":"default"},"iconSetRefs":[{"id":"default"}]}}`, http.StatusCreated)

	env := s.json(http.MethodGet, "/api/v1/graph-types/broken/runtime?stage=draft", "", http.StatusUnprocessableEntity)
	require.Equal(t, "unresolved_reference", env.Error.Code)
}

func TestRenderOverHTTP(t *testing.T) {
	s := newTestServer(t)
	graph := "nodes:\n  - id: api\n    type: service\n  - db\nlinks:\n  - api -> db\n"

	body, err := json.Marshal(map[string]any{"yaml": graph})
	require.NoError(t, err)
	rr := s.do(http.MethodPost, "/render/svg", "application/json", string(body))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, "image/svg+xml", rr.Header().Get("Content-Type"))
	require.NotEmpty(t, rr.Header().Get("X-Runtime-Checksum"))
	require.NotEmpty(t, rr.Header().Get("X-Theme-Checksum"))
	require.True(t, bytes.Contains(rr.Body.Bytes(), []byte(`class="graphrapids"`)))
	require.Equal(t, 1, s.layout.calls)

	rr = s.do(http.MethodPost, "/api/v1/render/svg?graphTypeId=default", "application/yaml", graph)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, 2, s.layout.calls)

	rr = s.do(http.MethodPost, "/render/svg", "application/yaml", "nodes:\n  - id: x\n    type: spaceship\n")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, 2, s.layout.calls)

	// No queue configured.
	rr = s.do(http.MethodPost, "/api/v1/render/jobs", "application/json", string(body))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Equal(t, "1", rr.Header().Get("Retry-After"))
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/healthz", "", "").Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/readyz", "", "").Code)

	rr := s.do(http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "graphapi_http_requests_total")
}
