package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"

	"github.com/graphrapids/graphapi/internal/api/handlers"
	mw "github.com/graphrapids/graphapi/internal/api/middleware"
	"github.com/graphrapids/graphapi/internal/models"
	"github.com/graphrapids/graphapi/pkg/metrics"
)

// KindSegments maps URL path segments to collection kinds.
var KindSegments = map[string]models.Kind{
	"layout-sets": models.KindLayoutSet,
	"link-sets":   models.KindLinkSet,
	"icon-sets":   models.KindIconSet,
	"themes":      models.KindTheme,
	"graph-types": models.KindGraphType,
}

type Dependencies struct {
	Readiness          handlers.Readiness
	CollectionsHandler *handlers.CollectionsHandler
	DerivedHandler     *handlers.DerivedHandler
	RenderHandler      *handlers.RenderHandler

	CORSOrigins    []string
	MaxBodyBytes   int64
	RateLimitRPS   float64
	RateLimitBurst int
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()

	// Built-in middleware
	r.Use(mw.RequestID)
	r.Use(mw.Recovery)
	r.Use(mw.Logging)
	r.Use(mw.Metrics)
	r.Use(mw.CORS(dep.CORSOrigins))
	if dep.RateLimitRPS > 0 {
		r.Use(mw.RateLimit(dep.RateLimitRPS, dep.RateLimitBurst))
	}
	if dep.MaxBodyBytes > 0 {
		r.Use(chimid.RequestSize(dep.MaxBodyBytes))
	}
	r.Use(chimid.Compress(5))

	// Health endpoints
	hh := handlers.NewHealthHandler(dep.Readiness)
	r.Get("/healthz", hh.Liveness)
	r.Get("/readyz", hh.Readiness)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Post("/render/svg", dep.RenderHandler.SVG)

	r.Route("/api/v1", func(api chi.Router) {
		for seg, kind := range KindSegments {
			api.Route("/"+seg, func(kr chi.Router) {
				ch := dep.CollectionsHandler
				kr.Get("/", ch.List(kind))
				kr.Post("/", ch.Create(kind))
				kr.Route("/{id}", func(ir chi.Router) {
					ir.Get("/", ch.Get(kind))
					ir.Put("/", ch.Replace(kind))
					ir.Get("/draft", ch.Revision(kind, models.StageDraft))
					ir.Get("/published", ch.Revision(kind, models.StagePublished))
					ir.Put("/entries/{key}", ch.UpsertEntry(kind))
					ir.Delete("/entries/{key}", ch.DeleteEntry(kind))
					ir.Post("/publish", ch.Publish(kind))
					ir.Get("/bundle", ch.Bundle(kind))

					switch kind {
					case models.KindGraphType:
						ir.Get("/runtime", dep.DerivedHandler.Runtime)
						ir.Get("/catalog", dep.DerivedHandler.Catalog)
					case models.KindTheme:
						ir.Get("/css", dep.DerivedHandler.ThemeCSS)
					}
				})
				if kind == models.KindIconSet {
					kr.Post("/resolve", dep.DerivedHandler.ResolveIcons)
				}
			})
		}

		api.Route("/render", func(rr chi.Router) {
			rr.Post("/svg", dep.RenderHandler.SVG)
			rr.Post("/jobs", dep.RenderHandler.SubmitJob)
			rr.Get("/jobs/{id}", dep.RenderHandler.GetJob)
		})
	})

	return r
}
