// Package api serves the workload operations over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/trial-workload/internal/cache"
	"github.com/sells-group/trial-workload/internal/config"
	"github.com/sells-group/trial-workload/internal/model"
	"github.com/sells-group/trial-workload/internal/rubric"
)

// Workload is the set of operations the API exposes.
type Workload interface {
	GetStudyWorkloadSettings(ctx context.Context, studyID string) (model.StudyWorkloadProfile, error)
	SetStudyWorkloadSettings(ctx context.Context, studyID string, update model.PartialProfile, applyRubric bool) (model.StudyWorkloadProfile, error)
	GetCoordinatorMetrics(ctx context.Context, coordinatorID string) (model.CoordinatorMetrics, error)
	SubmitCoordinatorWeeklyLog(ctx context.Context, coordinatorID string, weekStart model.Week, totals model.EffortTotals, breakdown []model.StudyEffort) (*model.CoordinatorWeeklyLog, error)
	GetPortfolioWorkload(ctx context.Context, includeBreakdown bool) (model.Portfolio, error)
	GetWorkloadTrend(ctx context.Context) (model.Trend, error)
	ScoreRubric(sel model.RubricSelection) (rubric.Result, error)
	RubricTables() rubric.Tables
	CacheStats() map[string]cache.Stats
	Ping(ctx context.Context) error
}

// Server holds the API's collaborators.
type Server struct {
	svc     Workload
	server  config.ServerConfig
	auth    config.AuthConfig
	limiter *SubmitLimiter
}

// NewServer creates a Server.
func NewServer(svc Workload, cfg *config.Config) *Server {
	return &Server{
		svc:     svc,
		server:  cfg.Server,
		auth:    cfg.Auth,
		limiter: NewSubmitLimiter(cfg.Server.SubmitRatePerMin, cfg.Server.SubmitBurst),
	}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger)
	if s.server.RequestTimeout > 0 {
		r.Use(middleware.Timeout(time.Duration(s.server.RequestTimeout) * time.Second))
	}
	if len(s.server.CorsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.server.CorsOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/health", s.Health)

	r.Route("/api", func(api chi.Router) {
		api.Use(RequireBearer(s.auth.JWTSecret, s.auth.JWTIssuer))

		api.Route("/rubric", func(rb chi.Router) {
			rb.Get("/options", s.RubricOptions)
			rb.Post("/score", s.ScoreRubric)
		})

		api.Route("/studies/{studyID}/workload-settings", func(st chi.Router) {
			st.Get("/", s.GetSettings)
			st.Put("/", s.PutSettings)
		})

		api.Route("/coordinators/{coordinatorID}", func(c chi.Router) {
			c.Get("/metrics", s.CoordinatorMetrics)
			c.With(s.limiter.Middleware("coordinatorID")).Post("/weekly-logs", s.SubmitWeeklyLog)
		})

		api.Route("/workload", func(wl chi.Router) {
			wl.Get("/portfolio", s.Portfolio)
			wl.Get("/trend", s.Trend)
		})
	})

	return r
}
