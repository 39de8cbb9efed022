// Package service exposes the workload engine's external operations. It
// reads and writes through a store.Store, guards store calls with retries
// and a circuit breaker, and caches portfolio-wide reads.
package service

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sells-group/trial-workload/internal/apperr"
	"github.com/sells-group/trial-workload/internal/cache"
	"github.com/sells-group/trial-workload/internal/config"
	"github.com/sells-group/trial-workload/internal/model"
	"github.com/sells-group/trial-workload/internal/resilience"
	"github.com/sells-group/trial-workload/internal/rubric"
	"github.com/sells-group/trial-workload/internal/store"
	"github.com/sells-group/trial-workload/internal/workload"
)

// Service implements the workload operations.
type Service struct {
	store        store.Store
	engine       *workload.Engine
	scorer       *rubric.Scorer
	guard        *resilience.Guard
	portfolios   *cache.Cache[model.Portfolio]
	trends       *cache.Cache[[]model.TrendPoint]
	historyWeeks int
	now          func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the wall clock used to pick the current week.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithGuard replaces the resilience guard built from config.
func WithGuard(g *resilience.Guard) Option {
	return func(s *Service) { s.guard = g }
}

// New creates a Service. A nil scorer uses the default rubric tables.
func New(st store.Store, cfg *config.Config, scorer *rubric.Scorer, opts ...Option) (*Service, error) {
	if scorer == nil {
		var err error
		if scorer, err = rubric.New(nil); err != nil {
			return nil, err
		}
	}
	ttl := time.Duration(cfg.Cache.TTLSecs) * time.Second
	fallback := cache.WithFallback(apperr.IsUpstream)
	slot := cache.WithLastKnownSlot(viewOf)

	s := &Service{
		store:        st,
		engine:       workload.NewEngine(workload.ParamsFrom(cfg)),
		scorer:       scorer,
		guard:        resilience.NewGuard(cfg.Resilience),
		portfolios:   cache.New[model.Portfolio](cfg.Cache.MaxEntries, ttl, fallback, slot),
		trends:       cache.New[[]model.TrendPoint](cfg.Cache.MaxEntries, ttl, fallback, slot),
		historyWeeks: cfg.Workload.HistoryWeeks,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CacheStats reports the portfolio and trend cache counters.
func (s *Service) CacheStats() map[string]cache.Stats {
	return map[string]cache.Stats{
		"portfolio": s.portfolios.Stats(),
		"trend":     s.trends.Stats(),
	}
}

// Ping checks that the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.guard.Run(ctx, "service: ping", s.store.Ping)
}

// currentWeek is the week containing the service clock's now.
func (s *Service) currentWeek() model.Week {
	return model.WeekOf(s.now().UTC())
}

// Cache keys are "<view>@<week>". The view is the last-known slot, so an
// outage after a write or a week rollover still serves the previous result.
func cacheKey(view string, w model.Week) string {
	return view + "@" + w.String()
}

func viewOf(key string) string {
	view, _, _ := strings.Cut(key, "@")
	return view
}

// invalidate drops cached portfolio-wide reads after a write. Last-known
// values are kept until the next successful load replaces them.
func (s *Service) invalidate() {
	s.portfolios.Invalidate("")
	s.trends.Invalidate("")
}

// loadInputs fans out the reads the engine needs. Logs are limited to weeks
// in [from, asOf).
func (s *Service) loadInputs(ctx context.Context, asOf, from model.Week) (workload.Inputs, error) {
	var (
		studies     []model.Study
		profiles    store.ProfileList
		logs        []model.CoordinatorWeeklyLog
		assignments []model.Assignment
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		studies, err = resilience.Call(gctx, s.guard, "service: list studies", s.store.ListStudies)
		return err
	})
	g.Go(func() error {
		var err error
		profiles, err = resilience.Call(gctx, s.guard, "service: list profiles", s.store.ListProfiles)
		return err
	})
	g.Go(func() error {
		var err error
		logs, err = resilience.Call(gctx, s.guard, "service: list weekly logs",
			func(ctx context.Context) ([]model.CoordinatorWeeklyLog, error) {
				return s.store.ListWeeklyLogs(ctx, store.LogFilter{From: from, To: asOf})
			})
		return err
	})
	g.Go(func() error {
		var err error
		assignments, err = resilience.Call(gctx, s.guard, "service: list assignments",
			func(ctx context.Context) ([]model.Assignment, error) {
				return s.store.ListAssignments(ctx, store.AssignmentFilter{})
			})
		return err
	})
	if err := g.Wait(); err != nil {
		return workload.Inputs{}, err
	}

	byStudy := make(map[string]model.StudyWorkloadProfile, len(profiles.Profiles))
	for _, p := range profiles.Profiles {
		byStudy[p.StudyID] = p
	}

	in := workload.Inputs{
		AsOf:        asOf,
		Profiles:    make([]model.StudyWorkloadProfile, 0, len(studies)),
		Names:       make(map[string]string, len(studies)),
		Logs:        logs,
		Assignments: assignments,
	}
	for _, st := range studies {
		in.Names[st.ID] = st.Name
		if err, bad := profiles.Undecodable[st.ID]; bad {
			if in.Unloadable == nil {
				in.Unloadable = make(map[string]error)
			}
			in.Unloadable[st.ID] = err
			continue
		}
		p, ok := byStudy[st.ID]
		if !ok {
			p = model.DefaultProfile(st)
		}
		p.Lifecycle = st.Lifecycle
		p.Recruitment = st.Recruitment
		in.Profiles = append(in.Profiles, p)
	}
	return in, nil
}
