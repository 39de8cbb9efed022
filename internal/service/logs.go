package service

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/trial-workload/internal/apperr"
	"github.com/sells-group/trial-workload/internal/model"
	"github.com/sells-group/trial-workload/internal/resilience"
	"github.com/sells-group/trial-workload/internal/store"
)

// GetCoordinatorMetrics returns a coordinator's recent weekly logs (newest
// first) and study assignments.
func (s *Service) GetCoordinatorMetrics(ctx context.Context, coordinatorID string) (model.CoordinatorMetrics, error) {
	if err := s.requireCoordinator(ctx, coordinatorID); err != nil {
		return model.CoordinatorMetrics{}, err
	}

	out := model.CoordinatorMetrics{CoordinatorID: coordinatorID}
	filter := store.LogFilter{CoordinatorID: coordinatorID}
	if s.historyWeeks > 0 {
		filter.From = s.currentWeek().AddWeeks(1 - s.historyWeeks)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.Logs, err = resilience.Call(gctx, s.guard, "service: list weekly logs",
			func(ctx context.Context) ([]model.CoordinatorWeeklyLog, error) {
				return s.store.ListWeeklyLogs(ctx, filter)
			})
		return err
	})
	g.Go(func() error {
		var err error
		out.Assignments, err = resilience.Call(gctx, s.guard, "service: list assignments",
			func(ctx context.Context) ([]model.Assignment, error) {
				return s.store.ListAssignments(ctx, store.AssignmentFilter{CoordinatorID: coordinatorID})
			})
		return err
	})
	if err := g.Wait(); err != nil {
		return model.CoordinatorMetrics{}, err
	}
	if out.Logs == nil {
		out.Logs = []model.CoordinatorWeeklyLog{}
	}
	if out.Assignments == nil {
		out.Assignments = []model.Assignment{}
	}
	return out, nil
}

// SubmitCoordinatorWeeklyLog records a coordinator's effort for a week. The
// week is normalized to its Monday; resubmitting a week replaces it.
func (s *Service) SubmitCoordinatorWeeklyLog(ctx context.Context, coordinatorID string, weekStart model.Week, totals model.EffortTotals, breakdown []model.StudyEffort) (*model.CoordinatorWeeklyLog, error) {
	l := model.CoordinatorWeeklyLog{
		CoordinatorID: coordinatorID,
		EffortTotals:  totals,
		Breakdown:     breakdown,
	}
	if !weekStart.IsZero() {
		l.WeekStart = model.WeekOf(weekStart.Time)
	}
	if err := model.ValidateWeeklyLog(l, s.now()); err != nil {
		return nil, err
	}

	if err := s.requireCoordinator(ctx, coordinatorID); err != nil {
		return nil, err
	}
	for _, e := range breakdown {
		studyID := e.StudyID
		if _, err := resilience.Call(ctx, s.guard, "service: get study",
			func(ctx context.Context) (*model.Study, error) { return s.store.GetStudy(ctx, studyID) }); err != nil {
			return nil, err
		}
	}

	saved, err := resilience.Call(ctx, s.guard, "service: upsert weekly log",
		func(ctx context.Context) (*model.CoordinatorWeeklyLog, error) { return s.store.UpsertWeeklyLog(ctx, l) })
	if err != nil {
		return nil, err
	}
	s.invalidate()

	zap.L().Info("weekly log submitted",
		zap.String("coordinator_id", coordinatorID),
		zap.Stringer("week_start", saved.WeekStart),
		zap.Float64("total_hours", saved.TotalHours()),
		zap.Int("breakdown_entries", len(saved.Breakdown)),
	)
	return saved, nil
}

func (s *Service) requireCoordinator(ctx context.Context, coordinatorID string) error {
	if coordinatorID == "" {
		return apperr.Invalid("service: coordinator", "coordinatorId", "is required")
	}
	ok, err := resilience.Call(ctx, s.guard, "service: coordinator exists",
		func(ctx context.Context) (bool, error) { return s.store.CoordinatorExists(ctx, coordinatorID) })
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("service: coordinator", "coordinator", coordinatorID)
	}
	return nil
}
