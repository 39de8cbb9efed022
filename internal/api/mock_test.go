package api

import (
	"context"

	"github.com/sells-group/trial-workload/internal/cache"
	"github.com/sells-group/trial-workload/internal/model"
	"github.com/sells-group/trial-workload/internal/rubric"
)

// mockWorkload implements Workload for testing.
type mockWorkload struct {
	settings  model.StudyWorkloadProfile
	metrics   model.CoordinatorMetrics
	portfolio model.Portfolio
	trend     model.Trend
	err       error
	pingErr   error

	lastStudyID     string
	lastUpdate      model.PartialProfile
	lastApply       bool
	lastWeek        model.Week
	lastTotals      model.EffortTotals
	lastBreakdown   []model.StudyEffort
	lastInclude     bool
	submittedFor    []string
	scoredSelection model.RubricSelection
}

func (m *mockWorkload) GetStudyWorkloadSettings(_ context.Context, studyID string) (model.StudyWorkloadProfile, error) {
	m.lastStudyID = studyID
	return m.settings, m.err
}

func (m *mockWorkload) SetStudyWorkloadSettings(_ context.Context, studyID string, update model.PartialProfile, applyRubric bool) (model.StudyWorkloadProfile, error) {
	m.lastStudyID = studyID
	m.lastUpdate = update
	m.lastApply = applyRubric
	return m.settings, m.err
}

func (m *mockWorkload) GetCoordinatorMetrics(_ context.Context, coordinatorID string) (model.CoordinatorMetrics, error) {
	m.metrics.CoordinatorID = coordinatorID
	return m.metrics, m.err
}

func (m *mockWorkload) SubmitCoordinatorWeeklyLog(_ context.Context, coordinatorID string, weekStart model.Week, totals model.EffortTotals, breakdown []model.StudyEffort) (*model.CoordinatorWeeklyLog, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.submittedFor = append(m.submittedFor, coordinatorID)
	m.lastWeek = weekStart
	m.lastTotals = totals
	m.lastBreakdown = breakdown
	return &model.CoordinatorWeeklyLog{
		ID:            "log-1",
		CoordinatorID: coordinatorID,
		WeekStart:     model.WeekOf(weekStart.Time),
		EffortTotals:  totals,
		Breakdown:     breakdown,
	}, nil
}

func (m *mockWorkload) GetPortfolioWorkload(_ context.Context, includeBreakdown bool) (model.Portfolio, error) {
	m.lastInclude = includeBreakdown
	return m.portfolio, m.err
}

func (m *mockWorkload) GetWorkloadTrend(_ context.Context) (model.Trend, error) {
	return m.trend, m.err
}

func (m *mockWorkload) ScoreRubric(sel model.RubricSelection) (rubric.Result, error) {
	m.scoredSelection = sel
	s, err := rubric.New(nil)
	if err != nil {
		return rubric.Result{}, err
	}
	return s.Score(sel)
}

func (m *mockWorkload) RubricTables() rubric.Tables {
	return rubric.DefaultTables()
}

func (m *mockWorkload) CacheStats() map[string]cache.Stats {
	return map[string]cache.Stats{"portfolio": {MaxEntries: 64}}
}

func (m *mockWorkload) Ping(_ context.Context) error {
	return m.pingErr
}
