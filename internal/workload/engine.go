package workload

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/trial-workload/internal/model"
)

// Inputs is everything the engine needs to evaluate a portfolio.
// Unloadable holds studies whose profile could not be read, keyed by study
// ID; they are reported as excluded.
type Inputs struct {
	AsOf        model.Week
	Profiles    []model.StudyWorkloadProfile
	Names       map[string]string
	Logs        []model.CoordinatorWeeklyLog
	Assignments []model.Assignment
	Unloadable  map[string]error
}

// Engine evaluates study snapshots, coordinator loads and trends. It holds
// no state beyond its tunables.
type Engine struct {
	params Params
}

// NewEngine creates an Engine with the given tunables.
func NewEngine(p Params) *Engine {
	return &Engine{params: p}
}

// Params returns the engine's tunables.
func (e *Engine) Params() Params {
	return e.params
}

// Window returns the completed weeks feeding actuals for a portfolio
// evaluated in week asOf.
func (e *Engine) Window(asOf model.Week) []model.Week {
	return model.TrailingWeeks(asOf, e.params.WindowWeeks)
}

// Snapshot evaluates one study from its profile and aggregated actuals.
func (e *Engine) Snapshot(prof model.StudyWorkloadProfile, sa *StudyActuals, includeBreakdown bool) (model.WorkloadSnapshot, error) {
	now, err := Now(prof)
	if err != nil {
		return model.WorkloadSnapshot{}, err
	}
	actuals, err := Weigh(e.params.ActualsRaw(prof, sa), prof.Lifecycle, prof.Recruitment)
	if err != nil {
		return model.WorkloadSnapshot{}, err
	}
	adj := e.params.Forecast(prof, sa)
	forecast, err := Weigh(adj.Raw, prof.Lifecycle, prof.Recruitment)
	if err != nil {
		return model.WorkloadSnapshot{}, err
	}

	m := model.SnapshotMetrics{
		ScreeningScale:               adj.ScreeningScale,
		QueryScale:                   adj.QueryScale,
		MeetingScale:                 adj.MeetingScale,
		ScreeningMultiplier:          prof.ScreeningMultiplier,
		QueryMultiplier:              prof.QueryMultiplier,
		MeetingAdminPoints:           prof.MeetingAdminPoints,
		ScreeningMultiplierEffective: adj.ScreeningMultiplierEffective,
		QueryMultiplierEffective:     adj.QueryMultiplierEffective,
		MeetingAdminPointsAdjusted:   adj.MeetingAdminPointsAdjusted,
	}
	if sa != nil {
		m.Contributors = sa.Contributors
		m.Entries = sa.Entries
		m.LastWeekStart = sa.LastWeekStart
		m.AvgMeetingHours = sa.AvgMeetingHours
		m.AvgScreeningHours = sa.AvgScreeningHours
		m.AvgQueryHours = sa.AvgQueryHours
		m.AvgScreeningStudyCount = sa.AvgScreeningStudyCount
		m.AvgQueryStudyCount = sa.AvgQueryStudyCount
	}

	snap := model.WorkloadSnapshot{
		StudyID:         prof.StudyID,
		Lifecycle:       prof.Lifecycle,
		Recruitment:     prof.Recruitment,
		Now:             now,
		Actuals:         actuals,
		Forecast:        forecast,
		Metrics:         m,
		Band:            BandFor(forecast.Weighted),
		SetupCompletion: SetupCompletion(prof, m),
	}
	if includeBreakdown && sa != nil {
		snap.Breakdown = append([]model.WeeklyActual(nil), sa.Weeks...)
	}
	return snap, nil
}

// Portfolio evaluates every profile and allocates the results. Profiles
// that fail validation are reported in Excluded instead of failing the
// whole evaluation.
func (e *Engine) Portfolio(in Inputs, includeBreakdown bool) model.Portfolio {
	actuals := Aggregate(in.Logs, in.Assignments, e.Window(in.AsOf), e.params.Apportion)

	out := model.Portfolio{
		AsOf:        in.AsOf,
		Studies:     make([]model.WorkloadSnapshot, 0, len(in.Profiles)),
		GeneratedAt: time.Now().UTC(),
	}
	points := make(map[string]StudyPoints, len(in.Profiles))
	for _, prof := range in.Profiles {
		snap, err := e.evaluate(prof, actuals[prof.StudyID], includeBreakdown)
		if err != nil {
			zap.L().Warn("workload: excluding study",
				zap.String("study_id", prof.StudyID),
				zap.Error(err),
			)
			out.Excluded = append(out.Excluded, model.ExcludedStudy{StudyID: prof.StudyID, Reason: err.Error()})
			continue
		}
		snap.StudyName = in.Names[prof.StudyID]
		out.Studies = append(out.Studies, snap)
		points[prof.StudyID] = StudyPoints{Forecast: snap.Forecast.Weighted, Actual: snap.Actuals.Weighted}
	}

	for _, id := range sortedKeys(in.Unloadable) {
		out.Excluded = append(out.Excluded, model.ExcludedStudy{
			StudyID: id,
			Reason:  "profile unreadable: " + in.Unloadable[id].Error(),
		})
	}

	sort.SliceStable(out.Studies, func(i, j int) bool {
		a, b := out.Studies[i], out.Studies[j]
		if a.Forecast.Weighted != b.Forecast.Weighted {
			return a.Forecast.Weighted > b.Forecast.Weighted
		}
		return a.StudyID < b.StudyID
	})

	alloc := Allocate(points, e.activeAssignments(in.Assignments, in.AsOf))
	out.Coordinators = alloc.Coordinators
	out.Unallocated = alloc.Unallocated
	out.TrendPct = PortfolioTrend(out.Studies)
	return out
}

// Trend returns one point per completed week before in.AsOf, oldest first.
// Actual points use only that week's logs; forecast points use the window
// preceding that week.
func (e *Engine) Trend(in Inputs) []model.TrendPoint {
	n := e.params.TrendWeeks
	out := make([]model.TrendPoint, 0, n)
	for i := n; i >= 1; i-- {
		w := in.AsOf.AddWeeks(-i)
		week := Aggregate(in.Logs, in.Assignments, []model.Week{w}, e.params.Apportion)
		prior := Aggregate(in.Logs, in.Assignments, e.Window(w), e.params.Apportion)

		pt := model.TrendPoint{WeekStart: w}
		for _, prof := range in.Profiles {
			if model.ValidateProfile(prof) != nil {
				continue
			}
			actual, err := Weigh(e.params.ActualsRaw(prof, week[prof.StudyID]), prof.Lifecycle, prof.Recruitment)
			if err != nil {
				continue
			}
			forecast, err := Weigh(e.params.Forecast(prof, prior[prof.StudyID]).Raw, prof.Lifecycle, prof.Recruitment)
			if err != nil {
				continue
			}
			pt.ActualPoints += actual.Weighted
			pt.ForecastPoints += forecast.Weighted
		}
		out = append(out, pt)
	}
	return out
}

func (e *Engine) evaluate(prof model.StudyWorkloadProfile, sa *StudyActuals, includeBreakdown bool) (model.WorkloadSnapshot, error) {
	if err := model.ValidateProfile(prof); err != nil {
		return model.WorkloadSnapshot{}, err
	}
	return e.Snapshot(prof, sa, includeBreakdown)
}

func sortedKeys(m map[string]error) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// activeAssignments drops assignments that start after week w.
func (e *Engine) activeAssignments(assignments []model.Assignment, w model.Week) []model.Assignment {
	out := make([]model.Assignment, 0, len(assignments))
	for _, a := range assignments {
		if a.ActiveDuring(w) {
			out = append(out, a)
		}
	}
	return out
}
