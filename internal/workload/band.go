package workload

import "github.com/sells-group/trial-workload/internal/model"

// Band thresholds (inclusive lower bounds).
const (
	CriticalThreshold = 300.0
	HighThreshold     = 220.0
	ElevatedThreshold = 150.0
)

// BandFor classifies a point total.
func BandFor(points float64) model.LoadBand {
	switch {
	case points >= CriticalThreshold:
		return model.BandCritical
	case points >= HighThreshold:
		return model.BandHigh
	case points >= ElevatedThreshold:
		return model.BandElevated
	default:
		return model.BandBalanced
	}
}

// TrendPct is the percentage change from baseline to current, or 0 when
// baseline is not positive.
func TrendPct(current, baseline float64) float64 {
	if baseline <= 0 {
		return 0
	}
	return (current - baseline) / baseline * 100
}

// PortfolioTrend compares summed forecast points to summed actual points.
func PortfolioTrend(studies []model.WorkloadSnapshot) float64 {
	var forecast, actual float64
	for _, s := range studies {
		forecast += s.Forecast.Weighted
		actual += s.Actuals.Weighted
	}
	return TrendPct(forecast, actual)
}

const (
	minSetupCompletion = 10.0
	maxSetupCompletion = 100.0
)

// SetupCompletion scores how much of a study's configuration and logging
// is in place, as a percentage clamped to [10, 100].
func SetupCompletion(p model.StudyWorkloadProfile, m model.SnapshotMetrics) float64 {
	checks := []bool{
		p.ProtocolScore > 0,
		p.MeetingAdminPoints > 0,
		p.ScreeningMultiplier != 1,
		p.QueryMultiplier != 1,
		m.Contributors > 0,
		m.AvgScreeningHours > 0,
		m.AvgQueryHours > 0,
		m.AvgMeetingHours > 0,
	}
	done := 0
	for _, ok := range checks {
		if ok {
			done++
		}
	}
	pct := float64(done) / float64(len(checks)) * 100
	if pct < minSetupCompletion {
		return minSetupCompletion
	}
	if pct > maxSetupCompletion {
		return maxSetupCompletion
	}
	return pct
}
