package workload

import (
	"math"

	"github.com/sells-group/trial-workload/internal/model"
)

// Adjustment is the forecast of one study: per-category drift scales and
// the effective configuration they produce.
type Adjustment struct {
	ScreeningScale               float64
	QueryScale                   float64
	MeetingScale                 float64
	ScreeningMultiplierEffective float64
	QueryMultiplierEffective     float64
	MeetingAdminPointsAdjusted   float64
	Raw                          float64
}

// Forecast nudges the configured multipliers toward observed effort. Each
// category drifts by at most the damping bound; categories without
// evidence keep scale 1, so a study without history forecasts its baseline.
func (p Params) Forecast(prof model.StudyWorkloadProfile, sa *StudyActuals) Adjustment {
	o := p.Observe(sa)
	adj := Adjustment{
		ScreeningScale: p.scale(o.Screening, prof.ScreeningMultiplier, o.HasScreening),
		QueryScale:     p.scale(o.Query, prof.QueryMultiplier, o.HasQuery),
		MeetingScale:   p.scale(o.MeetingPoints, prof.MeetingAdminPoints, o.HasMeeting),
	}
	adj.ScreeningMultiplierEffective = prof.ScreeningMultiplier * adj.ScreeningScale
	adj.QueryMultiplierEffective = prof.QueryMultiplier * adj.QueryScale
	adj.MeetingAdminPointsAdjusted = prof.MeetingAdminPoints * adj.MeetingScale
	adj.Raw = prof.ProtocolScore*adj.ScreeningMultiplierEffective*adj.QueryMultiplierEffective + adj.MeetingAdminPointsAdjusted
	return adj
}

func (p Params) scale(observed, configured float64, has bool) float64 {
	if !has || observed <= 0 || configured <= 0 {
		return 1
	}
	s := 1 + p.Blend*(observed/configured-1)
	lo := math.Max(0, 1-p.DampingBound)
	hi := 1 + p.DampingBound
	return math.Min(math.Max(s, lo), hi)
}
