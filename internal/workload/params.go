package workload

import "github.com/sells-group/trial-workload/internal/config"

// Params are the tunables of the engine.
type Params struct {
	WindowWeeks             int
	TrendWeeks              int
	Apportion               string
	ReferenceScreeningHours float64
	ReferenceQueryHours     float64
	MeetingPointsPerHour    float64
	WeeksPerMonth           float64
	Blend                   float64
	DampingBound            float64
}

// ParamsFrom extracts engine tunables from the application config.
func ParamsFrom(cfg *config.Config) Params {
	return Params{
		WindowWeeks:             cfg.Workload.WindowWeeks,
		TrendWeeks:              cfg.Workload.TrendWeeks,
		Apportion:               cfg.Workload.Apportion,
		ReferenceScreeningHours: cfg.Workload.ReferenceScreeningHours,
		ReferenceQueryHours:     cfg.Workload.ReferenceQueryHours,
		MeetingPointsPerHour:    cfg.Workload.MeetingPointsPerHour,
		WeeksPerMonth:           cfg.Workload.WeeksPerMonth,
		Blend:                   cfg.Forecast.Blend,
		DampingBound:            cfg.Forecast.DampingBound,
	}
}

// DefaultParams returns the built-in tunables.
func DefaultParams() Params {
	return ParamsFrom(config.Defaults())
}
