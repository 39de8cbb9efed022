package service

import (
	"context"
	"fmt"

	"github.com/sells-group/trial-workload/internal/model"
)

// GetPortfolioWorkload evaluates every study as of the current week and
// allocates the results across coordinators. When the store is unavailable
// the last computed portfolio is returned with Stale set, even if it
// predates a write or belongs to an earlier week.
func (s *Service) GetPortfolioWorkload(ctx context.Context, includeBreakdown bool) (model.Portfolio, error) {
	asOf := s.currentWeek()
	key := cacheKey(fmt.Sprintf("portfolio:%t", includeBreakdown), asOf)

	p, stale, err := s.portfolios.GetOrLoad(ctx, key, func(ctx context.Context) (model.Portfolio, error) {
		window := s.engine.Params().WindowWeeks
		in, err := s.loadInputs(ctx, asOf, asOf.AddWeeks(-window))
		if err != nil {
			return model.Portfolio{}, err
		}
		return s.engine.Portfolio(in, includeBreakdown), nil
	})
	if err != nil {
		return model.Portfolio{}, err
	}
	p.Stale = stale
	return p, nil
}

// GetWorkloadTrend returns the portfolio's weekly actual and forecast points
// for the completed weeks before the current one, oldest first.
func (s *Service) GetWorkloadTrend(ctx context.Context) (model.Trend, error) {
	asOf := s.currentWeek()
	key := cacheKey("trend", asOf)

	points, stale, err := s.trends.GetOrLoad(ctx, key, func(ctx context.Context) ([]model.TrendPoint, error) {
		params := s.engine.Params()
		in, err := s.loadInputs(ctx, asOf, asOf.AddWeeks(-(params.TrendWeeks + params.WindowWeeks)))
		if err != nil {
			return nil, err
		}
		return s.engine.Trend(in), nil
	})
	if err != nil {
		return model.Trend{}, err
	}
	return model.Trend{Points: points, Stale: stale}, nil
}
