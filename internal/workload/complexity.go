// Package workload derives study workload points from configuration and
// logged coordinator effort, and allocates them to coordinators.
package workload

import (
	"fmt"

	"github.com/sells-group/trial-workload/internal/apperr"
	"github.com/sells-group/trial-workload/internal/model"
)

var lifecycleWeights = map[model.Lifecycle]float64{
	model.LifecycleStartUp:  1.15,
	model.LifecycleActive:   1.0,
	model.LifecycleFollowUp: 0.5,
	model.LifecycleCloseOut: 0.25,
}

var recruitmentWeights = map[model.Recruitment]float64{
	model.RecruitmentEnrolling:       1.0,
	model.RecruitmentPaused:          0.25,
	model.RecruitmentClosedToAccrual: 0,
	model.RecruitmentOnHold:          0,
}

// LifecycleWeight returns the weight of a lifecycle stage.
func LifecycleWeight(l model.Lifecycle) (float64, error) {
	w, ok := lifecycleWeights[l]
	if !ok {
		return 0, apperr.Invalid("workload: lifecycle weight", "lifecycle", fmt.Sprintf("unknown value %q", l))
	}
	return w, nil
}

// RecruitmentWeight returns the weight of a recruitment status.
func RecruitmentWeight(r model.Recruitment) (float64, error) {
	w, ok := recruitmentWeights[r]
	if !ok {
		return 0, apperr.Invalid("workload: recruitment weight", "recruitment", fmt.Sprintf("unknown value %q", r))
	}
	return w, nil
}

// Weigh applies the lifecycle and recruitment weights to raw points.
func Weigh(raw float64, l model.Lifecycle, r model.Recruitment) (model.Points, error) {
	lw, err := LifecycleWeight(l)
	if err != nil {
		return model.Points{}, err
	}
	rw, err := RecruitmentWeight(r)
	if err != nil {
		return model.Points{}, err
	}
	return model.Points{Raw: raw, Weighted: raw * lw * rw}, nil
}

// Base is the protocol score scaled by the configured multipliers.
func Base(p model.StudyWorkloadProfile) float64 {
	return p.ProtocolScore * p.ScreeningMultiplier * p.QueryMultiplier
}

// Baseline adds the fixed meeting/admin burden to Base.
func Baseline(p model.StudyWorkloadProfile) float64 {
	return Base(p) + p.MeetingAdminPoints
}

// Now returns the configuration-only workload of a study.
func Now(p model.StudyWorkloadProfile) (model.Points, error) {
	return Weigh(Baseline(p), p.Lifecycle, p.Recruitment)
}
