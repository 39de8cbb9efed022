// Package model defines the canonical types of the workload engine.
package model

import "time"

// Lifecycle is a study's operational phase.
type Lifecycle string

const (
	LifecycleStartUp  Lifecycle = "start_up"
	LifecycleActive   Lifecycle = "active"
	LifecycleFollowUp Lifecycle = "follow_up"
	LifecycleCloseOut Lifecycle = "close_out"
)

// Lifecycles lists every known lifecycle stage in display order.
var Lifecycles = []Lifecycle{LifecycleStartUp, LifecycleActive, LifecycleFollowUp, LifecycleCloseOut}

// Valid reports whether l is a known lifecycle stage.
func (l Lifecycle) Valid() bool {
	switch l {
	case LifecycleStartUp, LifecycleActive, LifecycleFollowUp, LifecycleCloseOut:
		return true
	}
	return false
}

// Recruitment is a study's enrollment status.
type Recruitment string

const (
	RecruitmentEnrolling       Recruitment = "enrolling"
	RecruitmentPaused          Recruitment = "paused"
	RecruitmentClosedToAccrual Recruitment = "closed_to_accrual"
	RecruitmentOnHold          Recruitment = "on_hold"
)

// Recruitments lists every known recruitment status in display order.
var Recruitments = []Recruitment{RecruitmentEnrolling, RecruitmentPaused, RecruitmentClosedToAccrual, RecruitmentOnHold}

// Valid reports whether r is a known recruitment status.
func (r Recruitment) Valid() bool {
	switch r {
	case RecruitmentEnrolling, RecruitmentPaused, RecruitmentClosedToAccrual, RecruitmentOnHold:
		return true
	}
	return false
}

// Study is the slice of the externally-owned study record the engine reads.
type Study struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Lifecycle   Lifecycle   `json:"lifecycle"`
	Recruitment Recruitment `json:"recruitment"`
}

// RubricSelection holds the five categorical protocol-complexity choices.
// An empty axis means that axis's first (lowest-scoring) option.
type RubricSelection struct {
	TrialType           string `json:"trialType,omitempty" yaml:"trial_type"`
	Phase               string `json:"phase,omitempty" yaml:"phase"`
	SponsorType         string `json:"sponsorType,omitempty" yaml:"sponsor_type"`
	VisitVolume         string `json:"visitVolume,omitempty" yaml:"visit_volume"`
	ProceduralIntensity string `json:"proceduralIntensity,omitempty" yaml:"procedural_intensity"`
}

// StudyWorkloadProfile is the per-study configuration of the complexity model.
type StudyWorkloadProfile struct {
	StudyID             string             `json:"studyId" validate:"required"`
	ProtocolScore       float64            `json:"protocolScore" validate:"finite,gte=0"`
	ScreeningMultiplier float64            `json:"screeningMultiplier" validate:"finite,gte=0"`
	QueryMultiplier     float64            `json:"queryMultiplier" validate:"finite,gte=0"`
	MeetingAdminPoints  float64            `json:"meetingAdminPoints" validate:"finite,gte=0"`
	Lifecycle           Lifecycle          `json:"lifecycle" validate:"lifecycle"`
	Recruitment         Recruitment        `json:"recruitment" validate:"recruitment"`
	Rubric              RubricSelection    `json:"rubric"`
	VisitWeights        map[string]float64 `json:"visitWeights" validate:"dive,keys,required,endkeys,finite,gte=0"`
	UpdatedAt           time.Time          `json:"updatedAt,omitempty"`
}

// DefaultVisitWeight is the weight of a visit type with no explicit entry.
const DefaultVisitWeight = 1.0

// DefaultProfile returns the profile of a study that was never configured.
func DefaultProfile(s Study) StudyWorkloadProfile {
	return StudyWorkloadProfile{
		StudyID:             s.ID,
		ScreeningMultiplier: 1,
		QueryMultiplier:     1,
		Lifecycle:           s.Lifecycle,
		Recruitment:         s.Recruitment,
		VisitWeights:        map[string]float64{},
	}
}

// FillVisitWeights adds a default entry for every scheduled visit type that
// has none. It returns the number of entries added.
func (p *StudyWorkloadProfile) FillVisitWeights(visitTypes []string) int {
	if p.VisitWeights == nil {
		p.VisitWeights = make(map[string]float64, len(visitTypes))
	}
	added := 0
	for _, vt := range visitTypes {
		if vt == "" {
			continue
		}
		if _, ok := p.VisitWeights[vt]; !ok {
			p.VisitWeights[vt] = DefaultVisitWeight
			added++
		}
	}
	return added
}

// PartialProfile is a settings update; nil fields are left unchanged.
type PartialProfile struct {
	ProtocolScore       *float64           `json:"protocolScore,omitempty" validate:"omitempty,finite,gte=0"`
	ScreeningMultiplier *float64           `json:"screeningMultiplier,omitempty" validate:"omitempty,finite,gte=0"`
	QueryMultiplier     *float64           `json:"queryMultiplier,omitempty" validate:"omitempty,finite,gte=0"`
	MeetingAdminPoints  *float64           `json:"meetingAdminPoints,omitempty" validate:"omitempty,finite,gte=0"`
	Lifecycle           *Lifecycle         `json:"lifecycle,omitempty" validate:"omitempty,lifecycle"`
	Recruitment         *Recruitment       `json:"recruitment,omitempty" validate:"omitempty,recruitment"`
	Rubric              *RubricSelection   `json:"rubric,omitempty"`
	VisitWeights        map[string]float64 `json:"visitWeights,omitempty" validate:"omitempty,dive,keys,required,endkeys,finite,gte=0"`
}

// Apply merges the non-nil fields of u onto p. Visit weights are merged
// key by key.
func (u PartialProfile) Apply(p StudyWorkloadProfile) StudyWorkloadProfile {
	if u.ProtocolScore != nil {
		p.ProtocolScore = *u.ProtocolScore
	}
	if u.ScreeningMultiplier != nil {
		p.ScreeningMultiplier = *u.ScreeningMultiplier
	}
	if u.QueryMultiplier != nil {
		p.QueryMultiplier = *u.QueryMultiplier
	}
	if u.MeetingAdminPoints != nil {
		p.MeetingAdminPoints = *u.MeetingAdminPoints
	}
	if u.Lifecycle != nil {
		p.Lifecycle = *u.Lifecycle
	}
	if u.Recruitment != nil {
		p.Recruitment = *u.Recruitment
	}
	if u.Rubric != nil {
		p.Rubric = *u.Rubric
	}
	if len(u.VisitWeights) > 0 {
		merged := make(map[string]float64, len(p.VisitWeights)+len(u.VisitWeights))
		for k, v := range p.VisitWeights {
			merged[k] = v
		}
		for k, v := range u.VisitWeights {
			merged[k] = v
		}
		p.VisitWeights = merged
	}
	return p
}
