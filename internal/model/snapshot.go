package model

import "time"

// Points is a workload figure before (Raw) and after (Weighted)
// lifecycle/recruitment weighting.
type Points struct {
	Raw      float64 `json:"raw"`
	Weighted float64 `json:"weighted"`
}

// SnapshotMetrics are the supporting figures of a study snapshot.
type SnapshotMetrics struct {
	Contributors           int     `json:"contributors"`
	Entries                int     `json:"entries"`
	LastWeekStart          Week    `json:"lastWeekStart"`
	AvgMeetingHours        float64 `json:"avgMeetingHours"`
	AvgScreeningHours      float64 `json:"avgScreeningHours"`
	AvgQueryHours          float64 `json:"avgQueryHours"`
	AvgScreeningStudyCount float64 `json:"avgScreeningStudyCount"`
	AvgQueryStudyCount     float64 `json:"avgQueryStudyCount"`

	ScreeningScale               float64 `json:"screeningScale"`
	QueryScale                   float64 `json:"queryScale"`
	MeetingScale                 float64 `json:"meetingScale"`
	ScreeningMultiplier          float64 `json:"screeningMultiplier"`
	QueryMultiplier              float64 `json:"queryMultiplier"`
	MeetingAdminPoints           float64 `json:"meetingAdminPoints"`
	ScreeningMultiplierEffective float64 `json:"screeningMultiplierEffective"`
	QueryMultiplierEffective     float64 `json:"queryMultiplierEffective"`
	MeetingAdminPointsAdjusted   float64 `json:"meetingAdminPointsAdjusted"`
}

// WeeklyActual is one study's rolled-up effort for one week.
type WeeklyActual struct {
	WeekStart      Week    `json:"weekStart"`
	MeetingHours   float64 `json:"meetingHours"`
	ScreeningHours float64 `json:"screeningHours"`
	QueryHours     float64 `json:"queryHours"`
	TotalHours     float64 `json:"totalHours"`
	NotesCount     int     `json:"notesCount"`
	Contributors   int     `json:"contributors"`
}

// WorkloadSnapshot is the derived workload view of one study.
type WorkloadSnapshot struct {
	StudyID         string          `json:"studyId"`
	StudyName       string          `json:"studyName,omitempty"`
	Lifecycle       Lifecycle       `json:"lifecycle"`
	Recruitment     Recruitment     `json:"recruitment"`
	Now             Points          `json:"now"`
	Actuals         Points          `json:"actuals"`
	Forecast        Points          `json:"forecast"`
	Metrics         SnapshotMetrics `json:"metrics"`
	Band            LoadBand        `json:"band"`
	SetupCompletion float64         `json:"setupCompletion"`
	Breakdown       []WeeklyActual  `json:"breakdown,omitempty"`
}

// LoadBand is a qualitative classification of a point total.
type LoadBand string

const (
	BandBalanced LoadBand = "balanced"
	BandElevated LoadBand = "elevated"
	BandHigh     LoadBand = "high"
	BandCritical LoadBand = "critical"
)

// StudyShare is one coordinator's share of one study's points.
type StudyShare struct {
	StudyID       string  `json:"studyId"`
	AssignmentID  string  `json:"assignmentId"`
	Divisor       int     `json:"divisor"`
	Share         float64 `json:"share"`
	BaselineShare float64 `json:"baselineShare"`
}

// CoordinatorLoad is a coordinator's allocated workload.
type CoordinatorLoad struct {
	CoordinatorID string       `json:"coordinatorId"`
	Load          float64      `json:"load"`
	Baseline      float64      `json:"baseline"`
	TrendPct      float64      `json:"trendPct"`
	Band          LoadBand     `json:"band"`
	Studies       []StudyShare `json:"studies"`
}

// ExcludedStudy is a study left out of a portfolio computation.
type ExcludedStudy struct {
	StudyID string `json:"studyId"`
	Reason  string `json:"reason"`
}

// Portfolio is the portfolio-wide workload view.
type Portfolio struct {
	AsOf         Week               `json:"asOf"`
	Studies      []WorkloadSnapshot `json:"studies"`
	Excluded     []ExcludedStudy    `json:"excluded,omitempty"`
	Coordinators []CoordinatorLoad  `json:"coordinators"`
	Unallocated  []string           `json:"unallocated,omitempty"`
	TrendPct     float64            `json:"trendPct"`
	GeneratedAt  time.Time          `json:"generatedAt"`
	Stale        bool               `json:"stale,omitempty"`
}

// TrendPoint is one week of the portfolio trend series.
type TrendPoint struct {
	WeekStart      Week    `json:"weekStart"`
	ActualPoints   float64 `json:"actualPoints"`
	ForecastPoints float64 `json:"forecastPoints"`
}

// Trend is the portfolio trend series.
type Trend struct {
	Points []TrendPoint `json:"points"`
	Stale  bool         `json:"stale,omitempty"`
}
