package model

import "time"

// StudyEffort is one study's share of a coordinator's weekly log.
type StudyEffort struct {
	StudyID        string  `json:"studyId" validate:"required"`
	MeetingHours   float64 `json:"meetingHours" validate:"finite,gte=0"`
	ScreeningHours float64 `json:"screeningHours" validate:"finite,gte=0"`
	QueryHours     float64 `json:"queryHours" validate:"finite,gte=0"`
	Notes          string  `json:"notes,omitempty"`
}

// TotalHours returns the sum of the entry's hour categories.
func (e StudyEffort) TotalHours() float64 {
	return e.MeetingHours + e.ScreeningHours + e.QueryHours
}

// EffortTotals are the top-level figures of a weekly submission.
type EffortTotals struct {
	MeetingHours        float64 `json:"meetingHours" validate:"finite,gte=0"`
	ScreeningHours      float64 `json:"screeningHours" validate:"finite,gte=0"`
	ScreeningStudyCount int     `json:"screeningStudyCount" validate:"gte=0"`
	QueryHours          float64 `json:"queryHours" validate:"finite,gte=0"`
	QueryStudyCount     int     `json:"queryStudyCount" validate:"gte=0"`
	Notes               string  `json:"notes,omitempty"`
}

// CoordinatorWeeklyLog is one coordinator's self-reported effort for a week.
// The top-level totals are authoritative; Breakdown is an optional
// per-study decomposition.
type CoordinatorWeeklyLog struct {
	ID            string `json:"id,omitempty"`
	CoordinatorID string `json:"coordinatorId" validate:"required"`
	WeekStart     Week   `json:"weekStart"`
	EffortTotals
	Breakdown []StudyEffort `json:"breakdown,omitempty" validate:"dive"`
	CreatedAt time.Time     `json:"createdAt,omitempty"`
	UpdatedAt time.Time     `json:"updatedAt,omitempty"`
}

// TotalHours returns the sum of the log's top-level hour categories.
func (l CoordinatorWeeklyLog) TotalHours() float64 {
	return l.MeetingHours + l.ScreeningHours + l.QueryHours
}

// Assignment links a coordinator to a study.
type Assignment struct {
	ID            string    `json:"id"`
	CoordinatorID string    `json:"coordinatorId"`
	StudyID       string    `json:"studyId"`
	Role          string    `json:"role,omitempty"`
	JoinedAt      time.Time `json:"joinedAt"`
}

// ActiveDuring reports whether the assignment existed at any point in week w.
// A zero JoinedAt is treated as always active.
func (a Assignment) ActiveDuring(w Week) bool {
	return a.JoinedAt.IsZero() || a.JoinedAt.Before(w.End())
}

// CoordinatorMetrics is the response of a coordinator metrics lookup.
type CoordinatorMetrics struct {
	CoordinatorID string                 `json:"coordinatorId"`
	Logs          []CoordinatorWeeklyLog `json:"logs"`
	Assignments   []Assignment           `json:"assignments"`
}
