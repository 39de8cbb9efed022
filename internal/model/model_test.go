package model

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/trial-workload/internal/apperr"
)

func ptr[T any](v T) *T { return &v }

func validProfile() StudyWorkloadProfile {
	return StudyWorkloadProfile{
		StudyID:             "S-1",
		ProtocolScore:       4,
		ScreeningMultiplier: 1.5,
		QueryMultiplier:     1.2,
		MeetingAdminPoints:  10,
		Lifecycle:           LifecycleActive,
		Recruitment:         RecruitmentEnrolling,
		VisitWeights:        map[string]float64{"screening": 1.5},
	}
}

func TestWeekOf(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{"monday", time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC), "2026-10-12"},
		{"thursday", time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC), "2026-10-12"},
		{"sunday night", time.Date(2026, 10, 18, 23, 59, 0, 0, time.UTC), "2026-10-12"},
		{"year boundary", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), "2025-12-29"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WeekOf(tt.in).String())
		})
	}
}

func TestParseWeek_Normalizes(t *testing.T) {
	w, err := ParseWeek("2026-10-15")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-12", w.String())

	_, err = ParseWeek("15/10/2026")
	assert.Error(t, err)
}

func TestWeek_JSON(t *testing.T) {
	var v struct {
		W Week `json:"w"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"w":"2026-10-14"}`), &v))
	assert.Equal(t, "2026-10-12", v.W.String())

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"w":"2026-10-12"}`, string(out))

	out, err = json.Marshal(struct {
		W Week `json:"w"`
	}{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"w":null}`, string(out))
}

func TestTrailingWeeks(t *testing.T) {
	asOf, err := ParseWeek("2026-10-12")
	require.NoError(t, err)

	weeks := TrailingWeeks(asOf, 4)
	require.Len(t, weeks, 4)
	assert.Equal(t, "2026-09-14", weeks[0].String())
	assert.Equal(t, "2026-10-05", weeks[3].String())
	assert.Nil(t, TrailingWeeks(asOf, 0))
}

func TestValidateProfile_OK(t *testing.T) {
	assert.NoError(t, ValidateProfile(validProfile()))
}

func TestValidateProfile_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(p *StudyWorkloadProfile)
		field string
	}{
		{"negative score", func(p *StudyWorkloadProfile) { p.ProtocolScore = -1 }, "protocolScore"},
		{"negative multiplier", func(p *StudyWorkloadProfile) { p.QueryMultiplier = -0.5 }, "queryMultiplier"},
		{"nan meeting points", func(p *StudyWorkloadProfile) { p.MeetingAdminPoints = math.NaN() }, "meetingAdminPoints"},
		{"unknown lifecycle", func(p *StudyWorkloadProfile) { p.Lifecycle = "paused" }, "lifecycle"},
		{"unknown recruitment", func(p *StudyWorkloadProfile) { p.Recruitment = "open" }, "recruitment"},
		{"missing study", func(p *StudyWorkloadProfile) { p.StudyID = "" }, "studyId"},
		{"negative visit weight", func(p *StudyWorkloadProfile) { p.VisitWeights["baseline"] = -2 }, "visitWeights[baseline]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProfile()
			tt.mut(&p)
			err := ValidateProfile(p)
			require.Error(t, err)
			assert.True(t, apperr.IsValidation(err))
			assert.Contains(t, apperr.FieldsOf(err), tt.field)
		})
	}
}

func TestValidatePartialProfile(t *testing.T) {
	assert.NoError(t, ValidatePartialProfile(PartialProfile{}))
	assert.NoError(t, ValidatePartialProfile(PartialProfile{QueryMultiplier: ptr(0.0)}))

	bad := Lifecycle("archived")
	err := ValidatePartialProfile(PartialProfile{Lifecycle: &bad, ProtocolScore: ptr(-3.0)})
	require.Error(t, err)
	fields := apperr.FieldsOf(err)
	assert.Contains(t, fields, "lifecycle")
	assert.Contains(t, fields, "protocolScore")
}

func TestPartialProfile_Apply(t *testing.T) {
	closeOut := LifecycleCloseOut
	u := PartialProfile{
		ProtocolScore: ptr(7.0),
		Lifecycle:     &closeOut,
		VisitWeights:  map[string]float64{"baseline": 2},
	}
	got := u.Apply(validProfile())

	assert.Equal(t, 7.0, got.ProtocolScore)
	assert.Equal(t, 1.5, got.ScreeningMultiplier)
	assert.Equal(t, LifecycleCloseOut, got.Lifecycle)
	assert.Equal(t, map[string]float64{"screening": 1.5, "baseline": 2}, got.VisitWeights)
}

func TestFillVisitWeights(t *testing.T) {
	p := validProfile()
	added := p.FillVisitWeights([]string{"screening", "baseline", "", "follow_up"})
	assert.Equal(t, 2, added)
	assert.Equal(t, 1.5, p.VisitWeights["screening"])
	assert.Equal(t, DefaultVisitWeight, p.VisitWeights["baseline"])
	assert.Equal(t, DefaultVisitWeight, p.VisitWeights["follow_up"])
	assert.NotContains(t, p.VisitWeights, "")
}

func validLog(t *testing.T) CoordinatorWeeklyLog {
	t.Helper()
	w, err := ParseWeek("2026-10-05")
	require.NoError(t, err)
	return CoordinatorWeeklyLog{
		CoordinatorID: "C-1",
		WeekStart:     w,
		EffortTotals: EffortTotals{
			MeetingHours:        4,
			ScreeningHours:      6,
			ScreeningStudyCount: 2,
			QueryHours:          3,
			QueryStudyCount:     1,
		},
		Breakdown: []StudyEffort{
			{StudyID: "S-1", MeetingHours: 2, ScreeningHours: 4, QueryHours: 3},
			{StudyID: "S-2", MeetingHours: 2, ScreeningHours: 2},
		},
	}
}

var validationNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func TestValidateWeeklyLog_OK(t *testing.T) {
	assert.NoError(t, ValidateWeeklyLog(validLog(t), validationNow))
}

func TestValidateWeeklyLog_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(l *CoordinatorWeeklyLog)
		field string
	}{
		{"negative hours", func(l *CoordinatorWeeklyLog) { l.QueryHours = -1 }, "queryHours"},
		{"negative count", func(l *CoordinatorWeeklyLog) { l.ScreeningStudyCount = -1 }, "screeningStudyCount"},
		{"breakdown exceeds total", func(l *CoordinatorWeeklyLog) { l.Breakdown[0].ScreeningHours = 5 }, "breakdown.screeningHours"},
		{"duplicate study", func(l *CoordinatorWeeklyLog) { l.Breakdown[1].StudyID = "S-1" }, "breakdown[1].studyId"},
		{"missing study id", func(l *CoordinatorWeeklyLog) { l.Breakdown[1].StudyID = "" }, "breakdown[1].studyId"},
		{"future week", func(l *CoordinatorWeeklyLog) { l.WeekStart = l.WeekStart.AddWeeks(3) }, "weekStart"},
		{"not monday", func(l *CoordinatorWeeklyLog) { l.WeekStart = Week{l.WeekStart.AddDate(0, 0, 2)} }, "weekStart"},
		{"zero week", func(l *CoordinatorWeeklyLog) { l.WeekStart = Week{} }, "weekStart"},
		{"no coordinator", func(l *CoordinatorWeeklyLog) { l.CoordinatorID = "" }, "coordinatorId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := validLog(t)
			tt.mut(&l)
			err := ValidateWeeklyLog(l, validationNow)
			require.Error(t, err)
			assert.True(t, apperr.IsValidation(err))
			assert.Contains(t, apperr.FieldsOf(err), tt.field)
		})
	}
}

func TestAssignment_ActiveDuring(t *testing.T) {
	w, err := ParseWeek("2026-10-05")
	require.NoError(t, err)

	joinedMidWeek := Assignment{JoinedAt: time.Date(2026, 10, 8, 0, 0, 0, 0, time.UTC)}
	joinedLater := Assignment{JoinedAt: time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)}

	assert.True(t, joinedMidWeek.ActiveDuring(w))
	assert.False(t, joinedLater.ActiveDuring(w))
	assert.True(t, Assignment{}.ActiveDuring(w))
}
