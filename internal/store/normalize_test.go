package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/trial-workload/internal/model"
)

func TestDecodeBreakdown(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []model.StudyEffort
	}{
		{"empty", ``, nil},
		{"null", `null`, nil},
		{"empty array", `[]`, nil},
		{
			name: "camel",
			raw:  `[{"studyId":"S-1","meetingHours":1,"screeningHours":2,"queryHours":3}]`,
			want: []model.StudyEffort{{StudyID: "S-1", MeetingHours: 1, ScreeningHours: 2, QueryHours: 3}},
		},
		{
			name: "snake",
			raw:  `[{"study_id":"S-2","query_hours":1.5,"notes":"x"}]`,
			want: []model.StudyEffort{{StudyID: "S-2", QueryHours: 1.5, Notes: "x"}},
		},
		{
			name: "camel wins",
			raw:  `[{"study_id":"old","studyId":"S-3"}]`,
			want: []model.StudyEffort{{StudyID: "S-3"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeBreakdown([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeBreakdown_Invalid(t *testing.T) {
	_, err := decodeBreakdown([]byte(`{"not":"an array"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store: decode breakdown")
}

func TestDecodeRubric(t *testing.T) {
	sel, err := decodeRubric([]byte(`{"trial_type":"observational","visitVolume":"high","procedural_intensity":"low"}`))
	require.NoError(t, err)
	assert.Equal(t, model.RubricSelection{TrialType: "observational", VisitVolume: "high", ProceduralIntensity: "low"}, sel)

	sel, err = decodeRubric(nil)
	require.NoError(t, err)
	assert.Equal(t, model.RubricSelection{}, sel)
}

func TestDecodeVisitWeights_KeepsKeys(t *testing.T) {
	w, err := decodeVisitWeights([]byte(`{"follow_up_visit":0.5,"Screening":2}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"follow_up_visit": 0.5, "Screening": 2}, w)

	w, err = decodeVisitWeights([]byte(`null`))
	require.NoError(t, err)
	assert.NotNil(t, w)
	assert.Empty(t, w)
}

func TestCamelCase(t *testing.T) {
	assert.Equal(t, "studyId", camelCase("study_id"))
	assert.Equal(t, "screeningStudyCount", camelCase("screening_study_count"))
	assert.Equal(t, "already", camelCase("already"))
	assert.Equal(t, "trailing", camelCase("trailing_"))
}

func TestLoadFixtures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
fixtures:
  studies:
    - id: S-1
      name: Cardio
      lifecycle: start_up
    - id: S-2
  coordinators:
    - id: C-1
      name: Ana
  assignments:
    - coordinator_id: C-1
      study_id: S-1
      joined_at: 2026-01-05T00:00:00Z
  visit_schedule:
    - study_id: S-1
      visit_type: Screening
`), 0o644))

	f, err := LoadFixtures(path)
	require.NoError(t, err)
	require.Len(t, f.Studies, 2)
	assert.Equal(t, model.LifecycleStartUp, f.Studies[0].Lifecycle)
	assert.Equal(t, model.LifecycleActive, f.Studies[1].Lifecycle)
	assert.Equal(t, model.RecruitmentEnrolling, f.Studies[1].Recruitment)
	require.Len(t, f.Assignments, 1)
	assert.NotEmpty(t, f.Assignments[0].ID)
	assert.Equal(t, 2026, f.Assignments[0].JoinedAt.Year())
	assert.Len(t, f.visitRows(), 1)

	again, err := LoadFixtures(path)
	require.NoError(t, err)
	assert.Equal(t, f.Assignments[0].ID, again.Assignments[0].ID)
}

func TestLoadFixtures_Invalid(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFixtures(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store: read fixtures")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("fixtures:\n  studies:\n    - id: S-1\n      lifecycle: paused\n"), 0o644))
	_, err = LoadFixtures(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown lifecycle")
}
