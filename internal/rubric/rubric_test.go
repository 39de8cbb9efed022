package rubric

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/trial-workload/internal/apperr"
	"github.com/sells-group/trial-workload/internal/model"
)

func newDefaultScorer(t *testing.T) *Scorer {
	t.Helper()
	s, err := New(nil)
	require.NoError(t, err)
	return s
}

func TestScore_Defaults(t *testing.T) {
	s := newDefaultScorer(t)

	res, err := s.Score(model.RubricSelection{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.RecommendedScore)
	assert.Equal(t, 10, res.MaxScore)
	require.Len(t, res.Axes, 5)
	assert.Equal(t, "observational", res.Axes[0].Option)
}

func TestScore_Sums(t *testing.T) {
	s := newDefaultScorer(t)

	tests := []struct {
		name string
		sel  model.RubricSelection
		want float64
	}{
		{"all max", model.RubricSelection{
			TrialType: "complex_interventional", Phase: "phase_1", SponsorType: "industry",
			VisitVolume: "high", ProceduralIntensity: "intensive",
		}, 10},
		{"mixed", model.RubricSelection{
			TrialType: "interventional", Phase: "phase_3", SponsorType: "industry",
			VisitVolume: "moderate",
		}, 5},
		{"partial with defaults", model.RubricSelection{Phase: "phase_2"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Score(tt.sel)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.RecommendedScore)
			assert.GreaterOrEqual(t, res.RecommendedScore, 0.0)
			assert.LessOrEqual(t, res.RecommendedScore, 10.0)
		})
	}
}

func TestScore_UnknownOption(t *testing.T) {
	s := newDefaultScorer(t)

	_, err := s.Score(model.RubricSelection{Phase: "phase_9", SponsorType: "pharma"})
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	fields := apperr.FieldsOf(err)
	assert.Contains(t, fields, AxisPhase)
	assert.Contains(t, fields, AxisSponsorType)
}

func TestScore_AllCombinationsInRange(t *testing.T) {
	s := newDefaultScorer(t)
	tables := s.Tables()

	for _, tt := range tables[AxisTrialType] {
		for _, ph := range tables[AxisPhase] {
			for _, sp := range tables[AxisSponsorType] {
				for _, vv := range tables[AxisVisitVolume] {
					for _, pi := range tables[AxisProceduralIntensity] {
						res, err := s.Score(model.RubricSelection{
							TrialType: tt.Key, Phase: ph.Key, SponsorType: sp.Key,
							VisitVolume: vv.Key, ProceduralIntensity: pi.Key,
						})
						require.NoError(t, err)
						want := tt.Points + ph.Points + sp.Points + vv.Points + pi.Points
						assert.Equal(t, float64(want), res.RecommendedScore)
						assert.LessOrEqual(t, res.RecommendedScore, 10.0)
					}
				}
			}
		}
	}
}

func TestTablesValidate(t *testing.T) {
	assert.NoError(t, DefaultTables().Validate())

	missing := DefaultTables()
	delete(missing, AxisPhase)
	assert.ErrorContains(t, missing.Validate(), "phase has no options")

	dup := DefaultTables()
	dup[AxisVisitVolume] = append(dup[AxisVisitVolume], Option{Key: "low", Points: 1})
	assert.ErrorContains(t, dup.Validate(), `visit_volume option "low" is duplicated`)

	neg := DefaultTables()
	neg[AxisSponsorType][0].Points = -1
	assert.ErrorContains(t, neg.Validate(), "negative points")

	extra := DefaultTables()
	extra["budget"] = []Option{{Key: "x"}}
	assert.ErrorContains(t, extra.Validate(), `unknown axis "budget"`)
}

func TestLoadTables(t *testing.T) {
	yml := `
rubric:
  trial_type:
    - {key: observational, points: 0}
    - {key: interventional, points: 3}
  phase:
    - {key: late, points: 0}
    - {key: early, points: 2}
  sponsor_type:
    - {key: academic, points: 0}
  visit_volume:
    - {key: low, points: 0}
    - {key: high, points: 2}
  procedural_intensity:
    - {key: minimal, points: 0}
`
	path := filepath.Join(t.TempDir(), "rubric.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	tables, err := LoadTables(path)
	require.NoError(t, err)
	assert.Equal(t, 7, tables.MaxScore())

	s, err := New(tables)
	require.NoError(t, err)
	res, err := s.Score(model.RubricSelection{TrialType: "interventional", Phase: "early"})
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.RecommendedScore)
}

func TestLoadTables_Errors(t *testing.T) {
	_, err := LoadTables(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "rubric: read tables")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rubric: [unclosed"), 0o644))
	_, err = LoadTables(path)
	assert.ErrorContains(t, err, "rubric: parse tables")
}
