// Package rubric converts the five protocol-complexity selections into a
// recommended protocol score.
package rubric

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/trial-workload/internal/apperr"
	"github.com/sells-group/trial-workload/internal/model"
)

// Axis names, in scoring order.
const (
	AxisTrialType           = "trial_type"
	AxisPhase               = "phase"
	AxisSponsorType         = "sponsor_type"
	AxisVisitVolume         = "visit_volume"
	AxisProceduralIntensity = "procedural_intensity"
)

// Axes lists the rubric axes in scoring order.
var Axes = []string{AxisTrialType, AxisPhase, AxisSponsorType, AxisVisitVolume, AxisProceduralIntensity}

// Option is one selectable value of an axis.
type Option struct {
	Key    string `yaml:"key" json:"key"`
	Label  string `yaml:"label" json:"label"`
	Points int    `yaml:"points" json:"points"`
}

// Tables maps each axis to its options. The first option of an axis is its
// default.
type Tables map[string][]Option

// DefaultTables returns the built-in option tables (max score 10).
func DefaultTables() Tables {
	return Tables{
		AxisTrialType: {
			{Key: "observational", Label: "Observational", Points: 0},
			{Key: "interventional", Label: "Interventional", Points: 1},
			{Key: "complex_interventional", Label: "Complex interventional", Points: 2},
		},
		AxisPhase: {
			{Key: "phase_4", Label: "Phase IV / post-market", Points: 0},
			{Key: "phase_3", Label: "Phase III", Points: 1},
			{Key: "phase_2", Label: "Phase II", Points: 1},
			{Key: "phase_1", Label: "Phase I / first in human", Points: 2},
		},
		AxisSponsorType: {
			{Key: "investigator_initiated", Label: "Investigator initiated", Points: 0},
			{Key: "cooperative_group", Label: "Cooperative group", Points: 1},
			{Key: "industry", Label: "Industry", Points: 2},
		},
		AxisVisitVolume: {
			{Key: "low", Label: "Low", Points: 0},
			{Key: "moderate", Label: "Moderate", Points: 1},
			{Key: "high", Label: "High", Points: 2},
		},
		AxisProceduralIntensity: {
			{Key: "minimal", Label: "Minimal", Points: 0},
			{Key: "moderate", Label: "Moderate", Points: 1},
			{Key: "intensive", Label: "Intensive", Points: 2},
		},
	}
}

// Validate checks that every axis is present with unique, non-negative options.
func (t Tables) Validate() error {
	var errs []string
	for _, axis := range Axes {
		opts := t[axis]
		if len(opts) == 0 {
			errs = append(errs, fmt.Sprintf("%s has no options", axis))
			continue
		}
		seen := make(map[string]bool, len(opts))
		for _, o := range opts {
			if o.Key == "" {
				errs = append(errs, fmt.Sprintf("%s has an option without a key", axis))
			}
			if seen[o.Key] {
				errs = append(errs, fmt.Sprintf("%s option %q is duplicated", axis, o.Key))
			}
			seen[o.Key] = true
			if o.Points < 0 {
				errs = append(errs, fmt.Sprintf("%s option %q has negative points", axis, o.Key))
			}
		}
	}
	for axis := range t {
		if !isAxis(axis) {
			errs = append(errs, fmt.Sprintf("unknown axis %q", axis))
		}
	}
	if len(errs) > 0 {
		return eris.Errorf("rubric: invalid tables: %s", strings.Join(errs, "; "))
	}
	return nil
}

// MaxScore returns the highest achievable recommended score.
func (t Tables) MaxScore() int {
	total := 0
	for _, axis := range Axes {
		best := 0
		for _, o := range t[axis] {
			if o.Points > best {
				best = o.Points
			}
		}
		total += best
	}
	return total
}

// LoadTables reads option tables from a YAML file with a top-level "rubric" key.
func LoadTables(path string) (Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "rubric: read tables %s", path)
	}
	var wrapper struct {
		Rubric Tables `yaml:"rubric"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "rubric: parse tables")
	}
	if err := wrapper.Rubric.Validate(); err != nil {
		return nil, err
	}
	return wrapper.Rubric, nil
}

// AxisScore is the scored value of one axis.
type AxisScore struct {
	Axis   string `json:"axis"`
	Option string `json:"option"`
	Points int    `json:"points"`
}

// Result is the outcome of scoring a selection.
type Result struct {
	RecommendedScore float64     `json:"recommendedScore"`
	MaxScore         int         `json:"maxScore"`
	Axes             []AxisScore `json:"axes"`
}

// Scorer scores rubric selections against a fixed set of tables.
type Scorer struct {
	tables Tables
	index  map[string]map[string]Option
}

// New builds a Scorer. A nil tables value uses DefaultTables.
func New(tables Tables) (*Scorer, error) {
	if tables == nil {
		tables = DefaultTables()
	}
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	idx := make(map[string]map[string]Option, len(tables))
	for axis, opts := range tables {
		m := make(map[string]Option, len(opts))
		for _, o := range opts {
			m[o.Key] = o
		}
		idx[axis] = m
	}
	return &Scorer{tables: tables, index: idx}, nil
}

// Tables returns the scorer's option tables.
func (s *Scorer) Tables() Tables {
	return s.tables
}

// Score sums the selected options' points. Empty selections use the axis
// default; unknown options are a validation error.
func (s *Scorer) Score(sel model.RubricSelection) (Result, error) {
	picks := map[string]string{
		AxisTrialType:           sel.TrialType,
		AxisPhase:               sel.Phase,
		AxisSponsorType:         sel.SponsorType,
		AxisVisitVolume:         sel.VisitVolume,
		AxisProceduralIntensity: sel.ProceduralIntensity,
	}

	res := Result{MaxScore: s.tables.MaxScore(), Axes: make([]AxisScore, 0, len(Axes))}
	invalid := map[string]string{}
	total := 0
	for _, axis := range Axes {
		key := strings.TrimSpace(picks[axis])
		var opt Option
		if key == "" {
			opt = s.tables[axis][0]
		} else {
			o, ok := s.index[axis][key]
			if !ok {
				invalid[axis] = fmt.Sprintf("unknown option %q", key)
				continue
			}
			opt = o
		}
		total += opt.Points
		res.Axes = append(res.Axes, AxisScore{Axis: axis, Option: opt.Key, Points: opt.Points})
	}
	if len(invalid) > 0 {
		return Result{}, apperr.Validation("rubric: score", invalid)
	}
	res.RecommendedScore = float64(total)
	return res, nil
}

// ValidateSelection reports unknown options without scoring.
func (s *Scorer) ValidateSelection(sel model.RubricSelection) error {
	_, err := s.Score(sel)
	return err
}

func isAxis(name string) bool {
	for _, a := range Axes {
		if a == name {
			return true
		}
	}
	return false
}
