package store

import (
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/trial-workload/internal/model"
)

// Fixtures are reference records loaded by the seed command. In production
// these tables are owned by the wider platform.
type Fixtures struct {
	Studies       []FixtureStudy       `yaml:"studies"`
	Coordinators  []FixtureCoordinator `yaml:"coordinators"`
	Assignments   []FixtureAssignment  `yaml:"assignments"`
	VisitSchedule []FixtureVisit       `yaml:"visit_schedule"`
}

// FixtureStudy is a study row.
type FixtureStudy struct {
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	Lifecycle   model.Lifecycle   `yaml:"lifecycle"`
	Recruitment model.Recruitment `yaml:"recruitment"`
}

// FixtureCoordinator is a coordinator row.
type FixtureCoordinator struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// FixtureAssignment is a study_coordinators row.
type FixtureAssignment struct {
	ID            string    `yaml:"id"`
	CoordinatorID string    `yaml:"coordinator_id"`
	StudyID       string    `yaml:"study_id"`
	Role          string    `yaml:"role"`
	JoinedAt      time.Time `yaml:"joined_at"`
}

// FixtureVisit is a visit_schedule row.
type FixtureVisit struct {
	StudyID   string `yaml:"study_id"`
	VisitType string `yaml:"visit_type"`
}

// LoadFixtures reads fixtures from a YAML file with a top-level "fixtures" key.
func LoadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "store: read fixtures %s", path)
	}
	var wrapper struct {
		Fixtures Fixtures `yaml:"fixtures"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "store: parse fixtures")
	}
	f := wrapper.Fixtures
	if err := f.normalize(); err != nil {
		return nil, err
	}
	return &f, nil
}

// normalize fills defaults and rejects rows the engine could not use.
func (f *Fixtures) normalize() error {
	for i := range f.Studies {
		s := &f.Studies[i]
		if s.ID == "" {
			return eris.Errorf("store: fixtures: study %d has no id", i)
		}
		if s.Lifecycle == "" {
			s.Lifecycle = model.LifecycleActive
		}
		if s.Recruitment == "" {
			s.Recruitment = model.RecruitmentEnrolling
		}
		if !s.Lifecycle.Valid() || !s.Recruitment.Valid() {
			return eris.Errorf("store: fixtures: study %s has unknown lifecycle or recruitment", s.ID)
		}
	}
	for i := range f.Coordinators {
		if f.Coordinators[i].ID == "" {
			return eris.Errorf("store: fixtures: coordinator %d has no id", i)
		}
	}
	for i := range f.Assignments {
		a := &f.Assignments[i]
		if a.CoordinatorID == "" || a.StudyID == "" {
			return eris.Errorf("store: fixtures: assignment %d needs coordinator_id and study_id", i)
		}
		if a.ID == "" {
			// Stable ids keep repeated seeds from duplicating rows.
			a.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(a.CoordinatorID+"/"+a.StudyID+"/"+a.Role)).String()
		}
	}
	for i, v := range f.VisitSchedule {
		if v.StudyID == "" || v.VisitType == "" {
			return eris.Errorf("store: fixtures: visit %d needs study_id and visit_type", i)
		}
	}
	return nil
}

func (f Fixtures) studyRows() [][]any {
	rows := make([][]any, len(f.Studies))
	for i, s := range f.Studies {
		rows[i] = []any{s.ID, s.Name, string(s.Lifecycle), string(s.Recruitment)}
	}
	return rows
}

func (f Fixtures) coordinatorRows() [][]any {
	rows := make([][]any, len(f.Coordinators))
	for i, c := range f.Coordinators {
		rows[i] = []any{c.ID, c.Name}
	}
	return rows
}

func (f Fixtures) visitRows() [][]any {
	rows := make([][]any, len(f.VisitSchedule))
	for i, v := range f.VisitSchedule {
		rows[i] = []any{v.StudyID, v.VisitType}
	}
	return rows
}
