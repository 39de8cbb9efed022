// Package store persists workload profiles and coordinator weekly logs and
// reads the study, assignment and visit schedule records the engine needs.
package store

import (
	"context"

	"github.com/sells-group/trial-workload/internal/model"
)

// LogFilter specifies criteria for listing weekly logs. From is inclusive
// and To exclusive; zero weeks leave that side open.
type LogFilter struct {
	CoordinatorID string     `json:"coordinator_id,omitempty"`
	From          model.Week `json:"from"`
	To            model.Week `json:"to"`
	Limit         int        `json:"limit,omitempty"`
}

// AssignmentFilter specifies criteria for listing assignments.
type AssignmentFilter struct {
	CoordinatorID string `json:"coordinator_id,omitempty"`
	StudyID       string `json:"study_id,omitempty"`
}

// ProfileList is the result of listing profiles. Undecodable maps a study
// ID to the error hit decoding its stored profile; those studies are not
// in Profiles.
type ProfileList struct {
	Profiles    []model.StudyWorkloadProfile
	Undecodable map[string]error
}

func (l *ProfileList) markUndecodable(studyID string, err error) {
	if l.Undecodable == nil {
		l.Undecodable = make(map[string]error)
	}
	l.Undecodable[studyID] = err
}

// Store defines the persistence interface of the workload engine.
type Store interface {
	// Studies
	GetStudy(ctx context.Context, id string) (*model.Study, error)
	ListStudies(ctx context.Context) ([]model.Study, error)
	ListVisitTypes(ctx context.Context, studyID string) ([]string, error)

	// Profiles. SaveProfile writes lifecycle and recruitment to the study
	// row in the same transaction. ListProfiles reports rows with
	// undecodable JSON per study rather than failing the listing.
	GetProfile(ctx context.Context, studyID string) (*model.StudyWorkloadProfile, error)
	ListProfiles(ctx context.Context) (ProfileList, error)
	SaveProfile(ctx context.Context, p model.StudyWorkloadProfile) (*model.StudyWorkloadProfile, error)

	// Coordinators and weekly logs
	CoordinatorExists(ctx context.Context, id string) (bool, error)
	UpsertWeeklyLog(ctx context.Context, l model.CoordinatorWeeklyLog) (*model.CoordinatorWeeklyLog, error)
	ListWeeklyLogs(ctx context.Context, filter LogFilter) ([]model.CoordinatorWeeklyLog, error)
	ListAssignments(ctx context.Context, filter AssignmentFilter) ([]model.Assignment, error)

	// Fixtures
	Seed(ctx context.Context, f Fixtures) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
