package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/trial-workload/internal/apperr"
	"github.com/sells-group/trial-workload/internal/model"
	"github.com/sells-group/trial-workload/internal/resilience"
	"github.com/sells-group/trial-workload/internal/rubric"
)

// GetStudyWorkloadSettings returns a study's workload profile. A study that
// was never configured gets the default profile. Every scheduled visit type
// has a weight in the result.
func (s *Service) GetStudyWorkloadSettings(ctx context.Context, studyID string) (model.StudyWorkloadProfile, error) {
	study, err := resilience.Call(ctx, s.guard, "service: get study",
		func(ctx context.Context) (*model.Study, error) { return s.store.GetStudy(ctx, studyID) })
	if err != nil {
		return model.StudyWorkloadProfile{}, err
	}

	var prof model.StudyWorkloadProfile
	stored, err := resilience.Call(ctx, s.guard, "service: get profile",
		func(ctx context.Context) (*model.StudyWorkloadProfile, error) { return s.store.GetProfile(ctx, studyID) })
	switch {
	case apperr.IsNotFound(err):
		prof = model.DefaultProfile(*study)
	case err != nil:
		return model.StudyWorkloadProfile{}, err
	default:
		prof = *stored
	}
	prof.Lifecycle = study.Lifecycle
	prof.Recruitment = study.Recruitment

	visitTypes, err := resilience.Call(ctx, s.guard, "service: list visit types",
		func(ctx context.Context) ([]string, error) { return s.store.ListVisitTypes(ctx, studyID) })
	if err != nil {
		return model.StudyWorkloadProfile{}, err
	}
	prof.FillVisitWeights(visitTypes)
	return prof, nil
}

// SetStudyWorkloadSettings merges update onto the current profile and saves
// it. With applyRubric the rubric's recommended score replaces the protocol
// score.
func (s *Service) SetStudyWorkloadSettings(ctx context.Context, studyID string, update model.PartialProfile, applyRubric bool) (model.StudyWorkloadProfile, error) {
	if err := model.ValidatePartialProfile(update); err != nil {
		return model.StudyWorkloadProfile{}, err
	}

	current, err := s.GetStudyWorkloadSettings(ctx, studyID)
	if err != nil {
		return model.StudyWorkloadProfile{}, err
	}
	next := update.Apply(current)
	next.StudyID = studyID

	if update.Rubric != nil || applyRubric {
		res, err := s.scorer.Score(next.Rubric)
		if err != nil {
			return model.StudyWorkloadProfile{}, err
		}
		if applyRubric {
			next.ProtocolScore = res.RecommendedScore
		}
	}
	if err := model.ValidateProfile(next); err != nil {
		return model.StudyWorkloadProfile{}, err
	}

	saved, err := resilience.Call(ctx, s.guard, "service: save profile",
		func(ctx context.Context) (*model.StudyWorkloadProfile, error) { return s.store.SaveProfile(ctx, next) })
	if err != nil {
		return model.StudyWorkloadProfile{}, err
	}
	s.invalidate()

	zap.L().Info("workload settings saved",
		zap.String("study_id", studyID),
		zap.Float64("protocol_score", saved.ProtocolScore),
		zap.String("lifecycle", string(saved.Lifecycle)),
		zap.String("recruitment", string(saved.Recruitment)),
		zap.Bool("apply_rubric", applyRubric),
	)
	return *saved, nil
}

// ScoreRubric returns the recommended protocol score for a selection. It
// does not change any profile.
func (s *Service) ScoreRubric(sel model.RubricSelection) (rubric.Result, error) {
	return s.scorer.Score(sel)
}

// RubricTables returns the option tables the scorer uses.
func (s *Service) RubricTables() rubric.Tables {
	return s.scorer.Tables()
}
