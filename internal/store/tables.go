package store

import (
	"github.com/sells-group/trial-workload/internal/db"
)

var (
	studyUpsert = db.UpsertConfig{
		Table:        "studies",
		Columns:      []string{"id", "name", "lifecycle", "recruitment"},
		ConflictKeys: []string{"id"},
	}
	coordinatorUpsert = db.UpsertConfig{
		Table:        "coordinators",
		Columns:      []string{"id", "name"},
		ConflictKeys: []string{"id"},
	}
	assignmentUpsert = db.UpsertConfig{
		Table:        "study_coordinators",
		Columns:      []string{"id", "coordinator_id", "study_id", "role", "joined_at"},
		ConflictKeys: []string{"id"},
	}
	visitUpsert = db.UpsertConfig{
		Table:        "visit_schedule",
		Columns:      []string{"study_id", "visit_type"},
		ConflictKeys: []string{"study_id", "visit_type"},
	}
	profileUpsert = db.UpsertConfig{
		Table: "study_workload_profiles",
		Columns: []string{
			"study_id", "protocol_score", "screening_multiplier", "query_multiplier",
			"meeting_admin_points", "rubric", "visit_weights", "updated_at",
		},
		ConflictKeys: []string{"study_id"},
	}
	// A resubmitted week replaces the totals and breakdown but keeps the
	// original id and created_at.
	weeklyLogUpsert = db.UpsertConfig{
		Table: "coordinator_weekly_logs",
		Columns: []string{
			"id", "coordinator_id", "week_start",
			"meeting_hours", "screening_hours", "screening_study_count",
			"query_hours", "query_study_count", "notes", "breakdown",
			"created_at", "updated_at",
		},
		ConflictKeys: []string{"coordinator_id", "week_start"},
		UpdateCols: []string{
			"meeting_hours", "screening_hours", "screening_study_count",
			"query_hours", "query_study_count", "notes", "breakdown", "updated_at",
		},
	}
)

// mustUpsertSQL builds statements from the static configs above.
func mustUpsertSQL(cfg db.UpsertConfig, d db.Dialect) string {
	q, err := db.UpsertSQL(cfg, d)
	if err != nil {
		panic(err)
	}
	return q
}
