package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/trial-workload/internal/apperr"
	"github.com/sells-group/trial-workload/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetStudy(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name, lifecycle, recruitment FROM studies WHERE id = \$1`).
		WithArgs("S-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "lifecycle", "recruitment"}).
			AddRow("S-1", "Cardio", "start_up", "paused"))

	st, err := s.GetStudy(context.Background(), "S-1")
	require.NoError(t, err)
	assert.Equal(t, "Cardio", st.Name)
	assert.Equal(t, model.LifecycleStartUp, st.Lifecycle)
	assert.Equal(t, model.RecruitmentPaused, st.Recruitment)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetStudy_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM studies WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetStudy(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProfile_SnakeCaseRubric(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	updated := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM study_workload_profiles p JOIN studies s ON s.id = p.study_id WHERE p.study_id = \$1`).
		WithArgs("S-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"study_id", "protocol_score", "screening_multiplier", "query_multiplier",
			"meeting_admin_points", "lifecycle", "recruitment", "rubric", "visit_weights", "updated_at",
		}).AddRow(
			"S-1", 8.0, 1.5, 1.2, 4.0, "active", "enrolling",
			[]byte(`{"trial_type":"interventional","sponsor_type":"industry"}`),
			[]byte(`{"Screening":2}`), updated,
		))

	p, err := s.GetProfile(context.Background(), "S-1")
	require.NoError(t, err)
	assert.InDelta(t, 8.0, p.ProtocolScore, 1e-9)
	assert.Equal(t, "interventional", p.Rubric.TrialType)
	assert.Equal(t, "industry", p.Rubric.SponsorType)
	assert.Equal(t, map[string]float64{"Screening": 2}, p.VisitWeights)
	assert.Equal(t, updated, p.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListProfiles_SkipsUndecodableRows(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	updated := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM study_workload_profiles p JOIN studies s ON s.id = p.study_id ORDER BY p.study_id`).
		WillReturnRows(pgxmock.NewRows([]string{
			"study_id", "protocol_score", "screening_multiplier", "query_multiplier",
			"meeting_admin_points", "lifecycle", "recruitment", "rubric", "visit_weights", "updated_at",
		}).AddRow(
			"S-1", 8.0, 1.5, 1.2, 4.0, "active", "enrolling",
			[]byte(`{}`), []byte(`{"Screening":"heavy"}`), updated,
		).AddRow(
			"S-2", 3.0, 1.0, 1.0, 0.0, "active", "enrolling",
			[]byte(`{"phase":"phase_2"}`), []byte(`{"Screening":2}`), updated,
		))

	got, err := s.ListProfiles(context.Background())
	require.NoError(t, err)
	require.Len(t, got.Profiles, 1)
	assert.Equal(t, "S-2", got.Profiles[0].StudyID)
	assert.Equal(t, "phase_2", got.Profiles[0].Rubric.Phase)
	require.Contains(t, got.Undecodable, "S-1")
	assert.Contains(t, got.Undecodable["S-1"].Error(), "decode visit weights")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProfile_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM study_workload_profiles`).
		WithArgs("S-9").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetProfile(context.Background(), "S-9")
	assert.True(t, apperr.IsNotFound(err))
}

func TestPostgresStore_SaveProfile_UnknownStudy(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE studies SET lifecycle = \$1, recruitment = \$2, updated_at = \$3 WHERE id = \$4`).
		WithArgs("active", "enrolling", pgxmock.AnyArg(), "S-9").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	p := model.DefaultProfile(model.Study{ID: "S-9", Lifecycle: model.LifecycleActive, Recruitment: model.RecruitmentEnrolling})
	_, err := s.SaveProfile(context.Background(), p)
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveProfile(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE studies`).
		WithArgs("follow_up", "closed_to_accrual", pgxmock.AnyArg(), "S-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO "study_workload_profiles"`).
		WithArgs("S-1", 6.0, 1.0, 1.0, 2.0, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	p := model.StudyWorkloadProfile{
		StudyID: "S-1", ProtocolScore: 6, ScreeningMultiplier: 1, QueryMultiplier: 1,
		MeetingAdminPoints: 2, Lifecycle: model.LifecycleFollowUp, Recruitment: model.RecruitmentClosedToAccrual,
	}
	saved, err := s.SaveProfile(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, saved.UpdatedAt.IsZero())
	assert.NotNil(t, saved.VisitWeights)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CoordinatorExists(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("C-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := s.CoordinatorExists(context.Background(), "C-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertWeeklyLog(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Date(2026, 10, 5, 9, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)
	week := model.WeekOf(time.Date(2026, 10, 7, 0, 0, 0, 0, time.UTC))

	mock.ExpectQuery(`INSERT INTO "coordinator_weekly_logs" .* ON CONFLICT \("coordinator_id", "week_start"\) DO UPDATE SET .* RETURNING id, created_at, updated_at`).
		WithArgs(pgxmock.AnyArg(), "C-1", week.Time, 2.0, 8.0, 2, 4.0, 1, "", pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("log-1", created, updated))

	l := model.CoordinatorWeeklyLog{
		CoordinatorID: "C-1",
		WeekStart:     model.Week{Time: time.Date(2026, 10, 7, 0, 0, 0, 0, time.UTC)},
		EffortTotals: model.EffortTotals{
			MeetingHours: 2, ScreeningHours: 8, ScreeningStudyCount: 2, QueryHours: 4, QueryStudyCount: 1,
		},
	}
	saved, err := s.UpsertWeeklyLog(context.Background(), l)
	require.NoError(t, err)
	assert.Equal(t, "log-1", saved.ID)
	assert.Equal(t, "2026-10-05", saved.WeekStart.String())
	assert.Equal(t, created, saved.CreatedAt)
	assert.Equal(t, updated, saved.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListWeeklyLogs_Filters(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	from, _ := model.ParseWeek("2026-09-07")
	to, _ := model.ParseWeek("2026-10-05")
	created := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM coordinator_weekly_logs WHERE true AND coordinator_id = \$1 AND week_start >= \$2 AND week_start < \$3 ORDER BY week_start DESC, coordinator_id LIMIT \$4`).
		WithArgs("C-1", from.Time, to.Time, 12).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "coordinator_id", "week_start", "meeting_hours", "screening_hours", "screening_study_count",
			"query_hours", "query_study_count", "notes", "breakdown", "created_at", "updated_at",
		}).AddRow(
			"log-1", "C-1", created, 1.0, 4.0, 1, 2.0, 1, "busy",
			[]byte(`[{"study_id":"S-1","screening_hours":4}]`), created, created,
		))

	logs, err := s.ListWeeklyLogs(context.Background(), LogFilter{CoordinatorID: "C-1", From: from, To: to, Limit: 12})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "2026-09-14", logs[0].WeekStart.String())
	require.Len(t, logs[0].Breakdown, 1)
	assert.Equal(t, "S-1", logs[0].Breakdown[0].StudyID)
	assert.InDelta(t, 4.0, logs[0].Breakdown[0].ScreeningHours, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListAssignments(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	joined := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM study_coordinators WHERE true AND study_id = \$1`).
		WithArgs("S-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "coordinator_id", "study_id", "role", "joined_at"}).
			AddRow("a-1", "C-1", "S-1", "primary", &joined))

	out, err := s.ListAssignments(context.Background(), AssignmentFilter{StudyID: "S-1"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "primary", out[0].Role)
	assert.Equal(t, joined, out[0].JoinedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Seed(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	f := Fixtures{
		Studies:      []FixtureStudy{{ID: "S-1", Name: "Cardio"}},
		Coordinators: []FixtureCoordinator{{ID: "C-1", Name: "Ana"}},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_studies"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_studies"}, []string{"id", "name", "lifecycle", "recruitment"}).
		WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "studies"`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_coordinators"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_coordinators"}, []string{"id", "name"}).
		WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "coordinators"`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, s.Seed(context.Background(), f))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS studies`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
