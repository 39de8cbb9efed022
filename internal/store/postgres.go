package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/trial-workload/internal/apperr"
	"github.com/sells-group/trial-workload/internal/config"
	"github.com/sells-group/trial-workload/internal/db"
	"github.com/sells-group/trial-workload/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

const (
	pgGetStudy = `SELECT id, name, lifecycle, recruitment FROM studies WHERE id = $1`

	pgListStudies = `SELECT id, name, lifecycle, recruitment FROM studies ORDER BY id`

	pgListVisitTypes = `SELECT DISTINCT visit_type FROM visit_schedule WHERE study_id = $1 ORDER BY visit_type`

	pgSelectProfile = `SELECT p.study_id, p.protocol_score, p.screening_multiplier, p.query_multiplier,
	p.meeting_admin_points, s.lifecycle, s.recruitment, p.rubric, p.visit_weights, p.updated_at
FROM study_workload_profiles p JOIN studies s ON s.id = p.study_id`

	pgUpdateStudyStatus = `UPDATE studies SET lifecycle = $1, recruitment = $2, updated_at = $3 WHERE id = $4`

	pgCoordinatorExists = `SELECT EXISTS (SELECT 1 FROM coordinators WHERE id = $1)
	OR EXISTS (SELECT 1 FROM study_coordinators WHERE coordinator_id = $1)`

	pgSelectLogs = `SELECT id, coordinator_id, week_start, meeting_hours, screening_hours, screening_study_count,
	query_hours, query_study_count, notes, breakdown, created_at, updated_at
FROM coordinator_weekly_logs WHERE true`

	pgSelectAssignments = `SELECT id, coordinator_id, study_id, role, joined_at FROM study_coordinators WHERE true`
)

var (
	pgUpsertProfile   = mustUpsertSQL(profileUpsert, db.Postgres)
	pgUpsertWeeklyLog = mustUpsertSQL(weeklyLogUpsert, db.Postgres) + ` RETURNING id, created_at, updated_at`
)

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_study":          pgGetStudy,
	"list_visit_types":   pgListVisitTypes,
	"coordinator_exists": pgCoordinatorExists,
	"upsert_weekly_log":  pgUpsertWeeklyLog,
	"upsert_profile":     pgUpsertProfile,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, cfg config.StoreConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if cfg.MaxConns > 0 {
		maxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		minConns = cfg.MinConns
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS studies (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL DEFAULT '',
	lifecycle   TEXT NOT NULL DEFAULT 'active',
	recruitment TEXT NOT NULL DEFAULT 'enrolling',
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS coordinators (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS study_coordinators (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	coordinator_id TEXT NOT NULL,
	study_id       TEXT NOT NULL REFERENCES studies(id),
	role           TEXT NOT NULL DEFAULT '',
	joined_at      TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_study_coordinators_coordinator ON study_coordinators(coordinator_id);
CREATE INDEX IF NOT EXISTS idx_study_coordinators_study ON study_coordinators(study_id);

CREATE TABLE IF NOT EXISTS visit_schedule (
	study_id   TEXT NOT NULL REFERENCES studies(id),
	visit_type TEXT NOT NULL,
	PRIMARY KEY (study_id, visit_type)
);

CREATE TABLE IF NOT EXISTS study_workload_profiles (
	study_id             TEXT PRIMARY KEY REFERENCES studies(id),
	protocol_score       DOUBLE PRECISION NOT NULL DEFAULT 0,
	screening_multiplier DOUBLE PRECISION NOT NULL DEFAULT 1,
	query_multiplier     DOUBLE PRECISION NOT NULL DEFAULT 1,
	meeting_admin_points DOUBLE PRECISION NOT NULL DEFAULT 0,
	rubric               JSONB NOT NULL DEFAULT '{}',
	visit_weights        JSONB NOT NULL DEFAULT '{}',
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS coordinator_weekly_logs (
	id                    TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	coordinator_id        TEXT NOT NULL,
	week_start            DATE NOT NULL,
	meeting_hours         DOUBLE PRECISION NOT NULL DEFAULT 0,
	screening_hours       DOUBLE PRECISION NOT NULL DEFAULT 0,
	screening_study_count INTEGER NOT NULL DEFAULT 0,
	query_hours           DOUBLE PRECISION NOT NULL DEFAULT 0,
	query_study_count     INTEGER NOT NULL DEFAULT 0,
	notes                 TEXT NOT NULL DEFAULT '',
	breakdown             JSONB NOT NULL DEFAULT '[]',
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (coordinator_id, week_start)
);

CREATE INDEX IF NOT EXISTS idx_weekly_logs_week_start ON coordinator_weekly_logs(week_start);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetStudy(ctx context.Context, id string) (*model.Study, error) {
	var st model.Study
	var lifecycle, recruitment string
	err := s.pool.QueryRow(ctx, pgGetStudy, id).Scan(&st.ID, &st.Name, &lifecycle, &recruitment)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("postgres: get study", "study", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get study %s", id)
	}
	st.Lifecycle = model.Lifecycle(lifecycle)
	st.Recruitment = model.Recruitment(recruitment)
	return &st, nil
}

func (s *PostgresStore) ListStudies(ctx context.Context) ([]model.Study, error) {
	rows, err := s.pool.Query(ctx, pgListStudies)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list studies")
	}
	defer rows.Close()

	var studies []model.Study
	for rows.Next() {
		var st model.Study
		var lifecycle, recruitment string
		if err := rows.Scan(&st.ID, &st.Name, &lifecycle, &recruitment); err != nil {
			return nil, eris.Wrap(err, "postgres: scan study")
		}
		st.Lifecycle = model.Lifecycle(lifecycle)
		st.Recruitment = model.Recruitment(recruitment)
		studies = append(studies, st)
	}
	return studies, eris.Wrap(rows.Err(), "postgres: iterate studies")
}

func (s *PostgresStore) ListVisitTypes(ctx context.Context, studyID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, pgListVisitTypes, studyID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list visit types %s", studyID)
	}
	defer rows.Close()

	var types []string
	for rows.Next() {
		var vt string
		if err := rows.Scan(&vt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan visit type")
		}
		types = append(types, vt)
	}
	return types, eris.Wrap(rows.Err(), "postgres: iterate visit types")
}

func (s *PostgresStore) GetProfile(ctx context.Context, studyID string) (*model.StudyWorkloadProfile, error) {
	p, err := scanPgProfile(s.pool.QueryRow(ctx, pgSelectProfile+` WHERE p.study_id = $1`, studyID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("postgres: get profile", "workload profile", studyID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get profile %s", studyID)
	}
	return p, nil
}

func (s *PostgresStore) ListProfiles(ctx context.Context) (ProfileList, error) {
	rows, err := s.pool.Query(ctx, pgSelectProfile+` ORDER BY p.study_id`)
	if err != nil {
		return ProfileList{}, eris.Wrap(err, "postgres: list profiles")
	}
	defer rows.Close()

	var out ProfileList
	for rows.Next() {
		p, err := scanPgProfile(rows)
		switch {
		case p == nil:
			return ProfileList{}, eris.Wrap(err, "postgres: scan profile")
		case err != nil:
			zap.L().Warn("postgres: undecodable profile",
				zap.String("study_id", p.StudyID),
				zap.Error(err),
			)
			out.markUndecodable(p.StudyID, err)
		default:
			out.Profiles = append(out.Profiles, *p)
		}
	}
	if err := rows.Err(); err != nil {
		return ProfileList{}, eris.Wrap(err, "postgres: iterate profiles")
	}
	return out, nil
}

// scanPgProfile follows the same partial-result contract as
// scanSQLiteProfile.
func scanPgProfile(row pgx.Row) (*model.StudyWorkloadProfile, error) {
	var p model.StudyWorkloadProfile
	var lifecycle, recruitment string
	var rubricJSON, weightsJSON []byte
	if err := row.Scan(
		&p.StudyID, &p.ProtocolScore, &p.ScreeningMultiplier, &p.QueryMultiplier,
		&p.MeetingAdminPoints, &lifecycle, &recruitment, &rubricJSON, &weightsJSON, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Lifecycle = model.Lifecycle(lifecycle)
	p.Recruitment = model.Recruitment(recruitment)

	var err error
	if p.Rubric, err = decodeRubric(rubricJSON); err != nil {
		return &p, err
	}
	if p.VisitWeights, err = decodeVisitWeights(weightsJSON); err != nil {
		return &p, err
	}
	return &p, nil
}

func (s *PostgresStore) SaveProfile(ctx context.Context, p model.StudyWorkloadProfile) (*model.StudyWorkloadProfile, error) {
	rubricJSON, err := encodeJSON(p.Rubric, "rubric")
	if err != nil {
		return nil, err
	}
	if p.VisitWeights == nil {
		p.VisitWeights = map[string]float64{}
	}
	weightsJSON, err := encodeJSON(p.VisitWeights, "visit weights")
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: save profile: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, pgUpdateStudyStatus, string(p.Lifecycle), string(p.Recruitment), now, p.StudyID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: update study %s", p.StudyID)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperr.NotFound("postgres: save profile", "study", p.StudyID)
	}

	if _, err := tx.Exec(ctx, pgUpsertProfile,
		p.StudyID, p.ProtocolScore, p.ScreeningMultiplier, p.QueryMultiplier,
		p.MeetingAdminPoints, rubricJSON, weightsJSON, now,
	); err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert profile %s", p.StudyID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: save profile: commit tx")
	}
	p.UpdatedAt = now
	return &p, nil
}

func (s *PostgresStore) CoordinatorExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, pgCoordinatorExists, id).Scan(&exists); err != nil {
		return false, eris.Wrapf(err, "postgres: coordinator exists %s", id)
	}
	return exists, nil
}

func (s *PostgresStore) UpsertWeeklyLog(ctx context.Context, l model.CoordinatorWeeklyLog) (*model.CoordinatorWeeklyLog, error) {
	breakdown := l.Breakdown
	if breakdown == nil {
		breakdown = []model.StudyEffort{}
	}
	breakdownJSON, err := encodeJSON(breakdown, "breakdown")
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	l.WeekStart = model.WeekOf(l.WeekStart.Time)

	err = s.pool.QueryRow(ctx, pgUpsertWeeklyLog,
		uuid.New().String(), l.CoordinatorID, l.WeekStart.Time,
		l.MeetingHours, l.ScreeningHours, l.ScreeningStudyCount,
		l.QueryHours, l.QueryStudyCount, l.Notes, breakdownJSON,
		now, now,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert weekly log %s/%s", l.CoordinatorID, l.WeekStart)
	}
	return &l, nil
}

func (s *PostgresStore) ListWeeklyLogs(ctx context.Context, filter LogFilter) ([]model.CoordinatorWeeklyLog, error) {
	query := pgSelectLogs
	args := []any{}
	argIdx := 1

	if filter.CoordinatorID != "" {
		query += fmt.Sprintf(` AND coordinator_id = $%d`, argIdx)
		args = append(args, filter.CoordinatorID)
		argIdx++
	}
	if !filter.From.IsZero() {
		query += fmt.Sprintf(` AND week_start >= $%d`, argIdx)
		args = append(args, filter.From.Time)
		argIdx++
	}
	if !filter.To.IsZero() {
		query += fmt.Sprintf(` AND week_start < $%d`, argIdx)
		args = append(args, filter.To.Time)
		argIdx++
	}
	query += ` ORDER BY week_start DESC, coordinator_id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list weekly logs")
	}
	defer rows.Close()

	var logs []model.CoordinatorWeeklyLog
	for rows.Next() {
		var l model.CoordinatorWeeklyLog
		var week time.Time
		var breakdownJSON []byte
		if err := rows.Scan(
			&l.ID, &l.CoordinatorID, &week, &l.MeetingHours, &l.ScreeningHours, &l.ScreeningStudyCount,
			&l.QueryHours, &l.QueryStudyCount, &l.Notes, &breakdownJSON, &l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan weekly log")
		}
		l.WeekStart = model.WeekOf(week)
		if l.Breakdown, err = decodeBreakdown(breakdownJSON); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, eris.Wrap(rows.Err(), "postgres: iterate weekly logs")
}

func (s *PostgresStore) ListAssignments(ctx context.Context, filter AssignmentFilter) ([]model.Assignment, error) {
	query := pgSelectAssignments
	args := []any{}
	argIdx := 1

	if filter.CoordinatorID != "" {
		query += fmt.Sprintf(` AND coordinator_id = $%d`, argIdx)
		args = append(args, filter.CoordinatorID)
		argIdx++
	}
	if filter.StudyID != "" {
		query += fmt.Sprintf(` AND study_id = $%d`, argIdx)
		args = append(args, filter.StudyID)
	}
	query += ` ORDER BY coordinator_id, study_id, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list assignments")
	}
	defer rows.Close()

	var out []model.Assignment
	for rows.Next() {
		var a model.Assignment
		var joined *time.Time
		if err := rows.Scan(&a.ID, &a.CoordinatorID, &a.StudyID, &a.Role, &joined); err != nil {
			return nil, eris.Wrap(err, "postgres: scan assignment")
		}
		if joined != nil {
			a.JoinedAt = joined.UTC()
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate assignments")
}

func (s *PostgresStore) Seed(ctx context.Context, f Fixtures) error {
	if err := f.normalize(); err != nil {
		return err
	}

	assignments := make([][]any, len(f.Assignments))
	for i, a := range f.Assignments {
		var joined *time.Time
		if !a.JoinedAt.IsZero() {
			t := a.JoinedAt.UTC()
			joined = &t
		}
		assignments[i] = []any{a.ID, a.CoordinatorID, a.StudyID, a.Role, joined}
	}

	for _, step := range []struct {
		cfg  db.UpsertConfig
		rows [][]any
	}{
		{studyUpsert, f.studyRows()},
		{coordinatorUpsert, f.coordinatorRows()},
		{assignmentUpsert, assignments},
		{visitUpsert, f.visitRows()},
	} {
		if _, err := db.BulkUpsert(ctx, s.pool, step.cfg, step.rows); err != nil {
			return eris.Wrapf(err, "postgres: seed %s", step.cfg.Table)
		}
	}
	return nil
}
