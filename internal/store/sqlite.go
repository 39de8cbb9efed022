package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/trial-workload/internal/apperr"
	"github.com/sells-group/trial-workload/internal/db"
	"github.com/sells-group/trial-workload/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Weeks are stored as
// ISO date text and timestamps as RFC 3339 text.
type SQLiteStore struct {
	db *sql.DB
}

var (
	sqliteUpsertProfile   = mustUpsertSQL(profileUpsert, db.SQLite)
	sqliteUpsertWeeklyLog = mustUpsertSQL(weeklyLogUpsert, db.SQLite) + ` RETURNING id, created_at, updated_at`
)

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS studies (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL DEFAULT '',
	lifecycle   TEXT NOT NULL DEFAULT 'active',
	recruitment TEXT NOT NULL DEFAULT 'enrolling',
	updated_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);

CREATE TABLE IF NOT EXISTS coordinators (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);

CREATE TABLE IF NOT EXISTS study_coordinators (
	id             TEXT PRIMARY KEY,
	coordinator_id TEXT NOT NULL,
	study_id       TEXT NOT NULL REFERENCES studies(id),
	role           TEXT NOT NULL DEFAULT '',
	joined_at      TEXT
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
	protocol_score       REAL NOT NULL DEFAULT 0,
	screening_multiplier REAL NOT NULL DEFAULT 1,
	query_multiplier     REAL NOT NULL DEFAULT 1,
	meeting_admin_points REAL NOT NULL DEFAULT 0,
	rubric               TEXT NOT NULL DEFAULT '{}',
	visit_weights        TEXT NOT NULL DEFAULT '{}',
	updated_at           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS coordinator_weekly_logs (
	id                    TEXT PRIMARY KEY,
	coordinator_id        TEXT NOT NULL,
	week_start            TEXT NOT NULL,
	meeting_hours         REAL NOT NULL DEFAULT 0,
	screening_hours       REAL NOT NULL DEFAULT 0,
	screening_study_count INTEGER NOT NULL DEFAULT 0,
	query_hours           REAL NOT NULL DEFAULT 0,
	query_study_count     INTEGER NOT NULL DEFAULT 0,
	notes                 TEXT NOT NULL DEFAULT '',
	breakdown             TEXT NOT NULL DEFAULT '[]',
	created_at            TEXT NOT NULL,
	updated_at            TEXT NOT NULL,
	UNIQUE (coordinator_id, week_start)
);

CREATE INDEX IF NOT EXISTS idx_weekly_logs_week_start ON coordinator_weekly_logs(week_start);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "sqlite: parse time %q", s)
	}
	return t.UTC(), nil
}

func (s *SQLiteStore) GetStudy(ctx context.Context, id string) (*model.Study, error) {
	var st model.Study
	var lifecycle, recruitment string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, lifecycle, recruitment FROM studies WHERE id = ?`, id,
	).Scan(&st.ID, &st.Name, &lifecycle, &recruitment)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("sqlite: get study", "study", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get study %s", id)
	}
	st.Lifecycle = model.Lifecycle(lifecycle)
	st.Recruitment = model.Recruitment(recruitment)
	return &st, nil
}

func (s *SQLiteStore) ListStudies(ctx context.Context) ([]model.Study, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, lifecycle, recruitment FROM studies ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list studies")
	}
	defer rows.Close() //nolint:errcheck

	var studies []model.Study
	for rows.Next() {
		var st model.Study
		var lifecycle, recruitment string
		if err := rows.Scan(&st.ID, &st.Name, &lifecycle, &recruitment); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan study")
		}
		st.Lifecycle = model.Lifecycle(lifecycle)
		st.Recruitment = model.Recruitment(recruitment)
		studies = append(studies, st)
	}
	return studies, eris.Wrap(rows.Err(), "sqlite: iterate studies")
}

func (s *SQLiteStore) ListVisitTypes(ctx context.Context, studyID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT visit_type FROM visit_schedule WHERE study_id = ? ORDER BY visit_type`, studyID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list visit types %s", studyID)
	}
	defer rows.Close() //nolint:errcheck

	var types []string
	for rows.Next() {
		var vt string
		if err := rows.Scan(&vt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan visit type")
		}
		types = append(types, vt)
	}
	return types, eris.Wrap(rows.Err(), "sqlite: iterate visit types")
}

const sqliteSelectProfile = `SELECT p.study_id, p.protocol_score, p.screening_multiplier, p.query_multiplier,
	p.meeting_admin_points, s.lifecycle, s.recruitment, p.rubric, p.visit_weights, p.updated_at
FROM study_workload_profiles p JOIN studies s ON s.id = p.study_id`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanSQLiteProfile returns a nil profile when the row cannot be scanned.
// When only the JSON or timestamp columns fail to decode it returns the
// partially filled profile together with the error.
func scanSQLiteProfile(row rowScanner) (*model.StudyWorkloadProfile, error) {
	var p model.StudyWorkloadProfile
	var lifecycle, recruitment, rubricJSON, weightsJSON, updated string
	if err := row.Scan(
		&p.StudyID, &p.ProtocolScore, &p.ScreeningMultiplier, &p.QueryMultiplier,
		&p.MeetingAdminPoints, &lifecycle, &recruitment, &rubricJSON, &weightsJSON, &updated,
	); err != nil {
		return nil, err
	}
	p.Lifecycle = model.Lifecycle(lifecycle)
	p.Recruitment = model.Recruitment(recruitment)

	var err error
	if p.Rubric, err = decodeRubric([]byte(rubricJSON)); err != nil {
		return &p, err
	}
	if p.VisitWeights, err = decodeVisitWeights([]byte(weightsJSON)); err != nil {
		return &p, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return &p, err
	}
	return &p, nil
}

func (s *SQLiteStore) GetProfile(ctx context.Context, studyID string) (*model.StudyWorkloadProfile, error) {
	p, err := scanSQLiteProfile(s.db.QueryRowContext(ctx, sqliteSelectProfile+` WHERE p.study_id = ?`, studyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("sqlite: get profile", "workload profile", studyID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get profile %s", studyID)
	}
	return p, nil
}

func (s *SQLiteStore) ListProfiles(ctx context.Context) (ProfileList, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSelectProfile+` ORDER BY p.study_id`)
	if err != nil {
		return ProfileList{}, eris.Wrap(err, "sqlite: list profiles")
	}
	defer rows.Close() //nolint:errcheck

	var out ProfileList
	for rows.Next() {
		p, err := scanSQLiteProfile(rows)
		switch {
		case p == nil:
			return ProfileList{}, eris.Wrap(err, "sqlite: scan profile")
		case err != nil:
			zap.L().Warn("sqlite: undecodable profile",
				zap.String("study_id", p.StudyID),
				zap.Error(err),
			)
			out.markUndecodable(p.StudyID, err)
		default:
			out.Profiles = append(out.Profiles, *p)
		}
	}
	if err := rows.Err(); err != nil {
		return ProfileList{}, eris.Wrap(err, "sqlite: iterate profiles")
	}
	return out, nil
}

func (s *SQLiteStore) SaveProfile(ctx context.Context, p model.StudyWorkloadProfile) (*model.StudyWorkloadProfile, error) {
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: save profile: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE studies SET lifecycle = ?, recruitment = ?, updated_at = ? WHERE id = ?`,
		string(p.Lifecycle), string(p.Recruitment), formatTime(now), p.StudyID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update study %s", p.StudyID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.NotFound("sqlite: save profile", "study", p.StudyID)
	}

	if _, err := tx.ExecContext(ctx, sqliteUpsertProfile,
		p.StudyID, p.ProtocolScore, p.ScreeningMultiplier, p.QueryMultiplier,
		p.MeetingAdminPoints, string(rubricJSON), string(weightsJSON), formatTime(now),
	); err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert profile %s", p.StudyID)
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: save profile: commit tx")
	}
	p.UpdatedAt = now
	return &p, nil
}

func (s *SQLiteStore) CoordinatorExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM coordinators WHERE id = ?)
			OR EXISTS (SELECT 1 FROM study_coordinators WHERE coordinator_id = ?)`, id, id,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: coordinator exists %s", id)
	}
	return exists, nil
}

func (s *SQLiteStore) UpsertWeeklyLog(ctx context.Context, l model.CoordinatorWeeklyLog) (*model.CoordinatorWeeklyLog, error) {
	breakdown := l.Breakdown
	if breakdown == nil {
		breakdown = []model.StudyEffort{}
	}
	breakdownJSON, err := encodeJSON(breakdown, "breakdown")
	if err != nil {
		return nil, err
	}
	now := formatTime(time.Now())
	l.WeekStart = model.WeekOf(l.WeekStart.Time)

	var created, updated string
	err = s.db.QueryRowContext(ctx, sqliteUpsertWeeklyLog,
		uuid.New().String(), l.CoordinatorID, l.WeekStart.String(),
		l.MeetingHours, l.ScreeningHours, l.ScreeningStudyCount,
		l.QueryHours, l.QueryStudyCount, l.Notes, string(breakdownJSON),
		now, now,
	).Scan(&l.ID, &created, &updated)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert weekly log %s/%s", l.CoordinatorID, l.WeekStart)
	}
	if l.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if l.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *SQLiteStore) ListWeeklyLogs(ctx context.Context, filter LogFilter) ([]model.CoordinatorWeeklyLog, error) {
	query := `SELECT id, coordinator_id, week_start, meeting_hours, screening_hours, screening_study_count,
		query_hours, query_study_count, notes, breakdown, created_at, updated_at
		FROM coordinator_weekly_logs WHERE 1=1`
	var args []any

	if filter.CoordinatorID != "" {
		query += ` AND coordinator_id = ?`
		args = append(args, filter.CoordinatorID)
	}
	if !filter.From.IsZero() {
		query += ` AND week_start >= ?`
		args = append(args, filter.From.String())
	}
	if !filter.To.IsZero() {
		query += ` AND week_start < ?`
		args = append(args, filter.To.String())
	}
	query += ` ORDER BY week_start DESC, coordinator_id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list weekly logs")
	}
	defer rows.Close() //nolint:errcheck

	var logs []model.CoordinatorWeeklyLog
	for rows.Next() {
		var l model.CoordinatorWeeklyLog
		var week, breakdownJSON, created, updated string
		if err := rows.Scan(
			&l.ID, &l.CoordinatorID, &week, &l.MeetingHours, &l.ScreeningHours, &l.ScreeningStudyCount,
			&l.QueryHours, &l.QueryStudyCount, &l.Notes, &breakdownJSON, &created, &updated,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan weekly log")
		}
		if l.WeekStart, err = model.ParseWeek(week); err != nil {
			return nil, err
		}
		if l.Breakdown, err = decodeBreakdown([]byte(breakdownJSON)); err != nil {
			return nil, err
		}
		if l.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if l.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, eris.Wrap(rows.Err(), "sqlite: iterate weekly logs")
}

func (s *SQLiteStore) ListAssignments(ctx context.Context, filter AssignmentFilter) ([]model.Assignment, error) {
	query := `SELECT id, coordinator_id, study_id, role, joined_at FROM study_coordinators WHERE 1=1`
	var args []any
	if filter.CoordinatorID != "" {
		query += ` AND coordinator_id = ?`
		args = append(args, filter.CoordinatorID)
	}
	if filter.StudyID != "" {
		query += ` AND study_id = ?`
		args = append(args, filter.StudyID)
	}
	query += ` ORDER BY coordinator_id, study_id, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list assignments")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Assignment
	for rows.Next() {
		var a model.Assignment
		var joined sql.NullString
		if err := rows.Scan(&a.ID, &a.CoordinatorID, &a.StudyID, &a.Role, &joined); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan assignment")
		}
		if joined.Valid && joined.String != "" {
			if a.JoinedAt, err = parseTime(joined.String); err != nil {
				return nil, err
			}
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate assignments")
}

func (s *SQLiteStore) Seed(ctx context.Context, f Fixtures) error {
	if err := f.normalize(); err != nil {
		return err
	}

	assignments := make([][]any, len(f.Assignments))
	for i, a := range f.Assignments {
		var joined any
		if !a.JoinedAt.IsZero() {
			joined = formatTime(a.JoinedAt)
		}
		assignments[i] = []any{a.ID, a.CoordinatorID, a.StudyID, a.Role, joined}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: seed: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, step := range []struct {
		cfg  db.UpsertConfig
		rows [][]any
	}{
		{studyUpsert, f.studyRows()},
		{coordinatorUpsert, f.coordinatorRows()},
		{assignmentUpsert, assignments},
		{visitUpsert, f.visitRows()},
	} {
		if len(step.rows) == 0 {
			continue
		}
		stmt, err := tx.PrepareContext(ctx, mustUpsertSQL(step.cfg, db.SQLite))
		if err != nil {
			return eris.Wrapf(err, "sqlite: seed %s: prepare", step.cfg.Table)
		}
		for _, row := range step.rows {
			if _, err := stmt.ExecContext(ctx, row...); err != nil {
				stmt.Close() //nolint:errcheck
				return eris.Wrapf(err, "sqlite: seed %s", step.cfg.Table)
			}
		}
		stmt.Close() //nolint:errcheck
	}

	return eris.Wrap(tx.Commit(), "sqlite: seed: commit tx")
}
