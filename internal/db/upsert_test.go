package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var studiesUpsert = UpsertConfig{
	Table:        "studies",
	Columns:      []string{"id", "name", "lifecycle"},
	ConflictKeys: []string{"id"},
}

func TestUpsertSQL_Postgres(t *testing.T) {
	got, err := UpsertSQL(studiesUpsert, Postgres)
	require.NoError(t, err)
	assert.Equal(t,
		`INSERT INTO "studies" ("id", "name", "lifecycle") VALUES ($1, $2, $3) ON CONFLICT ("id") DO UPDATE SET "name" = excluded."name", "lifecycle" = excluded."lifecycle"`,
		got,
	)
}

func TestUpsertSQL_SQLite(t *testing.T) {
	got, err := UpsertSQL(UpsertConfig{
		Table:        "coordinator_weekly_logs",
		Columns:      []string{"id", "coordinator_id", "week_start", "notes"},
		ConflictKeys: []string{"coordinator_id", "week_start"},
		UpdateCols:   []string{"notes"},
	}, SQLite)
	require.NoError(t, err)
	assert.Equal(t,
		`INSERT INTO "coordinator_weekly_logs" ("id", "coordinator_id", "week_start", "notes") VALUES (?, ?, ?, ?) ON CONFLICT ("coordinator_id", "week_start") DO UPDATE SET "notes" = excluded."notes"`,
		got,
	)
}

func TestUpsertSQL_KeysOnly(t *testing.T) {
	got, err := UpsertSQL(UpsertConfig{
		Table:        "visit_schedule",
		Columns:      []string{"study_id", "visit_type"},
		ConflictKeys: []string{"study_id", "visit_type"},
	}, SQLite)
	require.NoError(t, err)
	assert.Contains(t, got, `ON CONFLICT ("study_id", "visit_type") DO NOTHING`)
}

func TestUpsertSQL_Invalid(t *testing.T) {
	_, err := UpsertSQL(UpsertConfig{Table: "t", ConflictKeys: []string{"id"}}, Postgres)
	assert.ErrorContains(t, err, "no columns specified")

	_, err = UpsertSQL(UpsertConfig{Table: "t", Columns: []string{"id"}}, Postgres)
	assert.ErrorContains(t, err, "no conflict keys specified")
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.TODO(), nil, studiesUpsert, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "studies",
		ConflictKeys: []string{"id"},
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_studies" \(LIKE "studies" INCLUDING DEFAULTS\) ON COMMIT DROP`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_studies"}, studiesUpsert.Columns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "studies" .* SELECT .* FROM "_tmp_upsert_studies" ON CONFLICT \("id"\) DO UPDATE`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, studiesUpsert, [][]any{
		{"S-1", "CARDIO-1", "active"},
		{"S-2", "ONC-7", "start_up"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_studies"}, studiesUpsert.Columns).
		WillReturnError(fmt.Errorf("copy failed"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, studiesUpsert, [][]any{{"S-1", "CARDIO-1", "active"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table for studies")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", `"simple"`},
		{"workload.studies", `"workload"."studies"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := sanitizeTable(tt.input)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	result := quoteAndJoin([]string{"id", "name", "value"})
	assert.Equal(t, `"id", "name", "value"`, result)
}
