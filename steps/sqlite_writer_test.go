package steps

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/ygrebnov/asyncproc"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	// a single connection keeps the in-memory database shared
	db.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func TestSQLiteWriter_StoresTasks(t *testing.T) {
	ctx := context.Background()
	w, err := NewSQLiteWriter(ctx, newTestDB(t), "tasks")
	require.NoError(t, err)

	p, err := asyncproc.New(ctx, w.Step)
	require.NoError(t, err)

	require.NoError(t, p.PushTask(1, "two", 3.0))
	require.NoError(t, p.PushTask())
	p.Close()
	require.False(t, p.WasErrorThrown())

	r1, err := p.PopResult()
	require.NoError(t, err)
	require.Equal(t, asyncproc.Result{int64(1)}, r1)
	r2, err := p.PopResult()
	require.NoError(t, err)
	require.Equal(t, asyncproc.Result{int64(2)}, r2)

	rows, err := w.Rows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.Equal(t, int64(1), rows[0].ID)
	require.Equal(t, 0, rows[0].TaskIndex)
	require.NotEmpty(t, rows[0].TaskID)
	require.Equal(t, []asyncproc.Value{1, "two", 3.0}, rows[0].Values)
	require.False(t, rows[0].EnqueuedAt.IsZero())

	require.Equal(t, 1, rows[1].TaskIndex)
	require.Nil(t, rows[1].Values)
}

func TestSQLiteWriter_SchemaIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	w1, err := NewSQLiteWriter(ctx, db, "samples")
	require.NoError(t, err)
	_, err = w1.Step(ctx, asyncproc.Task{ID: "a", Values: []asyncproc.Value{"x"}})
	require.NoError(t, err)

	w2, err := NewSQLiteWriter(ctx, db, "samples")
	require.NoError(t, err)
	rows, err := w2.Rows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestSQLiteWriter_InvalidTable(t *testing.T) {
	for _, name := range []string{"", "1abc", "drop table;", "a-b"} {
		_, err := NewSQLiteWriter(context.Background(), newTestDB(t), name)
		require.ErrorIs(t, err, ErrInvalidTable, "table %q", name)
	}
}

func TestSQLiteWriter_UnencodableValueFailsTask(t *testing.T) {
	ctx := context.Background()
	w, err := NewSQLiteWriter(ctx, newTestDB(t), "tasks")
	require.NoError(t, err)

	_, err = w.Step(ctx, asyncproc.Task{ID: "a", Values: []asyncproc.Value{func() {}}})
	require.Error(t, err)

	rows, err := w.Rows(ctx)
	require.NoError(t, err)
	require.Empty(t, rows)
}
