package steps

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/gob"
	"fmt"
	"regexp"
	"time"

	"github.com/ygrebnov/asyncproc"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteWriter stores every task as a row and returns the new row id.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing
// the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
//
// Task values are gob-encoded; non-basic concrete types must be registered with gob.Register.
type SQLiteWriter struct {
	db     *sql.DB
	table  string
	insert string
}

// Row is a stored task.
type Row struct {
	ID         int64
	TaskID     string
	TaskIndex  int
	EnqueuedAt time.Time
	Values     []asyncproc.Value
}

// NewSQLiteWriter initializes the table schema and returns a writer.
func NewSQLiteWriter(ctx context.Context, db *sql.DB, table string) (*SQLiteWriter, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	w := &SQLiteWriter{
		db:     db,
		table:  table,
		insert: `INSERT INTO ` + table + ` (task_id, task_index, enqueued_at, task_values) VALUES (?, ?, ?, ?)`,
	}
	if err := w.initSchema(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *SQLiteWriter) initSchema(ctx context.Context) error {
	_, err := w.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+w.table+` (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id TEXT NOT NULL,
			task_index INTEGER NOT NULL,
			enqueued_at INTEGER NOT NULL,
			task_values BLOB
		);`,
	)
	return err
}

// Step inserts t and returns a single output: the row id (int64).
func (w *SQLiteWriter) Step(ctx context.Context, t asyncproc.Task) (asyncproc.Result, error) {
	blob, err := encodeValues(t.Values)
	if err != nil {
		return nil, err
	}
	res, err := w.db.ExecContext(ctx, w.insert, t.ID, t.Index, t.EnqueuedAt.UnixNano(), blob)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return asyncproc.Result{id}, nil
}

// Rows returns every stored row ordered by id.
func (w *SQLiteWriter) Rows(ctx context.Context) ([]Row, error) {
	rows, err := w.db.QueryContext(ctx,
		`SELECT id, task_id, task_index, enqueued_at, task_values FROM `+w.table+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			r    Row
			ns   int64
			blob []byte
		)
		if err := rows.Scan(&r.ID, &r.TaskID, &r.TaskIndex, &ns, &blob); err != nil {
			return nil, err
		}
		r.EnqueuedAt = time.Unix(0, ns)
		if r.Values, err = decodeValues(blob); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func encodeValues(values []asyncproc.Value) ([]byte, error) {
	if len(values) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(values); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeValues(data []byte) ([]asyncproc.Value, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var values []asyncproc.Value
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&values); err != nil {
		return nil, err
	}
	return values, nil
}
