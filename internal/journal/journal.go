// Package journal keeps a SQLite record of finished runs: what was asked,
// how it ended and which partially written files were left behind.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one finished run.
type Entry struct {
	Started    time.Time
	Finished   time.Time
	ID         string
	Kind       string
	Outcome    string
	Error      string
	Sources    []string
	Dests      []string
	Incomplete []string
	Entries    int64
	Bytes      int64
	Skipped    int64
	Failed     int64
	Seq        int64
}

// Journal is safe for concurrent use.
type Journal struct {
	db   *sql.DB
	path string
}

// Path returns the default journal location:
// $XDG_STATE_HOME/ferry/journal.db, falling back to ~/.local/state.
func Path() string {
	dir := os.Getenv("XDG_STATE_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "ferry-journal.db")
		}
		dir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(dir, "ferry", "journal.db")
}

// Open opens (or creates) the journal at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	j := &Journal{db: db, path: path}
	if err := j.init(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) init() error {
	_, err := j.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			seq      INTEGER PRIMARY KEY AUTOINCREMENT,
			id       TEXT NOT NULL,
			kind     TEXT NOT NULL,
			outcome  TEXT NOT NULL,
			error    TEXT NOT NULL DEFAULT '',
			sources  TEXT NOT NULL,
			dests    TEXT NOT NULL,
			entries  INTEGER NOT NULL,
			bytes    INTEGER NOT NULL,
			skipped  INTEGER NOT NULL,
			failed   INTEGER NOT NULL,
			started  INTEGER NOT NULL,
			finished INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS incomplete (
			path TEXT PRIMARY KEY,
			seq  INTEGER NOT NULL REFERENCES runs(seq)
		);
	`)
	if err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// Path lists are stored as JSON arrays.
func join(list []string) string {
	if len(list) == 0 {
		return ""
	}
	b, _ := json.Marshal(list) //nolint:errchkjson // []string always marshals
	return string(b)
}

func split(s string) []string {
	var out []string
	if s == "" || json.Unmarshal([]byte(s), &out) != nil {
		return nil
	}
	return out
}

// Record stores e and its incomplete files and returns its sequence number.
func (j *Journal) Record(ctx context.Context, e Entry) (int64, error) {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, kind, outcome, error, sources, dests, entries, bytes, skipped, failed, started, finished)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Kind, e.Outcome, e.Error, join(e.Sources), join(e.Dests),
		e.Entries, e.Bytes, e.Skipped, e.Failed, e.Started.UnixNano(), e.Finished.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}

	if len(e.Incomplete) > 0 {
		stmt, err := tx.PrepareContext(ctx, "INSERT OR REPLACE INTO incomplete (path, seq) VALUES (?, ?)")
		if err != nil {
			return 0, fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()
		for _, p := range e.Incomplete {
			if _, err := stmt.ExecContext(ctx, p, seq); err != nil {
				return 0, fmt.Errorf("insert %s: %w", p, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return seq, nil
}

// Recent returns up to n runs, newest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, id, kind, outcome, error, sources, dests, entries, bytes, skipped, failed, started, finished
		FROM runs ORDER BY seq DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                 Entry
			sources, dests    string
			started, finished int64
		)
		if err := rows.Scan(&e.Seq, &e.ID, &e.Kind, &e.Outcome, &e.Error, &sources, &dests,
			&e.Entries, &e.Bytes, &e.Skipped, &e.Failed, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		e.Sources, e.Dests = split(sources), split(dests)
		e.Started, e.Finished = time.Unix(0, started), time.Unix(0, finished)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].Incomplete, err = j.incompleteOf(ctx, out[i].Seq); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (j *Journal) incompleteOf(ctx context.Context, seq int64) ([]string, error) {
	return j.paths(ctx, "SELECT path FROM incomplete WHERE seq = ? ORDER BY path", seq)
}

func (j *Journal) paths(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query incomplete: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Incomplete lists every partial file still recorded, across runs.
func (j *Journal) Incomplete(ctx context.Context) ([]string, error) {
	return j.paths(ctx, "SELECT path FROM incomplete ORDER BY path")
}

// Forget drops path from the incomplete list.
func (j *Journal) Forget(ctx context.Context, path string) error {
	_, err := j.db.ExecContext(ctx, "DELETE FROM incomplete WHERE path = ?", path)
	if err != nil {
		return fmt.Errorf("forget %s: %w", path, err)
	}
	return nil
}

// Clean removes the recorded partial files from disk and forgets them.
// Files that are already gone are forgotten too. It returns the paths it
// removed.
func (j *Journal) Clean(ctx context.Context) ([]string, error) {
	paths, err := j.Incomplete(ctx)
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, p := range paths {
		err := os.Remove(p)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("remove %s: %w", p, err)
		}
		if err == nil {
			removed = append(removed, p)
		}
		if err := j.Forget(ctx, p); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
