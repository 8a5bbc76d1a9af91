package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "listingd/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Upsert(ctx context.Context, kind Kind, rec Record) (Outcome, error) {
	if s == nil || s.db == nil {
		return 0, ErrClosed
	}
	if rec.Key == "" {
		return 0, errors.New("empty record key")
	}

	fields, err := encodeFields(rec.Fields)
	if err != nil {
		return 0, err
	}

	// Single writer (MaxOpenConns=1), so check-then-write is race-free.
	var exists int
	err = s.db.QueryRowContext(ctx,
		`SELECT 1 FROM records WHERE kind = ? AND key = ?`, string(kind), rec.Key).Scan(&exists)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO records(kind, key, source, title, fields, first_seen, last_seen, active)
			 VALUES(?,?,?,?,?,?,?,?)`,
			string(kind), rec.Key, rec.Source, rec.Title, fields,
			rec.FirstSeen.UnixMilli(), rec.LastSeen.UnixMilli(), boolInt(rec.Active),
		)
		if err != nil {
			return 0, err
		}
		return OutcomeCreated, nil
	case err != nil:
		return 0, err
	default:
		// first_seen is immutable; everything else refreshes.
		_, err = s.db.ExecContext(ctx,
			`UPDATE records SET source = ?, title = ?, fields = ?, last_seen = ?, active = ?
			 WHERE kind = ? AND key = ?`,
			rec.Source, rec.Title, fields, rec.LastSeen.UnixMilli(), boolInt(rec.Active),
			string(kind), rec.Key,
		)
		if err != nil {
			return 0, err
		}
		return OutcomeUpdated, nil
	}
}

func (s *sqliteStore) Find(ctx context.Context, kind Kind, q Query) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}

	sb := strings.Builder{}
	sb.WriteString(`SELECT key, source, title, fields, first_seen, last_seen, active FROM records WHERE kind = ?`)
	args := []any{string(kind)}
	if q.Source != "" {
		sb.WriteString(` AND source = ?`)
		args = append(args, q.Source)
	}
	if q.ActiveOnly {
		sb.WriteString(` AND active = 1`)
	}
	sb.WriteString(` ORDER BY last_seen DESC`)
	if q.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec         Record
			fields      string
			first, last int64
			active      int
		)
		if err := rows.Scan(&rec.Key, &rec.Source, &rec.Title, &fields, &first, &last, &active); err != nil {
			return nil, err
		}
		rec.Fields = decodeFields(fields)
		rec.FirstSeen = time.UnixMilli(first)
		rec.LastSeen = time.UnixMilli(last)
		rec.Active = active != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *sqliteStore) MarkInactiveBefore(ctx context.Context, kind Kind, cutoff time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrClosed
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET active = 0 WHERE kind = ? AND active = 1 AND last_seen < ?`,
		string(kind), cutoff.UnixMilli(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *sqliteStore) DeleteOlderThan(ctx context.Context, kind Kind, cutoff time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrClosed
	}
	var (
		res sql.Result
		err error
	)
	if kind == KindRun {
		res, err = s.db.ExecContext(ctx,
			`DELETE FROM task_runs WHERE at < ?`, cutoff.UnixMilli())
	} else {
		res, err = s.db.ExecContext(ctx,
			`DELETE FROM records WHERE kind = ? AND last_seen < ?`, string(kind), cutoff.UnixMilli())
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *sqliteStore) AppendRun(ctx context.Context, e RunEntry) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_runs(at, task, ok, err, took_ms, detail) VALUES(?,?,?,?,?,?)`,
		e.At.UnixMilli(), e.Task, boolInt(e.OK), nullStr(e.Error), e.TookMS, nullStr(e.Detail),
	)
	return err
}

func encodeFields(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeFields(s string) map[string]string {
	if s == "" || s == "{}" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil
	}
	return m
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
