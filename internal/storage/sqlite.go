package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"novacal/internal/schedule"
	logx "novacal/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// maxInArgs keeps IN (...) lists well under SQLite's bound-parameter limit.
const maxInArgs = 500

const taskColumns = `id, owner_id, title, description, start_ms, end_ms, due_ms, importance, auto_schedule, completed`

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
	log.Debug("sqlite store ready", logx.String("path", path))
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

func (s *sqliteStore) TasksByIDs(ctx context.Context, ownerID string, ids []string) ([]schedule.Task, error) {
	var out []schedule.Task
	seen := map[string]bool{}
	for start := 0; start < len(ids); start += maxInArgs {
		end := min(start+maxInArgs, len(ids))
		chunk := ids[start:end]

		args := make([]any, 0, len(chunk)+1)
		args = append(args, ownerID)
		for _, id := range chunk {
			args = append(args, id)
		}
		q := `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = ? AND id IN (` + placeholders(len(chunk)) + `)`
		tasks, err := s.queryTasks(ctx, q, args...)
		if err != nil {
			return nil, err
		}
		for _, t := range tasks {
			if !seen[t.ID] {
				seen[t.ID] = true
				out = append(out, t)
			}
		}
	}
	return out, nil
}

func (s *sqliteStore) TasksInRange(ctx context.Context, ownerID string, from, to time.Time) ([]schedule.Task, error) {
	return s.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE owner_id = ? AND start_ms < ? AND end_ms > ?
		 ORDER BY start_ms, id`,
		ownerID, to.UnixMilli(), from.UnixMilli(),
	)
}

func (s *sqliteStore) ListTasks(ctx context.Context, ownerID string) ([]schedule.Task, error) {
	return s.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE owner_id = ? ORDER BY start_ms, id`,
		ownerID,
	)
}

func (s *sqliteStore) StaleAutoTasks(ctx context.Context, endedBefore, dueFrom time.Time) ([]schedule.Task, error) {
	return s.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE auto_schedule = 1 AND completed = 0 AND end_ms < ? AND COALESCE(due_ms, end_ms) >= ?
		 ORDER BY owner_id, start_ms, id`,
		endedBefore.UnixMilli(), dueFrom.UnixMilli(),
	)
}

func (s *sqliteStore) UpdateTaskTimes(ctx context.Context, id string, start, end time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET start_ms = ?, end_ms = ? WHERE id = ?`,
		start.UnixMilli(), end.UnixMilli(), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) CreateTask(ctx context.Context, t schedule.Task) (schedule.Task, error) {
	t, err := normalizeNew(t, newID)
	if err != nil {
		return t, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks(`+taskColumns+`) VALUES(?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.OwnerID, t.Title, t.Description, t.Start.UnixMilli(), t.End.UnixMilli(),
		nullMillis(t.Due), t.Importance, boolInt(t.AutoSchedule), boolInt(t.Completed),
	)
	return t, err
}

func (s *sqliteStore) WorkingHours(ctx context.Context, ownerID string) ([]WorkingHours, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT day, opens, closes FROM working_hours WHERE owner_id = ? ORDER BY day`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WorkingHours
	for rows.Next() {
		var (
			day          int
			opens, closes string
		)
		if err := rows.Scan(&day, &opens, &closes); err != nil {
			return nil, err
		}
		if day < 0 || day > 6 {
			s.log.Warn("skipping working hours row with invalid day", logx.String("owner", ownerID), logx.Int("day", day))
			continue
		}
		start, err := schedule.ParseClock(opens)
		if err != nil {
			return nil, fmt.Errorf("working_hours %s/%d: %w", ownerID, day, err)
		}
		end, err := schedule.ParseClock(closes)
		if err != nil {
			return nil, fmt.Errorf("working_hours %s/%d: %w", ownerID, day, err)
		}
		out = append(out, WorkingHours{Day: time.Weekday(day), Start: start, End: end})
	}
	return out, rows.Err()
}

func (s *sqliteStore) PutWorkingHours(ctx context.Context, ownerID string, hours []WorkingHours) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, h := range hours {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO working_hours(owner_id, day, opens, closes) VALUES(?,?,?,?)
			 ON CONFLICT(owner_id, day) DO UPDATE SET opens=excluded.opens, closes=excluded.closes`,
			ownerID, int(h.Day), h.Start.String(), h.End.String(),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) OwnerByTokenHash(ctx context.Context, hash string) (string, bool, error) {
	var owner string
	err := s.db.QueryRowContext(ctx, `SELECT owner_id FROM api_tokens WHERE token_hash = ?`, hash).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return owner, true, nil
}

func (s *sqliteStore) PutToken(ctx context.Context, hash, ownerID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_tokens(token_hash, owner_id) VALUES(?,?)
		 ON CONFLICT(token_hash) DO UPDATE SET owner_id=excluded.owner_id`,
		hash, ownerID,
	)
	return err
}

func (s *sqliteStore) queryTasks(ctx context.Context, q string, args ...any) ([]schedule.Task, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.Task
	for rows.Next() {
		var (
			t              schedule.Task
			startMS, endMS int64
			dueMS          sql.NullInt64
			auto, done     int
		)
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Description, &startMS, &endMS, &dueMS, &t.Importance, &auto, &done); err != nil {
			return nil, err
		}
		t.Start = time.UnixMilli(startMS).UTC()
		t.End = time.UnixMilli(endMS).UTC()
		if dueMS.Valid {
			t.Due = time.UnixMilli(dueMS.Int64).UTC()
		}
		t.AutoSchedule = auto != 0
		t.Completed = done != 0
		out = append(out, t)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullMillis(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
