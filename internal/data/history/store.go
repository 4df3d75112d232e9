package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	domainErrors "archgraph/internal/core/errors"
	"archgraph/internal/shared/observability"

	_ "modernc.org/sqlite"
)

const (
	driverName         = "sqlite"
	maxAttempts        = 5
	defaultBusyTimeout = 2 * time.Second
)

// Store persists points in one SQLite file per project root. All access goes
// through a single connection and appends run inside BEGIN IMMEDIATE, so
// concurrent writers (including other processes) are serialized by SQLite.
type Store struct {
	path        string
	busyTimeout time.Duration
	db          *sql.DB
	mu          sync.Mutex

	// lastRecovery is the CORRUPT_STATE error of the latest recovery.
	lastRecovery error
}

// Options tunes the SQLite connection.
type Options struct {
	BusyTimeout time.Duration
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Open opens or creates the history database at path. An unreadable database
// is moved aside and replaced with an empty one.
func Open(path string, opts Options) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	s := &Store{path: cleanPath, busyTimeout: opts.BusyTimeout}
	if s.busyTimeout <= 0 {
		s.busyTimeout = defaultBusyTimeout
	}
	if err := s.open(); err != nil {
		if !IsCorruptError(err) {
			return nil, err
		}
		if err := s.recover(err); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) open() error {
	// busy_timeout + WAL reduce lock conflicts during watch-mode churn;
	// _txlock=immediate takes the write lock before the read in Append.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_txlock=immediate",
		s.path, s.busyTimeout.Milliseconds())
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return fmt.Errorf("open sqlite history %q: %w", s.path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping sqlite history %q: %w", s.path, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return fmt.Errorf("initialize sqlite schema %q: %w", s.path, err)
	}
	s.db = db
	return nil
}

// recover moves the damaged database aside and opens a fresh one. The cause is
// kept as a CORRUPT_STATE error for LastRecovery.
func (s *Store) recover(cause error) error {
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}

	corrupt := domainErrors.AddContext(
		domainErrors.Wrap(cause, domainErrors.CodeCorruptState, "history store unreadable"),
		domainErrors.CtxPath, s.path)

	aside := fmt.Sprintf("%s.corrupt-%s", s.path, time.Now().UTC().Format("20060102T150405.000000000"))
	if err := os.Rename(s.path, aside); err != nil && !os.IsNotExist(err) {
		if rmErr := os.Remove(s.path); rmErr != nil && !os.IsNotExist(rmErr) {
			return domainErrors.AddContext(
				domainErrors.Wrap(rmErr, domainErrors.CodeCorruptState, "discard corrupt history"),
				domainErrors.CtxPath, s.path)
		}
		aside = ""
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(s.path + suffix)
	}
	if aside != "" {
		corrupt = domainErrors.AddContext(corrupt, "moved_to", aside)
	}
	s.lastRecovery = corrupt

	observability.HistoryRecoveriesTotal.Inc()
	slog.Warn("history store unreadable, starting fresh", "path", s.path, "moved_to", aside, "error", corrupt)
	return s.open()
}

// LastRecovery returns the CORRUPT_STATE error that triggered the most recent
// recovery, or nil if the store never had to start fresh.
func (s *Store) LastRecovery() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRecovery
}

func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Load returns every point in append order. Corrupt contents are discarded and
// reported as an empty history.
func (s *Store) Load(ctx context.Context) ([]Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("history store %q is closed", s.path)
	}

	var points []Point
	err := s.withRetry("load points", func() error {
		var qErr error
		points, qErr = loadPoints(ctx, s.db)
		return qErr
	})
	if err != nil && IsCorruptError(err) {
		if rErr := s.recover(err); rErr != nil {
			return nil, rErr
		}
		return nil, nil
	}
	return points, err
}

// Append loads the existing points, lets build derive the next one from them
// and inserts it, all inside one write transaction. The stored point, with its
// sequence number set, is returned.
func (s *Store) Append(ctx context.Context, build func(prev []Point) (Point, error)) (Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return Point{}, fmt.Errorf("history store %q is closed", s.path)
	}

	var out Point
	run := func() error {
		p, err := s.appendTx(ctx, build)
		if err == nil {
			out = p
		}
		return err
	}
	err := s.withRetry("append point", run)
	if err != nil && IsCorruptError(err) {
		if rErr := s.recover(err); rErr != nil {
			return Point{}, rErr
		}
		err = s.withRetry("append point", run)
	}
	if err != nil {
		return Point{}, err
	}
	return out, nil
}

func (s *Store) appendTx(ctx context.Context, build func(prev []Point) (Point, error)) (p Point, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Point{}, fmt.Errorf("begin append: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	prev, err := loadPoints(ctx, tx)
	if err != nil {
		return Point{}, err
	}
	p, err = build(prev)
	if err != nil {
		return Point{}, err
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now().UTC()
	}
	if p.SmellCounts == nil {
		p.SmellCounts = map[string]int{}
	}

	res, err := tx.ExecContext(ctx, `
INSERT INTO points (
  run_id, ts_utc, modules, dependencies, cycles, max_degree, total_smells,
  maturity, version, git_commit, risk_score
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.RunID,
		p.Timestamp.UTC().Format(time.RFC3339Nano),
		p.Modules,
		p.Dependencies,
		p.Cycles,
		p.MaxDegree,
		p.TotalSmells,
		p.Maturity,
		p.Version,
		p.GitCommit,
		p.RiskScore,
	)
	if err != nil {
		return Point{}, fmt.Errorf("insert point: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return Point{}, fmt.Errorf("read point sequence: %w", err)
	}

	types := make([]string, 0, len(p.SmellCounts))
	for t := range p.SmellCounts {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO smell_counts (seq, smell_type, count) VALUES (?, ?, ?)`,
			seq, t, p.SmellCounts[t]); err != nil {
			return Point{}, fmt.Errorf("insert smell count %q: %w", t, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return Point{}, fmt.Errorf("commit append: %w", err)
	}
	p.Seq = seq
	p.Timestamp = p.Timestamp.UTC()
	return p, nil
}

func loadPoints(ctx context.Context, q queryer) ([]Point, error) {
	rows, err := q.QueryContext(ctx, `
SELECT
  seq, run_id, ts_utc, modules, dependencies, cycles, max_degree, total_smells,
  maturity, version, git_commit, risk_score
FROM points
ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}

	points := make([]Point, 0)
	index := make(map[int64]int)
	for rows.Next() {
		var (
			tsRaw string
			p     Point
		)
		if err := rows.Scan(
			&p.Seq,
			&p.RunID,
			&tsRaw,
			&p.Modules,
			&p.Dependencies,
			&p.Cycles,
			&p.MaxDegree,
			&p.TotalSmells,
			&p.Maturity,
			&p.Version,
			&p.GitCommit,
			&p.RiskScore,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan point row: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, tsRaw)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("parse point timestamp %q: %w", tsRaw, err)
		}
		p.Timestamp = ts.UTC()
		p.SmellCounts = map[string]int{}
		index[p.Seq] = len(points)
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate point rows: %w", err)
	}
	rows.Close()

	counts, err := q.QueryContext(ctx, `SELECT seq, smell_type, count FROM smell_counts ORDER BY seq ASC, smell_type ASC`)
	if err != nil {
		return nil, fmt.Errorf("query smell counts: %w", err)
	}
	defer counts.Close()
	for counts.Next() {
		var (
			seq   int64
			typ   string
			count int
		)
		if err := counts.Scan(&seq, &typ, &count); err != nil {
			return nil, fmt.Errorf("scan smell count row: %w", err)
		}
		if i, ok := index[seq]; ok {
			points[i].SmellCounts[typ] = count
		}
	}
	if err := counts.Err(); err != nil {
		return nil, fmt.Errorf("iterate smell count rows: %w", err)
	}
	return points, nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// IsCorruptError reports whether err means the database file cannot be trusted.
func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") ||
		strings.Contains(msg, "not a database") ||
		strings.Contains(msg, "file is encrypted") ||
		strings.Contains(msg, "parse point timestamp") ||
		errors.Is(err, os.ErrInvalid)
}
