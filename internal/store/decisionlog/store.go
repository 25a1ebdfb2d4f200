// Package decisionlog keeps the raw model exchanges behind every
// synthesis: prompts, completions, parse state. Rows join to stored
// decisions through the bundle ref.
package decisionlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"quantagent/internal/decision"
)

// Record is one persisted model exchange.
type Record struct {
	ID         int64  `json:"id"`
	Timestamp  int64  `json:"ts"`
	Symbol     string `json:"symbol"`
	Interval   string `json:"interval"`
	BundleRef  string `json:"bundle_ref"`
	ProviderID string `json:"provider_id"`
	System     string `json:"system_prompt"`
	User       string `json:"user_prompt"`
	RawOutput  string `json:"raw_output"`
	ParseState string `json:"parse_state"`
	ImageCount int    `json:"image_count"`
	Error      string `json:"error,omitempty"`
}

// Query filters Recent. Zero values mean "any".
type Query struct {
	Symbol string
	Limit  int
	Offset int
}

// Store appends and reads synthesis log rows. The connection may be
// owned or borrowed from the gorm store to keep one handle per file.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	ownsDB bool
}

func NewStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("decision log: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path, ownsDB: true}, nil
}

// UseExternalDB reuses a connection opened elsewhere (the gorm store),
// avoiding two writers locking the same SQLite file.
func (s *Store) UseExternalDB(db *sql.DB) error {
	if s == nil {
		return fmt.Errorf("decision log not initialized")
	}
	if db == nil {
		return fmt.Errorf("external db is nil")
	}
	if err := ensureSchema(db); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ownsDB && s.db != nil && s.db != db {
		_ = s.db.Close()
	}
	s.db = db
	s.ownsDB = false
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	if !s.ownsDB {
		s.db = nil
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Append writes one exchange row.
func (s *Store) Append(ctx context.Context, rec Record) error {
	if s == nil {
		return fmt.Errorf("decision log not initialized")
	}
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return fmt.Errorf("decision log closed")
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().UnixMilli()
	}
	_, err := db.ExecContext(ctx, `INSERT INTO synthesis_logs
		(ts, symbol, interval, bundle_ref, provider_id, system_prompt, user_prompt, raw_output, parse_state, image_count, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp, rec.Symbol, rec.Interval, rec.BundleRef, rec.ProviderID,
		rec.System, rec.User, rec.RawOutput, rec.ParseState, rec.ImageCount, rec.Error,
		time.Now().UnixMilli())
	return err
}

// Recent returns exchange rows newest first.
func (s *Store) Recent(ctx context.Context, q Query) ([]Record, error) {
	if s == nil {
		return nil, fmt.Errorf("decision log not initialized")
	}
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("decision log closed")
	}
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	var (
		where []string
		args  []interface{}
	)
	if sym := strings.TrimSpace(q.Symbol); sym != "" {
		where = append(where, "symbol = ?")
		args = append(args, strings.ToUpper(sym))
	}
	query := "SELECT id, ts, symbol, interval, bundle_ref, provider_id, system_prompt, user_prompt, raw_output, parse_state, image_count, error FROM synthesis_logs"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ts DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, q.Offset)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.Symbol, &rec.Interval, &rec.BundleRef,
			&rec.ProviderID, &rec.System, &rec.User, &rec.RawOutput, &rec.ParseState,
			&rec.ImageCount, &rec.Error); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// AfterSynthesis implements decision.Observer. Write failures are
// swallowed; logging must never fail a cycle.
func (s *Store) AfterSynthesis(ctx context.Context, trace decision.Trace) {
	rec := Record{
		Timestamp:  trace.Timestamp,
		Symbol:     trace.Symbol,
		Interval:   trace.Interval,
		BundleRef:  trace.BundleRef,
		ProviderID: trace.Provider,
		System:     trace.System,
		User:       trace.User,
		RawOutput:  trace.Raw,
		ParseState: string(trace.State),
		ImageCount: trace.ImageCount,
		Error:      trace.Err,
	}
	_ = s.Append(ctx, rec)
}

var _ decision.Observer = (*Store)(nil)

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS synthesis_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			symbol TEXT,
			interval TEXT,
			bundle_ref TEXT,
			provider_id TEXT,
			system_prompt TEXT,
			user_prompt TEXT,
			raw_output TEXT,
			parse_state TEXT,
			image_count INTEGER,
			error TEXT,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_synthesis_logs_symbol_ts_id ON synthesis_logs(symbol, ts DESC, id DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_synthesis_logs_bundle_ref ON synthesis_logs(bundle_ref);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("decision log schema: %w", err)
		}
	}
	for _, col := range []struct {
		table, column, typ string
	}{
		{"synthesis_logs", "bundle_ref", "TEXT"},
		{"synthesis_logs", "parse_state", "TEXT"},
	} {
		if err := addColumnIfMissing(db, col.table, col.column, col.typ); err != nil {
			return err
		}
	}
	return nil
}

func addColumnIfMissing(db *sql.DB, table, column, typ string) error {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return err
	}
	defer rows.Close()
	exists := false
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return err
		}
		if strings.EqualFold(name, column) {
			exists = true
			break
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, typ))
	return err
}
