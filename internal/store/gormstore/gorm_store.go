// Package gormstore persists decisions in SQLite through gorm.
package gormstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"quantagent/internal/decision"
	"quantagent/internal/orchestrator"
	storemodel "quantagent/internal/store/model"
)

// ErrNotFound marks lookups for a trace that was never stored.
var ErrNotFound = errors.New("decision not found")

// DecisionRecord is the JSON-facing view of a stored decision.
type DecisionRecord struct {
	ID        int64             `json:"id"`
	TraceID   string            `json:"trace_id"`
	Symbol    string            `json:"symbol"`
	Interval  string            `json:"interval"`
	AsOf      time.Time         `json:"as_of"`
	Source    string            `json:"source"`
	Decision  decision.Decision `json:"decision"`
	Bundle    json.RawMessage   `json:"bundle,omitempty"`
	ElapsedMS int64             `json:"elapsed_ms"`
	CreatedAt time.Time         `json:"created_at"`
}

// DecisionQuery filters ListDecisions. Zero values mean "any".
type DecisionQuery struct {
	Symbol string
	Action string
	Limit  int
	Offset int
}

// GormStore writes and reads decision rows. Safe for concurrent use;
// SQLite runs in WAL mode with a small connection cap.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: empty database path")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	// The _pragma DSN options above are modernc.org/sqlite syntax, and
	// builds run CGO_ENABLED=0, so route gorm through that pure-Go driver
	// instead of the dialector's cgo-only default (mattn/go-sqlite3).
	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&storemodel.DecisionModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: a little parallelism for concurrent HTTP reads while
	// keeping lock contention low.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &GormStore{db: db}, nil
}

func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SQLDB exposes the underlying connection so the synthesis log can
// share it instead of opening a second handle on the same file.
func (s *GormStore) SQLDB() (*sql.DB, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	return s.db.DB()
}

// SaveOutcome stores one completed cycle.
func (s *GormStore) SaveOutcome(ctx context.Context, out *orchestrator.Outcome) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if out == nil {
		return fmt.Errorf("nil outcome")
	}
	m, err := newDecisionModel(out)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

// GetDecision looks one decision up by trace ID.
func (s *GormStore) GetDecision(ctx context.Context, traceID string) (DecisionRecord, error) {
	if s == nil || s.db == nil {
		return DecisionRecord{}, fmt.Errorf("gorm store not initialized")
	}
	var m storemodel.DecisionModel
	err := s.db.WithContext(ctx).Where("trace_id = ?", strings.TrimSpace(traceID)).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DecisionRecord{}, ErrNotFound
	}
	if err != nil {
		return DecisionRecord{}, err
	}
	return recordFromModel(m), nil
}

// ListDecisions returns stored decisions newest first.
func (s *GormStore) ListDecisions(ctx context.Context, q DecisionQuery) ([]DecisionRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	tx := s.db.WithContext(ctx).Model(&storemodel.DecisionModel{})
	if sym := strings.TrimSpace(q.Symbol); sym != "" {
		tx = tx.Where("symbol = ?", strings.ToUpper(sym))
	}
	if act := strings.TrimSpace(q.Action); act != "" {
		tx = tx.Where("action = ?", strings.ToUpper(act))
	}
	var models []storemodel.DecisionModel
	if err := tx.Order("created_at DESC, id DESC").Limit(limit).Offset(q.Offset).Find(&models).Error; err != nil {
		return nil, err
	}
	records := make([]DecisionRecord, 0, len(models))
	for _, m := range models {
		records = append(records, recordFromModel(m))
	}
	return records, nil
}

func newDecisionModel(out *orchestrator.Outcome) (storemodel.DecisionModel, error) {
	factors, err := json.Marshal(out.Decision.KeyFactors)
	if err != nil {
		return storemodel.DecisionModel{}, fmt.Errorf("marshal key factors: %w", err)
	}
	var bundleJSON []byte
	if out.Bundle != nil {
		shadow := *out.Bundle
		shadow.Pattern.Chart = nil
		bundleJSON, err = json.Marshal(&shadow)
		if err != nil {
			return storemodel.DecisionModel{}, fmt.Errorf("marshal bundle: %w", err)
		}
	}
	return storemodel.DecisionModel{
		TraceID:       out.TraceID,
		Symbol:        out.Symbol,
		Interval:      out.Interval,
		AsOfUnix:      out.AsOf.UnixMilli(),
		Source:        out.Source,
		Action:        string(out.Decision.Action),
		Confidence:    out.Decision.Confidence,
		Justification: out.Decision.Justification,
		RiskLevel:     out.Decision.RiskLevel,
		KeyFactors:    datatypes.JSON(factors),
		StopLoss:      out.Decision.StopLoss,
		TakeProfit:    out.Decision.TakeProfit,
		BundleRef:     out.Decision.BundleRef,
		BundleJSON:    datatypes.JSON(bundleJSON),
		ElapsedMS:     out.ElapsedMS,
		CreatedAtUnix: time.Now().UnixMilli(),
	}, nil
}

func recordFromModel(m storemodel.DecisionModel) DecisionRecord {
	var factors []string
	if len(m.KeyFactors) > 0 {
		_ = json.Unmarshal(m.KeyFactors, &factors)
	}
	return DecisionRecord{
		ID:       m.ID,
		TraceID:  m.TraceID,
		Symbol:   m.Symbol,
		Interval: m.Interval,
		AsOf:     time.UnixMilli(m.AsOfUnix).UTC(),
		Source:   m.Source,
		Decision: decision.Decision{
			Action:        decision.Action(m.Action),
			Confidence:    m.Confidence,
			Justification: m.Justification,
			RiskLevel:     m.RiskLevel,
			KeyFactors:    factors,
			StopLoss:      m.StopLoss,
			TakeProfit:    m.TakeProfit,
			BundleRef:     m.BundleRef,
		},
		Bundle:    json.RawMessage(m.BundleJSON),
		ElapsedMS: m.ElapsedMS,
		CreatedAt: time.UnixMilli(m.CreatedAtUnix).UTC(),
	}
}

func ensureDir(path string) error {
	dir := filepathDir(path)
	if dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func filepathDir(path string) string {
	last := strings.LastIndex(path, "/")
	if last == -1 {
		last = strings.LastIndex(path, "\\")
	}
	if last == -1 {
		return ""
	}
	return path[:last]
}
