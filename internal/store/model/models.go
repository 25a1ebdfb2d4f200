// Package model holds the gorm row types backing the decision store.
package model

import "gorm.io/datatypes"

// DecisionModel is one persisted decision together with the bundle it
// was made from. Timestamps are unix milliseconds.
type DecisionModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	TraceID       string         `gorm:"column:trace_id;uniqueIndex"`
	Symbol        string         `gorm:"column:symbol;index:idx_decisions_symbol_created,priority:1"`
	Interval      string         `gorm:"column:interval"`
	AsOfUnix      int64          `gorm:"column:as_of"`
	Source        string         `gorm:"column:source"`
	Action        string         `gorm:"column:action;index"`
	Confidence    float64        `gorm:"column:confidence"`
	Justification string         `gorm:"column:justification"`
	RiskLevel     string         `gorm:"column:risk_level"`
	KeyFactors    datatypes.JSON `gorm:"column:key_factors_json;type:TEXT"`
	StopLoss      float64        `gorm:"column:stop_loss"`
	TakeProfit    float64        `gorm:"column:take_profit"`
	BundleRef     string         `gorm:"column:bundle_ref;index"`
	BundleJSON    datatypes.JSON `gorm:"column:bundle_json;type:TEXT"`
	ElapsedMS     int64          `gorm:"column:elapsed_ms"`
	CreatedAtUnix int64          `gorm:"column:created_at;index:idx_decisions_symbol_created,priority:2"`
}

func (DecisionModel) TableName() string { return "decisions" }
