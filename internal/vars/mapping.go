// Package vars extracts {{name}} and {{name:default}} placeholders from
// prompt text and substitutes values for them.
package vars

import (
	"fmt"
	"time"
)

// SourceType selects where a placeholder's value comes from.
type SourceType string

const (
	SourceManual SourceType = "manual"
	SourceStep   SourceType = "step"
	SourceSystem SourceType = "system"
)

// SystemValue names a value computed from the clock.
type SystemValue string

const (
	SystemDate     SystemValue = "date"
	SystemTime     SystemValue = "time"
	SystemDateTime SystemValue = "datetime"
)

// Layouts for the system values.
const (
	DateLayout     = "2006-01-02"
	TimeLayout     = "15:04:05"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// InitialKey is the reserved Responses key holding the main prompt's output.
const InitialKey = "initial"

// Responses maps a step id (or InitialKey) to that step's output text.
// It lives for a single chain run.
type Responses map[string]string

// Mapping binds a placeholder name to a value source. Only the fields of
// the selected Type are meaningful.
type Mapping struct {
	Name    string      `json:"name" yaml:"name"`
	Type    SourceType  `json:"type" yaml:"type"`
	Default string      `json:"default,omitempty" yaml:"default,omitempty"`
	Step    string      `json:"step,omitempty" yaml:"step,omitempty"`
	System  SystemValue `json:"system,omitempty" yaml:"system,omitempty"`
}

// SetType switches the source type and discards the fields the new type
// does not use.
func (m *Mapping) SetType(t SourceType) {
	m.Type = t
	m.Normalize()
}

// Normalize clears fields irrelevant to m.Type. An empty type becomes manual.
func (m *Mapping) Normalize() {
	if m.Type == "" {
		m.Type = SourceManual
	}
	switch m.Type {
	case SourceManual:
		m.Step, m.System = "", ""
	case SourceStep:
		m.Default, m.System = "", ""
	case SourceSystem:
		m.Default, m.Step = "", ""
		if m.System == "" {
			m.System = SystemDate
		}
	}
}

// Validate checks the type and the type-specific field.
func (m Mapping) Validate() error {
	switch m.Type {
	case SourceManual, "":
		return nil
	case SourceStep:
		if m.Step == "" {
			return fmt.Errorf("variable %q: step source needs a step id", m.Name)
		}
		return nil
	case SourceSystem:
		switch m.System {
		case SystemDate, SystemTime, SystemDateTime:
			return nil
		}
		return fmt.Errorf("variable %q: unknown system value %q", m.Name, m.System)
	default:
		return fmt.Errorf("variable %q: unknown source type %q", m.Name, m.Type)
	}
}

// Format renders the system value for t, reporting false for unknown values.
func (v SystemValue) Format(t time.Time) (string, bool) {
	switch v {
	case SystemDate:
		return t.Format(DateLayout), true
	case SystemTime:
		return t.Format(TimeLayout), true
	case SystemDateTime:
		return t.Format(DateTimeLayout), true
	}
	return "", false
}

// Sources lists the source types in display order.
func Sources() []SourceType {
	return []SourceType{SourceManual, SourceStep, SourceSystem}
}

// SystemValues lists the system values in display order.
func SystemValues() []SystemValue {
	return []SystemValue{SystemDate, SystemTime, SystemDateTime}
}
