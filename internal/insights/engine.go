// Package insights turns a week of expenses into spending totals and
// rule-based advice.
//
// The engine is a fixed, ordered registry of rules. Each rule looks at the
// per-category spending totals and may emit at most one Insight. Totals are
// compared unrounded and rounded to whole units only when rendered.
package insights

import (
	"strconv"

	"github.com/shopspring/decimal"

	"weekspend/internal/core"
)

// Kind identifies the rule that produced an insight.
type Kind string

const (
	KindSavings      Kind = "savings"
	KindOptimization Kind = "optimization"
	KindPattern      Kind = "pattern"
)

// DefaultCurrency is the symbol used when none is configured.
const DefaultCurrency = "₹"

// Insight is a piece of advice derived from a week's spending.
type Insight struct {
	Kind     Kind   `json:"type"`
	Category string `json:"category"`
	Message  string `json:"message"`
	Action   string `json:"action,omitempty"`
}

// Color returns the accent color used to render an insight of kind k.
func (k Kind) Color() string {
	switch k {
	case KindSavings:
		return "#10b981"
	case KindOptimization:
		return "#f59e0b"
	case KindPattern:
		return "#3b82f6"
	default:
		return "#6366f1"
	}
}

// Thresholds configures the rule triggers.
type Thresholds struct {
	EatingOutCategory string
	EatingOut         core.Money // savings fires at or above
	SavingsRatio      decimal.Decimal
	PetrolCategory    string
	Petrol            core.Money // optimization fires at or above
	TopCategory       core.Money // pattern fires strictly above
}

// DefaultThresholds returns the stock rule configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		EatingOutCategory: "Eating Out",
		EatingOut:         core.MoneyFromUnits(1000),
		SavingsRatio:      decimal.RequireFromString("0.33"),
		PetrolCategory:    "Petrol",
		Petrol:            core.MoneyFromUnits(2000),
		TopCategory:       core.MoneyFromUnits(1500),
	}
}

// Engine evaluates the insight rules. It holds no mutable state and is safe
// for concurrent use.
type Engine struct {
	currency string
	rules    []Rule
}

// Option customizes an Engine.
type Option func(*Engine)

// WithCurrency sets the symbol prefixed to amounts in messages.
func WithCurrency(symbol string) Option {
	return func(e *Engine) {
		if symbol != "" {
			e.currency = symbol
		}
	}
}

// NewEngine builds the engine with the savings, optimization and pattern
// rules, evaluated in that order.
func NewEngine(t Thresholds, opts ...Option) *Engine {
	e := &Engine{currency: DefaultCurrency}
	for _, opt := range opts {
		opt(e)
	}
	e.rules = []Rule{
		SavingsRule{Category: t.EatingOutCategory, Min: t.EatingOut, Ratio: t.SavingsRatio},
		OptimizationRule{Category: t.PetrolCategory, Min: t.Petrol},
		PatternRule{Above: t.TopCategory},
	}
	return e
}

// Currency returns the configured currency symbol.
func (e *Engine) Currency() string {
	return e.currency
}

// Generate returns between zero and three insights for expenses.
func (e *Engine) Generate(expenses []core.Expense) []Insight {
	return e.GenerateWithCurrency(expenses, e.currency)
}

// GenerateWithCurrency is Generate with a per-call currency symbol.
func (e *Engine) GenerateWithCurrency(expenses []core.Expense, currency string) []Insight {
	if len(expenses) == 0 {
		return []Insight{}
	}
	if currency == "" {
		currency = e.currency
	}
	totals := CategoryTotals(expenses)
	out := make([]Insight, 0, len(e.rules))
	for _, r := range e.rules {
		if in, ok := r.Evaluate(totals, currency); ok {
			out = append(out, in)
		}
	}
	return out
}

// formatAmount renders m rounded to whole units with the currency prefix.
func formatAmount(currency string, m core.Money) string {
	return currency + strconv.FormatInt(m.RoundUnits(), 10)
}
