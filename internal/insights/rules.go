package insights

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"weekspend/internal/core"
)

// Rule is one insight strategy. Rules see the category totals sorted by
// descending amount and report whether they fired.
type Rule interface {
	Evaluate(totals []CategoryTotal, currency string) (Insight, bool)
}

// SavingsRule suggests cutting back on a discretionary category.
type SavingsRule struct {
	Category string
	Min      core.Money
	Ratio    decimal.Decimal
}

func (r SavingsRule) Evaluate(totals []CategoryTotal, currency string) (Insight, bool) {
	total, ok := lookup(totals, r.Category)
	if !ok || total.Cents < r.Min.Cents {
		return Insight{}, false
	}
	potential := total.Decimal().Mul(r.Ratio).Floor().IntPart()
	return Insight{
		Kind:     KindSavings,
		Category: r.Category,
		Message: fmt.Sprintf(
			"You spent %s on %s last week. If you cut one meal out per week, you could save ~%s/month.",
			formatAmount(currency, total), r.Category, currency+strconv.FormatInt(potential, 10)),
		Action: "Apply suggestion?",
	}, true
}

// OptimizationRule flags high fuel spending.
type OptimizationRule struct {
	Category string
	Min      core.Money
}

func (r OptimizationRule) Evaluate(totals []CategoryTotal, currency string) (Insight, bool) {
	total, ok := lookup(totals, r.Category)
	if !ok || total.Cents < r.Min.Cents {
		return Insight{}, false
	}
	return Insight{
		Kind:     KindOptimization,
		Category: r.Category,
		Message: fmt.Sprintf(
			"High petrol expenses detected (%s). Consider carpooling or using public transport on alternate days to reduce costs.",
			formatAmount(currency, total)),
	}, true
}

// PatternRule points at the category with the largest total.
type PatternRule struct {
	Above core.Money
}

func (r PatternRule) Evaluate(totals []CategoryTotal, currency string) (Insight, bool) {
	if len(totals) == 0 {
		return Insight{}, false
	}
	top := totals[0]
	if top.Amount.Cents <= r.Above.Cents {
		return Insight{}, false
	}
	return Insight{
		Kind:     KindPattern,
		Category: top.Category,
		Message: fmt.Sprintf(
			"%s is your highest expense category (%s). Track this closely to stay within budget.",
			top.Category, formatAmount(currency, top.Amount)),
	}, true
}

func lookup(totals []CategoryTotal, category string) (core.Money, bool) {
	for _, t := range totals {
		if t.Category == category {
			return t.Amount, true
		}
	}
	return core.Money{}, false
}
