package insights

import (
	"testing"

	"weekspend/internal/core"
)

func exp(category string, units int64) core.Expense {
	return core.Expense{
		Amount:       core.MoneyFromUnits(units),
		CategoryName: category,
		Description:  category,
		Date:         core.NewDate(2025, 1, 6),
	}
}

func cents(category string, c int64) core.Expense {
	e := exp(category, 0)
	e.Amount = core.Money{Cents: c}
	return e
}

func kinds(in []Insight) []Kind {
	out := make([]Kind, len(in))
	for i, x := range in {
		out[i] = x.Kind
	}
	return out
}

func TestGenerateEmpty(t *testing.T) {
	e := NewEngine(DefaultThresholds())
	got := e.Generate(nil)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestGenerateSavingsMessage(t *testing.T) {
	e := NewEngine(DefaultThresholds())
	got := e.Generate([]core.Expense{exp("Eating Out", 600), exp("Eating Out", 600)})
	if len(got) != 1 {
		t.Fatalf("expected one insight, got %v", kinds(got))
	}
	want := "You spent ₹1200 on Eating Out last week. If you cut one meal out per week, you could save ~₹396/month."
	if got[0].Message != want {
		t.Fatalf("message = %q", got[0].Message)
	}
	if got[0].Action != "Apply suggestion?" || got[0].Category != "Eating Out" {
		t.Fatalf("unexpected insight %+v", got[0])
	}
}

func TestGenerateSavingsAndPattern(t *testing.T) {
	e := NewEngine(DefaultThresholds())
	got := e.Generate([]core.Expense{exp("Eating Out", 1600), exp("Groceries", 200)})
	if len(got) != 2 || got[0].Kind != KindSavings || got[1].Kind != KindPattern {
		t.Fatalf("kinds = %v", kinds(got))
	}
	if got[0].Message != "You spent ₹1600 on Eating Out last week. If you cut one meal out per week, you could save ~₹528/month." {
		t.Fatalf("savings message = %q", got[0].Message)
	}
	if got[1].Message != "Eating Out is your highest expense category (₹1600). Track this closely to stay within budget." {
		t.Fatalf("pattern message = %q", got[1].Message)
	}
}

func TestGenerateOptimizationAndPattern(t *testing.T) {
	e := NewEngine(DefaultThresholds())
	got := e.Generate([]core.Expense{exp("Petrol", 2500)})
	if len(got) != 2 || got[0].Kind != KindOptimization || got[1].Kind != KindPattern {
		t.Fatalf("kinds = %v", kinds(got))
	}
	if got[0].Message != "High petrol expenses detected (₹2500). Consider carpooling or using public transport on alternate days to reduce costs." {
		t.Fatalf("optimization message = %q", got[0].Message)
	}
	if got[0].Action != "" {
		t.Fatalf("optimization must not carry an action")
	}
}

func TestGenerateAllThreeInOrder(t *testing.T) {
	e := NewEngine(DefaultThresholds())
	got := e.Generate([]core.Expense{exp("Petrol", 2100), exp("Eating Out", 1000), exp("Bills", 3000)})
	want := []Kind{KindSavings, KindOptimization, KindPattern}
	if len(got) != 3 {
		t.Fatalf("kinds = %v", kinds(got))
	}
	for i := range want {
		if got[i].Kind != want[i] {
			t.Fatalf("kinds = %v", kinds(got))
		}
	}
	if got[2].Category != "Bills" {
		t.Fatalf("pattern category = %q", got[2].Category)
	}
}

func TestGenerateThresholdBoundaries(t *testing.T) {
	e := NewEngine(DefaultThresholds())
	tests := []struct {
		name     string
		expenses []core.Expense
		want     []Kind
	}{
		{"eating out exactly 1000 fires", []core.Expense{exp("Eating Out", 1000)}, []Kind{KindSavings}},
		{"eating out just below", []core.Expense{cents("Eating Out", 99999)}, nil},
		{"petrol exactly 2000 fires", []core.Expense{exp("Petrol", 2000)}, []Kind{KindOptimization, KindPattern}},
		{"petrol just below", []core.Expense{cents("Petrol", 199999)}, []Kind{KindPattern}},
		{"top exactly 1500 does not fire", []core.Expense{exp("Movie", 1500)}, nil},
		{"top just above", []core.Expense{cents("Movie", 150001)}, []Kind{KindPattern}},
		{"small week", []core.Expense{exp("Groceries", 300), exp("Transport", 150)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := kinds(e.Generate(tt.expenses))
			if len(got) != len(tt.want) {
				t.Fatalf("kinds = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("kinds = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestGenerateComparesUnroundedSums(t *testing.T) {
	e := NewEngine(DefaultThresholds())
	// 999.50 displays as 1000 but is below the threshold.
	if got := e.Generate([]core.Expense{cents("Eating Out", 99950)}); len(got) != 0 {
		t.Fatalf("expected no insight, got %v", kinds(got))
	}
	// 1500.40 rounds down to 1500 in the message but is above the threshold.
	got := e.Generate([]core.Expense{cents("Movie", 150040)})
	if len(got) != 1 || got[0].Message != "Movie is your highest expense category (₹1500). Track this closely to stay within budget." {
		t.Fatalf("got %+v", got)
	}
}

func TestGenerateMissingCategoryCountsAsMisc(t *testing.T) {
	e := NewEngine(DefaultThresholds())
	got := e.Generate([]core.Expense{exp("", 900), exp("Misc", 700)})
	if len(got) != 1 || got[0].Category != "Misc" {
		t.Fatalf("got %+v", got)
	}
	if got[0].Message != "Misc is your highest expense category (₹1600). Track this closely to stay within budget." {
		t.Fatalf("message = %q", got[0].Message)
	}
}

func TestGenerateSavingAmountIsNotSpending(t *testing.T) {
	e := NewEngine(DefaultThresholds())
	saving := exp("Eating Out", 400)
	saving.IsSaving = true
	saving.SavingAmount = core.MoneyFromUnits(5000)
	if got := e.Generate([]core.Expense{saving}); len(got) != 0 {
		t.Fatalf("saving amount leaked into totals: %v", kinds(got))
	}
}

func TestGenerateTieKeepsFirstSeen(t *testing.T) {
	e := NewEngine(DefaultThresholds())
	got := e.Generate([]core.Expense{exp("Movie", 1600), exp("Bills", 1600)})
	if len(got) != 1 || got[0].Category != "Movie" {
		t.Fatalf("got %+v", got)
	}
}

func TestGenerateIsPure(t *testing.T) {
	e := NewEngine(DefaultThresholds())
	in := []core.Expense{exp("Petrol", 2500), exp("Eating Out", 1200)}
	first := e.Generate(in)
	second := e.Generate(in)
	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("got %d and %d insights, want 3", len(first), len(second))
	}
	wantKinds := []Kind{KindSavings, KindOptimization, KindPattern}
	for i, k := range wantKinds {
		if first[i].Kind != k {
			t.Fatalf("insight %d kind = %v, want %v", i, first[i].Kind, k)
		}
	}
	if first[2].Category != "Petrol" {
		t.Fatalf("pattern category = %q, want Petrol", first[2].Category)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("results differ at %d", i)
		}
	}
	if in[0].CategoryName != "Petrol" || in[1].Amount.Cents != 120000 {
		t.Fatalf("input mutated")
	}
}

func TestWithCurrency(t *testing.T) {
	e := NewEngine(DefaultThresholds(), WithCurrency("€"))
	got := e.Generate([]core.Expense{exp("Petrol", 2000)})
	if got[0].Message != "High petrol expenses detected (€2000). Consider carpooling or using public transport on alternate days to reduce costs." {
		t.Fatalf("message = %q", got[0].Message)
	}
	got = e.GenerateWithCurrency([]core.Expense{exp("Petrol", 2000)}, "$")
	if got[1].Message != "Petrol is your highest expense category ($2000). Track this closely to stay within budget." {
		t.Fatalf("message = %q", got[1].Message)
	}
}

func TestKindColor(t *testing.T) {
	if KindSavings.Color() != "#10b981" || KindOptimization.Color() != "#f59e0b" || KindPattern.Color() != "#3b82f6" {
		t.Fatal("unexpected kind colors")
	}
}
