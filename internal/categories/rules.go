package categories

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"weekspend/internal/core"
)

// FallbackCategory is the name callers apply when Suggest finds nothing.
const FallbackCategory = core.FallbackCategory

// Rule maps a category name to the keywords that select it.
type Rule struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}

// Definition describes a category seeded for new users.
type Definition struct {
	Name  string
	Icon  string
	Color string
}

// Preset is a one-tap expense shortcut.
type Preset struct {
	Label       string `json:"label"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Tag         string `json:"tag"`
	Amount      int64  `json:"amount"`
}

type rulesFile struct {
	Categories []Rule `json:"categories"`
}

// DefaultRules returns the built-in keyword table in match order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "Eating Out", Keywords: []string{"restaurant", "pizza", "burger", "dominos", "mcdonalds", "kfc", "cafe", "coffee", "food", "meal", "lunch", "dinner", "breakfast"}},
		{Name: "Groceries", Keywords: []string{"grocery", "supermarket", "vegetables", "fruits", "milk", "bread", "store", "mart"}},
		{Name: "Transport", Keywords: []string{"uber", "ola", "taxi", "bus", "metro", "train", "auto", "rickshaw", "fare"}},
		{Name: "Petrol", Keywords: []string{"petrol", "fuel", "gas", "diesel", "pump"}},
		{Name: "Movie", Keywords: []string{"movie", "cinema", "theatre", "film", "pvr", "inox", "ticket"}},
		{Name: "Bills", Keywords: []string{"electricity", "water", "internet", "phone", "mobile", "recharge", "bill", "rent", "emi"}},
		{Name: FallbackCategory, Keywords: nil},
	}
}

// LoadRules reads an ordered rule table from a JSON file of the form
// {"categories":[{"name":"...","keywords":["..."]}]}.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read category rules: %w", err)
	}
	var f rulesFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse category rules %q: %w", path, err)
	}
	if len(f.Categories) == 0 {
		return nil, fmt.Errorf("category rules %q: no categories defined", path)
	}
	for i, r := range f.Categories {
		if strings.TrimSpace(r.Name) == "" {
			return nil, fmt.Errorf("category rules %q: entry %d has no name", path, i)
		}
	}
	return f.Categories, nil
}

// Defaults returns the categories created for a user on first access.
func Defaults() []Definition {
	return []Definition{
		{Name: "Eating Out", Icon: "🍴", Color: "#ef4444"},
		{Name: "Groceries", Icon: "🛒", Color: "#10b981"},
		{Name: "Transport", Icon: "🚗", Color: "#3b82f6"},
		{Name: "Petrol", Icon: "⛽", Color: "#f59e0b"},
		{Name: "Movie", Icon: "🎬", Color: "#8b5cf6"},
		{Name: "Bills", Icon: "📄", Color: "#6366f1"},
		{Name: FallbackCategory, Icon: "📦", Color: "#6b7280"},
	}
}

// QuickPresets returns the shortcuts offered on the add-expense form.
func QuickPresets() []Preset {
	return []Preset{
		{Label: "Movie", Description: "Movie", Category: "Movie", Tag: "Movie", Amount: 250},
		{Label: "Petrol", Description: "Petrol", Category: "Petrol", Tag: "Petrol", Amount: 1000},
		{Label: "Groceries", Description: "Groceries", Category: "Groceries", Tag: "Groceries", Amount: 450},
	}
}
