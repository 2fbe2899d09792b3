// Package categories suggests an expense category from its description.
//
// Matching is a case-insensitive substring test against an ordered keyword
// table. The first rule with any matching keyword wins.
package categories

import "strings"

// Classifier holds a lower-cased private copy of a rule table.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds a classifier from rules, preserving their order.
// Rules without keywords are kept but can never match.
func NewClassifier(rules []Rule) *Classifier {
	copied := make([]Rule, 0, len(rules))
	for _, r := range rules {
		kws := make([]string, 0, len(r.Keywords))
		for _, kw := range r.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				kws = append(kws, kw)
			}
		}
		copied = append(copied, Rule{Name: r.Name, Keywords: kws})
	}
	return &Classifier{rules: copied}
}

// Suggest returns the category for description, or false when the
// description is blank or no keyword matches.
func (c *Classifier) Suggest(description string) (string, bool) {
	if strings.TrimSpace(description) == "" {
		return "", false
	}
	lower := strings.ToLower(description)
	for _, r := range c.rules {
		for _, kw := range r.Keywords {
			if strings.Contains(lower, kw) {
				return r.Name, true
			}
		}
	}
	return "", false
}

// Names lists the rule names in match order.
func (c *Classifier) Names() []string {
	names := make([]string, len(c.rules))
	for i, r := range c.rules {
		names[i] = r.Name
	}
	return names
}
