package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"weekspend/internal/week"
)

func TestParseWeekStart(t *testing.T) {
	// Wednesday 2025-01-08.
	cal := week.NewCalendar(func() time.Time { return time.Date(2025, 1, 8, 10, 0, 0, 0, time.UTC) }, time.UTC)

	tests := []struct {
		name  string
		query url.Values
		want  string
	}{
		{"no params is the current week", url.Values{}, "2025-01-06"},
		{"week=this", url.Values{"week": {"this"}}, "2025-01-06"},
		{"week=last", url.Values{"week": {"LAST"}}, "2024-12-30"},
		{"explicit monday", url.Values{"start": {"2024-11-04"}}, "2024-11-04"},
		{"mid-week start snaps to monday", url.Values{"start": {"2024-11-10"}}, "2024-11-04"},
		{"start wins over week", url.Values{"start": {"2025-02-03"}, "week": {"last"}}, "2025-02-03"},
		{"invalid start falls back", url.Values{"start": {"2025-13-01"}}, "2025-01-06"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := week.ISODate(ParseWeekStart(tt.query, cal))
			if got != tt.want {
				t.Errorf("ParseWeekStart = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseID(t *testing.T) {
	for _, tc := range []struct {
		in string
		ok bool
	}{
		{"42", true},
		{" 7 ", true},
		{"0", false},
		{"-3", false},
		{"abc", false},
		{"", false},
	} {
		_, err := ParseID(tc.in)
		if tc.ok != (err == nil) {
			t.Errorf("ParseID(%q) err = %v", tc.in, err)
		}
	}
}

func TestRequestBodyParser_JSON(t *testing.T) {
	body := `{"id": "123", "name": "test", "amount": 42.5, "is_saving": true}`
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !parser.IsJSON() {
		t.Error("Expected IsJSON() to be true")
	}
	if id := parser.Get("id"); id != "123" {
		t.Errorf("Get('id') = %q, want '123'", id)
	}
	if amount := parser.Get("amount"); amount != "42.5" {
		t.Errorf("Get('amount') = %q, want '42.5'", amount)
	}
	if !parser.GetBool("is_saving") {
		t.Error("GetBool('is_saving') = false")
	}
	if v := parser.Get("missing"); v != "" {
		t.Errorf("Get('missing') = %q", v)
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	body := "description=Pizza+night&amount=450&category=Eating+Out&is_saving=on&date=2025-01-07"
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parser.IsJSON() {
		t.Error("Expected IsJSON() to be false for form data")
	}

	in := parser.ExpenseInput()
	if in.Description != "Pizza night" || in.Amount != "450" || in.Category != "Eating Out" {
		t.Errorf("unexpected input: %+v", in)
	}
	if !in.IsSaving || in.Date != "2025-01-07" {
		t.Errorf("unexpected saving/date: %+v", in)
	}
}

func TestRequestBodyParser_StripsControlCharacters(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"description":"  tea\u0000\u0007 "}`))
	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := parser.Get("description"); got != "tea" {
		t.Errorf("Get('description') = %q", got)
	}
}

func TestRequestBodyParser_MalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"amount":`))
	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
	if err := parser.Parse(); err == nil {
		t.Fatal("second Parse must report the same error")
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(""))

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if val := parser.Get("nonexistent"); val != "" {
		t.Errorf("Get('nonexistent') = %q, want empty string", val)
	}
}

func TestParseFormOrFail(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader("field=value"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if result := ParseFormOrFail(req); result != nil {
		t.Error("Expected nil for valid form, got error response")
	}
	if req.Form.Get("field") != "value" {
		t.Error("Form was not parsed correctly")
	}
}
