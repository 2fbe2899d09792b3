// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// week selection, expense bodies sent either as forms (HTMX) or JSON, and
// path identifiers.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"weekspend/internal/core"
	"weekspend/internal/services"
	"weekspend/internal/week"
)

// maxBodyBytes caps request bodies read by RequestBodyParser.
const maxBodyBytes = 64 << 10

var errInvalidID = errors.New("invalid id")

// ParseWeekStart resolves the requested week from ?start=YYYY-MM-DD or
// ?week=this|last. Any start date is snapped to the Monday of its week;
// missing or unparsable values select the current week.
func ParseWeekStart(query url.Values, cal *week.Calendar) core.Date {
	if v := strings.TrimSpace(query.Get("start")); v != "" {
		if d, err := week.ParseISODate(v); err == nil {
			return week.StartOf(d)
		}
	}
	if strings.EqualFold(strings.TrimSpace(query.Get("week")), "last") {
		return cal.PreviousWeekStart()
	}
	return cal.CurrentWeekStart()
}

// ParseID parses a positive integer path identifier.
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' || strings.Contains(p.contentType, "application/json") {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.jsonData = nil
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
		return ""
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

// GetRaw returns a value without trimming or sanitizing, for secrets.
func (p *RequestBodyParser) GetRaw(key string) string {
	if p.jsonData != nil {
		v, _ := p.jsonData[key].(string)
		return v
	}
	if p.formData != nil {
		return p.formData.Get(key)
	}
	return ""
}

// GetBool reads a checkbox or JSON boolean.
func (p *RequestBodyParser) GetBool(key string) bool {
	switch strings.ToLower(p.Get(key)) {
	case "1", "true", "on", "yes":
		return true
	default:
		return false
	}
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// ExpenseInput maps the parsed body to the expense service input.
func (p *RequestBodyParser) ExpenseInput() services.NewExpense {
	return services.NewExpense{
		Amount:       p.Get("amount"),
		Description:  p.Get("description"),
		Category:     p.Get("category"),
		Tag:          p.Get("tag"),
		Date:         p.Get("date"),
		Time:         p.Get("time"),
		IsSaving:     p.GetBool("is_saving"),
		SavingAmount: p.Get("saving_amount"),
	}
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid request format")
	}
	return nil
}
