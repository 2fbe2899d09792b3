// Package google exports expenses to a Google Sheets spreadsheet using a
// service account.
package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"weekspend/internal/core"
	"weekspend/internal/log"
	"weekspend/internal/sheets"
)

var _ sheets.ExpenseExporter = (*Client)(nil)

// Config configures the exporter. CredentialsJSON holds a service account
// key. HTTPClient and Endpoint bypass authentication and exist for tests
// against a fake server.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON []byte
	HTTPClient      *http.Client
	Endpoint        string
	Attempts        uint
	RetryDelay      time.Duration
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	attempts      uint
	retryDelay    time.Duration
	logger        *log.Logger

	mu           sync.Mutex
	headerExists map[string]bool
}

// LoadCredentials returns the service account key from inline JSON or,
// when that is empty, from the file at path.
func LoadCredentials(inline, path string) ([]byte, error) {
	if s := strings.TrimSpace(inline); s != "" {
		return []byte(s), nil
	}
	path = strings.TrimSpace(path)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = log.Discard()
	}
	if cfg.SheetName == "" {
		cfg.SheetName = "Expenses"
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}

	var opts []goption.ClientOption
	switch {
	case cfg.HTTPClient != nil:
		opts = append(opts, goption.WithHTTPClient(cfg.HTTPClient))
	case len(cfg.CredentialsJSON) > 0:
		jwt, err := goauth.JWTConfigFromJSON(cfg.CredentialsJSON, gsheet.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("parse service account key: %w", err)
		}
		httpCtx := context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
		opts = append(opts, goption.WithHTTPClient(jwt.Client(httpCtx)))
	default:
		return nil, errors.New("missing service account credentials")
	}
	if cfg.Endpoint != "" {
		opts = append(opts, goption.WithEndpoint(cfg.Endpoint))
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	logger = logger.WithComponent(log.ComponentSheets)
	logger.InfoContext(ctx, "Google Sheets exporter ready",
		"spreadsheet_id", cfg.SpreadsheetID,
		"sheet", cfg.SheetName)

	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
		attempts:      cfg.Attempts,
		retryDelay:    cfg.RetryDelay,
		logger:        logger,
		headerExists:  map[string]bool{},
	}, nil
}

// newHTTPClientWithPooling creates the base transport the OAuth client
// wraps, with connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// Append writes e to the sheet for the expense's year, creating the header
// row first when that sheet is empty.
func (c *Client) Append(ctx context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheet := yearPrefixedName(c.sheetName, e.Date.Year())
	if err := c.ensureHeader(ctx, sheet); err != nil {
		return "", err
	}

	rng := fmt.Sprintf("%s!A:H", sheet)
	vr := &gsheet.ValueRange{Values: [][]any{sheets.Row(e)}}

	var resp *gsheet.AppendValuesResponse
	err := c.withRetry(ctx, func() error {
		var err error
		resp, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", sheet, err)
	}

	ref := rng
	if resp != nil && resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.DebugContext(ctx, "Appended expense row", log.FieldExpenseID, e.ID, log.FieldSheetsRef, ref)
	return ref, nil
}

func (c *Client) ensureHeader(ctx context.Context, sheet string) error {
	c.mu.Lock()
	done := c.headerExists[sheet]
	c.mu.Unlock()
	if done {
		return nil
	}

	headerRange := fmt.Sprintf("%s!A1:H1", sheet)
	var existing *gsheet.ValueRange
	err := c.withRetry(ctx, func() error {
		var err error
		existing, err = c.svc.Spreadsheets.Values.Get(c.spreadsheetID, headerRange).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("read header of %s: %w", sheet, err)
	}

	if existing == nil || len(existing.Values) == 0 {
		row := make([]any, len(sheets.Header))
		for i, h := range sheets.Header {
			row[i] = h
		}
		vr := &gsheet.ValueRange{Values: [][]any{row}}
		err = c.withRetry(ctx, func() error {
			_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, headerRange, vr).
				ValueInputOption("RAW").Context(ctx).Do()
			return err
		})
		if err != nil {
			return fmt.Errorf("write header of %s: %w", sheet, err)
		}
		c.logger.InfoContext(ctx, "Wrote header row", "sheet", sheet)
	}

	c.mu.Lock()
	c.headerExists[sheet] = true
	c.mu.Unlock()
	return nil
}

func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(isRetryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.WarnContext(ctx, "Sheets API call failed, retrying", "attempt", n+1, log.FieldError, err)
		}),
	)
}

// isRetryable reports rate limiting and server-side failures.
func isRetryable(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500
	}
	return false
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
