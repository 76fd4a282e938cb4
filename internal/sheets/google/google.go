// Package google writes balance and budget snapshots to a Google
// spreadsheet.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"conti/internal/core"
	ports "conti/internal/sheets"

	"github.com/avast/retry-go"
	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	writeAttempts   = 3
	writeRetryDelay = 30 * time.Second
)

// Config selects the spreadsheet and its credentials. Service-account
// credentials take precedence over an OAuth user token.
type Config struct {
	SpreadsheetID      string
	BalanceSheet       string
	BudgetSheet        string
	ServiceAccountJSON string
	ServiceAccountFile string
	OAuthClientFile    string
	OAuthTokenFile     string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	balanceSheet  string
	budgetSheet   string
	retryDelay    time.Duration
}

var _ ports.SnapshotWriter = (*Client)(nil)

func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(svc, cfg), nil
}

func newClient(svc *gsheet.Service, cfg Config) *Client {
	c := &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		balanceSheet:  cfg.BalanceSheet,
		budgetSheet:   cfg.BudgetSheet,
		retryDelay:    writeRetryDelay,
	}
	if c.balanceSheet == "" {
		c.balanceSheet = "Balances"
	}
	if c.budgetSheet == "" {
		c.budgetSheet = "Budgets"
	}
	return c
}

func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	credentials, err := serviceAccountCredentials(cfg)
	if err != nil {
		return nil, err
	}
	if credentials != nil {
		slog.InfoContext(ctx, "Using service account credentials for Google Sheets")
		return gsheet.NewService(ctx,
			goption.WithCredentialsJSON(credentials),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	}

	httpClient, err := oauthHTTPClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Using OAuth user token for Google Sheets")
	return gsheet.NewService(ctx, goption.WithHTTPClient(httpClient))
}

// serviceAccountCredentials returns nil without error when no service
// account is configured.
func serviceAccountCredentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.ServiceAccountJSON) != "":
		return []byte(cfg.ServiceAccountJSON), nil
	case strings.TrimSpace(cfg.ServiceAccountFile) != "":
		b, err := os.ReadFile(cfg.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	return nil, nil
}

func oauthHTTPClient(ctx context.Context, cfg Config) (*http.Client, error) {
	if cfg.OAuthClientFile == "" {
		return nil, errors.New("missing credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_OAUTH_CLIENT_FILE)")
	}
	if cfg.OAuthTokenFile == "" {
		return nil, errors.New("missing oauth token (set GOOGLE_OAUTH_TOKEN_FILE, see cmd/oauth-init)")
	}
	clientJSON, err := os.ReadFile(cfg.OAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client file: %w", err)
	}
	oauthCfg, err := goauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	tok, err := loadToken(cfg.OAuthTokenFile)
	if err != nil {
		return nil, err
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	return oauthCfg.Client(ctx, tok), nil
}

func loadToken(path string) (*oauth2.Token, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read oauth token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("decode oauth token: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("oauth token file holds no access or refresh token")
	}
	return &tok, nil
}

// newHTTPClientWithPooling is the transport under the OAuth client.
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
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// WriteBalances appends one row to the balance sheet.
func (c *Client) WriteBalances(ctx context.Context, s ports.BalanceSnapshot) error {
	if err := c.append(ctx, c.balanceSheet, [][]any{s.Values()}); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Balance snapshot exported",
		"sheet", c.balanceSheet,
		"currency", s.DefaultCurrency,
		"total", s.Total.String())
	return nil
}

// WriteBudgets appends one row per budget to the budget sheet.
func (c *Client) WriteBudgets(ctx context.Context, period core.Period, rows []ports.BudgetRow) error {
	if len(rows) == 0 {
		return nil
	}
	values := make([][]any, len(rows))
	for i, r := range rows {
		values[i] = r.Values()
	}
	if err := c.append(ctx, c.budgetSheet, values); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Budget snapshot exported",
		"sheet", c.budgetSheet,
		"year", period.Year,
		"month", period.Month,
		"count", len(rows))
	return nil
}

func (c *Client) append(ctx context.Context, sheet string, values [][]any) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A1", sheet)
	req := &gsheet.ValueRange{Values: values}

	err := retry.Do(
		func() error {
			_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, req).
				ValueInputOption("USER_ENTERED").
				InsertDataOption("INSERT_ROWS").
				Context(ctx).
				Do()
			return err
		},
		retry.RetryIf(func(err error) bool {
			if isRateLimited(err) {
				slog.WarnContext(ctx, "Sheets rate limited, will retry", "sheet", sheet, "error", err)
				return true
			}
			return false
		}),
		retry.Context(ctx),
		retry.Attempts(writeAttempts),
		retry.Delay(c.retryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("append to sheet %s: %w", sheet, err)
	}
	return nil
}

func isRateLimited(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests
}
