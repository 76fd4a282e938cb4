package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"conti/internal/core"
	ports "conti/internal/sheets"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	c := newClient(svc, Config{SpreadsheetID: "sheet-1"})
	c.retryDelay = time.Millisecond
	return c
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
	assert.Equal(t, "missing GOOGLE_SPREADSHEET_ID", err.Error())
}

func TestNewSheetsService_MissingCredentials(t *testing.T) {
	_, err := newSheetsService(context.Background(), Config{SpreadsheetID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing credentials")

	_, err = newSheetsService(context.Background(), Config{SpreadsheetID: "x", OAuthClientFile: "client.json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing oauth token")
}

func TestServiceAccountCredentials(t *testing.T) {
	b, err := serviceAccountCredentials(Config{})
	require.NoError(t, err)
	assert.Nil(t, b)

	b, err = serviceAccountCredentials(Config{ServiceAccountJSON: `{"type":"service_account"}`})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"service_account"}`, string(b))

	_, err = serviceAccountCredentials(Config{ServiceAccountFile: filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, err)
}

func TestLoadToken(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "token.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"access_token":"a","refresh_token":"r","token_type":"Bearer"}`), 0o600))
	tok, err := loadToken(good)
	require.NoError(t, err)
	assert.Equal(t, "r", tok.RefreshToken)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{}`), 0o600))
	_, err = loadToken(empty)
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{bad`), 0o600))
	_, err = loadToken(bad)
	assert.Error(t, err)
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, isRateLimited(&googleapi.Error{Code: http.StatusTooManyRequests}))
	assert.True(t, isRateLimited(fmt.Errorf("wrapped: %w", &googleapi.Error{Code: http.StatusTooManyRequests})))
	assert.False(t, isRateLimited(&googleapi.Error{Code: http.StatusForbidden}))
	assert.False(t, isRateLimited(errors.New("boom")))
}

func TestWriteBalances_RetriesOnRateLimit(t *testing.T) {
	var calls int32
	var got struct {
		Values [][]any `json:"values"`
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		assert.True(t, strings.HasSuffix(r.URL.Path, ":append"), r.URL.Path)
		assert.Contains(t, r.URL.Path, "/v4/spreadsheets/sheet-1/values/Balances")
		w.Header().Set("Content-Type", "application/json")
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded"}}`))
			return
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1"}`))
	})

	err := c.WriteBalances(context.Background(), ports.BalanceSnapshot{
		Date:            core.NewDate(2024, 6, 15),
		DefaultCurrency: core.USD,
		Total:           decimal.NewFromInt(210),
		Breakdown:       map[core.Currency]decimal.Decimal{core.USD: decimal.NewFromInt(210)},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
	require.Len(t, got.Values, 1)
	assert.Equal(t, []any{"2024-06-15", "USD", "210.00", "USD", "210.00"}, got.Values[0])
}

func TestWriteBudgets_DoesNotRetryOtherErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"denied"}}`))
	})

	err := c.WriteBudgets(context.Background(), core.Period{Year: 2024, Month: 6},
		[]ports.BudgetRow{{Year: 2024, Month: 6, Category: "Food", Currency: core.EUR}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Budgets")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestWriteBudgets_EmptyIsNoop(t *testing.T) {
	c := &Client{}
	assert.NoError(t, c.WriteBudgets(context.Background(), core.Period{Year: 2024, Month: 6}, nil))
	assert.Error(t, c.WriteBalances(context.Background(), ports.BalanceSnapshot{}))
}
