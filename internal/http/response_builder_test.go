package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"conti/internal/core"
	"conti/internal/fx"
	"conti/internal/portfolio"
	"conti/internal/storage"

	"github.com/shopspring/decimal"
)

func TestJSONResponseBuilder(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Test", "1").
		Body(map[string]int{"n": 3}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("content type = %q", got)
	}
	if w.Header().Get("X-Test") != "1" {
		t.Error("custom header missing")
	}
	if w.Body.String() != "{\"n\":3}\n" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestJSONResponseBuilder_NoContent(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Body("ignored").Write(w)
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Errorf("got %d with %q", w.Code, w.Body.String())
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: &core.ValidationError{Rows: []core.RowError{{Message: "x"}}}, want: 422},
		{name: "invalid amount", err: core.ErrInvalidAmount, want: 422},
		{name: "rate missing", err: &core.RateNotFoundError{Currency: core.JPY}, want: 422},
		{name: "wrapped not found", err: fmt.Errorf("get account 9: %w", core.ErrAccountNotFound), want: 404},
		{name: "duplicate budget", err: core.ErrDuplicateBudget, want: 409},
		{name: "category cycle", err: core.ErrCategoryCycle, want: 400},
		{name: "insufficient funds", err: &core.InsufficientFundsError{AccountID: 1}, want: 400},
		{name: "malformed", err: errMalformedRequest, want: 400},
		{name: "cancelled", err: context.Canceled, want: 503},
		{name: "unknown", err: errors.New("disk on fire"), want: 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestWriteError_HidesInternalMessage(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("sql: connection refused"))

	var body ErrorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if w.Code != http.StatusInternalServerError || body.Error != "internal server error" {
		t.Errorf("got %d %q", w.Code, body.Error)
	}
}

func TestWriteError_ValidationDetails(t *testing.T) {
	ve := &core.ValidationError{}
	ve.Add(2, "rate", "must be positive")

	w := httptest.NewRecorder()
	writeError(w, httptest.NewRequest(http.MethodPost, "/", nil), ve)

	var body ErrorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d", w.Code)
	}
	if len(body.Details) != 1 || body.Details[0].Row != 2 || body.Details[0].Field != "rate" {
		t.Errorf("details = %+v", body.Details)
	}
}

func TestNewPage(t *testing.T) {
	tests := []struct {
		name                string
		total               int
		page                storage.Page
		wantPage, wantPages int
	}{
		{name: "empty", total: 0, page: storage.Page{Limit: 100}, wantPage: 1, wantPages: 1},
		{name: "second page", total: 25, page: storage.Page{Skip: 10, Limit: 10}, wantPage: 2, wantPages: 3},
		{name: "exact fit", total: 20, page: storage.Page{Limit: 10}, wantPage: 1, wantPages: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newPage([]int(nil), tt.total, tt.page)
			if got.Page != tt.wantPage || got.Pages != tt.wantPages || got.Items == nil {
				t.Errorf("got %+v", got)
			}
		})
	}
}

func TestAccountResponse_NotConvertedKeepsDefaultCurrency(t *testing.T) {
	view := portfolio.AccountView{
		Account:           core.Account{ID: 1, Name: "Pounds", Currency: core.GBP, Balance: decimal.NewFromInt(50)},
		DefaultCurrency:   core.USD,
		Conversion:        fx.NotConverted{Currency: core.GBP},
		PercentageOfTotal: decimal.Zero,
	}
	raw, err := json.Marshal(newAccountResponse(view))
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	if got["default_currency"] != "USD" {
		t.Errorf("default_currency = %v, want USD", got["default_currency"])
	}
	for _, key := range []string{"balance_in_default_currency", "exchange_rate_used"} {
		if v, ok := got[key]; !ok || v != nil {
			t.Errorf("%s = %v, want null", key, v)
		}
	}
}
