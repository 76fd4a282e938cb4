package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"conti/internal/core"
	"conti/internal/storage"
)

func TestParsePage(t *testing.T) {
	tests := []struct {
		name    string
		query   url.Values
		want    storage.Page
		wantErr bool
	}{
		{name: "defaults", query: url.Values{}, want: storage.Page{Skip: 0, Limit: 100}},
		{name: "explicit", query: url.Values{"skip": {"20"}, "limit": {"10"}}, want: storage.Page{Skip: 20, Limit: 10}},
		{name: "max limit", query: url.Values{"limit": {"1000"}}, want: storage.Page{Limit: 1000}},
		{name: "negative skip", query: url.Values{"skip": {"-1"}}, wantErr: true},
		{name: "zero limit", query: url.Values{"limit": {"0"}}, wantErr: true},
		{name: "limit too large", query: url.Values{"limit": {"1001"}}, wantErr: true},
		{name: "not a number", query: url.Values{"skip": {"abc"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePage(tt.query)
			if tt.wantErr {
				if !errors.Is(err, core.ErrInvalid) {
					t.Fatalf("err = %v, want ErrInvalid", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("page = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Amount   json.Number   `json:"amount"`
		Currency core.Currency `json:"currency"`
		Count    int           `json:"count"`
	}

	tests := []struct {
		name       string
		payload    string
		wantStatus int
	}{
		{name: "valid", payload: `{"amount": 1.5, "currency": "eur"}`, wantStatus: 0},
		{name: "empty body", payload: ``, wantStatus: http.StatusBadRequest},
		{name: "syntax error", payload: `{"amount": `, wantStatus: http.StatusBadRequest},
		{name: "trailing object", payload: `{} {}`, wantStatus: http.StatusBadRequest},
		{name: "wrong type", payload: `{"count": "three"}`, wantStatus: http.StatusUnprocessableEntity},
		{name: "unsupported currency", payload: `{"currency": "XYZ"}`, wantStatus: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.payload))
			var dst body
			err := decodeJSON(httptest.NewRecorder(), r, &dst)
			if tt.wantStatus == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if dst.Currency != core.EUR {
					t.Errorf("currency = %q, want EUR", dst.Currency)
				}
				return
			}
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := statusFor(err); got != tt.wantStatus {
				t.Errorf("status = %d, want %d (err: %v)", got, tt.wantStatus, err)
			}
		})
	}
}

func TestOptional(t *testing.T) {
	var req updateTransactionRequest

	if err := json.Unmarshal([]byte(`{}`), &req); err != nil {
		t.Fatal(err)
	}
	if req.CategoryID.Set {
		t.Error("absent field must not be Set")
	}

	if err := json.Unmarshal([]byte(`{"category_id": null}`), &req); err != nil {
		t.Fatal(err)
	}
	if !req.CategoryID.Set || req.CategoryID.Value != nil {
		t.Errorf("null: got %+v, want Set with nil Value", req.CategoryID)
	}

	req = updateTransactionRequest{}
	if err := json.Unmarshal([]byte(`{"category_id": 7}`), &req); err != nil {
		t.Fatal(err)
	}
	if !req.CategoryID.Set || req.CategoryID.Value == nil || *req.CategoryID.Value != 7 {
		t.Errorf("value: got %+v, want 7", req.CategoryID)
	}
}

func TestPathID(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{raw: "42", want: 42},
		{raw: "0", wantErr: true},
		{raw: "-3", wantErr: true},
		{raw: "abc", wantErr: true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.SetPathValue("id", tt.raw)
		got, err := pathID(r, "id")
		if (err != nil) != tt.wantErr {
			t.Errorf("pathID(%q) err = %v, wantErr %v", tt.raw, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("pathID(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: "  groceries  ", want: "groceries"},
		{in: "line\x00break\x07", want: "linebreak"},
		{in: "tab\tnewline\n", want: "tab\tnewline"},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
