package rates

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"conti/internal/core"
)

// rateField accepts JSON strings and numbers alike and keeps the literal
// text so that rates are never routed through float64.
type rateField string

func (f *rateField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = rateField(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = rateField(n.String())
	return nil
}

type jsonRow struct {
	CurrencyFrom  rateField `json:"currency_from"`
	CurrencyTo    rateField `json:"currency_to"`
	Rate          rateField `json:"rate"`
	RateToUSD     rateField `json:"rate_to_usd"`
	EffectiveFrom rateField `json:"effective_from"`
	EffectiveTo   rateField `json:"effective_to"`
}

func (r jsonRow) importRow() ImportRow {
	rate := r.Rate
	if rate == "" {
		rate = r.RateToUSD
	}
	return ImportRow{
		CurrencyFrom:  string(r.CurrencyFrom),
		CurrencyTo:    string(r.CurrencyTo),
		Rate:          string(rate),
		EffectiveFrom: string(r.EffectiveFrom),
		EffectiveTo:   string(r.EffectiveTo),
	}
}

// DecodeJSON reads either {"rates": [...]} or a bare array of rows.
func DecodeJSON(r io.Reader) ([]ImportRow, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read json body: %w", err)
	}
	body = bytes.TrimSpace(body)

	var rows []jsonRow
	switch {
	case len(body) > 0 && body[0] == '[':
		err = json.Unmarshal(body, &rows)
	default:
		var envelope struct {
			Rates []jsonRow `json:"rates"`
		}
		err = json.Unmarshal(body, &envelope)
		rows = envelope.Rates
	}
	if err != nil {
		return nil, decodeError("body", "malformed JSON: "+err.Error())
	}

	out := make([]ImportRow, len(rows))
	for i, row := range rows {
		out[i] = row.importRow()
	}
	return out, nil
}

// DecodeCSV reads a header row followed by one quote per line. Recognised
// columns are currency_from, currency_to, rate (or rate_to_usd),
// effective_from and effective_to; column order is free.
func DecodeCSV(r io.Reader) ([]ImportRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, decodeError("header", "CSV is empty")
	}
	if err != nil {
		return nil, decodeError("header", "malformed CSV: "+err.Error())
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if name == "rate_to_usd" {
			name = "rate"
		}
		cols[name] = i
	}
	for _, required := range []string{"currency_from", "rate"} {
		if _, ok := cols[required]; !ok {
			return nil, decodeError("header", "missing column "+required)
		}
	}

	get := func(rec []string, col string) string {
		i, ok := cols[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []ImportRow
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, decodeError("body", fmt.Sprintf("malformed CSV at line %d: %v", line, err))
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		out = append(out, ImportRow{
			CurrencyFrom:  get(rec, "currency_from"),
			CurrencyTo:    get(rec, "currency_to"),
			Rate:          get(rec, "rate"),
			EffectiveFrom: get(rec, "effective_from"),
			EffectiveTo:   get(rec, "effective_to"),
		})
	}
	return out, nil
}

func decodeError(field, msg string) error {
	verr := &core.ValidationError{}
	verr.Add(0, field, msg)
	return verr
}
