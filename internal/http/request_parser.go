// Package http serves the JSON API.
//
// This file implements request decoding: JSON bodies, path IDs, pagination
// and the optional query filters shared by the list endpoints.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"conti/internal/core"
	"conti/internal/storage"
)

const (
	maxBodyBytes = 1 << 20
	defaultLimit = 100
	maxLimit     = 1000
)

// errMalformedRequest marks bodies that are not JSON at all.
var errMalformedRequest = errors.New("malformed request")

// Optional distinguishes an absent PATCH field from an explicit null.
type Optional[T any] struct {
	Set   bool
	Value *T
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// decodeJSON reads a single JSON object into dst. Syntax problems are
// malformed requests; values of the wrong shape are invalid input.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: request body is empty", errMalformedRequest)
		case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
			return fmt.Errorf("%w: request body is not valid JSON", errMalformedRequest)
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: request body exceeds %d bytes", errMalformedRequest, maxErr.Limit)
		case errors.As(err, &typeErr):
			return fieldError(typeErr.Field, "has the wrong type")
		case errors.Is(err, core.ErrInvalid):
			return err
		default:
			return fmt.Errorf("%w: %s", core.ErrInvalid, err.Error())
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: request body must hold a single JSON object", errMalformedRequest)
	}
	return nil
}

func fieldError(field, message string) error {
	ve := &core.ValidationError{}
	ve.Add(0, field, message)
	return ve
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fieldError(name, fmt.Sprintf("%q is not a valid id", raw))
	}
	return id, nil
}

// parsePage reads skip (>= 0) and limit (1..1000, default 100).
func parsePage(q url.Values) (storage.Page, error) {
	p := storage.Page{Limit: defaultLimit}
	ve := &core.ValidationError{}

	if v := strings.TrimSpace(q.Get("skip")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			ve.Add(0, "skip", "must be an integer >= 0")
		} else {
			p.Skip = n
		}
	}
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxLimit {
			ve.Add(0, "limit", fmt.Sprintf("must be an integer between 1 and %d", maxLimit))
		} else {
			p.Limit = n
		}
	}
	return p, ve.Err()
}

// queryID returns 0 when key is absent.
func queryID(q url.Values, key string) (int64, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, fieldError(key, "must be a positive integer")
	}
	return id, nil
}

// queryInt returns 0 when key is absent.
func queryInt(q url.Values, key string) (int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fieldError(key, "must be an integer")
	}
	return n, nil
}

func queryDate(q url.Values, key string) (core.Date, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, fieldError(key, "must be a YYYY-MM-DD date")
	}
	return d, nil
}

func queryBool(q url.Values, key string) (bool, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fieldError(key, "must be true or false")
	}
	return b, nil
}

func queryCategoryType(q url.Values) (*core.CategoryType, error) {
	v := strings.TrimSpace(q.Get("type"))
	if v == "" {
		return nil, nil
	}
	t, err := core.ParseCategoryType(v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// sanitizeInput removes control characters except tab and newlines and
// trims surrounding whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func sanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := sanitizeInput(*s)
	return &v
}
