package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Error classes. Every error returned by the domain wraps exactly one of
// these so transports can map them without knowing each sentinel.
var (
	ErrInvalid      = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrRejected     = errors.New("rejected")
	ErrRateNotFound = errors.New("exchange rate not found")
)

var (
	ErrInvalidAmount       = fmt.Errorf("%w: invalid amount", ErrInvalid)
	ErrZeroAmount          = fmt.Errorf("%w: amount must not be zero", ErrInvalid)
	ErrNegativeBalance     = fmt.Errorf("%w: balance must not be negative", ErrInvalid)
	ErrInvalidDate         = fmt.Errorf("%w: invalid date", ErrInvalid)
	ErrInvalidYear         = fmt.Errorf("%w: year must be between %d and %d", ErrInvalid, MinBudgetYear, MaxBudgetYear)
	ErrInvalidMonth        = fmt.Errorf("%w: month must be between 1 and 12", ErrInvalid)
	ErrEmptyName           = fmt.Errorf("%w: name is required", ErrInvalid)
	ErrNameTooLong         = fmt.Errorf("%w: name too long (max %d characters)", ErrInvalid, MaxNameLength)
	ErrDescriptionTooLong  = fmt.Errorf("%w: description too long (max %d characters)", ErrInvalid, MaxDescriptionLength)
	ErrUnsupportedCurrency = fmt.Errorf("%w: unsupported currency", ErrInvalid)
	ErrInvalidCategoryType = fmt.Errorf("%w: category type must be income or expense", ErrInvalid)
	ErrMissingID           = fmt.Errorf("%w: id is required", ErrInvalid)
)

var (
	ErrAccountNotFound     = fmt.Errorf("account %w", ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("transaction %w", ErrNotFound)
	ErrTransferNotFound    = fmt.Errorf("transfer %w", ErrNotFound)
	ErrCategoryNotFound    = fmt.Errorf("category %w", ErrNotFound)
	ErrBudgetNotFound      = fmt.Errorf("budget %w", ErrNotFound)
)

var (
	ErrDuplicateBudget = fmt.Errorf("%w: a budget already exists for this category and period", ErrConflict)
	ErrCurrencyLocked  = fmt.Errorf("%w: account currency cannot change while it has transactions or transfers", ErrConflict)
)

var (
	ErrCategoryCycle          = fmt.Errorf("%w: category cannot be its own ancestor", ErrRejected)
	ErrCategoryDepth          = fmt.Errorf("%w: categories may only be nested one level deep", ErrRejected)
	ErrCategoryTypeMismatch   = fmt.Errorf("%w: parent category must have the same type", ErrRejected)
	ErrSameAccountTransfer    = fmt.Errorf("%w: source and destination accounts must differ", ErrRejected)
	ErrTransferAmountMismatch = fmt.Errorf("%w: same-currency transfers must move equal amounts", ErrRejected)
)

// RateNotFoundError names the currency that has no active rate.
type RateNotFoundError struct {
	Currency Currency
}

func (e *RateNotFoundError) Error() string {
	return fmt.Sprintf("no exchange rate available for %s", e.Currency)
}

func (e *RateNotFoundError) Is(target error) bool { return target == ErrRateNotFound }

// InsufficientFundsError is returned when a transfer would overdraw its source.
type InsufficientFundsError struct {
	AccountID int64
	Balance   decimal.Decimal
	Required  decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds in account %d: balance %s, required %s",
		e.AccountID, e.Balance.String(), e.Required.String())
}

func (e *InsufficientFundsError) Is(target error) bool { return target == ErrRejected }

// RowError describes one invalid field of one row in a batch. Row is 1-based;
// zero means the problem is not tied to a row.
type RowError struct {
	Row     int    `json:"row,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (r RowError) String() string {
	var b strings.Builder
	if r.Row > 0 {
		fmt.Fprintf(&b, "row %d: ", r.Row)
	}
	if r.Field != "" {
		b.WriteString(r.Field)
		b.WriteString(": ")
	}
	b.WriteString(r.Message)
	return b.String()
}

// ValidationError aggregates every problem found in a request or batch.
type ValidationError struct {
	Rows []RowError
}

func (e *ValidationError) Error() string {
	if len(e.Rows) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e.Rows))
	for i, r := range e.Rows {
		parts[i] = r.String()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

// Add records a problem.
func (e *ValidationError) Add(row int, field, message string) {
	e.Rows = append(e.Rows, RowError{Row: row, Field: field, Message: message})
}

// Err returns e when it holds at least one problem, nil otherwise.
func (e *ValidationError) Err() error {
	if len(e.Rows) == 0 {
		return nil
	}
	return e
}
