package core

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	MaxNameLength        = 100
	MaxDescriptionLength = 500
	MinBudgetYear        = 2000
	MaxBudgetYear        = 2100
)

const (
	Income  CategoryType = "income"
	Expense CategoryType = "expense"
)

const dateLayout = "2006-01-02"

type (
	CategoryType string

	// Date is a calendar day in UTC.
	Date struct {
		time.Time
	}

	Account struct {
		ID          int64           `json:"id"`
		Name        string          `json:"name"`
		Currency    Currency        `json:"currency"`
		Balance     decimal.Decimal `json:"balance"`
		Description string          `json:"description,omitempty"`
		CreatedAt   time.Time       `json:"created_at"`
		UpdatedAt   time.Time       `json:"updated_at"`
	}

	// Transaction is a signed posting against one account. Negative amounts
	// are expenses. Currency always mirrors the account's currency.
	Transaction struct {
		ID          int64           `json:"id"`
		AccountID   int64           `json:"account_id"`
		Amount      decimal.Decimal `json:"amount"`
		Currency    Currency        `json:"currency"`
		CategoryID  *int64          `json:"category_id"`
		Description string          `json:"description,omitempty"`
		Date        Date            `json:"transaction_date"`
		CreatedAt   time.Time       `json:"created_at"`
		UpdatedAt   time.Time       `json:"updated_at"`
	}

	Transfer struct {
		ID            int64               `json:"id"`
		FromAccountID int64               `json:"from_account_id"`
		ToAccountID   int64               `json:"to_account_id"`
		FromAmount    decimal.Decimal     `json:"from_amount"`
		ToAmount      decimal.Decimal     `json:"to_amount"`
		FromCurrency  Currency            `json:"from_currency"`
		ToCurrency    Currency            `json:"to_currency"`
		ExchangeRate  decimal.NullDecimal `json:"exchange_rate"`
		Description   string              `json:"description,omitempty"`
		Date          Date                `json:"transfer_date"`
		CreatedAt     time.Time           `json:"created_at"`
		UpdatedAt     time.Time           `json:"updated_at"`
	}

	Category struct {
		ID          int64        `json:"id"`
		Name        string       `json:"name"`
		Description string       `json:"description,omitempty"`
		Type        CategoryType `json:"type"`
		ParentID    *int64       `json:"parent_id"`
		CreatedAt   time.Time    `json:"created_at"`
		UpdatedAt   time.Time    `json:"updated_at"`
	}

	Budget struct {
		ID            int64           `json:"id"`
		Year          int             `json:"budget_year"`
		Month         int             `json:"budget_month"`
		CategoryID    int64           `json:"category_id"`
		PlannedAmount decimal.Decimal `json:"planned_amount"`
		Currency      Currency        `json:"currency"`
		CreatedAt     time.Time       `json:"created_at"`
		UpdatedAt     time.Time       `json:"updated_at"`
	}

	// ExchangeRate converts one unit of Currency into RateToUSD dollars from
	// EffectiveFrom until EffectiveTo (inclusive, open-ended when nil).
	ExchangeRate struct {
		ID            int64           `json:"id"`
		Currency      Currency        `json:"currency"`
		RateToUSD     decimal.Decimal `json:"rate_to_usd"`
		EffectiveFrom Date            `json:"effective_from"`
		EffectiveTo   *Date           `json:"effective_to"`
		CreatedAt     time.Time       `json:"created_at"`
	}

	Settings struct {
		DefaultCurrency Currency  `json:"default_currency"`
		CreatedAt       time.Time `json:"created_at"`
		UpdatedAt       time.Time `json:"updated_at"`
	}
)

// DefaultSettings is what a fresh deployment starts with.
func DefaultSettings() Settings {
	return Settings{DefaultCurrency: USD}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	t = t.UTC()
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// Today returns the current UTC calendar day.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses a YYYY-MM-DD string. Full RFC 3339 timestamps are
// accepted and truncated to their day.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return DateOf(t), nil
	}
	return Date{}, ErrInvalidDate
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// Year returns the year
func (d Date) Year() int { return d.Time.Year() }

// Month returns the month as 1-12
func (d Date) Month() int { return int(d.Time.Month()) }

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return ErrInvalidDate
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseCategoryType accepts "income" or "expense" in any case.
func ParseCategoryType(s string) (CategoryType, error) {
	t := CategoryType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", ErrInvalidCategoryType
	}
	return t, nil
}

func (t CategoryType) Valid() bool {
	return t == Income || t == Expense
}

func validateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return ErrNameTooLong
	}
	return nil
}

func validateDescription(desc string) error {
	if utf8.RuneCountInString(desc) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

func (a Account) Validate() error {
	if err := validateName(a.Name); err != nil {
		return err
	}
	if !a.Currency.Supported() {
		return ErrUnsupportedCurrency
	}
	return validateDescription(a.Description)
}

func (t Transaction) Validate() error {
	if t.AccountID <= 0 {
		return ErrMissingID
	}
	if t.Amount.IsZero() {
		return ErrZeroAmount
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	return validateDescription(t.Description)
}

func (t Transfer) Validate() error {
	if t.FromAccountID <= 0 || t.ToAccountID <= 0 {
		return ErrMissingID
	}
	if t.FromAccountID == t.ToAccountID {
		return ErrSameAccountTransfer
	}
	if !t.FromAmount.IsPositive() {
		return ErrInvalidAmount
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	return validateDescription(t.Description)
}

func (c Category) Validate() error {
	if err := validateName(c.Name); err != nil {
		return err
	}
	if !c.Type.Valid() {
		return ErrInvalidCategoryType
	}
	return validateDescription(c.Description)
}

func (b Budget) Validate() error {
	if b.Year < MinBudgetYear || b.Year > MaxBudgetYear {
		return ErrInvalidYear
	}
	if b.Month < 1 || b.Month > 12 {
		return ErrInvalidMonth
	}
	if b.CategoryID <= 0 {
		return ErrMissingID
	}
	if b.PlannedAmount.IsNegative() {
		return ErrInvalidAmount
	}
	if !b.Currency.Supported() {
		return ErrUnsupportedCurrency
	}
	return nil
}

// ActiveOn reports whether the rate applies on day d.
func (r ExchangeRate) ActiveOn(d Date) bool {
	if d.Before(r.EffectiveFrom) {
		return false
	}
	return r.EffectiveTo == nil || !r.EffectiveTo.Before(d)
}
