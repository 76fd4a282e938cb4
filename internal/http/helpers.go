package http

import (
	"conti/internal/budget"
	"conti/internal/core"
	"conti/internal/portfolio"
	"conti/internal/storage"

	"github.com/shopspring/decimal"
)

// pageResponse is the envelope of every list endpoint.
type pageResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Size  int `json:"size"`
	Pages int `json:"pages"`
}

func newPage[T any](items []T, total int, p storage.Page) pageResponse[T] {
	if items == nil {
		items = []T{}
	}
	size := p.Limit
	if size <= 0 {
		size = defaultLimit
	}
	pages := 1
	if total > 0 {
		pages = (total + size - 1) / size
	}
	return pageResponse[T]{
		Items: items,
		Total: total,
		Page:  p.Skip/size + 1,
		Size:  size,
		Pages: pages,
	}
}

// mapSlice converts every element of in.
func mapSlice[T, U any](in []T, f func(T) U) []U {
	out := make([]U, len(in))
	for i, v := range in {
		out[i] = f(v)
	}
	return out
}

type accountResponse struct {
	core.Account
	BalanceInDefaultCurrency *decimal.Decimal `json:"balance_in_default_currency"`
	ExchangeRateUsed         *decimal.Decimal `json:"exchange_rate_used"`
	DefaultCurrency          core.Currency    `json:"default_currency"`
	PercentageOfTotal        decimal.Decimal  `json:"percentage_of_total"`
}

func newAccountResponse(v portfolio.AccountView) accountResponse {
	out := accountResponse{
		Account:           v.Account,
		DefaultCurrency:   v.DefaultCurrency,
		PercentageOfTotal: v.PercentageOfTotal,
	}
	if c, ok := v.Converted(); ok {
		amount, rate := core.RoundAmount(c.Amount), c.Rate
		out.BalanceInDefaultCurrency = &amount
		out.ExchangeRateUsed = &rate
	}
	return out
}

type totalBalanceResponse struct {
	TotalBalance      decimal.Decimal                   `json:"total_balance"`
	DefaultCurrency   core.Currency                     `json:"default_currency"`
	CurrencyBreakdown map[core.Currency]decimal.Decimal `json:"currency_breakdown"`
	SkippedCurrencies []core.Currency                   `json:"skipped_currencies,omitempty"`
}

func newTotalBalanceResponse(t portfolio.TotalBalance) totalBalanceResponse {
	return totalBalanceResponse{
		TotalBalance:      core.RoundAmount(t.TotalBalance),
		DefaultCurrency:   t.DefaultCurrency,
		CurrencyBreakdown: t.CurrencyBreakdown,
		SkippedCurrencies: t.Skipped,
	}
}

type budgetResponse struct {
	core.Budget
	CategoryName            string            `json:"category_name"`
	CategoryType            core.CategoryType `json:"category_type"`
	ActualAmount            decimal.Decimal   `json:"actual_amount"`
	UnconvertedTransactions int               `json:"unconverted_transactions,omitempty"`
}

func newBudgetResponse(v budget.View) budgetResponse {
	return budgetResponse{
		Budget:                  v.Budget,
		CategoryName:            v.CategoryName,
		CategoryType:            v.Kind,
		ActualAmount:            core.RoundAmount(v.Actual.Amount),
		UnconvertedTransactions: v.Actual.Unconverted,
	}
}

type budgetListResponse struct {
	pageResponse[budgetResponse]
	Summary *budget.Summary `json:"summary,omitempty"`
}

type importResponse struct {
	Imported int    `json:"imported"`
	Message  string `json:"message"`
}

// Request bodies.

type createAccountRequest struct {
	Name        string              `json:"name"`
	Currency    core.Currency       `json:"currency"`
	Balance     decimal.NullDecimal `json:"balance"`
	Description string              `json:"description"`
}

type updateAccountRequest struct {
	Name        *string          `json:"name"`
	Currency    *core.Currency   `json:"currency"`
	Balance     *decimal.Decimal `json:"balance"`
	Description *string          `json:"description"`
}

type createTransactionRequest struct {
	AccountID   int64           `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	CategoryID  *int64          `json:"category_id"`
	Description string          `json:"description"`
	Date        core.Date       `json:"transaction_date"`
}

type updateTransactionRequest struct {
	Amount      *decimal.Decimal `json:"amount"`
	CategoryID  Optional[int64]  `json:"category_id"`
	Description *string          `json:"description"`
	Date        *core.Date       `json:"transaction_date"`
}

type createTransferRequest struct {
	FromAccountID int64               `json:"from_account_id"`
	ToAccountID   int64               `json:"to_account_id"`
	Amount        decimal.Decimal     `json:"amount"`
	ToAmount      decimal.NullDecimal `json:"to_amount"`
	Description   string              `json:"description"`
	Date          core.Date           `json:"transfer_date"`
}

type updateTransferRequest struct {
	Amount      *decimal.Decimal `json:"amount"`
	ToAmount    *decimal.Decimal `json:"to_amount"`
	Description *string          `json:"description"`
	Date        *core.Date       `json:"transfer_date"`
}

type createCategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	ParentID    *int64 `json:"parent_id"`
}

type updateCategoryRequest struct {
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	Type        *string         `json:"type"`
	ParentID    Optional[int64] `json:"parent_id"`
}

type createBudgetRequest struct {
	Year          int             `json:"budget_year"`
	Month         int             `json:"budget_month"`
	CategoryID    int64           `json:"category_id"`
	PlannedAmount decimal.Decimal `json:"planned_amount"`
	Currency      core.Currency   `json:"currency"`
}

type updateBudgetRequest struct {
	Year          *int             `json:"budget_year"`
	Month         *int             `json:"budget_month"`
	CategoryID    *int64           `json:"category_id"`
	PlannedAmount *decimal.Decimal `json:"planned_amount"`
	Currency      *core.Currency   `json:"currency"`
}

type updateSettingsRequest struct {
	DefaultCurrency *core.Currency `json:"default_currency"`
}
