package services

import (
	"context"
	"fmt"
	"strings"

	"conti/internal/amqp"
	"conti/internal/core"
	"conti/internal/portfolio"
	"conti/internal/storage"

	"github.com/shopspring/decimal"
)

type AccountStore interface {
	CreateAccount(ctx context.Context, a core.Account) (core.Account, error)
	GetAccount(ctx context.Context, id int64) (core.Account, error)
	ListAccounts(ctx context.Context, p storage.Page) ([]core.Account, int, error)
	UpdateAccount(ctx context.Context, a core.Account) (core.Account, error)
	DeleteAccount(ctx context.Context, id int64) (core.Account, error)
}

type NewAccount struct {
	Name        string
	Currency    core.Currency
	Balance     decimal.Decimal
	Description string
}

// AccountUpdate is a partial update. Nil fields are left unchanged.
type AccountUpdate struct {
	Name        *string
	Currency    *core.Currency
	Balance     *decimal.Decimal
	Description *string
}

// AccountService manages accounts and values them in the default currency.
type AccountService struct {
	store    AccountStore
	settings *SettingsService
	rates    *RateService
	events
}

func NewAccountService(store AccountStore, settings *SettingsService, rates *RateService, pub Publisher) *AccountService {
	return &AccountService{store: store, settings: settings, rates: rates, events: events{pub: pub}}
}

func (s *AccountService) Create(ctx context.Context, in NewAccount) (portfolio.AccountView, error) {
	a := core.Account{
		Name:        strings.TrimSpace(in.Name),
		Currency:    in.Currency,
		Balance:     core.RoundAmount(in.Balance),
		Description: strings.TrimSpace(in.Description),
	}
	if a.Currency == "" {
		a.Currency = core.EUR
	}
	if err := a.Validate(); err != nil {
		return portfolio.AccountView{}, err
	}
	if a.Balance.IsNegative() {
		return portfolio.AccountView{}, core.ErrNegativeBalance
	}

	created, err := s.store.CreateAccount(ctx, a)
	if err != nil {
		return portfolio.AccountView{}, fmt.Errorf("create account: %w", err)
	}
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EventCreated, amqp.EntityAccount, created.ID))
	return s.Get(ctx, created.ID)
}

// TotalBalance values every account and sums them in the default currency.
func (s *AccountService) TotalBalance(ctx context.Context) (portfolio.TotalBalance, error) {
	accounts, _, err := s.store.ListAccounts(ctx, storage.Page{})
	if err != nil {
		return portfolio.TotalBalance{}, fmt.Errorf("list accounts: %w", err)
	}
	defaultCurrency, err := s.settings.DefaultCurrency(ctx)
	if err != nil {
		return portfolio.TotalBalance{}, err
	}
	conv, err := s.rates.Converter(ctx)
	if err != nil {
		return portfolio.TotalBalance{}, err
	}
	return portfolio.Total(accounts, defaultCurrency, conv), nil
}

// Get returns one account view. Its percentage is relative to the total of
// all accounts.
func (s *AccountService) Get(ctx context.Context, id int64) (portfolio.AccountView, error) {
	if _, err := s.store.GetAccount(ctx, id); err != nil {
		return portfolio.AccountView{}, err
	}
	total, err := s.TotalBalance(ctx)
	if err != nil {
		return portfolio.AccountView{}, err
	}
	for _, v := range total.Accounts {
		if v.Account.ID == id {
			return v, nil
		}
	}
	return portfolio.AccountView{}, core.ErrAccountNotFound
}

// List returns one page of account views and the number of accounts.
// Percentages are computed over every account, not just the page.
func (s *AccountService) List(ctx context.Context, p storage.Page) ([]portfolio.AccountView, int, error) {
	total, err := s.TotalBalance(ctx)
	if err != nil {
		return nil, 0, err
	}
	return storage.Slice(total.Accounts, p), len(total.Accounts), nil
}

func (s *AccountService) Update(ctx context.Context, id int64, u AccountUpdate) (portfolio.AccountView, error) {
	a, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return portfolio.AccountView{}, err
	}
	if u.Name != nil {
		a.Name = strings.TrimSpace(*u.Name)
	}
	if u.Currency != nil {
		a.Currency = *u.Currency
	}
	if u.Balance != nil {
		a.Balance = core.RoundAmount(*u.Balance)
	}
	if u.Description != nil {
		a.Description = strings.TrimSpace(*u.Description)
	}
	if err := a.Validate(); err != nil {
		return portfolio.AccountView{}, err
	}

	if _, err := s.store.UpdateAccount(ctx, a); err != nil {
		return portfolio.AccountView{}, err
	}
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EventUpdated, amqp.EntityAccount, id))
	return s.Get(ctx, id)
}

// Delete removes the account together with its transactions and transfers.
func (s *AccountService) Delete(ctx context.Context, id int64) error {
	if _, err := s.store.DeleteAccount(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EventDeleted, amqp.EntityAccount, id))
	return nil
}
