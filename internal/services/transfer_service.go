package services

import (
	"context"
	"fmt"
	"strings"

	"conti/internal/amqp"
	"conti/internal/core"
	"conti/internal/storage"

	"github.com/shopspring/decimal"
)

type TransferStore interface {
	GetAccount(ctx context.Context, id int64) (core.Account, error)
	CreateTransfer(ctx context.Context, t core.Transfer) (core.Transfer, error)
	GetTransfer(ctx context.Context, id int64) (core.Transfer, error)
	ListTransfers(ctx context.Context, f storage.TransferFilter) ([]core.Transfer, int, error)
	UpdateTransfer(ctx context.Context, t core.Transfer) (core.Transfer, error)
	DeleteTransfer(ctx context.Context, id int64) (core.Transfer, error)
}

// NewTransfer moves Amount out of FromAccountID. ToAmount is what arrives;
// when it is not valid it is derived from the current rates. A zero Date
// means today.
type NewTransfer struct {
	FromAccountID int64
	ToAccountID   int64
	Amount        decimal.Decimal
	ToAmount      decimal.NullDecimal
	Description   string
	Date          core.Date
}

// TransferUpdate is a partial update. Changing Amount without ToAmount
// re-prices the destination side.
type TransferUpdate struct {
	Amount      *decimal.Decimal
	ToAmount    *decimal.Decimal
	Description *string
	Date        *core.Date
}

type TransferService struct {
	store TransferStore
	rates *RateService
	today func() core.Date
	events
}

func NewTransferService(store TransferStore, rates *RateService, pub Publisher) *TransferService {
	return &TransferService{store: store, rates: rates, today: core.Today, events: events{pub: pub}}
}

func (s *TransferService) Create(ctx context.Context, in NewTransfer) (core.Transfer, error) {
	t := core.Transfer{
		FromAccountID: in.FromAccountID,
		ToAccountID:   in.ToAccountID,
		FromAmount:    core.RoundAmount(in.Amount),
		Description:   strings.TrimSpace(in.Description),
		Date:          in.Date,
	}
	if t.Date.IsZero() {
		t.Date = s.today()
	}
	if err := t.Validate(); err != nil {
		return core.Transfer{}, err
	}

	from, err := s.store.GetAccount(ctx, t.FromAccountID)
	if err != nil {
		return core.Transfer{}, fmt.Errorf("source: %w", err)
	}
	to, err := s.store.GetAccount(ctx, t.ToAccountID)
	if err != nil {
		return core.Transfer{}, fmt.Errorf("destination: %w", err)
	}
	t.FromCurrency, t.ToCurrency = from.Currency, to.Currency

	if err := s.price(ctx, &t, in.ToAmount); err != nil {
		return core.Transfer{}, err
	}

	created, err := s.store.CreateTransfer(ctx, t)
	if err != nil {
		return core.Transfer{}, err
	}
	s.publish(ctx, transferEvent(amqp.EventCreated, created))
	return created, nil
}

// price fills ToAmount and ExchangeRate. Same-currency transfers move equal
// amounts and carry no rate. Otherwise a supplied destination amount fixes
// the rate, and a missing one is converted at today's rates.
func (s *TransferService) price(ctx context.Context, t *core.Transfer, toAmount decimal.NullDecimal) error {
	if toAmount.Valid {
		toAmount.Decimal = core.RoundAmount(toAmount.Decimal)
		if !toAmount.Decimal.IsPositive() {
			return core.ErrInvalidAmount
		}
	}

	if t.FromCurrency == t.ToCurrency {
		if toAmount.Valid && !toAmount.Decimal.Equal(t.FromAmount) {
			return core.ErrTransferAmountMismatch
		}
		t.ToAmount = t.FromAmount
		t.ExchangeRate = decimal.NullDecimal{}
		return nil
	}

	if toAmount.Valid {
		t.ToAmount = toAmount.Decimal
		t.ExchangeRate = decimal.NewNullDecimal(t.ToAmount.DivRound(t.FromAmount, core.RatePlaces))
		return nil
	}

	conv, err := s.rates.Converter(ctx)
	if err != nil {
		return err
	}
	c, err := conv.Convert(t.FromAmount, t.FromCurrency, t.ToCurrency)
	if err != nil {
		return err
	}
	t.ToAmount = core.RoundAmount(c.Amount)
	if !t.ToAmount.IsPositive() {
		return core.ErrInvalidAmount
	}
	t.ExchangeRate = decimal.NewNullDecimal(c.Rate.Round(core.RatePlaces))
	return nil
}

func (s *TransferService) Get(ctx context.Context, id int64) (core.Transfer, error) {
	return s.store.GetTransfer(ctx, id)
}

func (s *TransferService) List(ctx context.Context, f storage.TransferFilter) ([]core.Transfer, int, error) {
	items, total, err := s.store.ListTransfers(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("list transfers: %w", err)
	}
	return items, total, nil
}

// Update reverses the stored transfer and applies the patched one. The
// accounts of a transfer never change.
func (s *TransferService) Update(ctx context.Context, id int64, u TransferUpdate) (core.Transfer, error) {
	t, err := s.store.GetTransfer(ctx, id)
	if err != nil {
		return core.Transfer{}, err
	}
	if u.Description != nil {
		t.Description = strings.TrimSpace(*u.Description)
	}
	if u.Date != nil && !u.Date.IsZero() {
		t.Date = *u.Date
	}

	reprice := u.Amount != nil || u.ToAmount != nil
	if u.Amount != nil {
		t.FromAmount = core.RoundAmount(*u.Amount)
	}
	if err := t.Validate(); err != nil {
		return core.Transfer{}, err
	}
	if reprice {
		var toAmount decimal.NullDecimal
		if u.ToAmount != nil {
			toAmount = decimal.NewNullDecimal(*u.ToAmount)
		}
		if err := s.price(ctx, &t, toAmount); err != nil {
			return core.Transfer{}, err
		}
	}

	out, err := s.store.UpdateTransfer(ctx, t)
	if err != nil {
		return core.Transfer{}, err
	}
	s.publish(ctx, transferEvent(amqp.EventUpdated, out))
	return out, nil
}

// Delete removes the transfer and restores both balances.
func (s *TransferService) Delete(ctx context.Context, id int64) error {
	old, err := s.store.DeleteTransfer(ctx, id)
	if err != nil {
		return err
	}
	s.publish(ctx, transferEvent(amqp.EventDeleted, old))
	return nil
}

func transferEvent(event amqp.EventType, t core.Transfer) *amqp.LedgerEvent {
	return amqp.NewLedgerEvent(event, amqp.EntityTransfer, t.ID).InPeriod(t.Date.Year(), t.Date.Month())
}
