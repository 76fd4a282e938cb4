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

type TransactionStore interface {
	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, int, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) (core.Transaction, error)
}

// NewTransaction is a posting request. A zero Date means today.
type NewTransaction struct {
	AccountID   int64
	Amount      decimal.Decimal
	CategoryID  *int64
	Description string
	Date        core.Date
}

// TransactionUpdate is a partial update. ClearCategory removes the category
// and wins over CategoryID. The account never changes.
type TransactionUpdate struct {
	Amount        *decimal.Decimal
	CategoryID    *int64
	ClearCategory bool
	Description   *string
	Date          *core.Date
}

type TransactionService struct {
	store TransactionStore
	today func() core.Date
	events
}

func NewTransactionService(store TransactionStore, pub Publisher) *TransactionService {
	return &TransactionService{store: store, today: core.Today, events: events{pub: pub}}
}

// Create stores the transaction and posts it to the account balance.
func (s *TransactionService) Create(ctx context.Context, in NewTransaction) (core.Transaction, error) {
	t := core.Transaction{
		AccountID:   in.AccountID,
		Amount:      core.RoundAmount(in.Amount),
		CategoryID:  in.CategoryID,
		Description: strings.TrimSpace(in.Description),
		Date:        in.Date,
	}
	if t.Date.IsZero() {
		t.Date = s.today()
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	created, err := s.store.CreateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, err
	}
	s.publish(ctx, transactionEvent(amqp.EventCreated, created))
	return created, nil
}

func (s *TransactionService) Get(ctx context.Context, id int64) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

func (s *TransactionService) List(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, int, error) {
	items, total, err := s.store.ListTransactions(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	return items, total, nil
}

// Update applies u and reposts the balance difference.
func (s *TransactionService) Update(ctx context.Context, id int64, u TransactionUpdate) (core.Transaction, error) {
	t, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	prev := t.Date
	if u.Amount != nil {
		t.Amount = core.RoundAmount(*u.Amount)
	}
	switch {
	case u.ClearCategory:
		t.CategoryID = nil
	case u.CategoryID != nil:
		t.CategoryID = u.CategoryID
	}
	if u.Description != nil {
		t.Description = strings.TrimSpace(*u.Description)
	}
	if u.Date != nil && !u.Date.IsZero() {
		t.Date = *u.Date
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	out, err := s.store.UpdateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, err
	}
	s.publish(ctx, transactionEvent(amqp.EventUpdated, out).MovedFrom(prev.Year(), prev.Month()))
	return out, nil
}

// Delete removes the transaction and reverses its posting.
func (s *TransactionService) Delete(ctx context.Context, id int64) error {
	old, err := s.store.DeleteTransaction(ctx, id)
	if err != nil {
		return err
	}
	s.publish(ctx, transactionEvent(amqp.EventDeleted, old))
	return nil
}

func transactionEvent(event amqp.EventType, t core.Transaction) *amqp.LedgerEvent {
	return amqp.NewLedgerEvent(event, amqp.EntityTransaction, t.ID).InPeriod(t.Date.Year(), t.Date.Month())
}
