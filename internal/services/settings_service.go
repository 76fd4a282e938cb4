package services

import (
	"context"
	"fmt"
	"log/slog"

	"conti/internal/amqp"
	"conti/internal/core"
)

type SettingsStore interface {
	GetSettings(ctx context.Context) (core.Settings, error)
	UpdateSettings(ctx context.Context, s core.Settings) (core.Settings, error)
}

// SettingsUpdate is a partial update. Nil fields are left unchanged.
type SettingsUpdate struct {
	DefaultCurrency *core.Currency
}

type SettingsService struct {
	store SettingsStore
	events
}

func NewSettingsService(store SettingsStore, pub Publisher) *SettingsService {
	return &SettingsService{store: store, events: events{pub: pub}}
}

// Get returns the settings, creating them with defaults on first use.
func (s *SettingsService) Get(ctx context.Context) (core.Settings, error) {
	st, err := s.store.GetSettings(ctx)
	if err != nil {
		return core.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	return st, nil
}

// DefaultCurrency is the currency every aggregate is reported in.
func (s *SettingsService) DefaultCurrency(ctx context.Context) (core.Currency, error) {
	st, err := s.Get(ctx)
	if err != nil {
		return "", err
	}
	return st.DefaultCurrency, nil
}

func (s *SettingsService) Update(ctx context.Context, u SettingsUpdate) (core.Settings, error) {
	st, err := s.Get(ctx)
	if err != nil {
		return core.Settings{}, err
	}
	if u.DefaultCurrency != nil {
		if !u.DefaultCurrency.Supported() {
			return core.Settings{}, core.ErrUnsupportedCurrency
		}
		st.DefaultCurrency = *u.DefaultCurrency
	}
	out, err := s.store.UpdateSettings(ctx, st)
	if err != nil {
		return core.Settings{}, fmt.Errorf("update settings: %w", err)
	}

	slog.InfoContext(ctx, "Settings updated", "default_currency", out.DefaultCurrency)
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EventUpdated, amqp.EntitySettings, 1))
	return out, nil
}
