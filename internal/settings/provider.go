// Package settings keeps the store-wide settings document in memory. The
// document is read once at startup and then only on an explicit reload or
// update, so request handlers never hit the database for it.
package settings

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"bookshop/internal/models"
)

type Store interface {
	LoadSettings(ctx context.Context) (*models.Settings, error)
	SaveSettings(ctx context.Context, s *models.Settings) error
}

type Provider struct {
	store   Store
	current atomic.Pointer[models.Settings]
}

func NewProvider(store Store) *Provider {
	p := &Provider{store: store}
	d := models.DefaultSettings()
	p.current.Store(&d)
	return p
}

// Load reads the settings document, writing the defaults when none exists.
func (p *Provider) Load(ctx context.Context) error {
	s, err := p.store.LoadSettings(ctx)
	if errors.Is(err, models.ErrNoRecord) {
		d := models.DefaultSettings()
		d.UpdatedAt = time.Now().UTC()
		if err := p.store.SaveSettings(ctx, &d); err != nil {
			return fmt.Errorf("settings: write defaults: %w", err)
		}
		p.current.Store(&d)
		return nil
	}
	if err != nil {
		return fmt.Errorf("settings: load: %w", err)
	}
	p.current.Store(normalize(s))
	return nil
}

// Current returns a copy of the snapshot. Callers may modify it freely.
func (p *Provider) Current() models.Settings {
	s := *p.current.Load()
	s.ShippingTiers = append([]models.ShippingTier(nil), s.ShippingTiers...)
	return s
}

func (p *Provider) Reload(ctx context.Context) error {
	return p.Load(ctx)
}

// Update persists s and swaps it in. The snapshot is untouched when the
// write fails.
func (p *Provider) Update(ctx context.Context, s models.Settings) (models.Settings, error) {
	if err := Validate(s); err != nil {
		return models.Settings{}, err
	}
	s.ID = models.SettingsID
	s.UpdatedAt = time.Now().UTC()
	s.ShippingTiers = append([]models.ShippingTier(nil), s.ShippingTiers...)
	if err := p.store.SaveSettings(ctx, &s); err != nil {
		return models.Settings{}, fmt.Errorf("settings: save: %w", err)
	}
	p.current.Store(&s)
	return p.Current(), nil
}

func Validate(s models.Settings) error {
	switch {
	case s.TaxRate < 0 || s.TaxRate > 100:
		return models.Invalid("taxRate", "must be between 0 and 100")
	case s.FreeShippingThreshold < 0:
		return models.Invalid("freeShippingThreshold", "must not be negative")
	case !s.EnableOnlinePayment && !s.EnableCOD:
		return models.Invalid("enableOnlinePayment", "at least one payment method must be enabled")
	case s.LowStockThreshold < 0:
		return models.Invalid("lowStockThreshold", "must not be negative")
	}
	for _, t := range s.ShippingTiers {
		if t.MinSubtotal < 0 || t.Cost < 0 {
			return models.Invalid("shippingTiers", "values must not be negative")
		}
	}
	return nil
}

func normalize(s *models.Settings) *models.Settings {
	d := models.DefaultSettings()
	if s.StoreName == "" {
		s.StoreName = d.StoreName
	}
	if s.Currency == "" {
		s.Currency = d.Currency
	}
	if s.PickupLocation == "" {
		s.PickupLocation = d.PickupLocation
	}
	return s
}
