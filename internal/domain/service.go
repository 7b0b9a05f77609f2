package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Service is a catalog entry resold under a provider. Rate is the resale
// price per 1000 units; ProviderRate is what the upstream charges us.
type Service struct {
	ID                string
	ProviderID        string
	ProviderServiceID string
	Name              string
	Category          string
	Description       string
	Rate              decimal.Decimal
	ProviderRate      decimal.Decimal
	MinOrder          int
	MaxOrder          int
	DripFeed          bool
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (s *Service) Validate() error {
	if strings.TrimSpace(s.ProviderID) == "" {
		return fmt.Errorf("%w: provider id is required", ErrValidation)
	}
	if strings.TrimSpace(s.ProviderServiceID) == "" {
		return fmt.Errorf("%w: provider service id is required", ErrValidation)
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: service name is required", ErrValidation)
	}
	if s.Rate.IsNegative() || s.ProviderRate.IsNegative() {
		return fmt.Errorf("%w: service rate must not be negative", ErrValidation)
	}
	if s.MinOrder < 0 || s.MaxOrder < 0 {
		return fmt.Errorf("%w: order bounds must not be negative", ErrValidation)
	}
	if s.MaxOrder > 0 && s.MinOrder > s.MaxOrder {
		return fmt.Errorf("%w: min order %d exceeds max order %d", ErrValidation, s.MinOrder, s.MaxOrder)
	}
	return nil
}

// AllowsQuantity reports whether a quantity fits the service bounds.
func (s *Service) AllowsQuantity(quantity int) bool {
	if s.MinOrder > 0 && quantity < s.MinOrder {
		return false
	}
	if s.MaxOrder > 0 && quantity > s.MaxOrder {
		return false
	}
	return true
}
