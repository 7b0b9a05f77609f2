package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the internal fulfillment state of an order. Provider-native
// status strings never leave the integration layer; everything downstream
// sees exactly this closed set.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusPartial    OrderStatus = "partial"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusFailed     OrderStatus = "failed"
)

func (s OrderStatus) String() string { return string(s) }

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusCompleted,
		OrderStatusPartial, OrderStatusCancelled, OrderStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the status can no longer change upstream.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusCancelled, OrderStatusFailed:
		return true
	}
	return false
}

func ParseOrderStatusFromString(s string) (OrderStatus, error) {
	st := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid order status %q", ErrValidation, s)
	}
	return st, nil
}

const (
	MinOrderQuantity = 1
	MaxOrderQuantity = 10_000_000
)

// Order is a purchase of an engagement service, optionally forwarded to an
// upstream provider once placed.
type Order struct {
	ID              string
	CorrelationID   string
	IdempotencyKey  *string
	ServiceID       string
	ProviderID      string
	Link            string
	Quantity        int
	Runs            *int
	Interval        *int
	Charge          decimal.Decimal
	Currency        string
	Status          OrderStatus
	ProviderOrderID *string
	StartCount      *int
	Remains         *int
	AttemptCount    int
	MaxRetries      int
	NextRetryAt     *time.Time
	LastError       *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (o *Order) Validate() error {
	if strings.TrimSpace(o.ServiceID) == "" {
		return fmt.Errorf("%w: service id is required", ErrValidation)
	}
	if strings.TrimSpace(o.Link) == "" {
		return fmt.Errorf("%w: link is required", ErrValidation)
	}
	if o.Quantity < MinOrderQuantity || o.Quantity > MaxOrderQuantity {
		return fmt.Errorf("%w: quantity must be between %d and %d (got %d)",
			ErrValidation, MinOrderQuantity, MaxOrderQuantity, o.Quantity)
	}
	if (o.Runs == nil) != (o.Interval == nil) {
		return fmt.Errorf("%w: runs and interval must be supplied together", ErrValidation)
	}
	if o.Runs != nil && *o.Runs < 1 {
		return fmt.Errorf("%w: runs must be >= 1", ErrValidation)
	}
	if o.Interval != nil && *o.Interval < 1 {
		return fmt.Errorf("%w: interval must be >= 1 minute", ErrValidation)
	}
	if !o.Status.IsValid() {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, o.Status)
	}
	return nil
}

// Forwarded reports whether the order has already been placed upstream.
func (o *Order) Forwarded() bool {
	return o.ProviderOrderID != nil && strings.TrimSpace(*o.ProviderOrderID) != ""
}
