package domain

import "time"

// ForwardAttempt records a single upstream forwarding attempt for an order.
type ForwardAttempt struct {
	ID            string
	OrderID       string
	Operation     string
	AttemptNumber int
	StatusCode    *int
	Error         *string
	CreatedAt     time.Time
}
