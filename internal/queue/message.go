package queue

import (
	"fmt"
	"strings"
)

// OrderMessage is the broker payload for order forwarding.
type OrderMessage struct {
	OrderID       string `json:"orderId"`
	ProviderID    string `json:"providerId"`
	CorrelationID string `json:"correlationId,omitempty"`
	Resubmit      bool   `json:"resubmit,omitempty"`
}

func (m OrderMessage) Validate() error {
	if strings.TrimSpace(m.OrderID) == "" {
		return fmt.Errorf("orderId is required")
	}
	if strings.TrimSpace(m.ProviderID) == "" {
		return fmt.Errorf("providerId is required")
	}
	return nil
}
