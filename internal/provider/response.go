package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/panelkit/smm-engine/internal/domain"
	"github.com/shopspring/decimal"
)

const DefaultCurrency = "USD"

// Candidate wire names per logical field, tried in priority order. New
// dialects are additions to these tables, not code changes.
var (
	orderIDKeys    = []string{"order", "order_id", "id"}
	chargeKeys     = []string{"charge", "cost", "price"}
	statusKeys     = []string{"status", "order_status", "state"}
	remainsKeys    = []string{"remains", "remaining", "remain"}
	startCountKeys = []string{"start_count", "startCount", "start"}
	balanceKeys    = []string{"balance", "funds", "amount"}
	currencyKeys   = []string{"currency", "currency_code"}

	serviceIDKeys   = []string{"service", "service_id", "id"}
	serviceNameKeys = []string{"name", "title", "service_name"}
	serviceRateKeys = []string{"rate", "price", "cost"}
	serviceMinKeys  = []string{"min", "min_order", "minimal"}
	serviceMaxKeys  = []string{"max", "max_order", "maximal"}
	categoryKeys    = []string{"category", "type"}
	descriptionKeys = []string{"description", "desc"}
	dripFeedKeys    = []string{"dripfeed", "drip_feed", "drip-feed"}
)

// statusMap translates provider status vocabulary to the internal closed set.
// Unrecognized strings fall back to pending, never to an error.
var statusMap = map[string]domain.OrderStatus{
	"pending":     domain.OrderStatusPending,
	"in progress": domain.OrderStatusProcessing,
	"inprogress":  domain.OrderStatusProcessing,
	"processing":  domain.OrderStatusProcessing,
	"completed":   domain.OrderStatusCompleted,
	"complete":    domain.OrderStatusCompleted,
	"partial":     domain.OrderStatusPartial,
	"canceled":    domain.OrderStatusCancelled,
	"cancelled":   domain.OrderStatusCancelled,
	"failed":      domain.OrderStatusFailed,
	"error":       domain.OrderStatusFailed,
}

// MapStatus reduces a provider-native status string to the internal set.
func MapStatus(raw string) domain.OrderStatus {
	if status, ok := statusMap[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return status
	}
	return domain.OrderStatusPending
}

// OrderResult is the normalized outcome of an order placement.
type OrderResult struct {
	OrderID    string
	Charge     *decimal.Decimal
	StartCount *int
	Status     domain.OrderStatus
	Remains    *int
	Currency   string
}

// StatusResult is the normalized outcome of a status check.
type StatusResult struct {
	Charge     *decimal.Decimal
	StartCount *int
	Status     domain.OrderStatus
	Remains    *int
	Currency   string
}

// BalanceResult is the normalized outcome of a balance fetch.
type BalanceResult struct {
	Balance  decimal.Decimal
	Currency string
}

// ServiceItem is one normalized catalog entry from a services listing.
type ServiceItem struct {
	ServiceID   string
	Name        string
	Category    string
	Description string
	Rate        *decimal.Decimal
	MinOrder    *int
	MaxOrder    *int
	DripFeed    bool
}

// ParseOrderResponse extracts a normalized order result. The order id is
// mandatory: without it nothing downstream can track the order, so its
// absence is a hard failure. A reported error field outranks any data.
func ParseOrderResponse(body []byte) (*OrderResult, error) {
	payload, err := decodeObject(body)
	if err != nil {
		return nil, err
	}
	if perr := reportedError(payload); perr != nil {
		return nil, perr
	}

	orderID := extractString(payload, orderIDKeys)
	if orderID == "" {
		return nil, &ProviderError{Message: "response is missing an order id"}
	}

	result := &OrderResult{
		OrderID:    orderID,
		Charge:     extractDecimal(payload, chargeKeys),
		StartCount: extractInt(payload, startCountKeys),
		Status:     MapStatus(extractString(payload, statusKeys)),
		Remains:    extractInt(payload, remainsKeys),
		Currency:   extractCurrency(payload),
	}
	return result, nil
}

// ParseStatusResponse extracts a normalized status result. Every field is
// optional: absent fields degrade to nil, not zero.
func ParseStatusResponse(body []byte) (*StatusResult, error) {
	payload, err := decodeObject(body)
	if err != nil {
		return nil, err
	}
	if perr := reportedError(payload); perr != nil {
		return nil, perr
	}
	return statusFromPayload(payload), nil
}

// ParseMultiStatusResponse extracts a map of order id to status result from a
// batch status body. Entries the provider reports as errors are excluded.
func ParseMultiStatusResponse(body []byte) (map[string]StatusResult, error) {
	payload, err := decodeObject(body)
	if err != nil {
		return nil, err
	}
	if perr := reportedError(payload); perr != nil {
		return nil, perr
	}

	results := make(map[string]StatusResult, len(payload))
	for orderID, raw := range payload {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if reportedError(entry) != nil {
			continue
		}
		results[orderID] = *statusFromPayload(entry)
	}
	return results, nil
}

// ParseBalanceResponse extracts the account balance.
func ParseBalanceResponse(body []byte) (*BalanceResult, error) {
	payload, err := decodeObject(body)
	if err != nil {
		return nil, err
	}
	if perr := reportedError(payload); perr != nil {
		return nil, perr
	}

	balance := extractDecimal(payload, balanceKeys)
	if balance == nil {
		return nil, &ProviderError{Message: "response is missing a balance"}
	}

	return &BalanceResult{
		Balance:  *balance,
		Currency: extractCurrency(payload),
	}, nil
}

// ParseServicesResponse extracts the provider catalog. Elements without a
// service id are dropped rather than returned with a blank id.
func ParseServicesResponse(body []byte) ([]ServiceItem, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, &ProviderError{Message: "empty response body"}
	}

	// Some dialects wrap the list in an object carrying an error field.
	if trimmed[0] == '{' {
		payload, err := decodeObject(trimmed)
		if err != nil {
			return nil, err
		}
		if perr := reportedError(payload); perr != nil {
			return nil, perr
		}
		return nil, &ProviderError{Message: "services response is not a list"}
	}

	var raw []map[string]any
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	if err := decoder.Decode(&raw); err != nil {
		return nil, &ProviderError{
			Message: "failed to decode services response",
			Cause:   err,
		}
	}

	items := make([]ServiceItem, 0, len(raw))
	for _, entry := range raw {
		serviceID := extractString(entry, serviceIDKeys)
		if serviceID == "" {
			continue
		}
		items = append(items, ServiceItem{
			ServiceID:   serviceID,
			Name:        extractString(entry, serviceNameKeys),
			Category:    extractString(entry, categoryKeys),
			Description: extractString(entry, descriptionKeys),
			Rate:        extractDecimal(entry, serviceRateKeys),
			MinOrder:    extractInt(entry, serviceMinKeys),
			MaxOrder:    extractInt(entry, serviceMaxKeys),
			DripFeed:    extractBool(entry, dripFeedKeys),
		})
	}
	return items, nil
}

func statusFromPayload(payload map[string]any) *StatusResult {
	return &StatusResult{
		Charge:     extractDecimal(payload, chargeKeys),
		StartCount: extractInt(payload, startCountKeys),
		Status:     MapStatus(extractString(payload, statusKeys)),
		Remains:    extractInt(payload, remainsKeys),
		Currency:   extractCurrency(payload),
	}
}

func decodeObject(body []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, &ProviderError{Message: "empty response body"}
	}

	var payload map[string]any
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	if err := decoder.Decode(&payload); err != nil {
		return nil, &ProviderError{
			Message: fmt.Sprintf("failed to decode response: %s", previewBody(trimmed)),
			Cause:   err,
		}
	}
	return payload, nil
}

// reportedError returns a ProviderError when the payload carries a non-empty
// error field. Falsy values (empty string, zero, false, null) do not count:
// some dialects echo error: 0 on success.
func reportedError(payload map[string]any) *ProviderError {
	raw, present := payload["error"]
	if !present || raw == nil {
		return nil
	}

	switch v := raw.(type) {
	case string:
		if msg := strings.TrimSpace(v); msg != "" {
			return &ProviderError{Message: msg}
		}
		return nil
	case bool:
		if v {
			return &ProviderError{Message: "provider reported an error"}
		}
		return nil
	case json.Number:
		if d, err := decimal.NewFromString(v.String()); err == nil && d.IsZero() {
			return nil
		}
		return &ProviderError{Message: fmt.Sprintf("provider reported error %s", v.String())}
	default:
		return &ProviderError{Message: fmt.Sprintf("provider reported error %v", v)}
	}
}

// extractString takes the first present, non-null candidate, rendering
// numeric values as their string form (order ids often arrive as numbers).
func extractString(payload map[string]any, keys []string) string {
	for _, key := range keys {
		raw, ok := payload[key]
		if !ok || raw == nil {
			continue
		}
		switch v := raw.(type) {
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

// extractDecimal parses the first candidate that is a valid number. A value
// that fails to parse is treated as absent, never as zero.
func extractDecimal(payload map[string]any, keys []string) *decimal.Decimal {
	for _, key := range keys {
		raw, ok := payload[key]
		if !ok || raw == nil {
			continue
		}

		var text string
		switch v := raw.(type) {
		case string:
			text = strings.TrimSpace(v)
		case json.Number:
			text = v.String()
		default:
			continue
		}
		if text == "" {
			continue
		}

		if d, err := decimal.NewFromString(text); err == nil {
			return &d
		}
	}
	return nil
}

func extractInt(payload map[string]any, keys []string) *int {
	d := extractDecimal(payload, keys)
	if d == nil {
		return nil
	}
	value := int(d.IntPart())
	return &value
}

func extractBool(payload map[string]any, keys []string) bool {
	for _, key := range keys {
		raw, ok := payload[key]
		if !ok || raw == nil {
			continue
		}
		switch v := raw.(type) {
		case bool:
			return v
		case string:
			parsed, err := strconv.ParseBool(strings.TrimSpace(v))
			return err == nil && parsed
		case json.Number:
			return v.String() != "0"
		}
	}
	return false
}

func extractCurrency(payload map[string]any) string {
	if currency := extractString(payload, currencyKeys); currency != "" {
		return strings.ToUpper(currency)
	}
	return DefaultCurrency
}

const maxBodyPreview = 200

func previewBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxBodyPreview {
		return text[:maxBodyPreview] + "..."
	}
	return text
}
