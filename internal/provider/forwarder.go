package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/panelkit/smm-engine/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const testConnectionTimeout = 10 * time.Second

// Operation names carried in error context.
const (
	OpAddOrder    = "add_order"
	OpOrderStatus = "order_status"
	OpMultiStatus = "multi_status"
	OpCancel      = "cancel"
	OpEditLink    = "edit_link"
	OpServices    = "services"
	OpBalance     = "balance"
)

// OrderRequest carries the logical arguments of an order placement.
type OrderRequest struct {
	Service  string
	Link     string
	Quantity int
	Runs     *int
	Interval *int
}

// Gateway is the outbound provider integration port.
type Gateway interface {
	ForwardOrder(ctx context.Context, p domain.Provider, req OrderRequest) (*OrderResult, error)
	CheckOrderStatus(ctx context.Context, p domain.Provider, providerOrderID string) (*StatusResult, error)
	CheckOrdersStatus(ctx context.Context, p domain.Provider, providerOrderIDs []string) (map[string]StatusResult, error)
	SyncOrdersStatus(ctx context.Context, p domain.Provider, providerOrderIDs []string) (map[string]StatusResult, error)
	CancelOrders(ctx context.Context, p domain.Provider, providerOrderIDs []string) error
	EditOrderLink(ctx context.Context, p domain.Provider, providerOrderID string, link string) error
	GetServices(ctx context.Context, p domain.Provider) ([]ServiceItem, error)
	GetBalance(ctx context.Context, p domain.Provider) (*BalanceResult, error)
	TestConnection(ctx context.Context, p domain.Provider) bool
}

// Forwarder composes the request builder and response parser around a single
// HTTP call. It holds no per-provider state and never retries; retry policy
// belongs to the caller because retry safety differs per operation.
type Forwarder struct {
	client *resty.Client
	logger *zap.Logger
}

var _ Gateway = (*Forwarder)(nil)

func NewForwarder(logger *zap.Logger) *Forwarder {
	client := resty.New()
	client.SetRetryCount(0)
	return NewForwarderWithClient(client, logger)
}

func NewForwarderWithClient(client *resty.Client, logger *zap.Logger) *Forwarder {
	if client == nil {
		client = resty.New()
	}
	client.SetRetryCount(0)
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Forwarder{
		client: client,
		logger: logger,
	}
}

// ForwardOrder places an order upstream and returns the normalized result.
// A body-level error outranks HTTP success; a missing order id is a hard
// failure.
func (f *Forwarder) ForwardOrder(ctx context.Context, p domain.Provider, req OrderRequest) (*OrderResult, error) {
	spec := SpecFromProvider(p)

	var drip *DripFeed
	if req.Runs != nil && req.Interval != nil {
		drip = &DripFeed{Runs: *req.Runs, Interval: *req.Interval}
	}

	httpReq, err := NewBuilder(spec).AddOrder(req.Service, req.Link, req.Quantity, drip)
	if err != nil {
		return nil, f.buildError(spec, OpAddOrder, err)
	}

	body, err := f.execute(ctx, spec, OpAddOrder, httpReq, spec.Timeout)
	if err != nil {
		return nil, err
	}

	result, err := ParseOrderResponse(body)
	if err != nil {
		return nil, f.parseError(spec, OpAddOrder, err)
	}
	return result, nil
}

// CheckOrderStatus fetches the current state of a single placed order.
func (f *Forwarder) CheckOrderStatus(ctx context.Context, p domain.Provider, providerOrderID string) (*StatusResult, error) {
	spec := SpecFromProvider(p)

	httpReq, err := NewBuilder(spec).OrderStatus(providerOrderID)
	if err != nil {
		return nil, f.buildError(spec, OpOrderStatus, err)
	}

	body, err := f.execute(ctx, spec, OpOrderStatus, httpReq, spec.Timeout)
	if err != nil {
		return nil, err
	}

	result, err := ParseStatusResponse(body)
	if err != nil {
		return nil, f.parseError(spec, OpOrderStatus, err)
	}
	return result, nil
}

// CheckOrdersStatus fetches several orders in one batch request for dialects
// that accept comma-joined ids.
func (f *Forwarder) CheckOrdersStatus(ctx context.Context, p domain.Provider, providerOrderIDs []string) (map[string]StatusResult, error) {
	spec := SpecFromProvider(p)

	httpReq, err := NewBuilder(spec).MultiStatus(providerOrderIDs)
	if err != nil {
		return nil, f.buildError(spec, OpMultiStatus, err)
	}

	body, err := f.execute(ctx, spec, OpMultiStatus, httpReq, spec.Timeout)
	if err != nil {
		return nil, err
	}

	results, err := ParseMultiStatusResponse(body)
	if err != nil {
		return nil, f.parseError(spec, OpMultiStatus, err)
	}
	return results, nil
}

// SyncOrdersStatus checks each id sequentially, one request at a time, as a
// deliberate throttle against upstream rate limits. Per-id failures are
// logged and excluded; partial results are the expected steady state.
func (f *Forwarder) SyncOrdersStatus(ctx context.Context, p domain.Provider, providerOrderIDs []string) (map[string]StatusResult, error) {
	results := make(map[string]StatusResult, len(providerOrderIDs))

	for _, providerOrderID := range providerOrderIDs {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		result, err := f.CheckOrderStatus(ctx, p, providerOrderID)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return results, err
			}
			f.logger.Warn("status sync skipped order",
				zap.String("provider", p.Name),
				zap.String("providerOrderId", providerOrderID),
				zap.Error(err),
			)
			continue
		}
		results[providerOrderID] = *result
	}

	return results, nil
}

// CancelOrders requests cancellation of one or more placed orders.
func (f *Forwarder) CancelOrders(ctx context.Context, p domain.Provider, providerOrderIDs []string) error {
	spec := SpecFromProvider(p)

	httpReq, err := NewBuilder(spec).Cancel(providerOrderIDs)
	if err != nil {
		return f.buildError(spec, OpCancel, err)
	}

	body, err := f.execute(ctx, spec, OpCancel, httpReq, spec.Timeout)
	if err != nil {
		return err
	}

	// Cancel bodies vary wildly across dialects; only a reported error
	// matters, anything else on a 2xx counts as accepted.
	if payload, decodeErr := decodeObject(body); decodeErr == nil {
		if perr := reportedError(payload); perr != nil {
			return f.parseError(spec, OpCancel, perr)
		}
	}
	return nil
}

// EditOrderLink modifies the destination link of a placed order on dialects
// that support the edit operation.
func (f *Forwarder) EditOrderLink(ctx context.Context, p domain.Provider, providerOrderID string, link string) error {
	spec := SpecFromProvider(p)

	httpReq, err := NewBuilder(spec).EditLink(providerOrderID, link)
	if err != nil {
		if errors.Is(err, ErrEditUnsupported) {
			return err
		}
		return f.buildError(spec, OpEditLink, err)
	}

	body, err := f.execute(ctx, spec, OpEditLink, httpReq, spec.Timeout)
	if err != nil {
		return err
	}

	if payload, decodeErr := decodeObject(body); decodeErr == nil {
		if perr := reportedError(payload); perr != nil {
			return f.parseError(spec, OpEditLink, perr)
		}
	}
	return nil
}

// GetServices fetches the provider catalog.
func (f *Forwarder) GetServices(ctx context.Context, p domain.Provider) ([]ServiceItem, error) {
	spec := SpecFromProvider(p)

	httpReq, err := NewBuilder(spec).Services()
	if err != nil {
		return nil, f.buildError(spec, OpServices, err)
	}

	body, err := f.execute(ctx, spec, OpServices, httpReq, spec.Timeout)
	if err != nil {
		return nil, err
	}

	items, err := ParseServicesResponse(body)
	if err != nil {
		return nil, f.parseError(spec, OpServices, err)
	}
	return items, nil
}

// GetBalance fetches the account balance held with the provider.
func (f *Forwarder) GetBalance(ctx context.Context, p domain.Provider) (*BalanceResult, error) {
	spec := SpecFromProvider(p)

	httpReq, err := NewBuilder(spec).Balance()
	if err != nil {
		return nil, f.buildError(spec, OpBalance, err)
	}

	body, err := f.execute(ctx, spec, OpBalance, httpReq, spec.Timeout)
	if err != nil {
		return nil, err
	}

	result, err := ParseBalanceResponse(body)
	if err != nil {
		return nil, f.parseError(spec, OpBalance, err)
	}
	return result, nil
}

// TestConnection is a boolean liveness probe: does a balance fetch succeed
// within the short connection-test bound. All errors are swallowed.
func (f *Forwarder) TestConnection(ctx context.Context, p domain.Provider) bool {
	_, err := f.getBalanceWithTimeout(ctx, p, testConnectionTimeout)
	return err == nil
}

func (f *Forwarder) getBalanceWithTimeout(ctx context.Context, p domain.Provider, timeout time.Duration) (*BalanceResult, error) {
	spec := SpecFromProvider(p)

	httpReq, err := NewBuilder(spec).Balance()
	if err != nil {
		return nil, f.buildError(spec, OpBalance, err)
	}

	body, err := f.execute(ctx, spec, OpBalance, httpReq, timeout)
	if err != nil {
		return nil, err
	}

	result, err := ParseBalanceResponse(body)
	if err != nil {
		return nil, f.parseError(spec, OpBalance, err)
	}
	return result, nil
}

// CalculateCost prices an order: rate is cost per 1000 units, markup is a
// resale percentage on top.
func CalculateCost(rate decimal.Decimal, quantity int, markupPercent decimal.Decimal) decimal.Decimal {
	thousand := decimal.NewFromInt(1000)
	hundred := decimal.NewFromInt(100)

	base := rate.Div(thousand).Mul(decimal.NewFromInt(int64(quantity)))
	multiplier := decimal.NewFromInt(1).Add(markupPercent.Div(hundred))
	return base.Mul(multiplier)
}

// execute performs one bounded HTTP call and enforces transport and protocol
// failure semantics. Timeouts behave exactly like network errors.
func (f *Forwarder) execute(ctx context.Context, spec Spec, op string, req *Request, timeout time.Duration) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r := f.client.R().SetContext(callCtx)
	for name, values := range req.Header {
		for _, v := range values {
			r.SetHeader(name, v)
		}
	}
	if len(req.Body) > 0 {
		r.SetBody(req.Body)
	}

	response, err := r.Execute(req.Method, req.URL)
	if err != nil {
		return nil, &ProviderError{
			Provider:  spec.Name,
			Op:        op,
			Message:   "provider request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}

	statusCode := response.StatusCode()
	body := response.Body()

	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return nil, &ProviderError{
			Provider:   spec.Name,
			Op:         op,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("provider returned status %d: %s", statusCode, previewBody(body)),
			Transient:  isTransientHTTPStatus(statusCode),
		}
	}

	return body, nil
}

func (f *Forwarder) buildError(spec Spec, op string, err error) error {
	return &ProviderError{
		Provider: spec.Name,
		Op:       op,
		Message:  "failed to build request",
		Cause:    err,
	}
}

// parseError stamps provider and operation context onto parser failures.
func (f *Forwarder) parseError(spec Spec, op string, err error) error {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		providerErr.Provider = spec.Name
		if strings.TrimSpace(providerErr.Op) == "" {
			providerErr.Op = op
		}
		return providerErr
	}

	return &ProviderError{
		Provider: spec.Name,
		Op:       op,
		Message:  "failed to parse response",
		Cause:    err,
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		(statusCode >= http.StatusInternalServerError && statusCode <= 599)
}
