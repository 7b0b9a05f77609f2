package provider

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/panelkit/smm-engine/internal/domain"
)

// Action values of the common panel API vocabulary.
const (
	actionAdd      = "add"
	actionStatus   = "status"
	actionCancel   = "cancel"
	actionServices = "services"
	actionBalance  = "balance"
	actionEdit     = "edit"
)

const multiIDSeparator = ","

// Request is a fully assembled outbound HTTP request descriptor. The builder
// produces it; only the forwarder executes it.
type Request struct {
	URL    string
	Method string
	Header http.Header
	Body   []byte
}

// Builder translates logical operations into concrete requests for one spec.
type Builder struct {
	spec Spec
}

func NewBuilder(spec Spec) Builder {
	return Builder{spec: spec}
}

// DripFeed carries the optional spread-delivery parameters of an add-order.
type DripFeed struct {
	Runs     int
	Interval int
}

// AddOrder builds an order placement request. Drip-feed parameters are only
// included when the dialect supports them; otherwise they are silently
// omitted so legacy providers are not sent parameters they reject.
func (b Builder) AddOrder(serviceID string, link string, quantity int, drip *DripFeed) (*Request, error) {
	if strings.TrimSpace(serviceID) == "" {
		return nil, fmt.Errorf("service id is required")
	}
	if strings.TrimSpace(link) == "" {
		return nil, fmt.Errorf("link is required")
	}
	if quantity < 1 {
		return nil, fmt.Errorf("quantity must be >= 1")
	}

	params, err := b.baseParams(actionAdd)
	if err != nil {
		return nil, err
	}
	if err := b.setParam(params, ParamService, serviceID); err != nil {
		return nil, err
	}
	if err := b.setParam(params, ParamLink, link); err != nil {
		return nil, err
	}
	if err := b.setParam(params, ParamQuantity, strconv.Itoa(quantity)); err != nil {
		return nil, err
	}

	if drip != nil && b.spec.Dialect.SupportsDripFeed() {
		if err := b.setParam(params, ParamRuns, strconv.Itoa(drip.Runs)); err != nil {
			return nil, err
		}
		if err := b.setParam(params, ParamInterval, strconv.Itoa(drip.Interval)); err != nil {
			return nil, err
		}
	}

	return b.encode(b.spec.OrderEndpoint(), params)
}

// OrderStatus builds a single-order status query.
func (b Builder) OrderStatus(providerOrderID string) (*Request, error) {
	if strings.TrimSpace(providerOrderID) == "" {
		return nil, fmt.Errorf("provider order id is required")
	}

	params, err := b.baseParams(actionStatus)
	if err != nil {
		return nil, err
	}
	if err := b.setParam(params, ParamOrder, providerOrderID); err != nil {
		return nil, err
	}

	return b.encode(b.spec.APIURL, params)
}

// MultiStatus builds a batch status query with comma-joined order ids.
func (b Builder) MultiStatus(providerOrderIDs []string) (*Request, error) {
	joined, err := joinOrderIDs(providerOrderIDs)
	if err != nil {
		return nil, err
	}

	params, err := b.baseParams(actionStatus)
	if err != nil {
		return nil, err
	}
	if err := b.setParam(params, ParamOrder, joined); err != nil {
		return nil, err
	}

	return b.encode(b.spec.APIURL, params)
}

// Cancel builds a cancellation request for one or more orders.
func (b Builder) Cancel(providerOrderIDs []string) (*Request, error) {
	joined, err := joinOrderIDs(providerOrderIDs)
	if err != nil {
		return nil, err
	}

	params, err := b.baseParams(actionCancel)
	if err != nil {
		return nil, err
	}
	if err := b.setParam(params, ParamOrder, joined); err != nil {
		return nil, err
	}

	return b.encode(b.spec.APIURL, params)
}

// Services builds a catalog listing query.
func (b Builder) Services() (*Request, error) {
	params, err := b.baseParams(actionServices)
	if err != nil {
		return nil, err
	}
	return b.encode(b.spec.APIURL, params)
}

// Balance builds an account balance query.
func (b Builder) Balance() (*Request, error) {
	params, err := b.baseParams(actionBalance)
	if err != nil {
		return nil, err
	}
	return b.encode(b.spec.APIURL, params)
}

// EditLink builds a link modification request. Dialects without an edit
// operation get ErrEditUnsupported instead of a malformed request.
func (b Builder) EditLink(providerOrderID string, link string) (*Request, error) {
	if !b.spec.Dialect.SupportsEdit() {
		return nil, fmt.Errorf("%w (dialect %s)", ErrEditUnsupported, b.spec.Dialect)
	}
	if strings.TrimSpace(providerOrderID) == "" {
		return nil, fmt.Errorf("provider order id is required")
	}
	if strings.TrimSpace(link) == "" {
		return nil, fmt.Errorf("link is required")
	}

	params, err := b.baseParams(actionEdit)
	if err != nil {
		return nil, err
	}
	if err := b.setParam(params, ParamOrder, providerOrderID); err != nil {
		return nil, err
	}
	if err := b.setParam(params, ParamLink, link); err != nil {
		return nil, err
	}

	return b.encode(b.spec.APIURL, params)
}

// baseParams starts every operation with authentication and action entries.
func (b Builder) baseParams(action string) (url.Values, error) {
	if strings.TrimSpace(b.spec.APIKey) == "" {
		return nil, fmt.Errorf("spec for %q has no api key", b.spec.Name)
	}

	params := url.Values{}
	if err := b.setParam(params, ParamKey, b.spec.APIKey); err != nil {
		return nil, err
	}
	if err := b.setParam(params, ParamAction, action); err != nil {
		return nil, err
	}
	return params, nil
}

func (b Builder) setParam(params url.Values, p Param, value string) error {
	name, err := b.spec.ParamName(p)
	if err != nil {
		return err
	}
	params.Set(name, value)
	return nil
}

func (b Builder) encode(endpoint string, params url.Values) (*Request, error) {
	base, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return nil, fmt.Errorf("invalid provider endpoint %q: %w", endpoint, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("provider endpoint %q must be http or https", endpoint)
	}

	header := http.Header{}

	if b.spec.Method == domain.MethodGet {
		query := base.Query()
		for name, values := range params {
			for _, v := range values {
				query.Set(name, v)
			}
		}
		base.RawQuery = query.Encode()

		return &Request{
			URL:    base.String(),
			Method: http.MethodGet,
			Header: header,
		}, nil
	}

	if b.spec.Format == domain.FormatJSON {
		flat := make(map[string]string, len(params))
		for name := range params {
			flat[name] = params.Get(name)
		}
		body, err := json.Marshal(flat)
		if err != nil {
			return nil, fmt.Errorf("failed to encode json body: %w", err)
		}
		header.Set("Content-Type", "application/json")

		return &Request{
			URL:    base.String(),
			Method: http.MethodPost,
			Header: header,
			Body:   body,
		}, nil
	}

	header.Set("Content-Type", "application/x-www-form-urlencoded")

	return &Request{
		URL:    base.String(),
		Method: http.MethodPost,
		Header: header,
		Body:   []byte(params.Encode()),
	}, nil
}

func joinOrderIDs(ids []string) (string, error) {
	cleaned := make([]string, 0, len(ids))
	for _, id := range ids {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return "", fmt.Errorf("at least one provider order id is required")
	}
	return strings.Join(cleaned, multiIDSeparator), nil
}
