package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProviderStatus represents whether an upstream provider may receive traffic.
type ProviderStatus string

const (
	ProviderStatusActive   ProviderStatus = "active"
	ProviderStatusInactive ProviderStatus = "inactive"
)

func (s ProviderStatus) String() string { return string(s) }

func (s ProviderStatus) IsValid() bool {
	switch s {
	case ProviderStatusActive, ProviderStatusInactive:
		return true
	}
	return false
}

func ParseProviderStatusFromString(s string) (ProviderStatus, error) {
	st := ProviderStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid provider status %q", ErrValidation, s)
	}
	return st, nil
}

// Dialect identifies a family of upstream API conventions. The set is closed;
// adding a dialect means adding a constant and updating every switch below.
type Dialect string

const (
	// DialectStandard is the common panel API: key/action parameters,
	// drip-feed and order edit both supported.
	DialectStandard Dialect = "standard"
	// DialectLegacy predates drip-feed; runs/interval must be omitted.
	DialectLegacy Dialect = "legacy"
	// DialectNoEdit accepts drip-feed but has no order edit endpoint.
	DialectNoEdit Dialect = "no_edit"
)

func (d Dialect) String() string { return string(d) }

func (d Dialect) IsValid() bool {
	switch d {
	case DialectStandard, DialectLegacy, DialectNoEdit:
		return true
	}
	return false
}

// SupportsDripFeed reports whether runs/interval parameters may be sent.
func (d Dialect) SupportsDripFeed() bool {
	switch d {
	case DialectStandard, DialectNoEdit:
		return true
	case DialectLegacy:
		return false
	}
	return false
}

// SupportsEdit reports whether the dialect has a link-edit operation.
func (d Dialect) SupportsEdit() bool {
	switch d {
	case DialectStandard:
		return true
	case DialectLegacy, DialectNoEdit:
		return false
	}
	return false
}

// DialectFromAPIType maps the persisted numeric api_type to a dialect.
// Unknown values fall back to the standard family so that a misconfigured
// provider still speaks the most common convention.
func DialectFromAPIType(apiType int) Dialect {
	switch apiType {
	case 1:
		return DialectStandard
	case 2:
		return DialectLegacy
	case 3:
		return DialectNoEdit
	default:
		return DialectStandard
	}
}

// HTTPMethod is the outbound request method a provider expects.
type HTTPMethod string

const (
	MethodGet  HTTPMethod = "GET"
	MethodPost HTTPMethod = "POST"
)

func (m HTTPMethod) String() string { return string(m) }

func (m HTTPMethod) IsValid() bool {
	switch m {
	case MethodGet, MethodPost:
		return true
	}
	return false
}

func ParseHTTPMethodFromString(s string) (HTTPMethod, error) {
	m := HTTPMethod(strings.ToUpper(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", fmt.Errorf("%w: invalid http method %q", ErrValidation, s)
	}
	return m, nil
}

// RequestFormat is the outbound body encoding a provider expects.
type RequestFormat string

const (
	FormatForm RequestFormat = "form"
	FormatJSON RequestFormat = "json"
)

func (f RequestFormat) String() string { return string(f) }

func (f RequestFormat) IsValid() bool {
	switch f {
	case FormatForm, FormatJSON:
		return true
	}
	return false
}

func ParseRequestFormatFromString(s string) (RequestFormat, error) {
	f := RequestFormat(strings.ToLower(strings.TrimSpace(s)))
	if !f.IsValid() {
		return "", fmt.Errorf("%w: invalid request format %q", ErrValidation, s)
	}
	return f, nil
}

// Provider is an administrator-configured upstream vendor.
type Provider struct {
	ID              string
	Name            string
	APIURL          string
	APIKey          string
	Status          ProviderStatus
	HTTPMethod      *HTTPMethod
	RequestFormat   *RequestFormat
	APIType         *int
	TimeoutSeconds  *int
	MarkupPercent   decimal.Decimal
	Balance         *decimal.Decimal
	BalanceCurrency string
	BalanceSyncedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Validate performs the structural pre-flight checks that must pass before
// any network call is attempted against the provider.
func (p *Provider) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: provider name is required", ErrValidation)
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return fmt.Errorf("%w: provider api key is required", ErrValidation)
	}
	if err := ValidateAPIURL(p.APIURL); err != nil {
		return err
	}
	if !p.Status.IsValid() {
		return fmt.Errorf("%w: invalid provider status %q", ErrValidation, p.Status)
	}
	if p.MarkupPercent.IsNegative() {
		return fmt.Errorf("%w: markup percent must not be negative", ErrValidation)
	}
	return nil
}

// ValidateAPIURL checks that a provider endpoint is an absolute http(s) URL.
func ValidateAPIURL(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fmt.Errorf("%w: provider api url is required", ErrValidation)
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("%w: invalid provider api url: %v", ErrValidation, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: provider api url must be http or https", ErrValidation)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: provider api url is missing a host", ErrValidation)
	}
	return nil
}

// Dialect resolves the provider's dialect family, defaulting to standard.
func (p *Provider) Dialect() Dialect {
	if p.APIType == nil {
		return DialectStandard
	}
	return DialectFromAPIType(*p.APIType)
}
