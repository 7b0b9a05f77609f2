package provider

import (
	"fmt"
	"strings"
	"time"

	"github.com/panelkit/smm-engine/internal/domain"
)

// Param is a logical request parameter, resolved to a provider-specific name
// through the spec's parameter map.
type Param string

const (
	ParamKey      Param = "key"
	ParamAction   Param = "action"
	ParamOrder    Param = "order"
	ParamLink     Param = "link"
	ParamService  Param = "service"
	ParamQuantity Param = "quantity"
	ParamRuns     Param = "runs"
	ParamInterval Param = "interval"
)

const defaultTimeout = 30 * time.Second

// defaultParamNames is the parameter vocabulary of the most common panel API
// family; providers only override the entries that differ.
var defaultParamNames = map[Param]string{
	ParamKey:      "key",
	ParamAction:   "action",
	ParamOrder:    "order",
	ParamLink:     "link",
	ParamService:  "service",
	ParamQuantity: "quantity",
	ParamRuns:     "runs",
	ParamInterval: "interval",
}

// Spec is an immutable description of one upstream provider dialect: where
// requests go, how they are encoded, and what each logical parameter is
// called on the wire. Built once per forwarding call and never mutated.
type Spec struct {
	Name        string
	APIURL      string
	APIKey      string
	AddOrderURL string
	Method      domain.HTTPMethod
	Format      domain.RequestFormat
	Dialect     domain.Dialect
	Timeout     time.Duration
	ParamNames  map[Param]string
}

// SpecFromProvider derives a spec from a persisted provider record, applying
// the dialect-family defaults for anything the configuration leaves unset.
func SpecFromProvider(p domain.Provider) Spec {
	spec := Spec{
		Name:    p.Name,
		APIURL:  strings.TrimSpace(p.APIURL),
		APIKey:  strings.TrimSpace(p.APIKey),
		Method:  domain.MethodPost,
		Format:  domain.FormatForm,
		Dialect: p.Dialect(),
		Timeout: defaultTimeout,
	}

	if p.HTTPMethod != nil && p.HTTPMethod.IsValid() {
		spec.Method = *p.HTTPMethod
	}
	if p.RequestFormat != nil && p.RequestFormat.IsValid() {
		spec.Format = *p.RequestFormat
	}
	if p.TimeoutSeconds != nil && *p.TimeoutSeconds > 0 {
		spec.Timeout = time.Duration(*p.TimeoutSeconds) * time.Second
	}

	names := make(map[Param]string, len(defaultParamNames))
	for param, name := range defaultParamNames {
		names[param] = name
	}
	spec.ParamNames = names

	return spec
}

// ParamName resolves a logical parameter to its wire name. A spec with no
// mapping for a parameter is invalid for any operation that needs it.
func (s Spec) ParamName(p Param) (string, error) {
	name, ok := s.ParamNames[p]
	if !ok || strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("spec for %q has no mapping for parameter %q", s.Name, p)
	}
	return name, nil
}

// OrderEndpoint returns the endpoint for add-order calls, honoring the
// per-provider override when configured.
func (s Spec) OrderEndpoint() string {
	if strings.TrimSpace(s.AddOrderURL) != "" {
		return s.AddOrderURL
	}
	return s.APIURL
}
