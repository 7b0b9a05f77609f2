package provider

import (
	"errors"
	"testing"
	"time"

	"github.com/panelkit/smm-engine/internal/domain"
)

func TestSpecFromProviderDefaults(t *testing.T) {
	t.Parallel()

	spec := SpecFromProvider(domain.Provider{
		Name:   "PanelOne",
		APIURL: " https://panel.example.net/api/v2 ",
		APIKey: " secret ",
	})

	if spec.APIURL != "https://panel.example.net/api/v2" {
		t.Fatalf("api url = %q, want trimmed", spec.APIURL)
	}
	if spec.APIKey != "secret" {
		t.Fatalf("api key = %q, want trimmed", spec.APIKey)
	}
	if spec.Method != domain.MethodPost {
		t.Fatalf("method = %s, want POST", spec.Method)
	}
	if spec.Format != domain.FormatForm {
		t.Fatalf("format = %s, want form", spec.Format)
	}
	if spec.Dialect != domain.DialectStandard {
		t.Fatalf("dialect = %s, want standard", spec.Dialect)
	}
	if spec.Timeout != 30*time.Second {
		t.Fatalf("timeout = %v, want 30s", spec.Timeout)
	}

	for _, param := range []Param{ParamKey, ParamAction, ParamOrder, ParamLink, ParamService, ParamQuantity, ParamRuns, ParamInterval} {
		name, err := spec.ParamName(param)
		if err != nil {
			t.Fatalf("ParamName(%s) error = %v", param, err)
		}
		if name == "" {
			t.Fatalf("ParamName(%s) is empty", param)
		}
	}
}

func TestSpecFromProviderOverrides(t *testing.T) {
	t.Parallel()

	method := domain.MethodGet
	format := domain.FormatJSON
	apiType := 2
	timeout := 5

	spec := SpecFromProvider(domain.Provider{
		Name:           "Legacy",
		APIURL:         "http://legacy.example.net/api",
		APIKey:         "k",
		HTTPMethod:     &method,
		RequestFormat:  &format,
		APIType:        &apiType,
		TimeoutSeconds: &timeout,
	})

	if spec.Method != domain.MethodGet {
		t.Fatalf("method = %s, want GET", spec.Method)
	}
	if spec.Format != domain.FormatJSON {
		t.Fatalf("format = %s, want json", spec.Format)
	}
	if spec.Dialect != domain.DialectLegacy {
		t.Fatalf("dialect = %s, want legacy", spec.Dialect)
	}
	if spec.Timeout != 5*time.Second {
		t.Fatalf("timeout = %v, want 5s", spec.Timeout)
	}
}

func TestSpecParamNameMissingMapping(t *testing.T) {
	t.Parallel()

	spec := Spec{
		Name:       "broken",
		ParamNames: map[Param]string{ParamKey: "key"},
	}

	if _, err := spec.ParamName(ParamOrder); err == nil {
		t.Fatal("ParamName() expected error for missing mapping")
	}

	spec.ParamNames[ParamOrder] = "  "
	if _, err := spec.ParamName(ParamOrder); err == nil {
		t.Fatal("ParamName() expected error for blank mapping")
	}
}

func TestSpecOrderEndpoint(t *testing.T) {
	t.Parallel()

	spec := Spec{APIURL: "https://panel.example.net/api/v2"}
	if got := spec.OrderEndpoint(); got != spec.APIURL {
		t.Fatalf("OrderEndpoint() = %q, want api url", got)
	}

	spec.AddOrderURL = "https://panel.example.net/api/v2/order"
	if got := spec.OrderEndpoint(); got != spec.AddOrderURL {
		t.Fatalf("OrderEndpoint() = %q, want add-order override", got)
	}
}

func TestBuilderBaseParamsRequiresKey(t *testing.T) {
	t.Parallel()

	spec := SpecFromProvider(domain.Provider{
		Name:   "NoKey",
		APIURL: "https://panel.example.net/api/v2",
	})

	_, err := NewBuilder(spec).Balance()
	if err == nil {
		t.Fatal("Balance() expected error for spec without api key")
	}
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		t.Fatalf("builder error should not already be a provider error: %v", err)
	}
}
