package provider

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/panelkit/smm-engine/internal/domain"
)

func standardSpec() Spec {
	return SpecFromProvider(domain.Provider{
		Name:   "PanelOne",
		APIURL: "https://panel.example.net/api/v2",
		APIKey: "secret",
	})
}

func TestBuilderAddOrderFormEncoding(t *testing.T) {
	t.Parallel()

	req, err := NewBuilder(standardSpec()).AddOrder("101", "https://target.example.com/p/1", 2500, nil)
	if err != nil {
		t.Fatalf("AddOrder() error = %v", err)
	}

	if req.Method != http.MethodPost {
		t.Fatalf("method = %s, want POST", req.Method)
	}
	if got := req.Header.Get("Content-Type"); got != "application/x-www-form-urlencoded" {
		t.Fatalf("content type = %q", got)
	}

	values, err := url.ParseQuery(string(req.Body))
	if err != nil {
		t.Fatalf("body is not form encoded: %v", err)
	}
	for key, want := range map[string]string{
		"key":      "secret",
		"action":   "add",
		"service":  "101",
		"link":     "https://target.example.com/p/1",
		"quantity": "2500",
	} {
		if got := values.Get(key); got != want {
			t.Fatalf("param %s = %q, want %q", key, got, want)
		}
	}
	if values.Has("runs") || values.Has("interval") {
		t.Fatal("drip-feed params present without drip request")
	}
}

func TestBuilderAddOrderGetEncoding(t *testing.T) {
	t.Parallel()

	method := domain.MethodGet
	spec := SpecFromProvider(domain.Provider{
		Name:       "GetPanel",
		APIURL:     "https://panel.example.net/api?v=2",
		APIKey:     "secret",
		HTTPMethod: &method,
	})

	req, err := NewBuilder(spec).OrderStatus("777")
	if err != nil {
		t.Fatalf("OrderStatus() error = %v", err)
	}

	if req.Method != http.MethodGet {
		t.Fatalf("method = %s, want GET", req.Method)
	}
	if len(req.Body) != 0 {
		t.Fatal("GET request should carry no body")
	}

	parsed, err := url.Parse(req.URL)
	if err != nil {
		t.Fatalf("invalid request url: %v", err)
	}
	query := parsed.Query()
	if query.Get("v") != "2" {
		t.Fatal("pre-existing query parameter was dropped")
	}
	if query.Get("action") != "status" || query.Get("order") != "777" || query.Get("key") != "secret" {
		t.Fatalf("unexpected query: %s", parsed.RawQuery)
	}
}

func TestBuilderAddOrderJSONEncoding(t *testing.T) {
	t.Parallel()

	format := domain.FormatJSON
	spec := SpecFromProvider(domain.Provider{
		Name:          "JSONPanel",
		APIURL:        "https://panel.example.net/api/v2",
		APIKey:        "secret",
		RequestFormat: &format,
	})

	req, err := NewBuilder(spec).AddOrder("55", "https://target.example.com", 100, nil)
	if err != nil {
		t.Fatalf("AddOrder() error = %v", err)
	}

	if got := req.Header.Get("Content-Type"); got != "application/json" {
		t.Fatalf("content type = %q, want application/json", got)
	}

	var body map[string]string
	if err := json.Unmarshal(req.Body, &body); err != nil {
		t.Fatalf("body is not json: %v", err)
	}
	if body["action"] != "add" || body["service"] != "55" || body["quantity"] != "100" {
		t.Fatalf("unexpected json body: %v", body)
	}
}

func TestBuilderAddOrderDripFeedByDialect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		apiType  int
		wantDrip bool
	}{
		{name: "standard includes drip", apiType: 1, wantDrip: true},
		{name: "legacy omits drip", apiType: 2, wantDrip: false},
		{name: "no-edit includes drip", apiType: 3, wantDrip: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			apiType := tt.apiType
			spec := SpecFromProvider(domain.Provider{
				Name:    "Panel",
				APIURL:  "https://panel.example.net/api/v2",
				APIKey:  "secret",
				APIType: &apiType,
			})

			req, err := NewBuilder(spec).AddOrder("1", "https://t.example.com", 10, &DripFeed{Runs: 5, Interval: 30})
			if err != nil {
				t.Fatalf("AddOrder() error = %v", err)
			}

			values, err := url.ParseQuery(string(req.Body))
			if err != nil {
				t.Fatalf("body is not form encoded: %v", err)
			}
			if values.Has("runs") != tt.wantDrip {
				t.Fatalf("runs present = %v, want %v", values.Has("runs"), tt.wantDrip)
			}
			if tt.wantDrip && (values.Get("runs") != "5" || values.Get("interval") != "30") {
				t.Fatalf("drip params = runs %q interval %q", values.Get("runs"), values.Get("interval"))
			}
		})
	}
}

func TestBuilderAddOrderUsesOrderEndpointOverride(t *testing.T) {
	t.Parallel()

	spec := standardSpec()
	spec.AddOrderURL = "https://panel.example.net/api/v2/order"

	req, err := NewBuilder(spec).AddOrder("1", "https://t.example.com", 10, nil)
	if err != nil {
		t.Fatalf("AddOrder() error = %v", err)
	}
	if req.URL != spec.AddOrderURL {
		t.Fatalf("url = %q, want add-order override", req.URL)
	}

	status, err := NewBuilder(spec).OrderStatus("9")
	if err != nil {
		t.Fatalf("OrderStatus() error = %v", err)
	}
	if status.URL != spec.APIURL {
		t.Fatalf("status url = %q, want base api url", status.URL)
	}
}

func TestBuilderAddOrderValidation(t *testing.T) {
	t.Parallel()

	b := NewBuilder(standardSpec())

	if _, err := b.AddOrder("", "https://t.example.com", 10, nil); err == nil {
		t.Fatal("expected error for missing service id")
	}
	if _, err := b.AddOrder("1", " ", 10, nil); err == nil {
		t.Fatal("expected error for missing link")
	}
	if _, err := b.AddOrder("1", "https://t.example.com", 0, nil); err == nil {
		t.Fatal("expected error for zero quantity")
	}
}

func TestBuilderMultiStatusJoinsIDs(t *testing.T) {
	t.Parallel()

	req, err := NewBuilder(standardSpec()).MultiStatus([]string{" 1 ", "2", "", "3"})
	if err != nil {
		t.Fatalf("MultiStatus() error = %v", err)
	}

	values, err := url.ParseQuery(string(req.Body))
	if err != nil {
		t.Fatalf("body is not form encoded: %v", err)
	}
	if got := values.Get("order"); got != "1,2,3" {
		t.Fatalf("order param = %q, want 1,2,3", got)
	}

	if _, err := NewBuilder(standardSpec()).MultiStatus([]string{" ", ""}); err == nil {
		t.Fatal("expected error for all-blank ids")
	}
}

func TestBuilderEditLinkUnsupportedDialect(t *testing.T) {
	t.Parallel()

	for _, apiType := range []int{2, 3} {
		at := apiType
		spec := SpecFromProvider(domain.Provider{
			Name:    "Panel",
			APIURL:  "https://panel.example.net/api/v2",
			APIKey:  "secret",
			APIType: &at,
		})

		_, err := NewBuilder(spec).EditLink("9", "https://t.example.com/new")
		if !errors.Is(err, ErrEditUnsupported) {
			t.Fatalf("apiType %d: error = %v, want ErrEditUnsupported", apiType, err)
		}
	}

	req, err := NewBuilder(standardSpec()).EditLink("9", "https://t.example.com/new")
	if err != nil {
		t.Fatalf("EditLink() error = %v", err)
	}
	if !strings.Contains(string(req.Body), "action=edit") {
		t.Fatalf("body = %q, want edit action", req.Body)
	}
}

func TestBuilderRejectsNonHTTPEndpoint(t *testing.T) {
	t.Parallel()

	spec := standardSpec()
	spec.APIURL = "ftp://panel.example.net/api"

	if _, err := NewBuilder(spec).Balance(); err == nil {
		t.Fatal("expected error for non-http endpoint")
	}
}
