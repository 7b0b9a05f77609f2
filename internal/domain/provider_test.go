package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDialectCapabilities(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dialect  Dialect
		dripFeed bool
		edit     bool
	}{
		{dialect: DialectStandard, dripFeed: true, edit: true},
		{dialect: DialectLegacy, dripFeed: false, edit: false},
		{dialect: DialectNoEdit, dripFeed: true, edit: false},
	}

	for _, tt := range tests {
		if got := tt.dialect.SupportsDripFeed(); got != tt.dripFeed {
			t.Fatalf("%s drip-feed = %v, want %v", tt.dialect, got, tt.dripFeed)
		}
		if got := tt.dialect.SupportsEdit(); got != tt.edit {
			t.Fatalf("%s edit = %v, want %v", tt.dialect, got, tt.edit)
		}
	}
}

func TestDialectFromAPIType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		apiType int
		want    Dialect
	}{
		{apiType: 1, want: DialectStandard},
		{apiType: 2, want: DialectLegacy},
		{apiType: 3, want: DialectNoEdit},
		{apiType: 0, want: DialectStandard},
		{apiType: 99, want: DialectStandard},
		{apiType: -1, want: DialectStandard},
	}

	for _, tt := range tests {
		if got := DialectFromAPIType(tt.apiType); got != tt.want {
			t.Fatalf("DialectFromAPIType(%d) = %s, want %s", tt.apiType, got, tt.want)
		}
	}
}

func TestProviderDialectDefault(t *testing.T) {
	t.Parallel()

	p := Provider{}
	if got := p.Dialect(); got != DialectStandard {
		t.Fatalf("dialect = %s, want standard default", got)
	}

	apiType := 3
	p.APIType = &apiType
	if got := p.Dialect(); got != DialectNoEdit {
		t.Fatalf("dialect = %s, want no_edit", got)
	}
}

func TestValidateAPIURL(t *testing.T) {
	t.Parallel()

	valid := []string{
		"https://panel.example.net/api/v2",
		"http://panel.example.net/api",
		"  https://panel.example.net/api  ",
	}
	for _, raw := range valid {
		if err := ValidateAPIURL(raw); err != nil {
			t.Fatalf("ValidateAPIURL(%q) error = %v", raw, err)
		}
	}

	invalid := []string{
		"",
		"   ",
		"ftp://panel.example.net",
		"panel.example.net/api",
		"https://",
		"://bad",
	}
	for _, raw := range invalid {
		if err := ValidateAPIURL(raw); !errors.Is(err, ErrValidation) {
			t.Fatalf("ValidateAPIURL(%q) = %v, want ErrValidation", raw, err)
		}
	}
}

func TestProviderValidate(t *testing.T) {
	t.Parallel()

	base := func() Provider {
		return Provider{
			Name:   "PanelOne",
			APIURL: "https://panel.example.net/api/v2",
			APIKey: "secret",
			Status: ProviderStatusActive,
		}
	}

	valid := base()
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid provider rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Provider)
	}{
		{name: "missing name", mutate: func(p *Provider) { p.Name = " " }},
		{name: "missing key", mutate: func(p *Provider) { p.APIKey = "" }},
		{name: "bad url", mutate: func(p *Provider) { p.APIURL = "not a url" }},
		{name: "bad status", mutate: func(p *Provider) { p.Status = "paused" }},
		{name: "negative markup", mutate: func(p *Provider) { p.MarkupPercent = decimal.NewFromInt(-5) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := base()
			tt.mutate(&p)
			if err := p.Validate(); !errors.Is(err, ErrValidation) {
				t.Fatalf("error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestServiceAllowsQuantity(t *testing.T) {
	t.Parallel()

	svc := Service{MinOrder: 50, MaxOrder: 10000}

	tests := []struct {
		quantity int
		want     bool
	}{
		{quantity: 49, want: false},
		{quantity: 50, want: true},
		{quantity: 10000, want: true},
		{quantity: 10001, want: false},
	}
	for _, tt := range tests {
		if got := svc.AllowsQuantity(tt.quantity); got != tt.want {
			t.Fatalf("AllowsQuantity(%d) = %v, want %v", tt.quantity, got, tt.want)
		}
	}

	unbounded := Service{}
	if !unbounded.AllowsQuantity(1) || !unbounded.AllowsQuantity(1_000_000) {
		t.Fatal("zero bounds must not constrain quantity")
	}
}
