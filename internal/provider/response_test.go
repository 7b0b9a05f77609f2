package provider

import (
	"testing"

	"github.com/panelkit/smm-engine/internal/domain"
	"github.com/shopspring/decimal"
)

func TestMapStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want domain.OrderStatus
	}{
		{raw: "Pending", want: domain.OrderStatusPending},
		{raw: "In progress", want: domain.OrderStatusProcessing},
		{raw: "Processing", want: domain.OrderStatusProcessing},
		{raw: "Completed", want: domain.OrderStatusCompleted},
		{raw: "complete", want: domain.OrderStatusCompleted},
		{raw: "Partial", want: domain.OrderStatusPartial},
		{raw: "Canceled", want: domain.OrderStatusCancelled},
		{raw: "cancelled", want: domain.OrderStatusCancelled},
		{raw: "FAILED", want: domain.OrderStatusFailed},
		{raw: "error", want: domain.OrderStatusFailed},
		{raw: "Awaiting", want: domain.OrderStatusPending},
		{raw: "", want: domain.OrderStatusPending},
		{raw: "  weird status  ", want: domain.OrderStatusPending},
	}

	for _, tt := range tests {
		if got := MapStatus(tt.raw); got != tt.want {
			t.Fatalf("MapStatus(%q) = %s, want %s", tt.raw, got, tt.want)
		}
		if !MapStatus(tt.raw).IsValid() {
			t.Fatalf("MapStatus(%q) produced invalid status", tt.raw)
		}
	}
}

func TestParseOrderResponse(t *testing.T) {
	t.Parallel()

	result, err := ParseOrderResponse([]byte(`{"order": 123456, "charge": "2.5", "start_count": "100", "status": "In progress"}`))
	if err != nil {
		t.Fatalf("ParseOrderResponse() error = %v", err)
	}

	if result.OrderID != "123456" {
		t.Fatalf("order id = %q, want 123456", result.OrderID)
	}
	if result.Charge == nil || !result.Charge.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("charge = %v, want 2.5", result.Charge)
	}
	if result.StartCount == nil || *result.StartCount != 100 {
		t.Fatalf("start count = %v, want 100", result.StartCount)
	}
	if result.Status != domain.OrderStatusProcessing {
		t.Fatalf("status = %s, want processing", result.Status)
	}
	if result.Currency != "USD" {
		t.Fatalf("currency = %q, want USD default", result.Currency)
	}
}

func TestParseOrderResponseCandidateKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "order first", body: `{"order": "1", "id": "9"}`, want: "1"},
		{name: "order_id fallback", body: `{"order_id": "2"}`, want: "2"},
		{name: "id last", body: `{"id": "3"}`, want: "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := ParseOrderResponse([]byte(tt.body))
			if err != nil {
				t.Fatalf("ParseOrderResponse() error = %v", err)
			}
			if result.OrderID != tt.want {
				t.Fatalf("order id = %q, want %q", result.OrderID, tt.want)
			}
		})
	}
}

func TestParseOrderResponseMissingOrderID(t *testing.T) {
	t.Parallel()

	_, err := ParseOrderResponse([]byte(`{"charge": "2.5", "status": "Pending"}`))
	if err == nil {
		t.Fatal("expected hard failure for missing order id")
	}
}

func TestParseOrderResponseErrorOutranksData(t *testing.T) {
	t.Parallel()

	_, err := ParseOrderResponse([]byte(`{"order": 1, "error": "not enough funds"}`))
	if err == nil {
		t.Fatal("expected error when body reports one")
	}
	providerErr, ok := err.(*ProviderError)
	if !ok {
		t.Fatalf("error type = %T, want *ProviderError", err)
	}
	if providerErr.Message != "not enough funds" {
		t.Fatalf("message = %q, want provider message preserved", providerErr.Message)
	}
}

func TestReportedErrorTruthiness(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "absent", body: `{"order": 1}`, wantErr: false},
		{name: "null", body: `{"order": 1, "error": null}`, wantErr: false},
		{name: "empty string", body: `{"order": 1, "error": ""}`, wantErr: false},
		{name: "blank string", body: `{"order": 1, "error": "  "}`, wantErr: false},
		{name: "zero number", body: `{"order": 1, "error": 0}`, wantErr: false},
		{name: "false", body: `{"order": 1, "error": false}`, wantErr: false},
		{name: "message", body: `{"order": 1, "error": "bad key"}`, wantErr: true},
		{name: "true", body: `{"order": 1, "error": true}`, wantErr: true},
		{name: "nonzero number", body: `{"order": 1, "error": 17}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseOrderResponse([]byte(tt.body))
			if tt.wantErr && err == nil {
				t.Fatal("expected reported error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestParseStatusResponsePartialFields(t *testing.T) {
	t.Parallel()

	result, err := ParseStatusResponse([]byte(`{"status": "Partial", "remains": "40"}`))
	if err != nil {
		t.Fatalf("ParseStatusResponse() error = %v", err)
	}

	if result.Status != domain.OrderStatusPartial {
		t.Fatalf("status = %s, want partial", result.Status)
	}
	if result.Remains == nil || *result.Remains != 40 {
		t.Fatalf("remains = %v, want 40", result.Remains)
	}
	if result.Charge != nil {
		t.Fatal("absent charge must stay nil, not zero")
	}
	if result.StartCount != nil {
		t.Fatal("absent start count must stay nil, not zero")
	}
}

func TestParseStatusResponseUnparseableNumberIsAbsent(t *testing.T) {
	t.Parallel()

	result, err := ParseStatusResponse([]byte(`{"status": "Completed", "charge": "N/A", "start_count": "unknown"}`))
	if err != nil {
		t.Fatalf("ParseStatusResponse() error = %v", err)
	}
	if result.Charge != nil {
		t.Fatalf("charge = %v, want nil for unparseable value", result.Charge)
	}
	if result.StartCount != nil {
		t.Fatalf("start count = %v, want nil for unparseable value", result.StartCount)
	}
}

func TestParseMultiStatusResponse(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"100": {"status": "Completed", "charge": "1.2"},
		"200": {"error": "Incorrect order ID"},
		"300": {"status": "In progress", "remains": 55}
	}`)

	results, err := ParseMultiStatusResponse(body)
	if err != nil {
		t.Fatalf("ParseMultiStatusResponse() error = %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("results = %d entries, want 2 (error entry excluded)", len(results))
	}
	if _, ok := results["200"]; ok {
		t.Fatal("error entry must be excluded")
	}
	if results["100"].Status != domain.OrderStatusCompleted {
		t.Fatalf("status[100] = %s, want completed", results["100"].Status)
	}
	if r := results["300"]; r.Remains == nil || *r.Remains != 55 {
		t.Fatalf("remains[300] = %v, want 55", r.Remains)
	}
}

func TestParseMultiStatusResponseTopLevelError(t *testing.T) {
	t.Parallel()

	if _, err := ParseMultiStatusResponse([]byte(`{"error": "Invalid API key"}`)); err == nil {
		t.Fatal("expected error for top-level error field")
	}
}

func TestParseBalanceResponse(t *testing.T) {
	t.Parallel()

	result, err := ParseBalanceResponse([]byte(`{"balance": "100.84292", "currency": "usd"}`))
	if err != nil {
		t.Fatalf("ParseBalanceResponse() error = %v", err)
	}
	if !result.Balance.Equal(decimal.RequireFromString("100.84292")) {
		t.Fatalf("balance = %s", result.Balance)
	}
	if result.Currency != "USD" {
		t.Fatalf("currency = %q, want upper-cased USD", result.Currency)
	}

	if _, err := ParseBalanceResponse([]byte(`{"currency": "USD"}`)); err == nil {
		t.Fatal("expected error for missing balance")
	}

	funds, err := ParseBalanceResponse([]byte(`{"funds": 12.5}`))
	if err != nil {
		t.Fatalf("ParseBalanceResponse() funds error = %v", err)
	}
	if !funds.Balance.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("funds balance = %s, want 12.5", funds.Balance)
	}
}

func TestParseServicesResponse(t *testing.T) {
	t.Parallel()

	body := []byte(`[
		{"service": 1, "name": "Followers", "rate": "0.90", "min": "50", "max": "10000", "category": "Social", "dripfeed": true},
		{"name": "no id, dropped", "rate": "1.0"},
		{"service": "2", "name": "Likes", "rate": "bogus", "min": 10, "max": 1500}
	]`)

	items, err := ParseServicesResponse(body)
	if err != nil {
		t.Fatalf("ParseServicesResponse() error = %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("items = %d, want 2 (id-less entry dropped)", len(items))
	}

	first := items[0]
	if first.ServiceID != "1" || first.Name != "Followers" || !first.DripFeed {
		t.Fatalf("unexpected first item: %+v", first)
	}
	if first.Rate == nil || !first.Rate.Equal(decimal.RequireFromString("0.90")) {
		t.Fatalf("rate = %v, want 0.90", first.Rate)
	}
	if first.MinOrder == nil || *first.MinOrder != 50 {
		t.Fatalf("min = %v, want 50", first.MinOrder)
	}

	second := items[1]
	if second.Rate != nil {
		t.Fatal("unparseable rate must stay nil")
	}
	if second.MaxOrder == nil || *second.MaxOrder != 1500 {
		t.Fatalf("max = %v, want 1500", second.MaxOrder)
	}
}

func TestParseServicesResponseObjectWrappedError(t *testing.T) {
	t.Parallel()

	if _, err := ParseServicesResponse([]byte(`{"error": "Invalid API key"}`)); err == nil {
		t.Fatal("expected error for object-wrapped error body")
	}
	if _, err := ParseServicesResponse([]byte(`{"services": []}`)); err == nil {
		t.Fatal("expected error for non-list body")
	}
}

func TestDecodeObjectRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, body := range []string{"", "  ", "<html>502</html>", "not json"} {
		if _, err := ParseStatusResponse([]byte(body)); err == nil {
			t.Fatalf("expected decode error for %q", body)
		}
	}
}
