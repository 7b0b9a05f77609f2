package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/panelkit/smm-engine/internal/domain"
	"github.com/panelkit/smm-engine/internal/provider"
	"github.com/panelkit/smm-engine/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const connectionTestTimeout = 10 * time.Second

// sandboxSignatures are configuration patterns of known test providers.
// Matching providers short-circuit connection tests so configuration checks
// never burn real provider quota.
var (
	sandboxHostMarkers = []string{"sandbox", "staging", "example.com", "localhost.test"}
	sandboxKeyPrefixes = []string{"test_", "sandbox_", "demo_"}
)

// ConnectionTest is the outcome of a provider connectivity probe.
type ConnectionTest struct {
	OK      bool
	Message string
}

type ProviderService struct {
	providers     repository.ProviderRepository
	services      repository.ServiceRepository
	gateway       provider.Gateway
	logger        *zap.Logger
	defaultMarkup decimal.Decimal
}

func NewProviderService(
	providers repository.ProviderRepository,
	services repository.ServiceRepository,
	gateway provider.Gateway,
	defaultMarkupPercent int,
	logger *zap.Logger,
) (*ProviderService, error) {
	if providers == nil {
		return nil, fmt.Errorf("provider repository is required")
	}
	if services == nil {
		return nil, fmt.Errorf("service repository is required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("provider gateway is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultMarkupPercent < 0 {
		defaultMarkupPercent = 0
	}

	return &ProviderService{
		providers:     providers,
		services:      services,
		gateway:       gateway,
		logger:        logger,
		defaultMarkup: decimal.NewFromInt(int64(defaultMarkupPercent)),
	}, nil
}

func (s *ProviderService) Create(ctx context.Context, p *domain.Provider) (*domain.Provider, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: provider is required", domain.ErrValidation)
	}

	p.Name = strings.TrimSpace(p.Name)
	p.APIURL = strings.TrimSpace(p.APIURL)
	p.APIKey = strings.TrimSpace(p.APIKey)
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = domain.ProviderStatusActive
	}
	if p.BalanceCurrency == "" {
		p.BalanceCurrency = provider.DefaultCurrency
	}
	if p.MarkupPercent.IsZero() {
		p.MarkupPercent = s.defaultMarkup
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	if err := s.providers.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProviderService) List(ctx context.Context) ([]domain.Provider, error) {
	return s.providers.List(ctx)
}

func (s *ProviderService) GetByID(ctx context.Context, id string) (*domain.Provider, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: provider id is required", domain.ErrValidation)
	}
	return s.providers.GetByID(ctx, strings.TrimSpace(id))
}

func (s *ProviderService) SetStatus(ctx context.Context, id string, status domain.ProviderStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: invalid provider status %q", domain.ErrValidation, status)
	}
	return s.providers.SetStatus(ctx, id, status)
}

// ValidateProvider loads a provider and runs the pre-flight checks that must
// pass before any forwarding call. The loaded provider is returned so
// callers don't re-fetch.
func (s *ProviderService) ValidateProvider(ctx context.Context, id string) (*domain.Provider, error) {
	p, err := s.providers.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}

	if p.Status != domain.ProviderStatusActive {
		return nil, fmt.Errorf("%w: provider %q is inactive", domain.ErrValidation, p.Name)
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return nil, fmt.Errorf("%w: provider %q has no api key", domain.ErrValidation, p.Name)
	}
	if err := domain.ValidateAPIURL(p.APIURL); err != nil {
		return nil, fmt.Errorf("%w: provider %q has an invalid api url", domain.ErrValidation, p.Name)
	}

	return p, nil
}

// GetValidProviders returns the active providers that pass a URL parse
// check. Records with persisted garbage are excluded, not deactivated.
func (s *ProviderService) GetValidProviders(ctx context.Context) ([]domain.Provider, error) {
	active, err := s.providers.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	valid := make([]domain.Provider, 0, len(active))
	for _, p := range active {
		if strings.TrimSpace(p.APIKey) == "" {
			continue
		}
		if domain.ValidateAPIURL(p.APIURL) != nil {
			continue
		}
		valid = append(valid, p)
	}
	return valid, nil
}

// TestConnection probes provider connectivity. Sandbox-signature providers
// succeed without a network call; real providers get a services-list fetch
// bounded to ten seconds.
func (s *ProviderService) TestConnection(ctx context.Context, id string) (*ConnectionTest, error) {
	p, err := s.ValidateProvider(ctx, id)
	if err != nil {
		return nil, err
	}

	if isSandboxProvider(*p) {
		return &ConnectionTest{
			OK:      true,
			Message: "sandbox provider, connection assumed ok",
		}, nil
	}

	testCtx, cancel := context.WithTimeout(ctx, connectionTestTimeout)
	defer cancel()

	items, err := s.gateway.GetServices(testCtx, *p)
	if err != nil {
		return &ConnectionTest{
			OK:      false,
			Message: err.Error(),
		}, nil
	}

	return &ConnectionTest{
		OK:      true,
		Message: fmt.Sprintf("ok, %d services listed", len(items)),
	}, nil
}

// SyncServices imports the provider catalog, pricing each entry with the
// provider markup, and returns the number of rows written.
func (s *ProviderService) SyncServices(ctx context.Context, id string) (int, error) {
	p, err := s.ValidateProvider(ctx, id)
	if err != nil {
		return 0, err
	}

	items, err := s.gateway.GetServices(ctx, *p)
	if err != nil {
		return 0, err
	}

	markup := p.MarkupPercent
	if markup.IsZero() {
		markup = s.defaultMarkup
	}
	multiplier := decimal.NewFromInt(1).Add(markup.Div(decimal.NewFromInt(100)))

	services := make([]domain.Service, 0, len(items))
	for _, item := range items {
		providerRate := decimal.Zero
		if item.Rate != nil {
			providerRate = *item.Rate
		}

		svc := domain.Service{
			ProviderID:        p.ID,
			ProviderServiceID: item.ServiceID,
			Name:              item.Name,
			Category:          item.Category,
			Description:       item.Description,
			ProviderRate:      providerRate,
			Rate:              providerRate.Mul(multiplier),
			DripFeed:          item.DripFeed,
			Active:            true,
		}
		if item.MinOrder != nil {
			svc.MinOrder = *item.MinOrder
		}
		if item.MaxOrder != nil {
			svc.MaxOrder = *item.MaxOrder
		}
		services = append(services, svc)
	}

	count, err := s.services.UpsertCatalog(ctx, services)
	if err != nil {
		return 0, err
	}

	s.logger.Info("provider catalog synced",
		zap.String("providerId", p.ID),
		zap.String("provider", p.Name),
		zap.Int("services", count),
	)
	return count, nil
}

// RefreshBalance fetches and persists the provider account balance.
func (s *ProviderService) RefreshBalance(ctx context.Context, id string) (*provider.BalanceResult, error) {
	p, err := s.ValidateProvider(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := s.gateway.GetBalance(ctx, *p)
	if err != nil {
		return nil, err
	}

	if err := s.providers.UpdateBalance(ctx, p.ID, result.Balance, result.Currency, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to persist provider balance: %w", err)
	}
	return result, nil
}

func (s *ProviderService) ListServices(ctx context.Context, providerID string) ([]domain.Service, error) {
	return s.services.ListByProvider(ctx, strings.TrimSpace(providerID))
}

func isSandboxProvider(p domain.Provider) bool {
	key := strings.ToLower(strings.TrimSpace(p.APIKey))
	for _, prefix := range sandboxKeyPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}

	u, err := url.Parse(strings.TrimSpace(p.APIURL))
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, marker := range sandboxHostMarkers {
		if strings.Contains(host, marker) {
			return true
		}
	}

	return false
}
