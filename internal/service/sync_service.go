package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/panelkit/smm-engine/internal/domain"
	"github.com/panelkit/smm-engine/internal/observability"
	"github.com/panelkit/smm-engine/internal/provider"
	"github.com/panelkit/smm-engine/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultSyncInterval  = 60 * time.Second
	defaultSyncScanLimit = 200
)

// SyncService periodically refreshes the upstream status of in-flight
// orders. Per-provider batches run sequentially so a slow or dead provider
// never amplifies its own load.
type SyncService struct {
	orders    repository.OrderRepository
	validator ProviderValidator
	gateway   provider.Gateway
	logger    *zap.Logger
	metrics   *observability.Metrics
	interval  time.Duration
	limit     int
}

func NewSyncService(
	orders repository.OrderRepository,
	validator ProviderValidator,
	gateway provider.Gateway,
	interval time.Duration,
	limit int,
	logger *zap.Logger,
) (*SyncService, error) {
	if orders == nil {
		return nil, fmt.Errorf("order repository is required")
	}
	if validator == nil {
		return nil, fmt.Errorf("provider validator is required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("provider gateway is required")
	}
	if interval <= 0 {
		interval = defaultSyncInterval
	}
	if limit <= 0 {
		limit = defaultSyncScanLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SyncService{
		orders:    orders,
		validator: validator,
		gateway:   gateway,
		logger:    logger,
		interval:  interval,
		limit:     limit,
	}, nil
}

func (s *SyncService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *SyncService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.SyncOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("status sync scan failed", zap.Error(err))
			}
		}
	}
}

// SyncOnce runs a single scan over the in-flight orders, grouped by
// provider. A failing provider skips its batch; the rest still sync.
func (s *SyncService) SyncOnce(ctx context.Context) error {
	inflight, err := s.orders.GetInFlight(ctx, s.limit)
	if err != nil {
		return fmt.Errorf("failed to fetch in-flight orders: %w", err)
	}
	if len(inflight) == 0 {
		return nil
	}

	for providerID, orders := range groupByProvider(inflight) {
		if ctx.Err() != nil {
			return nil
		}
		s.syncProviderBatch(ctx, providerID, orders)
	}

	return nil
}

func (s *SyncService) syncProviderBatch(ctx context.Context, providerID string, orders []domain.Order) {
	upstream, err := s.validator.ValidateProvider(ctx, providerID)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("skipping status sync for invalid provider",
				zap.String("providerId", providerID),
				zap.Int("orders", len(orders)),
				zap.Error(err),
			)
			return
		}
		s.logger.Error("failed to load provider for status sync",
			zap.String("providerId", providerID),
			zap.Error(err),
		)
		return
	}
	providerName := strings.ToLower(upstream.Name)

	byProviderOrderID := make(map[string]domain.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, order := range orders {
		if order.ProviderOrderID == nil {
			continue
		}
		byProviderOrderID[*order.ProviderOrderID] = order
		ids = append(ids, *order.ProviderOrderID)
	}
	if len(ids) == 0 {
		return
	}

	results, err := s.gateway.SyncOrdersStatus(ctx, *upstream, ids)
	if err != nil {
		s.logger.Error("status sync batch failed",
			zap.String("provider", providerName),
			zap.Int("orders", len(ids)),
			zap.Error(err),
		)
		return
	}

	for providerOrderID, result := range results {
		order, ok := byProviderOrderID[providerOrderID]
		if !ok {
			continue
		}
		if result.Status == order.Status && result.Charge == nil && result.StartCount == nil && result.Remains == nil {
			continue
		}

		update := repository.StatusUpdate{
			Status:     result.Status,
			Charge:     result.Charge,
			StartCount: result.StartCount,
			Remains:    result.Remains,
		}
		if err := s.orders.ApplyStatus(ctx, order.ID, update); err != nil {
			s.logger.Error("failed to apply synced status",
				zap.String("orderId", order.ID),
				zap.String("provider", providerName),
				zap.Error(err),
			)
			continue
		}
		if s.metrics != nil {
			s.metrics.IncStatusSync(providerName, string(result.Status))
		}
	}
}

func groupByProvider(orders []domain.Order) map[string][]domain.Order {
	grouped := make(map[string][]domain.Order)
	for _, order := range orders {
		grouped[order.ProviderID] = append(grouped[order.ProviderID], order)
	}
	return grouped
}
