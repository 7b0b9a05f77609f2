package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/panelkit/smm-engine/internal/domain"
	"github.com/panelkit/smm-engine/internal/provider"
	"github.com/panelkit/smm-engine/internal/queue"
	"github.com/panelkit/smm-engine/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultMaxRetries = 5

// ProviderValidator is the pre-flight guard run before any forwarding call.
type ProviderValidator interface {
	ValidateProvider(ctx context.Context, id string) (*domain.Provider, error)
}

type OrderService struct {
	orders    repository.OrderRepository
	services  repository.ServiceRepository
	validator ProviderValidator
	gateway   provider.Gateway
	publisher queue.Publisher
	logger    *zap.Logger
}

func NewOrderService(
	orders repository.OrderRepository,
	services repository.ServiceRepository,
	validator ProviderValidator,
	gateway provider.Gateway,
	publisher queue.Publisher,
	logger *zap.Logger,
) (*OrderService, error) {
	if orders == nil {
		return nil, fmt.Errorf("order repository is required")
	}
	if services == nil {
		return nil, fmt.Errorf("service repository is required")
	}
	if validator == nil {
		return nil, fmt.Errorf("provider validator is required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("provider gateway is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OrderService{
		orders:    orders,
		services:  services,
		validator: validator,
		gateway:   gateway,
		publisher: publisher,
		logger:    logger,
	}, nil
}

// Place accepts an order, prices it against the catalog, persists it, and
// enqueues it for forwarding. The order stays pending until the forward
// worker hears back from the provider.
func (s *OrderService) Place(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if order == nil {
		return nil, fmt.Errorf("%w: order is required", domain.ErrValidation)
	}

	catalogService, err := s.services.GetByID(ctx, strings.TrimSpace(order.ServiceID))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown service %q", domain.ErrValidation, order.ServiceID)
		}
		return nil, err
	}
	if !catalogService.Active {
		return nil, fmt.Errorf("%w: service %q is not available", domain.ErrValidation, catalogService.Name)
	}
	if !catalogService.AllowsQuantity(order.Quantity) {
		return nil, fmt.Errorf("%w: quantity %d outside service bounds [%d, %d]",
			domain.ErrValidation, order.Quantity, catalogService.MinOrder, catalogService.MaxOrder)
	}
	if order.Runs != nil && !catalogService.DripFeed {
		return nil, fmt.Errorf("%w: service %q does not support drip-feed", domain.ErrValidation, catalogService.Name)
	}

	upstream, err := s.validator.ValidateProvider(ctx, catalogService.ProviderID)
	if err != nil {
		return nil, err
	}

	if err := prepareOrderForCreate(order, catalogService, upstream); err != nil {
		return nil, err
	}

	if err := s.orders.Create(ctx, order); err != nil {
		existing, resolved, resolveErr := s.resolveIdempotencyConflict(ctx, err, order.IdempotencyKey)
		if resolveErr != nil {
			return nil, resolveErr
		}
		if resolved {
			return existing, nil
		}
		return nil, err
	}

	if err := s.publishForward(ctx, order, false); err != nil {
		return nil, err
	}

	return order, nil
}

// Resubmit re-enqueues a failed, never-forwarded order at high priority.
func (s *OrderService) Resubmit(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Forwarded() {
		return nil, fmt.Errorf("%w: order %s was already placed upstream", domain.ErrConflict, order.ID)
	}

	if err := s.orders.Reopen(ctx, order.ID); err != nil {
		return nil, err
	}
	order.Status = domain.OrderStatusPending
	order.LastError = nil

	if err := s.publishForward(ctx, order, true); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderService) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: order id is required", domain.ErrValidation)
	}
	return s.orders.GetByID(ctx, strings.TrimSpace(id))
}

func (s *OrderService) List(ctx context.Context, params repository.OrderListParams) ([]domain.Order, int64, error) {
	return s.orders.List(ctx, params)
}

// Cancel cancels an order. Unforwarded orders cancel locally; placed orders
// require a successful upstream cancellation first, and the raw provider
// message propagates so operators can diagnose refusals.
func (s *OrderService) Cancel(ctx context.Context, id string) error {
	order, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !order.Forwarded() {
		return s.orders.Cancel(ctx, order.ID)
	}

	if order.Status.IsTerminal() {
		return fmt.Errorf("%w: order %s is already %s", domain.ErrConflict, order.ID, order.Status)
	}

	upstream, err := s.validator.ValidateProvider(ctx, order.ProviderID)
	if err != nil {
		return err
	}

	if err := s.gateway.CancelOrders(ctx, *upstream, []string{*order.ProviderOrderID}); err != nil {
		return fmt.Errorf("upstream cancel refused: %w", err)
	}

	return s.orders.MarkCancelled(ctx, order.ID)
}

// EditLink changes the destination link of a placed order on dialects that
// support the operation.
func (s *OrderService) EditLink(ctx context.Context, id string, link string) error {
	link = strings.TrimSpace(link)
	if link == "" {
		return fmt.Errorf("%w: link is required", domain.ErrValidation)
	}

	order, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !order.Forwarded() {
		return fmt.Errorf("%w: order %s has not been placed upstream", domain.ErrConflict, order.ID)
	}

	upstream, err := s.validator.ValidateProvider(ctx, order.ProviderID)
	if err != nil {
		return err
	}

	if err := s.gateway.EditOrderLink(ctx, *upstream, *order.ProviderOrderID, link); err != nil {
		if errors.Is(err, provider.ErrEditUnsupported) {
			return fmt.Errorf("%w: provider %q does not support link edit", domain.ErrValidation, upstream.Name)
		}
		return fmt.Errorf("upstream edit refused: %w", err)
	}

	return s.orders.UpdateLink(ctx, order.ID, link)
}

func (s *OrderService) publishForward(ctx context.Context, order *domain.Order, resubmit bool) error {
	msg := queue.OrderMessage{
		OrderID:       order.ID,
		ProviderID:    order.ProviderID,
		CorrelationID: order.CorrelationID,
		Resubmit:      resubmit,
	}

	if err := s.publisher.Publish(ctx, queue.ForwardQueue, msg); err != nil {
		s.logger.Error("failed to publish order for forwarding",
			zap.String("orderId", order.ID),
			zap.String("providerId", order.ProviderID),
			zap.Error(err),
		)
		if updateErr := s.orders.MarkFailed(ctx, order.ID, "failed to enqueue for forwarding"); updateErr != nil {
			s.logger.Error("failed to mark order as failed after publish error",
				zap.String("orderId", order.ID),
				zap.Error(updateErr),
			)
			return fmt.Errorf("failed to publish order: %w (failed to mark as failed: %v)", err, updateErr)
		}
		order.Status = domain.OrderStatusFailed
		return fmt.Errorf("failed to publish order: %w", err)
	}

	return nil
}

func prepareOrderForCreate(o *domain.Order, catalogService *domain.Service, upstream *domain.Provider) error {
	o.Link = strings.TrimSpace(o.Link)
	o.CorrelationID = strings.TrimSpace(o.CorrelationID)
	if o.CorrelationID == "" {
		o.CorrelationID = uuid.NewString()
	}

	o.ID = strings.TrimSpace(o.ID)
	if o.ID == "" {
		o.ID = uuid.NewString()
	}

	o.IdempotencyKey = normalizeOptionalString(o.IdempotencyKey)
	o.ProviderID = upstream.ID
	o.Charge = provider.CalculateCost(catalogService.ProviderRate, o.Quantity, upstream.MarkupPercent)
	if o.Currency == "" {
		o.Currency = provider.DefaultCurrency
	}

	o.Status = domain.OrderStatusPending
	o.ProviderOrderID = nil
	o.StartCount = nil
	o.Remains = nil
	o.AttemptCount = 0
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetries
	}
	o.NextRetryAt = nil
	o.LastError = nil

	return o.Validate()
}

func normalizeOptionalString(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func (s *OrderService) resolveIdempotencyConflict(
	ctx context.Context,
	createErr error,
	idempotencyKey *string,
) (*domain.Order, bool, error) {
	if idempotencyKey == nil || strings.TrimSpace(*idempotencyKey) == "" {
		return nil, false, nil
	}
	if !isUniqueViolationError(createErr) {
		return nil, false, nil
	}

	existing, err := s.orders.GetByIdempotencyKey(ctx, strings.TrimSpace(*idempotencyKey))
	if err != nil {
		return nil, false, fmt.Errorf("failed to load existing order after idempotency conflict: %w", err)
	}
	s.logger.Info("idempotency conflict resolved",
		zap.String("existingId", existing.ID),
		zap.String("idempotencyKey", *idempotencyKey),
	)
	return existing, true, nil
}

func isUniqueViolationError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
