package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/panelkit/smm-engine/internal/domain"
	"github.com/panelkit/smm-engine/internal/observability"
	"github.com/panelkit/smm-engine/internal/provider"
	"github.com/panelkit/smm-engine/internal/queue"
	"github.com/panelkit/smm-engine/internal/ratelimit"
	"github.com/panelkit/smm-engine/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	minWorkerConcurrency = 1
	maxRetryDelay        = 60 * time.Second
	baseRetryDelay       = time.Second
	maxRetryJitterMillis = 250
)

// ForwardWorker consumes the forward queue and places orders upstream.
// Retries are never issued inline against the provider; transport-level
// transient failures schedule a database-backed retry picked up by the retry
// scanner. Once the provider has responded, placement is never retried.
type ForwardWorker struct {
	orders      repository.OrderRepository
	services    repository.ServiceRepository
	attempts    repository.AttemptRepository
	consumer    queue.Consumer
	validator   ProviderValidator
	gateway     provider.Gateway
	rateLimiter ratelimit.RateLimiter
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
	now         func() time.Time
	randIntn    func(n int) int
}

func NewForwardWorker(
	orders repository.OrderRepository,
	services repository.ServiceRepository,
	attempts repository.AttemptRepository,
	consumer queue.Consumer,
	validator ProviderValidator,
	gateway provider.Gateway,
	rateLimiter ratelimit.RateLimiter,
	concurrency int,
	logger *zap.Logger,
) (*ForwardWorker, error) {
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ForwardWorker{
		orders:      orders,
		services:    services,
		attempts:    attempts,
		consumer:    consumer,
		validator:   validator,
		gateway:     gateway,
		rateLimiter: rateLimiter,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
		randIntn:    rand.Intn,
	}, nil
}

// Start consumes the forward queue until context cancellation.
func (s *ForwardWorker) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	queueNames := queue.WorkQueueNames()
	if len(queueNames) == 0 {
		return fmt.Errorf("no work queues configured")
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.concurrency; i++ {
		queueName := queueNames[i%len(queueNames)]
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("forward worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queueName),
			)

			err := s.consumer.Consume(groupCtx, queueName, s.processMessage)
			if err != nil {
				s.logger.Error("forward worker stopped with error",
					zap.Int("workerId", workerID),
					zap.String("queue", queueName),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("forward worker stopped",
				zap.Int("workerId", workerID),
				zap.String("queue", queueName),
			)
			return nil
		})
	}

	return g.Wait()
}

func (s *ForwardWorker) processMessage(ctx context.Context, msg queue.OrderMessage) error {
	order, err := s.orders.LockForForwarding(ctx, msg.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("order not found during lock, skipping",
				zap.String("orderId", msg.OrderID),
			)
			return nil
		}
		return fmt.Errorf("failed to lock order for forwarding: %w", err)
	}

	// Nil means already placed or terminal; ack and skip.
	if order == nil {
		return nil
	}

	upstream, err := s.validator.ValidateProvider(ctx, order.ProviderID)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrNotFound) {
			return s.failOrder(ctx, order, "unknown", "provider_invalid", err.Error())
		}
		return fmt.Errorf("failed to validate provider: %w", err)
	}
	providerName := strings.ToLower(upstream.Name)

	req, err := s.buildOrderRequest(ctx, order)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrNotFound) {
			return s.failOrder(ctx, order, providerName, "service_invalid", err.Error())
		}
		return err
	}

	if s.metrics != nil {
		s.metrics.IncWorkerInFlight(providerName)
		defer s.metrics.DecWorkerInFlight(providerName)
	}

	if err := s.rateLimiter.Wait(ctx, order.ProviderID); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	attemptNumber := order.AttemptCount + 1
	forwardStart := s.now()
	result, forwardErr := s.gateway.ForwardOrder(ctx, *upstream, req)
	if s.metrics != nil {
		s.metrics.ObserveProviderCallDuration(providerName, provider.OpAddOrder, s.now().Sub(forwardStart))
	}

	if err := s.recordAttempt(ctx, order.ID, attemptNumber, forwardErr); err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}

	if forwardErr == nil {
		update := repository.StatusUpdate{
			Status:     domain.OrderStatusProcessing,
			Charge:     result.Charge,
			StartCount: result.StartCount,
			Remains:    result.Remains,
		}
		if err := s.orders.MarkForwarded(ctx, order.ID, result.OrderID, update); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				s.logger.Warn("order already forwarded by another worker",
					zap.String("orderId", order.ID),
				)
				return nil
			}
			return fmt.Errorf("failed to mark order as forwarded: %w", err)
		}
		if s.metrics != nil {
			s.metrics.IncOrderForwarded(providerName)
		}
		return nil
	}

	// A 429 or 5xx may arrive after the provider already recorded the order;
	// re-placing then would charge the customer twice. Only failures where no
	// response came back are safe to retry.
	isTransient := provider.IsTransient(forwardErr) && !placementResponded(forwardErr)
	maxRetries := order.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	if isTransient && attemptNumber < maxRetries {
		nextRetryAt := s.now().Add(s.computeRetryDelay(attemptNumber))
		if err := s.orders.ScheduleRetry(ctx, order.ID, nextRetryAt, forwardErr.Error()); err != nil {
			return fmt.Errorf("failed to schedule retry: %w", err)
		}
		if s.metrics != nil {
			s.metrics.IncRetryScheduled(providerName)
		}
		return nil
	}

	reason := "permanent_error"
	if isTransient {
		reason = "retry_exhausted"
	}
	return s.failOrder(ctx, order, providerName, reason, forwardErr.Error())
}

func (s *ForwardWorker) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *ForwardWorker) buildOrderRequest(ctx context.Context, order *domain.Order) (provider.OrderRequest, error) {
	catalogService, err := s.services.GetByID(ctx, order.ServiceID)
	if err != nil {
		return provider.OrderRequest{}, err
	}

	return provider.OrderRequest{
		Service:  catalogService.ProviderServiceID,
		Link:     order.Link,
		Quantity: order.Quantity,
		Runs:     order.Runs,
		Interval: order.Interval,
	}, nil
}

func (s *ForwardWorker) failOrder(ctx context.Context, order *domain.Order, providerName string, reason string, lastError string) error {
	if err := s.orders.MarkFailed(ctx, order.ID, lastError); err != nil {
		return fmt.Errorf("failed to mark order as failed: %w", err)
	}
	if s.metrics != nil {
		s.metrics.IncOrderForwardFailed(providerName, reason)
	}
	s.logger.Warn("order forwarding failed",
		zap.String("orderId", order.ID),
		zap.String("provider", providerName),
		zap.String("reason", reason),
		zap.String("error", lastError),
	)
	return nil
}

// placementResponded reports whether the provider produced an HTTP response
// for the placement call, however broken.
func placementResponded(err error) bool {
	var providerErr *provider.ProviderError
	return errors.As(err, &providerErr) && providerErr.StatusCode > 0
}

func (s *ForwardWorker) computeRetryDelay(attemptNumber int) time.Duration {
	if attemptNumber < 1 {
		attemptNumber = 1
	}

	delay := baseRetryDelay
	for i := 1; i < attemptNumber; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			delay = maxRetryDelay
			break
		}
	}

	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}

	jitterMillis := 0
	if s.randIntn != nil && maxRetryJitterMillis > 0 {
		jitterMillis = s.randIntn(maxRetryJitterMillis + 1)
	}

	return delay + time.Duration(jitterMillis)*time.Millisecond
}

func (s *ForwardWorker) recordAttempt(ctx context.Context, orderID string, attemptNumber int, forwardErr error) error {
	var statusCode *int
	var attemptErr *string

	if forwardErr != nil {
		value := forwardErr.Error()
		attemptErr = &value

		var providerErr *provider.ProviderError
		if errors.As(forwardErr, &providerErr) && providerErr.StatusCode > 0 {
			code := providerErr.StatusCode
			statusCode = &code
		}
	}

	attempt := &domain.ForwardAttempt{
		ID:            uuid.NewString(),
		OrderID:       orderID,
		Operation:     provider.OpAddOrder,
		AttemptNumber: attemptNumber,
		StatusCode:    statusCode,
		Error:         attemptErr,
		CreatedAt:     s.now().UTC(),
	}

	return s.attempts.Create(ctx, attempt)
}
