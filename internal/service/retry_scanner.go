package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panelkit/smm-engine/internal/domain"
	"github.com/panelkit/smm-engine/internal/queue"
	"github.com/panelkit/smm-engine/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultRetryScanInterval = 5 * time.Second
	defaultRetryScanLimit    = 100
)

// RetryScanner periodically re-enqueues orders whose retry time has passed.
// Duplicate publishes are harmless; the forwarding lock lets only one worker
// act on an order.
type RetryScanner struct {
	orders    repository.OrderRepository
	publisher queue.Publisher
	logger    *zap.Logger
	interval  time.Duration
	limit     int
}

func NewRetryScanner(
	orders repository.OrderRepository,
	publisher queue.Publisher,
	interval time.Duration,
	limit int,
	logger *zap.Logger,
) (*RetryScanner, error) {
	if orders == nil {
		return nil, fmt.Errorf("order repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if interval <= 0 {
		interval = defaultRetryScanInterval
	}
	if limit <= 0 {
		limit = defaultRetryScanLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RetryScanner{
		orders:    orders,
		publisher: publisher,
		logger:    logger,
		interval:  interval,
		limit:     limit,
	}, nil
}

func (s *RetryScanner) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Run an initial scan so already-due retries do not wait for the first ticker edge.
	if err := s.scanDue(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("retry scanner initial scan failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.scanDue(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("retry scanner scan failed", zap.Error(err))
			}
		}
	}
}

func (s *RetryScanner) scanDue(ctx context.Context) error {
	dueOrders, err := s.orders.GetDueForRetry(ctx, s.limit)
	if err != nil {
		return fmt.Errorf("failed to fetch due retries: %w", err)
	}

	for i := range dueOrders {
		order := dueOrders[i]

		// Claim first; zero rows means another scanner instance got there.
		if err := s.orders.ClearRetry(ctx, order.ID); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				continue
			}
			s.logger.Error("failed to claim order for retry",
				zap.String("orderId", order.ID),
				zap.Error(err),
			)
			continue
		}

		msg := queue.OrderMessage{
			OrderID:       order.ID,
			ProviderID:    order.ProviderID,
			CorrelationID: order.CorrelationID,
			Resubmit:      true,
		}
		if err := s.publisher.Publish(ctx, queue.ForwardQueue, msg); err != nil {
			s.logger.Error("failed to enqueue retry order",
				zap.String("orderId", order.ID),
				zap.Error(err),
			)

			// Put the claim back so the next scan picks it up again.
			if restoreErr := s.orders.ScheduleRetry(ctx, order.ID, time.Now().Add(s.interval), "retry enqueue failed"); restoreErr != nil {
				s.logger.Error("failed to restore retry schedule after enqueue failure",
					zap.String("orderId", order.ID),
					zap.Error(restoreErr),
				)
			}
			continue
		}
	}

	return nil
}
