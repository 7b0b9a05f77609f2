package repository

import (
	"context"
	"errors"
	"time"

	"github.com/panelkit/smm-engine/internal/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderListParams struct {
	Status     *domain.OrderStatus
	ProviderID *string
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}

// StatusUpdate carries the normalized fields applied to an order after a
// provider call. Nil fields are left untouched so a provider that omits a
// field never zeroes persisted data.
type StatusUpdate struct {
	Status     domain.OrderStatus
	Charge     *decimal.Decimal
	StartCount *int
	Remains    *int
}

type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByIdempotencyKey(ctx context.Context, idempotencyKey string) (*domain.Order, error)
	List(ctx context.Context, params OrderListParams) ([]domain.Order, int64, error)
	LockForForwarding(ctx context.Context, id string) (*domain.Order, error)
	MarkForwarded(ctx context.Context, id string, providerOrderID string, update StatusUpdate) error
	ScheduleRetry(ctx context.Context, id string, nextRetryAt time.Time, lastError string) error
	MarkFailed(ctx context.Context, id string, lastError string) error
	ApplyStatus(ctx context.Context, id string, update StatusUpdate) error
	Cancel(ctx context.Context, id string) error
	MarkCancelled(ctx context.Context, id string) error
	UpdateLink(ctx context.Context, id string, link string) error
	Reopen(ctx context.Context, id string) error
	GetInFlight(ctx context.Context, limit int) ([]domain.Order, error)
	GetDueForRetry(ctx context.Context, limit int) ([]domain.Order, error)
	ClearRetry(ctx context.Context, id string) error
}

type GormOrderRepo struct {
	db *gorm.DB
}

func NewGormOrderRepo(db *gorm.DB) *GormOrderRepo {
	return &GormOrderRepo{db: db}
}

func (r *GormOrderRepo) Create(ctx context.Context, o *domain.Order) error {
	model := orderModelFromDomain(o)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if o != nil {
		*o = *orderModelToDomain(model)
	}
	return nil
}

func (r *GormOrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return orderModelToDomain(&model), nil
}

func (r *GormOrderRepo) GetByIdempotencyKey(ctx context.Context, idempotencyKey string) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", idempotencyKey).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return orderModelToDomain(&model), nil
}

func (r *GormOrderRepo) List(ctx context.Context, params OrderListParams) ([]domain.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&OrderModel{})

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.ProviderID != nil {
		query = query.Where("provider_id = ?", *params.ProviderID)
	}
	if params.From != nil {
		query = query.Where("created_at >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("created_at <= ?", *params.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []OrderModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	return ordersToDomain(models), total, nil
}

// LockForForwarding takes a row lock and returns the order only when it is
// still pending and has not yet been placed upstream. Nil means another
// worker already handled it; callers ack and move on.
func (r *GormOrderRepo) LockForForwarding(ctx context.Context, id string) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if model.Status != domain.OrderStatusPending || model.ProviderOrderID != nil {
		return nil, nil
	}

	return orderModelToDomain(&model), nil
}

func (r *GormOrderRepo) MarkForwarded(ctx context.Context, id string, providerOrderID string, update StatusUpdate) error {
	updates := map[string]any{
		"provider_order_id": providerOrderID,
		"status":            update.Status,
		"next_retry_at":     nil,
		"last_error":        nil,
		"attempt_count":     gorm.Expr("attempt_count + 1"),
	}
	applyOptionalFields(updates, update)

	result := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("id = ? AND provider_order_id IS NULL", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormOrderRepo) ScheduleRetry(ctx context.Context, id string, nextRetryAt time.Time, lastError string) error {
	result := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"next_retry_at": nextRetryAt,
			"last_error":    lastError,
			"attempt_count": gorm.Expr("attempt_count + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormOrderRepo) MarkFailed(ctx context.Context, id string, lastError string) error {
	result := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        domain.OrderStatusFailed,
			"last_error":    lastError,
			"attempt_count": gorm.Expr("attempt_count + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ApplyStatus persists a normalized sync result against a placed order.
func (r *GormOrderRepo) ApplyStatus(ctx context.Context, id string, update StatusUpdate) error {
	updates := map[string]any{"status": update.Status}
	applyOptionalFields(updates, update)

	result := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Cancel performs a local cancellation, allowed only before the order has
// been placed upstream.
func (r *GormOrderRepo) Cancel(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("id = ? AND status = ? AND provider_order_id IS NULL", id, domain.OrderStatusPending).
		Update("status", domain.OrderStatusCancelled)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// MarkCancelled records an upstream-confirmed cancellation.
func (r *GormOrderRepo) MarkCancelled(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("id = ?", id).
		Update("status", domain.OrderStatusCancelled)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormOrderRepo) UpdateLink(ctx context.Context, id string, link string) error {
	result := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("id = ?", id).
		Update("link", link)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Reopen returns a failed, never-forwarded order to the pending state so it
// can be resubmitted.
func (r *GormOrderRepo) Reopen(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("id = ? AND status = ? AND provider_order_id IS NULL", id, domain.OrderStatusFailed).
		Updates(map[string]any{
			"status":        domain.OrderStatusPending,
			"next_retry_at": nil,
			"last_error":    nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// GetDueForRetry returns unforwarded orders whose retry time has passed.
func (r *GormOrderRepo) GetDueForRetry(ctx context.Context, limit int) ([]domain.Order, error) {
	var models []OrderModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND provider_order_id IS NULL AND next_retry_at <= ?",
			domain.OrderStatusPending, time.Now()).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return ordersToDomain(models), nil
}

// ClearRetry claims a due order for re-enqueue. Zero rows means another
// scanner instance won the claim.
func (r *GormOrderRepo) ClearRetry(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("id = ? AND next_retry_at IS NOT NULL", id).
		Update("next_retry_at", nil)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// GetInFlight returns placed orders whose upstream state can still change,
// oldest first, for the status-sync scanner.
func (r *GormOrderRepo) GetInFlight(ctx context.Context, limit int) ([]domain.Order, error) {
	var models []OrderModel
	err := r.db.WithContext(ctx).
		Where("provider_order_id IS NOT NULL AND status IN ?", []domain.OrderStatus{
			domain.OrderStatusPending,
			domain.OrderStatusProcessing,
			domain.OrderStatusPartial,
		}).
		Order("updated_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return ordersToDomain(models), nil
}

func applyOptionalFields(updates map[string]any, update StatusUpdate) {
	if update.Charge != nil {
		updates["charge"] = *update.Charge
	}
	if update.StartCount != nil {
		updates["start_count"] = *update.StartCount
	}
	if update.Remains != nil {
		updates["remains"] = *update.Remains
	}
}

func ordersToDomain(models []OrderModel) []domain.Order {
	orders := make([]domain.Order, 0, len(models))
	for i := range models {
		orders = append(orders, *orderModelToDomain(&models[i]))
	}
	return orders
}
