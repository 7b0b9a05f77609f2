package repository

import (
	"context"

	"github.com/panelkit/smm-engine/internal/domain"
	"gorm.io/gorm"
)

type AttemptRepository interface {
	Create(ctx context.Context, attempt *domain.ForwardAttempt) error
	ListByOrder(ctx context.Context, orderID string) ([]domain.ForwardAttempt, error)
}

type GormAttemptRepo struct {
	db *gorm.DB
}

func NewGormAttemptRepo(db *gorm.DB) *GormAttemptRepo {
	return &GormAttemptRepo{db: db}
}

func (r *GormAttemptRepo) Create(ctx context.Context, attempt *domain.ForwardAttempt) error {
	model := attemptModelFromDomain(attempt)
	return r.db.WithContext(ctx).Create(model).Error
}

func (r *GormAttemptRepo) ListByOrder(ctx context.Context, orderID string) ([]domain.ForwardAttempt, error) {
	var models []ForwardAttemptModel
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("attempt_number ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	attempts := make([]domain.ForwardAttempt, 0, len(models))
	for i := range models {
		attempts = append(attempts, *attemptModelToDomain(&models[i]))
	}
	return attempts, nil
}
