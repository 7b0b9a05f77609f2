package repository

import (
	"context"
	"errors"
	"time"

	"github.com/panelkit/smm-engine/internal/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProviderRepository interface {
	Create(ctx context.Context, p *domain.Provider) error
	Update(ctx context.Context, p *domain.Provider) error
	GetByID(ctx context.Context, id string) (*domain.Provider, error)
	List(ctx context.Context) ([]domain.Provider, error)
	ListActive(ctx context.Context) ([]domain.Provider, error)
	SetStatus(ctx context.Context, id string, status domain.ProviderStatus) error
	UpdateBalance(ctx context.Context, id string, balance decimal.Decimal, currency string, syncedAt time.Time) error
}

type GormProviderRepo struct {
	db *gorm.DB
}

func NewGormProviderRepo(db *gorm.DB) *GormProviderRepo {
	return &GormProviderRepo{db: db}
}

func (r *GormProviderRepo) Create(ctx context.Context, p *domain.Provider) error {
	model := providerModelFromDomain(p)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if p != nil {
		*p = *providerModelToDomain(model)
	}
	return nil
}

func (r *GormProviderRepo) Update(ctx context.Context, p *domain.Provider) error {
	if p == nil {
		return domain.ErrValidation
	}

	model := providerModelFromDomain(p)
	result := r.db.WithContext(ctx).
		Model(&ProviderModel{}).
		Where("id = ?", p.ID).
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormProviderRepo) GetByID(ctx context.Context, id string) (*domain.Provider, error) {
	var model ProviderModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return providerModelToDomain(&model), nil
}

func (r *GormProviderRepo) List(ctx context.Context) ([]domain.Provider, error) {
	var models []ProviderModel
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return providersToDomain(models), nil
}

func (r *GormProviderRepo) ListActive(ctx context.Context) ([]domain.Provider, error) {
	var models []ProviderModel
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.ProviderStatusActive).
		Order("name ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return providersToDomain(models), nil
}

func (r *GormProviderRepo) SetStatus(ctx context.Context, id string, status domain.ProviderStatus) error {
	result := r.db.WithContext(ctx).
		Model(&ProviderModel{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormProviderRepo) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal, currency string, syncedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&ProviderModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"balance":           balance,
			"balance_currency":  currency,
			"balance_synced_at": syncedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func providersToDomain(models []ProviderModel) []domain.Provider {
	providers := make([]domain.Provider, 0, len(models))
	for i := range models {
		providers = append(providers, *providerModelToDomain(&models[i]))
	}
	return providers
}
