package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/panelkit/smm-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ServiceRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Service, error)
	ListByProvider(ctx context.Context, providerID string) ([]domain.Service, error)
	UpsertCatalog(ctx context.Context, services []domain.Service) (int, error)
	Deactivate(ctx context.Context, id string) error
}

type GormServiceRepo struct {
	db *gorm.DB
}

func NewGormServiceRepo(db *gorm.DB) *GormServiceRepo {
	return &GormServiceRepo{db: db}
}

func (r *GormServiceRepo) GetByID(ctx context.Context, id string) (*domain.Service, error) {
	var model ServiceModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return serviceModelToDomain(&model), nil
}

func (r *GormServiceRepo) ListByProvider(ctx context.Context, providerID string) ([]domain.Service, error) {
	var models []ServiceModel
	err := r.db.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Order("category ASC, name ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	services := make([]domain.Service, 0, len(models))
	for i := range models {
		services = append(services, *serviceModelToDomain(&models[i]))
	}
	return services, nil
}

// UpsertCatalog inserts or refreshes catalog rows keyed by the provider's own
// service id, returning the number of rows written.
func (r *GormServiceRepo) UpsertCatalog(ctx context.Context, services []domain.Service) (int, error) {
	if len(services) == 0 {
		return 0, nil
	}

	models := make([]ServiceModel, 0, len(services))
	for i := range services {
		s := services[i]
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		models = append(models, *serviceModelFromDomain(&s))
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "provider_id"}, {Name: "provider_service_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "category", "description", "rate", "provider_rate",
				"min_order", "max_order", "drip_feed", "active", "updated_at",
			}),
		}).
		CreateInBatches(&models, 100).Error
	if err != nil {
		return 0, err
	}

	return len(models), nil
}

func (r *GormServiceRepo) Deactivate(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&ServiceModel{}).
		Where("id = ?", id).
		Update("active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
