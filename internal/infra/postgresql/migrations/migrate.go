package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/panelkit/smm-engine/internal/repository"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_providers",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&repository.ProviderModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.ProviderModel{})
			},
		},
		{
			ID: "000002_create_services",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.ServiceModel{}); err != nil {
					return err
				}
				return tx.Exec(
					`CREATE INDEX IF NOT EXISTS idx_services_provider_active ON services (provider_id) WHERE active`,
				).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.ServiceModel{})
			},
		},
		{
			ID: "000003_create_orders",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.OrderModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE INDEX IF NOT EXISTS idx_orders_status_provider_created ON orders (status, provider_id, created_at)`,
					`CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_idempotency_key ON orders (idempotency_key) WHERE idempotency_key IS NOT NULL`,
					`CREATE INDEX IF NOT EXISTS idx_orders_inflight ON orders (updated_at) WHERE provider_order_id IS NOT NULL AND status IN ('pending', 'processing', 'partial')`,
					`CREATE INDEX IF NOT EXISTS idx_orders_correlation_id ON orders (correlation_id)`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.OrderModel{})
			},
		},
		{
			ID: "000004_create_forward_attempts",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&repository.ForwardAttemptModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.ForwardAttemptModel{})
			},
		},
	})

	return m.Migrate()
}
