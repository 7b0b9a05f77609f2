package repository

import (
	"time"

	"github.com/panelkit/smm-engine/internal/domain"
	"github.com/shopspring/decimal"
)

// ProviderModel is the persistence model for the providers table.
type ProviderModel struct {
	ID              string                `gorm:"type:uuid;primaryKey"`
	Name            string                `gorm:"type:varchar(120);not null;uniqueIndex"`
	APIURL          string                `gorm:"column:api_url;type:text;not null"`
	APIKey          string                `gorm:"column:api_key;type:text;not null"`
	Status          domain.ProviderStatus `gorm:"type:varchar(10);not null;default:'active'"`
	HTTPMethod      *string               `gorm:"column:http_method;type:varchar(6)"`
	RequestFormat   *string               `gorm:"type:varchar(6)"`
	APIType         *int                  `gorm:"column:api_type;type:int"`
	TimeoutSeconds  *int                  `gorm:"type:int"`
	MarkupPercent   decimal.Decimal       `gorm:"type:numeric(8,3);not null;default:0"`
	Balance         *decimal.Decimal      `gorm:"type:numeric(18,6)"`
	BalanceCurrency string                `gorm:"type:varchar(8);not null;default:'USD'"`
	BalanceSyncedAt *time.Time            `gorm:"type:timestamptz"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (ProviderModel) TableName() string { return "providers" }

// ServiceModel is the persistence model for the services catalog.
type ServiceModel struct {
	ID                string          `gorm:"type:uuid;primaryKey"`
	ProviderID        string          `gorm:"type:uuid;not null;index:idx_services_provider_service,unique"`
	ProviderServiceID string          `gorm:"type:varchar(64);not null;index:idx_services_provider_service,unique"`
	Name              string          `gorm:"type:varchar(255);not null"`
	Category          string          `gorm:"type:varchar(255)"`
	Description       string          `gorm:"type:text"`
	Rate              decimal.Decimal `gorm:"type:numeric(18,6);not null;default:0"`
	ProviderRate      decimal.Decimal `gorm:"type:numeric(18,6);not null;default:0"`
	MinOrder          int             `gorm:"not null;default:0"`
	MaxOrder          int             `gorm:"not null;default:0"`
	DripFeed          bool            `gorm:"not null;default:false"`
	Active            bool            `gorm:"not null;default:true"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (ServiceModel) TableName() string { return "services" }

// OrderModel is the persistence model for the orders table.
type OrderModel struct {
	ID              string             `gorm:"type:uuid;primaryKey"`
	CorrelationID   string             `gorm:"type:varchar(36);not null"`
	IdempotencyKey  *string            `gorm:"type:varchar(255)"`
	ServiceID       string             `gorm:"type:uuid;not null"`
	ProviderID      string             `gorm:"type:uuid;not null"`
	Link            string             `gorm:"type:text;not null"`
	Quantity        int                `gorm:"not null"`
	Runs            *int               `gorm:"type:int"`
	Interval        *int               `gorm:"type:int"`
	Charge          decimal.Decimal    `gorm:"type:numeric(18,6);not null;default:0"`
	Currency        string             `gorm:"type:varchar(8);not null;default:'USD'"`
	Status          domain.OrderStatus `gorm:"type:varchar(12);not null"`
	ProviderOrderID *string            `gorm:"type:varchar(64)"`
	StartCount      *int               `gorm:"type:int"`
	Remains         *int               `gorm:"type:int"`
	AttemptCount    int                `gorm:"not null;default:0"`
	MaxRetries      int                `gorm:"not null;default:5"`
	NextRetryAt     *time.Time
	LastError       *string `gorm:"type:text"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (OrderModel) TableName() string { return "orders" }

// ForwardAttemptModel is the persistence model for forward_attempts.
type ForwardAttemptModel struct {
	ID            string  `gorm:"type:uuid;primaryKey"`
	OrderID       string  `gorm:"type:uuid;not null;index"`
	Operation     string  `gorm:"type:varchar(20);not null"`
	AttemptNumber int     `gorm:"not null"`
	StatusCode    *int    `gorm:"type:int"`
	Error         *string `gorm:"type:text"`
	CreatedAt     time.Time
}

func (ForwardAttemptModel) TableName() string { return "forward_attempts" }

func providerModelFromDomain(p *domain.Provider) *ProviderModel {
	if p == nil {
		return nil
	}

	model := &ProviderModel{
		ID:              p.ID,
		Name:            p.Name,
		APIURL:          p.APIURL,
		APIKey:          p.APIKey,
		Status:          p.Status,
		APIType:         p.APIType,
		TimeoutSeconds:  p.TimeoutSeconds,
		MarkupPercent:   p.MarkupPercent,
		Balance:         p.Balance,
		BalanceCurrency: p.BalanceCurrency,
		BalanceSyncedAt: p.BalanceSyncedAt,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
	if p.HTTPMethod != nil {
		value := p.HTTPMethod.String()
		model.HTTPMethod = &value
	}
	if p.RequestFormat != nil {
		value := p.RequestFormat.String()
		model.RequestFormat = &value
	}
	return model
}

func providerModelToDomain(m *ProviderModel) *domain.Provider {
	if m == nil {
		return nil
	}

	p := &domain.Provider{
		ID:              m.ID,
		Name:            m.Name,
		APIURL:          m.APIURL,
		APIKey:          m.APIKey,
		Status:          m.Status,
		APIType:         m.APIType,
		TimeoutSeconds:  m.TimeoutSeconds,
		MarkupPercent:   m.MarkupPercent,
		Balance:         m.Balance,
		BalanceCurrency: m.BalanceCurrency,
		BalanceSyncedAt: m.BalanceSyncedAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if m.HTTPMethod != nil {
		if method, err := domain.ParseHTTPMethodFromString(*m.HTTPMethod); err == nil {
			p.HTTPMethod = &method
		}
	}
	if m.RequestFormat != nil {
		if format, err := domain.ParseRequestFormatFromString(*m.RequestFormat); err == nil {
			p.RequestFormat = &format
		}
	}
	return p
}

func serviceModelFromDomain(s *domain.Service) *ServiceModel {
	if s == nil {
		return nil
	}
	return &ServiceModel{
		ID:                s.ID,
		ProviderID:        s.ProviderID,
		ProviderServiceID: s.ProviderServiceID,
		Name:              s.Name,
		Category:          s.Category,
		Description:       s.Description,
		Rate:              s.Rate,
		ProviderRate:      s.ProviderRate,
		MinOrder:          s.MinOrder,
		MaxOrder:          s.MaxOrder,
		DripFeed:          s.DripFeed,
		Active:            s.Active,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

func serviceModelToDomain(m *ServiceModel) *domain.Service {
	if m == nil {
		return nil
	}
	return &domain.Service{
		ID:                m.ID,
		ProviderID:        m.ProviderID,
		ProviderServiceID: m.ProviderServiceID,
		Name:              m.Name,
		Category:          m.Category,
		Description:       m.Description,
		Rate:              m.Rate,
		ProviderRate:      m.ProviderRate,
		MinOrder:          m.MinOrder,
		MaxOrder:          m.MaxOrder,
		DripFeed:          m.DripFeed,
		Active:            m.Active,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func orderModelFromDomain(o *domain.Order) *OrderModel {
	if o == nil {
		return nil
	}
	return &OrderModel{
		ID:              o.ID,
		CorrelationID:   o.CorrelationID,
		IdempotencyKey:  o.IdempotencyKey,
		ServiceID:       o.ServiceID,
		ProviderID:      o.ProviderID,
		Link:            o.Link,
		Quantity:        o.Quantity,
		Runs:            o.Runs,
		Interval:        o.Interval,
		Charge:          o.Charge,
		Currency:        o.Currency,
		Status:          o.Status,
		ProviderOrderID: o.ProviderOrderID,
		StartCount:      o.StartCount,
		Remains:         o.Remains,
		AttemptCount:    o.AttemptCount,
		MaxRetries:      o.MaxRetries,
		NextRetryAt:     o.NextRetryAt,
		LastError:       o.LastError,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func orderModelToDomain(m *OrderModel) *domain.Order {
	if m == nil {
		return nil
	}
	return &domain.Order{
		ID:              m.ID,
		CorrelationID:   m.CorrelationID,
		IdempotencyKey:  m.IdempotencyKey,
		ServiceID:       m.ServiceID,
		ProviderID:      m.ProviderID,
		Link:            m.Link,
		Quantity:        m.Quantity,
		Runs:            m.Runs,
		Interval:        m.Interval,
		Charge:          m.Charge,
		Currency:        m.Currency,
		Status:          m.Status,
		ProviderOrderID: m.ProviderOrderID,
		StartCount:      m.StartCount,
		Remains:         m.Remains,
		AttemptCount:    m.AttemptCount,
		MaxRetries:      m.MaxRetries,
		NextRetryAt:     m.NextRetryAt,
		LastError:       m.LastError,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func attemptModelFromDomain(a *domain.ForwardAttempt) *ForwardAttemptModel {
	if a == nil {
		return nil
	}
	return &ForwardAttemptModel{
		ID:            a.ID,
		OrderID:       a.OrderID,
		Operation:     a.Operation,
		AttemptNumber: a.AttemptNumber,
		StatusCode:    a.StatusCode,
		Error:         a.Error,
		CreatedAt:     a.CreatedAt,
	}
}

func attemptModelToDomain(m *ForwardAttemptModel) *domain.ForwardAttempt {
	if m == nil {
		return nil
	}
	return &domain.ForwardAttempt{
		ID:            m.ID,
		OrderID:       m.OrderID,
		Operation:     m.Operation,
		AttemptNumber: m.AttemptNumber,
		StatusCode:    m.StatusCode,
		Error:         m.Error,
		CreatedAt:     m.CreatedAt,
	}
}
