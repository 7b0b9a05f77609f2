package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/panelkit/smm-engine/internal/domain"
	"github.com/panelkit/smm-engine/internal/provider"
	"github.com/panelkit/smm-engine/internal/service"
	"github.com/shopspring/decimal"
)

type ProviderService interface {
	Create(ctx context.Context, p *domain.Provider) (*domain.Provider, error)
	List(ctx context.Context) ([]domain.Provider, error)
	GetByID(ctx context.Context, id string) (*domain.Provider, error)
	SetStatus(ctx context.Context, id string, status domain.ProviderStatus) error
	TestConnection(ctx context.Context, id string) (*service.ConnectionTest, error)
	SyncServices(ctx context.Context, id string) (int, error)
	RefreshBalance(ctx context.Context, id string) (*provider.BalanceResult, error)
	ListServices(ctx context.Context, providerID string) ([]domain.Service, error)
}

type ProviderHandler struct {
	service ProviderService
}

func NewProviderHandler(service ProviderService) (*ProviderHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("provider service is required")
	}
	return &ProviderHandler{service: service}, nil
}

func RegisterProviderRoutes(router fiber.Router, service ProviderService) error {
	h, err := NewProviderHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/providers", h.CreateProvider)
	v1.Get("/providers", h.ListProviders)
	v1.Get("/providers/:id", h.GetProvider)
	v1.Patch("/providers/:id/status", h.SetProviderStatus)
	v1.Post("/providers/:id/test", h.TestProviderConnection)
	v1.Post("/providers/:id/sync-services", h.SyncProviderServices)
	v1.Post("/providers/:id/balance", h.RefreshProviderBalance)
	v1.Get("/providers/:id/services", h.ListProviderServices)

	return nil
}

type createProviderRequest struct {
	Name           string  `json:"name"`
	APIURL         string  `json:"apiUrl"`
	APIKey         string  `json:"apiKey"`
	HTTPMethod     *string `json:"httpMethod,omitempty"`
	RequestFormat  *string `json:"requestFormat,omitempty"`
	APIType        *int    `json:"apiType,omitempty"`
	TimeoutSeconds *int    `json:"timeoutSeconds,omitempty"`
	MarkupPercent  *string `json:"markupPercent,omitempty"`
}

type setProviderStatusRequest struct {
	Status string `json:"status"`
}

type providerResponse struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	APIURL          string     `json:"apiUrl"`
	Status          string     `json:"status"`
	Dialect         string     `json:"dialect"`
	HTTPMethod      *string    `json:"httpMethod,omitempty"`
	RequestFormat   *string    `json:"requestFormat,omitempty"`
	APIType         *int       `json:"apiType,omitempty"`
	TimeoutSeconds  *int       `json:"timeoutSeconds,omitempty"`
	MarkupPercent   string     `json:"markupPercent"`
	Balance         *string    `json:"balance,omitempty"`
	BalanceCurrency string     `json:"balanceCurrency,omitempty"`
	BalanceSyncedAt *time.Time `json:"balanceSyncedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt,omitempty"`
	UpdatedAt       time.Time  `json:"updatedAt,omitempty"`
}

type serviceResponse struct {
	ID                string `json:"id"`
	ProviderID        string `json:"providerId"`
	ProviderServiceID string `json:"providerServiceId"`
	Name              string `json:"name"`
	Category          string `json:"category,omitempty"`
	Description       string `json:"description,omitempty"`
	Rate              string `json:"rate"`
	MinOrder          int    `json:"minOrder"`
	MaxOrder          int    `json:"maxOrder"`
	DripFeed          bool   `json:"dripFeed"`
	Active            bool   `json:"active"`
}

func (h *ProviderHandler) CreateProvider(c *fiber.Ctx) error {
	var req createProviderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	p, err := requestToDomainProvider(req)
	if err != nil {
		return toHTTPError(err)
	}

	created, err := h.service.Create(c.Context(), &p)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toProviderResponse(created))
}

func (h *ProviderHandler) ListProviders(c *fiber.Ctx) error {
	providers, err := h.service.List(c.Context())
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]providerResponse, 0, len(providers))
	for i := range providers {
		responses = append(responses, toProviderResponse(&providers[i]))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": responses})
}

func (h *ProviderHandler) GetProvider(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	p, err := h.service.GetByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toProviderResponse(p))
}

func (h *ProviderHandler) SetProviderStatus(c *fiber.Ctx) error {
	var req setProviderStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	status, err := domain.ParseProviderStatusFromString(req.Status)
	if err != nil {
		return toHTTPError(err)
	}

	id := strings.TrimSpace(c.Params("id"))
	if err := h.service.SetStatus(c.Context(), id, status); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"providerId": id,
		"status":     status.String(),
	})
}

func (h *ProviderHandler) TestProviderConnection(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	result, err := h.service.TestConnection(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"providerId": id,
		"ok":         result.OK,
		"message":    result.Message,
	})
}

func (h *ProviderHandler) SyncProviderServices(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	count, err := h.service.SyncServices(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"providerId": id,
		"services":   count,
	})
}

func (h *ProviderHandler) RefreshProviderBalance(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	result, err := h.service.RefreshBalance(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"providerId": id,
		"balance":    result.Balance.String(),
		"currency":   result.Currency,
	})
}

func (h *ProviderHandler) ListProviderServices(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	services, err := h.service.ListServices(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]serviceResponse, 0, len(services))
	for _, svc := range services {
		responses = append(responses, serviceResponse{
			ID:                svc.ID,
			ProviderID:        svc.ProviderID,
			ProviderServiceID: svc.ProviderServiceID,
			Name:              svc.Name,
			Category:          svc.Category,
			Description:       svc.Description,
			Rate:              svc.Rate.String(),
			MinOrder:          svc.MinOrder,
			MaxOrder:          svc.MaxOrder,
			DripFeed:          svc.DripFeed,
			Active:            svc.Active,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": responses})
}

func requestToDomainProvider(req createProviderRequest) (domain.Provider, error) {
	p := domain.Provider{
		Name:    strings.TrimSpace(req.Name),
		APIURL:  strings.TrimSpace(req.APIURL),
		APIKey:  strings.TrimSpace(req.APIKey),
		APIType: req.APIType,
	}

	if req.HTTPMethod != nil {
		method, err := domain.ParseHTTPMethodFromString(*req.HTTPMethod)
		if err != nil {
			return domain.Provider{}, err
		}
		p.HTTPMethod = &method
	}
	if req.RequestFormat != nil {
		format, err := domain.ParseRequestFormatFromString(*req.RequestFormat)
		if err != nil {
			return domain.Provider{}, err
		}
		p.RequestFormat = &format
	}
	if req.TimeoutSeconds != nil {
		if *req.TimeoutSeconds < 1 {
			return domain.Provider{}, fmt.Errorf("%w: timeout seconds must be >= 1", domain.ErrValidation)
		}
		p.TimeoutSeconds = req.TimeoutSeconds
	}
	if req.MarkupPercent != nil {
		markup, err := decimal.NewFromString(strings.TrimSpace(*req.MarkupPercent))
		if err != nil {
			return domain.Provider{}, fmt.Errorf("%w: invalid markup percent", domain.ErrValidation)
		}
		p.MarkupPercent = markup
	}

	return p, nil
}

func toProviderResponse(p *domain.Provider) providerResponse {
	if p == nil {
		return providerResponse{}
	}

	resp := providerResponse{
		ID:              p.ID,
		Name:            p.Name,
		APIURL:          p.APIURL,
		Status:          p.Status.String(),
		Dialect:         p.Dialect().String(),
		APIType:         p.APIType,
		TimeoutSeconds:  p.TimeoutSeconds,
		MarkupPercent:   p.MarkupPercent.String(),
		BalanceCurrency: p.BalanceCurrency,
		BalanceSyncedAt: p.BalanceSyncedAt,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}

	if p.HTTPMethod != nil {
		method := p.HTTPMethod.String()
		resp.HTTPMethod = &method
	}
	if p.RequestFormat != nil {
		format := p.RequestFormat.String()
		resp.RequestFormat = &format
	}
	if p.Balance != nil {
		balance := p.Balance.String()
		resp.Balance = &balance
	}

	return resp
}
