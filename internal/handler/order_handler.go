package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/panelkit/smm-engine/internal/domain"
	"github.com/panelkit/smm-engine/internal/repository"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100
)

type OrderService interface {
	Place(ctx context.Context, o *domain.Order) (*domain.Order, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, params repository.OrderListParams) ([]domain.Order, int64, error)
	Cancel(ctx context.Context, id string) error
	EditLink(ctx context.Context, id string, link string) error
	Resubmit(ctx context.Context, id string) (*domain.Order, error)
}

type AttemptLister interface {
	ListByOrder(ctx context.Context, orderID string) ([]domain.ForwardAttempt, error)
}

type OrderHandler struct {
	service  OrderService
	attempts AttemptLister
}

func NewOrderHandler(service OrderService, attempts AttemptLister) (*OrderHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("order service is required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("attempt lister is required")
	}
	return &OrderHandler{service: service, attempts: attempts}, nil
}

func RegisterOrderRoutes(router fiber.Router, service OrderService, attempts AttemptLister) error {
	h, err := NewOrderHandler(service, attempts)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/orders", h.PlaceOrder)
	v1.Get("/orders/:id", h.GetOrder)
	v1.Get("/orders/:id/attempts", h.ListAttempts)
	v1.Post("/orders/:id/cancel", h.CancelOrder)
	v1.Post("/orders/:id/resubmit", h.ResubmitOrder)
	v1.Post("/orders/:id/link", h.EditOrderLink)
	v1.Get("/orders", h.ListOrders)

	return nil
}

type placeOrderRequest struct {
	CorrelationID  string  `json:"correlationId"`
	IdempotencyKey *string `json:"idempotencyKey"`
	ServiceID      string  `json:"serviceId"`
	Link           string  `json:"link"`
	Quantity       int     `json:"quantity"`
	Runs           *int    `json:"runs,omitempty"`
	Interval       *int    `json:"interval,omitempty"`
	MaxRetries     *int    `json:"maxRetries,omitempty"`
}

type editLinkRequest struct {
	Link string `json:"link"`
}

type orderResponse struct {
	ID              string     `json:"id"`
	CorrelationID   string     `json:"correlationId"`
	IdempotencyKey  *string    `json:"idempotencyKey,omitempty"`
	ServiceID       string     `json:"serviceId"`
	ProviderID      string     `json:"providerId"`
	Link            string     `json:"link"`
	Quantity        int        `json:"quantity"`
	Runs            *int       `json:"runs,omitempty"`
	Interval        *int       `json:"interval,omitempty"`
	Charge          string     `json:"charge"`
	Currency        string     `json:"currency"`
	Status          string     `json:"status"`
	ProviderOrderID *string    `json:"providerOrderId,omitempty"`
	StartCount      *int       `json:"startCount,omitempty"`
	Remains         *int       `json:"remains,omitempty"`
	AttemptCount    int        `json:"attemptCount"`
	MaxRetries      int        `json:"maxRetries"`
	NextRetryAt     *time.Time `json:"nextRetryAt,omitempty"`
	LastError       *string    `json:"lastError,omitempty"`
	CreatedAt       time.Time  `json:"createdAt,omitempty"`
	UpdatedAt       time.Time  `json:"updatedAt,omitempty"`
}

type listOrdersResponse struct {
	Data []orderResponse `json:"data"`
	Meta listMeta        `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

type attemptResponse struct {
	ID            string    `json:"id"`
	Operation     string    `json:"operation"`
	AttemptNumber int       `json:"attemptNumber"`
	StatusCode    *int      `json:"statusCode,omitempty"`
	Error         *string   `json:"error,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (h *OrderHandler) PlaceOrder(c *fiber.Ctx) error {
	var req placeOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	order := requestToDomainOrder(req, requestCorrelationID(c))

	placed, err := h.service.Place(c.Context(), &order)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(toOrderResponse(placed))
}

func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	order, err := h.service.GetByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toOrderResponse(order))
}

func (h *OrderHandler) ListAttempts(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if _, err := h.service.GetByID(c.Context(), id); err != nil {
		return toHTTPError(err)
	}

	attempts, err := h.attempts.ListByOrder(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]attemptResponse, 0, len(attempts))
	for _, attempt := range attempts {
		responses = append(responses, attemptResponse{
			ID:            attempt.ID,
			Operation:     attempt.Operation,
			AttemptNumber: attempt.AttemptNumber,
			StatusCode:    attempt.StatusCode,
			Error:         attempt.Error,
			CreatedAt:     attempt.CreatedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": responses})
}

func (h *OrderHandler) CancelOrder(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if err := h.service.Cancel(c.Context(), id); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"orderId": id,
		"status":  domain.OrderStatusCancelled.String(),
	})
}

func (h *OrderHandler) ResubmitOrder(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	order, err := h.service.Resubmit(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(toOrderResponse(order))
}

func (h *OrderHandler) EditOrderLink(c *fiber.Ctx) error {
	var req editLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	id := strings.TrimSpace(c.Params("id"))
	if err := h.service.EditLink(c.Context(), id, req.Link); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"orderId": id,
		"link":    strings.TrimSpace(req.Link),
	})
}

func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	params, err := parseOrderListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	orders, total, err := h.service.List(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]orderResponse, 0, len(orders))
	for i := range orders {
		responses = append(responses, toOrderResponse(&orders[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listOrdersResponse{
		Data: responses,
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func parseOrderListParams(c *fiber.Ctx) (repository.OrderListParams, error) {
	params := repository.OrderListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.OrderListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.OrderListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseOrderStatusFromString(rawStatus)
		if err != nil {
			return repository.OrderListParams{}, err
		}
		params.Status = &status
	}

	if rawProvider := strings.TrimSpace(c.Query("providerId")); rawProvider != "" {
		params.ProviderID = &rawProvider
	}

	from, err := parseRFC3339Query(c.Query("from"), "from")
	if err != nil {
		return repository.OrderListParams{}, err
	}
	to, err := parseRFC3339Query(c.Query("to"), "to")
	if err != nil {
		return repository.OrderListParams{}, err
	}
	params.From = from
	params.To = to

	return params, nil
}

func parseRFC3339Query(value string, field string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC3339", domain.ErrValidation, field)
	}
	return &t, nil
}

func requestToDomainOrder(req placeOrderRequest, fallbackCorrelationID string) domain.Order {
	order := domain.Order{
		CorrelationID:  strings.TrimSpace(req.CorrelationID),
		IdempotencyKey: req.IdempotencyKey,
		ServiceID:      strings.TrimSpace(req.ServiceID),
		Link:           strings.TrimSpace(req.Link),
		Quantity:       req.Quantity,
		Runs:           req.Runs,
		Interval:       req.Interval,
	}

	if order.CorrelationID == "" {
		order.CorrelationID = strings.TrimSpace(fallbackCorrelationID)
	}
	if req.MaxRetries != nil {
		order.MaxRetries = *req.MaxRetries
	}

	return order
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value
	}
	if value, ok := c.Locals("requestid").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func toOrderResponse(o *domain.Order) orderResponse {
	if o == nil {
		return orderResponse{}
	}

	return orderResponse{
		ID:              o.ID,
		CorrelationID:   o.CorrelationID,
		IdempotencyKey:  o.IdempotencyKey,
		ServiceID:       o.ServiceID,
		ProviderID:      o.ProviderID,
		Link:            o.Link,
		Quantity:        o.Quantity,
		Runs:            o.Runs,
		Interval:        o.Interval,
		Charge:          o.Charge.String(),
		Currency:        o.Currency,
		Status:          o.Status.String(),
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

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
