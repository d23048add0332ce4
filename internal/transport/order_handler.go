package transport

import (
	"net/http"

	"furniture-store/internal/domain"
	"furniture-store/internal/middleware"
	"furniture-store/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// OrderItemsRequest carries the lines of an order.
type OrderItemsRequest struct {
	Items []domain.OrderItem `json:"items" validate:"required,min=1,dive"`
}

// OrderStatusRequest carries the target status of an order.
type OrderStatusRequest struct {
	Status domain.OrderStatus `json:"status" validate:"required,order_status"`
}

// OrderHandler records the caller's orders.
type OrderHandler struct {
	orders service.OrderService
	logger *zap.Logger
}

func NewOrderHandler(orders service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

// RegisterRoutes mounts /api/orders behind authMiddleware.
func (h *OrderHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Post("/{id}/items", h.AddItems)
		r.Patch("/{id}/status", h.UpdateStatus)
	})
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}
	var order domain.Order
	if err := middleware.DecodeAndValidate(w, r, &order); err != nil {
		middleware.RespondWithRequestError(w, err)
		return
	}

	stored, err := h.orders.Create(r.Context(), owner, order)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, stored)
}

func (h *OrderHandler) AddItems(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req OrderItemsRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		middleware.RespondWithRequestError(w, err)
		return
	}

	order, err := h.orders.AddItems(r.Context(), owner, id, req.Items)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, order)
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req OrderStatusRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		middleware.RespondWithRequestError(w, err)
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), owner, id, req.Status)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	order, err := h.orders.Get(r.Context(), owner, id)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}
	orders, err := h.orders.ListByUser(r.Context(), owner)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	middleware.RespondWithJSON(w, http.StatusOK, orders)
}
