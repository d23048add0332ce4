package transport

import (
	"net/http"
	"strconv"

	"furniture-store/internal/domain"
	"furniture-store/internal/middleware"
	"furniture-store/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProductHandler serves the catalog.
type ProductHandler struct {
	products service.ProductService
	logger   *zap.Logger
}

func NewProductHandler(products service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{products: products, logger: logger}
}

// RegisterRoutes mounts /api/products. Reads are public; writes need
// authentication followed by the admin check.
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware, adminMiddleware)
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})
	})
}

// List handles GET /api/products?category=&featured=&in_stock=&q=&sort=
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := domain.ProductQuery{
		Category: domain.Category(query.Get("category")),
		Search:   query.Get("q"),
		Sort:     domain.SortOrder(query.Get("sort")),
	}
	var err error
	if q.FeaturedOnly, err = boolParam(query.Get("featured")); err != nil {
		middleware.RespondWithRequestError(w, domain.NewValidationError("featured", "featured must be true or false"))
		return
	}
	if q.InStockOnly, err = boolParam(query.Get("in_stock")); err != nil {
		middleware.RespondWithRequestError(w, domain.NewValidationError("in_stock", "in_stock must be true or false"))
		return
	}

	products, err := h.products.List(r.Context(), q)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	product, err := h.products.Get(r.Context(), id)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var fields domain.ProductFields
	if err := middleware.DecodeAndValidate(w, r, &fields); err != nil {
		middleware.RespondWithRequestError(w, err)
		return
	}

	adminID, _ := middleware.GetUserID(r.Context())
	product, err := h.products.Create(r.Context(), fields, adminID)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var fields domain.ProductFields
	if err := middleware.DecodeAndValidate(w, r, &fields); err != nil {
		middleware.RespondWithRequestError(w, err)
		return
	}

	product, err := h.products.Update(r.Context(), id, fields)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.products.Delete(r.Context(), id); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// pathID parses the {id} URL parameter, answering 400 when it is not a uuid.
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithRequestError(w, domain.NewValidationError("id", "invalid id"))
		return uuid.Nil, false
	}
	return id, true
}

func boolParam(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}
