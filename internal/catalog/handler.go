package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/larder-pos/larder/internal/platform/httpx"
	"github.com/larder-pos/larder/internal/shared"
)

// Handler wires HTTP endpoints for the product catalog.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the catalog handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

type ingredientRequest struct {
	StockItemID      int64   `json:"stock_item_id" validate:"required,gt=0"`
	Unit             string  `json:"unit" validate:"required"`
	QuantityRequired float64 `json:"quantity_required" validate:"gte=0"`
}

type productRequest struct {
	Name        string              `json:"name" validate:"required"`
	Ingredients []ingredientRequest `json:"ingredients" validate:"required,min=1,dive"`
}

type productResponse struct {
	Product
	DerivedCost float64 `json:"derived_cost"`
}

type productListResponse struct {
	Products   []productResponse `json:"products"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = 50
	}

	products, total, err := h.service.List(r.Context(), shared.ListFilters{
		Page:   page,
		Limit:  limit,
		Search: r.URL.Query().Get("search"),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	resp := productListResponse{Products: make([]productResponse, 0, len(products)), Pagination: shared.NewPagination(page, limit, total)}
	for _, p := range products {
		resp.Products = append(resp.Products, productResponse{Product: p, DerivedCost: p.Cost()})
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, productResponse{Product: product, DerivedCost: product.Cost()})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	product, err := h.service.Create(r.Context(), productFromRequest(req))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, productResponse{Product: product, DerivedCost: product.Cost()})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	product, err := h.service.Update(r.Context(), id, productFromRequest(req))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, productResponse{Product: product, DerivedCost: product.Cost()})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "product deleted"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (productRequest, bool) {
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return req, false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return req, false
	}
	return req, true
}

func productFromRequest(req productRequest) Product {
	p := Product{Name: req.Name, Ingredients: make([]Ingredient, 0, len(req.Ingredients))}
	for _, ing := range req.Ingredients {
		p.Ingredients = append(p.Ingredients, Ingredient{
			StockItemID:      ing.StockItemID,
			Unit:             ing.Unit,
			QuantityRequired: ing.QuantityRequired,
		})
	}
	return p
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrUnknownStockItem):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidProduct):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("catalog handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
