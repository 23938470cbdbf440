package orders

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/larder-pos/larder/internal/platform/httpx"
	"github.com/larder-pos/larder/internal/shared"
	"github.com/larder-pos/larder/internal/stock"
)

// Handler wires HTTP endpoints for the orders module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the orders handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

type placeLineRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int64 `json:"quantity" validate:"required,gte=1"`
}

type placeOrderRequest struct {
	Lines []placeLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type orderListResponse struct {
	Orders     []Order           `json:"orders"`
	Pagination shared.Pagination `json:"pagination"`
}

// insufficiencyResponse extends the problem shape with the full
// per-item shortfall report.
type insufficiencyResponse struct {
	httpx.ProblemDetail
	Shortfalls []stock.Shortfall `json:"shortfalls"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = 50
	}
	orders, total, err := h.service.List(r.Context(), shared.ListFilters{Page: page, Limit: limit})
	if err != nil {
		h.respondError(w, err)
		return
	}
	if orders == nil {
		orders = []Order{}
	}
	httpx.JSON(w, http.StatusOK, orderListResponse{Orders: orders, Pagination: shared.NewPagination(page, limit, total)})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid order id")
		return
	}
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) Place(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	placeReq := PlaceRequest{IdempotencyKey: r.Header.Get("Idempotency-Key")}
	for _, line := range req.Lines {
		placeReq.Lines = append(placeReq.Lines, LineRequest{ProductID: line.ProductID, Quantity: line.Quantity})
	}

	order, err := h.service.Place(r.Context(), placeReq)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) Discard(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid order id")
		return
	}
	order, err := h.service.Discard(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid order id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "order deleted"})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var insufficient *stock.InsufficiencyError
	switch {
	case errors.As(err, &insufficient):
		httpx.JSON(w, http.StatusConflict, insufficiencyResponse{
			ProblemDetail: httpx.ProblemDetail{
				Title:  "Insufficient Stock",
				Status: http.StatusConflict,
				Detail: insufficient.Error(),
			},
			Shortfalls: insufficient.Shortfalls,
		})
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrProductNoIngredients),
		errors.Is(err, ErrDanglingIngredient):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrProductNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrAlreadyDiscarded), errors.Is(err, ErrNotDiscarded),
		errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, stock.ErrContention):
		w.Header().Set("Retry-After", "1")
		httpx.Problem(w, http.StatusServiceUnavailable, "Contention", err.Error())
	case errors.Is(err, ErrInconsistent):
		h.logger.Error("orders handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Inconsistent State", err.Error())
	default:
		h.logger.Error("orders handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
