package orders

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/markato-labs/markato/internal/identity"
	"github.com/markato-labs/markato/internal/platform/httpx"
)

type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers order and payment routes. Everything here
// requires a propagated identity.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Use(identity.Require)
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{orderID}", h.get)
		r.Put("/{orderID}", h.updateStatus)
		r.Delete("/{orderID}", h.cancel)
	})
	r.Route("/payments", func(r chi.Router) {
		r.Use(identity.Require)
		r.Post("/process", h.processPayment)
		r.Get("/{paymentID}", h.getPayment)
		r.Post("/refund/{paymentID}", h.refundPayment)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	limit, _ := strconv.Atoi(query.Get("limit"))

	id, _ := identity.FromContext(r.Context())
	result, err := h.service.List(r.Context(), id, ListInput{
		Status: query.Get("status"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		h.logger.Error("list orders failed", slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

type itemRequest struct {
	ProductID string `json:"productId" validate:"required,uuid4"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type createOrderRequest struct {
	Items           []itemRequest   `json:"items" validate:"required,min=1,dive"`
	ShippingAddress json.RawMessage `json:"shippingAddress" validate:"required"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Invalid(w, err)
		return
	}

	items := make([]ItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, ItemInput{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	id, _ := identity.FromContext(r.Context())
	order, err := h.service.Create(r.Context(), id, CreateInput{
		Items:           items,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.FromContext(r.Context())
	order, err := h.service.Get(r.Context(), id, chi.URLParam(r, "orderID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Invalid(w, err)
		return
	}

	id, _ := identity.FromContext(r.Context())
	order, err := h.service.UpdateStatus(r.Context(), id, chi.URLParam(r, "orderID"), req.Status)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.FromContext(r.Context())
	order, err := h.service.Cancel(r.Context(), id, chi.URLParam(r, "orderID"))
	if errors.Is(err, ErrCannotCancel) {
		httpx.Error(w, http.StatusBadRequest, "Cannot cancel order")
		return
	}
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

type processPaymentRequest struct {
	OrderID string  `json:"orderId" validate:"required,uuid4"`
	Method  string  `json:"method" validate:"required,oneof=CREDIT_CARD DEBIT_CARD PAYPAL STRIPE"`
	Amount  float64 `json:"amount" validate:"required,gt=0"`
}

func (h *Handler) processPayment(w http.ResponseWriter, r *http.Request) {
	var req processPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Invalid(w, err)
		return
	}

	payment, err := h.service.ProcessPayment(r.Context(), ProcessPaymentInput{
		OrderID: req.OrderID,
		Method:  PaymentMethod(req.Method),
		Amount:  req.Amount,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.FromContext(r.Context())
	payment, err := h.service.GetPayment(r.Context(), id, chi.URLParam(r, "paymentID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

func (h *Handler) refundPayment(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.FromContext(r.Context())
	payment, err := h.service.RefundPayment(r.Context(), id, chi.URLParam(r, "paymentID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}
