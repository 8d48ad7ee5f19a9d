package catalog

import (
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

// MountRoutes registers catalog routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.listProducts)
		r.Get("/{productID}", h.getProduct)
		r.Group(func(r chi.Router) {
			r.Use(identity.Require)
			r.Post("/", h.createProduct)
			r.Put("/{productID}", h.updateProduct)
			r.Delete("/{productID}", h.deleteProduct)
		})
	})
	r.Route("/vendors", func(r chi.Router) {
		r.Get("/", h.listVendors)
		r.Group(func(r chi.Router) {
			r.Use(identity.Require)
			r.Post("/", h.createVendor)
			r.Get("/my-store", h.getMyStore)
			r.Put("/my-store", h.updateMyStore)
		})
		r.Get("/{vendorID}", h.getVendor)
	})
	r.Route("/inventory", func(r chi.Router) {
		r.Use(identity.Require)
		r.Get("/logs/{productID}", h.stockLogs)
		r.Get("/{productID}", h.getStock)
		r.Put("/{productID}", h.adjustStock)
	})
}

func parsePrice(raw string) *float64 {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	limit, _ := strconv.Atoi(query.Get("limit"))

	result, err := h.service.ListProducts(r.Context(), ListProductsInput{
		Search:   query.Get("search"),
		Category: query.Get("category"),
		VendorID: query.Get("vendorId"),
		MinPrice: parsePrice(query.Get("minPrice")),
		MaxPrice: parsePrice(query.Get("maxPrice")),
		InStock:  query.Get("inStock") == "true",
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		h.logger.Error("list products failed", slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

type createProductRequest struct {
	Name        string   `json:"name" validate:"required,min=2,max=200"`
	Description string   `json:"description" validate:"max=2000"`
	Category    string   `json:"category" validate:"max=100"`
	Price       float64  `json:"price" validate:"required,gt=0"`
	Stock       int      `json:"stock" validate:"gte=0"`
	Images      []string `json:"images" validate:"dive,url"`
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Invalid(w, err)
		return
	}

	id, _ := identity.FromContext(r.Context())
	product, err := h.service.CreateProduct(r.Context(), id, CreateProductInput{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		Stock:       req.Stock,
		Images:      req.Images,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

type updateProductRequest struct {
	Name        *string  `json:"name" validate:"omitempty,min=2,max=200"`
	Description *string  `json:"description" validate:"omitempty,max=2000"`
	Category    *string  `json:"category" validate:"omitempty,max=100"`
	Price       *float64 `json:"price" validate:"omitempty,gt=0"`
	Images      []string `json:"images" validate:"dive,url"`
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req updateProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Invalid(w, err)
		return
	}

	id, _ := identity.FromContext(r.Context())
	product, err := h.service.UpdateProduct(r.Context(), id, chi.URLParam(r, "productID"), ProductUpdates{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		Images:      req.Images,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.FromContext(r.Context())
	if err := h.service.DeleteProduct(r.Context(), id, chi.URLParam(r, "productID")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "product deleted"})
}

func (h *Handler) listVendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := h.service.ListVendors(r.Context())
	if err != nil {
		h.logger.Error("list vendors failed", slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, vendors)
}

func (h *Handler) getVendor(w http.ResponseWriter, r *http.Request) {
	vendor, err := h.service.GetVendor(r.Context(), chi.URLParam(r, "vendorID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, vendor)
}

type createVendorRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

func (h *Handler) createVendor(w http.ResponseWriter, r *http.Request) {
	var req createVendorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Invalid(w, err)
		return
	}

	id, _ := identity.FromContext(r.Context())
	vendor, err := h.service.CreateVendor(r.Context(), id, CreateVendorInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, vendor)
}

func (h *Handler) getMyStore(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.FromContext(r.Context())
	vendor, err := h.service.GetMyStore(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, vendor)
}

type updateVendorRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

func (h *Handler) updateMyStore(w http.ResponseWriter, r *http.Request) {
	var req updateVendorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Invalid(w, err)
		return
	}

	id, _ := identity.FromContext(r.Context())
	vendor, err := h.service.UpdateMyStore(r.Context(), id, UpdateVendorInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, vendor)
}

func (h *Handler) getStock(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.FromContext(r.Context())
	stock, err := h.service.GetStock(r.Context(), id, chi.URLParam(r, "productID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stock)
}

type adjustStockRequest struct {
	Change int    `json:"change" validate:"required"`
	Reason string `json:"reason" validate:"required,min=2,max=200"`
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	var req adjustStockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Invalid(w, err)
		return
	}

	id, _ := identity.FromContext(r.Context())
	product, err := h.service.AdjustStock(r.Context(), id, chi.URLParam(r, "productID"), AdjustStockInput{
		Change: req.Change,
		Reason: req.Reason,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) stockLogs(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.FromContext(r.Context())
	logs, err := h.service.StockLogs(r.Context(), id, chi.URLParam(r, "productID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, logs)
}
