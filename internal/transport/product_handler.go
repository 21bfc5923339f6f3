package transport

import (
	"errors"
	"net/http"

	"marketqa/internal/domain"
	"marketqa/internal/middleware"
	"marketqa/internal/repository"
	"marketqa/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SubmitProductRequest is the seller product-submission payload.
type SubmitProductRequest struct {
	Name           string                 `json:"name" validate:"required"`
	Description    string                 `json:"description"`
	Price          float64                `json:"price" validate:"required,gt=0"`
	CategoryID     string                 `json:"category_id" validate:"required,uuid"`
	OptionOneLabel *string                `json:"option_one_label,omitempty"`
	OptionTwoLabel *string                `json:"option_two_label,omitempty"`
	ImageURLs      []string               `json:"image_urls" validate:"dive,url"`
	Variants       []SubmitVariantRequest `json:"variants" validate:"dive"`
}

// SubmitVariantRequest is one variant row in a submission.
type SubmitVariantRequest struct {
	OptionOneValue *string `json:"option_one_value,omitempty"`
	OptionTwoValue *string `json:"option_two_value,omitempty"`
	Price          float64 `json:"price" validate:"required,gt=0"`
	Stock          int     `json:"stock" validate:"gte=0"`
}

// SubmitProductResponse returns the created product together with its freshly
// opened assessment.
type SubmitProductResponse struct {
	Product    *domain.Product    `json:"product"`
	Assessment *domain.Assessment `json:"assessment"`
}

// ProductHandler handles HTTP requests for the product catalog.
type ProductHandler struct {
	productService service.ProductService
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		logger:         logger,
	}
}

// RegisterRoutes registers all product routes
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/categories", h.ListCategories)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Post("/", h.Submit)
			r.Get("/mine", h.ListMine)
			r.Get("/{id}", h.Get)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(adminMiddleware)
			r.Delete("/{id}", h.Delete)
		})
	})
}

// Submit handles the seller product-submission flow.
func (h *ProductHandler) Submit(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := requestUserID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SubmitProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Product submission validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid category ID")
		return
	}

	submission := service.ProductSubmission{
		Name:           req.Name,
		Description:    req.Description,
		Price:          req.Price,
		CategoryID:     categoryID,
		OptionOneLabel: req.OptionOneLabel,
		OptionTwoLabel: req.OptionTwoLabel,
		ImageURLs:      req.ImageURLs,
	}
	for _, v := range req.Variants {
		submission.Variants = append(submission.Variants, service.VariantSubmission{
			OptionOneValue: v.OptionOneValue,
			OptionTwoValue: v.OptionTwoValue,
			Price:          v.Price,
			Stock:          v.Stock,
		})
	}

	product, assessment, err := h.productService.Submit(r.Context(), sellerID, submission)
	if err != nil {
		h.logger.Error("Product submission failed", zap.Error(err))

		switch {
		case errors.Is(err, service.ErrUnknownCategory):
			middleware.RespondWithError(w, http.StatusBadRequest, "unknown category")
		case errors.Is(err, service.ErrStoreUnavailable):
			middleware.RespondWithError(w, http.StatusServiceUnavailable, "store unavailable, retry later")
		default:
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to submit product")
		}
		return
	}

	h.logger.Info("Product submitted", zap.String("product_id", product.ID.String()))
	middleware.RespondWithJSON(w, http.StatusCreated, SubmitProductResponse{
		Product:    product,
		Assessment: assessment,
	})
}

// Get handles fetching one product.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	product, err := h.productService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("Failed to get product", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to get product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// ListMine handles listing the authenticated seller's products.
func (h *ProductHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := requestUserID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	page, pageSize := parsePagination(r)

	products, total, err := h.productService.ListBySeller(r.Context(), sellerID, page, pageSize)
	if err != nil {
		h.logger.Error("Failed to list products", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]any{
		"products": products,
		"total":    total,
		"page":     page,
	})
}

// ListCategories handles listing all categories.
func (h *ProductHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.productService.ListCategories(r.Context())
	if err != nil {
		h.logger.Error("Failed to list categories", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, categories)
}

// Delete handles soft-deleting a product. Admin only.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	if err := h.productService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("Failed to delete product", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to delete product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "product deleted"})
}
