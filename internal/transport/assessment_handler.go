package transport

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"marketqa/internal/domain"
	"marketqa/internal/middleware"
	"marketqa/internal/repository"
	"marketqa/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OpenAssessmentRequest opens an assessment for a product that does not have
// one yet (normally the submission flow opens it automatically).
type OpenAssessmentRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
}

// TransitionAssessmentRequest carries an admin action and its audit payload.
type TransitionAssessmentRequest struct {
	Action         string `json:"action" validate:"required"`
	Description    string `json:"description"`
	VendorCategory string `json:"vendor_category"`
	AdminCategory  string `json:"admin_category"`
	Details        string `json:"details"`
}

// ReviewListResponse wraps a review view page.
type ReviewListResponse struct {
	Reviews []*domain.AssessmentView `json:"reviews"`
	Total   int                      `json:"total"`
}

// AssessmentHandler handles HTTP requests for the QA review workflow.
type AssessmentHandler struct {
	assessmentService service.AssessmentService
	logger            *zap.Logger
}

// NewAssessmentHandler creates a new AssessmentHandler
func NewAssessmentHandler(assessmentService service.AssessmentService, logger *zap.Logger) *AssessmentHandler {
	return &AssessmentHandler{
		assessmentService: assessmentService,
		logger:            logger,
	}
}

// RegisterRoutes registers all assessment routes
func (h *AssessmentHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/assessments", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Post("/{id}/resubmit", h.Resubmit)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(adminMiddleware)
			r.Post("/", h.Open)
			r.Post("/{id}/transition", h.Transition)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/api/sellers/me/reviews", h.SellerReviews)
	})

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(adminMiddleware)
		r.Get("/api/reviews", h.AdminReviews)
	})
}

// Open handles creating an assessment for an existing product.
func (h *AssessmentHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req OpenAssessmentRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	var createdBy *uuid.UUID
	if actorID, ok := requestUserID(r); ok {
		createdBy = &actorID
	}

	assessment, err := h.assessmentService.Open(r.Context(), productID, createdBy)
	if err != nil {
		h.logger.Debug("Failed to open assessment", zap.Error(err))
		h.respondAssessmentError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, assessment)
}

// Transition handles an admin review action against an assessment.
func (h *AssessmentHandler) Transition(w http.ResponseWriter, r *http.Request) {
	assessmentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid assessment ID")
		return
	}

	var req TransitionAssessmentRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	action := domain.Action(req.Action)
	if !action.Valid() {
		middleware.RespondWithError(w, http.StatusBadRequest, "unknown action")
		return
	}

	var actorID *uuid.UUID
	if id, ok := requestUserID(r); ok {
		actorID = &id
	}

	assessment, err := h.assessmentService.Transition(r.Context(), assessmentID, service.TransitionRequest{
		Action:         action,
		ActorID:        actorID,
		Description:    req.Description,
		VendorCategory: req.VendorCategory,
		AdminCategory:  req.AdminCategory,
		Details:        req.Details,
	})
	if err != nil {
		h.logger.Debug("Transition failed",
			zap.String("assessment_id", assessmentID.String()),
			zap.String("action", req.Action),
			zap.Error(err),
		)
		h.respondAssessmentError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, assessment)
}

// Resubmit handles a seller sending a revised product back into digital
// review.
func (h *AssessmentHandler) Resubmit(w http.ResponseWriter, r *http.Request) {
	assessmentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid assessment ID")
		return
	}

	sellerID, ok := requestUserID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	assessment, err := h.assessmentService.ResubmitAsSeller(r.Context(), assessmentID, sellerID)
	if err != nil {
		h.logger.Debug("Resubmit failed",
			zap.String("assessment_id", assessmentID.String()),
			zap.Error(err),
		)
		h.respondAssessmentError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, assessment)
}

// SellerReviews handles the seller-scoped dashboard view.
func (h *AssessmentHandler) SellerReviews(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := requestUserID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	filter, err := parseReviewFilter(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	views, total, err := h.assessmentService.SellerReviews(r.Context(), sellerID, filter)
	if err != nil {
		h.logger.Error("Failed to list seller reviews", zap.Error(err))
		h.respondAssessmentError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ReviewListResponse{Reviews: views, Total: total})
}

// AdminReviews handles the admin-scoped dashboard view.
func (h *AssessmentHandler) AdminReviews(w http.ResponseWriter, r *http.Request) {
	filter, err := parseReviewFilter(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	views, total, err := h.assessmentService.AdminReviews(r.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list admin reviews", zap.Error(err))
		h.respondAssessmentError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ReviewListResponse{Reviews: views, Total: total})
}

// respondAssessmentError maps workflow errors onto specific HTTP responses so
// the review UI can render them as actionable messages.
func (h *AssessmentHandler) respondAssessmentError(w http.ResponseWriter, err error) {
	var illegal *service.IllegalTransitionError

	switch {
	case errors.Is(err, repository.ErrAssessmentNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "assessment not found")
	case errors.Is(err, repository.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, repository.ErrDuplicateAssessment):
		middleware.RespondWithError(w, http.StatusConflict, "product already has an assessment")
	case errors.Is(err, service.ErrAlreadyTerminal):
		middleware.RespondWithError(w, http.StatusConflict, "assessment is already in a terminal state")
	case errors.As(err, &illegal):
		middleware.RespondWithError(w, http.StatusConflict, illegal.Error())
	case errors.Is(err, service.ErrNotProductOwner):
		middleware.RespondWithError(w, http.StatusForbidden, "assessment does not belong to this seller")
	case errors.Is(err, service.ErrStoreUnavailable):
		middleware.RespondWithError(w, http.StatusServiceUnavailable, "store unavailable, retry later")
	default:
		middleware.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

// requestUserID resolves the authenticated user's UUID from the request
// context.
func requestUserID(r *http.Request) (uuid.UUID, bool) {
	idStr, ok := middleware.GetUserID(r.Context())
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// parsePagination reads page/page_size query params with sane defaults.
func parsePagination(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

// parseReviewFilter reads the optional status/date-range/pagination filters.
func parseReviewFilter(r *http.Request) (repository.ReviewFilter, error) {
	filter := repository.ReviewFilter{}
	q := r.URL.Query()

	if raw := q.Get("status"); raw != "" {
		status := domain.AssessmentStatus(raw)
		if !status.Valid() {
			return filter, errors.New("unknown status filter")
		}
		filter.Status = &status
	}
	if raw := q.Get("submitted_after"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errors.New("submitted_after must be RFC 3339")
		}
		filter.SubmittedAfter = &t
	}
	if raw := q.Get("submitted_before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errors.New("submitted_before must be RFC 3339")
		}
		filter.SubmittedBefore = &t
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 200 {
			return filter, errors.New("limit must be between 1 and 200")
		}
		filter.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, errors.New("offset must be non-negative")
		}
		filter.Offset = offset
	}

	return filter, nil
}
