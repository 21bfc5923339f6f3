package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"marketqa/internal/domain"
	"marketqa/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrIllegalTransition matches any *IllegalTransitionError via errors.Is.
	ErrIllegalTransition = errors.New("illegal transition")
	ErrAlreadyTerminal   = errors.New("assessment is already terminal")
	// ErrStoreUnavailable wraps transient persistence failures. The whole
	// Transition call is atomic, so callers may retry it as-is.
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrNotProductOwner  = errors.New("assessment does not belong to this seller")
)

// IllegalTransitionError reports an action fired from a state that does not
// admit it, including the case where a concurrent actor advanced the state
// first.
type IllegalTransitionError struct {
	From   domain.AssessmentStatus
	Action domain.Action
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition: action %q not allowed from status %q", e.Action, e.From)
}

func (e *IllegalTransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}

func storeUnavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}

// TransitionRequest carries an action and the audit payload it writes.
// Description feeds approval/rejection/revision records, Details feeds
// logistics records, and the category labels only apply to rejections.
type TransitionRequest struct {
	Action         domain.Action
	ActorID        *uuid.UUID
	Description    string
	VendorCategory string
	AdminCategory  string
	Details        string
}

// AssessmentService is the transition engine: the only legal entry point for
// creating assessments and moving them between states. Every Transition call
// is one transaction covering the status swap, the audit insert, and the
// product status sync; a failure anywhere leaves all three untouched.
type AssessmentService interface {
	Open(ctx context.Context, productID uuid.UUID, createdBy *uuid.UUID) (*domain.Assessment, error)
	Transition(ctx context.Context, assessmentID uuid.UUID, req TransitionRequest) (*domain.Assessment, error)
	ResubmitAsSeller(ctx context.Context, assessmentID, sellerID uuid.UUID) (*domain.Assessment, error)
	GetByProduct(ctx context.Context, productID uuid.UUID) (*domain.Assessment, error)
	SellerReviews(ctx context.Context, sellerID uuid.UUID, filter repository.ReviewFilter) ([]*domain.AssessmentView, int, error)
	AdminReviews(ctx context.Context, filter repository.ReviewFilter) ([]*domain.AssessmentView, int, error)
	// Teardown removes an assessment and its audit records. Cleanup path for
	// product deletion and tests; never part of the review workflow.
	Teardown(ctx context.Context, productID uuid.UUID) error
}

type assessmentService struct {
	db          *sql.DB
	assessments repository.AssessmentRepository
	products    repository.ProductRepository
	reviews     repository.ReviewQueryRepository
	logger      *zap.Logger
}

// NewAssessmentService creates a new instance of AssessmentService. It takes
// the raw handle because transitions open their own transactions.
func NewAssessmentService(db *sql.DB, logger *zap.Logger) AssessmentService {
	return &assessmentService{
		db:          db,
		assessments: repository.NewAssessmentRepository(db),
		products:    repository.NewProductRepository(db),
		reviews:     repository.NewReviewQueryRepository(db),
		logger:      logger,
	}
}

// Open creates the assessment for a freshly submitted product in the initial
// digital-review state. A product can hold at most one assessment; a second
// call returns repository.ErrDuplicateAssessment.
func (s *assessmentService) Open(ctx context.Context, productID uuid.UUID, createdBy *uuid.UUID) (*domain.Assessment, error) {
	if _, err := s.products.FindByID(ctx, productID); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, err
		}
		return nil, storeUnavailable("load product", err)
	}

	now := time.Now().UTC()
	assessment := &domain.Assessment{
		ID:          uuid.New(),
		ProductID:   productID,
		Status:      domain.StatusPendingDigitalReview,
		SubmittedAt: now,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.assessments.Create(ctx, assessment); err != nil {
		if errors.Is(err, repository.ErrDuplicateAssessment) {
			return nil, err
		}
		return nil, storeUnavailable("create assessment", err)
	}

	s.logger.Info("assessment opened",
		zap.String("assessment_id", assessment.ID.String()),
		zap.String("product_id", productID.String()),
	)

	return assessment, nil
}

// Transition applies one action to an assessment. The status write is a
// compare-and-swap against the status read at the start of the transaction,
// so of two concurrent actors exactly one wins and the loser sees an
// IllegalTransitionError.
func (s *assessmentService) Transition(ctx context.Context, assessmentID uuid.UUID, req TransitionRequest) (*domain.Assessment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeUnavailable("begin transaction", err)
	}
	defer tx.Rollback()

	assessments := repository.NewAssessmentRepository(tx)
	audits := repository.NewAuditRepository(tx)
	products := repository.NewProductRepository(tx)

	assessment, err := assessments.FindByID(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, repository.ErrAssessmentNotFound) {
			return nil, err
		}
		return nil, storeUnavailable("load assessment", err)
	}

	if assessment.Status.Terminal() {
		return nil, fmt.Errorf("%w: status is %q", ErrAlreadyTerminal, assessment.Status)
	}

	rule, ok := domain.RuleFor(assessment.Status, req.Action)
	if !ok {
		return nil, &IllegalTransitionError{From: assessment.Status, Action: req.Action}
	}

	now := time.Now().UTC()
	extra := repository.StatusExtra{}
	switch rule.To {
	case domain.StatusVerified:
		extra.VerifiedAt = &now
	case domain.StatusForRevision:
		extra.RevisionRequestedAt = &now
	}

	swapped, err := assessments.UpdateStatusFrom(ctx, assessmentID, assessment.Status, rule.To, extra)
	if err != nil {
		return nil, storeUnavailable("swap status", err)
	}
	if !swapped {
		// The status moved between our read and the conditional update: a
		// concurrent actor already advanced this assessment.
		return nil, &IllegalTransitionError{From: assessment.Status, Action: req.Action}
	}

	switch rule.Audit {
	case domain.AuditApproval:
		err = audits.CreateApproval(ctx, &domain.ApprovalRecord{
			ID:           uuid.New(),
			AssessmentID: assessmentID,
			Description:  req.Description,
			CreatedBy:    req.ActorID,
			CreatedAt:    now,
		})
	case domain.AuditRejection:
		err = audits.CreateRejection(ctx, &domain.RejectionRecord{
			ID:             uuid.New(),
			AssessmentID:   assessmentID,
			Description:    req.Description,
			VendorCategory: req.VendorCategory,
			AdminCategory:  req.AdminCategory,
			CreatedBy:      req.ActorID,
			CreatedAt:      now,
		})
	case domain.AuditRevision:
		err = audits.CreateRevision(ctx, &domain.RevisionRecord{
			ID:           uuid.New(),
			AssessmentID: assessmentID,
			Description:  req.Description,
			CreatedBy:    req.ActorID,
			CreatedAt:    now,
		})
	case domain.AuditLogistics:
		err = audits.CreateLogistics(ctx, &domain.LogisticsRecord{
			ID:           uuid.New(),
			AssessmentID: assessmentID,
			Details:      req.Details,
			CreatedBy:    req.ActorID,
			CreatedAt:    now,
		})
	}
	if err != nil {
		return nil, storeUnavailable("append audit record", err)
	}

	if err := products.SetApprovalStatus(ctx, assessment.ProductID, domain.Project(rule.To)); err != nil {
		return nil, storeUnavailable("sync product status", err)
	}

	updated, err := assessments.FindByID(ctx, assessmentID)
	if err != nil {
		return nil, storeUnavailable("reload assessment", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storeUnavailable("commit transaction", err)
	}

	s.logger.Info("assessment transition applied",
		zap.String("assessment_id", assessmentID.String()),
		zap.String("action", string(req.Action)),
		zap.String("from", string(assessment.Status)),
		zap.String("to", string(rule.To)),
	)

	return updated, nil
}

// ResubmitAsSeller fires the resubmit action on behalf of a seller after
// verifying the assessment's product belongs to them.
func (s *assessmentService) ResubmitAsSeller(ctx context.Context, assessmentID, sellerID uuid.UUID) (*domain.Assessment, error) {
	assessment, err := s.assessments.FindByID(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, repository.ErrAssessmentNotFound) {
			return nil, err
		}
		return nil, storeUnavailable("load assessment", err)
	}

	product, err := s.products.FindByID(ctx, assessment.ProductID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, err
		}
		return nil, storeUnavailable("load product", err)
	}
	if product.SellerID != sellerID {
		return nil, ErrNotProductOwner
	}

	return s.Transition(ctx, assessmentID, TransitionRequest{
		Action:  domain.ActionResubmit,
		ActorID: &sellerID,
	})
}

// GetByProduct returns the product's assessment, or (nil, nil) when the
// product has none.
func (s *assessmentService) GetByProduct(ctx context.Context, productID uuid.UUID) (*domain.Assessment, error) {
	assessment, err := s.assessments.FindByProduct(ctx, productID)
	if err != nil {
		return nil, storeUnavailable("load assessment", err)
	}
	return assessment, nil
}

// SellerReviews serves the seller-scoped dashboard view.
func (s *assessmentService) SellerReviews(ctx context.Context, sellerID uuid.UUID, filter repository.ReviewFilter) ([]*domain.AssessmentView, int, error) {
	views, total, err := s.reviews.SellerView(ctx, sellerID, filter)
	if err != nil {
		return nil, 0, storeUnavailable("query seller reviews", err)
	}
	return views, total, nil
}

// AdminReviews serves the admin-scoped dashboard view.
func (s *assessmentService) AdminReviews(ctx context.Context, filter repository.ReviewFilter) ([]*domain.AssessmentView, int, error) {
	views, total, err := s.reviews.AdminView(ctx, filter)
	if err != nil {
		return nil, 0, storeUnavailable("query admin reviews", err)
	}
	return views, total, nil
}

// Teardown deletes the assessment and all its audit records in one
// transaction.
func (s *assessmentService) Teardown(ctx context.Context, productID uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeUnavailable("begin transaction", err)
	}
	defer tx.Rollback()

	assessments := repository.NewAssessmentRepository(tx)
	audits := repository.NewAuditRepository(tx)

	assessment, err := assessments.FindByProduct(ctx, productID)
	if err != nil {
		return storeUnavailable("load assessment", err)
	}
	if assessment == nil {
		return repository.ErrAssessmentNotFound
	}

	if err := audits.DeleteForAssessment(ctx, assessment.ID); err != nil {
		return storeUnavailable("delete audit records", err)
	}
	if err := assessments.DeleteByProduct(ctx, productID); err != nil {
		return storeUnavailable("delete assessment", err)
	}

	if err := tx.Commit(); err != nil {
		return storeUnavailable("commit transaction", err)
	}

	return nil
}
