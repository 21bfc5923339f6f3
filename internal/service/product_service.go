package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"marketqa/internal/domain"
	"marketqa/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrUnknownCategory = errors.New("unknown category")
)

// ProductSubmission is a seller's new-product payload: the product itself
// plus its images and variant grid.
type ProductSubmission struct {
	Name           string
	Description    string
	Price          float64
	CategoryID     uuid.UUID
	OptionOneLabel *string
	OptionTwoLabel *string
	ImageURLs      []string
	Variants       []VariantSubmission
}

// VariantSubmission is one variant row in a submission.
type VariantSubmission struct {
	OptionOneValue *string
	OptionTwoValue *string
	Price          float64
	Stock          int
}

// ProductService handles the seller product-submission flow. Submitting
// persists the product, its images and variants, and opens the QA assessment
// in one transaction, so a product never exists without its review case.
type ProductService interface {
	Submit(ctx context.Context, sellerID uuid.UUID, submission ProductSubmission) (*domain.Product, *domain.Assessment, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, page, pageSize int) ([]*domain.Product, int, error)
	ListCategories(ctx context.Context) ([]*domain.Category, error)
	// Delete soft-deletes the product. The assessment and audit trail stay
	// behind for the admin view.
	Delete(ctx context.Context, id uuid.UUID) error
}

type productService struct {
	db         *sql.DB
	products   repository.ProductRepository
	categories repository.CategoryRepository
	logger     *zap.Logger
}

// NewProductService creates a new instance of ProductService.
func NewProductService(db *sql.DB, logger *zap.Logger) ProductService {
	return &productService{
		db:         db,
		products:   repository.NewProductRepository(db),
		categories: repository.NewCategoryRepository(db),
		logger:     logger,
	}
}

// Submit persists the product, its images and variants, and the initial
// assessment atomically.
func (s *productService) Submit(ctx context.Context, sellerID uuid.UUID, submission ProductSubmission) (*domain.Product, *domain.Assessment, error) {
	if _, err := s.categories.FindByID(ctx, submission.CategoryID); err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			return nil, nil, ErrUnknownCategory
		}
		return nil, nil, storeUnavailable("load category", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, storeUnavailable("begin transaction", err)
	}
	defer tx.Rollback()

	products := repository.NewProductRepository(tx)
	assessments := repository.NewAssessmentRepository(tx)

	now := time.Now().UTC()
	product := &domain.Product{
		ID:             uuid.New(),
		SellerID:       sellerID,
		CategoryID:     submission.CategoryID,
		Name:           submission.Name,
		Description:    submission.Description,
		Price:          submission.Price,
		OptionOneLabel: submission.OptionOneLabel,
		OptionTwoLabel: submission.OptionTwoLabel,
		ApprovalStatus: domain.ApprovalPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := products.Create(ctx, product); err != nil {
		return nil, nil, storeUnavailable("create product", err)
	}

	for i, url := range submission.ImageURLs {
		image := &domain.ProductImage{
			ID:        uuid.New(),
			ProductID: product.ID,
			URL:       url,
			Position:  i,
			CreatedAt: now,
		}
		if err := products.AddImage(ctx, image); err != nil {
			return nil, nil, storeUnavailable("add product image", err)
		}
	}

	for _, v := range submission.Variants {
		variant := &domain.ProductVariant{
			ID:             uuid.New(),
			ProductID:      product.ID,
			OptionOneValue: v.OptionOneValue,
			OptionTwoValue: v.OptionTwoValue,
			Price:          v.Price,
			Stock:          v.Stock,
			CreatedAt:      now,
		}
		if err := products.AddVariant(ctx, variant); err != nil {
			return nil, nil, storeUnavailable("add product variant", err)
		}
	}

	assessment := &domain.Assessment{
		ID:          uuid.New(),
		ProductID:   product.ID,
		Status:      domain.StatusPendingDigitalReview,
		SubmittedAt: now,
		CreatedBy:   &sellerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := assessments.Create(ctx, assessment); err != nil {
		if errors.Is(err, repository.ErrDuplicateAssessment) {
			return nil, nil, err
		}
		return nil, nil, storeUnavailable("create assessment", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, storeUnavailable("commit transaction", err)
	}

	s.logger.Info("product submitted for review",
		zap.String("product_id", product.ID.String()),
		zap.String("seller_id", sellerID.String()),
		zap.Int("images", len(submission.ImageURLs)),
		zap.Int("variants", len(submission.Variants)),
	)

	return product, assessment, nil
}

// Get retrieves a live product by ID.
func (s *productService) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, err
		}
		return nil, storeUnavailable("load product", err)
	}
	return product, nil
}

// ListBySeller lists a seller's live products.
func (s *productService) ListBySeller(ctx context.Context, sellerID uuid.UUID, page, pageSize int) ([]*domain.Product, int, error) {
	products, total, err := s.products.ListBySeller(ctx, sellerID, page, pageSize)
	if err != nil {
		return nil, 0, storeUnavailable("list products", err)
	}
	return products, total, nil
}

// ListCategories lists all categories.
func (s *productService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, storeUnavailable("list categories", err)
	}
	return categories, nil
}

// Delete soft-deletes a product.
func (s *productService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.products.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return err
		}
		return storeUnavailable("delete product", err)
	}
	return nil
}
