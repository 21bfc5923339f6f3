package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"marketqa/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound = errors.New("product not found")
)

// ProductRepository defines the interface for product data access.
// SetApprovalStatus is the sole write path for the coarse approval_status
// column and is called only from inside the transition engine's transaction.
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, page, pageSize int) ([]*domain.Product, int, error)
	AddImage(ctx context.Context, image *domain.ProductImage) error
	AddVariant(ctx context.Context, variant *domain.ProductVariant) error
	SetApprovalStatus(ctx context.Context, id uuid.UUID, status domain.ApprovalStatus) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

type productRepository struct {
	db DBTX
}

// NewProductRepository creates a new instance of ProductRepository bound to
// db, which may be a *sql.DB or an open transaction.
func NewProductRepository(db DBTX) ProductRepository {
	return &productRepository{db: db}
}

// Create inserts a new product into the database using parameterized queries
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (id, seller_id, category_id, name, description, price, option_one_label, option_two_label, approval_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.SellerID,
		product.CategoryID,
		product.Name,
		product.Description,
		product.Price,
		product.OptionOneLabel,
		product.OptionTwoLabel,
		product.ApprovalStatus,
		product.CreatedAt,
		product.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

const productColumns = `id, seller_id, category_id, name, description, price, option_one_label, option_two_label, approval_status, deleted_at, created_at, updated_at`

func scanProduct(scan func(dest ...any) error) (*domain.Product, error) {
	product := &domain.Product{}
	err := scan(
		&product.ID,
		&product.SellerID,
		&product.CategoryID,
		&product.Name,
		&product.Description,
		&product.Price,
		&product.OptionOneLabel,
		&product.OptionTwoLabel,
		&product.ApprovalStatus,
		&product.DeletedAt,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return product, nil
}

// FindByID retrieves a product by ID. Soft-deleted products are not returned.
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		WHERE id = $1 AND deleted_at IS NULL
	`, productColumns)

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// ListBySeller retrieves a seller's live products with pagination, newest first.
func (r *productRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID, page, pageSize int) ([]*domain.Product, int, error) {
	countQuery := `SELECT COUNT(*) FROM products WHERE seller_id = $1 AND deleted_at IS NULL`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, sellerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		WHERE seller_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, productColumns)

	rows, err := r.db.QueryContext(ctx, query, sellerID, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating products: %w", err)
	}

	return products, total, nil
}

// AddImage inserts one catalog image for a product.
func (r *productRepository) AddImage(ctx context.Context, image *domain.ProductImage) error {
	query := `
		INSERT INTO product_images (id, product_id, url, position, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query, image.ID, image.ProductID, image.URL, image.Position, image.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add product image: %w", err)
	}

	return nil
}

// AddVariant inserts one variant row for a product.
func (r *productRepository) AddVariant(ctx context.Context, variant *domain.ProductVariant) error {
	query := `
		INSERT INTO product_variants (id, product_id, option_one_value, option_two_value, price, stock, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query, variant.ID, variant.ProductID, variant.OptionOneValue, variant.OptionTwoValue, variant.Price, variant.Stock, variant.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add product variant: %w", err)
	}

	return nil
}

// SetApprovalStatus writes the projected coarse status onto the product row.
func (r *productRepository) SetApprovalStatus(ctx context.Context, id uuid.UUID, status domain.ApprovalStatus) error {
	query := `
		UPDATE products
		SET approval_status = $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to set approval status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// SoftDelete marks a product deleted. The row stays behind so assessments
// that reference it keep resolving in the admin view.
func (r *productRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE products
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to soft delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}
