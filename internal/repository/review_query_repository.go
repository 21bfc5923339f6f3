package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"marketqa/internal/domain"

	"github.com/google/uuid"
)

// ReviewFilter narrows a review listing. Zero values mean "no filter";
// Limit of 0 falls back to DefaultReviewLimit.
type ReviewFilter struct {
	Status          *domain.AssessmentStatus
	SubmittedAfter  *time.Time
	SubmittedBefore *time.Time
	Limit           int
	Offset          int
}

// DefaultReviewLimit caps unpaginated review listings.
const DefaultReviewLimit = 50

// ReviewQueryRepository is the read-side façade over assessments. Both views
// assemble the product context and all four audit collections in a single
// query; nothing here issues a per-row follow-up fetch.
//
// Join semantics are deliberate and differ per view:
//   - SellerView inner-joins products, so rows never leak across sellers and
//     never surface with a null product.
//   - AdminView left-joins products, so assessments whose product was
//     soft-deleted still appear (with Product == nil) for triage.
type ReviewQueryRepository interface {
	SellerView(ctx context.Context, sellerID uuid.UUID, filter ReviewFilter) ([]*domain.AssessmentView, int, error)
	AdminView(ctx context.Context, filter ReviewFilter) ([]*domain.AssessmentView, int, error)
}

type reviewQueryRepository struct {
	db DBTX
}

// NewReviewQueryRepository creates a new instance of ReviewQueryRepository
// bound to db.
func NewReviewQueryRepository(db DBTX) ReviewQueryRepository {
	return &reviewQueryRepository{db: db}
}

// productJSON builds the joined product summary as one JSON object, NULL when
// the product row is absent. Images and variants come from correlated
// subselects so the outer join never fans out.
const productJSON = `
	CASE WHEN p.id IS NULL THEN NULL ELSE json_build_object(
		'id', p.id,
		'name', p.name,
		'price', p.price,
		'seller_id', p.seller_id,
		'seller_name', u.display_name,
		'category_name', c.name,
		'images', (
			SELECT COALESCE(json_agg(json_build_object(
				'id', i.id, 'product_id', i.product_id, 'url', i.url,
				'position', i.position, 'created_at', i.created_at
			) ORDER BY i.position), '[]'::json)
			FROM product_images i WHERE i.product_id = p.id
		),
		'variants', (
			SELECT COALESCE(json_agg(json_build_object(
				'id', v.id, 'product_id', v.product_id,
				'option_one_value', v.option_one_value, 'option_two_value', v.option_two_value,
				'price', v.price, 'stock', v.stock, 'created_at', v.created_at
			) ORDER BY v.created_at, v.id), '[]'::json)
			FROM product_variants v WHERE v.product_id = p.id
		)
	) END`

// auditJSON bundles the four audit collections, each insertion-ordered.
const auditJSON = `
	json_build_object(
		'approvals', (
			SELECT COALESCE(json_agg(json_build_object(
				'id', ar.id, 'assessment_id', ar.assessment_id, 'description', ar.description,
				'created_by', ar.created_by, 'created_at', ar.created_at
			) ORDER BY ar.created_at, ar.id), '[]'::json)
			FROM approval_records ar WHERE ar.assessment_id = a.id
		),
		'rejections', (
			SELECT COALESCE(json_agg(json_build_object(
				'id', rr.id, 'assessment_id', rr.assessment_id, 'description', rr.description,
				'vendor_category', rr.vendor_category, 'admin_category', rr.admin_category,
				'created_by', rr.created_by, 'created_at', rr.created_at
			) ORDER BY rr.created_at, rr.id), '[]'::json)
			FROM rejection_records rr WHERE rr.assessment_id = a.id
		),
		'revisions', (
			SELECT COALESCE(json_agg(json_build_object(
				'id', vr.id, 'assessment_id', vr.assessment_id, 'description', vr.description,
				'created_by', vr.created_by, 'created_at', vr.created_at
			) ORDER BY vr.created_at, vr.id), '[]'::json)
			FROM revision_records vr WHERE vr.assessment_id = a.id
		),
		'logistics', (
			SELECT COALESCE(json_agg(json_build_object(
				'id', lr.id, 'assessment_id', lr.assessment_id, 'details', lr.details,
				'created_by', lr.created_by, 'created_at', lr.created_at
			) ORDER BY lr.created_at, lr.id), '[]'::json)
			FROM logistics_records lr WHERE lr.assessment_id = a.id
		)
	)`

// SellerView lists a seller's own assessments, newest submission first.
func (r *reviewQueryRepository) SellerView(ctx context.Context, sellerID uuid.UUID, filter ReviewFilter) ([]*domain.AssessmentView, int, error) {
	joins := `
		FROM assessments a
		INNER JOIN products p ON p.id = a.product_id AND p.deleted_at IS NULL
		INNER JOIN users u ON u.id = p.seller_id
		INNER JOIN categories c ON c.id = p.category_id
	`

	where := "WHERE p.seller_id = $1"
	args := []any{sellerID}
	where, args = appendFilter(where, args, filter)

	return r.run(ctx, joins, where, args, filter)
}

// AdminView lists every assessment, including those whose product is gone.
func (r *reviewQueryRepository) AdminView(ctx context.Context, filter ReviewFilter) ([]*domain.AssessmentView, int, error) {
	joins := `
		FROM assessments a
		LEFT JOIN products p ON p.id = a.product_id AND p.deleted_at IS NULL
		LEFT JOIN users u ON u.id = p.seller_id
		LEFT JOIN categories c ON c.id = p.category_id
	`

	where := "WHERE TRUE"
	args := []any{}
	where, args = appendFilter(where, args, filter)

	return r.run(ctx, joins, where, args, filter)
}

func appendFilter(where string, args []any, filter ReviewFilter) (string, []any) {
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where += fmt.Sprintf(" AND a.status = $%d", len(args))
	}
	if filter.SubmittedAfter != nil {
		args = append(args, *filter.SubmittedAfter)
		where += fmt.Sprintf(" AND a.submitted_at >= $%d", len(args))
	}
	if filter.SubmittedBefore != nil {
		args = append(args, *filter.SubmittedBefore)
		where += fmt.Sprintf(" AND a.submitted_at <= $%d", len(args))
	}
	return where, args
}

func (r *reviewQueryRepository) run(ctx context.Context, joins, where string, args []any, filter ReviewFilter) ([]*domain.AssessmentView, int, error) {
	countQuery := "SELECT COUNT(*) " + joins + " " + where
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count reviews: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultReviewLimit
	}
	args = append(args, limit, filter.Offset)

	query := fmt.Sprintf(`
		SELECT
			a.id, a.product_id, a.status, a.submitted_at, a.verified_at,
			a.revision_requested_at, a.created_by, a.assigned_to, a.created_at, a.updated_at,
			%s AS product,
			%s AS audit
		%s
		%s
		ORDER BY a.created_at DESC
		LIMIT $%d OFFSET $%d
	`, productJSON, auditJSON, joins, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	views := []*domain.AssessmentView{}
	for rows.Next() {
		view := &domain.AssessmentView{}
		var productRaw, auditRaw []byte
		err := rows.Scan(
			&view.ID,
			&view.ProductID,
			&view.Status,
			&view.SubmittedAt,
			&view.VerifiedAt,
			&view.RevisionRequestedAt,
			&view.CreatedBy,
			&view.AssignedTo,
			&view.CreatedAt,
			&view.UpdatedAt,
			&productRaw,
			&auditRaw,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan review: %w", err)
		}

		if productRaw != nil {
			view.Product = &domain.ProductSummary{}
			if err := json.Unmarshal(productRaw, view.Product); err != nil {
				return nil, 0, fmt.Errorf("failed to decode product summary: %w", err)
			}
		}
		if err := json.Unmarshal(auditRaw, &view.Audit); err != nil {
			return nil, 0, fmt.Errorf("failed to decode audit trail: %w", err)
		}

		views = append(views, view)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating reviews: %w", err)
	}

	return views, total, nil
}
