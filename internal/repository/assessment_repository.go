package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"marketqa/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrAssessmentNotFound = errors.New("assessment not found")
	// ErrDuplicateAssessment is returned when a second assessment is created
	// for a product that already has one. The products unique constraint
	// enforces this atomically; there is no check-then-insert window.
	ErrDuplicateAssessment = errors.New("product already has an assessment")
)

const pgUniqueViolation = "23505"

// AssessmentRepository is the assessment store. Status writes go through
// UpdateStatusFrom and are issued only by the transition engine.
type AssessmentRepository interface {
	Create(ctx context.Context, assessment *domain.Assessment) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Assessment, error)
	// FindByProduct returns (nil, nil) when the product has no assessment.
	// Zero rows is a normal answer here, not an error.
	FindByProduct(ctx context.Context, productID uuid.UUID) (*domain.Assessment, error)
	// UpdateStatusFrom swaps status from expected "from" to "to" in one
	// conditional update and reports whether a row was swapped. A false
	// return with no error means the status had already moved on.
	UpdateStatusFrom(ctx context.Context, id uuid.UUID, from, to domain.AssessmentStatus, extra StatusExtra) (bool, error)
	// DeleteByProduct removes the assessment for a product. Teardown only;
	// the review workflow never deletes assessments.
	DeleteByProduct(ctx context.Context, productID uuid.UUID) error
}

// StatusExtra carries the optional timestamp columns a transition may set
// alongside the status swap.
type StatusExtra struct {
	VerifiedAt          *time.Time
	RevisionRequestedAt *time.Time
}

type assessmentRepository struct {
	db DBTX
}

// NewAssessmentRepository creates a new instance of AssessmentRepository
// bound to db, which may be a *sql.DB or an open transaction.
func NewAssessmentRepository(db DBTX) AssessmentRepository {
	return &assessmentRepository{db: db}
}

// Create inserts a new assessment. The caller sets the initial status; the
// service layer always starts at pending_digital_review.
func (r *assessmentRepository) Create(ctx context.Context, assessment *domain.Assessment) error {
	query := `
		INSERT INTO assessments (id, product_id, status, submitted_at, verified_at, revision_requested_at, created_by, assigned_to, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		assessment.ID,
		assessment.ProductID,
		assessment.Status,
		assessment.SubmittedAt,
		assessment.VerifiedAt,
		assessment.RevisionRequestedAt,
		assessment.CreatedBy,
		assessment.AssignedTo,
		assessment.CreatedAt,
		assessment.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateAssessment
		}
		return fmt.Errorf("failed to create assessment: %w", err)
	}

	return nil
}

const assessmentColumns = `id, product_id, status, submitted_at, verified_at, revision_requested_at, created_by, assigned_to, created_at, updated_at`

func scanAssessment(row *sql.Row) (*domain.Assessment, error) {
	assessment := &domain.Assessment{}
	err := row.Scan(
		&assessment.ID,
		&assessment.ProductID,
		&assessment.Status,
		&assessment.SubmittedAt,
		&assessment.VerifiedAt,
		&assessment.RevisionRequestedAt,
		&assessment.CreatedBy,
		&assessment.AssignedTo,
		&assessment.CreatedAt,
		&assessment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return assessment, nil
}

// FindByID retrieves an assessment by ID using parameterized queries
func (r *assessmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Assessment, error) {
	query := fmt.Sprintf(`SELECT %s FROM assessments WHERE id = $1`, assessmentColumns)

	assessment, err := scanAssessment(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to find assessment by ID: %w", err)
	}

	return assessment, nil
}

// FindByProduct retrieves the single assessment for a product, or (nil, nil)
// when none exists.
func (r *assessmentRepository) FindByProduct(ctx context.Context, productID uuid.UUID) (*domain.Assessment, error) {
	query := fmt.Sprintf(`SELECT %s FROM assessments WHERE product_id = $1`, assessmentColumns)

	assessment, err := scanAssessment(r.db.QueryRowContext(ctx, query, productID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find assessment by product: %w", err)
	}

	return assessment, nil
}

// UpdateStatusFrom performs the compare-and-swap on status. Timestamps in
// extra are only ever set, never cleared, so earlier rounds stay visible.
func (r *assessmentRepository) UpdateStatusFrom(ctx context.Context, id uuid.UUID, from, to domain.AssessmentStatus, extra StatusExtra) (bool, error) {
	query := `
		UPDATE assessments
		SET status = $3,
		    verified_at = COALESCE($4, verified_at),
		    revision_requested_at = COALESCE($5, revision_requested_at),
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	result, err := r.db.ExecContext(ctx, query, id, from, to, extra.VerifiedAt, extra.RevisionRequestedAt)
	if err != nil {
		return false, fmt.Errorf("failed to update assessment status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// DeleteByProduct removes a product's assessment. Audit records are removed
// first by AuditRepository.DeleteForAssessment; this only deletes the row.
func (r *assessmentRepository) DeleteByProduct(ctx context.Context, productID uuid.UUID) error {
	query := `DELETE FROM assessments WHERE product_id = $1`

	result, err := r.db.ExecContext(ctx, query, productID)
	if err != nil {
		return fmt.Errorf("failed to delete assessment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrAssessmentNotFound
	}

	return nil
}
