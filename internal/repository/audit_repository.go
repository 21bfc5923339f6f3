package repository

import (
	"context"
	"fmt"

	"marketqa/internal/domain"

	"github.com/google/uuid"
)

// AuditRepository is the append-only audit ledger. The four record kinds are
// only ever inserted; no update path exists, and DeleteForAssessment is
// reserved for full-assessment teardown.
type AuditRepository interface {
	CreateApproval(ctx context.Context, record *domain.ApprovalRecord) error
	CreateRejection(ctx context.Context, record *domain.RejectionRecord) error
	CreateRevision(ctx context.Context, record *domain.RevisionRecord) error
	CreateLogistics(ctx context.Context, record *domain.LogisticsRecord) error
	ListForAssessment(ctx context.Context, assessmentID uuid.UUID) (*domain.AuditTrail, error)
	DeleteForAssessment(ctx context.Context, assessmentID uuid.UUID) error
}

type auditRepository struct {
	db DBTX
}

// NewAuditRepository creates a new instance of AuditRepository bound to db,
// which may be a *sql.DB or an open transaction.
func NewAuditRepository(db DBTX) AuditRepository {
	return &auditRepository{db: db}
}

// CreateApproval appends an approval record.
func (r *auditRepository) CreateApproval(ctx context.Context, record *domain.ApprovalRecord) error {
	query := `
		INSERT INTO approval_records (id, assessment_id, description, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query, record.ID, record.AssessmentID, record.Description, record.CreatedBy, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create approval record: %w", err)
	}

	return nil
}

// CreateRejection appends a rejection record with its category labels.
func (r *auditRepository) CreateRejection(ctx context.Context, record *domain.RejectionRecord) error {
	query := `
		INSERT INTO rejection_records (id, assessment_id, description, vendor_category, admin_category, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query, record.ID, record.AssessmentID, record.Description, record.VendorCategory, record.AdminCategory, record.CreatedBy, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create rejection record: %w", err)
	}

	return nil
}

// CreateRevision appends a revision record.
func (r *auditRepository) CreateRevision(ctx context.Context, record *domain.RevisionRecord) error {
	query := `
		INSERT INTO revision_records (id, assessment_id, description, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query, record.ID, record.AssessmentID, record.Description, record.CreatedBy, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create revision record: %w", err)
	}

	return nil
}

// CreateLogistics appends a logistics record.
func (r *auditRepository) CreateLogistics(ctx context.Context, record *domain.LogisticsRecord) error {
	query := `
		INSERT INTO logistics_records (id, assessment_id, details, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query, record.ID, record.AssessmentID, record.Details, record.CreatedBy, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create logistics record: %w", err)
	}

	return nil
}

// ListForAssessment returns all four collections for an assessment, each in
// insertion order.
func (r *auditRepository) ListForAssessment(ctx context.Context, assessmentID uuid.UUID) (*domain.AuditTrail, error) {
	trail := &domain.AuditTrail{
		Approvals:  []domain.ApprovalRecord{},
		Rejections: []domain.RejectionRecord{},
		Revisions:  []domain.RevisionRecord{},
		Logistics:  []domain.LogisticsRecord{},
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, assessment_id, description, created_by, created_at
		FROM approval_records
		WHERE assessment_id = $1
		ORDER BY created_at, id
	`, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approval records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		record := domain.ApprovalRecord{}
		if err := rows.Scan(&record.ID, &record.AssessmentID, &record.Description, &record.CreatedBy, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan approval record: %w", err)
		}
		trail.Approvals = append(trail.Approvals, record)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating approval records: %w", err)
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT id, assessment_id, description, vendor_category, admin_category, created_by, created_at
		FROM rejection_records
		WHERE assessment_id = $1
		ORDER BY created_at, id
	`, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rejection records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		record := domain.RejectionRecord{}
		if err := rows.Scan(&record.ID, &record.AssessmentID, &record.Description, &record.VendorCategory, &record.AdminCategory, &record.CreatedBy, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rejection record: %w", err)
		}
		trail.Rejections = append(trail.Rejections, record)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rejection records: %w", err)
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT id, assessment_id, description, created_by, created_at
		FROM revision_records
		WHERE assessment_id = $1
		ORDER BY created_at, id
	`, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list revision records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		record := domain.RevisionRecord{}
		if err := rows.Scan(&record.ID, &record.AssessmentID, &record.Description, &record.CreatedBy, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan revision record: %w", err)
		}
		trail.Revisions = append(trail.Revisions, record)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating revision records: %w", err)
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT id, assessment_id, details, created_by, created_at
		FROM logistics_records
		WHERE assessment_id = $1
		ORDER BY created_at, id
	`, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list logistics records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		record := domain.LogisticsRecord{}
		if err := rows.Scan(&record.ID, &record.AssessmentID, &record.Details, &record.CreatedBy, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan logistics record: %w", err)
		}
		trail.Logistics = append(trail.Logistics, record)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating logistics records: %w", err)
	}

	return trail, nil
}

// DeleteForAssessment removes all audit records for an assessment. Teardown
// only; nothing in the review workflow calls this.
func (r *auditRepository) DeleteForAssessment(ctx context.Context, assessmentID uuid.UUID) error {
	for _, table := range []string{"approval_records", "rejection_records", "revision_records", "logistics_records"} {
		query := fmt.Sprintf(`DELETE FROM %s WHERE assessment_id = $1`, table)
		if _, err := r.db.ExecContext(ctx, query, assessmentID); err != nil {
			return fmt.Errorf("failed to delete from %s: %w", table, err)
		}
	}

	return nil
}
