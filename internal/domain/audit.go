package domain

import (
	"time"

	"github.com/google/uuid"
)

// ApprovalRecord marks a positive review step (digital approval or final
// verification). Append-only.
type ApprovalRecord struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	AssessmentID uuid.UUID  `json:"assessment_id" db:"assessment_id"`
	Description  string     `json:"description" db:"description"`
	CreatedBy    *uuid.UUID `json:"created_by,omitempty" db:"created_by"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// RejectionRecord marks a rejection, carrying both the category the vendor
// submitted under and the category the admin reclassified it to. Append-only.
type RejectionRecord struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	AssessmentID   uuid.UUID  `json:"assessment_id" db:"assessment_id"`
	Description    string     `json:"description" db:"description"`
	VendorCategory string     `json:"vendor_category" db:"vendor_category"`
	AdminCategory  string     `json:"admin_category" db:"admin_category"`
	CreatedBy      *uuid.UUID `json:"created_by,omitempty" db:"created_by"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// RevisionRecord marks a revision request sent back to the seller. Append-only.
type RevisionRecord struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	AssessmentID uuid.UUID  `json:"assessment_id" db:"assessment_id"`
	Description  string     `json:"description" db:"description"`
	CreatedBy    *uuid.UUID `json:"created_by,omitempty" db:"created_by"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// LogisticsRecord marks a physical-sample movement (free-text carrier status).
// Append-only.
type LogisticsRecord struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	AssessmentID uuid.UUID  `json:"assessment_id" db:"assessment_id"`
	Details      string     `json:"details" db:"details"`
	CreatedBy    *uuid.UUID `json:"created_by,omitempty" db:"created_by"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// AuditTrail bundles the four append-only collections for one assessment,
// each in insertion order.
type AuditTrail struct {
	Approvals  []ApprovalRecord  `json:"approvals"`
	Rejections []RejectionRecord `json:"rejections"`
	Revisions  []RevisionRecord  `json:"revisions"`
	Logistics  []LogisticsRecord `json:"logistics"`
}

// AssessmentView is the consolidated read model served to dashboards: the
// assessment, its product context, and the full audit trail. Product is nil
// in the admin view when the product has been soft-deleted.
type AssessmentView struct {
	Assessment
	Product *ProductSummary `json:"product"`
	Audit   AuditTrail      `json:"audit"`
}

// ProductSummary is the joined product context inside an AssessmentView.
type ProductSummary struct {
	ID           uuid.UUID        `json:"id"`
	Name         string           `json:"name"`
	Price        float64          `json:"price"`
	SellerID     uuid.UUID        `json:"seller_id"`
	SellerName   string           `json:"seller_name"`
	CategoryName string           `json:"category_name"`
	Images       []ProductImage   `json:"images"`
	Variants     []ProductVariant `json:"variants"`
}
