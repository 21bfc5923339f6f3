package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketqa/internal/domain"

	"github.com/google/uuid"
)

// Feature: qa-review, Property 5: One assessment per product
// The unique constraint on product_id is the enforcement point; a second
// insert loses the race at the database, not in application code.
func TestAssessmentCreateRejectsSecondForSameProduct(t *testing.T) {
	ctx := context.Background()
	seller := seedUser(t, "uniq-seller@example.com", "Uniq Seller", domain.RoleSeller)
	category := seedCategory(t, "uniq-category")
	product := seedProduct(t, seller.ID, category.ID, "uniq-product")

	repo := NewAssessmentRepository(testDB)
	now := time.Now()

	first := &domain.Assessment{
		ID:          uuid.New(),
		ProductID:   product.ID,
		Status:      domain.StatusPendingDigitalReview,
		SubmittedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	second := &domain.Assessment{
		ID:          uuid.New(),
		ProductID:   product.ID,
		Status:      domain.StatusPendingDigitalReview,
		SubmittedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := repo.Create(ctx, second); !errors.Is(err, ErrDuplicateAssessment) {
		t.Fatalf("expected ErrDuplicateAssessment, got %v", err)
	}

	found, err := repo.FindByProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("FindByProduct failed: %v", err)
	}
	if found == nil || found.ID != first.ID {
		t.Fatalf("the surviving assessment should be the first one")
	}
}

func TestAssessmentFindByProductReturnsNilWhenAbsent(t *testing.T) {
	repo := NewAssessmentRepository(testDB)

	found, err := repo.FindByProduct(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("expected no error for missing assessment, got %v", err)
	}
	if found != nil {
		t.Fatalf("expected nil assessment, got %+v", found)
	}
}

func TestAssessmentFindByIDNotFound(t *testing.T) {
	repo := NewAssessmentRepository(testDB)

	_, err := repo.FindByID(context.Background(), uuid.New())
	if !errors.Is(err, ErrAssessmentNotFound) {
		t.Fatalf("expected ErrAssessmentNotFound, got %v", err)
	}
}

// Feature: qa-review, Property 6: Conditional status swap
// UpdateStatusFrom only swaps when the stored status still matches the
// expected one; a stale caller gets swapped=false, not a silent overwrite.
func TestAssessmentUpdateStatusFromIsConditional(t *testing.T) {
	ctx := context.Background()
	seller := seedUser(t, "cas-seller@example.com", "CAS Seller", domain.RoleSeller)
	category := seedCategory(t, "cas-category")
	product := seedProduct(t, seller.ID, category.ID, "cas-product")
	assessment := seedAssessment(t, product.ID, domain.StatusPendingDigitalReview)

	repo := NewAssessmentRepository(testDB)

	swapped, err := repo.UpdateStatusFrom(ctx, assessment.ID,
		domain.StatusPendingDigitalReview, domain.StatusWaitingForSample, StatusExtra{})
	if err != nil {
		t.Fatalf("swap failed: %v", err)
	}
	if !swapped {
		t.Fatalf("expected the first swap to succeed")
	}

	// Same expected status again: the row has moved on, so no row matches.
	swapped, err = repo.UpdateStatusFrom(ctx, assessment.ID,
		domain.StatusPendingDigitalReview, domain.StatusRejected, StatusExtra{})
	if err != nil {
		t.Fatalf("stale swap errored: %v", err)
	}
	if swapped {
		t.Fatalf("stale swap should not have matched a row")
	}

	reloaded, err := repo.FindByID(ctx, assessment.ID)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.Status != domain.StatusWaitingForSample {
		t.Fatalf("status should still be %q, got %q", domain.StatusWaitingForSample, reloaded.Status)
	}
}

func TestAssessmentUpdateStatusFromSetsTimestampsOnly(t *testing.T) {
	ctx := context.Background()
	seller := seedUser(t, "ts-seller@example.com", "TS Seller", domain.RoleSeller)
	category := seedCategory(t, "ts-category")
	product := seedProduct(t, seller.ID, category.ID, "ts-product")
	assessment := seedAssessment(t, product.ID, domain.StatusPendingPhysicalReview)

	repo := NewAssessmentRepository(testDB)

	verifiedAt := time.Now()
	swapped, err := repo.UpdateStatusFrom(ctx, assessment.ID,
		domain.StatusPendingPhysicalReview, domain.StatusVerified,
		StatusExtra{VerifiedAt: &verifiedAt})
	if err != nil || !swapped {
		t.Fatalf("verify swap failed: swapped=%v err=%v", swapped, err)
	}

	reloaded, err := repo.FindByID(ctx, assessment.ID)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.VerifiedAt == nil {
		t.Fatalf("verified_at should be set after verification")
	}
	if reloaded.RevisionRequestedAt != nil {
		t.Fatalf("revision_requested_at should stay unset")
	}
}

func TestAuditTrailKeepsEveryRecord(t *testing.T) {
	ctx := context.Background()
	seller := seedUser(t, "audit-seller@example.com", "Audit Seller", domain.RoleSeller)
	category := seedCategory(t, "audit-category")
	product := seedProduct(t, seller.ID, category.ID, "audit-product")
	assessment := seedAssessment(t, product.ID, domain.StatusPendingDigitalReview)

	repo := NewAuditRepository(testDB)
	admin := seedUser(t, "audit-admin@example.com", "Audit Admin", domain.RoleAdmin)

	for i := 0; i < 2; i++ {
		record := &domain.ApprovalRecord{
			ID:           uuid.New(),
			AssessmentID: assessment.ID,
			Description:  "looks good",
			CreatedBy:    &admin.ID,
			CreatedAt:    time.Now(),
		}
		if err := repo.CreateApproval(ctx, record); err != nil {
			t.Fatalf("approval insert %d failed: %v", i, err)
		}
	}

	rejection := &domain.RejectionRecord{
		ID:             uuid.New(),
		AssessmentID:   assessment.ID,
		Description:    "does not match listing",
		VendorCategory: "Does not meet quality standards",
		AdminCategory:  "quality/material-mismatch",
		CreatedBy:      &admin.ID,
		CreatedAt:      time.Now(),
	}
	if err := repo.CreateRejection(ctx, rejection); err != nil {
		t.Fatalf("rejection insert failed: %v", err)
	}

	trail, err := repo.ListForAssessment(ctx, assessment.ID)
	if err != nil {
		t.Fatalf("ListForAssessment failed: %v", err)
	}
	if len(trail.Approvals) != 2 {
		t.Fatalf("expected 2 approvals, got %d", len(trail.Approvals))
	}
	if len(trail.Rejections) != 1 {
		t.Fatalf("expected 1 rejection, got %d", len(trail.Rejections))
	}
	if trail.Rejections[0].VendorCategory != "Does not meet quality standards" {
		t.Fatalf("vendor category not preserved: %q", trail.Rejections[0].VendorCategory)
	}
	if len(trail.Revisions) != 0 || len(trail.Logistics) != 0 {
		t.Fatalf("unused collections should be empty, got %d revisions %d logistics",
			len(trail.Revisions), len(trail.Logistics))
	}
}
