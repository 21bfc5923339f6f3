package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"testing"
	"time"

	"marketqa/internal/database"
	"marketqa/internal/domain"
	"marketqa/internal/repository"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var testDB *sql.DB

func setupTestDB() (func(context.Context, ...testcontainers.TerminateOption) error, error) {
	var (
		dbName = "testdb"
		dbPwd  = "password"
		dbUser = "user"
	)

	dbContainer, err := postgres.Run(
		context.Background(),
		"postgres:15",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	dbHost, err := dbContainer.Host(context.Background())
	if err != nil {
		return dbContainer.Terminate, err
	}

	dbPort, err := dbContainer.MappedPort(context.Background(), "5432/tcp")
	if err != nil {
		return dbContainer.Terminate, err
	}

	connStr := "postgres://" + dbUser + ":" + dbPwd + "@" + dbHost + ":" + dbPort.Port() + "/" + dbName + "?sslmode=disable"
	testDB, err = sql.Open("pgx", connStr)
	if err != nil {
		return dbContainer.Terminate, err
	}

	if err := database.RunMigrations(testDB, "../../migrations", zap.NewNop()); err != nil {
		return dbContainer.Terminate, err
	}

	return dbContainer.Terminate, nil
}

func TestMain(m *testing.M) {
	teardown, err := setupTestDB()
	if err != nil {
		log.Fatalf("could not start postgres container: %v", err)
	}

	m.Run()

	if teardown != nil {
		if err := teardown(context.Background()); err != nil {
			log.Fatalf("could not teardown postgres container: %v", err)
		}
	}
}

func newTestEngine() AssessmentService {
	return NewAssessmentService(testDB, zap.NewNop())
}

// seedReviewCase creates a seller, an admin, a category, and one product and
// returns them along with a freshly opened assessment.
func seedReviewCase(t *testing.T, tag string) (*domain.User, *domain.User, *domain.Product, *domain.Assessment) {
	t.Helper()
	ctx := context.Background()

	seller := &domain.User{
		ID:           uuid.New(),
		Email:        tag + "-seller@example.com",
		PasswordHash: "not-a-real-hash",
		DisplayName:  tag + " seller",
		Role:         domain.RoleSeller,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	admin := &domain.User{
		ID:           uuid.New(),
		Email:        tag + "-admin@example.com",
		PasswordHash: "not-a-real-hash",
		DisplayName:  tag + " admin",
		Role:         domain.RoleAdmin,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	users := repository.NewUserRepository(testDB)
	if err := users.Create(ctx, seller); err != nil {
		t.Fatalf("seed seller: %v", err)
	}
	if err := users.Create(ctx, admin); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	category := &domain.Category{
		ID:        uuid.New(),
		Name:      tag + "-category",
		CreatedAt: time.Now(),
	}
	if err := repository.NewCategoryRepository(testDB).Create(ctx, category); err != nil {
		t.Fatalf("seed category: %v", err)
	}

	product := &domain.Product{
		ID:             uuid.New(),
		SellerID:       seller.ID,
		CategoryID:     category.ID,
		Name:           tag + "-product",
		Description:    "seeded for tests",
		Price:          19.99,
		ApprovalStatus: domain.ApprovalPending,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if err := repository.NewProductRepository(testDB).Create(ctx, product); err != nil {
		t.Fatalf("seed product: %v", err)
	}

	assessment, err := newTestEngine().Open(ctx, product.ID, &seller.ID)
	if err != nil {
		t.Fatalf("open assessment: %v", err)
	}
	return seller, admin, product, assessment
}

func productApprovalStatus(t *testing.T, productID uuid.UUID) domain.ApprovalStatus {
	t.Helper()
	var status domain.ApprovalStatus
	err := testDB.QueryRow("SELECT approval_status FROM products WHERE id = $1", productID).Scan(&status)
	if err != nil {
		t.Fatalf("read product status: %v", err)
	}
	return status
}

func auditTrail(t *testing.T, assessmentID uuid.UUID) *domain.AuditTrail {
	t.Helper()
	trail, err := repository.NewAuditRepository(testDB).ListForAssessment(context.Background(), assessmentID)
	if err != nil {
		t.Fatalf("list audit trail: %v", err)
	}
	return trail
}

// Feature: qa-review, Property 10: Full verification path
// Digital approval, sample hand-off, and physical verification walk the
// assessment to verified, stamp verified_at, and flip the product to approved.
func TestTransitionHappyPathEndsVerified(t *testing.T) {
	ctx := context.Background()
	_, admin, product, assessment := seedReviewCase(t, "happy")
	engine := newTestEngine()

	updated, err := engine.Transition(ctx, assessment.ID, TransitionRequest{
		Action:      domain.ActionApproveDigital,
		ActorID:     &admin.ID,
		Description: "listing photos check out",
	})
	if err != nil {
		t.Fatalf("approve_digital failed: %v", err)
	}
	if updated.Status != domain.StatusWaitingForSample {
		t.Fatalf("after approve_digital: got %q, want %q", updated.Status, domain.StatusWaitingForSample)
	}
	if got := productApprovalStatus(t, product.ID); got != domain.ApprovalPending {
		t.Fatalf("product should still be pending mid-flow, got %q", got)
	}

	updated, err = engine.Transition(ctx, assessment.ID, TransitionRequest{
		Action:  domain.ActionSubmitSample,
		Details: "courier drop-off, tracking AB123",
	})
	if err != nil {
		t.Fatalf("submit_sample failed: %v", err)
	}
	if updated.Status != domain.StatusPendingPhysicalReview {
		t.Fatalf("after submit_sample: got %q, want %q", updated.Status, domain.StatusPendingPhysicalReview)
	}

	updated, err = engine.Transition(ctx, assessment.ID, TransitionRequest{
		Action:      domain.ActionVerify,
		ActorID:     &admin.ID,
		Description: "sample matches listing",
	})
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if updated.Status != domain.StatusVerified {
		t.Fatalf("after verify: got %q, want %q", updated.Status, domain.StatusVerified)
	}
	if updated.VerifiedAt == nil {
		t.Fatalf("verified_at should be stamped on verification")
	}
	if got := productApprovalStatus(t, product.ID); got != domain.ApprovalApproved {
		t.Fatalf("product should be approved after verification, got %q", got)
	}

	trail := auditTrail(t, assessment.ID)
	if len(trail.Approvals) != 2 {
		t.Fatalf("expected 2 approval records, got %d", len(trail.Approvals))
	}
	if len(trail.Logistics) != 1 {
		t.Fatalf("expected 1 logistics record, got %d", len(trail.Logistics))
	}
	if trail.Logistics[0].Details != "courier drop-off, tracking AB123" {
		t.Fatalf("logistics details not preserved: %q", trail.Logistics[0].Details)
	}
}

// Feature: qa-review, Property 11: Rejection is terminal
func TestTransitionRejectionIsTerminal(t *testing.T) {
	ctx := context.Background()
	_, admin, product, assessment := seedReviewCase(t, "reject")
	engine := newTestEngine()

	updated, err := engine.Transition(ctx, assessment.ID, TransitionRequest{
		Action:         domain.ActionReject,
		ActorID:        &admin.ID,
		Description:    "counterfeit markings on the sample photos",
		VendorCategory: "Does not meet quality standards",
		AdminCategory:  "authenticity/counterfeit-suspected",
	})
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if updated.Status != domain.StatusRejected {
		t.Fatalf("after reject: got %q, want %q", updated.Status, domain.StatusRejected)
	}
	if got := productApprovalStatus(t, product.ID); got != domain.ApprovalRejected {
		t.Fatalf("product should be rejected, got %q", got)
	}

	trail := auditTrail(t, assessment.ID)
	if len(trail.Rejections) != 1 {
		t.Fatalf("expected 1 rejection record, got %d", len(trail.Rejections))
	}
	if trail.Rejections[0].VendorCategory != "Does not meet quality standards" {
		t.Fatalf("vendor category not preserved: %q", trail.Rejections[0].VendorCategory)
	}

	_, err = engine.Transition(ctx, assessment.ID, TransitionRequest{Action: domain.ActionVerify})
	if !errors.Is(err, ErrAlreadyTerminal) {
		t.Fatalf("expected ErrAlreadyTerminal after rejection, got %v", err)
	}
}

func TestTransitionRefusesActionsOutsideTheGraph(t *testing.T) {
	ctx := context.Background()
	_, admin, _, assessment := seedReviewCase(t, "illegal")
	engine := newTestEngine()

	// verify is only legal from pending_physical_review.
	_, err := engine.Transition(ctx, assessment.ID, TransitionRequest{
		Action:  domain.ActionVerify,
		ActorID: &admin.ID,
	})
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected an illegal transition error, got %v", err)
	}

	var illegal *IllegalTransitionError
	if !errors.As(err, &illegal) {
		t.Fatalf("error should carry the transition details, got %T", err)
	}
	if illegal.From != domain.StatusPendingDigitalReview || illegal.Action != domain.ActionVerify {
		t.Fatalf("unexpected details: from=%q action=%q", illegal.From, illegal.Action)
	}

	// The refused action must leave no trace.
	reloaded, err := repository.NewAssessmentRepository(testDB).FindByID(ctx, assessment.ID)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.Status != domain.StatusPendingDigitalReview {
		t.Fatalf("status should be untouched, got %q", reloaded.Status)
	}
	trail := auditTrail(t, assessment.ID)
	if len(trail.Approvals)+len(trail.Rejections)+len(trail.Revisions)+len(trail.Logistics) != 0 {
		t.Fatalf("refused action wrote audit records: %+v", trail)
	}
}

// Feature: qa-review, Property 12: Revision round trip
// request_revision parks the assessment; resubmit by the owner returns it to
// digital review on the same assessment without writing an audit record.
func TestRevisionAndResubmitRoundTrip(t *testing.T) {
	ctx := context.Background()
	seller, admin, product, assessment := seedReviewCase(t, "revision")
	engine := newTestEngine()

	updated, err := engine.Transition(ctx, assessment.ID, TransitionRequest{
		Action:      domain.ActionRequestRevision,
		ActorID:     &admin.ID,
		Description: "main photo is blurry, reshoot it",
	})
	if err != nil {
		t.Fatalf("request_revision failed: %v", err)
	}
	if updated.Status != domain.StatusForRevision {
		t.Fatalf("after request_revision: got %q, want %q", updated.Status, domain.StatusForRevision)
	}
	if updated.RevisionRequestedAt == nil {
		t.Fatalf("revision_requested_at should be stamped")
	}
	if got := productApprovalStatus(t, product.ID); got != domain.ApprovalPending {
		t.Fatalf("product should stay pending during revision, got %q", got)
	}

	// A stranger cannot resubmit someone else's product.
	strangerID := uuid.New()
	if _, err := engine.ResubmitAsSeller(ctx, assessment.ID, strangerID); !errors.Is(err, ErrNotProductOwner) {
		t.Fatalf("expected ErrNotProductOwner, got %v", err)
	}

	resubmitted, err := engine.ResubmitAsSeller(ctx, assessment.ID, seller.ID)
	if err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
	if resubmitted.ID != assessment.ID {
		t.Fatalf("resubmit must reuse the same assessment")
	}
	if resubmitted.Status != domain.StatusPendingDigitalReview {
		t.Fatalf("after resubmit: got %q, want %q", resubmitted.Status, domain.StatusPendingDigitalReview)
	}
	if resubmitted.RevisionRequestedAt == nil {
		t.Fatalf("revision_requested_at should survive the resubmit")
	}

	trail := auditTrail(t, assessment.ID)
	if len(trail.Revisions) != 1 {
		t.Fatalf("expected exactly the 1 revision record, got %d", len(trail.Revisions))
	}
	if len(trail.Approvals)+len(trail.Rejections)+len(trail.Logistics) != 0 {
		t.Fatalf("resubmit must not write audit records: %+v", trail)
	}
}

// Feature: qa-review, Property 13: Transition atomicity
// When the audit insert fails mid-transaction the status swap is rolled back,
// so the assessment and the product are both untouched.
func TestTransitionRollsBackWhenAuditInsertFails(t *testing.T) {
	ctx := context.Background()
	_, admin, product, assessment := seedReviewCase(t, "atomic")
	engine := newTestEngine()

	// Break the audit insert from under the engine.
	if _, err := testDB.Exec("ALTER TABLE approval_records RENAME TO approval_records_hidden"); err != nil {
		t.Fatalf("could not hide audit table: %v", err)
	}
	defer func() {
		if _, err := testDB.Exec("ALTER TABLE approval_records_hidden RENAME TO approval_records"); err != nil {
			t.Fatalf("could not restore audit table: %v", err)
		}
	}()

	_, err := engine.Transition(ctx, assessment.ID, TransitionRequest{
		Action:      domain.ActionApproveDigital,
		ActorID:     &admin.ID,
		Description: "should never land",
	})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}

	reloaded, err := repository.NewAssessmentRepository(testDB).FindByID(ctx, assessment.ID)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.Status != domain.StatusPendingDigitalReview {
		t.Fatalf("status swap leaked out of the failed transaction: %q", reloaded.Status)
	}
	if got := productApprovalStatus(t, product.ID); got != domain.ApprovalPending {
		t.Fatalf("product status leaked out of the failed transaction: %q", got)
	}
}

func TestOpenRefusesSecondAssessment(t *testing.T) {
	ctx := context.Background()
	seller, _, product, _ := seedReviewCase(t, "open-dup")
	engine := newTestEngine()

	_, err := engine.Open(ctx, product.ID, &seller.ID)
	if !errors.Is(err, repository.ErrDuplicateAssessment) {
		t.Fatalf("expected ErrDuplicateAssessment, got %v", err)
	}
}

func TestSellerReviewsCarryProductAndAudit(t *testing.T) {
	ctx := context.Background()
	seller, admin, product, assessment := seedReviewCase(t, "listing")
	engine := newTestEngine()

	if _, err := engine.Transition(ctx, assessment.ID, TransitionRequest{
		Action:      domain.ActionApproveDigital,
		ActorID:     &admin.ID,
		Description: "first pass done",
	}); err != nil {
		t.Fatalf("approve_digital failed: %v", err)
	}

	views, total, err := engine.SellerReviews(ctx, seller.ID, repository.ReviewFilter{})
	if err != nil {
		t.Fatalf("SellerReviews failed: %v", err)
	}
	if total != 1 || len(views) != 1 {
		t.Fatalf("expected the seller's single review, got total=%d len=%d", total, len(views))
	}
	view := views[0]
	if view.Product == nil || view.Product.ID != product.ID {
		t.Fatalf("review should embed the product")
	}
	if len(view.Audit.Approvals) != 1 {
		t.Fatalf("review should embed the audit trail, got %d approvals", len(view.Audit.Approvals))
	}
}

func TestTeardownRemovesAssessmentAndAudit(t *testing.T) {
	ctx := context.Background()
	_, admin, product, assessment := seedReviewCase(t, "teardown")
	engine := newTestEngine()

	if _, err := engine.Transition(ctx, assessment.ID, TransitionRequest{
		Action:      domain.ActionRequestRevision,
		ActorID:     &admin.ID,
		Description: "placeholder",
	}); err != nil {
		t.Fatalf("request_revision failed: %v", err)
	}

	if err := engine.Teardown(ctx, product.ID); err != nil {
		t.Fatalf("Teardown failed: %v", err)
	}

	remaining, err := engine.GetByProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetByProduct failed: %v", err)
	}
	if remaining != nil {
		t.Fatalf("assessment should be gone, got %+v", remaining)
	}

	var count int
	if err := testDB.QueryRow("SELECT COUNT(*) FROM revision_records WHERE assessment_id = $1", assessment.ID).Scan(&count); err != nil {
		t.Fatalf("count revision records: %v", err)
	}
	if count != 0 {
		t.Fatalf("audit records should be gone, found %d", count)
	}

	// A second teardown has nothing to remove.
	if err := engine.Teardown(ctx, product.ID); !errors.Is(err, repository.ErrAssessmentNotFound) {
		t.Fatalf("expected ErrAssessmentNotFound, got %v", err)
	}
}
