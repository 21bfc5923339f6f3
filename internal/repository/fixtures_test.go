package repository

import (
	"context"
	"testing"
	"time"

	"marketqa/internal/domain"

	"github.com/google/uuid"
)

// Shared row builders for the repository tests. Each helper inserts through
// the real repositories so the tests exercise the same code paths the
// services do.

func seedUser(t *testing.T, email, displayName, role string) *domain.User {
	t.Helper()

	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: "not-a-real-hash",
		DisplayName:  displayName,
		Role:         role,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := NewUserRepository(testDB).Create(context.Background(), user); err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return user
}

func seedCategory(t *testing.T, name string) *domain.Category {
	t.Helper()

	category := &domain.Category{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: time.Now(),
	}
	if err := NewCategoryRepository(testDB).Create(context.Background(), category); err != nil {
		t.Fatalf("seed category %s: %v", name, err)
	}
	return category
}

func seedProduct(t *testing.T, sellerID, categoryID uuid.UUID, name string) *domain.Product {
	t.Helper()

	product := &domain.Product{
		ID:             uuid.New(),
		SellerID:       sellerID,
		CategoryID:     categoryID,
		Name:           name,
		Description:    "seeded for tests",
		Price:          49.99,
		ApprovalStatus: domain.ApprovalPending,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if err := NewProductRepository(testDB).Create(context.Background(), product); err != nil {
		t.Fatalf("seed product %s: %v", name, err)
	}
	return product
}

func seedAssessment(t *testing.T, productID uuid.UUID, status domain.AssessmentStatus) *domain.Assessment {
	t.Helper()

	now := time.Now()
	assessment := &domain.Assessment{
		ID:          uuid.New(),
		ProductID:   productID,
		Status:      status,
		SubmittedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := NewAssessmentRepository(testDB).Create(context.Background(), assessment); err != nil {
		t.Fatalf("seed assessment for product %s: %v", productID, err)
	}
	return assessment
}
