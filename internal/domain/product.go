package domain

import (
	"time"

	"github.com/google/uuid"
)

// ApprovalStatus is the coarse review summary stored on the product row.
// It is derived from the assessment status by Project and written only by
// the transition engine; no other code path may touch it.
type ApprovalStatus string

const (
	ApprovalPending      ApprovalStatus = "pending"
	ApprovalApproved     ApprovalStatus = "approved"
	ApprovalRejected     ApprovalStatus = "rejected"
	ApprovalReclassified ApprovalStatus = "reclassified"
)

// Product is a seller-submitted item in the catalog. OptionOneLabel and
// OptionTwoLabel name the variant axes ("Size", "Color"); both are optional.
type Product struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	SellerID       uuid.UUID      `json:"seller_id" db:"seller_id"`
	CategoryID     uuid.UUID      `json:"category_id" db:"category_id"`
	Name           string         `json:"name" db:"name"`
	Description    string         `json:"description" db:"description"`
	Price          float64        `json:"price" db:"price"`
	OptionOneLabel *string        `json:"option_one_label,omitempty" db:"option_one_label"`
	OptionTwoLabel *string        `json:"option_two_label,omitempty" db:"option_two_label"`
	ApprovalStatus ApprovalStatus `json:"approval_status" db:"approval_status"`
	DeletedAt      *time.Time     `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// ProductImage is one catalog image for a product, ordered by Position.
type ProductImage struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	URL       string    `json:"url" db:"url"`
	Position  int       `json:"position" db:"position"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ProductVariant is one sellable combination of the product's option axes.
type ProductVariant struct {
	ID             uuid.UUID `json:"id" db:"id"`
	ProductID      uuid.UUID `json:"product_id" db:"product_id"`
	OptionOneValue *string   `json:"option_one_value,omitempty" db:"option_one_value"`
	OptionTwoValue *string   `json:"option_two_value,omitempty" db:"option_two_value"`
	Price          float64   `json:"price" db:"price"`
	Stock          int       `json:"stock" db:"stock"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Category is a product category.
type Category struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
