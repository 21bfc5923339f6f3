package domain

import (
	"time"

	"github.com/google/uuid"
)

// AssessmentStatus is the fine-grained review state of one assessment.
// The string values are persisted and cross the API boundary as-is; do not
// rename them without a data migration.
type AssessmentStatus string

const (
	StatusPendingDigitalReview  AssessmentStatus = "pending_digital_review"
	StatusWaitingForSample      AssessmentStatus = "waiting_for_sample"
	StatusPendingPhysicalReview AssessmentStatus = "pending_physical_review"
	StatusVerified              AssessmentStatus = "verified"
	StatusForRevision           AssessmentStatus = "for_revision"
	StatusRejected              AssessmentStatus = "rejected"
)

// AssessmentStatuses lists every valid status.
var AssessmentStatuses = []AssessmentStatus{
	StatusPendingDigitalReview,
	StatusWaitingForSample,
	StatusPendingPhysicalReview,
	StatusVerified,
	StatusForRevision,
	StatusRejected,
}

// Valid reports whether s is one of the known statuses.
func (s AssessmentStatus) Valid() bool {
	for _, known := range AssessmentStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s AssessmentStatus) Terminal() bool {
	return s == StatusVerified || s == StatusRejected
}

// Assessment is the QA case for exactly one product. There is at most one
// assessment per product, enforced by a unique constraint on ProductID.
type Assessment struct {
	ID                  uuid.UUID        `json:"id" db:"id"`
	ProductID           uuid.UUID        `json:"product_id" db:"product_id"`
	Status              AssessmentStatus `json:"status" db:"status"`
	SubmittedAt         time.Time        `json:"submitted_at" db:"submitted_at"`
	VerifiedAt          *time.Time       `json:"verified_at,omitempty" db:"verified_at"`
	RevisionRequestedAt *time.Time       `json:"revision_requested_at,omitempty" db:"revision_requested_at"`
	CreatedBy           *uuid.UUID       `json:"created_by,omitempty" db:"created_by"`
	AssignedTo          *uuid.UUID       `json:"assigned_to,omitempty" db:"assigned_to"`
	CreatedAt           time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at" db:"updated_at"`
}

// Action is an operator or seller intent against an assessment.
type Action string

const (
	ActionApproveDigital  Action = "approve_digital"
	ActionSubmitSample    Action = "submit_sample"
	ActionVerify          Action = "verify"
	ActionReject          Action = "reject"
	ActionRequestRevision Action = "request_revision"
	ActionResubmit        Action = "resubmit"
)

// Actions lists every valid action.
var Actions = []Action{
	ActionApproveDigital,
	ActionSubmitSample,
	ActionVerify,
	ActionReject,
	ActionRequestRevision,
	ActionResubmit,
}

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// AuditKind names which append-only record a transition writes.
type AuditKind string

const (
	AuditNone      AuditKind = ""
	AuditApproval  AuditKind = "approval"
	AuditRejection AuditKind = "rejection"
	AuditRevision  AuditKind = "revision"
	AuditLogistics AuditKind = "logistics"
)

// TransitionRule describes one row of the legal state graph: the statuses an
// action may fire from, the status it lands in, and the audit record it writes.
// A nil From set means "any non-terminal status".
type TransitionRule struct {
	From  []AssessmentStatus
	To    AssessmentStatus
	Audit AuditKind
}

var transitionRules = map[Action]TransitionRule{
	ActionApproveDigital: {
		From:  []AssessmentStatus{StatusPendingDigitalReview},
		To:    StatusWaitingForSample,
		Audit: AuditApproval,
	},
	ActionSubmitSample: {
		From:  []AssessmentStatus{StatusWaitingForSample},
		To:    StatusPendingPhysicalReview,
		Audit: AuditLogistics,
	},
	ActionVerify: {
		From:  []AssessmentStatus{StatusPendingPhysicalReview},
		To:    StatusVerified,
		Audit: AuditApproval,
	},
	ActionReject: {
		From:  nil,
		To:    StatusRejected,
		Audit: AuditRejection,
	},
	ActionRequestRevision: {
		From:  nil,
		To:    StatusForRevision,
		Audit: AuditRevision,
	},
	// Re-entry after a revision request: the seller resubmits and the same
	// assessment restarts digital review, keeping the one-per-product
	// invariant and the accumulated audit trail. No audit record is written;
	// the revision record already marks the round trip.
	ActionResubmit: {
		From:  []AssessmentStatus{StatusForRevision},
		To:    StatusPendingDigitalReview,
		Audit: AuditNone,
	},
}

// RuleFor returns the transition rule for firing action from the given
// status. ok is false when the pair is not in the legal graph. Terminal
// statuses admit no action; callers distinguish that case themselves when
// they want a more specific error.
func RuleFor(from AssessmentStatus, action Action) (TransitionRule, bool) {
	rule, exists := transitionRules[action]
	if !exists || from.Terminal() {
		return TransitionRule{}, false
	}
	if rule.From == nil {
		return rule, true
	}
	for _, legal := range rule.From {
		if from == legal {
			return rule, true
		}
	}
	return TransitionRule{}, false
}

// Project derives the coarse product approval status from the fine-grained
// assessment status. Pure: depends on nothing but its input.
func Project(s AssessmentStatus) ApprovalStatus {
	switch s {
	case StatusVerified:
		return ApprovalApproved
	case StatusRejected:
		return ApprovalRejected
	default:
		return ApprovalPending
	}
}
