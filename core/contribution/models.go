package contribution

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ptahub/core"
)

// Status of a contribution in the verification workflow.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusVerified Status = "VERIFIED"
	StatusRejected Status = "REJECTED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusRejected:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusVerified || s == StatusRejected
}

// Type of a contribution.
type Type string

const (
	TypeCash   Type = "CASH"
	TypeInKind Type = "INKIND"
)

func (t Type) Valid() bool {
	return t == TypeCash || t == TypeInKind
}

type (
	// Contribution records a parent's payment or in-kind donation towards a
	// project, or towards the general fund when ProjectID is unset.
	Contribution struct {
		ID              string      `json:"id"`
		ParentID        string      `json:"parent_id"`
		ProjectID       null.String `json:"project_id,omitempty"`
		Amount          float64     `json:"amount"`
		Type            Type        `json:"type"`
		Date            time.Time   `json:"date"`
		Status          Status      `json:"status"`
		ReceiptNumber   null.String `json:"receipt_number,omitempty"`
		VerifiedAt      null.Time   `json:"verified_at,omitempty"`
		RejectionReason null.String `json:"rejection_reason,omitempty"`
		CreatedAt       time.Time   `json:"created_at"` // UTC
	}

	// Balance is a parent's verified total and pending backlog.
	Balance struct {
		ParentID      string  `json:"parent_id"`
		VerifiedTotal float64 `json:"verified_total"`
		PendingCount  int     `json:"pending_count"`
		PendingTotal  float64 `json:"pending_total"`
	}

	// Summary aggregates all contributions for reporting.
	Summary struct {
		StatusCounts  map[Status]int `json:"status_counts"`
		VerifiedTotal float64        `json:"verified_total"`
		PendingTotal  float64        `json:"pending_total"`
		Total         int            `json:"total"`
	}
)

// NewContribution contains information needed to declare a contribution.
type NewContribution struct {
	ProjectID string    `json:"project_id"`
	Amount    float64   `json:"amount" validate:"required,gt=0"`
	Type      Type      `json:"type" validate:"required,contributiontype"`
	Date      time.Time `json:"date" validate:"required"`
}

func (nc *NewContribution) Validate(validate *validator.Validate) error {
	nc.ProjectID = core.CleanString(nc.ProjectID)
	return validate.Struct(nc)
}

// UpdateContribution defines what may be modified on a PENDING contribution.
type UpdateContribution struct {
	ProjectID string    `json:"project_id"`
	Amount    float64   `json:"amount" validate:"omitempty,gt=0"`
	Type      Type      `json:"type" validate:"omitempty,contributiontype"`
	Date      time.Time `json:"date"`
}

func (uc *UpdateContribution) Validate(validate *validator.Validate) error {
	uc.ProjectID = core.CleanString(uc.ProjectID)
	return validate.Struct(uc)
}
