package purchase

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Purchase order lifecycle statuses.
type Status string

const (
	StatusDraft           Status = "DRAFT"
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusApproved        Status = "APPROVED"
	StatusRejected        Status = "REJECTED"
	StatusCancelled       Status = "CANCELLED"
)

// Cost field names carried on purchase order resources.
const (
	CostFieldUnitPrice   = "unit_price"
	CostFieldTotalPrice  = "total_price"
	CostFieldTotalAmount = "total_amount"
)

// CostFields lists every cost-bearing field on a purchase order.
func CostFields() []string {
	return []string{CostFieldUnitPrice, CostFieldTotalPrice, CostFieldTotalAmount}
}

// Line is a single purchase order line.
type Line struct {
	ID          int64
	OrderID     uuid.UUID
	Description string
	Quantity    float64
	UnitPrice   float64
	TotalPrice  float64
}

// Order is a purchase order raised against a project.
type Order struct {
	ID           uuid.UUID
	ProjectID    uuid.UUID
	PONumber     string
	SupplierName string
	Description  string
	Currency     string
	TotalAmount  float64
	Status       Status
	CreatedBy    int64
	ApprovedBy   *int64
	Lines        []Line
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Redact zeroes the named cost fields on the order and its lines.
// Returns the field names that were actually cleared.
func (o *Order) Redact(fields []string) []string {
	var cleared []string
	for _, field := range fields {
		switch field {
		case CostFieldUnitPrice:
			for i := range o.Lines {
				o.Lines[i].UnitPrice = 0
			}
			cleared = append(cleared, field)
		case CostFieldTotalPrice:
			for i := range o.Lines {
				o.Lines[i].TotalPrice = 0
			}
			cleared = append(cleared, field)
		case CostFieldTotalAmount:
			o.TotalAmount = 0
			cleared = append(cleared, field)
		}
	}
	return cleared
}

var (
	// ErrNotFound indicates the purchase order does not exist.
	ErrNotFound = errors.New("purchase: order not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("purchase: invalid input")
	// ErrInvalidTransition indicates the order is not in the required status.
	ErrInvalidTransition = errors.New("purchase: invalid status transition")
	// ErrForbidden indicates the actor may not perform the approval action.
	ErrForbidden = errors.New("purchase: action not permitted")
	// ErrLimitExceeded indicates the order amount exceeds the actor's
	// approval limit and needs escalation.
	ErrLimitExceeded = errors.New("purchase: amount exceeds approval limit")
	// ErrDuplicateNumber indicates the PO number is taken.
	ErrDuplicateNumber = errors.New("purchase: po number already used")
)
