package scope

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Cost field names carried on scope resources. The evaluator decides
// whether the caller may see them.
const (
	CostFieldUnitPrice  = "unit_price"
	CostFieldTotalPrice = "total_price"
)

// CostFields lists every cost-bearing field on a scope item.
func CostFields() []string {
	return []string{CostFieldUnitPrice, CostFieldTotalPrice}
}

// Item is a line of project scope, e.g. "supply and install 120 m2 of
// raised flooring".
type Item struct {
	ID          uuid.UUID
	ProjectID   uuid.UUID
	ItemNo      int
	Description string
	Quantity    float64
	Unit        string
	UnitPrice   float64
	TotalPrice  float64
	CreatedBy   int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Redact zeroes the named cost fields. Returns the field names that were
// actually cleared so responses can say what was withheld.
func (i *Item) Redact(fields []string) []string {
	var cleared []string
	for _, field := range fields {
		switch field {
		case CostFieldUnitPrice:
			i.UnitPrice = 0
			cleared = append(cleared, field)
		case CostFieldTotalPrice:
			i.TotalPrice = 0
			cleared = append(cleared, field)
		}
	}
	return cleared
}

var (
	// ErrNotFound indicates the scope item does not exist.
	ErrNotFound = errors.New("scope: item not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("scope: invalid input")
)
