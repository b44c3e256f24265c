package scope

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Service orchestrates scope item flows. Cost redaction is driven by the
// authorization decision the caller obtained, not re-derived here.
type Service struct {
	repo Repository
}

// NewService constructs the scope service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateInput describes a new scope item.
type CreateInput struct {
	ProjectID   uuid.UUID
	Description string
	Quantity    float64
	Unit        string
	UnitPrice   float64
	CreatedBy   int64
}

// Create appends a scope item with the next item number for the project.
// Total price is derived, never accepted from the caller.
func (s *Service) Create(ctx context.Context, input CreateInput) (Item, error) {
	description := strings.TrimSpace(input.Description)
	if description == "" || input.ProjectID == uuid.Nil {
		return Item{}, ErrValidation
	}
	if input.Quantity < 0 || input.UnitPrice < 0 {
		return Item{}, ErrValidation
	}
	itemNo, err := s.repo.NextItemNo(ctx, input.ProjectID)
	if err != nil {
		return Item{}, err
	}
	return s.repo.Create(ctx, Item{
		ID:          uuid.New(),
		ProjectID:   input.ProjectID,
		ItemNo:      itemNo,
		Description: description,
		Quantity:    input.Quantity,
		Unit:        strings.TrimSpace(input.Unit),
		UnitPrice:   input.UnitPrice,
		TotalPrice:  input.Quantity * input.UnitPrice,
		CreatedBy:   input.CreatedBy,
	})
}

// Get fetches a scope item, clearing the cost fields named in redact.
func (s *Service) Get(ctx context.Context, id uuid.UUID, redact []string) (Item, []string, error) {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return Item{}, nil, err
	}
	cleared := item.Redact(redact)
	return item, cleared, nil
}

// ListByProject returns the project's scope items with the named cost
// fields cleared on every row.
func (s *Service) ListByProject(ctx context.Context, projectID uuid.UUID, redact []string) ([]Item, []string, error) {
	items, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	var cleared []string
	for i := range items {
		cleared = items[i].Redact(redact)
	}
	return items, cleared, nil
}

// UpdateInput describes a scope item edit.
type UpdateInput struct {
	ID          uuid.UUID
	Description string
	Quantity    float64
	Unit        string
	UnitPrice   float64
}

// Update rewrites a scope item and recomputes the total.
func (s *Service) Update(ctx context.Context, input UpdateInput) (Item, error) {
	description := strings.TrimSpace(input.Description)
	if description == "" || input.Quantity < 0 || input.UnitPrice < 0 {
		return Item{}, ErrValidation
	}
	item, err := s.repo.Get(ctx, input.ID)
	if err != nil {
		return Item{}, err
	}
	item.Description = description
	item.Quantity = input.Quantity
	item.Unit = strings.TrimSpace(input.Unit)
	item.UnitPrice = input.UnitPrice
	item.TotalPrice = input.Quantity * input.UnitPrice
	if err := s.repo.Update(ctx, item); err != nil {
		return Item{}, err
	}
	return item, nil
}
