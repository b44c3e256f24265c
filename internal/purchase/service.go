package purchase

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/keramy/formulapmv2-sub004/internal/authz"
	"github.com/keramy/formulapmv2-sub004/internal/shared"
)

const moduleName = "purchase"

// Decider is the authorization decision point for approvals.
type Decider interface {
	Evaluate(ctx context.Context, principal authz.Principal, action authz.Action, resource *authz.Resource) (authz.Decision, error)
}

// ApprovalPort records approval history.
type ApprovalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
	EnsureSubmit(ctx context.Context, module string, ref uuid.UUID, actorID int64, note string) error
}

// IdempotencyPort guards approval posting against replays.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service orchestrates the purchase order workflow. Every approve and
// reject re-consults the decider so the limit tables stay the single
// source of truth.
type Service struct {
	repo        Repository
	decider     Decider
	approvals   ApprovalPort
	idempotency IdempotencyPort
	printer     *message.Printer
}

// NewService constructs the purchase service.
func NewService(repo Repository, decider Decider, approvals ApprovalPort, idempotency IdempotencyPort) *Service {
	return &Service{
		repo:        repo,
		decider:     decider,
		approvals:   approvals,
		idempotency: idempotency,
		printer:     message.NewPrinter(language.English),
	}
}

// LineInput describes one order line.
type LineInput struct {
	Description string
	Quantity    float64
	UnitPrice   float64
}

// CreateInput describes a new draft order.
type CreateInput struct {
	ProjectID    uuid.UUID
	PONumber     string
	SupplierName string
	Description  string
	Currency     string
	Lines        []LineInput
	CreatedBy    int64
}

// Create registers a draft order. The total is summed from the lines.
func (s *Service) Create(ctx context.Context, input CreateInput) (Order, error) {
	poNumber := strings.TrimSpace(strings.ToUpper(input.PONumber))
	supplier := strings.TrimSpace(input.SupplierName)
	if poNumber == "" || supplier == "" || input.ProjectID == uuid.Nil || len(input.Lines) == 0 {
		return Order{}, ErrValidation
	}
	currency := strings.TrimSpace(strings.ToUpper(input.Currency))
	if currency == "" {
		currency = "USD"
	}
	order := Order{
		ID:           uuid.New(),
		ProjectID:    input.ProjectID,
		PONumber:     poNumber,
		SupplierName: supplier,
		Description:  strings.TrimSpace(input.Description),
		Currency:     currency,
		Status:       StatusDraft,
		CreatedBy:    input.CreatedBy,
	}
	for _, line := range input.Lines {
		description := strings.TrimSpace(line.Description)
		if description == "" || line.Quantity <= 0 || line.UnitPrice < 0 {
			return Order{}, ErrValidation
		}
		total := line.Quantity * line.UnitPrice
		order.Lines = append(order.Lines, Line{
			Description: description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			TotalPrice:  total,
		})
		order.TotalAmount += total
	}
	return s.repo.Create(ctx, order)
}

// Get fetches an order, clearing the cost fields named in redact.
func (s *Service) Get(ctx context.Context, id uuid.UUID, redact []string) (Order, []string, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return Order{}, nil, err
	}
	cleared := order.Redact(redact)
	return order, cleared, nil
}

// ListByProject returns the project's orders with the named cost fields
// cleared on every row.
func (s *Service) ListByProject(ctx context.Context, projectID uuid.UUID, redact []string) ([]Order, []string, error) {
	orders, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	var cleared []string
	for i := range orders {
		cleared = orders[i].Redact(redact)
	}
	return orders, cleared, nil
}

// Submit moves a draft into the approval queue.
func (s *Service) Submit(ctx context.Context, actorID int64, id uuid.UUID) error {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if order.Status != StatusDraft {
		return fmt.Errorf("%w: %s", ErrInvalidTransition, order.Status)
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusPendingApproval, nil); err != nil {
		return err
	}
	if s.approvals != nil {
		note := s.printer.Sprintf("submitted %s for %s %.2f", order.PONumber, order.Currency, order.TotalAmount)
		_ = s.approvals.EnsureSubmit(ctx, moduleName, id, actorID, note)
	}
	return nil
}

// Approve posts an approval decision. The idempotency key guards double
// submits; the decider enforces both the capability and the actor's
// approval limit against the order total.
func (s *Service) Approve(ctx context.Context, principal authz.Principal, id uuid.UUID, idempotencyKey string) (Order, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if order.Status != StatusPendingApproval {
		return Order{}, fmt.Errorf("%w: %s", ErrInvalidTransition, order.Status)
	}
	if s.idempotency != nil && idempotencyKey != "" {
		if err := s.idempotency.CheckAndInsert(ctx, idempotencyKey, moduleName); err != nil {
			return Order{}, err
		}
	}

	decision, err := s.decider.Evaluate(ctx, principal, authz.ActionApprovePurchaseOrder, &authz.Resource{
		ProjectID: order.ProjectID,
		Amount:    order.TotalAmount,
	})
	if err != nil {
		s.releaseKey(ctx, idempotencyKey)
		return Order{}, err
	}
	if !decision.Allow {
		s.releaseKey(ctx, idempotencyKey)
		if decision.Reason == authz.ReasonExceedsApprovalLimit {
			s.recordApproval(ctx, id, principal.UserID, shared.ApprovalEscalate,
				s.printer.Sprintf("%s %.2f exceeds limit for %s/%s", order.Currency, order.TotalAmount, principal.Role, principal.Seniority))
			return Order{}, ErrLimitExceeded
		}
		return Order{}, fmt.Errorf("%w: %s", ErrForbidden, decision.Reason)
	}

	if err := s.repo.UpdateStatus(ctx, id, StatusApproved, &principal.UserID); err != nil {
		s.releaseKey(ctx, idempotencyKey)
		return Order{}, err
	}
	s.recordApproval(ctx, id, principal.UserID, shared.ApprovalApprove,
		s.printer.Sprintf("approved %s for %s %.2f", order.PONumber, order.Currency, order.TotalAmount))
	return s.repo.Get(ctx, id)
}

// Reject posts a rejection. Capability is still checked; the amount is
// not, since rejecting never spends money.
func (s *Service) Reject(ctx context.Context, principal authz.Principal, id uuid.UUID, note string) (Order, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if order.Status != StatusPendingApproval {
		return Order{}, fmt.Errorf("%w: %s", ErrInvalidTransition, order.Status)
	}
	decision, err := s.decider.Evaluate(ctx, principal, authz.ActionApprovePurchaseOrder, &authz.Resource{ProjectID: order.ProjectID})
	if err != nil {
		return Order{}, err
	}
	if !decision.Allow {
		return Order{}, fmt.Errorf("%w: %s", ErrForbidden, decision.Reason)
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusRejected, nil); err != nil {
		return Order{}, err
	}
	s.recordApproval(ctx, id, principal.UserID, shared.ApprovalReject, note)
	return s.repo.Get(ctx, id)
}

// Cancel withdraws a draft or pending order.
func (s *Service) Cancel(ctx context.Context, actorID int64, id uuid.UUID) error {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if order.Status != StatusDraft && order.Status != StatusPendingApproval {
		return fmt.Errorf("%w: %s", ErrInvalidTransition, order.Status)
	}
	return s.repo.UpdateStatus(ctx, id, StatusCancelled, nil)
}

func (s *Service) recordApproval(ctx context.Context, ref uuid.UUID, actorID int64, action shared.ApprovalAction, note string) {
	if s.approvals == nil {
		return
	}
	_ = s.approvals.Record(ctx, shared.ApprovalLog{Module: moduleName, RefID: ref, ActorID: actorID, Action: action, Note: note})
}

func (s *Service) releaseKey(ctx context.Context, key string) {
	if s.idempotency == nil || key == "" {
		return
	}
	_ = s.idempotency.Delete(ctx, key)
}
