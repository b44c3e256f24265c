package authz

import (
	"errors"

	"github.com/google/uuid"
)

// Role is one of the six closed role categories.
type Role string

const (
	RoleManagement      Role = "management"
	RoleTechnicalLead   Role = "technical_lead"
	RoleProjectManager  Role = "project_manager"
	RolePurchaseManager Role = "purchase_manager"
	RoleClient          Role = "client"
	RoleAdmin           Role = "admin"
)

// Seniority scales approval limits within a role.
type Seniority string

const (
	SeniorityExecutive Seniority = "executive"
	SenioritySenior    Seniority = "senior"
	SeniorityRegular   Seniority = "regular"
	SeniorityStandard  Seniority = "standard"
)

// Action names a permitted capability.
type Action string

const (
	ActionViewProject   Action = "view_project"
	ActionCreateProject Action = "create_project"
	ActionEditProject   Action = "edit_project"
	ActionManageMembers Action = "manage_members"

	ActionViewScopeItem Action = "view_scope_item"
	ActionEditScopeItem Action = "edit_scope_item"

	ActionViewPurchaseOrder    Action = "view_purchase_order"
	ActionCreatePurchaseOrder  Action = "create_purchase_order"
	ActionApprovePurchaseOrder Action = "approve_purchase_order"

	ActionViewDocument    Action = "view_document"
	ActionUploadDocument  Action = "upload_document"
	ActionApproveDocument Action = "approve_document"

	ActionApproveBudgetChange      Action = "approve_budget_change"
	ActionApproveTimelineExtension Action = "approve_timeline_extension"

	ActionViewCost    Action = "view_cost"
	ActionManageUsers Action = "manage_users"
)

// Principal is the authenticated actor a decision is made for.
type Principal struct {
	UserID    int64
	Role      Role
	Seniority Seniority
	Active    bool
}

// Resource carries the metadata a decision needs about the record
// being accessed. CostFields lists the cost-bearing field names the
// resource exposes; Amount is set for financial approval actions.
type Resource struct {
	ProjectID  uuid.UUID
	OwnerID    int64
	CostFields []string
	Amount     float64
}

// Decision is the outcome of an evaluation. Deny and redact are return
// values, never errors.
type Decision struct {
	Allow          bool
	Reason         string
	RedactedFields []string
}

// Decision reasons.
const (
	ReasonGranted              = "granted"
	ReasonRoleBypass           = "role_bypass"
	ReasonPrincipalInactive    = "principal_inactive"
	ReasonCapabilityNotGranted = "capability_not_granted"
	ReasonNoProjectMembership  = "no_project_membership"
	ReasonExceedsApprovalLimit = "exceeds_approval_limit"
	ReasonUnknownRole          = "unknown_role"
	ReasonUnknownAction        = "unknown_action"
)

// ApprovalLimit is the ceiling for financial approvals per (role, seniority).
type ApprovalLimit struct {
	Budget       float64
	TimelineDays int
}

// ErrConfiguration flags a request for a role or action the capability
// table does not know. The decision still fails closed; the error exists
// so callers can distinguish a deployment bug from an ordinary deny.
var ErrConfiguration = errors.New("authz: configuration error")
