package authz

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config is the immutable table set behind every decision: the
// role→capability table, the (role, seniority)→approval-limit table and
// the cost-visibility role set. A Config is built once and never mutated;
// reloads swap the whole object through a Store.
type Config struct {
	version      int64
	capabilities map[Role]map[Action]struct{}
	limits       map[Role]map[Seniority]ApprovalLimit
	costVisible  map[Role]struct{}
	actions      map[Action]struct{}
}

// Version identifies the loaded table generation. Callers must not reuse
// decisions across a version change.
func (c *Config) Version() int64 {
	return c.version
}

// KnownRole reports whether the role exists in the capability table.
func (c *Config) KnownRole(role Role) bool {
	_, ok := c.capabilities[role]
	return ok
}

// KnownAction reports whether the action belongs to the closed action set.
func (c *Config) KnownAction(action Action) bool {
	_, ok := c.actions[action]
	return ok
}

// Capable reports whether the role is granted the action.
func (c *Config) Capable(role Role, action Action) bool {
	caps, ok := c.capabilities[role]
	if !ok {
		return false
	}
	_, ok = caps[action]
	return ok
}

// CostVisible reports whether the role may read cost fields.
func (c *Config) CostVisible(role Role) bool {
	_, ok := c.costVisible[role]
	return ok
}

// ResolveLimit returns the approval limit for (role, seniority). A missing
// or unrecognised seniority falls back to the role's most conservative
// configured limit, never to unlimited. An unknown role resolves to the
// zero limit.
func (c *Config) ResolveLimit(role Role, seniority Seniority) ApprovalLimit {
	tiers, ok := c.limits[role]
	if !ok || len(tiers) == 0 {
		return ApprovalLimit{}
	}
	if limit, ok := tiers[seniority]; ok {
		return limit
	}
	return floorLimit(tiers)
}

func floorLimit(tiers map[Seniority]ApprovalLimit) ApprovalLimit {
	first := true
	var floor ApprovalLimit
	for _, limit := range tiers {
		if first {
			floor = limit
			first = false
			continue
		}
		if limit.Budget < floor.Budget {
			floor.Budget = limit.Budget
		}
		if limit.TimelineDays < floor.TimelineDays {
			floor.TimelineDays = limit.TimelineDays
		}
	}
	return floor
}

// DefaultConfig returns the built-in capability and limit tables.
func DefaultConfig() *Config {
	b := newConfigBuilder()

	b.grant(RoleAdmin, allActions()...)
	b.grant(RoleManagement, allActions()...)

	b.grant(RoleTechnicalLead,
		ActionViewProject, ActionEditProject,
		ActionViewScopeItem, ActionEditScopeItem,
		ActionViewPurchaseOrder,
		ActionViewDocument, ActionUploadDocument, ActionApproveDocument,
		ActionApproveBudgetChange, ActionApproveTimelineExtension,
		ActionViewCost,
	)
	b.grant(RoleProjectManager,
		ActionViewProject, ActionCreateProject, ActionEditProject, ActionManageMembers,
		ActionViewScopeItem, ActionEditScopeItem,
		ActionViewPurchaseOrder, ActionCreatePurchaseOrder,
		ActionViewDocument, ActionUploadDocument, ActionApproveDocument,
		ActionApproveBudgetChange, ActionApproveTimelineExtension,
	)
	b.grant(RolePurchaseManager,
		ActionViewProject,
		ActionViewScopeItem,
		ActionViewPurchaseOrder, ActionCreatePurchaseOrder, ActionApprovePurchaseOrder,
		ActionViewDocument,
		ActionApproveBudgetChange,
		ActionViewCost,
	)
	b.grant(RoleClient,
		ActionViewProject,
		ActionViewScopeItem,
		ActionViewPurchaseOrder,
		ActionViewDocument,
	)

	b.limit(RoleManagement, SeniorityExecutive, ApprovalLimit{Budget: 500000, TimelineDays: 90})
	b.limit(RoleManagement, SenioritySenior, ApprovalLimit{Budget: 500000, TimelineDays: 90})
	b.limit(RoleAdmin, SeniorityStandard, ApprovalLimit{Budget: 500000, TimelineDays: 90})

	b.limit(RoleTechnicalLead, SenioritySenior, ApprovalLimit{Budget: 75000, TimelineDays: 30})
	b.limit(RoleTechnicalLead, SeniorityRegular, ApprovalLimit{Budget: 75000, TimelineDays: 30})

	b.limit(RoleProjectManager, SeniorityExecutive, ApprovalLimit{Budget: 50000, TimelineDays: 30})
	b.limit(RoleProjectManager, SenioritySenior, ApprovalLimit{Budget: 50000, TimelineDays: 30})
	b.limit(RoleProjectManager, SeniorityRegular, ApprovalLimit{Budget: 15000, TimelineDays: 7})
	b.limit(RoleProjectManager, SeniorityStandard, ApprovalLimit{Budget: 15000, TimelineDays: 7})

	b.limit(RolePurchaseManager, SenioritySenior, ApprovalLimit{Budget: 100000})
	b.limit(RolePurchaseManager, SeniorityRegular, ApprovalLimit{Budget: 25000})
	b.limit(RolePurchaseManager, SeniorityStandard, ApprovalLimit{Budget: 25000})

	b.limit(RoleClient, SeniorityStandard, ApprovalLimit{})

	b.costVisible(RoleManagement, RoleTechnicalLead, RolePurchaseManager, RoleAdmin)

	return b.build(1)
}

// LoadConfigFile reads capability and limit overrides from a JSON file and
// returns them as a fresh Config. Used when AUTHZ_CONFIG_PATH is set.
func LoadConfigFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("authz: read config: %w", err)
	}
	var doc configFile
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("authz: parse config: %w", err)
	}
	if len(doc.Capabilities) == 0 {
		return nil, fmt.Errorf("%w: empty capability table in %s", ErrConfiguration, path)
	}
	b := newConfigBuilder()
	for role, actions := range doc.Capabilities {
		for _, action := range actions {
			b.grant(Role(role), Action(action))
		}
	}
	for role, tiers := range doc.Limits {
		for seniority, limit := range tiers {
			b.limit(Role(role), Seniority(seniority), ApprovalLimit{
				Budget:       limit.Budget,
				TimelineDays: limit.TimelineDays,
			})
		}
	}
	for _, role := range doc.CostVisible {
		b.costVisible(Role(role))
	}
	return b.build(1), nil
}

type configFile struct {
	Capabilities map[string][]string `json:"capabilities"`
	Limits       map[string]map[string]struct {
		Budget       float64 `json:"budget"`
		TimelineDays int     `json:"timeline_days"`
	} `json:"limits"`
	CostVisible []string `json:"cost_visible"`
}

type configBuilder struct {
	capabilities map[Role]map[Action]struct{}
	limits       map[Role]map[Seniority]ApprovalLimit
	cost         map[Role]struct{}
	actions      map[Action]struct{}
}

func newConfigBuilder() *configBuilder {
	return &configBuilder{
		capabilities: make(map[Role]map[Action]struct{}),
		limits:       make(map[Role]map[Seniority]ApprovalLimit),
		cost:         make(map[Role]struct{}),
		actions:      make(map[Action]struct{}),
	}
}

func (b *configBuilder) grant(role Role, actions ...Action) {
	caps, ok := b.capabilities[role]
	if !ok {
		caps = make(map[Action]struct{})
		b.capabilities[role] = caps
	}
	for _, action := range actions {
		caps[action] = struct{}{}
		b.actions[action] = struct{}{}
	}
}

func (b *configBuilder) limit(role Role, seniority Seniority, limit ApprovalLimit) {
	tiers, ok := b.limits[role]
	if !ok {
		tiers = make(map[Seniority]ApprovalLimit)
		b.limits[role] = tiers
	}
	tiers[seniority] = limit
}

func (b *configBuilder) costVisible(roles ...Role) {
	for _, role := range roles {
		b.cost[role] = struct{}{}
	}
}

func (b *configBuilder) build(version int64) *Config {
	return &Config{
		version:      version,
		capabilities: b.capabilities,
		limits:       b.limits,
		costVisible:  b.cost,
		actions:      b.actions,
	}
}

func allActions() []Action {
	return []Action{
		ActionViewProject, ActionCreateProject, ActionEditProject, ActionManageMembers,
		ActionViewScopeItem, ActionEditScopeItem,
		ActionViewPurchaseOrder, ActionCreatePurchaseOrder, ActionApprovePurchaseOrder,
		ActionViewDocument, ActionUploadDocument, ActionApproveDocument,
		ActionApproveBudgetChange, ActionApproveTimelineExtension,
		ActionViewCost, ActionManageUsers,
	}
}
