package models

// Role names recognized by the scope authorizer. These come from the
// platform's role catalog, not from this service.
const (
	RoleSuperAdmin  = "super_admin"
	RoleAdmin       = "admin"
	RoleCoordinator = "coordinator"
)

// ScopeRuleKey identifies which visibility rule produced a ScopeDecision.
type ScopeRuleKey string

const (
	ScopeRuleNone       ScopeRuleKey = "none"
	ScopeRuleCountry    ScopeRuleKey = "country_id"
	ScopeRuleUnion      ScopeRuleKey = "union_id"
	ScopeRuleLocalField ScopeRuleKey = "local_field_id"
	ScopeRuleSelf       ScopeRuleKey = "self"
)

// Principal describes the acting administrator for one authorization
// decision. It is built fresh from the authenticated user per request and
// never mutated.
type Principal struct {
	Roles        []string `json:"roles"`
	SelfID       string   `json:"selfId,omitempty"`
	CountryID    string   `json:"countryId,omitempty"`
	UnionID      string   `json:"unionId,omitempty"`
	LocalFieldID string   `json:"localFieldId,omitempty"`
}

// HasRole reports whether the principal carries the given role name
func (p *Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ScopeDecision is the output of scope authorization: the visible subset
// plus an explanation of which rule fired, surfaced for audit/debugging.
type ScopeDecision struct {
	Items       []DirectoryEntry `json:"items"`
	Applied     bool             `json:"applied"`
	RuleKey     ScopeRuleKey     `json:"ruleKey"`
	Label       string           `json:"label"`
	SourceTotal int              `json:"sourceTotal"`
	ScopedTotal int              `json:"scopedTotal"`
}
