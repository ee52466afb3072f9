package services

import (
	"fmt"

	"github.com/clubsphere/admin-backend/v1/models"
)

// ScopeService narrows a directory listing to what the acting administrator
// is allowed to see. Authorization is a pure computation over the already
// fetched entries; it never talks to the platform.
type ScopeService struct{}

// NewScopeService creates a ScopeService
func NewScopeService() *ScopeService {
	return &ScopeService{}
}

// Authorize applies the visibility rules to the entries. The rules are
// evaluated in fixed precedence order and exactly one fires:
//
//  1. super_admin sees everything, unfiltered.
//  2. admin with a local field sees that local field.
//  3. admin with a union sees that union.
//  4. admin with a country sees that country.
//  5. coordinator with a union sees that union.
//  6. coordinator with a country sees that country.
//  7. any principal with a self id sees only their own entry.
//  8. otherwise the result is empty. Unresolvable scope fails closed,
//     never open.
//
// The input slice is never mutated; repeated application of the same rule
// is idempotent.
func (s *ScopeService) Authorize(entries []models.DirectoryEntry, principal models.Principal) models.ScopeDecision {
	decision := models.ScopeDecision{
		Applied:     true,
		SourceTotal: len(entries),
	}

	switch {
	case principal.HasRole(models.RoleSuperAdmin):
		decision.Items = append([]models.DirectoryEntry{}, entries...)
		decision.Applied = false
		decision.RuleKey = models.ScopeRuleNone
		decision.Label = "global access (super_admin)"

	case principal.HasRole(models.RoleAdmin) && principal.LocalFieldID != "":
		decision.Items = filterEntries(entries, func(e models.DirectoryEntry) bool {
			return e.Geo.LocalFieldID == principal.LocalFieldID
		})
		decision.RuleKey = models.ScopeRuleLocalField
		decision.Label = fmt.Sprintf("scope: local field %s", principal.LocalFieldID)

	case principal.HasRole(models.RoleAdmin) && principal.UnionID != "":
		decision.Items = filterEntries(entries, func(e models.DirectoryEntry) bool {
			return e.Geo.UnionID == principal.UnionID
		})
		decision.RuleKey = models.ScopeRuleUnion
		decision.Label = fmt.Sprintf("scope: union %s", principal.UnionID)

	case principal.HasRole(models.RoleAdmin) && principal.CountryID != "":
		decision.Items = filterEntries(entries, func(e models.DirectoryEntry) bool {
			return e.Geo.CountryID == principal.CountryID
		})
		decision.RuleKey = models.ScopeRuleCountry
		decision.Label = fmt.Sprintf("scope: country %s", principal.CountryID)

	case principal.HasRole(models.RoleCoordinator) && principal.UnionID != "":
		decision.Items = filterEntries(entries, func(e models.DirectoryEntry) bool {
			return e.Geo.UnionID == principal.UnionID
		})
		decision.RuleKey = models.ScopeRuleUnion
		decision.Label = fmt.Sprintf("scope: union %s", principal.UnionID)

	case principal.HasRole(models.RoleCoordinator) && principal.CountryID != "":
		decision.Items = filterEntries(entries, func(e models.DirectoryEntry) bool {
			return e.Geo.CountryID == principal.CountryID
		})
		decision.RuleKey = models.ScopeRuleCountry
		decision.Label = fmt.Sprintf("scope: country %s", principal.CountryID)

	case principal.SelfID != "":
		decision.Items = filterEntries(entries, func(e models.DirectoryEntry) bool {
			return e.ID == principal.SelfID
		})
		decision.RuleKey = models.ScopeRuleSelf
		decision.Label = "restricted to authenticated user"

	default:
		decision.Items = []models.DirectoryEntry{}
		decision.RuleKey = models.ScopeRuleSelf
		decision.Label = "no resolvable scope - access restricted"
	}

	decision.ScopedTotal = len(decision.Items)
	return decision
}

// filterEntries returns the entries matching the predicate, never nil
func filterEntries(entries []models.DirectoryEntry, keep func(models.DirectoryEntry) bool) []models.DirectoryEntry {
	out := []models.DirectoryEntry{}
	for _, e := range entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
