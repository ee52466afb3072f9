package models

// ApprovalState is the tri-state approval signal carried by directory entries.
// Upstream encodes approval as a boolean, a 0/1 integer or a string enum;
// normalization collapses all of them into pending/resolved.
type ApprovalState string

const (
	ApprovalPending  ApprovalState = "pending"
	ApprovalResolved ApprovalState = "resolved"
)

// EndpointHealth classifies the operational state of the upstream directory
// endpoint after a failed call.
type EndpointHealth string

const (
	HealthAvailable   EndpointHealth = "available"
	HealthForbidden   EndpointHealth = "forbidden"
	HealthRateLimited EndpointHealth = "rate-limited"
	HealthMissing     EndpointHealth = "missing"
	HealthUnavailable EndpointHealth = "unavailable"
)

// GeoScope holds the geographic references of a directory entry. Empty
// string means the upstream record carried no usable identifier.
type GeoScope struct {
	CountryID      string `json:"countryId,omitempty"`
	CountryName    string `json:"countryName,omitempty"`
	UnionID        string `json:"unionId,omitempty"`
	UnionName      string `json:"unionName,omitempty"`
	LocalFieldID   string `json:"localFieldId,omitempty"`
	LocalFieldName string `json:"localFieldName,omitempty"`
}

// DirectoryEntry is the canonical, normalized form of one upstream
// user/member record.
type DirectoryEntry struct {
	ID            string        `json:"id"`
	DisplayName   string        `json:"displayName"`
	Email         string        `json:"email,omitempty"`
	Roles         []string      `json:"roles"`
	ApprovalState ApprovalState `json:"approvalState"`
	Active        bool          `json:"active"`
	Geo           GeoScope      `json:"geo"`
	CreatedAt     string        `json:"createdAt,omitempty"`
	UpdatedAt     string        `json:"updatedAt,omitempty"`
}

// HasRole reports whether the entry carries the given role name
func (e *DirectoryEntry) HasRole(role string) bool {
	for _, r := range e.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// DirectoryEntryDetail extends DirectoryEntry with the profile fields only
// present on the single-record endpoint.
type DirectoryEntryDetail struct {
	DirectoryEntry
	Gender      string     `json:"gender,omitempty"`
	Birthday    string     `json:"birthday,omitempty"`
	BloodType   string     `json:"bloodType,omitempty"`
	Baptism     *bool      `json:"baptism,omitempty"`
	BaptismDate string     `json:"baptismDate,omitempty"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	Scope       *ScopeHint `json:"scope,omitempty"`
}

// ScopeHint is the scope block some deployments attach to list metadata.
type ScopeHint struct {
	Type         string   `json:"type"`
	Roles        []string `json:"roles"`
	UnionID      string   `json:"unionId,omitempty"`
	LocalFieldID string   `json:"localFieldId,omitempty"`
}

// PageMeta describes one page of the upstream collection. Fields absent from
// the raw payload are derived rather than reported as missing.
type PageMeta struct {
	Page            int        `json:"page"`
	Limit           int        `json:"limit"`
	Total           int        `json:"total"`
	TotalPages      int        `json:"totalPages"`
	HasNextPage     bool       `json:"hasNextPage"`
	HasPreviousPage bool       `json:"hasPreviousPage"`
	Scope           *ScopeHint `json:"scope,omitempty"`
}

// DirectoryQuery carries the optional filters of a directory listing.
// Page == 0 means "all pages"; Limit is clamped to [1,100] by the service.
type DirectoryQuery struct {
	Search       string
	Role         string
	Active       *bool
	UnionID      int
	LocalFieldID int
	Page         int
	Limit        int
	Status       string
}

// DirectoryPage is the result of fetching a single upstream page.
type DirectoryPage struct {
	Entries []DirectoryEntry `json:"items"`
	Meta    *PageMeta        `json:"meta"`
}

// AggregateResult is the output of a full directory scan. Recoverable
// endpoint failures are reported through Health/Detail, never as errors.
type AggregateResult struct {
	Entries   []DirectoryEntry `json:"items"`
	Meta      PageMeta         `json:"meta"`
	Health    EndpointHealth   `json:"health"`
	Detail    string           `json:"detail"`
	CheckedAt string           `json:"checkedAt"`
}

// Available reports whether the upstream endpoint served the scan
func (r *AggregateResult) Available() bool {
	return r.Health == HealthAvailable
}

// ApprovalDecision is an admin's verdict on a pending directory entry.
type ApprovalDecision string

const (
	DecisionApprove ApprovalDecision = "approve"
	DecisionReject  ApprovalDecision = "reject"
)

// IsValid reports whether the decision is one of the accepted verdicts
func (d ApprovalDecision) IsValid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// UpdateApprovalRequest is the payload of the approval endpoint.
type UpdateApprovalRequest struct {
	Decision ApprovalDecision `json:"decision"`
	Reason   string           `json:"reason,omitempty"`
}
