package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/clubsphere/admin-backend/pkg/apierrors"
	"github.com/clubsphere/admin-backend/pkg/monitoring"
	"github.com/clubsphere/admin-backend/platform"
	"github.com/clubsphere/admin-backend/shared/utils"
	"github.com/clubsphere/admin-backend/v1/models"
	"github.com/clubsphere/admin-backend/v1/services"
	authutils "github.com/clubsphere/admin-backend/v1/utils"
)

const adminUsersRoute = "/api/v1/admin/users"

// SnapshotSource supplies the most recent background directory scan.
// Satisfied by *services.DirectoryRefresher.
type SnapshotSource interface {
	Snapshot() *models.AggregateResult
}

// V1Handler handles all V1 API routes
type V1Handler struct {
	directoryService *services.DirectoryService
	scopeService     *services.ScopeService
	auditService     *services.AuditService
	snapshots        SnapshotSource
}

// NewV1Handler creates a new V1 handler. snapshots may be nil when no
// background refresher is running.
func NewV1Handler(directory *services.DirectoryService, scope *services.ScopeService, audit *services.AuditService, snapshots SnapshotSource) *V1Handler {
	return &V1Handler{
		directoryService: directory,
		scopeService:     scope,
		auditService:     audit,
		snapshots:        snapshots,
	}
}

// SetupV1Routes configures all V1 API routes
func (h *V1Handler) SetupV1Routes(mux *http.ServeMux) {
	mux.Handle(adminUsersRoute, utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleAdminUsers)))
	mux.Handle(adminUsersRoute+"/", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleAdminUsers)))
}

// handleAdminUsers dispatches the admin directory routes
func (h *V1Handler) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, adminUsersRoute)
	parts := strings.Split(strings.Trim(path, "/"), "/")

	// Collection endpoint: GET /api/v1/admin/users
	if len(parts) == 1 && parts[0] == "" {
		if r.Method == http.MethodGet {
			h.listAdminUsers(w, r)
		} else {
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	if len(parts) < 1 || parts[0] == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "User ID is required")
		return
	}

	userID := parts[0]

	// Entry endpoint: GET /api/v1/admin/users/:userId
	if len(parts) == 1 {
		if r.Method == http.MethodGet {
			h.getAdminUser(w, r, userID)
		} else {
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	// Approval endpoint: PATCH /api/v1/admin/users/:userId/approval
	if len(parts) == 2 && parts[1] == "approval" {
		if r.Method == http.MethodPatch {
			h.updateApproval(w, r, userID)
		} else {
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	// Audit trail endpoint: GET /api/v1/admin/users/:userId/audit
	if len(parts) == 2 && parts[1] == "audit" {
		if r.Method == http.MethodGet {
			h.getApprovalAudit(w, r, userID)
		} else {
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	utils.RespondWithError(w, http.StatusNotFound, "Endpoint not found")
}

// endpointStatus reports the upstream directory state alongside the listing.
// Cached marks a degraded response served from the background snapshot.
type endpointStatus struct {
	State      models.EndpointHealth `json:"state"`
	Detail     string                `json:"detail,omitempty"`
	Path       string                `json:"path"`
	CheckedAt  string                `json:"checkedAt"`
	Cached     bool                  `json:"cached,omitempty"`
	SnapshotAt string                `json:"snapshotAt,omitempty"`
}

// scopeStatus reports which visibility rule was applied to the listing
type scopeStatus struct {
	Applied     bool                `json:"applied"`
	RuleKey     models.ScopeRuleKey `json:"ruleKey"`
	Label       string              `json:"label"`
	SourceTotal int                 `json:"sourceTotal"`
	ScopedTotal int                 `json:"scopedTotal"`
}

// adminUsersResponse is the body of the listing endpoint
type adminUsersResponse struct {
	Items    []models.DirectoryEntry `json:"items"`
	Meta     *models.PageMeta        `json:"meta"`
	Endpoint endpointStatus          `json:"endpoint"`
	Scope    scopeStatus             `json:"scope"`
}

// listAdminUsers serves the aggregated directory listing. With an explicit
// page parameter a single upstream page is returned; otherwise the whole
// directory is scanned and merged. Either way the entries are narrowed to
// the caller's scope before they leave the process.
func (h *V1Handler) listAdminUsers(w http.ResponseWriter, r *http.Request) {
	user, err := authutils.GetAuthenticatedUser(r.Context())
	if err != nil {
		respondWithAPIError(w, apierrors.UnauthorizedError("Authentication required"))
		return
	}

	query, err := parseDirectoryQuery(r)
	if err != nil {
		respondWithAPIError(w, apierrors.ValidationError("INVALID_QUERY", err.Error()))
		return
	}

	var entries []models.DirectoryEntry
	var meta *models.PageMeta
	status := endpointStatus{
		State:     models.HealthAvailable,
		Path:      adminUsersRoute,
		CheckedAt: time.Now().UTC().Format(time.RFC3339),
	}

	if query.Page > 0 {
		page, err := h.directoryService.FetchPage(r.Context(), query, query.Page, query.Limit)
		if err != nil {
			health, detail, recoverable := h.directoryService.DescribeFailure(err)
			if !recoverable {
				h.respondWithFetchError(w, err)
				return
			}
			status.State = health
			status.Detail = detail
			entries = []models.DirectoryEntry{}
		} else {
			entries = page.Entries
			meta = page.Meta
		}
	} else {
		result, err := h.directoryService.FetchAll(r.Context(), query)
		if err != nil {
			h.respondWithFetchError(w, err)
			return
		}
		entries = result.Entries
		meta = &result.Meta
		status.State = result.Health
		status.Detail = result.Detail
		status.CheckedAt = result.CheckedAt

		// When the endpoint is degraded and nothing at all came back,
		// fall back to the last snapshot the background refresher took.
		if !result.Available() && len(entries) == 0 && h.snapshots != nil {
			if snap := h.snapshots.Snapshot(); snap != nil && snap.Available() && len(snap.Entries) > 0 {
				entries = snap.Entries
				snapMeta := snap.Meta
				meta = &snapMeta
				status.Cached = true
				status.SnapshotAt = snap.CheckedAt
			}
		}
	}

	principal := user.ToPrincipal()
	decision := h.scopeService.Authorize(entries, principal)

	if meta != nil && decision.Applied {
		scoped := *meta
		scoped.Total = decision.ScopedTotal
		meta = &scoped
	}

	utils.RespondWithJSON(w, http.StatusOK, adminUsersResponse{
		Items:    decision.Items,
		Meta:     meta,
		Endpoint: status,
		Scope: scopeStatus{
			Applied:     decision.Applied,
			RuleKey:     decision.RuleKey,
			Label:       decision.Label,
			SourceTotal: decision.SourceTotal,
			ScopedTotal: decision.ScopedTotal,
		},
	})
}

// getAdminUser serves a single directory entry, enforcing the caller's scope
func (h *V1Handler) getAdminUser(w http.ResponseWriter, r *http.Request, userID string) {
	user, err := authutils.GetAuthenticatedUser(r.Context())
	if err != nil {
		respondWithAPIError(w, apierrors.UnauthorizedError("Authentication required"))
		return
	}

	detail, err := h.directoryService.GetEntry(r.Context(), userID)
	if err != nil {
		var transportErr *platform.TransportError
		if errors.As(err, &transportErr) && (transportErr.Status == 404 || transportErr.Status == 405) {
			respondWithAPIError(w, apierrors.NotFoundError("User"))
			return
		}
		h.respondWithFetchError(w, err)
		return
	}

	decision := h.scopeService.Authorize([]models.DirectoryEntry{detail.DirectoryEntry}, user.ToPrincipal())
	if decision.Applied && len(decision.Items) == 0 {
		respondWithAPIError(w, apierrors.ForbiddenError("User is outside your scope"))
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, detail)
}

// updateApproval records an approval decision against a directory entry
func (h *V1Handler) updateApproval(w http.ResponseWriter, r *http.Request, userID string) {
	user, err := authutils.RequireAnyRole(r, models.RoleSuperAdmin, models.RoleAdmin)
	if err != nil {
		respondWithAPIError(w, apierrors.ForbiddenError("Approval requires an administrator role"))
		return
	}

	var req models.UpdateApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithAPIError(w, apierrors.ValidationError("INVALID_BODY", "Invalid request body"))
		return
	}
	if !req.Decision.IsValid() {
		respondWithAPIError(w, apierrors.ValidationError("INVALID_DECISION", "Decision must be 'approve' or 'reject'"))
		return
	}

	detail, err := h.directoryService.UpdateApproval(r.Context(), userID, req)
	if err != nil {
		monitoring.RecordBusinessEvent(r.Context(), "approval_decision", false)
		h.respondWithFetchError(w, err)
		return
	}

	if _, err := h.auditService.RecordApproval(user, userID, req, adminUsersRoute+"/"+userID+"/approval"); err != nil {
		// The upstream update already happened; losing the audit row is
		// not a reason to report failure to the caller.
		monitoring.RecordBusinessEvent(r.Context(), "approval_audit_write", false)
	}

	monitoring.RecordBusinessEvent(r.Context(), "approval_decision", true)

	if detail == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, detail)
}

// getApprovalAudit serves the stored approval trail for one entry
func (h *V1Handler) getApprovalAudit(w http.ResponseWriter, r *http.Request, userID string) {
	if _, err := authutils.RequireAnyRole(r, models.RoleSuperAdmin, models.RoleAdmin); err != nil {
		respondWithAPIError(w, apierrors.ForbiddenError("Audit trail requires an administrator role"))
		return
	}

	audits, err := h.auditService.ListForTarget(userID)
	if err != nil {
		apiErr := apierrors.GetAPIError(err)
		if apiErr == nil {
			apiErr = apierrors.InternalError("Failed to load audit trail")
		}
		respondWithAPIError(w, apiErr)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"targetId": userID,
		"items":    audits,
	})
}

// respondWithAPIError renders a typed error as its HTTP response
func respondWithAPIError(w http.ResponseWriter, apiErr *apierrors.APIError) {
	utils.RespondWithError(w, apiErr.HTTPStatus, apiErr.Message)
}

// respondWithFetchError maps an upstream failure onto an HTTP response
func (h *V1Handler) respondWithFetchError(w http.ResponseWriter, err error) {
	if apiErr := apierrors.GetAPIError(err); apiErr != nil {
		respondWithAPIError(w, apiErr)
		return
	}

	var transportErr *platform.TransportError
	if errors.As(err, &transportErr) {
		utils.RespondWithError(w, http.StatusBadGateway, "Upstream directory request failed")
		return
	}

	respondWithAPIError(w, apierrors.InternalError("Internal server error"))
}

// parseDirectoryQuery reads the listing filters from the request
func parseDirectoryQuery(r *http.Request) (models.DirectoryQuery, error) {
	values := r.URL.Query()

	query := models.DirectoryQuery{
		Search: strings.TrimSpace(values.Get("search")),
		Role:   strings.TrimSpace(values.Get("role")),
		Status: strings.TrimSpace(values.Get("status")),
	}

	if raw := values.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return query, errors.New("active must be true or false")
		}
		query.Active = &active
	}

	var err error
	if query.Page, err = parsePositiveInt(values.Get("page"), "page"); err != nil {
		return query, err
	}
	if query.Limit, err = parsePositiveInt(values.Get("limit"), "limit"); err != nil {
		return query, err
	}
	if query.UnionID, err = parsePositiveInt(values.Get("union_id"), "union_id"); err != nil {
		return query, err
	}
	if query.LocalFieldID, err = parsePositiveInt(values.Get("local_field_id"), "local_field_id"); err != nil {
		return query, err
	}

	return query, nil
}

// parsePositiveInt parses an optional positive integer parameter
func parsePositiveInt(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return 0, errors.New(name + " must be a positive integer")
	}
	return value, nil
}
