package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/clubsphere/admin-backend/pkg/apierrors"
	"github.com/clubsphere/admin-backend/pkg/monitoring"
	"github.com/clubsphere/admin-backend/platform"
	"github.com/clubsphere/admin-backend/v1/models"
)

const (
	directoryPath = "/api/v1/admin/users"

	// Hard ceiling on pages fetched in one scan, no matter what the
	// upstream metadata claims.
	maxPagesPerScan = 50

	defaultScanLimit = 100
	maxPageLimit     = 100
)

// DirectoryTransport is the slice of the platform client the aggregator
// needs. Satisfied by *platform.Client.
type DirectoryTransport interface {
	Request(ctx context.Context, method string, path string, body interface{}, params url.Values) (interface{}, error)
}

// DirectoryService aggregates the upstream admin/users directory into the
// canonical entry shape and translates endpoint failures into health states.
type DirectoryService struct {
	transport DirectoryTransport
	logger    *slog.Logger
}

// NewDirectoryService creates a DirectoryService backed by the given transport
func NewDirectoryService(transport DirectoryTransport, logger *slog.Logger) *DirectoryService {
	return &DirectoryService{
		transport: transport,
		logger:    logger.With("service", "directory"),
	}
}

// clampLimit forces the page size into the range the upstream accepts
func clampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > maxPageLimit {
		return maxPageLimit
	}
	return limit
}

// buildListParams renders the query filters, skipping zero values
func buildListParams(query models.DirectoryQuery, page, limit int) url.Values {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(clampLimit(limit)))

	if query.Search != "" {
		params.Set("search", query.Search)
	}
	if query.Role != "" {
		params.Set("role", query.Role)
	}
	if query.Status != "" {
		params.Set("status", query.Status)
	}
	if query.Active != nil {
		params.Set("active", strconv.FormatBool(*query.Active))
	}
	if query.UnionID > 0 {
		params.Set("union_id", strconv.Itoa(query.UnionID))
	}
	if query.LocalFieldID > 0 {
		params.Set("local_field_id", strconv.Itoa(query.LocalFieldID))
	}

	return params
}

// classifyEndpointHealth maps an upstream HTTP status to a health state.
// Returns ("", false) for statuses that are not recoverable and must
// propagate as hard errors.
func classifyEndpointHealth(status int) (models.EndpointHealth, bool) {
	switch {
	case status == 401 || status == 403:
		return models.HealthForbidden, true
	case status == 429:
		return models.HealthRateLimited, true
	case status == 404 || status == 405:
		return models.HealthMissing, true
	case status >= 500:
		return models.HealthUnavailable, true
	default:
		return "", false
	}
}

// healthDetail produces the operator-facing explanation for a health state
func healthDetail(status int) string {
	switch {
	case status == 401:
		return "session expired - sign in again"
	case status == 403:
		return "session scope not configured - contact a super admin"
	case status == 429:
		return "rate limit reached - retry shortly"
	case status == 404 || status == 405:
		return "directory endpoint not published on this deployment"
	case status >= 500:
		return "directory backend temporarily unavailable"
	default:
		return ""
	}
}

// DescribeFailure classifies a fetch error. When the error maps to a
// recoverable endpoint health state it returns that state plus the
// operator-facing detail; otherwise ok is false and the error should be
// treated as a hard failure.
func (s *DirectoryService) DescribeFailure(err error) (health models.EndpointHealth, detail string, ok bool) {
	var transportErr *platform.TransportError
	if !errors.As(err, &transportErr) {
		return "", "", false
	}
	health, ok = classifyEndpointHealth(transportErr.Status)
	if !ok {
		return "", "", false
	}
	return health, healthDetail(transportErr.Status), true
}

// FetchPage retrieves and normalizes a single page of the directory.
// Upstream failures, recoverable or not, surface as errors; the caller
// decides how to present them.
func (s *DirectoryService) FetchPage(ctx context.Context, query models.DirectoryQuery, page, limit int) (*models.DirectoryPage, error) {
	if page < 1 {
		page = 1
	}

	params := buildListParams(query, page, limit)

	start := time.Now()
	payload, err := s.transport.Request(ctx, "GET", directoryPath, nil, params)
	monitoring.RecordExternalCall(ctx, "platform", "directory.list", time.Since(start), err)
	if err != nil {
		return nil, apierrors.UpstreamError(fmt.Sprintf("directory list page %d", page), err)
	}

	entries := normalizeEntries(payload)
	meta := normalizeListMeta(payload)
	if meta == nil {
		meta = &models.PageMeta{
			Page:        page,
			Limit:       clampLimit(limit),
			Total:       len(entries),
			TotalPages:  1,
			HasNextPage: false,
		}
	}

	return &models.DirectoryPage{Entries: entries, Meta: meta}, nil
}

// FetchAll walks the directory page by page, merging records by id with
// last-write-wins semantics. The walk is strictly sequential: each page's
// metadata decides whether another request is made.
//
// Recoverable endpoint failures (auth, rate limit, missing route, 5xx) stop
// the walk but keep everything merged so far, reporting the failure through
// the result's health fields. Any other failure is returned as an error.
func (s *DirectoryService) FetchAll(ctx context.Context, query models.DirectoryQuery) (*models.AggregateResult, error) {
	limit := query.Limit
	if limit == 0 {
		limit = defaultScanLimit
	}
	limit = clampLimit(limit)

	merged := make(map[string]models.DirectoryEntry)
	var order []string

	result := &models.AggregateResult{
		Health:    models.HealthAvailable,
		CheckedAt: time.Now().UTC().Format(time.RFC3339),
	}

	page := 1
	for page <= maxPagesPerScan {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		directoryPage, err := s.FetchPage(ctx, query, page, limit)
		if err != nil {
			health, detail, recoverable := s.DescribeFailure(err)
			if !recoverable {
				return nil, err
			}
			result.Health = health
			result.Detail = detail
			s.logger.Warn("directory scan degraded",
				"page", page,
				"health", string(health),
				"error", err)
			break
		}

		for _, entry := range directoryPage.Entries {
			if _, seen := merged[entry.ID]; !seen {
				order = append(order, entry.ID)
			}
			merged[entry.ID] = entry
		}

		if !directoryPage.Meta.HasNextPage {
			break
		}
		page++
	}

	result.Entries = make([]models.DirectoryEntry, 0, len(order))
	for _, id := range order {
		result.Entries = append(result.Entries, merged[id])
	}

	result.Meta = models.PageMeta{
		Page:            1,
		Limit:           limit,
		Total:           len(result.Entries),
		TotalPages:      1,
		HasNextPage:     false,
		HasPreviousPage: false,
	}

	return result, nil
}

// GetEntry retrieves and normalizes a single directory entry by id
func (s *DirectoryService) GetEntry(ctx context.Context, id string) (*models.DirectoryEntryDetail, error) {
	if id == "" {
		return nil, fmt.Errorf("entry id is required")
	}

	start := time.Now()
	payload, err := s.transport.Request(ctx, "GET", directoryPath+"/"+url.PathEscape(id), nil, nil)
	monitoring.RecordExternalCall(ctx, "platform", "directory.get", time.Since(start), err)
	if err != nil {
		return nil, apierrors.UpstreamError(fmt.Sprintf("directory entry %s", id), err)
	}

	detail := normalizeDetail(payload)
	if detail == nil {
		return nil, fmt.Errorf("directory entry %s returned no usable record", id)
	}

	return detail, nil
}

// approvalPaths are the route variants deployments expose for the approval
// update, tried in order. A 404/405/422 on one variant means "try the next".
var approvalPaths = []struct {
	method string
	path   string
}{
	{"PATCH", directoryPath + "/%s/approval"},
	{"PATCH", directoryPath + "/%s"},
	{"PUT", directoryPath + "/%s/approval"},
}

// UpdateApproval records an approval decision for the given entry upstream.
// Returns the refreshed entry detail when the upstream echoes one back.
func (s *DirectoryService) UpdateApproval(ctx context.Context, id string, req models.UpdateApprovalRequest) (*models.DirectoryEntryDetail, error) {
	if id == "" {
		return nil, fmt.Errorf("entry id is required")
	}
	if !req.Decision.IsValid() {
		return nil, fmt.Errorf("invalid approval decision %q", req.Decision)
	}

	body := map[string]interface{}{
		"approved": req.Decision == models.DecisionApprove,
	}
	if req.Reason != "" {
		body["reason"] = req.Reason
	}

	var lastErr error
	for _, attempt := range approvalPaths {
		path := fmt.Sprintf(attempt.path, url.PathEscape(id))

		start := time.Now()
		payload, err := s.transport.Request(ctx, attempt.method, path, body, nil)
		monitoring.RecordExternalCall(ctx, "platform", "directory.approval", time.Since(start), err)
		if err == nil {
			return normalizeDetail(payload), nil
		}

		lastErr = err
		var transportErr *platform.TransportError
		if errors.As(err, &transportErr) {
			switch transportErr.Status {
			case 404, 405, 422:
				s.logger.Debug("approval route variant rejected",
					"method", attempt.method,
					"path", path,
					"status", transportErr.Status)
				continue
			}
		}
		break
	}

	return nil, apierrors.UpstreamError(fmt.Sprintf("approval update for entry %s", id), lastErr)
}
