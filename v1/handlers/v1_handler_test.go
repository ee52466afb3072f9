package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/clubsphere/admin-backend/platform"
	"github.com/clubsphere/admin-backend/v1/models"
	"github.com/clubsphere/admin-backend/v1/services"
	authutils "github.com/clubsphere/admin-backend/v1/utils"
)

// scriptedTransport answers every upstream request from a fixed function
type scriptedTransport struct {
	respond func(method, path string, params url.Values) (interface{}, error)
}

func (s *scriptedTransport) Request(ctx context.Context, method string, path string, body interface{}, params url.Values) (interface{}, error) {
	return s.respond(method, path, params)
}

func setupHandlerMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	var db *sql.DB
	var mock sqlmock.Sqlmock
	var err error

	db, mock, err = sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	dialector := postgres.New(postgres.Config{
		Conn:       db,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open gorm db: %v", err)
	}

	return gormDB, mock, func() { db.Close() }
}

// stubSnapshots serves a fixed aggregate result as the background snapshot
type stubSnapshots struct {
	result *models.AggregateResult
}

func (s *stubSnapshots) Snapshot() *models.AggregateResult {
	return s.result
}

func newTestHandler(t *testing.T, transport services.DirectoryTransport) (*V1Handler, sqlmock.Sqlmock, func()) {
	db, mock, cleanup := setupHandlerMockDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := NewV1Handler(
		services.NewDirectoryService(transport, logger),
		services.NewScopeService(),
		services.NewAuditService(db, logger),
		nil,
	)
	return handler, mock, cleanup
}

func superAdmin() *models.AuthenticatedUser {
	return &models.AuthenticatedUser{
		IdpUserID: "idp_root",
		Email:     "root@example.org",
		Roles:     []string{models.RoleSuperAdmin},
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func unionAdmin(unionID string) *models.AuthenticatedUser {
	return &models.AuthenticatedUser{
		IdpUserID: "idp_admin",
		Email:     "admin@example.org",
		Roles:     []string{models.RoleAdmin},
		UnionID:   unionID,
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func doRequest(handler *V1Handler, user *models.AuthenticatedUser, method, target string, body string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	handler.SetupV1Routes(mux)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if user != nil {
		req = req.WithContext(authutils.SetAuthenticatedUser(req.Context(), user))
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func directoryPayload(entries ...map[string]interface{}) map[string]interface{} {
	items := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		items = append(items, e)
	}
	return map[string]interface{}{
		"data": items,
		"meta": map[string]interface{}{
			"page":        float64(1),
			"limit":       float64(100),
			"totalPages":  float64(1),
			"hasNextPage": false,
		},
	}
}

func TestListAdminUsers_SuperAdminSeesAll(t *testing.T) {
	transport := &scriptedTransport{
		respond: func(method, path string, params url.Values) (interface{}, error) {
			return directoryPayload(
				map[string]interface{}{"id": float64(1), "union_id": float64(10)},
				map[string]interface{}{"id": float64(2), "union_id": float64(20)},
			), nil
		},
	}
	handler, _, cleanup := newTestHandler(t, transport)
	defer cleanup()

	rec := doRequest(handler, superAdmin(), http.MethodGet, "/api/v1/admin/users", "")

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Items []models.DirectoryEntry `json:"items"`
		Scope struct {
			Applied bool   `json:"applied"`
			RuleKey string `json:"ruleKey"`
		} `json:"scope"`
		Endpoint struct {
			State string `json:"state"`
		} `json:"endpoint"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Items, 2)
	assert.False(t, resp.Scope.Applied)
	assert.Equal(t, "none", resp.Scope.RuleKey)
	assert.Equal(t, "available", resp.Endpoint.State)
}

func TestListAdminUsers_ScopeNarrowsToUnion(t *testing.T) {
	transport := &scriptedTransport{
		respond: func(method, path string, params url.Values) (interface{}, error) {
			return directoryPayload(
				map[string]interface{}{"id": float64(1), "union_id": float64(10)},
				map[string]interface{}{"id": float64(2), "union_id": float64(20)},
			), nil
		},
	}
	handler, _, cleanup := newTestHandler(t, transport)
	defer cleanup()

	rec := doRequest(handler, unionAdmin("10"), http.MethodGet, "/api/v1/admin/users", "")

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Items []models.DirectoryEntry `json:"items"`
		Scope struct {
			Applied     bool   `json:"applied"`
			RuleKey     string `json:"ruleKey"`
			SourceTotal int    `json:"sourceTotal"`
			ScopedTotal int    `json:"scopedTotal"`
		} `json:"scope"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "1", resp.Items[0].ID)
	assert.True(t, resp.Scope.Applied)
	assert.Equal(t, "union_id", resp.Scope.RuleKey)
	assert.Equal(t, 2, resp.Scope.SourceTotal)
	assert.Equal(t, 1, resp.Scope.ScopedTotal)
}

func TestListAdminUsers_DegradedEndpointStillResponds(t *testing.T) {
	transport := &scriptedTransport{
		respond: func(method, path string, params url.Values) (interface{}, error) {
			return nil, &platform.TransportError{Status: 403}
		},
	}
	handler, _, cleanup := newTestHandler(t, transport)
	defer cleanup()

	rec := doRequest(handler, superAdmin(), http.MethodGet, "/api/v1/admin/users", "")

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Items    []models.DirectoryEntry `json:"items"`
		Endpoint struct {
			State  string `json:"state"`
			Detail string `json:"detail"`
		} `json:"endpoint"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Items)
	assert.Equal(t, "forbidden", resp.Endpoint.State)
	assert.NotEmpty(t, resp.Endpoint.Detail)
}

func TestListAdminUsers_ServesSnapshotWhenUpstreamDown(t *testing.T) {
	transport := &scriptedTransport{
		respond: func(method, path string, params url.Values) (interface{}, error) {
			return nil, &platform.TransportError{Status: 503}
		},
	}
	handler, _, cleanup := newTestHandler(t, transport)
	defer cleanup()

	handler.snapshots = &stubSnapshots{result: &models.AggregateResult{
		Entries: []models.DirectoryEntry{
			{ID: "1", Geo: models.GeoScope{UnionID: "10"}, Active: true},
			{ID: "2", Geo: models.GeoScope{UnionID: "20"}, Active: true},
		},
		Meta:      models.PageMeta{Page: 1, Limit: 100, Total: 2, TotalPages: 1},
		Health:    models.HealthAvailable,
		CheckedAt: "2026-08-28T10:00:00Z",
	}}

	rec := doRequest(handler, superAdmin(), http.MethodGet, "/api/v1/admin/users", "")

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Items    []models.DirectoryEntry `json:"items"`
		Endpoint struct {
			State      string `json:"state"`
			Cached     bool   `json:"cached"`
			SnapshotAt string `json:"snapshotAt"`
		} `json:"endpoint"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Items, 2)
	assert.Equal(t, "unavailable", resp.Endpoint.State)
	assert.True(t, resp.Endpoint.Cached)
	assert.Equal(t, "2026-08-28T10:00:00Z", resp.Endpoint.SnapshotAt)
}

// The snapshot is still narrowed to the caller's scope before it is served.
func TestListAdminUsers_SnapshotFallbackIsScoped(t *testing.T) {
	transport := &scriptedTransport{
		respond: func(method, path string, params url.Values) (interface{}, error) {
			return nil, &platform.TransportError{Status: 503}
		},
	}
	handler, _, cleanup := newTestHandler(t, transport)
	defer cleanup()

	handler.snapshots = &stubSnapshots{result: &models.AggregateResult{
		Entries: []models.DirectoryEntry{
			{ID: "1", Geo: models.GeoScope{UnionID: "10"}, Active: true},
			{ID: "2", Geo: models.GeoScope{UnionID: "20"}, Active: true},
		},
		Meta:      models.PageMeta{Page: 1, Limit: 100, Total: 2, TotalPages: 1},
		Health:    models.HealthAvailable,
		CheckedAt: "2026-08-28T10:00:00Z",
	}}

	rec := doRequest(handler, unionAdmin("10"), http.MethodGet, "/api/v1/admin/users", "")

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Items []models.DirectoryEntry `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "1", resp.Items[0].ID)
}

func TestListAdminUsers_SinglePageParameter(t *testing.T) {
	var seenPage string
	transport := &scriptedTransport{
		respond: func(method, path string, params url.Values) (interface{}, error) {
			seenPage = params.Get("page")
			return directoryPayload(map[string]interface{}{"id": float64(1)}), nil
		},
	}
	handler, _, cleanup := newTestHandler(t, transport)
	defer cleanup()

	rec := doRequest(handler, superAdmin(), http.MethodGet, "/api/v1/admin/users?page=2&limit=10", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", seenPage)
}

func TestListAdminUsers_HardFailureIsBadGateway(t *testing.T) {
	transport := &scriptedTransport{
		respond: func(method, path string, params url.Values) (interface{}, error) {
			return nil, &platform.TransportError{Status: 418}
		},
	}
	handler, _, cleanup := newTestHandler(t, transport)
	defer cleanup()

	rec := doRequest(handler, superAdmin(), http.MethodGet, "/api/v1/admin/users", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestListAdminUsers_RequiresAuthentication(t *testing.T) {
	handler, _, cleanup := newTestHandler(t, &scriptedTransport{
		respond: func(method, path string, params url.Values) (interface{}, error) {
			return directoryPayload(), nil
		},
	})
	defer cleanup()

	rec := doRequest(handler, nil, http.MethodGet, "/api/v1/admin/users", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListAdminUsers_InvalidQueryParameter(t *testing.T) {
	handler, _, cleanup := newTestHandler(t, &scriptedTransport{
		respond: func(method, path string, params url.Values) (interface{}, error) {
			return directoryPayload(), nil
		},
	})
	defer cleanup()

	rec := doRequest(handler, superAdmin(), http.MethodGet, "/api/v1/admin/users?page=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAdminUser(t *testing.T) {
	transport := &scriptedTransport{
		respond: func(method, path string, params url.Values) (interface{}, error) {
			return map[string]interface{}{
				"data": map[string]interface{}{
					"id":        float64(7),
					"full_name": "Eva Duarte",
					"union_id":  float64(10),
				},
			}, nil
		},
	}
	handler, _, cleanup := newTestHandler(t, transport)
	defer cleanup()

	rec := doRequest(handler, unionAdmin("10"), http.MethodGet, "/api/v1/admin/users/7", "")

	require.Equal(t, http.StatusOK, rec.Code)

	var detail models.DirectoryEntryDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, "7", detail.ID)
	assert.Equal(t, "Eva Duarte", detail.DisplayName)
}

func TestGetAdminUser_OutsideScopeIsForbidden(t *testing.T) {
	transport := &scriptedTransport{
		respond: func(method, path string, params url.Values) (interface{}, error) {
			return map[string]interface{}{
				"data": map[string]interface{}{
					"id":       float64(7),
					"union_id": float64(99),
				},
			}, nil
		},
	}
	handler, _, cleanup := newTestHandler(t, transport)
	defer cleanup()

	rec := doRequest(handler, unionAdmin("10"), http.MethodGet, "/api/v1/admin/users/7", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetAdminUser_UpstreamNotFound(t *testing.T) {
	transport := &scriptedTransport{
		respond: func(method, path string, params url.Values) (interface{}, error) {
			return nil, &platform.TransportError{Status: 404}
		},
	}
	handler, _, cleanup := newTestHandler(t, transport)
	defer cleanup()

	rec := doRequest(handler, superAdmin(), http.MethodGet, "/api/v1/admin/users/7", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateApproval(t *testing.T) {
	transport := &scriptedTransport{
		respond: func(method, path string, params url.Values) (interface{}, error) {
			return map[string]interface{}{
				"data": map[string]interface{}{"id": float64(7), "approval": true},
			}, nil
		},
	}
	handler, mock, cleanup := newTestHandler(t, transport)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO "approval_audits"`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	rec := doRequest(handler, superAdmin(), http.MethodPatch, "/api/v1/admin/users/7/approval",
		`{"decision":"approve","reason":"verified"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())

	var detail models.DirectoryEntryDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, "7", detail.ID)
	assert.Equal(t, models.ApprovalResolved, detail.ApprovalState)
}

func TestUpdateApproval_RequiresAdministratorRole(t *testing.T) {
	handler, _, cleanup := newTestHandler(t, &scriptedTransport{
		respond: func(method, path string, params url.Values) (interface{}, error) {
			return nil, nil
		},
	})
	defer cleanup()

	coordinator := &models.AuthenticatedUser{
		IdpUserID: "idp_c",
		Roles:     []string{models.RoleCoordinator},
	}

	rec := doRequest(handler, coordinator, http.MethodPatch, "/api/v1/admin/users/7/approval",
		`{"decision":"approve"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpdateApproval_InvalidDecision(t *testing.T) {
	handler, _, cleanup := newTestHandler(t, &scriptedTransport{
		respond: func(method, path string, params url.Values) (interface{}, error) {
			return nil, nil
		},
	})
	defer cleanup()

	rec := doRequest(handler, superAdmin(), http.MethodPatch, "/api/v1/admin/users/7/approval",
		`{"decision":"maybe"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetApprovalAudit(t *testing.T) {
	handler, mock, cleanup := newTestHandler(t, &scriptedTransport{
		respond: func(method, path string, params url.Values) (interface{}, error) {
			return nil, nil
		},
	})
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery(`SELECT .* FROM "approval_audits"`).
		WithArgs("7").
		WillReturnRows(sqlmock.NewRows([]string{
			"audit_id", "target_id", "actor_id", "actor_email", "decision", "reason", "endpoint_ref", "created_at", "updated_at",
		}).AddRow("aud_1", "7", "idp_root", "root@example.org", "approve", "", "", now, now))

	rec := doRequest(handler, superAdmin(), http.MethodGet, "/api/v1/admin/users/7/audit", "")

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		TargetID string                 `json:"targetId"`
		Items    []models.ApprovalAudit `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "7", resp.TargetID)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "aud_1", resp.Items[0].AuditID)
}

func TestHandleAdminUsers_MethodNotAllowed(t *testing.T) {
	handler, _, cleanup := newTestHandler(t, &scriptedTransport{
		respond: func(method, path string, params url.Values) (interface{}, error) {
			return nil, nil
		},
	})
	defer cleanup()

	rec := doRequest(handler, superAdmin(), http.MethodDelete, "/api/v1/admin/users", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = doRequest(handler, superAdmin(), http.MethodPost, "/api/v1/admin/users/7", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleAdminUsers_UnknownSubresource(t *testing.T) {
	handler, _, cleanup := newTestHandler(t, &scriptedTransport{
		respond: func(method, path string, params url.Values) (interface{}, error) {
			return nil, nil
		},
	})
	defer cleanup()

	rec := doRequest(handler, superAdmin(), http.MethodGet, "/api/v1/admin/users/7/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
