package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubsphere/admin-backend/v1/models"
)

func TestNormalizeEntry_MinimalRecord(t *testing.T) {
	entry := normalizeEntry(map[string]interface{}{"id": float64(42)})

	require.NotNil(t, entry)
	assert.Equal(t, "42", entry.ID)
	assert.Equal(t, "42", entry.DisplayName)
	assert.Equal(t, []string{}, entry.Roles)
	assert.Equal(t, models.ApprovalResolved, entry.ApprovalState)
	assert.True(t, entry.Active)
}

func TestNormalizeEntry_MissingIDDropsRecord(t *testing.T) {
	assert.Nil(t, normalizeEntry(map[string]interface{}{"email": "x@example.org"}))
	assert.Nil(t, normalizeEntry(map[string]interface{}{"id": ""}))
	assert.Nil(t, normalizeEntry(nil))
}

func TestNormalizeEntry_UserIDWinsOverID(t *testing.T) {
	entry := normalizeEntry(map[string]interface{}{
		"user_id": "u-9",
		"id":      float64(1),
	})

	require.NotNil(t, entry)
	assert.Equal(t, "u-9", entry.ID)
}

func TestNormalizeEntry_DisplayNameFallbackChain(t *testing.T) {
	full := normalizeEntry(map[string]interface{}{
		"id":        float64(1),
		"full_name": "Ana Silva",
		"name":      "Ana",
		"email":     "ana@example.org",
	})
	require.NotNil(t, full)
	assert.Equal(t, "Ana Silva", full.DisplayName)

	parts := normalizeEntry(map[string]interface{}{
		"id":                 float64(2),
		"name":               "Luis",
		"paternal_last_name": "Gomez",
		"maternal_last_name": "Reyes",
		"email":              "luis@example.org",
	})
	require.NotNil(t, parts)
	assert.Equal(t, "Luis Gomez Reyes", parts.DisplayName)

	email := normalizeEntry(map[string]interface{}{
		"id":    float64(3),
		"email": "solo@example.org",
	})
	require.NotNil(t, email)
	assert.Equal(t, "solo@example.org", email.DisplayName)
}

func TestNormalizeEntry_RoleShapes(t *testing.T) {
	tests := []struct {
		name     string
		record   map[string]interface{}
		expected []string
	}{
		{
			name:     "single string",
			record:   map[string]interface{}{"id": float64(1), "roles": "admin"},
			expected: []string{"admin"},
		},
		{
			name:     "string array",
			record:   map[string]interface{}{"id": float64(1), "roles": []interface{}{"admin", "coordinator"}},
			expected: []string{"admin", "coordinator"},
		},
		{
			name: "object array",
			record: map[string]interface{}{
				"id": float64(1),
				"roles": []interface{}{
					map[string]interface{}{"role_name": "admin"},
					map[string]interface{}{"name": "coordinator"},
				},
			},
			expected: []string{"admin", "coordinator"},
		},
		{
			name: "users_roles join rows",
			record: map[string]interface{}{
				"id": float64(1),
				"users_roles": []interface{}{
					map[string]interface{}{"roles": map[string]interface{}{"role_name": "admin"}},
					map[string]interface{}{"role": map[string]interface{}{"name": "coordinator"}},
				},
			},
			expected: []string{"admin", "coordinator"},
		},
		{
			name: "duplicates collapse",
			record: map[string]interface{}{
				"id":    float64(1),
				"roles": []interface{}{"admin", "admin"},
				"users_roles": []interface{}{
					map[string]interface{}{"roles": map[string]interface{}{"role_name": "admin"}},
				},
			},
			expected: []string{"admin"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := normalizeEntry(tt.record)
			require.NotNil(t, entry)
			assert.Equal(t, tt.expected, entry.Roles)
		})
	}
}

func TestNormalizeEntry_NestedGeoIDWins(t *testing.T) {
	entry := normalizeEntry(map[string]interface{}{
		"id":         float64(1),
		"country_id": float64(7),
		"country": map[string]interface{}{
			"country_id": float64(9),
			"name":       "Brazil",
		},
	})

	require.NotNil(t, entry)
	assert.Equal(t, "9", entry.Geo.CountryID)
	assert.Equal(t, "Brazil", entry.Geo.CountryName)
}

func TestNormalizeEntry_BareGeoIDUsedWhenNestedUnusable(t *testing.T) {
	entry := normalizeEntry(map[string]interface{}{
		"id":       float64(1),
		"union_id": "15",
		"union":    map[string]interface{}{"name": "North Union"},
	})

	require.NotNil(t, entry)
	assert.Equal(t, "15", entry.Geo.UnionID)
	assert.Equal(t, "North Union", entry.Geo.UnionName)
}

func TestNormalizeEntry_ActiveSignals(t *testing.T) {
	explicit := normalizeEntry(map[string]interface{}{"id": float64(1), "active": false})
	require.NotNil(t, explicit)
	assert.False(t, explicit.Active)

	blocked := normalizeEntry(map[string]interface{}{"id": float64(1), "status": "Blocked"})
	require.NotNil(t, blocked)
	assert.False(t, blocked.Active)

	unknownStatus := normalizeEntry(map[string]interface{}{"id": float64(1), "status": "whatever"})
	require.NotNil(t, unknownStatus)
	assert.True(t, unknownStatus.Active)
}

func TestNormalizeEntry_ApprovalTriState(t *testing.T) {
	pendingCases := []map[string]interface{}{
		{"id": float64(1), "approval": false},
		{"id": float64(1), "approved": float64(0)},
		{"id": float64(1), "status": "pending"},
		{"id": float64(1), "approval": "false"},
	}
	for _, record := range pendingCases {
		entry := normalizeEntry(record)
		require.NotNil(t, entry)
		assert.Equal(t, models.ApprovalPending, entry.ApprovalState)
	}

	resolvedCases := []map[string]interface{}{
		{"id": float64(1)},
		{"id": float64(1), "approval": true},
		{"id": float64(1), "approved": float64(1)},
		{"id": float64(1), "status": "active"},
		{"id": float64(1), "status": "rejected"},
	}
	for _, record := range resolvedCases {
		entry := normalizeEntry(record)
		require.NotNil(t, entry)
		assert.Equal(t, models.ApprovalResolved, entry.ApprovalState)
	}
}

func TestExtractRecordList_ContainerShapes(t *testing.T) {
	record := map[string]interface{}{"id": float64(1)}

	payloads := []interface{}{
		map[string]interface{}{"data": map[string]interface{}{"data": []interface{}{record}}},
		map[string]interface{}{"data": map[string]interface{}{"items": []interface{}{record}}},
		map[string]interface{}{"data": map[string]interface{}{"results": []interface{}{record}}},
		map[string]interface{}{"data": []interface{}{record}},
		map[string]interface{}{"items": []interface{}{record}},
		map[string]interface{}{"results": []interface{}{record}},
		map[string]interface{}{"rows": []interface{}{record}},
		[]interface{}{record},
		map[string]interface{}{"unexpected_key": []interface{}{record}},
	}

	for _, payload := range payloads {
		list := extractRecordList(payload)
		require.Len(t, list, 1)
	}

	assert.Nil(t, extractRecordList(map[string]interface{}{"count": float64(3)}))
	assert.Nil(t, extractRecordList("not a container"))
}

func TestNormalizeEntries_DropsUnusableRecords(t *testing.T) {
	payload := map[string]interface{}{
		"data": []interface{}{
			map[string]interface{}{"id": float64(1)},
			map[string]interface{}{"email": "no-id@example.org"},
			"not a record",
			map[string]interface{}{"id": float64(2)},
		},
	}

	entries := normalizeEntries(payload)
	require.Len(t, entries, 2)
	assert.Equal(t, "1", entries[0].ID)
	assert.Equal(t, "2", entries[1].ID)
}

func TestNormalizeListMeta_DerivesMissingFields(t *testing.T) {
	meta := normalizeListMeta(map[string]interface{}{
		"meta": map[string]interface{}{
			"total": float64(45),
			"limit": float64(20),
			"page":  float64(2),
		},
	})

	require.NotNil(t, meta)
	assert.Equal(t, 2, meta.Page)
	assert.Equal(t, 20, meta.Limit)
	assert.Equal(t, 45, meta.Total)
	assert.Equal(t, 3, meta.TotalPages)
	assert.True(t, meta.HasNextPage)
	assert.True(t, meta.HasPreviousPage)
}

func TestNormalizeListMeta_ZeroLimitDoesNotDivideByZero(t *testing.T) {
	meta := normalizeListMeta(map[string]interface{}{
		"meta": map[string]interface{}{
			"total": float64(10),
			"limit": float64(0),
		},
	})

	require.NotNil(t, meta)
	assert.GreaterOrEqual(t, meta.TotalPages, 1)
}

func TestNormalizeListMeta_AbsentReturnsNil(t *testing.T) {
	assert.Nil(t, normalizeListMeta(map[string]interface{}{"data": []interface{}{}}))
	assert.Nil(t, normalizeListMeta(nil))
}

func TestNormalizeListMeta_ScopeHint(t *testing.T) {
	meta := normalizeListMeta(map[string]interface{}{
		"data": map[string]interface{}{
			"meta": map[string]interface{}{
				"page": float64(1),
				"scope": map[string]interface{}{
					"type":     "union",
					"roles":    []interface{}{"admin"},
					"union_id": float64(4),
				},
			},
		},
	})

	require.NotNil(t, meta)
	require.NotNil(t, meta.Scope)
	assert.Equal(t, "UNION", meta.Scope.Type)
	assert.Equal(t, []string{"admin"}, meta.Scope.Roles)
	assert.Equal(t, "4", meta.Scope.UnionID)
}

func TestNormalizeDetail(t *testing.T) {
	detail := normalizeDetail(map[string]interface{}{
		"data": map[string]interface{}{
			"id":           float64(8),
			"full_name":    "Eva Duarte",
			"gender":       "F",
			"birthday":     "1990-05-01",
			"blood":        "O+",
			"baptism":      true,
			"baptism_date": "2004-09-12",
			"user_image":   "https://cdn.example.org/8.jpg",
		},
	})

	require.NotNil(t, detail)
	assert.Equal(t, "8", detail.ID)
	assert.Equal(t, "Eva Duarte", detail.DisplayName)
	assert.Equal(t, "F", detail.Gender)
	assert.Equal(t, "O+", detail.BloodType)
	require.NotNil(t, detail.Baptism)
	assert.True(t, *detail.Baptism)
	assert.Equal(t, "2004-09-12", detail.BaptismDate)
	assert.Equal(t, "https://cdn.example.org/8.jpg", detail.ImageURL)
}

func TestNormalizeDetail_UnusablePayload(t *testing.T) {
	assert.Nil(t, normalizeDetail(nil))
	assert.Nil(t, normalizeDetail(map[string]interface{}{"data": map[string]interface{}{"email": "x"}}))
}
