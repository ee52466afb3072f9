package services

import (
	"math"
	"strconv"
	"strings"

	"github.com/clubsphere/admin-backend/v1/models"
)

// The upstream directory endpoint is not consistent across deployments: the
// record container, role encoding, approval flag and geographic references
// all arrive in several shapes. Everything in this file exists to collapse
// those shapes into models.DirectoryEntry / models.PageMeta.

// asRecord returns the value as a JSON object, or nil for anything else
func asRecord(value interface{}) map[string]interface{} {
	record, ok := value.(map[string]interface{})
	if !ok {
		return nil
	}
	return record
}

// pickString returns a trimmed non-empty string, or "" when absent
func pickString(value interface{}) string {
	str, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(str)
}

// pickBool interprets booleans and their common string spellings
func pickBool(value interface{}) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1":
			return true, true
		case "false", "0":
			return false, true
		}
	}
	return false, false
}

// pickNumber accepts JSON numbers and numeric strings
func pickNumber(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			return v, true
		}
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil && !math.IsNaN(parsed) && !math.IsInf(parsed, 0) {
			return parsed, true
		}
	}
	return 0, false
}

// pickID normalizes an identifier to its canonical string form. Numeric ids
// are rendered without a decimal point so "7" and 7 compare equal downstream.
func pickID(value interface{}) string {
	if num, ok := pickNumber(value); ok {
		return strconv.FormatFloat(num, 'f', -1, 64)
	}
	return pickString(value)
}

// valueAtPath walks a key path through nested objects
func valueAtPath(payload interface{}, path ...string) interface{} {
	current := payload
	for _, key := range path {
		record := asRecord(current)
		if record == nil {
			return nil
		}
		next, exists := record[key]
		if !exists {
			return nil
		}
		current = next
	}
	return current
}

// arrayAtPath returns the array found at the key path, or nil
func arrayAtPath(payload interface{}, path ...string) []interface{} {
	value := payload
	if len(path) > 0 {
		value = valueAtPath(payload, path...)
	}
	list, ok := value.([]interface{})
	if !ok {
		return nil
	}
	return list
}

// recordAtPath returns the object found at the key path, or nil
func recordAtPath(payload interface{}, path ...string) map[string]interface{} {
	return asRecord(valueAtPath(payload, path...))
}

// normalizeRoleName accepts a role as a bare string or as an object carrying
// one of the known name keys
func normalizeRoleName(value interface{}) string {
	if name := pickString(value); name != "" {
		return name
	}

	record := asRecord(value)
	if record == nil {
		return ""
	}

	for _, key := range []string{"role_name", "roleName", "name", "label"} {
		if name := pickString(record[key]); name != "" {
			return name
		}
	}
	return ""
}

// normalizeRoles accepts a single role string or an array of role
// strings/objects and returns the resolvable names in order
func normalizeRoles(value interface{}) []string {
	if name := pickString(value); name != "" {
		return []string{name}
	}

	list, ok := value.([]interface{})
	if !ok {
		return nil
	}

	var roles []string
	for _, item := range list {
		if name := normalizeRoleName(item); name != "" {
			roles = append(roles, name)
		}
	}
	return roles
}

// normalizeJoinedRoles extracts role names from "users_roles" join rows,
// where each row is either a string, a {roles:{role_name}} wrapper, a
// {role:...} wrapper, or itself a role object
func normalizeJoinedRoles(value interface{}) []string {
	list, ok := value.([]interface{})
	if !ok {
		return nil
	}

	var roles []string
	for _, item := range list {
		if name := pickString(item); name != "" {
			roles = append(roles, name)
			continue
		}

		record := asRecord(item)
		if record == nil {
			continue
		}

		if name := normalizeRoleName(record["roles"]); name != "" {
			roles = append(roles, name)
			continue
		}
		if name := normalizeRoleName(record["role"]); name != "" {
			roles = append(roles, name)
			continue
		}
		if name := normalizeRoleName(record); name != "" {
			roles = append(roles, name)
		}
	}
	return roles
}

// dedupeStrings collapses duplicates preserving first-seen order
func dedupeStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// geoEntity is one resolved geographic reference
type geoEntity struct {
	id     string
	name   string
	source map[string]interface{}
}

// normalizeGeoEntity resolves a nested geo object ({country_id, name} etc.).
// Only numeric ids are trusted from nested objects; the id keys are tried in
// order and the first usable one wins.
func normalizeGeoEntity(value interface{}, idKeys ...string) geoEntity {
	record := asRecord(value)
	if record == nil {
		return geoEntity{}
	}

	entity := geoEntity{source: record}
	for _, key := range idKeys {
		raw, exists := record[key]
		if !exists {
			continue
		}
		if num, ok := pickNumber(raw); ok {
			entity.id = strconv.FormatFloat(num, 'f', -1, 64)
			break
		}
	}

	entity.name = pickString(record["name"])
	return entity
}

// resolveGeoID prefers the nested object's id over the bare id field
func resolveGeoID(nested geoEntity, record map[string]interface{}, bareKeys ...string) string {
	if nested.id != "" {
		return nested.id
	}
	for _, key := range bareKeys {
		if id := pickID(record[key]); id != "" {
			return id
		}
	}
	return ""
}

// inactiveStatuses are the status strings treated as an explicit "not active"
var inactiveStatuses = map[string]bool{
	"inactive": true,
	"disabled": true,
	"blocked":  true,
	"rejected": true,
	"deleted":  true,
}

// normalizeActive defaults to true unless the record carries an explicit
// falsy signal
func normalizeActive(record map[string]interface{}) bool {
	if active, ok := record["active"].(bool); ok {
		return active
	}

	status := strings.ToLower(pickString(record["status"]))
	if status == "" {
		return true
	}
	return !inactiveStatuses[status]
}

// normalizeApproval collapses the approval representations into the
// pending/resolved tri-state. The conservative default is resolved: an entry
// is only pending when the source explicitly says so.
func normalizeApproval(record map[string]interface{}) models.ApprovalState {
	var candidate interface{}
	for _, key := range []string{"approval", "approved", "status"} {
		if value, exists := record[key]; exists && value != nil {
			candidate = value
			break
		}
	}

	switch v := candidate.(type) {
	case bool:
		if !v {
			return models.ApprovalPending
		}
	case float64:
		if v == 0 {
			return models.ApprovalPending
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "pending", "0", "false":
			return models.ApprovalPending
		}
	}
	return models.ApprovalResolved
}

// normalizeDisplayName builds the best-effort display string: explicit full
// name, then assembled name parts, then email, then the id itself
func normalizeDisplayName(record map[string]interface{}, id string) string {
	if full := pickString(record["full_name"]); full != "" {
		return full
	}

	var parts []string
	for _, key := range []string{"name", "paternal_last_name", "maternal_last_name"} {
		if part := pickString(record[key]); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}

	if email := pickString(record["email"]); email != "" {
		return email
	}
	return id
}

// normalizeEntry converts one raw record into a DirectoryEntry. Records
// without a usable id resolve to nil and are dropped by the caller.
func normalizeEntry(record map[string]interface{}) *models.DirectoryEntry {
	if record == nil {
		return nil
	}

	id := pickID(record["user_id"])
	if id == "" {
		id = pickID(record["id"])
	}
	if id == "" {
		return nil
	}

	var roles []string
	roles = append(roles, normalizeRoles(record["roles"])...)
	roles = append(roles, normalizeRoles(record["role"])...)
	roles = append(roles, normalizeRoles(record["global_roles"])...)
	if joined, exists := record["users_roles"]; exists {
		roles = append(roles, normalizeJoinedRoles(joined)...)
	} else if joined, exists := record["user_roles"]; exists {
		roles = append(roles, normalizeJoinedRoles(joined)...)
	}

	country := normalizeGeoEntity(record["country"], "country_id", "id")
	union := normalizeGeoEntity(record["union"], "union_id", "id")
	localField := normalizeGeoEntity(record["local_field"], "local_field_id", "id")

	entry := &models.DirectoryEntry{
		ID:            id,
		DisplayName:   normalizeDisplayName(record, id),
		Email:         pickString(record["email"]),
		Roles:         dedupeStrings(roles),
		ApprovalState: normalizeApproval(record),
		Active:        normalizeActive(record),
		Geo: models.GeoScope{
			CountryID:      resolveGeoID(country, record, "country_id", "countryId"),
			CountryName:    country.name,
			UnionID:        resolveGeoID(union, record, "union_id", "unionId"),
			UnionName:      union.name,
			LocalFieldID:   resolveGeoID(localField, record, "local_field_id", "localFieldId"),
			LocalFieldName: localField.name,
		},
		CreatedAt: firstString(record, "created_at", "createdAt"),
		UpdatedAt: firstString(record, "updated_at", "updatedAt"),
	}
	if entry.Roles == nil {
		entry.Roles = []string{}
	}

	return entry
}

// firstString returns the first non-empty string among the given keys
func firstString(record map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if value := pickString(record[key]); value != "" {
			return value
		}
	}
	return ""
}

// containerPaths are the record-container shapes tolerated from upstream,
// tried in order. The empty path means the payload itself is the array.
var containerPaths = [][]string{
	{"data", "data"},
	{"data", "items"},
	{"data", "results"},
	{"data"},
	{"items"},
	{"results"},
	{"rows"},
	{},
}

// extractRecordList locates the record array inside whatever container the
// deployment uses. As a last resort the first array-valued field anywhere in
// the top-level object is taken.
func extractRecordList(payload interface{}) []interface{} {
	for _, path := range containerPaths {
		if list := arrayAtPath(payload, path...); list != nil {
			return list
		}
	}

	record := asRecord(payload)
	if record == nil {
		return nil
	}
	for _, value := range record {
		if list, ok := value.([]interface{}); ok {
			return list
		}
	}
	return nil
}

// normalizeEntries extracts and normalizes every record in the payload,
// silently dropping elements that do not resolve to a usable id
func normalizeEntries(payload interface{}) []models.DirectoryEntry {
	entries := []models.DirectoryEntry{}
	for _, item := range extractRecordList(payload) {
		record := asRecord(item)
		if record == nil {
			continue
		}
		if entry := normalizeEntry(record); entry != nil {
			entries = append(entries, *entry)
		}
	}
	return entries
}

// normalizeScopeHint reads the optional scope block some deployments attach
// to list metadata
func normalizeScopeHint(value interface{}) *models.ScopeHint {
	record := asRecord(value)
	if record == nil {
		return nil
	}

	scopeType := strings.ToUpper(pickString(record["type"]))
	switch scopeType {
	case "ALL", "UNION", "LOCAL_FIELD":
	default:
		return nil
	}

	roles := normalizeRoles(record["roles"])
	if roles == nil {
		roles = []string{}
	}

	return &models.ScopeHint{
		Type:         scopeType,
		Roles:        roles,
		UnionID:      pickID(record["union_id"]),
		LocalFieldID: pickID(record["local_field_id"]),
	}
}

// metaPaths are the locations list metadata is known to live at
var metaPaths = [][]string{
	{"data", "meta"},
	{"meta"},
	{"data", "pagination"},
	{"pagination"},
}

// normalizeListMeta extracts page metadata, deriving any numeric field the
// payload omits. Returns nil when no metadata block exists at all.
func normalizeListMeta(payload interface{}) *models.PageMeta {
	var metaRecord map[string]interface{}
	for _, path := range metaPaths {
		if metaRecord = recordAtPath(payload, path...); metaRecord != nil {
			break
		}
	}
	if metaRecord == nil {
		return nil
	}

	page := intOrDefault(metaRecord["page"], 1)
	limit := intOrDefault(metaRecord["limit"], 20)
	total := intOrDefault(metaRecord["total"], 0)

	totalPages := intOrDefault(metaRecord["totalPages"], 0)
	if totalPages == 0 {
		totalPages = int(math.Ceil(float64(total) / float64(max(limit, 1))))
		if totalPages < 1 {
			totalPages = 1
		}
	}

	hasNext, ok := pickBool(metaRecord["hasNextPage"])
	if !ok {
		hasNext = page < totalPages
	}
	hasPrevious, ok := pickBool(metaRecord["hasPreviousPage"])
	if !ok {
		hasPrevious = page > 1
	}

	return &models.PageMeta{
		Page:            page,
		Limit:           limit,
		Total:           total,
		TotalPages:      totalPages,
		HasNextPage:     hasNext,
		HasPreviousPage: hasPrevious,
		Scope:           normalizeScopeHint(metaRecord["scope"]),
	}
}

// intOrDefault reads a numeric field, falling back when absent or unusable
func intOrDefault(value interface{}, fallback int) int {
	if num, ok := pickNumber(value); ok {
		return int(num)
	}
	return fallback
}

// normalizeDetail converts a single-record payload into the detail shape.
// Returns nil when the payload does not resolve to a usable record.
func normalizeDetail(payload interface{}) *models.DirectoryEntryDetail {
	record := recordAtPath(payload, "data")
	if record == nil {
		record = asRecord(payload)
	}
	if record == nil {
		return nil
	}

	base := normalizeEntry(record)
	if base == nil {
		return nil
	}

	detail := &models.DirectoryEntryDetail{
		DirectoryEntry: *base,
		Gender:         pickString(record["gender"]),
		Birthday:       pickString(record["birthday"]),
		BloodType:      pickString(record["blood"]),
		BaptismDate:    pickString(record["baptism_date"]),
		ImageURL:       pickString(record["user_image"]),
		Scope:          normalizeScopeHint(record["scope"]),
	}

	if baptism, ok := pickBool(record["baptism"]); ok {
		detail.Baptism = &baptism
	}

	return detail
}
