package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexibleStringSlice can unmarshal both single string and string array from JSON
type FlexibleStringSlice []string

// UnmarshalJSON implements custom unmarshaling to handle both string and []string
func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	// Try to unmarshal as string array first
	var strArray []string
	arrayErr := json.Unmarshal(data, &strArray)
	if arrayErr == nil {
		if err := validateStringSlice(strArray); err != nil {
			return fmt.Errorf("invalid string array: %v", err)
		}
		*f = FlexibleStringSlice(strArray)
		return nil
	}

	// If that fails, try to unmarshal as single string
	var str string
	stringErr := json.Unmarshal(data, &str)
	if stringErr == nil {
		if err := validateString(str); err != nil {
			return fmt.Errorf("invalid string: %v", err)
		}
		*f = FlexibleStringSlice([]string{str})
		return nil
	}

	return fmt.Errorf("failed to unmarshal FlexibleStringSlice: cannot parse as []string (%v) or string (%v), data: %s",
		arrayErr, stringErr, string(data))
}

// ToStringSlice converts to regular string slice
func (f *FlexibleStringSlice) ToStringSlice() []string {
	return []string(*f)
}

// FlexibleID can unmarshal an identifier that upstream encodes either as a
// JSON number or as a string. The normalized form is always a string.
type FlexibleID string

// UnmarshalJSON implements custom unmarshaling to handle number and string ids
func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*f = ""
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*f = FlexibleID(strings.TrimSpace(str))
		return nil
	}

	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = FlexibleID(strconv.FormatFloat(num, 'f', -1, 64))
		return nil
	}

	return fmt.Errorf("failed to unmarshal FlexibleID from %s", string(data))
}

// String returns the normalized identifier
func (f FlexibleID) String() string {
	return string(f)
}

// validateString validates a single string for security concerns
func validateString(s string) error {
	if len(s) == 0 {
		return fmt.Errorf("empty string not allowed")
	}

	const maxStringLength = 1024
	if len(s) > maxStringLength {
		return fmt.Errorf("string too long (max %d characters)", maxStringLength)
	}

	for i, b := range []byte(s) {
		if b == 0 {
			return fmt.Errorf("null byte found at position %d", i)
		}
	}

	return nil
}

// validateStringSlice validates all strings in a slice
func validateStringSlice(slice []string) error {
	const maxArrayLength = 100
	if len(slice) > maxArrayLength {
		return fmt.Errorf("array too large (max %d elements)", maxArrayLength)
	}

	for i, s := range slice {
		if err := validateString(s); err != nil {
			return fmt.Errorf("invalid string at index %d: %v", i, err)
		}
	}

	return nil
}
