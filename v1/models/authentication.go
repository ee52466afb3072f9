package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserClaims represents the JWT claims for an authenticated administrator
type UserClaims struct {
	Email        string              `json:"email"`
	FirstName    string              `json:"given_name"`
	LastName     string              `json:"family_name"`
	Roles        FlexibleStringSlice `json:"roles"`
	Groups       []string            `json:"groups"`
	OrgName      string              `json:"org_name"`
	IdpUserID    string              `json:"sub"` // Subject is typically the user ID from IdP
	CountryID    FlexibleID          `json:"country_id"`
	UnionID      FlexibleID          `json:"union_id"`
	LocalFieldID FlexibleID          `json:"local_field_id"`
	// Standard JWT claims. Timestamps are RFC 7519 NumericDate values,
	// i.e. Unix seconds.
	Issuer    string              `json:"iss"`
	Audience  FlexibleStringSlice `json:"aud"`
	ExpiresAt int64               `json:"exp"`
	IssuedAt  int64               `json:"iat"`
	NotBefore int64               `json:"nbf"`
}

// GetExpirationTime implements jwt.Claims interface
func (c *UserClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	if c.ExpiresAt == 0 {
		return nil, nil
	}
	return jwt.NewNumericDate(time.Unix(c.ExpiresAt, 0)), nil
}

// GetIssuedAt implements jwt.Claims interface
func (c *UserClaims) GetIssuedAt() (*jwt.NumericDate, error) {
	if c.IssuedAt == 0 {
		return nil, nil
	}
	return jwt.NewNumericDate(time.Unix(c.IssuedAt, 0)), nil
}

// GetNotBefore implements jwt.Claims interface
func (c *UserClaims) GetNotBefore() (*jwt.NumericDate, error) {
	if c.NotBefore == 0 {
		return nil, nil
	}
	return jwt.NewNumericDate(time.Unix(c.NotBefore, 0)), nil
}

// GetIssuer implements jwt.Claims interface
func (c *UserClaims) GetIssuer() (string, error) {
	return c.Issuer, nil
}

// GetSubject implements jwt.Claims interface
func (c *UserClaims) GetSubject() (string, error) {
	return c.IdpUserID, nil
}

// GetAudience implements jwt.Claims interface
func (c *UserClaims) GetAudience() (jwt.ClaimStrings, error) {
	return jwt.ClaimStrings(c.Audience), nil
}

// AuthenticatedUser represents the authenticated administrator context
type AuthenticatedUser struct {
	IdpUserID    string    `json:"idpUserId"`
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Roles        []string  `json:"roles"`
	Groups       []string  `json:"groups"`
	OrgName      string    `json:"orgName"`
	CountryID    string    `json:"countryId,omitempty"`
	UnionID      string    `json:"unionId,omitempty"`
	LocalFieldID string    `json:"localFieldId,omitempty"`
	IssuedAt     time.Time `json:"issuedAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// HasRole checks if the user has a specific role
func (u *AuthenticatedUser) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole checks if the user has any of the specified roles
func (u *AuthenticatedUser) HasAnyRole(roles ...string) bool {
	for _, requiredRole := range roles {
		if u.HasRole(requiredRole) {
			return true
		}
	}
	return false
}

// IsTokenExpired checks if the user's token is expired
func (u *AuthenticatedUser) IsTokenExpired() bool {
	return time.Now().After(u.ExpiresAt)
}

// ToPrincipal derives the scope-authorization principal from the
// authenticated user. The principal is a value copy; callers may not mutate
// the user through it.
func (u *AuthenticatedUser) ToPrincipal() Principal {
	roles := make([]string, len(u.Roles))
	copy(roles, u.Roles)

	return Principal{
		Roles:        roles,
		SelfID:       u.IdpUserID,
		CountryID:    u.CountryID,
		UnionID:      u.UnionID,
		LocalFieldID: u.LocalFieldID,
	}
}

// NewAuthenticatedUser creates a new authenticated user from JWT claims
func NewAuthenticatedUser(claims *UserClaims) *AuthenticatedUser {
	return &AuthenticatedUser{
		IdpUserID:    claims.IdpUserID,
		Email:        claims.Email,
		FirstName:    claims.FirstName,
		LastName:     claims.LastName,
		Roles:        claims.Roles.ToStringSlice(),
		Groups:       claims.Groups,
		OrgName:      claims.OrgName,
		CountryID:    claims.CountryID.String(),
		UnionID:      claims.UnionID.String(),
		LocalFieldID: claims.LocalFieldID.String(),
		IssuedAt:     time.Unix(claims.IssuedAt, 0),
		ExpiresAt:    time.Unix(claims.ExpiresAt, 0),
	}
}
