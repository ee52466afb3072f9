package utils

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/clubsphere/admin-backend/v1/models"
)

// AuthContextKey is the key used to store authentication context in request context
type AuthContextKey string

const (
	AuthContextKeyUser AuthContextKey = "authenticated_user"
)

// ExtractBearerToken extracts the Bearer token from the Authorization header.
// It returns an error if the header is missing, does not start with
// "Bearer ", or if the token is empty.
func ExtractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("authorization header is missing")
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", fmt.Errorf("authorization header must start with 'Bearer '")
	}

	token := strings.TrimPrefix(authHeader, "Bearer ")
	token = strings.TrimSpace(token)

	if token == "" {
		return "", fmt.Errorf("bearer token is empty")
	}

	return token, nil
}

// GetAuthenticatedUser retrieves the authenticated user from request context
func GetAuthenticatedUser(ctx context.Context) (*models.AuthenticatedUser, error) {
	user, ok := ctx.Value(AuthContextKeyUser).(*models.AuthenticatedUser)
	if !ok || user == nil {
		return nil, fmt.Errorf("no authenticated user found in context")
	}
	return user, nil
}

// SetAuthenticatedUser sets the authenticated user in request context
func SetAuthenticatedUser(ctx context.Context, user *models.AuthenticatedUser) context.Context {
	return context.WithValue(ctx, AuthContextKeyUser, user)
}

// RequireAuthentication is a helper that checks if a user is authenticated
func RequireAuthentication(r *http.Request) (*models.AuthenticatedUser, error) {
	return GetAuthenticatedUser(r.Context())
}

// RequireAnyRole checks if the authenticated user has any of the required roles
func RequireAnyRole(r *http.Request, requiredRoles ...string) (*models.AuthenticatedUser, error) {
	user, err := RequireAuthentication(r)
	if err != nil {
		return nil, err
	}

	if !user.HasAnyRole(requiredRoles...) {
		return nil, fmt.Errorf("user does not have any of the required roles: %s", strings.Join(requiredRoles, ", "))
	}

	return user, nil
}

// GetRequestIP extracts the client IP, honoring the usual proxy headers
func GetRequestIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
