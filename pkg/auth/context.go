// Context helpers for extracting authentication information injected by the
// auth middleware. Services take the extracted values, not the request.
package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// GetUserIDFromContext extracts the user ID from JWT claims in the context.
// Returns empty string if not authenticated or claims are missing.
// Use this when you only need the user ID and can handle empty string gracefully.
func GetUserIDFromContext(ctx context.Context) string {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return ""
	}
	return claims.Subject
}

// RequireUserIDFromContext extracts the user ID from context and returns an error if not found.
// Use this when user ID is required for the operation.
func RequireUserIDFromContext(ctx context.Context) (string, error) {
	userID := GetUserIDFromContext(ctx)
	if userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// GetRoleFromContext extracts the platform role from JWT claims in the context.
// Returns empty string if not authenticated or the role claim is missing.
func GetRoleFromContext(ctx context.Context) string {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return ""
	}
	return claims.Role
}

// GetKindergartenIDFromContext extracts the kindergarten ID from JWT claims.
// Returns uuid.Nil if not authenticated or claims are missing.
func GetKindergartenIDFromContext(ctx context.Context) uuid.UUID {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return uuid.Nil
	}

	if claims.KindergartenID == "" {
		return uuid.Nil
	}

	kindergartenID, err := uuid.Parse(claims.KindergartenID)
	if err != nil {
		return uuid.Nil
	}

	return kindergartenID
}
