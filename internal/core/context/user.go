// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// UserContext contains the authenticated actor information.
// EmployeeID may be empty for system-originated mutations (worker sweeps).
type UserContext struct {
	EmployeeID string
	CompanyID  string
	Email      string
	Roles      []string
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetEmployeeID returns the acting employee ID from context or empty string.
func GetEmployeeID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.EmployeeID
	}
	return ""
}

// GetCompanyID returns the company (tenant) ID from context or empty string.
func GetCompanyID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.CompanyID
	}
	return ""
}

// HasRole checks if the actor has a specific role.
func HasRole(ctx context.Context, role string) bool {
	u := GetUser(ctx)
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
