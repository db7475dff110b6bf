package auth

import "slices"

// RequireRole reports whether role is among the roles carried by c.
func RequireRole(c *Claims, role string) bool {
	if c == nil {
		return false
	}
	return slices.Contains(c.Roles, role)
}

// RequireSelfOrRole reports whether c belongs to targetUserID or holds role.
func RequireSelfOrRole(c *Claims, targetUserID int64, role string) bool {
	if c == nil {
		return false
	}
	return c.UserID == targetUserID || RequireRole(c, role)
}
