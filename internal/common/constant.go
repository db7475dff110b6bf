// Package common contains shared constants and sentinel errors used across
// taskauth components.
package common

// AuthorizationHeaderName carries the bearer token on inbound requests.
const AuthorizationHeaderName = "Authorization"

// BearerScheme is the only accepted authorization scheme.
const BearerScheme = "bearer"

// Role names seeded at startup.
const (
	RoleAdmin = "Admin"
	RoleUser  = "User"
)

// DefaultRoles lists the roles every installation starts with.
var DefaultRoles = []string{RoleAdmin, RoleUser}
