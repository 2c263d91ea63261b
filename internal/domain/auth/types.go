package auth

// Package auth contains domain-level types for authenticating control-plane callers.
// It is pure and free of framework/adapter concerns.

import "time"

// Role represents a caller's authorization role on the scan API.
type Role string

const (
	// RoleOperator may start and cancel scans in addition to reading them.
	RoleOperator Role = "operator"
	// RoleViewer may read scan status, listings and results.
	RoleViewer Role = "viewer"
	// RoleNone is an authenticated caller without access.
	RoleNone Role = "none"
)

// Identity represents the authenticated principal extracted from a verified bearer token.
// Adapters map provider-specific claims into this shape.
type Identity struct {
	Subject   string
	Email     string
	Groups    []string
	ExpiresAt time.Time
}

// Principal is the caller attached to an authorized request.
type Principal struct {
	Subject string `json:"subject"`
	Email   string `json:"email,omitempty"`
	Role    Role   `json:"role"`
}

var roleRank = map[Role]int{ //nolint:gochecknoglobals // static lookup
	RoleNone:     0,
	RoleViewer:   1,
	RoleOperator: 2,
}

// Allows reports whether r satisfies required. Operator implies viewer; unknown roles allow nothing.
func (r Role) Allows(required Role) bool {
	have, ok := roleRank[r]
	if !ok {
		return false
	}
	need, ok := roleRank[required]
	if !ok {
		return false
	}
	return have >= need && have > 0
}
