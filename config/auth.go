package config

import "strings"

// APIAuthConfig controls bearer-token authentication of the control plane.
// Tokens are OIDC ID tokens verified against IssuerURL.
type APIAuthConfig struct {
	Enabled   bool   `env:"ENABLED"    envDefault:"false"`
	IssuerURL string `env:"ISSUER_URL"`
	ClientID  string `env:"CLIENT_ID"  envDefault:"dealscan"`

	// GroupsClaim names the token claim carrying group membership.
	GroupsClaim string `env:"GROUPS_CLAIM" envDefault:"groups"`
	// OperatorGroup may start and cancel scans. Empty means any authenticated caller.
	OperatorGroup string `env:"OPERATOR_GROUP"`
	// ViewerGroup may read status and results. Empty means any authenticated caller.
	ViewerGroup string `env:"VIEWER_GROUP"`
}

// Sanitize normalises API auth configuration values.
func (c *APIAuthConfig) Sanitize() {
	c.IssuerURL = strings.TrimSpace(c.IssuerURL)
	c.ClientID = strings.TrimSpace(c.ClientID)
	c.OperatorGroup = strings.TrimSpace(c.OperatorGroup)
	c.ViewerGroup = strings.TrimSpace(c.ViewerGroup)
	if c.GroupsClaim = strings.TrimSpace(c.GroupsClaim); c.GroupsClaim == "" {
		c.GroupsClaim = "groups"
	}
	if c.IssuerURL == "" {
		c.Enabled = false
	}
}
