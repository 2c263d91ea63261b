// Package oidc verifies OIDC ID tokens presented as bearer credentials on the control plane.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	domainauth "github.com/om239903-ai/internship-project/internal/domain/auth"
	"github.com/om239903-ai/internship-project/internal/ports"
)

var _ ports.TokenVerifier = (*Verifier)(nil)

// VerifierConfig holds configuration for the bearer token verifier.
type VerifierConfig struct {
	IssuerURL string
	ClientID  string
	// GroupsClaim names the claim carrying group membership; "groups" when empty.
	GroupsClaim string
	HTTPClient  *http.Client // Optional, defaults to a client with a 30s timeout
}

// Verifier implements ports.TokenVerifier using go-oidc.
type Verifier struct {
	verifier    *gooidc.IDTokenVerifier
	groupsClaim string
}

// NewVerifier discovers the issuer's configuration and builds a Verifier.
func NewVerifier(ctx context.Context, cfg VerifierConfig) (*Verifier, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.IssuerURL == "" {
		return nil, errors.New("issuer URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	// Single discovery fetch; keys are refreshed lazily by the remote key set.
	ctx = gooidc.ClientContext(ctx, httpClient)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	issuer := strings.TrimSuffix(cfg.IssuerURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}
	return newVerifier(op.Verifier(&gooidc.Config{ClientID: cfg.ClientID}), cfg.GroupsClaim), nil
}

func newVerifier(v *gooidc.IDTokenVerifier, groupsClaim string) *Verifier {
	if groupsClaim == "" {
		groupsClaim = "groups"
	}
	return &Verifier{verifier: v, groupsClaim: groupsClaim}
}

// Verify checks signature, issuer, audience and expiry, then maps claims onto an Identity.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (domainauth.Identity, error) {
	if rawToken == "" {
		return domainauth.Identity{}, errors.New("token is required")
	}
	tok, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("verify id_token: %w", err)
	}

	var claims map[string]any
	if err := tok.Claims(&claims); err != nil {
		return domainauth.Identity{}, fmt.Errorf("parse id_token claims: %w", err)
	}

	return domainauth.Identity{
		Subject:   firstNonEmpty(stringClaim(claims, "preferred_username"), tok.Subject),
		Email:     stringClaim(claims, "email"),
		Groups:    listClaim(claims[v.groupsClaim]),
		ExpiresAt: tok.Expiry,
	}, nil
}

func stringClaim(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return s
}

// listClaim accepts a JSON array of strings or a single string.
func listClaim(v any) []string {
	switch val := v.(type) {
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// firstNonEmpty returns the first non-empty string from vals, or empty string if none.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
