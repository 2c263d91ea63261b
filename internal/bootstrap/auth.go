package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/om239903-ai/internship-project/config"
	"github.com/om239903-ai/internship-project/internal/adapters/authroles"
	"github.com/om239903-ai/internship-project/internal/adapters/oidc"
	httpx "github.com/om239903-ai/internship-project/internal/http"
)

// BuildAuthenticator creates the bearer authenticator for the control plane.
// Returns nil when API auth is disabled, which leaves the routes open.
func BuildAuthenticator(ctx context.Context, cfg config.APIAuthConfig, logger *slog.Logger) (*httpx.Authenticator, error) {
	if !cfg.Enabled {
		if logger != nil {
			logger.WarnContext(ctx, "API authentication disabled; control plane routes are open")
		}
		return nil, nil
	}

	verifier, err := oidc.NewVerifier(ctx, oidc.VerifierConfig{
		IssuerURL:   cfg.IssuerURL,
		ClientID:    cfg.ClientID,
		GroupsClaim: cfg.GroupsClaim,
	})
	if err != nil {
		return nil, fmt.Errorf("create token verifier: %w", err)
	}

	if logger != nil {
		logger.InfoContext(ctx, "API authentication enabled",
			"issuer", cfg.IssuerURL,
			"operator_group", cfg.OperatorGroup,
			"viewer_group", cfg.ViewerGroup,
		)
	}

	return &httpx.Authenticator{
		Verifier: verifier,
		Roles: authroles.StaticRoleMapper{
			OperatorGroup: cfg.OperatorGroup,
			ViewerGroup:   cfg.ViewerGroup,
		},
		Logger: logger,
	}, nil
}
