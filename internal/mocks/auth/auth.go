package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"

	domainauth "github.com/om239903-ai/internship-project/internal/domain/auth"
	"github.com/om239903-ai/internship-project/internal/ports"
)

var _ ports.TokenVerifier = (*StaticVerifier)(nil)

// ErrInvalidToken is returned by StaticVerifier for unknown tokens.
var ErrInvalidToken = errors.New("invalid token")

// StaticVerifier accepts a fixed set of tokens.
type StaticVerifier struct {
	Tokens map[string]domainauth.Identity
}

// Verify returns the identity registered for rawToken.
func (v *StaticVerifier) Verify(_ context.Context, rawToken string) (domainauth.Identity, error) {
	id, ok := v.Tokens[rawToken]
	if !ok {
		return domainauth.Identity{}, ErrInvalidToken
	}
	return id, nil
}
