package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/om239903-ai/internship-project/internal/data/cryptoutil"
)

// CreateSealer builds the sealer used for access tokens stored with scan jobs.
// Without a key, development mode falls back to an unencrypted sealer and production fails.
//
//nolint:ireturn // Returning interface is intentional for sealer abstraction
func CreateSealer(key string, isDev bool, logger *slog.Logger) (cryptoutil.CredentialSealer, error) {
	if key == "" {
		if !isDev {
			return nil, errors.New("CREDENTIALS_ENCRYPTION_KEY is required outside development mode")
		}
		if logger != nil {
			logger.Warn("credentials encryption key is empty, storing access tokens unencrypted")
		}
		return cryptoutil.PlainSealer{}, nil
	}

	raw, err := cryptoutil.KeyFromString(key)
	if err != nil {
		return nil, fmt.Errorf("derive credentials key: %w", err)
	}
	sealer, err := cryptoutil.NewAESGCMSealer(raw)
	if err != nil {
		return nil, fmt.Errorf("create credentials sealer: %w", err)
	}
	return sealer, nil
}
