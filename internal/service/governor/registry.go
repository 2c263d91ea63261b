package governor

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// Registry hands out one Governor per credential.
type Registry struct {
	opts Options

	mu   sync.Mutex
	byFP map[string]*Governor
}

// NewRegistry creates a Registry whose governors share opts.
func NewRegistry(opts Options) *Registry {
	return &Registry{opts: opts, byFP: make(map[string]*Governor)}
}

// For returns the Governor for credential, creating it on first use.
func (r *Registry) For(credential string) *Governor {
	fp := Fingerprint(credential)
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.byFP[fp]; ok {
		return g
	}
	opts := r.opts
	if opts.Logger != nil {
		opts.Logger = opts.Logger.With("credential_fp", fp)
	}
	g := New(opts)
	r.byFP[fp] = g
	return g
}

// Len reports how many credentials have a governor.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byFP)
}

// Fingerprint is a short, non-reversible identifier for a credential, safe to log.
func Fingerprint(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:8])
}
