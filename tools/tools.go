//go:build tools

// Package tools documents development tool dependencies that are run with `go run` and
// therefore not imported by any runtime package.
package tools

// Development tools:
//
// mockgen - gomock mock generation for internal/core interfaces
//   Run: go generate ./internal/mocks/...
//   Version: go.uber.org/mock v0.6.0 (matches go.mod)
//   Docs: https://github.com/uber-go/mock
