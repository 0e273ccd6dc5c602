//go:build tools
// +build tools

// Package tools documents development tool dependencies.
// These tools are installed globally via `go install` and are not tracked in go.mod
// since they are development tools, not runtime dependencies.
package tools

// Development tools (install via `go install`):
//
// mockgen - Generates internal/mocks from the core ports (go generate ./internal/mocks)
//   Install: go install go.uber.org/mock/mockgen@v0.6.0
//   Version: v0.6.0 (matches go.uber.org/mock in go.mod)
//   Docs: https://github.com/uber-go/mock
//
// goose - Creates and inspects SQL migrations under internal/migrate/migrations
//   Install: go install github.com/pressly/goose/v3/cmd/goose@v3.24.3
//   Version: v3.24.3 (matches the library in go.mod)
//   Docs: https://github.com/pressly/goose
