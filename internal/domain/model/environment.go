package model

import (
	"fmt"
	"strings"
)

// Environment selects how recipients are resolved.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type Environment string

const (
	// EnvDevelopment routes every message to the developer address.
	EnvDevelopment Environment = "development"
	// EnvStaging fans messages out to opted-in staff.
	EnvStaging Environment = "staging"
	// EnvProduction delivers to the notification's user.
	EnvProduction Environment = "production"
)

// Valid reports whether e is a known environment.
func (e Environment) Valid() bool {
	return e == EnvDevelopment || e == EnvStaging || e == EnvProduction
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown names are rejected.
func (e *Environment) UnmarshalText(text []byte) error {
	v := Environment(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid runtime environment: %q", string(text))
	}
	*e = v
	return nil
}
