package knowledge

import (
	"fmt"
	"strings"
)

// Scope labels the blast radius of an entry. Valid forms:
//
//	repo
//	org
//	customer
//	service:<name>
//	environment:prod
//	environment:staging
//
// Repo and org are broad scopes: they are admitted by queries filtered to
// any narrower scope. The reverse never holds.
type Scope string

const (
	ScopeRepo     Scope = "repo"
	ScopeOrg      Scope = "org"
	ScopeCustomer Scope = "customer"
)

const (
	scopeServicePrefix     = "service:"
	scopeEnvironmentPrefix = "environment:"
)

// ParseScope validates s against the scope grammar.
func ParseScope(s string) (Scope, error) {
	switch {
	case s == string(ScopeRepo), s == string(ScopeOrg), s == string(ScopeCustomer):
		return Scope(s), nil
	case strings.HasPrefix(s, scopeServicePrefix):
		name := strings.TrimPrefix(s, scopeServicePrefix)
		if name == "" {
			return "", fmt.Errorf("service scope requires a name: %q", s)
		}
		return Scope(s), nil
	case strings.HasPrefix(s, scopeEnvironmentPrefix):
		env := strings.TrimPrefix(s, scopeEnvironmentPrefix)
		if env != "prod" && env != "staging" {
			return "", fmt.Errorf("environment scope must be prod or staging: %q", s)
		}
		return Scope(s), nil
	default:
		return "", fmt.Errorf("invalid scope: %q", s)
	}
}

// Valid reports whether the scope matches the grammar.
func (s Scope) Valid() bool {
	_, err := ParseScope(string(s))
	return err == nil
}

// Broad reports whether the scope is visible to all narrower queries.
func (s Scope) Broad() bool {
	return s == ScopeRepo || s == ScopeOrg
}
