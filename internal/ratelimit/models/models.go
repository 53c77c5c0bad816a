// Package models describes rate limit policies and the outcome of checking them.
package models

import (
	"fmt"
	"time"

	dErrors "grievance/pkg/domain-errors"
)

// Scope selects which request attribute a limit is counted against.
type Scope string

const (
	ScopeIP       Scope = "ip"
	ScopeUser     Scope = "user"
	ScopeEmail    Scope = "email"
	ScopeUserOrIP Scope = "user_or_ip"
)

func (s Scope) IsValid() bool {
	switch s {
	case ScopeIP, ScopeUser, ScopeEmail, ScopeUserOrIP:
		return true
	}
	return false
}

// Limit allows Max hits per sliding Window for one scope.
type Limit struct {
	Max    int           `yaml:"max" json:"max"`
	Window time.Duration `yaml:"window" json:"window"`
	By     Scope         `yaml:"by" json:"by"`
}

// Validate rejects non-positive limits and unknown scopes.
func (l Limit) Validate() error {
	if l.Max <= 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "limit max must be positive")
	}
	if l.Window <= 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "limit window must be positive")
	}
	if !l.By.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("unknown limit scope %q", l.By))
	}
	return nil
}

// Policy is a named set of limits that must all pass.
type Policy struct {
	Name   string  `json:"name"`
	Limits []Limit `json:"limits"`
}

// Validate checks the name and every limit of the policy.
func (p Policy) Validate() error {
	if p.Name == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "policy name cannot be empty")
	}
	if len(p.Limits) == 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("policy %s has no limits", p.Name))
	}
	for _, l := range p.Limits {
		if err := l.Validate(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "policy "+p.Name)
		}
	}
	return nil
}

// Subject carries the request attributes limits are keyed on. Empty fields
// skip the limits scoped to them.
type Subject struct {
	IP     string
	UserID string
	Email  string
}

// KeyFor returns the bucket identifier for scope, or "" when the subject lacks it.
func (s Subject) KeyFor(scope Scope) string {
	switch scope {
	case ScopeIP:
		return prefixed("ip", s.IP)
	case ScopeUser:
		return prefixed("user", s.UserID)
	case ScopeEmail:
		return prefixed("email", s.Email)
	case ScopeUserOrIP:
		if s.UserID != "" {
			return prefixed("user", s.UserID)
		}
		return prefixed("ip", s.IP)
	}
	return ""
}

func prefixed(kind, value string) string {
	if value == "" {
		return ""
	}
	return kind + ":" + SanitizeKeySegment(value)
}

// Result is the outcome of one bucket check.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"`
}

// BlockedIP is an address refused by the suspicious traffic blocker.
type BlockedIP struct {
	IP           string    `json:"ip"`
	BlockedUntil time.Time `json:"blocked_until"`
}
