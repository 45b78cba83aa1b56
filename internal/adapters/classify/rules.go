// Package classify turns raw log lines into typed violations.
//
// Rules are applied in a fixed order and the first match wins. The order is
// load-bearing: a disallowed-user line can also contain the invalid-user
// marker ("Invalid user x from h not allowed because ..."), so the
// disallowed rule must always run first.
package classify

import (
	"regexp"
	"strings"

	"github.com/closecrowd/blockwatch/internal/domain"
	"github.com/closecrowd/blockwatch/internal/ports"
)

// Chain evaluates rules in order and stops at the first match.
type Chain struct {
	rules []ports.Rule
}

func NewChain(rules ...ports.Rule) *Chain {
	return &Chain{rules: rules}
}

// Classify returns the first rule's violation, or nil when no rule matched.
// Unmatched lines are expected noise, not errors.
func (c *Chain) Classify(line string) *domain.Violation {
	for _, r := range c.rules {
		if v, ok := r.Match(line); ok {
			return v
		}
	}
	return nil
}

func (c *Chain) Rules() []ports.Rule {
	return c.rules
}

// AuthChain is the rule order for the auth-log watcher.
func AuthChain() *Chain {
	return NewChain(
		NewDisallowedRule(),
		NewInvalidUserRule(),
		NewProtocolRule(),
	)
}

// WebChain is the rule order for the web-log watcher.
func WebChain() *Chain {
	return NewChain(NewAccessLogRule())
}

var (
	// Matches both "User x from h not allowed because ..." and the
	// combined "Invalid user x from h not allowed because ..." shape,
	// hence the case-insensitive "user".
	disallowedRe = regexp.MustCompile(`(?i)user (\S+) from (\S+) not allowed because`)

	invalidUserRe = regexp.MustCompile(`Invalid user (\S*) from (\S+)`)

	protocolRe = regexp.MustCompile(`Bad protocol version identification (.+?) from (\S+)`)
)

// DisallowedRule matches authentication attempts for users rejected by
// server policy. The captured source may be a hostname; the watcher resolves
// it before blocking.
type DisallowedRule struct{}

func NewDisallowedRule() *DisallowedRule { return &DisallowedRule{} }

func (r *DisallowedRule) Name() string { return "disallowed" }

func (r *DisallowedRule) Match(line string) (*domain.Violation, bool) {
	m := disallowedRe.FindStringSubmatch(line)
	if m == nil || m[2] == "" {
		return nil, false
	}
	return &domain.Violation{
		Addr:     m[2],
		Identity: m[1],
		Kind:     domain.KindDisallowed,
	}, true
}

// InvalidUserRule matches attempts for accounts that do not exist. The
// identity capture tolerates an empty username.
type InvalidUserRule struct{}

func NewInvalidUserRule() *InvalidUserRule { return &InvalidUserRule{} }

func (r *InvalidUserRule) Name() string { return "invalid" }

func (r *InvalidUserRule) Match(line string) (*domain.Violation, bool) {
	m := invalidUserRe.FindStringSubmatch(line)
	if m == nil || m[2] == "" {
		return nil, false
	}
	return &domain.Violation{
		Addr:     m[2],
		Identity: m[1],
		Kind:     domain.KindInvalid,
	}, true
}

// ProtocolRule matches connections dropped over a bad protocol handshake
// string. The quoted protocol field, quotes stripped, becomes the identity.
type ProtocolRule struct{}

func NewProtocolRule() *ProtocolRule { return &ProtocolRule{} }

func (r *ProtocolRule) Name() string { return "protocol" }

func (r *ProtocolRule) Match(line string) (*domain.Violation, bool) {
	m := protocolRe.FindStringSubmatch(line)
	if m == nil || m[2] == "" {
		return nil, false
	}
	return &domain.Violation{
		Addr:     m[2],
		Identity: strings.Trim(m[1], `'"`),
		Kind:     domain.KindProtocol,
	}, true
}
