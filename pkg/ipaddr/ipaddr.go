// Package ipaddr validates candidate blocklist addresses. Only dotted-quad
// IPv4 is accepted: the kernel set this daemon feeds holds v4 addresses, and
// anything else in a captured field is either a hostname (resolved by the
// caller) or noise.
package ipaddr

import (
	"context"
	"strconv"
	"strings"
)

type Result int

const (
	Valid Result = iota
	MalformedFormat
	OctetOutOfRange
)

func (r Result) String() string {
	switch r {
	case Valid:
		return "valid"
	case MalformedFormat:
		return "malformed"
	case OctetOutOfRange:
		return "octet out of range"
	}
	return "unknown"
}

// Validate checks that s is exactly four dot-separated decimal groups, each
// in [0,255]. A candidate that fails the four-group shape is MalformedFormat
// and must not be handed to a resolver by mistake of the caller; a candidate
// with the right shape but a group above 255 is OctetOutOfRange.
func Validate(s string) Result {
	groups := strings.Split(s, ".")
	if len(groups) != 4 {
		return MalformedFormat
	}
	for _, g := range groups {
		if g == "" || len(g) > 3 {
			return MalformedFormat
		}
		for i := 0; i < len(g); i++ {
			if g[i] < '0' || g[i] > '9' {
				return MalformedFormat
			}
		}
		n, err := strconv.Atoi(g)
		if err != nil {
			return MalformedFormat
		}
		if n > 255 {
			return OctetOutOfRange
		}
	}
	return Valid
}

// Lookuper is the subset of net.Resolver the fallback needs.
type Lookuper interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// ResolveLast forward-resolves host and returns the last IPv4 address of the
// result. Returns "" when resolution fails or yields no usable address, in
// which case the caller drops the violation.
func ResolveLast(ctx context.Context, r Lookuper, host string) string {
	addrs, err := r.LookupHost(ctx, host)
	if err != nil {
		return ""
	}
	last := ""
	for _, a := range addrs {
		if Validate(a) == Valid {
			last = a
		}
	}
	return last
}
