// Package ports defines the interfaces between the watcher core and its
// adapters (input tailing, classification, blocklist control, audit output).
//
// Implementations live in internal/adapters/. Tests substitute deterministic
// fakes for the external-process boundaries (BlocklistClient, Resolver).
package ports

import (
	"context"
	"errors"

	"github.com/closecrowd/blockwatch/internal/domain"
)

// ErrSourceClosed is returned by a LineSource once it has shut down for
// good. The watcher treats it as end of input, not as a failure.
var ErrSourceClosed = errors.New("line source closed")

// LineSource follows a growing, possibly externally rotated text file.
type LineSource interface {
	// NextLine returns the next line, or ok=false when the bounded wait
	// expires with no line available. The wait must never be unbounded:
	// the watcher relies on periodic returns to observe the rotation flag.
	// A context cancellation surfaces as an error.
	NextLine(ctx context.Context) (line domain.LogLine, ok bool, err error)

	// Stop releases the underlying tail. Safe to call more than once.
	Stop() error
}

// Rule attempts to classify a single non-empty line. Rules are evaluated in
// a fixed order and the first match wins; order is a correctness requirement
// because the disallowed-user log format overlaps the invalid-user one.
type Rule interface {
	// Match returns a violation and true, or nil and false when the line
	// does not belong to this rule. A line this rule recognizes but cannot
	// extract complete fields from also returns false.
	Match(line string) (*domain.Violation, bool)

	Name() string
}

// BlocklistClient inserts addresses into the kernel blocklist set.
//
// Block reports whether an insertion was actually attempted and succeeded.
// inserted=false with a nil error means the call was a deliberate no-op
// (unconfigured set, or the home/allow-listed address). Errors are
// best-effort information for the caller's counters; the caller must never
// treat them as fatal.
type BlocklistClient interface {
	Block(ctx context.Context, addr string) (inserted bool, err error)
}

// Resolver is the forward name resolution used as a fallback when the
// disallowed-user rule captured a hostname instead of a dotted quad.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// AuditSink is the append-only record of every violation, with
// rotate-and-continue semantics driven by an external signal.
type AuditSink interface {
	Append(rec *domain.Violation) error
	Rotate() error
	Close() error
}

// Observer receives pipeline counters. The Prometheus adapter implements it;
// the watcher uses a no-op when metrics are disabled.
type Observer interface {
	LineRead()
	Violation(kind domain.Kind)
	Blocked()
	BlockFailed()
	Rotated()
}
