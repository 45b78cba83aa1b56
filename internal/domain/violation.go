package domain

import "time"

// MaxLineLength caps how much of an oversized log line is kept before
// classification. Anything past this is attacker-controlled padding.
const MaxLineLength = 8192

type Kind string

const (
	KindDisallowed Kind = "disallowed"
	KindInvalid    Kind = "invalid"
	KindProtocol   Kind = "protocol"
	KindHTTP       Kind = "http"
)

// LogLine is one raw line from the followed source. At is assigned when the
// line is read, never parsed out of the line itself.
type LogLine struct {
	Text string
	At   time.Time
}

// Violation is the typed result of classifying a log line. Addr may still be
// a hostname when produced by the disallowed-user rule; the watcher resolves
// it before the record reaches the sink or the audit log. Immutable once the
// watcher has filled in At and the final Addr.
type Violation struct {
	At       time.Time
	Addr     string
	Identity string
	Kind     Kind
	Code     int // http status, 0 for auth kinds
}
