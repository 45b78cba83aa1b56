package classify

import (
	"strconv"

	"github.com/closecrowd/blockwatch/internal/domain"
)

// AccessLogRule matches combined-format access log records:
//
//	addr - - [time] "METHOD path PROTO" status bytes
//
// Only a 4xx status is a violation; any other status declines. The request
// field is scanned with escape-aware quote matching instead of splitting on
// whitespace, so an embedded \" inside the URL cannot shift the status
// column into the wrong field.
type AccessLogRule struct{}

func NewAccessLogRule() *AccessLogRule { return &AccessLogRule{} }

func (r *AccessLogRule) Name() string { return "http" }

func (r *AccessLogRule) Match(line string) (*domain.Violation, bool) {
	pos := 0

	addrEnd := skipUntil(line, pos, ' ')
	if addrEnd <= pos {
		return nil, false
	}
	addr := line[pos:addrEnd]
	pos = addrEnd + 1

	// ident and authuser fields
	for i := 0; i < 2; i++ {
		end := skipUntil(line, pos, ' ')
		if end == -1 {
			return nil, false
		}
		pos = end + 1
	}

	if pos >= len(line) || line[pos] != '[' {
		return nil, false
	}
	tsEnd := skipUntil(line, pos, ']')
	if tsEnd == -1 || tsEnd+2 >= len(line) {
		return nil, false
	}
	pos = tsEnd + 2

	if line[pos] != '"' {
		return nil, false
	}
	pos++
	reqEnd := findClosingQuote(line, pos)
	if reqEnd == -1 {
		return nil, false
	}
	request := line[pos:reqEnd]
	pos = reqEnd + 2
	if pos >= len(line) {
		return nil, false
	}

	statusEnd := skipUntil(line, pos, ' ')
	if statusEnd == -1 {
		statusEnd = len(line)
	}
	status, err := strconv.Atoi(line[pos:statusEnd])
	if err != nil {
		return nil, false
	}
	if status < 400 || status > 499 {
		return nil, false
	}

	return &domain.Violation{
		Addr:     addr,
		Identity: request,
		Kind:     domain.KindHTTP,
		Code:     status,
	}, true
}

func skipUntil(s string, pos int, c byte) int {
	for i := pos; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}

// findClosingQuote returns the index of the first unescaped double quote at
// or after start.
func findClosingQuote(s string, start int) int {
	for i := start; i < len(s); {
		switch {
		case s[i] == '\\' && i+1 < len(s):
			i += 2
		case s[i] == '"':
			return i
		default:
			i++
		}
	}
	return -1
}
