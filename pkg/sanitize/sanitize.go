// Package sanitize strips terminal control sequences from untrusted log
// lines before they are echoed to a diagnostic stream. Log content is
// attacker-controlled; an unfiltered escape sequence can rewrite the
// operator's terminal.
package sanitize

import "strings"

// Line returns s with control bytes neutralized. Tabs become spaces, an ESC
// (with any trailing CSI sequence) collapses to "[ESC]", other control bytes
// become "[CTRL]". Clean input is returned unchanged without allocating.
func Line(s string) string {
	clean := true
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] == 0x7F {
			clean = false
			break
		}
	}
	if clean {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == 0x1B:
			if i+1 < len(s) && s[i+1] == '[' {
				i++
				for i+1 < len(s) && !isCSITerminator(s[i+1]) {
					i++
				}
				if i+1 < len(s) {
					i++
				}
			}
			b.WriteString("[ESC]")
		case c == '\t':
			b.WriteByte(' ')
		case c < 0x20 || c == 0x7F:
			b.WriteString("[CTRL]")
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isCSITerminator(c byte) bool {
	return c >= 0x40 && c <= 0x7E
}
