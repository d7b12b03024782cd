// Package errbuf implements the caller-supplied error buffer spec.md uses
// throughout the SysQL pipeline (§4.4, §4.5, §4.7): the parser, analyzer,
// and evaluator all collect human-readable, one-line messages into a
// buffer owned by the caller rather than returning a Go error chain, so a
// single Connection can accumulate every diagnostic from a multi-stage
// pipeline and report just the first (or all) of them back over the wire.
package errbuf

import (
	"fmt"
	"strings"
)

// Buffer accumulates diagnostic messages. The zero value is ready to use.
type Buffer struct {
	msgs []string
}

// Addf appends a formatted one-line message.
func (b *Buffer) Addf(format string, args ...any) {
	b.msgs = append(b.msgs, fmt.Sprintf(format, args...))
}

// Add appends msg verbatim.
func (b *Buffer) Add(msg string) {
	b.msgs = append(b.msgs, msg)
}

// Empty reports whether no messages have been recorded.
func (b *Buffer) Empty() bool { return len(b.msgs) == 0 }

// Messages returns every recorded message in the order added.
func (b *Buffer) Messages() []string { return b.msgs }

// First returns the first recorded message, or "" if the buffer is
// empty.
func (b *Buffer) First() string {
	if len(b.msgs) == 0 {
		return ""
	}
	return b.msgs[0]
}

// String joins every message with "; ". internal/conn sends this
// joined text as the body of a wire ERROR reply.
func (b *Buffer) String() string { return strings.Join(b.msgs, "; ") }
