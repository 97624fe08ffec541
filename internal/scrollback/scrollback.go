// Package scrollback holds the ordered token history of a terminal session.
package scrollback

import (
	"strings"
	"sync"

	"github.com/user/termcore/internal/parser"
)

// Log is an append-only token history. It owns its tokens: Append copies
// them in and every read hands out copies, so no caller can observe a token
// after Clear returns.
type Log struct {
	mu     sync.RWMutex
	tokens []parser.Token
	clears uint64
}

func New() *Log {
	return &Log{}
}

// Append extends the tail of the log with batch, preserving order.
func (l *Log) Append(batch parser.Batch) {
	if len(batch) == 0 {
		return
	}
	l.mu.Lock()
	l.tokens = append(l.tokens, batch...)
	l.mu.Unlock()
}

// Clear drops every token. The backing array is released rather than
// truncated so nothing that existed before the clear stays reachable.
func (l *Log) Clear() {
	l.mu.Lock()
	l.tokens = nil
	l.clears++
	l.mu.Unlock()
}

// HandleSignal is the dispatcher callback for the log. ClearScreen empties
// the log; every other signal is ignored.
func (l *Log) HandleSignal(sig parser.Signal) {
	if sig == parser.ClearScreen {
		l.Clear()
	}
}

// Len returns the number of tokens currently held.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.tokens)
}

// Clears returns how many times the log has been cleared.
func (l *Log) Clears() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.clears
}

// Tokens returns a snapshot of the log, head to tail.
func (l *Log) Tokens() []parser.Token {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.tokens) == 0 {
		return nil
	}
	out := make([]parser.Token, len(l.tokens))
	copy(out, l.tokens)
	return out
}

// Each calls fn for every token head to tail while holding the read lock.
// Iteration stops early when fn returns false. fn must not call back into
// the log's mutating methods.
func (l *Log) Each(fn func(parser.Token) bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, tok := range l.tokens {
		if !fn(tok) {
			return
		}
	}
}

// Text renders the text tokens as plain text, with control tokens skipped
// and any escape bytes left inside text removed.
func (l *Log) Text() string {
	var sb strings.Builder
	l.Each(func(tok parser.Token) bool {
		if tok.Kind == parser.KindText {
			sb.WriteString(tok.Content)
		}
		return true
	})
	return parser.StripANSI(sb.String())
}

// Tail returns the last n lines of Text. n <= 0 returns every line. A
// trailing newline ends the last line rather than starting an empty one.
func (l *Log) Tail(n int) []string {
	text := strings.TrimSuffix(l.Text(), "\n")
	if text == "" {
		return []string{}
	}
	lines := strings.Split(text, "\n")
	if n > 0 && n < len(lines) {
		lines = lines[len(lines)-n:]
	}
	return lines
}
