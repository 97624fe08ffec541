package parser

import "strings"

// Dispatch classifies the content of a control token against the signal
// table. When the content is a recognized sequence cb is called with its
// signal, on the caller's goroutine, and that signal is returned. Content
// without a CSI prefix, or a CSI sequence missing from the table, yields
// NoHandle and cb is not called. cb may be nil.
func Dispatch(tok Token, cb func(Signal)) Signal {
	if !strings.Contains(tok.Content, csiPrefix) {
		return NoHandle
	}
	return dispatchCSI(tok.Content, cb)
}

func dispatchCSI(seq string, cb func(Signal)) Signal {
	for _, entry := range signalTable {
		if !entry.match(seq) {
			continue
		}
		if cb != nil {
			cb(entry.signal)
		}
		return entry.signal
	}
	return NoHandle
}
