package parser

// signalEntry maps a control sequence to the signal it raises. Entries are
// checked in order; the first match wins.
type signalEntry struct {
	name   string
	match  func(seq string) bool
	signal Signal
}

func exact(seq string) func(string) bool {
	return func(s string) bool { return s == seq }
}

var signalTable = []signalEntry{
	{name: "erase-display", match: exact("\x1b[2J"), signal: ClearScreen},
}
