package parser

import (
	"fmt"
	"strings"
)

// Kind distinguishes literal output from a recognized control sequence.
type Kind int

const (
	KindText Kind = iota
	KindControl
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindControl:
		return "control"
	default:
		return "unknown"
	}
}

// MarshalText lets tokens travel as {"kind":"text"} in JSON payloads.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func ParseKind(s string) (Kind, error) {
	switch s {
	case "text":
		return KindText, nil
	case "control":
		return KindControl, nil
	default:
		return KindText, fmt.Errorf("unknown token kind %q", s)
	}
}

type Token struct {
	Kind    Kind   `json:"kind"`
	Content string `json:"content"`
}

func Text(s string) Token    { return Token{Kind: KindText, Content: s} }
func Control(s string) Token { return Token{Kind: KindControl, Content: s} }

// Batch is the ordered token sequence produced from one read.
type Batch []Token

// String concatenates the token contents, reproducing the chunk the batch
// was produced from.
func (b Batch) String() string {
	var sb strings.Builder
	for _, tok := range b {
		sb.WriteString(tok.Content)
	}
	return sb.String()
}

// Clone returns a copy that shares no backing array with b.
func (b Batch) Clone() Batch {
	if b == nil {
		return nil
	}
	out := make(Batch, len(b))
	copy(out, b)
	return out
}

// Signal is the code a recognized control sequence maps to.
type Signal int

const (
	NoHandle    Signal = -1
	ClearScreen Signal = 0
)

func (s Signal) String() string {
	switch s {
	case NoHandle:
		return "no-handle"
	case ClearScreen:
		return "clear-screen"
	default:
		return "signal"
	}
}
