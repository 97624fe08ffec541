package hub

import "github.com/user/termcore/internal/parser"

const (
	TypeBatch  = "batch"
	TypeClear  = "clear"
	TypeError  = "error"
	TypeInput  = "input"
	TypeKey    = "key"
	TypeResize = "resize"
)

type BatchMessage struct {
	Type   string         `json:"type"`
	Tokens []parser.Token `json:"tokens"`
}

type ClearMessage struct {
	Type string `json:"type"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ClientMessage struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
	Key  string `json:"key,omitempty"`
	Cols int    `json:"cols,omitempty"`
	Rows int    `json:"rows,omitempty"`
}
