package api

import (
	"net/http"
	"strconv"

	"github.com/user/termcore/internal/parser"
	"github.com/user/termcore/internal/pty"
)

type sessionResponse struct {
	ID        string `json:"id"`
	SlavePath string `json:"slave_path"`
	Pid       int    `json:"pid"`
	Running   bool   `json:"running"`
	Tokens    int    `json:"tokens"`
	Clears    uint64 `json:"clears"`
}

type scrollbackResponse struct {
	Tokens []parser.Token `json:"tokens,omitempty"`
	Text   string         `json:"text,omitempty"`
	Lines  []string       `json:"lines,omitempty"`
}

// inputRequest carries raw text, a named key, or both; text is sent first.
type inputRequest struct {
	Text string `json:"text"`
	Key  string `json:"key"`
}

type resizeRequest struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

func (h *handler) getSession(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, sessionResponse{
		ID:        h.shell.ID(),
		SlavePath: h.shell.SlavePath(),
		Pid:       h.shell.Pid(),
		Running:   h.shell.Running(),
		Tokens:    h.log.Len(),
		Clears:    h.log.Clears(),
	})
}

// getScrollback returns the log as tokens, or as plain text with
// ?format=text. ?tail=N limits text output to the last N lines.
func (h *handler) getScrollback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	switch query.Get("format") {
	case "", "tokens":
		jsonResponse(w, http.StatusOK, scrollbackResponse{Tokens: h.log.Tokens()})
	case "text":
		if raw := query.Get("tail"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				jsonError(w, http.StatusBadRequest, "tail must be a positive integer")
				return
			}
			jsonResponse(w, http.StatusOK, scrollbackResponse{Lines: h.log.Tail(n)})
			return
		}
		jsonResponse(w, http.StatusOK, scrollbackResponse{Text: h.log.Text()})
	default:
		jsonError(w, http.StatusBadRequest, "format must be tokens or text")
	}
}

func (h *handler) postInput(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Text == "" && req.Key == "" {
		jsonError(w, http.StatusBadRequest, "text or key is required")
		return
	}

	if req.Text != "" {
		if err := h.shell.Send([]byte(req.Text)); err != nil {
			jsonError(w, http.StatusConflict, err.Error())
			return
		}
	}
	if req.Key != "" {
		if err := h.shell.Send([]byte(pty.KeyBytes(req.Key))); err != nil {
			jsonError(w, http.StatusConflict, err.Error())
			return
		}
	}
	jsonResponse(w, http.StatusNoContent, nil)
}

func (h *handler) postResize(w http.ResponseWriter, r *http.Request) {
	var req resizeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Cols < 1 || req.Rows < 1 || req.Cols > 0xffff || req.Rows > 0xffff {
		jsonError(w, http.StatusBadRequest, "invalid window size")
		return
	}
	if err := h.shell.Resize(uint16(req.Cols), uint16(req.Rows)); err != nil {
		jsonError(w, http.StatusConflict, err.Error())
		return
	}
	jsonResponse(w, http.StatusNoContent, nil)
}
