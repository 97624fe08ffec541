package api

import (
	"net/http"
	"strconv"
)

func (h *handler) archiveEnabled(w http.ResponseWriter) bool {
	if h.sessionRepo == nil {
		jsonError(w, http.StatusNotFound, "transcript archive disabled")
		return false
	}
	return true
}

func (h *handler) listSessions(w http.ResponseWriter, r *http.Request) {
	if !h.archiveEnabled(w) {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			jsonError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	sessions, err := h.sessionRepo.List(r.Context(), limit)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, sessions)
}

func (h *handler) getArchivedSession(w http.ResponseWriter, r *http.Request) {
	if !h.archiveEnabled(w) {
		return
	}
	session, err := h.sessionRepo.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if session == nil {
		jsonError(w, http.StatusNotFound, "session not found")
		return
	}
	jsonResponse(w, http.StatusOK, session)
}

// getTranscript returns the recorded events, or with ?replay=true the
// tokens left after the last clear.
func (h *handler) getTranscript(w http.ResponseWriter, r *http.Request) {
	if !h.archiveEnabled(w) {
		return
	}
	id := r.PathValue("id")
	replay, _ := strconv.ParseBool(r.URL.Query().Get("replay"))
	if replay {
		tokens, err := h.transcriptRepo.Replay(r.Context(), id)
		if err != nil {
			jsonError(w, http.StatusInternalServerError, err.Error())
			return
		}
		jsonResponse(w, http.StatusOK, scrollbackResponse{Tokens: tokens})
		return
	}
	events, err := h.transcriptRepo.List(r.Context(), id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, events)
}
