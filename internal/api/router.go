// Package api exposes the live session and the transcript archive over a
// small JSON HTTP interface.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/user/termcore/internal/db"
	"github.com/user/termcore/internal/scrollback"
)

// shell is the live session as the API sees it, normally a *pty.Session.
type shell interface {
	Send(data []byte) error
	Resize(cols, rows uint16) error
	ID() string
	SlavePath() string
	Pid() int
	Running() bool
}

type handler struct {
	shell          shell
	log            *scrollback.Log
	sessionRepo    *db.SessionRepo
	transcriptRepo *db.TranscriptRepo
}

// NewRouter builds the /api/ handler. archive may be nil, in which case the
// archive endpoints answer 404.
func NewRouter(sh shell, log *scrollback.Log, archive *db.DB, token string) http.Handler {
	h := &handler{
		shell: sh,
		log:   log,
	}
	if archive != nil {
		h.sessionRepo = db.NewSessionRepo(archive)
		h.transcriptRepo = db.NewTranscriptRepo(archive)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/session", h.getSession)
	mux.HandleFunc("GET /api/scrollback", h.getScrollback)
	mux.HandleFunc("POST /api/input", h.postInput)
	mux.HandleFunc("POST /api/resize", h.postResize)

	mux.HandleFunc("GET /api/sessions", h.listSessions)
	mux.HandleFunc("GET /api/sessions/{id}", h.getArchivedSession)
	mux.HandleFunc("GET /api/sessions/{id}/transcript", h.getTranscript)

	return authMiddleware(token)(corsMiddleware(mux))
}

func authMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
			if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") && tokenMatches(strings.TrimSpace(authHeader[7:]), token) {
				next.ServeHTTP(w, r)
				return
			}
			if tokenMatches(r.URL.Query().Get("token"), token) {
				next.ServeHTTP(w, r)
				return
			}

			jsonError(w, http.StatusUnauthorized, "unauthorized")
		})
	}
}

func tokenMatches(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
