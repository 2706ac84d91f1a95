package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	englishquest "github.com/EmanueleMagalhaes/EnglishQuest"
)

const (
	sessionCookieName = "englishquest"
	sessionIdleLimit  = 24 * time.Hour
	sweepInterval     = time.Hour
)

// Server holds one quiz session per browser session cookie. Identity is
// bound to the cookie session too: each browser carries its own signed-in
// user, routed through its own history recorder.
type Server struct {
	app   *englishquest.App
	store *sessions.CookieStore

	mu    sync.Mutex
	games map[string]*sessionState
}

// sessionState binds one quiz machine, one history recorder, and one
// identity to a browser session.
type sessionState struct {
	game     *englishquest.Session
	recorder *englishquest.HistoryRecorder
	lastSeen time.Time

	mu   sync.Mutex
	user *englishquest.Identity
}

// CurrentUser implements englishquest.IdentityProvider for this browser
// session only.
func (st *sessionState) CurrentUser() *englishquest.Identity {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.user
}

func (st *sessionState) setUser(user *englishquest.Identity) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.user = user
}

func main() {
	cfg, err := englishquest.LoadConfig("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := englishquest.NewLogger(cfg.Logging.Debug)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	app, err := englishquest.NewApp(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize", zap.Error(err))
	}
	defer app.Close()

	server := newServer(app)
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for range ticker.C {
			server.evictIdle(sessionIdleLimit)
		}
	}()

	logger.Info("starting server", zap.String("port", cfg.Server.Port))
	if err := http.ListenAndServe(":"+cfg.Server.Port, server.routes()); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newServer(app *englishquest.App) *Server {
	return &Server{
		app:   app,
		store: sessions.NewCookieStore([]byte(app.Config.Server.SessionKey)),
		games: make(map[string]*sessionState),
	}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/quiz/begin", s.handleBegin)
	mux.HandleFunc("POST /api/quiz/select", s.handleSelect)
	mux.HandleFunc("POST /api/quiz/submit", s.handleSubmit)
	mux.HandleFunc("POST /api/quiz/advance", s.handleAdvance)
	mux.HandleFunc("POST /api/quiz/reset", s.handleReset)
	mux.HandleFunc("GET /api/quiz/state", s.handleState)
	mux.HandleFunc("POST /api/auth/signin", s.handleSignIn)
	mux.HandleFunc("POST /api/auth/signout", s.handleSignOut)
	mux.HandleFunc("GET /api/history/summary", s.handleSummary)
	return mux
}

// session returns the state bound to the request's cookie session, creating
// it on first use. A signed-in user ID stored in the cookie survives server
// restarts and idle eviction.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*sessionState, error) {
	cookie, err := s.store.Get(r, sessionCookieName)
	if err != nil {
		// A stale or tampered cookie just means a fresh session.
		cookie, _ = s.store.New(r, sessionCookieName)
	}

	sid, _ := cookie.Values["sid"].(string)
	if sid == "" {
		sid = newSessionID()
		cookie.Values["sid"] = sid
		if err := cookie.Save(r, w); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.games[sid]
	if !ok {
		state = &sessionState{}
		if uid, _ := cookie.Values["uid"].(string); uid != "" {
			name, _ := cookie.Values["uname"].(string)
			state.user = &englishquest.Identity{ID: uid, Name: name}
		}
		state.recorder = englishquest.NewHistoryRecorder(state, s.app.RemoteHistory(), s.app.Local)
		state.game = englishquest.NewSession(s.app.Source, s.app.Cache, state.recorder, s.app.Logger)
		s.games[sid] = state
	}
	state.lastSeen = time.Now()
	return state, nil
}

// evictIdle drops session state untouched for longer than maxIdle. Pending
// history writes have long since finished by then, and a still-active cookie
// gets fresh state on its next request.
func (s *Server) evictIdle(maxIdle time.Duration) {
	cutoff := time.Now().Add(-maxIdle)
	s.mu.Lock()
	defer s.mu.Unlock()
	for sid, state := range s.games {
		if state.lastSeen.Before(cutoff) {
			delete(s.games, sid)
		}
	}
}

func newSessionID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

type beginRequest struct {
	Difficulty string `json:"difficulty"`
}

func (s *Server) handleBegin(w http.ResponseWriter, r *http.Request) {
	state, err := s.session(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "session", err.Error())
		return
	}

	var req beginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	difficulty, err := englishquest.ParseDifficulty(req.Difficulty)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	if err := state.game.Begin(r.Context(), difficulty); err != nil {
		status, code := beginFailure(err)
		writeError(w, status, code, englishquest.FetchErrorMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, state.game.Snapshot())
}

// beginFailure maps the begin-quiz failure taxonomy onto HTTP.
func beginFailure(err error) (int, string) {
	switch {
	case errors.Is(err, englishquest.ErrMissingCredential):
		return http.StatusServiceUnavailable, "missing_credential"
	case errors.Is(err, englishquest.ErrCredentialBlocked):
		return http.StatusBadGateway, "credential_blocked"
	case errors.Is(err, englishquest.ErrMalformedResponse):
		return http.StatusBadGateway, "malformed_response"
	default:
		return http.StatusBadGateway, "transport"
	}
}

type selectRequest struct {
	Option string `json:"option"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	state, err := s.session(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "session", err.Error())
		return
	}

	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	state.game.Select(req.Option)
	writeJSON(w, http.StatusOK, state.game.Snapshot())
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	state, err := s.session(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "session", err.Error())
		return
	}
	state.game.Submit()
	writeJSON(w, http.StatusOK, state.game.Snapshot())
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	state, err := s.session(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "session", err.Error())
		return
	}
	state.game.Advance(r.Context())
	writeJSON(w, http.StatusOK, state.game.Snapshot())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	state, err := s.session(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "session", err.Error())
		return
	}
	state.game.Reset()
	snapshot := state.game.Snapshot()

	// A reset session holds nothing worth keeping; drop the state and let
	// the next request rebuild it from the cookie.
	if cookie, err := s.store.Get(r, sessionCookieName); err == nil {
		if sid, _ := cookie.Values["sid"].(string); sid != "" {
			s.mu.Lock()
			delete(s.games, sid)
			s.mu.Unlock()
		}
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	state, err := s.session(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "session", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state.game.Snapshot())
}

type signInRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if s.app.Identity == nil {
		writeError(w, http.StatusNotImplemented, "no_identity", "sign-in is not configured on this server")
		return
	}

	state, err := s.session(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "session", err.Error())
		return
	}

	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	identity, err := s.app.Identity.Authenticate(r.Context(), req.Name)
	if err != nil {
		writeError(w, http.StatusBadRequest, "signin_failed", err.Error())
		return
	}
	state.setUser(identity)

	if cookie, err := s.store.Get(r, sessionCookieName); err == nil {
		cookie.Values["uid"] = identity.ID
		cookie.Values["uname"] = identity.Name
		if err := cookie.Save(r, w); err != nil {
			s.app.Logger.Warn("failed to persist identity cookie", zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, identity)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	state, err := s.session(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "session", err.Error())
		return
	}
	state.setUser(nil)

	if cookie, err := s.store.Get(r, sessionCookieName); err == nil {
		delete(cookie.Values, "uid")
		delete(cookie.Values, "uname")
		if err := cookie.Save(r, w); err != nil {
			s.app.Logger.Warn("failed to clear identity cookie", zap.Error(err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	state, err := s.session(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "session", err.Error())
		return
	}

	summary, err := state.recorder.AggregateRecent(r.Context(), s.app.Config.Quiz.WindowDays)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "history", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
