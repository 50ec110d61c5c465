package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Ernxxxx/English-word-sub001/internal/domain"
	"github.com/Ernxxxx/English-word-sub001/internal/session"
	"github.com/Ernxxxx/English-word-sub001/internal/srs"
	"github.com/Ernxxxx/English-word-sub001/internal/stats"
	"github.com/Ernxxxx/English-word-sub001/internal/storage"
)

// Server exposes the study flow as a JSON API: build or resume a session,
// reveal, evaluate, and read aggregated statistics. It is the controller
// layer; all scheduling decisions live in the session and srs packages.
type Server struct {
	db           *storage.DB
	agg          *stats.Aggregator
	router       *http.ServeMux
	sessionLimit int

	mu       sync.Mutex
	sessions map[string]*session.Engine
}

// NewServer creates and configures a new server.
func NewServer(db *storage.DB, agg *stats.Aggregator, sessionLimit int) *Server {
	s := &Server{
		db:           db,
		agg:          agg,
		router:       http.NewServeMux(),
		sessionLimit: sessionLimit,
		sessions:     make(map[string]*session.Engine),
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.HandleFunc("/api/health", s.handleHealth)
	s.router.HandleFunc("/api/sessions", s.handleStartSession)
	s.router.HandleFunc("/api/sessions/", s.handleSessionActions)
	s.router.HandleFunc("/api/stats", s.handleStats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStartSession resumes the most recent unfinished session for the
// requested deck, or builds a fresh one from the due cards. An unfinished
// snapshot with no recorded progress is replaced, not resumed.
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req struct {
		Deck     string `json:"deck"`
		Limit    int    `json:"limit"`
		Reversed bool   `json:"reversed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Limit <= 0 {
		req.Limit = s.sessionLimit
	}

	var deckID int64
	if req.Deck != "" {
		deck, err := s.db.FindDeckByName(req.Deck)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if deck == nil {
			writeError(w, http.StatusNotFound, "deck not found")
			return
		}
		deckID = deck.ID
	}

	eng, resumed, err := session.Open(s.db, deckID, req.Limit, req.Reversed, time.Now())
	if err != nil {
		if errors.Is(err, session.ErrNoCards) {
			writeError(w, http.StatusConflict, "no cards are due for study")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.mu.Lock()
	s.sessions[eng.ID()] = eng
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{
		"session": sessionState(eng),
		"resumed": resumed,
	})
}

// handleSessionActions dispatches /api/sessions/{id} and its sub-paths.
func (s *Server) handleSessionActions(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	s.mu.Lock()
	eng, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"session": sessionState(eng)})
	case "card":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		s.handleCurrentCard(w, eng)
	case "reveal":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		eng.Reveal()
		s.handleCurrentCard(w, eng)
	case "evaluate":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		s.handleEvaluate(w, r, eng)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleCurrentCard(w http.ResponseWriter, eng *session.Engine) {
	card := eng.Current()
	if card == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"card":    nil,
			"session": sessionState(eng),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"card":    cardView(card, eng.Reversed(), eng.Revealed()),
		"session": sessionState(eng),
	})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request, eng *session.Engine) {
	var req struct {
		Outcome string `json:"outcome"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	outcome, ok := parseOutcome(req.Outcome)
	if !ok {
		writeError(w, http.StatusBadRequest, "outcome must be one of: again, later, known")
		return
	}

	now := time.Now()
	if err := eng.Evaluate(r.Context(), outcome, now); err != nil {
		// The engine did not advance; the client may retry the same
		// evaluation.
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	if !eng.Completed() {
		s.handleCurrentCard(w, eng)
		return
	}

	summary := eng.Summary()
	stat, err := s.agg.OnSessionCompleted(summary.CompletedAt, summary.Total)
	if err != nil {
		slog.Error("failed to record daily stats", "session", eng.ID(), "error", err)
	}

	s.mu.Lock()
	delete(s.sessions, eng.ID())
	s.mu.Unlock()

	resp := map[string]any{
		"session": sessionState(eng),
		"summary": map[string]any{
			"total":       summary.Total,
			"known":       summary.Known,
			"again":       summary.Again,
			"later":       summary.Later,
			"startedAt":   summary.StartedAt,
			"completedAt": summary.CompletedAt,
		},
	}
	if stat != nil {
		resp["today"] = map[string]any{
			"studied": stat.StudiedCount,
			"streak":  stat.Streak,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleStats serves aggregated reads: today's count, the current streak,
// the mastery distribution and recent history. All values come from
// committed rows, so any number of observers can poll while a session is
// being studied.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	now := time.Now()
	today, err := s.agg.TodayCount(now)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	streak, err := s.agg.CurrentStreak(now)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	dist, err := s.db.MasteryDistribution()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	recent, err := s.db.RecentDailyStats(30)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	levels := make([]int, srs.MaxLevel+1)
	for level, count := range dist {
		if level >= 0 && level <= srs.MaxLevel {
			levels[level] = count
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"todayStudied": today,
		"streak":       streak,
		"mastery":      levels,
		"recentDays":   recent,
	})
}

func sessionState(eng *session.Engine) map[string]any {
	known, again, later := eng.Counts()
	return map[string]any{
		"id":        eng.ID(),
		"revealed":  eng.Revealed(),
		"completed": eng.Completed(),
		"progress":  eng.Progress(),
		"lastCard":  eng.IsLastCard(),
		"known":     known,
		"again":     again,
		"later":     later,
	}
}

// cardView shows only the question side until the card is revealed. The
// reversed flag swaps which side is the question.
func cardView(card *domain.Card, reversed, revealed bool) map[string]any {
	front, back := card.Word, card.Translation
	if reversed {
		front, back = back, front
	}
	view := map[string]any{
		"id":    card.ID,
		"front": front,
		"level": card.MasteryLevel,
	}
	if revealed {
		view["back"] = back
		view["example"] = card.Example
	}
	return view
}

func parseOutcome(s string) (srs.Outcome, bool) {
	switch strings.ToLower(s) {
	case "again":
		return srs.Again, true
	case "later":
		return srs.Later, true
	case "known":
		return srs.Known, true
	}
	return 0, false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
