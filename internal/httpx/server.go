// Package httpx serves one game session over a JSON API and pushes state
// changes to websocket subscribers. The computer's replies are scheduled
// here; the game and engine packages stay synchronous.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/hailam/chesstutor/internal/board"
	"github.com/hailam/chesstutor/internal/engine"
	"github.com/hailam/chesstutor/internal/game"
	"github.com/hailam/chesstutor/internal/storage"
)

const (
	maxJSONBodyBytes int64 = 1 << 16
	maxHints               = 20
	apiCSP                 = "default-src 'none'; frame-ancestors 'none'; base-uri 'none'"
)

// Server wires the HTTP layer to a game session.
type Server struct {
	mu       sync.Mutex // guards everything below down to srvMu
	session  *game.Session
	store    *storage.Storage
	prefs    *storage.UserPreferences
	gen      uint64
	timer    *time.Timer
	thinking bool
	started  time.Time
	recorded bool
	closed   bool

	srvMu sync.Mutex
	srv   *http.Server

	hub       *hub
	log       logr.Logger
	accessLog io.Writer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l logr.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithAccessLog writes Apache-style access logs to w.
func WithAccessLog(w io.Writer) Option {
	return func(s *Server) { s.accessLog = w }
}

// NewServer builds a Server around session. store may be nil, in which case
// preference changes and finished games are not persisted. prefs nil means
// the default preferences.
func NewServer(session *game.Session, store *storage.Storage, prefs *storage.UserPreferences, opts ...Option) *Server {
	if prefs == nil {
		prefs = storage.DefaultPreferences()
	}
	s := &Server{
		session: session,
		store:   store,
		prefs:   prefs,
		started: time.Now(),
		log:     logr.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = newHub(s.log.WithName("ws"))

	s.mu.Lock()
	s.scheduleAILocked()
	s.mu.Unlock()
	return s
}

// Listen starts the HTTP server and blocks until it is closed.
func (s *Server) Listen(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}

	s.srvMu.Lock()
	s.srv = srv
	s.srvMu.Unlock()
	defer func() {
		s.srvMu.Lock()
		s.srv = nil
		s.srvMu.Unlock()
	}()

	s.log.Info("HTTP listening", "addr", addr)
	err := srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close cancels a scheduled computer move, disconnects websocket clients
// and shuts the HTTP server down gracefully.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.cancelAILocked()
	s.mu.Unlock()

	s.hub.closeAll()

	s.srvMu.Lock()
	srv := s.srv
	s.srvMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Handler returns the routed handler with access logging and panic recovery.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", s.withJSON(s.handleState)).Methods(http.MethodGet)
	api.HandleFunc("/moves/{square}", s.withJSON(s.handleMoves)).Methods(http.MethodGet)
	api.HandleFunc("/move", s.withJSON(s.handleMove)).Methods(http.MethodPost)
	api.HandleFunc("/promotion", s.withJSON(s.handlePromotion)).Methods(http.MethodPost)
	api.HandleFunc("/hints", s.withJSON(s.handleHints)).Methods(http.MethodGet)
	api.HandleFunc("/reset", s.withJSON(s.handleReset)).Methods(http.MethodPost)
	api.HandleFunc("/difficulty", s.withJSON(s.handleDifficulty)).Methods(http.MethodPut)
	api.HandleFunc("/stats", s.withJSON(s.handleStats)).Methods(http.MethodGet)

	r.HandleFunc("/ws", s.handleWS)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	var h http.Handler = r
	if s.accessLog != nil {
		h = handlers.LoggingHandler(s.accessLog, h)
	}
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{s.log}),
		handlers.PrintRecoveryStack(false),
	)(h)
}

type recoveryLogger struct{ log logr.Logger }

func (l recoveryLogger) Println(v ...any) {
	l.log.Error(fmt.Errorf("%s", fmt.Sprint(v...)), "handler panic")
}

// ---- JSON helpers ----

func (s *Server) withJSON(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", apiCSP)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if r.Body != nil && r.Body != http.NoBody {
			r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	writeJSON(w, map[string]string{"error": msg})
}

// writeGameError maps session errors onto HTTP statuses.
func writeGameError(w http.ResponseWriter, err error) {
	var moveErr *game.MoveError
	switch {
	case errors.As(err, &moveErr):
		w.WriteHeader(http.StatusUnprocessableEntity)
		writeJSON(w, map[string]string{"error": err.Error(), "reason": moveErr.Reason.String()})
	case errors.Is(err, game.ErrNoPromotionPending):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

// decodeBody decodes an optional JSON body into v. It writes the error
// response itself and reports false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.Body == http.NoBody {
		return true
	}
	defer r.Body.Close()
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(w, http.StatusRequestEntityTooLarge, "request too large")
		return false
	}
	writeError(w, http.StatusBadRequest, "invalid json")
	return false
}

func parseSquare(s string) (board.Square, bool) {
	sq, err := board.ParseSquare(strings.ToLower(strings.TrimSpace(s)))
	return sq, err == nil
}

// parsePromotionPiece accepts a letter ("q") or a name ("queen").
func parsePromotionPiece(s string) (board.PieceType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return board.NoPieceType, false
	}
	if s == "knight" {
		s = "n"
	}
	pt := board.PieceTypeFromChar(s[0])
	if len(s) > 1 && !strings.EqualFold(s, pt.String()) {
		return board.NoPieceType, false
	}
	return pt, pt.IsPromotionTarget()
}

// ---- state ----

// viewLocked renders the current state. s.mu must be held.
func (s *Server) viewLocked() stateView {
	return newStateView(s.session.Snapshot(), s.session.SANHistory(), s.prefs.Color(), s.prefs.Difficulty, s.thinking)
}

// afterChangeLocked records a finished game, schedules the computer's reply
// if it is due and pushes the new state. s.mu must be held.
func (s *Server) afterChangeLocked() stateView {
	s.recordIfFinishedLocked()
	s.scheduleAILocked()
	view := s.viewLocked()
	s.hub.broadcast(view)
	return view
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	view := s.viewLocked()
	s.mu.Unlock()
	writeJSON(w, map[string]any{"state": view})
}

func (s *Server) handleMoves(w http.ResponseWriter, r *http.Request) {
	sq, ok := parseSquare(mux.Vars(r)["square"])
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid square")
		return
	}
	s.mu.Lock()
	legal := s.session.LegalMoves(sq)
	s.mu.Unlock()

	moves := make([]moveView, 0, len(legal))
	for _, m := range legal {
		moves = append(moves, newMoveView(m))
	}
	writeJSON(w, map[string]any{"square": sq.String(), "moves": moves})
}

// ---- moves ----

type moveBody struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion"`
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var body moveBody
	if !decodeBody(w, r, &body) {
		return
	}
	from, ok := parseSquare(body.From)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid from square")
		return
	}
	to, ok := parseSquare(body.To)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid to square")
		return
	}
	promo := board.NoPieceType
	if body.Promotion != "" {
		if promo, ok = parsePromotionPiece(body.Promotion); !ok {
			writeError(w, http.StatusBadRequest, "invalid promotion choice")
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.State() == game.AwaitingMove && s.session.SideToMove() != s.prefs.Color() {
		writeError(w, http.StatusConflict, "waiting for the computer to move")
		return
	}
	to = castlingTarget(s.session.Position(), s.session.LegalMoves(from), from, to)
	res, err := s.session.Apply(board.NewMove(from, to))
	if err != nil {
		writeGameError(w, err)
		return
	}
	if res.PromotionPending != nil && promo != board.NoPieceType {
		if _, err := s.session.CompletePromotion(promo); err != nil {
			writeGameError(w, err)
			return
		}
	}
	writeJSON(w, map[string]any{"state": s.afterChangeLocked()})
}

// castlingTarget lets a king dropped onto its own rook castle toward that
// rook, returning the king's castling destination. Any other target is
// returned unchanged.
func castlingTarget(pos *board.Position, legal board.MoveList, from, to board.Square) board.Square {
	king := pos.PieceAt(from)
	if king.Type() != board.King || pos.PieceAt(to) != board.NewPiece(board.Rook, king.Color()) {
		return to
	}
	for _, m := range legal {
		if !m.IsCastling() {
			continue
		}
		kingSide := m.Flag == board.FlagCastleKingside
		if (kingSide && to.Col() == 7) || (!kingSide && to.Col() == 0) {
			return m.To
		}
	}
	return to
}

type promotionBody struct {
	Piece string `json:"piece"`
}

func (s *Server) handlePromotion(w http.ResponseWriter, r *http.Request) {
	var body promotionBody
	if !decodeBody(w, r, &body) {
		return
	}
	pt, ok := parsePromotionPiece(body.Piece)
	if !ok {
		writeGameError(w, game.ErrInvalidPromotion)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.session.CompletePromotion(pt); err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, map[string]any{"state": s.afterChangeLocked()})
}

// ---- hints ----

func (s *Server) handleHints(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.prefs.HintCount
	if q := r.URL.Query().Get("n"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, "invalid hint count")
			return
		}
		n = v
	}
	n = min(n, maxHints)

	color := s.prefs.Color()
	if s.session.State() == game.AwaitingMove && s.session.SideToMove() != color {
		writeError(w, http.StatusConflict, "hints are only available on your turn")
		return
	}
	pos := s.session.Position()
	ranked := s.session.RankHints(color, n)
	hints := make([]hintView, 0, len(ranked))
	for _, sm := range ranked {
		hints = append(hints, hintView{
			moveView: newMoveView(sm.Move),
			SAN:      sm.Move.ToSAN(pos),
			Score:    sm.Score,
		})
	}
	writeJSON(w, map[string]any{"color": colorName(color), "hints": hints})
}

// ---- game control ----

type resetBody struct {
	HumanColor string `json:"humanColor"`
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var body resetBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.HumanColor != "" {
		if _, ok := board.ParseColor(strings.TrimSpace(body.HumanColor)); !ok {
			writeError(w, http.StatusBadRequest, "invalid color")
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if body.HumanColor != "" {
		s.prefs.HumanColor = strings.ToLower(strings.TrimSpace(body.HumanColor))
		s.savePreferencesLocked()
	}
	s.cancelAILocked()
	s.session.Reset()
	s.started = time.Now()
	s.recorded = false
	s.log.Info("new game", "human", colorName(s.prefs.Color()), "difficulty", s.prefs.Difficulty.String())
	writeJSON(w, map[string]any{"state": s.afterChangeLocked()})
}

type difficultyBody struct {
	Difficulty engine.Difficulty `json:"difficulty"`
}

func (s *Server) handleDifficulty(w http.ResponseWriter, r *http.Request) {
	body := difficultyBody{Difficulty: -1}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Difficulty < engine.Beginner || body.Difficulty > engine.Hard {
		writeError(w, http.StatusBadRequest, "missing difficulty")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs.Difficulty = body.Difficulty
	s.savePreferencesLocked()
	s.log.Info("difficulty changed", "difficulty", body.Difficulty.String())
	view := s.viewLocked()
	s.hub.broadcast(view)
	writeJSON(w, map[string]any{"state": view})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "statistics are not persisted")
		return
	}
	stats, err := s.store.LoadStats()
	if err != nil {
		s.log.Error(err, "load stats")
		writeError(w, http.StatusInternalServerError, "could not load statistics")
		return
	}
	writeJSON(w, map[string]any{"stats": stats, "winRate": stats.GetWinRate()})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	s.hub.serve(w, r, &s.mu, func() any { return s.viewLocked() })
}

func (s *Server) savePreferencesLocked() {
	if s.store == nil {
		return
	}
	if err := s.store.SavePreferences(s.prefs); err != nil {
		s.log.Error(err, "save preferences")
	}
}

// recordIfFinishedLocked stores the result of a finished game once.
func (s *Server) recordIfFinishedLocked() {
	if s.recorded || s.session.State() != game.Finished {
		return
	}
	s.recorded = true
	if s.store == nil {
		return
	}
	res := s.session.Result()
	stats, err := s.store.RecordGame(storage.GameResult{
		Won:        res.Status == board.Checkmate && res.Winner == s.prefs.Color(),
		Draw:       res.Status == board.Stalemate,
		Difficulty: s.prefs.Difficulty,
		Plies:      len(s.session.History()),
		Duration:   time.Since(s.started),
	})
	if err != nil {
		s.log.Error(err, "record game")
		return
	}
	s.log.Info("game recorded", "result", res.String(), "played", stats.GamesPlayed, "wins", stats.Wins)
}
