package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hailam/chesstutor/internal/board"
	"github.com/hailam/chesstutor/internal/engine"
	"github.com/hailam/chesstutor/internal/game"
	"github.com/hailam/chesstutor/internal/storage"
)

type testEnv struct {
	srv   *Server
	ts    *httptest.Server
	store *storage.Storage
}

// newTestEnv starts a server over an in-memory store. fen may be empty for
// the initial position.
func newTestEnv(t *testing.T, fen string, prefs *storage.UserPreferences) *testEnv {
	t.Helper()

	eng, err := engine.NewEngine(engine.Config{
		HintDepth:        1,
		HintCacheEntries: 16,
		Rand:             rand.New(rand.NewPCG(3, 5)),
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(eng.Close)

	store, err := storage.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	var opts []game.Option
	if fen != "" {
		pos, err := board.ParseFEN(fen)
		if err != nil {
			t.Fatalf("ParseFEN(%q): %v", fen, err)
		}
		opts = append(opts, game.WithPosition(pos))
	}
	if prefs == nil {
		prefs = storage.DefaultPreferences()
	}

	srv := NewServer(game.NewSession(eng, opts...), store, prefs)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Close(ctx)
	})
	return &testEnv{srv: srv, ts: ts, store: store}
}

func prefsWith(human string, delay time.Duration) *storage.UserPreferences {
	p := storage.DefaultPreferences()
	p.HumanColor = human
	p.AIDelayMs = int(delay / time.Millisecond)
	return p
}

// do sends a request and returns the status and raw body.
func (e *testEnv) do(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, rd)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, data
}

// state sends a request that must succeed and decodes the returned state.
func (e *testEnv) state(t *testing.T, method, path, body string) stateView {
	t.Helper()
	code, data := e.do(t, method, path, body)
	if code != http.StatusOK {
		t.Fatalf("%s %s: status %d, body %s", method, path, code, data)
	}
	var payload struct {
		State stateView `json:"state"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return payload.State
}

func (e *testEnv) waitFor(t *testing.T, what string, cond func(stateView) bool) stateView {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		st := e.state(t, http.MethodGet, "/api/state", "")
		if cond(st) {
			return st
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s; last state %+v", what, st)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStateAndHealth(t *testing.T) {
	env := newTestEnv(t, "", prefsWith("white", time.Hour))

	code, body := env.do(t, http.MethodGet, "/healthz", "")
	if code != http.StatusOK || string(body) != "ok" {
		t.Fatalf("healthz: %d %q", code, body)
	}

	st := env.state(t, http.MethodGet, "/api/state", "")
	t.Logf("FEN %s", st.FEN)
	if st.FEN != board.StartFEN {
		t.Errorf("FEN = %q, want %q", st.FEN, board.StartFEN)
	}
	if st.Turn != "white" || st.State != "awaiting_move" || st.HumanColor != "white" {
		t.Errorf("unexpected state header: %+v", st)
	}
	if st.Board[0][4] != "k" || st.Board[7][4] != "K" || st.Board[4][4] != "" {
		t.Errorf("board rows are not rank 8 first: %v", st.Board)
	}
	if st.History == nil || len(st.History) != 0 {
		t.Errorf("history = %v, want empty list", st.History)
	}
	if st.LastMove != nil {
		t.Errorf("last move = %+v, want none", st.LastMove)
	}

	code, _ = env.do(t, http.MethodPost, "/api/state", "")
	if code != http.StatusMethodNotAllowed {
		t.Errorf("POST /api/state: status %d, want 405", code)
	}
}

func TestMovesEndpoint(t *testing.T) {
	env := newTestEnv(t, "", prefsWith("white", time.Hour))

	code, data := env.do(t, http.MethodGet, "/api/moves/e2", "")
	if code != http.StatusOK {
		t.Fatalf("status %d: %s", code, data)
	}
	var payload struct {
		Square string     `json:"square"`
		Moves  []moveView `json:"moves"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatal(err)
	}
	t.Logf("e2 moves: %+v", payload.Moves)
	if payload.Square != "e2" || len(payload.Moves) != 2 {
		t.Fatalf("got %+v, want two moves from e2", payload)
	}

	code, _ = env.do(t, http.MethodGet, "/api/moves/z9", "")
	if code != http.StatusBadRequest {
		t.Errorf("invalid square: status %d, want 400", code)
	}
}

func TestHumanMoveTriggersComputerReply(t *testing.T) {
	env := newTestEnv(t, "", prefsWith("white", 0))

	st := env.state(t, http.MethodPost, "/api/move", `{"from":"e2","to":"e4"}`)
	if len(st.History) == 0 || st.History[0] != "e4" {
		t.Fatalf("history = %v, want e4 first", st.History)
	}
	if st.LastMove == nil || st.LastMove.UCI != "e2e4" {
		t.Errorf("last move = %+v", st.LastMove)
	}

	st = env.waitFor(t, "computer reply", func(s stateView) bool {
		return len(s.History) == 2 && !s.Thinking
	})
	t.Logf("computer replied %s", st.History[1])
	if st.Turn != "white" {
		t.Errorf("turn = %s after the reply, want white", st.Turn)
	}
}

func TestRejectedMoves(t *testing.T) {
	env := newTestEnv(t, "", prefsWith("white", time.Hour))

	tests := []struct {
		name   string
		body   string
		status int
		reason string
	}{
		{"bad json", `{"from":`, http.StatusBadRequest, ""},
		{"bad from", `{"from":"x1","to":"e4"}`, http.StatusBadRequest, ""},
		{"bad promotion", `{"from":"e2","to":"e4","promotion":"king"}`, http.StatusBadRequest, ""},
		{"pawn too far", `{"from":"e2","to":"e5"}`, http.StatusUnprocessableEntity, game.ReasonInvalidPieceMovement.String()},
		{"empty square", `{"from":"e4","to":"e5"}`, http.StatusUnprocessableEntity, game.ReasonNoPiece.String()},
		{"black piece", `{"from":"e7","to":"e5"}`, http.StatusUnprocessableEntity, game.ReasonNotYourTurn.String()},
		{"own piece", `{"from":"a1","to":"a2"}`, http.StatusUnprocessableEntity, game.ReasonBlockedByOwnPiece.String()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, data := env.do(t, http.MethodPost, "/api/move", tt.body)
			t.Logf("%d %s", code, bytes.TrimSpace(data))
			if code != tt.status {
				t.Fatalf("status %d, want %d", code, tt.status)
			}
			if tt.reason != "" {
				var payload map[string]string
				if err := json.Unmarshal(data, &payload); err != nil {
					t.Fatal(err)
				}
				if payload["reason"] != tt.reason {
					t.Errorf("reason %q, want %q", payload["reason"], tt.reason)
				}
			}
		})
	}

	st := env.state(t, http.MethodGet, "/api/state", "")
	if st.FEN != board.StartFEN {
		t.Errorf("rejected moves changed the position: %s", st.FEN)
	}
}

func TestMoveDuringComputerTurn(t *testing.T) {
	env := newTestEnv(t, "", prefsWith("white", time.Hour))

	st := env.state(t, http.MethodPost, "/api/move", `{"from":"e2","to":"e4"}`)
	if !st.Thinking {
		t.Fatalf("computer reply not scheduled: %+v", st)
	}
	code, _ := env.do(t, http.MethodPost, "/api/move", `{"from":"e7","to":"e5"}`)
	if code != http.StatusConflict {
		t.Errorf("status %d, want 409 while the computer is to move", code)
	}

	st = env.state(t, http.MethodPost, "/api/reset", "")
	if st.Thinking || len(st.History) != 0 || st.Turn != "white" {
		t.Errorf("reset did not cancel the pending reply: %+v", st)
	}
}

func TestPromotion(t *testing.T) {
	const fen = "8/P6k/8/8/8/8/8/K7 w - - 0 1"

	t.Run("two steps", func(t *testing.T) {
		env := newTestEnv(t, fen, prefsWith("white", time.Hour))

		code, _ := env.do(t, http.MethodPost, "/api/promotion", `{"piece":"q"}`)
		if code != http.StatusConflict {
			t.Errorf("promotion with nothing pending: status %d, want 409", code)
		}

		st := env.state(t, http.MethodPost, "/api/move", `{"from":"a7","to":"a8"}`)
		if st.State != "awaiting_promotion" || st.Promotion == nil || st.Promotion.Square != "a8" {
			t.Fatalf("promotion not pending: %+v", st)
		}
		if st.Thinking {
			t.Error("computer scheduled while a promotion is pending")
		}

		code, _ = env.do(t, http.MethodPost, "/api/promotion", `{"piece":"king"}`)
		if code != http.StatusBadRequest {
			t.Errorf("promotion to king: status %d, want 400", code)
		}
		code, _ = env.do(t, http.MethodPost, "/api/move", `{"from":"h7","to":"h6"}`)
		if code != http.StatusUnprocessableEntity {
			t.Errorf("move while promotion pending: status %d, want 422", code)
		}

		st = env.state(t, http.MethodPost, "/api/promotion", `{"piece":"queen"}`)
		t.Logf("history %v", st.History)
		if st.Board[0][0] != "Q" || st.History[0] != "a8=Q" || st.Turn != "black" {
			t.Errorf("unexpected state after promotion: %+v", st)
		}
	})

	t.Run("one step", func(t *testing.T) {
		env := newTestEnv(t, fen, prefsWith("white", time.Hour))
		st := env.state(t, http.MethodPost, "/api/move", `{"from":"a7","to":"a8","promotion":"n"}`)
		if st.Board[0][0] != "N" || st.History[0] != "a8=N" {
			t.Errorf("unexpected state: %+v", st)
		}
	})
}

func TestKingOntoOwnRookCastles(t *testing.T) {
	const fen = "r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1"

	tests := []struct {
		name string
		body string
		san  string
		king int // column of the king afterwards
		rook int // column of the castled rook
	}{
		{"kingside", `{"from":"e1","to":"h1"}`, "O-O", 6, 5},
		{"queenside", `{"from":"e1","to":"a1"}`, "O-O-O", 2, 3},
		{"king destination", `{"from":"e1","to":"g1"}`, "O-O", 6, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, fen, prefsWith("white", time.Hour))
			st := env.state(t, http.MethodPost, "/api/move", tt.body)
			t.Logf("history %v", st.History)
			if len(st.History) != 1 || st.History[0] != tt.san {
				t.Fatalf("history = %v, want [%s]", st.History, tt.san)
			}
			if st.Board[7][tt.king] != "K" || st.Board[7][tt.rook] != "R" {
				t.Errorf("back rank after castling: %v", st.Board[7])
			}
		})
	}

	t.Run("rook not reachable", func(t *testing.T) {
		env := newTestEnv(t, "r3k2r/8/8/8/8/8/8/R3KB1R w KQkq - 0 1", prefsWith("white", time.Hour))
		code, _ := env.do(t, http.MethodPost, "/api/move", `{"from":"e1","to":"h1"}`)
		if code != http.StatusUnprocessableEntity {
			t.Errorf("status %d, want 422 with the kingside path blocked", code)
		}
	})
}

func TestHintsOnlyOnHumanTurn(t *testing.T) {
	env := newTestEnv(t, "", prefsWith("white", time.Hour))

	env.state(t, http.MethodPost, "/api/move", `{"from":"e2","to":"e4"}`)
	code, data := env.do(t, http.MethodGet, "/api/hints", "")
	t.Logf("%d %s", code, bytes.TrimSpace(data))
	if code != http.StatusConflict {
		t.Errorf("hints during the computer's turn: status %d, want 409", code)
	}
}

func TestComputerOpensAsWhite(t *testing.T) {
	env := newTestEnv(t, "", prefsWith("black", 0))

	st := env.waitFor(t, "computer opening", func(s stateView) bool {
		return len(s.History) == 1
	})
	t.Logf("computer opened %s", st.History[0])
	if st.Turn != "black" || st.HumanColor != "black" {
		t.Errorf("unexpected state: %+v", st)
	}
}

func TestResetWithColor(t *testing.T) {
	env := newTestEnv(t, "", prefsWith("white", 0))

	code, _ := env.do(t, http.MethodPost, "/api/reset", `{"humanColor":"purple"}`)
	if code != http.StatusBadRequest {
		t.Errorf("status %d, want 400", code)
	}

	st := env.state(t, http.MethodPost, "/api/reset", `{"humanColor":"black"}`)
	if st.HumanColor != "black" {
		t.Fatalf("human color = %s", st.HumanColor)
	}
	env.waitFor(t, "computer opening", func(s stateView) bool { return len(s.History) == 1 })

	prefs, err := env.store.LoadPreferences()
	if err != nil {
		t.Fatal(err)
	}
	if prefs.Color() != board.Black {
		t.Errorf("stored human color = %q, want black", prefs.HumanColor)
	}
}

func TestDifficulty(t *testing.T) {
	env := newTestEnv(t, "", prefsWith("white", time.Hour))

	st := env.state(t, http.MethodPut, "/api/difficulty", `{"difficulty":"hard"}`)
	if st.Difficulty != "hard" {
		t.Errorf("difficulty = %s, want hard", st.Difficulty)
	}
	prefs, err := env.store.LoadPreferences()
	if err != nil {
		t.Fatal(err)
	}
	if prefs.Difficulty != engine.Hard {
		t.Errorf("stored difficulty = %v, want hard", prefs.Difficulty)
	}

	tests := []struct {
		name   string
		method string
		body   string
		status int
	}{
		{"unknown level", http.MethodPut, `{"difficulty":"extreme"}`, http.StatusBadRequest},
		{"missing level", http.MethodPut, `{}`, http.StatusBadRequest},
		{"wrong method", http.MethodPost, `{"difficulty":"easy"}`, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, data := env.do(t, tt.method, "/api/difficulty", tt.body)
			if code != tt.status {
				t.Errorf("status %d (%s), want %d", code, bytes.TrimSpace(data), tt.status)
			}
		})
	}
}

func TestHints(t *testing.T) {
	env := newTestEnv(t, "", prefsWith("white", time.Hour))

	fetch := func(query string) []hintView {
		code, data := env.do(t, http.MethodGet, "/api/hints"+query, "")
		if code != http.StatusOK {
			t.Fatalf("status %d: %s", code, data)
		}
		var payload struct {
			Color string     `json:"color"`
			Hints []hintView `json:"hints"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			t.Fatal(err)
		}
		if payload.Color != "white" {
			t.Errorf("hint color = %s", payload.Color)
		}
		return payload.Hints
	}

	hints := fetch("")
	for _, h := range hints {
		t.Logf("hint %s (%s) %.2f", h.SAN, h.UCI, h.Score)
	}
	if len(hints) != 3 {
		t.Errorf("default hint count = %d, want 3", len(hints))
	}
	for i := 1; i < len(hints); i++ {
		if hints[i].Score > hints[i-1].Score {
			t.Errorf("hints not sorted: %v", hints)
		}
	}

	if got := fetch("?n=2"); len(got) != 2 {
		t.Errorf("n=2 gave %d hints", len(got))
	}
	code, _ := env.do(t, http.MethodGet, "/api/hints?n=0", "")
	if code != http.StatusBadRequest {
		t.Errorf("n=0: status %d, want 400", code)
	}
}

func TestFinishedGamesAreRecorded(t *testing.T) {
	tests := []struct {
		name   string
		fen    string
		move   string
		result string
		winner string
		check  func(*storage.GameStats) bool
	}{
		{
			name:   "checkmate",
			fen:    "6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1",
			move:   `{"from":"a1","to":"a8"}`,
			result: "White wins by checkmate",
			winner: "white",
			check:  func(s *storage.GameStats) bool { return s.Wins == 1 && s.CurrentStreak == 1 },
		},
		{
			name:   "stalemate",
			fen:    "k7/8/1K6/8/8/8/2Q5/8 w - - 0 1",
			move:   `{"from":"c2","to":"c7"}`,
			result: "Draw by stalemate",
			check:  func(s *storage.GameStats) bool { return s.Draws == 1 && s.Wins == 0 },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.fen, prefsWith("white", 0))

			st := env.state(t, http.MethodPost, "/api/move", tt.move)
			if st.State != "finished" || st.Result != tt.result || st.Winner != tt.winner {
				t.Fatalf("unexpected state: %+v", st)
			}
			if st.Thinking {
				t.Error("computer scheduled after the game ended")
			}

			code, data := env.do(t, http.MethodGet, "/api/stats", "")
			if code != http.StatusOK {
				t.Fatalf("stats: status %d", code)
			}
			var payload struct {
				Stats storage.GameStats `json:"stats"`
			}
			if err := json.Unmarshal(data, &payload); err != nil {
				t.Fatal(err)
			}
			t.Logf("stats %+v", payload.Stats)
			if payload.Stats.GamesPlayed != 1 || payload.Stats.TotalPlies != 1 || !tt.check(&payload.Stats) {
				t.Errorf("unexpected stats: %+v", payload.Stats)
			}

			// Reading the state again must not record the game twice.
			env.state(t, http.MethodGet, "/api/state", "")
			stats, err := env.store.LoadStats()
			if err != nil {
				t.Fatal(err)
			}
			if stats.GamesPlayed != 1 {
				t.Errorf("games played = %d, want 1", stats.GamesPlayed)
			}
		})
	}
}

func TestWebsocketPushesState(t *testing.T) {
	env := newTestEnv(t, "", prefsWith("white", time.Hour))

	url := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	read := func() stateView {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var st stateView
		if err := conn.ReadJSON(&st); err != nil {
			t.Fatalf("read: %v", err)
		}
		return st
	}

	if st := read(); st.FEN != board.StartFEN {
		t.Fatalf("first message FEN = %s", st.FEN)
	}

	env.state(t, http.MethodPost, "/api/move", `{"from":"d2","to":"d4"}`)
	st := read()
	t.Logf("pushed %+v", st.History)
	if len(st.History) != 1 || st.History[0] != "d4" || !st.Thinking {
		t.Errorf("unexpected pushed state: %+v", st)
	}

	env.state(t, http.MethodPut, "/api/difficulty", `{"difficulty":"medium"}`)
	if st := read(); st.Difficulty != "medium" {
		t.Errorf("pushed difficulty = %s", st.Difficulty)
	}
}

func TestCloseCancelsScheduledMove(t *testing.T) {
	env := newTestEnv(t, "", prefsWith("white", 50*time.Millisecond))

	env.state(t, http.MethodPost, "/api/move", `{"from":"e2","to":"e4"}`)
	if err := env.srv.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	time.Sleep(150 * time.Millisecond)

	env.srv.mu.Lock()
	plies := len(env.srv.session.History())
	env.srv.mu.Unlock()
	if plies != 1 {
		t.Errorf("plies after Close = %d, want 1", plies)
	}
}

func TestParsePromotionPiece(t *testing.T) {
	tests := []struct {
		in   string
		want board.PieceType
		ok   bool
	}{
		{"q", board.Queen, true},
		{"Queen", board.Queen, true},
		{"r", board.Rook, true},
		{"bishop", board.Bishop, true},
		{"knight", board.Knight, true},
		{"N", board.Knight, true},
		{"k", board.King, false},
		{"p", board.Pawn, false},
		{"quine", board.Queen, false},
		{"", board.NoPieceType, false},
	}
	for _, tt := range tests {
		got, ok := parsePromotionPiece(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("parsePromotionPiece(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
