package uci

import (
	"bytes"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/hailam/chesstutor/internal/engine"
)

func runScript(t *testing.T, script string) (string, string) {
	t.Helper()
	cfg := engine.DefaultConfig()
	cfg.Rand = rand.New(rand.NewPCG(1, 1))
	eng, err := engine.NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer eng.Close()

	var out, errOut bytes.Buffer
	if err := New(eng, &out, &errOut).Run(strings.NewReader(script)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	t.Logf("stdout:\n%s", out.String())
	return out.String(), errOut.String()
}

func TestHandshake(t *testing.T) {
	out, _ := runScript(t, "uci\nisready\nquit\n")
	for _, want := range []string{"id name ChessTutor", "option name Difficulty", "uciok", "readyok"} {
		if !strings.Contains(out, want) {
			t.Errorf("Missing %q in output", want)
		}
	}
}

func TestPositionWithMoves(t *testing.T) {
	out, errOut := runScript(t, "position startpos moves e2e4 e7e5 g1f3\nd\n")
	want := "Fen: rnbqkbnr/pppp1ppp/8/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R b KQkq -"
	if !strings.Contains(out, want) {
		t.Errorf("Expected %q in output", want)
	}
	if errOut != "" {
		t.Errorf("Unexpected diagnostics: %s", errOut)
	}
}

func TestInvalidInput(t *testing.T) {
	_, errOut := runScript(t, "position startpos moves e2e5\nposition fen garbage\nsetoption name Difficulty value expert\n")
	for _, want := range []string{"Invalid move: e2e5", "Invalid FEN", "unknown difficulty"} {
		if !strings.Contains(errOut, want) {
			t.Errorf("Missing %q in diagnostics: %s", want, errOut)
		}
	}
}

func TestGoFindsMate(t *testing.T) {
	out, _ := runScript(t, "position fen 6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1\ngo depth 2\n")
	if !strings.Contains(out, "bestmove a1a8") {
		t.Errorf("Expected bestmove a1a8")
	}
	if !strings.Contains(out, "score mate 1") {
		t.Errorf("Expected mate score")
	}
}

func TestGoPromotes(t *testing.T) {
	out, _ := runScript(t, "position fen 4k3/P7/8/8/8/8/8/K7 w - - 0 1\ngo depth 2\n")
	if !strings.Contains(out, "bestmove a7a8q") {
		t.Errorf("Expected queen promotion")
	}
}

func TestGoUsesDifficulty(t *testing.T) {
	out, _ := runScript(t, "setoption name Difficulty value hard\nposition startpos\ngo wtime 1000 btime 1000\n")
	if !strings.Contains(out, "info depth 3") {
		t.Errorf("Expected a depth 3 search at hard difficulty")
	}
	if !strings.Contains(out, "bestmove ") || strings.Contains(out, "bestmove 0000") {
		t.Errorf("Expected a real best move")
	}
}

func TestGoWithoutMoves(t *testing.T) {
	out, _ := runScript(t, "position fen 7k/5Q2/6K1/8/8/8/8/8 b - - 0 1\ngo\n")
	if !strings.Contains(out, "bestmove 0000") {
		t.Errorf("Expected bestmove 0000 in stalemate")
	}
}

func TestPerftAndHints(t *testing.T) {
	out, _ := runScript(t, "perft 3\nhints 2\n")
	if !strings.Contains(out, "Nodes: 8902") {
		t.Errorf("Expected 8902 perft nodes")
	}
	if !strings.Contains(out, "hint 1 ") || !strings.Contains(out, "hint 2 ") || strings.Contains(out, "hint 3 ") {
		t.Errorf("Expected exactly two hints")
	}
}

func TestPerftRejectsBadDepth(t *testing.T) {
	out, errOut := runScript(t, "perft -1\nperft abc\nperft 0\nperft 1\n")
	for _, arg := range []string{"-1", "abc", "0"} {
		if !strings.Contains(errOut, "Invalid perft depth: "+arg) {
			t.Errorf("Missing diagnostic for perft %s: %s", arg, errOut)
		}
	}
	if strings.Count(out, "Nodes:") != 1 || !strings.Contains(out, "Nodes: 20") {
		t.Errorf("Expected only the depth 1 count, got:\n%s", out)
	}
}
