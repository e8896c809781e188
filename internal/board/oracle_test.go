package board

import (
	"math/rand/v2"
	"slices"
	"testing"

	chess "github.com/corentings/chess/v2"
	"github.com/dylhunn/dragontoothmg"
)

var oracleFENs = []string{
	StartFEN,
	"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
	"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
	"r3k2r/Pppp1ppp/1b3nbN/nP6/BBP1P3/q4N2/Pp1P2PP/R2Q1RK1 w kq - 0 1",
	"rnbq1k1r/pp1Pbppp/2p5/8/2B5/8/PPP1NnPP/RNBQK2R w KQ - 1 8",
	"r4rk1/1pp1qppp/p1np1n2/2b1p1B1/2B1P1b1/P1NP1N2/1PP1QPPP/R4RK1 w - - 0 10",
	"rnbqkbnr/ppp1p1pp/8/3pPp2/8/8/PPPP1PPP/RNBQKBNR w KQkq f6 0 3",
}

// expandedUCI lists legal moves in UCI form with every promotion piece spelled out.
func expandedUCI(pos *Position) []string {
	var out []string
	for _, m := range pos.GenerateLegalMoves() {
		if m.IsPromotion() {
			for _, pt := range []PieceType{Queen, Rook, Bishop, Knight} {
				out = append(out, m.WithPromotion(pt).String())
			}
			continue
		}
		out = append(out, m.String())
	}
	slices.Sort(out)
	return out
}

func oracleUCI(t *testing.T, fen string) []string {
	t.Helper()
	opt, err := chess.FEN(fen)
	if err != nil {
		t.Fatalf("oracle rejected FEN %q: %v", fen, err)
	}
	g := chess.NewGame(opt)
	moves := g.ValidMoves()
	out := make([]string, 0, len(moves))
	for i := range moves {
		out = append(out, chess.UCINotation{}.Encode(g.Position(), &moves[i]))
	}
	slices.Sort(out)
	return out
}

func TestLegalMovesMatchOracle(t *testing.T) {
	for _, fen := range oracleFENs {
		pos := mustFEN(t, fen)
		got := expandedUCI(pos)
		want := oracleUCI(t, fen)
		if !slices.Equal(got, want) {
			t.Errorf("FEN %s\n got: %v\nwant: %v", fen, got, want)
		}
	}
}

// TestRandomGamesMatchOracle walks seeded random games and compares every
// position's legal move set with an independent implementation.
func TestRandomGamesMatchOracle(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	positions := 0
	for game := 0; game < 12; game++ {
		pos := NewPosition()
		for ply := 0; ply < 80; ply++ {
			fen := pos.ToFEN()
			got := expandedUCI(pos)
			want := oracleUCI(t, fen)
			if !slices.Equal(got, want) {
				t.Fatalf("game %d ply %d FEN %s\n got: %v\nwant: %v", game, ply, fen, got, want)
			}
			positions++

			moves := pos.GenerateLegalMoves()
			if len(moves) == 0 {
				break
			}
			m := moves[rng.IntN(len(moves))]
			if m.IsPromotion() {
				m = m.WithPromotion([]PieceType{Queen, Rook, Bishop, Knight}[rng.IntN(4)])
			}
			pos.MakeMove(m)
		}
	}
	t.Logf("Compared %d positions", positions)
}

// TestLegalityIsSoundAndComplete checks that every generated move keeps the
// mover's king safe and every rejected pseudo-legal move does not.
func TestLegalityIsSoundAndComplete(t *testing.T) {
	for _, fen := range oracleFENs {
		pos := mustFEN(t, fen)
		us := pos.SideToMove

		legal := pos.GenerateLegalMoves()
		for _, m := range legal {
			cp := pos.Copy()
			cp.MakeMove(m)
			if cp.IsKingAttacked(us) {
				t.Errorf("%s: legal move %v leaves king attacked", fen, m)
			}
		}

		for _, m := range pos.GeneratePseudoLegalMoves() {
			if _, ok := legal.Find(m.From, m.To); ok {
				continue
			}
			cp := pos.Copy()
			cp.MakeMove(m)
			if !cp.IsKingAttacked(us) {
				t.Errorf("%s: rejected move %v is actually safe", fen, m)
			}
		}
	}
}

func dragontoothPerft(b *dragontoothmg.Board, depth int) uint64 {
	moves := b.GenerateLegalMoves()
	if depth == 1 {
		return uint64(len(moves))
	}
	var nodes uint64
	for _, m := range moves {
		unapply := b.Apply(m)
		nodes += dragontoothPerft(b, depth-1)
		unapply()
	}
	return nodes
}

func TestPerftMatchesDragontooth(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping deep perft in short mode")
	}

	for _, fen := range oracleFENs {
		pos := mustFEN(t, fen)
		ref := dragontoothmg.ParseFen(fen)
		for depth := 1; depth <= 3; depth++ {
			got := pos.Perft(depth)
			want := dragontoothPerft(&ref, depth)
			if got != want {
				t.Errorf("%s perft(%d) = %d, want %d", fen, depth, got, want)
			}
		}
	}
}
