package engine

import (
	"math"
	"sync/atomic"

	"github.com/hailam/chesstutor/internal/board"
)

// Search constants
const (
	// WinScore is returned when the side to act at an interior node has no
	// legal moves: negative for the maximizer, positive for the minimizer.
	WinScore = 10000.0
	MaxDepth = 8
)

var (
	negInf = math.Inf(-1)
	posInf = math.Inf(1)
)

// ScoredMove pairs a move with its search score.
type ScoredMove struct {
	Move  board.Move
	Score float64
}

// Searcher performs fixed-depth minimax search with alpha-beta pruning.
// Every move it tries is taken back before it returns, so the caller's
// position is unchanged afterwards.
type Searcher struct {
	nodes atomic.Uint64
}

// NewSearcher creates a new searcher.
func NewSearcher() *Searcher {
	return &Searcher{}
}

// Nodes returns the number of positions visited since the last Reset.
func (s *Searcher) Nodes() uint64 {
	return s.nodes.Load()
}

// Reset clears the node counter.
func (s *Searcher) Reset() {
	s.nodes.Store(0)
}

// Minimax scores pos from maximizing's point of view, looking depth plies ahead.
// The side to move in pos acts at this level; it maximizes when it is the
// maximizing color and minimizes otherwise.
func (s *Searcher) Minimax(pos *board.Position, depth int, maximizing board.Color, alpha, beta float64) float64 {
	s.nodes.Add(1)

	if depth <= 0 {
		return Evaluate(pos, maximizing)
	}

	moves := pos.GenerateLegalMoves()
	isMax := pos.SideToMove == maximizing
	if len(moves) == 0 {
		if isMax {
			return -WinScore
		}
		return WinScore
	}

	if isMax {
		best := negInf
		for _, m := range moves {
			var score float64
			pos.Try(m, func() {
				score = s.Minimax(pos, depth-1, maximizing, alpha, beta)
			})
			best = max(best, score)
			alpha = max(alpha, best)
			if beta <= alpha {
				break
			}
		}
		return best
	}

	best := posInf
	for _, m := range moves {
		var score float64
		pos.Try(m, func() {
			score = s.Minimax(pos, depth-1, maximizing, alpha, beta)
		})
		best = min(best, score)
		beta = min(beta, best)
		if beta <= alpha {
			break
		}
	}
	return best
}

// searchRoot returns pos when color is to move there, otherwise a copy with
// color to move.
func searchRoot(pos *board.Position, color board.Color) *board.Position {
	if pos.SideToMove == color {
		return pos
	}
	return pos.WithSideToMove(color)
}

// SelectMove returns color's best move in pos at the given depth, with its score.
// Each candidate is answered by a depth-1 search from the opponent's turn.
// Ties go to the first move in generation order. NoMove is returned when
// color has no legal moves.
func (s *Searcher) SelectMove(pos *board.Position, color board.Color, depth int) (board.Move, float64) {
	depth = max(depth, 1)
	root := searchRoot(pos, color)

	bestMove := board.NoMove
	bestScore := negInf
	alpha := negInf

	for _, m := range root.GenerateLegalMoves() {
		if m.IsPromotion() {
			m = m.WithPromotion(board.Queen)
		}
		var score float64
		root.Try(m, func() {
			score = s.Minimax(root, depth-1, color, alpha, posInf)
		})
		if score > bestScore {
			bestScore = score
			bestMove = m
			alpha = max(alpha, score)
		}
	}

	return bestMove, bestScore
}

// ScoreMoves returns every legal move of color with its exact search score,
// in generation order. Unlike SelectMove, each root move gets a full window.
func (s *Searcher) ScoreMoves(pos *board.Position, color board.Color, depth int) []ScoredMove {
	depth = max(depth, 1)
	root := searchRoot(pos, color)

	moves := root.GenerateLegalMoves()
	scored := make([]ScoredMove, 0, len(moves))
	for _, m := range moves {
		if m.IsPromotion() {
			m = m.WithPromotion(board.Queen)
		}
		var score float64
		root.Try(m, func() {
			score = s.Minimax(root, depth-1, color, negInf, posInf)
		})
		scored = append(scored, ScoredMove{Move: m, Score: score})
	}
	return scored
}
