package engine

import (
	"math/rand/v2"
	"time"

	"github.com/hailam/chesstutor/internal/board"
)

// SearchInfo describes a completed move selection.
type SearchInfo struct {
	Difficulty Difficulty
	Depth      int // 0 for the non-searching strategies
	Move       board.Move
	Score      float64
	Nodes      uint64
	Time       time.Duration
}

// Config configures an Engine.
type Config struct {
	// HintDepth is the search depth used to rank hint candidates.
	HintDepth int
	// HintCacheEntries bounds the number of cached hint rankings; 0 disables caching.
	HintCacheEntries int64
	// Rand drives the randomized strategies. Nil means a randomly seeded source.
	Rand *rand.Rand
}

// DefaultConfig returns the engine configuration used by the front-ends.
func DefaultConfig() Config {
	return Config{
		HintDepth:        2,
		HintCacheEntries: 1024,
	}
}

// Engine is the chess AI engine. It is not safe for concurrent use.
type Engine struct {
	searcher   *Searcher
	hints      *HintCache
	rng        *rand.Rand
	hintDepth  int
	difficulty Difficulty

	// Callbacks
	OnInfo func(SearchInfo)
}

// NewEngine creates a new chess engine.
func NewEngine(cfg Config) (*Engine, error) {
	hints, err := NewHintCache(cfg.HintCacheEntries)
	if err != nil {
		return nil, err
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Engine{
		searcher:   NewSearcher(),
		hints:      hints,
		rng:        rng,
		hintDepth:  max(cfg.HintDepth, 1),
		difficulty: Beginner,
	}, nil
}

// SetDifficulty sets the engine difficulty.
func (e *Engine) SetDifficulty(d Difficulty) {
	e.difficulty = d
}

// Difficulty returns the current difficulty.
func (e *Engine) Difficulty() Difficulty {
	return e.difficulty
}

// SelectMove picks color's move in pos at the current difficulty.
func (e *Engine) SelectMove(pos *board.Position, color board.Color) (board.Move, bool) {
	return e.SelectMoveAt(pos, color, e.difficulty)
}

// SelectMoveAt picks color's move in pos using the strategy configured for d.
// It reports false when color has no legal moves. pos is left unchanged.
func (e *Engine) SelectMoveAt(pos *board.Position, color board.Color, d Difficulty) (board.Move, bool) {
	settings, ok := DifficultySettings[d]
	if !ok {
		settings = DifficultySettings[Beginner]
	}

	root := searchRoot(pos, color)
	moves := root.GenerateLegalMoves()
	if len(moves) == 0 {
		return board.NoMove, false
	}

	e.searcher.Reset()
	start := time.Now()

	var move board.Move
	var score float64
	depth := 0
	switch settings.Strategy {
	case RandomBiased:
		move = pickRandomBiased(root, moves, settings.CaptureBias, e.rng)
	case GreedyNoise:
		move = pickGreedy(root, moves, settings.Noise, e.rng)
	case SearchBased:
		depth = settings.Depth
		move, score = e.searcher.SelectMove(root, color, depth)
	}

	if e.OnInfo != nil {
		e.OnInfo(SearchInfo{
			Difficulty: d,
			Depth:      depth,
			Move:       move,
			Score:      score,
			Nodes:      e.searcher.Nodes(),
			Time:       time.Since(start),
		})
	}
	return move, move != board.NoMove
}

// SearchDepth runs a plain search at an explicit depth, bypassing the difficulty.
func (e *Engine) SearchDepth(pos *board.Position, color board.Color, depth int) (board.Move, float64) {
	e.searcher.Reset()
	return e.searcher.SelectMove(pos, color, min(depth, MaxDepth))
}

// RankHints returns up to topN of color's moves, best first, scored by search
// at the configured hint depth. topN <= 0 returns every legal move.
func (e *Engine) RankHints(pos *board.Position, color board.Color, topN int) []ScoredMove {
	key := hintKey(pos, color, e.hintDepth)
	if ranked, ok := e.hints.get(key); ok {
		return firstN(ranked, topN)
	}

	e.searcher.Reset()
	ranked := e.searcher.ScoreMoves(pos, color, e.hintDepth)
	RankMoves(ranked)
	e.hints.put(key, ranked)
	return firstN(ranked, topN)
}

// Nodes returns the positions visited by the last search.
func (e *Engine) Nodes() uint64 {
	return e.searcher.Nodes()
}

// Perft performs a perft test (for debugging move generation).
func (e *Engine) Perft(pos *board.Position, depth int) uint64 {
	return pos.Perft(depth)
}

// Evaluate returns the static evaluation of a position for the side to move.
func (e *Engine) Evaluate(pos *board.Position) float64 {
	return Evaluate(pos, pos.SideToMove)
}

// Clear clears the hint cache.
func (e *Engine) Clear() {
	e.hints.Clear()
}

// Close releases the hint cache.
func (e *Engine) Close() {
	e.hints.Close()
}
