package engine

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/hailam/chesstutor/internal/board"
)

// Difficulty represents the AI difficulty level.
type Difficulty int

const (
	Beginner Difficulty = iota // random moves, captures half the time
	Easy                       // one-ply heuristic with noise
	Medium                     // 2-ply search
	Hard                       // 3-ply search
)

var difficultyNames = [...]string{"beginner", "easy", "medium", "hard"}

// String returns the lower-case difficulty name.
func (d Difficulty) String() string {
	if d < Beginner || d > Hard {
		return fmt.Sprintf("Difficulty(%d)", int(d))
	}
	return difficultyNames[d]
}

// ParseDifficulty parses a difficulty name, ignoring case.
func ParseDifficulty(s string) (Difficulty, error) {
	for i, name := range difficultyNames {
		if strings.EqualFold(s, name) {
			return Difficulty(i), nil
		}
	}
	return Beginner, fmt.Errorf("unknown difficulty %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (d Difficulty) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Difficulty) UnmarshalText(text []byte) error {
	parsed, err := ParseDifficulty(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Strategy names how a difficulty level picks its move.
type Strategy int

const (
	RandomBiased Strategy = iota
	GreedyNoise
	SearchBased
)

// Settings configures the strategy used at one difficulty.
type Settings struct {
	Strategy    Strategy
	Depth       int     // search depth for SearchBased
	CaptureBias float64 // chance to restrict a RandomBiased pick to captures
	Noise       float64 // half-width of the uniform noise added by GreedyNoise
}

// DifficultySettings maps difficulty to strategy settings.
var DifficultySettings = map[Difficulty]Settings{
	Beginner: {Strategy: RandomBiased, CaptureBias: 0.5},
	Easy:     {Strategy: GreedyNoise, Noise: 1},
	Medium:   {Strategy: SearchBased, Depth: 2},
	Hard:     {Strategy: SearchBased, Depth: 3},
}

// pickRandomBiased returns a capture with probability bias when one exists,
// otherwise any move, each chosen uniformly.
func pickRandomBiased(pos *board.Position, moves board.MoveList, bias float64, rng *rand.Rand) board.Move {
	var captures board.MoveList
	for _, m := range moves {
		if m.IsCapture(pos) {
			captures = append(captures, m)
		}
	}

	if len(captures) > 0 && rng.Float64() < bias {
		return captures[rng.IntN(len(captures))]
	}
	return moves[rng.IntN(len(moves))]
}

// pickGreedy returns the move with the best one-ply heuristic score after
// adding uniform noise in [-noise, noise] to each score.
func pickGreedy(pos *board.Position, moves board.MoveList, noise float64, rng *rand.Rand) board.Move {
	best := board.NoMove
	bestScore := negInf
	for _, m := range moves {
		score := EvaluateMove(pos, m) + (rng.Float64()*2-1)*noise
		if score > bestScore {
			bestScore = score
			best = m
		}
	}
	return best
}
