// Package uci exposes the engine through the Universal Chess Interface protocol.
package uci

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hailam/chesstutor/internal/board"
	"github.com/hailam/chesstutor/internal/engine"
)

// UCI implements the Universal Chess Interface protocol.
// Searches run synchronously, so "stop" has nothing to interrupt.
type UCI struct {
	engine   *engine.Engine
	position *board.Position
	out      io.Writer
	errOut   io.Writer
}

// New creates a new UCI protocol handler writing responses to out and
// diagnostics to errOut.
func New(eng *engine.Engine, out, errOut io.Writer) *UCI {
	u := &UCI{
		engine:   eng,
		position: board.NewPosition(),
		out:      out,
		errOut:   errOut,
	}
	eng.OnInfo = u.sendInfo
	return u
}

// Run reads commands from in until "quit" or end of input.
func (u *UCI) Run(in io.Reader) error {
	scanner := bufio.NewScanner(in)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "uci":
			u.handleUCI()
		case "isready":
			fmt.Fprintln(u.out, "readyok")
		case "ucinewgame":
			u.handleNewGame()
		case "position":
			u.handlePosition(args)
		case "go":
			u.handleGo(args)
		case "stop":
		case "quit":
			return nil
		case "setoption":
			u.handleSetOption(args)
		// Debug commands
		case "d":
			u.handleDisplay()
		case "perft":
			u.handlePerft(args)
		case "hints":
			u.handleHints(args)
		case "eval":
			fmt.Fprintf(u.out, "Evaluation: %.2f\n", u.engine.Evaluate(u.position))
		default:
			fmt.Fprintf(u.errOut, "info string Unknown command: %s\n", cmd)
		}
	}
	return scanner.Err()
}

// handleUCI responds to the "uci" command.
func (u *UCI) handleUCI() {
	fmt.Fprintln(u.out, "id name ChessTutor")
	fmt.Fprintln(u.out, "id author ChessTutor Team")
	fmt.Fprintln(u.out)
	fmt.Fprintf(u.out, "option name Difficulty type combo default %s var beginner var easy var medium var hard\n", u.engine.Difficulty())
	fmt.Fprintln(u.out, "uciok")
}

// handleNewGame resets the engine for a new game.
func (u *UCI) handleNewGame() {
	u.engine.Clear()
	u.position = board.NewPosition()
}

// handlePosition parses and sets up a position.
// Formats:
//   - position startpos
//   - position startpos moves e2e4 e7e5
//   - position fen <fen>
//   - position fen <fen> moves e2e4
func (u *UCI) handlePosition(args []string) {
	if len(args) == 0 {
		return
	}

	// Find "moves" keyword
	movesAt := len(args)
	for i, arg := range args {
		if arg == "moves" {
			movesAt = i
			break
		}
	}

	var pos *board.Position
	switch args[0] {
	case "startpos":
		pos = board.NewPosition()
	case "fen":
		fenStr := strings.Join(args[1:movesAt], " ")
		p, err := board.ParseFEN(fenStr)
		if err != nil {
			fmt.Fprintf(u.errOut, "info string Invalid FEN: %v\n", err)
			return
		}
		pos = p
	default:
		return
	}

	if movesAt < len(args) {
		for _, moveStr := range args[movesAt+1:] {
			move, ok := parseMove(pos, moveStr)
			if !ok {
				fmt.Fprintf(u.errOut, "info string Invalid move: %s\n", moveStr)
				return
			}
			pos.MakeMove(move)
		}
	}
	pos.UpdateStatus()
	u.position = pos
}

// parseMove converts a UCI move string to a legal move in pos.
func parseMove(pos *board.Position, moveStr string) (board.Move, bool) {
	m, err := board.ParseMove(moveStr, pos)
	if err != nil {
		return board.NoMove, false
	}

	// Find matching legal move
	legal, ok := pos.LegalMovesFrom(m.From).Find(m.From, m.To)
	if !ok || legal.Flag != m.Flag {
		return board.NoMove, false
	}
	if legal.IsPromotion() {
		if !m.Promotion.IsPromotionTarget() {
			return board.NoMove, false
		}
		legal = legal.WithPromotion(m.Promotion)
	}
	return legal, true
}

// GoOptions holds parsed "go" command options.
type GoOptions struct {
	Depth int
}

// parseGoOptions parses "go" command arguments. Time controls are accepted
// and ignored; search depth is fixed.
func parseGoOptions(args []string) GoOptions {
	opts := GoOptions{}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "depth":
			if i+1 < len(args) {
				opts.Depth, _ = strconv.Atoi(args[i+1])
				i++
			}
		case "wtime", "btime", "winc", "binc", "movestogo", "movetime", "nodes":
			i++
		}
	}

	return opts
}

// handleGo searches the current position and prints the best move.
func (u *UCI) handleGo(args []string) {
	opts := parseGoOptions(args)
	color := u.position.SideToMove

	var bestMove board.Move
	if opts.Depth > 0 {
		start := time.Now()
		var score float64
		bestMove, score = u.engine.SearchDepth(u.position, color, opts.Depth)
		u.sendInfo(engine.SearchInfo{
			Difficulty: u.engine.Difficulty(),
			Depth:      min(opts.Depth, engine.MaxDepth),
			Move:       bestMove,
			Score:      score,
			Nodes:      u.engine.Nodes(),
			Time:       time.Since(start),
		})
	} else {
		bestMove, _ = u.engine.SelectMove(u.position, color)
	}

	if bestMove == board.NoMove {
		// Only send 0000 for checkmate/stalemate (no legal moves)
		fmt.Fprintln(u.out, "bestmove 0000")
		return
	}
	if bestMove.IsPromotion() && !bestMove.Promotion.IsPromotionTarget() {
		bestMove = bestMove.WithPromotion(board.Queen)
	}
	fmt.Fprintf(u.out, "bestmove %s\n", bestMove)
}

// sendInfo prints search statistics for searching strategies.
func (u *UCI) sendInfo(info engine.SearchInfo) {
	if info.Depth == 0 {
		return
	}

	parts := []string{fmt.Sprintf("depth %d", info.Depth)}

	// Score in centipawns; a forced mate within the horizon is reported as mate 1.
	switch {
	case info.Score >= engine.WinScore:
		parts = append(parts, "score mate 1")
	case info.Score <= -engine.WinScore:
		parts = append(parts, "score mate -1")
	default:
		parts = append(parts, fmt.Sprintf("score cp %d", int(math.Round(info.Score*100))))
	}

	parts = append(parts, fmt.Sprintf("nodes %d", info.Nodes))
	parts = append(parts, fmt.Sprintf("time %d", info.Time.Milliseconds()))

	// NPS
	if info.Time > 0 {
		nps := uint64(float64(info.Nodes) / info.Time.Seconds())
		parts = append(parts, fmt.Sprintf("nps %d", nps))
	}

	if info.Move != board.NoMove {
		parts = append(parts, "pv "+info.Move.String())
	}

	fmt.Fprintf(u.out, "info %s\n", strings.Join(parts, " "))
}

// handleSetOption processes "setoption" commands.
func (u *UCI) handleSetOption(args []string) {
	// Format: setoption name <name> value <value>
	var name, value string
	readingName := false
	readingValue := false

	for _, arg := range args {
		switch arg {
		case "name":
			readingName = true
			readingValue = false
		case "value":
			readingName = false
			readingValue = true
		default:
			if readingName {
				if name != "" {
					name += " "
				}
				name += arg
			} else if readingValue {
				if value != "" {
					value += " "
				}
				value += arg
			}
		}
	}

	// Handle options
	switch strings.ToLower(name) {
	case "difficulty":
		d, err := engine.ParseDifficulty(value)
		if err != nil {
			fmt.Fprintf(u.errOut, "info string %v\n", err)
			return
		}
		u.engine.SetDifficulty(d)
	default:
		fmt.Fprintf(u.errOut, "info string Unknown option: %s\n", name)
	}
}

// handleDisplay prints the board, its FEN and its status.
func (u *UCI) handleDisplay() {
	fmt.Fprintln(u.out, u.position.String())
	fmt.Fprintf(u.out, "Fen: %s\n", u.position.ToFEN())
	fmt.Fprintf(u.out, "Status: %s\n", u.position.ComputeStatus())
}

// handleHints prints the top-ranked moves for the side to move.
func (u *UCI) handleHints(args []string) {
	n := 3
	if len(args) > 0 {
		if v, err := strconv.Atoi(args[0]); err == nil {
			n = v
		}
	}
	for i, h := range u.engine.RankHints(u.position, u.position.SideToMove, n) {
		fmt.Fprintf(u.out, "hint %d %s %s %.2f\n", i+1, h.Move, h.Move.ToSAN(u.position), h.Score)
	}
}

// handlePerft runs a perft test.
func (u *UCI) handlePerft(args []string) {
	depth := 4
	if len(args) > 0 {
		d, err := strconv.Atoi(args[0])
		if err != nil || d < 1 {
			fmt.Fprintf(u.errOut, "info string Invalid perft depth: %s\n", args[0])
			return
		}
		depth = d
	}

	start := time.Now()
	nodes := u.engine.Perft(u.position, depth)
	elapsed := time.Since(start)

	fmt.Fprintf(u.out, "Nodes: %d\n", nodes)
	fmt.Fprintf(u.out, "Time: %v\n", elapsed)
	if elapsed > 0 {
		nps := float64(nodes) / elapsed.Seconds()
		fmt.Fprintf(u.out, "NPS: %s\n", humanize.Comma(int64(nps)))
	}
}
