package httpx

import (
	"strings"

	"github.com/hailam/chesstutor/internal/board"
	"github.com/hailam/chesstutor/internal/engine"
	"github.com/hailam/chesstutor/internal/game"
)

// stateView is the JSON form of a game snapshot.
// Board rows run from rank 8 down to rank 1; empty squares are "".
type stateView struct {
	Board      [8][8]string   `json:"board"`
	FEN        string         `json:"fen"`
	Turn       string         `json:"turn"`
	State      string         `json:"state"`
	Status     string         `json:"status"`
	Captured   capturedView   `json:"captured"`
	LastMove   *moveView      `json:"lastMove,omitempty"`
	Promotion  *promotionView `json:"promotion,omitempty"`
	Result     string         `json:"result"`
	Winner     string         `json:"winner,omitempty"`
	History    []string       `json:"history"`
	HumanColor string         `json:"humanColor"`
	Difficulty string         `json:"difficulty"`
	Thinking   bool           `json:"thinking"`
}

type capturedView struct {
	White []string `json:"white"`
	Black []string `json:"black"`
}

type moveView struct {
	From      string `json:"from"`
	To        string `json:"to"`
	UCI       string `json:"uci"`
	Flag      string `json:"flag,omitempty"`
	Promotion string `json:"promotion,omitempty"`
}

type promotionView struct {
	Square string `json:"square"`
	Color  string `json:"color"`
}

type hintView struct {
	moveView
	SAN   string  `json:"san"`
	Score float64 `json:"score"`
}

func colorName(c board.Color) string {
	return strings.ToLower(c.String())
}

func pieceNames(pieces []board.Piece) []string {
	out := make([]string, 0, len(pieces))
	for _, p := range pieces {
		out = append(out, p.String())
	}
	return out
}

func newMoveView(m board.Move) moveView {
	v := moveView{From: m.From.String(), To: m.To.String(), UCI: m.String()}
	if m.Flag != board.FlagNormal {
		v.Flag = m.Flag.String()
	}
	if m.Promotion.IsPromotionTarget() {
		v.Promotion = string(m.Promotion.Char())
	}
	return v
}

func newStateView(snap game.Snapshot, history []string, human board.Color, d engine.Difficulty, thinking bool) stateView {
	v := stateView{
		FEN:        snap.FEN,
		Turn:       colorName(snap.SideToMove),
		State:      snap.State.String(),
		Status:     snap.Status.String(),
		Result:     snap.Result.String(),
		History:    history,
		HumanColor: colorName(human),
		Difficulty: d.String(),
		Thinking:   thinking,
		Captured: capturedView{
			White: pieceNames(snap.Captured[board.White]),
			Black: pieceNames(snap.Captured[board.Black]),
		},
	}
	if v.History == nil {
		v.History = []string{}
	}
	for sq, p := range snap.Board {
		if p != board.NoPiece {
			v.Board[sq/8][sq%8] = p.String()
		}
	}
	if snap.LastMove != board.NoMove {
		mv := newMoveView(snap.LastMove)
		v.LastMove = &mv
	}
	if snap.Promotion != nil {
		v.Promotion = &promotionView{
			Square: snap.Promotion.Square.String(),
			Color:  colorName(snap.Promotion.Color),
		}
	}
	if snap.Result.Status == board.Checkmate {
		v.Winner = colorName(snap.Result.Winner)
	}
	return v
}
