// Package engine implements move selection: static evaluation, fixed-depth
// alpha-beta search, difficulty strategies and hint ranking.
package engine

import (
	"math"

	"github.com/hailam/chesstutor/internal/board"
)

// Material values in pawns.
const (
	PawnValue   = 1.0
	KnightValue = 3.0
	BishopValue = 3.0
	RookValue   = 5.0
	QueenValue  = 9.0
	KingValue   = 100.0
)

// Piece values array for quick lookup
var pieceValues = [7]float64{PawnValue, KnightValue, BishopValue, RookValue, QueenValue, KingValue, 0}

// pstScale keeps a positional bonus well under one pawn of material.
const pstScale = 100.0

// Piece-Square Tables (PST) for positional evaluation.
// Indexed by square with a8 first, from White's point of view; mirrored for Black.

var pawnPST = [64]float64{
	0, 0, 0, 0, 0, 0, 0, 0,
	50, 50, 50, 50, 50, 50, 50, 50,
	10, 10, 20, 30, 30, 20, 10, 10,
	5, 5, 10, 25, 25, 10, 5, 5,
	0, 0, 0, 20, 20, 0, 0, 0,
	5, -5, -10, 0, 0, -10, -5, 5,
	5, 10, 10, -20, -20, 10, 10, 5,
	0, 0, 0, 0, 0, 0, 0, 0,
}

var knightPST = [64]float64{
	-50, -40, -30, -30, -30, -30, -40, -50,
	-40, -20, 0, 0, 0, 0, -20, -40,
	-30, 0, 10, 15, 15, 10, 0, -30,
	-30, 5, 15, 20, 20, 15, 5, -30,
	-30, 0, 15, 20, 20, 15, 0, -30,
	-30, 5, 10, 15, 15, 10, 5, -30,
	-40, -20, 0, 5, 5, 0, -20, -40,
	-50, -40, -30, -30, -30, -30, -40, -50,
}

var bishopPST = [64]float64{
	-20, -10, -10, -10, -10, -10, -10, -20,
	-10, 0, 0, 0, 0, 0, 0, -10,
	-10, 0, 5, 10, 10, 5, 0, -10,
	-10, 5, 5, 10, 10, 5, 5, -10,
	-10, 0, 10, 10, 10, 10, 0, -10,
	-10, 10, 10, 10, 10, 10, 10, -10,
	-10, 5, 0, 0, 0, 0, 5, -10,
	-20, -10, -10, -10, -10, -10, -10, -20,
}

var rookPST = [64]float64{
	0, 0, 0, 0, 0, 0, 0, 0,
	5, 10, 10, 10, 10, 10, 10, 5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	0, 0, 0, 5, 5, 0, 0, 0,
}

var queenPST = [64]float64{
	-20, -10, -10, -5, -5, -10, -10, -20,
	-10, 0, 0, 0, 0, 0, 0, -10,
	-10, 0, 5, 5, 5, 5, 0, -10,
	-5, 0, 5, 5, 5, 5, 0, -5,
	0, 0, 5, 5, 5, 5, 0, -5,
	-10, 5, 5, 5, 5, 5, 0, -10,
	-10, 0, 5, 0, 0, 0, 0, -10,
	-20, -10, -10, -5, -5, -10, -10, -20,
}

var kingPST = [64]float64{
	-30, -40, -40, -50, -50, -40, -40, -30,
	-30, -40, -40, -50, -50, -40, -40, -30,
	-30, -40, -40, -50, -50, -40, -40, -30,
	-30, -40, -40, -50, -50, -40, -40, -30,
	-20, -30, -30, -40, -40, -30, -30, -20,
	-10, -20, -20, -20, -20, -20, -20, -10,
	20, 20, 0, 0, 0, 0, 20, 20,
	20, 30, 10, 0, 0, 10, 30, 20,
}

// psts is indexed by piece type.
var psts = [6]*[64]float64{&pawnPST, &knightPST, &bishopPST, &rookPST, &queenPST, &kingPST}

// MaterialValue returns the material value of a piece type.
func MaterialValue(pt board.PieceType) float64 {
	return pieceValues[pt]
}

// PositionalValue returns the scaled piece-square bonus of piece standing on sq,
// read from its own color's side of the board.
func PositionalValue(piece board.Piece, sq board.Square) float64 {
	pt := piece.Type()
	if pt >= board.NoPieceType {
		return 0
	}
	if piece.Color() == board.Black {
		sq = sq.Mirror()
	}
	return psts[pt][sq] / pstScale
}

// Evaluate returns the static evaluation of the position from perspective's
// point of view: its material and positional value minus the opponent's.
func Evaluate(pos *board.Position, perspective board.Color) float64 {
	var score float64
	for sq := board.A8; sq < board.NoSquare; sq++ {
		piece := pos.PieceAt(sq)
		if piece == board.NoPiece {
			continue
		}
		value := pieceValues[piece.Type()] + PositionalValue(piece, sq)
		if piece.Color() == perspective {
			score += value
		} else {
			score -= value
		}
	}
	return score
}

// EvaluateMove scores m with a single-ply heuristic for the side moving it:
// ten times the captured material, the change in positional value, and a
// bonus for landing near the center.
func EvaluateMove(pos *board.Position, m board.Move) float64 {
	piece := pos.PieceAt(m.From)
	if piece == board.NoPiece {
		return 0
	}

	var score float64

	// Capture value
	captured := pos.PieceAt(m.To)
	if m.IsEnPassant() {
		captured = board.NewPiece(board.Pawn, piece.Color().Other())
	}
	if captured != board.NoPiece {
		score += pieceValues[captured.Type()] * 10
	}

	// Position value
	score += PositionalValue(piece, m.To) - PositionalValue(piece, m.From)

	// Center control bonus
	centerDistance := math.Abs(3.5-float64(m.To.Row())) + math.Abs(3.5-float64(m.To.Col()))
	score += (7 - centerDistance) / 10

	return score
}
