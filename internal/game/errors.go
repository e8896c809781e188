package game

import (
	"errors"
	"fmt"

	"github.com/hailam/chesstutor/internal/board"
)

var (
	// ErrIllegalMove is returned when a move is rejected. The board is left unchanged.
	ErrIllegalMove = errors.New("illegal move")
	// ErrNoPromotionPending is returned by CompletePromotion when no pawn is waiting.
	ErrNoPromotionPending = errors.New("no promotion pending")
	// ErrInvalidPromotion is returned for a promotion to a pawn, king or no piece.
	ErrInvalidPromotion = errors.New("invalid promotion piece")
)

// InvalidMoveReason categorizes why a move was rejected.
type InvalidMoveReason int

const (
	ReasonUnknown InvalidMoveReason = iota
	ReasonNoPiece
	ReasonNotYourTurn
	ReasonPromotionPending
	ReasonGameOver
	ReasonBlockedByOwnPiece
	ReasonWouldLeaveKingInCheck
	ReasonInvalidPieceMovement
)

func (r InvalidMoveReason) String() string {
	switch r {
	case ReasonNoPiece:
		return "no piece on the origin square"
	case ReasonNotYourTurn:
		return "not that side's turn"
	case ReasonPromotionPending:
		return "a promotion must be completed first"
	case ReasonGameOver:
		return "the game is over"
	case ReasonBlockedByOwnPiece:
		return "destination holds a piece of the same color"
	case ReasonWouldLeaveKingInCheck:
		return "move would leave the king in check"
	case ReasonInvalidPieceMovement:
		return "piece cannot move that way"
	default:
		return "unknown"
	}
}

// MoveError describes a rejected move. It matches ErrIllegalMove with errors.Is.
type MoveError struct {
	From, To board.Square
	Reason   InvalidMoveReason
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("%v: %s%s: %s", ErrIllegalMove, e.From, e.To, e.Reason)
}

func (e *MoveError) Unwrap() error {
	return ErrIllegalMove
}
