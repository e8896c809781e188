package board

import "fmt"

// MoveFlag marks the special-move bookkeeping a move carries.
type MoveFlag uint8

// Move flags
const (
	FlagNormal MoveFlag = iota
	FlagCastleKingside
	FlagCastleQueenside
	FlagEnPassant
	FlagPromotion
)

// String returns the flag name.
func (f MoveFlag) String() string {
	switch f {
	case FlagCastleKingside:
		return "castle-kingside"
	case FlagCastleQueenside:
		return "castle-queenside"
	case FlagEnPassant:
		return "en-passant"
	case FlagPromotion:
		return "promotion"
	default:
		return "none"
	}
}

// Move is a move from one square to another.
// Promotion is NoPieceType until a promotion choice has been made.
type Move struct {
	From      Square
	To        Square
	Flag      MoveFlag
	Promotion PieceType
}

// NoMove represents an invalid or null move.
var NoMove = Move{From: NoSquare, To: NoSquare, Promotion: NoPieceType}

// NewMove creates a normal move.
func NewMove(from, to Square) Move {
	return Move{From: from, To: to, Flag: FlagNormal, Promotion: NoPieceType}
}

// NewPromotion creates a pawn move onto the last rank. promo may be NoPieceType.
func NewPromotion(from, to Square, promo PieceType) Move {
	return Move{From: from, To: to, Flag: FlagPromotion, Promotion: promo}
}

// NewEnPassant creates an en passant capture move.
func NewEnPassant(from, to Square) Move {
	return Move{From: from, To: to, Flag: FlagEnPassant, Promotion: NoPieceType}
}

// NewCastling creates a castling move (king's movement).
func NewCastling(from, to Square) Move {
	flag := FlagCastleQueenside
	if to > from {
		flag = FlagCastleKingside
	}
	return Move{From: from, To: to, Flag: flag, Promotion: NoPieceType}
}

// IsPromotion returns true if this is a promotion move.
func (m Move) IsPromotion() bool {
	return m.Flag == FlagPromotion
}

// IsCastling returns true if this is a castling move.
func (m Move) IsCastling() bool {
	return m.Flag == FlagCastleKingside || m.Flag == FlagCastleQueenside
}

// IsEnPassant returns true if this is an en passant capture.
func (m Move) IsEnPassant() bool {
	return m.Flag == FlagEnPassant
}

// IsCapture returns true if this move captures a piece.
func (m Move) IsCapture(pos *Position) bool {
	if m.IsEnPassant() {
		return true
	}
	return !pos.IsEmpty(m.To)
}

// SameSquares reports whether m and o move between the same two squares.
func (m Move) SameSquares(o Move) bool {
	return m.From == o.From && m.To == o.To
}

// WithPromotion returns a copy of m promoting to pt.
func (m Move) WithPromotion(pt PieceType) Move {
	m.Promotion = pt
	return m
}

// String returns the UCI format of the move (e.g., "e2e4", "e7e8q").
func (m Move) String() string {
	if m == NoMove || !m.From.IsValid() || !m.To.IsValid() {
		return "0000"
	}

	s := m.From.String() + m.To.String()

	if m.IsPromotion() && m.Promotion.IsPromotionTarget() {
		s += string(m.Promotion.Char())
	}

	return s
}

// ParseMove parses a UCI format move string and derives its flag from pos.
func ParseMove(s string, pos *Position) (Move, error) {
	if len(s) < 4 || len(s) > 5 {
		return NoMove, fmt.Errorf("invalid move string: %s", s)
	}

	from, err := ParseSquare(s[0:2])
	if err != nil {
		return NoMove, err
	}

	to, err := ParseSquare(s[2:4])
	if err != nil {
		return NoMove, err
	}

	piece := pos.PieceAt(from)
	if piece == NoPiece {
		return NoMove, fmt.Errorf("no piece at %s", from)
	}

	// Check for promotion
	if len(s) == 5 {
		promo := PieceTypeFromChar(s[4])
		if !promo.IsPromotionTarget() || s[4] < 'a' {
			return NoMove, fmt.Errorf("invalid promotion piece: %c", s[4])
		}
		return NewPromotion(from, to, promo), nil
	}

	pt := piece.Type()

	// Castling
	if pt == King && abs(int(to)-int(from)) == 2 {
		return NewCastling(from, to), nil
	}

	// En passant
	if pt == Pawn && to == pos.EnPassant && from.Col() != to.Col() {
		return NewEnPassant(from, to), nil
	}

	// Promotion without a chosen piece
	if pt == Pawn && to.Row() == promotionRow(piece.Color()) {
		return NewPromotion(from, to, NoPieceType), nil
	}

	return NewMove(from, to), nil
}

// MoveList is an ordered list of moves in generation order.
type MoveList []Move

// Find returns the move in the list with the same origin and destination.
func (ml MoveList) Find(from, to Square) (Move, bool) {
	for _, m := range ml {
		if m.From == from && m.To == to {
			return m, true
		}
	}
	return NoMove, false
}

// Len returns the number of moves in the list.
func (ml MoveList) Len() int {
	return len(ml)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
