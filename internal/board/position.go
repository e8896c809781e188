package board

import "fmt"

// CastlingRights represents the available castling options.
type CastlingRights uint8

const (
	WhiteKingSideCastle  CastlingRights = 1 << iota // K
	WhiteQueenSideCastle                            // Q
	BlackKingSideCastle                             // k
	BlackQueenSideCastle                            // q
	NoCastling           CastlingRights = 0
	AllCastling          CastlingRights = WhiteKingSideCastle | WhiteQueenSideCastle | BlackKingSideCastle | BlackQueenSideCastle
)

// String returns the FEN castling rights string.
func (cr CastlingRights) String() string {
	if cr == NoCastling {
		return "-"
	}
	s := ""
	if cr&WhiteKingSideCastle != 0 {
		s += "K"
	}
	if cr&WhiteQueenSideCastle != 0 {
		s += "Q"
	}
	if cr&BlackKingSideCastle != 0 {
		s += "k"
	}
	if cr&BlackQueenSideCastle != 0 {
		s += "q"
	}
	return s
}

// CanCastle returns true if the given side can castle in the given direction.
func (cr CastlingRights) CanCastle(c Color, kingSide bool) bool {
	return cr&castleFlag(c, kingSide) != 0
}

func castleFlag(c Color, kingSide bool) CastlingRights {
	if c == White {
		if kingSide {
			return WhiteKingSideCastle
		}
		return WhiteQueenSideCastle
	}
	if kingSide {
		return BlackKingSideCastle
	}
	return BlackQueenSideCastle
}

// Status is the terminal status of the side to move.
type Status uint8

const (
	Ongoing Status = iota
	Check
	Checkmate
	Stalemate
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case Check:
		return "check"
	case Checkmate:
		return "checkmate"
	case Stalemate:
		return "stalemate"
	default:
		return "ongoing"
	}
}

// IsTerminal reports whether the game has ended.
func (s Status) IsTerminal() bool {
	return s == Checkmate || s == Stalemate
}

// Position represents a complete chess position.
// It is a plain value: assigning it copies the whole board.
type Position struct {
	Board [64]Piece

	// Game state
	SideToMove     Color
	CastlingRights CastlingRights
	EnPassant      Square // Landing square of an en passant capture, NoSquare if none
	Status         Status
}

// NewPosition creates the starting position.
func NewPosition() *Position {
	pos, _ := ParseFEN(StartFEN)
	return pos
}

// NewEmptyPosition returns a board with no pieces, White to move.
func NewEmptyPosition() *Position {
	p := &Position{}
	p.Clear()
	return p
}

// Copy creates a deep copy of the position.
func (p *Position) Copy() *Position {
	newPos := *p
	return &newPos
}

// PieceAt returns the piece at the given square, or NoPiece if empty.
func (p *Position) PieceAt(sq Square) Piece {
	return p.Board[sq]
}

// IsEmpty returns true if the square is empty.
func (p *Position) IsEmpty(sq Square) bool {
	return p.Board[sq] == NoPiece
}

// SetPiece places a piece on a square, replacing whatever was there.
func (p *Position) SetPiece(piece Piece, sq Square) {
	p.Board[sq] = piece
}

// removePiece removes and returns the piece on a square.
func (p *Position) removePiece(sq Square) Piece {
	piece := p.Board[sq]
	p.Board[sq] = NoPiece
	return piece
}

// KingSquare returns the square of c's king, or NoSquare if it has none.
func (p *Position) KingSquare(c Color) Square {
	king := NewPiece(King, c)
	for sq := A8; sq < NoSquare; sq++ {
		if p.Board[sq] == king {
			return sq
		}
	}
	return NoSquare
}

// String returns a visual representation of the position.
func (p *Position) String() string {
	s := "\n"
	for row := 0; row < 8; row++ {
		s += fmt.Sprintf("%d  ", 8-row)
		for col := 0; col < 8; col++ {
			piece := p.PieceAt(NewSquare(row, col))
			if piece == NoPiece {
				s += ". "
			} else {
				s += piece.String() + " "
			}
		}
		s += "\n"
	}
	s += "\n   a b c d e f g h\n\n"
	s += fmt.Sprintf("Side to move: %s\n", p.SideToMove)
	s += fmt.Sprintf("Castling: %s\n", p.CastlingRights)
	s += fmt.Sprintf("En passant: %s\n", p.EnPassant)
	s += fmt.Sprintf("Status: %s\n", p.Status)
	return s
}

// Clear resets the position to an empty board.
func (p *Position) Clear() {
	*p = Position{EnPassant: NoSquare}
	for sq := range p.Board {
		p.Board[sq] = NoPiece
	}
}

// WithSideToMove returns a copy of p with c to move. When the side changes
// the en passant target is dropped, since it belonged to the other side.
func (p *Position) WithSideToMove(c Color) *Position {
	cp := p.Copy()
	if cp.SideToMove != c {
		cp.SideToMove = c
		cp.EnPassant = NoSquare
	}
	return cp
}

// MovePieces performs the board effects of m for the piece on m.From: it
// relocates the piece, removes any captured piece (the pawn beside m.To for
// en passant), moves the rook when castling, and updates castling rights and
// the en passant target. A pawn reaching the last rank is left unpromoted and
// the side to move is not changed. It returns the captured piece.
func (p *Position) MovePieces(m Move) Piece {
	piece := p.Board[m.From]
	if piece == NoPiece {
		return NoPiece
	}
	us := piece.Color()
	from, to := m.From, m.To

	captured := NoPiece
	if m.IsEnPassant() {
		capSq := NewSquare(from.Row(), to.Col())
		captured = p.removePiece(capSq)
	} else {
		captured = p.Board[to]
	}

	p.Board[to] = piece
	p.Board[from] = NoPiece

	if m.IsCastling() {
		rookFrom, rookTo := castlingRookSquares(m)
		p.Board[rookTo] = p.removePiece(rookFrom)
	}

	// Castling rights
	if piece.Type() == King {
		p.CastlingRights &^= castleFlag(us, true) | castleFlag(us, false)
	}
	p.clearRookRights(from)
	p.clearRookRights(to)

	// En passant target lives for exactly one ply
	p.EnPassant = NoSquare
	if piece.Type() == Pawn && abs(from.Row()-to.Row()) == 2 {
		p.EnPassant = NewSquare((from.Row()+to.Row())/2, from.Col())
	}

	return captured
}

// clearRookRights drops the castling right tied to a rook home square once
// anything moves from or onto it.
func (p *Position) clearRookRights(sq Square) {
	switch sq {
	case A1:
		p.CastlingRights &^= WhiteQueenSideCastle
	case H1:
		p.CastlingRights &^= WhiteKingSideCastle
	case A8:
		p.CastlingRights &^= BlackQueenSideCastle
	case H8:
		p.CastlingRights &^= BlackKingSideCastle
	}
}

// castlingRookSquares returns the rook's origin and destination for a castling move.
func castlingRookSquares(m Move) (Square, Square) {
	row := m.From.Row()
	if m.Flag == FlagCastleKingside {
		return NewSquare(row, 7), NewSquare(row, 5)
	}
	return NewSquare(row, 0), NewSquare(row, 3)
}

// Promote replaces the pawn on sq with a piece of type pt and the pawn's color.
func (p *Position) Promote(sq Square, pt PieceType) {
	c := p.Board[sq].Color()
	if c == NoColor {
		return
	}
	p.Board[sq] = NewPiece(pt, c)
}

// SwitchSide hands the move to the other side.
func (p *Position) SwitchSide() {
	p.SideToMove = p.SideToMove.Other()
}

// UndoInfo stores everything needed to take back a move.
type UndoInfo struct {
	Board          [64]Piece
	SideToMove     Color
	CastlingRights CastlingRights
	EnPassant      Square
	Status         Status
	CapturedPiece  Piece
}

// MakeMove applies a move to the position and returns undo information.
// Promotions use the move's piece, or a queen when none was chosen.
func (p *Position) MakeMove(m Move) UndoInfo {
	undo := UndoInfo{
		Board:          p.Board,
		SideToMove:     p.SideToMove,
		CastlingRights: p.CastlingRights,
		EnPassant:      p.EnPassant,
		Status:         p.Status,
	}

	undo.CapturedPiece = p.MovePieces(m)
	if m.IsPromotion() {
		promo := m.Promotion
		if !promo.IsPromotionTarget() {
			promo = Queen
		}
		p.Promote(m.To, promo)
	}
	p.SwitchSide()

	return undo
}

// UnmakeMove undoes a move using the stored undo information.
// Uses full position restoration.
func (p *Position) UnmakeMove(undo UndoInfo) {
	p.Board = undo.Board
	p.SideToMove = undo.SideToMove
	p.CastlingRights = undo.CastlingRights
	p.EnPassant = undo.EnPassant
	p.Status = undo.Status
}

// Try applies m, runs fn, and restores the position before returning,
// including when fn panics.
func (p *Position) Try(m Move, fn func()) {
	undo := p.MakeMove(m)
	defer p.UnmakeMove(undo)
	fn()
}
