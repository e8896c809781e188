package board

type offset struct{ dr, dc int }

var (
	knightOffsets = [8]offset{
		{-2, -1}, {-2, 1}, {-1, -2}, {-1, 2},
		{1, -2}, {1, 2}, {2, -1}, {2, 1},
	}
	kingOffsets = [8]offset{
		{-1, -1}, {-1, 0}, {-1, 1},
		{0, -1}, {0, 1},
		{1, -1}, {1, 0}, {1, 1},
	}
	bishopDirections = [4]offset{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}
	rookDirections   = [4]offset{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
)

// pawnDirection returns the row step of c's pawns.
func pawnDirection(c Color) int {
	if c == White {
		return -1
	}
	return 1
}

func pawnStartRow(c Color) int {
	if c == White {
		return 6
	}
	return 1
}

func promotionRow(c Color) int {
	if c == White {
		return 0
	}
	return 7
}

// GenerateLegalMoves generates all legal moves for the side to move.
func (p *Position) GenerateLegalMoves() MoveList {
	var ml MoveList
	for sq := A8; sq < NoSquare; sq++ {
		if p.Board[sq].Color() == p.SideToMove {
			ml = append(ml, p.LegalMovesFrom(sq)...)
		}
	}
	return ml
}

// GeneratePseudoLegalMoves generates all pseudo-legal moves (may leave king in check).
func (p *Position) GeneratePseudoLegalMoves() MoveList {
	var ml MoveList
	for sq := A8; sq < NoSquare; sq++ {
		if p.Board[sq].Color() == p.SideToMove {
			ml = append(ml, p.PseudoLegalMovesFrom(sq)...)
		}
	}
	return ml
}

// LegalMovesFrom returns the legal moves of the piece on sq, whichever color
// it is. An empty square yields no moves.
func (p *Position) LegalMovesFrom(sq Square) MoveList {
	piece := p.Board[sq]
	if piece == NoPiece {
		return nil
	}
	pseudo := p.PseudoLegalMovesFrom(sq)
	legal := pseudo[:0]
	for _, m := range pseudo {
		if !p.WouldLeaveKingAttacked(m, piece.Color()) {
			legal = append(legal, m)
		}
	}
	return legal
}

// PseudoLegalMovesFrom returns the moves of the piece on sq that follow its
// movement pattern, ignoring whether its own king is left attacked.
func (p *Position) PseudoLegalMovesFrom(sq Square) MoveList {
	piece := p.Board[sq]
	if piece == NoPiece {
		return nil
	}
	us := piece.Color()
	var ml MoveList

	switch piece.Type() {
	case Pawn:
		ml = p.generatePawnMoves(ml, sq, us)
	case Knight:
		ml = p.generateStepMoves(ml, sq, us, knightOffsets[:])
	case Bishop:
		ml = p.generateSlidingMoves(ml, sq, us, bishopDirections[:])
	case Rook:
		ml = p.generateSlidingMoves(ml, sq, us, rookDirections[:])
	case Queen:
		ml = p.generateSlidingMoves(ml, sq, us, rookDirections[:])
		ml = p.generateSlidingMoves(ml, sq, us, bishopDirections[:])
	case King:
		ml = p.generateStepMoves(ml, sq, us, kingOffsets[:])
		ml = p.generateCastlingMoves(ml, sq, us)
	}
	return ml
}

// generatePawnMoves generates pushes, captures and en passant for the pawn on from.
func (p *Position) generatePawnMoves(ml MoveList, from Square, us Color) MoveList {
	dir := pawnDirection(us)
	lastRow := promotionRow(us)

	add := func(to Square) {
		if to.Row() == lastRow {
			ml = append(ml, NewPromotion(from, to, NoPieceType))
		} else {
			ml = append(ml, NewMove(from, to))
		}
	}

	// Single and double pushes
	if one, ok := from.Offset(dir, 0); ok && p.IsEmpty(one) {
		add(one)
		if from.Row() == pawnStartRow(us) {
			if two, ok := from.Offset(2*dir, 0); ok && p.IsEmpty(two) {
				ml = append(ml, NewMove(from, two))
			}
		}
	}

	// Captures
	for _, dc := range [2]int{-1, 1} {
		to, ok := from.Offset(dir, dc)
		if !ok {
			continue
		}
		if target := p.Board[to]; target != NoPiece && target.Color() != us {
			add(to)
			continue
		}
		if to == p.EnPassant && p.IsEmpty(to) {
			victim := p.Board[NewSquare(from.Row(), to.Col())]
			if victim == NewPiece(Pawn, us.Other()) {
				ml = append(ml, NewEnPassant(from, to))
			}
		}
	}
	return ml
}

// generateStepMoves generates knight or king single steps.
func (p *Position) generateStepMoves(ml MoveList, from Square, us Color, offsets []offset) MoveList {
	for _, o := range offsets {
		to, ok := from.Offset(o.dr, o.dc)
		if !ok {
			continue
		}
		if target := p.Board[to]; target == NoPiece || target.Color() != us {
			ml = append(ml, NewMove(from, to))
		}
	}
	return ml
}

// generateSlidingMoves ray-casts until the board edge, an own piece (excluded)
// or an enemy piece (included as a capture).
func (p *Position) generateSlidingMoves(ml MoveList, from Square, us Color, dirs []offset) MoveList {
	for _, d := range dirs {
		to, ok := from.Offset(d.dr, d.dc)
		for ok {
			target := p.Board[to]
			if target == NoPiece {
				ml = append(ml, NewMove(from, to))
			} else {
				if target.Color() != us {
					ml = append(ml, NewMove(from, to))
				}
				break
			}
			to, ok = to.Offset(d.dr, d.dc)
		}
	}
	return ml
}

// generateCastlingMoves generates castling moves for the king on from.
// The king's start, pass-through and destination squares must all be
// unattacked, each tested on the board the king would actually stand on.
func (p *Position) generateCastlingMoves(ml MoveList, from Square, us Color) MoveList {
	home := E1
	if us == Black {
		home = E8
	}
	if from != home {
		return ml
	}
	row := home.Row()
	rook := NewPiece(Rook, us)

	kingSide := p.CastlingRights.CanCastle(us, true) &&
		p.Board[NewSquare(row, 7)] == rook &&
		p.IsEmpty(NewSquare(row, 5)) && p.IsEmpty(NewSquare(row, 6))
	queenSide := p.CastlingRights.CanCastle(us, false) &&
		p.Board[NewSquare(row, 0)] == rook &&
		p.IsEmpty(NewSquare(row, 1)) && p.IsEmpty(NewSquare(row, 2)) && p.IsEmpty(NewSquare(row, 3))

	if !kingSide && !queenSide {
		return ml
	}
	// No castling out of check
	if p.IsSquareAttacked(from, us.Other()) {
		return ml
	}

	if kingSide && p.kingSafeOn(from, NewSquare(row, 5), us) && p.kingSafeOn(from, NewSquare(row, 6), us) {
		ml = append(ml, NewCastling(from, NewSquare(row, 6)))
	}
	if queenSide && p.kingSafeOn(from, NewSquare(row, 3), us) && p.kingSafeOn(from, NewSquare(row, 2), us) {
		ml = append(ml, NewCastling(from, NewSquare(row, 2)))
	}
	return ml
}

// kingSafeOn reports whether us's king, moved from ksq to sq on a copy of the
// board, would be unattacked there.
func (p *Position) kingSafeOn(ksq, sq Square, us Color) bool {
	cp := *p
	cp.Board[sq] = cp.Board[ksq]
	cp.Board[ksq] = NoPiece
	return !cp.IsSquareAttacked(sq, us.Other())
}

// HasLegalMoves returns true if the side to move has any legal moves.
func (p *Position) HasLegalMoves() bool {
	for sq := A8; sq < NoSquare; sq++ {
		if p.Board[sq].Color() == p.SideToMove && len(p.LegalMovesFrom(sq)) > 0 {
			return true
		}
	}
	return false
}

// Perft counts the number of leaf nodes at the given depth.
// A depth of zero or less counts the position itself.
func (p *Position) Perft(depth int) uint64 {
	if depth <= 0 {
		return 1
	}

	moves := p.GenerateLegalMoves()
	if depth == 1 {
		var n uint64
		for _, m := range moves {
			if m.IsPromotion() {
				n += 4 // one leaf per promotion piece
			} else {
				n++
			}
		}
		return n
	}

	var nodes uint64
	for _, m := range moves {
		if m.IsPromotion() {
			for _, pt := range [4]PieceType{Queen, Rook, Bishop, Knight} {
				p.Try(m.WithPromotion(pt), func() {
					nodes += p.Perft(depth - 1)
				})
			}
			continue
		}
		p.Try(m, func() {
			nodes += p.Perft(depth - 1)
		})
	}
	return nodes
}
