package board

// Attack detection works backwards from the target square: it looks along
// each ray and offset for an attacker of the given color on the receiver's
// own board, so a simulated copy is always judged on its own squares.

// AttackersTo returns the squares holding pieces of color c that attack sq.
func (p *Position) AttackersTo(sq Square, c Color) []Square {
	var attackers []Square

	// Pawns attack diagonally forward; look one row behind sq from c's side.
	dir := pawnDirection(c)
	pawn := NewPiece(Pawn, c)
	for _, dc := range [2]int{-1, 1} {
		if from, ok := sq.Offset(-dir, dc); ok && p.Board[from] == pawn {
			attackers = append(attackers, from)
		}
	}

	knight := NewPiece(Knight, c)
	for _, o := range knightOffsets {
		if from, ok := sq.Offset(o.dr, o.dc); ok && p.Board[from] == knight {
			attackers = append(attackers, from)
		}
	}

	king := NewPiece(King, c)
	for _, o := range kingOffsets {
		if from, ok := sq.Offset(o.dr, o.dc); ok && p.Board[from] == king {
			attackers = append(attackers, from)
		}
	}

	attackers = p.sliderAttackers(attackers, sq, rookDirections[:], NewPiece(Rook, c), NewPiece(Queen, c))
	attackers = p.sliderAttackers(attackers, sq, bishopDirections[:], NewPiece(Bishop, c), NewPiece(Queen, c))
	return attackers
}

// sliderAttackers appends the first piece along each ray from sq if it is
// one of the two given sliders.
func (p *Position) sliderAttackers(dst []Square, sq Square, dirs []offset, slider, queen Piece) []Square {
	for _, d := range dirs {
		from, ok := sq.Offset(d.dr, d.dc)
		for ok {
			if piece := p.Board[from]; piece != NoPiece {
				if piece == slider || piece == queen {
					dst = append(dst, from)
				}
				break
			}
			from, ok = from.Offset(d.dr, d.dc)
		}
	}
	return dst
}

// IsSquareAttacked returns true if the square is attacked by the given color.
func (p *Position) IsSquareAttacked(sq Square, byColor Color) bool {
	if !sq.IsValid() || byColor >= NoColor {
		return false
	}
	return len(p.AttackersTo(sq, byColor)) > 0
}

// WouldLeaveKingAttacked plays m on a throwaway copy and reports whether c's
// king is attacked afterwards. A side without a king is never attacked.
func (p *Position) WouldLeaveKingAttacked(m Move, c Color) bool {
	cp := *p
	cp.MovePieces(m)
	ksq := cp.KingSquare(c)
	if ksq == NoSquare {
		return false
	}
	return cp.IsSquareAttacked(ksq, c.Other())
}

// IsKingAttacked reports whether c's king is attacked. False when c has no king.
func (p *Position) IsKingAttacked(c Color) bool {
	ksq := p.KingSquare(c)
	if ksq == NoSquare {
		return false
	}
	return p.IsSquareAttacked(ksq, c.Other())
}

// InCheck returns true if the side to move is in check.
func (p *Position) InCheck() bool {
	return p.IsKingAttacked(p.SideToMove)
}

// ComputeStatus derives the terminal status of the side to move.
// A side without a king is reported as ongoing.
func (p *Position) ComputeStatus() Status {
	if p.KingSquare(p.SideToMove) == NoSquare {
		return Ongoing
	}
	attacked := p.InCheck()
	hasMoves := p.HasLegalMoves()
	switch {
	case attacked && hasMoves:
		return Check
	case attacked:
		return Checkmate
	case hasMoves:
		return Ongoing
	default:
		return Stalemate
	}
}

// UpdateStatus recomputes and stores the status of the side to move.
func (p *Position) UpdateStatus() Status {
	p.Status = p.ComputeStatus()
	return p.Status
}

// IsCheckmate returns true if the position is checkmate.
func (p *Position) IsCheckmate() bool {
	return p.ComputeStatus() == Checkmate
}

// IsStalemate returns true if the position is stalemate.
func (p *Position) IsStalemate() bool {
	return p.ComputeStatus() == Stalemate
}
