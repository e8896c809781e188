package board

import (
	"fmt"
	"strings"
)

// ToSAN converts a move to Standard Algebraic Notation.
// pos is the position before the move is played.
func (m Move) ToSAN(pos *Position) string {
	if m == NoMove {
		return "-"
	}

	from := m.From
	to := m.To
	piece := pos.PieceAt(from)

	if piece == NoPiece {
		return m.String() // Fallback to UCI
	}

	var sb strings.Builder

	if m.IsCastling() {
		if m.Flag == FlagCastleKingside {
			sb.WriteString("O-O")
		} else {
			sb.WriteString("O-O-O")
		}
	} else {
		pt := piece.Type()

		// Piece letter (not for pawns)
		if pt != Pawn {
			sb.WriteByte("PNBRQK"[pt])
			sb.WriteString(getDisambiguation(pos, m, piece))
		}

		// Capture marker
		if m.IsCapture(pos) {
			if pt == Pawn {
				// Pawn captures include the file of origin
				sb.WriteByte('a' + byte(from.Col()))
			}
			sb.WriteByte('x')
		}

		// Destination square
		sb.WriteString(to.String())

		// Promotion
		if m.IsPromotion() && m.Promotion.IsPromotionTarget() {
			sb.WriteByte('=')
			sb.WriteByte("PNBRQK"[m.Promotion])
		}
	}

	// Check/checkmate marker
	newPos := pos.Copy()
	newPos.SideToMove = piece.Color()
	newPos.MakeMove(m)
	switch newPos.ComputeStatus() {
	case Checkmate:
		sb.WriteByte('#')
	case Check:
		sb.WriteByte('+')
	}

	return sb.String()
}

// getDisambiguation returns the disambiguation string needed for a move.
func getDisambiguation(pos *Position, m Move, piece Piece) string {
	from := m.From

	// Find all other pieces of the same kind that can reach the same square
	var candidates []Square
	for sq := A8; sq < NoSquare; sq++ {
		if sq == from || pos.PieceAt(sq) != piece {
			continue
		}
		if _, ok := pos.LegalMovesFrom(sq).Find(sq, m.To); ok {
			candidates = append(candidates, sq)
		}
	}

	// No ambiguity
	if len(candidates) == 0 {
		return ""
	}

	sameFile := false
	sameRank := false
	for _, sq := range candidates {
		if sq.Col() == from.Col() {
			sameFile = true
		}
		if sq.Row() == from.Row() {
			sameRank = true
		}
	}

	if !sameFile {
		return string(rune('a' + from.Col()))
	}
	if !sameRank {
		return string(rune('8' - from.Row()))
	}
	return from.String()
}

// ParseSAN parses a SAN string and returns the matching legal move for the side to move.
func ParseSAN(s string, pos *Position) (Move, error) {
	orig := s
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, "+#!?")

	moves := pos.GenerateLegalMoves()

	// Handle castling
	if s == "O-O" || s == "0-0" || s == "O-O-O" || s == "0-0-0" {
		flag := FlagCastleKingside
		if len(s) == 5 {
			flag = FlagCastleQueenside
		}
		for _, m := range moves {
			if m.Flag == flag {
				return m, nil
			}
		}
		return NoMove, fmt.Errorf("illegal castling: %s", orig)
	}

	// Parse promotion
	promoPiece := NoPieceType
	if idx := strings.Index(s, "="); idx >= 0 && idx+1 < len(s) {
		promoPiece = PieceTypeFromChar(s[idx+1])
		s = s[:idx]
	}

	// Remove capture marker
	isCapture := strings.Contains(s, "x")
	s = strings.ReplaceAll(s, "x", "")

	// Determine piece type
	pt := Pawn
	if len(s) > 0 && s[0] >= 'A' && s[0] <= 'Z' {
		pt = PieceTypeFromChar(s[0])
		s = s[1:]
	}

	// Parse destination (last 2 characters)
	if len(s) < 2 {
		return NoMove, fmt.Errorf("invalid SAN: %s", orig)
	}
	dest, err := ParseSquare(s[len(s)-2:])
	if err != nil {
		return NoMove, err
	}
	s = s[:len(s)-2]

	// Parse disambiguation (file, rank, or both)
	disambigCol, disambigRow := -1, -1
	for _, c := range s {
		if c >= 'a' && c <= 'h' {
			disambigCol = int(c - 'a')
		} else if c >= '1' && c <= '8' {
			disambigRow = int('8' - c)
		}
	}

	for _, m := range moves {
		if m.To != dest || pos.PieceAt(m.From).Type() != pt {
			continue
		}
		if disambigCol >= 0 && m.From.Col() != disambigCol {
			continue
		}
		if disambigRow >= 0 && m.From.Row() != disambigRow {
			continue
		}
		if isCapture && !m.IsCapture(pos) {
			continue
		}
		if m.IsPromotion() {
			if !promoPiece.IsPromotionTarget() {
				continue
			}
			m = m.WithPromotion(promoPiece)
		}
		return m, nil
	}

	return NoMove, fmt.Errorf("illegal or unknown move: %s", orig)
}

// MovesToSAN converts a slice of moves to SAN notation.
func MovesToSAN(pos *Position, moves []Move) []string {
	result := make([]string, len(moves))
	p := pos.Copy()

	for i, m := range moves {
		result[i] = m.ToSAN(p)
		p.MakeMove(m)
	}

	return result
}
