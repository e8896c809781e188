// Package game drives a single chess game: it validates and applies moves,
// gates promotions, keeps the move history and reports the result.
package game

import (
	"github.com/go-logr/logr"

	"github.com/hailam/chesstutor/internal/board"
	"github.com/hailam/chesstutor/internal/engine"
)

// State is the phase of a game.
type State int

const (
	AwaitingMove State = iota
	AwaitingPromotion
	Finished
)

func (s State) String() string {
	switch s {
	case AwaitingMove:
		return "awaiting_move"
	case AwaitingPromotion:
		return "awaiting_promotion"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// MoveRecord is one completed ply in the history.
type MoveRecord struct {
	Move     board.Move
	Piece    board.PieceType
	Captured board.Piece // NoPiece when nothing was taken
	Notation string
}

// PendingPromotion identifies a pawn waiting on the last rank for its new piece.
type PendingPromotion struct {
	Square board.Square
	Color  board.Color
}

type pendingPly struct {
	PendingPromotion
	move     board.Move
	before   board.Position
	captured board.Piece
}

// Result is the outcome of a finished game.
type Result struct {
	Status board.Status
	Winner board.Color // NoColor for a draw
}

// String returns a human-readable result.
func (r Result) String() string {
	switch r.Status {
	case board.Checkmate:
		return r.Winner.String() + " wins by checkmate"
	case board.Stalemate:
		return "Draw by stalemate"
	default:
		return "In progress"
	}
}

// MoveResult describes the position after Apply or CompletePromotion.
type MoveResult struct {
	Snapshot         Snapshot
	IsCheck          bool
	IsCheckmate      bool
	IsStalemate      bool
	PromotionPending *PendingPromotion
	Record           *MoveRecord
}

// Snapshot is a read-only view of the game.
type Snapshot struct {
	Board      [64]board.Piece
	FEN        string
	SideToMove board.Color
	State      State
	Status     board.Status
	// Captured lists taken pieces by the color of the captured piece.
	Captured  [2][]board.Piece
	LastMove  board.Move
	Promotion *PendingPromotion
	Result    Result
	Moves     int
}

// Session owns the position and history of one game.
// A Session is not safe for concurrent use.
type Session struct {
	pos      *board.Position
	initial  board.Position
	history  []MoveRecord
	captured [2][]board.Piece
	lastMove board.Move
	pending  *pendingPly
	result   Result

	engine *engine.Engine
	log    logr.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l logr.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithPosition starts the session from pos instead of the initial position.
func WithPosition(pos *board.Position) Option {
	return func(s *Session) { s.initial = *pos }
}

// NewSession creates a game session. eng may be nil when no automated
// player or hints are needed.
func NewSession(eng *engine.Engine, opts ...Option) *Session {
	s := &Session{
		initial: *board.NewPosition(),
		engine:  eng,
		log:     logr.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Reset()
	return s
}

// Reset starts the game again from its initial position.
func (s *Session) Reset() {
	s.pos = new(board.Position)
	*s.pos = s.initial
	s.pos.UpdateStatus()
	s.history = nil
	s.captured = [2][]board.Piece{}
	s.lastMove = board.NoMove
	s.pending = nil
	s.result = Result{Status: board.Ongoing, Winner: board.NoColor}
	s.finishIfTerminal()
}

// State returns the current phase of the game.
func (s *Session) State() State {
	switch {
	case s.pending != nil:
		return AwaitingPromotion
	case s.pos.Status.IsTerminal():
		return Finished
	default:
		return AwaitingMove
	}
}

// Position returns a copy of the current position.
func (s *Session) Position() *board.Position {
	return s.pos.Copy()
}

// SideToMove returns the color whose turn it is.
func (s *Session) SideToMove() board.Color {
	return s.pos.SideToMove
}

// Result returns the game outcome; Status is Ongoing or Check while in progress.
func (s *Session) Result() Result {
	return s.result
}

// History returns a copy of the completed plies.
func (s *Session) History() []MoveRecord {
	out := make([]MoveRecord, len(s.history))
	copy(out, s.history)
	return out
}

// SANHistory returns the notation of every completed ply.
func (s *Session) SANHistory() []string {
	out := make([]string, len(s.history))
	for i, rec := range s.history {
		out[i] = rec.Notation
	}
	return out
}

// LegalMoves returns the legal moves of the piece on sq, or nothing while a
// promotion is pending or the game is over.
func (s *Session) LegalMoves(sq board.Square) board.MoveList {
	if s.State() != AwaitingMove {
		return nil
	}
	return s.pos.LegalMovesFrom(sq)
}

// Apply plays m for the side to move. A pawn reaching the last rank leaves
// the game awaiting CompletePromotion; the promotion piece in m is ignored.
// A rejected move returns a *MoveError and leaves the game unchanged.
func (s *Session) Apply(m board.Move) (MoveResult, error) {
	legal, err := s.validate(m.From, m.To)
	if err != nil {
		s.log.V(1).Info("move rejected", "move", m.String(), "reason", err.Error())
		return MoveResult{}, err
	}

	piece := s.pos.PieceAt(legal.From)
	before := *s.pos
	captured := s.pos.MovePieces(legal)

	if legal.IsPromotion() {
		s.pending = &pendingPly{
			PendingPromotion: PendingPromotion{Square: legal.To, Color: piece.Color()},
			move:             legal,
			before:           before,
			captured:         captured,
		}
		s.log.V(1).Info("promotion pending", "square", legal.To.String(), "color", piece.Color().String())
		res := MoveResult{Snapshot: s.Snapshot()}
		p := s.pending.PendingPromotion
		res.PromotionPending = &p
		return res, nil
	}

	return s.finishPly(legal, piece.Type(), captured, &before), nil
}

// CompletePromotion replaces the waiting pawn with a piece of type pt and
// finishes the ply.
func (s *Session) CompletePromotion(pt board.PieceType) (MoveResult, error) {
	if s.pending == nil {
		return MoveResult{}, ErrNoPromotionPending
	}
	if !pt.IsPromotionTarget() {
		return MoveResult{}, ErrInvalidPromotion
	}

	p := s.pending
	s.pending = nil
	s.pos.Promote(p.Square, pt)
	return s.finishPly(p.move.WithPromotion(pt), board.Pawn, p.captured, &p.before), nil
}

// validate resolves from/to to a legal move of the side to move.
func (s *Session) validate(from, to board.Square) (board.Move, error) {
	reject := func(r InvalidMoveReason) (board.Move, error) {
		return board.NoMove, &MoveError{From: from, To: to, Reason: r}
	}

	if !from.IsValid() || !to.IsValid() {
		return reject(ReasonInvalidPieceMovement)
	}
	switch s.State() {
	case AwaitingPromotion:
		return reject(ReasonPromotionPending)
	case Finished:
		return reject(ReasonGameOver)
	}

	piece := s.pos.PieceAt(from)
	if piece == board.NoPiece {
		return reject(ReasonNoPiece)
	}
	if piece.Color() != s.pos.SideToMove {
		return reject(ReasonNotYourTurn)
	}

	legal := s.pos.LegalMovesFrom(from)
	if m, ok := legal.Find(from, to); ok {
		return m, nil
	}
	return reject(s.invalidMoveReason(from, to))
}

// invalidMoveReason analyzes why a move from src to dst is invalid.
func (s *Session) invalidMoveReason(src, dst board.Square) InvalidMoveReason {
	piece := s.pos.PieceAt(src)

	// Check if destination has own piece
	destPiece := s.pos.PieceAt(dst)
	if destPiece != board.NoPiece && destPiece.Color() == piece.Color() {
		return ReasonBlockedByOwnPiece
	}

	// Generated but filtered out means it leaves the king attacked
	if _, ok := s.pos.PseudoLegalMovesFrom(src).Find(src, dst); ok {
		return ReasonWouldLeaveKingInCheck
	}
	return ReasonInvalidPieceMovement
}

// finishPly hands the move to the other side, records the ply and updates
// the game status. The board effects of m are already applied.
func (s *Session) finishPly(m board.Move, pt board.PieceType, captured board.Piece, before *board.Position) MoveResult {
	s.pos.SwitchSide()

	rec := MoveRecord{
		Move:     m,
		Piece:    pt,
		Captured: captured,
		Notation: m.ToSAN(before),
	}
	s.history = append(s.history, rec)
	if captured != board.NoPiece {
		c := captured.Color()
		s.captured[c] = append(s.captured[c], captured)
	}
	s.lastMove = m

	status := s.pos.UpdateStatus()
	s.log.V(1).Info("move applied", "ply", len(s.history), "move", rec.Notation, "status", status.String())
	s.finishIfTerminal()

	return MoveResult{
		Snapshot:    s.Snapshot(),
		IsCheck:     status == board.Check || status == board.Checkmate,
		IsCheckmate: status == board.Checkmate,
		IsStalemate: status == board.Stalemate,
		Record:      &rec,
	}
}

// finishIfTerminal records the result once the side to move is mated or stalemated.
func (s *Session) finishIfTerminal() {
	switch s.pos.Status {
	case board.Checkmate:
		s.result = Result{Status: board.Checkmate, Winner: s.pos.SideToMove.Other()}
	case board.Stalemate:
		s.result = Result{Status: board.Stalemate, Winner: board.NoColor}
	default:
		s.result = Result{Status: s.pos.Status, Winner: board.NoColor}
		return
	}
	s.log.Info("game over", "result", s.result.String(), "plies", len(s.history))
}

// Snapshot returns a read-only view of the game.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		Board:      s.pos.Board,
		FEN:        s.pos.ToFEN(),
		SideToMove: s.pos.SideToMove,
		State:      s.State(),
		Status:     s.pos.Status,
		LastMove:   s.lastMove,
		Result:     s.result,
		Moves:      len(s.history),
	}
	for c := range s.captured {
		snap.Captured[c] = append([]board.Piece(nil), s.captured[c]...)
	}
	if s.pending != nil {
		p := s.pending.PendingPromotion
		snap.Promotion = &p
	}
	return snap
}

// SelectAIMove asks the engine for color's move at difficulty d. It reports
// false when there is no engine, when the game is not awaiting a move, or
// when color has no legal moves. The game itself is not changed.
func (s *Session) SelectAIMove(color board.Color, d engine.Difficulty) (board.Move, bool) {
	if s.engine == nil || s.State() != AwaitingMove {
		return board.NoMove, false
	}
	return s.engine.SelectMoveAt(s.pos, color, d)
}

// PlayAIMove selects and applies the move for the side to move, completing a
// promotion with the engine's choice or a queen.
func (s *Session) PlayAIMove(d engine.Difficulty) (MoveResult, bool, error) {
	m, ok := s.SelectAIMove(s.pos.SideToMove, d)
	if !ok {
		return MoveResult{}, false, nil
	}
	res, err := s.Apply(m)
	if err != nil {
		return MoveResult{}, false, err
	}
	if res.PromotionPending != nil {
		pt := m.Promotion
		if !pt.IsPromotionTarget() {
			pt = board.Queen
		}
		res, err = s.CompletePromotion(pt)
		if err != nil {
			return MoveResult{}, false, err
		}
	}
	return res, true, nil
}

// RankHints returns up to topN candidate moves for color, best first.
func (s *Session) RankHints(color board.Color, topN int) []engine.ScoredMove {
	if s.engine == nil || s.State() != AwaitingMove {
		return nil
	}
	return s.engine.RankHints(s.pos, color, topN)
}

// Replay rebuilds the game from its initial position by applying the
// recorded history, returning the resulting position.
func (s *Session) Replay() (*board.Position, error) {
	r := NewSession(nil, WithPosition(&s.initial))
	for _, rec := range s.history {
		res, err := r.Apply(rec.Move)
		if err != nil {
			return nil, err
		}
		if res.PromotionPending != nil {
			if _, err := r.CompletePromotion(rec.Move.Promotion); err != nil {
				return nil, err
			}
		}
	}
	if s.pending != nil {
		if _, err := r.Apply(s.pending.move); err != nil {
			return nil, err
		}
	}
	return r.Position(), nil
}
