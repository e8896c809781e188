package httpx

import (
	"time"

	"github.com/hailam/chesstutor/internal/game"
)

// scheduleAILocked arms a timer for the computer's move when it is the
// computer's turn and no move is already scheduled. s.mu must be held.
func (s *Server) scheduleAILocked() {
	if s.closed || s.thinking {
		return
	}
	if s.session.State() != game.AwaitingMove || s.session.SideToMove() == s.prefs.Color() {
		return
	}
	s.gen++
	gen := s.gen
	s.thinking = true
	s.timer = time.AfterFunc(s.prefs.AIDelay(), func() { s.playAI(gen) })
}

// cancelAILocked drops a scheduled computer move. A timer that already
// fired sees a newer generation and does nothing. s.mu must be held.
func (s *Server) cancelAILocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.thinking = false
}

func (s *Server) playAI(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.closed {
		return
	}
	s.thinking = false
	s.timer = nil

	start := time.Now()
	res, ok, err := s.session.PlayAIMove(s.prefs.Difficulty)
	switch {
	case err != nil:
		s.log.Error(err, "computer move rejected")
	case !ok:
		s.log.V(1).Info("computer has no move")
	default:
		s.log.V(1).Info("computer moved",
			"move", res.Record.Notation,
			"difficulty", s.prefs.Difficulty.String(),
			"elapsed", time.Since(start))
	}
	if err != nil || !ok {
		// Nothing changed that another timer could fix.
		s.recordIfFinishedLocked()
		s.hub.broadcast(s.viewLocked())
		return
	}
	s.afterChangeLocked()
}
