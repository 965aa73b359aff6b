// internal/game/turn.go
package game

import "github.com/rgillies/switchgame/internal/models"

// Direction is the order the active-seat pointer moves around the ring.
type Direction string

const (
	Clockwise        Direction = "clockwise"
	CounterClockwise Direction = "counter_clockwise"
)

// Reversed returns the opposite direction.
func (d Direction) Reversed() Direction {
	if d == Clockwise {
		return CounterClockwise
	}
	return Clockwise
}

// step returns +1 or -1 depending on direction.
func (d Direction) step() int {
	if d == CounterClockwise {
		return -1
	}
	return 1
}

// nextPlayingIndex walks the ring from i in the active direction and
// returns the next seat still in play. Returns i itself if it is the
// only playing seat, or -1 if none are.
func (s *State) nextPlayingIndex(i int) int {
	n := len(s.Players)
	if n == 0 {
		return -1
	}
	step := s.Direction.step()
	for off := 1; off <= n; off++ {
		idx := ((i+step*off)%n + n) % n
		if s.Players[idx].Status == models.StatusPlaying {
			return idx
		}
	}
	return -1
}

// AdvanceTurn moves the active-seat pointer one seat in the current
// direction, then consumes pending skips one seat at a time. A skipped
// seat holding a seven stops the walk: it becomes active with the skips
// still pending and must counter (or be forced to when it cannot draw
// past a held seven). Seats without a counter are walked over, one
// pending skip each.
func (s *State) AdvanceTurn() {
	idx := s.nextPlayingIndex(s.CurrentPlayerIndex)
	if idx < 0 {
		return
	}
	for s.PendingSkips > 0 {
		if s.seatHoldsSkipCounter(idx) {
			break
		}
		s.PendingSkips--
		idx = s.nextPlayingIndex(idx)
		if idx < 0 {
			return
		}
	}
	s.CurrentPlayerIndex = idx
}

// ApplySkip exposes the skip-consuming walk standalone: it steps the
// pointer as AdvanceTurn does but without the implicit single advance.
func (s *State) ApplySkip() {
	for s.PendingSkips > 0 {
		if s.seatHoldsSkipCounter(s.CurrentPlayerIndex) {
			return
		}
		s.PendingSkips--
		idx := s.nextPlayingIndex(s.CurrentPlayerIndex)
		if idx < 0 {
			return
		}
		s.CurrentPlayerIndex = idx
	}
}

func (s *State) seatHoldsSkipCounter(idx int) bool {
	for _, c := range s.Players[idx].Hand {
		if CanCounterSkip(c) {
			return true
		}
	}
	return false
}

// CheckWinner flips the seat at idx to won if its hand is empty,
// appending its id to the ordered winners list. The flip is
// irreversible and happens at most once per seat.
func (s *State) CheckWinner(idx int) {
	if idx < 0 || idx >= len(s.Players) {
		return
	}
	p := s.Players[idx]
	if p.Status == models.StatusPlaying && len(p.Hand) == 0 {
		p.Status = models.StatusWon
		s.Winners = append(s.Winners, p.ID)
	}
}

// ShouldEnd reports whether at most one seat is still playing.
func (s *State) ShouldEnd() bool {
	playing := 0
	for _, p := range s.Players {
		if p.Status == models.StatusPlaying {
			playing++
		}
	}
	return playing <= 1
}
