package engine

import (
	"fmt"
	"math/rand/v2"
)

// advanceTurn checks for a loser (seat 0 first) and either ends the battle or
// hands the turn to the other seat, which draws one card.
func advanceTurn(s *State, rng *rand.Rand) []Event {
	for i := range s.Sides {
		if defeated(&s.Sides[i]) {
			s.Phase = PhaseEnded
			s.Winner = opponent(i)
			s.LastAction = fmt.Sprintf("player %d wins", s.Winner)
			return []Event{{Type: EvtBattleEnded, Player: i, Winner: s.Winner}}
		}
	}

	s.CurrentPlayer = opponent(s.CurrentPlayer)
	s.CurrentTurn++
	events := []Event{{Type: EvtTurnAdvanced, Player: s.CurrentPlayer}}
	return append(events, draw(s, s.CurrentPlayer, 1, rng)...)
}
