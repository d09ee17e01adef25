package engine

import (
	"maps"
	"slices"

	"github.com/DoyleJ11/card-duel-backend/internal/catalog"
	"github.com/DoyleJ11/card-duel-backend/internal/loadout"
)

const MaxUnits = loadout.MaxUnits

// NoWinner is State.Winner until the battle ends.
const NoWinner = -1

type Phase string

const (
	PhaseWaiting Phase = "waiting"
	PhasePlay    Phase = "play"
	PhaseEnded   Phase = "ended"
)

type Unit struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Rarity    string        `json:"rarity"`
	Category  string        `json:"category"`
	Base      catalog.Stats `json:"base"`
	ATK       int           `json:"atk"`
	DEF       int           `json:"def"`
	CurrentHP int           `json:"current_hp"`
	MaxHP     int           `json:"max_hp"`
	Alive     bool          `json:"alive"`
	Position  int           `json:"position"`
}

type Leader struct {
	ID    string              `json:"id"`
	Name  string              `json:"name"`
	Skill catalog.LeaderSkill `json:"skill"`
}

type HandCard struct {
	ID          string           `json:"id"`
	Slot        int              `json:"slot"`
	Key         string           `json:"key"`
	Name        string           `json:"name"`
	Type        catalog.CardType `json:"type"`
	Value       int              `json:"value"`
	Description string           `json:"description"`
}

// PlayerSlot binds a seat to the connection occupying it and the identity
// backing that connection. UserID is empty for anonymous connections.
type PlayerSlot struct {
	Index        int    `json:"index"`
	ConnectionID string `json:"connection_id"`
	UserID       string `json:"user_id,omitempty"`
}

type Side struct {
	UserID string           `json:"user_id,omitempty"`
	Leader *Leader          `json:"leader,omitempty"`
	Units  [MaxUnits]*Unit  `json:"units"`
	Hand   map[int]HandCard `json:"hand"`
}

type State struct {
	Players        [2]*PlayerSlot `json:"players"`
	Sides          [2]Side        `json:"sides"`
	CurrentTurn    int            `json:"current_turn"`
	CurrentPlayer  int            `json:"current_player"`
	Phase          Phase          `json:"phase"`
	LastCardPlayed string         `json:"last_card_played,omitempty"`
	LastAction     string         `json:"last_action,omitempty"`
	Winner         int            `json:"winner"`
	Abandoned      bool           `json:"abandoned,omitempty"`
	// Invited restricts seats to these identities; empty leaves the battle open.
	Invited        []string       `json:"invited,omitempty"`
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s State) Clone() State {
	out := s
	for i, p := range s.Players {
		if p != nil {
			cp := *p
			out.Players[i] = &cp
		}
	}
	for i, side := range s.Sides {
		cs := Side{UserID: side.UserID}
		if side.Leader != nil {
			l := *side.Leader
			cs.Leader = &l
		}
		for pos, u := range side.Units {
			if u != nil {
				cu := *u
				cs.Units[pos] = &cu
			}
		}
		cs.Hand = maps.Clone(side.Hand)
		out.Sides[i] = cs
	}
	out.Invited = slices.Clone(s.Invited)
	return out
}

// SeatOf returns the index of the seat held by connectionID.
func (s *State) SeatOf(connectionID string) (int, bool) {
	for i, p := range s.Players {
		if p != nil && p.ConnectionID == connectionID {
			return i, true
		}
	}
	return 0, false
}

func (s *State) NumPlayers() int {
	n := 0
	for _, p := range s.Players {
		if p != nil {
			n++
		}
	}
	return n
}
