package engine

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/DoyleJ11/card-duel-backend/internal/loadout"
)

var ErrWrongTurn = errors.New("invalid turn")
var ErrWrongPhase = errors.New("not allowed in this phase")
var ErrNotEnoughPlayers = errors.New("battle needs exactly two players")
var ErrBattleFull = errors.New("battle is full")
var ErrAlreadyJoined = errors.New("already seated")
var ErrUnknownPlayer = errors.New("not seated in this battle")
var ErrMustPlayCard = errors.New("a card must be played before the turn can pass")
var ErrAbandoned = errors.New("battle was abandoned")
var ErrBattleEnded = errors.New("battle already ended")
var ErrUnsupportedCommand = errors.New("unsupported command")
var ErrNotInvited = errors.New("not invited to this battle")

// StartingHand is the number of cards each player draws at battle start.
const StartingHand = 5

type CommandType string

const (
	CmdJoin      CommandType = "Join"
	CmdLeave     CommandType = "Leave"
	CmdStartGame CommandType = "StartGame"
	CmdPlayCard  CommandType = "PlayCard"
	CmdEndTurn   CommandType = "EndTurn"
)

/*
	CmdJoin      -> EvtPlayerJoined
	CmdLeave     -> EvtPlayerLeft
	CmdStartGame -> EvtBattleStarted -> EvtCardsDrawn x2
	CmdPlayCard  -> EvtCardPlayed -> EvtAttack* -> EvtBattleEnded
	                                            or EvtTurnAdvanced -> EvtCardsDrawn
	CmdEndTurn   -> always ErrMustPlayCard
*/

type Command struct {
	Type         CommandType
	Player       int
	ConnectionID string
	UserID       string
	Slot         int
	Target       *int
	Loadouts     [2]loadout.Loadout
}

type EventType string

const (
	EvtPlayerJoined  EventType = "PlayerJoined"
	EvtPlayerLeft    EventType = "PlayerLeft"
	EvtBattleStarted EventType = "BattleStarted"
	EvtCardsDrawn    EventType = "CardsDrawn"
	EvtCardPlayed    EventType = "CardPlayed"
	EvtAttack        EventType = "Attack"
	EvtTurnAdvanced  EventType = "TurnAdvanced"
	EvtBattleEnded   EventType = "BattleEnded"
)

type AttackEvent struct {
	AttackerIndex    int `json:"attacker_index"`
	AttackerPosition int `json:"attacker_position"`
	DefenderIndex    int `json:"defender_index"`
	DefenderPosition int `json:"defender_position"`
	Damage           int `json:"damage"`
}

type Event struct {
	Type   EventType
	Player int
	CardID string
	Count  int
	Attack AttackEvent
	Winner int
}

// Apply runs one command against s. A rejected command returns an error and
// leaves s untouched. A command naming a hand slot or seat that does not exist
// is a no-op: nil events and nil error.
func Apply(s *State, cmd Command, rng *rand.Rand) ([]Event, error) {
	switch cmd.Type {
	case CmdJoin:
		return join(s, cmd)
	case CmdLeave:
		return leave(s, cmd)
	case CmdStartGame:
		return start(s, cmd, rng)
	case CmdPlayCard:
		return playCard(s, cmd, rng)
	case CmdEndTurn:
		return nil, ErrMustPlayCard
	default:
		return nil, ErrUnsupportedCommand
	}
}

// CanStart reports whether StartGame would be accepted, so callers can skip
// loadout I/O for a battle that cannot start.
func CanStart(s *State) error {
	if s.Phase != PhaseWaiting {
		return ErrWrongPhase
	}
	if s.NumPlayers() != 2 {
		return ErrNotEnoughPlayers
	}
	return nil
}

func join(s *State, cmd Command) ([]Event, error) {
	if s.Phase != PhaseWaiting {
		return nil, ErrWrongPhase
	}
	if _, ok := s.SeatOf(cmd.ConnectionID); ok {
		return nil, ErrAlreadyJoined
	}
	if len(s.Invited) > 0 && (cmd.UserID == "" || !slices.Contains(s.Invited, cmd.UserID)) {
		return nil, ErrNotInvited
	}
	for _, p := range s.Players {
		if p != nil && cmd.UserID != "" && p.UserID == cmd.UserID {
			return nil, ErrAlreadyJoined
		}
	}
	for i, p := range s.Players {
		if p == nil {
			s.Players[i] = &PlayerSlot{Index: i, ConnectionID: cmd.ConnectionID, UserID: cmd.UserID}
			s.LastAction = fmt.Sprintf("player %d joined", i)
			return []Event{{Type: EvtPlayerJoined, Player: i}}, nil
		}
	}
	return nil, ErrBattleFull
}

// leave frees the seat. Leaving a battle in progress abandons it.
func leave(s *State, cmd Command) ([]Event, error) {
	if !validSeat(cmd.Player) || s.Players[cmd.Player] == nil {
		return nil, nil
	}
	s.Players[cmd.Player] = nil
	if s.Phase == PhasePlay {
		s.Abandoned = true
	}
	s.LastAction = fmt.Sprintf("player %d left", cmd.Player)
	return []Event{{Type: EvtPlayerLeft, Player: cmd.Player}}, nil
}

func start(s *State, cmd Command, rng *rand.Rand) ([]Event, error) {
	if err := CanStart(s); err != nil {
		return nil, err
	}
	if !validSeat(cmd.Player) || s.Players[cmd.Player] == nil {
		return nil, ErrUnknownPlayer
	}

	for i := range s.Sides {
		s.Sides[i] = newSide(s.Players[i].UserID, cmd.Loadouts[i])
	}
	s.CurrentPlayer = rng.IntN(2)
	s.CurrentTurn = 1
	s.Phase = PhasePlay
	s.LastAction = fmt.Sprintf("battle started, player %d goes first", s.CurrentPlayer)

	events := []Event{{Type: EvtBattleStarted, Player: s.CurrentPlayer}}
	for i := range s.Sides {
		events = append(events, draw(s, i, StartingHand, rng)...)
	}
	return events, nil
}

func playCard(s *State, cmd Command, rng *rand.Rand) ([]Event, error) {
	switch {
	case s.Phase == PhaseEnded:
		return nil, ErrBattleEnded
	case s.Phase != PhasePlay:
		return nil, ErrWrongPhase
	case s.Abandoned:
		return nil, ErrAbandoned
	case !validSeat(cmd.Player) || s.Players[cmd.Player] == nil:
		return nil, ErrUnknownPlayer
	case cmd.Player != s.CurrentPlayer:
		return nil, ErrWrongTurn
	}

	hand := s.Sides[cmd.Player].Hand
	card, ok := hand[cmd.Slot]
	if !ok {
		return nil, nil
	}

	applyCard(s, cmd.Player, card, cmd.Target)
	delete(hand, cmd.Slot)
	s.LastCardPlayed = card.Name
	s.LastAction = fmt.Sprintf("player %d played %s", cmd.Player, card.Name)

	events := []Event{{Type: EvtCardPlayed, Player: cmd.Player, CardID: card.ID}}
	for _, a := range attackExchange(s, cmd.Player) {
		events = append(events, Event{Type: EvtAttack, Player: cmd.Player, Attack: a})
	}
	return append(events, advanceTurn(s, rng)...), nil
}
