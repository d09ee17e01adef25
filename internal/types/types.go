package types

import (
	"github.com/DoyleJ11/card-duel-backend/internal/engine"
	"github.com/DoyleJ11/card-duel-backend/internal/plaza"
)

// ClientMessage is any peer->server frame. Type selects which fields apply.
type ClientMessage struct {
	Type string `json:"type"`

	// move
	X        float64 `json:"x,omitempty"`
	Y        float64 `json:"y,omitempty"`
	Z        float64 `json:"z,omitempty"`
	Rotation float64 `json:"rotation,omitempty"`

	// duelChallenge
	TargetID string `json:"targetId,omitempty"`

	// duelJoined | duelJoinFailed
	BattleSessionID string `json:"battleSessionId,omitempty"`

	// playCard
	CardIndex      int  `json:"cardIndex,omitempty"`
	TargetPosition *int `json:"targetPosition,omitempty"`
}

type ServerMessage struct {
	Type string `json:"type"` // "welcome" | "presence" | "duelStart" | "duelError" | "state" | "attackSequence" | "error"

	ID              string           `json:"id,omitempty"`
	Peers           []plaza.PeerView `json:"peers,omitempty"`
	BattleSessionID string           `json:"battleSessionId,omitempty"`
	Message         string           `json:"message,omitempty"`

	Version int                  `json:"version,omitempty"`
	State   *engine.State        `json:"state,omitempty"`
	Attacks []engine.AttackEvent `json:"attacks,omitempty"`
	Error   string               `json:"error,omitempty"`
}

const (
	MsgMove           = "move"
	MsgDuelChallenge  = "duelChallenge"
	MsgDuelJoined     = "duelJoined"
	MsgDuelJoinFailed = "duelJoinFailed"
	MsgStartGame      = "startGame"
	MsgPlayCard       = "playCard"
	MsgEndTurn        = "endTurn"

	MsgWelcome        = "welcome"
	MsgPresence       = "presence"
	MsgDuelStart      = "duelStart"
	MsgDuelError      = "duelError"
	MsgState          = "state"
	MsgAttackSequence = "attackSequence"
	MsgError          = "error"
)
