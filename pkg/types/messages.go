package types

// Client -> Server, plaza connection (/ws/plaza)
// move:
//   x, y, z: number
//   rotation: number
//
// duelChallenge:
//   targetId: string // peer id from welcome/presence
//
// duelJoined:
//   battleSessionId: string // sent after the battle connection is open
//
// duelJoinFailed:
//   battleSessionId: string // drops the pending duel, no retry

// Client -> Server, battle connection (/ws/battle?session=<battleSessionId>)
// startGame: {} // needs both seats filled, phase "waiting"
//
// playCard:
//   cardIndex: number // hand slot
//   targetPosition?: number // board position 0..5
//
// endTurn: {} // always refused, a turn ends by playing a card

// Server -> Client, plaza
// welcome:
//   id: string // this connection's peer id
//
// presence:
//   peers: { id, position: { x, y, z, rotation }, linked }[]
//
// duelStart:
//   battleSessionId: string // sent to both peers, possibly more than once
//
// duelError:
//   message: string
