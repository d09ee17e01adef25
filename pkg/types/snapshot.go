package types

// Server -> Client, battle
// state:
//   version: number // bumps on every accepted transition
//   state:
//     players: [{ index, connection_id, user_id? } | null, same]
//     sides: [{ user_id?, leader?, units: (Unit | null)[6], hand: { [slot]: HandCard } }, same]
//     current_turn: number
//     current_player: 0 | 1
//     phase: "waiting" | "play" | "ended"
//     last_card_played?: string
//     last_action?: string
//     winner: -1 | 0 | 1
//     abandoned?: boolean
//
// Unit: { id, name, rarity, category, base, atk, def, current_hp, max_hp, alive, position }
// HandCard: { id, slot, key, name, type, value, description }
//
// attackSequence: // arrives before the state it produced
//   attacks: { attacker_index, attacker_position, defender_index, defender_position, damage }[]
//
// error:
//   error: string // only to the connection whose command was refused
