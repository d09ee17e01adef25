package engine

import "github.com/DoyleJ11/card-duel-backend/internal/catalog"

// applyCard resolves a card effect. A missing or out-of-range target makes
// the card a no-op; it is still consumed by the caller.
func applyCard(s *State, player int, card HandCard, target *int) {
	if target == nil || !validPosition(*target) {
		return
	}
	own := s.Sides[player].Units[*target]
	enemy := s.Sides[opponent(player)].Units[*target]

	switch card.Type {
	case catalog.CardBuffATK:
		if own != nil && own.Alive {
			own.ATK += card.Value
		}
	case catalog.CardBuffDEF:
		if own != nil && own.Alive {
			own.DEF += card.Value
		}
	case catalog.CardHeal:
		heal(own, card.Value)
	case catalog.CardDamage:
		hit(enemy, card.Value)
	case catalog.CardSpecial:
		hit(enemy, card.Value)
		heal(firstWounded(&s.Sides[player]), card.Value/2)
	}
}

func hit(u *Unit, dmg int) {
	if u == nil || !u.Alive {
		return
	}
	u.CurrentHP = max(0, u.CurrentHP-dmg)
	if u.CurrentHP == 0 {
		u.Alive = false
	}
}

func heal(u *Unit, amount int) {
	if u == nil || !u.Alive {
		return
	}
	u.CurrentHP = min(u.CurrentHP+amount, u.MaxHP)
}

// firstWounded is the lowest-position living ally below max HP.
func firstWounded(side *Side) *Unit {
	for _, u := range side.Units {
		if u != nil && u.Alive && u.CurrentHP < u.MaxHP {
			return u
		}
	}
	return nil
}

// attackDamage never drops below 1.
func attackDamage(attacker, defender *Unit) int {
	return max(1, attacker.ATK-defender.DEF/2)
}

// attackExchange has every living unit of the acting side strike the front
// living enemy in board order, re-targeting front to back after each kill.
func attackExchange(s *State, attacker int) []AttackEvent {
	defender := opponent(attacker)
	target := firstAlive(&s.Sides[defender])
	if target == nil {
		return nil
	}

	var seq []AttackEvent
	for _, a := range s.Sides[attacker].Units {
		if a == nil || !a.Alive {
			continue
		}
		dmg := attackDamage(a, target)
		hit(target, dmg)
		seq = append(seq, AttackEvent{
			AttackerIndex:    attacker,
			AttackerPosition: a.Position,
			DefenderIndex:    defender,
			DefenderPosition: target.Position,
			Damage:           dmg,
		})
		if !target.Alive {
			target = firstAlive(&s.Sides[defender])
			if target == nil {
				break
			}
		}
	}
	return seq
}
