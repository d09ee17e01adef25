package engine

import (
	"math"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/DoyleJ11/card-duel-backend/internal/catalog"
	"github.com/DoyleJ11/card-duel-backend/internal/loadout"
)

func newSide(userID string, lo loadout.Loadout) Side {
	side := Side{UserID: userID, Hand: map[int]HandCard{}}
	if lo.Leader.ID != "" {
		side.Leader = &Leader{ID: lo.Leader.ID, Name: lo.Leader.Name, Skill: lo.Leader.Skill}
	}
	for pos, data := range lo.Units {
		if pos >= MaxUnits {
			break
		}
		u := newUnit(data, pos)
		if side.Leader != nil {
			applyLeaderSkill(u, side.Leader.Skill)
		}
		side.Units[pos] = u
	}
	return side
}

func newUnit(data catalog.UnitData, pos int) *Unit {
	hp := max(0, data.Stats.HP)
	return &Unit{
		ID:        data.ID,
		Name:      data.Name,
		Rarity:    data.Rarity,
		Category:  data.Category,
		Base:      data.Stats,
		ATK:       data.Stats.ATK,
		DEF:       data.Stats.DEF,
		CurrentHP: hp,
		MaxHP:     hp,
		Alive:     hp > 0,
		Position:  pos,
	}
}

// applyLeaderSkill bakes a stat_boost targeting "all" into the unit's working
// stats. Other skill variants are carried as data only.
func applyLeaderSkill(u *Unit, skill catalog.LeaderSkill) {
	if skill.Type != catalog.SkillStatBoost || skill.Target != catalog.TargetAll {
		return
	}
	u.MaxHP = max(0, boosted(u.MaxHP, catalog.StatHP, skill.Boosts))
	u.CurrentHP = u.MaxHP
	u.Alive = u.CurrentHP > 0
	u.ATK = boosted(u.ATK, catalog.StatATK, skill.Boosts)
	u.DEF = boosted(u.DEF, catalog.StatDEF, skill.Boosts)
}

func boosted(v int, stat catalog.Stat, boosts []catalog.StatBoost) int {
	for _, b := range boosts {
		if b.Stat != stat {
			continue
		}
		if b.Unit == catalog.BoostPercent {
			return int(math.Floor(float64(v) * (100 + b.Value) / 100))
		}
		return v + int(b.Value)
	}
	return v
}

// draw deals k distinct card effects into the first free slots of the
// player's hand. The effect catalog itself is never depleted.
func draw(s *State, player, k int, rng *rand.Rand) []Event {
	hand := s.Sides[player].Hand
	if hand == nil {
		hand = map[int]HandCard{}
		s.Sides[player].Hand = hand
	}
	picks := loadout.Sample(rng, catalog.Effects(), k)
	for _, fx := range picks {
		slot := firstFreeSlot(hand)
		hand[slot] = HandCard{
			ID:          uuid.NewString(),
			Slot:        slot,
			Key:         fx.Key,
			Name:        fx.Name,
			Type:        fx.Type,
			Value:       fx.Value,
			Description: fx.Description,
		}
	}
	if len(picks) == 0 {
		return nil
	}
	return []Event{{Type: EvtCardsDrawn, Player: player, Count: len(picks)}}
}
