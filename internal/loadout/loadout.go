// Package loadout turns a saved deck and owned collection into the roster a
// player brings into one battle. Missing data never fails a match: every gap
// degrades to a random pick from the catalog.
package loadout

import (
	"math/rand/v2"
	"slices"

	"github.com/DoyleJ11/card-duel-backend/internal/catalog"
	"github.com/DoyleJ11/card-duel-backend/internal/store"
)

// MaxUnits is the board size per player.
const MaxUnits = 6

type Loadout struct {
	Leader catalog.LeaderData
	Units  []catalog.UnitData
}

// Resolve never fails. deck and owned may be nil.
func Resolve(rng *rand.Rand, deck *store.Deck, owned *store.Collection, cat *catalog.Catalog) Loadout {
	return Loadout{
		Leader: resolveLeader(rng, deck, owned, cat),
		Units:  resolveUnits(rng, deck, owned, cat),
	}
}

// Ready reports whether a deck can be brought into a duel: it exists, names
// exactly one leader and lists at least one unit.
func Ready(deck *store.Deck) bool {
	if deck == nil || len(deck.LeaderIDs) != 1 || deck.LeaderIDs[0] == "" {
		return false
	}
	return slices.ContainsFunc(deck.UnitIDs, func(id string) bool { return id != "" })
}

func resolveLeader(rng *rand.Rand, deck *store.Deck, owned *store.Collection, cat *catalog.Catalog) catalog.LeaderData {
	var ownedLeaders []string
	if owned != nil {
		ownedLeaders = owned.LeaderIDs
	}

	if deck != nil && len(deck.LeaderIDs) > 0 {
		want := deck.LeaderIDs[0]
		if len(ownedLeaders) == 0 || slices.Contains(ownedLeaders, want) {
			if l, ok := cat.Leader(want); ok {
				return l
			}
		}
	}

	if len(ownedLeaders) > 0 {
		candidates := make([]catalog.LeaderData, 0, len(ownedLeaders))
		for _, id := range ownedLeaders {
			if l, ok := cat.Leader(id); ok {
				candidates = append(candidates, l)
			}
		}
		if len(candidates) > 0 {
			return candidates[rng.IntN(len(candidates))]
		}
	}

	all := cat.AllLeaders()
	if len(all) == 0 {
		return catalog.LeaderData{}
	}
	return all[rng.IntN(len(all))]
}

func resolveUnits(rng *rand.Rand, deck *store.Deck, owned *store.Collection, cat *catalog.Catalog) []catalog.UnitData {
	var ids []string
	if deck != nil {
		ids = slices.Clone(deck.UnitIDs)
	}
	if owned != nil && len(owned.UnitIDs) > 0 {
		ids = slices.DeleteFunc(ids, func(id string) bool { return !slices.Contains(owned.UnitIDs, id) })
		if len(ids) == 0 {
			ids = slices.Clone(owned.UnitIDs)
		}
	}

	units := make([]catalog.UnitData, 0, MaxUnits)
	for _, id := range ids {
		if len(units) == MaxUnits {
			break
		}
		if u, ok := cat.Unit(id); ok {
			units = append(units, u)
		}
	}

	if len(units) < MaxUnits {
		var rest []catalog.UnitData
		for _, u := range cat.AllUnits() {
			taken := slices.ContainsFunc(units, func(sel catalog.UnitData) bool { return sel.ID == u.ID })
			if !taken {
				rest = append(rest, u)
			}
		}
		units = append(units, Sample(rng, rest, MaxUnits-len(units))...)
	}

	if len(units) == 0 {
		units = Sample(rng, cat.AllUnits(), MaxUnits)
	}
	return units
}

// Sample picks k elements uniformly without replacement using a partial
// Fisher–Yates pass over a copy of pool.
func Sample[T any](rng *rand.Rand, pool []T, k int) []T {
	if k <= 0 || len(pool) == 0 {
		return nil
	}
	p := slices.Clone(pool)
	k = min(k, len(p))
	for i := 0; i < k; i++ {
		j := i + rng.IntN(len(p)-i)
		p[i], p[j] = p[j], p[i]
	}
	return p[:k]
}
