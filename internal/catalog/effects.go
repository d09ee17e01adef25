package catalog

type CardType string

const (
	CardBuffATK CardType = "buff_ATK"
	CardBuffDEF CardType = "buff_DEF"
	CardHeal    CardType = "heal"
	CardDamage  CardType = "damage"
	CardSpecial CardType = "special"
)

type CardEffect struct {
	Key         string   `json:"key"`
	Name        string   `json:"name"`
	Type        CardType `json:"type"`
	Value       int      `json:"value"`
	Description string   `json:"description"`
}

var effects = [...]CardEffect{
	{Key: "sharpen", Name: "Sharpen", Type: CardBuffATK, Value: 5, Description: "+5 ATK to an ally"},
	{Key: "war_cry", Name: "War Cry", Type: CardBuffATK, Value: 10, Description: "+10 ATK to an ally"},
	{Key: "berserk", Name: "Berserk", Type: CardBuffATK, Value: 15, Description: "+15 ATK to an ally"},
	{Key: "iron_skin", Name: "Iron Skin", Type: CardBuffDEF, Value: 5, Description: "+5 DEF to an ally"},
	{Key: "bulwark", Name: "Bulwark", Type: CardBuffDEF, Value: 10, Description: "+10 DEF to an ally"},
	{Key: "fortress", Name: "Fortress", Type: CardBuffDEF, Value: 15, Description: "+15 DEF to an ally"},
	{Key: "mend", Name: "Mend", Type: CardHeal, Value: 15, Description: "Heal an ally for 15"},
	{Key: "restore", Name: "Restore", Type: CardHeal, Value: 30, Description: "Heal an ally for 30"},
	{Key: "rejuvenate", Name: "Rejuvenate", Type: CardHeal, Value: 45, Description: "Heal an ally for 45"},
	{Key: "spark", Name: "Spark", Type: CardDamage, Value: 15, Description: "Deal 15 to an enemy"},
	{Key: "fireball", Name: "Fireball", Type: CardDamage, Value: 25, Description: "Deal 25 to an enemy"},
	{Key: "meteor", Name: "Meteor", Type: CardDamage, Value: 40, Description: "Deal 40 to an enemy"},
	{Key: "drain", Name: "Drain", Type: CardSpecial, Value: 20, Description: "Deal 20 to an enemy, heal the first wounded ally for half"},
	{Key: "soul_siphon", Name: "Soul Siphon", Type: CardSpecial, Value: 30, Description: "Deal 30 to an enemy, heal the first wounded ally for half"},
	{Key: "judgement", Name: "Judgement", Type: CardSpecial, Value: 40, Description: "Deal 40 to an enemy, heal the first wounded ally for half"},
}

// Effects returns the fixed card-effect catalog hands are drawn from.
func Effects() []CardEffect {
	out := make([]CardEffect, len(effects))
	copy(out, effects[:])
	return out
}
