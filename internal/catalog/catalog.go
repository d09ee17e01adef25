package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var ErrDuplicateID = errors.New("duplicate catalog id")
var ErrMissingID = errors.New("catalog entry without id")

type Stat string

const (
	StatHP  Stat = "HP"
	StatATK Stat = "ATK"
	StatDEF Stat = "DEF"
)

type BoostUnit string

const (
	BoostPercent BoostUnit = "percent"
	BoostFlat    BoostUnit = "flat"
)

type SkillType string

const (
	SkillStatBoost        SkillType = "stat_boost"
	SkillStartingCards    SkillType = "starting_cards"
	SkillConditionalBoost SkillType = "conditional_boost"
)

// TargetAll is the only stat_boost scope the engine applies.
const TargetAll = "all"

type Stats struct {
	HP         int     `json:"hp"`
	ATK        int     `json:"atk"`
	DEF        int     `json:"def"`
	Evasion    float64 `json:"evasion"`
	CritChance float64 `json:"crit_chance"`
}

type StatBoost struct {
	Stat  Stat      `json:"stat"`
	Value float64   `json:"value"`
	Unit  BoostUnit `json:"unit"`
}

// LeaderSkill is a tagged variant keyed by Type. Only stat_boost carries
// behaviour; starting_cards and conditional_boost are kept as data.
type LeaderSkill struct {
	Type      SkillType   `json:"type"`
	Target    string      `json:"target,omitempty"`
	Boosts    []StatBoost `json:"boosts,omitempty"`
	Cards     []string    `json:"cards,omitempty"`
	Condition string      `json:"condition,omitempty"`
}

type LeaderData struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Skill LeaderSkill `json:"skill"`
}

type UnitData struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Rarity   string `json:"rarity"`
	Category string `json:"category"`
	Stats    Stats  `json:"stats"`
}

// Catalog is static reference data. It is never mutated after Load.
type Catalog struct {
	leaders   []LeaderData
	units     []UnitData
	leaderIdx map[string]int
	unitIdx   map[string]int
}

type document struct {
	Leaders []LeaderData `json:"leaders"`
	Units   []UnitData   `json:"units"`
}

func New(leaders []LeaderData, units []UnitData) (*Catalog, error) {
	c := &Catalog{
		leaders:   make([]LeaderData, 0, len(leaders)),
		units:     make([]UnitData, 0, len(units)),
		leaderIdx: make(map[string]int, len(leaders)),
		unitIdx:   make(map[string]int, len(units)),
	}
	for _, l := range leaders {
		if l.ID == "" {
			return nil, fmt.Errorf("leader: %w", ErrMissingID)
		}
		if _, ok := c.leaderIdx[l.ID]; ok {
			return nil, fmt.Errorf("leader %q: %w", l.ID, ErrDuplicateID)
		}
		if l.Name == "" {
			l.Name = DisplayName(l.ID)
		}
		c.leaderIdx[l.ID] = len(c.leaders)
		c.leaders = append(c.leaders, l)
	}
	for _, u := range units {
		if u.ID == "" {
			return nil, fmt.Errorf("unit: %w", ErrMissingID)
		}
		if _, ok := c.unitIdx[u.ID]; ok {
			return nil, fmt.Errorf("unit %q: %w", u.ID, ErrDuplicateID)
		}
		if u.Name == "" {
			u.Name = DisplayName(u.ID)
		}
		c.unitIdx[u.ID] = len(c.units)
		c.units = append(c.units, u)
	}
	return c, nil
}

func Load(r io.Reader) (*Catalog, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(doc.Leaders, doc.Units)
}

//go:embed catalog.json
var defaultCatalog []byte

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the embedded reference catalog, parsed once.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Load(bytes.NewReader(defaultCatalog))
	})
	return defaultCat, defaultErr
}

// AllLeaders returns a copy; callers may shuffle it freely.
func (c *Catalog) AllLeaders() []LeaderData {
	out := make([]LeaderData, len(c.leaders))
	copy(out, c.leaders)
	return out
}

func (c *Catalog) AllUnits() []UnitData {
	out := make([]UnitData, len(c.units))
	copy(out, c.units)
	return out
}

func (c *Catalog) Leader(id string) (LeaderData, bool) {
	i, ok := c.leaderIdx[id]
	if !ok {
		return LeaderData{}, false
	}
	return c.leaders[i], true
}

func (c *Catalog) Unit(id string) (UnitData, bool) {
	i, ok := c.unitIdx[id]
	if !ok {
		return UnitData{}, false
	}
	return c.units[i], true
}

var titler = cases.Title(language.English)

// DisplayName turns an id such as "fire_drake" into "Fire Drake".
func DisplayName(id string) string {
	s := strings.NewReplacer("_", " ", "-", " ").Replace(id)
	return titler.String(strings.Join(strings.Fields(s), " "))
}
