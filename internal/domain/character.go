package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Stat names a character attribute used by checks and level-up allocation.
type Stat string

const (
	StatIntellect Stat = "intellect"
	StatCharisma  Stat = "charisma"
	StatWits      Stat = "wits"
	StatWillpower Stat = "willpower"
)

// AllStats lists the stats in display order.
var AllStats = []Stat{StatIntellect, StatCharisma, StatWits, StatWillpower}

// Valid reports whether s is one of the known stats.
func (s Stat) Valid() bool {
	switch s {
	case StatIntellect, StatCharisma, StatWits, StatWillpower:
		return true
	default:
		return false
	}
}

// Stats holds the four character attributes.
type Stats struct {
	Intellect int `json:"intellect"`
	Charisma  int `json:"charisma"`
	Wits      int `json:"wits"`
	Willpower int `json:"willpower"`
}

// Get returns the value of the named stat, 0 for unknown names.
func (s Stats) Get(stat Stat) int {
	switch stat {
	case StatIntellect:
		return s.Intellect
	case StatCharisma:
		return s.Charisma
	case StatWits:
		return s.Wits
	case StatWillpower:
		return s.Willpower
	default:
		return 0
	}
}

// Set assigns the named stat. Unknown names are ignored.
func (s *Stats) Set(stat Stat, v int) {
	switch stat {
	case StatIntellect:
		s.Intellect = v
	case StatCharisma:
		s.Charisma = v
	case StatWits:
		s.Wits = v
	case StatWillpower:
		s.Willpower = v
	}
}

// Item is an inventory entry. Items are matched by name, case-insensitively.
type Item struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Scenario describes what a character is currently dealing with.
type Scenario struct {
	Description               string `json:"description"`
	InteractingNPCName        string `json:"interactingNpcName,omitempty"`
	RequiredNextCharacterName string `json:"requiredNextCharacterName,omitempty"`
}

// Character is a participant of a story, playable or not.
type Character struct {
	ID                uuid.UUID         `json:"id"`
	Name              string            `json:"name"`
	Description       string            `json:"description,omitempty"`
	PortraitURL       string            `json:"portraitUrl,omitempty"`
	Health            int               `json:"health"`
	Happiness         int               `json:"happiness"`
	Money             int               `json:"money"`
	Stats             Stats             `json:"stats"`
	Level             int               `json:"level"`
	XP                int               `json:"xp"`
	UnspentStatPoints int               `json:"unspentStatPoints"`
	Items             []Item            `json:"items"`
	Skills            []string          `json:"skills"`
	Relationships     map[uuid.UUID]int `json:"relationships"`
	IsPlayable        bool              `json:"isPlayable"`
	Deactivated       bool              `json:"deactivated,omitempty"`
	CurrentScenario   *Scenario         `json:"currentScenario,omitempty"`
}

// ItemIndex returns the position of the named item or -1.
func (c *Character) ItemIndex(name string) int {
	name = strings.TrimSpace(name)
	for i, it := range c.Items {
		if strings.EqualFold(it.Name, name) {
			return i
		}
	}
	return -1
}

// HasSkill reports whether the character knows the skill.
func (c *Character) HasSkill(skill string) bool {
	skill = strings.TrimSpace(skill)
	for _, s := range c.Skills {
		if strings.EqualFold(s, skill) {
			return true
		}
	}
	return false
}

// CanAct reports whether the character may take turns.
func (c *Character) CanAct() bool {
	return c.IsPlayable && !c.Deactivated
}

// Clone returns a deep copy of the character.
func (c *Character) Clone() *Character {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Items = cloneSlice(c.Items)
	cp.Skills = cloneSlice(c.Skills)
	if c.Relationships != nil {
		cp.Relationships = make(map[uuid.UUID]int, len(c.Relationships))
		for k, v := range c.Relationships {
			cp.Relationships[k] = v
		}
	}
	if c.CurrentScenario != nil {
		sc := *c.CurrentScenario
		cp.CurrentScenario = &sc
	}
	return &cp
}

// cloneSlice copies s while keeping nil and empty distinct, so JSON snapshots of a clone match the source.
func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}
