// Package ledger owns per-character numeric state and inventory, keeping every value within bounds.
package ledger

import (
	"fmt"
	"sort"
	"strings"

	"novel-engine/internal/config"
	"novel-engine/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Result describes what a delta actually did once clamped.
type Result struct {
	CharacterID  uuid.UUID
	LevelsGained int
	// ItemsMissing lists requested removals for items the character did not hold.
	ItemsMissing []string
	// Clamped names the fields whose requested value had to be corrected.
	Clamped []string
}

// Ledger applies character deltas.
type Ledger struct {
	rules  config.CharacterRules
	logger *zap.Logger
}

func New(rules config.CharacterRules, logger *zap.Logger) *Ledger {
	return &Ledger{rules: rules, logger: logger.Named("Ledger")}
}

// NewCharacter creates a character with the starting values from the rules.
func (l *Ledger) NewCharacter(name, description string, playable bool) *domain.Character {
	c := &domain.Character{
		ID:            uuid.New(),
		Name:          strings.TrimSpace(name),
		Description:   strings.TrimSpace(description),
		Health:        l.rules.StartingHealth,
		Happiness:     l.rules.StartingHappiness,
		Money:         l.rules.StartingMoney,
		Level:         1,
		Items:         []domain.Item{},
		Skills:        []string{},
		Relationships: map[uuid.UUID]int{},
		IsPlayable:    playable,
	}
	for _, s := range domain.AllStats {
		c.Stats.Set(s, l.rules.StartingStat)
	}
	return c
}

// Normalize clamps every field of c into range. It is used on characters that come from outside the engine.
func (l *Ledger) Normalize(c *domain.Character) {
	var clamped []string
	c.Health = l.clampField("health", c.Health, 0, l.rules.HealthMax, &clamped)
	c.Happiness = l.clampField("happiness", c.Happiness, 0, l.rules.HappinessMax, &clamped)
	c.Money = l.clampField("money", c.Money, 0, -1, &clamped)
	c.XP = l.clampField("xp", c.XP, 0, -1, &clamped)
	c.UnspentStatPoints = l.clampField("unspentStatPoints", c.UnspentStatPoints, 0, -1, &clamped)
	for _, s := range domain.AllStats {
		c.Stats.Set(s, l.clampField(string(s), c.Stats.Get(s), 0, l.rules.StatMax, &clamped))
	}
	if c.Level < 1 {
		c.Level = 1
	}
	if lvl := l.LevelFor(c.XP); lvl > c.Level {
		c.Level = lvl
	}
	if c.Items == nil {
		c.Items = []domain.Item{}
	}
	if c.Skills == nil {
		c.Skills = []string{}
	}
	if c.Relationships == nil {
		c.Relationships = map[uuid.UUID]int{}
	}
	if len(clamped) > 0 {
		l.logger.Warn("Character values out of range were clamped",
			zap.Stringer("characterID", c.ID), zap.Strings("fields", clamped))
	}
}

// LevelFor returns the level reached with the given total XP.
func (l *Ledger) LevelFor(xp int) int {
	level := 1
	for _, threshold := range l.rules.LevelThresholds {
		if xp < threshold {
			break
		}
		level++
	}
	return level
}

// ApplyDelta applies d to c, clamping every numeric field to its valid range.
// Removing an item the character does not hold is a no-op.
func (l *Ledger) ApplyDelta(c *domain.Character, d domain.CharacterDelta) Result {
	res := Result{CharacterID: c.ID}

	if d.Health != nil {
		c.Health = l.clampField("health", c.Health+*d.Health, 0, l.rules.HealthMax, &res.Clamped)
	}
	if d.Happiness != nil {
		c.Happiness = l.clampField("happiness", c.Happiness+*d.Happiness, 0, l.rules.HappinessMax, &res.Clamped)
	}
	if d.Money != nil {
		c.Money = l.clampField("money", c.Money+*d.Money, 0, -1, &res.Clamped)
	}
	for _, stat := range sortedStats(d.Stats) {
		if !stat.Valid() {
			res.Clamped = append(res.Clamped, string(stat))
			continue
		}
		c.Stats.Set(stat, l.clampField(string(stat), c.Stats.Get(stat)+d.Stats[stat], 0, l.rules.StatMax, &res.Clamped))
	}
	if d.XP != nil {
		c.XP = l.clampField("xp", c.XP+*d.XP, 0, -1, &res.Clamped)
		res.LevelsGained = l.levelUp(c)
	}

	for _, item := range d.ItemsGained {
		item.Name = strings.TrimSpace(item.Name)
		if item.Name == "" || c.ItemIndex(item.Name) >= 0 {
			continue
		}
		c.Items = append(c.Items, item)
	}
	for _, name := range d.ItemsLost {
		idx := c.ItemIndex(name)
		if idx < 0 {
			res.ItemsMissing = append(res.ItemsMissing, name)
			continue
		}
		c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	}
	if skill := strings.TrimSpace(d.SkillGained); skill != "" && !c.HasSkill(skill) {
		c.Skills = append(c.Skills, skill)
	}

	if len(res.Clamped) > 0 {
		l.logger.Warn("Delta produced out-of-range values, clamped",
			zap.Stringer("characterID", c.ID), zap.Strings("fields", res.Clamped))
	}
	if len(res.ItemsMissing) > 0 {
		l.logger.Debug("Ignoring removal of items not in inventory",
			zap.Stringer("characterID", c.ID), zap.Strings("items", res.ItemsMissing))
	}
	return res
}

// ApplyProposedDelta caps the magnitude of a narrator-proposed delta before applying it.
func (l *Ledger) ApplyProposedDelta(c *domain.Character, d domain.CharacterDelta) Result {
	capped := d
	capped.Health = capPtr(d.Health, -l.rules.MaxHealthDelta, l.rules.MaxHealthDelta)
	capped.Happiness = capPtr(d.Happiness, -l.rules.MaxHappinessDelta, l.rules.MaxHappinessDelta)
	capped.Money = capPtr(d.Money, -l.rules.MaxMoneyDelta, l.rules.MaxMoneyDelta)
	capped.XP = capPtr(d.XP, 0, l.rules.MaxXPGain)
	if len(d.Stats) > 0 {
		capped.Stats = make(map[domain.Stat]int, len(d.Stats))
		for s, v := range d.Stats {
			capped.Stats[s] = clamp(v, -l.rules.MaxStatDelta, l.rules.MaxStatDelta)
		}
	}
	return l.ApplyDelta(c, capped)
}

// ApplyToStory resolves the delta's character reference within the story and applies it as a proposal.
func (l *Ledger) ApplyToStory(story *domain.Story, d domain.CharacterDelta) (Result, error) {
	c := story.FindCharacter(d.Character)
	if c == nil {
		return Result{}, fmt.Errorf("%w: %q", domain.ErrCharacterNotFound, d.Character)
	}
	return l.ApplyProposedDelta(c, d), nil
}

// SpendStatPoint moves one unspent point into the given stat.
func (l *Ledger) SpendStatPoint(c *domain.Character, stat domain.Stat) error {
	if !stat.Valid() {
		return fmt.Errorf("%w: unknown stat %q", domain.ErrValidation, stat)
	}
	if c.UnspentStatPoints <= 0 {
		return fmt.Errorf("%w: no unspent stat points", domain.ErrInsufficientResource)
	}
	if c.Stats.Get(stat) >= l.rules.StatMax {
		return fmt.Errorf("%w: %s is already at maximum", domain.ErrValidation, stat)
	}
	c.UnspentStatPoints--
	c.Stats.Set(stat, c.Stats.Get(stat)+1)
	return nil
}

func (l *Ledger) levelUp(c *domain.Character) int {
	newLevel := l.LevelFor(c.XP)
	if newLevel <= c.Level {
		return 0
	}
	gained := newLevel - c.Level
	c.Level = newLevel
	c.UnspentStatPoints += gained * l.rules.StatPointsPerLevel
	l.logger.Info("Character levelled up",
		zap.Stringer("characterID", c.ID), zap.Int("level", newLevel), zap.Int("unspentStatPoints", c.UnspentStatPoints))
	return gained
}

// clampField clamps v into [lo, hi]; hi < 0 means no upper bound. Corrections are recorded in clamped.
func (l *Ledger) clampField(name string, v, lo, hi int, clamped *[]string) int {
	out := v
	if out < lo {
		out = lo
	}
	if hi >= 0 && out > hi {
		out = hi
	}
	if out != v {
		*clamped = append(*clamped, name)
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func capPtr(v *int, lo, hi int) *int {
	if v == nil {
		return nil
	}
	c := clamp(*v, lo, hi)
	return &c
}

func sortedStats(m map[domain.Stat]int) []domain.Stat {
	out := make([]domain.Stat, 0, len(m))
	for s := range m {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
