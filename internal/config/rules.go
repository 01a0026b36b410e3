package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Fixed ranges that rule files may narrow but never widen.
const (
	MeterCeiling        = 100
	RelationshipFloor   = -100
	RelationshipCeiling = 100
)

// Rules are the deterministic game constants. They can be tuned from a YAML file and overridden by env.
type Rules struct {
	Character    CharacterRules    `yaml:"character"`
	Relationship RelationshipRules `yaml:"relationship"`
	Turn         TurnRules         `yaml:"turn"`
	Economy      EconomyRules      `yaml:"economy"`
	Objectives   ObjectiveRules    `yaml:"objectives"`
	MiniGames    MiniGameRules     `yaml:"mini_games"`
}

type CharacterRules struct {
	HealthMax    int `yaml:"health_max" env:"RULES_HEALTH_MAX" env-default:"100"`
	HappinessMax int `yaml:"happiness_max" env:"RULES_HAPPINESS_MAX" env-default:"100"`
	StatMax      int `yaml:"stat_max" env:"RULES_STAT_MAX" env-default:"100"`

	// LevelThresholds[i] is the total XP needed to reach level i+2.
	LevelThresholds    []int `yaml:"level_thresholds" env:"RULES_LEVEL_THRESHOLDS" env-default:"100,250,450,700,1000,1350,1750,2200,2700"`
	StatPointsPerLevel int   `yaml:"stat_points_per_level" env:"RULES_STAT_POINTS_PER_LEVEL" env-default:"3"`

	// Per-turn caps on narrator-proposed changes.
	MaxHealthDelta    int `yaml:"max_health_delta" env:"RULES_MAX_HEALTH_DELTA" env-default:"40"`
	MaxHappinessDelta int `yaml:"max_happiness_delta" env:"RULES_MAX_HAPPINESS_DELTA" env-default:"40"`
	MaxMoneyDelta     int `yaml:"max_money_delta" env:"RULES_MAX_MONEY_DELTA" env-default:"1000"`
	MaxXPGain         int `yaml:"max_xp_gain" env:"RULES_MAX_XP_GAIN" env-default:"200"`
	MaxStatDelta      int `yaml:"max_stat_delta" env:"RULES_MAX_STAT_DELTA" env-default:"2"`

	StartingHealth    int `yaml:"starting_health" env:"RULES_STARTING_HEALTH" env-default:"100"`
	StartingHappiness int `yaml:"starting_happiness" env:"RULES_STARTING_HAPPINESS" env-default:"50"`
	StartingMoney     int `yaml:"starting_money" env:"RULES_STARTING_MONEY" env-default:"100"`
	StartingStat      int `yaml:"starting_stat" env:"RULES_STARTING_STAT" env-default:"5"`
}

type RelationshipRules struct {
	Min             int `yaml:"min" env:"RULES_RELATIONSHIP_MIN" env-default:"-100"`
	Max             int `yaml:"max" env:"RULES_RELATIONSHIP_MAX" env-default:"100"`
	EventThreshold  int `yaml:"event_threshold" env:"RULES_RELATIONSHIP_EVENT_THRESHOLD" env-default:"80"`
	MaxDeltaPerTurn int `yaml:"max_delta_per_turn" env:"RULES_RELATIONSHIP_MAX_DELTA" env-default:"25"`
}

type TurnRules struct {
	MinActionLength    int           `yaml:"min_action_length" env:"RULES_MIN_ACTION_LENGTH" env-default:"2"`
	MaxActionLength    int           `yaml:"max_action_length" env:"RULES_MAX_ACTION_LENGTH" env-default:"500"`
	ChapterLength      int           `yaml:"chapter_length" env:"RULES_CHAPTER_LENGTH" env-default:"10"`
	NarratorTimeout    time.Duration `yaml:"narrator_timeout" env:"RULES_NARRATOR_TIMEOUT" env-default:"45s"`
	HistoryTokenBudget int           `yaml:"history_token_budget" env:"RULES_HISTORY_TOKEN_BUDGET" env-default:"3000"`
}

type EconomyRules struct {
	TokenCap              int           `yaml:"token_cap" env:"RULES_TOKEN_CAP" env-default:"20"`
	TokenRegenInterval    time.Duration `yaml:"token_regen_interval" env:"RULES_TOKEN_REGEN_INTERVAL" env-default:"15m"`
	BookmarkCap           int           `yaml:"bookmark_cap" env:"RULES_BOOKMARK_CAP" env-default:"3"`
	BookmarkRegenInterval time.Duration `yaml:"bookmark_regen_interval" env:"RULES_BOOKMARK_REGEN_INTERVAL" env-default:"24h"`
	ActionCost            int           `yaml:"action_cost" env:"RULES_ACTION_COST" env-default:"1"`
	BookmarkPrice         int           `yaml:"bookmark_price" env:"RULES_BOOKMARK_PRICE" env-default:"5"`
	StartingTokens        int           `yaml:"starting_tokens" env:"RULES_STARTING_TOKENS" env-default:"20"`
	StartingBookmarks     int           `yaml:"starting_bookmarks" env:"RULES_STARTING_BOOKMARKS" env-default:"1"`
}

type ObjectiveRules struct {
	// Interval is the number of committed turns between objective offers.
	Interval      int `yaml:"interval" env:"RULES_OBJECTIVE_INTERVAL" env-default:"5"`
	MaxActive     int `yaml:"max_active" env:"RULES_OBJECTIVE_MAX_ACTIVE" env-default:"2"`
	MaxReward     int `yaml:"max_reward" env:"RULES_OBJECTIVE_MAX_REWARD" env-default:"5"`
	DefaultReward int `yaml:"default_reward" env:"RULES_OBJECTIVE_DEFAULT_REWARD" env-default:"2"`
}

type MiniGameRules struct {
	StartingPatience        int `yaml:"starting_patience" env:"RULES_STARTING_PATIENCE" env-default:"100"`
	PatienceDamageMin       int `yaml:"patience_damage_min" env:"RULES_PATIENCE_DAMAGE_MIN" env-default:"5"`
	PatienceDamageMax       int `yaml:"patience_damage_max" env:"RULES_PATIENCE_DAMAGE_MAX" env-default:"40"`
	MaxPot                  int `yaml:"max_pot" env:"RULES_MAX_POT" env-default:"500"`
	MaxSequenceLength       int `yaml:"max_sequence_length" env:"RULES_MAX_SEQUENCE_LENGTH" env-default:"8"`
	MaxPersuasionStages     int `yaml:"max_persuasion_stages" env:"RULES_MAX_PERSUASION_STAGES" env-default:"5"`
	MaxPersuasionDifficulty int `yaml:"max_persuasion_difficulty" env:"RULES_MAX_PERSUASION_DIFFICULTY" env-default:"20"`
	WinXP                   int `yaml:"win_xp" env:"RULES_MINIGAME_WIN_XP" env-default:"50"`
}

// DefaultRules returns the built-in rule set.
func DefaultRules() Rules {
	return Rules{
		Character: CharacterRules{
			HealthMax:          100,
			HappinessMax:       100,
			StatMax:            100,
			LevelThresholds:    []int{100, 250, 450, 700, 1000, 1350, 1750, 2200, 2700},
			StatPointsPerLevel: 3,
			MaxHealthDelta:     40,
			MaxHappinessDelta:  40,
			MaxMoneyDelta:      1000,
			MaxXPGain:          200,
			MaxStatDelta:       2,
			StartingHealth:     100,
			StartingHappiness:  50,
			StartingMoney:      100,
			StartingStat:       5,
		},
		Relationship: RelationshipRules{Min: -100, Max: 100, EventThreshold: 80, MaxDeltaPerTurn: 25},
		Turn: TurnRules{
			MinActionLength:    2,
			MaxActionLength:    500,
			ChapterLength:      10,
			NarratorTimeout:    45 * time.Second,
			HistoryTokenBudget: 3000,
		},
		Economy: EconomyRules{
			TokenCap:              20,
			TokenRegenInterval:    15 * time.Minute,
			BookmarkCap:           3,
			BookmarkRegenInterval: 24 * time.Hour,
			ActionCost:            1,
			BookmarkPrice:         5,
			StartingTokens:        20,
			StartingBookmarks:     1,
		},
		Objectives: ObjectiveRules{Interval: 5, MaxActive: 2, MaxReward: 5, DefaultReward: 2},
		MiniGames: MiniGameRules{
			StartingPatience:        100,
			PatienceDamageMin:       5,
			PatienceDamageMax:       40,
			MaxPot:                  500,
			MaxSequenceLength:       8,
			MaxPersuasionStages:     5,
			MaxPersuasionDifficulty: 20,
			WinXP:                   50,
		},
	}
}

// LoadRules reads rules from a YAML file (env overrides apply). An empty path reads env only.
func LoadRules(path string) (Rules, error) {
	var r Rules
	var err error
	if path == "" {
		err = cleanenv.ReadEnv(&r)
	} else {
		err = cleanenv.ReadConfig(path, &r)
	}
	if err != nil {
		return Rules{}, fmt.Errorf("failed to load game rules: %w", err)
	}
	if err := r.Validate(); err != nil {
		return Rules{}, err
	}
	return r, nil
}

// Validate checks that the rules are internally consistent.
func (r Rules) Validate() error {
	var errs []error
	if r.Character.HealthMax <= 0 || r.Character.HappinessMax <= 0 || r.Character.StatMax <= 0 {
		errs = append(errs, errors.New("character maxima must be positive"))
	}
	if r.Character.HealthMax > MeterCeiling || r.Character.HappinessMax > MeterCeiling {
		errs = append(errs, fmt.Errorf("health_max and happiness_max must not exceed %d", MeterCeiling))
	}
	for i := 1; i < len(r.Character.LevelThresholds); i++ {
		if r.Character.LevelThresholds[i] <= r.Character.LevelThresholds[i-1] {
			errs = append(errs, fmt.Errorf("level_thresholds must be strictly increasing (index %d)", i))
			break
		}
	}
	if r.Relationship.Min >= r.Relationship.Max {
		errs = append(errs, errors.New("relationship min must be below max"))
	}
	if r.Relationship.Min < RelationshipFloor || r.Relationship.Max > RelationshipCeiling {
		errs = append(errs, fmt.Errorf("relationship bounds must stay within [%d, %d]", RelationshipFloor, RelationshipCeiling))
	}
	if r.Relationship.EventThreshold <= 0 || r.Relationship.EventThreshold > r.Relationship.Max {
		errs = append(errs, errors.New("relationship event_threshold must be within (0, max]"))
	}
	if r.Turn.ChapterLength <= 0 {
		errs = append(errs, errors.New("chapter_length must be positive"))
	}
	if r.Turn.MinActionLength <= 0 || r.Turn.MaxActionLength < r.Turn.MinActionLength {
		errs = append(errs, errors.New("action length bounds are invalid"))
	}
	if r.Economy.TokenRegenInterval <= 0 || r.Economy.BookmarkRegenInterval <= 0 {
		errs = append(errs, errors.New("regeneration intervals must be positive"))
	}
	if r.Objectives.MaxActive <= 0 || r.Objectives.Interval <= 0 {
		errs = append(errs, errors.New("objective interval and max_active must be positive"))
	}
	if r.MiniGames.PatienceDamageMin < 0 || r.MiniGames.PatienceDamageMax < r.MiniGames.PatienceDamageMin {
		errs = append(errs, errors.New("patience damage bounds are invalid"))
	}
	return errors.Join(errs...)
}
