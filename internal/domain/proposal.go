package domain

// Proposal is what the narration service claims happened after a player action.
// It is untrusted: nothing in it reaches committed state without being validated and clamped.
type Proposal struct {
	NarrativeText       string              `json:"narrativeText"`
	StatDeltas          []CharacterDelta    `json:"statDeltas,omitempty"`
	RelationshipDeltas  []RelationshipDelta `json:"relationshipDeltas,omitempty"`
	Location            string              `json:"location,omitempty"`
	LocationDescription string              `json:"locationDescription,omitempty"`
	AdvanceTime         bool                `json:"advanceTime,omitempty"`
	ObjectiveEvents     []ObjectiveEvent    `json:"objectiveEvents,omitempty"`
	NextActor           string              `json:"nextActor,omitempty"`
	Scenario            *ScenarioUpdate     `json:"scenario,omitempty"`
	StartMiniGame       *MiniGameProposal   `json:"startMiniGame,omitempty"`
	Closure             bool                `json:"closure,omitempty"`
	EndingText          string              `json:"endingText,omitempty"`
}

// CharacterDelta is a requested change to one character. Nil fields mean "unchanged".
type CharacterDelta struct {
	Character   string       `json:"character"`
	Health      *int         `json:"health,omitempty"`
	Money       *int         `json:"money,omitempty"`
	Happiness   *int         `json:"happiness,omitempty"`
	XP          *int         `json:"xp,omitempty"`
	Stats       map[Stat]int `json:"stats,omitempty"`
	ItemsGained []Item       `json:"itemsGained,omitempty"`
	ItemsLost   []string     `json:"itemsLost,omitempty"`
	SkillGained string       `json:"skillGained,omitempty"`
}

// RelationshipDelta is a requested opinion change of From towards To.
// Mutual applies the same delta in the opposite direction as well.
type RelationshipDelta struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Delta  int    `json:"delta"`
	Mutual bool   `json:"mutual,omitempty"`
}

// ObjectiveEventType is either a new objective or the completion of an existing one.
type ObjectiveEventType string

const (
	ObjectiveEventNew      ObjectiveEventType = "new"
	ObjectiveEventComplete ObjectiveEventType = "complete"
)

type ObjectiveEvent struct {
	Type        ObjectiveEventType `json:"type"`
	ObjectiveID string             `json:"objectiveId,omitempty"`
	Description string             `json:"description,omitempty"`
	TokenReward int                `json:"tokenReward,omitempty"`
}

// ScenarioUpdate replaces a character's current scenario. Clear removes it.
type ScenarioUpdate struct {
	Character                 string `json:"character"`
	Description               string `json:"description,omitempty"`
	InteractingNPCName        string `json:"interactingNpcName,omitempty"`
	RequiredNextCharacterName string `json:"requiredNextCharacterName,omitempty"`
	Clear                     bool   `json:"clear,omitempty"`
}

// MiniGameProposal asks the engine to open a mini-game. Only the fields relevant to Kind are read.
type MiniGameProposal struct {
	Kind            MiniGameKind      `json:"kind"`
	NPCName         string            `json:"npcName,omitempty"`
	Item            string            `json:"item,omitempty"`
	ItemDescription string            `json:"itemDescription,omitempty"`
	AskingPrice     int               `json:"askingPrice,omitempty"`
	TargetPrice     int               `json:"targetPrice,omitempty"`
	Pot             int               `json:"pot,omitempty"`
	NPCAttitude     string            `json:"npcAttitude,omitempty"`
	Stages          []PersuasionStage `json:"stages,omitempty"`
	Sequence        []string          `json:"sequence,omitempty"`
	Difficulty      int               `json:"difficulty,omitempty"`
	Question        string            `json:"question,omitempty"`
	Answers         []string          `json:"answers,omitempty"`
}
