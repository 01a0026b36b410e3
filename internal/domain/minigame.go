package domain

import (
	"encoding/json"
	"fmt"
)

// MiniGameKind tags the active mini-game variant.
type MiniGameKind string

const (
	KindNegotiation     MiniGameKind = "negotiation"
	KindDiceBluff       MiniGameKind = "dice_bluff"
	KindPersuasion      MiniGameKind = "persuasion"
	KindSequencePuzzle  MiniGameKind = "sequence_puzzle"
	KindRiddleChallenge MiniGameKind = "riddle_challenge"
)

// Outcome is the lifecycle state of a mini-game after a move.
type Outcome string

const (
	OutcomeActive Outcome = "active"
	OutcomeWon    Outcome = "won"
	OutcomeLost   Outcome = "lost"
)

// Terminal reports whether the game is over.
func (o Outcome) Terminal() bool { return o == OutcomeWon || o == OutcomeLost }

// MiniGame is a closed sum type: only the variants declared in this file implement it.
// Code that switches over variants should handle all five and fail loudly in default.
type MiniGame interface {
	Kind() MiniGameKind
	cloneGame() MiniGame
}

// CloneMiniGame returns a deep copy of g, or nil.
func CloneMiniGame(g MiniGame) MiniGame {
	if g == nil {
		return nil
	}
	return g.cloneGame()
}

// Negotiation is a haggling exchange with an NPC over one item.
// LastOffer is the NPC's most recent asking price.
type Negotiation struct {
	NPCName         string `json:"npcName"`
	Item            string `json:"item"`
	ItemDescription string `json:"itemDescription,omitempty"`
	AskingPrice     int    `json:"askingPrice"`
	TargetPrice     int    `json:"targetPrice"`
	Patience        int    `json:"patience"`
	LastOffer       *int   `json:"lastOffer,omitempty"`
	LastPlayerOffer *int   `json:"lastPlayerOffer,omitempty"`
}

func (*Negotiation) Kind() MiniGameKind { return KindNegotiation }

func (g *Negotiation) cloneGame() MiniGame {
	cp := *g
	if g.LastOffer != nil {
		v := *g.LastOffer
		cp.LastOffer = &v
	}
	if g.LastPlayerOffer != nil {
		v := *g.LastPlayerOffer
		cp.LastPlayerOffer = &v
	}
	return &cp
}

// Side identifies who acts in a two-party game.
type Side string

const (
	SidePlayer Side = "player"
	SideNPC    Side = "npc"
)

// Other returns the opposing side.
func (s Side) Other() Side {
	if s == SidePlayer {
		return SideNPC
	}
	return SidePlayer
}

// Bid is a liar's dice claim: at least Quantity dice show Value.
type Bid struct {
	Quantity int `json:"quantity"`
	Value    int `json:"value"`
}

// DiceCount is the number of dice in each hand.
const DiceCount = 5

// DiceBluff is a round of liar's dice against an NPC. NPCDice must not be shown to players.
type DiceBluff struct {
	NPCName    string         `json:"npcName"`
	PlayerDice [DiceCount]int `json:"playerDice"`
	NPCDice    [DiceCount]int `json:"npcDice"`
	CurrentBid *Bid           `json:"currentBid"`
	BidBy      Side           `json:"bidBy,omitempty"`
	Turn       Side           `json:"turn"`
	Pot        int            `json:"pot"`
	Seed       int64          `json:"seed"`
}

func (*DiceBluff) Kind() MiniGameKind { return KindDiceBluff }

func (g *DiceBluff) cloneGame() MiniGame {
	cp := *g
	if g.CurrentBid != nil {
		b := *g.CurrentBid
		cp.CurrentBid = &b
	}
	return &cp
}

// PersuasionOption is one line the player may choose, checked against a stat.
type PersuasionOption struct {
	Text       string `json:"text"`
	Stat       Stat   `json:"stat"`
	Difficulty int    `json:"difficulty"`
}

// PersuasionStage is one exchange of a persuasion attempt.
type PersuasionStage struct {
	Dialogue string             `json:"dialogue"`
	Options  []PersuasionOption `json:"options"`
}

// Persuasion is a staged attempt to sway an NPC.
type Persuasion struct {
	NPCName     string            `json:"npcName"`
	NPCAttitude string            `json:"npcAttitude"`
	StageIndex  int               `json:"stageIndex"`
	Stages      []PersuasionStage `json:"stages"`
}

func (*Persuasion) Kind() MiniGameKind { return KindPersuasion }

func (g *Persuasion) cloneGame() MiniGame {
	cp := *g
	if g.Stages != nil {
		cp.Stages = make([]PersuasionStage, len(g.Stages))
		for i, st := range g.Stages {
			cp.Stages[i] = PersuasionStage{Dialogue: st.Dialogue, Options: cloneSlice(st.Options)}
		}
	}
	return &cp
}

// SequencePuzzle asks the player to reproduce an ordered list of symbols.
type SequencePuzzle struct {
	TargetSequence []string `json:"targetSequence"`
	Difficulty     int      `json:"difficulty"`
	Attempts       int      `json:"attempts"`
}

func (*SequencePuzzle) Kind() MiniGameKind { return KindSequencePuzzle }

func (g *SequencePuzzle) cloneGame() MiniGame {
	cp := *g
	cp.TargetSequence = cloneSlice(g.TargetSequence)
	return &cp
}

// RiddleChallenge accepts any of AcceptableAnswers, ignoring case and surrounding space.
type RiddleChallenge struct {
	Question          string   `json:"question"`
	AcceptableAnswers []string `json:"acceptableAnswers"`
	Attempts          int      `json:"attempts"`
}

func (*RiddleChallenge) Kind() MiniGameKind { return KindRiddleChallenge }

func (g *RiddleChallenge) cloneGame() MiniGame {
	cp := *g
	cp.AcceptableAnswers = cloneSlice(g.AcceptableAnswers)
	return &cp
}

var (
	_ MiniGame = (*Negotiation)(nil)
	_ MiniGame = (*DiceBluff)(nil)
	_ MiniGame = (*Persuasion)(nil)
	_ MiniGame = (*SequencePuzzle)(nil)
	_ MiniGame = (*RiddleChallenge)(nil)
)

type miniGameEnvelope struct {
	Kind  MiniGameKind    `json:"kind"`
	State json.RawMessage `json:"state"`
}

// MarshalMiniGame encodes g with its kind tag. A nil game encodes as JSON null.
func MarshalMiniGame(g MiniGame) ([]byte, error) {
	if g == nil {
		return []byte("null"), nil
	}
	state, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s state: %w", g.Kind(), err)
	}
	return json.Marshal(miniGameEnvelope{Kind: g.Kind(), State: state})
}

// UnmarshalMiniGame decodes a value produced by MarshalMiniGame.
func UnmarshalMiniGame(data []byte) (MiniGame, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var env miniGameEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal mini-game envelope: %w", err)
	}
	var g MiniGame
	switch env.Kind {
	case KindNegotiation:
		g = &Negotiation{}
	case KindDiceBluff:
		g = &DiceBluff{}
	case KindPersuasion:
		g = &Persuasion{}
	case KindSequencePuzzle:
		g = &SequencePuzzle{}
	case KindRiddleChallenge:
		g = &RiddleChallenge{}
	default:
		return nil, fmt.Errorf("%w: unknown mini-game kind %q", ErrValidation, env.Kind)
	}
	if err := json.Unmarshal(env.State, g); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s state: %w", env.Kind, err)
	}
	return g, nil
}

// Conceal returns a copy of g with everything the player must not see cleared:
// the NPC's dice and the seed they were rolled from, a negotiation's target price,
// the puzzle solution and the riddle answers.
func Conceal(g MiniGame) MiniGame {
	if g == nil {
		return nil
	}
	cp := g.cloneGame()
	switch st := cp.(type) {
	case *Negotiation:
		st.TargetPrice = 0
	case *DiceBluff:
		st.NPCDice = [DiceCount]int{}
		st.Seed = 0
	case *Persuasion:
		// stat checks are visible
	case *SequencePuzzle:
		st.TargetSequence = make([]string, len(st.TargetSequence))
	case *RiddleChallenge:
		st.AcceptableAnswers = nil
	default:
		panic(fmt.Sprintf("domain: unhandled mini-game kind %T", g))
	}
	return cp
}
