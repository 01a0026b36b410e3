// Package minigame resolves the embedded challenges. Win and loss are always decided here,
// never by the narration service.
package minigame

import (
	"context"
	"fmt"

	"novel-engine/internal/config"
	"novel-engine/internal/domain"

	"go.uber.org/zap"
)

// Move is a player action inside a mini-game.
type Move interface {
	target() domain.MiniGameKind
}

// Offer proposes a price in a negotiation.
type Offer struct {
	Amount int `json:"amount"`
}

// PlaceBid raises the current liar's dice bid.
type PlaceBid struct {
	Bid domain.Bid `json:"bid"`
}

// Challenge calls the opponent's bid.
type Challenge struct{}

// ChooseOption picks a line in the current persuasion stage.
type ChooseOption struct {
	Index int `json:"index"`
}

// SubmitSequence is an attempt at a sequence puzzle.
type SubmitSequence struct {
	Symbols []string `json:"symbols"`
}

// Answer is an attempt at a riddle.
type Answer struct {
	Text string `json:"text"`
}

func (Offer) target() domain.MiniGameKind          { return domain.KindNegotiation }
func (PlaceBid) target() domain.MiniGameKind       { return domain.KindDiceBluff }
func (Challenge) target() domain.MiniGameKind      { return domain.KindDiceBluff }
func (ChooseOption) target() domain.MiniGameKind   { return domain.KindPersuasion }
func (SubmitSequence) target() domain.MiniGameKind { return domain.KindSequencePuzzle }
func (Answer) target() domain.MiniGameKind         { return domain.KindRiddleChallenge }

// Result is the new game state after a move. Game is always a fresh copy.
type Result struct {
	Game     domain.MiniGame
	Outcome  domain.Outcome
	Dialogue string

	// Negotiation
	PatienceDamage int

	// DiceBluff
	NPCAction      *NPCAction
	ChallengeCount *int

	// SequencePuzzle: Feedback[i] reports whether the i-th symbol was right.
	Feedback []bool
}

// HaggleRequest is sent to the narration service when an offer falls short.
type HaggleRequest struct {
	NPCName     string
	Item        string
	Offer       int
	LastOffer   int
	Patience    int
	PlayerName  string
	AskingPrice int
}

// HaggleReply is the narration service's flavor for a rejected offer. Numbers are hints and get clamped.
type HaggleReply struct {
	Dialogue       string `json:"dialogue"`
	PatienceDamage int    `json:"patienceDamage"`
	CounterOffer   int    `json:"counterOffer"`
}

// HaggleAdvisor supplies dialogue for negotiations.
type HaggleAdvisor interface {
	Haggle(ctx context.Context, req HaggleRequest) (HaggleReply, error)
}

// Engine resolves moves for all mini-game kinds.
type Engine struct {
	rules   config.MiniGameRules
	advisor HaggleAdvisor
	seeds   func() (int64, error)
	logger  *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithSeedSource replaces the crypto-backed seed source used to roll dice.
func WithSeedSource(f func() (int64, error)) Option {
	return func(e *Engine) { e.seeds = f }
}

// NewEngine creates an engine. advisor may be nil, in which case rejected offers get a fixed reply.
func NewEngine(rules config.MiniGameRules, advisor HaggleAdvisor, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{rules: rules, advisor: advisor, seeds: NewSeed, logger: logger.Named("MiniGameEngine")}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Resolve applies move to game. The input game is never modified.
func (e *Engine) Resolve(ctx context.Context, game domain.MiniGame, actor *domain.Character, move Move) (Result, error) {
	if game == nil {
		return Result{}, domain.ErrNoMiniGame
	}
	if move == nil || move.target() != game.Kind() {
		return Result{}, fmt.Errorf("%w: move does not apply to %s", domain.ErrValidation, game.Kind())
	}
	g := domain.CloneMiniGame(game)

	var (
		res Result
		err error
	)
	switch st := g.(type) {
	case *domain.Negotiation:
		res, err = e.resolveNegotiation(ctx, st, actor, move.(Offer))
	case *domain.DiceBluff:
		res, err = e.resolveDiceBluff(st, move)
	case *domain.Persuasion:
		res, err = resolvePersuasion(st, actor, move.(ChooseOption))
	case *domain.SequencePuzzle:
		res, err = resolveSequence(st, move.(SubmitSequence))
	case *domain.RiddleChallenge:
		res, err = resolveRiddle(st, move.(Answer))
	default:
		panic(fmt.Sprintf("minigame: unhandled kind %T", game))
	}
	if err != nil {
		return Result{}, err
	}
	res.Game = g
	e.logger.Debug("Mini-game move resolved",
		zap.String("kind", string(g.Kind())), zap.String("outcome", string(res.Outcome)))
	return res, nil
}

// Start builds a new game from a narrator proposal, validating and clamping every field.
func (e *Engine) Start(p domain.MiniGameProposal, actor *domain.Character) (domain.MiniGame, error) {
	switch p.Kind {
	case domain.KindNegotiation:
		return e.startNegotiation(p)
	case domain.KindDiceBluff:
		return e.startDiceBluff(p, actor)
	case domain.KindPersuasion:
		return e.startPersuasion(p)
	case domain.KindSequencePuzzle:
		return e.startSequence(p)
	case domain.KindRiddleChallenge:
		return startRiddle(p)
	default:
		return nil, fmt.Errorf("%w: unknown mini-game kind %q", domain.ErrValidation, p.Kind)
	}
}

// Reward is the deterministic change applied to the actor when a game ends.
func (e *Engine) Reward(game domain.MiniGame, outcome domain.Outcome) domain.CharacterDelta {
	var d domain.CharacterDelta
	if !outcome.Terminal() {
		return d
	}
	switch g := game.(type) {
	case *domain.Negotiation:
		if outcome == domain.OutcomeWon && g.LastPlayerOffer != nil {
			cost := -*g.LastPlayerOffer
			d.Money = &cost
			d.ItemsGained = []domain.Item{{Name: g.Item, Description: g.ItemDescription}}
		}
	case *domain.DiceBluff:
		amount := g.Pot
		if outcome == domain.OutcomeLost {
			amount = -amount
		}
		d.Money = &amount
	case *domain.Persuasion, *domain.SequencePuzzle, *domain.RiddleChallenge:
		if outcome == domain.OutcomeWon {
			xp := e.rules.WinXP
			d.XP = &xp
		}
	default:
		panic(fmt.Sprintf("minigame: unhandled kind %T", game))
	}
	return d
}

// Describe renders a one-line summary of a finished game for the story history.
func Describe(game domain.MiniGame, outcome domain.Outcome) string {
	verb := "lost"
	if outcome == domain.OutcomeWon {
		verb = "won"
	}
	switch g := game.(type) {
	case *domain.Negotiation:
		if outcome == domain.OutcomeWon && g.LastPlayerOffer != nil {
			return fmt.Sprintf("Bought %s from %s for %d.", g.Item, g.NPCName, *g.LastPlayerOffer)
		}
		return fmt.Sprintf("%s lost patience; the deal for %s is off.", g.NPCName, g.Item)
	case *domain.DiceBluff:
		return fmt.Sprintf("Dice with %s %s, pot of %d.", g.NPCName, verb, g.Pot)
	case *domain.Persuasion:
		return fmt.Sprintf("Persuasion of %s %s at stage %d.", g.NPCName, verb, g.StageIndex+1)
	case *domain.SequencePuzzle:
		return fmt.Sprintf("Sequence puzzle %s after %d attempts.", verb, g.Attempts)
	case *domain.RiddleChallenge:
		return fmt.Sprintf("Riddle %s after %d attempts.", verb, g.Attempts)
	default:
		panic(fmt.Sprintf("minigame: unhandled kind %T", game))
	}
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
