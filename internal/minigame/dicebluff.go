package minigame

import (
	"fmt"
	"strings"

	"novel-engine/internal/domain"
)

// NPCAction is what the NPC did after the player's bid.
type NPCAction struct {
	Challenged bool        `json:"challenged"`
	Bid        *domain.Bid `json:"bid,omitempty"`
}

const maxBidQuantity = 2 * domain.DiceCount

func (e *Engine) startDiceBluff(p domain.MiniGameProposal, actor *domain.Character) (*domain.DiceBluff, error) {
	pot := clamp(p.Pot, 1, e.rules.MaxPot)
	if actor != nil && actor.Money < pot {
		pot = actor.Money
	}
	if pot <= 0 {
		return nil, fmt.Errorf("%w: nothing to wager", domain.ErrInsufficientResource)
	}
	seed, err := e.seeds()
	if err != nil {
		return nil, fmt.Errorf("failed to seed dice: %w", err)
	}
	npc := strings.TrimSpace(p.NPCName)
	if npc == "" {
		npc = "Stranger"
	}
	g := &domain.DiceBluff{NPCName: npc, Turn: domain.SidePlayer, Pot: pot, Seed: seed}
	g.PlayerDice, g.NPCDice = RollHands(seed)
	return g, nil
}

func (e *Engine) resolveDiceBluff(g *domain.DiceBluff, move Move) (Result, error) {
	if g.Turn != domain.SidePlayer {
		return Result{}, fmt.Errorf("%w: waiting for %s", domain.ErrNotYourTurn, g.NPCName)
	}
	switch m := move.(type) {
	case PlaceBid:
		if err := validateBid(m.Bid); err != nil {
			return Result{}, err
		}
		if !ValidRaise(g.CurrentBid, m.Bid) {
			return Result{}, fmt.Errorf("%w: bid %dx%d does not raise %dx%d", domain.ErrValidation,
				m.Bid.Quantity, m.Bid.Value, g.CurrentBid.Quantity, g.CurrentBid.Value)
		}
		bid := m.Bid
		g.CurrentBid = &bid
		g.BidBy = domain.SidePlayer
		g.Turn = domain.SideNPC
		return e.npcTurn(g), nil
	case Challenge:
		if g.CurrentBid == nil || g.BidBy != domain.SideNPC {
			return Result{}, fmt.Errorf("%w: there is no opponent bid to challenge", domain.ErrValidation)
		}
		return settleChallenge(g, domain.SidePlayer), nil
	default:
		return Result{}, fmt.Errorf("%w: unsupported dice move %T", domain.ErrValidation, move)
	}
}

func validateBid(b domain.Bid) error {
	if b.Quantity < 1 || b.Quantity > maxBidQuantity {
		return fmt.Errorf("%w: bid quantity must be between 1 and %d", domain.ErrValidation, maxBidQuantity)
	}
	if b.Value < 1 || b.Value > dieSides {
		return fmt.Errorf("%w: bid value must be between 1 and %d", domain.ErrValidation, dieSides)
	}
	return nil
}

// npcTurn plays the NPC deterministically: it challenges bids it believes are false, otherwise raises.
func (e *Engine) npcTurn(g *domain.DiceBluff) Result {
	bid := *g.CurrentBid
	if !npcBelieves(g.NPCDice[:], bid) {
		res := settleChallenge(g, domain.SideNPC)
		res.NPCAction = &NPCAction{Challenged: true}
		return res
	}
	next, ok := npcRaise(g.NPCDice[:], bid)
	if !ok {
		res := settleChallenge(g, domain.SideNPC)
		res.NPCAction = &NPCAction{Challenged: true}
		return res
	}
	g.CurrentBid = &next
	g.BidBy = domain.SideNPC
	g.Turn = domain.SidePlayer
	return Result{
		Outcome:   domain.OutcomeActive,
		NPCAction: &NPCAction{Bid: &next},
		Dialogue:  fmt.Sprintf("%s raises: %d dice showing %d.", g.NPCName, next.Quantity, next.Value),
	}
}

// npcBelieves compares the bid with the NPC's own matches plus the expected matches in the hidden hand.
// Expected matches are scaled by 3 to stay in integers: each unseen die matches with probability 1/3
// (value plus wild), or 1/6 when bidding on ones.
func npcBelieves(own []int, bid domain.Bid) bool {
	known := CountMatching(bid.Value, own)
	perThree := domain.DiceCount
	if bid.Value == 1 {
		perThree = domain.DiceCount / 2
	}
	return 3*bid.Quantity <= 3*known+perThree+3
}

// npcRaise picks the NPC's strongest face and makes the smallest legal raise on it.
func npcRaise(own []int, bid domain.Bid) (domain.Bid, bool) {
	best, bestCount := 0, -1
	for v := 2; v <= dieSides; v++ {
		if c := CountMatching(v, own); c >= bestCount {
			best, bestCount = v, c
		}
	}
	next := domain.Bid{Quantity: bid.Quantity, Value: best}
	if !ValidRaise(&bid, next) {
		next.Quantity = bid.Quantity + 1
	}
	if next.Quantity > maxBidQuantity {
		return domain.Bid{}, false
	}
	return next, true
}

// settleChallenge ends the round. The challenger wins when the bid was false.
func settleChallenge(g *domain.DiceBluff, challenger domain.Side) Result {
	count, holds := BidHolds(*g.CurrentBid, g.PlayerDice[:], g.NPCDice[:])
	winner := challenger
	if holds {
		winner = challenger.Other()
	}
	outcome := domain.OutcomeLost
	if winner == domain.SidePlayer {
		outcome = domain.OutcomeWon
	}
	who := "You call"
	if challenger == domain.SideNPC {
		who = g.NPCName + " calls"
	}
	return Result{
		Outcome:        outcome,
		ChallengeCount: &count,
		Dialogue: fmt.Sprintf("%s the bid of %dx%d: %d matching dice on the table.",
			who, g.CurrentBid.Quantity, g.CurrentBid.Value, count),
	}
}
