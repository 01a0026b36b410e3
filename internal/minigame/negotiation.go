package minigame

import (
	"context"
	"fmt"
	"strings"

	"novel-engine/internal/domain"

	"go.uber.org/zap"
)

func (e *Engine) startNegotiation(p domain.MiniGameProposal) (*domain.Negotiation, error) {
	npc := strings.TrimSpace(p.NPCName)
	item := strings.TrimSpace(p.Item)
	if npc == "" || item == "" {
		return nil, fmt.Errorf("%w: negotiation needs an npc and an item", domain.ErrValidation)
	}
	if p.TargetPrice <= 0 {
		return nil, fmt.Errorf("%w: negotiation target price must be positive", domain.ErrValidation)
	}
	asking := p.AskingPrice
	if asking < p.TargetPrice {
		asking = p.TargetPrice + p.TargetPrice/2
	}
	return &domain.Negotiation{
		NPCName:         npc,
		Item:            item,
		ItemDescription: strings.TrimSpace(p.ItemDescription),
		AskingPrice:     asking,
		TargetPrice:     p.TargetPrice,
		Patience:        e.rules.StartingPatience,
	}, nil
}

// currentAsk is the price the NPC is currently asking.
func currentAsk(g *domain.Negotiation) int {
	if g.LastOffer != nil {
		return *g.LastOffer
	}
	return g.AskingPrice
}

func (e *Engine) resolveNegotiation(ctx context.Context, g *domain.Negotiation, actor *domain.Character, o Offer) (Result, error) {
	if o.Amount <= 0 {
		return Result{}, fmt.Errorf("%w: offer must be positive", domain.ErrValidation)
	}
	if actor != nil && actor.Money < o.Amount {
		return Result{}, fmt.Errorf("%w: offer %d exceeds available money %d", domain.ErrInsufficientResource, o.Amount, actor.Money)
	}
	offer := o.Amount
	g.LastPlayerOffer = &offer

	if offer >= g.TargetPrice {
		return Result{
			Outcome:  domain.OutcomeWon,
			Dialogue: fmt.Sprintf("%s accepts %d for the %s.", g.NPCName, offer, g.Item),
		}, nil
	}

	ask := currentAsk(g)
	reply := HaggleReply{
		Dialogue:       fmt.Sprintf("%s shakes their head at %d.", g.NPCName, offer),
		PatienceDamage: e.rules.PatienceDamageMax,
		CounterOffer:   ask,
	}
	if e.advisor != nil {
		req := HaggleRequest{
			NPCName:     g.NPCName,
			Item:        g.Item,
			Offer:       offer,
			LastOffer:   ask,
			Patience:    g.Patience,
			AskingPrice: g.AskingPrice,
		}
		if actor != nil {
			req.PlayerName = actor.Name
		}
		r, err := e.advisor.Haggle(ctx, req)
		if err != nil {
			return Result{}, fmt.Errorf("%w: haggle: %v", domain.ErrProposalRejected, err)
		}
		reply = r
	}

	damage := clamp(reply.PatienceDamage, e.rules.PatienceDamageMin, e.rules.PatienceDamageMax)
	if damage != reply.PatienceDamage {
		e.logger.Debug("Clamped narrator patience damage",
			zap.Int("proposed", reply.PatienceDamage), zap.Int("applied", damage))
	}
	g.Patience -= damage

	// Counter-offers never rise and never drop below what the NPC would accept.
	counter := ask
	if reply.CounterOffer > 0 {
		counter = clamp(reply.CounterOffer, g.TargetPrice, ask)
	}
	g.LastOffer = &counter

	res := Result{PatienceDamage: damage, Dialogue: reply.Dialogue, Outcome: domain.OutcomeActive}
	if g.Patience <= 0 {
		g.Patience = 0
		res.Outcome = domain.OutcomeLost
	}
	return res, nil
}
