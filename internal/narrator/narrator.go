package narrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"novel-engine/internal/domain"
	"novel-engine/internal/minigame"
	"novel-engine/pkg/ai"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var proposalsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "novel_engine_narrator_proposals_total",
		Help: "Narrator calls by kind and result.",
	},
	[]string{"kind", "result"},
)

// Request is everything the narrator sees for one player action.
type Request struct {
	Story           *domain.Story
	Actor           *domain.Character
	Action          string
	UserID          string
	ObjectiveWanted bool
}

// Narrator is the adapter to the external narration service.
// Every failure is reported as domain.ErrProposalRejected.
type Narrator interface {
	Propose(ctx context.Context, req Request) (*domain.Proposal, error)
	Haggle(ctx context.Context, req minigame.HaggleRequest) (minigame.HaggleReply, error)
	SummarizeChapter(ctx context.Context, story *domain.Story, chapterLength int) (string, error)
}

type aiNarrator struct {
	client  ai.Client
	prompts *PromptBuilder
	params  ai.GenerationParams
	timeout time.Duration
	logger  *zap.Logger
}

// New returns a Narrator backed by a text generation client.
func New(client ai.Client, prompts *PromptBuilder, params ai.GenerationParams, timeout time.Duration, logger *zap.Logger) Narrator {
	return &aiNarrator{
		client:  client,
		prompts: prompts,
		params:  params,
		timeout: timeout,
		logger:  logger.Named("Narrator"),
	}
}

func (n *aiNarrator) Propose(ctx context.Context, req Request) (*domain.Proposal, error) {
	log := n.logger.With(zap.Stringer("storyID", req.Story.ID), zap.Stringer("actorID", req.Actor.ID))

	input, err := n.prompts.TurnInput(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProposalRejected, err)
	}
	raw, err := n.generate(ctx, req.UserID, proposalSystemPrompt, input)
	if err != nil {
		proposalsTotal.WithLabelValues("turn", "error").Inc()
		log.Warn("Narrator call failed", zap.Error(err))
		return nil, err
	}
	p, dropped, err := ParseProposal(raw, req.Story)
	if err != nil {
		proposalsTotal.WithLabelValues("turn", "malformed").Inc()
		log.Warn("Narrator returned unusable proposal", zap.Error(err), zap.Int("length", len(raw)))
		return nil, err
	}
	if len(dropped) > 0 {
		log.Info("Dropped parts of proposal", zap.Strings("dropped", dropped))
	}
	proposalsTotal.WithLabelValues("turn", "ok").Inc()
	return p, nil
}

func (n *aiNarrator) Haggle(ctx context.Context, req minigame.HaggleRequest) (minigame.HaggleReply, error) {
	input := fmt.Sprintf(
		"Merchant: %s\nItem: %s\nAsking price: %d\nYour previous counter-offer: %d\nBuyer (%s) offers: %d\nYour patience: %d/100",
		req.NPCName, req.Item, req.AskingPrice, req.LastOffer, req.PlayerName, req.Offer, req.Patience)
	raw, err := n.generate(ctx, "", haggleSystemPrompt, input)
	if err != nil {
		proposalsTotal.WithLabelValues("haggle", "error").Inc()
		return minigame.HaggleReply{}, err
	}
	reply, err := ParseHaggle(raw)
	if err != nil {
		proposalsTotal.WithLabelValues("haggle", "malformed").Inc()
		return minigame.HaggleReply{}, err
	}
	proposalsTotal.WithLabelValues("haggle", "ok").Inc()
	return reply, nil
}

func (n *aiNarrator) SummarizeChapter(ctx context.Context, story *domain.Story, chapterLength int) (string, error) {
	raw, err := n.generate(ctx, story.OwnerID, summarySystemPrompt, n.prompts.SummaryInput(story, chapterLength))
	if err != nil {
		proposalsTotal.WithLabelValues("summary", "error").Inc()
		return "", err
	}
	summary := strings.TrimSpace(raw)
	if summary == "" {
		proposalsTotal.WithLabelValues("summary", "malformed").Inc()
		return "", fmt.Errorf("%w: empty chapter summary", domain.ErrProposalRejected)
	}
	proposalsTotal.WithLabelValues("summary", "ok").Inc()
	return summary, nil
}

func (n *aiNarrator) generate(ctx context.Context, userID, system, input string) (string, error) {
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}
	text, _, err := n.client.GenerateText(ctx, userID, system, input, n.params)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			return "", fmt.Errorf("%w: %w", domain.ErrProposalRejected, context.Canceled)
		}
		return "", fmt.Errorf("%w: %w", domain.ErrProposalRejected, err)
	}
	return text, nil
}
