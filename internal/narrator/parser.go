package narrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"novel-engine/internal/domain"
	"novel-engine/internal/minigame"
	"novel-engine/shared/utils"
)

// ParseProposal decodes narrator output and drops the parts that cannot refer to this story.
// Output without narrative text is rejected. Magnitudes are left to the ledgers to clamp.
func ParseProposal(raw string, story *domain.Story) (*domain.Proposal, []string, error) {
	obj := utils.ExtractJSONObject(raw)
	if obj == "" {
		return nil, nil, fmt.Errorf("%w: no JSON object in narrator output", domain.ErrProposalRejected)
	}
	var p domain.Proposal
	if err := json.Unmarshal([]byte(obj), &p); err != nil {
		return nil, nil, fmt.Errorf("%w: malformed proposal: %v", domain.ErrProposalRejected, err)
	}
	p.NarrativeText = strings.TrimSpace(p.NarrativeText)
	if p.NarrativeText == "" {
		return nil, nil, fmt.Errorf("%w: proposal has no narrative text", domain.ErrProposalRejected)
	}
	dropped := sanitize(&p, story)
	return &p, dropped, nil
}

// sanitize removes references to unknown characters, stats and objectives.
// It returns a description of each dropped element.
func sanitize(p *domain.Proposal, story *domain.Story) []string {
	var dropped []string

	deltas := p.StatDeltas[:0]
	for _, d := range p.StatDeltas {
		if story.FindCharacter(d.Character) == nil {
			dropped = append(dropped, "statDelta for unknown character "+d.Character)
			continue
		}
		for stat := range d.Stats {
			if !stat.Valid() {
				dropped = append(dropped, "unknown stat "+string(stat))
				delete(d.Stats, stat)
			}
		}
		deltas = append(deltas, d)
	}
	p.StatDeltas = deltas

	rels := p.RelationshipDeltas[:0]
	for _, r := range p.RelationshipDeltas {
		from, to := story.FindCharacter(r.From), story.FindCharacter(r.To)
		if from == nil || to == nil || from.ID == to.ID {
			dropped = append(dropped, fmt.Sprintf("relationship %s->%s", r.From, r.To))
			continue
		}
		rels = append(rels, r)
	}
	p.RelationshipDeltas = rels

	events := p.ObjectiveEvents[:0]
	for _, ev := range p.ObjectiveEvents {
		switch ev.Type {
		case domain.ObjectiveEventNew:
			if strings.TrimSpace(ev.Description) == "" {
				dropped = append(dropped, "objective without description")
				continue
			}
		case domain.ObjectiveEventComplete:
			if ev.ObjectiveID == "" {
				dropped = append(dropped, "objective completion without id")
				continue
			}
		default:
			dropped = append(dropped, "objective event "+string(ev.Type))
			continue
		}
		events = append(events, ev)
	}
	p.ObjectiveEvents = events

	if p.Scenario != nil && story.FindCharacter(p.Scenario.Character) == nil {
		dropped = append(dropped, "scenario for unknown character "+p.Scenario.Character)
		p.Scenario = nil
	}
	if p.NextActor != "" && story.FindCharacter(p.NextActor) == nil {
		dropped = append(dropped, "next actor "+p.NextActor)
		p.NextActor = ""
	}
	if p.StartMiniGame != nil && story.ActiveMiniGame != nil {
		dropped = append(dropped, "mini-game while another is active")
		p.StartMiniGame = nil
	}
	p.Location = strings.TrimSpace(p.Location)
	return dropped
}

// ParseHaggle decodes a haggle reply. Dialogue is required.
func ParseHaggle(raw string) (minigame.HaggleReply, error) {
	obj := utils.ExtractJSONObject(raw)
	if obj == "" {
		return minigame.HaggleReply{}, fmt.Errorf("%w: no JSON object in haggle reply", domain.ErrProposalRejected)
	}
	var r minigame.HaggleReply
	if err := json.Unmarshal([]byte(obj), &r); err != nil {
		return minigame.HaggleReply{}, fmt.Errorf("%w: malformed haggle reply: %v", domain.ErrProposalRejected, err)
	}
	r.Dialogue = strings.TrimSpace(r.Dialogue)
	if r.Dialogue == "" {
		return minigame.HaggleReply{}, fmt.Errorf("%w: haggle reply has no dialogue", domain.ErrProposalRejected)
	}
	return r, nil
}
