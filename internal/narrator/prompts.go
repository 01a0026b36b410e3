package narrator

const proposalSystemPrompt = `You narrate an interactive, turn-based story.
You receive the current story state as JSON and the action the acting character attempts.
Describe what happens next in 2-4 short paragraphs and report the consequences.

Reply with ONE JSON object and nothing else:
{
  "narrativeText": "what happens (required)",
  "statDeltas": [{"character": "<name>", "health": -10, "money": 5, "happiness": 3, "xp": 20,
                  "stats": {"intellect": 1}, "itemsGained": [{"name": "", "description": ""}],
                  "itemsLost": ["<item name>"], "skillGained": ""}],
  "relationshipDeltas": [{"from": "<name>", "to": "<name>", "delta": 5, "mutual": true}],
  "location": "<new location name, omit if unchanged>",
  "locationDescription": "<one sentence visual description of the new location>",
  "advanceTime": false,
  "objectiveEvents": [{"type": "new", "description": "", "tokenReward": 2},
                      {"type": "complete", "objectiveId": "<id>"}],
  "nextActor": "<name of the character who should act next, optional>",
  "scenario": {"character": "<name>", "description": "", "interactingNpcName": "", "clear": false},
  "startMiniGame": {"kind": "negotiation|dice_bluff|persuasion|sequence_puzzle|riddle_challenge", ...},
  "closure": false,
  "endingText": ""
}

Rules:
- Changes are small: health and happiness move at most 40, stats at most 2, relationships at most 25 per turn.
- Never remove an item the character does not carry.
- Only propose a new objective when "objectiveWanted" is true.
- Only propose startMiniGame when "miniGameActive" is false.
- A negotiation needs npcName, item, askingPrice and a lower targetPrice.
- A dice_bluff needs npcName and pot. A persuasion needs npcAttitude and stages with options {text, stat, difficulty}.
- A sequence_puzzle needs sequence and difficulty. A riddle_challenge needs question and answers.
- Set closure to true only when the story has reached a natural ending, and write endingText.`

const haggleSystemPrompt = `You play a merchant haggling over an item. The buyer's offer was too low.
Reply with ONE JSON object and nothing else:
{"dialogue": "<the merchant's short reply>", "patienceDamage": <5-40>, "counterOffer": <price>}
The counterOffer must never be higher than your previous counter-offer or the asking price.
Low-ball offers cost more patience than near misses.`

const summarySystemPrompt = `You summarise one chapter of an interactive story for the players.
Write 3-5 sentences in past tense covering the key events, decisions and changes in relationships.
Reply with plain text only.`
