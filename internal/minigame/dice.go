package minigame

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"

	"novel-engine/internal/domain"
)

const dieSides = 6

// NewSeed returns a seed from crypto/rand for a fresh dice round.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// RollHands rolls both liar's dice hands. The result depends only on seed.
func RollHands(seed int64) (player, npc [domain.DiceCount]int) {
	rng := rand.New(rand.NewSource(seed))
	for i := range player {
		player[i] = rollDie(rng)
	}
	for i := range npc {
		npc[i] = rollDie(rng)
	}
	return player, npc
}

func rollDie(rng *rand.Rand) int {
	return rng.Intn(dieSides) + 1
}

// Matches reports whether a die counts towards a bid on value. Ones are wild.
func Matches(die, value int) bool {
	return die == value || die == 1
}

// CountMatching counts dice showing value or a wild one.
func CountMatching(value int, hands ...[]int) int {
	n := 0
	for _, hand := range hands {
		for _, d := range hand {
			if Matches(d, value) {
				n++
			}
		}
	}
	return n
}

// ValidRaise reports whether next may follow prev. Any bid may open a round.
func ValidRaise(prev *domain.Bid, next domain.Bid) bool {
	if prev == nil {
		return true
	}
	return next.Quantity > prev.Quantity || (next.Quantity == prev.Quantity && next.Value > prev.Value)
}

// BidHolds resolves a challenge: the bid holds when at least Quantity dice match across both hands.
func BidHolds(bid domain.Bid, player, npc []int) (count int, holds bool) {
	count = CountMatching(bid.Value, player, npc)
	return count, count >= bid.Quantity
}
