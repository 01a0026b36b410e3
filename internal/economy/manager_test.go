package economy

import (
	"testing"
	"time"

	"novel-engine/internal/config"
	"novel-engine/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newManager() *Manager {
	return NewManager(config.DefaultRules().Economy, zap.NewNop())
}

func TestRegenerateAccruesWholeIntervals(t *testing.T) {
	m := newManager()
	w := domain.Wallet{ActionTokens: 5, Bookmarks: 3, LastTokenRegen: t0, LastBookmarkRegen: t0}

	got := m.Regenerate(w, t0.Add(44*time.Minute))
	assert.Equal(t, 7, got.ActionTokens)
	assert.Equal(t, t0.Add(30*time.Minute), got.LastTokenRegen, "partial interval is carried over")

	got = m.Regenerate(got, t0.Add(45*time.Minute))
	assert.Equal(t, 8, got.ActionTokens)
}

func TestRegenerateIsIdempotent(t *testing.T) {
	m := newManager()
	w := domain.Wallet{ActionTokens: 0, Bookmarks: 0, LastTokenRegen: t0, LastBookmarkRegen: t0}
	now := t0.Add(50 * time.Hour)

	once := m.Regenerate(w, now)
	twice := m.Regenerate(once, now)
	thrice := m.Regenerate(m.Regenerate(w, now), now)
	assert.Equal(t, once, twice)
	assert.Equal(t, once, thrice)
	assert.Equal(t, 20, once.ActionTokens, "capped")
	assert.Equal(t, 2, once.Bookmarks)
}

func TestRegenerateCapHoldsClock(t *testing.T) {
	m := newManager()
	w := domain.Wallet{ActionTokens: 20, LastTokenRegen: t0, LastBookmarkRegen: t0}
	now := t0.Add(10 * time.Hour)

	w, err := m.Consume(w, ActionToken, 1, now)
	require.NoError(t, err)
	assert.Equal(t, 19, w.ActionTokens)
	assert.Equal(t, now, w.LastTokenRegen)

	got := m.Regenerate(w, now.Add(14*time.Minute))
	assert.Equal(t, 19, got.ActionTokens, "no credit for time spent at the cap")
}

func TestConsume(t *testing.T) {
	m := newManager()
	w := m.NewWallet(t0)

	w, err := m.Consume(w, Bookmark, 1, t0)
	require.NoError(t, err)
	assert.Equal(t, 0, w.Bookmarks)

	_, err = m.Consume(w, Bookmark, 1, t0)
	assert.ErrorIs(t, err, domain.ErrInsufficientResource)

	_, err = m.Consume(w, "gems", 1, t0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPurchaseBookmark(t *testing.T) {
	m := newManager()
	w := domain.Wallet{ActionTokens: 6, LastTokenRegen: t0, LastBookmarkRegen: t0}

	w, err := m.PurchaseBookmark(w, t0)
	require.NoError(t, err)
	assert.Equal(t, 1, w.ActionTokens)
	assert.Equal(t, 1, w.Bookmarks)

	before := w
	after, err := m.PurchaseBookmark(w, t0)
	assert.ErrorIs(t, err, domain.ErrInsufficientResource)
	assert.Equal(t, before.Bookmarks, after.Bookmarks)
}

func TestCreditAndNextToken(t *testing.T) {
	m := newManager()
	w := domain.Wallet{ActionTokens: 19, LastTokenRegen: t0, LastBookmarkRegen: t0}
	assert.Equal(t, t0.Add(15*time.Minute), m.NextTokenAt(w, t0))

	m.Credit(&w, 5)
	assert.Equal(t, 24, w.ActionTokens)
	assert.True(t, m.NextTokenAt(w, t0).IsZero())

	m.Credit(&w, -3)
	assert.Equal(t, 24, w.ActionTokens)
}
