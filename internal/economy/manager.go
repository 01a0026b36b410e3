// Package economy считает восстанавливающиеся со временем ресурсы. Восстановление зависит только
// от сохранённых меток времени и текущего времени, фоновый планировщик не нужен.
package economy

import (
	"fmt"
	"time"

	"novel-engine/internal/config"
	"novel-engine/internal/domain"

	"go.uber.org/zap"
)

// Resource — расходуемый ресурс кошелька.
type Resource string

const (
	ActionToken Resource = "action_token"
	Bookmark    Resource = "bookmark"
)

// Manager восстанавливает и списывает жетоны действий и закладки по правилам экономики.
type Manager struct {
	rules  config.EconomyRules
	logger *zap.Logger
}

func NewManager(rules config.EconomyRules, logger *zap.Logger) *Manager {
	return &Manager{rules: rules, logger: logger.Named("EconomyManager")}
}

// NewWallet возвращает стартовый кошелёк.
func (m *Manager) NewWallet(now time.Time) domain.Wallet {
	return domain.Wallet{
		ActionTokens:      m.rules.StartingTokens,
		Bookmarks:         m.rules.StartingBookmarks,
		LastTokenRegen:    now,
		LastBookmarkRegen: now,
	}
}

// Regenerate возвращает кошелёк на момент now. Повторный вызов с тем же now
// даёт тот же кошелёк, лишнего не начисляется.
func (m *Manager) Regenerate(w domain.Wallet, now time.Time) domain.Wallet {
	w.ActionTokens, w.LastTokenRegen = accrue(w.ActionTokens, m.rules.TokenCap, w.LastTokenRegen, m.rules.TokenRegenInterval, now)
	w.Bookmarks, w.LastBookmarkRegen = accrue(w.Bookmarks, m.rules.BookmarkCap, w.LastBookmarkRegen, m.rules.BookmarkRegenInterval, now)
	return w
}

// accrue добавляет по единице за каждый полный интервал с last, но не выше limit.
// Остаток неполного интервала сохраняется: last сдвигается только на целые интервалы.
// На лимите часы держатся на now, и после траты интервал начинается заново.
func accrue(count, limit int, last time.Time, interval time.Duration, now time.Time) (int, time.Time) {
	if count >= limit {
		return count, now
	}
	if last.IsZero() || now.Before(last) || interval <= 0 {
		return count, last
	}
	units := int(now.Sub(last) / interval)
	if units == 0 {
		return count, last
	}
	count += units
	last = last.Add(time.Duration(units) * interval)
	if count >= limit {
		return limit, now
	}
	return count, last
}

// Consume списывает n единиц r после восстановления.
func (m *Manager) Consume(w domain.Wallet, r Resource, n int, now time.Time) (domain.Wallet, error) {
	if n < 0 {
		return w, fmt.Errorf("%w: negative amount", domain.ErrValidation)
	}
	w = m.Regenerate(w, now)
	switch r {
	case ActionToken:
		if w.ActionTokens < n {
			return w, fmt.Errorf("%w: need %d action tokens, have %d", domain.ErrInsufficientResource, n, w.ActionTokens)
		}
		w.ActionTokens -= n
	case Bookmark:
		if w.Bookmarks < n {
			return w, fmt.Errorf("%w: need %d bookmarks, have %d", domain.ErrInsufficientResource, n, w.Bookmarks)
		}
		w.Bookmarks -= n
	default:
		return w, fmt.Errorf("%w: unknown resource %q", domain.ErrValidation, r)
	}
	return w, nil
}

// CanAfford сообщает, хватает ли на действие по настроенной цене в момент now.
func (m *Manager) CanAfford(w domain.Wallet, now time.Time) error {
	_, err := m.Consume(w, ActionToken, m.rules.ActionCost, now)
	return err
}

// ChargeAction списывает цену действия.
func (m *Manager) ChargeAction(w domain.Wallet, now time.Time) (domain.Wallet, error) {
	return m.Consume(w, ActionToken, m.rules.ActionCost, now)
}

// Credit начисляет жетоны награды. Награда может превысить лимит восстановления.
func (m *Manager) Credit(w *domain.Wallet, tokens int) {
	if tokens <= 0 {
		return
	}
	w.ActionTokens += tokens
}

// PurchaseBookmark обменивает жетоны действий на одну закладку.
func (m *Manager) PurchaseBookmark(w domain.Wallet, now time.Time) (domain.Wallet, error) {
	w, err := m.Consume(w, ActionToken, m.rules.BookmarkPrice, now)
	if err != nil {
		return w, err
	}
	w.Bookmarks++
	m.logger.Debug("Bookmark purchased", zap.Int("bookmarks", w.Bookmarks), zap.Int("tokens", w.ActionTokens))
	return w, nil
}

// NextTokenAt возвращает время восстановления следующего жетона или нулевое время, если кошелёк полон.
func (m *Manager) NextTokenAt(w domain.Wallet, now time.Time) time.Time {
	w = m.Regenerate(w, now)
	if w.ActionTokens >= m.rules.TokenCap {
		return time.Time{}
	}
	return w.LastTokenRegen.Add(m.rules.TokenRegenInterval)
}
