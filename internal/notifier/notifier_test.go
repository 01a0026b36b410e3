package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSender struct {
	platform string
	invalid  []string
	err      error
	sent     [][]string
	last     PushNotification
	data     map[string]string
}

func (f *fakeSender) Send(_ context.Context, tokens []string, n PushNotification, data map[string]string) ([]string, error) {
	f.sent = append(f.sent, tokens)
	f.last = n
	f.data = data
	return f.invalid, f.err
}

func (f *fakeSender) Platform() string { return f.platform }

func TestService_NotifyTurn(t *testing.T) {
	ctx := context.Background()
	storyID := uuid.New()
	notice := TurnNotice{UserID: "u1", StoryID: storyID, StoryTitle: "The Lantern", CharacterName: "Mira"}

	t.Run("groups tokens by platform", func(t *testing.T) {
		store := NewMemoryTokenStore()
		android := &fakeSender{platform: PlatformAndroid}
		ios := &fakeSender{platform: PlatformIOS}
		svc := NewService(store, zap.NewNop(), android, ios)

		require.NoError(t, svc.RegisterDevice(ctx, "u1", DeviceToken{Token: "a1", Platform: PlatformAndroid}))
		require.NoError(t, svc.RegisterDevice(ctx, "u1", DeviceToken{Token: "i1", Platform: PlatformIOS}))

		require.NoError(t, svc.NotifyTurn(ctx, notice))
		require.Len(t, android.sent, 1)
		assert.Equal(t, []string{"a1"}, android.sent[0])
		require.Len(t, ios.sent, 1)
		assert.Equal(t, "It's Mira's turn.", ios.last.Body)
		assert.Equal(t, storyID.String(), ios.data["storyId"])
	})

	t.Run("no devices is not an error", func(t *testing.T) {
		svc := NewService(NewMemoryTokenStore(), zap.NewNop(), &fakeSender{platform: PlatformAndroid})
		assert.NoError(t, svc.NotifyTurn(ctx, notice))
	})

	t.Run("invalid tokens are removed", func(t *testing.T) {
		store := NewMemoryTokenStore()
		android := &fakeSender{platform: PlatformAndroid, invalid: []string{"stale"}}
		svc := NewService(store, zap.NewNop(), android)
		require.NoError(t, svc.RegisterDevice(ctx, "u1", DeviceToken{Token: "stale", Platform: PlatformAndroid}))
		require.NoError(t, svc.RegisterDevice(ctx, "u1", DeviceToken{Token: "fresh", Platform: PlatformAndroid}))

		require.NoError(t, svc.NotifyTurn(ctx, notice))

		left, err := store.Tokens(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, []DeviceToken{{Token: "fresh", Platform: PlatformAndroid}}, left)
	})

	t.Run("sender error is returned", func(t *testing.T) {
		store := NewMemoryTokenStore()
		boom := errors.New("boom")
		svc := NewService(store, zap.NewNop(), &fakeSender{platform: PlatformAndroid, err: boom})
		require.NoError(t, svc.RegisterDevice(ctx, "u1", DeviceToken{Token: "a1", Platform: PlatformAndroid}))
		assert.ErrorIs(t, svc.NotifyTurn(ctx, notice), boom)
	})

	t.Run("unsupported platform is rejected on register", func(t *testing.T) {
		svc := NewService(NewMemoryTokenStore(), zap.NewNop(), NewStubSender(PlatformAndroid, zap.NewNop()))
		assert.ErrorIs(t, svc.RegisterDevice(ctx, "u1", DeviceToken{Token: "x", Platform: "web"}), ErrUnsupportedPlatform)
	})

	t.Run("unregister removes the token", func(t *testing.T) {
		store := NewMemoryTokenStore()
		svc := NewService(store, zap.NewNop(), NewStubSender(PlatformAndroid, zap.NewNop()))
		require.NoError(t, svc.RegisterDevice(ctx, "u1", DeviceToken{Token: "a", Platform: PlatformAndroid}))
		require.NoError(t, svc.UnregisterDevice(ctx, "u1", "a"))
		tokens, err := store.Tokens(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, tokens)
	})
}
