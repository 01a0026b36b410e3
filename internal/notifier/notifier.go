package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	PlatformAndroid = "android"
	PlatformIOS     = "ios"
)

// PushNotification is the visible part of a push.
type PushNotification struct {
	Title string
	Body  string
}

// DeviceToken is a push token registered by a client.
type DeviceToken struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// PlatformSender delivers to one push platform. It returns tokens the platform reported as invalid.
type PlatformSender interface {
	Send(ctx context.Context, tokens []string, n PushNotification, data map[string]string) (invalid []string, err error)
	Platform() string
}

// TokenStore keeps the device tokens of each user.
type TokenStore interface {
	Register(ctx context.Context, userID string, token DeviceToken) error
	Tokens(ctx context.Context, userID string) ([]DeviceToken, error)
	Remove(ctx context.Context, userID string, tokens ...string) error
}

// TurnNotice tells a co-op player that their character may act.
type TurnNotice struct {
	UserID        string
	StoryID       uuid.UUID
	StoryTitle    string
	CharacterName string
}

// TurnNotifier is what the story service needs from push delivery.
type TurnNotifier interface {
	NotifyTurn(ctx context.Context, notice TurnNotice) error
}

// Service fans a notice out to every registered device of a user.
type Service struct {
	tokens  TokenStore
	senders map[string]PlatformSender
	logger  *zap.Logger
}

// ErrUnsupportedPlatform is returned for device tokens no sender can deliver to.
var ErrUnsupportedPlatform = errors.New("unsupported push device")

var _ TurnNotifier = (*Service)(nil)

func NewService(tokens TokenStore, logger *zap.Logger, senders ...PlatformSender) *Service {
	s := &Service{tokens: tokens, senders: make(map[string]PlatformSender), logger: logger.Named("Notifier")}
	for _, sender := range senders {
		if sender != nil {
			s.senders[sender.Platform()] = sender
		}
	}
	return s
}

// RegisterDevice stores a device token for userID.
func (s *Service) RegisterDevice(ctx context.Context, userID string, token DeviceToken) error {
	if _, ok := s.senders[token.Platform]; !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedPlatform, token.Platform)
	}
	if token.Token == "" {
		return fmt.Errorf("%w: empty token", ErrUnsupportedPlatform)
	}
	return s.tokens.Register(ctx, userID, token)
}

// UnregisterDevice forgets a device token, e.g. on logout.
func (s *Service) UnregisterDevice(ctx context.Context, userID, token string) error {
	return s.tokens.Remove(ctx, userID, token)
}

func (s *Service) NotifyTurn(ctx context.Context, notice TurnNotice) error {
	log := s.logger.With(zap.String("userID", notice.UserID), zap.Stringer("storyID", notice.StoryID))

	devices, err := s.tokens.Tokens(ctx, notice.UserID)
	if err != nil {
		return fmt.Errorf("failed to load device tokens: %w", err)
	}
	if len(devices) == 0 {
		log.Debug("No devices registered")
		return nil
	}

	byPlatform := make(map[string][]string)
	for _, d := range devices {
		byPlatform[d.Platform] = append(byPlatform[d.Platform], d.Token)
	}
	n := PushNotification{
		Title: notice.StoryTitle,
		Body:  fmt.Sprintf("It's %s's turn.", notice.CharacterName),
	}
	data := map[string]string{
		"type":    "your_turn",
		"storyId": notice.StoryID.String(),
	}

	var firstErr error
	for platform, tokens := range byPlatform {
		sender, ok := s.senders[platform]
		if !ok {
			log.Warn("No sender for platform", zap.String("platform", platform))
			continue
		}
		invalid, err := sender.Send(ctx, tokens, n, data)
		if len(invalid) > 0 {
			if rmErr := s.tokens.Remove(ctx, notice.UserID, invalid...); rmErr != nil {
				log.Warn("Failed to remove invalid tokens", zap.Error(rmErr))
			}
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
