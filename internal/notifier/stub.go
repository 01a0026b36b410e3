package notifier

import (
	"context"

	"go.uber.org/zap"
)

// stubSender logs instead of delivering. Used when a platform is not configured.
type stubSender struct {
	platform string
	logger   *zap.Logger
}

func NewStubSender(platform string, logger *zap.Logger) PlatformSender {
	return &stubSender{platform: platform, logger: logger.Named("StubSender").With(zap.String("platform", platform))}
}

func (s *stubSender) Send(_ context.Context, tokens []string, n PushNotification, data map[string]string) ([]string, error) {
	s.logger.Info("Push suppressed",
		zap.Int("tokens", len(tokens)),
		zap.String("title", n.Title),
		zap.String("body", n.Body),
		zap.Any("data", data))
	return nil, nil
}

func (s *stubSender) Platform() string { return s.platform }
