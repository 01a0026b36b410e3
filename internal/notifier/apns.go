package notifier

import (
	"context"
	"fmt"
	"sync"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/certificate"
	"github.com/sideshow/apns2/payload"
	"go.uber.org/zap"
)

type apnsSender struct {
	client *apns2.Client
	topic  string
	logger *zap.Logger
}

// NewAPNSSender builds an APNs sender from a .p12 certificate.
func NewAPNSSender(certPath, certPassword, topic string, production bool, logger *zap.Logger) (PlatformSender, error) {
	if topic == "" {
		return nil, fmt.Errorf("apns topic is required")
	}
	cert, err := certificate.FromP12File(certPath, certPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to read apns certificate %q: %w", certPath, err)
	}
	client := apns2.NewClient(cert)
	if production {
		client = client.Production()
	} else {
		client = client.Development()
	}
	logger.Info("APNs sender initialised", zap.String("topic", topic), zap.Bool("production", production))
	return &apnsSender{client: client, topic: topic, logger: logger.Named("APNSSender")}, nil
}

func (s *apnsSender) Send(ctx context.Context, tokens []string, n PushNotification, data map[string]string) ([]string, error) {
	p := payload.NewPayload().AlertTitle(n.Title).AlertBody(n.Body).Sound("default")
	for k, v := range data {
		p.Custom(k, v)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		invalid  []string
		firstErr error
	)
	for _, tok := range tokens {
		wg.Add(1)
		go func(tok string) {
			defer wg.Done()
			res, err := s.client.PushWithContext(ctx, &apns2.Notification{
				DeviceToken: tok,
				Topic:       s.topic,
				Payload:     p,
				Priority:    apns2.PriorityHigh,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				if firstErr == nil {
					firstErr = fmt.Errorf("apns send error: %w", err)
				}
			case !res.Sent():
				if res.Reason == apns2.ReasonUnregistered || res.Reason == apns2.ReasonBadDeviceToken {
					invalid = append(invalid, tok)
					return
				}
				s.logger.Warn("APNs rejected notification",
					zap.Int("status", res.StatusCode), zap.String("reason", res.Reason))
				if firstErr == nil {
					firstErr = fmt.Errorf("apns delivery failed: %s", res.Reason)
				}
			}
		}(tok)
	}
	wg.Wait()
	return invalid, firstErr
}

func (s *apnsSender) Platform() string { return PlatformIOS }
