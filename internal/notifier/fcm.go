package notifier

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	fcm "firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// fcmBatchLimit is the multicast size limit of the FCM API.
const fcmBatchLimit = 500

type fcmSender struct {
	client *fcm.Client
	logger *zap.Logger
}

// NewFCMSender builds an FCM sender from a service account key file.
func NewFCMSender(ctx context.Context, credentialsPath string, logger *zap.Logger) (PlatformSender, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("failed to init firebase app from %q: %w", credentialsPath, err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get fcm messaging client: %w", err)
	}
	logger.Info("FCM sender initialised", zap.String("credentialsPath", credentialsPath))
	return &fcmSender{client: client, logger: logger.Named("FCMSender")}, nil
}

func (s *fcmSender) Send(ctx context.Context, tokens []string, n PushNotification, data map[string]string) ([]string, error) {
	var invalid []string
	failures := 0
	for start := 0; start < len(tokens); start += fcmBatchLimit {
		end := min(start+fcmBatchLimit, len(tokens))
		batch := tokens[start:end]

		br, err := s.client.SendEachForMulticast(ctx, &fcm.MulticastMessage{
			Tokens:       batch,
			Notification: &fcm.Notification{Title: n.Title, Body: n.Body},
			Data:         data,
			Android:      &fcm.AndroidConfig{Priority: "high"},
		})
		if err != nil {
			s.logger.Error("FCM multicast failed", zap.Error(err))
			return invalid, fmt.Errorf("fcm send failed: %w", err)
		}
		failures += br.FailureCount
		for i, resp := range br.Responses {
			if resp.Success {
				continue
			}
			if fcm.IsUnregistered(resp.Error) || fcm.IsInvalidArgument(resp.Error) || fcm.IsSenderIDMismatch(resp.Error) {
				invalid = append(invalid, batch[i])
				continue
			}
			s.logger.Warn("FCM delivery failed", zap.String("token", batch[i]), zap.Error(resp.Error))
		}
	}
	if failures > 0 {
		return invalid, fmt.Errorf("fcm delivery failed for %d of %d tokens", failures, len(tokens))
	}
	return invalid, nil
}

func (s *fcmSender) Platform() string { return PlatformAndroid }
