package messaging_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"novel-engine/internal/domain"
	"novel-engine/internal/messaging"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

func TestRabbitMQPublisher_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode.")
	}
	ctx := context.Background()

	container, err := rabbitmq.Run(ctx,
		"rabbitmq:3-management-alpine",
		testcontainers.WithWaitStrategy(wait.ForLog("Server startup complete")),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	url, err := container.AmqpURL(ctx)
	require.NoError(t, err)
	conn, err := amqp.Dial(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	pub, err := messaging.NewRabbitMQPublisher(conn, "test_turn_events", "test_asset_tasks", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })

	event := messaging.TurnCommittedEvent{
		EventID:      uuid.NewString(),
		StoryID:      uuid.New(),
		Version:      7,
		Status:       domain.StatusChapterEnd,
		Reason:       "action",
		HistoryIndex: 9,
		CommittedAt:  time.Now().UTC(),
	}
	require.NoError(t, pub.PublishTurnCommitted(ctx, event))
	require.NoError(t, pub.PublishAssetTask(ctx, messaging.AssetTask{TaskID: "a1", Kind: messaging.AssetScene, Key: "k"}))

	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	var msg amqp.Delivery
	require.Eventually(t, func() bool {
		var ok bool
		msg, ok, err = ch.Get("test_turn_events", true)
		return err == nil && ok
	}, 5*time.Second, 50*time.Millisecond)

	var got messaging.TurnCommittedEvent
	require.NoError(t, json.Unmarshal(msg.Body, &got))
	assert.Equal(t, event.StoryID, got.StoryID)
	assert.Equal(t, domain.StatusChapterEnd, got.Status)
	assert.Equal(t, event.EventID, msg.MessageId)

	asset, ok, err := ch.Get("test_asset_tasks", true)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a1", asset.MessageId)
}
