package asset

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"novel-engine/internal/messaging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Generator maps descriptions to stable asset URLs and queues their rendering.
// The URL is known before the asset exists, so it can be committed with the state that references it.
type Generator struct {
	baseURL   string
	publisher messaging.AssetTaskPublisher
	logger    *zap.Logger
}

func NewGenerator(baseURL string, publisher messaging.AssetTaskPublisher, logger *zap.Logger) *Generator {
	return &Generator{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		publisher: publisher,
		logger:    logger.Named("AssetGenerator"),
	}
}

// Key is the content key of a description: sha256 of the trimmed, lower-cased text.
func Key(description string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(description))))
	return hex.EncodeToString(sum[:])
}

// URLFor returns the URL the asset for description will be served from.
func (g *Generator) URLFor(description string) string {
	return g.baseURL + "/" + Key(description) + ".jpg"
}

// Task builds the generation task for an entity.
func (g *Generator) Task(kind messaging.AssetKind, storyID, entityID uuid.UUID, description string) messaging.AssetTask {
	return messaging.AssetTask{
		TaskID:      uuid.NewString(),
		Kind:        kind,
		Key:         Key(description),
		Description: description,
		TargetURL:   g.URLFor(description),
		StoryID:     storyID,
		EntityID:    entityID,
	}
}

// Enqueue publishes tasks. Failures are logged; the asset is simply missing until regenerated.
func (g *Generator) Enqueue(ctx context.Context, tasks ...messaging.AssetTask) {
	for _, t := range tasks {
		if err := g.publisher.PublishAssetTask(ctx, t); err != nil {
			g.logger.Warn("Failed to queue asset generation",
				zap.String("key", t.Key), zap.String("kind", string(t.Kind)), zap.Error(err))
		}
	}
}
