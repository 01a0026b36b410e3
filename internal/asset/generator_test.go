package asset_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"novel-engine/internal/asset"
	"novel-engine/internal/messaging"
	"novel-engine/internal/messaging/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func TestURLForIsDeterministic(t *testing.T) {
	g := asset.NewGenerator("https://cdn.example.com/scenes/", &mocks.MockAssetTaskPublisher{}, zap.NewNop())

	a := g.URLFor("A foggy harbor at dawn")
	b := g.URLFor("  a foggy harbor at DAWN ")
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "https://cdn.example.com/scenes/"))
	assert.True(t, strings.HasSuffix(a, ".jpg"))
	assert.Len(t, strings.TrimSuffix(strings.TrimPrefix(a, "https://cdn.example.com/scenes/"), ".jpg"), 64)
	assert.NotEqual(t, a, g.URLFor("A foggy harbor at dusk"))
}

func TestEnqueueSwallowsPublishErrors(t *testing.T) {
	pub := &mocks.MockAssetTaskPublisher{}
	pub.On("PublishAssetTask", mock.Anything, mock.MatchedBy(func(task messaging.AssetTask) bool {
		return task.Kind == messaging.AssetScene && task.Key == asset.Key("harbor")
	})).Return(errors.New("broker down")).Once()

	g := asset.NewGenerator("https://cdn", pub, zap.NewNop())
	task := g.Task(messaging.AssetScene, uuid.New(), uuid.New(), "harbor")
	assert.Equal(t, g.URLFor("harbor"), task.TargetURL)

	g.Enqueue(context.Background(), task)
	pub.AssertExpectations(t)
}
