package mocks

import (
	"context"

	"novel-engine/internal/messaging"

	"github.com/stretchr/testify/mock"
)

// MockEventPublisher is a mock type for the messaging.EventPublisher type
type MockEventPublisher struct {
	mock.Mock
}

// PublishTurnCommitted provides a mock function with given fields: ctx, event
func (_m *MockEventPublisher) PublishTurnCommitted(ctx context.Context, event messaging.TurnCommittedEvent) error {
	ret := _m.Called(ctx, event)
	return ret.Error(0)
}

// MockAssetTaskPublisher is a mock type for the messaging.AssetTaskPublisher type
type MockAssetTaskPublisher struct {
	mock.Mock
}

// PublishAssetTask provides a mock function with given fields: ctx, task
func (_m *MockAssetTaskPublisher) PublishAssetTask(ctx context.Context, task messaging.AssetTask) error {
	ret := _m.Called(ctx, task)
	return ret.Error(0)
}

var (
	_ messaging.EventPublisher     = (*MockEventPublisher)(nil)
	_ messaging.AssetTaskPublisher = (*MockAssetTaskPublisher)(nil)
)
