package mocks

import (
	"context"

	"novel-engine/internal/domain"
	"novel-engine/internal/minigame"
	"novel-engine/internal/narrator"

	"github.com/stretchr/testify/mock"
)

// MockNarrator is a mock type for the narrator.Narrator type
type MockNarrator struct {
	mock.Mock
}

// Propose provides a mock function with given fields: ctx, req
func (_m *MockNarrator) Propose(ctx context.Context, req narrator.Request) (*domain.Proposal, error) {
	ret := _m.Called(ctx, req)

	var r0 *domain.Proposal
	if rf, ok := ret.Get(0).(func(context.Context, narrator.Request) *domain.Proposal); ok {
		r0 = rf(ctx, req)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*domain.Proposal)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, narrator.Request) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Haggle provides a mock function with given fields: ctx, req
func (_m *MockNarrator) Haggle(ctx context.Context, req minigame.HaggleRequest) (minigame.HaggleReply, error) {
	ret := _m.Called(ctx, req)

	var r0 minigame.HaggleReply
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(minigame.HaggleReply)
	}
	return r0, ret.Error(1)
}

// SummarizeChapter provides a mock function with given fields: ctx, story, chapterLength
func (_m *MockNarrator) SummarizeChapter(ctx context.Context, story *domain.Story, chapterLength int) (string, error) {
	ret := _m.Called(ctx, story, chapterLength)
	return ret.String(0), ret.Error(1)
}

// NewMockNarrator creates a new instance of MockNarrator and asserts its expectations on cleanup.
func NewMockNarrator(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockNarrator {
	m := &MockNarrator{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ narrator.Narrator = (*MockNarrator)(nil)
