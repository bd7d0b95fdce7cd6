package http

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vadimbarashkov/link-shortener/internal/entity"
)

type MockLinkUseCase struct {
	mock.Mock
}

func NewMockLinkUseCase(t mock.TestingT) *MockLinkUseCase {
	m := &MockLinkUseCase{}
	m.Test(t)
	return m
}

func (m *MockLinkUseCase) ShortenURL(ctx context.Context, targetURL, ownerID string) (*entity.Link, error) {
	args := m.Called(ctx, targetURL, ownerID)
	link, _ := args.Get(0).(*entity.Link)
	return link, args.Error(1)
}

func (m *MockLinkUseCase) ResolveShortCode(ctx context.Context, shortCode string, cc entity.ClickContext) (*entity.Link, error) {
	args := m.Called(ctx, shortCode, cc)
	link, _ := args.Get(0).(*entity.Link)
	return link, args.Error(1)
}

func (m *MockLinkUseCase) GetLink(ctx context.Context, shortCode string) (*entity.Link, error) {
	args := m.Called(ctx, shortCode)
	link, _ := args.Get(0).(*entity.Link)
	return link, args.Error(1)
}

func (m *MockLinkUseCase) ModifyURL(ctx context.Context, shortCode, targetURL string, id entity.Identity) (*entity.Link, error) {
	args := m.Called(ctx, shortCode, targetURL, id)
	link, _ := args.Get(0).(*entity.Link)
	return link, args.Error(1)
}

func (m *MockLinkUseCase) GetLinkStats(ctx context.Context, shortCode string, id entity.Identity, q entity.StatsQuery) (*entity.Stats, error) {
	args := m.Called(ctx, shortCode, id, q)
	stats, _ := args.Get(0).(*entity.Stats)
	return stats, args.Error(1)
}

type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}
