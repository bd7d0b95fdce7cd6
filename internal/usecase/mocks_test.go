package usecase

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/vadimbarashkov/link-shortener/internal/entity"
)

type MockLinkRepository struct {
	mock.Mock
}

func (m *MockLinkRepository) Save(ctx context.Context, shortCode, targetURL, ownerID string) (*entity.Link, error) {
	args := m.Called(ctx, shortCode, targetURL, ownerID)
	link, _ := args.Get(0).(*entity.Link)
	return link, args.Error(1)
}

func (m *MockLinkRepository) RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.Link, error) {
	args := m.Called(ctx, shortCode)
	link, _ := args.Get(0).(*entity.Link)
	return link, args.Error(1)
}

func (m *MockLinkRepository) RetrieveAndCountClick(ctx context.Context, shortCode string) (*entity.Link, error) {
	args := m.Called(ctx, shortCode)
	link, _ := args.Get(0).(*entity.Link)
	return link, args.Error(1)
}

func (m *MockLinkRepository) UpdateTarget(ctx context.Context, shortCode, targetURL, ownerID string) (*entity.Link, error) {
	args := m.Called(ctx, shortCode, targetURL, ownerID)
	link, _ := args.Get(0).(*entity.Link)
	return link, args.Error(1)
}

type MockShortCodeGenerator struct {
	mock.Mock
}

func (m *MockShortCodeGenerator) Generate() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

type MockClickAccounting struct {
	mock.Mock
}

func (m *MockClickAccounting) Record(shortCode string, occurredAt time.Time, cc entity.ClickContext) bool {
	args := m.Called(shortCode, occurredAt, cc)
	return args.Bool(0)
}

func (m *MockClickAccounting) Stats(ctx context.Context, link *entity.Link, q entity.StatsQuery) (*entity.Stats, error) {
	args := m.Called(ctx, link, q)
	stats, _ := args.Get(0).(*entity.Stats)
	return stats, args.Error(1)
}

type MockClickRepository struct {
	mock.Mock
}

func (m *MockClickRepository) SaveClicks(ctx context.Context, events []entity.ClickEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

func (m *MockClickRepository) ClickBuckets(ctx context.Context, shortCode string, q entity.StatsQuery) ([]entity.Bucket, error) {
	args := m.Called(ctx, shortCode, q)
	buckets, _ := args.Get(0).([]entity.Bucket)
	return buckets, args.Error(1)
}

func (m *MockClickRepository) ClickSources(ctx context.Context, shortCode string, q entity.StatsQuery) ([]entity.Source, error) {
	args := m.Called(ctx, shortCode, q)
	sources, _ := args.Get(0).([]entity.Source)
	return sources, args.Error(1)
}
