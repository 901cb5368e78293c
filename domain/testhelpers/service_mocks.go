package testhelpers

import (
	"context"

	"settlement/domain/entities"
	"settlement/domain/interfaces"

	"github.com/stretchr/testify/mock"
)

// MockLedgerService is a mock implementation of LedgerService
type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) Transfer(ctx context.Context, mutation entities.LedgerMutation) (*entities.LedgerEntry, error) {
	args := m.Called(ctx, mutation)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.LedgerEntry), args.Error(1)
}

func (m *MockLedgerService) Move(ctx context.Context, req interfaces.MoveRequest) (*interfaces.MoveResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.MoveResult), args.Error(1)
}

func (m *MockLedgerService) Balances(ctx context.Context, discordID int64) (*entities.Balances, error) {
	args := m.Called(ctx, discordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Balances), args.Error(1)
}

func (m *MockLedgerService) History(ctx context.Context, discordID int64, limit int) ([]*entities.LedgerEntry, error) {
	args := m.Called(ctx, discordID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.LedgerEntry), args.Error(1)
}

// FixedRandom replays queued draws, for deterministic outcomes in tests
type FixedRandom struct {
	Ints   []int
	Floats []float64
}

func (r *FixedRandom) IntN(n int) int {
	v := r.Ints[0]
	r.Ints = r.Ints[1:]
	return v % n
}

func (r *FixedRandom) Float64() float64 {
	v := r.Floats[0]
	r.Floats = r.Floats[1:]
	return v
}
