package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"labdigitizer/internal/port"
)

// MockOracle is a mock implementation of port.Oracle.
type MockOracle struct {
	mock.Mock
}

func (m *MockOracle) Complete(ctx context.Context, req port.OracleRequest) (*port.OracleResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.OracleResponse), args.Error(1)
}
