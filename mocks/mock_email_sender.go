package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"labdigitizer/internal/port"
)

// MockEmailSender is a mock implementation of port.EmailSender.
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendResults(ctx context.Context, msg port.ResultEmail) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockEmailSender) SendError(ctx context.Context, toEmail, detail string) error {
	args := m.Called(ctx, toEmail, detail)
	return args.Error(0)
}
