package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/custodia-labs/authcore/internal/core/ports/driven"
)

// Ensure MockAuthMetrics implements AuthMetrics
var _ driven.AuthMetrics = (*MockAuthMetrics)(nil)

// MockAuthMetrics records metric calls with testify/mock
type MockAuthMetrics struct {
	mock.Mock
}

func (m *MockAuthMetrics) FlowCompleted(flow, outcome string) {
	m.Called(flow, outcome)
}

func (m *MockAuthMetrics) TokenVerified(purpose, result string) {
	m.Called(purpose, result)
}

func (m *MockAuthMetrics) CacheOperation(op, result string) {
	m.Called(op, result)
}
