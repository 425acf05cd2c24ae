package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/authcore/internal/core/domain"
	"github.com/custodia-labs/authcore/internal/core/ports/driven"
)

// Ensure MockNotifier implements Notifier
var _ driven.Notifier = (*MockNotifier)(nil)

// Delivery is one message handed to MockNotifier
type Delivery struct {
	Address string
	Purpose domain.TokenPurpose
	Token   string
}

// MockNotifier records deliveries instead of sending them
type MockNotifier struct {
	mu         sync.Mutex
	deliveries []Delivery

	// Err, when set, fails every delivery after recording the attempt
	Err error
}

// NewMockNotifier creates a new MockNotifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) Deliver(ctx context.Context, address string, purpose domain.TokenPurpose, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries = append(m.deliveries, Delivery{Address: address, Purpose: purpose, Token: token})
	return m.Err
}

// Deliveries returns every recorded delivery
func (m *MockNotifier) Deliveries() []Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Delivery(nil), m.deliveries...)
}

// Last returns the most recent delivery for purpose
func (m *MockNotifier) Last(purpose domain.TokenPurpose) (Delivery, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.deliveries) - 1; i >= 0; i-- {
		if m.deliveries[i].Purpose == purpose {
			return m.deliveries[i], true
		}
	}
	return Delivery{}, false
}
