package mocks

import (
	"context"
	"io"
	"sync"

	"github.com/custodia-labs/authcore/internal/core/ports/driven"
)

// Ensure MockMediaStore implements MediaStore
var _ driven.MediaStore = (*MockMediaStore)(nil)

// MockMediaStore keeps uploads in memory
type MockMediaStore struct {
	mu      sync.Mutex
	Objects map[string][]byte
	BaseURL string
	Err     error
}

// NewMockMediaStore creates a new MockMediaStore
func NewMockMediaStore() *MockMediaStore {
	return &MockMediaStore{
		Objects: make(map[string][]byte),
		BaseURL: "https://media.test",
	}
}

func (m *MockMediaStore) Upload(ctx context.Context, key, contentType string, size int64, body io.Reader) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Objects[key] = data
	return m.BaseURL + "/" + key, nil
}
