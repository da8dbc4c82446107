package commentservice

import (
	"context"
	"sync"

	"github.com/narkinsbuilders/narkins-builders-new-sub000/internal/common"
	"github.com/stretchr/testify/mock"
)

type MockCaptcha struct {
	mock.Mock
}

func (m *MockCaptcha) Verify(ctx context.Context, token, remoteIP string) error {
	args := m.Called(token, remoteIP)
	return args.Error(0)
}

// StaticSlugs is a SlugChecker over a fixed set of slugs.
type StaticSlugs map[string]bool

func (s StaticSlugs) Exists(ctx context.Context, slug string) (bool, error) {
	return s[slug], nil
}

type MockProducer struct {
	mu       sync.Mutex
	messages [][]byte
}

func (p *MockProducer) Publish(ctx context.Context, msg []byte, key common.BindingKey, exchange common.Exchange) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.messages = append(p.messages, msg)
	return nil
}

func (p *MockProducer) Messages() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([][]byte(nil), p.messages...)
}
