package network

import (
	"context"

	"github.com/bitfsorg/sponsor-go/wallet"
)

// MockPublisher is a test double for Publisher.
// All function fields must be set before the corresponding method is called.
type MockPublisher struct {
	PublishFn    func(ctx context.Context, payer *wallet.Key, data []byte, tags []Tag) (*Receipt, error)
	GetBalanceFn func(ctx context.Context, address string) (*Balance, error)
}

var _ Publisher = (*MockPublisher)(nil)

func (m *MockPublisher) Publish(ctx context.Context, payer *wallet.Key, data []byte, tags []Tag) (*Receipt, error) {
	return m.PublishFn(ctx, payer, data, tags)
}
func (m *MockPublisher) GetBalance(ctx context.Context, address string) (*Balance, error) {
	return m.GetBalanceFn(ctx, address)
}
