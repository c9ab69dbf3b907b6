// Package network talks to the permanent-storage gateway that accepts paid
// uploads and reports wallet balances.
package network

import (
	"context"

	"github.com/bitfsorg/sponsor-go/wallet"
)

// WincPerCredit is the number of winc in one credit.
const WincPerCredit = 1_000_000_000_000

// Publisher is the storage-network capability used by the deploy path.
type Publisher interface {
	// Publish permanently stores data paid for by payer and reports the
	// transaction id and the winc actually charged.
	Publish(ctx context.Context, payer *wallet.Key, data []byte, tags []Tag) (*Receipt, error)

	// GetBalance returns the credit balance of address.
	GetBalance(ctx context.Context, address string) (*Balance, error)
}

// Tag is a name/value pair attached to a published data item.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Receipt is the result of one successful publish.
type Receipt struct {
	TxID string `json:"id"`
	Cost uint64 `json:"winc,string"`
}

// Balance is a wallet's credit balance in winc.
type Balance struct {
	Available uint64 `json:"winc,string"`
	Spendable uint64 `json:"spendable,string"`
}

// Credits converts winc to whole-and-fractional credits.
func Credits(winc uint64) float64 {
	return float64(winc) / WincPerCredit
}
