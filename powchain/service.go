// Package powchain defines the deposit-contract follower boundary: an
// opaque source of chronologically ordered deposits, each carrying the
// Merkle proof the block-processing deposit stage verifies against
// state.eth1_data.deposit_root. The real log-watching client behind
// this interface is out of scope; MockFetcher stands in for it wherever
// the core needs deposits end to end.
package powchain

import (
	"context"

	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/core/types"
)

// DepositFetcher is the surface the proposer-side deposit flow reads:
// the follower's current view of the contract (deposit root and count)
// plus a contiguous, index-ordered range of proven deposits.
type DepositFetcher interface {
	// Eth1Data returns the follower's latest observed deposit root and
	// count, the value a proposer folds into its eth1 vote.
	Eth1Data(ctx context.Context) (*types.Eth1Data, error)

	// Deposits returns deposits with contract indices [start, start+n),
	// in order, each with a Merkle branch proving it into the root
	// Eth1Data reports. Requesting past the observed count is an error.
	Deposits(ctx context.Context, start, n uint64) ([]*types.Deposit, error)
}

// ErrOutOfRange is returned by Deposits when the requested window runs
// past the follower's observed deposit count.
var ErrOutOfRange = errors.New("powchain: deposit range beyond observed count")
