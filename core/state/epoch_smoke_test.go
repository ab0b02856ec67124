package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sigmaprotocol/beacon-core/config/params"
	"github.com/sigmaprotocol/beacon-core/core/testutil"
)

// TestProcessSlots_EmptyChainBalancesDecrease exercises the "empty-chain
// smoke" scenario: a freshly seeded validator set with no attestations
// ever submitted sees every balance strictly decrease once enough
// epochs have elapsed to apply the no-attestation penalty, since no
// validator is ever credited for source/target/head participation.
func TestProcessSlots_EmptyChainBalancesDecrease(t *testing.T) {
	params.UseMinimalConfig()
	defer params.UseMainnetConfig()
	cfg := params.BeaconConfig()

	st := testutil.NewGenesisState(16)
	startingBalances := append([]uint64(nil), st.Balances...)

	require.NoError(t, ProcessSlots(st, 2*cfg.SlotsPerEpoch))

	for i, bal := range st.Balances {
		require.Lessf(t, bal, startingBalances[i], "validator %d balance did not decrease", i)
	}
}

// TestProcessSlots_NoOpWhenAlreadyAtTarget confirms ProcessSlots is a
// no-op once the state has already reached targetSlot, rather than
// silently reprocessing the current slot.
func TestProcessSlots_NoOpWhenAlreadyAtTarget(t *testing.T) {
	params.UseMinimalConfig()
	defer params.UseMainnetConfig()

	st := testutil.NewGenesisState(4)
	require.NoError(t, ProcessSlots(st, 3))
	require.Equal(t, uint64(3), st.Slot)

	require.NoError(t, ProcessSlots(st, 3))
	require.Equal(t, uint64(3), st.Slot)
}

// TestProcessSlots_RejectsPastTarget confirms ProcessSlots refuses to
// run backwards.
func TestProcessSlots_RejectsPastTarget(t *testing.T) {
	st := testutil.NewGenesisState(4)
	st.Slot = 10
	require.Error(t, ProcessSlots(st, 5))
}
