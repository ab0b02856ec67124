package blocks

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sigmaprotocol/beacon-core/config/params"
	"github.com/sigmaprotocol/beacon-core/core/helpers"
	"github.com/sigmaprotocol/beacon-core/core/testutil"
)

func TestProcessDeposits_AppendsNewValidator(t *testing.T) {
	params.UseMinimalConfig()
	defer params.UseMainnetConfig()
	params.OverrideSpecOptions(params.TestSpecOptions())
	defer params.OverrideSpecOptions(params.DefaultSpecOptions())

	st := testutil.NewGenesisState(16)
	deposits, eth1Data := testutil.DepositBatch(1, 16)
	st.Eth1Data = eth1Data

	require.NoError(t, ProcessDeposits(st, deposits))

	require.Len(t, st.Validators, 17)
	newValidator := st.Validators[16]
	require.Equal(t, helpers.CurrentEpoch(st)+1, newValidator.ActivationEligibilityEpoch)
	require.Equal(t, params.BeaconConfig().FarFutureEpoch, newValidator.ActivationEpoch)
	require.Equal(t, uint64(1), st.Eth1DepositIndex)
}

func TestProcessDeposits_TopsUpExistingValidator(t *testing.T) {
	params.UseMinimalConfig()
	defer params.UseMainnetConfig()
	params.OverrideSpecOptions(params.TestSpecOptions())
	defer params.OverrideSpecOptions(params.DefaultSpecOptions())

	st := testutil.NewGenesisState(4)
	// Seed offset 2 reproduces validator index 2's pubkey exactly, so
	// this deposit lands as a top-up rather than a new registration.
	deposits, eth1Data := testutil.DepositBatch(1, 2)
	require.Equal(t, st.Validators[2].Pubkey, deposits[0].Data.Pubkey)
	st.Eth1Data = eth1Data

	startingBalance := st.Balances[2]
	require.NoError(t, ProcessDeposits(st, deposits))

	require.Len(t, st.Validators, 4)
	require.Equal(t, startingBalance+deposits[0].Data.Amount, st.Balances[2])
}

func TestProcessDeposits_RejectsBadMerkleProof(t *testing.T) {
	params.UseMinimalConfig()
	defer params.UseMainnetConfig()

	st := testutil.NewGenesisState(4)
	deposits, eth1Data := testutil.DepositBatch(1, 16)
	eth1Data.DepositRoot[0] ^= 0xFF
	st.Eth1Data = eth1Data

	require.Error(t, ProcessDeposits(st, deposits))
}

func TestProcessDeposits_RejectsTooManyInOneBlock(t *testing.T) {
	params.UseMinimalConfig()
	defer params.UseMainnetConfig()
	cfg := params.BeaconConfig()

	st := testutil.NewGenesisState(4)
	deposits, eth1Data := testutil.DepositBatch(int(cfg.MaxDeposits)+1, 16)
	st.Eth1Data = eth1Data

	require.Error(t, ProcessDeposits(st, deposits))
}
