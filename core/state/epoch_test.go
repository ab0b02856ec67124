package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sigmaprotocol/beacon-core/config/params"
	"github.com/sigmaprotocol/beacon-core/core/helpers"
	"github.com/sigmaprotocol/beacon-core/core/testutil"
	"github.com/sigmaprotocol/beacon-core/core/types"
)

// TestJustification_ExactTwoThirdsBoundary exercises the justification
// threshold at its exact boundary: an attested stake of precisely 2/3
// justifies the previous epoch, one Gwei less does not.
func TestJustification_ExactTwoThirdsBoundary(t *testing.T) {
	params.UseMinimalConfig()
	defer params.UseMainnetConfig()
	cfg := params.BeaconConfig()

	newState := func() *types.BeaconState {
		// 12 validators so the total stake divides cleanly by 3.
		st := testutil.NewGenesisState(12)
		st.Slot = 3*cfg.SlotsPerEpoch - 1
		return st
	}

	total := 12 * cfg.MaxEffectiveBalance
	exactTwoThirds := 2 * total / 3

	st := newState()
	require.NoError(t, processJustificationAndFinalization(st, exactTwoThirds, 0))
	require.Equal(t, helpers.PrevEpoch(st), st.CurrentJustifiedCheckpoint.Epoch)

	st = newState()
	require.NoError(t, processJustificationAndFinalization(st, exactTwoThirds-1, 0))
	require.Equal(t, cfg.GenesisEpoch, st.CurrentJustifiedCheckpoint.Epoch)
}

// TestProcessSlashings_AppliesProportionalPenalty puts one slashed
// validator at the midpoint of its slashings-vector window and checks
// the debit is proportional to the recorded slashed stake.
func TestProcessSlashings_AppliesProportionalPenalty(t *testing.T) {
	params.UseMinimalConfig()
	defer params.UseMainnetConfig()
	cfg := params.BeaconConfig()

	st := testutil.NewGenesisState(8)
	currentEpoch := helpers.CurrentEpoch(st)

	slashed := st.Validators[3].Copy()
	slashed.Slashed = true
	slashed.WithdrawableEpoch = currentEpoch + cfg.EpochsPerSlashingsVector/2
	st.SetValidator(3, slashed)
	st.SetSlashing(currentEpoch%cfg.EpochsPerSlashingsVector, slashed.EffectiveBalance)

	balanceBefore := st.Balances[3]
	require.NoError(t, processSlashings(st))

	totalBalance := helpers.TotalActiveBalance(st)
	adjusted := slashed.EffectiveBalance * 3
	if adjusted > totalBalance {
		adjusted = totalBalance
	}
	increment := cfg.EffectiveBalanceIncrement
	wantPenalty := slashed.EffectiveBalance / increment * adjusted / totalBalance * increment

	require.NotZero(t, wantPenalty)
	require.Equal(t, balanceBefore-wantPenalty, st.Balances[3])
}

// TestProcessSlashings_SkipsValidatorsOutsideWindow confirms only
// validators at the exact midpoint of their slashings window are
// debited.
func TestProcessSlashings_SkipsValidatorsOutsideWindow(t *testing.T) {
	params.UseMinimalConfig()
	defer params.UseMainnetConfig()
	cfg := params.BeaconConfig()

	st := testutil.NewGenesisState(8)
	slashed := st.Validators[2].Copy()
	slashed.Slashed = true
	slashed.WithdrawableEpoch = helpers.CurrentEpoch(st) + cfg.EpochsPerSlashingsVector
	st.SetValidator(2, slashed)

	balanceBefore := st.Balances[2]
	require.NoError(t, processSlashings(st))
	require.Equal(t, balanceBefore, st.Balances[2])
}

// TestProcessRegistryUpdates_ActivatesUpToChurn queues more eligible
// validators than one epoch's churn allows and checks activation stops
// at the limit, oldest eligibility first.
func TestProcessRegistryUpdates_ActivatesUpToChurn(t *testing.T) {
	params.UseMinimalConfig()
	defer params.UseMainnetConfig()
	cfg := params.BeaconConfig()

	st := testutil.NewGenesisState(8)
	st.Slot = cfg.SlotsPerEpoch // epoch 1

	pendingCount := cfg.MinPerEpochChurnLimit + 2
	for i := uint64(0); i < pendingCount; i++ {
		v := &types.Validator{
			EffectiveBalance:           cfg.MaxEffectiveBalance,
			ActivationEligibilityEpoch: i + 1,
			ActivationEpoch:            cfg.FarFutureEpoch,
			ExitEpoch:                  cfg.FarFutureEpoch,
			WithdrawableEpoch:          cfg.FarFutureEpoch,
		}
		st.AppendValidator(v, cfg.MaxEffectiveBalance)
	}

	require.NoError(t, processRegistryUpdates(st))

	activated := 0
	for _, v := range st.Validators[8:] {
		if v.ActivationEpoch != cfg.FarFutureEpoch {
			activated++
		}
	}
	require.Equal(t, int(cfg.MinPerEpochChurnLimit), activated)

	// The oldest eligibilities won the queue slots.
	for i := uint64(0); i < cfg.MinPerEpochChurnLimit; i++ {
		require.NotEqual(t, cfg.FarFutureEpoch, st.Validators[8+i].ActivationEpoch)
	}
}

// TestProcessRegistryUpdates_EjectsLowBalanceValidator confirms a
// validator whose effective balance fell to the ejection floor has an
// exit initiated by the registry sweep.
func TestProcessRegistryUpdates_EjectsLowBalanceValidator(t *testing.T) {
	params.UseMinimalConfig()
	defer params.UseMainnetConfig()
	cfg := params.BeaconConfig()

	st := testutil.NewGenesisState(8)
	weak := st.Validators[5].Copy()
	weak.EffectiveBalance = cfg.EjectionBalance
	st.SetValidator(5, weak)

	require.NoError(t, processRegistryUpdates(st))
	require.NotEqual(t, cfg.FarFutureEpoch, st.Validators[5].ExitEpoch)
}
