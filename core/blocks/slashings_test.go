package blocks

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sigmaprotocol/beacon-core/config/params"
	"github.com/sigmaprotocol/beacon-core/core/helpers"
	"github.com/sigmaprotocol/beacon-core/core/testutil"
	"github.com/sigmaprotocol/beacon-core/core/types"
)

func withTestOptions(t *testing.T) {
	t.Helper()
	params.UseMinimalConfig()
	params.OverrideSpecOptions(params.TestSpecOptions())
	t.Cleanup(func() {
		params.UseMainnetConfig()
		params.OverrideSpecOptions(params.DefaultSpecOptions())
	})
}

func header(slot, proposer uint64, bodyRoot byte) *types.SignedBeaconBlockHeader {
	var root [32]byte
	root[0] = bodyRoot
	return &types.SignedBeaconBlockHeader{
		Message: &types.BeaconBlockHeader{Slot: slot, ProposerIndex: proposer, BodyRoot: root},
	}
}

func TestSlashValidator_PenalizesAndRewardsProposer(t *testing.T) {
	withTestOptions(t)
	st := testutil.NewGenesisState(4)
	cfg := params.BeaconConfig()

	proposerIndex, err := helpers.BeaconProposerIndex(st)
	require.NoError(t, err)
	slashedIndex := proposerIndex + 1
	if slashedIndex >= uint64(len(st.Validators)) {
		slashedIndex = 0
	}

	balanceBefore := st.Balances[slashedIndex]
	proposerBalanceBefore := st.Balances[proposerIndex]
	effectiveBalance := st.Validators[slashedIndex].EffectiveBalance

	require.NoError(t, SlashValidator(st, slashedIndex))

	require.True(t, st.Validators[slashedIndex].Slashed)
	require.Equal(t, balanceBefore-effectiveBalance/cfg.MinSlashingPenaltyQuotient, st.Balances[slashedIndex])
	require.Equal(t, proposerBalanceBefore+effectiveBalance/cfg.WhistleblowerRewardQuotient, st.Balances[proposerIndex])

	epoch := helpers.CurrentEpoch(st)
	slotIndex := epoch % cfg.EpochsPerSlashingsVector
	require.Equal(t, effectiveBalance, st.Slashings[slotIndex])
}

func TestProcessProposerSlashings_AppliesSlashing(t *testing.T) {
	withTestOptions(t)
	st := testutil.NewGenesisState(4)

	slashings := []*types.ProposerSlashing{
		{Header1: header(0, 1, 1), Header2: header(0, 1, 2)},
	}
	require.NoError(t, ProcessProposerSlashings(st, slashings))
	require.True(t, st.Validators[1].Slashed)
}

func TestProcessProposerSlashings_RejectsMatchingHeaders(t *testing.T) {
	withTestOptions(t)
	st := testutil.NewGenesisState(4)

	slashings := []*types.ProposerSlashing{
		{Header1: header(0, 1, 1), Header2: header(0, 1, 1)},
	}
	require.Error(t, ProcessProposerSlashings(st, slashings))
}

func TestProcessProposerSlashings_RejectsDifferentProposers(t *testing.T) {
	withTestOptions(t)
	st := testutil.NewGenesisState(4)

	slashings := []*types.ProposerSlashing{
		{Header1: header(0, 1, 1), Header2: header(0, 2, 2)},
	}
	require.Error(t, ProcessProposerSlashings(st, slashings))
}

func TestProcessProposerSlashings_RejectsAlreadySlashed(t *testing.T) {
	withTestOptions(t)
	st := testutil.NewGenesisState(4)
	require.NoError(t, SlashValidator(st, 1))

	slashings := []*types.ProposerSlashing{
		{Header1: header(0, 1, 1), Header2: header(0, 1, 2)},
	}
	require.Error(t, ProcessProposerSlashings(st, slashings))
}

func TestProcessProposerSlashings_RejectsTooManyInOneBlock(t *testing.T) {
	withTestOptions(t)
	cfg := params.BeaconConfig()
	st := testutil.NewGenesisState(4)

	slashings := make([]*types.ProposerSlashing, cfg.MaxProposerSlashings+1)
	for i := range slashings {
		slashings[i] = &types.ProposerSlashing{Header1: header(0, 1, 1), Header2: header(0, 1, 2)}
	}
	require.Error(t, ProcessProposerSlashings(st, slashings))
}

func indexedAttestation(source, target uint64, blockRoot byte, indices []uint64) *types.IndexedAttestation {
	var root [32]byte
	root[0] = blockRoot
	return &types.IndexedAttestation{
		AttestingIndices: indices,
		Data: &types.AttestationData{
			Slot:            0,
			BeaconBlockRoot: root,
			Source:          &types.Checkpoint{Epoch: source},
			Target:          &types.Checkpoint{Epoch: target},
		},
	}
}

func TestProcessAttesterSlashings_DoubleVoteSlashesCommonIndices(t *testing.T) {
	withTestOptions(t)
	st := testutil.NewGenesisState(4)

	slashings := []*types.AttesterSlashing{{
		Attestation1: indexedAttestation(0, 1, 1, []uint64{1, 2}),
		Attestation2: indexedAttestation(0, 1, 2, []uint64{2, 3}),
	}}
	require.NoError(t, ProcessAttesterSlashings(st, slashings))
	require.True(t, st.Validators[2].Slashed)
	require.False(t, st.Validators[1].Slashed)
	require.False(t, st.Validators[3].Slashed)
}

func TestProcessAttesterSlashings_SurroundVoteSlashesCommonIndices(t *testing.T) {
	withTestOptions(t)
	st := testutil.NewGenesisState(4)

	slashings := []*types.AttesterSlashing{{
		Attestation1: indexedAttestation(0, 5, 1, []uint64{0, 1}),
		Attestation2: indexedAttestation(1, 4, 2, []uint64{1}),
	}}
	require.NoError(t, ProcessAttesterSlashings(st, slashings))
	require.True(t, st.Validators[1].Slashed)
}

func TestProcessAttesterSlashings_RejectsNeitherDoubleNorSurroundVote(t *testing.T) {
	withTestOptions(t)
	st := testutil.NewGenesisState(4)

	slashings := []*types.AttesterSlashing{{
		Attestation1: indexedAttestation(0, 1, 1, []uint64{1}),
		Attestation2: indexedAttestation(2, 3, 2, []uint64{1}),
	}}
	require.Error(t, ProcessAttesterSlashings(st, slashings))
}

func TestProcessAttesterSlashings_RejectsNoCommonIndices(t *testing.T) {
	withTestOptions(t)
	st := testutil.NewGenesisState(4)

	slashings := []*types.AttesterSlashing{{
		Attestation1: indexedAttestation(0, 1, 1, []uint64{0}),
		Attestation2: indexedAttestation(0, 1, 2, []uint64{1}),
	}}
	require.Error(t, ProcessAttesterSlashings(st, slashings))
}

func TestProcessAttesterSlashings_RejectsUnsortedIndices(t *testing.T) {
	withTestOptions(t)
	st := testutil.NewGenesisState(4)

	slashings := []*types.AttesterSlashing{{
		Attestation1: indexedAttestation(0, 1, 1, []uint64{2, 1}),
		Attestation2: indexedAttestation(0, 1, 2, []uint64{1, 2}),
	}}
	require.Error(t, ProcessAttesterSlashings(st, slashings))
}
