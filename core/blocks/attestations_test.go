package blocks_test

import (
	"testing"

	"github.com/prysmaticlabs/go-bitfield"
	"github.com/stretchr/testify/require"

	"github.com/sigmaprotocol/beacon-core/config/params"
	"github.com/sigmaprotocol/beacon-core/core/blocks"
	"github.com/sigmaprotocol/beacon-core/core/helpers"
	"github.com/sigmaprotocol/beacon-core/core/state"
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

func buildValidAttestation(t *testing.T, st *types.BeaconState) *types.Attestation {
	t.Helper()
	committee, err := helpers.BeaconCommittee(st, 0, 0)
	require.NoError(t, err)
	require.NotEmpty(t, committee)

	bits := bitfield.NewBitlist(uint64(len(committee)))
	bits.SetBitAt(0, true)

	return &types.Attestation{
		AggregationBits: bits,
		Data: &types.AttestationData{
			Slot:            0,
			CommitteeIndex:  0,
			BeaconBlockRoot: [32]byte{0xAB},
			Source:          &types.Checkpoint{Epoch: 0},
			Target:          &types.Checkpoint{Epoch: 0},
		},
	}
}

func advancedGenesis(t *testing.T, numValidators int) *types.BeaconState {
	t.Helper()
	st := testutil.NewGenesisState(numValidators)
	require.NoError(t, state.ProcessSlots(st, 1))
	return st
}

func TestProcessAttestations_AcceptsValidAttestation(t *testing.T) {
	withTestOptions(t)
	st := advancedGenesis(t, 8)
	att := buildValidAttestation(t, st)

	require.NoError(t, blocks.ProcessAttestations(st, []*types.Attestation{att}))
	require.Len(t, st.CurrentEpochAttestations, 1)
	require.Equal(t, att.Data, st.CurrentEpochAttestations[0].Data)
	require.Equal(t, st.Slot-att.Data.Slot, st.CurrentEpochAttestations[0].InclusionDelay)
}

func TestProcessAttestations_RejectsTooManyInOneBlock(t *testing.T) {
	withTestOptions(t)
	cfg := params.BeaconConfig()
	st := advancedGenesis(t, 8)
	att := buildValidAttestation(t, st)

	atts := make([]*types.Attestation, cfg.MaxAttestations+1)
	for i := range atts {
		atts[i] = att
	}
	require.Error(t, blocks.ProcessAttestations(st, atts))
}

func TestProcessAttestations_RejectsBeforeInclusionDelayElapses(t *testing.T) {
	withTestOptions(t)
	st := testutil.NewGenesisState(8)
	att := buildValidAttestation(t, st)

	require.Error(t, blocks.ProcessAttestations(st, []*types.Attestation{att}))
}

func TestProcessAttestations_RejectsAttestationOlderThanOneEpoch(t *testing.T) {
	withTestOptions(t)
	cfg := params.BeaconConfig()
	st := testutil.NewGenesisState(8)
	require.NoError(t, state.ProcessSlots(st, cfg.SlotsPerEpoch+1))
	att := buildValidAttestation(t, st)

	require.Error(t, blocks.ProcessAttestations(st, []*types.Attestation{att}))
}

func TestProcessAttestations_RejectsWrongSourceCheckpoint(t *testing.T) {
	withTestOptions(t)
	st := advancedGenesis(t, 8)
	att := buildValidAttestation(t, st)
	att.Data.Source = &types.Checkpoint{Epoch: 1}

	require.Error(t, blocks.ProcessAttestations(st, []*types.Attestation{att}))
}

func TestProcessAttestations_RejectsMismatchedTargetEpoch(t *testing.T) {
	withTestOptions(t)
	st := advancedGenesis(t, 8)
	att := buildValidAttestation(t, st)
	att.Data.Target = &types.Checkpoint{Epoch: 1}

	require.Error(t, blocks.ProcessAttestations(st, []*types.Attestation{att}))
}

func TestProcessAttestations_RejectsBitfieldLengthMismatch(t *testing.T) {
	withTestOptions(t)
	st := advancedGenesis(t, 8)
	att := buildValidAttestation(t, st)
	att.AggregationBits = bitfield.NewBitlist(uint64(att.AggregationBits.Len()) + 1)
	att.AggregationBits.SetBitAt(0, true)

	require.Error(t, blocks.ProcessAttestations(st, []*types.Attestation{att}))
}
