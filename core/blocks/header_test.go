package blocks_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sigmaprotocol/beacon-core/core/blocks"
	"github.com/sigmaprotocol/beacon-core/core/helpers"
	"github.com/sigmaprotocol/beacon-core/core/state"
	"github.com/sigmaprotocol/beacon-core/core/testutil"
	"github.com/sigmaprotocol/beacon-core/core/types"
)

func buildHeaderTestBlock(t *testing.T, genesisState *types.BeaconState) (*types.BeaconState, *types.SignedBeaconBlock) {
	t.Helper()
	st := genesisState.Copy()
	require.NoError(t, state.ProcessSlots(st, 1))

	proposerIndex, err := helpers.BeaconProposerIndex(st)
	require.NoError(t, err)

	block := &types.BeaconBlock{
		Slot:          1,
		ProposerIndex: proposerIndex,
		ParentRoot:    [32]byte(st.LatestBlockHeader.HashTreeRoot()),
		Body:          &types.BeaconBlockBody{Eth1Data: genesisState.Eth1Data},
	}
	return st, &types.SignedBeaconBlock{Block: block}
}

func TestProcessBlockHeader_AcceptsValidHeader(t *testing.T) {
	withTestOptions(t)
	genesis := testutil.NewGenesisState(8)
	st, signed := buildHeaderTestBlock(t, genesis)

	require.NoError(t, blocks.ProcessBlockHeader(st, signed))
	require.Equal(t, signed.Block.Slot, st.LatestBlockHeader.Slot)
	require.Equal(t, signed.Block.ProposerIndex, st.LatestBlockHeader.ProposerIndex)
	require.Equal(t, [32]byte(signed.Block.Body.HashTreeRoot()), st.LatestBlockHeader.BodyRoot)
}

func TestProcessBlockHeader_RejectsWrongSlot(t *testing.T) {
	withTestOptions(t)
	genesis := testutil.NewGenesisState(8)
	st, signed := buildHeaderTestBlock(t, genesis)
	signed.Block.Slot = 2

	require.Error(t, blocks.ProcessBlockHeader(st, signed))
}

func TestProcessBlockHeader_RejectsStaleSlot(t *testing.T) {
	withTestOptions(t)
	genesis := testutil.NewGenesisState(8)
	st, signed := buildHeaderTestBlock(t, genesis)
	st.LatestBlockHeader.Slot = 1

	require.Error(t, blocks.ProcessBlockHeader(st, signed))
}

func TestProcessBlockHeader_RejectsWrongProposer(t *testing.T) {
	withTestOptions(t)
	genesis := testutil.NewGenesisState(8)
	st, signed := buildHeaderTestBlock(t, genesis)
	signed.Block.ProposerIndex++

	require.Error(t, blocks.ProcessBlockHeader(st, signed))
}

func TestProcessBlockHeader_RejectsWrongParentRoot(t *testing.T) {
	withTestOptions(t)
	genesis := testutil.NewGenesisState(8)
	st, signed := buildHeaderTestBlock(t, genesis)
	signed.Block.ParentRoot[0] ^= 0xFF

	require.Error(t, blocks.ProcessBlockHeader(st, signed))
}

func TestProcessBlockHeader_RejectsSlashedProposer(t *testing.T) {
	withTestOptions(t)
	genesis := testutil.NewGenesisState(8)
	st, signed := buildHeaderTestBlock(t, genesis)
	st.Validators[signed.Block.ProposerIndex].Slashed = true

	require.Error(t, blocks.ProcessBlockHeader(st, signed))
}
