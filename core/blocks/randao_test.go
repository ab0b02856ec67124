package blocks

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sigmaprotocol/beacon-core/core/helpers"
	"github.com/sigmaprotocol/beacon-core/core/testutil"
	"github.com/sigmaprotocol/beacon-core/core/types"
)

func TestProcessRandao_MixesRevealIntoCurrentEpoch(t *testing.T) {
	withTestOptions(t)
	st := testutil.NewGenesisState(8)
	epoch := helpers.CurrentEpoch(st)
	before, err := st.RandaoMixAtEpoch(epoch)
	require.NoError(t, err)

	body := &types.BeaconBlockBody{}
	body.RandaoReveal[0] = 0x42

	require.NoError(t, ProcessRandao(st, body))

	after, err := st.RandaoMixAtEpoch(epoch)
	require.NoError(t, err)
	require.NotEqual(t, before, after)
}

func TestProcessRandao_DifferentRevealsProduceDifferentMixes(t *testing.T) {
	withTestOptions(t)
	st1 := testutil.NewGenesisState(8)
	st2 := testutil.NewGenesisState(8)

	body1 := &types.BeaconBlockBody{}
	body1.RandaoReveal[0] = 0x01
	body2 := &types.BeaconBlockBody{}
	body2.RandaoReveal[0] = 0x02

	require.NoError(t, ProcessRandao(st1, body1))
	require.NoError(t, ProcessRandao(st2, body2))

	epoch := helpers.CurrentEpoch(st1)
	mix1, err := st1.RandaoMixAtEpoch(epoch)
	require.NoError(t, err)
	mix2, err := st2.RandaoMixAtEpoch(epoch)
	require.NoError(t, err)
	require.NotEqual(t, mix1, mix2)
}
