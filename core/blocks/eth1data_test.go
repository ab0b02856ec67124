package blocks

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sigmaprotocol/beacon-core/config/params"
	"github.com/sigmaprotocol/beacon-core/core/testutil"
	"github.com/sigmaprotocol/beacon-core/core/types"
)

func TestProcessEth1Data_TalliesVoteWithoutMajority(t *testing.T) {
	withTestOptions(t)
	st := testutil.NewGenesisState(4)
	original := st.Eth1Data

	vote := &types.Eth1Data{DepositRoot: [32]byte{0x01}, DepositCount: 1}
	body := &types.BeaconBlockBody{Eth1Data: vote}

	require.NoError(t, ProcessEth1Data(st, body))
	require.Len(t, st.Eth1DataVotes, 1)
	require.Same(t, original, st.Eth1Data)
}

func TestProcessEth1Data_AdoptsOnMajority(t *testing.T) {
	withTestOptions(t)
	st := testutil.NewGenesisState(4)
	cfg := params.BeaconConfig()
	votingPeriodSlots := cfg.EpochsPerEth1VotingPeriod * cfg.SlotsPerEpoch

	vote := &types.Eth1Data{DepositRoot: [32]byte{0x02}, DepositCount: 2}
	for i := uint64(0); i*2 <= votingPeriodSlots; i++ {
		st.Eth1DataVotes = append(st.Eth1DataVotes, vote)
	}
	require.False(t, st.Eth1Data.Equal(vote))

	body := &types.BeaconBlockBody{Eth1Data: vote}
	require.NoError(t, ProcessEth1Data(st, body))
	require.True(t, st.Eth1Data.Equal(vote))
}

func TestEth1Vote_PicksMostVotedAmongConsidered(t *testing.T) {
	st := testutil.NewGenesisState(4)
	candidateA := &types.Eth1Data{DepositRoot: [32]byte{0xA}}
	candidateB := &types.Eth1Data{DepositRoot: [32]byte{0xB}}
	st.Eth1DataVotes = []*types.Eth1Data{candidateA, candidateB, candidateB}

	got := Eth1Vote(st, []*types.Eth1Data{candidateA, candidateB})
	require.True(t, got.Equal(candidateB))
}

func TestEth1Vote_TiesGoToEarliestInTally(t *testing.T) {
	st := testutil.NewGenesisState(4)
	candidateA := &types.Eth1Data{DepositRoot: [32]byte{0xA}}
	candidateB := &types.Eth1Data{DepositRoot: [32]byte{0xB}}
	st.Eth1DataVotes = []*types.Eth1Data{candidateA, candidateB}

	got := Eth1Vote(st, []*types.Eth1Data{candidateA, candidateB})
	require.True(t, got.Equal(candidateA))
}

func TestEth1Vote_FallsBackToLastConsideredWhenNoneMatchTally(t *testing.T) {
	st := testutil.NewGenesisState(4)
	st.Eth1DataVotes = nil
	candidateA := &types.Eth1Data{DepositRoot: [32]byte{0xA}}
	candidateB := &types.Eth1Data{DepositRoot: [32]byte{0xB}}

	got := Eth1Vote(st, []*types.Eth1Data{candidateA, candidateB})
	require.True(t, got.Equal(candidateB))
}

func TestEth1Vote_FallsBackToStateDataWhenNothingConsidered(t *testing.T) {
	st := testutil.NewGenesisState(4)
	got := Eth1Vote(st, nil)
	require.Same(t, st.Eth1Data, got)
}
