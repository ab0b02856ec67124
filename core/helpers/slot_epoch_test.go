package helpers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sigmaprotocol/beacon-core/config/params"
	"github.com/sigmaprotocol/beacon-core/core/types"
)

func TestSlotToEpoch(t *testing.T) {
	cfg := params.BeaconConfig()
	require.Equal(t, uint64(0), SlotToEpoch(0))
	require.Equal(t, uint64(0), SlotToEpoch(cfg.SlotsPerEpoch-1))
	require.Equal(t, uint64(1), SlotToEpoch(cfg.SlotsPerEpoch))
	require.Equal(t, uint64(3), SlotToEpoch(cfg.SlotsPerEpoch*3+5))
}

func TestPrevEpoch_SaturatesAtGenesis(t *testing.T) {
	st := &types.BeaconState{Slot: 0}
	require.Equal(t, params.BeaconConfig().GenesisEpoch, PrevEpoch(st))

	st.Slot = params.BeaconConfig().SlotsPerEpoch
	require.Equal(t, uint64(0), PrevEpoch(st))
}

func TestNextEpoch(t *testing.T) {
	st := &types.BeaconState{Slot: params.BeaconConfig().SlotsPerEpoch * 2}
	require.Equal(t, uint64(3), NextEpoch(st))
}

func TestStartSlot(t *testing.T) {
	cfg := params.BeaconConfig()
	require.Equal(t, uint64(0), StartSlot(0))
	require.Equal(t, cfg.SlotsPerEpoch, StartSlot(1))
	require.Equal(t, cfg.SlotsPerEpoch*5, StartSlot(5))
}

func TestIsEpochStartAndEnd(t *testing.T) {
	cfg := params.BeaconConfig()
	require.True(t, IsEpochStart(0))
	require.True(t, IsEpochStart(cfg.SlotsPerEpoch))
	require.False(t, IsEpochStart(1))

	require.True(t, IsEpochEnd(cfg.SlotsPerEpoch-1))
	require.False(t, IsEpochEnd(0))
}
