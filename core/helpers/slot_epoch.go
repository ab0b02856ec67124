// Package helpers implements the pure spec-helper functions the state
// transition and fork choice are built from: epoch/slot arithmetic,
// RANDAO mixing, the shuffled-index permutation, validator-set queries
// and committee assignment. Every helper is parameterised by
// params.BeaconConfig() rather than a hard-coded constant.
package helpers

import (
	"github.com/sigmaprotocol/beacon-core/config/params"
	"github.com/sigmaprotocol/beacon-core/core/types"
)

// SlotToEpoch returns the epoch number containing slot.
func SlotToEpoch(slot uint64) uint64 {
	return slot / params.BeaconConfig().SlotsPerEpoch
}

// CurrentEpoch returns the epoch of state's current slot.
func CurrentEpoch(state *types.BeaconState) uint64 {
	return SlotToEpoch(state.Slot)
}

// PrevEpoch returns the epoch before state's current one, saturating at
// the genesis epoch rather than underflowing.
func PrevEpoch(state *types.BeaconState) uint64 {
	current := CurrentEpoch(state)
	if current > params.BeaconConfig().GenesisEpoch {
		return current - 1
	}
	return params.BeaconConfig().GenesisEpoch
}

// NextEpoch returns the epoch following state's current one.
func NextEpoch(state *types.BeaconState) uint64 {
	return CurrentEpoch(state) + 1
}

// StartSlot returns the first slot of epoch.
func StartSlot(epoch uint64) uint64 {
	return epoch * params.BeaconConfig().SlotsPerEpoch
}

// IsEpochStart reports whether slot is the first slot of its epoch.
func IsEpochStart(slot uint64) bool {
	return slot%params.BeaconConfig().SlotsPerEpoch == 0
}

// IsEpochEnd reports whether slot is the last slot of its epoch.
func IsEpochEnd(slot uint64) bool {
	return IsEpochStart(slot + 1)
}
