package helpers

import (
	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/config/params"
	"github.com/sigmaprotocol/beacon-core/core/errkind"
	"github.com/sigmaprotocol/beacon-core/core/types"
	"github.com/sigmaprotocol/beacon-core/encoding/ssz"
	"github.com/sigmaprotocol/beacon-core/shared/hashutil"
)

// ComputeSigningRoot folds a signature domain into an object's tree-hash
// root, producing the actual message a BLS signature is computed over:
// hash(object_root || little_endian(domain)).
func ComputeSigningRoot(objectRoot ssz.Root, domain uint64) ssz.Root {
	var domainBytes [8]byte
	for i := 0; i < 8; i++ {
		domainBytes[i] = byte(domain >> (8 * i))
	}
	buf := make([]byte, 0, 40)
	buf = append(buf, objectRoot[:]...)
	buf = append(buf, domainBytes[:]...)
	return ssz.Root(hashutil.Hash(buf))
}

// BlockRootAtSlot returns the block root state has recorded for slot, a
// recent slot strictly before state.Slot and within
// SLOTS_PER_HISTORICAL_ROOT of it.
func BlockRootAtSlot(state *types.BeaconState, slot uint64) ([32]byte, error) {
	cfg := params.BeaconConfig()
	if slot >= state.Slot || state.Slot > slot+cfg.SlotsPerHistoricalRoot {
		return [32]byte{}, errors.Wrapf(errkind.ErrInvariantViolation,
			"block root: slot %d out of range for state slot %d", slot, state.Slot)
	}
	return state.BlockRoots[slot%cfg.SlotsPerHistoricalRoot], nil
}

// BlockRoot returns the block root recorded at the first slot of epoch,
// the form epoch-boundary checks (justification/finalization, attestation
// target matching) use.
func BlockRoot(state *types.BeaconState, epoch uint64) ([32]byte, error) {
	return BlockRootAtSlot(state, StartSlot(epoch))
}
