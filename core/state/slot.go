package state

import (
	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/config/params"
	"github.com/sigmaprotocol/beacon-core/core/errkind"
	"github.com/sigmaprotocol/beacon-core/core/types"
)

// ProcessSlot runs the per-slot bookkeeping that happens whether or not
// a block is attached to the slot: it caches the pre-slot state and
// latest-header roots into their respective historical rings.
//
// Spec pseudocode definition:
//  def process_slot(state: BeaconState) -> None:
//      previous_state_root = hash_tree_root(state)
//      state.state_roots[state.slot % SLOTS_PER_HISTORICAL_ROOT] = previous_state_root
//      if state.latest_block_header.state_root == Bytes32():
//          state.latest_block_header.state_root = previous_state_root
//      previous_block_root = hash_tree_root(state.latest_block_header)
//      state.block_roots[state.slot % SLOTS_PER_HISTORICAL_ROOT] = previous_block_root
func ProcessSlot(st *types.BeaconState) error {
	cfg := params.BeaconConfig()

	previousStateRoot := st.HashTreeRoot()
	ringIndex := st.Slot % cfg.SlotsPerHistoricalRoot
	st.StateRoots[ringIndex] = [32]byte(previousStateRoot)

	var zero [32]byte
	if st.LatestBlockHeader.StateRoot == zero {
		st.LatestBlockHeader.StateRoot = [32]byte(previousStateRoot)
	}

	previousBlockRoot := st.LatestBlockHeader.HashTreeRoot()
	st.BlockRoots[ringIndex] = [32]byte(previousBlockRoot)
	return nil
}

// ProcessSlots advances state from its current slot up to (but not
// including) targetSlot, running ProcessSlot once per slot and
// ProcessEpoch whenever a slot boundary crosses into a new epoch. Empty
// slots (no attached block) are processed identically to slots that will
// carry one; the caller runs ProcessBlock separately once ProcessSlots
// reaches block.Slot.
func ProcessSlots(st *types.BeaconState, targetSlot uint64) error {
	if st.Slot > targetSlot {
		return errors.Wrapf(errkind.ErrInvalidBlock, "state slot %d is already past target slot %d", st.Slot, targetSlot)
	}
	cfg := params.BeaconConfig()
	for st.Slot < targetSlot {
		if err := ProcessSlot(st); err != nil {
			return err
		}
		if (st.Slot+1)%cfg.SlotsPerEpoch == 0 {
			if err := ProcessEpoch(st); err != nil {
				return errors.Wrap(err, "could not process epoch")
			}
		}
		st.Slot++
	}
	return nil
}
