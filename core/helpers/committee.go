package helpers

import (
	"github.com/pkg/errors"
	"github.com/prysmaticlabs/go-bitfield"

	"github.com/sigmaprotocol/beacon-core/config/params"
	"github.com/sigmaprotocol/beacon-core/core/types"
)

// CommitteeCountAtSlot returns the number of committees active at slot:
// at least 1, at most MAX_COMMITTEES_PER_SLOT, scaled by the active
// validator count. The per-shard committee split is not carried here —
// this is a single per-slot count.
func CommitteeCountAtSlot(state *types.BeaconState, slot uint64) uint64 {
	cfg := params.BeaconConfig()
	epoch := SlotToEpoch(slot)
	count := ActiveValidatorCount(state, epoch)

	perSlot := count / cfg.SlotsPerEpoch / cfg.TargetCommitteeSize
	if perSlot > cfg.MaxCommitteesPerSlot {
		return cfg.MaxCommitteesPerSlot
	}
	if perSlot == 0 {
		return 1
	}
	return perSlot
}

// BeaconCommittee returns the committee at (slot, index): a contiguous
// slice of the epoch's shuffled active set.
func BeaconCommittee(state *types.BeaconState, slot uint64, index uint64) ([]uint64, error) {
	cfg := params.BeaconConfig()
	epoch := SlotToEpoch(slot)
	committeesPerSlot := CommitteeCountAtSlot(state, slot)

	epochOffset := index + (slot%cfg.SlotsPerEpoch)*committeesPerSlot
	count := committeesPerSlot * cfg.SlotsPerEpoch

	seed, err := Seed(state, epoch, cfg.DomainBeaconAttester)
	if err != nil {
		return nil, errors.Wrap(err, "could not get seed")
	}
	indices := ActiveValidatorIndices(state, epoch)
	return ComputeCommittee(indices, seed, epochOffset, count)
}

// splitOffset returns floor(listSize * index / chunks), the boundary
// helper compute_committee uses to carve [start, end) out of indices.
func splitOffset(listSize, chunks, index uint64) uint64 {
	return (listSize * index) / chunks
}

// ComputeCommittee slices and shuffles indices to produce the committee
// at position index out of count total committees sharing the seed.
func ComputeCommittee(indices []uint64, seed [32]byte, index, count uint64) ([]uint64, error) {
	validatorCount := uint64(len(indices))
	start := splitOffset(validatorCount, count, index)
	end := splitOffset(validatorCount, count, index+1)
	if start > end || end > validatorCount {
		return nil, errors.Errorf("compute committee: invalid bounds [%d, %d) over %d indices", start, end, validatorCount)
	}

	committee := make([]uint64, end-start)
	for i := start; i < end; i++ {
		shuffled, err := ComputeShuffledIndex(i, validatorCount, seed)
		if err != nil {
			return nil, errors.Wrapf(err, "could not shuffle index %d", i)
		}
		committee[i-start] = indices[shuffled]
	}
	return committee, nil
}

// AttestingIndices returns the committee members whose bit is set in bf,
// in committee order, per get_attesting_indices.
func AttestingIndices(bf bitfield.Bitlist, committee []uint64) ([]uint64, error) {
	if bf.Len() != uint64(len(committee)) {
		return nil, errors.Errorf("attesting indices: bitfield length %d does not match committee size %d", bf.Len(), len(committee))
	}
	indices := make([]uint64, 0, len(committee))
	for i, idx := range committee {
		if bf.BitAt(uint64(i)) {
			indices = append(indices, idx)
		}
	}
	return indices, nil
}
