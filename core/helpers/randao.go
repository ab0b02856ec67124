package helpers

import (
	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/config/params"
	"github.com/sigmaprotocol/beacon-core/core/errkind"
	"github.com/sigmaprotocol/beacon-core/core/types"
	"github.com/sigmaprotocol/beacon-core/encoding/ssz"
	"github.com/sigmaprotocol/beacon-core/shared/hashutil"
)

// RandaoMix returns the RANDAO mix recorded for wantedEpoch, read from
// the ring at index (wantedEpoch mod EPOCHS_PER_HISTORICAL_VECTOR).
// Bounds follow get_randao_mix: wantedEpoch must fall in
// (current_epoch - ring_length, current_epoch].
func RandaoMix(state *types.BeaconState, wantedEpoch uint64) ([32]byte, error) {
	cfg := params.BeaconConfig()
	currentEpoch := CurrentEpoch(state)

	if wantedEpoch > currentEpoch {
		return [32]byte{}, errors.Wrapf(errkind.ErrInvariantViolation,
			"randao mix epoch %d is ahead of current epoch %d", wantedEpoch, currentEpoch)
	}
	// The exclusive lower bound only exists once the ring has wrapped.
	if currentEpoch >= cfg.EpochsPerHistoricalVector {
		earliestEpoch := currentEpoch - cfg.EpochsPerHistoricalVector
		if wantedEpoch <= earliestEpoch {
			return [32]byte{}, errors.Wrapf(errkind.ErrInvariantViolation,
				"randao mix epoch %d out of bounds: %d < epoch <= %d", wantedEpoch, earliestEpoch, currentEpoch)
		}
	}
	return state.RandaoMixAtEpoch(wantedEpoch)
}

// Seed derives the seed used for both committee shuffling and proposer
// selection: hash(randao_mix(epoch - MIN_SEED_LOOKAHEAD - 1) ++
// domain_type ++ little_endian(epoch)), the phase-0 get_seed formula
// (no active-index-root term; that field belongs to the sharding-era
// witness state this module does not carry).
func Seed(state *types.BeaconState, epoch uint64, domainType uint32) ([32]byte, error) {
	cfg := params.BeaconConfig()
	lookback := cfg.MinSeedLookahead + 1
	var mixEpoch uint64
	if epoch > lookback {
		mixEpoch = epoch - lookback
	}
	mix, err := RandaoMix(state, mixEpoch)
	if err != nil {
		return [32]byte{}, errors.Wrap(err, "could not resolve randao mix for seed")
	}

	buf := make([]byte, 0, 32+4+32)
	buf = append(buf, mix[:]...)
	buf = append(buf, byte(domainType), byte(domainType>>8), byte(domainType>>16), byte(domainType>>24))
	epochChunk := ssz.ChunksFromBytes(ssz.MarshalUint64(epoch))[0]
	buf = append(buf, epochChunk[:]...)
	return hashutil.Hash(buf), nil
}
