package helpers

import (
	"encoding/binary"

	sha256 "github.com/minio/sha256-simd"
	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/config/params"
	"github.com/sigmaprotocol/beacon-core/core/errkind"
)

// maxRandomByte is the ceiling a candidate's weighted-sampling byte is
// compared against in ComputeProposerIndex: (1<<(8*1))-1. An off-by-one
// `1<<(8*n-1)` variant of this constant appears elsewhere in older
// implementations; this value avoids that bias.
const maxRandomByte = 255

// ComputeShuffledIndex returns the permuted position of index under the
// swap-or-not shuffle (Moon Math's "shuffling" construction), run for
// SHUFFLE_ROUND_COUNT rounds. Deterministic and its own inverse when run
// with the round order reversed (UnshuffleIndex).
func ComputeShuffledIndex(index, indexCount uint64, seed [32]byte) (uint64, error) {
	if indexCount == 0 {
		return 0, errors.Wrap(errkind.ErrInvariantViolation, "shuffle: index count is zero")
	}
	if index >= indexCount {
		return 0, errors.Wrapf(errkind.ErrInvariantViolation, "shuffle: index %d out of range for count %d", index, indexCount)
	}
	if indexCount == 1 {
		return 0, nil
	}

	rounds := params.BeaconConfig().ShuffleRoundCount
	cur := index
	for round := uint64(0); round < rounds; round++ {
		cur = shuffleRound(cur, indexCount, seed, round)
	}
	return cur, nil
}

// UnshuffleIndex inverts ComputeShuffledIndex by running the rounds in
// reverse order.
func UnshuffleIndex(shuffledIndex, indexCount uint64, seed [32]byte) (uint64, error) {
	if indexCount == 0 {
		return 0, errors.Wrap(errkind.ErrInvariantViolation, "shuffle: index count is zero")
	}
	if shuffledIndex >= indexCount {
		return 0, errors.Wrapf(errkind.ErrInvariantViolation, "shuffle: index %d out of range for count %d", shuffledIndex, indexCount)
	}
	if indexCount == 1 {
		return 0, nil
	}

	rounds := params.BeaconConfig().ShuffleRoundCount
	cur := shuffledIndex
	for r := int64(rounds) - 1; r >= 0; r-- {
		cur = shuffleRound(cur, indexCount, seed, uint64(r))
	}
	return cur, nil
}

func shuffleRound(cur, indexCount uint64, seed [32]byte, round uint64) uint64 {
	var pivotInput [33]byte
	copy(pivotInput[:32], seed[:])
	pivotInput[32] = byte(round)
	pivotHash := sha256.Sum256(pivotInput[:])
	pivot := binary.LittleEndian.Uint64(pivotHash[:8]) % indexCount

	flip := (pivot + indexCount - cur) % indexCount
	position := flip
	if cur > flip {
		position = cur
	}

	var sourceInput [37]byte
	copy(sourceInput[:32], seed[:])
	sourceInput[32] = byte(round)
	binary.LittleEndian.PutUint32(sourceInput[33:], uint32(position/256))
	source := sha256.Sum256(sourceInput[:])

	byteIdx := (position % 256) / 8
	bitIdx := position % 8
	if (source[byteIdx]>>bitIdx)&1 != 0 {
		return flip
	}
	return cur
}

// ShuffleList returns indices permuted in full under seed, in the order
// ComputeShuffledIndex would place each original position.
func ShuffleList(indices []uint64, seed [32]byte) ([]uint64, error) {
	n := uint64(len(indices))
	if n == 0 {
		return nil, nil
	}
	result := make([]uint64, n)
	for i := uint64(0); i < n; i++ {
		shuffled, err := ComputeShuffledIndex(i, n, seed)
		if err != nil {
			return nil, err
		}
		result[i] = indices[shuffled]
	}
	return result, nil
}
