package helpers

import (
	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/config/params"
	"github.com/sigmaprotocol/beacon-core/core/errkind"
	"github.com/sigmaprotocol/beacon-core/core/types"
	"github.com/sigmaprotocol/beacon-core/encoding/ssz"
	"github.com/sigmaprotocol/beacon-core/shared/hashutil"
)

// IsActiveValidator reports whether validator is active at epoch:
// activation_epoch <= epoch < exit_epoch.
func IsActiveValidator(validator *types.Validator, epoch uint64) bool {
	return validator.ActivationEpoch <= epoch && epoch < validator.ExitEpoch
}

// IsSlashableValidator reports whether validator may still be slashed at
// epoch: activated, not already slashed, and before its withdrawable epoch.
func IsSlashableValidator(validator *types.Validator, epoch uint64) bool {
	return !validator.Slashed && validator.ActivationEpoch <= epoch && epoch < validator.WithdrawableEpoch
}

// ActiveValidatorIndices returns the indices of every validator active at
// epoch, in registry order.
func ActiveValidatorIndices(state *types.BeaconState, epoch uint64) []uint64 {
	var indices []uint64
	for i, v := range state.Validators {
		if IsActiveValidator(v, epoch) {
			indices = append(indices, uint64(i))
		}
	}
	return indices
}

// ActiveValidatorCount returns the number of validators active at epoch.
func ActiveValidatorCount(state *types.BeaconState, epoch uint64) uint64 {
	var count uint64
	for _, v := range state.Validators {
		if IsActiveValidator(v, epoch) {
			count++
		}
	}
	return count
}

// TotalBalance returns the sum of effective balances for indices,
// floored at EFFECTIVE_BALANCE_INCREMENT so callers never divide by
// zero when every named validator has been ejected to a zero balance.
func TotalBalance(state *types.BeaconState, indices []uint64) uint64 {
	var sum uint64
	for _, idx := range indices {
		sum += state.Validators[idx].EffectiveBalance
	}
	if sum < params.BeaconConfig().EffectiveBalanceIncrement {
		return params.BeaconConfig().EffectiveBalanceIncrement
	}
	return sum
}

// TotalActiveBalance returns TotalBalance over every validator active at
// state's current epoch.
func TotalActiveBalance(state *types.BeaconState) uint64 {
	return TotalBalance(state, ActiveValidatorIndices(state, CurrentEpoch(state)))
}

// IncreaseBalance credits index's balance by delta.
func IncreaseBalance(state *types.BeaconState, index uint64, delta uint64) {
	state.SetBalance(index, state.Balances[index]+delta)
}

// DecreaseBalance debits index's balance by delta, floored at zero
// rather than underflowing.
func DecreaseBalance(state *types.BeaconState, index uint64, delta uint64) {
	bal := state.Balances[index]
	if delta > bal {
		delta = bal
		state.SetBalance(index, 0)
		return
	}
	state.SetBalance(index, bal-delta)
}

// ComputeActivationExitEpoch returns the epoch during which validator
// activations and exits initiated in epoch take effect.
func ComputeActivationExitEpoch(epoch uint64) uint64 {
	return epoch + 1 + params.BeaconConfig().MaxSeedLookahead
}

// ValidatorChurnLimit returns the per-epoch cap on validators entering or
// exiting the active set: max(MIN_PER_EPOCH_CHURN_LIMIT,
// active_count/CHURN_LIMIT_QUOTIENT).
func ValidatorChurnLimit(activeValidatorCount uint64) uint64 {
	cfg := params.BeaconConfig()
	limit := activeValidatorCount / cfg.ChurnLimitQuotient
	if limit < cfg.MinPerEpochChurnLimit {
		return cfg.MinPerEpochChurnLimit
	}
	return limit
}

// Domain returns the 8-byte (widened to uint64, little-endian) signature
// domain: domainType as 4 little-endian bytes followed by the first 4
// bytes of computeForkDataRoot over domainType and the fork version
// active at epoch.
func Domain(fork *types.Fork, epoch uint64, domainType uint32) uint64 {
	var forkVersion [4]byte
	if epoch < fork.Epoch {
		forkVersion = fork.PreviousVersion
	} else {
		forkVersion = fork.CurrentVersion
	}
	forkDataRoot := computeForkDataRoot(domainType, forkVersion)
	var out [8]byte
	copy(out[:4], ssz.MarshalUint32(domainType))
	copy(out[4:], forkDataRoot[:4])
	return uint64(out[0]) | uint64(out[1])<<8 | uint64(out[2])<<16 | uint64(out[3])<<24 |
		uint64(out[4])<<32 | uint64(out[5])<<40 | uint64(out[6])<<48 | uint64(out[7])<<56
}

// computeForkDataRoot hashes domainType (4 little-endian bytes) followed
// by the fork version; used only to fold fork versioning into the domain
// tag.
func computeForkDataRoot(domainType uint32, forkVersion [4]byte) [32]byte {
	buf := make([]byte, 0, 4+4)
	buf = append(buf, ssz.MarshalUint32(domainType)...)
	buf = append(buf, forkVersion[:]...)
	return hashutil.Hash(buf)
}

// GetDomain resolves the signature domain state uses for domainType at
// the given epoch — the convenience form of Domain that reads state.Fork.
func GetDomain(state *types.BeaconState, domainType uint32, epoch uint64) uint64 {
	return Domain(state.Fork, epoch, domainType)
}

// BeaconProposerIndex returns the proposer for state's current slot.
func BeaconProposerIndex(state *types.BeaconState) (uint64, error) {
	epoch := CurrentEpoch(state)
	seed, err := Seed(state, epoch, params.BeaconConfig().DomainBeaconProposer)
	if err != nil {
		return 0, errors.Wrap(err, "could not generate seed")
	}

	seedWithSlot := append(append([]byte{}, seed[:]...), ssz.MarshalUint64(state.Slot)...)
	seedWithSlotHash := hashutil.Hash(seedWithSlot)

	indices := ActiveValidatorIndices(state, epoch)
	return ComputeProposerIndex(state, indices, seedWithSlotHash)
}

// ComputeProposerIndex samples indices by effective balance under seed,
// a weighted rejection-sampling scheme. Uses the correct
// MAX_RANDOM_BYTE = 2**8 - 1 ceiling; an earlier off-by-one variant of
// this constant is not carried into this port.
func ComputeProposerIndex(state *types.BeaconState, indices []uint64, seed [32]byte) (uint64, error) {
	length := uint64(len(indices))
	if length == 0 {
		return 0, errors.Wrap(errkind.ErrInvariantViolation, "compute proposer index: empty active set")
	}
	cfg := params.BeaconConfig()

	for i := uint64(0); ; i++ {
		shuffled, err := ComputeShuffledIndex(i%length, length, seed)
		if err != nil {
			return 0, err
		}
		candidateIndex := indices[shuffled]

		b := append(append([]byte{}, seed[:]...), ssz.MarshalUint64(i/32)...)
		randomByte := hashutil.Hash(b)[i%32]

		effectiveBalance := state.Validators[candidateIndex].EffectiveBalance
		if effectiveBalance*maxRandomByte >= cfg.MaxEffectiveBalance*uint64(randomByte) {
			return candidateIndex, nil
		}
	}
}
