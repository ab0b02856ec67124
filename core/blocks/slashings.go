package blocks

import (
	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/config/params"
	"github.com/sigmaprotocol/beacon-core/core/errkind"
	"github.com/sigmaprotocol/beacon-core/core/helpers"
	"github.com/sigmaprotocol/beacon-core/core/types"
	"github.com/sigmaprotocol/beacon-core/shared/bls"
	"github.com/sigmaprotocol/beacon-core/shared/sliceutil"
)

// SlashValidator applies the full penalty and reward flow for a
// newly-evidenced slashing: marks the validator slashed, extends its
// withdrawable epoch, records the loss against the current
// slashings-vector slot, burns a fraction of its effective balance, and
// credits the including proposer a whistleblower reward — neither
// slashing kind threads a distinct whistleblower index through the block
// body, so the proposer stands in for it.
func SlashValidator(state *types.BeaconState, slashedIndex uint64) error {
	cfg := params.BeaconConfig()
	epoch := helpers.CurrentEpoch(state)

	validator := state.Validators[slashedIndex].Copy()
	validator.Slashed = true
	withdrawable := epoch + cfg.EpochsPerSlashingsVector
	if withdrawable > validator.WithdrawableEpoch {
		validator.WithdrawableEpoch = withdrawable
	}
	effectiveBalance := validator.EffectiveBalance
	state.SetValidator(slashedIndex, validator)

	slotIndex := epoch % cfg.EpochsPerSlashingsVector
	state.SetSlashing(slotIndex, state.Slashings[slotIndex]+effectiveBalance)

	helpers.DecreaseBalance(state, slashedIndex, effectiveBalance/cfg.MinSlashingPenaltyQuotient)

	proposerIndex, err := helpers.BeaconProposerIndex(state)
	if err != nil {
		return errors.Wrap(err, "could not compute proposer for slashing reward")
	}
	whistleblowerReward := effectiveBalance / cfg.WhistleblowerRewardQuotient
	helpers.IncreaseBalance(state, proposerIndex, whistleblowerReward)
	return nil
}

// ProcessProposerSlashings verifies and applies every proposer-slashing
// in the block body.
func ProcessProposerSlashings(state *types.BeaconState, slashings []*types.ProposerSlashing) error {
	if uint64(len(slashings)) > params.BeaconConfig().MaxProposerSlashings {
		return errors.Wrap(errkind.ErrInvalidBlock, "too many proposer slashings")
	}
	for i, s := range slashings {
		if err := verifyProposerSlashing(state, s); err != nil {
			return errors.Wrapf(err, "proposer slashing #%d", i)
		}
		if err := SlashValidator(state, s.Header1.Message.ProposerIndex); err != nil {
			return errors.Wrapf(err, "could not apply proposer slashing #%d", i)
		}
	}
	return nil
}

func verifyProposerSlashing(state *types.BeaconState, s *types.ProposerSlashing) error {
	h1, h2 := s.Header1.Message, s.Header2.Message
	if h1.Slot != h2.Slot {
		return errors.Wrap(errkind.ErrInvalidBlock, "proposer slashing headers have different slots")
	}
	if h1.ProposerIndex != h2.ProposerIndex {
		return errors.Wrap(errkind.ErrInvalidBlock, "proposer slashing headers have different proposers")
	}
	if h1.HashTreeRoot() == h2.HashTreeRoot() {
		return errors.Wrap(errkind.ErrInvalidBlock, "proposer slashing headers are identical")
	}
	if int(h1.ProposerIndex) >= len(state.Validators) {
		return errors.Wrap(errkind.ErrInvalidBlock, "proposer slashing index out of range")
	}
	validator := state.Validators[h1.ProposerIndex]
	if !validator.IsSlashable(helpers.CurrentEpoch(state)) {
		return errors.Wrap(errkind.ErrInvalidBlock, "proposer is not slashable")
	}

	if params.ActiveSpecOptions().BLSVerify {
		pub, err := bls.PublicKeyFromBytes(validator.Pubkey[:])
		if err != nil {
			return errors.Wrap(err, "could not decode proposer public key")
		}
		domain := helpers.GetDomain(state, params.BeaconConfig().DomainBeaconProposer, helpers.SlotToEpoch(h1.Slot))
		for _, signed := range []*types.SignedBeaconBlockHeader{s.Header1, s.Header2} {
			signingRoot := helpers.ComputeSigningRoot(signed.Message.HashTreeRoot(), domain)
			sig, err := bls.SignatureFromBytes(signed.Signature[:])
			if err != nil {
				return errors.Wrap(err, "could not decode proposer slashing signature")
			}
			if !sig.Verify(pub, signingRoot[:]) {
				return errors.Wrap(errkind.ErrInvalidBlock, "proposer slashing signature does not verify")
			}
		}
	}
	return nil
}

// ProcessAttesterSlashings verifies and applies every attester-slashing
// in the block body.
func ProcessAttesterSlashings(state *types.BeaconState, slashings []*types.AttesterSlashing) error {
	if uint64(len(slashings)) > params.BeaconConfig().MaxAttesterSlashings {
		return errors.Wrap(errkind.ErrInvalidBlock, "too many attester slashings")
	}
	for i, s := range slashings {
		slashableIndices, err := verifyAttesterSlashing(state, s)
		if err != nil {
			return errors.Wrapf(err, "attester slashing #%d", i)
		}
		for _, idx := range slashableIndices {
			if err := SlashValidator(state, idx); err != nil {
				return errors.Wrapf(err, "could not apply attester slashing #%d", i)
			}
		}
	}
	return nil
}

func verifyAttesterSlashing(state *types.BeaconState, s *types.AttesterSlashing) ([]uint64, error) {
	data1, data2 := s.Attestation1.Data, s.Attestation2.Data
	if data1.Equal(data2) {
		return nil, errors.Wrap(errkind.ErrInvalidAttestation, "attester slashing votes are identical")
	}
	if !isDoubleVote(data1, data2) && !isSurroundVote(data1, data2) {
		return nil, errors.Wrap(errkind.ErrInvalidAttestation, "attester slashing is neither a double nor a surround vote")
	}
	if err := verifyIndexedAttestation(state, s.Attestation1); err != nil {
		return nil, errors.Wrap(err, "first slashable attestation does not verify")
	}
	if err := verifyIndexedAttestation(state, s.Attestation2); err != nil {
		return nil, errors.Wrap(err, "second slashable attestation does not verify")
	}

	epoch := helpers.CurrentEpoch(state)
	var slashable []uint64
	for _, idx := range sliceutil.IntersectionUint64(s.Attestation1.AttestingIndices, s.Attestation2.AttestingIndices) {
		if int(idx) < len(state.Validators) && state.Validators[idx].IsSlashable(epoch) {
			slashable = append(slashable, idx)
		}
	}
	if len(slashable) == 0 {
		return nil, errors.Wrap(errkind.ErrInvalidAttestation, "no slashable validator indices in common")
	}
	return slashable, nil
}

func isDoubleVote(a, b *types.AttestationData) bool {
	return a.Target.Epoch == b.Target.Epoch
}

func isSurroundVote(a, b *types.AttestationData) bool {
	return (a.Source.Epoch < b.Source.Epoch && b.Target.Epoch < a.Target.Epoch) ||
		(b.Source.Epoch < a.Source.Epoch && a.Target.Epoch < b.Target.Epoch)
}

// verifyIndexedAttestation checks ascending, duplicate-free attesting
// indices and, when enabled, the BLS aggregate signature over the
// attestation's signing root.
func verifyIndexedAttestation(state *types.BeaconState, att *types.IndexedAttestation) error {
	indices := att.AttestingIndices
	if len(indices) == 0 {
		return errors.Wrap(errkind.ErrInvalidAttestation, "indexed attestation has no attesting indices")
	}
	if uint64(len(indices)) > params.BeaconConfig().MaxValidatorsPerCommittee {
		return errors.Wrap(errkind.ErrInvalidAttestation, "indexed attestation has too many attesting indices")
	}
	for i := 0; i < len(indices)-1; i++ {
		if indices[i] >= indices[i+1] {
			return errors.Wrap(errkind.ErrInvalidAttestation, "indexed attestation indices are not strictly ascending")
		}
	}

	if !params.ActiveSpecOptions().BLSVerify {
		return nil
	}

	pubs := make([]bls.PublicKey, len(indices))
	for i, idx := range indices {
		if int(idx) >= len(state.Validators) {
			return errors.Wrap(errkind.ErrInvalidAttestation, "attesting index out of range")
		}
		pub, err := bls.PublicKeyFromBytes(state.Validators[idx].Pubkey[:])
		if err != nil {
			return errors.Wrap(err, "could not decode attester public key")
		}
		pubs[i] = pub
	}
	aggregate, err := bls.AggregatePublicKeys(pubs)
	if err != nil {
		return errors.Wrap(err, "could not aggregate attester public keys")
	}
	domain := helpers.GetDomain(state, params.BeaconConfig().DomainBeaconAttester, helpers.SlotToEpoch(att.Data.Slot))
	signingRoot := helpers.ComputeSigningRoot(att.Data.HashTreeRoot(), domain)
	sig, err := bls.SignatureFromBytes(att.Signature[:])
	if err != nil {
		return errors.Wrap(err, "could not decode attestation signature")
	}
	if !sig.Verify(aggregate, signingRoot[:]) {
		return errors.Wrap(errkind.ErrInvalidAttestation, "indexed attestation signature does not verify")
	}
	return nil
}
