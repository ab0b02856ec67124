package blocks

import (
	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/config/params"
	"github.com/sigmaprotocol/beacon-core/core/errkind"
	"github.com/sigmaprotocol/beacon-core/core/helpers"
	"github.com/sigmaprotocol/beacon-core/core/types"
	"github.com/sigmaprotocol/beacon-core/shared/bls"
)

// ProcessAttestations verifies every attestation in the block body
// against its committee and the state's justified checkpoints, then
// records it as a PendingAttestation in the appropriate epoch
// accumulator.
func ProcessAttestations(state *types.BeaconState, attestations []*types.Attestation) error {
	cfg := params.BeaconConfig()
	if uint64(len(attestations)) > cfg.MaxAttestations {
		return errors.Wrap(errkind.ErrInvalidAttestation, "too many attestations")
	}
	for i, att := range attestations {
		if err := processAttestation(state, att); err != nil {
			return errors.Wrapf(err, "attestation #%d", i)
		}
	}
	return nil
}

func processAttestation(state *types.BeaconState, att *types.Attestation) error {
	cfg := params.BeaconConfig()
	data := att.Data

	if data.Slot+cfg.MinAttestationInclusionDelay > state.Slot {
		return errors.Wrap(errkind.ErrInvalidAttestation, "attestation included before its inclusion delay elapsed")
	}
	if state.Slot > data.Slot+cfg.SlotsPerEpoch {
		return errors.Wrap(errkind.ErrInvalidAttestation, "attestation is older than one epoch")
	}

	currentEpoch := helpers.CurrentEpoch(state)
	dataEpoch := helpers.SlotToEpoch(data.Slot)
	if dataEpoch != currentEpoch && dataEpoch != helpers.PrevEpoch(state) {
		return errors.Wrap(errkind.ErrInvalidAttestation, "attestation target epoch is neither current nor previous")
	}

	var expectedSource *types.Checkpoint
	if dataEpoch == currentEpoch {
		expectedSource = state.CurrentJustifiedCheckpoint
	} else {
		expectedSource = state.PreviousJustifiedCheckpoint
	}
	if !data.Source.Equal(expectedSource) {
		return errors.Wrap(errkind.ErrInvalidAttestation, "attestation source checkpoint does not match state")
	}
	if data.Target.Epoch != dataEpoch {
		return errors.Wrap(errkind.ErrInvalidAttestation, "attestation target epoch does not match its slot")
	}

	committee, err := helpers.BeaconCommittee(state, data.Slot, data.CommitteeIndex)
	if err != nil {
		return errors.Wrap(err, "could not compute attestation committee")
	}
	if att.AggregationBits.Len() != uint64(len(committee)) {
		return errors.Wrap(errkind.ErrInvalidAttestation, "aggregation bitfield length does not match committee size")
	}

	if params.ActiveSpecOptions().BLSVerify {
		if err := verifyAttestationSignature(state, att, committee); err != nil {
			return err
		}
	}

	proposerIndex, err := helpers.BeaconProposerIndex(state)
	if err != nil {
		return errors.Wrap(err, "could not compute including proposer")
	}
	pending := &types.PendingAttestation{
		AggregationBits: att.AggregationBits,
		Data:            data,
		InclusionDelay:  state.Slot - data.Slot,
		ProposerIndex:   proposerIndex,
	}
	if dataEpoch == currentEpoch {
		state.AppendCurrentEpochAttestation(pending)
	} else {
		state.AppendPreviousEpochAttestation(pending)
	}
	return nil
}

func verifyAttestationSignature(state *types.BeaconState, att *types.Attestation, committee []uint64) error {
	attestingIndices, err := helpers.AttestingIndices(att.AggregationBits, committee)
	if err != nil {
		return errors.Wrap(err, "could not compute attesting indices")
	}
	if len(attestingIndices) == 0 {
		return errors.Wrap(errkind.ErrInvalidAttestation, "attestation has no participating validators")
	}

	pubs := make([]bls.PublicKey, len(attestingIndices))
	for i, idx := range attestingIndices {
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
		return errors.Wrap(errkind.ErrInvalidAttestation, "attestation signature does not verify")
	}
	return nil
}
