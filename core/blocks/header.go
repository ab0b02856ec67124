// Package blocks implements the per-block state-transition operations:
// header validation, RANDAO mixing, the eth1 vote, slashing evidence,
// attestations, deposits and voluntary exits. Every Process* function
// mutates state in place and returns an error describing the first
// violated precondition, matching the codec and helper packages'
// fail-fast style.
package blocks

import (
	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/config/params"
	"github.com/sigmaprotocol/beacon-core/core/errkind"
	"github.com/sigmaprotocol/beacon-core/core/helpers"
	"github.com/sigmaprotocol/beacon-core/core/types"
	"github.com/sigmaprotocol/beacon-core/shared/bls"
)

// ProcessBlockHeader verifies signed's block header against state and
// records it as state's latest block header. The new header's StateRoot
// is left zeroed; ProcessSlot backfills it once the post-state of the
// previous slot is known.
func ProcessBlockHeader(state *types.BeaconState, signed *types.SignedBeaconBlock) error {
	block := signed.Block

	if block.Slot != state.Slot {
		return errors.Wrapf(errkind.ErrInvalidBlock, "block slot %d does not match state slot %d", block.Slot, state.Slot)
	}
	if block.Slot <= state.LatestBlockHeader.Slot {
		return errors.Wrapf(errkind.ErrInvalidBlock, "block slot %d is not after latest header slot %d", block.Slot, state.LatestBlockHeader.Slot)
	}

	proposerIndex, err := helpers.BeaconProposerIndex(state)
	if err != nil {
		return errors.Wrap(err, "could not compute expected proposer")
	}
	if block.ProposerIndex != proposerIndex {
		return errors.Wrapf(errkind.ErrInvalidBlock, "block proposer index %d does not match expected %d", block.ProposerIndex, proposerIndex)
	}

	expectedParentRoot := state.LatestBlockHeader.HashTreeRoot()
	if block.ParentRoot != expectedParentRoot {
		return errors.Wrap(errkind.ErrInvalidBlock, "block parent root does not match latest block header root")
	}

	if int(block.ProposerIndex) >= len(state.Validators) {
		return errors.Wrap(errkind.ErrInvalidBlock, "proposer index out of range")
	}
	proposer := state.Validators[block.ProposerIndex]
	if proposer.Slashed {
		return errors.Wrap(errkind.ErrInvalidBlock, "proposer is slashed")
	}

	if params.ActiveSpecOptions().BLSVerify {
		if err := verifyBlockSignature(state, signed, proposer); err != nil {
			return err
		}
	}

	state.LatestBlockHeader = &types.BeaconBlockHeader{
		Slot:          block.Slot,
		ProposerIndex: block.ProposerIndex,
		ParentRoot:    block.ParentRoot,
		StateRoot:     [32]byte{},
		BodyRoot:      block.Body.HashTreeRoot(),
	}
	return nil
}

func verifyBlockSignature(state *types.BeaconState, signed *types.SignedBeaconBlock, proposer *types.Validator) error {
	domain := helpers.GetDomain(state, params.BeaconConfig().DomainBeaconProposer, helpers.CurrentEpoch(state))
	signingRoot := helpers.ComputeSigningRoot(signed.Block.HashTreeRoot(), domain)

	pub, err := bls.PublicKeyFromBytes(proposer.Pubkey[:])
	if err != nil {
		return errors.Wrap(err, "could not decode proposer public key")
	}
	sig, err := bls.SignatureFromBytes(signed.Signature[:])
	if err != nil {
		return errors.Wrap(err, "could not decode block signature")
	}
	if !sig.Verify(pub, signingRoot[:]) {
		return errors.Wrap(errkind.ErrInvalidBlock, "block signature does not verify")
	}
	return nil
}
