package blocks

import (
	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/config/params"
	"github.com/sigmaprotocol/beacon-core/core/errkind"
	"github.com/sigmaprotocol/beacon-core/core/helpers"
	"github.com/sigmaprotocol/beacon-core/core/types"
	"github.com/sigmaprotocol/beacon-core/encoding/ssz"
	"github.com/sigmaprotocol/beacon-core/shared/bls"
	"github.com/sigmaprotocol/beacon-core/shared/hashutil"
)

// ProcessRandao verifies the proposer's RANDAO reveal for state's current
// epoch and mixes it into the randao-mixes ring.
func ProcessRandao(state *types.BeaconState, body *types.BeaconBlockBody) error {
	epoch := helpers.CurrentEpoch(state)
	proposerIndex, err := helpers.BeaconProposerIndex(state)
	if err != nil {
		return errors.Wrap(err, "could not compute proposer for randao verification")
	}
	proposer := state.Validators[proposerIndex]

	if params.ActiveSpecOptions().BLSVerify {
		domain := helpers.GetDomain(state, params.BeaconConfig().DomainRandao, epoch)
		epochRoot := ssz.ChunksFromBytes(ssz.MarshalUint64(epoch))[0]
		signingRoot := helpers.ComputeSigningRoot(epochRoot, domain)

		pub, err := bls.PublicKeyFromBytes(proposer.Pubkey[:])
		if err != nil {
			return errors.Wrap(err, "could not decode proposer public key")
		}
		sig, err := bls.SignatureFromBytes(body.RandaoReveal[:])
		if err != nil {
			return errors.Wrap(err, "could not decode randao reveal")
		}
		if !sig.Verify(pub, signingRoot[:]) {
			return errors.Wrap(errkind.ErrInvalidBlock, "randao reveal does not verify")
		}
	}

	currentMix, err := state.RandaoMixAtEpoch(epoch)
	if err != nil {
		return errors.Wrap(err, "could not read current randao mix")
	}
	revealHash := hashutil.Hash(body.RandaoReveal[:])

	var newMix [32]byte
	for i := range newMix {
		newMix[i] = currentMix[i] ^ revealHash[i]
	}
	state.SetRandaoMix(epoch%params.BeaconConfig().EpochsPerHistoricalVector, newMix)
	return nil
}
