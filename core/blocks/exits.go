package blocks

import (
	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/config/params"
	"github.com/sigmaprotocol/beacon-core/core/errkind"
	"github.com/sigmaprotocol/beacon-core/core/helpers"
	"github.com/sigmaprotocol/beacon-core/core/types"
	"github.com/sigmaprotocol/beacon-core/shared/bls"
)

// ProcessVoluntaryExits verifies and applies every voluntary-exit
// request in the block body, initiating each validator's exit.
func ProcessVoluntaryExits(state *types.BeaconState, exits []*types.SignedVoluntaryExit) error {
	if uint64(len(exits)) > params.BeaconConfig().MaxVoluntaryExits {
		return errors.Wrap(errkind.ErrInvalidBlock, "too many voluntary exits")
	}
	for i, e := range exits {
		if err := verifyVoluntaryExit(state, e); err != nil {
			return errors.Wrapf(err, "voluntary exit #%d", i)
		}
		if err := InitiateValidatorExit(state, e.Message.ValidatorIndex); err != nil {
			return errors.Wrapf(err, "could not initiate exit #%d", i)
		}
	}
	return nil
}

func verifyVoluntaryExit(state *types.BeaconState, signed *types.SignedVoluntaryExit) error {
	exit := signed.Message
	if int(exit.ValidatorIndex) >= len(state.Validators) {
		return errors.Wrap(errkind.ErrInvalidBlock, "voluntary exit validator index out of range")
	}
	validator := state.Validators[exit.ValidatorIndex]
	currentEpoch := helpers.CurrentEpoch(state)

	if !validator.IsActive(currentEpoch) {
		return errors.Wrap(errkind.ErrInvalidBlock, "validator is not active")
	}
	if validator.ExitEpoch != params.BeaconConfig().FarFutureEpoch {
		return errors.Wrap(errkind.ErrInvalidBlock, "validator has already initiated exit")
	}
	if currentEpoch < exit.Epoch {
		return errors.Wrap(errkind.ErrInvalidBlock, "voluntary exit is not yet eligible")
	}
	if currentEpoch < validator.ActivationEpoch+params.BeaconConfig().ShardCommitteePeriod {
		return errors.Wrap(errkind.ErrInvalidBlock, "validator has not served the minimum active period")
	}

	if params.ActiveSpecOptions().BLSVerify {
		pub, err := bls.PublicKeyFromBytes(validator.Pubkey[:])
		if err != nil {
			return errors.Wrap(err, "could not decode validator public key")
		}
		sig, err := bls.SignatureFromBytes(signed.Signature[:])
		if err != nil {
			return errors.Wrap(err, "could not decode exit signature")
		}
		domain := helpers.GetDomain(state, params.BeaconConfig().DomainVoluntaryExit, exit.Epoch)
		signingRoot := helpers.ComputeSigningRoot(exit.HashTreeRoot(), domain)
		if !sig.Verify(pub, signingRoot[:]) {
			return errors.Wrap(errkind.ErrInvalidBlock, "voluntary exit signature does not verify")
		}
	}
	return nil
}

// InitiateValidatorExit sets validator index's exit and withdrawable
// epochs, respecting the per-epoch churn limit: exits queue behind any
// validator already scheduled to leave in a later epoch.
func InitiateValidatorExit(state *types.BeaconState, index uint64) error {
	cfg := params.BeaconConfig()
	validator := state.Validators[index]
	if validator.ExitEpoch != cfg.FarFutureEpoch {
		return nil
	}

	currentEpoch := helpers.CurrentEpoch(state)
	exitEpochs := make([]uint64, 0)
	for _, v := range state.Validators {
		if v.ExitEpoch != cfg.FarFutureEpoch {
			exitEpochs = append(exitEpochs, v.ExitEpoch)
		}
	}
	exitQueueEpoch := helpers.ComputeActivationExitEpoch(currentEpoch)
	for _, e := range exitEpochs {
		if e > exitQueueEpoch {
			exitQueueEpoch = e
		}
	}

	exitQueueChurn := uint64(0)
	for _, e := range exitEpochs {
		if e == exitQueueEpoch {
			exitQueueChurn++
		}
	}
	if exitQueueChurn >= helpers.ValidatorChurnLimit(helpers.ActiveValidatorCount(state, currentEpoch)) {
		exitQueueEpoch++
	}

	updated := validator.Copy()
	updated.ExitEpoch = exitQueueEpoch
	updated.WithdrawableEpoch = exitQueueEpoch + cfg.MinValidatorWithdrawabilityDelay
	state.SetValidator(index, updated)
	return nil
}
