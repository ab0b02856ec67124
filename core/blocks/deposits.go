package blocks

import (
	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/config/params"
	"github.com/sigmaprotocol/beacon-core/core/errkind"
	"github.com/sigmaprotocol/beacon-core/core/helpers"
	"github.com/sigmaprotocol/beacon-core/core/types"
	"github.com/sigmaprotocol/beacon-core/shared/bls"
	"github.com/sigmaprotocol/beacon-core/shared/hashutil"
	"github.com/sigmaprotocol/beacon-core/shared/trieutil"
)

// ProcessDeposits verifies each deposit's Merkle proof against the
// eth1 deposit root and applies it: crediting an existing validator's
// balance, or — on first sight of its pubkey and a verified
// proof-of-possession — appending a new validator entry.
func ProcessDeposits(state *types.BeaconState, deposits []*types.Deposit) error {
	cfg := params.BeaconConfig()
	if uint64(len(deposits)) > cfg.MaxDeposits {
		return errors.Wrap(errkind.ErrInvalidBlock, "too many deposits")
	}
	for i, d := range deposits {
		if err := processDeposit(state, d); err != nil {
			return errors.Wrapf(err, "deposit #%d", i)
		}
	}
	return nil
}

func processDeposit(state *types.BeaconState, d *types.Deposit) error {
	cfg := params.BeaconConfig()

	leaf := hashutil.Hash(mustMarshalDepositData(d.Data))
	if !trieutil.VerifyMerkleBranch(leaf, d.Proof, cfg.DepositContractTreeDepth+1, state.Eth1DepositIndex, state.Eth1Data.DepositRoot) {
		return errors.Wrap(errkind.ErrInvalidBlock, "deposit merkle proof does not verify")
	}
	state.Eth1DepositIndex++

	if idx, ok := state.ValidatorIndexByPubkey(d.Data.Pubkey); ok {
		state.SetBalance(idx, state.Balances[idx]+d.Data.Amount)
		return nil
	}

	if !verifyDepositSignature(d.Data) {
		// An unverifiable proof-of-possession on a brand-new pubkey is
		// silently ignored rather than rejected: the deposit is already
		// irrevocably included in the eth1 contract's trie, and phase0
		// treats it as a no-op top-up for a validator that will never
		// become active, not a block-invalidating condition.
		return nil
	}

	// A freshly registered validator becomes eligible for the activation
	// queue at the next epoch boundary; actual activation still waits on
	// the registry-update churn.
	validator := &types.Validator{
		Pubkey:                     d.Data.Pubkey,
		WithdrawalCredentials:      d.Data.WithdrawalCredentials,
		ActivationEligibilityEpoch: helpers.CurrentEpoch(state) + 1,
		ActivationEpoch:            cfg.FarFutureEpoch,
		ExitEpoch:                  cfg.FarFutureEpoch,
		WithdrawableEpoch:          cfg.FarFutureEpoch,
	}
	effectiveBalance := d.Data.Amount - d.Data.Amount%cfg.EffectiveBalanceIncrement
	if effectiveBalance > cfg.MaxEffectiveBalance {
		effectiveBalance = cfg.MaxEffectiveBalance
	}
	validator.EffectiveBalance = effectiveBalance

	state.AppendValidator(validator, d.Data.Amount)
	return nil
}

func verifyDepositSignature(data *types.DepositData) bool {
	if !params.ActiveSpecOptions().BLSVerifyProofOfPossession {
		return true
	}
	pub, err := bls.PublicKeyFromBytes(data.Pubkey[:])
	if err != nil {
		return false
	}
	sig, err := bls.SignatureFromBytes(data.Signature[:])
	if err != nil {
		return false
	}
	cfg := params.BeaconConfig()
	genesisFork := &types.Fork{PreviousVersion: cfg.GenesisForkVersion, CurrentVersion: cfg.GenesisForkVersion}
	domain := helpers.Domain(genesisFork, cfg.GenesisEpoch, cfg.DomainDeposit)
	signingRoot := helpers.ComputeSigningRoot(data.SigningRoot(), domain)
	return sig.Verify(pub, signingRoot[:])
}

func mustMarshalDepositData(d *types.DepositData) []byte {
	buf, err := d.MarshalSSZ()
	if err != nil {
		// DepositData has no variable-size fields; marshaling can only
		// fail on a programming error upstream, not on input data.
		panic(err)
	}
	return buf
}
