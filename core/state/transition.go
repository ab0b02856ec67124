package state

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"

	"github.com/sigmaprotocol/beacon-core/config/params"
	"github.com/sigmaprotocol/beacon-core/core/blocks"
	"github.com/sigmaprotocol/beacon-core/core/errkind"
	"github.com/sigmaprotocol/beacon-core/core/helpers"
	"github.com/sigmaprotocol/beacon-core/core/types"
)

var log = logrus.WithField("prefix", "core/state")

// TransitionConfig toggles the state-transition behaviors that differ
// between test/replay use and production block processing.
type TransitionConfig struct {
	// VerifyStateRoot checks the post-state's tree-hash root against the
	// incoming block's declared StateRoot. Production callers want this
	// on; tooling that replays historical blocks to inspect state may
	// turn it off. Signature verification itself is controlled globally
	// by params.ActiveSpecOptions().BLSVerify, not by this config, since
	// every core/blocks operation already reads that flag directly.
	VerifyStateRoot bool
	Logging         bool
}

// DefaultConfig returns the config production callers should use.
func DefaultConfig() *TransitionConfig {
	return &TransitionConfig{VerifyStateRoot: true}
}

// ExecuteStateTransition advances state to signed's slot, applies the
// block, and optionally checks the declared state root against the
// result.
//
// Spec pseudocode definition:
//  def state_transition(state: BeaconState, block: BeaconBlock, validate_state_root: bool=False) -> BeaconState:
//      process_slots(state, block.slot)
//      process_block(state, block)
//      if validate_state_root:
//          assert block.state_root == hash_tree_root(state)
//      return state
func ExecuteStateTransition(ctx context.Context, st *types.BeaconState, signed *types.SignedBeaconBlock, config *TransitionConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, span := trace.StartSpan(ctx, "core.state.ExecuteStateTransition")
	defer span.End()

	if err := ProcessSlots(st, signed.Block.Slot); err != nil {
		return errors.Wrap(err, "could not process slots")
	}
	if err := ProcessBlock(ctx, st, signed, config); err != nil {
		return errors.Wrap(err, "could not process block")
	}

	if config.VerifyStateRoot {
		postRoot := st.HashTreeRoot()
		if [32]byte(postRoot) != signed.Block.StateRoot {
			return errors.Wrapf(errkind.ErrInvalidBlock, "post-state root %#x does not match block's declared root %#x", postRoot, signed.Block.StateRoot)
		}
	}
	return nil
}

// ProcessBlock applies the block-level sub-stages in their mandatory
// order: header, randao, eth1 vote, then every body operation.
//
// Spec pseudocode definition:
//  def process_block(state: BeaconState, block: BeaconBlock) -> None:
//      process_block_header(state, block)
//      process_randao(state, block.body)
//      process_eth1_data(state, block.body)
//      process_operations(state, block.body)
func ProcessBlock(ctx context.Context, st *types.BeaconState, signed *types.SignedBeaconBlock, config *TransitionConfig) error {
	_, span := trace.StartSpan(ctx, "core.state.ProcessBlock")
	defer span.End()

	if err := blocks.ProcessBlockHeader(st, signed); err != nil {
		return errors.Wrap(err, "could not process block header")
	}
	if err := blocks.ProcessRandao(st, signed.Block.Body); err != nil {
		return errors.Wrap(err, "could not process randao")
	}
	if err := blocks.ProcessEth1Data(st, signed.Block.Body); err != nil {
		return errors.Wrap(err, "could not process eth1 data")
	}
	if err := ProcessOperations(st, signed.Block.Body); err != nil {
		return errors.Wrap(err, "could not process block operations")
	}

	if config.Logging {
		log.WithFields(logrus.Fields{
			"slot":         signed.Block.Slot,
			"attestations": len(signed.Block.Body.Attestations),
			"deposits":     len(signed.Block.Body.Deposits),
		}).Debug("processed block")
	}
	return nil
}

// ProcessOperations checks the block body's operation-count invariants
// and runs each operation kind in the mandated order: proposer
// slashings, attester slashings, attestations, deposits, voluntary
// exits.
//
// Spec pseudocode definition:
//  def process_operations(state: BeaconState, body: BeaconBlockBody) -> None:
//      assert len(body.deposits) == min(MAX_DEPOSITS, state.eth1_data.deposit_count - state.eth1_deposit_index)
//      for operations, function in ((body.proposer_slashings, process_proposer_slashing), ...):
//          for operation in operations:
//              function(state, operation)
func ProcessOperations(st *types.BeaconState, body *types.BeaconBlockBody) error {
	cfg := params.BeaconConfig()

	expectedDeposits := cfg.MaxDeposits
	if outstanding := st.Eth1Data.DepositCount - st.Eth1DepositIndex; outstanding < expectedDeposits {
		expectedDeposits = outstanding
	}
	if uint64(len(body.Deposits)) != expectedDeposits {
		return errors.Wrapf(errkind.ErrInvalidBlock, "block has %d deposits, expected %d outstanding", len(body.Deposits), expectedDeposits)
	}

	if err := blocks.ProcessProposerSlashings(st, body.ProposerSlashings); err != nil {
		return errors.Wrap(err, "could not process proposer slashings")
	}
	if err := blocks.ProcessAttesterSlashings(st, body.AttesterSlashings); err != nil {
		return errors.Wrap(err, "could not process attester slashings")
	}
	if err := blocks.ProcessAttestations(st, body.Attestations); err != nil {
		return errors.Wrap(err, "could not process attestations")
	}
	if err := blocks.ProcessDeposits(st, body.Deposits); err != nil {
		return errors.Wrap(err, "could not process deposits")
	}
	if err := blocks.ProcessVoluntaryExits(st, body.VoluntaryExits); err != nil {
		return errors.Wrap(err, "could not process voluntary exits")
	}
	return nil
}

// CanProcessEpoch reports whether slot is the last slot of its epoch,
// the point at which ProcessSlots triggers ProcessEpoch.
func CanProcessEpoch(st *types.BeaconState) bool {
	return helpers.IsEpochEnd(st.Slot)
}
