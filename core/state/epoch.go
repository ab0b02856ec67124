// Package state orchestrates the three top-level state-transition
// functions named in the data model: per-slot processing, per-epoch
// processing, and per-block processing, wiring together the pure spec
// helpers (core/helpers) and block operations (core/blocks). No crosslink
// or shard-committee step is carried — sharding is out of scope.
package state

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/config/params"
	"github.com/sigmaprotocol/beacon-core/core/errkind"
	"github.com/sigmaprotocol/beacon-core/core/helpers"
	"github.com/sigmaprotocol/beacon-core/core/types"
	"github.com/sigmaprotocol/beacon-core/encoding/ssz"
	"github.com/sigmaprotocol/beacon-core/shared/mathutil"
)

// ProcessEpoch runs the five epoch-boundary stages in the mandatory
// order named in the data model: justification/finalization, rewards
// and penalties, registry updates, slashings, and final updates
// (RANDAO rotation, effective-balance hysteresis, historical-roots
// append, attestation-buffer swap).
func ProcessEpoch(st *types.BeaconState) error {
	matched, err := matchAttestations(st, helpers.PrevEpoch(st))
	if err != nil {
		return errors.Wrap(err, "could not match previous epoch attestations")
	}
	prevAttestedBalance := helpers.TotalBalance(st, unslashedAttestingIndices(st, matched.target))

	currentMatched, err := matchAttestations(st, helpers.CurrentEpoch(st))
	if err != nil {
		return errors.Wrap(err, "could not match current epoch attestations")
	}
	currAttestedBalance := helpers.TotalBalance(st, unslashedAttestingIndices(st, currentMatched.target))

	if err := processJustificationAndFinalization(st, prevAttestedBalance, currAttestedBalance); err != nil {
		return errors.Wrap(err, "could not process justification and finalization")
	}
	if err := processRewardsAndPenalties(st, matched); err != nil {
		return errors.Wrap(err, "could not process rewards and penalties")
	}
	if err := processRegistryUpdates(st); err != nil {
		return errors.Wrap(err, "could not process registry updates")
	}
	if err := processSlashings(st); err != nil {
		return errors.Wrap(err, "could not process slashings")
	}
	if err := processFinalUpdates(st); err != nil {
		return errors.Wrap(err, "could not process final updates")
	}
	return nil
}

// matchedAttestations groups one epoch's PendingAttestations by which of
// source/target/head they correctly voted for, per get_matching_*.
type matchedAttestations struct {
	source []*types.PendingAttestation
	target []*types.PendingAttestation
	head   []*types.PendingAttestation
}

func matchAttestations(st *types.BeaconState, epoch uint64) (*matchedAttestations, error) {
	currentEpoch := helpers.CurrentEpoch(st)
	previousEpoch := helpers.PrevEpoch(st)
	if epoch != currentEpoch && epoch != previousEpoch {
		return nil, errors.Wrapf(errkind.ErrInvariantViolation, "epoch %d is neither current (%d) nor previous (%d)", epoch, currentEpoch, previousEpoch)
	}

	var source []*types.PendingAttestation
	if epoch == currentEpoch {
		source = st.CurrentEpochAttestations
	} else {
		source = st.PreviousEpochAttestations
	}

	targetRoot, err := helpers.BlockRoot(st, epoch)
	if err != nil {
		return nil, errors.Wrapf(err, "could not get block root for epoch %d", epoch)
	}

	target := make([]*types.PendingAttestation, 0, len(source))
	head := make([]*types.PendingAttestation, 0, len(source))
	for _, att := range source {
		if att.Data.Target.Root == targetRoot {
			target = append(target, att)
		}
		headRoot, err := helpers.BlockRootAtSlot(st, att.Data.Slot)
		if err != nil {
			continue
		}
		if att.Data.BeaconBlockRoot == headRoot {
			head = append(head, att)
		}
	}
	return &matchedAttestations{source: source, target: target, head: head}, nil
}

// unslashedAttestingIndices returns the union, deduplicated and sorted,
// of attesting indices across atts, excluding any validator already
// marked slashed.
func unslashedAttestingIndices(st *types.BeaconState, atts []*types.PendingAttestation) []uint64 {
	seen := make(map[uint64]bool)
	for _, att := range atts {
		committee, err := helpers.BeaconCommittee(st, att.Data.Slot, att.Data.CommitteeIndex)
		if err != nil {
			continue
		}
		indices, err := helpers.AttestingIndices(att.AggregationBits, committee)
		if err != nil {
			continue
		}
		for _, idx := range indices {
			if !st.Validators[idx].Slashed {
				seen[idx] = true
			}
		}
	}
	out := make([]uint64, 0, len(seen))
	for idx := range seen {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// processJustificationAndFinalization implements the two-phase
// promotion named in the glossary: a checkpoint whose attesting stake
// reaches 2/3 of total active stake is justified; a justification chain
// spanning the required pattern of the last four epochs is finalized.
func processJustificationAndFinalization(st *types.BeaconState, prevAttestedBalance, currAttestedBalance uint64) error {
	cfg := params.BeaconConfig()
	currentEpoch := helpers.CurrentEpoch(st)
	if currentEpoch <= cfg.GenesisEpoch+1 {
		return nil
	}

	previousEpoch := helpers.PrevEpoch(st)
	totalBalance := helpers.TotalActiveBalance(st)

	oldPreviousJustified := st.PreviousJustifiedCheckpoint
	oldCurrentJustified := st.CurrentJustifiedCheckpoint

	st.PreviousJustifiedCheckpoint = &types.Checkpoint{Epoch: oldCurrentJustified.Epoch, Root: oldCurrentJustified.Root}
	st.JustificationBits = (st.JustificationBits << 1) & 0x0F

	if 3*prevAttestedBalance >= 2*totalBalance {
		root, err := helpers.BlockRoot(st, previousEpoch)
		if err != nil {
			return errors.Wrap(err, "could not get block root for previous epoch")
		}
		st.CurrentJustifiedCheckpoint = &types.Checkpoint{Epoch: previousEpoch, Root: root}
		st.JustificationBits |= 1 << 1
	}
	if 3*currAttestedBalance >= 2*totalBalance {
		root, err := helpers.BlockRoot(st, currentEpoch)
		if err != nil {
			return errors.Wrap(err, "could not get block root for current epoch")
		}
		st.CurrentJustifiedCheckpoint = &types.Checkpoint{Epoch: currentEpoch, Root: root}
		st.JustificationBits |= 1 << 0
	}

	bits := st.JustificationBits
	if oldPreviousJustified.Epoch+3 == currentEpoch && (bits>>1)%8 == 0b111 {
		st.FinalizedCheckpoint = &types.Checkpoint{Epoch: oldPreviousJustified.Epoch, Root: oldPreviousJustified.Root}
	}
	if oldPreviousJustified.Epoch+2 == currentEpoch && (bits>>1)%4 == 0b11 {
		st.FinalizedCheckpoint = &types.Checkpoint{Epoch: oldPreviousJustified.Epoch, Root: oldPreviousJustified.Root}
	}
	if oldCurrentJustified.Epoch+2 == currentEpoch && (bits>>0)%8 == 0b111 {
		st.FinalizedCheckpoint = &types.Checkpoint{Epoch: oldCurrentJustified.Epoch, Root: oldCurrentJustified.Root}
	}
	if oldCurrentJustified.Epoch+1 == currentEpoch && (bits>>0)%4 == 0b11 {
		st.FinalizedCheckpoint = &types.Checkpoint{Epoch: oldCurrentJustified.Epoch, Root: oldCurrentJustified.Root}
	}
	return nil
}

// baseReward returns the per-epoch base reward unit:
// effective_balance * BASE_REWARD_FACTOR / sqrt(total_active_stake) /
// BASE_REWARDS_PER_EPOCH.
func baseReward(st *types.BeaconState, totalBalance uint64, index uint64) uint64 {
	cfg := params.BeaconConfig()
	effectiveBalance := st.Validators[index].EffectiveBalance
	return effectiveBalance * cfg.BaseRewardFactor / mathutil.IntegerSquareRoot(totalBalance) / cfg.BaseRewardsPerEpoch
}

// processRewardsAndPenalties computes and applies one epoch's attester
// rewards/penalties, proposer inclusion-delay rewards, and (when the
// finality gap has grown too large) the quadratic inactivity leak.
func processRewardsAndPenalties(st *types.BeaconState, matched *matchedAttestations) error {
	cfg := params.BeaconConfig()
	if helpers.CurrentEpoch(st) == cfg.GenesisEpoch {
		return nil
	}

	prevEpoch := helpers.PrevEpoch(st)
	totalBalance := helpers.TotalActiveBalance(st)

	rewards := make([]uint64, len(st.Validators))
	penalties := make([]uint64, len(st.Validators))

	var eligible []uint64
	for i, v := range st.Validators {
		isActive := v.IsActive(prevEpoch)
		isSlashedButNotWithdrawn := v.Slashed && prevEpoch+1 < v.WithdrawableEpoch
		if isActive || isSlashedButNotWithdrawn {
			eligible = append(eligible, uint64(i))
		}
	}

	earliestBySource := make(map[uint64]*types.PendingAttestation)
	for _, group := range [][]*types.PendingAttestation{matched.source, matched.target, matched.head} {
		attesting := unslashedAttestingIndices(st, group)
		attestingSet := make(map[uint64]bool, len(attesting))
		for _, idx := range attesting {
			attestingSet[idx] = true
		}
		attestedBalance := helpers.TotalBalance(st, attesting)
		for _, idx := range eligible {
			base := baseReward(st, totalBalance, idx)
			if attestingSet[idx] {
				rewards[idx] += base * attestedBalance / totalBalance
			} else {
				penalties[idx] += base
			}
		}
	}

	for _, att := range matched.source {
		committee, err := helpers.BeaconCommittee(st, att.Data.Slot, att.Data.CommitteeIndex)
		if err != nil {
			continue
		}
		indices, err := helpers.AttestingIndices(att.AggregationBits, committee)
		if err != nil {
			continue
		}
		for _, idx := range indices {
			if st.Validators[idx].Slashed {
				continue
			}
			if cur, ok := earliestBySource[idx]; !ok || att.InclusionDelay < cur.InclusionDelay {
				earliestBySource[idx] = att
			}
		}
	}
	for idx, att := range earliestBySource {
		base := baseReward(st, totalBalance, idx)
		proposerReward := base / cfg.ProposerRewardQuotient
		rewards[att.ProposerIndex] += proposerReward
		maxAttesterReward := base - proposerReward
		rewards[idx] += maxAttesterReward * cfg.MinAttestationInclusionDelay / att.InclusionDelay
	}

	finalityDelay := prevEpoch - st.FinalizedCheckpoint.Epoch
	if finalityDelay > cfg.MinEpochsToInactivityPenalty {
		targetAttesting := make(map[uint64]bool)
		for _, idx := range unslashedAttestingIndices(st, matched.target) {
			targetAttesting[idx] = true
		}
		for _, idx := range eligible {
			base := baseReward(st, totalBalance, idx)
			penalties[idx] += cfg.BaseRewardsPerEpoch * base
			if !targetAttesting[idx] {
				penalties[idx] += st.Validators[idx].EffectiveBalance * finalityDelay / cfg.InactivityPenaltyQuotient
			}
		}
	}

	for i := range st.Validators {
		helpers.IncreaseBalance(st, uint64(i), rewards[i])
		helpers.DecreaseBalance(st, uint64(i), penalties[i])
	}
	return nil
}

// processRegistryUpdates promotes validators that reached
// MAX_EFFECTIVE_BALANCE to activation eligibility, ejects validators
// whose balance fell to or below EJECTION_BALANCE, and activates queued
// validators up to the per-epoch churn limit, oldest eligibility first.
func processRegistryUpdates(st *types.BeaconState) error {
	cfg := params.BeaconConfig()
	currentEpoch := helpers.CurrentEpoch(st)

	for idx, v := range st.Validators {
		if v.ActivationEligibilityEpoch == cfg.FarFutureEpoch && v.EffectiveBalance >= cfg.MaxEffectiveBalance {
			updated := v.Copy()
			updated.ActivationEligibilityEpoch = currentEpoch
			st.SetValidator(uint64(idx), updated)
		}
	}
	for idx, v := range st.Validators {
		if v.IsActive(currentEpoch) && v.EffectiveBalance <= cfg.EjectionBalance {
			if err := initiateValidatorExitIfNeeded(st, uint64(idx)); err != nil {
				return err
			}
		}
	}

	var activationQueue []uint64
	for idx, v := range st.Validators {
		eligible := v.ActivationEligibilityEpoch != cfg.FarFutureEpoch
		readyToActivate := v.ActivationEpoch >= helpers.ComputeActivationExitEpoch(st.FinalizedCheckpoint.Epoch)
		if eligible && readyToActivate {
			activationQueue = append(activationQueue, uint64(idx))
		}
	}
	sort.Slice(activationQueue, func(i, j int) bool {
		return st.Validators[activationQueue[i]].ActivationEligibilityEpoch < st.Validators[activationQueue[j]].ActivationEligibilityEpoch
	})

	churnLimit := helpers.ValidatorChurnLimit(helpers.ActiveValidatorCount(st, currentEpoch))
	if uint64(len(activationQueue)) > churnLimit {
		activationQueue = activationQueue[:churnLimit]
	}
	for _, idx := range activationQueue {
		v := st.Validators[idx]
		if v.ActivationEpoch == cfg.FarFutureEpoch {
			updated := v.Copy()
			updated.ActivationEpoch = helpers.ComputeActivationExitEpoch(currentEpoch)
			st.SetValidator(idx, updated)
		}
	}
	return nil
}

// initiateValidatorExitIfNeeded repeats blocks.InitiateValidatorExit's
// exit-queue placement for registry-driven ejections; the two copies
// have to be kept in step by hand.
func initiateValidatorExitIfNeeded(st *types.BeaconState, index uint64) error {
	cfg := params.BeaconConfig()
	validator := st.Validators[index]
	if validator.ExitEpoch != cfg.FarFutureEpoch {
		return nil
	}

	currentEpoch := helpers.CurrentEpoch(st)
	var exitEpochs []uint64
	for _, v := range st.Validators {
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
	var churn uint64
	for _, e := range exitEpochs {
		if e == exitQueueEpoch {
			churn++
		}
	}
	if churn >= helpers.ValidatorChurnLimit(helpers.ActiveValidatorCount(st, currentEpoch)) {
		exitQueueEpoch++
	}

	updated := validator.Copy()
	updated.ExitEpoch = exitQueueEpoch
	updated.WithdrawableEpoch = exitQueueEpoch + cfg.MinValidatorWithdrawabilityDelay
	st.SetValidator(index, updated)
	return nil
}

// processSlashings applies the epoch-boundary portion of the slashing
// penalty: validators reaching the midpoint of their slashings-vector
// window are debited proportionally to the total slashed stake recorded
// since that window opened.
func processSlashings(st *types.BeaconState) error {
	cfg := params.BeaconConfig()
	currentEpoch := helpers.CurrentEpoch(st)
	totalBalance := helpers.TotalActiveBalance(st)

	totalAtStart := st.Slashings[(currentEpoch+1)%cfg.EpochsPerSlashingsVector]
	totalAtEnd := st.Slashings[currentEpoch%cfg.EpochsPerSlashingsVector]
	totalPenalties := totalAtEnd - totalAtStart

	for idx, v := range st.Validators {
		if !v.Slashed {
			continue
		}
		if currentEpoch != v.WithdrawableEpoch-cfg.EpochsPerSlashingsVector/2 {
			continue
		}
		adjustedTotal := totalPenalties * 3
		if adjustedTotal > totalBalance {
			adjustedTotal = totalBalance
		}
		// Scaled through the balance increment to keep the intermediate
		// product inside uint64 range.
		increment := cfg.EffectiveBalanceIncrement
		penalty := v.EffectiveBalance / increment * adjustedTotal / totalBalance * increment
		helpers.DecreaseBalance(st, uint64(idx), penalty)
	}
	return nil
}

// processFinalUpdates runs the epoch's final bookkeeping: eth1-vote
// window reset, effective-balance hysteresis, RANDAO and slashings ring
// rotation, historical-roots append, and the attestation accumulator
// swap.
func processFinalUpdates(st *types.BeaconState) error {
	cfg := params.BeaconConfig()
	currentEpoch := helpers.CurrentEpoch(st)
	nextEpoch := currentEpoch + 1

	if (st.Slot+1)%(cfg.EpochsPerEth1VotingPeriod*cfg.SlotsPerEpoch) == 0 {
		st.Eth1DataVotes = nil
	}

	halfIncrement := cfg.EffectiveBalanceIncrement / 2
	for idx, v := range st.Validators {
		balance := st.Balances[idx]
		if balance < v.EffectiveBalance || v.EffectiveBalance+3*halfIncrement < balance {
			newEffective := balance - balance%cfg.EffectiveBalanceIncrement
			if newEffective > cfg.MaxEffectiveBalance {
				newEffective = cfg.MaxEffectiveBalance
			}
			if newEffective != v.EffectiveBalance {
				updated := v.Copy()
				updated.EffectiveBalance = newEffective
				st.SetValidator(uint64(idx), updated)
			}
		}
	}

	currentMix, err := st.RandaoMixAtEpoch(currentEpoch)
	if err != nil {
		return errors.Wrap(err, "could not read current randao mix for rotation")
	}
	st.SetRandaoMix(nextEpoch%cfg.EpochsPerHistoricalVector, currentMix)

	slashingsRingIndex := nextEpoch % cfg.EpochsPerSlashingsVector
	currentSlashingsIndex := currentEpoch % cfg.EpochsPerSlashingsVector
	st.SetSlashing(slashingsRingIndex, st.Slashings[currentSlashingsIndex])

	epochsPerHistoricalRoot := cfg.SlotsPerHistoricalRoot / cfg.SlotsPerEpoch
	if nextEpoch%epochsPerHistoricalRoot == 0 {
		batchRoot := historicalBatchRoot(st)
		st.HistoricalRoots = append(st.HistoricalRoots, batchRoot)
	}

	st.RotateEpochAttestations()
	return nil
}

// historicalBatchRoot computes the root of the (block_roots, state_roots)
// pair archived into HistoricalRoots once per SLOTS_PER_HISTORICAL_ROOT
// window, mirroring the vector-merkleization BeaconState.HashTreeRoot
// uses for those same two fields.
func historicalBatchRoot(st *types.BeaconState) [32]byte {
	cfg := params.BeaconConfig()
	blockRootsRoot := ssz.MerkleizeVector(toSSZRoots(st.BlockRoots), cfg.SlotsPerHistoricalRoot)
	stateRootsRoot := ssz.MerkleizeVector(toSSZRoots(st.StateRoots), cfg.SlotsPerHistoricalRoot)
	return [32]byte(ssz.MerkleizeContainer([]ssz.Root{blockRootsRoot, stateRootsRoot}))
}

func toSSZRoots(in [][32]byte) []ssz.Root {
	out := make([]ssz.Root, len(in))
	for i, r := range in {
		out[i] = ssz.Root(r)
	}
	return out
}
