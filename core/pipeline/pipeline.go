// Package pipeline is the block-processor pipeline: the single-threaded
// event loop that turns the two external input streams (blocks,
// attestations) plus clock ticks into fork-choice-ready chain state.
// Grounded on a chain service's onBlock/getBlockPreState/updateJustified
// flow, but restructured around an explicit six-state machine (QUEUED,
// WAITING_PARENT, WAITING_PAYLOAD, VERIFYING, APPLIED, REJECTED) instead
// of an implicit service-method style.
package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"

	"github.com/sigmaprotocol/beacon-core/config/params"
	"github.com/sigmaprotocol/beacon-core/core/attestations"
	"github.com/sigmaprotocol/beacon-core/core/errkind"
	"github.com/sigmaprotocol/beacon-core/core/forkchoice"
	"github.com/sigmaprotocol/beacon-core/core/helpers"
	"github.com/sigmaprotocol/beacon-core/core/state"
	"github.com/sigmaprotocol/beacon-core/core/types"
	"github.com/sigmaprotocol/beacon-core/p2p"
	"github.com/sigmaprotocol/beacon-core/shared/traceutil"
)

var log = logrus.WithField("prefix", "core/pipeline")

var (
	blocksAppliedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_blocks_applied_total",
		Help: "Number of blocks that reached the APPLIED state.",
	})
	blocksRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_blocks_rejected_total",
		Help: "Number of blocks that reached the REJECTED state.",
	})
	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pipeline_queue_depth",
		Help: "Number of messages buffered in the pipeline's ordered queue.",
	})
)

// BlockState is one of the six states a block moves through on its way
// from submission to finality-relevant application.
type BlockState int

const (
	StateQueued BlockState = iota
	StateWaitingParent
	StateWaitingPayload
	StateVerifying
	StateApplied
	StateRejected
)

func (s BlockState) String() string {
	switch s {
	case StateQueued:
		return "QUEUED"
	case StateWaitingParent:
		return "WAITING_PARENT"
	case StateWaitingPayload:
		return "WAITING_PAYLOAD"
	case StateVerifying:
		return "VERIFYING"
	case StateApplied:
		return "APPLIED"
	case StateRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// BlockStorage is the chain-storage facade the pipeline indexes accepted
// blocks into. db/kv.Store satisfies this without either package
// importing the other.
type BlockStorage interface {
	SaveBlock(ctx context.Context, signed *types.SignedBeaconBlock) error
}

// ObservedState is what the pipeline broadcasts each time a block
// reaches APPLIED: an immutable snapshot external subscribers may read
// without any risk of racing the pipeline goroutine's own mutations.
type ObservedState struct {
	Root  [32]byte
	Block *types.SignedBeaconBlock
	State *types.BeaconState
}

type messageKind int

const (
	msgBlock messageKind = iota
	msgAttestation
	msgTick
	msgCancelWatch
)

type message struct {
	kind        messageKind
	block       *types.SignedBeaconBlock
	attestation *types.Attestation
	tick        uint64 // wall-clock slot, per genesisTime/SecondsPerSlot
	cancelRoot  [32]byte
}

// Pipeline owns the block store, the in-memory post-state-per-block map,
// the attestation pool, and the pending-parent watcher table — resources
// that belong exclusively to the pipeline goroutine. All mutation
// happens on the single goroutine started by Run. There is no mutex:
// external accessors such as State read the maps unguarded, so they are
// safe only from that goroutine or after Run has returned.
type Pipeline struct {
	store   *forkchoice.Store
	votes   *forkchoice.LatestVotes
	pool    *attestations.Pool
	storage BlockStorage

	transitionConfig *state.TransitionConfig
	genesisTime      uint64

	postStates map[[32]byte]*types.BeaconState
	blockState map[[32]byte]BlockState

	// waitingParent indexes WAITING_PARENT blocks by the parent root they are
	// missing, so a single parent arriving can unblock every dependent
	// block in one pass.
	waitingParent map[[32]byte][]*types.SignedBeaconBlock
	// waitingPayload holds blocks whose slot is still ahead of the wall
	// clock by more than one slot duration.
	waitingPayload []*types.SignedBeaconBlock

	queue    chan message
	observed chan *ObservedState
	fatal    chan error
}

// New returns a pipeline rooted at genesis: genesisState is inserted as
// the sole known block/state pair under genesisBlock's root.
func New(genesisBlock *types.SignedBeaconBlock, genesisState *types.BeaconState, storage BlockStorage) *Pipeline {
	p := &Pipeline{
		store:            forkchoice.NewStore(),
		votes:            forkchoice.NewLatestVotes(),
		pool:             attestations.NewPool(),
		storage:          storage,
		transitionConfig: state.DefaultConfig(),
		genesisTime:      genesisState.GenesisTime,
		postStates:       make(map[[32]byte]*types.BeaconState),
		blockState:       make(map[[32]byte]BlockState),
		waitingParent:    make(map[[32]byte][]*types.SignedBeaconBlock),
		queue:            make(chan message, 1024),
		observed:         make(chan *ObservedState, 16),
		fatal:            make(chan error, 1),
	}
	root := p.store.Insert(genesisBlock.Block)
	p.postStates[root] = genesisState
	p.blockState[root] = StateApplied
	return p
}

// Observed returns the channel ObservedState snapshots are published on
// as blocks reach APPLIED.
func (p *Pipeline) Observed() <-chan *ObservedState { return p.observed }

// Fatal delivers at most one unrecoverable error — an invariant
// violation inside the transition, or a storage failure — after which
// Run has stopped processing. Recoverable per-block failures never
// appear here; they end as per-block rejections.
func (p *Pipeline) Fatal() <-chan error { return p.fatal }

func (p *Pipeline) reportFatal(err error) {
	select {
	case p.fatal <- err:
	default:
	}
}

// SubmitBlock enqueues signed for processing. Returns only once the
// message is queued, not once it is applied — the pipeline is
// asynchronous.
func (p *Pipeline) SubmitBlock(signed *types.SignedBeaconBlock) {
	p.enqueue(message{kind: msgBlock, block: signed})
}

// SubmitAttestation enqueues att for staging in the attestation pool.
func (p *Pipeline) SubmitAttestation(att *types.Attestation) {
	p.enqueue(message{kind: msgAttestation, attestation: att})
}

// Tick enqueues a clock tick for wallClockSlot, the slot number the
// current wall-clock time maps to. Drives WAITING_PAYLOAD promotion and
// attestation-pool pruning.
func (p *Pipeline) Tick(wallClockSlot uint64) {
	p.enqueue(message{kind: msgTick, tick: wallClockSlot})
}

// Consume forwards stream's inbound blocks and attestations onto the
// pipeline's ordered queue until ctx is cancelled or the stream closes
// both channels. Run it in its own goroutine alongside Run; ordering
// within each channel is preserved, interleaving between the two
// follows arrival.
func (p *Pipeline) Consume(ctx context.Context, stream p2p.BlockAttestationStream) {
	blocksCh := stream.Blocks()
	attsCh := stream.Attestations()
	for blocksCh != nil || attsCh != nil {
		select {
		case <-ctx.Done():
			return
		case signed, ok := <-blocksCh:
			if !ok {
				blocksCh = nil
				continue
			}
			p.SubmitBlock(signed)
		case att, ok := <-attsCh:
			if !ok {
				attsCh = nil
				continue
			}
			p.SubmitAttestation(att)
		}
	}
}

// CancelWatch cancels any pending watcher for parentRoot: every block
// still in WAITING_PARENT on that root moves to REJECTED, since no
// alternate provider is tracked by this minimal pipeline.
func (p *Pipeline) CancelWatch(parentRoot [32]byte) {
	p.enqueue(message{kind: msgCancelWatch, cancelRoot: parentRoot})
}

func (p *Pipeline) enqueue(m message) {
	p.queue <- m
	queueDepth.Set(float64(len(p.queue)))
}

// Run consumes the ordered message queue until ctx is cancelled. It is
// meant to be started once, in its own goroutine — the sole executor of
// every state mutation the pipeline makes. A panic while handling one
// message is recovered and logged rather than left to kill the
// goroutine, since that goroutine backs every block and attestation
// this process will ever apply.
func (p *Pipeline) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-p.queue:
			queueDepth.Set(float64(len(p.queue)))
			p.handleRecovering(ctx, m)
		}
	}
}

func (p *Pipeline) handleRecovering(ctx context.Context, m message) {
	defer func() {
		if r := recover(); r != nil {
			_ = traceutil.RecoveryHandlerFunc(ctx, r)
		}
	}()
	p.handle(ctx, m)
}

func (p *Pipeline) handle(ctx context.Context, m message) {
	switch m.kind {
	case msgBlock:
		p.handleBlock(ctx, m.block)
	case msgAttestation:
		p.handleAttestation(ctx, m.attestation)
	case msgTick:
		p.handleTick(ctx, m.tick)
	case msgCancelWatch:
		p.handleCancel(m.cancelRoot)
	}
}

// handleBlock runs one block through QUEUED -> {WAITING_PARENT,
// WAITING_PAYLOAD, VERIFYING} -> {APPLIED, REJECTED}.
func (p *Pipeline) handleBlock(ctx context.Context, signed *types.SignedBeaconBlock) {
	ctx, span := trace.StartSpan(ctx, "core.pipeline.handleBlock")
	defer span.End()

	root := [32]byte(signed.Block.HashTreeRoot())
	// A block already APPLIED, REJECTED, or mid-verification is never
	// reprocessed; one parked in WAITING_PARENT or WAITING_PAYLOAD is
	// passing back through after its precondition cleared.
	if s, seen := p.blockState[root]; seen && s != StateWaitingParent && s != StateWaitingPayload {
		return
	}
	p.blockState[root] = StateQueued

	parentRoot := signed.Block.ParentRoot
	parentState, knownParent := p.postStates[parentRoot]
	if !knownParent {
		p.blockState[root] = StateWaitingParent
		p.waitingParent[parentRoot] = append(p.waitingParent[parentRoot], signed)
		log.WithFields(logrus.Fields{"root": root, "parent": parentRoot}).Debug("block waiting on unknown parent")
		return
	}

	currentSlot := p.wallClockSlot()
	if signed.Block.Slot > currentSlot+1 {
		p.blockState[root] = StateWaitingPayload
		p.waitingPayload = append(p.waitingPayload, signed)
		log.WithFields(logrus.Fields{"root": root, "slot": signed.Block.Slot}).Debug("block waiting on future slot")
		return
	}

	p.blockState[root] = StateVerifying
	postState := parentState.Copy()
	if err := state.ExecuteStateTransition(ctx, postState, signed, p.transitionConfig); err != nil {
		if errors.Is(err, errkind.ErrInvariantViolation) {
			p.reportFatal(err)
		}
		p.reject(root, err)
		return
	}

	p.postStates[root] = postState
	p.blockState[root] = StateApplied
	p.store.Insert(signed.Block)
	blocksAppliedTotal.Inc()

	if p.storage != nil {
		if err := p.storage.SaveBlock(ctx, signed); err != nil {
			log.WithError(errors.Wrap(err, "could not persist block")).WithField("root", root).Error("storage failure")
			p.reportFatal(errors.Wrap(errkind.ErrStorageFailure, err.Error()))
		}
	}

	p.applyFlushedAttestations(root, postState)
	p.publish(root, signed, postState)
	p.drainWaitingParent(ctx, root)
}

func (p *Pipeline) reject(root [32]byte, cause error) {
	p.blockState[root] = StateRejected
	blocksRejectedTotal.Inc()
	log.WithError(cause).WithField("root", root).Info("block rejected")
	p.rejectDependents(root)
}

// rejectDependents marks every block that was waiting on root as its
// parent as REJECTED too — a rejected parent can never become a valid
// ancestor. No-op if nothing is waiting.
func (p *Pipeline) rejectDependents(root [32]byte) {
	waiting, ok := p.waitingParent[root]
	if !ok {
		return
	}
	delete(p.waitingParent, root)
	for _, dependent := range waiting {
		depRoot := [32]byte(dependent.Block.HashTreeRoot())
		p.reject(depRoot, errors.Wrap(errkind.ErrInvalidBlock, "ancestor block was rejected"))
	}
}

// drainWaitingParent re-submits every block that was waiting on root,
// now that root is APPLIED. Blocks are processed in the order they
// arrived.
func (p *Pipeline) drainWaitingParent(ctx context.Context, root [32]byte) {
	waiting, ok := p.waitingParent[root]
	if !ok {
		return
	}
	delete(p.waitingParent, root)
	for _, dependent := range waiting {
		p.handleBlock(ctx, dependent)
	}
}

// handleCancel implements CancelWatch: cancelling a request frees its
// watcher and rejects dependents absent an alternate provider, which
// this pipeline never tracks.
func (p *Pipeline) handleCancel(parentRoot [32]byte) {
	p.rejectDependents(parentRoot)
}

func (p *Pipeline) handleAttestation(ctx context.Context, att *types.Attestation) {
	isKnown := func(root [32]byte) bool {
		_, ok := p.postStates[root]
		return ok
	}
	if err := p.pool.SaveAttestation(att, isKnown); err != nil {
		log.WithError(err).Debug("dropped attestation")
		return
	}
	if st, ok := p.postStates[att.Data.BeaconBlockRoot]; ok {
		p.recordLatestVotes(st, []*types.Attestation{att})
	}
}

// recordLatestVotes updates the fork-choice latest-vote table for every
// validator that participated in each attestation in atts, computed
// against st (the state whose committees the attestations were drawn
// from).
func (p *Pipeline) recordLatestVotes(st *types.BeaconState, atts []*types.Attestation) {
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
			p.votes.Update(idx, att.Data.BeaconBlockRoot)
		}
	}
}

// applyFlushedAttestations flushes any attestations that were queued
// waiting on root and folds their votes into the fork-choice table.
func (p *Pipeline) applyFlushedAttestations(root [32]byte, postState *types.BeaconState) {
	flushed := p.pool.OnBlockApplied(root)
	if len(flushed) > 0 {
		p.recordLatestVotes(postState, flushed)
	}
}

func (p *Pipeline) handleTick(ctx context.Context, wallClockSlot uint64) {
	p.pool.OnTick(helpers.SlotToEpoch(wallClockSlot))

	var stillWaiting []*types.SignedBeaconBlock
	for _, signed := range p.waitingPayload {
		if signed.Block.Slot <= wallClockSlot+1 {
			p.handleBlock(ctx, signed)
			continue
		}
		stillWaiting = append(stillWaiting, signed)
	}
	p.waitingPayload = stillWaiting
}

func (p *Pipeline) publish(root [32]byte, signed *types.SignedBeaconBlock, st *types.BeaconState) {
	snapshot := &ObservedState{Root: root, Block: signed, State: st}
	select {
	case p.observed <- snapshot:
	default:
		log.WithField("root", root).Warn("observed-state subscriber too slow, dropping snapshot")
	}
}

func (p *Pipeline) wallClockSlot() uint64 {
	elapsed := uint64(time.Now().Unix()) - p.genesisTime
	return elapsed / params.BeaconConfig().SecondsPerSlot
}

// State returns the tracked BlockState for root, and whether the
// pipeline has ever seen it. Like every other accessor on Pipeline,
// this is only safe to call from the Run goroutine or after Run has
// returned — the maps it reads are owned exclusively by that goroutine.
func (p *Pipeline) State(root [32]byte) (BlockState, bool) {
	s, ok := p.blockState[root]
	return s, ok
}

// PostState returns the post-state recorded for an APPLIED block, if
// any. Same single-goroutine caveat as State.
func (p *Pipeline) PostState(root [32]byte) (*types.BeaconState, bool) {
	st, ok := p.postStates[root]
	return st, ok
}

// Head runs the fork-choice head walk over the pipeline's block store
// and latest votes, rooted at justified.
func (p *Pipeline) Head(ctx context.Context, headState *types.BeaconState, justified *types.Checkpoint) ([32]byte, error) {
	return forkchoice.Head(ctx, p.store, p.votes, headState, justified)
}
