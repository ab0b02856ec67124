// Package attestations is the staging area between the wire and the
// block-processor pipeline: a mapping from target epoch to the
// attestations seen for it, plus a side queue for attestations whose
// beacon block root is not yet known to chain storage. Grounded on an
// operations pool's aggregated/unaggregated/forkchoice split and a
// kv store's dedup-by-root idiom, collapsed to a single pool (no
// separate bucket split, since this module has no crosslink
// shard-committee aggregation to amortize).
package attestations

import (
	"strconv"
	"sync"
	"time"

	patrickmncache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/sigmaprotocol/beacon-core/core/blocks"
	"github.com/sigmaprotocol/beacon-core/core/errkind"
	"github.com/sigmaprotocol/beacon-core/core/types"
)

var log = logrus.WithField("prefix", "core/attestations")

var (
	poolSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "attestation_pool_size",
		Help: "Number of attestations staged in the pool, by epoch bucket.",
	}, []string{"epoch"})
	noBlockRootSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "attestation_pool_no_block_root_size",
		Help: "Number of attestations staged waiting on an unknown block root.",
	})
)

// seenTTL bounds how long a data-root is remembered in the dedup set;
// well past a single epoch so duplicate gossip within an epoch never
// re-enters the pool, mirroring forkChoiceProcessedRoots' indefinite
// lifetime without actually growing unbounded in a long-running node.
const seenTTL = 2 * time.Hour

// Pool stages attestations between ingestion and two consumers: the
// fork-choice head walk (which wants every not-yet-stale attestation's
// latest vote) and block proposal (which wants a deduplicated,
// verifiable subset to include in the next block).
type Pool struct {
	mu sync.RWMutex

	// byEpoch buckets attestations by their target epoch, the index the
	// fork-choice latest-vote walk and epoch housekeeping both key on.
	byEpoch map[uint64][]*types.Attestation

	// noBlockRoot queues attestations referencing a beacon block root
	// chain storage does not yet hold, keyed by that root, so a single
	// APPLIED transition can flush every attestation that was waiting
	// on it back into byEpoch in one step.
	noBlockRoot map[[32]byte][]*types.Attestation

	seen *patrickmncache.Cache
}

// NewPool returns an empty attestation pool.
func NewPool() *Pool {
	return &Pool{
		byEpoch:     make(map[uint64][]*types.Attestation),
		noBlockRoot: make(map[[32]byte][]*types.Attestation),
		seen:        patrickmncache.New(seenTTL, seenTTL/2),
	}
}

// KnownBlockRoot reports whether root identifies a block the pipeline
// has already applied, the predicate SaveAttestation uses to decide
// between the main pool and the no-block-root queue. Callers pass the
// pipeline's or chain storage's lookup.
type KnownBlockRoot func(root [32]byte) bool

// SaveAttestation stages att, routing it to the no-block-root queue if
// isKnown reports its beacon block root is not yet stored, or into the
// target-epoch bucket otherwise. Duplicate attestations (by data +
// aggregation-bits root) are dropped silently.
func (p *Pool) SaveAttestation(att *types.Attestation, isKnown KnownBlockRoot) error {
	if att == nil || att.Data == nil {
		return errors.Wrap(errkind.ErrInvalidAttestation, "nil attestation or data")
	}

	root := attestationRoot(att)
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, dup := p.seen.Get(string(root[:])); dup {
		return nil
	}
	p.seen.SetDefault(string(root[:]), struct{}{})

	if !isKnown(att.Data.BeaconBlockRoot) {
		p.noBlockRoot[att.Data.BeaconBlockRoot] = append(p.noBlockRoot[att.Data.BeaconBlockRoot], att)
		noBlockRootSize.Set(float64(p.totalNoBlockRootLocked()))
		return nil
	}

	epoch := att.Data.Target.Epoch
	p.byEpoch[epoch] = append(p.byEpoch[epoch], att)
	poolSize.WithLabelValues(epochLabel(epoch)).Set(float64(len(p.byEpoch[epoch])))
	return nil
}

// OnBlockApplied flushes every attestation queued on root — now a known
// block — back into the main pool, returning the flushed attestations
// so the caller can republish them (e.g. to fork choice's latest-vote
// table).
func (p *Pool) OnBlockApplied(root [32]byte) []*types.Attestation {
	p.mu.Lock()
	defer p.mu.Unlock()

	waiting, ok := p.noBlockRoot[root]
	if !ok {
		return nil
	}
	delete(p.noBlockRoot, root)
	noBlockRootSize.Set(float64(p.totalNoBlockRootLocked()))

	for _, att := range waiting {
		epoch := att.Data.Target.Epoch
		p.byEpoch[epoch] = append(p.byEpoch[epoch], att)
		poolSize.WithLabelValues(epochLabel(epoch)).Set(float64(len(p.byEpoch[epoch])))
	}
	return waiting
}

// OnTick discards every epoch bucket strictly older than one below
// currentEpoch.
func (p *Pool) OnTick(currentEpoch uint64) {
	if currentEpoch == 0 {
		return
	}
	cutoff := currentEpoch - 1

	p.mu.Lock()
	defer p.mu.Unlock()
	for epoch := range p.byEpoch {
		if epoch < cutoff {
			delete(p.byEpoch, epoch)
			log.WithField("epoch", epoch).Debug("pruned stale attestation bucket")
		}
	}
}

// ForkChoiceAttestations returns every staged attestation across all
// epoch buckets, the input the fork-choice latest-vote table is built
// from.
func (p *Pool) ForkChoiceAttestations() []*types.Attestation {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []*types.Attestation
	for _, bucket := range p.byEpoch {
		out = append(out, bucket...)
	}
	return out
}

// AttestationsForBlock returns the attestations a proposer building on
// candidate should include: every staged attestation whose bits are not
// already a subset of bits recorded on-chain for the same data, and
// that candidate's state transition accepts. limit bounds the number
// returned (MAX_ATTESTATIONS).
func (p *Pool) AttestationsForBlock(candidate *types.BeaconState, limit uint64) []*types.Attestation {
	p.mu.RLock()
	staged := make([]*types.Attestation, 0)
	for _, bucket := range p.byEpoch {
		staged = append(staged, bucket...)
	}
	p.mu.RUnlock()

	onChain := onChainBitsByData(candidate)

	var picked []*types.Attestation
	for _, att := range staged {
		if uint64(len(picked)) >= limit {
			break
		}
		key := att.Data.HashTreeRoot()
		if existing, ok := onChain[key]; ok && isSubset(att.AggregationBits, existing) {
			continue
		}
		if !verifiesAgainst(candidate, att) {
			continue
		}
		picked = append(picked, att)
	}
	return picked
}

// verifiesAgainst reports whether att would be accepted by candidate's
// state transition, by running the same per-attestation checks
// ProcessAttestations applies against a disposable copy of candidate so
// the real state is never mutated by the probe.
func verifiesAgainst(candidate *types.BeaconState, att *types.Attestation) bool {
	probe := candidate.Copy()
	return blocks.ProcessAttestations(probe, []*types.Attestation{att}) == nil
}

// onChainBitsByData indexes candidate's recorded pending attestations
// (both epoch accumulators) by their data's hash-tree root, unioning
// the aggregation bits of every pending attestation sharing that data,
// since several partial aggregates for the same data can coexist
// on-chain before a fully-aggregated one supersedes them.
func onChainBitsByData(state *types.BeaconState) map[[32]byte]onChainBits {
	out := make(map[[32]byte]onChainBits)
	accumulate := func(pending []*types.PendingAttestation) {
		for _, p := range pending {
			key := p.Data.HashTreeRoot()
			bits, ok := out[key]
			if !ok {
				bits = onChainBits(p.AggregationBits.Bytes())
				out[key] = bits
				continue
			}
			out[key] = unionBits(bits, p.AggregationBits)
		}
	}
	accumulate(state.PreviousEpochAttestations)
	accumulate(state.CurrentEpochAttestations)
	return out
}

// onChainBits is the OR of every on-chain aggregation bitfield sharing
// one attestation-data root, stored as raw packed bytes (the underlying
// representation bitfield.Bitlist itself uses).
type onChainBits []byte

func unionBits(acc onChainBits, bits interface{ Bytes() []byte }) onChainBits {
	next := bits.Bytes()
	if len(next) > len(acc) {
		grown := make(onChainBits, len(next))
		copy(grown, acc)
		acc = grown
	}
	for i, b := range next {
		acc[i] |= b
	}
	return acc
}

// isSubset reports whether every bit set in bits is also set in
// covering, byte-for-byte over the packed bitfield representation
// (Bytes() drops the trailing length-marker bit, so only attester bits
// are compared).
func isSubset(bits interface{ Bytes() []byte }, covering onChainBits) bool {
	raw := bits.Bytes()
	if len(raw) > len(covering) {
		return false
	}
	for i, b := range raw {
		if b&^covering[i] != 0 {
			return false
		}
	}
	return true
}

func (p *Pool) totalNoBlockRootLocked() int {
	n := 0
	for _, v := range p.noBlockRoot {
		n += len(v)
	}
	return n
}

func attestationRoot(att *types.Attestation) [32]byte {
	return [32]byte(att.HashTreeRoot())
}

func epochLabel(epoch uint64) string {
	return strconv.FormatUint(epoch, 10)
}
