package forkchoice

import (
	"bytes"
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"

	"github.com/sigmaprotocol/beacon-core/core/errkind"
	"github.com/sigmaprotocol/beacon-core/core/types"
)

var log = logrus.WithField("prefix", "core/forkchoice")

// Head runs the LMD-GHOST walk described in the fork-choice component:
// starting from the justified checkpoint, repeatedly descend to the
// child carrying the greatest attesting balance until a leaf is
// reached. state supplies the validator registry (for effective
// balances) that latestVotes' weights are computed against.
//
// Pseudocode definition:
//  def get_head(store: Store) -> Root:
//      head = store.justified_checkpoint.root
//      while True:
//          children = [c for c in get_children(store, head) if c.slot > store.blocks[head].slot]
//          if len(children) == 0:
//              return head
//          head = max(children, key=lambda c: get_weight(store, c))
//          # ties on weight go to the lexicographically SMALLEST child
//          # root, so every honest node picks the same head
func Head(ctx context.Context, store *Store, latestVotes *LatestVotes, state *types.BeaconState, justified *types.Checkpoint) ([32]byte, error) {
	_, span := trace.StartSpan(ctx, "core.forkchoice.Head")
	defer span.End()

	justifiedBlock, ok := store.Block(justified.Root)
	if !ok {
		return [32]byte{}, errors.Wrapf(errkind.ErrUnknownParent, "fork choice: justified block %#x not in store", justified.Root)
	}

	votes := latestVotes.Snapshot()
	current := justified.Root

	for {
		children := eligibleChildren(store, current, justifiedBlock.Slot)
		if len(children) == 0 {
			logHeadChange(justified.Root, current)
			return current, nil
		}

		best := children[0]
		bestWeight, err := attestingWeight(store, votes, state, best, justifiedBlock.Slot, justified.Root)
		if err != nil {
			return [32]byte{}, err
		}
		for _, candidate := range children[1:] {
			weight, err := attestingWeight(store, votes, state, candidate, justifiedBlock.Slot, justified.Root)
			if err != nil {
				return [32]byte{}, err
			}
			if weight > bestWeight || (weight == bestWeight && bytes.Compare(candidate[:], best[:]) < 0) {
				best = candidate
				bestWeight = weight
			}
		}
		current = best
	}
}

// eligibleChildren filters current's children down to blocks at a slot
// strictly greater than the justified block's, the only candidates the
// walk may descend into.
func eligibleChildren(store *Store, current [32]byte, justifiedSlot uint64) [][32]byte {
	children := store.Children(current)
	out := children[:0:0]
	for _, child := range children {
		if block, ok := store.Block(child); ok && block.Slot > justifiedSlot {
			out = append(out, child)
		}
	}
	return out
}

func logHeadChange(previous, newHead [32]byte) {
	if previous == newHead {
		return
	}
	log.WithFields(logrus.Fields{
		"previousHead": previous,
		"newHead":      newHead,
	}).Debug("fork choice head changed")
}

// attestingWeight sums the effective balance of every validator whose
// latest vote target descends from candidate, i.e. whose ancestor at
// candidate's slot equals candidate. Votes whose target does not
// descend from the justified block are ignored entirely, per the
// fork-choice constraint.
func attestingWeight(store *Store, votes map[uint64][32]byte, state *types.BeaconState, candidate [32]byte, justifiedSlot uint64, justifiedRoot [32]byte) (uint64, error) {
	candidateBlock, ok := store.Block(candidate)
	if !ok {
		return 0, errors.Wrapf(errkind.ErrUnknownParent, "fork choice: candidate block %#x not in store", candidate)
	}

	var weight uint64
	for validatorIndex, target := range votes {
		justifiedAncestor, found, err := store.Ancestor(target, justifiedSlot)
		if err != nil || !found || justifiedAncestor != justifiedRoot {
			continue
		}

		ancestor, found, err := store.Ancestor(target, candidateBlock.Slot)
		if err != nil || !found {
			continue
		}
		if ancestor != candidate {
			continue
		}
		if int(validatorIndex) >= len(state.Validators) {
			continue
		}
		weight += state.Validators[validatorIndex].EffectiveBalance
	}
	return weight, nil
}
