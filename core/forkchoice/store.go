// Package forkchoice implements the latest-vote-weighted tree traversal
// that selects a canonical head from the set of known blocks and
// validators' most recent attestations — the LMD-GHOST rule, grounded on
// a chain service's lmdGhost/VoteCount/BlockAncestor helpers but
// restructured around an explicit in-memory Store rather than a
// database handle, since chain storage is an opaque collaborator here.
package forkchoice

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/core/errkind"
	"github.com/sigmaprotocol/beacon-core/core/types"
)

// Store indexes known blocks by root and by parent, the minimal index
// the head-finding walk needs: O(1) lookup by root, and children
// enumeration without a full table scan.
type Store struct {
	mu       sync.RWMutex
	blocks   map[[32]byte]*types.BeaconBlock
	children map[[32]byte][][32]byte
}

// NewStore returns an empty block store.
func NewStore() *Store {
	return &Store{
		blocks:   make(map[[32]byte]*types.BeaconBlock),
		children: make(map[[32]byte][][32]byte),
	}
}

// Insert records block under its own hash-tree root, indexing it as a
// child of its parent. Re-inserting the same root is a no-op.
func (s *Store) Insert(block *types.BeaconBlock) [32]byte {
	root := [32]byte(block.HashTreeRoot())
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blocks[root]; ok {
		return root
	}
	s.blocks[root] = block
	s.children[block.ParentRoot] = append(s.children[block.ParentRoot], root)
	return root
}

// Block returns the block stored under root, if any.
func (s *Store) Block(root [32]byte) (*types.BeaconBlock, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blocks[root]
	return b, ok
}

// Children returns the roots of every block whose ParentRoot is root.
func (s *Store) Children(root [32]byte) [][32]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([][32]byte, len(s.children[root]))
	copy(out, s.children[root])
	return out
}

// Ancestor walks root's ancestry and returns the root of its ancestor at
// slot, or ErrUnknownParent if the walk falls off the store before
// reaching it. Returns ok=false without error when root's block is
// already older than slot (get_ancestor's "None" case).
func (s *Store) Ancestor(root [32]byte, slot uint64) ([32]byte, bool, error) {
	for {
		block, ok := s.Block(root)
		if !ok {
			return [32]byte{}, false, errors.Wrapf(errkind.ErrUnknownParent, "ancestor walk: block %#x not in store", root)
		}
		if block.Slot == slot {
			return root, true, nil
		}
		if block.Slot < slot {
			return [32]byte{}, false, nil
		}
		root = block.ParentRoot
	}
}

// LatestVotes tracks each validator's most recently seen attestation
// target, the "latest message" LMD-GHOST weighs children by.
type LatestVotes struct {
	mu     sync.RWMutex
	target map[uint64][32]byte
}

// NewLatestVotes returns an empty vote table.
func NewLatestVotes() *LatestVotes {
	return &LatestVotes{target: make(map[uint64][32]byte)}
}

// Update records validatorIndex's vote for target, unconditionally
// overwriting any earlier one — callers are responsible for only
// calling this with a newer attestation (by slot) than the one already
// on file.
func (v *LatestVotes) Update(validatorIndex uint64, target [32]byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.target[validatorIndex] = target
}

// Snapshot returns a copy of the current validator_index -> target map,
// so the head walk can iterate without holding the lock.
func (v *LatestVotes) Snapshot() map[uint64][32]byte {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make(map[uint64][32]byte, len(v.target))
	for k, val := range v.target {
		out[k] = val
	}
	return out
}
