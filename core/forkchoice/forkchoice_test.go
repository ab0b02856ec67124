package forkchoice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sigmaprotocol/beacon-core/core/types"
)

func block(slot uint64, parent [32]byte, salt byte) *types.BeaconBlock {
	return &types.BeaconBlock{
		Slot:       slot,
		ParentRoot: parent,
		StateRoot:  [32]byte{salt},
		Body:       &types.BeaconBlockBody{Eth1Data: &types.Eth1Data{}},
	}
}

func root(b *types.BeaconBlock) [32]byte {
	return [32]byte(b.HashTreeRoot())
}

func TestStore_InsertAndChildren(t *testing.T) {
	s := NewStore()
	genesis := block(0, [32]byte{}, 0)
	genesisRoot := s.Insert(genesis)

	childA := block(1, genesisRoot, 1)
	childB := block(1, genesisRoot, 2)
	s.Insert(childA)
	s.Insert(childB)

	children := s.Children(genesisRoot)
	require.Len(t, children, 2)

	got, ok := s.Block(genesisRoot)
	require.True(t, ok)
	require.Equal(t, genesis, got)
}

func TestStore_InsertIsIdempotent(t *testing.T) {
	s := NewStore()
	genesis := block(0, [32]byte{}, 0)
	r1 := s.Insert(genesis)
	r2 := s.Insert(genesis)
	require.Equal(t, r1, r2)
	require.Len(t, s.Children([32]byte{}), 1)
}

func TestStore_Ancestor(t *testing.T) {
	s := NewStore()
	genesis := block(0, [32]byte{}, 0)
	genesisRoot := s.Insert(genesis)
	mid := block(1, genesisRoot, 1)
	midRoot := s.Insert(mid)
	tip := block(2, midRoot, 2)
	tipRoot := s.Insert(tip)

	ancestor, ok, err := s.Ancestor(tipRoot, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, genesisRoot, ancestor)

	ancestor, ok, err = s.Ancestor(tipRoot, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, midRoot, ancestor)

	_, ok, err = s.Ancestor(genesisRoot, 5)
	require.NoError(t, err)
	require.False(t, ok)

	_, _, err = s.Ancestor([32]byte{0xFF}, 0)
	require.Error(t, err)
}

func TestLatestVotes_UpdateAndSnapshot(t *testing.T) {
	v := NewLatestVotes()
	var target [32]byte
	target[0] = 1
	v.Update(3, target)

	snap := v.Snapshot()
	require.Equal(t, target, snap[3])

	var newer [32]byte
	newer[0] = 2
	v.Update(3, newer)
	require.Equal(t, newer, v.Snapshot()[3])
}

func TestHead_PicksHeaviestChild(t *testing.T) {
	s := NewStore()
	genesis := block(0, [32]byte{}, 0)
	genesisRoot := s.Insert(genesis)
	childA := block(1, genesisRoot, 1)
	childB := block(1, genesisRoot, 2)
	childARoot := s.Insert(childA)
	s.Insert(childB)

	votes := NewLatestVotes()
	votes.Update(0, childARoot)
	votes.Update(1, childARoot)

	st := &types.BeaconState{Validators: []*types.Validator{
		{EffectiveBalance: 32000000000},
		{EffectiveBalance: 32000000000},
	}}
	justified := &types.Checkpoint{Root: genesisRoot}

	head, err := Head(context.Background(), s, votes, st, justified)
	require.NoError(t, err)
	require.Equal(t, childARoot, head)
}

func TestHead_TiesBreakOnLexicographicallySmallerRoot(t *testing.T) {
	s := NewStore()
	genesis := block(0, [32]byte{}, 0)
	genesisRoot := s.Insert(genesis)
	childA := block(1, genesisRoot, 1)
	childB := block(1, genesisRoot, 2)
	childARoot := s.Insert(childA)
	childBRoot := s.Insert(childB)

	// No votes at all: both children have zero weight, so the tie-break
	// alone decides, and it must pick the smaller root deterministically
	// regardless of insertion order.
	votes := NewLatestVotes()
	st := &types.BeaconState{}
	justified := &types.Checkpoint{Root: genesisRoot}

	head, err := Head(context.Background(), s, votes, st, justified)
	require.NoError(t, err)

	var want [32]byte
	if lessRoot(childARoot, childBRoot) {
		want = childARoot
	} else {
		want = childBRoot
	}
	require.Equal(t, want, head)
}

func lessRoot(a, b [32]byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func TestHead_IgnoresChildrenAtOrBeforeJustifiedSlot(t *testing.T) {
	s := NewStore()
	justifiedBlock := block(5, [32]byte{}, 0)
	justifiedRoot := s.Insert(justifiedBlock)

	// A stale sibling indexed under the justified block but not actually
	// past it must never be walked into.
	stale := block(5, justifiedRoot, 1)
	s.Insert(stale)

	votes := NewLatestVotes()
	st := &types.BeaconState{}
	justified := &types.Checkpoint{Root: justifiedRoot}

	head, err := Head(context.Background(), s, votes, st, justified)
	require.NoError(t, err)
	require.Equal(t, justifiedRoot, head)
}

func TestHead_UnknownJustifiedBlockErrors(t *testing.T) {
	s := NewStore()
	votes := NewLatestVotes()
	st := &types.BeaconState{}
	justified := &types.Checkpoint{Root: [32]byte{0xAB}}

	_, err := Head(context.Background(), s, votes, st, justified)
	require.Error(t, err)
}

func TestHead_LeafReturnsItself(t *testing.T) {
	s := NewStore()
	genesis := block(0, [32]byte{}, 0)
	genesisRoot := s.Insert(genesis)

	votes := NewLatestVotes()
	st := &types.BeaconState{}
	justified := &types.Checkpoint{Root: genesisRoot}

	head, err := Head(context.Background(), s, votes, st, justified)
	require.NoError(t, err)
	require.Equal(t, genesisRoot, head)
}
