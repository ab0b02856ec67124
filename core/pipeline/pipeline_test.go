package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sigmaprotocol/beacon-core/config/params"
	"github.com/sigmaprotocol/beacon-core/core/helpers"
	"github.com/sigmaprotocol/beacon-core/core/state"
	"github.com/sigmaprotocol/beacon-core/core/testutil"
	"github.com/sigmaprotocol/beacon-core/core/types"
	"github.com/sigmaprotocol/beacon-core/p2p"
)

// buildChildBlock produces a SignedBeaconBlock at slot 1 that a fresh
// copy of genesisState's transition will accept: a real expected
// proposer index, a parent root matching the post-process_slot header,
// and a state root computed by actually running the transition once
// against a disposable copy.
func buildChildBlock(t *testing.T, genesisState *types.BeaconState) *types.SignedBeaconBlock {
	signed, _ := buildBlockOn(t, genesisState, 1)
	return signed
}

// buildBlockOn produces a SignedBeaconBlock at slot that parentState's
// transition will accept, returning the block alongside its post-state
// so callers can chain further blocks on top of it.
func buildBlockOn(t *testing.T, parentState *types.BeaconState, slot uint64) (*types.SignedBeaconBlock, *types.BeaconState) {
	t.Helper()

	setup := parentState.Copy()
	require.NoError(t, state.ProcessSlots(setup, slot))
	parentRoot := [32]byte(setup.LatestBlockHeader.HashTreeRoot())
	proposerIndex, err := helpers.BeaconProposerIndex(setup)
	require.NoError(t, err)

	block := &types.BeaconBlock{
		Slot:          slot,
		ProposerIndex: proposerIndex,
		ParentRoot:    parentRoot,
		Body: &types.BeaconBlockBody{
			Eth1Data: parentState.Eth1Data,
		},
	}
	signed := &types.SignedBeaconBlock{Block: block}

	trial := parentState.Copy()
	require.NoError(t, state.ExecuteStateTransition(context.Background(), trial, signed, &state.TransitionConfig{VerifyStateRoot: false}))
	block.StateRoot = [32]byte(trial.HashTreeRoot())
	return signed, trial
}

func newTestPipeline(t *testing.T) (*Pipeline, *types.BeaconState, *types.SignedBeaconBlock) {
	t.Helper()
	params.UseMinimalConfig()
	t.Cleanup(params.UseMainnetConfig)
	params.OverrideSpecOptions(params.TestSpecOptions())
	t.Cleanup(func() { params.OverrideSpecOptions(params.DefaultSpecOptions()) })

	genesisState := testutil.NewGenesisState(8)
	genesisState.GenesisTime = 0

	genesisBody := &types.BeaconBlockBody{Eth1Data: &types.Eth1Data{}}
	genesisState.LatestBlockHeader = &types.BeaconBlockHeader{BodyRoot: [32]byte(genesisBody.HashTreeRoot())}
	genesisBlock := &types.SignedBeaconBlock{
		Block: &types.BeaconBlock{StateRoot: [32]byte(genesisState.HashTreeRoot()), Body: genesisBody},
	}
	p := New(genesisBlock, genesisState, nil)
	return p, genesisState, genesisBlock
}

func TestPipeline_New_GenesisIsApplied(t *testing.T) {
	p, _, genesisBlock := newTestPipeline(t)
	root := [32]byte(genesisBlock.Block.HashTreeRoot())

	got, ok := p.State(root)
	require.True(t, ok)
	require.Equal(t, StateApplied, got)

	_, ok = p.PostState(root)
	require.True(t, ok)
}

func TestPipeline_SubmitBlock_AppliesValidChild(t *testing.T) {
	p, genesisState, _ := newTestPipeline(t)
	child := buildChildBlock(t, genesisState)
	childRoot := [32]byte(child.Block.HashTreeRoot())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.SubmitBlock(child)

	require.Eventually(t, func() bool {
		st, ok := p.State(childRoot)
		return ok && st == StateApplied
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPipeline_SubmitBlock_UnknownParentWaits(t *testing.T) {
	p, genesisState, _ := newTestPipeline(t)
	child := buildChildBlock(t, genesisState)
	// Corrupt the parent root so it never resolves.
	child.Block.ParentRoot[0] ^= 0xFF
	childRoot := [32]byte(child.Block.HashTreeRoot())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.SubmitBlock(child)

	require.Eventually(t, func() bool {
		st, ok := p.State(childRoot)
		return ok && st == StateWaitingParent
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPipeline_CancelWatch_RejectsWaitingDependents(t *testing.T) {
	p, genesisState, _ := newTestPipeline(t)
	child := buildChildBlock(t, genesisState)
	missingParent := child.Block.ParentRoot
	missingParent[0] ^= 0xFF
	child.Block.ParentRoot = missingParent
	childRoot := [32]byte(child.Block.HashTreeRoot())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.SubmitBlock(child)
	require.Eventually(t, func() bool {
		st, ok := p.State(childRoot)
		return ok && st == StateWaitingParent
	}, 2*time.Second, 10*time.Millisecond)

	p.CancelWatch(missingParent)

	require.Eventually(t, func() bool {
		st, ok := p.State(childRoot)
		return ok && st == StateRejected
	}, 2*time.Second, 10*time.Millisecond)
}

// TestPipeline_DrainWaitingParent_AppliesOutOfOrderBlocks submits a
// grandchild before its parent: the grandchild must park in
// WAITING_PARENT and then be verified and applied once the parent
// arrives, not left parked forever.
func TestPipeline_DrainWaitingParent_AppliesOutOfOrderBlocks(t *testing.T) {
	p, genesisState, _ := newTestPipeline(t)
	child, childPost := buildBlockOn(t, genesisState, 1)
	grandchild, _ := buildBlockOn(t, childPost, 2)
	grandchildRoot := [32]byte(grandchild.Block.HashTreeRoot())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.SubmitBlock(grandchild)
	require.Eventually(t, func() bool {
		st, ok := p.State(grandchildRoot)
		return ok && st == StateWaitingParent
	}, 2*time.Second, 10*time.Millisecond)

	p.SubmitBlock(child)
	require.Eventually(t, func() bool {
		st, ok := p.State(grandchildRoot)
		return ok && st == StateApplied
	}, 2*time.Second, 10*time.Millisecond)
}

// TestPipeline_Consume_AppliesStreamedBlock feeds a valid child block
// through the stream boundary rather than SubmitBlock directly,
// checking the Consume forwarder end to end.
func TestPipeline_Consume_AppliesStreamedBlock(t *testing.T) {
	p, genesisState, _ := newTestPipeline(t)
	child := buildChildBlock(t, genesisState)
	childRoot := [32]byte(child.Block.HashTreeRoot())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	stream := p2p.NewChannelStream(4)
	defer stream.Close()
	go p.Consume(ctx, stream)

	require.True(t, stream.SendBlock(ctx, child))

	require.Eventually(t, func() bool {
		st, ok := p.State(childRoot)
		return ok && st == StateApplied
	}, 2*time.Second, 10*time.Millisecond)
}

// TestPipeline_Run_SurvivesPanickingMessage exercises the recover in
// handleRecovering: a malformed message that panics while being
// handled must not take down the Run goroutine, so a well-formed
// message submitted afterward is still processed.
func TestPipeline_Run_SurvivesPanickingMessage(t *testing.T) {
	p, genesisState, _ := newTestPipeline(t)
	child := buildChildBlock(t, genesisState)
	childRoot := [32]byte(child.Block.HashTreeRoot())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.enqueue(message{kind: msgBlock, block: nil})
	p.SubmitBlock(child)

	require.Eventually(t, func() bool {
		st, ok := p.State(childRoot)
		return ok && st == StateApplied
	}, 2*time.Second, 10*time.Millisecond)
}
