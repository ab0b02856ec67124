package types

import (
	"testing"

	"github.com/prysmaticlabs/go-bitfield"
	"github.com/stretchr/testify/require"

	"github.com/sigmaprotocol/beacon-core/config/params"
	"github.com/sigmaprotocol/beacon-core/encoding/ssz"
)

func TestDepositData_SigningRootElidesSignature(t *testing.T) {
	d := &DepositData{Amount: 32000000000}
	d.Pubkey[0] = 0xAA
	d.Signature[0] = 0x01

	signingRoot := d.SigningRoot()

	// Zeroing the signature must not change the signing root, but must
	// change the full tree-hash.
	fullBefore := d.HashTreeRoot()
	d.Signature = [96]byte{}
	require.Equal(t, signingRoot, d.SigningRoot())
	require.NotEqual(t, fullBefore, d.HashTreeRoot())

	// And the signing root is exactly the prefix-of-fields merkleization.
	require.Equal(t, ssz.Root(signingRoot), ssz.MerkleizeContainer(ssz.SigningRootFields(d.fieldRoots())))
}

func TestBeaconBlock_RoundTrip(t *testing.T) {
	b := &BeaconBlock{
		Slot:          17,
		ProposerIndex: 3,
		Body: &BeaconBlockBody{
			Eth1Data: &Eth1Data{DepositCount: 9},
		},
	}
	b.ParentRoot[0] = 0x11
	b.StateRoot[0] = 0x22
	b.Body.RandaoReveal[0] = 0x33

	buf, err := b.MarshalSSZ()
	require.NoError(t, err)

	got := &BeaconBlock{}
	require.NoError(t, got.UnmarshalSSZ(buf))
	require.Equal(t, b.Slot, got.Slot)
	require.Equal(t, b.ProposerIndex, got.ProposerIndex)
	require.Equal(t, b.ParentRoot, got.ParentRoot)
	require.Equal(t, b.StateRoot, got.StateRoot)
	require.Equal(t, b.Body.RandaoReveal, got.Body.RandaoReveal)
	require.Equal(t, b.Body.Eth1Data.DepositCount, got.Body.Eth1Data.DepositCount)
	require.Equal(t, b.HashTreeRoot(), got.HashTreeRoot())
}

func TestAttestation_RoundTripPreservesRoot(t *testing.T) {
	att := &Attestation{
		AggregationBits: bitfield.NewBitlist(4),
		Data: &AttestationData{
			Slot:           5,
			CommitteeIndex: 1,
			Source:         &Checkpoint{Epoch: 0},
			Target:         &Checkpoint{Epoch: 1},
		},
	}
	att.AggregationBits.SetBitAt(2, true)
	att.Data.Target.Root[0] = 0x44

	buf, err := att.MarshalSSZ()
	require.NoError(t, err)

	got := &Attestation{}
	require.NoError(t, got.UnmarshalSSZ(buf))
	require.Equal(t, att.HashTreeRoot(), got.HashTreeRoot())
	require.True(t, got.AggregationBits.BitAt(2))
}

func TestBeaconState_RoundTrip(t *testing.T) {
	params.UseMinimalConfig()
	defer params.UseMainnetConfig()
	cfg := params.BeaconConfig()

	st := &BeaconState{
		GenesisTime:       12345,
		Slot:              9,
		Fork:              &Fork{Epoch: 1},
		LatestBlockHeader: &BeaconBlockHeader{Slot: 8},
		BlockRoots:        make([][32]byte, cfg.SlotsPerHistoricalRoot),
		StateRoots:        make([][32]byte, cfg.SlotsPerHistoricalRoot),
		HistoricalRoots:   [][32]byte{{0x01}},
		Eth1Data:          &Eth1Data{DepositCount: 2},
		Eth1DataVotes:     []*Eth1Data{{DepositCount: 2}},
		Eth1DepositIndex:  2,
		Validators: []*Validator{{
			EffectiveBalance:  cfg.MaxEffectiveBalance,
			ExitEpoch:         cfg.FarFutureEpoch,
			WithdrawableEpoch: cfg.FarFutureEpoch,
		}},
		Balances:    []uint64{cfg.MaxEffectiveBalance},
		RandaoMixes: make([][32]byte, cfg.EpochsPerHistoricalVector),
		Slashings:   make([]uint64, cfg.EpochsPerSlashingsVector),
		CurrentEpochAttestations: []*PendingAttestation{{
			AggregationBits: bitfield.NewBitlist(3),
			Data: &AttestationData{
				Slot:   8,
				Source: &Checkpoint{},
				Target: &Checkpoint{Epoch: 1},
			},
			InclusionDelay: 1,
			ProposerIndex:  0,
		}},
		JustificationBits:           0b0101,
		PreviousJustifiedCheckpoint: &Checkpoint{},
		CurrentJustifiedCheckpoint:  &Checkpoint{Epoch: 1},
		FinalizedCheckpoint:         &Checkpoint{},
	}
	st.BlockRoots[3][0] = 0xAB
	st.RandaoMixes[0][0] = 0xCD
	st.Slashings[1] = 7

	buf, err := st.MarshalSSZ()
	require.NoError(t, err)

	got := &BeaconState{}
	require.NoError(t, got.UnmarshalSSZ(buf))

	require.Equal(t, st.GenesisTime, got.GenesisTime)
	require.Equal(t, st.Slot, got.Slot)
	require.Equal(t, st.BlockRoots, got.BlockRoots)
	require.Equal(t, st.HistoricalRoots, got.HistoricalRoots)
	require.Equal(t, st.Eth1DataVotes, got.Eth1DataVotes)
	require.Equal(t, st.Validators, got.Validators)
	require.Equal(t, st.Balances, got.Balances)
	require.Equal(t, st.Slashings, got.Slashings)
	require.Equal(t, st.JustificationBits, got.JustificationBits)
	require.Equal(t, st.CurrentJustifiedCheckpoint, got.CurrentJustifiedCheckpoint)
	require.Len(t, got.CurrentEpochAttestations, 1)
	require.Equal(t, st.CurrentEpochAttestations[0].Data.Target.Epoch, got.CurrentEpochAttestations[0].Data.Target.Epoch)
	require.Equal(t, st.HashTreeRoot(), got.HashTreeRoot())
}

func TestHeaderRootMatchesBlockRoot(t *testing.T) {
	b := &BeaconBlock{
		Slot: 4,
		Body: &BeaconBlockBody{Eth1Data: &Eth1Data{}},
	}
	b.StateRoot[0] = 0x55
	require.Equal(t, b.HashTreeRoot(), b.Header().HashTreeRoot())
}
