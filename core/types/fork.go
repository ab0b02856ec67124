// Package types defines the beacon chain's data model: validators,
// checkpoints, attestations, blocks, deposits and the BeaconState
// aggregate. Every composite implements the ssz.HashRoot contract with
// hand-written methods rather than reflection. No sharding/crosslink fields
// are carried anywhere in this model.
package types

import (
	"github.com/sigmaprotocol/beacon-core/encoding/ssz"
)

// Fork records the two most recent fork-version tags and the epoch of
// the transition between them.
type Fork struct {
	PreviousVersion [4]byte
	CurrentVersion  [4]byte
	Epoch           uint64
}

func (f *Fork) Schema() *ssz.Schema {
	return ssz.ContainerSchema(
		ssz.Field{Name: "previous_version", Schema: ssz.BasicSchema(4)},
		ssz.Field{Name: "current_version", Schema: ssz.BasicSchema(4)},
		ssz.Field{Name: "epoch", Schema: ssz.BasicSchema(8)},
	)
}

func (f *Fork) MarshalSSZ() ([]byte, error) {
	return ssz.MarshalContainer([]ssz.FieldPart{
		{Fixed: f.PreviousVersion[:]},
		{Fixed: f.CurrentVersion[:]},
		{Fixed: ssz.MarshalUint64(f.Epoch)},
	})
}

func (f *Fork) UnmarshalSSZ(buf []byte) error {
	fields, err := ssz.UnmarshalContainer(buf, []int{4, 4, 8})
	if err != nil {
		return err
	}
	copy(f.PreviousVersion[:], fields[0])
	copy(f.CurrentVersion[:], fields[1])
	epoch, err := ssz.UnmarshalUint64(fields[2])
	if err != nil {
		return err
	}
	f.Epoch = epoch
	return nil
}

func (f *Fork) HashTreeRoot() ssz.Root {
	var prevChunk, currChunk ssz.Root
	copy(prevChunk[:], f.PreviousVersion[:])
	copy(currChunk[:], f.CurrentVersion[:])
	return ssz.MerkleizeContainer([]ssz.Root{
		prevChunk,
		currChunk,
		ssz.ChunksFromBytes(ssz.MarshalUint64(f.Epoch))[0],
	})
}
