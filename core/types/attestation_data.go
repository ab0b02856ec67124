package types

import "github.com/sigmaprotocol/beacon-core/encoding/ssz"

// AttestationData is a validator's vote on the head and on source/target
// checkpoints. Crosslink/shard fields from earlier, sharding-era
// attestation formats are omitted (sharding is out of scope).
type AttestationData struct {
	Slot            uint64
	CommitteeIndex  uint64
	BeaconBlockRoot [32]byte
	Source          *Checkpoint
	Target          *Checkpoint
}

func (a *AttestationData) Schema() *ssz.Schema {
	return ssz.ContainerSchema(
		ssz.Field{Name: "slot", Schema: ssz.BasicSchema(8)},
		ssz.Field{Name: "index", Schema: ssz.BasicSchema(8)},
		ssz.Field{Name: "beacon_block_root", Schema: ssz.BasicSchema(32)},
		ssz.Field{Name: "source", Schema: a.Source.Schema()},
		ssz.Field{Name: "target", Schema: a.Target.Schema()},
	)
}

func (a *AttestationData) MarshalSSZ() ([]byte, error) {
	sourceBuf, err := a.Source.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	targetBuf, err := a.Target.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	return ssz.MarshalContainer([]ssz.FieldPart{
		{Fixed: ssz.MarshalUint64(a.Slot)},
		{Fixed: ssz.MarshalUint64(a.CommitteeIndex)},
		{Fixed: a.BeaconBlockRoot[:]},
		{Fixed: sourceBuf},
		{Fixed: targetBuf},
	})
}

func (a *AttestationData) UnmarshalSSZ(buf []byte) error {
	fields, err := ssz.UnmarshalContainer(buf, []int{8, 8, 32, 40, 40})
	if err != nil {
		return err
	}
	if a.Slot, err = ssz.UnmarshalUint64(fields[0]); err != nil {
		return err
	}
	if a.CommitteeIndex, err = ssz.UnmarshalUint64(fields[1]); err != nil {
		return err
	}
	copy(a.BeaconBlockRoot[:], fields[2])
	a.Source = &Checkpoint{}
	if err := a.Source.UnmarshalSSZ(fields[3]); err != nil {
		return err
	}
	a.Target = &Checkpoint{}
	return a.Target.UnmarshalSSZ(fields[4])
}

func (a *AttestationData) HashTreeRoot() ssz.Root {
	var blockRootChunk ssz.Root
	copy(blockRootChunk[:], a.BeaconBlockRoot[:])
	return ssz.MerkleizeContainer([]ssz.Root{
		ssz.ChunksFromBytes(ssz.MarshalUint64(a.Slot))[0],
		ssz.ChunksFromBytes(ssz.MarshalUint64(a.CommitteeIndex))[0],
		blockRootChunk,
		a.Source.HashTreeRoot(),
		a.Target.HashTreeRoot(),
	})
}

// Equal compares two attestation data values by their encoded fields.
func (a *AttestationData) Equal(o *AttestationData) bool {
	if a == nil || o == nil {
		return a == o
	}
	return a.HashTreeRoot() == o.HashTreeRoot()
}
