package types

import "github.com/sigmaprotocol/beacon-core/encoding/ssz"

// Checkpoint marks a potentially canonical epoch boundary. A Root of all
// zero bytes denotes "genesis" or "unknown" per the data model.
type Checkpoint struct {
	Epoch uint64
	Root  [32]byte
}

func (c *Checkpoint) Schema() *ssz.Schema {
	return ssz.ContainerSchema(
		ssz.Field{Name: "epoch", Schema: ssz.BasicSchema(8)},
		ssz.Field{Name: "root", Schema: ssz.BasicSchema(32)},
	)
}

func (c *Checkpoint) MarshalSSZ() ([]byte, error) {
	return ssz.MarshalContainer([]ssz.FieldPart{
		{Fixed: ssz.MarshalUint64(c.Epoch)},
		{Fixed: c.Root[:]},
	})
}

func (c *Checkpoint) UnmarshalSSZ(buf []byte) error {
	fields, err := ssz.UnmarshalContainer(buf, []int{8, 32})
	if err != nil {
		return err
	}
	epoch, err := ssz.UnmarshalUint64(fields[0])
	if err != nil {
		return err
	}
	c.Epoch = epoch
	copy(c.Root[:], fields[1])
	return nil
}

func (c *Checkpoint) HashTreeRoot() ssz.Root {
	var rootChunk ssz.Root
	copy(rootChunk[:], c.Root[:])
	return ssz.MerkleizeContainer([]ssz.Root{
		ssz.ChunksFromBytes(ssz.MarshalUint64(c.Epoch))[0],
		rootChunk,
	})
}

// Equal compares two checkpoints by value.
func (c *Checkpoint) Equal(o *Checkpoint) bool {
	if c == nil || o == nil {
		return c == o
	}
	return c.Epoch == o.Epoch && c.Root == o.Root
}
