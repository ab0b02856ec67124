package types

import "github.com/sigmaprotocol/beacon-core/encoding/ssz"

// Eth1Data is a snapshot of the external deposit contract as voted on by
// block proposers.
type Eth1Data struct {
	DepositRoot  [32]byte
	DepositCount uint64
	BlockHash    [32]byte
}

func (e *Eth1Data) MarshalSSZ() ([]byte, error) {
	return ssz.MarshalContainer([]ssz.FieldPart{
		{Fixed: e.DepositRoot[:]},
		{Fixed: ssz.MarshalUint64(e.DepositCount)},
		{Fixed: e.BlockHash[:]},
	})
}

func (e *Eth1Data) UnmarshalSSZ(buf []byte) error {
	fields, err := ssz.UnmarshalContainer(buf, []int{32, 8, 32})
	if err != nil {
		return err
	}
	copy(e.DepositRoot[:], fields[0])
	if e.DepositCount, err = ssz.UnmarshalUint64(fields[1]); err != nil {
		return err
	}
	copy(e.BlockHash[:], fields[2])
	return nil
}

func (e *Eth1Data) HashTreeRoot() ssz.Root {
	var depositRootChunk, blockHashChunk ssz.Root
	copy(depositRootChunk[:], e.DepositRoot[:])
	copy(blockHashChunk[:], e.BlockHash[:])
	return ssz.MerkleizeContainer([]ssz.Root{
		depositRootChunk,
		ssz.ChunksFromBytes(ssz.MarshalUint64(e.DepositCount))[0],
		blockHashChunk,
	})
}

// Equal compares two eth1 data votes by value.
func (e *Eth1Data) Equal(o *Eth1Data) bool {
	if e == nil || o == nil {
		return e == o
	}
	return e.DepositRoot == o.DepositRoot && e.DepositCount == o.DepositCount && e.BlockHash == o.BlockHash
}

// Copy returns a value copy.
func (e *Eth1Data) Copy() *Eth1Data {
	cpy := *e
	return &cpy
}
