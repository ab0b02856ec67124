package types

import "github.com/sigmaprotocol/beacon-core/encoding/ssz"

// BeaconBlockHeader is the lightweight form of a block retained in
// state.latest_block_header: everything but the body, which is
// represented by its own root.
type BeaconBlockHeader struct {
	Slot          uint64
	ProposerIndex uint64
	ParentRoot    [32]byte
	StateRoot     [32]byte
	BodyRoot      [32]byte
}

func (h *BeaconBlockHeader) MarshalSSZ() ([]byte, error) {
	return ssz.MarshalContainer([]ssz.FieldPart{
		{Fixed: ssz.MarshalUint64(h.Slot)},
		{Fixed: ssz.MarshalUint64(h.ProposerIndex)},
		{Fixed: h.ParentRoot[:]},
		{Fixed: h.StateRoot[:]},
		{Fixed: h.BodyRoot[:]},
	})
}

func (h *BeaconBlockHeader) UnmarshalSSZ(buf []byte) error {
	fields, err := ssz.UnmarshalContainer(buf, []int{8, 8, 32, 32, 32})
	if err != nil {
		return err
	}
	if h.Slot, err = ssz.UnmarshalUint64(fields[0]); err != nil {
		return err
	}
	if h.ProposerIndex, err = ssz.UnmarshalUint64(fields[1]); err != nil {
		return err
	}
	copy(h.ParentRoot[:], fields[2])
	copy(h.StateRoot[:], fields[3])
	copy(h.BodyRoot[:], fields[4])
	return nil
}

func (h *BeaconBlockHeader) HashTreeRoot() ssz.Root {
	var parentChunk, stateChunk, bodyChunk ssz.Root
	copy(parentChunk[:], h.ParentRoot[:])
	copy(stateChunk[:], h.StateRoot[:])
	copy(bodyChunk[:], h.BodyRoot[:])
	return ssz.MerkleizeContainer([]ssz.Root{
		ssz.ChunksFromBytes(ssz.MarshalUint64(h.Slot))[0],
		ssz.ChunksFromBytes(ssz.MarshalUint64(h.ProposerIndex))[0],
		parentChunk,
		stateChunk,
		bodyChunk,
	})
}

// Copy returns a value copy.
func (h *BeaconBlockHeader) Copy() *BeaconBlockHeader {
	cpy := *h
	return &cpy
}

// SignedBeaconBlockHeader pairs a header with the proposer's signature
// over its hash-tree-root (the header itself carries no signature
// field, so there is nothing to drop for a "signing root": the signed
// message already is the header's full tree-hash).
type SignedBeaconBlockHeader struct {
	Message   *BeaconBlockHeader
	Signature [96]byte
}

func (s *SignedBeaconBlockHeader) MarshalSSZ() ([]byte, error) {
	msgBuf, err := s.Message.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	return ssz.MarshalContainer([]ssz.FieldPart{
		{Fixed: msgBuf},
		{Fixed: s.Signature[:]},
	})
}

func (s *SignedBeaconBlockHeader) UnmarshalSSZ(buf []byte) error {
	fields, err := ssz.UnmarshalContainer(buf, []int{112, 96})
	if err != nil {
		return err
	}
	s.Message = &BeaconBlockHeader{}
	if err := s.Message.UnmarshalSSZ(fields[0]); err != nil {
		return err
	}
	copy(s.Signature[:], fields[1])
	return nil
}

func (s *SignedBeaconBlockHeader) HashTreeRoot() ssz.Root {
	sigChunks := ssz.ChunksFromBytes(s.Signature[:])
	return ssz.MerkleizeContainer([]ssz.Root{
		s.Message.HashTreeRoot(),
		ssz.Merkleize(sigChunks, uint64(len(sigChunks))),
	})
}
