package types

import "github.com/sigmaprotocol/beacon-core/encoding/ssz"

// VoluntaryExit is a validator's request to leave the active set,
// effective no earlier than Epoch.
type VoluntaryExit struct {
	Epoch          uint64
	ValidatorIndex uint64
}

func (v *VoluntaryExit) fieldRoots() []ssz.Root {
	return []ssz.Root{
		ssz.ChunksFromBytes(ssz.MarshalUint64(v.Epoch))[0],
		ssz.ChunksFromBytes(ssz.MarshalUint64(v.ValidatorIndex))[0],
	}
}

func (v *VoluntaryExit) MarshalSSZ() ([]byte, error) {
	return ssz.MarshalContainer([]ssz.FieldPart{
		{Fixed: ssz.MarshalUint64(v.Epoch)},
		{Fixed: ssz.MarshalUint64(v.ValidatorIndex)},
	})
}

func (v *VoluntaryExit) UnmarshalSSZ(buf []byte) error {
	fields, err := ssz.UnmarshalContainer(buf, []int{8, 8})
	if err != nil {
		return err
	}
	var err2 error
	if v.Epoch, err2 = ssz.UnmarshalUint64(fields[0]); err2 != nil {
		return err2
	}
	v.ValidatorIndex, err2 = ssz.UnmarshalUint64(fields[1])
	return err2
}

func (v *VoluntaryExit) HashTreeRoot() ssz.Root {
	return ssz.MerkleizeContainer(v.fieldRoots())
}

// SignedVoluntaryExit pairs the exit request with the validator's
// signature over its hash-tree-root, DOMAIN_VOLUNTARY_EXIT.
type SignedVoluntaryExit struct {
	Message   *VoluntaryExit
	Signature [96]byte
}

func (s *SignedVoluntaryExit) MarshalSSZ() ([]byte, error) {
	msgBuf, err := s.Message.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	return ssz.MarshalContainer([]ssz.FieldPart{
		{Fixed: msgBuf},
		{Fixed: s.Signature[:]},
	})
}

func (s *SignedVoluntaryExit) UnmarshalSSZ(buf []byte) error {
	fields, err := ssz.UnmarshalContainer(buf, []int{16, 96})
	if err != nil {
		return err
	}
	s.Message = &VoluntaryExit{}
	if err := s.Message.UnmarshalSSZ(fields[0]); err != nil {
		return err
	}
	copy(s.Signature[:], fields[1])
	return nil
}

func (s *SignedVoluntaryExit) HashTreeRoot() ssz.Root {
	sigChunks := ssz.ChunksFromBytes(s.Signature[:])
	return ssz.MerkleizeContainer([]ssz.Root{
		s.Message.HashTreeRoot(),
		ssz.Merkleize(sigChunks, uint64(len(sigChunks))),
	})
}
