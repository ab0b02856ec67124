package types

import (
	"github.com/prysmaticlabs/go-bitfield"
	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/config/params"
	"github.com/sigmaprotocol/beacon-core/core/errkind"
	"github.com/sigmaprotocol/beacon-core/encoding/ssz"
)

// attestationDataWidth is AttestationData's fixed encoded size: slot,
// committee index, block root, and two 40-byte checkpoints.
const attestationDataWidth = 8 + 8 + 32 + 40 + 40

// Attestation is a validator committee's aggregated signed vote.
type Attestation struct {
	AggregationBits bitfield.Bitlist
	Data            *AttestationData
	Signature       [96]byte
}

func (a *Attestation) maxValidatorsPerCommittee() uint64 {
	return params.BeaconConfig().MaxValidatorsPerCommittee
}

func (a *Attestation) MarshalSSZ() ([]byte, error) {
	dataBuf, err := a.Data.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	// The raw bitlist bytes, delimiter bit included — Bytes() strips the
	// delimiter and with it the recoverable length.
	return ssz.MarshalContainer([]ssz.FieldPart{
		{Var: a.AggregationBits},
		{Fixed: dataBuf},
		{Fixed: a.Signature[:]},
	})
}

func (a *Attestation) UnmarshalSSZ(buf []byte) error {
	fields, err := ssz.UnmarshalContainer(buf, []int{-1, attestationDataWidth, 96})
	if err != nil {
		return err
	}
	a.AggregationBits = bitfield.Bitlist(fields[0])
	if err := ssz.ValidateListLength(a.AggregationBits.Len(), a.maxValidatorsPerCommittee()); err != nil {
		return err
	}
	a.Data = &AttestationData{}
	if err := a.Data.UnmarshalSSZ(fields[1]); err != nil {
		return err
	}
	copy(a.Signature[:], fields[2])
	return nil
}

func (a *Attestation) HashTreeRoot() ssz.Root {
	var sigChunks = ssz.ChunksFromBytes(a.Signature[:])
	sigRoot := ssz.Merkleize(sigChunks, uint64(len(sigChunks)))
	return ssz.MerkleizeContainer([]ssz.Root{
		ssz.BitlistHashTreeRoot(a.AggregationBits, a.maxValidatorsPerCommittee()),
		a.Data.HashTreeRoot(),
		sigRoot,
	})
}

// IndexedAttestation replaces the aggregation bitfield with an explicit,
// ascending-sorted list of attesting validator indices, as produced once
// committee membership is known.
type IndexedAttestation struct {
	AttestingIndices []uint64
	Data             *AttestationData
	Signature        [96]byte
}

func (a *IndexedAttestation) MarshalSSZ() ([]byte, error) {
	dataBuf, err := a.Data.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	indicesBuf := make([]byte, 0, len(a.AttestingIndices)*8)
	for _, idx := range a.AttestingIndices {
		indicesBuf = append(indicesBuf, ssz.MarshalUint64(idx)...)
	}
	return ssz.MarshalContainer([]ssz.FieldPart{
		{Var: indicesBuf},
		{Fixed: dataBuf},
		{Fixed: a.Signature[:]},
	})
}

func (a *IndexedAttestation) UnmarshalSSZ(buf []byte) error {
	fields, err := ssz.UnmarshalContainer(buf, []int{-1, attestationDataWidth, 96})
	if err != nil {
		return err
	}
	if len(fields[0])%8 != 0 {
		return errors.Wrap(errkind.ErrBadEncoding, "indexed attestation indices not a multiple of 8 bytes")
	}
	if err := ssz.ValidateListLength(uint64(len(fields[0])/8), params.BeaconConfig().MaxValidatorsPerCommittee); err != nil {
		return err
	}
	a.AttestingIndices = make([]uint64, len(fields[0])/8)
	for i := range a.AttestingIndices {
		v, err := ssz.UnmarshalUint64(fields[0][i*8 : i*8+8])
		if err != nil {
			return err
		}
		a.AttestingIndices[i] = v
	}
	a.Data = &AttestationData{}
	if err := a.Data.UnmarshalSSZ(fields[1]); err != nil {
		return err
	}
	copy(a.Signature[:], fields[2])
	return nil
}

func (a *IndexedAttestation) HashTreeRoot() ssz.Root {
	limit := params.BeaconConfig().MaxValidatorsPerCommittee
	indicesRoot := ssz.MixInLength(ssz.Merkleize(ssz.PackUint64s(a.AttestingIndices), (limit*8+31)/32), uint64(len(a.AttestingIndices)))
	sigChunks := ssz.ChunksFromBytes(a.Signature[:])
	sigRoot := ssz.Merkleize(sigChunks, uint64(len(sigChunks)))
	return ssz.MerkleizeContainer([]ssz.Root{
		indicesRoot,
		a.Data.HashTreeRoot(),
		sigRoot,
	})
}

// PendingAttestation is the recorded form of an attestation once
// included in a block, kept in the state's per-epoch accumulators.
type PendingAttestation struct {
	AggregationBits bitfield.Bitlist
	Data            *AttestationData
	InclusionDelay  uint64
	ProposerIndex   uint64
}

func (p *PendingAttestation) MarshalSSZ() ([]byte, error) {
	dataBuf, err := p.Data.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	return ssz.MarshalContainer([]ssz.FieldPart{
		{Var: p.AggregationBits},
		{Fixed: dataBuf},
		{Fixed: ssz.MarshalUint64(p.InclusionDelay)},
		{Fixed: ssz.MarshalUint64(p.ProposerIndex)},
	})
}

func (p *PendingAttestation) UnmarshalSSZ(buf []byte) error {
	fields, err := ssz.UnmarshalContainer(buf, []int{-1, attestationDataWidth, 8, 8})
	if err != nil {
		return err
	}
	p.AggregationBits = bitfield.Bitlist(fields[0])
	p.Data = &AttestationData{}
	if err := p.Data.UnmarshalSSZ(fields[1]); err != nil {
		return err
	}
	if p.InclusionDelay, err = ssz.UnmarshalUint64(fields[2]); err != nil {
		return err
	}
	p.ProposerIndex, err = ssz.UnmarshalUint64(fields[3])
	return err
}

func (p *PendingAttestation) HashTreeRoot() ssz.Root {
	return ssz.MerkleizeContainer([]ssz.Root{
		ssz.BitlistHashTreeRoot(p.AggregationBits, params.BeaconConfig().MaxValidatorsPerCommittee),
		p.Data.HashTreeRoot(),
		ssz.ChunksFromBytes(ssz.MarshalUint64(p.InclusionDelay))[0],
		ssz.ChunksFromBytes(ssz.MarshalUint64(p.ProposerIndex))[0],
	})
}
