package types

import "github.com/sigmaprotocol/beacon-core/encoding/ssz"

// ProposerSlashing evidences two distinct headers signed by the same
// proposer for the same slot.
type ProposerSlashing struct {
	Header1 *SignedBeaconBlockHeader
	Header2 *SignedBeaconBlockHeader
}

func (p *ProposerSlashing) MarshalSSZ() ([]byte, error) {
	h1, err := p.Header1.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	h2, err := p.Header2.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	return ssz.MarshalContainer([]ssz.FieldPart{
		{Fixed: h1},
		{Fixed: h2},
	})
}

func (p *ProposerSlashing) UnmarshalSSZ(buf []byte) error {
	fields, err := ssz.UnmarshalContainer(buf, []int{208, 208})
	if err != nil {
		return err
	}
	p.Header1 = &SignedBeaconBlockHeader{}
	if err := p.Header1.UnmarshalSSZ(fields[0]); err != nil {
		return err
	}
	p.Header2 = &SignedBeaconBlockHeader{}
	return p.Header2.UnmarshalSSZ(fields[1])
}

func (p *ProposerSlashing) HashTreeRoot() ssz.Root {
	return ssz.MerkleizeContainer([]ssz.Root{p.Header1.HashTreeRoot(), p.Header2.HashTreeRoot()})
}

// AttesterSlashing evidences a double-vote or surround-vote between two
// indexed attestations.
type AttesterSlashing struct {
	Attestation1 *IndexedAttestation
	Attestation2 *IndexedAttestation
}

func (a *AttesterSlashing) MarshalSSZ() ([]byte, error) {
	a1, err := a.Attestation1.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	a2, err := a.Attestation2.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	return ssz.MarshalContainer([]ssz.FieldPart{
		{Var: a1},
		{Var: a2},
	})
}

func (a *AttesterSlashing) UnmarshalSSZ(buf []byte) error {
	fields, err := ssz.UnmarshalContainer(buf, []int{-1, -1})
	if err != nil {
		return err
	}
	a.Attestation1 = &IndexedAttestation{}
	if err := a.Attestation1.UnmarshalSSZ(fields[0]); err != nil {
		return err
	}
	a.Attestation2 = &IndexedAttestation{}
	return a.Attestation2.UnmarshalSSZ(fields[1])
}

func (a *AttesterSlashing) HashTreeRoot() ssz.Root {
	return ssz.MerkleizeContainer([]ssz.Root{a.Attestation1.HashTreeRoot(), a.Attestation2.HashTreeRoot()})
}
