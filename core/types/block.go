package types

import (
	"github.com/sigmaprotocol/beacon-core/config/params"
	"github.com/sigmaprotocol/beacon-core/encoding/ssz"
)

// BeaconBlockBody holds a slot's operations: the RANDAO reveal, one eth1
// vote, and bounded lists of each slashing/attestation/deposit/exit kind.
type BeaconBlockBody struct {
	RandaoReveal      [96]byte
	Eth1Data          *Eth1Data
	ProposerSlashings []*ProposerSlashing
	AttesterSlashings []*AttesterSlashing
	Attestations      []*Attestation
	Deposits          []*Deposit
	VoluntaryExits    []*SignedVoluntaryExit
}

func marshalList(items int, marshal func(i int) ([]byte, error)) ([]byte, error) {
	var out []byte
	for i := 0; i < items; i++ {
		b, err := marshal(i)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

func (b *BeaconBlockBody) MarshalSSZ() ([]byte, error) {
	eth1Buf, err := b.Eth1Data.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	proposerSlashings, err := marshalList(len(b.ProposerSlashings), func(i int) ([]byte, error) { return b.ProposerSlashings[i].MarshalSSZ() })
	if err != nil {
		return nil, err
	}
	attesterSlashingsBuf, _, err := marshalVariableList(len(b.AttesterSlashings), func(i int) ([]byte, error) { return b.AttesterSlashings[i].MarshalSSZ() })
	if err != nil {
		return nil, err
	}
	attestationsBuf, _, err := marshalVariableList(len(b.Attestations), func(i int) ([]byte, error) { return b.Attestations[i].MarshalSSZ() })
	if err != nil {
		return nil, err
	}
	depositsBuf, err := marshalList(len(b.Deposits), func(i int) ([]byte, error) { return b.Deposits[i].MarshalSSZ() })
	if err != nil {
		return nil, err
	}
	exitsBuf, err := marshalList(len(b.VoluntaryExits), func(i int) ([]byte, error) { return b.VoluntaryExits[i].MarshalSSZ() })
	if err != nil {
		return nil, err
	}
	return ssz.MarshalContainer([]ssz.FieldPart{
		{Fixed: b.RandaoReveal[:]},
		{Fixed: eth1Buf},
		{Var: proposerSlashings},
		{Var: attesterSlashingsBuf},
		{Var: attestationsBuf},
		{Var: depositsBuf},
		{Var: exitsBuf},
	})
}

func (b *BeaconBlockBody) UnmarshalSSZ(buf []byte) error {
	fields, err := ssz.UnmarshalContainer(buf, []int{96, 72, -1, -1, -1, -1, -1})
	if err != nil {
		return err
	}
	copy(b.RandaoReveal[:], fields[0])
	b.Eth1Data = &Eth1Data{}
	if err := b.Eth1Data.UnmarshalSSZ(fields[1]); err != nil {
		return err
	}

	const proposerSlashingWidth = 208 + 208
	proposerCount := len(fields[2]) / proposerSlashingWidth
	b.ProposerSlashings = make([]*ProposerSlashing, proposerCount)
	for i := 0; i < proposerCount; i++ {
		p := &ProposerSlashing{}
		if err := p.UnmarshalSSZ(fields[2][i*proposerSlashingWidth : (i+1)*proposerSlashingWidth]); err != nil {
			return err
		}
		b.ProposerSlashings[i] = p
	}

	attesterChunks, err := unmarshalOuterList(fields[3])
	if err != nil {
		return err
	}
	b.AttesterSlashings = make([]*AttesterSlashing, len(attesterChunks))
	for i, chunk := range attesterChunks {
		a := &AttesterSlashing{}
		if err := a.UnmarshalSSZ(chunk); err != nil {
			return err
		}
		b.AttesterSlashings[i] = a
	}

	attestationChunks, err := unmarshalOuterList(fields[4])
	if err != nil {
		return err
	}
	b.Attestations = make([]*Attestation, len(attestationChunks))
	for i, chunk := range attestationChunks {
		a := &Attestation{}
		if err := a.UnmarshalSSZ(chunk); err != nil {
			return err
		}
		b.Attestations[i] = a
	}

	depositWidth := int(params.BeaconConfig().DepositContractTreeDepth+1)*32 + 48 + 32 + 8 + 96
	depositCount := len(fields[5]) / depositWidth
	b.Deposits = make([]*Deposit, depositCount)
	for i := 0; i < depositCount; i++ {
		d := &Deposit{}
		if err := d.UnmarshalSSZ(fields[5][i*depositWidth : (i+1)*depositWidth]); err != nil {
			return err
		}
		b.Deposits[i] = d
	}

	const exitWidth = 16 + 96
	exitCount := len(fields[6]) / exitWidth
	b.VoluntaryExits = make([]*SignedVoluntaryExit, exitCount)
	for i := 0; i < exitCount; i++ {
		e := &SignedVoluntaryExit{}
		if err := e.UnmarshalSSZ(fields[6][i*exitWidth : (i+1)*exitWidth]); err != nil {
			return err
		}
		b.VoluntaryExits[i] = e
	}
	return nil
}

// unmarshalOuterList splits the heap region of a list-of-variable-size
// elements back into one slice per element, using the inner offset
// table each element's MarshalSSZ call prepended (via marshalVariableList).
func unmarshalOuterList(buf []byte) ([][]byte, error) {
	if len(buf) == 0 {
		return nil, nil
	}
	first, err := ssz.UnmarshalUint32(buf[0:4])
	if err != nil {
		return nil, err
	}
	n := int(first) / 4
	return unmarshalVariableList(buf, n)
}

// marshalVariableList concatenates SSZ-encoded variable-size elements
// with an inner offset table, as required when the list's element type
// is itself variable-size (attestations, attester slashings).
func marshalVariableList(n int, marshal func(i int) ([]byte, error)) ([]byte, []uint32, error) {
	encoded := make([][]byte, n)
	for i := 0; i < n; i++ {
		b, err := marshal(i)
		if err != nil {
			return nil, nil, err
		}
		encoded[i] = b
	}
	offsetTableLen := n * 4
	offsets := make([]uint32, n)
	pos := uint32(offsetTableLen)
	for i, b := range encoded {
		offsets[i] = pos
		pos += uint32(len(b))
	}
	out := make([]byte, 0, pos)
	for _, off := range offsets {
		out = append(out, ssz.MarshalUint32(off)...)
	}
	for _, b := range encoded {
		out = append(out, b...)
	}
	return out, offsets, nil
}

func unmarshalVariableList(buf []byte, n int) ([][]byte, error) {
	if n == 0 {
		return nil, nil
	}
	offsets := make([]int, n)
	for i := 0; i < n; i++ {
		off, err := ssz.UnmarshalUint32(buf[i*4 : i*4+4])
		if err != nil {
			return nil, err
		}
		offsets[i] = int(off)
	}
	out := make([][]byte, n)
	for i := 0; i < n; i++ {
		end := len(buf)
		if i+1 < n {
			end = offsets[i+1]
		}
		out[i] = buf[offsets[i]:end]
	}
	return out, nil
}

func (b *BeaconBlockBody) HashTreeRoot() ssz.Root {
	cfg := params.BeaconConfig()

	proposerRoots := make([]ssz.Root, len(b.ProposerSlashings))
	for i, p := range b.ProposerSlashings {
		proposerRoots[i] = p.HashTreeRoot()
	}
	attesterRoots := make([]ssz.Root, len(b.AttesterSlashings))
	for i, a := range b.AttesterSlashings {
		attesterRoots[i] = a.HashTreeRoot()
	}
	attestationRoots := make([]ssz.Root, len(b.Attestations))
	for i, a := range b.Attestations {
		attestationRoots[i] = a.HashTreeRoot()
	}
	depositRoots := make([]ssz.Root, len(b.Deposits))
	for i, d := range b.Deposits {
		depositRoots[i] = d.HashTreeRoot()
	}
	exitRoots := make([]ssz.Root, len(b.VoluntaryExits))
	for i, e := range b.VoluntaryExits {
		exitRoots[i] = e.HashTreeRoot()
	}

	randaoChunks := ssz.ChunksFromBytes(b.RandaoReveal[:])

	return ssz.MerkleizeContainer([]ssz.Root{
		ssz.Merkleize(randaoChunks, uint64(len(randaoChunks))),
		b.Eth1Data.HashTreeRoot(),
		ssz.MerkleizeList(proposerRoots, cfg.MaxProposerSlashings, uint64(len(b.ProposerSlashings))),
		ssz.MerkleizeList(attesterRoots, cfg.MaxAttesterSlashings, uint64(len(b.AttesterSlashings))),
		ssz.MerkleizeList(attestationRoots, cfg.MaxAttestations, uint64(len(b.Attestations))),
		ssz.MerkleizeList(depositRoots, cfg.MaxDeposits, uint64(len(b.Deposits))),
		ssz.MerkleizeList(exitRoots, cfg.MaxVoluntaryExits, uint64(len(b.VoluntaryExits))),
	})
}

// BeaconBlock is a proposal for one slot.
type BeaconBlock struct {
	Slot          uint64
	ProposerIndex uint64
	ParentRoot    [32]byte
	StateRoot     [32]byte
	Body          *BeaconBlockBody
}

func (b *BeaconBlock) HashTreeRoot() ssz.Root {
	var parentChunk, stateChunk ssz.Root
	copy(parentChunk[:], b.ParentRoot[:])
	copy(stateChunk[:], b.StateRoot[:])
	return ssz.MerkleizeContainer([]ssz.Root{
		ssz.ChunksFromBytes(ssz.MarshalUint64(b.Slot))[0],
		ssz.ChunksFromBytes(ssz.MarshalUint64(b.ProposerIndex))[0],
		parentChunk,
		stateChunk,
		b.Body.HashTreeRoot(),
	})
}

func (b *BeaconBlock) MarshalSSZ() ([]byte, error) {
	bodyBuf, err := b.Body.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	return ssz.MarshalContainer([]ssz.FieldPart{
		{Fixed: ssz.MarshalUint64(b.Slot)},
		{Fixed: ssz.MarshalUint64(b.ProposerIndex)},
		{Fixed: b.ParentRoot[:]},
		{Fixed: b.StateRoot[:]},
		{Var: bodyBuf},
	})
}

func (b *BeaconBlock) UnmarshalSSZ(buf []byte) error {
	fields, err := ssz.UnmarshalContainer(buf, []int{8, 8, 32, 32, -1})
	if err != nil {
		return err
	}
	if b.Slot, err = ssz.UnmarshalUint64(fields[0]); err != nil {
		return err
	}
	if b.ProposerIndex, err = ssz.UnmarshalUint64(fields[1]); err != nil {
		return err
	}
	copy(b.ParentRoot[:], fields[2])
	copy(b.StateRoot[:], fields[3])
	b.Body = &BeaconBlockBody{}
	return b.Body.UnmarshalSSZ(fields[4])
}

// Header returns the lightweight header form of the block, with the
// body collapsed to its root and the block's state root copied as is.
func (b *BeaconBlock) Header() *BeaconBlockHeader {
	return &BeaconBlockHeader{
		Slot:          b.Slot,
		ProposerIndex: b.ProposerIndex,
		ParentRoot:    b.ParentRoot,
		StateRoot:     b.StateRoot,
		BodyRoot:      b.Body.HashTreeRoot(),
	}
}

// SignedBeaconBlock pairs a block with the proposer's signature.
type SignedBeaconBlock struct {
	Block     *BeaconBlock
	Signature [96]byte
}

func (s *SignedBeaconBlock) MarshalSSZ() ([]byte, error) {
	blockBuf, err := s.Block.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	return ssz.MarshalContainer([]ssz.FieldPart{
		{Var: blockBuf},
		{Fixed: s.Signature[:]},
	})
}

func (s *SignedBeaconBlock) UnmarshalSSZ(buf []byte) error {
	fields, err := ssz.UnmarshalContainer(buf, []int{-1, 96})
	if err != nil {
		return err
	}
	s.Block = &BeaconBlock{}
	if err := s.Block.UnmarshalSSZ(fields[0]); err != nil {
		return err
	}
	copy(s.Signature[:], fields[1])
	return nil
}

func (s *SignedBeaconBlock) HashTreeRoot() ssz.Root {
	sigChunks := ssz.ChunksFromBytes(s.Signature[:])
	return ssz.MerkleizeContainer([]ssz.Root{
		s.Block.HashTreeRoot(),
		ssz.Merkleize(sigChunks, uint64(len(sigChunks))),
	})
}
