package types

import (
	"github.com/sigmaprotocol/beacon-core/config/params"
	"github.com/sigmaprotocol/beacon-core/encoding/ssz"
)

// DepositData is the leaf committed to the eth1 deposit contract's
// Merkle tree; Signature is the trailing field dropped to form the
// signing root that the deposit amount and credentials are signed over.
type DepositData struct {
	Pubkey                [48]byte
	WithdrawalCredentials [32]byte
	Amount                uint64
	Signature             [96]byte
}

func (d *DepositData) MarshalSSZ() ([]byte, error) {
	return ssz.MarshalContainer([]ssz.FieldPart{
		{Fixed: d.Pubkey[:]},
		{Fixed: d.WithdrawalCredentials[:]},
		{Fixed: ssz.MarshalUint64(d.Amount)},
		{Fixed: d.Signature[:]},
	})
}

func (d *DepositData) UnmarshalSSZ(buf []byte) error {
	fields, err := ssz.UnmarshalContainer(buf, []int{48, 32, 8, 96})
	if err != nil {
		return err
	}
	copy(d.Pubkey[:], fields[0])
	copy(d.WithdrawalCredentials[:], fields[1])
	if d.Amount, err = ssz.UnmarshalUint64(fields[2]); err != nil {
		return err
	}
	copy(d.Signature[:], fields[3])
	return nil
}

func (d *DepositData) fieldRoots() []ssz.Root {
	pubkeyChunks := ssz.ChunksFromBytes(d.Pubkey[:])
	var withdrawalRoot ssz.Root
	copy(withdrawalRoot[:], d.WithdrawalCredentials[:])
	sigChunks := ssz.ChunksFromBytes(d.Signature[:])
	return []ssz.Root{
		ssz.Merkleize(pubkeyChunks, uint64(len(pubkeyChunks))),
		withdrawalRoot,
		ssz.ChunksFromBytes(ssz.MarshalUint64(d.Amount))[0],
		ssz.Merkleize(sigChunks, uint64(len(sigChunks))),
	}
}

func (d *DepositData) HashTreeRoot() ssz.Root {
	return ssz.MerkleizeContainer(d.fieldRoots())
}

// SigningRoot is the tree-hash of DepositData with its trailing
// signature field removed, the message a deposit's BLS signature is
// computed over.
func (d *DepositData) SigningRoot() ssz.Root {
	return ssz.MerkleizeContainer(ssz.SigningRootFields(d.fieldRoots()))
}

// Deposit carries a DepositData leaf plus its Merkle proof against
// state.eth1_data.deposit_root at DEPOSIT_CONTRACT_TREE_DEPTH+1.
type Deposit struct {
	Proof [][32]byte
	Data  *DepositData
}

func (d *Deposit) proofDepth() int {
	return int(params.BeaconConfig().DepositContractTreeDepth) + 1
}

func (d *Deposit) MarshalSSZ() ([]byte, error) {
	parts := make([]ssz.FieldPart, 0, d.proofDepth()+1)
	for _, p := range d.Proof {
		parts = append(parts, ssz.FieldPart{Fixed: p[:]})
	}
	dataBuf, err := d.Data.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	parts = append(parts, ssz.FieldPart{Fixed: dataBuf})
	return ssz.MarshalContainer(parts)
}

func (d *Deposit) UnmarshalSSZ(buf []byte) error {
	depth := d.proofDepth()
	sizes := make([]int, depth+1)
	for i := 0; i < depth; i++ {
		sizes[i] = 32
	}
	sizes[depth] = 48 + 32 + 8 + 96
	fields, err := ssz.UnmarshalContainer(buf, sizes)
	if err != nil {
		return err
	}
	d.Proof = make([][32]byte, depth)
	for i := 0; i < depth; i++ {
		copy(d.Proof[i][:], fields[i])
	}
	d.Data = &DepositData{}
	return d.Data.UnmarshalSSZ(fields[depth])
}

func (d *Deposit) HashTreeRoot() ssz.Root {
	proofRoots := make([]ssz.Root, len(d.Proof))
	for i, p := range d.Proof {
		copy(proofRoots[i][:], p[:])
	}
	proofRoot := ssz.MerkleizeVector(proofRoots, uint64(len(proofRoots)))
	return ssz.MerkleizeContainer([]ssz.Root{proofRoot, d.Data.HashTreeRoot()})
}
