package types

import "github.com/sigmaprotocol/beacon-core/encoding/ssz"

// Validator is one entry in the beacon state's append-only registry.
// Invariant: ActivationEligibilityEpoch <= ActivationEpoch <= ExitEpoch <=
// WithdrawableEpoch, with unset epochs defaulting to FarFutureEpoch.
type Validator struct {
	Pubkey                     [48]byte
	WithdrawalCredentials      [32]byte
	EffectiveBalance           uint64
	Slashed                    bool
	ActivationEligibilityEpoch uint64
	ActivationEpoch            uint64
	ExitEpoch                  uint64
	WithdrawableEpoch          uint64
}

func (v *Validator) Schema() *ssz.Schema {
	return ssz.ContainerSchema(
		ssz.Field{Name: "pubkey", Schema: ssz.BasicSchema(48)},
		ssz.Field{Name: "withdrawal_credentials", Schema: ssz.BasicSchema(32)},
		ssz.Field{Name: "effective_balance", Schema: ssz.BasicSchema(8)},
		ssz.Field{Name: "slashed", Schema: ssz.BasicSchema(1)},
		ssz.Field{Name: "activation_eligibility_epoch", Schema: ssz.BasicSchema(8)},
		ssz.Field{Name: "activation_epoch", Schema: ssz.BasicSchema(8)},
		ssz.Field{Name: "exit_epoch", Schema: ssz.BasicSchema(8)},
		ssz.Field{Name: "withdrawable_epoch", Schema: ssz.BasicSchema(8)},
	)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func (v *Validator) MarshalSSZ() ([]byte, error) {
	return ssz.MarshalContainer([]ssz.FieldPart{
		{Fixed: v.Pubkey[:]},
		{Fixed: v.WithdrawalCredentials[:]},
		{Fixed: ssz.MarshalUint64(v.EffectiveBalance)},
		{Fixed: []byte{boolByte(v.Slashed)}},
		{Fixed: ssz.MarshalUint64(v.ActivationEligibilityEpoch)},
		{Fixed: ssz.MarshalUint64(v.ActivationEpoch)},
		{Fixed: ssz.MarshalUint64(v.ExitEpoch)},
		{Fixed: ssz.MarshalUint64(v.WithdrawableEpoch)},
	})
}

func (v *Validator) UnmarshalSSZ(buf []byte) error {
	fields, err := ssz.UnmarshalContainer(buf, []int{48, 32, 8, 1, 8, 8, 8, 8})
	if err != nil {
		return err
	}
	copy(v.Pubkey[:], fields[0])
	copy(v.WithdrawalCredentials[:], fields[1])
	if v.EffectiveBalance, err = ssz.UnmarshalUint64(fields[2]); err != nil {
		return err
	}
	v.Slashed = fields[3][0] != 0
	if v.ActivationEligibilityEpoch, err = ssz.UnmarshalUint64(fields[4]); err != nil {
		return err
	}
	if v.ActivationEpoch, err = ssz.UnmarshalUint64(fields[5]); err != nil {
		return err
	}
	if v.ExitEpoch, err = ssz.UnmarshalUint64(fields[6]); err != nil {
		return err
	}
	if v.WithdrawableEpoch, err = ssz.UnmarshalUint64(fields[7]); err != nil {
		return err
	}
	return nil
}

func (v *Validator) HashTreeRoot() ssz.Root {
	// Pubkey is 48 bytes, spanning 2 chunks; merkleize them as a small
	// byte vector rather than truncating to one chunk.
	pubkeyChunks := ssz.ChunksFromBytes(v.Pubkey[:])
	pubkeyRoot := ssz.Merkleize(pubkeyChunks, uint64(len(pubkeyChunks)))

	var withdrawalRoot ssz.Root
	copy(withdrawalRoot[:], v.WithdrawalCredentials[:])

	var slashedChunk ssz.Root
	slashedChunk[0] = boolByte(v.Slashed)

	return ssz.MerkleizeContainer([]ssz.Root{
		pubkeyRoot,
		withdrawalRoot,
		ssz.ChunksFromBytes(ssz.MarshalUint64(v.EffectiveBalance))[0],
		slashedChunk,
		ssz.ChunksFromBytes(ssz.MarshalUint64(v.ActivationEligibilityEpoch))[0],
		ssz.ChunksFromBytes(ssz.MarshalUint64(v.ActivationEpoch))[0],
		ssz.ChunksFromBytes(ssz.MarshalUint64(v.ExitEpoch))[0],
		ssz.ChunksFromBytes(ssz.MarshalUint64(v.WithdrawableEpoch))[0],
	})
}

// IsActive reports whether the validator is active at the given epoch.
func (v *Validator) IsActive(epoch uint64) bool {
	return v.ActivationEpoch <= epoch && epoch < v.ExitEpoch
}

// IsSlashable reports whether the validator may still be slashed at the
// given epoch: not already slashed, and not yet past its withdrawable
// epoch.
func (v *Validator) IsSlashable(epoch uint64) bool {
	return !v.Slashed && v.ActivationEpoch <= epoch && epoch < v.WithdrawableEpoch
}

// Copy returns a value copy of the validator.
func (v *Validator) Copy() *Validator {
	cpy := *v
	return &cpy
}
