package types

import (
	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/config/params"
	"github.com/sigmaprotocol/beacon-core/core/errkind"
	"github.com/sigmaprotocol/beacon-core/encoding/ssz"
)

// BeaconState is the central aggregate: everything the state transition
// reads or mutates for a given slot. Its large homogeneous fields
// (validator registry, balances, RANDAO mixes, slashings, the two
// pending-attestation accumulators) are backed by an ssz.CachedList so
// that a single mutated index pays only the O(log N) recompute path
// named in the codec's incremental-hash contract, not a full rehash of
// the field on every HashTreeRoot call.
type BeaconState struct {
	GenesisTime uint64
	Slot        uint64
	Fork        *Fork

	LatestBlockHeader *BeaconBlockHeader

	// BlockRoots and StateRoots are SLOTS_PER_HISTORICAL_ROOT-length
	// rings indexed by slot mod length; callers append by overwriting
	// the ring slot, never by growing the slice.
	BlockRoots [][32]byte
	StateRoots [][32]byte

	HistoricalRoots [][32]byte

	Eth1Data      *Eth1Data
	Eth1DataVotes []*Eth1Data
	Eth1DepositIndex uint64

	Validators []*Validator
	Balances   []uint64

	RandaoMixes [][32]byte

	Slashings []uint64

	PreviousEpochAttestations []*PendingAttestation
	CurrentEpochAttestations  []*PendingAttestation

	JustificationBits           byte
	PreviousJustifiedCheckpoint *Checkpoint
	CurrentJustifiedCheckpoint  *Checkpoint
	FinalizedCheckpoint         *Checkpoint

	validatorCache *ssz.CachedList
	balanceCache   *ssz.CachedList
	randaoCache    *ssz.CachedList
	slashingCache  *ssz.CachedList
	prevAttCache   *ssz.CachedList
	currAttCache   *ssz.CachedList
}

// rebuildCaches constructs fresh incremental-hash caches from the
// current field values. Called once after deserialization or genesis
// construction; afterward, mutator methods keep the caches in step.
func (s *BeaconState) rebuildCaches() {
	cfg := params.BeaconConfig()

	validatorRoots := make([]ssz.Root, len(s.Validators))
	for i, v := range s.Validators {
		validatorRoots[i] = v.HashTreeRoot()
	}
	s.validatorCache = ssz.NewCachedList(validatorRoots, cfg.ValidatorRegistryLimit)

	balanceRoots := ssz.PackUint64s(s.Balances)
	s.balanceCache = ssz.NewCachedList(balanceRoots, (cfg.ValidatorRegistryLimit*8+31)/32)

	randaoRoots := make([]ssz.Root, len(s.RandaoMixes))
	for i, r := range s.RandaoMixes {
		copy(randaoRoots[i][:], r[:])
	}
	s.randaoCache = ssz.NewCachedList(randaoRoots, cfg.EpochsPerHistoricalVector)

	slashingRoots := ssz.PackUint64s(s.Slashings)
	s.slashingCache = ssz.NewCachedList(slashingRoots, (cfg.EpochsPerSlashingsVector*8+31)/32)

	prevRoots := make([]ssz.Root, len(s.PreviousEpochAttestations))
	for i, a := range s.PreviousEpochAttestations {
		prevRoots[i] = a.HashTreeRoot()
	}
	s.prevAttCache = ssz.NewCachedList(prevRoots, maxPendingAttestationsPerEpoch(cfg))

	currRoots := make([]ssz.Root, len(s.CurrentEpochAttestations))
	for i, a := range s.CurrentEpochAttestations {
		currRoots[i] = a.HashTreeRoot()
	}
	s.currAttCache = ssz.NewCachedList(currRoots, maxPendingAttestationsPerEpoch(cfg))
}

func maxPendingAttestationsPerEpoch(cfg *params.BeaconChainConfig) uint64 {
	return cfg.MaxAttestations * cfg.SlotsPerEpoch
}

// ensureCaches lazily builds the incremental-hash caches the first time
// they're needed, so a state produced by a raw struct literal (tests,
// genesis construction before caches exist) still hashes correctly.
func (s *BeaconState) ensureCaches() {
	if s.validatorCache == nil {
		s.rebuildCaches()
	}
}

// AppendValidator adds a newly-deposited validator to the registry and
// its starting balance, marking only the new trailing leaves dirty
// rather than forcing a full-registry rehash.
func (s *BeaconState) AppendValidator(v *Validator, balance uint64) {
	s.ensureCaches()
	idx := uint64(len(s.Validators))
	s.Validators = append(s.Validators, v)
	s.Balances = append(s.Balances, balance)
	s.validatorCache.SetElem(idx, v.HashTreeRoot())
	s.rebuildBalanceChunk(idx)
}

// SetValidator replaces validator i in place (effective-balance or
// epoch-field mutation during a state transition) and marks its single
// leaf dirty.
func (s *BeaconState) SetValidator(i uint64, v *Validator) {
	s.ensureCaches()
	s.Validators[i] = v
	s.validatorCache.SetElem(i, v.HashTreeRoot())
}

// SetBalance updates validator i's balance and marks the packed uint64
// chunk containing it dirty.
func (s *BeaconState) SetBalance(i uint64, balance uint64) {
	s.ensureCaches()
	s.Balances[i] = balance
	s.rebuildBalanceChunk(i)
}

// rebuildBalanceChunk recomputes the 4-balances-per-chunk packed leaf
// that index i falls in and marks it dirty; four adjacent balances
// share one 32-byte chunk under uint64 packing.
func (s *BeaconState) rebuildBalanceChunk(i uint64) {
	chunkIdx := i / 4
	base := chunkIdx * 4
	var chunk ssz.Root
	for j := uint64(0); j < 4 && base+j < uint64(len(s.Balances)); j++ {
		copy(chunk[j*8:j*8+8], ssz.MarshalUint64(s.Balances[base+j]))
	}
	s.balanceCache.SetElem(chunkIdx, chunk)
}

// SetRandaoMix overwrites the ring slot at epoch mod EPOCHS_PER_HISTORICAL_VECTOR.
func (s *BeaconState) SetRandaoMix(epochIndex uint64, mix [32]byte) {
	s.ensureCaches()
	s.RandaoMixes[epochIndex] = mix
	var chunk ssz.Root
	copy(chunk[:], mix[:])
	s.randaoCache.SetElem(epochIndex, chunk)
}

// SetSlashing overwrites the slashings ring slot at epoch mod EPOCHS_PER_SLASHINGS_VECTOR.
func (s *BeaconState) SetSlashing(epochIndex uint64, amount uint64) {
	s.ensureCaches()
	s.Slashings[epochIndex] = amount
	chunkIdx := epochIndex / 4
	base := chunkIdx * 4
	var chunk ssz.Root
	for j := uint64(0); j < 4 && base+j < uint64(len(s.Slashings)); j++ {
		copy(chunk[j*8:j*8+8], ssz.MarshalUint64(s.Slashings[base+j]))
	}
	s.slashingCache.SetElem(chunkIdx, chunk)
}

// AppendCurrentEpochAttestation records a newly-included attestation in
// the current-epoch accumulator.
func (s *BeaconState) AppendCurrentEpochAttestation(a *PendingAttestation) {
	s.ensureCaches()
	idx := uint64(len(s.CurrentEpochAttestations))
	s.CurrentEpochAttestations = append(s.CurrentEpochAttestations, a)
	s.currAttCache.SetElem(idx, a.HashTreeRoot())
}

// AppendPreviousEpochAttestation records a newly-included attestation
// targeting the previous epoch in the previous-epoch accumulator.
func (s *BeaconState) AppendPreviousEpochAttestation(a *PendingAttestation) {
	s.ensureCaches()
	idx := uint64(len(s.PreviousEpochAttestations))
	s.PreviousEpochAttestations = append(s.PreviousEpochAttestations, a)
	s.prevAttCache.SetElem(idx, a.HashTreeRoot())
}

// RotateEpochAttestations moves the current accumulator into the
// previous slot and clears current, as happens once per epoch
// transition; the current-epoch cache moves over with its list and the
// current accumulator gets a fresh, empty cache.
func (s *BeaconState) RotateEpochAttestations() {
	s.ensureCaches()
	s.PreviousEpochAttestations = s.CurrentEpochAttestations
	s.CurrentEpochAttestations = nil
	s.prevAttCache = s.currAttCache
	s.currAttCache = ssz.NewCachedList(nil, maxPendingAttestationsPerEpoch(params.BeaconConfig()))
}

// Copy returns a deep, independent state: every slice is duplicated and
// every incremental-hash cache is forked (see ssz.Cache.Fork), matching
// the "new state per step, structural sharing allowed internally"
// ownership rule. Mutating the copy never affects the original's cached
// roots or vice versa.
func (s *BeaconState) Copy() *BeaconState {
	s.ensureCaches()

	cpy := &BeaconState{
		GenesisTime:      s.GenesisTime,
		Slot:             s.Slot,
		Fork:             &Fork{PreviousVersion: s.Fork.PreviousVersion, CurrentVersion: s.Fork.CurrentVersion, Epoch: s.Fork.Epoch},
		LatestBlockHeader: s.LatestBlockHeader.Copy(),
		Eth1Data:         s.Eth1Data.Copy(),
		Eth1DepositIndex: s.Eth1DepositIndex,
		JustificationBits: s.JustificationBits,
	}
	cpy.BlockRoots = append([][32]byte(nil), s.BlockRoots...)
	cpy.StateRoots = append([][32]byte(nil), s.StateRoots...)
	cpy.HistoricalRoots = append([][32]byte(nil), s.HistoricalRoots...)
	cpy.Eth1DataVotes = append([]*Eth1Data(nil), s.Eth1DataVotes...)
	cpy.Validators = append([]*Validator(nil), s.Validators...)
	cpy.Balances = append([]uint64(nil), s.Balances...)
	cpy.RandaoMixes = append([][32]byte(nil), s.RandaoMixes...)
	cpy.Slashings = append([]uint64(nil), s.Slashings...)
	cpy.PreviousEpochAttestations = append([]*PendingAttestation(nil), s.PreviousEpochAttestations...)
	cpy.CurrentEpochAttestations = append([]*PendingAttestation(nil), s.CurrentEpochAttestations...)
	if s.PreviousJustifiedCheckpoint != nil {
		c := *s.PreviousJustifiedCheckpoint
		cpy.PreviousJustifiedCheckpoint = &c
	}
	if s.CurrentJustifiedCheckpoint != nil {
		c := *s.CurrentJustifiedCheckpoint
		cpy.CurrentJustifiedCheckpoint = &c
	}
	if s.FinalizedCheckpoint != nil {
		c := *s.FinalizedCheckpoint
		cpy.FinalizedCheckpoint = &c
	}

	cpy.validatorCache = s.validatorCache.Fork()
	cpy.balanceCache = s.balanceCache.Fork()
	cpy.randaoCache = s.randaoCache.Fork()
	cpy.slashingCache = s.slashingCache.Fork()
	cpy.prevAttCache = s.prevAttCache.Fork()
	cpy.currAttCache = s.currAttCache.Fork()
	return cpy
}

// HashTreeRoot merkleizes the state container. The six cached fields
// read their root from the incremental cache rather than rehashing
// their full contents; everything else is small enough to hash plainly.
func (s *BeaconState) HashTreeRoot() ssz.Root {
	s.ensureCaches()
	cfg := params.BeaconConfig()

	blockRootsRoot := ssz.MerkleizeVector(rootsToChunks(s.BlockRoots), cfg.SlotsPerHistoricalRoot)
	stateRootsRoot := ssz.MerkleizeVector(rootsToChunks(s.StateRoots), cfg.SlotsPerHistoricalRoot)
	historicalRootsRoot := ssz.MerkleizeList(rootsToChunks(s.HistoricalRoots), cfg.HistoricalRootsLimit, uint64(len(s.HistoricalRoots)))

	eth1VotesRoots := make([]ssz.Root, len(s.Eth1DataVotes))
	for i, v := range s.Eth1DataVotes {
		eth1VotesRoots[i] = v.HashTreeRoot()
	}
	eth1VotesRoot := ssz.MerkleizeList(eth1VotesRoots, cfg.EpochsPerEth1VotingPeriod, uint64(len(s.Eth1DataVotes)))

	var justificationChunk ssz.Root
	justificationChunk[0] = s.JustificationBits

	return ssz.MerkleizeContainer([]ssz.Root{
		ssz.ChunksFromBytes(ssz.MarshalUint64(s.GenesisTime))[0],
		ssz.ChunksFromBytes(ssz.MarshalUint64(s.Slot))[0],
		s.Fork.HashTreeRoot(),
		s.LatestBlockHeader.HashTreeRoot(),
		blockRootsRoot,
		stateRootsRoot,
		historicalRootsRoot,
		s.Eth1Data.HashTreeRoot(),
		eth1VotesRoot,
		ssz.ChunksFromBytes(ssz.MarshalUint64(s.Eth1DepositIndex))[0],
		s.validatorCache.Root(uint64(len(s.Validators))),
		s.balanceCache.Root(uint64(len(s.Balances))),
		s.randaoCache.VectorRoot(),
		s.slashingCache.VectorRoot(),
		s.prevAttCache.Root(uint64(len(s.PreviousEpochAttestations))),
		s.currAttCache.Root(uint64(len(s.CurrentEpochAttestations))),
		justificationChunk,
		s.PreviousJustifiedCheckpoint.HashTreeRoot(),
		s.CurrentJustifiedCheckpoint.HashTreeRoot(),
		s.FinalizedCheckpoint.HashTreeRoot(),
	})
}

const (
	forkWidth       = 4 + 4 + 8
	headerWidth     = 8 + 8 + 32 + 32 + 32
	eth1DataWidth   = 32 + 8 + 32
	validatorWidth  = 48 + 32 + 8 + 1 + 8 + 8 + 8 + 8
	checkpointWidth = 8 + 32
)

// MarshalSSZ encodes the full state container: fixed-size rings inline,
// the variable-length lists behind offsets, attestation accumulators
// with inner offset tables since their elements are themselves
// variable-size.
func (s *BeaconState) MarshalSSZ() ([]byte, error) {
	forkBuf, err := s.Fork.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	headerBuf, err := s.LatestBlockHeader.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	eth1Buf, err := s.Eth1Data.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	eth1VotesBuf, err := marshalList(len(s.Eth1DataVotes), func(i int) ([]byte, error) { return s.Eth1DataVotes[i].MarshalSSZ() })
	if err != nil {
		return nil, err
	}
	validatorsBuf, err := marshalList(len(s.Validators), func(i int) ([]byte, error) { return s.Validators[i].MarshalSSZ() })
	if err != nil {
		return nil, err
	}
	balancesBuf := make([]byte, 0, len(s.Balances)*8)
	for _, b := range s.Balances {
		balancesBuf = append(balancesBuf, ssz.MarshalUint64(b)...)
	}
	prevAttsBuf, _, err := marshalVariableList(len(s.PreviousEpochAttestations), func(i int) ([]byte, error) { return s.PreviousEpochAttestations[i].MarshalSSZ() })
	if err != nil {
		return nil, err
	}
	currAttsBuf, _, err := marshalVariableList(len(s.CurrentEpochAttestations), func(i int) ([]byte, error) { return s.CurrentEpochAttestations[i].MarshalSSZ() })
	if err != nil {
		return nil, err
	}
	prevJustifiedBuf, err := s.PreviousJustifiedCheckpoint.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	currJustifiedBuf, err := s.CurrentJustifiedCheckpoint.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	finalizedBuf, err := s.FinalizedCheckpoint.MarshalSSZ()
	if err != nil {
		return nil, err
	}

	return ssz.MarshalContainer([]ssz.FieldPart{
		{Fixed: ssz.MarshalUint64(s.GenesisTime)},
		{Fixed: ssz.MarshalUint64(s.Slot)},
		{Fixed: forkBuf},
		{Fixed: headerBuf},
		{Fixed: flattenRoots(s.BlockRoots)},
		{Fixed: flattenRoots(s.StateRoots)},
		{Var: flattenRoots(s.HistoricalRoots)},
		{Fixed: eth1Buf},
		{Var: eth1VotesBuf},
		{Fixed: ssz.MarshalUint64(s.Eth1DepositIndex)},
		{Var: validatorsBuf},
		{Var: balancesBuf},
		{Fixed: flattenRoots(s.RandaoMixes)},
		{Fixed: flattenUint64s(s.Slashings)},
		{Var: prevAttsBuf},
		{Var: currAttsBuf},
		{Fixed: []byte{s.JustificationBits}},
		{Fixed: prevJustifiedBuf},
		{Fixed: currJustifiedBuf},
		{Fixed: finalizedBuf},
	})
}

// UnmarshalSSZ decodes a state container. Ring lengths are taken from
// the active BeaconConfig; a buffer encoded under different ring sizes
// fails the fixed-region split.
func (s *BeaconState) UnmarshalSSZ(buf []byte) error {
	cfg := params.BeaconConfig()
	slotRingBytes := int(cfg.SlotsPerHistoricalRoot) * 32

	fields, err := ssz.UnmarshalContainer(buf, []int{
		8, 8, forkWidth, headerWidth,
		slotRingBytes, slotRingBytes,
		-1,
		eth1DataWidth,
		-1,
		8,
		-1,
		-1,
		int(cfg.EpochsPerHistoricalVector) * 32,
		int(cfg.EpochsPerSlashingsVector) * 8,
		-1,
		-1,
		1,
		checkpointWidth, checkpointWidth, checkpointWidth,
	})
	if err != nil {
		return err
	}

	if s.GenesisTime, err = ssz.UnmarshalUint64(fields[0]); err != nil {
		return err
	}
	if s.Slot, err = ssz.UnmarshalUint64(fields[1]); err != nil {
		return err
	}
	s.Fork = &Fork{}
	if err := s.Fork.UnmarshalSSZ(fields[2]); err != nil {
		return err
	}
	s.LatestBlockHeader = &BeaconBlockHeader{}
	if err := s.LatestBlockHeader.UnmarshalSSZ(fields[3]); err != nil {
		return err
	}
	s.BlockRoots = unflattenRoots(fields[4])
	s.StateRoots = unflattenRoots(fields[5])
	if len(fields[6])%32 != 0 {
		return errors.Wrap(errkind.ErrBadEncoding, "historical roots not a multiple of 32 bytes")
	}
	s.HistoricalRoots = unflattenRoots(fields[6])
	s.Eth1Data = &Eth1Data{}
	if err := s.Eth1Data.UnmarshalSSZ(fields[7]); err != nil {
		return err
	}
	if len(fields[8])%eth1DataWidth != 0 {
		return errors.Wrap(errkind.ErrBadEncoding, "eth1 data votes not a multiple of the eth1-data width")
	}
	s.Eth1DataVotes = make([]*Eth1Data, len(fields[8])/eth1DataWidth)
	for i := range s.Eth1DataVotes {
		v := &Eth1Data{}
		if err := v.UnmarshalSSZ(fields[8][i*eth1DataWidth : (i+1)*eth1DataWidth]); err != nil {
			return err
		}
		s.Eth1DataVotes[i] = v
	}
	if s.Eth1DepositIndex, err = ssz.UnmarshalUint64(fields[9]); err != nil {
		return err
	}
	if len(fields[10])%validatorWidth != 0 {
		return errors.Wrap(errkind.ErrBadEncoding, "validator registry not a multiple of the validator width")
	}
	s.Validators = make([]*Validator, len(fields[10])/validatorWidth)
	for i := range s.Validators {
		v := &Validator{}
		if err := v.UnmarshalSSZ(fields[10][i*validatorWidth : (i+1)*validatorWidth]); err != nil {
			return err
		}
		s.Validators[i] = v
	}
	if len(fields[11])%8 != 0 {
		return errors.Wrap(errkind.ErrBadEncoding, "balances not a multiple of 8 bytes")
	}
	s.Balances = make([]uint64, len(fields[11])/8)
	for i := range s.Balances {
		if s.Balances[i], err = ssz.UnmarshalUint64(fields[11][i*8 : (i+1)*8]); err != nil {
			return err
		}
	}
	s.RandaoMixes = unflattenRoots(fields[12])
	s.Slashings = make([]uint64, len(fields[13])/8)
	for i := range s.Slashings {
		if s.Slashings[i], err = ssz.UnmarshalUint64(fields[13][i*8 : (i+1)*8]); err != nil {
			return err
		}
	}
	prevChunks, err := unmarshalOuterList(fields[14])
	if err != nil {
		return err
	}
	s.PreviousEpochAttestations = make([]*PendingAttestation, len(prevChunks))
	for i, chunk := range prevChunks {
		a := &PendingAttestation{}
		if err := a.UnmarshalSSZ(chunk); err != nil {
			return err
		}
		s.PreviousEpochAttestations[i] = a
	}
	currChunks, err := unmarshalOuterList(fields[15])
	if err != nil {
		return err
	}
	s.CurrentEpochAttestations = make([]*PendingAttestation, len(currChunks))
	for i, chunk := range currChunks {
		a := &PendingAttestation{}
		if err := a.UnmarshalSSZ(chunk); err != nil {
			return err
		}
		s.CurrentEpochAttestations[i] = a
	}
	s.JustificationBits = fields[16][0]
	s.PreviousJustifiedCheckpoint = &Checkpoint{}
	if err := s.PreviousJustifiedCheckpoint.UnmarshalSSZ(fields[17]); err != nil {
		return err
	}
	s.CurrentJustifiedCheckpoint = &Checkpoint{}
	if err := s.CurrentJustifiedCheckpoint.UnmarshalSSZ(fields[18]); err != nil {
		return err
	}
	s.FinalizedCheckpoint = &Checkpoint{}
	if err := s.FinalizedCheckpoint.UnmarshalSSZ(fields[19]); err != nil {
		return err
	}

	// Caches are rebuilt lazily on the first mutation or HashTreeRoot.
	s.validatorCache = nil
	return nil
}

func flattenRoots(roots [][32]byte) []byte {
	out := make([]byte, 0, len(roots)*32)
	for _, r := range roots {
		out = append(out, r[:]...)
	}
	return out
}

func unflattenRoots(buf []byte) [][32]byte {
	out := make([][32]byte, len(buf)/32)
	for i := range out {
		copy(out[i][:], buf[i*32:(i+1)*32])
	}
	return out
}

func flattenUint64s(vals []uint64) []byte {
	out := make([]byte, 0, len(vals)*8)
	for _, v := range vals {
		out = append(out, ssz.MarshalUint64(v)...)
	}
	return out
}

func rootsToChunks(roots [][32]byte) []ssz.Root {
	out := make([]ssz.Root, len(roots))
	for i, r := range roots {
		copy(out[i][:], r[:])
	}
	return out
}

// ValidatorIndexByPubkey scans the registry for a matching public key.
// Linear until a dedicated index is warranted; called only on deposit
// processing, not per-slot.
func (s *BeaconState) ValidatorIndexByPubkey(pubkey [48]byte) (uint64, bool) {
	for i, v := range s.Validators {
		if v.Pubkey == pubkey {
			return uint64(i), true
		}
	}
	return 0, false
}

// RandaoMixAtEpoch resolves get_randao_mix: the ring slot at epoch mod
// EPOCHS_PER_HISTORICAL_VECTOR, valid only while epoch remains within
// the ring's trailing window.
func (s *BeaconState) RandaoMixAtEpoch(epoch uint64) ([32]byte, error) {
	cfg := params.BeaconConfig()
	if uint64(len(s.RandaoMixes)) != cfg.EpochsPerHistoricalVector {
		return [32]byte{}, errors.Wrap(errkind.ErrInvariantViolation, "randao mixes ring has the wrong length")
	}
	return s.RandaoMixes[epoch%cfg.EpochsPerHistoricalVector], nil
}
