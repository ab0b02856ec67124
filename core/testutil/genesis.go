// Package testutil builds minimal, deterministic BeaconState fixtures
// for the core packages' tests, following the same genesis-state
// construction pattern used for integration-test fixtures elsewhere —
// scoped to this module's simplified (non-sharded) BeaconState.
package testutil

import (
	"encoding/binary"

	"github.com/sigmaprotocol/beacon-core/config/params"
	"github.com/sigmaprotocol/beacon-core/core/types"
)

// NewGenesisState returns a state with numValidators validators, each
// seeded deterministically by index (pubkey = index as 8 little-endian
// bytes, remaining bytes zero), fully activated at genesis, and MAX_EFFECTIVE_BALANCE each —
// the fixture an empty-chain smoke test needs (genesis_time = 0,
// eth1_block_hash = 0x42...42).
func NewGenesisState(numValidators int) *types.BeaconState {
	cfg := params.BeaconConfig()

	validators := make([]*types.Validator, numValidators)
	balances := make([]uint64, numValidators)
	for i := 0; i < numValidators; i++ {
		var pubkey [48]byte
		binary.LittleEndian.PutUint64(pubkey[:8], uint64(i))
		validators[i] = &types.Validator{
			Pubkey:                     pubkey,
			EffectiveBalance:           cfg.MaxEffectiveBalance,
			ActivationEligibilityEpoch: cfg.GenesisEpoch,
			ActivationEpoch:            cfg.GenesisEpoch,
			ExitEpoch:                  cfg.FarFutureEpoch,
			WithdrawableEpoch:          cfg.FarFutureEpoch,
		}
		balances[i] = cfg.MaxEffectiveBalance
	}

	randaoMixes := make([][32]byte, cfg.EpochsPerHistoricalVector)
	slashings := make([]uint64, cfg.EpochsPerSlashingsVector)
	blockRoots := make([][32]byte, cfg.SlotsPerHistoricalRoot)
	stateRoots := make([][32]byte, cfg.SlotsPerHistoricalRoot)

	var eth1BlockHash [32]byte
	for i := range eth1BlockHash {
		eth1BlockHash[i] = 0x42
	}

	genesisCheckpoint := &types.Checkpoint{Epoch: cfg.GenesisEpoch}

	state := &types.BeaconState{
		GenesisTime: 0,
		Slot:        cfg.GenesisSlot,
		Fork: &types.Fork{
			PreviousVersion: cfg.GenesisForkVersion,
			CurrentVersion:  cfg.GenesisForkVersion,
			Epoch:           cfg.GenesisEpoch,
		},
		LatestBlockHeader: &types.BeaconBlockHeader{},
		BlockRoots:        blockRoots,
		StateRoots:        stateRoots,
		Eth1Data: &types.Eth1Data{
			BlockHash: eth1BlockHash,
		},
		Validators:                  validators,
		Balances:                    balances,
		RandaoMixes:                 randaoMixes,
		Slashings:                   slashings,
		PreviousJustifiedCheckpoint: genesisCheckpoint,
		CurrentJustifiedCheckpoint:  genesisCheckpoint,
		FinalizedCheckpoint:         genesisCheckpoint,
	}
	return state
}
