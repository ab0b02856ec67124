// Package params defines the tunable constants that parameterise every
// committee helper and state-transition rule. Callers never hard-code a
// constant; they go through BeaconConfig().
package params

import "sync"

// BeaconChainConfig holds every named constant referenced by the core
// state-transition, committee-helper and fork-choice packages. Values
// default to mainnet-shaped numbers; OverrideBeaconConfig swaps the
// whole record so tests can install a "minimal" preset without touching
// call sites.
type BeaconChainConfig struct {
	// Time parameters.
	SecondsPerSlot               uint64
	SlotsPerEpoch                uint64
	MinSeedLookahead             uint64
	MaxSeedLookahead             uint64
	MinAttestationInclusionDelay uint64

	GenesisSlot  uint64
	GenesisEpoch uint64
	FarFutureEpoch uint64

	SlotsPerHistoricalRoot     uint64
	EpochsPerHistoricalVector  uint64
	EpochsPerSlashingsVector   uint64
	EpochsPerEth1VotingPeriod  uint64

	ShuffleRoundCount uint64

	// Committee/validator parameters.
	MaxCommitteesPerSlot             uint64
	TargetCommitteeSize              uint64
	MaxValidatorsPerCommittee        uint64
	MinPerEpochChurnLimit            uint64
	ChurnLimitQuotient               uint64
	ShardCommitteePeriod             uint64
	MinValidatorWithdrawabilityDelay uint64

	// Gwei values.
	MinDepositAmount        uint64
	MaxEffectiveBalance     uint64
	EjectionBalance         uint64
	EffectiveBalanceIncrement uint64

	// Reward and penalty quotients.
	BaseRewardFactor             uint64
	BaseRewardsPerEpoch          uint64
	ProposerRewardQuotient       uint64
	WhistleblowerRewardQuotient  uint64
	InactivityPenaltyQuotient    uint64
	MinEpochsToInactivityPenalty uint64
	MinSlashingPenaltyQuotient   uint64

	// Max operations per block.
	MaxProposerSlashings uint64
	MaxAttesterSlashings uint64
	MaxAttestations      uint64
	MaxDeposits          uint64
	MaxVoluntaryExits    uint64

	// Deposit contract.
	DepositContractTreeDepth uint64

	// List merkleization bounds. The reference spec's VALIDATOR_REGISTRY_LIMIT
	// (2**40) and HISTORICAL_ROOTS_LIMIT (2**24) only matter for fixing the
	// tree-hash depth; this codec's Cache allocates an array proportional to
	// its limit, so these fields carry demonstration-scaled stand-ins well
	// above any realistic registry or history size rather than the literal
	// protocol ceilings, which would force a multi-gigabyte allocation per
	// cache. See DESIGN.md.
	ValidatorRegistryLimit uint64
	HistoricalRootsLimit   uint64

	// Domain types (4-byte tags, stored widened for convenience).
	DomainBeaconProposer uint32
	DomainBeaconAttester uint32
	DomainRandao         uint32
	DomainDeposit        uint32
	DomainVoluntaryExit  uint32

	// Fork versioning. Single-fork deployments leave these zeroed.
	GenesisForkVersion [4]byte

	// Misc.
	HashCacheSize uint64

	BLSSecretKeyLength int
	BLSPubkeyLength    int
	BLSSignatureLength int
}

// Copy returns a value copy so overrides never alias the shared default.
func (b *BeaconChainConfig) Copy() *BeaconChainConfig {
	cpy := *b
	return &cpy
}

func mainnetConfig() *BeaconChainConfig {
	return &BeaconChainConfig{
		SecondsPerSlot:               12,
		SlotsPerEpoch:                32,
		MinSeedLookahead:             1,
		MaxSeedLookahead:             4,
		MinAttestationInclusionDelay: 1,

		GenesisSlot:    0,
		GenesisEpoch:   0,
		FarFutureEpoch: 1<<64 - 1,

		SlotsPerHistoricalRoot:    8192,
		EpochsPerHistoricalVector: 65536,
		EpochsPerSlashingsVector:  8192,
		EpochsPerEth1VotingPeriod: 64,

		ShuffleRoundCount: 90,

		MaxCommitteesPerSlot:             64,
		TargetCommitteeSize:              128,
		MaxValidatorsPerCommittee:        2048,
		MinPerEpochChurnLimit:            4,
		ChurnLimitQuotient:               65536,
		ShardCommitteePeriod:             256,
		MinValidatorWithdrawabilityDelay: 256,

		MinDepositAmount:          1000000000,
		MaxEffectiveBalance:       32000000000,
		EjectionBalance:           16000000000,
		EffectiveBalanceIncrement: 1000000000,

		BaseRewardFactor:             64,
		BaseRewardsPerEpoch:          4,
		ProposerRewardQuotient:       8,
		WhistleblowerRewardQuotient:  512,
		InactivityPenaltyQuotient:    1 << 26,
		MinEpochsToInactivityPenalty: 4,
		MinSlashingPenaltyQuotient:   32,

		MaxProposerSlashings: 16,
		MaxAttesterSlashings: 2,
		MaxAttestations:      128,
		MaxDeposits:          16,
		MaxVoluntaryExits:    16,

		DepositContractTreeDepth: 32,

		ValidatorRegistryLimit: 1 << 20,
		HistoricalRootsLimit:   1 << 16,

		DomainBeaconProposer: 0x00000000,
		DomainBeaconAttester: 0x01000000,
		DomainRandao:         0x02000000,
		DomainDeposit:        0x03000000,
		DomainVoluntaryExit:  0x04000000,

		HashCacheSize: 100000,

		BLSSecretKeyLength: 32,
		BLSPubkeyLength:    48,
		BLSSignatureLength: 96,
	}
}

// minimalConfig is a "minimal" preset, used by tests that want small
// committees/epochs without waiting on mainnet-sized loops.
func minimalConfig() *BeaconChainConfig {
	cfg := mainnetConfig()
	cfg.SlotsPerEpoch = 8
	cfg.SlotsPerHistoricalRoot = 64
	cfg.EpochsPerHistoricalVector = 64
	cfg.EpochsPerSlashingsVector = 64
	cfg.TargetCommitteeSize = 4
	cfg.ShardCommitteePeriod = 64
	cfg.MaxCommitteesPerSlot = 4
	// Keep per-state cache allocations (proportional to these limits)
	// small enough that tests can fork states freely.
	cfg.ValidatorRegistryLimit = 1 << 10
	cfg.HistoricalRootsLimit = 1 << 10
	return cfg
}

var (
	configLock sync.RWMutex
	beaconConfig *BeaconChainConfig = mainnetConfig()
)

// BeaconConfig returns the currently active configuration record.
func BeaconConfig() *BeaconChainConfig {
	configLock.RLock()
	defer configLock.RUnlock()
	return beaconConfig
}

// OverrideBeaconConfig swaps the active configuration wholesale. Intended
// for test setup and network-selection at process start, never for
// mutation mid-run.
func OverrideBeaconConfig(cfg *BeaconChainConfig) {
	configLock.Lock()
	defer configLock.Unlock()
	beaconConfig = cfg
}

// UseMinimalConfig installs the minimal test preset.
func UseMinimalConfig() {
	OverrideBeaconConfig(minimalConfig())
}

// UseMainnetConfig restores the mainnet preset.
func UseMainnetConfig() {
	OverrideBeaconConfig(mainnetConfig())
}
