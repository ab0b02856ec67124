package params

import "sync"

// SpecOptions holds the runtime switches controlling BLS verification
// strictness and hashing strategy: a plain struct of values rather than
// a class hierarchy. One process-wide instance is set with
// OverrideSpecOptions and read through ActiveSpecOptions by the code that
// needs it.
type SpecOptions struct {
	// BLSVerify gates whether signature checks run at all. False is used
	// by simulators/fuzzers that want to exercise the rest of the
	// transition without paying for cryptography.
	BLSVerify bool

	// BLSVerifyProofOfPossession gates the additional withdrawal-key
	// proof-of-possession check, which test modes typically treat as
	// always-true.
	BLSVerifyProofOfPossession bool

	// IncrementalHasher names the incremental-cache tree-hash path
	// (encoding/ssz.Cache). No code reads it: BeaconState always hashes
	// its large fields through the incremental caches.
	IncrementalHasher bool

	// CacheSizeEntries is a size for auxiliary lookup caches. No code
	// reads it: the attestation-pool seen-set is bounded only by its TTL,
	// and the db/kv block cache by its own constant.
	CacheSizeEntries int
}

// DefaultSpecOptions returns the production-shaped defaults: full BLS
// verification, incremental hashing on.
func DefaultSpecOptions() *SpecOptions {
	return &SpecOptions{
		BLSVerify:                  true,
		BLSVerifyProofOfPossession: true,
		IncrementalHasher:          true,
		CacheSizeEntries:           100000,
	}
}

// TestSpecOptions returns the options a deterministic test suite wants:
// BLS verification off so fixtures don't need real signatures.
func TestSpecOptions() *SpecOptions {
	return &SpecOptions{
		BLSVerify:                  false,
		BLSVerifyProofOfPossession: false,
		IncrementalHasher:          true,
		CacheSizeEntries:           1000,
	}
}

var (
	specOptionsLock sync.RWMutex
	specOptions     = DefaultSpecOptions()
)

// ActiveSpecOptions returns the process-wide SpecOptions. core/blocks and
// shared/bls read their BLS switches from here; no function in this
// module takes a *SpecOptions parameter.
func ActiveSpecOptions() *SpecOptions {
	specOptionsLock.RLock()
	defer specOptionsLock.RUnlock()
	return specOptions
}

// OverrideSpecOptions swaps the process-wide default.
func OverrideSpecOptions(opts *SpecOptions) {
	specOptionsLock.Lock()
	defer specOptionsLock.Unlock()
	specOptions = opts
}
