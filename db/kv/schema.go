package kv

// Bucket names for the block-storage surface this store actually
// needs — no attestation, validator, or archived-participation
// buckets, since those concerns live in core/attestations and
// core/state respectively.
var (
	blocksBucket                  = []byte("blocks")
	blockSlotIndicesBucket        = []byte("block-slot-indices")
	blockParentRootIndicesBucket  = []byte("block-parent-root-indices")
	finalizedBlockRootsIndexBucket = []byte("finalized-block-roots-index")
	chainMetadataBucket           = []byte("chain-metadata")
)

var (
	headBlockRootKey        = []byte("head-block-root")
	genesisBlockRootKey     = []byte("genesis-block-root")
	finalizedCheckpointKey  = []byte("finalized-checkpoint")
	justifiedCheckpointKey  = []byte("justified-checkpoint")
)
