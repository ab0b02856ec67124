package helpers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sigmaprotocol/beacon-core/config/params"
	"github.com/sigmaprotocol/beacon-core/core/testutil"
)

func TestCommitteeCountAtSlot_Bounds(t *testing.T) {
	params.UseMinimalConfig()
	defer params.UseMainnetConfig()

	// Far too few validators for even one full committee still yields 1.
	st := testutil.NewGenesisState(2)
	require.Equal(t, uint64(1), CommitteeCountAtSlot(st, 0))
}

// TestBeaconCommittee_PartitionsActiveSet checks the disjointness
// invariant: across one epoch's (slot, index) pairs, every active
// validator appears in exactly one committee.
func TestBeaconCommittee_PartitionsActiveSet(t *testing.T) {
	params.UseMinimalConfig()
	defer params.UseMainnetConfig()
	cfg := params.BeaconConfig()

	st := testutil.NewGenesisState(16)

	seen := make(map[uint64]int)
	for slot := uint64(0); slot < cfg.SlotsPerEpoch; slot++ {
		committees := CommitteeCountAtSlot(st, slot)
		for index := uint64(0); index < committees; index++ {
			committee, err := BeaconCommittee(st, slot, index)
			require.NoError(t, err)
			for _, v := range committee {
				seen[v]++
			}
		}
	}

	require.Len(t, seen, 16)
	for v, count := range seen {
		require.Equalf(t, 1, count, "validator %d appeared %d times", v, count)
	}
}

func TestAttestingIndices_RejectsMismatchedLength(t *testing.T) {
	committee := []uint64{3, 7, 9}
	bits := bitlistOfLength(4)
	_, err := AttestingIndices(bits, committee)
	require.Error(t, err)
}

func TestAttestingIndices_SelectsSetBits(t *testing.T) {
	committee := []uint64{3, 7, 9}
	bits := bitlistOfLength(3)
	bits.SetBitAt(0, true)
	bits.SetBitAt(2, true)

	got, err := AttestingIndices(bits, committee)
	require.NoError(t, err)
	require.Equal(t, []uint64{3, 9}, got)
}
