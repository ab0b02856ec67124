package ssz

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMerkleizeSingleChunk(t *testing.T) {
	chunks := []Root{{1, 2, 3}}
	require.Equal(t, chunks[0], Merkleize(chunks, 1))
}

func TestMerkleizeDeterministic(t *testing.T) {
	chunks := []Root{{1}, {2}, {3}, {4}}
	r1 := Merkleize(chunks, 4)
	r2 := Merkleize(chunks, 4)
	require.Equal(t, r1, r2)
	require.NotEqual(t, Root{}, r1)
}

func TestMarshalUnmarshalContainerRoundTrip(t *testing.T) {
	// container { a: uint32, b: list<uint8,4> }
	parts := []FieldPart{
		{Fixed: MarshalUint32(0x01020304)},
		{Var: []byte{0xaa, 0xbb}},
	}
	buf, err := MarshalContainer(parts)
	require.NoError(t, err)
	require.Equal(t, []byte{0x04, 0x03, 0x02, 0x01, 0x08, 0x00, 0x00, 0x00, 0xaa, 0xbb}, buf)

	fields, err := UnmarshalContainer(buf, []int{4, -1})
	require.NoError(t, err)
	a, err := UnmarshalUint32(fields[0])
	require.NoError(t, err)
	require.Equal(t, uint32(0x01020304), a)
	require.Equal(t, []byte{0xaa, 0xbb}, fields[1])
}

func TestUnmarshalContainerRejectsBadOffset(t *testing.T) {
	buf := []byte{0x05, 0x00, 0x00, 0x00}
	_, err := UnmarshalContainer(buf, []int{-1})
	require.Error(t, err)
}

func TestIncrementalCacheMatchesRecompute(t *testing.T) {
	leaves := make([]Root, 8)
	for i := range leaves {
		leaves[i] = Root{byte(i + 1)}
	}
	c := NewCache(leaves, 8)
	want := Merkleize(leaves, 8)
	require.Equal(t, want, c.Root())

	leaves[3] = Root{0x99}
	c.SetLeaf(3, leaves[3])
	want2 := Merkleize(leaves, 8)
	require.Equal(t, want2, c.Root())
	require.NotEqual(t, want, want2)
}

func TestCacheForkIsIndependent(t *testing.T) {
	leaves := make([]Root, 4)
	c1 := NewCache(leaves, 4)
	_ = c1.Root()
	c2 := c1.Fork()

	leaves[0] = Root{0x01}
	c2.SetLeaf(0, leaves[0])

	require.NotEqual(t, c1.Root(), c2.Root())
}

// TestIncrementalHashFewerCallsThanSimple hashes a container with
// fields (a: uint64 = 0x1111, b: list<uint64, 8> = [0x2222, 0x3333],
// c: uint64 = 0x4444) both ways. After mutating b[0], the incremental
// path must produce the same root as a from-scratch hash while
// performing strictly fewer pairwise hashes.
func TestIncrementalHashFewerCallsThanSimple(t *testing.T) {
	bVals := []uint64{0x2222, 0x3333}
	const bLimit = 8
	bChunkLimit := ChunkCountForBytes(bLimit * 8)

	aChunk := ChunksFromBytes(MarshalUint64(0x1111))[0]
	cChunk := ChunksFromBytes(MarshalUint64(0x4444))[0]

	simpleRoot := func() Root {
		bRoot := MerkleizeList(PackUint64s(bVals), bChunkLimit, uint64(len(bVals)))
		return MerkleizeContainer([]Root{aChunk, bRoot, cChunk})
	}
	r0 := simpleRoot()

	bCache := NewCachedList(PackUint64s(bVals), bChunkLimit)
	contCache := NewCache([]Root{aChunk, bCache.Root(uint64(len(bVals))), cChunk}, 3)
	require.Equal(t, r0, contCache.Root())

	bVals[0] = 0x9999

	incrementalBefore := testutil.ToFloat64(treeHashPairsTotal)
	bCache.SetElem(0, PackUint64s(bVals)[0])
	contCache.SetLeaf(1, bCache.Root(uint64(len(bVals))))
	r1Incremental := contCache.Root()
	incrementalCalls := testutil.ToFloat64(treeHashPairsTotal) - incrementalBefore

	simpleBefore := testutil.ToFloat64(treeHashPairsTotal)
	r1Simple := simpleRoot()
	simpleCalls := testutil.ToFloat64(treeHashPairsTotal) - simpleBefore

	require.Equal(t, r1Simple, r1Incremental)
	require.NotEqual(t, r0, r1Incremental)
	require.Less(t, incrementalCalls, simpleCalls)
}

func TestUnionRoundTrip(t *testing.T) {
	payload := MarshalUint64(0xDEAD)
	buf, err := MarshalUnion(2, payload)
	require.NoError(t, err)
	require.Equal(t, byte(2), buf[0])

	tag, got, err := UnmarshalUnion(buf, 3)
	require.NoError(t, err)
	require.Equal(t, byte(2), tag)
	require.Equal(t, payload, got)
}

func TestUnionNullArm(t *testing.T) {
	buf, err := MarshalUnion(0, nil)
	require.NoError(t, err)
	tag, payload, err := UnmarshalUnion(buf, 2)
	require.NoError(t, err)
	require.Equal(t, byte(0), tag)
	require.Empty(t, payload)

	_, err = MarshalUnion(0, []byte{0x01})
	require.Error(t, err)
}

func TestUnionRejectsUndecodableTag(t *testing.T) {
	_, _, err := UnmarshalUnion([]byte{5, 0xAA}, 3)
	require.Error(t, err)
	_, _, err = UnmarshalUnion(nil, 3)
	require.Error(t, err)
	_, err = MarshalUnion(200, nil)
	require.Error(t, err)
}

func TestMixInTypeDistinguishesArms(t *testing.T) {
	var root Root
	root[0] = 0x01
	require.NotEqual(t, MixInType(root, 1), MixInType(root, 2))
	require.NotEqual(t, MixInType(root, 1), root)
}

func TestValidateListLength(t *testing.T) {
	require.NoError(t, ValidateListLength(4, 4))
	require.Error(t, ValidateListLength(5, 4))
}

func TestValidateFixedBytes(t *testing.T) {
	require.NoError(t, ValidateFixedBytes(make([]byte, 48), 48))
	require.Error(t, ValidateFixedBytes(make([]byte, 47), 48))
}

func TestCacheNoMutationNoRehash(t *testing.T) {
	leaves := make([]Root, 4)
	c := NewCache(leaves, 4)
	before := testutil.ToFloat64(cacheRecomputeCalls)
	_ = c.Root()
	_ = c.Root()
	after := testutil.ToFloat64(cacheRecomputeCalls)
	require.Equal(t, before, after)
}
