package trieutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sigmaprotocol/beacon-core/shared/hashutil"
)

func TestMerkleTrie_BranchIndices(t *testing.T) {
	indices := BranchIndices(1024, 3)
	require.Equal(t, []int{1024, 512, 256}, indices)
}

func TestMerkleTrie_MerkleProofOutOfRange(t *testing.T) {
	h := hashutil.Hash([]byte("hi"))
	m := &MerkleTrie{
		depth: 2,
		branches: [][][]byte{
			{h[:]},
			{h[:]},
			{{}},
		},
	}
	_, err := m.MerkleProof(-1)
	require.Error(t, err)
	_, err = m.MerkleProof(2)
	require.Error(t, err)
}

func TestGenerateTrieFromItems_NoItemsProvided(t *testing.T) {
	_, err := GenerateTrieFromItems(nil, 32)
	require.Error(t, err)
}

func TestMerkleTrie_VerifyMerkleProof(t *testing.T) {
	items := [][]byte{
		[]byte("short"), []byte("eos"), []byte("long"), []byte("eth"),
		[]byte("4ever"), []byte("eth2"), []byte("moon"),
	}
	m, err := GenerateTrieFromItems(items, 32)
	require.NoError(t, err)

	proof, err := m.MerkleProof(2)
	require.NoError(t, err)
	root := m.Root()
	require.True(t, VerifyMerkleProof(root[:], items[2], 2, proof))

	proof, err = m.MerkleProof(3)
	require.NoError(t, err)
	require.True(t, VerifyMerkleProof(root[:], items[3], 3, proof))
	require.False(t, VerifyMerkleProof(root[:], []byte("btc"), 3, proof))
}

func TestMerkleTrie_InsertIntoTrie(t *testing.T) {
	trie, err := NewTrie(8)
	require.NoError(t, err)

	item := hashutil.Hash([]byte("deposit-0"))
	require.NoError(t, trie.InsertIntoTrie(item[:], 1))
	require.Len(t, trie.Items(), 2)

	require.Error(t, trie.InsertIntoTrie(item[:], 10))
}

func TestMerkleTrie_HashTreeRoot_MixesInDepositCount(t *testing.T) {
	empty, err := NewTrie(8)
	require.NoError(t, err)
	emptyRoot := empty.HashTreeRoot()

	item := hashutil.Hash([]byte("deposit-0"))
	require.NoError(t, empty.InsertIntoTrie(item[:], 1))
	require.NotEqual(t, emptyRoot, empty.HashTreeRoot())
}
