package trieutil

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	sbytes "github.com/sigmaprotocol/beacon-core/shared/bytes"
	"github.com/sigmaprotocol/beacon-core/shared/hashutil"
)

var zeroHashes = make([][]byte, 100)

func init() {
	zeroHashes[0] = make([]byte, 32)
	for i := 1; i < 100; i++ {
		leaf := append(zeroHashes[i-1], zeroHashes[i-1]...)
		result := hashutil.Hash(leaf)
		zeroHashes[i] = result[:]
	}
}

// MerkleTrie is a sparse, append-only Merkle trie mirroring the deposit
// contract's incremental tree, used to recompute the deposit root a
// genesis or fork-choice state is validated against.
type MerkleTrie struct {
	depth         uint
	branches      [][][]byte
	originalItems [][]byte
}

// NewTrie returns an empty trie of the given depth, seeded with zero hashes.
func NewTrie(depth int) (*MerkleTrie, error) {
	var zeroBytes [32]byte
	items := [][]byte{zeroBytes[:]}
	return GenerateTrieFromItems(items, depth)
}

// InsertIntoTrie appends or overwrites the deposit hash at index. Only
// appends (index == len(originalItems)) or updates to an existing leaf
// are permitted; gaps are rejected.
func (m *MerkleTrie) InsertIntoTrie(item []byte, index int) error {
	if index > len(m.originalItems) {
		return errors.New("invalid index to be inserting")
	}
	if index == len(m.originalItems) {
		m.originalItems = append(m.originalItems, item)
		return m.updateTrie()
	}

	m.originalItems[index] = item
	return m.updateTrie()
}

// GenerateTrieFromItems constructs a Merkle trie from a sequence of deposit-hash leaves.
func GenerateTrieFromItems(items [][]byte, depth int) (*MerkleTrie, error) {
	if len(items) == 0 {
		return nil, errors.New("no items provided to generate Merkle trie")
	}
	layers := calcTreeFromLeaves(items, depth)
	return &MerkleTrie{
		branches:      layers,
		originalItems: items,
		depth:         uint(depth),
	}, nil
}

// Items returns the original leaves passed in when creating the trie.
func (m *MerkleTrie) Items() [][]byte {
	return m.originalItems
}

// Root returns the top-most root of the trie, excluding the deposit-count mixin.
func (m *MerkleTrie) Root() [32]byte {
	return sbytes.ToBytes32(m.branches[len(m.branches)-1][0])
}

// MerkleProof computes a proof from the trie's branches for a leaf index.
func (m *MerkleTrie) MerkleProof(index int) ([][]byte, error) {
	merkleIndex := uint(index)
	leaves := m.branches[0]
	if index >= len(leaves) || index < 0 {
		return nil, fmt.Errorf("merkle index out of range in trie, max range: %d, received: %d", len(leaves), index)
	}
	proof := make([][]byte, m.depth)
	for i := uint(0); i < m.depth; i++ {
		subIndex := (merkleIndex / (1 << i)) ^ 1
		if subIndex < uint(len(m.branches[i])) {
			proof[i] = m.branches[i][subIndex]
		} else {
			proof[i] = zeroHashes[i]
		}
	}
	return proof, nil
}

// HashTreeRoot mixes the deposit count into the trie root, as the
// deposit contract does:
//  sha256(concat(node, to_little_endian_64(deposit_count), zero_bytes[0:24]))
func (m *MerkleTrie) HashTreeRoot() [32]byte {
	var zeroBytes [32]byte
	depositCount := uint64(len(m.originalItems))
	if len(m.originalItems) == 1 && bytes.Equal(m.originalItems[0], zeroBytes[:]) {
		depositCount = 0
	}
	var countBytes [8]byte
	binary.LittleEndian.PutUint64(countBytes[:], depositCount)
	newNode := append(m.branches[len(m.branches)-1][0], countBytes[:]...)
	newNode = append(newNode, zeroBytes[:24]...)
	return hashutil.Hash(newNode)
}

// VerifyMerkleProof verifies a Merkle branch produced by MerkleProof against a root.
func VerifyMerkleProof(root []byte, item []byte, merkleIndex int, proof [][]byte) bool {
	node := item
	branchIndices := BranchIndices(merkleIndex, len(proof))
	for i := 0; i < len(proof); i++ {
		if branchIndices[i]%2 == 0 {
			parentHash := hashutil.Hash(append(node[:], proof[i]...))
			node = parentHash[:]
		} else {
			parentHash := hashutil.Hash(append(proof[i], node[:]...))
			node = parentHash[:]
		}
	}
	return bytes.Equal(root, node)
}

func calcTreeFromLeaves(leaves [][]byte, depth int) [][][]byte {
	layers := make([][][]byte, depth+1)
	layers[0] = leaves
	for i := 0; i < depth; i++ {
		if len(layers[i])%2 == 1 {
			layers[i] = append(layers[i], zeroHashes[i])
		}
		updatedValues := make([][]byte, 0)
		for j := 0; j < len(layers[i]); j += 2 {
			concat := hashutil.Hash(append(layers[i][j], layers[i][j+1]...))
			updatedValues = append(updatedValues, concat[:])
		}
		layers[i+1] = updatedValues
	}
	return layers
}

// BranchIndices returns the ancestor indices of merkleIndex at each level up to depth.
func BranchIndices(merkleIndex int, depth int) []int {
	indices := make([]int, depth)
	idx := merkleIndex
	indices[0] = idx
	for i := 1; i < depth; i++ {
		idx /= 2
		indices[i] = idx
	}
	return indices
}

func (m *MerkleTrie) updateTrie() error {
	trie, err := GenerateTrieFromItems(m.originalItems, int(m.depth))
	if err != nil {
		return err
	}
	m.branches = trie.branches
	return nil
}
