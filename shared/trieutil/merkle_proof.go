// Package trieutil verifies Merkle branches against the deposit
// contract's incremental trie.
package trieutil

import (
	"github.com/sigmaprotocol/beacon-core/shared/hashutil"
)

// VerifyMerkleBranch reports whether proof correctly connects leaf at
// index to root, walking depth levels up the trie.
func VerifyMerkleBranch(leaf [32]byte, proof [][32]byte, depth uint64, index uint64, root [32]byte) bool {
	if uint64(len(proof)) != depth {
		return false
	}
	node := leaf
	for i := uint64(0); i < depth; i++ {
		if (index>>i)&1 == 1 {
			node = hashPair(proof[i], node)
		} else {
			node = hashPair(node, proof[i])
		}
	}
	return node == root
}

func hashPair(left, right [32]byte) [32]byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, left[:]...)
	buf = append(buf, right[:]...)
	return hashutil.Hash(buf)
}
