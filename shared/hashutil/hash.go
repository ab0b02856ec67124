// Package hashutil exposes the protocol-level hash functions used outside
// the SSZ tree-hash path: seed derivation, RANDAO mixing, and deposit
// Merkle-proof verification all hash flat byte buffers rather than typed
// trees, so they go through Hash directly instead of encoding/ssz's
// chunk-oriented Merkleize.
package hashutil

import (
	sha256 "github.com/minio/sha256-simd"
	"golang.org/x/crypto/sha3"
)

// Hash returns the SHA-256 digest of data, accelerated by
// github.com/minio/sha256-simd. This is the conventional pairwise hash
// used for tree-hash chunking; RANDAO mixing and seed derivation use the
// same function for consistency with the codec.
func Hash(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// RepeatHash applies Hash repeatedly numTimes on a [32]byte array.
func RepeatHash(data [32]byte, numTimes uint64) [32]byte {
	for i := uint64(0); i < numTimes; i++ {
		data = Hash(data[:])
	}
	return data
}

// LegacyHash returns the Keccak-256 digest of data, kept only for
// comparing against the external eth1 chain's block hashes (go-ethereum
// convention).
func LegacyHash(data []byte) [32]byte {
	var hash [32]byte
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	h.Sum(hash[:0])
	return hash
}

// MerkleRoot computes the binary Merkle root of an already-hashed leaf
// set using Hash as the pairwise combiner. The deposit-proof check in
// core/blocks does not call it; it walks branches with
// trieutil.VerifyMerkleBranch.
func MerkleRoot(leaves [][32]byte) [32]byte {
	if len(leaves) == 0 {
		return [32]byte{}
	}
	layer := leaves
	for len(layer) > 1 {
		next := make([][32]byte, 0, (len(layer)+1)/2)
		for i := 0; i < len(layer); i += 2 {
			if i+1 < len(layer) {
				next = append(next, Hash(append(append([]byte{}, layer[i][:]...), layer[i+1][:]...)))
			} else {
				next = append(next, layer[i])
			}
		}
		layer = next
	}
	return layer[0]
}
