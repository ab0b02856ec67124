// Package ssz implements the simple serialize codec with incremental
// Merkle root caching: a type-directed encode/decode plus a tree-hash
// function whose recomputation cost after a mutation is proportional
// to the changed leaves.
//
// Nothing here uses reflection: composites implement HashRoot with
// hand-written methods that call the merkleization helpers in this
// package. A few types also expose an explicit Schema (schema.go), but
// the hashing and incremental-cache routines do not read it.
package ssz

import (
	"encoding/binary"

	sha256 "github.com/minio/sha256-simd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Root is a 32-byte tree-hash digest.
type Root [32]byte

var treeHashPairsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ssz_tree_hash_pairs_total",
	Help: "Number of pairwise hash invocations performed by tree-hashing.",
})

var zeroHashes [64]Root

func init() {
	for i := 1; i < len(zeroHashes); i++ {
		zeroHashes[i] = hashPair(zeroHashes[i-1], zeroHashes[i-1])
	}
}

func hashPair(left, right Root) Root {
	treeHashPairsTotal.Inc()
	var buf [64]byte
	copy(buf[:32], left[:])
	copy(buf[32:], right[:])
	return Root(sha256.Sum256(buf[:]))
}

// nextPowerOfTwo returns the smallest power of two >= n. n=0 yields 1.
func nextPowerOfTwo(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	p := uint64(1)
	for p < n {
		p <<= 1
	}
	return p
}

// depthOf returns log2(size) for a power-of-two size.
func depthOf(size uint64) int {
	d := 0
	for size > 1 {
		size >>= 1
		d++
	}
	return d
}

// Merkleize computes the tree-hash root of chunks, zero-padded up to
// nextPowerOfTwo(max(len(chunks), limit)). limit of 0 means "no bound
// beyond len(chunks)" (used for containers, where limit is always the
// field count itself).
func Merkleize(chunks []Root, limit uint64) Root {
	size := uint64(len(chunks))
	if limit > size {
		size = limit
	}
	padded := nextPowerOfTwo(size)
	if padded == 1 {
		if len(chunks) == 0 {
			return Root{}
		}
		return chunks[0]
	}
	layer := make([]Root, padded)
	copy(layer, chunks)
	depth := depthOf(padded)
	for d := 0; d < depth; d++ {
		next := make([]Root, len(layer)/2)
		for i := range next {
			left := layer[2*i]
			var right Root
			if 2*i+1 < len(layer) {
				right = layer[2*i+1]
			} else {
				right = zeroHashes[d]
			}
			next[i] = hashPair(left, right)
		}
		layer = next
	}
	return layer[0]
}

// MixInLength folds a length value into a root, used to bind a List's
// element-merkleization to its actual (as opposed to maximum) length.
func MixInLength(root Root, length uint64) Root {
	var lengthChunk Root
	binary.LittleEndian.PutUint64(lengthChunk[:8], length)
	return hashPair(root, lengthChunk)
}

// MixInType folds a union's selector into the active alternative's
// root, the union analogue of MixInLength. The null arm hashes as the
// zero root under tag 0.
func MixInType(root Root, tag uint64) Root {
	var tagChunk Root
	binary.LittleEndian.PutUint64(tagChunk[:8], tag)
	return hashPair(root, tagChunk)
}

// MerkleizeContainer merkleizes a container's field roots, padded to the
// next power of two number of fields (no length mixin: containers have a
// fixed field count known from the schema).
func MerkleizeContainer(fieldRoots []Root) Root {
	return Merkleize(fieldRoots, uint64(len(fieldRoots)))
}

// SigningRootFields returns the field roots to use for a signing root:
// every field except the trailing signature.
func SigningRootFields(fieldRoots []Root) []Root {
	if len(fieldRoots) == 0 {
		return fieldRoots
	}
	return fieldRoots[:len(fieldRoots)-1]
}

// MerkleizeVector merkleizes a fixed-length sequence of element roots; no
// length mixin since a vector's length is part of its type.
func MerkleizeVector(elemRoots []Root, numElements uint64) Root {
	return Merkleize(elemRoots, numElements)
}

// MerkleizeList merkleizes a variable-length sequence of element roots
// bound to limit, then mixes in the true length.
func MerkleizeList(elemRoots []Root, limit uint64, length uint64) Root {
	return MixInLength(Merkleize(elemRoots, limit), length)
}

// ChunksFromBytes packs a raw byte buffer into 32-byte, zero-padded
// chunks, as used by byte vectors/lists (pubkeys, roots, arbitrary blobs)
// and by the packed-basic-vector/list encodings.
func ChunksFromBytes(data []byte) []Root {
	if len(data) == 0 {
		return nil
	}
	n := (len(data) + 31) / 32
	chunks := make([]Root, n)
	for i := 0; i < n; i++ {
		end := (i + 1) * 32
		if end > len(data) {
			end = len(data)
		}
		copy(chunks[i][:], data[i*32:end])
	}
	return chunks
}

// ChunkCountForBytes returns the number of 32-byte chunks a byte
// vector/list of byteLen bytes occupies, used as the merkleize limit for
// packed-basic containers (e.g. a List[byte, N] merkleizes with limit =
// ceil(N/32)).
func ChunkCountForBytes(byteLen uint64) uint64 {
	return (byteLen + 31) / 32
}

// PackUint64s packs 8-byte little-endian values 4-per-chunk, as used by
// Vector[uint64,N]/List[uint64,N] tree-hashing.
func PackUint64s(vals []uint64) []Root {
	buf := make([]byte, len(vals)*8)
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[i*8:], v)
	}
	return ChunksFromBytes(buf)
}

// HashTreeRoot is the entry point for any type implementing HashRoot.
func HashTreeRoot(v HashRoot) Root {
	return v.HashTreeRoot()
}

// HashRoot is implemented by every SSZ composite type.
type HashRoot interface {
	HashTreeRoot() Root
}

// SigningRoot is implemented by composites whose final field is a
// signature excluded from the signed message.
type SigningRoot interface {
	HashRoot
	SigningRoot() Root
}
