package ssz

import (
	"github.com/prysmaticlabs/go-bitfield"
)

// BitlistHashTreeRoot tree-hashes a packed bitlist: the set
// bits (delimiter bit excluded) are packed into chunks, merkleized up to
// ceil(maxBits/256) chunks, then the true bit count is mixed in.
func BitlistHashTreeRoot(bits bitfield.Bitlist, maxBits uint64) Root {
	length := bits.Len()
	packed := bits.Bytes() // delimiter-stripped, packed bit bytes
	chunks := ChunksFromBytes(packed)
	limit := ChunkCountForBytes((maxBits + 7) / 8)
	return MixInLength(Merkleize(chunks, limit), length)
}

// BitvectorHashTreeRoot tree-hashes a fixed-length bit vector: no length
// mixin, since the vector's length is part of its type.
func BitvectorHashTreeRoot(bits bitfield.Bitvector4) Root {
	chunks := ChunksFromBytes(bits)
	return Merkleize(chunks, 1)
}
