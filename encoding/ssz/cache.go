package ssz

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache is the incremental Merkle root cache: an explicit handle owned
// by the composite value whose hash it caches, holding the full binary
// tree of chunk hashes plus a dirty set of leaf indices touched since
// the last recompute.
//
// This differs from a content-hash-keyed LRU of whole-subtree digests,
// which recomputes an entire subtree's hash on any change to it. Here
// the tree itself is retained and only the dirtied root-to-leaf paths
// are rehashed, giving an O(d·log N) recompute bound. Creating a copy of
// the owning composite forks the cache (Fork): the clone starts from an
// identical root with an empty dirty set, and subsequent mutations on
// either side are independent.
type Cache struct {
	tree  []Root // 1-indexed binary heap; tree[1] is the root
	size  uint64 // number of leaf slots, a power of two
	dirty map[uint64]bool
	valid bool
}

var (
	cacheRecomputeNodes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ssz_incremental_cache_nodes_rehashed",
		Help: "Number of internal tree nodes rehashed by incremental cache recomputes.",
	})
	cacheRecomputeCalls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ssz_incremental_cache_recompute_calls",
		Help: "Number of times the incremental cache recomputed a dirtied root.",
	})
	cacheForkCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ssz_incremental_cache_forks",
		Help: "Number of times an incremental cache was forked by a copy-on-write.",
	})
)

// NewCache builds a cache from a full set of leaf chunks, merkleizing
// limit leaves (limit >= len(leaves); containers pass len(leaves)).
func NewCache(leaves []Root, limit uint64) *Cache {
	size := limit
	if uint64(len(leaves)) > size {
		size = uint64(len(leaves))
	}
	size = nextPowerOfTwo(size)
	c := &Cache{
		tree:  make([]Root, 2*size),
		size:  size,
		dirty: make(map[uint64]bool),
		valid: true,
	}
	for i, leaf := range leaves {
		c.tree[size+uint64(i)] = leaf
	}
	c.buildFromScratch()
	return c
}

func (c *Cache) buildFromScratch() {
	depth := depthOf(c.size)
	layerSize := c.size
	layerStart := c.size
	for d := 0; d < depth; d++ {
		for i := uint64(0); i < layerSize/2; i++ {
			left := c.tree[layerStart+2*i]
			right := c.tree[layerStart+2*i+1]
			c.tree[layerStart/2+i] = hashPair(left, right)
		}
		layerSize /= 2
		layerStart /= 2
	}
}

// Fork returns an independent copy sharing no mutable state: the clone's
// tree starts identical, its dirty set empty.
func (c *Cache) Fork() *Cache {
	cacheForkCount.Inc()
	tree := make([]Root, len(c.tree))
	copy(tree, c.tree)
	return &Cache{
		tree:  tree,
		size:  c.size,
		dirty: make(map[uint64]bool),
		valid: c.valid,
	}
}

// SetLeaf overwrites leaf index i (0-based) and marks it dirty. Callers
// own the translation from a composite's field/element index to the
// cache's leaf index (they coincide for containers and vectors/lists
// whose elements occupy one chunk each; packed-basic composites map
// several elements per chunk and must dirty the owning chunk instead).
func (c *Cache) SetLeaf(i uint64, chunk Root) {
	c.tree[c.size+i] = chunk
	c.dirty[i] = true
	c.valid = false
}

// MarkDirty flags leaf i as changed without altering its stored value;
// used when the caller has already written directly into a shared
// buffer and only needs the cache to know a recompute is due.
func (c *Cache) MarkDirty(i uint64) {
	c.dirty[i] = true
	c.valid = false
}

// Root returns the up-to-date tree-hash root, recomputing only the
// ancestors of dirtied leaves if any are pending.
func (c *Cache) Root() Root {
	if !c.valid {
		c.recompute()
	}
	return c.tree[1]
}

// CachedList is the incremental cache shape for a List/Vector of
// composite elements: the element roots merkleize through an owned
// Cache, with MixInLength applied only for lists (callers pass the
// current length each time; vectors ignore it by always passing their
// fixed size).
type CachedList struct {
	cache *Cache
	limit uint64
}

// NewCachedList builds a cache over elemRoots bounded by limit.
func NewCachedList(elemRoots []Root, limit uint64) *CachedList {
	return &CachedList{cache: NewCache(elemRoots, limit), limit: limit}
}

// Root returns the list root (element merkleization mixed with length).
func (l *CachedList) Root(length uint64) Root {
	return MixInLength(l.cache.Root(), length)
}

// VectorRoot returns the vector root (no length mixin).
func (l *CachedList) VectorRoot() Root {
	return l.cache.Root()
}

// SetElem overwrites element i's root and marks it dirty.
func (l *CachedList) SetElem(i uint64, root Root) {
	l.cache.SetLeaf(i, root)
}

// Fork returns an independent copy for copy-on-write semantics.
func (l *CachedList) Fork() *CachedList {
	return &CachedList{cache: l.cache.Fork(), limit: l.limit}
}

func (c *Cache) recompute() {
	cacheRecomputeCalls.Inc()
	cur := make(map[uint64]bool, len(c.dirty))
	for leaf := range c.dirty {
		cur[c.size+leaf] = true
	}
	for len(cur) > 0 {
		next := make(map[uint64]bool)
		for idx := range cur {
			if idx == 1 {
				continue
			}
			parent := idx / 2
			left := c.tree[parent*2]
			right := c.tree[parent*2+1]
			c.tree[parent] = hashPair(left, right)
			cacheRecomputeNodes.Inc()
			next[parent] = true
		}
		cur = next
	}
	c.dirty = make(map[uint64]bool)
	c.valid = true
}
