// Package node implements the sparse voxel octree node format and its
// chunked, pageable storage.
package node

import (
	"fmt"
	"log"
	"math/bits"
)

// Node is a single octree node: an 8-byte record giving the address of its
// first child (of up to eight consecutive children), which of those eight
// children exist, and the node's aggregate color.
type Node struct {
	// Address is the logical index of the first of this node's (up to) 8
	// children, or -1 if the node is a leaf or its children are paged out.
	Address int32
	// Mask has bit i set iff child octant i exists.
	Mask uint8
	// Color is the aggregate color of this node and its subtree.
	Color [3]uint8
}

// IsLeaf reports whether n has no children.
func (n Node) IsLeaf() bool { return n.Mask == 0 }

// PagedOut reports whether n's children exist logically but are not resident.
func (n Node) PagedOut() bool { return n.Mask != 0 && n.Address < 0 }

// Encoding distinguishes how a node's children are laid out physically.
type Encoding uint8

const (
	// Sparse stores all 8 children consecutively, indexed by octant.
	Sparse Encoding = iota
	// Packed stores only the children present in Mask, indexed by
	// popcount(mask & (1<<octant - 1)).
	Packed
)

// octantToIndex[mask<<3|octant] gives the packed physical offset of octant
// within a node whose children are compacted according to mask. It is only
// meaningful when mask has bit octant set; see I-OCT2IDX.
var octantToIndex [256 * 8]uint8

func init() {
	for mask := 0; mask < 256; mask++ {
		for octant := 0; octant < 8; octant++ {
			octantToIndex[mask<<3|octant] = uint8(bits.OnesCount8(uint8(mask) & (1<<uint(octant) - 1)))
		}
	}
}

// OctantToIndex returns the packed-encoding physical offset of octant within
// a node whose mask is mask. The result is only defined when mask has bit
// octant set.
func OctantToIndex(mask uint8, octant uint8) uint8 {
	return octantToIndex[int(mask)<<3|int(octant)]
}

const chunkSize = 1 << ChunkShift

// ChunkShift is log2 of the number of nodes per paging chunk.
const ChunkShift = 12

const chunkMask = chunkSize - 1

// ChunkInfo tracks residency and LRU bookkeeping for one logical chunk of
// the node address space.
type ChunkInfo struct {
	// ChunkStart is the offset into the dense physical node array where
	// this chunk's nodes begin, or -1 if the chunk is not resident.
	ChunkStart int32
	// AccessTime is the frame counter at the last access, used for LRU
	// eviction.
	AccessTime int32
	// packed holds the chunk's encoded bytes, used to re-materialize the
	// chunk on demand. nil for chunks that were never paged out (e.g. the
	// tree was built resident and has no backing store).
	packed []byte
}

// Resident reports whether the chunk currently has physical storage.
func (c ChunkInfo) Resident() bool { return c.ChunkStart >= 0 }

// Tree is a chunked, pageable array of octree Nodes.
type Tree struct {
	encoding Encoding
	root     Node

	chunks []ChunkInfo
	nodes  []Node // dense physical array; may be reallocated by unpack.
	free   int32  // next unused slot in nodes.

	evictionEnabled bool
	updateCache     bool
	frame           int32

	logger *log.Logger
}

// Option configures a Tree at construction time.
type Option func(*Tree)

// WithLogger sets the logger used to report recovered corruption. A nil
// logger (the default) silences these reports.
func WithLogger(l *log.Logger) Option {
	return func(t *Tree) { t.logger = l }
}

// WithEviction enables LRU eviction of resident chunks via EvictLRU.
func WithEviction(enabled bool) Option {
	return func(t *Tree) { t.evictionEnabled = enabled }
}

// WithUpdateCache sets whether Resolve may page a non-resident chunk back
// in (spec §6 update_cache). Enabled by default; see SetUpdateCache.
func WithUpdateCache(enabled bool) Option {
	return func(t *Tree) { t.updateCache = enabled }
}

// New constructs an empty chunked octree with the given root node and the
// number of logical chunks the address space spans.
func New(encoding Encoding, root Node, numChunks int, opts ...Option) *Tree {
	t := &Tree{
		encoding:    encoding,
		root:        root,
		chunks:      make([]ChunkInfo, numChunks),
		updateCache: true,
	}
	for i := range t.chunks {
		t.chunks[i].ChunkStart = -1
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// SetChunkBytes installs the packed byte payload for a chunk, to be decoded
// lazily by Unpack. It does not make the chunk resident.
func (t *Tree) SetChunkBytes(chunkIndex int32, packed []byte) {
	t.chunks[chunkIndex].packed = packed
}

// Root returns the tree's root node.
func (t *Tree) Root() Node { return t.root }

// EvictionEnabled reports whether LRU eviction is permitted for this tree.
func (t *Tree) EvictionEnabled() bool { return t.evictionEnabled }

// Frame returns the current frame counter used for LRU timestamps.
func (t *Tree) Frame() int32 { return t.frame }

// SetFrame advances the frame counter used to timestamp chunk access.
func (t *Tree) SetFrame(frame int32) { t.frame = frame }

// UpdateCacheEnabled reports whether Resolve may page non-resident chunks
// back in.
func (t *Tree) UpdateCacheEnabled() bool { return t.updateCache }

// SetUpdateCache toggles whether Resolve may page a non-resident chunk back
// in. Disabling it (spec §8 scenario 6: "render again with
// update_cache=false") makes an evicted chunk's nodes render as their
// parent's aggregate color instead of being re-materialized from the
// packed bytes still held for it.
func (t *Tree) SetUpdateCache(enabled bool) { t.updateCache = enabled }

// ChunkInfoAt returns the ChunkInfo for the given chunk index.
func (t *Tree) ChunkInfoAt(chunkIndex int32) *ChunkInfo {
	return &t.chunks[chunkIndex]
}

// chunkOf splits a logical node address into its chunk index and intra-chunk
// offset.
func chunkOf(logicalAddr int32) (chunkIndex int32, offset int32) {
	return logicalAddr >> ChunkShift, logicalAddr & chunkMask
}

// Resolve returns the node at logical address addr, paging its chunk in if
// necessary. If the chunk is not resident and update_cache is disabled, or
// its data is corrupt, Resolve returns a leaf node so callers degrade to a
// single leaf rather than fault.
func (t *Tree) Resolve(addr int32) Node {
	if addr < 0 {
		return Node{Address: -1}
	}
	chunkIndex, offset := chunkOf(addr)
	ci := &t.chunks[chunkIndex]
	if !ci.Resident() {
		if !t.updateCache {
			// update_cache=false: don't page evicted chunks back in even
			// though their packed bytes are still available (spec §8
			// scenario 6).
			return Node{Address: -1}
		}
		if err := t.Unpack(chunkIndex); err != nil {
			t.logf("node: chunk %d: %s; treating subtree as leaf", chunkIndex, err)
			return Node{Address: -1}
		}
	}
	ci.AccessTime = t.frame
	return t.nodes[ci.ChunkStart+offset]
}

// Child resolves the child of parent in the given octant, using the forward
// translation table when the tree is packed-encoded. ok is false if the
// octant bit is not set in parent.Mask. When update_cache is disabled and the
// child's chunk is not resident, the child is a leaf carrying parent.Color.
func (t *Tree) Child(parent Node, octant uint8) (child Node, ok bool) {
	if parent.Mask&(1<<octant) == 0 {
		return Node{}, false
	}
	if parent.Address < 0 {
		// Children exist logically but are paged out; caller must treat
		// parent as a leaf before reaching here (I-RESIDENCY).
		return Node{Address: -1}, true
	}
	var physicalOctant uint8 = octant
	if t.encoding == Packed {
		physicalOctant = OctantToIndex(parent.Mask, octant)
	}
	addr := parent.Address + int32(physicalOctant)
	if chunkIndex, _ := chunkOf(addr); !t.updateCache && !t.chunks[chunkIndex].Resident() {
		// Evicted and not allowed to page back in: the child degrades to a
		// leaf in its parent's aggregate color.
		return Node{Address: -1, Color: parent.Color}, true
	}
	return t.Resolve(addr), true
}

// Unpack materializes chunkIndex's nodes into the dense array, decoding the
// packed bytes set by SetChunkBytes; it is a no-op if the chunk is already
// resident. A chunk with no backing bytes (synthetic/in-memory trees) is
// materialized as all-leaf nodes.
func (t *Tree) Unpack(chunkIndex int32) error {
	ci := &t.chunks[chunkIndex]
	if ci.Resident() {
		return nil
	}
	start := t.alloc(chunkSize)
	if ci.packed == nil {
		// Nothing to decode: chunk was declared but never populated.
		// Leave it as all-leaf nodes.
		ci.ChunkStart = start
		return nil
	}
	dst := t.nodes[start : start+chunkSize]
	if err := decodeChunk(dst, ci.packed); err != nil {
		// Malformed chunk data: recover by leaving every node in the
		// chunk a leaf (I-CORRUPT).
		for i := range dst {
			dst[i] = Node{Address: -1}
		}
		ci.ChunkStart = start
		return fmt.Errorf("corrupt chunk data: %w", err)
	}
	ci.ChunkStart = start
	return nil
}

// alloc reserves n contiguous node slots in the dense array, growing it
// (doubling) if necessary. Returns the offset of the reserved run.
func (t *Tree) alloc(n int) int32 {
	if int(t.free)+n > len(t.nodes) {
		newCap := max(len(t.nodes)*2, 64)
		for newCap < int(t.free)+n {
			newCap *= 2
		}
		grown := make([]Node, newCap)
		copy(grown, t.nodes[:t.free])
		t.nodes = grown
	}
	start := t.free
	t.free += int32(n)
	return start
}

// EvictLRU selects the least-recently-accessed resident chunks and frees
// them until at least targetFree node slots (chunkSize per evicted chunk)
// have been reclaimed, or no more chunks can be freed. It returns the number of
// chunks evicted. Eviction does not shrink the dense array; freed slots
// are simply abandoned (the array is append-only between evictions, as
// unpack may still hold references to neighboring chunks).
func (t *Tree) EvictLRU(targetFree int) int {
	if !t.evictionEnabled {
		return 0
	}
	type candidate struct {
		idx  int32
		time int32
	}
	var candidates []candidate
	for i := range t.chunks {
		if t.chunks[i].Resident() {
			candidates = append(candidates, candidate{int32(i), t.chunks[i].AccessTime})
		}
	}
	// Oldest access time first.
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].time < candidates[j-1].time; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}
	evicted := 0
	freed := 0
	for _, c := range candidates {
		if freed >= targetFree {
			break
		}
		t.chunks[c.idx].ChunkStart = -1
		freed += chunkSize
		evicted++
	}
	return evicted
}

func (t *Tree) logf(format string, args ...any) {
	if t.logger != nil {
		t.logger.Printf(format, args...)
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
