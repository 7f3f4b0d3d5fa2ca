// Package cachefmt implements the on-disk octree cache format (spec §6):
// a flat dump of a tree's node array, grouped eight-at-a-time (one group per
// parent's worth of children), with the root stored separately since it has
// no parent slot of its own.
package cachefmt

import (
	"encoding/binary"
	"fmt"

	"github.com/mbirtwell/octray/node"
)

// groupSize is the number of child records making up one group (a node's
// full set of octants), matching the node package's own 8-wide child runs.
const groupSize = 8

const headerSize = 4 + 4 + 4 + 3 // node_count, root_address, root_mask+pad, root_color

// Encode packs root and nodes into the wire format Decode understands.
// len(nodes) must be a multiple of groupSize; Encode returns an error
// otherwise rather than silently truncating or padding.
func Encode(root node.Node, nodes []node.Node) ([]byte, error) {
	if len(nodes)%groupSize != 0 {
		return nil, fmt.Errorf("cachefmt: node count %d is not a multiple of %d", len(nodes), groupSize)
	}
	groupCount := len(nodes) / groupSize
	out := make([]byte, headerSize+len(nodes)*4+len(nodes)*3)

	binary.LittleEndian.PutUint32(out[0:4], uint32(groupCount))
	binary.LittleEndian.PutUint32(out[4:8], uint32(root.Address))
	binary.LittleEndian.PutUint32(out[8:12], uint32(root.Mask))
	out[12], out[13], out[14] = root.Color[0], root.Color[1], root.Color[2]

	recordsOff := headerSize
	colorsOff := headerSize + len(nodes)*4
	for i, n := range nodes {
		word := uint32(n.Address)&0x00FF_FFFF | uint32(n.Mask)<<24
		binary.LittleEndian.PutUint32(out[recordsOff+i*4:recordsOff+i*4+4], word)
		c := colorsOff + i*3
		out[c], out[c+1], out[c+2] = n.Color[0], n.Color[1], n.Color[2]
	}
	return out, nil
}

// Decode unpacks raw into a root node and its flat, sanitized child array
// (length a multiple of groupSize). Any record whose mask is zero, the root
// included, has its address set to -1, the leaf sentinel (spec §7's "out-of-range configuration... clamped
// silently" sanitization rule, applied here per §6's explicit instruction).
func Decode(raw []byte) (root node.Node, nodes []node.Node, err error) {
	if len(raw) < headerSize {
		return node.Node{}, nil, fmt.Errorf("cachefmt: short header: want >= %d bytes, got %d", headerSize, len(raw))
	}
	groupCount := binary.LittleEndian.Uint32(raw[0:4])
	rootAddr := int32(binary.LittleEndian.Uint32(raw[4:8]))
	rootMask := uint8(binary.LittleEndian.Uint32(raw[8:12]))
	root = node.Node{Address: rootAddr, Mask: rootMask, Color: [3]uint8{raw[12], raw[13], raw[14]}}
	if root.Mask == 0 {
		root.Address = -1
	}

	count := int(groupCount) * groupSize
	recordsOff := headerSize
	colorsOff := headerSize + count*4
	want := colorsOff + count*3
	if len(raw) < want {
		return node.Node{}, nil, fmt.Errorf("cachefmt: short body: want %d bytes, got %d", want, len(raw))
	}

	nodes = make([]node.Node, count)
	for i := range nodes {
		word := binary.LittleEndian.Uint32(raw[recordsOff+i*4 : recordsOff+i*4+4])
		addr := int32(word & 0x00FF_FFFF)
		mask := uint8(word >> 24)
		if word&0x0080_0000 != 0 {
			addr |= ^int32(0x00FF_FFFF) // sign-extend the 24-bit two's complement address.
		}
		if mask == 0 {
			addr = -1
		}
		c := colorsOff + i*3
		nodes[i] = node.Node{Address: addr, Mask: mask, Color: [3]uint8{raw[c], raw[c+1], raw[c+2]}}
	}
	return root, nodes, nil
}
