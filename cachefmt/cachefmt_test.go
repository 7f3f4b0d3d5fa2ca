package cachefmt

import (
	"testing"

	"github.com/mbirtwell/octray/node"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	root := node.Node{Address: 8, Mask: 0xFF, Color: [3]uint8{1, 2, 3}}
	nodes := make([]node.Node, 16)
	for i := range nodes {
		nodes[i] = node.Node{
			Address: int32(i * 8),
			Mask:    uint8(i % 256),
			Color:   [3]uint8{uint8(i), uint8(i * 5), uint8(i * 11)},
		}
		if nodes[i].Mask == 0 {
			nodes[i].Address = -1 // sanitized form, so round trip is exact.
		}
	}

	raw, err := Encode(root, nodes)
	if err != nil {
		t.Fatal(err)
	}
	gotRoot, gotNodes, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if gotRoot != root {
		t.Fatalf("root: want %+v got %+v", root, gotRoot)
	}
	if len(gotNodes) != len(nodes) {
		t.Fatalf("node count: want %d got %d", len(nodes), len(gotNodes))
	}
	for i := range nodes {
		if gotNodes[i] != nodes[i] {
			t.Fatalf("node %d: want %+v got %+v", i, nodes[i], gotNodes[i])
		}
	}
}

func TestDecodeSanitizesZeroMaskRecords(t *testing.T) {
	root := node.Node{Address: -1, Mask: 0}
	nodes := make([]node.Node, 8)
	nodes[3] = node.Node{Address: 999, Mask: 0, Color: [3]uint8{9, 9, 9}}
	raw, err := Encode(root, nodes)
	if err != nil {
		t.Fatal(err)
	}
	_, got, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got[3].Address != -1 {
		t.Fatalf("expected sanitized address -1 for zero-mask record, got %d", got[3].Address)
	}
}

func TestEncodeRejectsNonMultipleOfGroupSize(t *testing.T) {
	if _, err := Encode(node.Node{}, make([]node.Node, 5)); err == nil {
		t.Fatal("expected an error for a node count not a multiple of 8")
	}
}

func TestDecodeRejectsShortData(t *testing.T) {
	if _, _, err := Decode([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected an error for data shorter than the header")
	}
}
