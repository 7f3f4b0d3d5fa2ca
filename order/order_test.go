package order

import "testing"

func bitsOf(mask uint8) []uint8 {
	var out []uint8
	for i := uint8(0); i < 8; i++ {
		if mask&(1<<i) != 0 {
			out = append(out, i)
		}
	}
	return out
}

func drain(q Queue) []uint8 {
	var out []uint8
	for {
		oct, rest, ok := q.Next()
		if !ok {
			break
		}
		out = append(out, oct)
		q = rest
	}
	return out
}

func TestQueuesContainExactlyMaskBits(t *testing.T) {
	for ao := AxisOrder(0); ao < numAxisOrders; ao++ {
		for start := 0; start < 8; start++ {
			for mask := 0; mask < 256; mask++ {
				want := bitsOf(uint8(mask))
				fwd := drain(Forward(ao, uint8(start), uint8(mask)))
				rev := drain(Reverse(ao, uint8(start), uint8(mask)))
				if !sameSet(fwd, want) {
					t.Fatalf("ao=%d start=%d mask=%08b: forward=%v want set %v", ao, start, mask, fwd, want)
				}
				if !sameSet(rev, want) {
					t.Fatalf("ao=%d start=%d mask=%08b: reverse=%v want set %v", ao, start, mask, rev, want)
				}
			}
		}
	}
}

func TestForwardReverseAreReversed(t *testing.T) {
	for ao := AxisOrder(0); ao < numAxisOrders; ao++ {
		for start := 0; start < 8; start++ {
			for mask := 0; mask < 256; mask++ {
				fwd := drain(Forward(ao, uint8(start), uint8(mask)))
				rev := drain(Reverse(ao, uint8(start), uint8(mask)))
				if len(fwd) != len(rev) {
					t.Fatalf("length mismatch ao=%d start=%d mask=%08b", ao, start, mask)
				}
				for i := range fwd {
					if fwd[i] != rev[len(rev)-1-i] {
						t.Fatalf("ao=%d start=%d mask=%08b: forward %v is not reverse of %v", ao, start, mask, fwd, rev)
					}
				}
			}
		}
	}
}

func TestFullMaskIsAdjacentGrayWalk(t *testing.T) {
	// With mask=0xFF every octant is present; consecutive entries of the
	// forward queue must differ by exactly one bit (Gray code property),
	// which is what makes the traversal a valid painter's-algorithm order.
	for ao := AxisOrder(0); ao < numAxisOrders; ao++ {
		seq := drain(Forward(ao, 0, 0xFF))
		if len(seq) != 8 {
			t.Fatalf("ao=%d: expected 8 entries, got %d", ao, len(seq))
		}
		seen := map[uint8]bool{}
		for i, oct := range seq {
			seen[oct] = true
			if i > 0 {
				diff := seq[i-1] ^ oct
				if diff == 0 || diff&(diff-1) != 0 {
					t.Fatalf("ao=%d: step %d->%d (%03b -> %03b) is not a single bit flip", ao, i-1, i, seq[i-1], oct)
				}
			}
		}
		if len(seen) != 8 {
			t.Fatalf("ao=%d: expected all 8 octants visited, got %v", ao, seq)
		}
	}
}

func sameSet(a, b []uint8) bool {
	if len(a) != len(b) {
		return false
	}
	count := map[uint8]int{}
	for _, v := range a {
		count[v]++
	}
	for _, v := range b {
		count[v]--
	}
	for _, c := range count {
		if c != 0 {
			return false
		}
	}
	return true
}
