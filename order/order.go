// Package order precomputes the octant traversal queues used by the
// general traverser and the affine splatter: for every (axis order, camera
// octant, child mask) triple, the front-to-back and back-to-front sequence
// of present child octants.
package order

// AxisOrder names the six permutations of the three spatial axes by
// ascending |view-axis projected Z| (the axis most aligned with the screen
// normal sorts last, per spec §4.6).
type AxisOrder uint8

const (
	XYZ AxisOrder = iota
	XZY
	YXZ
	YZX
	ZXY
	ZYX
	numAxisOrders
)

// axisPermutations lists, for each AxisOrder, the three axis indices (0=X,
// 1=Y, 2=Z) from least to most screen-aligned. This is the flip-priority
// sequence fed to the Gray-code queue builder below: perm[0] is the axis
// that changes most often while walking octants front-to-back, perm[2] the
// axis that changes least (it dominates depth ordering).
var axisPermutations = [numAxisOrders][3]uint8{
	XYZ: {0, 1, 2},
	XZY: {0, 2, 1},
	YXZ: {1, 0, 2},
	YZX: {1, 2, 0},
	ZXY: {2, 0, 1},
	ZYX: {2, 1, 0},
}

// grayFlipSequence returns the 7 bit-positions flipped, in order, to walk
// all 8 three-bit values as a reflected binary Gray code starting from 0,
// given which bit is least (perm[0]) and most (perm[2]) significant to the
// ordering. This is the standard Gray-code "ruler sequence"
// (p0,p1,p0,p2,p0,p1,p0); applied here it gives the front-to-back child
// visitation order for octree painter's-algorithm traversal: each step
// flips exactly one axis sign, so consecutive octants in the sequence are
// always face-adjacent, never diagonal jumps.
func grayFlipSequence(perm [3]uint8) [7]uint8 {
	p0, p1, p2 := perm[0], perm[1], perm[2]
	return [7]uint8{p0, p1, p0, p2, p0, p1, p0}
}

// grayOctantSequence returns the 8 octants (XORed against startOctant) in
// front-to-back Gray-code order for the given axis permutation.
func grayOctantSequence(order AxisOrder, startOctant uint8) [8]uint8 {
	perm := axisPermutations[order]
	flips := grayFlipSequence(perm)
	var seq [8]uint8
	cur := startOctant
	seq[0] = cur
	for i, bit := range flips {
		cur ^= 1 << bit
		seq[i+1] = cur
	}
	return seq
}

// Queue packs up to 8 present child octants into a 32-bit word, 4 bits
// (a nibble) each: the low 3 bits are the octant id, the 4th bit is always
// set so that consuming down to zero is a reliable end-of-queue test.
type Queue uint32

// Next pops the front octant off the queue. ok is false once the queue is
// exhausted.
func (q Queue) Next() (octant uint8, rest Queue, ok bool) {
	if q == 0 {
		return 0, 0, false
	}
	return uint8(q & 0x7), q >> 4, true
}

// Len reports how many octants remain in the queue.
func (q Queue) Len() int {
	n := 0
	for ; q != 0; q >>= 4 {
		n++
	}
	return n
}

var forwardTable [numAxisOrders][8][256]Queue
var reverseTable [numAxisOrders][8][256]Queue

func init() {
	for ao := AxisOrder(0); ao < numAxisOrders; ao++ {
		for start := 0; start < 8; start++ {
			seq := grayOctantSequence(ao, uint8(start))
			for mask := 0; mask < 256; mask++ {
				var fwd Queue
				var nibbles [8]uint8
				n := 0
				for _, oct := range seq {
					if uint8(mask)&(1<<oct) != 0 {
						nibbles[n] = oct
						n++
					}
				}
				for i := 0; i < n; i++ {
					fwd |= Queue(nibbles[i]|8) << uint(4*i)
				}
				var rev Queue
				for i := 0; i < n; i++ {
					rev |= Queue(nibbles[n-1-i]|8) << uint(4*i)
				}
				forwardTable[ao][start][mask] = fwd
				reverseTable[ao][start][mask] = rev
			}
		}
	}
}

// Forward returns the front-to-back traversal queue of mask's present
// octants for the given axis order and camera octant.
func Forward(order AxisOrder, startOctant uint8, mask uint8) Queue {
	return forwardTable[order][startOctant][mask]
}

// Reverse returns the back-to-front traversal queue of mask's present
// octants for the given axis order and camera octant.
func Reverse(order AxisOrder, startOctant uint8, mask uint8) Queue {
	return reverseTable[order][startOctant][mask]
}
