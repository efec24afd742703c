package spatial

import (
	"cargohold/internal/core"
)

// gridResolution is the voxel edge length in centimeters.
const gridResolution = 1

// Grid is a voxel occupancy map of a container. Cells are 1 cm cubes; a cell
// value above zero means occupied.
type Grid struct {
	W, H, D int
	cells   []uint8
}

// NewGrid creates an empty grid sized for the container, one cell of slack
// in each axis to absorb rounding at the walls.
func NewGrid(c *core.Container) *Grid {
	w := int(c.Width)/gridResolution + 1
	h := int(c.Height)/gridResolution + 1
	d := int(c.Depth)/gridResolution + 1
	return &Grid{W: w, H: h, D: d, cells: make([]uint8, w*h*d)}
}

func (g *Grid) idx(x, y, z int) int {
	return (x*g.H+y)*g.D + z
}

// Occupied reports whether the cell at (x, y, z) is marked.
func (g *Grid) Occupied(x, y, z int) bool {
	if x < 0 || y < 0 || z < 0 || x >= g.W || y >= g.H || z >= g.D {
		return true
	}
	return g.cells[g.idx(x, y, z)] > 0
}

// Mark fills the cells covered by a box.
func (g *Grid) Mark(b Box) {
	x1, y1, z1 := int(b.Pos.X), int(b.Pos.Y), int(b.Pos.Z)
	x2 := min(int(b.Pos.X+b.Dims.Width), g.W)
	y2 := min(int(b.Pos.Y+b.Dims.Height), g.H)
	z2 := min(int(b.Pos.Z+b.Dims.Depth), g.D)
	for x := x1; x < x2; x++ {
		for y := y1; y < y2; y++ {
			for z := z1; z < z2; z++ {
				g.cells[g.idx(x, y, z)] = 1
			}
		}
	}
}

// Free reports whether a box fits at the given position without touching any
// occupied cell or leaving the grid.
func (g *Grid) Free(b Box) bool {
	x1, y1, z1 := int(b.Pos.X), int(b.Pos.Y), int(b.Pos.Z)
	x2 := int(b.Pos.X + b.Dims.Width)
	y2 := int(b.Pos.Y + b.Dims.Height)
	z2 := int(b.Pos.Z + b.Dims.Depth)
	if x1 < 0 || y1 < 0 || z1 < 0 || x2 >= g.W || y2 >= g.H || z2 >= g.D {
		return false
	}
	for x := x1; x < x2; x++ {
		for y := y1; y < y2; y++ {
			for z := z1; z < z2; z++ {
				if g.cells[g.idx(x, y, z)] > 0 {
					return false
				}
			}
		}
	}
	return true
}

// EmptyVolume returns the unoccupied volume in cubic centimeters.
func (g *Grid) EmptyVolume() float64 {
	var n int
	for _, c := range g.cells {
		if c == 0 {
			n++
		}
	}
	return float64(n)
}

// Space is an empty axis-aligned region of a container.
type Space struct {
	X, Y, Z int
	W, H, D int
}

// Volume returns the space volume in cubic centimeters.
func (s Space) Volume() float64 {
	return float64(s.W * s.H * s.D)
}

// Contains reports whether other lies entirely within s.
func (s Space) Contains(other Space) bool {
	return other.X >= s.X && other.Y >= s.Y && other.Z >= s.Z &&
		other.X+other.W <= s.X+s.W &&
		other.Y+other.H <= s.Y+s.H &&
		other.Z+other.D <= s.Z+s.D
}

// MaximalSpaces finds the empty regions reachable from free corner cells,
// grown greedily along each axis and deduplicated by containment. The result
// drives fragmentation scoring and rearrangement target selection.
func (g *Grid) MaximalSpaces() []Space {
	corners := g.freeCorners()
	spaces := make([]Space, 0, len(corners))
	for _, c := range corners {
		spaces = append(spaces, g.grow(c[0], c[1], c[2]))
	}
	return mergeSpaces(spaces)
}

// freeCorners returns free cells whose -x, -y, and -z neighbors are all
// occupied or walls. These are the candidate origins for maximal spaces.
func (g *Grid) freeCorners() [][3]int {
	var corners [][3]int
	for x := 0; x < g.W; x++ {
		for y := 0; y < g.H; y++ {
			for z := 0; z < g.D; z++ {
				if g.Occupied(x, y, z) {
					continue
				}
				if g.Occupied(x-1, y, z) && g.Occupied(x, y-1, z) && g.Occupied(x, y, z-1) {
					corners = append(corners, [3]int{x, y, z})
				}
			}
		}
	}
	return corners
}

// grow expands a box from the corner one axis at a time while every cell in
// the new slab stays free.
func (g *Grid) grow(x, y, z int) Space {
	s := Space{X: x, Y: y, Z: z, W: 1, H: 1, D: 1}
	for g.slabFree(s.X+s.W, s.Y, s.Z, 1, s.H, s.D) {
		s.W++
	}
	for g.slabFree(s.X, s.Y+s.H, s.Z, s.W, 1, s.D) {
		s.H++
	}
	for g.slabFree(s.X, s.Y, s.Z+s.D, s.W, s.H, 1) {
		s.D++
	}
	return s
}

func (g *Grid) slabFree(x, y, z, w, h, d int) bool {
	if x+w > g.W || y+h > g.H || z+d > g.D {
		return false
	}
	for i := x; i < x+w; i++ {
		for j := y; j < y+h; j++ {
			for k := z; k < z+d; k++ {
				if g.cells[g.idx(i, j, k)] > 0 {
					return false
				}
			}
		}
	}
	return true
}

// mergeSpaces drops spaces fully contained in a larger one.
func mergeSpaces(spaces []Space) []Space {
	kept := make([]Space, 0, len(spaces))
	for i, s := range spaces {
		contained := false
		for j, other := range spaces {
			if i == j {
				continue
			}
			if other.Contains(s) && (other.Volume() > s.Volume() || j < i) {
				contained = true
				break
			}
		}
		if !contained {
			kept = append(kept, s)
		}
	}
	return kept
}

// Fragmentation measures how scattered the empty volume is: 0 when a single
// space holds it all, approaching 1 as it splinters into many small pockets.
func Fragmentation(spaces []Space, totalEmpty float64) float64 {
	if totalEmpty == 0 || len(spaces) == 0 {
		return 0
	}
	var largest float64
	for _, s := range spaces {
		if v := s.Volume(); v > largest {
			largest = v
		}
	}
	f := 1.0 - largest/totalEmpty
	if f < 0 {
		return 0
	}
	return f
}
