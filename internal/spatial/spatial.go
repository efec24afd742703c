// Package spatial provides the 3D geometry used by placement, retrieval,
// and rearrangement: collision checks, accessibility scoring, and occupancy
// grids at 1 cm resolution.
package spatial

import (
	"cargohold/internal/core"
)

// Point is a position inside a container, in centimeters from the origin at
// the bottom-left of the open face.
type Point struct {
	X float64
	Y float64
	Z float64
}

// Box pairs a position with oriented dimensions.
type Box struct {
	Pos  Point
	Dims core.Dimensions
}

// Collides reports whether two boxes overlap. Touching faces do not count
// as a collision.
func Collides(a, b Box) bool {
	xOverlap := a.Pos.X < b.Pos.X+b.Dims.Width && b.Pos.X < a.Pos.X+a.Dims.Width
	yOverlap := a.Pos.Y < b.Pos.Y+b.Dims.Height && b.Pos.Y < a.Pos.Y+a.Dims.Height
	zOverlap := a.Pos.Z < b.Pos.Z+b.Dims.Depth && b.Pos.Z < a.Pos.Z+a.Dims.Depth
	return xOverlap && yOverlap && zOverlap
}

// Visible reports whether a box at depth z sits directly at the open face.
func Visible(z float64) bool {
	return z == 0
}

// Blocks reports whether box a must be moved before box b can be pulled
// through the open face: a sits in front of b and their width/height
// footprints overlap.
func Blocks(a, b Box) bool {
	if a.Pos.Z >= b.Pos.Z {
		return false
	}
	xOverlap := a.Pos.X < b.Pos.X+b.Dims.Width && b.Pos.X < a.Pos.X+a.Dims.Width
	yOverlap := a.Pos.Y < b.Pos.Y+b.Dims.Height && b.Pos.Y < a.Pos.Y+a.Dims.Height
	return xOverlap && yOverlap
}

// Accessibility scores how easy a box is to reach, 1.0 at the open face and
// 0.0 at the back wall. The score uses the depth of the box's center.
func Accessibility(pos Point, dims core.Dimensions, container *core.Container) float64 {
	if container.Depth == 0 {
		return 1.0
	}
	zCenter := pos.Z + dims.Depth/2
	a := 1.0 - zCenter/container.Depth
	if a < 0 {
		return 0
	}
	if a > 1 {
		return 1
	}
	return a
}
