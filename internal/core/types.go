// Package core provides the domain types shared by all cargohold features.
package core

import (
	"time"
)

// OpenFace identifies which face of a container items are inserted through.
type OpenFace string

const (
	FaceFront  OpenFace = "front"
	FaceBack   OpenFace = "back"
	FaceLeft   OpenFace = "left"
	FaceRight  OpenFace = "right"
	FaceTop    OpenFace = "top"
	FaceBottom OpenFace = "bottom"
)

// ItemStatus is the lifecycle state of an item.
type ItemStatus string

const (
	StatusActive   ItemStatus = "active"
	StatusWaste    ItemStatus = "waste"
	StatusDepleted ItemStatus = "depleted"
)

// WasteReason records why an item was declared waste.
type WasteReason string

const (
	ReasonExpired  WasteReason = "expired"
	ReasonDepleted WasteReason = "depleted"
	ReasonDamaged  WasteReason = "damaged"
	ReasonOther    WasteReason = "other"
)

// MissionStatus is the lifecycle state of a return mission.
type MissionStatus string

const (
	MissionPlanned  MissionStatus = "planned"
	MissionLoading  MissionStatus = "loading"
	MissionComplete MissionStatus = "complete"
)

// Operation classifies a logged system operation.
type Operation string

const (
	OpPlacement     Operation = "placement"
	OpRetrieval     Operation = "retrieval"
	OpRearrangement Operation = "rearrangement"
	OpDisposal      Operation = "disposal"
	OpSimulation    Operation = "simulation"
	OpImport        Operation = "import"
	OpExport        Operation = "export"
)

// Operations lists every valid operation, in the order they are documented.
var Operations = []Operation{
	OpPlacement, OpRetrieval, OpRearrangement, OpDisposal,
	OpSimulation, OpImport, OpExport,
}

// ParseOperation validates an operation name (case-insensitive on input is
// the caller's concern; stored values are lowercase).
func ParseOperation(s string) (Operation, bool) {
	for _, op := range Operations {
		if string(op) == s {
			return op, true
		}
	}
	return "", false
}

// Dimensions is an axis-aligned bounding box size in centimeters.
// Width runs along the container's open face, Height is vertical, and Depth
// is perpendicular to the open face (z=0 at the face).
type Dimensions struct {
	Width  float64
	Height float64
	Depth  float64
}

// Volume returns the box volume in cubic centimeters.
func (d Dimensions) Volume() float64 {
	return d.Width * d.Height * d.Depth
}

// Container is a storage container aboard the station.
type Container struct {
	ID        string
	Name      string
	Zone      string
	Width     float64
	Depth     float64
	Height    float64
	OpenFace  OpenFace
	MaxWeight *float64
}

// Volume returns the total container volume.
func (c *Container) Volume() float64 {
	return c.Width * c.Height * c.Depth
}

// Fits reports whether a box of the given dimensions fits inside the
// container at all, ignoring current occupancy.
func (c *Container) Fits(d Dimensions) bool {
	return d.Width <= c.Width && d.Height <= c.Height && d.Depth <= c.Depth
}

// Item is a cargo item.
type Item struct {
	ID            string
	Name          string
	Width         float64
	Height        float64
	Depth         float64
	Mass          float64
	Priority      int // 1-100, higher is more important
	ExpiryDate    *time.Time
	UsageLimit    *int
	CurrentUsage  int
	PreferredZone string
	Status        ItemStatus
}

// Volume returns the item volume in its natural orientation.
func (i *Item) Volume() float64 {
	return i.Width * i.Height * i.Depth
}

// Expired reports whether the item has reached its expiry date.
func (i *Item) Expired(now time.Time) bool {
	if i.ExpiryDate == nil {
		return false
	}
	return !now.Before(*i.ExpiryDate)
}

// Depleted reports whether the item has exhausted its usage limit.
func (i *Item) Depleted() bool {
	if i.UsageLimit == nil {
		return false
	}
	return i.CurrentUsage >= *i.UsageLimit
}

// IncrementUsage records one use of the item. It returns true when the item
// crossed its usage limit as a result and its status flipped to depleted.
func (i *Item) IncrementUsage() bool {
	if i.UsageLimit == nil {
		return false
	}
	i.CurrentUsage++
	if i.CurrentUsage >= *i.UsageLimit {
		i.Status = StatusDepleted
		return true
	}
	return false
}

// RemainingUses returns the number of uses left, or nil for unlimited items.
func (i *Item) RemainingUses() *int {
	if i.UsageLimit == nil {
		return nil
	}
	n := *i.UsageLimit - i.CurrentUsage
	if n < 0 {
		n = 0
	}
	return &n
}

// Orientations returns the six axis-aligned orientations of the item.
// The index into this array is the orientation code stored on a Position.
func (i *Item) Orientations() [6]Dimensions {
	w, h, d := i.Width, i.Height, i.Depth
	return [6]Dimensions{
		{w, h, d},
		{w, d, h},
		{h, w, d},
		{h, d, w},
		{d, w, h},
		{d, h, w},
	}
}

// OrientedDims returns the item's dimensions under the given orientation
// code, falling back to the natural orientation for out-of-range codes.
func (i *Item) OrientedDims(orientation int) Dimensions {
	o := i.Orientations()
	if orientation < 0 || orientation >= len(o) {
		return o[0]
	}
	return o[orientation]
}

// Position records where an item sits inside a container. Coordinates are
// relative to the container origin at the bottom-left of the open face:
// X along the width axis, Y along the height axis, Z along the depth axis.
// The most recent position by timestamp is the item's current one.
type Position struct {
	ID          string
	ItemID      string
	ContainerID string
	X           float64
	Y           float64
	Z           float64
	Orientation int
	Visible     bool
	Timestamp   time.Time
}

// WasteRecord marks an item as waste awaiting return.
type WasteRecord struct {
	ID              string
	ItemID          string
	Reason          WasteReason
	WasteDate       time.Time
	ReturnMissionID string
	Notes           string
}

// ReturnMission is a scheduled undocking that carries waste home.
type ReturnMission struct {
	ID            string
	ScheduledDate time.Time
	MaxWeight     float64
	MaxVolume     float64
	CurrentWeight float64
	CurrentVolume float64
	Status        MissionStatus
}
