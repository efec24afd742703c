package core

// Wire types for the HTTP API. Field names follow the JSON contract of the
// original cargo interface: camelCase keys, coordinates expressed as
// width/depth/height triples relative to the container's open face.

// Coordinates is a point expressed on the width/depth/height axes.
type Coordinates struct {
	Width  float64 `json:"width"`
	Depth  float64 `json:"depth"`
	Height float64 `json:"height"`
}

// BoxPosition is the start and end corner of an axis-aligned box.
type BoxPosition struct {
	StartCoordinates Coordinates `json:"startCoordinates"`
	EndCoordinates   Coordinates `json:"endCoordinates"`
}

// ItemPayload is the wire form of an item.
type ItemPayload struct {
	ItemID        string  `json:"itemId"`
	Name          string  `json:"name"`
	Width         float64 `json:"width"`
	Depth         float64 `json:"depth"`
	Height        float64 `json:"height"`
	Mass          float64 `json:"mass"`
	Priority      int     `json:"priority"`
	ExpiryDate    *string `json:"expiryDate,omitempty"`
	UsageLimit    *int    `json:"usageLimit,omitempty"`
	CurrentUsage  int     `json:"currentUsage,omitempty"`
	PreferredZone string  `json:"preferredZone,omitempty"`
	Status        string  `json:"status,omitempty"`
}

// ContainerPayload is the wire form of a container.
type ContainerPayload struct {
	ContainerID string   `json:"containerId"`
	Name        string   `json:"name,omitempty"`
	Zone        string   `json:"zone"`
	Width       float64  `json:"width"`
	Depth       float64  `json:"depth"`
	Height      float64  `json:"height"`
	OpenFace    string   `json:"openFace,omitempty"`
	MaxWeight   *float64 `json:"maxWeight,omitempty"`
}

// PlacementRequest asks for placement recommendations.
type PlacementRequest struct {
	Items      []ItemPayload      `json:"items"`
	Containers []ContainerPayload `json:"containers"`
}

// PlacementDecision is one recommended placement.
type PlacementDecision struct {
	ItemID      string      `json:"itemId"`
	ContainerID string      `json:"containerId"`
	Position    BoxPosition `json:"position"`
	Orientation int         `json:"orientation"`
}

// RearrangementStep is one step of a rearrangement plan.
type RearrangementStep struct {
	Step          int          `json:"step"`
	Action        string       `json:"action"` // "move", "remove", "place"
	ItemID        string       `json:"itemId"`
	FromContainer string       `json:"fromContainer,omitempty"`
	FromPosition  *BoxPosition `json:"fromPosition,omitempty"`
	ToContainer   string       `json:"toContainer,omitempty"`
	ToPosition    *BoxPosition `json:"toPosition,omitempty"`
}

// PlacementResponse is the reply to a placement request.
type PlacementResponse struct {
	Success        bool                `json:"success"`
	Placements     []PlacementDecision `json:"placements"`
	Rearrangements []RearrangementStep `json:"rearrangements"`
}

// RetrievalStep is one step of a retrieval plan.
type RetrievalStep struct {
	Step     int    `json:"step"`
	Action   string `json:"action"` // "remove", "setAside", "retrieve", "placeBack"
	ItemID   string `json:"itemId"`
	ItemName string `json:"itemName"`
}

// FoundItem describes a located item in a search response.
type FoundItem struct {
	ItemID      string       `json:"itemId"`
	Name        string       `json:"name"`
	ContainerID string       `json:"containerId,omitempty"`
	Zone        string       `json:"zone,omitempty"`
	Position    *BoxPosition `json:"position,omitempty"`
}

// SearchResponse is the reply to an item search.
type SearchResponse struct {
	Success        bool            `json:"success"`
	Found          bool            `json:"found"`
	Item           *FoundItem      `json:"item,omitempty"`
	RetrievalSteps []RetrievalStep `json:"retrievalSteps,omitempty"`
}

// RetrieveRequest records that an item was taken out.
type RetrieveRequest struct {
	ItemID    string `json:"itemId"`
	UserID    string `json:"userId,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// PlaceRequest records a manual placement.
type PlaceRequest struct {
	ItemID      string      `json:"itemId"`
	UserID      string      `json:"userId,omitempty"`
	Timestamp   string      `json:"timestamp,omitempty"`
	ContainerID string      `json:"containerId"`
	Position    BoxPosition `json:"position"`
}

// AckResponse is a bare success acknowledgement.
type AckResponse struct {
	Success bool `json:"success"`
}

// WasteItemInfo describes a waste item and where it currently sits.
type WasteItemInfo struct {
	ItemID      string       `json:"itemId"`
	Name        string       `json:"name"`
	Reason      string       `json:"reason"`
	ContainerID string       `json:"containerId,omitempty"`
	Position    *BoxPosition `json:"position,omitempty"`
}

// WasteIdentifyResponse lists all current waste items.
type WasteIdentifyResponse struct {
	Success    bool            `json:"success"`
	WasteItems []WasteItemInfo `json:"wasteItems"`
}

// ReturnPlanRequest plans a waste return mission.
type ReturnPlanRequest struct {
	UndockingContainerID string  `json:"undockingContainerId"`
	UndockingDate        string  `json:"undockingDate"`
	MaxWeight            float64 `json:"maxWeight"`
}

// ReturnPlanStep is one movement in a return plan.
type ReturnPlanStep struct {
	Step          int    `json:"step"`
	ItemID        string `json:"itemId"`
	ItemName      string `json:"itemName"`
	FromContainer string `json:"fromContainer"`
	ToContainer   string `json:"toContainer"`
}

// ReturnManifestItem is one line of a return manifest.
type ReturnManifestItem struct {
	ItemID string `json:"itemId"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// ReturnManifest summarizes the cargo of a return mission.
type ReturnManifest struct {
	UndockingContainerID string               `json:"undockingContainerId"`
	UndockingDate        string               `json:"undockingDate"`
	ReturnItems          []ReturnManifestItem `json:"returnItems"`
	TotalVolume          float64              `json:"totalVolume"`
	TotalWeight          float64              `json:"totalWeight"`
}

// ReturnPlanResponse is the reply to a return plan request.
type ReturnPlanResponse struct {
	Success        bool             `json:"success"`
	ReturnPlan     []ReturnPlanStep `json:"returnPlan"`
	RetrievalSteps []RetrievalStep  `json:"retrievalSteps"`
	ReturnManifest ReturnManifest   `json:"returnManifest"`
}

// UndockingRequest completes an undocking.
type UndockingRequest struct {
	UndockingContainerID string `json:"undockingContainerId"`
	Timestamp            string `json:"timestamp,omitempty"`
}

// UndockingResponse reports how many items left the station.
type UndockingResponse struct {
	Success      bool `json:"success"`
	ItemsRemoved int  `json:"itemsRemoved"`
}

// SimulationItemRef identifies an item to use during simulation, by ID or name.
type SimulationItemRef struct {
	ItemID string `json:"itemId,omitempty"`
	Name   string `json:"name,omitempty"`
}

// SimulationRequest advances the simulated clock.
type SimulationRequest struct {
	NumOfDays           *int                `json:"numOfDays,omitempty"`
	ToTimestamp         string              `json:"toTimestamp,omitempty"`
	ItemsToBeUsedPerDay []SimulationItemRef `json:"itemsToBeUsedPerDay"`
}

// SimulationItemResult describes one item affected by a simulation run.
type SimulationItemResult struct {
	ItemID        string `json:"itemId"`
	Name          string `json:"name"`
	RemainingUses *int   `json:"remainingUses,omitempty"`
}

// SimulationChanges groups the effects of a simulation run.
type SimulationChanges struct {
	ItemsUsed          []SimulationItemResult `json:"itemsUsed"`
	ItemsExpired       []SimulationItemResult `json:"itemsExpired"`
	ItemsDepletedToday []SimulationItemResult `json:"itemsDepletedToday"`
}

// SimulationResponse is the reply to a simulation request.
type SimulationResponse struct {
	Success bool              `json:"success"`
	NewDate string            `json:"newDate"`
	Changes SimulationChanges `json:"changes"`
}

// ImportRowError reports a CSV row that failed to import.
type ImportRowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportResponse is the reply to a CSV import.
type ImportResponse struct {
	Success            bool             `json:"success"`
	ItemsImported      int              `json:"itemsImported,omitempty"`
	ContainersImported int              `json:"containersImported,omitempty"`
	Errors             []ImportRowError `json:"errors,omitempty"`
}

// LogRecord is one entry of the operation log, as returned by the API.
type LogRecord struct {
	Timestamp  string                 `json:"timestamp"`
	UserID     string                 `json:"userId,omitempty"`
	ActionType string                 `json:"actionType"`
	ItemID     string                 `json:"itemId,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// LogsResponse is the reply to a log query.
type LogsResponse struct {
	Logs []LogRecord `json:"logs"`
}

// PositionBox converts a stored position plus oriented dimensions into the
// wire start/end coordinate form.
func PositionBox(p *Position, d Dimensions) BoxPosition {
	return BoxPosition{
		StartCoordinates: Coordinates{Width: p.X, Height: p.Y, Depth: p.Z},
		EndCoordinates: Coordinates{
			Width:  p.X + d.Width,
			Height: p.Y + d.Height,
			Depth:  p.Z + d.Depth,
		},
	}
}
