package model

// Core domain types.

// RoomInfo is the registration record for a room. Unregistered rooms have no
// record and fall back to the process-wide anonymous defaults.
type RoomInfo struct {
	RoomID                 string `json:"roomId"`
	Email                  string `json:"email,omitempty"`
	MaxPathPoints          int    `json:"maxPathPoints,omitempty"`
	MaxPointsPerPath       int    `json:"maxPointsPerPath,omitempty"`
	MaxPathPointAgeHours   int    `json:"maxPathPointAgeHours,omitempty"`
	MinPathPointIntervalMs int64  `json:"minPathPointIntervalMs,omitempty"`
	ValidUntil             string `json:"validUntil,omitempty"`
}

// TrackSession marks the current logical track for one device in one room.
// At most one record exists per (room, app).
type TrackSession struct {
	SessionID int32 `json:"sessionId"`
}

// PathPoint is one GPS sample. It is keyed in storage by the server-assigned
// unix-ms timestamp; the client clock never participates in ordering.
type PathPoint struct {
	AppID     string   `json:"appId"`
	Username  string   `json:"username"`
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	Alt       float64  `json:"alt"`
	Speed     *float64 `json:"speed,omitempty"`
	Acc       *float64 `json:"acc,omitempty"`
	Battery   *float64 `json:"battery,omitempty"`
	GsmSignal *float64 `json:"gsmSignal,omitempty"`
	Bearing   *float64 `json:"bearing,omitempty"`
	HR        *int     `json:"hr,omitempty"`
}

// TimedPoint pairs a stored point with its server timestamp for read models.
type TimedPoint struct {
	UnixTimeMs int64 `json:"unixTimeMs"`
	PathPoint
}

// StorePathPointRequest is the ingest request body.
type StorePathPointRequest struct {
	SessionID   int32    `json:"sessionId"`
	AppID       string   `json:"appId"`
	RoomID      string   `json:"roomId"`
	Username    string   `json:"username"`
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Alt         float64  `json:"alt"`
	Speed       *float64 `json:"speed,omitempty"`
	Acc         *float64 `json:"acc,omitempty"`
	Battery     *float64 `json:"battery,omitempty"`
	GsmSignal   *float64 `json:"gsmSignal,omitempty"`
	Bearing     *float64 `json:"bearing,omitempty"`
	HR          *int     `json:"hr,omitempty"`
	WipeOldPath bool     `json:"wipeOldPath,omitempty"`
}

// Point converts the request into the stored shape.
func (r *StorePathPointRequest) Point() PathPoint {
	return PathPoint{
		AppID:     r.AppID,
		Username:  r.Username,
		Lat:       r.Lat,
		Lng:       r.Lng,
		Alt:       r.Alt,
		Speed:     r.Speed,
		Acc:       r.Acc,
		Battery:   r.Battery,
		GsmSignal: r.GsmSignal,
		Bearing:   r.Bearing,
		HR:        r.HR,
	}
}

// StartNewPathRequest forces a new logical track for a device without waiting
// for the next point to carry a fresh session id.
type StartNewPathRequest struct {
	RoomID      string `json:"roomId"`
	AppID       string `json:"appId"`
	Username    string `json:"username"`
	SessionID   int32  `json:"sessionId"`
	WipeOldPath bool   `json:"wipeOldPath,omitempty"`
}

// PointsPage is the paged read model served to pull clients.
type PointsPage struct {
	Points        []TimedPoint `json:"points"`
	LastUpdateMs  int64        `json:"lastUpdateUnixMs"`
	MoreAvailable bool         `json:"moreAvailable"`
	MaxPathPoints int          `json:"maxPathPoints"`
}
