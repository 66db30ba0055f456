package model

import "time"

// Direction of travel along a route's stop sequence.
const (
	DirectionForward  = "forward"
	DirectionBackward = "backward"
)

// Passenger load levels reported by riders.
const (
	LoadLow    = "low"
	LoadMedium = "medium"
	LoadHigh   = "high"
	LoadFull   = "full"
)

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Stop is one entry in a route's ordered stop sequence.
type Stop struct {
	Name  string  `json:"name"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Order int     `json:"order"`
}

// Route is a catalog entry. Created by an admin process, read-only here.
type Route struct {
	ID          string `json:"id"`
	RouteNumber string `json:"routeNumber"`
	RouteName   string `json:"routeName"`
	Start       string `json:"startLocation"`
	End         string `json:"endLocation"`
	Stops       []Stop `json:"stops"`
	Active      bool   `json:"isActive"`
}

// Verification records one rider vouching for someone else's update.
type Verification struct {
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

// LocationUpdate is a single crowdsourced report of a bus's position and state.
// For a given (route, bus number) pair at most one update is active; accepting
// a new one deactivates the previous one in the same storage operation.
type LocationUpdate struct {
	ID               string         `json:"id"`
	RouteID          string         `json:"routeId"`
	RouteNumber      string         `json:"routeNumber,omitempty"`
	RouteName        string         `json:"routeName,omitempty"`
	ReporterID       string         `json:"reporterId"`
	ReporterName     string         `json:"reporterName,omitempty"`
	BusNumber        string         `json:"busNumber"`
	CurrentStop      string         `json:"currentStop"`
	NextStop         string         `json:"nextStop,omitempty"`
	Direction        string         `json:"direction"`
	PassengerLoad    string         `json:"passengerLoad"`
	Lat              float64        `json:"lat"`
	Lng              float64        `json:"lng"`
	Note             string         `json:"note,omitempty"`
	EstimatedArrival *time.Time     `json:"estimatedArrival,omitempty"`
	Active           bool           `json:"isActive"`
	CreatedAt        time.Time      `json:"createdAt"`
	Verifications    []Verification `json:"verifications"`
}

// UpdateIn is the submit payload before validation and persistence.
type UpdateIn struct {
	RouteID          string     `json:"routeId"`
	BusNumber        string     `json:"busNumber"`
	CurrentStop      string     `json:"currentStop"`
	NextStop         string     `json:"nextStop,omitempty"`
	Direction        string     `json:"direction"`
	PassengerLoad    string     `json:"passengerLoad,omitempty"`
	Coordinates      *GeoPoint  `json:"coordinates"`
	Note             string     `json:"note,omitempty"`
	EstimatedArrival *time.Time `json:"estimatedArrival,omitempty"`
}

// Reporter is a leaderboard row.
type Reporter struct {
	UserID       string `json:"userId"`
	DisplayName  string `json:"displayName"`
	Reputation   int    `json:"reputation"`
	TotalUpdates int    `json:"totalUpdates"`
}
