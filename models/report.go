package models

import (
	"strings"
	"time"
)

// Channel is the medium a report arrived through
type Channel string

// Channels a report can originate from
const (
	ChannelSMS  Channel = "sms"
	ChannelIVR  Channel = "ivr"
	ChannelUSSD Channel = "ussd"
	ChannelWeb  Channel = "web"
)

// Valid reports whether c is a known channel
func (c Channel) Valid() bool {
	switch c {
	case ChannelSMS, ChannelIVR, ChannelUSSD, ChannelWeb:
		return true
	}
	return false
}

// Category is the kind of emergency being reported
type Category string

// Emergency categories
const (
	CategoryFlood      Category = "flood"
	CategoryLandslide  Category = "landslide"
	CategoryRoadblock  Category = "roadblock"
	CategoryMedical    Category = "medical"
	CategoryFire       Category = "fire"
	CategoryEarthquake Category = "earthquake"
	CategoryCyclone    Category = "cyclone"
	CategoryOther      Category = "other"
)

// Categories lists every known category
var Categories = []Category{
	CategoryFlood,
	CategoryLandslide,
	CategoryRoadblock,
	CategoryMedical,
	CategoryFire,
	CategoryEarthquake,
	CategoryCyclone,
	CategoryOther,
}

// Valid reports whether c is a known category
func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// NormalizeCategory case-folds s and maps anything unknown to CategoryOther
func NormalizeCategory(s string) Category {
	c := Category(strings.ToLower(s))
	if c.Valid() {
		return c
	}
	return CategoryOther
}

// Severity bounds
const (
	MinSeverity = 1
	MaxSeverity = 4
)

// ValidSeverity reports whether s is in 1..4
func ValidSeverity(s int) bool {
	return s >= MinSeverity && s <= MaxSeverity
}

// Status is the lifecycle state of a report
type Status string

// Lifecycle statuses
const (
	StatusPending      Status = "pending"
	StatusAcknowledged Status = "acknowledged"
	StatusInProgress   Status = "in_progress"
	StatusResolved     Status = "resolved"
	StatusFalseAlarm   Status = "false_alarm"
)

// Rank orders statuses along the lifecycle. Unknown statuses rank -1.
func (s Status) Rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusAcknowledged:
		return 1
	case StatusInProgress:
		return 2
	case StatusResolved, StatusFalseAlarm:
		return 3
	}
	return -1
}

// Valid reports whether s is one of the defined statuses
func (s Status) Valid() bool {
	return s.Rank() >= 0
}

// Terminal reports whether no further transitions are allowed out of s
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusFalseAlarm
}

// ResponseType classifies an audit entry on a report
type ResponseType string

// Response types
const (
	ResponseAcknowledgment ResponseType = "acknowledgment"
	ResponseUpdate         ResponseType = "update"
	ResponseResolution     ResponseType = "resolution"
	ResponseEscalation     ResponseType = "escalation"
)

// Coordinates is a latitude/longitude pair
type Coordinates struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

// LocationHint is the best-effort result of location resolution
type LocationHint struct {
	State    string `json:"state" bson:"state"`
	District string `json:"district" bson:"district"`
	Address  string `json:"address,omitempty" bson:"address,omitempty"`
}

// EmergencyReport holds the structure for the emergency_reports collection in mongo
type EmergencyReport struct {
	ReportID       string                 `json:"report_id" bson:"report_id"`
	Channel        Channel                `json:"channel" bson:"channel"`
	Language       string                 `json:"language" bson:"language"`
	PhoneNumber    string                 `json:"phone_number" bson:"phone_number"`
	Category       Category               `json:"category" bson:"category"`
	Severity       int                    `json:"severity" bson:"severity"`
	Description    string                 `json:"description" bson:"description"`
	Coordinates    *Coordinates           `json:"coordinates,omitempty" bson:"coordinates,omitempty"`
	Address        string                 `json:"address,omitempty" bson:"address,omitempty"`
	District       string                 `json:"district,omitempty" bson:"district,omitempty"`
	State          string                 `json:"state,omitempty" bson:"state,omitempty"`
	Status         Status                 `json:"status" bson:"status"`
	AssignedTo     *string                `json:"assigned_to" bson:"assigned_to"`
	CreatedAt      time.Time              `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at" bson:"updated_at"`
	AcknowledgedAt *time.Time             `json:"acknowledged_at" bson:"acknowledged_at"`
	ResolvedAt     *time.Time             `json:"resolved_at" bson:"resolved_at"`
	EscalatedAt    *time.Time             `json:"escalated_at,omitempty" bson:"escalated_at,omitempty"`
	RawData        map[string]interface{} `json:"raw_data,omitempty" bson:"raw_data,omitempty"`
	FollowUp       bool                   `json:"follow_up_required" bson:"follow_up_required"`
	PriorityScore  float64                `json:"priority_score" bson:"priority_score"`
	Responses      []EmergencyResponse    `json:"-" bson:"responses"`
}

// EmergencyResponse is an append-only audit entry attached to a report
type EmergencyResponse struct {
	ID         string       `json:"id" bson:"id"`
	Responder  string       `json:"responder" bson:"responder"`
	Type       ResponseType `json:"response_type" bson:"response_type"`
	Message    string       `json:"message" bson:"message"`
	FromStatus Status       `json:"from_status,omitempty" bson:"from_status,omitempty"`
	ToStatus   Status       `json:"to_status,omitempty" bson:"to_status,omitempty"`
	CreatedAt  time.Time    `json:"created_at" bson:"created_at"`
}

// ReportDraft is what a channel parser hands to the lifecycle manager
type ReportDraft struct {
	Channel     Channel
	Language    string
	PhoneNumber string
	Category    Category
	Severity    int
	Description string
	Coordinates *Coordinates
	Location    *LocationHint
	RawData     map[string]interface{}
}
