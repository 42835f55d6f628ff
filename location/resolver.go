package location

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/linesmerrill/disaster-intake-api/models"
)

// Bounding box accepted for reported coordinates
const (
	MinLat = 6.0
	MaxLat = 37.0
	MinLng = 68.0
	MaxLng = 97.0
)

const (
	unknownDistrict = "Unknown"
	notSpecified    = "Location not specified"
)

// Geocoder turns coordinates into a place name
type Geocoder interface {
	Reverse(ctx context.Context, lat, lng float64) (*models.LocationHint, error)
}

// Resolver derives a best-effort state and district for a report. A nil
// result is never an error, it only means nothing matched.
type Resolver struct {
	geocoder Geocoder
}

// NewResolver returns a Resolver. geocoder may be nil, in which case
// ResolveByCoordinates always misses.
func NewResolver(geocoder Geocoder) *Resolver {
	return &Resolver{geocoder: geocoder}
}

// ResolveByPhone looks up the STD code of an Indian number. Numbers with a
// foreign country code never match.
func (r *Resolver) ResolveByPhone(number string) *models.LocationHint {
	digits, ok := nationalNumber(number)
	if !ok {
		return nil
	}
	for n := 4; n >= 1; n-- {
		if len(digits) < n {
			continue
		}
		if p, found := areaCodes[digits[:n]]; found {
			return &models.LocationHint{State: p.state, District: p.district}
		}
	}
	return nil
}

// ResolveByAddress matches known state names, then that state's districts,
// inside free text
func (r *Resolver) ResolveByAddress(text string) *models.LocationHint {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	lower := strings.ToLower(text)
	for _, s := range stateDistricts {
		if !strings.Contains(lower, s.state) {
			continue
		}
		// a Caser is stateful, so each lookup gets its own
		title := cases.Title(language.English)
		hint := &models.LocationHint{State: title.String(s.state), District: unknownDistrict}
		for _, d := range s.districts {
			if strings.Contains(lower, d) {
				hint.District = title.String(d)
				break
			}
		}
		return hint
	}
	return nil
}

// ValidateCoordinates reports whether lat/lng fall inside the service area
func ValidateCoordinates(lat, lng float64) bool {
	return lat >= MinLat && lat <= MaxLat && lng >= MinLng && lng <= MaxLng
}

// ResolveByCoordinates reverse geocodes a point. Points outside the service
// area and any geocoder failure yield nil.
func (r *Resolver) ResolveByCoordinates(ctx context.Context, lat, lng float64) *models.LocationHint {
	if !ValidateCoordinates(lat, lng) || r.geocoder == nil {
		return nil
	}
	hint, err := r.geocoder.Reverse(ctx, lat, lng)
	if err != nil {
		zap.S().Warnw("reverse geocoding failed", "lat", lat, "lng", lng, "error", err)
		return nil
	}
	return hint
}

// Format renders a hint as "District, State"
func Format(h *models.LocationHint) string {
	if h == nil {
		return notSpecified
	}
	var parts []string
	if h.District != "" {
		parts = append(parts, h.District)
	}
	if h.State != "" {
		parts = append(parts, h.State)
	}
	if len(parts) == 0 {
		return notSpecified
	}
	return strings.Join(parts, ", ")
}

// Services describes who to call near a point
type Services struct {
	PoliceStation      string               `json:"police_station"`
	Hospital           string               `json:"hospital"`
	FireStation        string               `json:"fire_station"`
	DisasterManagement string               `json:"disaster_management"`
	EmergencyContact   string               `json:"emergency_contact"`
	Location           *models.LocationHint `json:"location,omitempty"`
}

// EmergencyServices returns the nearest-service labels for the district the
// point resolves to
func (r *Resolver) EmergencyServices(ctx context.Context, lat, lng float64) Services {
	hint := r.ResolveByCoordinates(ctx, lat, lng)
	district := unknownDistrict
	if hint != nil && hint.District != "" {
		district = hint.District
	}
	return Services{
		PoliceStation:      "Nearest Police Station - " + district,
		Hospital:           "Nearest Hospital - " + district,
		FireStation:        "Nearest Fire Station - " + district,
		DisasterManagement: "District Disaster Management Authority - " + district,
		EmergencyContact:   "100 (Police), 101 (Fire), 102 (Ambulance), 108 (Emergency)",
		Location:           hint,
	}
}
