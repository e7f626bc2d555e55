package models

import (
	"fmt"
	"strconv"
)

// ClientType identifies the kind of connection a client record describes
type ClientType string

const (
	ClientTypeATC      ClientType = "ATC"   // ATC or observer connection
	ClientTypePilot    ClientType = "PILOT" // Pilot connection
	ClientTypeFollowMe ClientType = "FOLME" // Follow Me car connection
)

// ClientFields is the positional schema of a !CLIENTS line
var ClientFields = []string{
	"callsign",
	"vid",
	"name",
	"client_type",
	"frequency",
	"latitude",
	"longitude",
	"altitude",
	"groundspeed",
	"fp_aircraft",
	"fp_cruise_speed",
	"fp_departure",
	"fp_cruise_level",
	"fp_destination",
	"server",
	"protocol",
	"combined_rating",
	"transponder_code",
	"facility_type",
	"visual_range",
	"fp_revision",
	"fp_flight_rules",
	"fp_departure_time",
	"fp_actual_departure_time",
	"fp_endurance_hours",
	"fp_endurance_mins",
	"fp_eet_hours",
	"fp_eet_mins",
	"fp_alternate",
	"fp_other_info",
	"fp_route",
	"unused0",
	"unused1",
	"d1",
	"d6",
	"atis",
	"atis_time",
	"connection_time",
	"software_name",
	"software_version",
	"administrative_version",
	"atc_pilot_version",
	"fp_second_alternate",
	"fp_type_of_flight",
	"fp_persons_on_board",
	"heading",
	"on_ground",
	"simulator",
	"plane",
}

// ClientRecord is one !CLIENTS line of the feed
// All fields are kept as the raw strings found on the wire
type ClientRecord struct {
	Callsign              string // Natural key, unique within a snapshot
	VID                   string // Network user id
	Name                  string // Display name
	ClientType            string // ATC, PILOT or FOLME
	Frequency             string // "nnn.nnn", ATC only
	Latitude              string
	Longitude             string
	Altitude              string
	GroundSpeed           string
	FPAircraft            string
	FPCruiseSpeed         string
	FPDeparture           string
	FPCruiseLevel         string
	FPDestination         string
	Server                string // Server ident the client is connected to
	Protocol              string
	CombinedRating        string
	TransponderCode       string
	FacilityType          string // See FacilityTypes
	VisualRange           string
	FPRevision            string
	FPFlightRules         string
	FPDepartureTime       string
	FPActualDepartureTime string
	FPEnduranceHours      string
	FPEnduranceMins       string
	FPEETHours            string
	FPEETMins             string
	FPAlternate           string
	FPOtherInfo           string
	FPRoute               string
	Unused0               string
	Unused1               string
	D1                    string // Undocumented, present in the live feed
	D6                    string // Undocumented, present in the live feed
	ATIS                  string
	ATISTime              string
	ConnectionTime        string
	SoftwareName          string
	SoftwareVersion       string
	AdministrativeVersion string // See AdministrativeRatings
	ATCPilotVersion       string // See PilotRatings for pilots
	FPSecondAlternate     string
	FPTypeOfFlight        string
	FPPersonsOnBoard      string
	Heading               string
	OnGround              string
	Simulator             string // See Simulators
	Plane                 string
}

// fields returns pointers to every positional field, in ClientFields order
func (c *ClientRecord) fields() []*string {
	return []*string{
		&c.Callsign, &c.VID, &c.Name, &c.ClientType, &c.Frequency,
		&c.Latitude, &c.Longitude, &c.Altitude, &c.GroundSpeed,
		&c.FPAircraft, &c.FPCruiseSpeed, &c.FPDeparture, &c.FPCruiseLevel, &c.FPDestination,
		&c.Server, &c.Protocol, &c.CombinedRating, &c.TransponderCode, &c.FacilityType,
		&c.VisualRange, &c.FPRevision, &c.FPFlightRules, &c.FPDepartureTime, &c.FPActualDepartureTime,
		&c.FPEnduranceHours, &c.FPEnduranceMins, &c.FPEETHours, &c.FPEETMins,
		&c.FPAlternate, &c.FPOtherInfo, &c.FPRoute, &c.Unused0, &c.Unused1, &c.D1, &c.D6,
		&c.ATIS, &c.ATISTime, &c.ConnectionTime, &c.SoftwareName, &c.SoftwareVersion,
		&c.AdministrativeVersion, &c.ATCPilotVersion, &c.FPSecondAlternate, &c.FPTypeOfFlight,
		&c.FPPersonsOnBoard, &c.Heading, &c.OnGround, &c.Simulator, &c.Plane,
	}
}

// NewClientRecord zips values against ClientFields.
// Values beyond the schema are ignored, missing trailing values stay empty.
func NewClientRecord(values []string) *ClientRecord {
	c := &ClientRecord{}
	for i, f := range c.fields() {
		if i >= len(values) {
			break
		}
		*f = values[i]
	}
	return c
}

// Values returns the positional fields in schema order
func (c *ClientRecord) Values() []string {
	ptrs := c.fields()
	values := make([]string, len(ptrs))
	for i, f := range ptrs {
		values[i] = *f
	}
	return values
}

// Field returns a field by its schema name
func (c *ClientRecord) Field(name string) (string, bool) {
	for i, n := range ClientFields {
		if n == name {
			return *c.fields()[i], true
		}
	}
	return "", false
}

// IsATC reports whether the record is a controller or observer
func (c *ClientRecord) IsATC() bool {
	return ClientType(c.ClientType) == ClientTypeATC
}

// Position parses the record's coordinates
func (c *ClientRecord) Position() (Position, error) {
	lat, err := strconv.ParseFloat(c.Latitude, 64)
	if err != nil {
		return Position{}, fmt.Errorf("invalid latitude %q for %s: %w", c.Latitude, c.Callsign, err)
	}
	lon, err := strconv.ParseFloat(c.Longitude, 64)
	if err != nil {
		return Position{}, fmt.Errorf("invalid longitude %q for %s: %w", c.Longitude, c.Callsign, err)
	}
	return Position{Latitude: lat, Longitude: lon}, nil
}

// ClientTypeName returns the description of the record's client type
func (c *ClientRecord) ClientTypeName() string {
	return lookup(ClientTypes, c.ClientType)
}

// FacilityName returns the description of the record's facility type
func (c *ClientRecord) FacilityName() string {
	return lookup(FacilityTypes, c.FacilityType)
}

// SimulatorName returns the description of the record's simulator code
func (c *ClientRecord) SimulatorName() string {
	return lookup(Simulators, c.Simulator)
}

// AdministrativeRatingName returns the description of the record's administrative rating
func (c *ClientRecord) AdministrativeRatingName() string {
	return lookup(AdministrativeRatings, c.AdministrativeVersion)
}

// PilotRatingName returns the pilot rating description, empty for non pilots
func (c *ClientRecord) PilotRatingName() string {
	if ClientType(c.ClientType) != ClientTypePilot {
		return ""
	}
	return lookup(PilotRatings, c.ATCPilotVersion)
}

// Map returns the record keyed by schema field name
func (c *ClientRecord) Map() map[string]string {
	m := make(map[string]string, len(ClientFields))
	for i, v := range c.Values() {
		m[ClientFields[i]] = v
	}
	return m
}
