package models

// ServerFields is the positional schema of a !SERVERS line
var ServerFields = []string{"ident", "address", "location", "name", "connections_allowed", "max_connections"}

// ServerRecord is one !SERVERS line of the feed
type ServerRecord struct {
	Ident              string `json:"ident"` // Natural key
	Address            string `json:"address"`
	Location           string `json:"location"`
	Name               string `json:"name"`
	ConnectionsAllowed string `json:"connections_allowed"`
	MaxConnections     string `json:"max_connections"`
}

// NewServerRecord zips values against ServerFields
func NewServerRecord(values []string) *ServerRecord {
	return &ServerRecord{
		Ident:              field(values, 0),
		Address:            field(values, 1),
		Location:           field(values, 2),
		Name:               field(values, 3),
		ConnectionsAllowed: field(values, 4),
		MaxConnections:     field(values, 5),
	}
}

// AirportFields is the positional schema of an !AIRPORTS line
var AirportFields = []string{"icao", "atis"}

// AirportRecord is one !AIRPORTS line of the feed
type AirportRecord struct {
	ICAO string `json:"icao"` // Natural key
	ATIS string `json:"atis"`
}

// NewAirportRecord zips values against AirportFields
func NewAirportRecord(values []string) *AirportRecord {
	return &AirportRecord{
		ICAO: field(values, 0),
		ATIS: field(values, 1),
	}
}

// field safely retrieves a positional value
func field(values []string, idx int) string {
	if idx < len(values) {
		return values[idx]
	}
	return ""
}
