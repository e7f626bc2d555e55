package models

import "time"

// Refresh is the audit record of one successful live feed parse
type Refresh struct {
	SnapshotID string    `json:"snapshot_id"`
	Source     string    `json:"source"`
	FetchedAt  time.Time `json:"fetched_at"`
	Bytes      int       `json:"bytes"`
	Clients    int       `json:"clients"`
	ATC        int       `json:"atc"`
	Servers    int       `json:"servers"`
	Airports   int       `json:"airports"`
	Dropped    int       `json:"dropped"`
}
