package entity

import "time"

// Hit is one view of an endpoint, recorded by the statistics collaborator.
type Hit struct {
	App       string    `json:"app"`
	URI       string    `json:"uri"`
	IP        string    `json:"ip"`
	Timestamp time.Time `json:"timestamp"`
}
