package model

// HubStats is a point-in-time snapshot of the subscriber registry, exposed by
// the health endpoint.
type HubStats struct {
	TotalInstances   int `json:"total_instances"`
	TotalSubscribers int `json:"total_subscribers"`
}
