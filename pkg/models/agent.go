package models

// PingRequest is sent once to the controller when the agent starts so the controller
// learns where to reach this agent instance.
type PingRequest struct {
	URL       string `json:"url"`
	ProjectID string `json:"projectId"`
	Token     string `json:"token"`
	Version   string `json:"version,omitempty"`
	Region    string `json:"region,omitempty"`
}
