package monitor

import "time"

type Status struct {
	Online     bool                       `json:"online"`
	Components map[string]ComponentStatus `json:"components"`
	LastCheck  time.Time                  `json:"last_check"`
}

type ComponentStatus struct {
	Online bool   `json:"online"`
	Error  string `json:"error,omitempty"`
}
