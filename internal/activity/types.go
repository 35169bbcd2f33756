package activity

import "time"

// Record is a single action taken on a plugin or theme.
type Record struct {
	Timestamp  time.Time              `json:"timestamp"`
	Subject    string                 `json:"subject"`
	ActionType string                 `json:"actionType"`
	Reason     string                 `json:"reason"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// IsFailure reports whether the record describes a failed action.
func (r Record) IsFailure() bool {
	switch r.ActionType {
	case ActionPluginFailed, ActionPluginRejected, ActionThemeFailed, ActionHookFailed:
		return true
	}
	return false
}
