package models

// SyncRequest is the body of a manual synchronization trigger.
type SyncRequest struct {
	// Symbols restricts the run to a subset of the configured symbols.
	Symbols []string `json:"symbols" validate:"omitempty,max=100,dive,required,max=32"`
	// Wait blocks the request until the run finishes. Defaults to true.
	Wait *bool `json:"wait" default:"true"`
}
