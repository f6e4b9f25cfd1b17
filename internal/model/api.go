package model

import "encoding/json"

// CommandResponse is the HTTP body for a successful command: 200 for
// updates, 201 for creates.
type CommandResponse struct {
	Success  bool            `json:"success"`
	Result   json.RawMessage `json:"result,omitempty"`
	Warnings []GuardWarning  `json:"warnings,omitempty"`
}

// ErrorResponse is the HTTP body for every non-success outcome: guard
// failures (422), request errors (404/409), auth and tenant failures
// (401/400), and internal errors (500).
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
