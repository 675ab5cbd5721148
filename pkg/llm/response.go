package llm

import "errors"

// ErrQueryRequired is returned for chat requests without a query.
var ErrQueryRequired = errors.New("query is required")

// ErrorResponse is the JSON body of synchronous relay errors and the payload
// of the diagnostic frame sent when the upstream fails mid-request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SessionResponse is the body of GET /api/new-session.
type SessionResponse struct {
	ClientID string `json:"clientId"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}
