package llm

import "strings"

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Query    string    `json:"query"`
	Messages []Message `json:"messages,omitempty"`
}

// Validate reports the first problem with the request, if any.
func (r *ChatRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return ErrQueryRequired
	}
	return nil
}
