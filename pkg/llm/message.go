// Package llm holds the JSON wire types exchanged between chat clients and
// the relay.
package llm

import "strings"

// Message is a prior conversation entry as sent by chat clients. Browser
// clients send the rendered answer as text or html rather than content.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content,omitempty"`
	Text    string `json:"text,omitempty"`
	HTML    string `json:"html,omitempty"`
}

// Body returns the first non-empty of content, text and html.
func (m Message) Body() string {
	switch {
	case m.Content != "":
		return m.Content
	case m.Text != "":
		return m.Text
	default:
		return m.HTML
	}
}

// Turn is a normalized conversation entry.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NormalizeMessages drops entries without a role or without any body and
// maps the rest to turns, keeping their order.
func NormalizeMessages(msgs []Message) []Turn {
	turns := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		role := strings.TrimSpace(m.Role)
		body := m.Body()
		if role == "" || body == "" {
			continue
		}
		turns = append(turns, Turn{Role: role, Content: body})
	}
	return turns
}
