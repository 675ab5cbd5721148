package sse

import "strings"

// ParseBlock parses one event block, without its delimiter, into an Event.
//
// Lines are split on "\n" with a trailing "\r" removed and empty lines are
// skipped. Field names are matched case-insensitively. The last "event:" line
// wins. Each "data:" line contributes its value with at most one leading space
// or tab removed, and data lines are joined with "\n". Comments and unknown
// fields are ignored.
func ParseBlock(block string) Event {
	var ev Event
	var data []string

	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}

		field, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		switch strings.ToLower(field) {
		case "event":
			ev.Type = strings.TrimSpace(value)
		case "data":
			data = append(data, trimLeadingBlank(value))
		case "id":
			ev.ID = strings.TrimSpace(value)
		}
	}

	ev.Data = strings.Join(data, "\n")
	return ev
}

func trimLeadingBlank(value string) string {
	if value != "" && (value[0] == ' ' || value[0] == '\t') {
		return value[1:]
	}
	return value
}
