package models

import "time"

// Message roles. The conversation log accepts only these.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ValidRole reports whether role is one of the accepted message roles.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAssistant
}

// Message is one turn in a conversation session. Messages are append-only:
// once saved they are never mutated.
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Citations []Citation `json:"citations,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}
