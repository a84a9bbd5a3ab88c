package chat

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Message is one rendered turn of the conversation. Time is unix milliseconds.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
	Time int64  `json:"time"`
}

// NewMessage stamps a message with the supplied clock reading.
func NewMessage(role Role, text string, at time.Time) Message {
	return Message{Role: role, Text: text, Time: at.UnixMilli()}
}

// At returns the message timestamp as a local time value.
func (m Message) At() time.Time {
	return time.UnixMilli(m.Time)
}
