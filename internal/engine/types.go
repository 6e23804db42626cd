package engine

// Request is the shape every backend receives: a fixed system instruction,
// the user's payload, and a sampling temperature.
type Request struct {
	SystemInstruction string
	Payload           string
	Temperature       float64
}

// Response carries the backend's primary text field. Text may be empty.
type Response struct {
	Text string
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Messages renders the request as a system + user chat exchange. The system
// message is omitted when no instruction is set.
func (r Request) Messages() []Message {
	msgs := make([]Message, 0, 2)
	if r.SystemInstruction != "" {
		msgs = append(msgs, Message{Role: "system", Content: r.SystemInstruction})
	}
	return append(msgs, Message{Role: "user", Content: r.Payload})
}
