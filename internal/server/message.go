package server

// Message is a non-state reply sent to a single websocket client, such as
// a rejected command. AppState snapshots are sent bare.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func NewMessage(msgType string, payload any) Message {
	return Message{Type: msgType, Payload: payload}
}

func errorMessage(err error) Message {
	return NewMessage("error", err.Error())
}
