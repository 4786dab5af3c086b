package websocket

import (
	"github.com/gorilla/websocket"

	"github.com/satriahrh/tractrelay/domain/entities"
)

// WriteData is one queued websocket write.
type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// toWriteData maps a wire message onto a websocket frame type.
func toWriteData(msg entities.WireMessage) WriteData {
	if msg.Kind == entities.MessageBinary {
		return WriteData{Type: websocket.BinaryMessage, Payload: msg.Payload}
	}
	return WriteData{Type: websocket.TextMessage, Payload: msg.Payload}
}

// fromFrame maps a received websocket frame back to a wire message. ok is
// false for control and unknown frame types.
func fromFrame(messageType int, payload []byte) (msg entities.WireMessage, ok bool) {
	switch messageType {
	case websocket.TextMessage:
		return entities.TextMessage(string(payload)), true
	case websocket.BinaryMessage:
		return entities.BinaryMessage(payload), true
	default:
		return entities.WireMessage{}, false
	}
}
