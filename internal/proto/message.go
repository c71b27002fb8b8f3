package proto

import (
	"encoding/json"
	"errors"
	"fmt"
)

// AuthProtocol is the first Sec-WebSocket-Protocol value a client offers; the second is its token.
// The server echoes AuthProtocol back on success.
const AuthProtocol = "Authorization"

// MessageIDLength is the exact length of message ids and client uuids on the wire.
const MessageIDLength = 16

// ErrInvalidFrame is returned for any inbound payload that is not a valid ClientSend.
var ErrInvalidFrame = errors.New("invalid frame")

// Op is the operation a client requests.
type Op uint8

const (
	// OpNew posts a new message.
	OpNew Op = iota
	// OpEdit edits a previously posted message.
	OpEdit
	// OpDelete deletes a previously posted message.
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpNew:
		return "new"
	case OpEdit:
		return "edit"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// ClientSend is a decoded inbound frame.
type ClientSend struct {
	Op              Op
	AllowedMentions bool
	// MessageUUID is empty for OpNew and exactly MessageIDLength bytes otherwise.
	MessageUUID string
	Message     string
}

// inbound mirrors the wire shape; pointers distinguish missing fields from zero values.
type inbound struct {
	Op              *int    `json:"op"`
	AllowedMentions *bool   `json:"allowed_mentions"`
	MessageUUID     *string `json:"message_uuid"`
	Message         *string `json:"message"`
}

// DecodeClientSend parses an inbound WebSocket payload.
func DecodeClientSend(data []byte) (ClientSend, error) {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return ClientSend{}, fmt.Errorf("%w: %w", ErrInvalidFrame, err)
	}
	if in.Op == nil || in.AllowedMentions == nil || in.Message == nil {
		return ClientSend{}, fmt.Errorf("%w: missing required field", ErrInvalidFrame)
	}
	if *in.Op < int(OpNew) || *in.Op > int(OpDelete) {
		return ClientSend{}, fmt.Errorf("%w: unknown op %d", ErrInvalidFrame, *in.Op)
	}

	cs := ClientSend{
		Op:              Op(*in.Op),
		AllowedMentions: *in.AllowedMentions,
		Message:         *in.Message,
	}

	switch cs.Op {
	case OpNew:
		// any supplied id is ignored
	case OpEdit, OpDelete:
		if in.MessageUUID == nil {
			return ClientSend{}, fmt.Errorf("%w: %s requires message_uuid", ErrInvalidFrame, cs.Op)
		}
		id := truncate(*in.MessageUUID, MessageIDLength)
		if len(id) != MessageIDLength {
			return ClientSend{}, fmt.Errorf("%w: message_uuid must be %d characters", ErrInvalidFrame, MessageIDLength)
		}
		cs.MessageUUID = id
	}

	return cs, nil
}

// truncate keeps the first n characters of s.
func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// ServerMessage is the outbound payload delivered to a single recipient.
type ServerMessage struct {
	MessageUUID string `json:"message_uuid"`
	AuthorUUID  string `json:"author_uuid"`
	Data        string `json:"data"`
	Edited      bool   `json:"edited"`
	IsMentioned bool   `json:"is_mentioned"`
}

// ClientFrame is the wire form of an inbound frame as a client writes it.
type ClientFrame struct {
	Op              Op     `json:"op"`
	AllowedMentions bool   `json:"allowed_mentions"`
	MessageUUID     string `json:"message_uuid,omitempty"`
	Message         string `json:"message"`
}

// NewMessageFrame builds an OpNew frame carrying text.
func NewMessageFrame(text string) ClientFrame {
	return ClientFrame{Op: OpNew, AllowedMentions: true, Message: text}
}
