package core

import "github.com/vovakirdan/tensor-server/internal/utils"

// ServerAuthorUUID is the author of join and leave notices.
const ServerAuthorUUID = "000-000-000-000-"

// Message is the domain model for a relayed chat message.
type Message struct {
	ID         string
	AuthorUUID string
	Body       string
	Edited     bool
	// IsMentioned is set per recipient by Broadcast.
	IsMentioned bool
	// Mentions are the uuids referenced in Body.
	Mentions []string
}

// NewMessage builds a fresh, unedited message with a new id.
func NewMessage(authorUUID, body string, mentions []string) Message {
	return Message{
		ID:         utils.NewMessageID(),
		AuthorUUID: authorUUID,
		Body:       body,
		Mentions:   mentions,
	}
}

// NewNotice builds a system message authored by the server.
func NewNotice(body string, mentions []string) Message {
	return NewMessage(ServerAuthorUUID, body, mentions)
}

func (m Message) mentions(uuid string) bool {
	for _, u := range m.Mentions {
		if u == uuid {
			return true
		}
	}
	return false
}
