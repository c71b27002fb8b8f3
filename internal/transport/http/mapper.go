package http

import (
	"github.com/vovakirdan/tensor-server/internal/core"
	"github.com/vovakirdan/tensor-server/internal/proto"
)

func outboundFromMessage(m core.Message) proto.ServerMessage {
	return proto.ServerMessage{
		MessageUUID: m.ID,
		AuthorUUID:  m.AuthorUUID,
		Data:        m.Body,
		Edited:      m.Edited,
		IsMentioned: m.IsMentioned,
	}
}

func joinNotice(uuid string) core.Message {
	body := proto.MentionToken(uuid) + " joined the server"
	return core.NewNotice(body, proto.ExtractMentions(body))
}

func leaveNotice(uuid string) core.Message {
	body := proto.MentionToken(uuid) + " disconnected from the server"
	return core.NewNotice(body, proto.ExtractMentions(body))
}
