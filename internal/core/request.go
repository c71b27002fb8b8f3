package core

import "github.com/vovakirdan/tensor-server/internal/store"

// Group selects one of the gateway listeners.
type Group int

const (
	// GroupWebSocket is the chat gateway.
	GroupWebSocket Group = iota
	// GroupHTTP is the client listing gateway.
	GroupHTTP
)

func (g Group) String() string {
	switch g {
	case GroupWebSocket:
		return "websocket"
	case GroupHTTP:
		return "http"
	default:
		return "unknown"
	}
}

// RequestKind describes what a caller asks of the coordinator.
type RequestKind int

const (
	// RequestListenAddress asks for a gateway's listen address.
	RequestListenAddress RequestKind = iota
	// RequestValidateToken looks a token up in the directory.
	RequestValidateToken
	// RequestRegisterConnected inserts a sinkless live connection.
	RequestRegisterConnected
	// RequestAttachSink attaches the outbound sink of a live connection.
	RequestAttachSink
	// RequestDisconnect removes a live connection.
	RequestDisconnect
	// RequestSnapshot copies all live connections.
	RequestSnapshot
	// RequestListAllRegistered lists every registered client.
	RequestListAllRegistered
)

var requestKindNames = [...]string{
	RequestListenAddress:     "listen_address",
	RequestValidateToken:     "validate_token",
	RequestRegisterConnected: "register_connected",
	RequestAttachSink:        "attach_sink",
	RequestDisconnect:        "disconnect",
	RequestSnapshot:          "snapshot",
	RequestListAllRegistered: "list_all_registered",
}

func (k RequestKind) String() string {
	if k >= 0 && int(k) < len(requestKindNames) {
		return requestKindNames[k]
	}
	return "unknown"
}

// Request is a single coordinator operation. Every request carries its own
// reply channel, so concurrent callers never share a response path.
type Request struct {
	Kind   RequestKind
	Group  Group
	Token  string
	Addr   string
	ConnID string
	Client store.ClientRecord
	Sink   *Sink

	reply chan Response
}

// Response is the coordinator's answer to a Request.
type Response struct {
	Addr        string
	Client      *store.ClientRecord
	Applied     bool
	Connections []LiveConnection
	Clients     []store.ClientRecord
	Err         error
}
