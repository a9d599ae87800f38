package ws

import "encoding/json"

// Supported subprotocols.
const (
	ProtocolTransportWS = "graphql-transport-ws"
	ProtocolLegacy      = "graphql-ws"
)

// Message types of both protocols.
const (
	msgConnectionInit      = "connection_init"
	msgConnectionAck       = "connection_ack"
	msgConnectionError     = "connection_error"
	msgConnectionTerminate = "connection_terminate"
	msgKeepAlive           = "ka"
	msgPing                = "ping"
	msgPong                = "pong"
	msgSubscribe           = "subscribe"
	msgStart               = "start"
	msgNext                = "next"
	msgData                = "data"
	msgError               = "error"
	msgComplete            = "complete"
	msgStop                = "stop"
)

// Close codes of graphql-transport-ws.
const (
	closeGoingAway         = 1001
	closeBadRequest        = 4400
	closeUnauthorized      = 4401
	closeForbidden         = 4403
	closeInitTimeout       = 4408
	closeSubscriberExists  = 4409
	closeTooManyInitialise = 4429
)

type message struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type initPayload struct {
	AuthToken string `json:"authToken"`
}

type operationPayload struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// dialect hides the naming differences between the two protocols.
type dialect struct {
	name      string
	start     string
	stop      string
	result    string
	keepAlive string
}

var dialects = map[string]dialect{
	ProtocolTransportWS: {name: ProtocolTransportWS, start: msgSubscribe, stop: msgComplete, result: msgNext, keepAlive: msgPing},
	ProtocolLegacy:      {name: ProtocolLegacy, start: msgStart, stop: msgStop, result: msgData, keepAlive: msgKeepAlive},
}

func (d dialect) legacy() bool { return d.name == ProtocolLegacy }
