// Package wire implements the JSON envelope codec for the toolmesh protocol.
//
// Every message on the channel is one JSON object, a tagged union of three
// kinds distinguished by field presence:
//
//	Request      {"jsonrpc":"2.0", "id":1, "method":"tools/call", "params":{...}}
//	Response     {"jsonrpc":"2.0", "id":1, "result":{...}}
//	             {"jsonrpc":"2.0", "id":1, "error":{"code":-32601, "message":"..."}}
//	Notification {"jsonrpc":"2.0", "method":"initialized", "params":{}}
//
// The codec is stateless: it classifies and (de)serializes envelopes and
// reports malformed input, leaving correlation and dispatch to the caller.
package wire

import (
	"encoding/json"
	"fmt"
)

// Version is the fixed jsonrpc field value carried by every envelope.
const Version = "2.0"

// Method names understood by the tool-execution service.
const (
	MethodInitialize    = "initialize"
	MethodInitialized   = "initialized"
	MethodPing          = "ping"
	MethodToolsList     = "tools/list"
	MethodToolsCall     = "tools/call"
	MethodToolsBatch    = "tools/batch"
	MethodContextGet    = "context.get"
	MethodContextUpdate = "context.update"
)

// Kind identifies which arm of the envelope union a message is.
type Kind int

const (
	// KindInvalid marks an envelope that fits no known shape.
	KindInvalid Kind = iota
	// KindRequest is a call expecting a correlated response.
	KindRequest
	// KindResponse answers a request by id with a result or an error.
	KindResponse
	// KindNotification is one-way: it has a method but no id.
	KindNotification
)

// String returns the kind name for logging.
func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	case KindNotification:
		return "notification"
	default:
		return "invalid"
	}
}

// Error is the error object carried by a failed Response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// Envelope is one protocol message. ID is a pointer so that its absence
// (notification) is distinguishable from id zero on the wire.
type Envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Kind classifies the envelope by field presence.
func (e *Envelope) Kind() Kind {
	switch {
	case e.ID != nil && e.Method != "":
		return KindRequest
	case e.ID != nil && (e.Result != nil || e.Error != nil):
		return KindResponse
	case e.ID == nil && e.Method != "":
		return KindNotification
	default:
		return KindInvalid
	}
}

// NewRequest builds a Request envelope. Params must already be marshaled.
func NewRequest(id int64, method string, params json.RawMessage) *Envelope {
	return &Envelope{JSONRPC: Version, ID: &id, Method: method, Params: params}
}

// NewNotification builds a Notification envelope (no id, no response expected).
func NewNotification(method string, params json.RawMessage) *Envelope {
	return &Envelope{JSONRPC: Version, Method: method, Params: params}
}

// Encode serializes an envelope for the channel.
func Encode(env *Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}

	return data, nil
}

// Decode parses one inbound message. It rejects payloads that are not valid
// JSON objects, carry the wrong jsonrpc version, or fit no envelope kind;
// the caller treats every rejection as a protocol violation.
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	if env.JSONRPC != Version {
		return nil, fmt.Errorf("unsupported jsonrpc version %q", env.JSONRPC)
	}

	if env.Kind() == KindInvalid {
		return nil, fmt.Errorf("envelope matches no known kind")
	}

	return &env, nil
}
