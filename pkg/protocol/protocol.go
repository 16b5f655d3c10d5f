// Package protocol defines the messages exchanged between the page, the
// relay, the approval surface and the orchestrator. Messages are JSON
// objects discriminated by their type field.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Page channel message types.
const (
	TypeRequest  = "CODECRYPTO_REQUEST"
	TypeResponse = "CODECRYPTO_RESPONSE"
	TypeEvent    = "CODECRYPTO_EVENT"

	TypeAnnounceProvider = "eip6963:announceProvider"
	TypeRequestProvider  = "eip6963:requestProvider"
)

// Orchestrator message types.
const (
	TypeRPC             = "CODECRYPTO_RPC"
	TypeConnectResponse = "CONNECT_RESPONSE"
	TypeSignResponse    = "SIGN_RESPONSE"
	TypeAccountChanged  = "ACCOUNT_CHANGED"
	TypeChainChanged    = "CHAIN_CHANGED"
	TypeWalletSetup     = "WALLET_SETUP"
	TypeListWindows     = "LIST_WINDOWS"
	TypeWindowOpen      = "WINDOW_OPEN"
	TypeWindowClose     = "WINDOW_CLOSE"
)

// PageMessage is any message posted on the page channel. Only the fields
// relevant to Type are set.
type PageMessage struct {
	Type string `json:"type"`

	// Request and response correlation id.
	ID     uint64          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`

	EventName string          `json:"eventName,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`

	Detail *ProviderDetail `json:"detail,omitempty"`
}

// ProviderInfo is the EIP-6963 provider metadata.
type ProviderInfo struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
	Icon string `json:"icon"`
	RDNS string `json:"rdns"`
}

type ProviderDetail struct {
	Info ProviderInfo `json:"info"`
}

func NewRequest(id uint64, method string, params json.RawMessage) PageMessage {
	if len(params) <= 0 || string(params) == "null" {
		params = json.RawMessage("[]")
	}
	return PageMessage{Type: TypeRequest, ID: id, Method: method, Params: params}
}

func NewResponse(id uint64, result json.RawMessage, err string) PageMessage {
	return PageMessage{Type: TypeResponse, ID: id, Result: result, Error: err}
}

func NewEvent(name string, data json.RawMessage) PageMessage {
	return PageMessage{Type: TypeEvent, EventName: name, Data: data}
}

// Message is any message sent to or by the orchestrator.
type Message struct {
	Type string `json:"type"`

	// CODECRYPTO_RPC
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`

	// CONNECT_RESPONSE
	RequestID uint64 `json:"requestId,omitempty"`
	Account   string `json:"account,omitempty"`
	// SIGN_RESPONSE
	ApprovalID uint64 `json:"approvalId,omitempty"`
	Success    bool   `json:"success,omitempty"`
	Error      string `json:"error,omitempty"`

	// ACCOUNT_CHANGED
	AccountIndex *int `json:"accountIndex,omitempty"`
	// CHAIN_CHANGED
	ChainId string `json:"chainId,omitempty"`

	// WALLET_SETUP
	Secret string `json:"secret,omitempty"`
	Count  int    `json:"count,omitempty"`

	// WINDOW_OPEN, WINDOW_CLOSE
	WindowID string          `json:"windowId,omitempty"`
	Kind     string          `json:"kind,omitempty"`
	Request  json.RawMessage `json:"request,omitempty"`

	// CODECRYPTO_EVENT pushed to relays
	EventName string          `json:"eventName,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Reply is the answer to any orchestrator message: RPC calls carry a result
// or an error, the other messages report success.
type Reply struct {
	Result  json.RawMessage `json:"result"`
	Error   *string         `json:"error"`
	Success bool            `json:"success,omitempty"`
}

// Err returns the reply error as a Go error, or nil.
func (r Reply) Err() error {
	if r.Error == nil || *r.Error == "" {
		return nil
	}
	return RemoteError(*r.Error)
}

func NewResultReply(result interface{}) (Reply, error) {
	buf, err := json.Marshal(result)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Result: buf, Success: true}, nil
}

func NewErrorReply(err error) Reply {
	msg := err.Error()
	return Reply{Result: json.RawMessage("null"), Error: &msg}
}

// RemoteError is an error message received from the other end.
type RemoteError string

func (e RemoteError) Error() string {
	return string(e)
}

// Frame wraps every websocket message. Requests carry a sequence number that
// the reply echoes; pushes have a zero sequence.
type Frame struct {
	Seq   uint64          `json:"seq,omitempty"`
	Reply bool            `json:"reply,omitempty"`
	Body  json.RawMessage `json:"body"`
}

func NewFrame(seq uint64, reply bool, body interface{}) (Frame, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to encode frame body: %w", err)
	}
	return Frame{Seq: seq, Reply: reply, Body: buf}, nil
}

// Decode decodes the frame body into v.
func (f Frame) Decode(v interface{}) error {
	if err := json.Unmarshal(f.Body, v); err != nil {
		return fmt.Errorf("failed to decode frame body: %w", err)
	}
	return nil
}
