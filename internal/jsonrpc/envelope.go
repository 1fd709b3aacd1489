package jsonrpc

import "encoding/json"

// Envelope is one decoded unit read from the wire. The concrete type is one
// of *EnvelopeRequest, *EnvelopeNotification, *EnvelopeResponse or
// *EnvelopeResponseError; consumers switch on it exhaustively.
type Envelope interface {
	isEnvelope()
}

// EnvelopeRequest is a peer-initiated call that expects a response.
type EnvelopeRequest struct {
	ID     *RequestID
	Method string
	Params json.RawMessage
}

// EnvelopeNotification is a one-way message.
type EnvelopeNotification struct {
	Method string
	Params json.RawMessage
}

// EnvelopeResponse is a successful reply to one of our requests.
type EnvelopeResponse struct {
	ID     *RequestID
	Result json.RawMessage
}

// EnvelopeResponseError is a failed reply to one of our requests.
type EnvelopeResponseError struct {
	ID    *RequestID
	Error *Error
}

func (*EnvelopeRequest) isEnvelope()       {}
func (*EnvelopeNotification) isEnvelope()  {}
func (*EnvelopeResponse) isEnvelope()      {}
func (*EnvelopeResponseError) isEnvelope() {}

// Response converts the envelope back into a wire response.
func (e *EnvelopeResponse) Response() *Response {
	return &Response{JSONRPCVersion: ProtocolVersion, Result: e.Result, ID: e.ID}
}

// Response converts the envelope back into a wire response.
func (e *EnvelopeResponseError) Response() *Response {
	return &Response{JSONRPCVersion: ProtocolVersion, Error: e.Error, ID: e.ID}
}

// Decode parses and classifies one raw wire message. Any error means the
// message is malformed; nothing about the stream itself is implied.
func Decode(msg Message) (Envelope, error) {
	var m AnyMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, err
	}
	return Classify(&m), nil
}

// Classify maps a validated AnyMessage to its envelope variant.
func Classify(m *AnyMessage) Envelope {
	switch {
	case m.Method != "" && m.ID.IsNil():
		return &EnvelopeNotification{Method: m.Method, Params: m.Params}
	case m.Method != "":
		return &EnvelopeRequest{ID: m.ID, Method: m.Method, Params: m.Params}
	case m.Error != nil:
		return &EnvelopeResponseError{ID: m.ID, Error: m.Error}
	default:
		return &EnvelopeResponse{ID: m.ID, Result: m.Result}
	}
}
