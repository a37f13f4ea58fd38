package bus

import (
	"github.com/relaybus/eventbus/internal/bus/ids"
)

// Message is the unit of dispatch. A Message is created once per emission
// and copied before each local delivery so concurrent handlers never share
// mutable state.
type Message struct {
	// ID uniquely identifies this emission for logging/tracing
	// correlation. It plays no role in dispatch.
	ID string

	// Address is the destination the message was sent or published to.
	Address string

	// ReplyAddress, if set, is the synthetic address a responder should
	// send its reply to.
	ReplyAddress string

	// Headers carries the DeliveryOptions headers for this emission.
	Headers Headers

	// Body is the encoded payload.
	Body []byte

	// CodecName names the codec that produced Body, so a receiver (or a
	// reply) can round-trip it without re-negotiating a codec.
	CodecName string

	// Send is true for point-to-point emissions and false for publish
	// fan-out.
	Send bool

	// LocalOnly forces delivery to stay within this process even if a
	// bridge is registered for Address.
	LocalOnly bool

	// FromLocal marks a message that originated in this process, as
	// opposed to one relayed in by a bridge.
	FromLocal bool
}

// replyFailureBody is the JSON body a RECIPIENT_FAILURE (or other
// non-NO_HANDLERS/TIMEOUT) reply carries. It travels in Message.Body like
// any other reply payload, marked by failureHeaderKey in Message.Headers,
// so it round-trips through RelayInbound and a bridge unchanged.
type replyFailureBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// newMessage constructs a Message with a fresh ID.
func newMessage(address string, send bool, headers Headers, body []byte, codecName string) *Message {
	return &Message{
		ID:        ids.CreateULID(),
		Address:   address,
		Headers:   headers,
		Body:      body,
		CodecName: codecName,
		Send:      send,
		FromLocal: true,
	}
}

// copyFor returns an independent copy of m suitable for handing to exactly
// one holder, so mutating the copy's headers never affects another
// recipient's view.
func (m *Message) copyFor() *Message {
	cp := *m
	cp.Headers = m.Headers.Clone()
	if m.Body != nil {
		cp.Body = make([]byte, len(m.Body))
		copy(cp.Body, m.Body)
	}
	return &cp
}
