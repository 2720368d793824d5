package lnwire

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// MessageType is the unique 2 byte big-endian integer that indicates the type
// of message on the wire. All messages have a very simple header which
// consists simply of 2-byte message type. We omit a length field, and checksum
// as the transport layer already provides those.
type MessageType uint16

// The currently defined gossip message types.
const (
	MsgChannelAnnouncement MessageType = 256
	MsgNodeAnnouncement    MessageType = 257
	MsgChannelUpdate       MessageType = 258
)

// String return the string representation of message type.
func (t MessageType) String() string {
	switch t {
	case MsgChannelAnnouncement:
		return "ChannelAnnouncement"
	case MsgNodeAnnouncement:
		return "NodeAnnouncement"
	case MsgChannelUpdate:
		return "ChannelUpdate"
	default:
		return fmt.Sprintf("<unknown %d>", uint16(t))
	}
}

// ErrUnknownMessage is returned when a message of a type we don't handle is
// read from the wire.
var ErrUnknownMessage = errors.New("unknown message type")

// Message is an interface that defines a gossip wire protocol message. The
// interface is general in order to allow implementing types full control over
// the representation of its data.
type Message interface {
	// Decode reads the bytes stream and converts it to the object.
	Decode(r io.Reader) error

	// Encode converts object to the bytes stream and write it into the
	// write buffer.
	Encode(w *bytes.Buffer) error

	// MsgType returns the integer uniquely identifying this message type
	// on the wire.
	MsgType() MessageType
}

// AnnounceSignedMsg is a gossip message that carries signatures over part of
// its own encoding.
type AnnounceSignedMsg interface {
	Message

	// DataToSign returns the portion of the encoding the signatures of
	// the message commit to.
	DataToSign() ([]byte, error)
}

// makeEmptyMessage creates a new empty message of the proper concrete type
// based on the passed message type.
func makeEmptyMessage(msgType MessageType) (Message, error) {
	switch msgType {
	case MsgChannelAnnouncement:
		return &ChannelAnnouncement{}, nil
	case MsgNodeAnnouncement:
		return &NodeAnnouncement{}, nil
	case MsgChannelUpdate:
		return &ChannelUpdate{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessage,
			uint16(msgType))
	}
}

// WriteMessage writes a gossip Message to w including the necessary header
// information and returns the number of bytes written.
func WriteMessage(w *bytes.Buffer, msg Message) (int, error) {
	start := w.Len()

	if err := WriteElement(w, msg.MsgType()); err != nil {
		return 0, err
	}
	if err := msg.Encode(w); err != nil {
		return 0, err
	}

	return w.Len() - start, nil
}

// Serialize returns the full wire encoding of msg, including its type.
func Serialize(msg Message) ([]byte, error) {
	var b bytes.Buffer
	if _, err := WriteMessage(&b, msg); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// ReadMessage reads, validates, and parses the next gossip Message from r.
func ReadMessage(r io.Reader) (Message, error) {
	var msgType MessageType
	if err := ReadElement(r, &msgType); err != nil {
		return nil, err
	}

	msg, err := makeEmptyMessage(msgType)
	if err != nil {
		return nil, err
	}

	if err := msg.Decode(r); err != nil {
		return nil, err
	}

	return msg, nil
}

// PeekType returns the message type of a raw wire message without decoding
// the rest of it.
func PeekType(raw []byte) (MessageType, error) {
	var msgType MessageType
	err := ReadElement(bytes.NewReader(raw), &msgType)

	return msgType, err
}
