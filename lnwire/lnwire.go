package lnwire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image/color"
	"io"
	"math"
)

// WriteElement is a one-stop shop to write the big endian representation of
// any element which is to be serialized for the wire protocol.
func WriteElement(w *bytes.Buffer, element interface{}) error {
	switch e := element.(type) {
	case MessageType:
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(e))
		w.Write(b[:])

	case uint16:
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], e)
		w.Write(b[:])

	case uint32:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], e)
		w.Write(b[:])

	case Sig:
		w.Write(e[:])

	case [33]byte:
		w.Write(e[:])

	case ChannelRef:
		b := e.Bytes()
		w.Write(b[:])

	case FeatureBits:
		if err := writeVarBytes(w, e); err != nil {
			return err
		}

	case RawAddrs:
		if err := writeVarBytes(w, e); err != nil {
			return err
		}

	case color.RGBA:
		w.Write([]byte{e.R, e.G, e.B})

	case NodeAlias:
		w.Write(e[:])

	case ExtraOpaqueData:
		w.Write(e)

	default:
		return fmt.Errorf("unknown type in WriteElement: %T", e)
	}

	return nil
}

// WriteElements is writes each element in the elements slice to the passed
// buffer using WriteElement.
func WriteElements(w *bytes.Buffer, elements ...interface{}) error {
	for _, element := range elements {
		if err := WriteElement(w, element); err != nil {
			return err
		}
	}

	return nil
}

// writeVarBytes writes a u16 length prefix followed by b.
func writeVarBytes(w *bytes.Buffer, b []byte) error {
	if len(b) > math.MaxUint16 {
		return fmt.Errorf("%d bytes exceeds u16 length prefix",
			len(b))
	}

	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(b)))
	w.Write(l[:])
	w.Write(b)

	return nil
}

// ReadElement is a one-stop utility function to deserialize any datastructure
// encoded using the serialization format of the wire protocol.
func ReadElement(r io.Reader, element interface{}) error {
	switch e := element.(type) {
	case *MessageType:
		var b [2]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = MessageType(binary.BigEndian.Uint16(b[:]))

	case *uint16:
		var b [2]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = binary.BigEndian.Uint16(b[:])

	case *uint32:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = binary.BigEndian.Uint32(b[:])

	case *Sig:
		if _, err := io.ReadFull(r, e[:]); err != nil {
			return err
		}

	case *[33]byte:
		if _, err := io.ReadFull(r, e[:]); err != nil {
			return err
		}

	case *ChannelRef:
		var b [ChannelRefLen]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = NewChannelRefFromBytes(b)

	case *FeatureBits:
		b, err := readVarBytes(r)
		if err != nil {
			return err
		}
		*e = b

	case *RawAddrs:
		b, err := readVarBytes(r)
		if err != nil {
			return err
		}
		*e = b

	case *color.RGBA:
		var b [3]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = color.RGBA{R: b[0], G: b[1], B: b[2]}

	case *NodeAlias:
		if _, err := io.ReadFull(r, e[:]); err != nil {
			return err
		}

	case *ExtraOpaqueData:
		b, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		if len(b) > 0 {
			*e = b
		}

	default:
		return fmt.Errorf("unknown type in ReadElement: %T", e)
	}

	return nil
}

// ReadElements deserializes a variable number of elements into the passed
// io.Reader, with each element being deserialized according to the
// ReadElement function.
func ReadElements(r io.Reader, elements ...interface{}) error {
	for _, element := range elements {
		if err := ReadElement(r, element); err != nil {
			return err
		}
	}

	return nil
}

// readVarBytes reads a u16 length prefixed byte slice.
func readVarBytes(r io.Reader) ([]byte, error) {
	var l [2]byte
	if _, err := io.ReadFull(r, l[:]); err != nil {
		return nil, err
	}

	b := make([]byte, binary.BigEndian.Uint16(l[:]))
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}

	return b, nil
}

// ExtraOpaqueData is the set of data that was appended to a message, some of
// which we may not actually know how to iterate or parse. By holding onto
// this data, we ensure that we're able to properly validate the set of
// signatures that cover these new fields, and ensure we're able to make
// upgrades to the network in a forwards compatible manner.
type ExtraOpaqueData []byte
