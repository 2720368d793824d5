package broadcast

import (
	"bytes"
	"encoding/hex"

	"github.com/ellemouton/lngossip/lnwire"
)

// Key is the deduplication key of a queued message. Only the latest message
// enqueued for a given message type and key is ever handed out to readers.
type Key string

// ChannelKey returns the deduplication key used for channel level
// broadcasts: the serialized channel reference.
func ChannelKey(ref lnwire.ChannelRef) Key {
	b := ref.Bytes()
	return Key(b[:])
}

// NodeKey returns the deduplication key used for node announcements: the
// compressed public key of the node.
func NodeKey(nodeID [33]byte) Key {
	return Key(nodeID[:])
}

// String returns the hex encoding of the key.
func (k Key) String() string {
	return hex.EncodeToString([]byte(k))
}

// QueuedMessage is a single entry of the broadcast log.
type QueuedMessage struct {
	// Type is the wire type of the payload.
	Type lnwire.MessageType

	// Key is the deduplication key of the entry.
	Key Key

	// Payload is the raw wire message, forwarded unchanged.
	Payload []byte

	// Index is the position of the entry in the log.
	Index uint64
}

// slot identifies the broadcast slot shared by all messages of one type and
// key.
type slot struct {
	msgType lnwire.MessageType
	key     Key
}

// Log is an append-only log of outbound gossip. Enqueueing a message for a
// slot that already holds one retires the older entry and appends the new one
// at the tail, so the log position keeps growing and reader cursors only ever
// move forward.
//
// NOTE: Log does no locking of its own. It must only ever be driven from a
// single goroutine.
type Log struct {
	// entries is indexed by log position. Retired entries are nil.
	entries []*QueuedMessage

	// live maps each slot to the position of its current entry.
	live map[slot]uint64
}

// NewLog creates an empty broadcast log.
func NewLog() *Log {
	return &Log{
		live: make(map[slot]uint64),
	}
}

// Enqueue appends payload to the log under the given type and key, retiring
// the previous entry of the same slot if there is one. The position of the new
// entry is returned.
func (l *Log) Enqueue(msgType lnwire.MessageType, key Key,
	payload []byte) uint64 {

	s := slot{msgType: msgType, key: key}
	if prev, ok := l.live[s]; ok {
		log.Tracef("Retiring %v entry %d for key %v", msgType, prev,
			key)

		l.entries[prev] = nil
	}

	idx := uint64(len(l.entries))
	l.entries = append(l.entries, &QueuedMessage{
		Type:    msgType,
		Key:     key,
		Payload: bytes.Clone(payload),
		Index:   idx,
	})
	l.live[s] = idx

	log.Debugf("Queued %v at position %d for key %v", msgType, idx, key)

	return idx
}

// NextAfter returns the first live entry at or after cursor together with the
// cursor that follows it. If there is no such entry, false is returned along
// with the cursor a reader should resume from.
func (l *Log) NextAfter(cursor uint64) (*QueuedMessage, uint64, bool) {
	end := uint64(len(l.entries))
	for i := cursor; i < end; i++ {
		if msg := l.entries[i]; msg != nil {
			return msg, i + 1, true
		}
	}

	if cursor > end {
		return nil, cursor, false
	}

	return nil, end, false
}

// Len returns the number of positions handed out so far, retired entries
// included.
func (l *Log) Len() uint64 {
	return uint64(len(l.entries))
}

// NumLive returns the number of slots holding a message.
func (l *Log) NumLive() int {
	return len(l.live)
}

// Live returns the current entry of every slot in log order.
func (l *Log) Live() []QueuedMessage {
	msgs := make([]QueuedMessage, 0, len(l.live))
	for _, msg := range l.entries {
		if msg != nil {
			msgs = append(msgs, *msg)
		}
	}

	return msgs
}

// Lookup returns the live entry for the given type and key, if any.
func (l *Log) Lookup(msgType lnwire.MessageType, key Key) (*QueuedMessage,
	bool) {

	idx, ok := l.live[slot{msgType: msgType, key: key}]
	if !ok {
		return nil, false
	}

	return l.entries[idx], true
}
