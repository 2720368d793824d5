package discovery

import (
	"fmt"

	"github.com/ellemouton/lngossip/lnwire"
)

// RejectReason classifies why a gossip message was not accepted.
type RejectReason uint8

const (
	// ReasonMalformed means the message could not be parsed.
	ReasonMalformed RejectReason = iota

	// ReasonStale means the message timestamp is not newer than the one
	// already stored for the same node or channel direction.
	ReasonStale

	// ReasonUnknownChannel means a channel update refers to a channel
	// that was never announced.
	ReasonUnknownChannel

	// ReasonUnknownNode means a node announcement arrived for a node that
	// no channel announcement introduced.
	ReasonUnknownNode

	// ReasonBadSignature means a signature did not verify.
	ReasonBadSignature

	// ReasonBadAddress means the address list of a node announcement
	// could not be decoded.
	ReasonBadAddress

	// ReasonUnknownFeature means the message requires a feature we don't
	// understand.
	ReasonUnknownFeature

	// ReasonInvalidFunding means the announced funding output does not
	// match the chain.
	ReasonInvalidFunding
)

// String returns a human readable name of the reason.
func (r RejectReason) String() string {
	switch r {
	case ReasonMalformed:
		return "malformed"
	case ReasonStale:
		return "stale"
	case ReasonUnknownChannel:
		return "unknown channel"
	case ReasonUnknownNode:
		return "unknown node"
	case ReasonBadSignature:
		return "bad signature"
	case ReasonBadAddress:
		return "bad address"
	case ReasonUnknownFeature:
		return "unknown required feature"
	case ReasonInvalidFunding:
		return "invalid funding output"
	default:
		return fmt.Sprintf("<unknown reason %d>", uint8(r))
	}
}

// ErrRejected is returned for every gossip message that was dropped. No state
// was changed by a rejected message.
type ErrRejected struct {
	// Reason is the class of the failure.
	Reason RejectReason

	// MsgType is the type of the rejected message, if it could be read.
	MsgType lnwire.MessageType

	// Err is the underlying cause, if any.
	Err error
}

// Error returns the error string.
func (e *ErrRejected) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v rejected: %v", e.MsgType, e.Reason)
	}

	return fmt.Sprintf("%v rejected: %v: %v", e.MsgType, e.Reason, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ErrRejected) Unwrap() error {
	return e.Err
}

// ShouldPenalize reports whether the sender of the message misbehaved, as
// opposed to merely sending something we already have or can't place yet.
func (e *ErrRejected) ShouldPenalize() bool {
	switch e.Reason {
	case ReasonBadSignature, ReasonInvalidFunding:
		return true
	default:
		return false
	}
}

func reject(reason RejectReason, msgType lnwire.MessageType,
	err error) *ErrRejected {

	return &ErrRejected{Reason: reason, MsgType: msgType, Err: err}
}
