package netann

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/davecgh/go-spew/spew"
	"github.com/ellemouton/lngossip/graph"
	"github.com/ellemouton/lngossip/keychain"
	"github.com/ellemouton/lngossip/lnwire"
)

// ChannelPolicy holds the routing terms we advertise for our direction of
// every channel.
type ChannelPolicy struct {
	// TimeLockDelta is the CLTV delta we add to forwarded HTLCs.
	TimeLockDelta uint16

	// MinHTLC is the smallest HTLC in millisatoshi we forward.
	MinHTLC uint32

	// BaseFee is the flat fee in millisatoshi charged per forward.
	BaseFee uint32

	// FeeRate is the proportional fee in millionths.
	FeeRate uint32
}

// EdgePolicy converts the policy to its graph representation.
func (p ChannelPolicy) EdgePolicy() graph.EdgePolicy {
	return graph.EdgePolicy{
		TimeLockDelta:             p.TimeLockDelta,
		MinHTLC:                   p.MinHTLC,
		FeeBaseMSat:               p.BaseFee,
		FeeProportionalMillionths: p.FeeRate,
	}
}

// CreateChannelUpdate builds and signs the channel update for our direction of
// the channel with remote. The signature is computed over the encoding from
// lnwire.ChanUpdateSigOffset with a zero placeholder in the signature field,
// and the message is then encoded again with the real signature.
func CreateChannelUpdate(signer keychain.MessageSigner, self, remote [33]byte,
	ref lnwire.ChannelRef, policy ChannelPolicy,
	timestamp uint32) (*lnwire.ChannelUpdate, []byte, error) {

	var flags lnwire.ChanUpdateFlags
	if IsNode2(self, remote) {
		flags |= lnwire.ChanUpdateDirection
	}

	upd := &lnwire.ChannelUpdate{
		ChannelRef:      ref,
		Timestamp:       timestamp,
		Flags:           flags,
		TimeLockDelta:   policy.TimeLockDelta,
		HtlcMinimumMsat: policy.MinHTLC,
		BaseFee:         policy.BaseFee,
		FeeRate:         policy.FeeRate,
	}

	sig, err := signPortion(signer, keychain.NodeKeyLocator, upd)
	if err != nil {
		return nil, nil, err
	}
	upd.Signature = sig

	raw, err := lnwire.Serialize(upd)
	if err != nil {
		return nil, nil, err
	}

	return upd, raw, nil
}

// ValidateChannelUpdateAnn checks that the raw channel update is signed by
// pubKey, the node that owns the direction it addresses.
func ValidateChannelUpdateAnn(raw []byte, pubKey *btcec.PublicKey,
	upd *lnwire.ChannelUpdate) error {

	var pub [33]byte
	copy(pub[:], pubKey.SerializeCompressed())

	err := verifyPortion(raw, lnwire.ChanUpdateSigOffset, upd.Signature, pub)
	if err != nil {
		return fmt.Errorf("channel update for %v dir %d: %w: %v",
			upd.ChannelRef, upd.Direction(), err, spew.Sdump(upd))
	}

	return nil
}
