package netann

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"
	"github.com/ellemouton/lngossip/keychain"
	"github.com/ellemouton/lngossip/lnwire"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// LocalChannel describes one of our own channels that is ready to be
// announced.
type LocalChannel struct {
	// RemotePubKey is the identity key of the channel counterparty.
	RemotePubKey [33]byte

	// FundingOutpoint is the funding output of the channel.
	FundingOutpoint wire.OutPoint

	// LocalFundingKey is our key in the funding output. If it is None our
	// identity key is announced in its place.
	LocalFundingKey fn.Option[[33]byte]

	// FundingKeyLoc locates the private key of LocalFundingKey. If it is
	// None the identity key signs for it.
	FundingKeyLoc fn.Option[keychain.KeyLocator]

	// RemoteFundingKey is the remote key in the funding output. If it is
	// None the remote identity key is announced in its place.
	RemoteFundingKey fn.Option[[33]byte]

	// RemoteNodeSig and RemoteFundingSig are the counterparty's halves of
	// the announcement proof, if it sent them. Missing halves are left as
	// zero placeholders.
	RemoteNodeSig    fn.Option[lnwire.Sig]
	RemoteFundingSig fn.Option[lnwire.Sig]
}

// IsNode2 reports whether self is the second node of a channel with remote.
// Node 1 is always the node with the lower identity key, so both ends of a
// channel independently agree on the ordering.
func IsNode2(self, remote [33]byte) bool {
	return bytes.Compare(self[:], remote[:]) > 0
}

// CreateChanAnnouncement builds the channel announcement for ch and signs our
// halves of it. The announcement and its wire encoding are returned.
//
// Our funding signature covers our identity key and proves that the funding
// key delegates to it. The node signature covers the encoding from
// lnwire.ChanAnnSigOffset onwards, which includes the tail of the final
// funding signature, so every funding signature is in place before the node
// signature is computed.
func CreateChanAnnouncement(signer keychain.MessageSigner, self [33]byte,
	ref lnwire.ChannelRef, ch *LocalChannel) (*lnwire.ChannelAnnouncement,
	[]byte, error) {

	localFunding := ch.LocalFundingKey.UnwrapOr(self)
	remoteFunding := ch.RemoteFundingKey.UnwrapOr(ch.RemotePubKey)
	fundingKeyLoc := ch.FundingKeyLoc.UnwrapOr(keychain.NodeKeyLocator)

	ann := &lnwire.ChannelAnnouncement{
		ChannelRef: ref,
		Features:   lnwire.FeatureBits{},
	}

	fundingSig, err := signData(signer, fundingKeyLoc, self[:])
	if err != nil {
		return nil, nil, err
	}

	remoteNodeSig := ch.RemoteNodeSig.UnwrapOr(lnwire.Sig{})
	remoteFundingSig := ch.RemoteFundingSig.UnwrapOr(lnwire.Sig{})

	selfIsNode2 := IsNode2(self, ch.RemotePubKey)
	if selfIsNode2 {
		ann.NodeID1, ann.NodeID2 = ch.RemotePubKey, self
		ann.FundingKey1, ann.FundingKey2 = remoteFunding, localFunding
		ann.NodeSig1 = remoteNodeSig
		ann.FundingSig1, ann.FundingSig2 = remoteFundingSig, fundingSig
	} else {
		ann.NodeID1, ann.NodeID2 = self, ch.RemotePubKey
		ann.FundingKey1, ann.FundingKey2 = localFunding, remoteFunding
		ann.NodeSig2 = remoteNodeSig
		ann.FundingSig1, ann.FundingSig2 = fundingSig, remoteFundingSig
	}

	nodeSig, err := signPortion(signer, keychain.NodeKeyLocator, ann)
	if err != nil {
		return nil, nil, err
	}

	if selfIsNode2 {
		ann.NodeSig2 = nodeSig
	} else {
		ann.NodeSig1 = nodeSig
	}

	raw, err := lnwire.Serialize(ann)
	if err != nil {
		return nil, nil, err
	}

	return ann, raw, nil
}

// ValidateChannelAnn checks all four signatures of a channel announcement.
// The node signatures must cover the raw encoding from
// lnwire.ChanAnnSigOffset and each funding signature must cover the
// matching node identity under the funding key.
func ValidateChannelAnn(raw []byte, a *lnwire.ChannelAnnouncement) error {
	digest, err := lnwire.SignedDigest(raw, lnwire.ChanAnnSigOffset)
	if err != nil {
		return err
	}

	checks := []struct {
		name string
		err  error
	}{
		{"node_sig_1", verifyDigest(digest, a.NodeSig1, a.NodeID1)},
		{"node_sig_2", verifyDigest(digest, a.NodeSig2, a.NodeID2)},
		{"funding_sig_1", verifyData(
			a.NodeID1[:], a.FundingSig1, a.FundingKey1,
		)},
		{"funding_sig_2", verifyData(
			a.NodeID2[:], a.FundingSig2, a.FundingKey2,
		)},
	}
	for _, c := range checks {
		if c.err != nil {
			log.Tracef("Channel announcement with invalid %s: %v",
				c.name, spew.Sdump(a))

			return fmt.Errorf("%s of channel %v: %w", c.name,
				a.ChannelRef, c.err)
		}
	}

	return nil
}
