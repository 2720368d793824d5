package netann

import (
	"fmt"
	"image/color"

	"github.com/davecgh/go-spew/spew"
	"github.com/ellemouton/lngossip/keychain"
	"github.com/ellemouton/lngossip/lnwire"
)

// NodeAnnParams holds the attributes we announce for our own node.
type NodeAnnParams struct {
	// Addr is the reachable address of our node.
	Addr lnwire.NetAddr

	// Alias is our nick-name.
	Alias lnwire.NodeAlias

	// Color is our display color.
	Color color.RGBA

	// Features is our node feature vector.
	Features lnwire.FeatureBits
}

// CreateNodeAnnouncement builds and signs our node announcement. The
// signature is computed over the encoding from lnwire.NodeAnnSigOffset with a
// zero placeholder in the signature field, and the message is then encoded
// again with the real signature.
func CreateNodeAnnouncement(signer keychain.MessageSigner, self [33]byte,
	params NodeAnnParams, timestamp uint32) (*lnwire.NodeAnnouncement,
	[]byte, error) {

	addrs, err := lnwire.EncodeAddress(params.Addr)
	if err != nil {
		return nil, nil, err
	}

	features := params.Features
	if features == nil {
		features = lnwire.FeatureBits{}
	}

	ann := &lnwire.NodeAnnouncement{
		Timestamp: timestamp,
		NodeID:    self,
		RGBColor:  params.Color,
		Alias:     params.Alias,
		Features:  features,
		Addresses: addrs,
	}

	sig, err := signPortion(signer, keychain.NodeKeyLocator, ann)
	if err != nil {
		return nil, nil, err
	}
	ann.Signature = sig

	raw, err := lnwire.Serialize(ann)
	if err != nil {
		return nil, nil, err
	}

	return ann, raw, nil
}

// ValidateNodeAnnSignature validates the node announcement by ensuring that
// the attached signature is a signature of the raw announcement, from
// lnwire.NodeAnnSigOffset onwards, under the announced node key.
func ValidateNodeAnnSignature(raw []byte, a *lnwire.NodeAnnouncement) error {
	err := verifyPortion(raw, lnwire.NodeAnnSigOffset, a.Signature, a.NodeID)
	if err != nil {
		return fmt.Errorf("node announcement for %x: %w: %v", a.NodeID,
			err, spew.Sdump(a))
	}

	return nil
}
