package netann

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/ellemouton/lngossip/keychain"
	"github.com/ellemouton/lngossip/lnwire"
)

// ErrInvalidSignature is returned when a signature does not verify under the
// key it is claimed to be made with.
var ErrInvalidSignature = errors.New("invalid signature")

// signPortion signs the double-SHA256 of the signed portion of msg.
func signPortion(signer keychain.MessageSigner, keyLoc keychain.KeyLocator,
	msg lnwire.AnnounceSignedMsg) (lnwire.Sig, error) {

	data, err := msg.DataToSign()
	if err != nil {
		return lnwire.Sig{}, err
	}

	return signData(signer, keyLoc, data)
}

// signData signs the double-SHA256 of data and converts the result to its
// wire form.
func signData(signer keychain.MessageSigner, keyLoc keychain.KeyLocator,
	data []byte) (lnwire.Sig, error) {

	sig, err := signer.SignMessage(keyLoc, data, true)
	if err != nil {
		return lnwire.Sig{}, fmt.Errorf("unable to sign: %w", err)
	}

	return lnwire.NewSigFromSignature(sig)
}

// verifyDigest checks that sig is a valid signature of digest under the
// compressed public key pub.
func verifyDigest(digest []byte, sig lnwire.Sig, pub [33]byte) error {
	pubKey, err := btcec.ParsePubKey(pub[:])
	if err != nil {
		return fmt.Errorf("unable to parse key %x: %w", pub, err)
	}

	ecSig, err := sig.ToSignature()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if !ecSig.Verify(digest, pubKey) {
		return fmt.Errorf("%w under key %x", ErrInvalidSignature, pub)
	}

	return nil
}

// verifyPortion checks sig against the portion of raw starting at offset.
func verifyPortion(raw []byte, offset int, sig lnwire.Sig,
	pub [33]byte) error {

	digest, err := lnwire.SignedDigest(raw, offset)
	if err != nil {
		return err
	}

	return verifyDigest(digest, sig, pub)
}

// verifyData checks sig against the double-SHA256 of data.
func verifyData(data []byte, sig lnwire.Sig, pub [33]byte) error {
	return verifyDigest(chainhash.DoubleHashB(data), sig, pub)
}
