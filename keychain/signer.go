package keychain

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// KeyFamily represents a "family" of keys that will be used within various
// contracts created by the node.
type KeyFamily uint32

const (
	// KeyFamilyMultiSig are keys to be used within multi-sig scripts.
	KeyFamilyMultiSig KeyFamily = 0

	// KeyFamilyNodeKey is the family of keys that will be used to derive
	// keys that will be advertised on the network to represent our
	// current "identity" within the network.
	KeyFamilyNodeKey KeyFamily = 6
)

// KeyLocator is a two-tuple that can be used to derive *any* key that has ever
// been used under the key derivation mechanisms described in this file.
type KeyLocator struct {
	// Family is the family of key being identified.
	Family KeyFamily

	// Index is the precise index of the key being identified.
	Index uint32
}

var (
	// NodeKeyLocator is the locator of the node identity key.
	NodeKeyLocator = KeyLocator{Family: KeyFamilyNodeKey}

	// FundingKeyLocator is the locator of the key we use in the funding
	// output of our channels when it differs from the identity key.
	FundingKeyLocator = KeyLocator{Family: KeyFamilyMultiSig}
)

// MessageSigner represents an abstract object capable of signing arbitrary
// messages with the key identified by a KeyLocator.
type MessageSigner interface {
	// SignMessage signs the given message, single or double SHA256 hashing
	// it first, with the private key described in the key locator.
	SignMessage(keyLoc KeyLocator, msg []byte,
		doubleHash bool) (*ecdsa.Signature, error)
}

// PrivKeyMessageSigner is an implementation of MessageSigner that holds the
// private keys in memory.
type PrivKeyMessageSigner struct {
	keys map[KeyLocator]*btcec.PrivateKey
}

// NewPrivKeyMessageSigner creates a new PrivKeyMessageSigner instance with the
// node key set to nodeKey.
func NewPrivKeyMessageSigner(
	nodeKey *btcec.PrivateKey) *PrivKeyMessageSigner {

	return &PrivKeyMessageSigner{
		keys: map[KeyLocator]*btcec.PrivateKey{
			NodeKeyLocator: nodeKey,
		},
	}
}

// AddKey makes another private key available for signing.
func (p *PrivKeyMessageSigner) AddKey(keyLoc KeyLocator,
	key *btcec.PrivateKey) {

	p.keys[keyLoc] = key
}

// SignMessage signs the given message, single or double SHA256 hashing it
// first, with the private key described in the key locator.
//
// NOTE: This is part of the MessageSigner interface.
func (p *PrivKeyMessageSigner) SignMessage(keyLoc KeyLocator, msg []byte,
	doubleHash bool) (*ecdsa.Signature, error) {

	privKey, ok := p.keys[keyLoc]
	if !ok {
		return nil, fmt.Errorf("no private key for locator %v/%v",
			keyLoc.Family, keyLoc.Index)
	}

	var digest []byte
	if doubleHash {
		digest = chainhash.DoubleHashB(msg)
	} else {
		digest = chainhash.HashB(msg)
	}

	return ecdsa.Sign(privKey, digest), nil
}

// A compile time check to ensure PrivKeyMessageSigner implements the
// MessageSigner interface.
var _ MessageSigner = (*PrivKeyMessageSigner)(nil)
