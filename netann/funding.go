package netann

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/ellemouton/lngossip/lnwire"
)

// ErrFundingMismatch is returned when the output a channel announcement
// points at does not pay to the announced funding keys.
var ErrFundingMismatch = errors.New("funding output does not match " +
	"announced keys")

// UtxoSource looks up unspent outputs by their position in the chain.
type UtxoSource interface {
	// FetchUtxo returns the output at ref. An error is returned if it
	// doesn't exist or was spent.
	FetchUtxo(ref lnwire.ChannelRef) (*wire.TxOut, error)
}

// FundingValidator checks that the funding output of an announced channel
// is an unspent 2-of-2 P2WSH output of the two announced funding keys.
type FundingValidator struct {
	utxos UtxoSource
}

// NewFundingValidator creates a FundingValidator that reads outputs from
// utxos.
func NewFundingValidator(utxos UtxoSource) *FundingValidator {
	return &FundingValidator{utxos: utxos}
}

// ValidateFundingOutput returns an error unless the output referenced by ref
// exists, is unspent and pays to the 2-of-2 multisig of the two funding keys.
// A mismatch wraps ErrFundingMismatch. Other errors come from the UtxoSource.
func (f *FundingValidator) ValidateFundingOutput(ref lnwire.ChannelRef,
	fundingKey1, fundingKey2 [33]byte) error {

	pkScript, err := FundingPkScript(fundingKey1, fundingKey2)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFundingMismatch, err)
	}

	txOut, err := f.utxos.FetchUtxo(ref)
	if err != nil {
		return fmt.Errorf("unable to fetch funding output %v: %w", ref,
			err)
	}

	if !bytes.Equal(txOut.PkScript, pkScript) {
		log.Debugf("Funding output %v pays to %x, expected %x", ref,
			txOut.PkScript, pkScript)

		return fmt.Errorf("%w: channel %v", ErrFundingMismatch, ref)
	}

	return nil
}

// FundingPkScript returns the P2WSH output script of the 2-of-2 multisig of
// the two funding keys.
func FundingPkScript(fundingKey1, fundingKey2 [33]byte) ([]byte, error) {
	witnessScript, err := fundingWitnessScript(fundingKey1, fundingKey2)
	if err != nil {
		return nil, err
	}

	scriptHash := sha256.Sum256(witnessScript)

	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(scriptHash[:]).
		Script()
}

// fundingWitnessScript builds the 2-of-2 multisig script of two funding keys.
// The keys are sorted so both ends of the channel derive the same script.
func fundingWitnessScript(a, b [33]byte) ([]byte, error) {
	for _, key := range [][33]byte{a, b} {
		if _, err := btcec.ParsePubKey(key[:]); err != nil {
			return nil, fmt.Errorf("invalid funding key %x: %w",
				key, err)
		}
	}

	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}

	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_2).
		AddData(a[:]).
		AddData(b[:]).
		AddOp(txscript.OP_2).
		AddOp(txscript.OP_CHECKMULTISIG).
		Script()
}
