// Package crypto implements the cryptographic verifier of spec §4.1:
// BIP-340 Schnorr signature verification over secp256k1 x-only public keys.
//
// Grounded in the teacher's lib/signing package, which wraps the same
// btcsuite/btcd schnorr primitives; this package narrows the API to the
// single operation the acceptance pipeline needs and never returns an error
// across its public boundary, only a bool, matching spec §4.1's "never
// panics, never blocks" requirement.
package crypto

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/portwatch/nostrelay/lib/nostr"
)

// Verify reports whether event.Sig is a valid BIP-340 signature by
// event.PubKey over the SHA-256 of event's canonical serialization, AND that
// event.ID matches the recomputed id. Any malformed hex, malformed key, or
// malformed signature yields false rather than an error.
func Verify(event *nostr.Event) bool {
	if event.ComputeID() != event.ID {
		return false
	}

	pubKeyBytes, err := hex.DecodeString(event.PubKey)
	if err != nil {
		return false
	}
	pubKey, err := schnorr.ParsePubKey(pubKeyBytes)
	if err != nil {
		return false
	}

	sigBytes, err := hex.DecodeString(event.Sig)
	if err != nil {
		return false
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return false
	}

	idBytes, err := hex.DecodeString(event.ID)
	if err != nil {
		return false
	}

	return sig.Verify(idBytes, pubKey)
}
