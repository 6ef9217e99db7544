// Package identity manages the relay's own secp256k1 keypair, used only to
// populate the NIP-11 relay information document (spec/SPEC_FULL §4.12).
// Grounded in the teacher's lib/signing package: same bech32 + btcec
// primitives, narrowed to generate-or-load-from-nsec plus hex/npub export.
package identity

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Identity is the relay's own keypair.
type Identity struct {
	PrivateKey *secp256k1.PrivateKey
	PublicKey  *secp256k1.PublicKey
}

// Generate creates a fresh random keypair.
func Generate() (*Identity, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate relay key: %w", err)
	}
	return &Identity{PrivateKey: priv, PublicKey: priv.PubKey()}, nil
}

// LoadNsec decodes a bech32 "nsec1..." string into an Identity.
func LoadNsec(nsec string) (*Identity, error) {
	keyBytes, err := decodeBech32(nsec)
	if err != nil {
		return nil, fmt.Errorf("decode nsec: %w", err)
	}
	priv, pub := btcec.PrivKeyFromBytes(keyBytes)
	return &Identity{PrivateKey: priv, PublicKey: pub}, nil
}

// Nsec renders the private key as bech32 "nsec1...".
func (id *Identity) Nsec() (string, error) {
	return encodeBech32("nsec", id.PrivateKey.Serialize())
}

// Npub renders the x-only public key as bech32 "npub1...".
func (id *Identity) Npub() (string, error) {
	return encodeBech32("npub", xOnly(id.PublicKey))
}

// PubKeyHex renders the x-only public key as lowercase hex, the form used in
// event.pubkey fields and the NIP-11 "pubkey" field.
func (id *Identity) PubKeyHex() string {
	return hex.EncodeToString(xOnly(id.PublicKey))
}

func xOnly(pub *secp256k1.PublicKey) []byte {
	serialized := pub.SerializeCompressed()
	return serialized[1:] // drop the leading parity-sign byte
}

func decodeBech32(s string) ([]byte, error) {
	_, data, err := bech32.Decode(s)
	if err != nil {
		return nil, err
	}
	return bech32.ConvertBits(data, 5, 8, false)
}

func encodeBech32(hrp string, payload []byte) (string, error) {
	data, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(hrp, data)
}
