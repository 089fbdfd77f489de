package pkg

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
)

const PublicKeyLength = 32

// PublicKey is an account address. Its text form is base58.
type PublicKey [PublicKeyLength]byte

// SystemProgramID is the address of the built-in system program (all zero bytes,
// "11111111111111111111111111111111" in base58).
var SystemProgramID = PublicKey{}

func ParsePublicKey(s string) (PublicKey, error) {
	var key PublicKey
	b, err := base58.Decode(s)
	if err != nil {
		return key, fmt.Errorf("decode public key %q: %w", s, err)
	}
	if len(b) != PublicKeyLength {
		return key, fmt.Errorf("public key %q: got %d bytes, want %d", s, len(b), PublicKeyLength)
	}
	copy(key[:], b)
	return key, nil
}

func MustPublicKey(s string) PublicKey {
	key, err := ParsePublicKey(s)
	if err != nil {
		panic(err)
	}
	return key
}

func PublicKeyFromEd25519(pub ed25519.PublicKey) PublicKey {
	var key PublicKey
	copy(key[:], pub)
	return key
}

func (k PublicKey) String() string {
	return base58.Encode(k[:])
}

func (k PublicKey) IsZero() bool {
	return k == PublicKey{}
}

func (k PublicKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *PublicKey) UnmarshalText(text []byte) error {
	key, err := ParsePublicKey(string(text))
	if err != nil {
		return err
	}
	*k = key
	return nil
}

const SignatureLength = ed25519.SignatureSize

// Signature is an ed25519 signature over a transaction message.
type Signature [SignatureLength]byte

func ParseSignature(s string) (Signature, error) {
	var sig Signature
	b, err := base58.Decode(s)
	if err != nil {
		return sig, fmt.Errorf("decode signature: %w", err)
	}
	if len(b) != SignatureLength {
		return sig, fmt.Errorf("signature: got %d bytes, want %d", len(b), SignatureLength)
	}
	copy(sig[:], b)
	return sig, nil
}

func (s Signature) String() string {
	return base58.Encode(s[:])
}

func (s Signature) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Signature) UnmarshalText(text []byte) error {
	sig, err := ParseSignature(string(text))
	if err != nil {
		return err
	}
	*s = sig
	return nil
}
