// Package security provides cryptographic signing for served payloads so
// downstream consumers can verify they were produced by this service.
package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

// Signer signs JSON payloads with an ECDSA key generated at startup. The
// public key is published on the status endpoint so consumers can verify.
type Signer struct {
	privateKey       *ecdsa.PrivateKey
	publicKeyEncoded string
}

// SignedPayload wraps a payload with its signature.
type SignedPayload struct {
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
	SignedAt  int64           `json:"signedAt"`
	PublicKey string          `json:"publicKey"`
}

// NewSigner generates a fresh P-256 key pair.
func NewSigner() (*Signer, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}

	pub := elliptic.MarshalCompressed(elliptic.P256(), privateKey.PublicKey.X, privateKey.PublicKey.Y)

	return &Signer{
		privateKey:       privateKey,
		publicKeyEncoded: base64.StdEncoding.EncodeToString(pub),
	}, nil
}

// PublicKey returns the base64-encoded compressed public key.
func (s *Signer) PublicKey() string {
	return s.publicKeyEncoded
}

// Sign serializes the payload to canonical JSON, hashes it with Keccak256
// and signs the digest.
func (s *Signer) Sign(payload interface{}) (*SignedPayload, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize payload: %w", err)
	}

	digest := crypto.Keccak256(raw)
	sig, err := ecdsa.SignASN1(rand.Reader, s.privateKey, digest)
	if err != nil {
		return nil, fmt.Errorf("failed to sign payload: %w", err)
	}

	return &SignedPayload{
		Payload:   raw,
		Signature: base64.StdEncoding.EncodeToString(sig),
		SignedAt:  time.Now().Unix(),
		PublicKey: s.publicKeyEncoded,
	}, nil
}

// Verify checks a signed payload against this signer's public key.
func (s *Signer) Verify(sp *SignedPayload) (bool, error) {
	sig, err := base64.StdEncoding.DecodeString(sp.Signature)
	if err != nil {
		return false, fmt.Errorf("malformed signature: %w", err)
	}

	digest := crypto.Keccak256(sp.Payload)
	return ecdsa.VerifyASN1(&s.privateKey.PublicKey, digest, sig), nil
}
