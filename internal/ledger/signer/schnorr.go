// Package signer provides party signing identities for ledger operations.
package signer

import (
	"encoding/hex"
	"fmt"

	"go.dedis.ch/kyber/v4"
	"go.dedis.ch/kyber/v4/sign/schnorr"
	"go.dedis.ch/kyber/v4/suites"
	"golang.org/x/crypto/blake2b"
)

var suite = suites.MustFind("Ed25519")

// Schnorr signs with a Schnorr key pair over edwards25519.
type Schnorr struct {
	private kyber.Scalar
	public  kyber.Point
	address string
}

// Generate creates a signer with a fresh random key.
func Generate() (*Schnorr, error) {
	return fromScalar(suite.Scalar().Pick(suite.RandomStream()))
}

// FromSeed derives a signer deterministically from seed. Used for operator
// keys provisioned through configuration.
func FromSeed(seed []byte) (*Schnorr, error) {
	if len(seed) == 0 {
		return nil, fmt.Errorf("signer seed is empty")
	}
	return fromScalar(suite.Scalar().Pick(suite.XOF(seed)))
}

func fromScalar(private kyber.Scalar) (*Schnorr, error) {
	public := suite.Point().Mul(private, nil)
	raw, err := public.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode public key: %w", err)
	}
	sum := blake2b.Sum256(raw)
	return &Schnorr{
		private: private,
		public:  public,
		address: "0x" + hex.EncodeToString(sum[:]),
	}, nil
}

// Address is 0x followed by the hex BLAKE2b-256 digest of the public key.
func (s *Schnorr) Address() string {
	return s.address
}

func (s *Schnorr) Sign(msg []byte) ([]byte, error) {
	return schnorr.Sign(suite, s.private, msg)
}

// PublicKey returns the encoded public key.
func (s *Schnorr) PublicKey() ([]byte, error) {
	return s.public.MarshalBinary()
}

// Verify checks sig over msg against an encoded public key.
func Verify(publicKey, msg, sig []byte) error {
	public := suite.Point()
	if err := public.UnmarshalBinary(publicKey); err != nil {
		return fmt.Errorf("decode public key: %w", err)
	}
	return schnorr.Verify(suite, public, msg, sig)
}
