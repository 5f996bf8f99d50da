// Package bls wraps the BLS12 primitives the quorum subsystem consumes:
// operator key pairs, singular and aggregated signature verification,
// verification vectors (polynomial commitments) and secret-share encryption.
//
// Public keys live on G2, signatures on G1 (kyber sign/bls convention).
// "Secure" aggregation uses the BDN scheme, which defends against rogue-key
// attacks; "insecure" verification is plain BLS and is only used where the
// signer is singular (the quorum's own aggregated key).
package bls

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/pairing/bn256"
	"go.dedis.ch/kyber/v3/sign"
	"go.dedis.ch/kyber/v3/sign/bdn"
	"go.dedis.ch/kyber/v3/sign/bls"
	"go.dedis.ch/kyber/v3/util/random"
)

var suite = bn256.NewSuite()

// SecretKey is a BLS secret key or secret key share.
type SecretKey struct {
	scalar kyber.Scalar
}

// PublicKey is a BLS public key or public key share (a G2 point).
type PublicKey struct {
	point kyber.Point
}

// Signature is a serialized BLS signature (a G1 point).
type Signature []byte

// GenerateKeyPair creates a fresh key pair from crypto/rand.
func GenerateKeyPair() (*SecretKey, *PublicKey) {
	return generateKeyPair(random.New(rand.Reader))
}

func generateKeyPair(stream cipher.Stream) (*SecretKey, *PublicKey) {
	x := suite.G2().Scalar().Pick(stream)
	X := suite.G2().Point().Mul(x, nil)
	return &SecretKey{scalar: x}, &PublicKey{point: X}
}

// PublicKey derives the public key of the secret key.
func (sk *SecretKey) PublicKey() *PublicKey {
	return &PublicKey{point: suite.G2().Point().Mul(sk.scalar, nil)}
}

// Sign signs the message with plain BLS.
func (sk *SecretKey) Sign(msg []byte) (Signature, error) {
	sig, err := bls.Sign(suite, sk.scalar, msg)
	if err != nil {
		return nil, fmt.Errorf("could not sign message: %w", err)
	}
	return sig, nil
}

// SignSecure signs the message with the rogue-key-resistant scheme. The
// resulting signature can be aggregated with AggregateSignaturesSecure.
func (sk *SecretKey) SignSecure(msg []byte) (Signature, error) {
	sig, err := bdn.Sign(suite, sk.scalar, msg)
	if err != nil {
		return nil, fmt.Errorf("could not sign message: %w", err)
	}
	return sig, nil
}

// IsValid returns true for a usable secret key. The zero scalar is not a
// usable key.
func (sk *SecretKey) IsValid() bool {
	return sk != nil && sk.scalar != nil && !sk.scalar.Equal(suite.G2().Scalar().Zero())
}

// Equal returns true if both keys hold the same scalar.
func (sk *SecretKey) Equal(other *SecretKey) bool {
	if sk == nil || other == nil {
		return sk == other
	}
	return sk.scalar.Equal(other.scalar)
}

// AggregateSecretKeys sums the given secret keys (or shares) into one.
func AggregateSecretKeys(keys []*SecretKey) (*SecretKey, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("no secret keys to aggregate")
	}
	sum := suite.G2().Scalar().Zero()
	for _, k := range keys {
		if k == nil || k.scalar == nil {
			return nil, fmt.Errorf("nil secret key in aggregation input")
		}
		sum = sum.Add(sum, k.scalar)
	}
	return &SecretKey{scalar: sum}, nil
}

// IsValid returns true for a well-formed, non-identity public key.
func (pk *PublicKey) IsValid() bool {
	return pk != nil && pk.point != nil && !pk.point.Equal(suite.G2().Point().Null())
}

// Equal returns true if both keys hold the same point.
func (pk *PublicKey) Equal(other *PublicKey) bool {
	if pk == nil || other == nil {
		return pk == other
	}
	return pk.point.Equal(other.point)
}

// Encode returns the binary encoding of the public key.
func (pk *PublicKey) Encode() []byte {
	data, _ := pk.point.MarshalBinary()
	return data
}

// PublicKeyFromBytes decodes a public key from its binary encoding.
func PublicKeyFromBytes(data []byte) (*PublicKey, error) {
	point := suite.G2().Point()
	if err := point.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("could not decode public key: %w", err)
	}
	return &PublicKey{point: point}, nil
}

// Verify checks a plain (singular-signer) BLS signature.
func Verify(pk *PublicKey, msg []byte, sig Signature) error {
	if !pk.IsValid() {
		return fmt.Errorf("invalid public key")
	}
	return bls.Verify(suite, pk.point, msg, sig)
}

// VerifySecureAggregated checks an aggregated signature against the given
// signer public keys using the rogue-key-resistant scheme. All listed keys
// are expected to have contributed to the signature.
func VerifySecureAggregated(pubKeys []*PublicKey, msg []byte, sig Signature) error {
	mask, err := fullMask(pubKeys)
	if err != nil {
		return err
	}
	aggregated, err := bdn.AggregatePublicKeys(suite, mask)
	if err != nil {
		return fmt.Errorf("could not aggregate public keys: %w", err)
	}
	return bdn.Verify(suite, aggregated, msg, sig)
}

// AggregateSignaturesSecure aggregates signatures produced with SignSecure
// by the given public keys, in matching order.
func AggregateSignaturesSecure(pubKeys []*PublicKey, sigs []Signature) (Signature, error) {
	if len(pubKeys) != len(sigs) {
		return nil, fmt.Errorf("pubkey count %d does not match signature count %d", len(pubKeys), len(sigs))
	}
	mask, err := fullMask(pubKeys)
	if err != nil {
		return nil, err
	}
	raw := make([][]byte, len(sigs))
	for i, s := range sigs {
		raw[i] = s
	}
	point, err := bdn.AggregateSignatures(suite, raw, mask)
	if err != nil {
		return nil, fmt.Errorf("could not aggregate signatures: %w", err)
	}
	data, err := point.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("could not encode aggregated signature: %w", err)
	}
	return data, nil
}

// IsWellFormed returns true if the signature decodes to a curve point.
func (s Signature) IsWellFormed() bool {
	if len(s) == 0 {
		return false
	}
	point := suite.G1().Point()
	return point.UnmarshalBinary(s) == nil
}

func fullMask(pubKeys []*PublicKey) (*sign.Mask, error) {
	if len(pubKeys) == 0 {
		return nil, fmt.Errorf("no public keys")
	}
	points := make([]kyber.Point, len(pubKeys))
	for i, pk := range pubKeys {
		if !pk.IsValid() {
			return nil, fmt.Errorf("invalid public key at index %d", i)
		}
		points[i] = pk.point
	}
	mask, err := sign.NewMask(suite, points, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create signer mask: %w", err)
	}
	for i := range points {
		err = mask.SetBit(i, true)
		if err != nil {
			return nil, fmt.Errorf("could not set mask bit %d: %w", i, err)
		}
	}
	return mask, nil
}

// JSON encodings wrap the kyber binary marshalling in base64 so keys and
// shares can pass through the storage codec.

func (sk *SecretKey) MarshalJSON() ([]byte, error) {
	if sk.scalar == nil {
		return []byte("null"), nil
	}
	data, err := sk.scalar.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return json.Marshal(base64.StdEncoding.EncodeToString(data))
}

func (sk *SecretKey) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		sk.scalar = nil
		return nil
	}
	raw, err := decodeBase64JSON(data)
	if err != nil {
		return err
	}
	scalar := suite.G2().Scalar()
	if err := scalar.UnmarshalBinary(raw); err != nil {
		return err
	}
	sk.scalar = scalar
	return nil
}

func (pk *PublicKey) MarshalJSON() ([]byte, error) {
	if pk.point == nil {
		return []byte("null"), nil
	}
	data, err := pk.point.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return json.Marshal(base64.StdEncoding.EncodeToString(data))
}

func (pk *PublicKey) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		pk.point = nil
		return nil
	}
	raw, err := decodeBase64JSON(data)
	if err != nil {
		return err
	}
	point := suite.G2().Point()
	if err := point.UnmarshalBinary(raw); err != nil {
		return err
	}
	pk.point = point
	return nil
}

func decodeBase64JSON(data []byte) ([]byte, error) {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(str)
}
