package bls

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"go.dedis.ch/kyber/v3/encrypt/ecies"
)

// EncryptedShare is a secret-share contribution encrypted toward a specific
// member's operator key. Only the holder of the matching operator secret key
// can recover the contained share.
type EncryptedShare struct {
	ciphertext []byte
}

// EncryptShare encrypts the given secret share toward the recipient's
// operator public key.
func EncryptShare(recipient *PublicKey, share *SecretKey) (*EncryptedShare, error) {
	if !recipient.IsValid() {
		return nil, fmt.Errorf("invalid recipient public key")
	}
	plain, err := share.scalar.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("could not encode share: %w", err)
	}
	ct, err := ecies.Encrypt(suite.G2(), recipient.point, plain, sha256.New)
	if err != nil {
		return nil, fmt.Errorf("could not encrypt share: %w", err)
	}
	return &EncryptedShare{ciphertext: ct}, nil
}

// Decrypt recovers the secret share using the recipient's operator secret
// key. It fails if the ciphertext was not encrypted toward the matching
// public key or was tampered with.
func (e *EncryptedShare) Decrypt(operatorKey *SecretKey) (*SecretKey, error) {
	plain, err := ecies.Decrypt(suite.G2(), operatorKey.scalar, e.ciphertext, sha256.New)
	if err != nil {
		return nil, fmt.Errorf("could not decrypt share: %w", err)
	}
	scalar := suite.G2().Scalar()
	if err := scalar.UnmarshalBinary(plain); err != nil {
		return nil, fmt.Errorf("decrypted share is not a valid scalar: %w", err)
	}
	return &SecretKey{scalar: scalar}, nil
}

func (e *EncryptedShare) MarshalJSON() ([]byte, error) {
	return json.Marshal(base64.StdEncoding.EncodeToString(e.ciphertext))
}

func (e *EncryptedShare) UnmarshalJSON(data []byte) error {
	raw, err := decodeBase64JSON(data)
	if err != nil {
		return err
	}
	e.ciphertext = raw
	return nil
}
