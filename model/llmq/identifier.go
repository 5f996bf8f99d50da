package llmq

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Identifier represents a 32-byte unique identifier for an entity: a block
// hash, a masternode provider-registration transaction hash, or any hash
// derived from canonical entity contents.
type Identifier [32]byte

// ZeroID is the lowest value in the 32-byte ID space.
var ZeroID = Identifier{}

// HexStringToIdentifier converts a hex string to an identifier.
// The hex string must be 64 characters long.
func HexStringToIdentifier(hexString string) (Identifier, error) {
	var id Identifier
	if len(hexString) != 64 {
		return id, fmt.Errorf("malformed input, expected 64 characters, got %d", len(hexString))
	}
	_, err := hex.Decode(id[:], []byte(hexString))
	if err != nil {
		return id, err
	}
	return id, nil
}

// MustHexStringToIdentifier is like HexStringToIdentifier but panics on
// malformed input. Intended for hard-coded values and tests.
func MustHexStringToIdentifier(hexString string) Identifier {
	id, err := HexStringToIdentifier(hexString)
	if err != nil {
		panic(err)
	}
	return id
}

// IdentifierFromBytes copies a raw 32-byte value into an identifier.
// It panics if the input is not exactly 32 bytes.
func IdentifierFromBytes(data []byte) Identifier {
	if len(data) != len(Identifier{}) {
		panic(fmt.Sprintf("malformed identifier, expected 32 bytes, got %d", len(data)))
	}
	var id Identifier
	copy(id[:], data)
	return id
}

// HashToID hashes the input data and returns the result as an identifier.
func HashToID(data []byte) Identifier {
	return Identifier(blake2b.Sum256(data))
}

// IsZero returns true if the identifier is the zero value.
func (id Identifier) IsZero() bool {
	return id == ZeroID
}

func (id Identifier) String() string {
	return hex.EncodeToString(id[:])
}

func (id Identifier) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

func (id *Identifier) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	decoded, err := HexStringToIdentifier(str)
	if err != nil {
		return err
	}
	*id = decoded
	return nil
}
