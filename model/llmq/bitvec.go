package llmq

import (
	"encoding/json"
	"fmt"
)

// BitVector is a fixed-length sequence of bits, indexed in the same order as
// the resolved quorum member list. Only the logical bit sequence and its
// serialized form are contractual; the in-memory representation packs eight
// bits per byte.
type BitVector struct {
	length int
	bits   []byte
}

// NewBitVector creates a bit vector of the given length with all bits clear.
func NewBitVector(length int) *BitVector {
	return &BitVector{
		length: length,
		bits:   make([]byte, (length+7)/8),
	}
}

// BitVectorFromBools creates a bit vector from a logical bool sequence.
func BitVectorFromBools(bools []bool) *BitVector {
	v := NewBitVector(len(bools))
	for i, b := range bools {
		if b {
			v.Set(i, true)
		}
	}
	return v
}

// Len returns the number of bits in the vector.
func (v *BitVector) Len() int {
	return v.length
}

// Get returns the bit at the given index. Out-of-range indices read as unset.
func (v *BitVector) Get(i int) bool {
	if i < 0 || i >= v.length {
		return false
	}
	return v.bits[i/8]&(1<<(uint(i)%8)) != 0
}

// Set sets or clears the bit at the given index.
func (v *BitVector) Set(i int, value bool) {
	if i < 0 || i >= v.length {
		return
	}
	if value {
		v.bits[i/8] |= 1 << (uint(i) % 8)
	} else {
		v.bits[i/8] &^= 1 << (uint(i) % 8)
	}
}

// Count returns the number of set bits.
func (v *BitVector) Count() int {
	count := 0
	for i := 0; i < v.length; i++ {
		if v.Get(i) {
			count++
		}
	}
	return count
}

// IsEmpty returns true if no bit is set.
func (v *BitVector) IsEmpty() bool {
	return v.Count() == 0
}

// Equal returns true if both vectors have the same length and bit pattern.
func (v *BitVector) Equal(other *BitVector) bool {
	if v == nil || other == nil {
		return v == other
	}
	if v.length != other.length {
		return false
	}
	for i := 0; i < v.length; i++ {
		if v.Get(i) != other.Get(i) {
			return false
		}
	}
	return true
}

// Copy returns an independent copy of the vector.
func (v *BitVector) Copy() *BitVector {
	dup := NewBitVector(v.length)
	copy(dup.bits, v.bits)
	return dup
}

// Bytes returns the serialized form: the packed bit bytes. The length is
// carried separately by the enclosing structure.
func (v *BitVector) Bytes() []byte {
	out := make([]byte, len(v.bits))
	copy(out, v.bits)
	return out
}

// BitVectorFromBytes reconstructs a bit vector of the given logical length
// from its packed form. Trailing bits beyond the length must be clear.
func BitVectorFromBytes(length int, packed []byte) (*BitVector, error) {
	if len(packed) != (length+7)/8 {
		return nil, fmt.Errorf("packed length %d does not match bit length %d", len(packed), length)
	}
	v := NewBitVector(length)
	copy(v.bits, packed)
	for i := length; i < len(packed)*8; i++ {
		if packed[i/8]&(1<<(uint(i)%8)) != 0 {
			return nil, fmt.Errorf("trailing bit %d set beyond vector length %d", i, length)
		}
	}
	return v, nil
}

type bitVectorJSON struct {
	Length int    `json:"length"`
	Bits   []byte `json:"bits"`
}

func (v *BitVector) MarshalJSON() ([]byte, error) {
	return json.Marshal(bitVectorJSON{Length: v.length, Bits: v.Bytes()})
}

func (v *BitVector) UnmarshalJSON(data []byte) error {
	var raw bitVectorJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := BitVectorFromBytes(raw.Length, raw.Bits)
	if err != nil {
		return err
	}
	*v = *decoded
	return nil
}
