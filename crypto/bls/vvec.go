package bls

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"go.dedis.ch/kyber/v3"
	"golang.org/x/crypto/blake2b"
)

// VerificationVector is the public commitment of a secret-sharing polynomial:
// one G2 point per polynomial coefficient. Its length equals the quorum
// threshold. Any party holding the vector can derive the expected public key
// share of any member.
//
// The share evaluation point for member i is x = i+1, matching the kyber
// share-polynomial convention, so shares produced by kyber's PriPoly verify
// against vectors aggregated here.
type VerificationVector struct {
	commits []kyber.Point
}

// NewVerificationVector wraps the given commitment points.
func NewVerificationVector(commits []kyber.Point) *VerificationVector {
	return &VerificationVector{commits: commits}
}

// Threshold returns the length of the vector, which equals the quorum
// threshold.
func (v *VerificationVector) Threshold() int {
	return len(v.commits)
}

// QuorumPublicKey returns the commitment of the free coefficient, which is
// the quorum's aggregated public key.
func (v *VerificationVector) QuorumPublicKey() *PublicKey {
	if len(v.commits) == 0 {
		return &PublicKey{point: suite.G2().Point().Null()}
	}
	return &PublicKey{point: v.commits[0].Clone()}
}

// PublicKeyShare evaluates the committed polynomial at the member's share
// point and returns the member's expected public key share.
func (v *VerificationVector) PublicKeyShare(memberIdx int) *PublicKey {
	xi := suite.G2().Scalar().SetInt64(int64(memberIdx) + 1)
	acc := suite.G2().Point().Null()
	// Horner evaluation from the highest coefficient down.
	for i := len(v.commits) - 1; i >= 0; i-- {
		acc = acc.Mul(xi, acc)
		acc = acc.Add(acc, v.commits[i])
	}
	return &PublicKey{point: acc}
}

// Encode returns the canonical binary form: the concatenation of the
// marshalled commitment points.
func (v *VerificationVector) Encode() ([]byte, error) {
	var out []byte
	for i, c := range v.commits {
		data, err := c.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("could not encode commitment %d: %w", i, err)
		}
		out = append(out, data...)
	}
	return out, nil
}

// Hash returns the content hash of the vector. A received vector is accepted
// only if this hash matches the hash recorded in the quorum's commitment.
func (v *VerificationVector) Hash() ([32]byte, error) {
	data, err := v.Encode()
	if err != nil {
		return [32]byte{}, err
	}
	return blake2b.Sum256(data), nil
}

// Equal returns true if both vectors commit to the same polynomial.
func (v *VerificationVector) Equal(other *VerificationVector) bool {
	if v == nil || other == nil {
		return v == other
	}
	if len(v.commits) != len(other.commits) {
		return false
	}
	for i := range v.commits {
		if !v.commits[i].Equal(other.commits[i]) {
			return false
		}
	}
	return true
}

// AggregateVerificationVectors sums the member contribution vectors
// pointwise into the quorum verification vector. All contributions must have
// the same threshold.
func AggregateVerificationVectors(vvecs []*VerificationVector) (*VerificationVector, error) {
	if len(vvecs) == 0 {
		return nil, fmt.Errorf("no verification vectors to aggregate")
	}
	threshold := vvecs[0].Threshold()
	commits := make([]kyber.Point, threshold)
	for i := range commits {
		commits[i] = suite.G2().Point().Null()
	}
	for n, vvec := range vvecs {
		if vvec.Threshold() != threshold {
			return nil, fmt.Errorf("verification vector %d has threshold %d, expected %d", n, vvec.Threshold(), threshold)
		}
		for i := range commits {
			commits[i] = commits[i].Add(commits[i], vvec.commits[i])
		}
	}
	return &VerificationVector{commits: commits}, nil
}

func (v *VerificationVector) MarshalJSON() ([]byte, error) {
	encoded := make([]string, len(v.commits))
	for i, c := range v.commits {
		data, err := c.MarshalBinary()
		if err != nil {
			return nil, err
		}
		encoded[i] = base64.StdEncoding.EncodeToString(data)
	}
	return json.Marshal(encoded)
}

func (v *VerificationVector) UnmarshalJSON(data []byte) error {
	var encoded []string
	if err := json.Unmarshal(data, &encoded); err != nil {
		return err
	}
	commits := make([]kyber.Point, len(encoded))
	for i, s := range encoded {
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return err
		}
		point := suite.G2().Point()
		if err := point.UnmarshalBinary(raw); err != nil {
			return err
		}
		commits[i] = point
	}
	v.commits = commits
	return nil
}
