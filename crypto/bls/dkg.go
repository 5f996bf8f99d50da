package bls

import (
	"crypto/rand"
	"fmt"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/share"
	"go.dedis.ch/kyber/v3/util/random"
)

// Contribution is one member's dealing in a DKG round: a random secret
// polynomial of degree threshold-1, committed publicly by the verification
// vector, with one secret share per member. The quorum verification vector
// is the pointwise aggregation of all valid members' contribution vectors,
// and a member's quorum secret key share is the sum of the shares dealt to
// it by all valid members.
type Contribution struct {
	// VVec commits the dealt polynomial.
	VVec *VerificationVector

	// Shares holds the secret share for each member, indexed by member index.
	Shares []*SecretKey

	// Secret is the dealt polynomial's free coefficient. The sum of all
	// members' secrets is the quorum secret key, which no single party ever
	// learns in a real DKG run.
	Secret *SecretKey
}

// Deal creates one member's contribution for a quorum of the given size and
// threshold.
func Deal(threshold, memberCount int) (*Contribution, error) {
	if threshold <= 0 || memberCount < threshold {
		return nil, fmt.Errorf("invalid dealing parameters: threshold %d, members %d", threshold, memberCount)
	}
	stream := random.New(rand.Reader)
	priPoly := share.NewPriPoly(suite.G2(), threshold, nil, stream)
	_, commits := priPoly.Commit(suite.G2().Point().Base()).Info()

	priShares := priPoly.Shares(memberCount)
	shares := make([]*SecretKey, memberCount)
	for i, ps := range priShares {
		shares[i] = &SecretKey{scalar: ps.V}
	}

	clones := make([]kyber.Point, len(commits))
	for i, c := range commits {
		clones[i] = c.Clone()
	}

	return &Contribution{
		VVec:   &VerificationVector{commits: clones},
		Shares: shares,
		Secret: &SecretKey{scalar: priPoly.Secret()},
	}, nil
}
