package llmq

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/evonet/llmq/crypto/bls"
)

// CommitmentPayloadVersion is the highest commitment transaction payload
// version this node understands.
const CommitmentPayloadVersion uint16 = 1

// CommitmentTxPayload is the typed payload of an on-chain commitment
// transaction. Height declares the block the transaction belongs to and must
// equal the previous block height plus one.
type CommitmentTxPayload struct {
	Version    uint16
	Height     uint32
	Commitment *FinalCommitment
}

// Encode serializes the payload into its canonical on-chain form.
// All integers are little-endian; variable-length fields carry a length
// prefix. An absent public key is encoded with a zero length.
func (p *CommitmentTxPayload) Encode() []byte {
	var buf bytes.Buffer
	writeUint16(&buf, p.Version)
	writeUint32(&buf, p.Height)

	c := p.Commitment
	writeUint16(&buf, c.Version)
	buf.WriteByte(byte(c.QuorumType))
	buf.Write(c.QuorumHash[:])
	writeUint32(&buf, uint32(c.Signers.Len()))
	buf.Write(c.Signers.Bytes())
	buf.Write(c.ValidMembers.Bytes())
	if c.QuorumPublicKey.IsValid() {
		key := c.QuorumPublicKey.Encode()
		writeUint16(&buf, uint16(len(key)))
		buf.Write(key)
	} else {
		writeUint16(&buf, 0)
	}
	buf.Write(c.VerificationVectorHash[:])
	writeUint16(&buf, uint16(len(c.MembersSig)))
	buf.Write(c.MembersSig)
	writeUint16(&buf, uint16(len(c.QuorumSig)))
	buf.Write(c.QuorumSig)
	return buf.Bytes()
}

// DecodeCommitmentTxPayload deserializes a payload. The input must be
// consumed fully; trailing bytes are rejected.
func DecodeCommitmentTxPayload(data []byte) (*CommitmentTxPayload, error) {
	r := &payloadReader{data: data}

	var p CommitmentTxPayload
	p.Version = r.uint16()
	p.Height = r.uint32()

	var c FinalCommitment
	c.Version = r.uint16()
	c.QuorumType = QuorumType(r.byte())
	c.QuorumHash = r.identifier()

	bitLen := r.uint32()
	if bitLen > maxCommitmentBitVectorLen {
		return nil, fmt.Errorf("bit vector length %d exceeds maximum", bitLen)
	}
	signersPacked := r.bytes(int(bitLen+7) / 8)
	validPacked := r.bytes(int(bitLen+7) / 8)

	keyLen := r.uint16()
	keyBytes := r.bytes(int(keyLen))

	c.VerificationVectorHash = r.identifier()
	c.MembersSig = bls.Signature(r.bytes(int(r.uint16())))
	c.QuorumSig = bls.Signature(r.bytes(int(r.uint16())))

	if r.err != nil {
		return nil, r.err
	}
	if r.off != len(r.data) {
		return nil, fmt.Errorf("payload has %d trailing bytes", len(r.data)-r.off)
	}

	var err error
	c.Signers, err = BitVectorFromBytes(int(bitLen), signersPacked)
	if err != nil {
		return nil, fmt.Errorf("invalid signers bit vector: %w", err)
	}
	c.ValidMembers, err = BitVectorFromBytes(int(bitLen), validPacked)
	if err != nil {
		return nil, fmt.Errorf("invalid valid-members bit vector: %w", err)
	}

	c.QuorumPublicKey = &bls.PublicKey{}
	if keyLen > 0 {
		if err := decodePublicKey(c.QuorumPublicKey, keyBytes); err != nil {
			return nil, fmt.Errorf("invalid quorum public key: %w", err)
		}
	}
	if len(c.MembersSig) == 0 {
		c.MembersSig = nil
	}
	if len(c.QuorumSig) == 0 {
		c.QuorumSig = nil
	}

	p.Commitment = &c
	return &p, nil
}

// maxCommitmentBitVectorLen bounds the declared bit-vector length so a
// malformed payload cannot force a large allocation.
const maxCommitmentBitVectorLen = 4096

func decodePublicKey(pk *bls.PublicKey, data []byte) error {
	raw, err := bls.PublicKeyFromBytes(data)
	if err != nil {
		return err
	}
	*pk = *raw
	return nil
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

type payloadReader struct {
	data []byte
	off  int
	err  error
}

func (r *payloadReader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.data) {
		r.err = fmt.Errorf("payload truncated at offset %d", r.off)
		return nil
	}
	out := r.data[r.off : r.off+n]
	r.off += n
	return out
}

func (r *payloadReader) byte() byte {
	b := r.bytes(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *payloadReader) uint16() uint16 {
	b := r.bytes(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *payloadReader) uint32() uint32 {
	b := r.bytes(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *payloadReader) identifier() Identifier {
	var id Identifier
	b := r.bytes(len(id))
	if b != nil {
		copy(id[:], b)
	}
	return id
}
