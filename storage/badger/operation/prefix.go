package operation

import (
	"encoding/binary"
	"fmt"

	"github.com/evonet/llmq/model/llmq"
)

const (

	// codes for mined commitments
	codeCommitment       = 10 // quorum type + quorum hash -> mined commitment
	codeCommitmentHeight = 11 // quorum type + mined height + quorum hash -> mined height index

	// codes for per-quorum cryptographic material
	codeVerificationVector = 20 // quorum key -> verification vector
	codeSecretShare        = 21 // quorum key -> local secret key share
)

func makePrefix(code byte, keys ...interface{}) []byte {
	prefix := make([]byte, 1)
	prefix[0] = code
	for _, key := range keys {
		prefix = append(prefix, b(key)...)
	}
	return prefix
}

func b(v interface{}) []byte {
	switch i := v.(type) {
	case uint8:
		return []byte{i}
	case uint32:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, i)
		return b
	case uint64:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, i)
		return b
	case llmq.QuorumType:
		return []byte{uint8(i)}
	case llmq.Identifier:
		return i[:]
	default:
		panic(fmt.Sprintf("unsupported type to convert (%T)", v))
	}
}
