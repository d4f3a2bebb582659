package types

import (
	"golang.org/x/crypto/blake2b"

	"github.com/nervosnetwork/ckb-go/common"
)

// hashPersonalization matches the protocol's fixed personalization string so
// that two independent implementations hashing the same bytes agree;
// changing it would be a consensus break (Non-goal, §1).
var hashPersonalization = []byte("ckb-default-hash")

// Hash256 runs the protocol hash function over data. Every identifier in
// the data model (tx hash, block hash, script code hash) is this function
// applied to the canonical serialization of the relevant structure.
func Hash256(data []byte) common.Hash {
	h, err := blake2b.New256(hashPersonalization)
	if err != nil {
		// blake2b.New256 only fails on an oversized key, and
		// hashPersonalization is a fixed compile-time constant.
		panic(err)
	}
	h.Write(data)
	var out common.Hash
	copy(out[:], h.Sum(nil))
	return out
}
