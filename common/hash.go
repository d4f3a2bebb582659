// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

// Package common holds primitives shared by every layer of the node: the
// 32-byte hash type cells, transactions and headers are identified by, and
// the cache abstraction used to bound in-memory indexes.
package common

import (
	"encoding/hex"
	"fmt"
)

// HashLength is the width of all hashes used by the protocol: transaction
// hashes, block hashes, code hashes and the CBMT roots carried in a header.
const HashLength = 32

// Hash is a 32-byte value produced by the protocol's hash function family.
type Hash [HashLength]byte

// BytesToHash sets h to the last HashLength bytes of b, left-padding or
// truncating as needed, matching the teacher's common.Hash conversion.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

func (h Hash) Bytes() []byte { return h[:] }

func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Hash) String() string { return h.Hex() }

// IsZero reports whether h is the all-zero hash, used as the cellbase's
// null previous_output sentinel and as the empty-dep-group marker.
func (h Hash) IsZero() bool { return h == Hash{} }

// HexToHash parses a 0x-prefixed (or bare) hex string into a Hash.
func HexToHash(s string) (Hash, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hash hex %q: %w", s, err)
	}
	return BytesToHash(b), nil
}

// MarshalJSON renders h the same 0x-prefixed way the RPC layer renders
// every other hash-shaped field, so a Hash never needs a wrapper type
// at a JSON boundary.
func (h Hash) MarshalJSON() ([]byte, error) {
	return []byte(`"` + h.Hex() + `"`), nil
}

func (h *Hash) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := HexToHash(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
