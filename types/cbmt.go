package types

import "github.com/nervosnetwork/ckb-go/common"

// CBMTRoot computes the root of a Complete Binary Merkle Tree over leaves,
// the structure backing transactions_root (§3, GLOSSARY "CBMT"). Unlike a
// Bitcoin-style tree it does not duplicate a trailing odd leaf: each
// level's odd-one-out is carried up unhashed, which is what "complete"
// means here — the tree shape is fixed by leaf count alone, so two
// implementations agree without needing padding rules.
func CBMTRoot(leaves []common.Hash) common.Hash {
	if len(leaves) == 0 {
		return common.Hash{}
	}
	level := make([]common.Hash, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		next := make([]common.Hash, 0, (len(level)+1)/2)
		for i := 0; i+1 < len(level); i += 2 {
			next = append(next, merkleParent(level[i], level[i+1]))
		}
		if len(level)%2 == 1 {
			next = append(next, level[len(level)-1])
		}
		level = next
	}
	return level[0]
}

func merkleParent(left, right common.Hash) common.Hash {
	buf := make([]byte, 0, 2*common.HashLength)
	buf = append(buf, left[:]...)
	buf = append(buf, right[:]...)
	return Hash256(buf)
}

// TransactionsRoot combines the tx-hash CBMT and the witness-hash CBMT
// into the single root a header carries (§3: "root of a CBMT over both
// tx hashes and tx witness hashes"). The two sub-roots are combined the
// same way two sibling nodes are, so the result is itself a CBMT node.
func TransactionsRoot(txs []*Transaction) common.Hash {
	if len(txs) == 0 {
		return common.Hash{}
	}
	hashes := make([]common.Hash, len(txs))
	witnessHashes := make([]common.Hash, len(txs))
	for i, tx := range txs {
		hashes[i] = tx.Hash()
		witnessHashes[i] = tx.WitnessHash()
	}
	return merkleParent(CBMTRoot(hashes), CBMTRoot(witnessHashes))
}

// ProposalsHash is the concatenated-hash of proposal short ids (§4.4).
func ProposalsHash(proposals []ProposalShortID) common.Hash {
	if len(proposals) == 0 {
		return common.Hash{}
	}
	buf := make([]byte, 0, len(proposals)*10)
	for _, p := range proposals {
		buf = append(buf, p[:]...)
	}
	return Hash256(buf)
}

// UnclesHash is the concatenated-hash of uncle header hashes (§4.4).
func UnclesHash(uncles []*Header) common.Hash {
	if len(uncles) == 0 {
		return common.Hash{}
	}
	buf := make([]byte, 0, len(uncles)*common.HashLength)
	for _, u := range uncles {
		h := u.Hash()
		buf = append(buf, h[:]...)
	}
	return Hash256(buf)
}
