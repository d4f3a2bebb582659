package chain

import (
	"bytes"
	"encoding/gob"
	"math/big"

	"github.com/nervosnetwork/ckb-go/common"
	"github.com/nervosnetwork/ckb-go/store"
	"github.com/nervosnetwork/ckb-go/types"
)

// encodeHeader/encodeBlock persist headers and bodies keyed by hash in
// store.HeaderDB/store.BodyDB. Every field types.Header/types.Block
// expose is already an exported plain value (no interfaces), so gob
// round-trips them without a hand-written codec; types.Header.serialize
// stays private and purpose-built for hashing (§4.4's PoW check), kept
// separate from this storage concern the way the teacher's own header
// hash routines are never reused for RLP storage encoding either.
func encodeHeader(h *types.Header) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(h); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeHeader(data []byte) (*types.Header, error) {
	var h types.Header
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&h); err != nil {
		return nil, err
	}
	return &h, nil
}

func encodeBlock(b *types.Block) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeBlock(data []byte) (*types.Block, error) {
	var b types.Block
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&b); err != nil {
		return nil, err
	}
	return &b, nil
}

// putTotalDifficulty/getTotalDifficulty persist each header's accumulated
// difficulty in ExtensionDB (§4.6 fork choice), so a header that has
// scrolled out of the in-memory index can still report its weight without
// re-walking the whole chain from genesis.
func putTotalDifficulty(db store.Manager, hash common.Hash, td *big.Int) error {
	return db.Put(store.ExtensionDB, hash[:], td.Bytes())
}

func getTotalDifficulty(db store.Manager, hash common.Hash) (*big.Int, bool) {
	enc, err := db.Get(store.ExtensionDB, hash[:])
	if err != nil {
		return nil, false
	}
	return new(big.Int).SetBytes(enc), true
}
