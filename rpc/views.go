package rpc

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/nervosnetwork/ckb-go/common"
	"github.com/nervosnetwork/ckb-go/types"
)

// HexUint64 renders as a 0x-prefixed hex string in JSON, the same
// convention common.Hash.MarshalJSON uses for hashes, so every
// protocol-level integer reaching a client looks the way the rest of
// the wire format does rather than mixing decimal and hex.
type HexUint64 uint64

func (v HexUint64) MarshalJSON() ([]byte, error) {
	return []byte(`"0x` + strconv.FormatUint(uint64(v), 16) + `"`), nil
}

// HexBytes renders as a 0x-prefixed hex string, for script args and
// output data.
type HexBytes []byte

func (v HexBytes) MarshalJSON() ([]byte, error) {
	return []byte(`"0x` + hex.EncodeToString(v) + `"`), nil
}

type HeaderView struct {
	Hash             common.Hash `json:"hash"`
	ParentHash       common.Hash `json:"parent_hash"`
	Number           HexUint64   `json:"number"`
	CompactTarget    HexUint64   `json:"compact_target"`
	Timestamp        HexUint64   `json:"timestamp"`
	Epoch            HexUint64   `json:"epoch"`
	TransactionsRoot common.Hash `json:"transactions_root"`
	ProposalsHash    common.Hash `json:"proposals_hash"`
	UnclesHash       common.Hash `json:"uncles_hash"`
}

func newHeaderView(h *types.Header) *HeaderView {
	return &HeaderView{
		Hash:             h.Hash(),
		ParentHash:       h.ParentHash,
		Number:           HexUint64(h.Number),
		CompactTarget:    HexUint64(h.CompactTarget),
		Timestamp:        HexUint64(h.Timestamp),
		Epoch:            HexUint64(h.Epoch),
		TransactionsRoot: h.TransactionsRoot,
		ProposalsHash:    h.ProposalsHash,
		UnclesHash:       h.UnclesHash,
	}
}

type ScriptView struct {
	CodeHash common.Hash `json:"code_hash"`
	HashType string      `json:"hash_type"`
	Args     HexBytes    `json:"args"`
}

func newScriptView(s *types.Script) *ScriptView {
	if s == nil {
		return nil
	}
	return &ScriptView{CodeHash: s.CodeHash, HashType: s.HashType.String(), Args: s.Args}
}

type CellOutputView struct {
	Capacity HexUint64   `json:"capacity"`
	Lock     *ScriptView `json:"lock"`
	Type     *ScriptView `json:"type"`
}

type OutPointView struct {
	TxHash common.Hash `json:"tx_hash"`
	Index  HexUint64   `json:"index"`
}

func newOutPointView(op types.OutPoint) OutPointView {
	return OutPointView{TxHash: op.TxHash, Index: HexUint64(op.Index)}
}

type CellInputView struct {
	Since        HexUint64    `json:"since"`
	PreviousCell OutPointView `json:"previous_output"`
}

type TransactionView struct {
	Hash        common.Hash       `json:"hash"`
	Version     HexUint64         `json:"version"`
	Inputs      []*CellInputView  `json:"inputs"`
	Outputs     []*CellOutputView `json:"outputs"`
	OutputsData []HexBytes        `json:"outputs_data"`
	Witnesses   []HexBytes        `json:"witnesses"`
}

func newTransactionView(tx *types.Transaction) *TransactionView {
	v := &TransactionView{
		Hash:    tx.Hash(),
		Version: HexUint64(tx.Version),
	}
	for _, in := range tx.Inputs {
		v.Inputs = append(v.Inputs, &CellInputView{Since: HexUint64(in.Since), PreviousCell: newOutPointView(in.PreviousCell)})
	}
	for _, out := range tx.Outputs {
		v.Outputs = append(v.Outputs, &CellOutputView{
			Capacity: HexUint64(out.Capacity),
			Lock:     newScriptView(out.Lock),
			Type:     newScriptView(out.Type),
		})
	}
	for _, d := range tx.OutputsData {
		v.OutputsData = append(v.OutputsData, HexBytes(d))
	}
	for _, w := range tx.Witnesses {
		v.Witnesses = append(v.Witnesses, HexBytes(w))
	}
	return v
}

type BlockView struct {
	Header       *HeaderView        `json:"header"`
	Transactions []*TransactionView `json:"transactions"`
}

func newBlockView(b *types.Block) *BlockView {
	v := &BlockView{Header: newHeaderView(b.Header)}
	for _, tx := range b.Transactions {
		v.Transactions = append(v.Transactions, newTransactionView(tx))
	}
	return v
}

type LiveCellView struct {
	Output     *CellOutputView `json:"output"`
	OutputData HexBytes        `json:"output_data"`
	DataHash   common.Hash     `json:"data_hash"`
	IsCellbase bool            `json:"is_cellbase"`
	CreatedBy  HexUint64       `json:"created_by"`
}

// errNotFound is what every get_* method returns for a hash/number the
// backend doesn't recognize; send_transaction's errors pass through
// from txpool.Pool.Submit unchanged instead, since those already carry
// the specific admission-failure reason a caller needs.
var errNotFound = fmt.Errorf("not found")
