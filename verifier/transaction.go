package verifier

import (
	"github.com/nervosnetwork/ckb-go/cellset"
	"github.com/nervosnetwork/ckb-go/common"
	"github.com/nervosnetwork/ckb-go/params"
	"github.com/nervosnetwork/ckb-go/pkg/log"
	"github.com/nervosnetwork/ckb-go/script"
	"github.com/nervosnetwork/ckb-go/types"
)

var logger = log.NewModuleLogger(log.Verifier)

// Verdict is a transaction's successful verification result: the fee it
// pays and the cycles its scripts spent, both needed by the pool's
// fee-rate ranking and the block verifier's aggregate cycle accounting.
type Verdict struct {
	Fee        uint64
	CyclesUsed uint64
}

// TransactionVerifier runs the five ordered, short-circuiting stages of
// §4.3 against a resolution context.
type TransactionVerifier struct {
	Engine      *script.Engine
	ScriptCache common.Cache // keyed by witness hash, per §4.3/§5
}

func NewTransactionVerifier(engine *script.Engine, cache common.Cache) *TransactionVerifier {
	return &TransactionVerifier{Engine: engine, ScriptCache: cache}
}

// Verify runs all five stages against tx. isCellbase is supplied by the
// caller (the block verifier already knows positionally which tx is the
// cellbase) rather than re-derived, since a cellbase-shaped non-first
// transaction must be rejected, not silently treated as one.
func (v *TransactionVerifier) Verify(tx *types.Transaction, isCellbase bool, ctx *Context, cycleBudget uint64) (*Verdict, error) {
	txHash := tx.Hash()
	wrap := func(kind TxErrorKind, cause error) error {
		return &TransactionError{Kind: kind, TxHash: txHash, Cause: cause}
	}

	if err := verifyStructural(tx, isCellbase); err != nil {
		return nil, wrap(TxErrStructural, err)
	}

	inputCells, inputData, depCells, depData, err := resolve(tx, isCellbase, ctx)
	if err != nil {
		return nil, wrap(TxErrResolution, err)
	}

	if !isCellbase {
		if err := verifySince(tx, inputCells, ctx); err != nil {
			return nil, wrap(TxErrSince, err)
		}
		if err := verifyCellbaseMaturity(inputCells, ctx); err != nil {
			return nil, wrap(TxErrSince, err)
		}
	}

	fee, err := verifyCapacity(tx, inputCells, isCellbase)
	if err != nil {
		return nil, wrap(TxErrCapacity, err)
	}

	cyclesUsed, err := v.verifyScripts(tx, inputCells, inputData, depCells, depData, ctx, cycleBudget)
	if err != nil {
		return nil, wrap(TxErrScript, err)
	}

	return &Verdict{Fee: fee, CyclesUsed: cyclesUsed}, nil
}

func verifyStructural(tx *types.Transaction, isCellbase bool) error {
	if isCellbase {
		if len(tx.Inputs) != 1 || !tx.Inputs[0].PreviousCell.IsNull() {
			return ErrCellbaseInputs
		}
	} else if len(tx.Inputs) == 0 {
		return ErrEmptyInputs
	}
	if len(tx.Outputs) == 0 {
		return ErrEmptyOutputs
	}
	if tx.Version != params.TxVersion {
		return ErrVersionMismatch
	}
	if tx.SerializedSize() > params.TxMaxSize {
		return ErrTxTooLarge
	}

	seen := make(map[types.OutPoint]bool, len(tx.CellDeps))
	for _, d := range tx.CellDeps {
		if seen[d.OutPoint] {
			return ErrDuplicateCellDep
		}
		seen[d.OutPoint] = true
	}

	sum, ok := tx.OutputCapacitySum()
	if !ok {
		return ErrCapacityOverflow
	}
	_ = sum

	for i, out := range tx.Outputs {
		var dataLen int
		if i < len(tx.OutputsData) {
			dataLen = len(tx.OutputsData[i])
		}
		if out.Capacity < out.OccupiedBytes(dataLen)*params.ByteCapacityUnit {
			return ErrOutputBelowOccupied
		}
	}
	return nil
}

// resolve performs §4.3 stage 2: every input and dep (after expanding
// dep-groups) must resolve to a live cell, visible either in the
// cell-set snapshot or among this block's earlier outputs; every
// header_dep must be a known header.
func resolve(tx *types.Transaction, isCellbase bool, ctx *Context) (inputCells []*cellset.Record, inputData [][]byte, depCells []*cellset.Record, depData [][]byte, err error) {
	if !isCellbase {
		inputCells = make([]*cellset.Record, len(tx.Inputs))
		inputData = make([][]byte, len(tx.Inputs))
		for i, in := range tx.Inputs {
			rec, data, ok := ctx.resolveCell(in.PreviousCell)
			if !ok {
				return nil, nil, nil, nil, ErrCellNotFound
			}
			inputCells[i] = rec
			inputData[i] = data
		}
	}

	for _, dep := range tx.CellDeps {
		ops, derr := expandDep(dep, ctx)
		if derr != nil {
			return nil, nil, nil, nil, derr
		}
		for _, op := range ops {
			rec, data, ok := ctx.resolveCell(op)
			if !ok {
				return nil, nil, nil, nil, ErrCellNotFound
			}
			depCells = append(depCells, rec)
			depData = append(depData, data)
		}
	}

	for _, hd := range tx.HeaderDeps {
		if _, ok := ctx.Headers.HeaderByHash(hd); !ok {
			return nil, nil, nil, nil, ErrHeaderDepUnknown
		}
	}

	return inputCells, inputData, depCells, depData, nil
}

// expandDep resolves a single cell_dep to the list of OutPoints it
// actually contributes: one for DepTypeCode, or the dep-group's listed
// members for DepTypeDepGroup. Dep-groups are not permitted to nest
// (§4.3 "cycles forbidden").
func expandDep(dep types.CellDep, ctx *Context) ([]types.OutPoint, error) {
	if dep.DepType == types.DepTypeCode {
		return []types.OutPoint{dep.OutPoint}, nil
	}

	_, data, ok := ctx.resolveCell(dep.OutPoint)
	if !ok {
		return nil, ErrCellNotFound
	}
	if len(data)%36 != 0 {
		return nil, ErrDepGroupCycle
	}
	members := make([]types.OutPoint, 0, len(data)/36)
	for i := 0; i+36 <= len(data); i += 36 {
		var op types.OutPoint
		copy(op.TxHash[:], data[i:i+32])
		op.Index = uint32(data[i+32]) | uint32(data[i+33])<<8 | uint32(data[i+34])<<16 | uint32(data[i+35])<<24
		members = append(members, op)
	}
	return members, nil
}

// verifySince checks every input's since constraint against the target
// block's height, epoch, or median-time-past, per the flag bits decoded
// by types.Since (§4.3 stage 3).
func verifySince(tx *types.Transaction, inputCells []*cellset.Record, ctx *Context) error {
	for i, in := range tx.Inputs {
		if in.Since == 0 {
			continue
		}
		rec := inputCells[i]

		switch in.Since.Metric() {
		case types.SinceMetricBlockNumber:
			want := in.Since.Value()
			if in.Since.IsRelative() {
				want += rec.CreatedBy
			}
			if ctx.TargetBlockNumber < want {
				return ErrSinceNotMature
			}
		case types.SinceMetricEpoch:
			number, index, length := in.Since.EpochValue()
			target := types.PackEpoch(number, index, length)
			if in.Since.IsRelative() {
				createdEpoch, ok := ctx.epochNumberAt(rec.CreatedBy)
				if !ok {
					return ErrHeaderDepUnknown
				}
				target = types.PackEpoch(createdEpoch+number, index, length)
			}
			if ctx.CurrentEpochNumber < target.Number() {
				return ErrSinceNotMature
			}
		case types.SinceMetricTimestamp:
			want := in.Since.Value()
			if in.Since.IsRelative() {
				createdTs, ok := ctx.timestampAt(rec.CreatedBy)
				if !ok {
					return ErrHeaderDepUnknown
				}
				want += createdTs
			}
			if ctx.MedianTimePast < want {
				return ErrSinceNotMature
			}
		}
	}
	return nil
}

func verifyCellbaseMaturity(inputCells []*cellset.Record, ctx *Context) error {
	for _, rec := range inputCells {
		if !rec.IsCellbase {
			continue
		}
		createdEpoch, ok := ctx.epochNumberAt(rec.CreatedBy)
		if !ok {
			return ErrHeaderDepUnknown
		}
		if ctx.CurrentEpochNumber < createdEpoch+params.CellbaseMaturity {
			return ErrCellbaseImmature
		}
	}
	return nil
}

// verifyCapacity checks Σinputs = Σoutputs + fee, fee >= 0 (§4.3 stage
// 4). A cellbase has issuance instead of inputs, so its fee is always
// reported as zero rather than computed from a nonexistent input sum.
func verifyCapacity(tx *types.Transaction, inputCells []*cellset.Record, isCellbase bool) (uint64, error) {
	if isCellbase {
		return 0, nil
	}

	var inputSum uint64
	for _, rec := range inputCells {
		next := inputSum + rec.Output.Capacity
		if next < inputSum {
			return 0, ErrCapacityOverflow
		}
		inputSum = next
	}

	outputSum, ok := tx.OutputCapacitySum()
	if !ok {
		return 0, ErrCapacityOverflow
	}
	if outputSum > inputSum {
		return 0, ErrCapacityMismatch
	}
	return inputSum - outputSum, nil
}

func (v *TransactionVerifier) verifyScripts(tx *types.Transaction, inputCells []*cellset.Record, inputData [][]byte, depCells []*cellset.Record, depData [][]byte, ctx *Context, cycleBudget uint64) (uint64, error) {
	witnessHash := tx.WitnessHash()
	if v.ScriptCache != nil {
		if cached, ok := v.ScriptCache.Get(witnessHash); ok {
			return cached.(uint64), nil
		}
	}

	env := &script.ExecEnv{
		Tx:         tx,
		Inputs:     script.ResolvedInputs(inputCells),
		InputsData: inputData,
		Deps:       script.ResolvedInputs(depCells),
		DepsData:   depData,
	}
	for _, hd := range tx.HeaderDeps {
		h, _ := ctx.Headers.HeaderByHash(hd)
		env.HeaderDeps = append(env.HeaderDeps, h)
	}

	result, err := v.Engine.VerifyScripts(env, cycleBudget)
	if err != nil {
		return 0, err
	}

	if v.ScriptCache != nil {
		v.ScriptCache.Add(witnessHash, result.CyclesUsed)
	}
	return result.CyclesUsed, nil
}
