package script

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nervosnetwork/ckb-go/cellset"
	"github.com/nervosnetwork/ckb-go/types"
)

// fakeVM is a reference VM used only for tests: it never interprets real
// bytecode, but exercises the host boundary (it reads back its own
// script hash and the group's first cell) and returns a scripted
// verdict, letting tests drive the engine's budget/error handling
// without an actual CKB-VM-class interpreter.
type fakeVM struct {
	exitCode   int8
	cycles     uint64
	err        error
	sawHostAPI bool
}

func (v *fakeVM) Run(s *types.Script, api HostAPI, budget uint64) (int8, uint64, error) {
	_ = api.LoadScriptHash()
	if _, _, err := api.LoadCell(SourceGroupInput, 0, FieldCapacity); err == nil {
		v.sawHostAPI = true
	}
	if v.err != nil {
		return 0, 0, v.err
	}
	return v.exitCode, v.cycles, nil
}

func lockedCellInput(capacity uint64, codeHash byte) (*types.CellInput, *cellset.Record) {
	lock := &types.Script{Args: []byte{codeHash}}
	lock.CodeHash[0] = codeHash
	rec := &cellset.Record{Output: &types.CellOutput{Capacity: capacity, Lock: lock}}
	return &types.CellInput{PreviousCell: types.OutPoint{Index: uint32(codeHash)}}, rec
}

func TestVerifyScriptsRunsOneGroupPerDistinctLock(t *testing.T) {
	in1, rec1 := lockedCellInput(100, 1)
	in2, rec2 := lockedCellInput(200, 1) // same lock as in1: one group
	in3, rec3 := lockedCellInput(300, 2) // different lock: second group

	tx := &types.Transaction{Inputs: []*types.CellInput{in1, in2, in3}}
	env := &ExecEnv{Tx: tx, Inputs: ResolvedInputs{rec1, rec2, rec3}}

	vm := &fakeVM{exitCode: 0, cycles: 10}
	eng := NewEngine(vm)

	result, err := eng.VerifyScripts(env, 1_000_000)
	require.NoError(t, err)
	require.True(t, vm.sawHostAPI)
	// Two distinct locks -> two groups, each charging base + 10 cycles.
	require.Equal(t, 2*(uint64(3_500)+10), result.CyclesUsed)
}

func TestVerifyScriptsFailsOnNonzeroExitCode(t *testing.T) {
	in1, rec1 := lockedCellInput(100, 1)
	tx := &types.Transaction{Inputs: []*types.CellInput{in1}}
	env := &ExecEnv{Tx: tx, Inputs: ResolvedInputs{rec1}}

	vm := &fakeVM{exitCode: 1}
	eng := NewEngine(vm)

	_, err := eng.VerifyScripts(env, 1_000_000)
	require.Error(t, err)
	var scriptErr *ScriptError
	require.ErrorAs(t, err, &scriptErr)
	require.Equal(t, int8(1), scriptErr.ExitCode)
}

func TestVerifyScriptsFailsWhenBudgetExhausted(t *testing.T) {
	in1, rec1 := lockedCellInput(100, 1)
	tx := &types.Transaction{Inputs: []*types.CellInput{in1}}
	env := &ExecEnv{Tx: tx, Inputs: ResolvedInputs{rec1}}

	vm := &fakeVM{exitCode: 0, cycles: 10}
	eng := NewEngine(vm)

	_, err := eng.VerifyScripts(env, 100) // less than ScriptGroupBaseCycles
	require.Error(t, err)
	require.ErrorIs(t, err, ErrCycleBudgetExceeded)
}
