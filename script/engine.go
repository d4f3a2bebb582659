package script

import "github.com/nervosnetwork/ckb-go/params"

// Result reports how many cycles a transaction's script verification
// spent, so the block verifier can accumulate it toward the block-wide
// limit (§4.2, §4.4).
type Result struct {
	CyclesUsed uint64
}

// Engine drives one VM implementation over every script group of a
// transaction, in lock-groups-then-type-groups order, charging each
// group's base cost plus whatever the VM reports it spent (§4.2).
type Engine struct {
	VM VM
}

func NewEngine(vm VM) *Engine {
	return &Engine{VM: vm}
}

// VerifyScripts runs every lock and type script group for tx against
// env, short-circuiting on the first group that fails or that would
// push cumulative cycles past remainingBudget.
func (e *Engine) VerifyScripts(env *ExecEnv, remainingBudget uint64) (*Result, error) {
	var total uint64

	lockGroups := LockGroups(env.Tx, env.Inputs)
	typeGroups := TypeGroups(env.Tx, env.Inputs)

	for i, g := range lockGroups {
		cycles, err := e.runGroup(env, &g, i, remainingBudget-total)
		if err != nil {
			return &Result{CyclesUsed: total}, err
		}
		total += cycles
	}

	for i, g := range typeGroups {
		cycles, err := e.runGroup(env, &g, i, remainingBudget-total)
		if err != nil {
			return &Result{CyclesUsed: total}, err
		}
		total += cycles
	}

	return &Result{CyclesUsed: total}, nil
}

func (e *Engine) runGroup(env *ExecEnv, g *Group, groupIndex int, budget uint64) (uint64, error) {
	if params.ScriptGroupBaseCycles > budget {
		return 0, &ScriptError{GroupIndex: groupIndex, ScriptHash: g.ScriptHash, Cause: ErrCycleBudgetExceeded}
	}

	h := &host{env: env, group: g}
	vmBudget := budget - params.ScriptGroupBaseCycles

	exitCode, vmCycles, err := e.VM.Run(g.Script, h, vmBudget)
	used := params.ScriptGroupBaseCycles + vmCycles
	if err != nil {
		return used, &ScriptError{GroupIndex: groupIndex, ScriptHash: g.ScriptHash, Cause: err}
	}
	if exitCode != 0 {
		return used, &ScriptError{GroupIndex: groupIndex, ScriptHash: g.ScriptHash, ExitCode: exitCode}
	}
	if used > budget {
		return used, &ScriptError{GroupIndex: groupIndex, ScriptHash: g.ScriptHash, Cause: ErrCycleBudgetExceeded}
	}
	return used, nil
}
