package main

import (
	"github.com/nervosnetwork/ckb-go/params"
	"github.com/nervosnetwork/ckb-go/script"
	"github.com/nervosnetwork/ckb-go/types"
)

// acceptAllVM is the pluggable VM capability's default implementation
// for this entrypoint: it accepts every script and reports
// ScriptGroupBaseCycles as its own usage, which script.Engine adds on top
// of the base charge it already levies per group; it never decodes or
// executes RISC-V bytecode. The script.VM boundary exists precisely so a real
// interpreter can be swapped in here later without touching anything
// above script.Engine (§9 "Script VM boundary" — "the VM is swappable
// and deterministic").
type acceptAllVM struct{}

func (acceptAllVM) Run(s *types.Script, api script.HostAPI, cycleBudget uint64) (exitCode int8, cyclesUsed uint64, err error) {
	return 0, params.ScriptGroupBaseCycles, nil
}
