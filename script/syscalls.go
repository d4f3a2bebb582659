// Package script is the host-side driver for transaction script execution
// (§4.2). The deterministic virtual machine itself is external to this
// module (no library in the retrieved corpus implements a CKB-VM-class
// RISC-V interpreter; none of the embedded-script engines the corpus does
// carry — otto, go-duktape — execute the right instruction set, so this
// package defines the VM boundary as an interface and ships a reference
// implementation for tests rather than adopting an unrelated engine).
package script

import "github.com/nervosnetwork/ckb-go/types"

// Source selects which cell list a LoadCell/LoadCellData syscall reads
// from (§4.2).
type Source uint8

const (
	SourceInput Source = iota
	SourceOutput
	SourceDep
	SourceGroupInput
	SourceGroupOutput
)

// Field selects which part of a cell a LoadCell syscall returns.
type Field uint8

const (
	FieldCapacity Field = iota
	FieldDataHash
	FieldLock
	FieldLockHash
	FieldType
	FieldTypeHash
	FieldOccupiedCapacity
)

// Syscall numeric IDs, stable across VM versions per §4.2.
type Syscall uint64

const (
	SyscallLoadScriptHash Syscall = iota + 2041
	SyscallLoadCell
	SyscallLoadCellData
	SyscallLoadWitness
	SyscallLoadTransaction
	SyscallLoadHeader
	SyscallDebug
)

// HostAPI is what a VM implementation calls back into while executing a
// single script group. Every read returns a truncation indicator: when a
// requested range runs past the end of the data (or length is negative),
// the read returns the bytes from offset to the end plus
// `truncated=true`; a range that fits returns exactly what was asked for
// with `truncated=false`.
type HostAPI interface {
	LoadScriptHash() [32]byte
	LoadCell(source Source, index int, field Field) (data []byte, truncated bool, err error)
	LoadCellData(source Source, index int, offset, length int) (data []byte, truncated bool, err error)
	LoadWitness(index int, offset, length int) (data []byte, truncated bool, err error)
	LoadTransaction() (data []byte, truncated bool, err error)
	LoadHeader(index int, offset, length int) (data []byte, truncated bool, err error)
	Debug(msg string)
}

// VM is the external deterministic script engine's boundary. A real
// implementation interprets the current script's bytecode against api,
// charging cycles as it goes; ExitCode nonzero or err non-nil fails the
// group (§4.2).
type VM interface {
	Run(script *types.Script, api HostAPI, cycleBudget uint64) (exitCode int8, cyclesUsed uint64, err error)
}
