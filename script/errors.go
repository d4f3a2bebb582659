package script

import (
	"errors"
	"fmt"

	"github.com/nervosnetwork/ckb-go/common"
	"github.com/nervosnetwork/ckb-go/pkg/log"
)

var logger = log.NewModuleLogger(log.Script)

var (
	ErrIndexOutOfBounds = errors.New("script: cell/witness/header index out of bounds")
	ErrFieldAbsent      = errors.New("script: requested field is absent on this cell")
	ErrUnknownField     = errors.New("script: unknown cell field")
)

// ScriptError reports a script group's failure: a nonzero exit code, an
// exhausted cycle budget, or an out-of-bounds syscall read (§4.2).
type ScriptError struct {
	GroupIndex int
	ScriptHash common.Hash
	ExitCode   int8
	Cause      error
}

func (e *ScriptError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("script: group %d (hash %s) failed: %v", e.GroupIndex, e.ScriptHash.Hex(), e.Cause)
	}
	return fmt.Sprintf("script: group %d (hash %s) exited with code %d", e.GroupIndex, e.ScriptHash.Hex(), e.ExitCode)
}

func (e *ScriptError) Unwrap() error { return e.Cause }

var ErrCycleBudgetExceeded = errors.New("script: cycle budget exceeded")
