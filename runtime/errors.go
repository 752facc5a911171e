// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package runtime

import (
	"fmt"

	"github.com/spacemeshos/svm/common"
)

// Kind classifies the failure of an execution.
type Kind int

const (
	NotFound Kind = iota + 1
	CompilationFailed
	InstantiationFailed
	FuncNotFound
	ExecFailed
	Unimplemented
	StateMismatch
)

// Sentinels matching execution errors of the respective kind via errors.Is.
const (
	ErrNotFound            = common.ConstError("contract not found")
	ErrCompilationFailed   = common.ConstError("compilation failed")
	ErrInstantiationFailed = common.ConstError("instantiation failed")
	ErrFuncNotFound        = common.ConstError("function not found")
	ErrExecFailed          = common.ConstError("execution failed")
	ErrUnimplemented       = common.ConstError("not implemented")
	ErrStateMismatch       = common.ConstError("state mismatch")
)

// Causes of ExecFailed and Unimplemented.
const (
	ErrArgCount       = common.ConstError("wrong number of arguments")
	ErrArgType        = common.ConstError("argument type does not match parameter")
	ErrNoMemory       = common.ConstError("module has no memory for fixed arguments")
	ErrMemoryAccess   = common.ConstError("fixed arguments exceed memory")
	ErrSliceArg       = common.ConstError("slice arguments are not supported")
	ErrDuplicateBatch = common.ConstError("batch targets an address more than once")
)

func (k Kind) sentinel() error {
	switch k {
	case NotFound:
		return ErrNotFound
	case CompilationFailed:
		return ErrCompilationFailed
	case InstantiationFailed:
		return ErrInstantiationFailed
	case FuncNotFound:
		return ErrFuncNotFound
	case ExecFailed:
		return ErrExecFailed
	case Unimplemented:
		return ErrUnimplemented
	case StateMismatch:
		return ErrStateMismatch
	}
	return nil
}

func (k Kind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ExecError is the error returned by a failed execution.
type ExecError struct {
	Kind    Kind
	Address common.Address
	Func    string
	Err     error
}

func (e *ExecError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v.%s: %v", e.Address, e.Func, e.Kind)
	}
	return fmt.Sprintf("%v.%s: %v: %v", e.Address, e.Func, e.Kind, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

func (e *ExecError) Is(target error) bool {
	return target == e.Kind.sentinel()
}
