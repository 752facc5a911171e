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
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/0xsoniclabs/tracy"
	log "github.com/sirupsen/logrus"
	"github.com/spacemeshos/svm/common"
	"github.com/spacemeshos/svm/common/future"
	"github.com/spacemeshos/svm/contract"
	"github.com/spacemeshos/svm/storage/page"
	"github.com/spacemeshos/svm/vm/vmcall"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// Receipt is the outcome of a successful execution.
type Receipt struct {
	State   common.State        // < state root of the contract after the commit
	Returns []contract.ArgValue // < I32 and I64 values returned by the function
}

// Exec runs the transaction's function on its contract, which must be at
// the given state. On success, storage changes and balance updates are
// committed; on failure nothing is. nodeData is handed to the node's balance
// callbacks unchanged.
func (r *Runtime) Exec(
	ctx context.Context,
	tx *contract.Transaction,
	startingState common.State,
	nodeData any,
	opts Opts,
) (Receipt, error) {
	zone := tracy.ZoneBegin("runtime::Exec")
	defer zone.End()

	unlock := r.lock(tx.Contract)
	defer unlock()

	receipt, err := r.exec(ctx, tx, startingState, nodeData, opts)
	if err != nil {
		log.Debugf("exec of %v.%s failed: %v", tx.Contract, tx.FuncName, err)
		return Receipt{}, err
	}
	log.Debugf("exec of %v.%s committed state %v", tx.Contract, tx.FuncName, receipt.State)
	return receipt, nil
}

func (r *Runtime) exec(
	ctx context.Context,
	tx *contract.Transaction,
	startingState common.State,
	nodeData any,
	opts Opts,
) (Receipt, error) {
	fail := func(kind Kind, err error) (Receipt, error) {
		return Receipt{}, &ExecError{Kind: kind, Address: tx.Contract, Func: tx.FuncName, Err: err}
	}

	c, found, err := r.contracts.Load(tx.Contract)
	if err != nil {
		return fail(ExecFailed, err)
	}
	if !found {
		return fail(NotFound, nil)
	}

	store, err := page.NewStore(r.kv, tx.Contract, opts.MaxPages)
	if err != nil {
		return fail(ExecFailed, err)
	}
	if root := store.Root(); root != startingState {
		return fail(StateMismatch, fmt.Errorf("contract is at %v, not %v", root, startingState))
	}

	cache := page.NewCache(store, opts.CachedPages)
	cache.SetHashWorkers(opts.HashWorkers)
	storage := page.NewSliceCache(cache, opts.MaxPagesSlices)
	execCtx := vmcall.NewContext(storage, r.config.Registers, r.node, nodeData)
	committed := false
	defer func() {
		if !committed {
			execCtx.Discard()
		}
	}()
	// A start function runs on instantiation and may already issue vmcalls.
	ctx = vmcall.WithContext(ctx, execCtx)

	compiled, release, err := r.compiler.CompileContract(ctx, tx.Contract, c.Code)
	if err != nil {
		return fail(CompilationFailed, err)
	}
	defer release()

	instance, err := r.wasm.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName("").WithStartFunctions())
	if err != nil {
		return fail(InstantiationFailed, err)
	}
	defer instance.Close(ctx)

	args, types, err := prepareArgs(instance.Memory(), tx.FuncArgs)
	if errors.Is(err, ErrSliceArg) {
		return fail(Unimplemented, err)
	}
	if err != nil {
		return fail(ExecFailed, err)
	}

	fn := instance.ExportedFunction(tx.FuncName)
	if fn == nil {
		return fail(FuncNotFound, nil)
	}
	def := fn.Definition()
	if err := checkParams(def.ParamTypes(), types); err != nil {
		return fail(ExecFailed, err)
	}

	results, err := fn.Call(ctx, args...)
	if err != nil {
		return fail(ExecFailed, err)
	}
	state, err := execCtx.Commit()
	if err != nil {
		return fail(ExecFailed, err)
	}
	committed = true
	return Receipt{State: state, Returns: returnValues(def.ResultTypes(), results)}, nil
}

// prepareArgs converts the arguments of a transaction into call parameters
// and their types. Fixed arguments are copied to consecutive locations of
// the instance's memory, starting at offset 0; the function receives their
// offsets.
func prepareArgs(mem api.Memory, args []contract.ArgValue) ([]uint64, []api.ValueType, error) {
	values := make([]uint64, 0, len(args))
	types := make([]api.ValueType, 0, len(args))
	offset := uint64(0)
	for i, arg := range args {
		var valueType api.ValueType
		var value uint64
		switch a := arg.(type) {
		case contract.I32:
			valueType, value = api.ValueTypeI32, api.EncodeU32(uint32(a))
		case contract.I64:
			valueType, value = api.ValueTypeI64, uint64(a)
		case contract.Fixed:
			if mem == nil {
				return nil, nil, ErrNoMemory
			}
			end := offset + uint64(len(a.Data))
			if end > math.MaxUint32 || !mem.Write(uint32(offset), a.Data) {
				return nil, nil, fmt.Errorf("%w: arg #%d ends at %d", ErrMemoryAccess, i, end)
			}
			if a.OffsetType == contract.IntI64 {
				valueType, value = api.ValueTypeI64, offset
			} else {
				valueType, value = api.ValueTypeI32, api.EncodeU32(uint32(offset))
			}
			offset = end
		case contract.Slice:
			return nil, nil, ErrSliceArg
		default:
			return nil, nil, fmt.Errorf("%w: arg #%d is %T", ErrArgType, i, arg)
		}
		values = append(values, value)
		types = append(types, valueType)
	}
	return values, types, nil
}

// checkParams verifies that the prepared arguments match the parameters of
// the called function.
func checkParams(params, args []api.ValueType) error {
	if len(params) != len(args) {
		return fmt.Errorf("%w: function takes %d, got %d", ErrArgCount, len(params), len(args))
	}
	for i := range params {
		if params[i] != args[i] {
			return fmt.Errorf("%w: arg #%d is %s, parameter is %s",
				ErrArgType, i, api.ValueTypeName(args[i]), api.ValueTypeName(params[i]))
		}
	}
	return nil
}

func returnValues(types []api.ValueType, results []uint64) []contract.ArgValue {
	if len(results) == 0 {
		return nil
	}
	res := make([]contract.ArgValue, 0, len(results))
	for i, v := range results {
		if types[i] == api.ValueTypeI32 {
			res = append(res, contract.I32(api.DecodeU32(v)))
		} else {
			res = append(res, contract.I64(v))
		}
	}
	return res
}

// Call is a single entry of a batch execution.
type Call struct {
	Tx       *contract.Transaction
	State    common.State // < expected state of the contract
	NodeData any
}

// ExecBatch runs the given calls in parallel. All calls must target distinct
// contracts. The results are in the order of the calls; a failing call does
// not affect the others.
func (r *Runtime) ExecBatch(ctx context.Context, calls []Call, opts Opts) ([]future.Result[Receipt], error) {
	seen := make(map[common.Address]struct{}, len(calls))
	for _, call := range calls {
		if _, found := seen[call.Tx.Contract]; found {
			return nil, fmt.Errorf("%w: %v", ErrDuplicateBatch, call.Tx.Contract)
		}
		seen[call.Tx.Contract] = struct{}{}
	}

	futures := make([]*future.Future[Receipt], len(calls))
	for i, call := range calls {
		futures[i] = future.Spawn(func() (Receipt, error) {
			return r.Exec(ctx, call.Tx, call.State, call.NodeData, opts)
		})
	}
	res := make([]future.Result[Receipt], len(calls))
	for i, f := range futures {
		res[i] = f.Await()
	}
	return res, nil
}
