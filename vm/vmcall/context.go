// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package vmcall

import (
	"context"
	"fmt"

	"github.com/spacemeshos/svm/common"
	"github.com/spacemeshos/svm/storage/page"
	"github.com/spacemeshos/svm/vm/register"
	"golang.org/x/exp/maps"
)

//go:generate mockgen -source context.go -destination context_mocks.go -package vmcall

// NodeAPI is implemented by the embedding node to serve node vmcalls. The
// node data handed to an execution is passed through unchanged; it is never
// inspected by the runtime.
type NodeAPI interface {
	GetBalance(nodeData any, address common.Address) (common.Balance, error)
	SetBalances(nodeData any, balances map[common.Address]common.Balance) error
}

// Context is the per-execution state a guest instance operates on through
// vmcalls. It owns the register file and the slice cache of the executed
// contract and is never shared between executions.
type Context struct {
	Registers *register.File
	Storage   *page.SliceCache
	NodeData  any

	node     NodeAPI
	balances map[common.Address]common.Balance // < balance updates pending commit
}

// NewContext creates an execution context over the given storage.
func NewContext(
	storage *page.SliceCache,
	counts register.Counts,
	node NodeAPI,
	nodeData any,
) *Context {
	return &Context{
		Registers: register.NewFile(counts),
		Storage:   storage,
		NodeData:  nodeData,
		node:      node,
		balances:  map[common.Address]common.Balance{},
	}
}

// PendingBalances returns the balance updates not yet handed to the node.
func (c *Context) PendingBalances() map[common.Address]common.Balance {
	return maps.Clone(c.balances)
}

// Commit persists the storage changes of the execution and hands pending
// balance updates to the node. It returns the new state root.
func (c *Context) Commit() (common.State, error) {
	state, err := c.Storage.Commit()
	if err != nil {
		return common.State{}, fmt.Errorf("failed to commit storage: %w", err)
	}
	if len(c.balances) > 0 {
		if c.node == nil {
			return common.State{}, ErrNoNode
		}
		if err := c.node.SetBalances(c.NodeData, c.balances); err != nil {
			return common.State{}, fmt.Errorf("failed to update balances: %w", err)
		}
		c.balances = map[common.Address]common.Balance{}
	}
	return state, nil
}

// Discard drops all pending storage and balance changes.
func (c *Context) Discard() {
	c.Storage.Discard()
	c.balances = map[common.Address]common.Balance{}
}

type contextKey struct{}

// WithContext attaches the execution context to ctx. Host functions invoked
// by a guest call made with the resulting context operate on it.
func WithContext(ctx context.Context, c *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext returns the execution context attached to ctx, or nil.
func FromContext(ctx context.Context) *Context {
	c, _ := ctx.Value(contextKey{}).(*Context)
	return c
}
