// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package ledger

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/holiman/uint256"
	"github.com/spacemeshos/svm/common"
	"github.com/spacemeshos/svm/database/kv"
	"golang.org/x/exp/maps"
)

const ErrCorrupted = common.ConstError("corrupted balance record")

// Ledger keeps account balances in a key-value store, under
// BalancePrefix ‖ address. Accounts without a record have a zero balance.
// It serves the balance vmcalls of the runtime; the node data passed along
// with the calls is ignored.
type Ledger struct {
	kv kv.KeyValueStore
	mu sync.Mutex // < serializes read-modify-write updates
}

func New(store kv.KeyValueStore) *Ledger {
	return &Ledger{kv: store}
}

func key(address common.Address) []byte {
	return kv.Key(kv.BalancePrefix, address[:])
}

func (l *Ledger) GetBalance(_ any, address common.Address) (common.Balance, error) {
	return l.Balance(address)
}

// SetBalances updates all given balances in a single atomic write.
func (l *Ledger) SetBalances(_ any, balances map[common.Address]common.Balance) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.put(balances)
}

// Balance returns the balance of the given account.
func (l *Ledger) Balance(address common.Address) (common.Balance, error) {
	data, err := l.kv.Get(key(address))
	if errors.Is(err, kv.ErrNotFound) {
		return common.Balance{}, nil
	}
	if err != nil {
		return common.Balance{}, err
	}
	if len(data) != common.BalanceSize {
		return common.Balance{}, fmt.Errorf("%w: %v has %d bytes", ErrCorrupted, address, len(data))
	}
	var res common.Balance
	copy(res[:], data)
	return res, nil
}

// Credit adds the given amount to the balance of the account and returns the
// new balance.
func (l *Ledger) Credit(address common.Address, amount *uint256.Int) (common.Balance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	current, err := l.Balance(address)
	if err != nil {
		return common.Balance{}, err
	}
	sum, overflow := new(uint256.Int).AddOverflow(current.Uint256(), amount)
	if overflow {
		return common.Balance{}, common.ErrBalanceOverflow
	}
	updated, err := common.BalanceFromUint256(sum)
	if err != nil {
		return common.Balance{}, err
	}
	if err := l.put(map[common.Address]common.Balance{address: updated}); err != nil {
		return common.Balance{}, err
	}
	return updated, nil
}

func (l *Ledger) put(balances map[common.Address]common.Balance) error {
	addresses := maps.Keys(balances)
	slices.SortFunc(addresses, func(a, b common.Address) int {
		return bytes.Compare(a[:], b[:])
	})
	batch := make([]kv.Pair, 0, len(addresses))
	for _, address := range addresses {
		balance := balances[address]
		batch = append(batch, kv.Pair{Key: key(address), Value: balance[:]})
	}
	return l.kv.Put(batch)
}
