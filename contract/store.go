// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package contract

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/spacemeshos/svm/common"
	"github.com/spacemeshos/svm/database/kv"
)

const ErrAddressTaken = common.ConstError("address holds a different contract")

// Store persists deployed contracts by address. Records are RLP encoded and
// stored under ContractPrefix ‖ address.
type Store struct {
	kv kv.KeyValueStore
}

func NewStore(store kv.KeyValueStore) *Store {
	return &Store{kv: store}
}

func key(address common.Address) []byte {
	return kv.Key(kv.ContractPrefix, address[:])
}

// Store persists the contract at the given address. Storing the same contract
// twice is a no-op; storing a different one under a used address fails.
func (s *Store) Store(c *Contract, address common.Address) error {
	data, err := rlp.EncodeToBytes(c)
	if err != nil {
		return fmt.Errorf("failed to encode contract: %w", err)
	}
	existing, err := s.kv.Get(key(address))
	switch {
	case err == nil:
		if bytes.Equal(existing, data) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrAddressTaken, address)
	case !errors.Is(err, kv.ErrNotFound):
		return err
	}
	return s.kv.Put([]kv.Pair{{Key: key(address), Value: data}})
}

// Load returns the contract stored at the given address. The boolean result
// is false if there is none.
func (s *Store) Load(address common.Address) (*Contract, bool, error) {
	data, err := s.kv.Get(key(address))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	res := &Contract{}
	if err := rlp.DecodeBytes(data, res); err != nil {
		return nil, false, fmt.Errorf("corrupted contract record at %v: %w", address, err)
	}
	if len(res.Admins) == 0 {
		res.Admins = nil
	}
	if len(res.Code) == 0 {
		res.Code = nil
	}
	return res, true, nil
}
