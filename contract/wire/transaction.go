// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/spacemeshos/svm/common"
	"github.com/spacemeshos/svm/contract"
)

// ParseTransaction decodes an execute-transaction message:
//
//	| 4B version | 20B contract | 20B sender |
//	| 1B func name length | func name | 1B #args | (1B arg type, payload)* |
//
// Payloads by argument type:
//
//	i32    4B value
//	i64    8B value
//	fixed  1B offset type, 2B length, data
//	slice  1B offset type, 1B length type, 2B length, data
func ParseTransaction(data []byte) (*contract.Transaction, error) {
	fail := func(field Field, err error) (*contract.Transaction, error) {
		return nil, &TransactionBuildError{Field: field, Err: err}
	}

	c := &cursor{data: data}
	res := &contract.Transaction{}
	var err error
	if res.Version, err = c.version(); err != nil {
		return fail(FieldVersion, err)
	}
	if res.Contract, err = c.address(); err != nil {
		return fail(FieldContract, err)
	}
	if res.Sender, err = c.address(); err != nil {
		return fail(FieldSender, err)
	}
	if res.FuncName, err = c.name(); err != nil {
		return fail(FieldFuncName, err)
	}

	numArgs, err := c.u8()
	if err != nil {
		return fail(FieldFuncArgs, err)
	}
	for i := 0; i < int(numArgs); i++ {
		arg, field, err := parseArg(c)
		if err != nil {
			return fail(field, fmt.Errorf("arg #%d: %w", i, err))
		}
		res.FuncArgs = append(res.FuncArgs, arg)
	}
	if err := c.done(); err != nil {
		return fail(FieldFuncArgs, err)
	}
	return res, nil
}

func parseArg(c *cursor) (contract.ArgValue, Field, error) {
	tag, err := c.u8()
	if err != nil {
		return nil, FieldFuncArgs, err
	}
	switch contract.ArgType(tag) {
	case contract.ArgI32:
		v, err := c.u32()
		return contract.I32(v), FieldFuncArgValue, err
	case contract.ArgI64:
		v, err := c.u64()
		return contract.I64(v), FieldFuncArgValue, err
	case contract.ArgFixed:
		offsetType, err := intType(c)
		if err != nil {
			return nil, FieldFuncArgValue, err
		}
		data, err := blob(c)
		if err != nil {
			return nil, FieldFuncArgValue, err
		}
		return contract.Fixed{OffsetType: offsetType, Data: data}, FieldFuncArgValue, nil
	case contract.ArgSlice:
		offsetType, err := intType(c)
		if err != nil {
			return nil, FieldFuncArgValue, err
		}
		lenType, err := intType(c)
		if err != nil {
			return nil, FieldFuncArgValue, err
		}
		data, err := blob(c)
		if err != nil {
			return nil, FieldFuncArgValue, err
		}
		return contract.Slice{OffsetType: offsetType, LenType: lenType, Data: data}, FieldFuncArgValue, nil
	}
	return nil, FieldFuncArgs, fmt.Errorf("%w: %d", ErrUnknownArgType, tag)
}

func intType(c *cursor) (contract.IntType, error) {
	tag, err := c.u8()
	if err != nil {
		return 0, err
	}
	if t := contract.IntType(tag); t.Valid() {
		return t, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrUnknownIntType, tag)
}

func blob(c *cursor) ([]byte, error) {
	n, err := c.u16()
	if err != nil {
		return nil, err
	}
	return c.bytes(int(n))
}

// BuildTransaction encodes the given transaction into an
// execute-transaction message.
func BuildTransaction(tx *contract.Transaction) ([]byte, error) {
	fail := func(field Field, err error) ([]byte, error) {
		return nil, &TransactionBuildError{Field: field, Err: err}
	}
	if tx.Version != Version {
		return fail(FieldVersion, fmt.Errorf("%w: %d", ErrUnsupportedVersion, tx.Version))
	}
	if err := checkName(tx.FuncName); err != nil {
		return fail(FieldFuncName, err)
	}
	if len(tx.FuncArgs) > 0xff {
		return fail(FieldFuncArgs, fmt.Errorf("%w: %d args, at most 255", ErrTooLong, len(tx.FuncArgs)))
	}

	res := make([]byte, 0, 4+2*common.AddressSize+1+len(tx.FuncName)+1)
	res = binary.BigEndian.AppendUint32(res, tx.Version)
	res = append(res, tx.Contract[:]...)
	res = append(res, tx.Sender[:]...)
	res = appendName(res, tx.FuncName)
	res = append(res, byte(len(tx.FuncArgs)))
	for i, arg := range tx.FuncArgs {
		var err error
		if res, err = appendArg(res, arg); err != nil {
			return fail(FieldFuncArgValue, fmt.Errorf("arg #%d: %w", i, err))
		}
	}
	return res, nil
}

func appendArg(res []byte, arg contract.ArgValue) ([]byte, error) {
	if arg == nil {
		return nil, fmt.Errorf("%w: nil", ErrUnknownArgType)
	}
	res = append(res, byte(arg.Type()))
	switch v := arg.(type) {
	case contract.I32:
		return binary.BigEndian.AppendUint32(res, uint32(v)), nil
	case contract.I64:
		return binary.BigEndian.AppendUint64(res, uint64(v)), nil
	case contract.Fixed:
		if !v.OffsetType.Valid() {
			return nil, fmt.Errorf("%w: %v", ErrUnknownIntType, v.OffsetType)
		}
		res = append(res, byte(v.OffsetType))
		return appendBlob(res, v.Data)
	case contract.Slice:
		if !v.OffsetType.Valid() || !v.LenType.Valid() {
			return nil, fmt.Errorf("%w: %v/%v", ErrUnknownIntType, v.OffsetType, v.LenType)
		}
		res = append(res, byte(v.OffsetType), byte(v.LenType))
		return appendBlob(res, v.Data)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownArgType, arg)
}

func appendBlob(res []byte, data []byte) ([]byte, error) {
	if len(data) > 0xffff {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLong, len(data))
	}
	res = binary.BigEndian.AppendUint16(res, uint16(len(data)))
	return append(res, data...), nil
}

// TransactionBuilder assembles execute-transaction messages.
type TransactionBuilder struct {
	tx contract.Transaction
}

func NewTransactionBuilder() *TransactionBuilder {
	return &TransactionBuilder{}
}

func (b *TransactionBuilder) WithVersion(version uint32) *TransactionBuilder {
	b.tx.Version = version
	return b
}

func (b *TransactionBuilder) WithContract(address common.Address) *TransactionBuilder {
	b.tx.Contract = address
	return b
}

func (b *TransactionBuilder) WithSender(address common.Address) *TransactionBuilder {
	b.tx.Sender = address
	return b
}

func (b *TransactionBuilder) WithFuncName(name string) *TransactionBuilder {
	b.tx.FuncName = name
	return b
}

func (b *TransactionBuilder) WithArgs(args ...contract.ArgValue) *TransactionBuilder {
	b.tx.FuncArgs = append(b.tx.FuncArgs, args...)
	return b
}

func (b *TransactionBuilder) Build() ([]byte, error) {
	return BuildTransaction(&b.tx)
}
