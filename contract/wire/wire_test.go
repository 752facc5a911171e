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
	"errors"
	"testing"

	"github.com/spacemeshos/svm/common"
	"github.com/spacemeshos/svm/contract"
	"github.com/stretchr/testify/require"
)

func TestContractBuilder_ProducesDocumentedLayout(t *testing.T) {
	require := require.New(t)
	author := common.AddressFromUint32(0x10203040)
	admin := common.AddressFromUint32(0x01)

	data, err := NewContractBuilder().
		WithName("ab").
		WithAuthor(author).
		WithAdmins(admin).
		WithCode([]byte{0xAA, 0xBB}).
		Build()
	require.NoError(err)

	want := []byte{0, 0, 0, 0, 2, 'a', 'b'}
	want = append(want, author[:]...)
	want = append(want, 0, 1)
	want = append(want, admin[:]...)
	want = append(want, 0, 2, 0xAA, 0xBB)
	require.Equal(want, data)
}

func TestParseContract_InvertsBuild(t *testing.T) {
	require := require.New(t)
	tests := map[string]*contract.Contract{
		"no admins": {
			Name:   "Contract #1",
			Author: common.AddressFromUint32(0x10203040),
			Code:   []byte{0xAA, 0xBB, 0xCC, 0xDD},
		},
		"admins": {
			Name:   "multi-sig",
			Author: common.AddressFromUint32(1),
			Admins: []common.Address{common.AddressFromUint32(2), common.AddressFromUint32(3)},
			Code:   []byte{0x00, 0x61, 0x73, 0x6d},
		},
		"no code": {
			Name:   "π",
			Author: common.AddressFromUint32(4),
		},
	}
	for name, c := range tests {
		t.Run(name, func(t *testing.T) {
			data, err := BuildContract(c)
			require.NoError(err)
			parsed, err := ParseContract(data)
			require.NoError(err)
			require.Equal(c, parsed)
		})
	}
}

func TestParseContract_ReportsMalformedFields(t *testing.T) {
	valid, err := NewContractBuilder().
		WithName("name").
		WithAuthor(common.AddressFromUint32(1)).
		WithAdmins(common.AddressFromUint32(2)).
		WithCode([]byte{1, 2, 3}).
		Build()
	require.NoError(t, err)

	replace := func(pos int, b ...byte) []byte {
		res := append([]byte(nil), valid...)
		copy(res[pos:], b)
		return res
	}

	tests := map[string]struct {
		data  []byte
		field Field
		want  error
	}{
		"empty":            {nil, FieldVersion, ErrNotEnoughBytes},
		"unknown version":  {replace(0, 0, 0, 0, 1), FieldVersion, ErrUnsupportedVersion},
		"missing name":     {valid[:4], FieldName, ErrNotEnoughBytes},
		"empty name":       {replace(4, 0), FieldName, ErrEmptyName},
		"truncated name":   {valid[:7], FieldName, ErrNotEnoughBytes},
		"invalid utf8":     {replace(5, 0xff), FieldName, ErrInvalidUTF8},
		"truncated author": {valid[:20], FieldAuthor, ErrNotEnoughBytes},
		"truncated admins": {valid[:32], FieldAdmins, ErrNotEnoughBytes},
		"missing code":     {valid[:len(valid)-4], FieldCode, ErrNotEnoughBytes},
		"truncated code":   {valid[:len(valid)-1], FieldCode, ErrNotEnoughBytes},
		"trailing bytes":   {append(append([]byte(nil), valid...), 0), FieldCode, ErrTrailingBytes},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseContract(test.data)
			require.ErrorIs(t, err, test.want)
			var buildErr *ContractBuildError
			require.True(t, errors.As(err, &buildErr))
			require.Equal(t, test.field, buildErr.Field)
		})
	}
}

func TestBuildContract_RejectsUnencodableContracts(t *testing.T) {
	tests := map[string]struct {
		contract contract.Contract
		field    Field
		want     error
	}{
		"version":    {contract.Contract{Version: 1, Name: "a"}, FieldVersion, ErrUnsupportedVersion},
		"empty name": {contract.Contract{}, FieldName, ErrEmptyName},
		"long name":  {contract.Contract{Name: string(make([]byte, 256))}, FieldName, ErrTooLong},
		"bad name":   {contract.Contract{Name: "\xff"}, FieldName, ErrInvalidUTF8},
		"long code":  {contract.Contract{Name: "a", Code: make([]byte, 0x10000)}, FieldCode, ErrTooLong},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := BuildContract(&test.contract)
			require.ErrorIs(t, err, test.want)
			var buildErr *ContractBuildError
			require.True(t, errors.As(err, &buildErr))
			require.Equal(t, test.field, buildErr.Field)
		})
	}
}

func TestTransactionBuilder_ProducesDocumentedLayout(t *testing.T) {
	require := require.New(t)
	target := common.AddressFromUint32(0x0a)
	sender := common.AddressFromUint32(0x0b)

	data, err := NewTransactionBuilder().
		WithContract(target).
		WithSender(sender).
		WithFuncName("run").
		WithArgs(
			contract.I32(0x01020304),
			contract.I64(0x05),
			contract.Fixed{OffsetType: contract.IntI64, Data: []byte{0xAA}},
			contract.Slice{OffsetType: contract.IntI32, LenType: contract.IntI64, Data: []byte{0xBB, 0xCC}},
		).
		Build()
	require.NoError(err)

	want := []byte{0, 0, 0, 0}
	want = append(want, target[:]...)
	want = append(want, sender[:]...)
	want = append(want, 3, 'r', 'u', 'n', 4)
	want = append(want, 0, 0x01, 0x02, 0x03, 0x04)
	want = append(want, 1, 0, 0, 0, 0, 0, 0, 0, 0x05)
	want = append(want, 2, 1, 0, 1, 0xAA)
	want = append(want, 3, 0, 1, 0, 2, 0xBB, 0xCC)
	require.Equal(want, data)
}

func TestParseTransaction_InvertsBuild(t *testing.T) {
	require := require.New(t)
	tests := map[string]*contract.Transaction{
		"no args": {
			Contract: common.AddressFromUint32(1),
			Sender:   common.AddressFromUint32(2),
			FuncName: "execute",
		},
		"all arg types": {
			Contract: common.AddressFromUint32(3),
			Sender:   common.AddressFromUint32(4),
			FuncName: "transfer",
			FuncArgs: []contract.ArgValue{
				contract.I32(0xffffffff),
				contract.I64(1 << 63),
				contract.Fixed{OffsetType: contract.IntI32, Data: make([]byte, 32)},
				contract.Slice{OffsetType: contract.IntI64, LenType: contract.IntI32, Data: []byte("hello")},
			},
		},
	}
	for name, tx := range tests {
		t.Run(name, func(t *testing.T) {
			data, err := BuildTransaction(tx)
			require.NoError(err)
			parsed, err := ParseTransaction(data)
			require.NoError(err)
			require.Equal(tx, parsed)
		})
	}
}

func TestParseTransaction_ReportsMalformedFields(t *testing.T) {
	header, err := NewTransactionBuilder().
		WithContract(common.AddressFromUint32(1)).
		WithSender(common.AddressFromUint32(2)).
		WithFuncName("f").
		Build()
	require.NoError(t, err)
	// header ends with the argument count, which is zero
	prefix := header[:len(header)-1]
	withArgs := func(args ...byte) []byte {
		return append(append([]byte(nil), prefix...), args...)
	}

	tests := map[string]struct {
		data  []byte
		field Field
		want  error
	}{
		"empty":              {nil, FieldVersion, ErrNotEnoughBytes},
		"truncated contract": {header[:10], FieldContract, ErrNotEnoughBytes},
		"truncated sender":   {header[:30], FieldSender, ErrNotEnoughBytes},
		"missing func name":  {header[:44], FieldFuncName, ErrNotEnoughBytes},
		"missing arg count":  {prefix, FieldFuncArgs, ErrNotEnoughBytes},
		"missing arg":        {withArgs(1), FieldFuncArgs, ErrNotEnoughBytes},
		"unknown arg type":   {withArgs(1, 4), FieldFuncArgs, ErrUnknownArgType},
		"truncated i32":      {withArgs(1, 0, 1, 2), FieldFuncArgValue, ErrNotEnoughBytes},
		"truncated i64":      {withArgs(1, 1, 1, 2, 3, 4), FieldFuncArgValue, ErrNotEnoughBytes},
		"unknown int type":   {withArgs(1, 2, 2, 0, 0), FieldFuncArgValue, ErrUnknownIntType},
		"fixed overflow":     {withArgs(1, 2, 0, 0, 3, 1, 2), FieldFuncArgValue, ErrNotEnoughBytes},
		"slice overflow":     {withArgs(1, 3, 0, 1, 0, 2, 1), FieldFuncArgValue, ErrNotEnoughBytes},
		"bad slice len type": {withArgs(1, 3, 0, 5, 0, 0), FieldFuncArgValue, ErrUnknownIntType},
		"trailing bytes":     {withArgs(0, 7), FieldFuncArgs, ErrTrailingBytes},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTransaction(test.data)
			require.ErrorIs(t, err, test.want)
			var buildErr *TransactionBuildError
			require.True(t, errors.As(err, &buildErr))
			require.Equal(t, test.field, buildErr.Field)
		})
	}
}

func TestBuildTransaction_RejectsUnencodableTransactions(t *testing.T) {
	tests := map[string]struct {
		tx    contract.Transaction
		field Field
		want  error
	}{
		"version":       {contract.Transaction{Version: 2, FuncName: "f"}, FieldVersion, ErrUnsupportedVersion},
		"empty name":    {contract.Transaction{}, FieldFuncName, ErrEmptyName},
		"too many args": {contract.Transaction{FuncName: "f", FuncArgs: make([]contract.ArgValue, 256)}, FieldFuncArgs, ErrTooLong},
		"nil arg":       {contract.Transaction{FuncName: "f", FuncArgs: []contract.ArgValue{nil}}, FieldFuncArgValue, ErrUnknownArgType},
		"bad int type": {contract.Transaction{FuncName: "f", FuncArgs: []contract.ArgValue{
			contract.Fixed{OffsetType: 7},
		}}, FieldFuncArgValue, ErrUnknownIntType},
		"long blob": {contract.Transaction{FuncName: "f", FuncArgs: []contract.ArgValue{
			contract.Fixed{Data: make([]byte, 0x10000)},
		}}, FieldFuncArgValue, ErrTooLong},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := BuildTransaction(&test.tx)
			require.ErrorIs(t, err, test.want)
			var buildErr *TransactionBuildError
			require.True(t, errors.As(err, &buildErr))
			require.Equal(t, test.field, buildErr.Field)
		})
	}
}

func TestBuildErrors_NameTheField(t *testing.T) {
	require := require.New(t)
	err := &TransactionBuildError{Field: FieldSender, Err: ErrNotEnoughBytes}
	require.Equal("invalid transaction, sender: not enough bytes", err.Error())
	cerr := &ContractBuildError{Field: FieldCode, Err: ErrTooLong}
	require.Equal("invalid contract, code: too long", cerr.Error())
}
