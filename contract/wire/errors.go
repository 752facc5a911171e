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
	"fmt"

	"github.com/spacemeshos/svm/common"
)

const (
	ErrNotEnoughBytes     = common.ConstError("not enough bytes")
	ErrTrailingBytes      = common.ConstError("trailing bytes")
	ErrUnsupportedVersion = common.ConstError("unsupported protocol version")
	ErrEmptyName          = common.ConstError("empty name")
	ErrInvalidUTF8        = common.ConstError("not a valid UTF-8 string")
	ErrTooLong            = common.ConstError("too long")
	ErrUnknownArgType     = common.ConstError("unknown argument type")
	ErrUnknownIntType     = common.ConstError("unknown integer type")
)

// Field names a part of a wire message.
type Field string

const (
	FieldVersion      Field = "version"
	FieldName         Field = "name"
	FieldAuthor       Field = "author"
	FieldAdmins       Field = "admins"
	FieldCode         Field = "code"
	FieldContract     Field = "contract"
	FieldSender       Field = "sender"
	FieldFuncName     Field = "func name"
	FieldFuncArgs     Field = "func args"
	FieldFuncArgValue Field = "func arg value"
)

// ContractBuildError reports a malformed deploy-contract message.
type ContractBuildError struct {
	Field Field
	Err   error
}

func (e *ContractBuildError) Error() string {
	return fmt.Sprintf("invalid contract, %s: %v", e.Field, e.Err)
}

func (e *ContractBuildError) Unwrap() error {
	return e.Err
}

// TransactionBuildError reports a malformed execute-transaction message.
type TransactionBuildError struct {
	Field Field
	Err   error
}

func (e *TransactionBuildError) Error() string {
	return fmt.Sprintf("invalid transaction, %s: %v", e.Field, e.Err)
}

func (e *TransactionBuildError) Unwrap() error {
	return e.Err
}
