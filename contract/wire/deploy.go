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

// ParseContract decodes a deploy-contract message:
//
//	| 4B version | 1B name length | name | 20B author |
//	| 2B #admins | 20B x #admins admins | 2B code length | code |
//
// The code is not validated here.
func ParseContract(data []byte) (*contract.Contract, error) {
	fail := func(field Field, err error) (*contract.Contract, error) {
		return nil, &ContractBuildError{Field: field, Err: err}
	}

	c := &cursor{data: data}
	res := &contract.Contract{}
	var err error
	if res.Version, err = c.version(); err != nil {
		return fail(FieldVersion, err)
	}
	if res.Name, err = c.name(); err != nil {
		return fail(FieldName, err)
	}
	if res.Author, err = c.address(); err != nil {
		return fail(FieldAuthor, err)
	}

	numAdmins, err := c.u16()
	if err != nil {
		return fail(FieldAdmins, err)
	}
	for i := 0; i < int(numAdmins); i++ {
		admin, err := c.address()
		if err != nil {
			return fail(FieldAdmins, err)
		}
		res.Admins = append(res.Admins, admin)
	}

	codeLen, err := c.u16()
	if err != nil {
		return fail(FieldCode, err)
	}
	if codeLen > 0 {
		if res.Code, err = c.bytes(int(codeLen)); err != nil {
			return fail(FieldCode, err)
		}
	}
	if err := c.done(); err != nil {
		return fail(FieldCode, err)
	}
	return res, nil
}

// BuildContract encodes the given contract into a deploy-contract message.
func BuildContract(c *contract.Contract) ([]byte, error) {
	fail := func(field Field, err error) ([]byte, error) {
		return nil, &ContractBuildError{Field: field, Err: err}
	}
	if c.Version != Version {
		return fail(FieldVersion, fmt.Errorf("%w: %d", ErrUnsupportedVersion, c.Version))
	}
	if err := checkName(c.Name); err != nil {
		return fail(FieldName, err)
	}
	if len(c.Admins) > 0xffff {
		return fail(FieldAdmins, fmt.Errorf("%w: %d admins", ErrTooLong, len(c.Admins)))
	}
	if len(c.Code) > 0xffff {
		return fail(FieldCode, fmt.Errorf("%w: %d bytes", ErrTooLong, len(c.Code)))
	}

	size := 4 + 1 + len(c.Name) + common.AddressSize + 2 + len(c.Admins)*common.AddressSize + 2 + len(c.Code)
	res := make([]byte, 0, size)
	res = binary.BigEndian.AppendUint32(res, c.Version)
	res = appendName(res, c.Name)
	res = append(res, c.Author[:]...)
	res = binary.BigEndian.AppendUint16(res, uint16(len(c.Admins)))
	for _, admin := range c.Admins {
		res = append(res, admin[:]...)
	}
	res = binary.BigEndian.AppendUint16(res, uint16(len(c.Code)))
	res = append(res, c.Code...)
	return res, nil
}

// ContractBuilder assembles deploy-contract messages.
type ContractBuilder struct {
	contract contract.Contract
}

func NewContractBuilder() *ContractBuilder {
	return &ContractBuilder{}
}

func (b *ContractBuilder) WithVersion(version uint32) *ContractBuilder {
	b.contract.Version = version
	return b
}

func (b *ContractBuilder) WithName(name string) *ContractBuilder {
	b.contract.Name = name
	return b
}

func (b *ContractBuilder) WithAuthor(author common.Address) *ContractBuilder {
	b.contract.Author = author
	return b
}

func (b *ContractBuilder) WithAdmins(admins ...common.Address) *ContractBuilder {
	b.contract.Admins = append(b.contract.Admins, admins...)
	return b
}

func (b *ContractBuilder) WithCode(code []byte) *ContractBuilder {
	b.contract.Code = code
	return b
}

func (b *ContractBuilder) Build() ([]byte, error) {
	return BuildContract(&b.contract)
}
