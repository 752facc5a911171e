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
	"unicode/utf8"

	"github.com/spacemeshos/svm/common"
)

// Version is the only supported protocol version of both message kinds.
const Version uint32 = 0

// cursor consumes a message front to back. All integers are big-endian.
type cursor struct {
	data []byte
	pos  int
}

func (c *cursor) next(n int) ([]byte, error) {
	if n > len(c.data)-c.pos {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrNotEnoughBytes, n, len(c.data)-c.pos)
	}
	res := c.data[c.pos : c.pos+n]
	c.pos += n
	return res, nil
}

func (c *cursor) u8() (uint8, error) {
	b, err := c.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *cursor) u16() (uint16, error) {
	b, err := c.next(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (c *cursor) u32() (uint32, error) {
	b, err := c.next(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (c *cursor) u64() (uint64, error) {
	b, err := c.next(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (c *cursor) address() (common.Address, error) {
	b, err := c.next(common.AddressSize)
	if err != nil {
		return common.Address{}, err
	}
	return common.AddressFromBytes(b), nil
}

// bytes reads a blob of the given length and returns a copy of it.
func (c *cursor) bytes(n int) ([]byte, error) {
	b, err := c.next(n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

func (c *cursor) version() (uint32, error) {
	v, err := c.u32()
	if err != nil {
		return 0, err
	}
	if v != Version {
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	return v, nil
}

// name reads a non-empty UTF-8 string prefixed by a one byte length.
func (c *cursor) name() (string, error) {
	n, err := c.u8()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", ErrEmptyName
	}
	b, err := c.next(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrInvalidUTF8
	}
	return string(b), nil
}

func (c *cursor) done() error {
	if rest := len(c.data) - c.pos; rest > 0 {
		return fmt.Errorf("%w: %d", ErrTrailingBytes, rest)
	}
	return nil
}

func checkName(name string) error {
	if len(name) == 0 {
		return ErrEmptyName
	}
	if len(name) > 0xff {
		return fmt.Errorf("%w: %d bytes, at most 255", ErrTooLong, len(name))
	}
	if !utf8.ValidString(name) {
		return ErrInvalidUTF8
	}
	return nil
}

func appendName(res []byte, name string) []byte {
	res = append(res, byte(len(name)))
	return append(res, name...)
}
