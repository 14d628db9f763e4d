// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package codec implements the primitive encoding shared by every zff
// header and footer: little-endian fixed-width integers, raw byte
// arrays, length-prefixed byte buffers, the identifier+length record
// envelope, and the keyed value encoding used by free-form metadata.
//
// Encoding never fails. Decoding runs on a forward-only cursor that
// records the first error it hits; every read after that returns a
// zero value, so composite decoders chain reads and check Err once
// before constructing a record.
package codec

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/grailbio/zff/errors"
	"github.com/grailbio/zff/must"
)

// BufferPrefixLen is the size of the length prefix of a variable-length
// byte buffer.
const BufferPrefixLen = 4

// Encoder appends encoded values to a growable buffer. Thread compatible.
// The zero Encoder is ready to use.
type Encoder struct {
	data []byte
}

// Bytes returns the encoded bytes. The slice aliases the encoder's buffer
// until the next Put call.
func (e *Encoder) Bytes() []byte {
	return e.data
}

// Len returns the number of bytes encoded so far.
func (e *Encoder) Len() int {
	return len(e.data)
}

// grow extends e.data by delta bytes and returns the new tail.
func (e *Encoder) grow(delta int) []byte {
	cur := len(e.data)
	if cap(e.data) >= cur+delta {
		e.data = e.data[:cur+delta]
	} else {
		tmp := make([]byte, cur+delta, (cur+delta)*2)
		copy(tmp, e.data)
		e.data = tmp
	}
	return e.data[cur:]
}

// PutUint8 appends v.
func (e *Encoder) PutUint8(v uint8) {
	e.grow(1)[0] = v
}

// PutUint16 appends v in little-endian order.
func (e *Encoder) PutUint16(v uint16) {
	binary.LittleEndian.PutUint16(e.grow(2), v)
}

// PutUint32 appends v in little-endian order.
func (e *Encoder) PutUint32(v uint32) {
	binary.LittleEndian.PutUint32(e.grow(4), v)
}

// PutUint64 appends v in little-endian order.
func (e *Encoder) PutUint64(v uint64) {
	binary.LittleEndian.PutUint64(e.grow(8), v)
}

// PutInt64 appends v as its two's complement, little-endian.
func (e *Encoder) PutInt64(v int64) {
	e.PutUint64(uint64(v))
}

// PutArray appends b as is. Fixed-size arrays carry no length prefix;
// their size is implied by the field.
func (e *Encoder) PutArray(b []byte) {
	copy(e.grow(len(b)), b)
}

// PutBytes appends a variable-length buffer: a 4-byte little-endian
// length followed by the bytes. len(b) must fit in 32 bits.
func (e *Encoder) PutBytes(b []byte) {
	must.Truef(uint64(len(b)) <= math.MaxUint32, "codec: buffer of %d bytes exceeds the 32-bit length prefix", len(b))
	e.PutUint32(uint32(len(b)))
	e.PutArray(b)
}

// PutString appends s encoded as a variable-length buffer.
func (e *Encoder) PutString(s string) {
	e.PutBytes([]byte(s))
}

// Decoder is a forward-only cursor over an encoded buffer. Thread
// compatible.
type Decoder struct {
	err  errors.Once
	data []byte
	off  int
}

// NewDecoder returns a decoder positioned at the start of data. The
// decoder never modifies data; values it returns never alias it.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Err returns the first error encountered by the decoder.
func (d *Decoder) Err() error {
	return d.err.Err()
}

// Consumed returns the number of bytes consumed so far.
func (d *Decoder) Consumed() int {
	return d.off
}

// Remaining returns the number of bytes left in the buffer.
func (d *Decoder) Remaining() int {
	return len(d.data) - d.off
}

func (d *Decoder) fail(err error) {
	d.err.Set(err)
}

// next consumes n bytes. On a short read it records an IO error and
// leaves the cursor where it was.
func (d *Decoder) next(n int) []byte {
	if d.err.Err() != nil {
		return nil
	}
	if n < 0 || n > d.Remaining() {
		d.fail(errors.E(errors.IO, fmt.Sprintf("need %d bytes at offset %d, have %d", n, d.off, d.Remaining()),
			io.ErrUnexpectedEOF))
		return nil
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b
}

// Uint8 reads one byte.
func (d *Decoder) Uint8() uint8 {
	b := d.next(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// Uint16 reads a little-endian 16-bit value.
func (d *Decoder) Uint16() uint16 {
	b := d.next(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// Uint32 reads a little-endian 32-bit value.
func (d *Decoder) Uint32() uint32 {
	b := d.next(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// Uint64 reads a little-endian 64-bit value.
func (d *Decoder) Uint64() uint64 {
	b := d.next(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// Int64 reads a little-endian two's complement 64-bit value.
func (d *Decoder) Int64() int64 {
	return int64(d.Uint64())
}

// ReadFull fills dst with the next len(dst) bytes. dst is left untouched
// on a short read.
func (d *Decoder) ReadFull(dst []byte) {
	if b := d.next(len(dst)); b != nil {
		copy(dst, b)
	}
}

// Array reads n raw bytes into a new slice.
func (d *Decoder) Array(n int) []byte {
	b := d.next(n)
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// Bytes reads a variable-length buffer: the 4-byte length prefix, then
// exactly that many bytes.
func (d *Decoder) Bytes() []byte {
	n := d.Uint32()
	if d.err.Err() != nil {
		return nil
	}
	b := d.next(int(n))
	if b == nil {
		return nil
	}
	return append(make([]byte, 0, len(b)), b...)
}
