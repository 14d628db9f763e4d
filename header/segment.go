// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package header

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/grailbio/zff/codec"
	"github.com/grailbio/zff/errors"
)

// SegmentHeader opens each segment file. All segments of one acquisition
// share the unique identifier; segment numbers start at 1.
type SegmentHeader struct {
	version uint8
	uid     int64
	number  uint64
	length  uint64
}

// NewSegmentHeader returns a segment header. length is usually 0 and
// patched with PatchLength once the segment is written.
func NewSegmentHeader(version uint8, uid int64, number, length uint64) SegmentHeader {
	return SegmentHeader{version: version, uid: uid, number: number, length: length}
}

// NewUniqueIdentifier returns a random identifier for a new acquisition,
// taken from a version 4 UUID.
func NewUniqueIdentifier() (int64, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return 0, errors.E("generate unique identifier", err)
	}
	return int64(binary.LittleEndian.Uint64(u[:8])), nil
}

// Version returns the header version.
func (h SegmentHeader) Version() uint8 { return h.version }

// UniqueIdentifier returns the acquisition's identifier.
func (h SegmentHeader) UniqueIdentifier() int64 { return h.uid }

// Number returns the segment number.
func (h SegmentHeader) Number() uint64 { return h.number }

// Length returns the total size of the segment file, or 0 if it is not
// known yet.
func (h SegmentHeader) Length() uint64 { return h.length }

// PatchLength sets the segment length once the segment is written.
func (h *SegmentHeader) PatchLength(length uint64) {
	h.length = length
}

// Next returns the header of the following segment.
func (h SegmentHeader) Next() SegmentHeader {
	return NewSegmentHeader(h.version, h.uid, h.number+1, 0)
}

// Equal tells whether h and other have the same segment number. Version,
// identifier and length are not compared: headers of different
// acquisitions with the same number are equal.
func (h SegmentHeader) Equal(other SegmentHeader) bool {
	return h.number == other.number
}

// Identifier implements codec.Identified.
func (SegmentHeader) Identifier() codec.Identifier { return SegmentHeaderIdentifier }

// LengthRule implements codec.Identified.
func (SegmentHeader) LengthRule() codec.LengthRule { return codec.BodyOnly }

// EncodeBody implements codec.Record.
func (h SegmentHeader) EncodeBody(e *codec.Encoder) {
	e.PutUint8(h.version)
	e.PutInt64(h.uid)
	e.PutUint64(h.number)
	e.PutUint64(h.length)
}

// Encode returns h in its envelope.
func (h SegmentHeader) Encode() []byte {
	return codec.Encode(h)
}

func (h *SegmentHeader) decodeBody(d *codec.Decoder) error {
	h.version = d.Uint8()
	h.uid = d.Int64()
	h.number = d.Uint64()
	h.length = d.Uint64()
	return d.Err()
}

// DecodeSegmentHeader decodes the segment header at the start of data
// and returns it with the number of bytes it occupies.
func DecodeSegmentHeader(data []byte) (SegmentHeader, int, error) {
	var h SegmentHeader
	n, err := codec.DecodeAndValidate(data, SegmentHeaderIdentifier, codec.BodyOnly, h.decodeBody)
	if err != nil {
		return SegmentHeader{}, 0, errors.E("decode segment header", err)
	}
	return h, n, nil
}
