// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package footer implements the main footer, the index record that
// closes a zff container. The footer is written once, as the last bytes
// of the last segment; a last segment without a readable main footer
// belongs to an incomplete or interrupted acquisition.
package footer

// Main footer body layout:
//
//   version  [1B]
//   segments [8B]
//   objects  [8B]
//   offset   [8B] where the footer starts within its segment
//
// The offset is the last field so that a reader holding only the tail
// of the last segment can locate the footer.

import (
	"encoding/binary"
	"fmt"

	"github.com/grailbio/zff/codec"
	"github.com/grailbio/zff/errors"
	"github.com/grailbio/zff/log"
)

// MainFooterIdentifier identifies a main footer ("zffM").
const MainFooterIdentifier codec.Identifier = 0x7A66664D

// MainFooter is the container's terminal index record.
type MainFooter struct {
	version  uint8
	segments uint64
	objects  uint64
	offset   uint64
}

// NewMainFooter returns a main footer for a container of segments
// segments and objects objects, starting at offset in the last segment.
func NewMainFooter(version uint8, segments, objects, offset uint64) MainFooter {
	return MainFooter{version: version, segments: segments, objects: objects, offset: offset}
}

// Version returns the footer version.
func (f MainFooter) Version() uint8 { return f.version }

// NumberOfSegments returns the number of segments of the container.
func (f MainFooter) NumberOfSegments() uint64 { return f.segments }

// NumberOfObjects returns the number of objects in the container.
func (f MainFooter) NumberOfObjects() uint64 { return f.objects }

// FooterOffset returns the offset of the footer within its segment.
func (f MainFooter) FooterOffset() uint64 { return f.offset }

// Identifier implements codec.Identified.
func (MainFooter) Identifier() codec.Identifier { return MainFooterIdentifier }

// LengthRule implements codec.Identified.
func (MainFooter) LengthRule() codec.LengthRule { return codec.BodyOnly }

// EncodeBody implements codec.Record.
func (f MainFooter) EncodeBody(e *codec.Encoder) {
	e.PutUint8(f.version)
	e.PutUint64(f.segments)
	e.PutUint64(f.objects)
	e.PutUint64(f.offset)
}

// Encode returns f in its envelope.
func (f MainFooter) Encode() []byte {
	return codec.Encode(f)
}

func (f *MainFooter) decodeBody(d *codec.Decoder) error {
	f.version = d.Uint8()
	f.segments = d.Uint64()
	f.objects = d.Uint64()
	f.offset = d.Uint64()
	return d.Err()
}

// DecodeMainFooter decodes the main footer at the start of data and
// returns it with the number of bytes it occupies.
func DecodeMainFooter(data []byte) (MainFooter, int, error) {
	var f MainFooter
	n, err := codec.DecodeAndValidate(data, MainFooterIdentifier, codec.BodyOnly, f.decodeBody)
	if err != nil {
		return MainFooter{}, 0, errors.E("decode main footer", err)
	}
	return f, n, nil
}

// FromSegmentTail locates and decodes the main footer of a container
// given the contents of its last segment. The footer must end the
// segment, and its stored offset, the segment's last 8 bytes, must be
// where it starts. A segment that does not end in a main footer fails
// with errors.NotExist; a footer that does not end the segment fails
// with errors.Integrity.
func FromSegmentTail(segment []byte) (MainFooter, error) {
	const offsetLen = 8
	if len(segment) < codec.PrefixLen+offsetLen {
		return MainFooter{}, errors.E(errors.NotExist, "segment too short to hold a main footer")
	}
	off := binary.LittleEndian.Uint64(segment[len(segment)-offsetLen:])
	if off > uint64(len(segment)-codec.PrefixLen-offsetLen) {
		log.Debug.Printf("footer: trailing offset %d outside segment of %d bytes", off, len(segment))
		return MainFooter{}, errors.E(errors.NotExist, "no main footer at end of segment")
	}
	f, n, err := DecodeMainFooter(segment[off:])
	switch {
	case errors.Is(errors.IdentifierMismatch, err):
		return MainFooter{}, errors.E(errors.NotExist, "no main footer at end of segment", err)
	case err != nil:
		return MainFooter{}, err
	case off+uint64(n) != uint64(len(segment)):
		return MainFooter{}, errors.E(errors.Integrity,
			fmt.Sprintf("main footer at %d ends at %d, segment has %d bytes", off, off+uint64(n), len(segment)))
	}
	return f, nil
}
