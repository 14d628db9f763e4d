// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package codec

// Record envelope layout:
//
//   identifier [4B BE]
//   length     [8B LE]
//   body       [see below]
//
// identifier: a constant per record type, the record's self-describing tag.
// length: either len(body) (BodyOnly) or len(body)+12 (IncludesPrefix). The
// rule is fixed per record type and is not uniform across types; see the
// LengthRule of each record.

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/grailbio/zff/errors"
	"github.com/grailbio/zff/log"
)

const (
	// IdentifierLen is the size of an envelope identifier.
	IdentifierLen = 4
	// LengthLen is the size of an envelope length field.
	LengthLen = 8
	// PrefixLen is the size of the identifier and length fields together.
	PrefixLen = IdentifierLen + LengthLen
)

// Identifier is the 4-byte magic that opens every record envelope. It is
// stored big-endian, so the on-disk bytes read as ASCII ("zffc" etc.).
type Identifier uint32

// String returns the identifier in hex.
func (id Identifier) String() string {
	return fmt.Sprintf("%#08x", uint32(id))
}

// LengthRule tells what an envelope's length field counts.
type LengthRule int

const (
	// BodyOnly lengths count the body bytes alone.
	BodyOnly LengthRule = iota
	// IncludesPrefix lengths count the body plus the 12 prefix bytes.
	// Only chunk headers use this rule; it is kept for on-disk
	// compatibility.
	IncludesPrefix
)

// String implements fmt.Stringer.
func (r LengthRule) String() string {
	switch r {
	case BodyOnly:
		return "body-only"
	case IncludesPrefix:
		return "includes-prefix"
	default:
		return fmt.Sprintf("LengthRule(%d)", int(r))
	}
}

func (r LengthRule) declared(bodyLen int) uint64 {
	if r == IncludesPrefix {
		return uint64(bodyLen) + PrefixLen
	}
	return uint64(bodyLen)
}

func (r LengthRule) bodyLen(declared uint64) (uint64, error) {
	if r != IncludesPrefix {
		return declared, nil
	}
	if declared < PrefixLen {
		return 0, errors.E(errors.MalformedLength,
			fmt.Sprintf("declared length %d is shorter than the %d byte prefix", declared, PrefixLen))
	}
	return declared - PrefixLen, nil
}

// Identified is implemented by every record type: it names the record's
// identifier and the convention of its length field.
type Identified interface {
	Identifier() Identifier
	LengthRule() LengthRule
}

// Record is a record that can encode its own body.
type Record interface {
	Identified
	// EncodeBody appends the record's body, without the envelope, to e.
	EncodeBody(e *Encoder)
}

// Envelope is a decoded record envelope.
type Envelope struct {
	Identifier Identifier
	// Length is the length field as stored.
	Length uint64
	// Body aliases the decoded buffer.
	Body []byte
}

// Size returns the number of bytes the envelope occupies.
func (e Envelope) Size() int {
	return PrefixLen + len(e.Body)
}

// EncodeEnvelope frames body with id and a length computed by rule.
func EncodeEnvelope(id Identifier, rule LengthRule, body []byte) []byte {
	var e Encoder
	e.PutEnvelope(id, rule, body)
	return e.Bytes()
}

// PutEnvelope appends body framed with id and a length computed by rule.
func (e *Encoder) PutEnvelope(id Identifier, rule LengthRule, body []byte) {
	binary.BigEndian.PutUint32(e.grow(IdentifierLen), uint32(id))
	e.PutUint64(rule.declared(len(body)))
	e.PutArray(body)
}

// PutRecord appends r framed in its envelope.
func (e *Encoder) PutRecord(r Record) {
	var body Encoder
	r.EncodeBody(&body)
	e.PutEnvelope(r.Identifier(), r.LengthRule(), body.Bytes())
}

// Encode returns r framed in its envelope.
func Encode(r Record) []byte {
	var e Encoder
	e.PutRecord(r)
	return e.Bytes()
}

// PeekIdentifier returns the identifier at the start of data without
// validating the rest of the envelope. Readers use it to pick a decoder.
func PeekIdentifier(data []byte) (Identifier, error) {
	if len(data) < IdentifierLen {
		return 0, errors.E(errors.IO, "read identifier", errShort(IdentifierLen, len(data)))
	}
	return Identifier(binary.BigEndian.Uint32(data)), nil
}

// DecodeEnvelope parses the envelope at the start of data. It fails with
// MalformedLength if data holds fewer body bytes than declared. The
// returned body aliases data.
func DecodeEnvelope(data []byte, rule LengthRule) (Envelope, error) {
	if len(data) < PrefixLen {
		return Envelope{}, errors.E(errors.IO, "read envelope prefix", errShort(PrefixLen, len(data)))
	}
	env := Envelope{
		Identifier: Identifier(binary.BigEndian.Uint32(data)),
		Length:     binary.LittleEndian.Uint64(data[IdentifierLen:]),
	}
	n, err := rule.bodyLen(env.Length)
	if err != nil {
		return Envelope{}, err
	}
	avail := uint64(len(data) - PrefixLen)
	if n > avail {
		return Envelope{}, errors.E(errors.MalformedLength,
			fmt.Sprintf("record %v declares %d body bytes, %d available", env.Identifier, n, avail))
	}
	env.Body = data[PrefixLen : PrefixLen+int(n)]
	return env, nil
}

// DecodeAndValidate decodes the envelope at the start of data, checks
// that its identifier is id and hands its body to the record's body
// decoder. It returns the number of bytes the record occupies. An
// identifier other than id fails with IdentifierMismatch. Body bytes that
// the body decoder leaves unread are ignored, so newer record versions
// may append fields.
func DecodeAndValidate(data []byte, id Identifier, rule LengthRule, body func(*Decoder) error) (int, error) {
	d := NewDecoder(data)
	d.Record(id, rule, body)
	if err := d.Err(); err != nil {
		return 0, err
	}
	return d.Consumed(), nil
}

// Envelope consumes a record envelope, whatever its identifier.
func (d *Decoder) Envelope(rule LengthRule) Envelope {
	if d.err.Err() != nil {
		return Envelope{}
	}
	env, err := DecodeEnvelope(d.data[d.off:], rule)
	if err != nil {
		d.fail(err)
		return Envelope{}
	}
	d.off += env.Size()
	return env
}

// Record consumes a record envelope with identifier id and decodes its
// body with body. The cursor does not move if the identifier does not
// match.
func (d *Decoder) Record(id Identifier, rule LengthRule, body func(*Decoder) error) {
	if d.err.Err() != nil {
		return
	}
	got, err := PeekIdentifier(d.data[d.off:])
	if err != nil {
		d.fail(errors.E(fmt.Sprintf("decode record %v", id), err))
		return
	}
	// A record of another type is a mismatch, never a length error.
	if got != id {
		log.Debug.Printf("codec: record at offset %d has identifier %v, want %v", d.off, got, id)
		d.fail(errors.E(errors.IdentifierMismatch, fmt.Sprintf("got %v, want %v", got, id)))
		return
	}
	env, err := DecodeEnvelope(d.data[d.off:], rule)
	if err != nil {
		d.fail(errors.E(fmt.Sprintf("decode record %v", id), err))
		return
	}
	bd := NewDecoder(env.Body)
	err = body(bd)
	if err == nil {
		err = bd.Err()
	}
	if err != nil {
		d.fail(errors.E(fmt.Sprintf("decode record %v", id), err))
		return
	}
	d.off += env.Size()
}

func errShort(want, have int) error {
	return errors.E(fmt.Sprintf("need %d bytes, have %d", want, have), io.ErrUnexpectedEOF)
}
