// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package codec

// Keyed values attach a value to a short string key:
//
//   keylen [1B]
//   key    [keylen]
//   kind   [1B]   one of the ValueKind constants
//   value  [encoded per kind]
//
// Integers use their fixed little-endian width, strings and byte slices
// are variable-length buffers, and objects are full record envelopes.

import (
	"fmt"
	"math"

	"github.com/grailbio/zff/errors"
	"github.com/grailbio/zff/log"
)

// MaxKeyLen is the longest key that fits the one-byte key length.
const MaxKeyLen = math.MaxUint8

// ValueKind tags the encoding of a keyed value.
type ValueKind uint8

const (
	KindBool ValueKind = iota
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindString
	KindBytes
	KindObject

	maxValueKind
)

var valueKinds = [...]string{
	KindBool:   "bool",
	KindUint8:  "uint8",
	KindUint16: "uint16",
	KindUint32: "uint32",
	KindUint64: "uint64",
	KindInt8:   "int8",
	KindInt16:  "int16",
	KindInt32:  "int32",
	KindInt64:  "int64",
	KindString: "string",
	KindBytes:  "bytes",
	KindObject: "object",
}

// String implements fmt.Stringer.
func (k ValueKind) String() string {
	if k < maxValueKind {
		return valueKinds[k]
	}
	return fmt.Sprintf("ValueKind(%d)", uint8(k))
}

// ParseValueKind returns the kind with the given tag. Tags outside the
// known set fail with UnknownCode.
func ParseValueKind(tag uint8) (ValueKind, error) {
	if ValueKind(tag) >= maxValueKind {
		return 0, errors.E(errors.UnknownCode, fmt.Sprintf("value kind %d", tag))
	}
	return ValueKind(tag), nil
}

// KeyValue is one decoded keyed value.
type KeyValue struct {
	Key  string
	Kind ValueKind
	// Value holds a bool, uint8..uint64, int8..int64, string or []byte,
	// matching Kind. It is nil for KindObject.
	Value interface{}
}

// PutKey appends a key.
func (e *Encoder) PutKey(key string) error {
	if len(key) > MaxKeyLen {
		return errors.E(errors.Invalid, fmt.Sprintf("key %q is longer than %d bytes", key, MaxKeyLen))
	}
	e.PutUint8(uint8(len(key)))
	e.PutArray([]byte(key))
	return nil
}

// PutKeyValue appends key, the kind of v and v. v must be a bool, a sized
// integer, a string or a []byte.
func (e *Encoder) PutKeyValue(key string, v interface{}) error {
	kind, ok := kindOf(v)
	if !ok {
		return errors.E(errors.Invalid, fmt.Sprintf("illegal keyed value type %T", v))
	}
	if err := e.PutKey(key); err != nil {
		return err
	}
	e.PutUint8(uint8(kind))
	switch v := v.(type) {
	case bool:
		if v {
			e.PutUint8(1)
		} else {
			e.PutUint8(0)
		}
	case uint8:
		e.PutUint8(v)
	case uint16:
		e.PutUint16(v)
	case uint32:
		e.PutUint32(v)
	case uint64:
		e.PutUint64(v)
	case int8:
		e.PutUint8(uint8(v))
	case int16:
		e.PutUint16(uint16(v))
	case int32:
		e.PutUint32(uint32(v))
	case int64:
		e.PutInt64(v)
	case string:
		e.PutString(v)
	case []byte:
		e.PutBytes(v)
	}
	return nil
}

// PutKeyRecord appends key followed by r in its envelope.
func (e *Encoder) PutKeyRecord(key string, r Record) error {
	if err := e.PutKey(key); err != nil {
		return err
	}
	e.PutUint8(uint8(KindObject))
	e.PutRecord(r)
	return nil
}

func kindOf(v interface{}) (ValueKind, bool) {
	switch v.(type) {
	case bool:
		return KindBool, true
	case uint8:
		return KindUint8, true
	case uint16:
		return KindUint16, true
	case uint32:
		return KindUint32, true
	case uint64:
		return KindUint64, true
	case int8:
		return KindInt8, true
	case int16:
		return KindInt16, true
	case int32:
		return KindInt32, true
	case int64:
		return KindInt64, true
	case string:
		return KindString, true
	case []byte:
		return KindBytes, true
	}
	return 0, false
}

// Key reads a key.
func (d *Decoder) Key() string {
	n := d.Uint8()
	return string(d.Array(int(n)))
}

// ExpectKey reads a key and fails with IdentifierMismatch if it is not
// key. The cursor does not move on a mismatch.
func (d *Decoder) ExpectKey(key string) {
	off := d.off
	got := d.Key()
	if d.err.Err() != nil {
		return
	}
	if got != key {
		d.off = off
		d.fail(errors.E(errors.IdentifierMismatch, fmt.Sprintf("key %q not in position, found %q", key, got)))
	}
}

func (d *Decoder) valueKind() ValueKind {
	tag := d.Uint8()
	if d.err.Err() != nil {
		return 0
	}
	kind, err := ParseValueKind(tag)
	if err != nil {
		log.Debug.Printf("codec: unknown value kind %d at offset %d", tag, d.off-1)
		d.fail(err)
	}
	return kind
}

// KeyValue reads a keyed value. Objects cannot be materialized without
// knowing their record type: KeyValue steps over the object's envelope,
// taking its length as body-only, and returns it with a nil Value. Use
// KeyRecord to decode an object.
func (d *Decoder) KeyValue() KeyValue {
	kv := KeyValue{Key: d.Key()}
	kv.Kind = d.valueKind()
	if d.err.Err() != nil {
		return KeyValue{}
	}
	switch kv.Kind {
	case KindBool:
		kv.Value = d.Uint8() != 0
	case KindUint8:
		kv.Value = d.Uint8()
	case KindUint16:
		kv.Value = d.Uint16()
	case KindUint32:
		kv.Value = d.Uint32()
	case KindUint64:
		kv.Value = d.Uint64()
	case KindInt8:
		kv.Value = int8(d.Uint8())
	case KindInt16:
		kv.Value = int16(d.Uint16())
	case KindInt32:
		kv.Value = int32(d.Uint32())
	case KindInt64:
		kv.Value = d.Int64()
	case KindString:
		kv.Value = string(d.Bytes())
	case KindBytes:
		kv.Value = d.Bytes()
	case KindObject:
		d.Envelope(BodyOnly)
	}
	if d.err.Err() != nil {
		return KeyValue{}
	}
	return kv
}

// KeyRecord reads key followed by a record with identifier id, whose
// body is decoded by body.
func (d *Decoder) KeyRecord(key string, id Identifier, rule LengthRule, body func(*Decoder) error) {
	d.ExpectKey(key)
	kind := d.valueKind()
	if d.err.Err() != nil {
		return
	}
	if kind != KindObject {
		d.fail(errors.E(errors.IdentifierMismatch, fmt.Sprintf("key %q holds a %v, want an object", key, kind)))
		return
	}
	d.Record(id, rule, body)
}
