// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package header

// PBE header body layout:
//
//   version    [1B]
//   kdf scheme [1B]
//   kdf params [record, identifier per scheme]
//   pbe scheme [1B]
//   nonce      [16B] IV of the key-wrapping cipher
//
// PBKDF2 parameters body layout:
//
//   iterations [4B]
//   salt       [32B]

import (
	"fmt"

	"github.com/grailbio/zff/codec"
	"github.com/grailbio/zff/errors"
	"github.com/grailbio/zff/must"
)

const (
	// SaltLen is the size of a PBKDF2 salt.
	SaltLen = 32
	// PBENonceLen is the size of the key-wrapping cipher's IV.
	PBENonceLen = 16
)

// KDFScheme is the function that turns a passphrase into the
// key-encryption key.
type KDFScheme uint8

// KDFPBKDF2SHA256 is PBKDF2 with HMAC-SHA256.
const KDFPBKDF2SHA256 KDFScheme = 0

// ParseKDFScheme returns the scheme stored as code.
func ParseKDFScheme(code uint8) (KDFScheme, error) {
	if s := KDFScheme(code); s == KDFPBKDF2SHA256 {
		return s, nil
	}
	return 0, unknownCode("kdf scheme", code)
}

// Code implements Coded.
func (s KDFScheme) Code() uint8 { return uint8(s) }

// String implements fmt.Stringer.
func (s KDFScheme) String() string {
	if s == KDFPBKDF2SHA256 {
		return "pbkdf2-sha256"
	}
	return fmt.Sprintf("KDFScheme(%d)", uint8(s))
}

// PBEScheme is the cipher that wraps the data-encryption key. It is
// independent of the KDF scheme.
type PBEScheme uint8

const (
	// PBEAES128CBC wraps with AES-128 in CBC mode.
	PBEAES128CBC PBEScheme = 0
	// PBEAES256CBC wraps with AES-256 in CBC mode.
	PBEAES256CBC PBEScheme = 1
)

// ParsePBEScheme returns the scheme stored as code.
func ParsePBEScheme(code uint8) (PBEScheme, error) {
	switch s := PBEScheme(code); s {
	case PBEAES128CBC, PBEAES256CBC:
		return s, nil
	}
	return 0, unknownCode("pbe scheme", code)
}

// Code implements Coded.
func (s PBEScheme) Code() uint8 { return uint8(s) }

// KeyLen returns the size of the key-encryption key the scheme takes.
func (s PBEScheme) KeyLen() int {
	switch s {
	case PBEAES128CBC:
		return 16
	case PBEAES256CBC:
		return 32
	}
	return 0
}

// String implements fmt.Stringer.
func (s PBEScheme) String() string {
	switch s {
	case PBEAES128CBC:
		return "aes128-cbc"
	case PBEAES256CBC:
		return "aes256-cbc"
	default:
		return fmt.Sprintf("PBEScheme(%d)", uint8(s))
	}
}

// KDFParameters are the parameters of a key derivation. Each KDFScheme
// has exactly one implementation; PBKDF2Parameters is the only one.
type KDFParameters interface {
	codec.Record
	// Scheme returns the KDF the parameters belong to.
	Scheme() KDFScheme
}

// PBKDF2Parameters parameterize PBKDF2-HMAC-SHA256.
type PBKDF2Parameters struct {
	Iterations uint32
	Salt       [SaltLen]byte
}

// Scheme implements KDFParameters.
func (PBKDF2Parameters) Scheme() KDFScheme { return KDFPBKDF2SHA256 }

// Identifier implements codec.Identified.
func (PBKDF2Parameters) Identifier() codec.Identifier { return PBKDF2ParametersIdentifier }

// LengthRule implements codec.Identified.
func (PBKDF2Parameters) LengthRule() codec.LengthRule { return codec.BodyOnly }

// EncodeBody implements codec.Record.
func (p PBKDF2Parameters) EncodeBody(e *codec.Encoder) {
	e.PutUint32(p.Iterations)
	e.PutArray(p.Salt[:])
}

func (p *PBKDF2Parameters) decodeBody(d *codec.Decoder) error {
	p.Iterations = d.Uint32()
	d.ReadFull(p.Salt[:])
	return d.Err()
}

// PBEHeader describes how the data-encryption key is wrapped under a
// passphrase.
type PBEHeader struct {
	Version uint8
	// Params selects the KDF scheme.
	Params KDFParameters
	Scheme PBEScheme
	Nonce  [PBENonceLen]byte
}

// KDF returns the KDF scheme of the header's parameters.
func (h PBEHeader) KDF() KDFScheme {
	return h.Params.Scheme()
}

// Identifier implements codec.Identified.
func (PBEHeader) Identifier() codec.Identifier { return PBEHeaderIdentifier }

// LengthRule implements codec.Identified.
func (PBEHeader) LengthRule() codec.LengthRule { return codec.BodyOnly }

// EncodeBody implements codec.Record. Params must be set.
func (h PBEHeader) EncodeBody(e *codec.Encoder) {
	must.Truef(h.Params != nil, "header: pbe header has no kdf parameters")
	e.PutUint8(h.Version)
	e.PutUint8(h.KDF().Code())
	e.PutRecord(h.Params)
	e.PutUint8(h.Scheme.Code())
	e.PutArray(h.Nonce[:])
}

// Encode returns h in its envelope.
func (h PBEHeader) Encode() []byte {
	return codec.Encode(h)
}

func (h *PBEHeader) decodeBody(d *codec.Decoder) error {
	h.Version = d.Uint8()
	code := d.Uint8()
	if err := d.Err(); err != nil {
		return err
	}
	kdf, err := ParseKDFScheme(code)
	if err != nil {
		return err
	}
	switch kdf {
	case KDFPBKDF2SHA256:
		var p PBKDF2Parameters
		d.Record(PBKDF2ParametersIdentifier, codec.BodyOnly, p.decodeBody)
		h.Params = p
	}
	code = d.Uint8()
	d.ReadFull(h.Nonce[:])
	if err := d.Err(); err != nil {
		return err
	}
	h.Scheme, err = ParsePBEScheme(code)
	return err
}

// DecodePBEHeader decodes the PBE header at the start of data and
// returns it with the number of bytes it occupies.
func DecodePBEHeader(data []byte) (PBEHeader, int, error) {
	var h PBEHeader
	n, err := codec.DecodeAndValidate(data, PBEHeaderIdentifier, codec.BodyOnly, h.decodeBody)
	if err != nil {
		return PBEHeader{}, 0, errors.E("decode pbe header", err)
	}
	return h, n, nil
}
