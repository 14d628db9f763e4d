// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package header

// Encryption header body layout:
//
//   version       [1B]
//   pbe header    [record]
//   algorithm     [1B]
//   encrypted key [4B length + bytes]
//   header nonce  [12B]

import (
	"encoding/json"
	"fmt"

	"github.com/grailbio/zff/codec"
	"github.com/grailbio/zff/crypto/pbe"
	"github.com/grailbio/zff/errors"
	"github.com/grailbio/zff/log"
)

// HeaderNonceLen is the size of the nonce used to encrypt other headers
// under the unwrapped key.
const HeaderNonceLen = 12

// DefaultIterations is the PBKDF2 iteration count used by WrapKey when
// none is given.
const DefaultIterations = 600000

// EncryptionAlgorithm is the AEAD cipher applied to chunk payloads.
type EncryptionAlgorithm uint8

const (
	// AES128GCMSIV is AES-128-GCM-SIV.
	AES128GCMSIV EncryptionAlgorithm = 0
	// AES256GCMSIV is AES-256-GCM-SIV.
	AES256GCMSIV EncryptionAlgorithm = 1
)

// ParseEncryptionAlgorithm returns the algorithm stored as code.
func ParseEncryptionAlgorithm(code uint8) (EncryptionAlgorithm, error) {
	switch a := EncryptionAlgorithm(code); a {
	case AES128GCMSIV, AES256GCMSIV:
		return a, nil
	}
	return 0, unknownCode("encryption algorithm", code)
}

// Code implements Coded.
func (a EncryptionAlgorithm) Code() uint8 { return uint8(a) }

// KeyLen returns the size of the data-encryption key the algorithm
// takes.
func (a EncryptionAlgorithm) KeyLen() int {
	switch a {
	case AES128GCMSIV:
		return 16
	case AES256GCMSIV:
		return 32
	}
	return 0
}

// String implements fmt.Stringer.
func (a EncryptionAlgorithm) String() string {
	switch a {
	case AES128GCMSIV:
		return "aes128-gcm-siv"
	case AES256GCMSIV:
		return "aes256-gcm-siv"
	default:
		return fmt.Sprintf("EncryptionAlgorithm(%d)", uint8(a))
	}
}

// EncryptionHeader describes the container's payload encryption and
// carries the data-encryption key wrapped under a passphrase. The
// unwrapped key is only ever returned by UnwrapKey; it is never stored
// back into the header.
type EncryptionHeader struct {
	Version      uint8
	PBE          PBEHeader
	Algorithm    EncryptionAlgorithm
	EncryptedKey []byte
	HeaderNonce  [HeaderNonceLen]byte
}

// WrapOpts configures WrapKey. The zero value is usable.
type WrapOpts struct {
	// Scheme is the wrapping cipher. The zero value is PBEAES128CBC.
	Scheme PBEScheme
	// Iterations is the PBKDF2 iteration count. DefaultIterations is
	// used if zero.
	Iterations uint32
}

// WrapKey wraps key, the data-encryption key for algorithm, under
// passphrase. Salt, IV and header nonce are drawn from the pbe package's
// random source.
func WrapKey(passphrase, key []byte, version uint8, algorithm EncryptionAlgorithm, opts WrapOpts) (EncryptionHeader, error) {
	if n := algorithm.KeyLen(); n == 0 || len(key) != n {
		return EncryptionHeader{}, errors.E(errors.Invalid,
			fmt.Sprintf("%v takes a %d byte key, got %d", algorithm, n, len(key)))
	}
	if opts.Scheme.KeyLen() == 0 {
		return EncryptionHeader{}, errors.E(errors.Invalid, fmt.Sprintf("pbe scheme %v", opts.Scheme))
	}
	if opts.Iterations == 0 {
		opts.Iterations = DefaultIterations
	}
	rnd, err := pbe.RandomBytes(SaltLen + PBENonceLen + HeaderNonceLen)
	if err != nil {
		return EncryptionHeader{}, err
	}
	params := PBKDF2Parameters{Iterations: opts.Iterations}
	h := EncryptionHeader{
		Version: version,
		PBE: PBEHeader{
			Version: version,
			Scheme:  opts.Scheme,
		},
		Algorithm: algorithm,
	}
	copy(params.Salt[:], rnd)
	copy(h.PBE.Nonce[:], rnd[SaltLen:])
	copy(h.HeaderNonce[:], rnd[SaltLen+PBENonceLen:])
	h.PBE.Params = params

	kek, err := pbe.DeriveKey(passphrase, params.Salt[:], params.Iterations, opts.Scheme.KeyLen())
	if err != nil {
		return EncryptionHeader{}, err
	}
	defer pbe.Zero(kek)
	if h.EncryptedKey, err = pbe.EncryptCBC(kek, h.PBE.Nonce[:], key); err != nil {
		return EncryptionHeader{}, err
	}
	return h, nil
}

// UnwrapKey derives the key-encryption key from passphrase, unwraps the
// data-encryption key and checks its length against the algorithm. It
// is deterministic for a given header and passphrase. Every failure,
// whether a wrong passphrase, bad padding or a key of the wrong length,
// is reported as the same errors.DecryptionFailed error.
func (h EncryptionHeader) UnwrapKey(passphrase []byte) ([]byte, error) {
	key, ok := h.unwrapKey(passphrase)
	if !ok {
		log.Debug.Printf("header: key unwrap failed")
		return nil, errors.E(errors.DecryptionFailed, errors.Temporary, "unwrap key")
	}
	return key, nil
}

func (h EncryptionHeader) unwrapKey(passphrase []byte) ([]byte, bool) {
	keyLen := h.PBE.Scheme.KeyLen()
	if keyLen == 0 {
		return nil, false
	}
	var (
		kek []byte
		err error
	)
	switch p := h.PBE.Params.(type) {
	case PBKDF2Parameters:
		kek, err = pbe.DeriveKey(passphrase, p.Salt[:], p.Iterations, keyLen)
	default:
		return nil, false
	}
	if err != nil {
		return nil, false
	}
	defer pbe.Zero(kek)
	key, err := pbe.DecryptCBC(kek, h.PBE.Nonce[:], h.EncryptedKey)
	if err != nil {
		return nil, false
	}
	if len(key) != h.Algorithm.KeyLen() {
		pbe.Zero(key)
		return nil, false
	}
	return key, true
}

// Identifier implements codec.Identified.
func (EncryptionHeader) Identifier() codec.Identifier { return EncryptionHeaderIdentifier }

// LengthRule implements codec.Identified.
func (EncryptionHeader) LengthRule() codec.LengthRule { return codec.BodyOnly }

// EncodeBody implements codec.Record.
func (h EncryptionHeader) EncodeBody(e *codec.Encoder) {
	e.PutUint8(h.Version)
	e.PutRecord(h.PBE)
	e.PutUint8(h.Algorithm.Code())
	e.PutBytes(h.EncryptedKey)
	e.PutArray(h.HeaderNonce[:])
}

// Encode returns h in its envelope.
func (h EncryptionHeader) Encode() []byte {
	return codec.Encode(h)
}

func (h *EncryptionHeader) decodeBody(d *codec.Decoder) (err error) {
	h.Version = d.Uint8()
	d.Record(PBEHeaderIdentifier, codec.BodyOnly, h.PBE.decodeBody)
	code := d.Uint8()
	if err = d.Err(); err != nil {
		return err
	}
	if h.Algorithm, err = ParseEncryptionAlgorithm(code); err != nil {
		return err
	}
	h.EncryptedKey = d.Bytes()
	d.ReadFull(h.HeaderNonce[:])
	return d.Err()
}

// DecodeEncryptionHeader decodes the encryption header at the start of
// data and returns it with the number of bytes it occupies.
func DecodeEncryptionHeader(data []byte) (EncryptionHeader, int, error) {
	var h EncryptionHeader
	n, err := codec.DecodeAndValidate(data, EncryptionHeaderIdentifier, codec.BodyOnly, h.decodeBody)
	if err != nil {
		return EncryptionHeader{}, 0, errors.E("decode encryption header", err)
	}
	return h, n, nil
}

type jsonPBKDF2Parameters struct {
	Iterations uint32   `json:"iterations"`
	Salt       HexBytes `json:"salt"`
}

// MarshalJSON marshals p with a hex encoded salt.
func (p PBKDF2Parameters) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonPBKDF2Parameters{p.Iterations, p.Salt[:]})
}

type jsonPBEHeader struct {
	Version uint8         `json:"header_version"`
	KDF     string        `json:"kdf_scheme"`
	Params  KDFParameters `json:"kdf_parameters"`
	Scheme  string        `json:"encryption_scheme"`
	Nonce   HexBytes      `json:"nonce"`
}

// MarshalJSON marshals h with a hex encoded nonce.
func (h PBEHeader) MarshalJSON() ([]byte, error) {
	j := jsonPBEHeader{
		Version: h.Version,
		Params:  h.Params,
		Scheme:  h.Scheme.String(),
		Nonce:   h.Nonce[:],
	}
	if h.Params != nil {
		j.KDF = h.KDF().String()
	}
	return json.Marshal(j)
}

type jsonEncryptionHeader struct {
	Version      uint8     `json:"header_version"`
	PBE          PBEHeader `json:"pbe_header"`
	Algorithm    string    `json:"algorithm"`
	EncryptedKey HexBytes  `json:"encrypted_key"`
	HeaderNonce  HexBytes  `json:"header_nonce"`
}

// MarshalJSON marshals h for reporting. Byte fields are hex encoded.
func (h EncryptionHeader) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonEncryptionHeader{
		Version:      h.Version,
		PBE:          h.PBE,
		Algorithm:    h.Algorithm.String(),
		EncryptedKey: h.EncryptedKey,
		HeaderNonce:  h.HeaderNonce[:],
	})
}
