// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package pbe provides the primitives behind zff's password-based key
// wrapping: PBKDF2-HMAC-SHA256 key derivation and AES-CBC with PKCS#7
// padding for the wrapped data-encryption key.
//
// The package knows nothing about the on-disk descriptors; package header
// selects the KDF and cipher from an encryption header and calls in here.
package pbe

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"io"

	"github.com/grailbio/zff/errors"
	"golang.org/x/crypto/pbkdf2"
)

var randomSource = rand.Reader

// SetRandSource sets the source of random numbers used for salts, IVs
// and nonces. It is intended primarily for testing purposes.
func SetRandSource(rd io.Reader) {
	randomSource = rd
}

// RandomBytes returns n bytes read from the random source.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(randomSource, b); err != nil {
		return nil, errors.E(fmt.Sprintf("failed to read %d bytes of random data", n), err)
	}
	return b, nil
}

// DeriveKey derives keyLen bytes from passphrase with PBKDF2-HMAC-SHA256.
func DeriveKey(passphrase, salt []byte, iterations uint32, keyLen int) ([]byte, error) {
	if iterations == 0 {
		return nil, errors.E(errors.Invalid, "pbkdf2: zero iterations")
	}
	if keyLen <= 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("pbkdf2: key length %d", keyLen))
	}
	return pbkdf2.Key(passphrase, salt, int(iterations), keyLen, sha256.New), nil
}

func newCBC(kek, iv []byte) (cipher.Block, error) {
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, errors.E(errors.Invalid, "aes-cbc", err)
	}
	if len(iv) != aes.BlockSize {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("aes-cbc: iv is %d bytes, want %d", len(iv), aes.BlockSize))
	}
	return block, nil
}

// EncryptCBC pads plaintext with PKCS#7 and encrypts it with AES-CBC
// under kek. The key size (16 or 32 bytes) selects AES-128 or AES-256.
func EncryptCBC(kek, iv, plaintext []byte) ([]byte, error) {
	block, err := newCBC(kek, iv)
	if err != nil {
		return nil, err
	}
	pad := aes.BlockSize - len(plaintext)%aes.BlockSize
	buf := make([]byte, len(plaintext)+pad)
	copy(buf, plaintext)
	for i := len(plaintext); i < len(buf); i++ {
		buf[i] = byte(pad)
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(buf, buf)
	return buf, nil
}

// DecryptCBC reverses EncryptCBC. A ciphertext that is not a whole number
// of blocks or whose padding is wrong fails with DecryptionFailed; the
// error does not say which.
func DecryptCBC(kek, iv, ciphertext []byte) ([]byte, error) {
	block, err := newCBC(kek, iv)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.E(errors.DecryptionFailed)
	}
	buf := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(buf, ciphertext)
	n, ok := unpad(buf)
	if !ok {
		Zero(buf)
		return nil, errors.E(errors.DecryptionFailed)
	}
	return buf[:n], nil
}

// unpad checks PKCS#7 padding without branching on the padding bytes.
func unpad(buf []byte) (int, bool) {
	pad := int(buf[len(buf)-1])
	good := subtle.ConstantTimeLessOrEq(1, pad) & subtle.ConstantTimeLessOrEq(pad, aes.BlockSize)
	for i := 1; i <= aes.BlockSize; i++ {
		inPad := subtle.ConstantTimeLessOrEq(i, pad)
		eq := subtle.ConstantTimeByteEq(buf[len(buf)-i], byte(pad))
		good &= subtle.ConstantTimeSelect(inPad, eq, 1)
	}
	if good != 1 {
		return 0, false
	}
	return len(buf) - pad, true
}

// Zero overwrites b with zeros.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
