// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package header_test

import (
	"crypto/ed25519"
	"encoding/binary"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/grailbio/zff/codec"
	"github.com/grailbio/zff/errors"
	"github.com/grailbio/zff/header"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkHeaderRoundTrip(t *testing.T) {
	fz := fuzz.New().NilChance(0)
	for i := 0; i < 200; i++ {
		var (
			version  uint8
			number   uint64
			size     uint64
			checksum uint32
			sig      header.Signature
		)
		fz.Fuzz(&version)
		fz.Fuzz(&number)
		fz.Fuzz(&size)
		fz.Fuzz(&checksum)
		fz.Fuzz(&sig)
		signed := i%2 == 0

		h := header.NewChunkHeader(version, number)
		if signed {
			h = h.Finalize(size, checksum, &sig)
		} else {
			h = h.Finalize(size, checksum, nil)
		}
		b := h.Encode()
		wantLen := codec.PrefixLen + 21
		if signed {
			wantLen += header.SignatureLen
		}
		require.Len(t, b, wantLen)
		// The length field counts the whole record.
		require.EqualValues(t, wantLen, binary.LittleEndian.Uint64(b[codec.IdentifierLen:]))

		got, n, err := header.DecodeChunkHeader(b)
		require.NoError(t, err)
		require.Equal(t, len(b), n)
		require.Equal(t, h, got)
		gotSig, ok := got.Signature()
		require.Equal(t, signed, ok)
		if signed {
			require.Equal(t, sig, gotSig)
		}
	}
}

func TestChunkHeaderZeroSignature(t *testing.T) {
	var zero header.Signature
	h := header.NewChunkHeader(1, 1).Finalize(10, 20, &zero)
	got, _, err := header.DecodeChunkHeader(h.Encode())
	require.NoError(t, err)
	_, ok := got.Signature()
	assert.True(t, ok, "an all-zero signature is still a signature")
}

func TestChunkHeaderAdvance(t *testing.T) {
	sig := header.Signature{1, 2, 3}
	const k, n = 7, 25
	h := header.NewChunkHeader(2, k)
	for i := 0; i < n; i++ {
		h = h.Finalize(uint64(100+i), uint32(i), &sig).Advance()
	}
	assert.EqualValues(t, k+n, h.Number())
	assert.EqualValues(t, 2, h.Version())
	assert.Zero(t, h.Size())
	assert.Zero(t, h.Checksum())
	_, ok := h.Signature()
	assert.False(t, ok)
	assert.Equal(t, header.NewChunkHeader(2, k+n), h)
}

func TestChunkHeaderFinalizeCopies(t *testing.T) {
	h := header.NewChunkHeader(1, 5)
	f := h.Finalize(1024, 0xdeadbeef, nil)
	assert.Zero(t, h.Size())
	assert.EqualValues(t, 1024, f.Size())
	assert.EqualValues(t, 0xdeadbeef, f.Checksum())
}

func TestChunkHeaderMalformed(t *testing.T) {
	h := header.NewChunkHeader(1, 1).Finalize(1, 2, nil)
	var e codec.Encoder
	h.EncodeBody(&e)
	e.PutArray(make([]byte, 10))
	b := codec.EncodeEnvelope(header.ChunkHeaderIdentifier, codec.IncludesPrefix, e.Bytes())
	_, _, err := header.DecodeChunkHeader(b)
	assert.True(t, errors.Is(errors.MalformedLength, err), "%v", err)

	b = h.Encode()
	_, _, err = header.DecodeChunkHeader(b[:len(b)-1])
	assert.True(t, errors.Is(errors.MalformedLength, err), "%v", err)

	// A body-only length is short by the prefix and truncates the body.
	b = codec.EncodeEnvelope(header.ChunkHeaderIdentifier, codec.BodyOnly, make([]byte, 21))
	_, _, err = header.DecodeChunkHeader(b)
	assert.True(t, errors.Is(errors.IO, err), "%v", err)
}

func TestChunkChecksum(t *testing.T) {
	payload := []byte("the quick brown fox")
	h := header.NewChunkHeader(1, 1).Finalize(uint64(len(payload)), header.PayloadChecksum(payload), nil)
	require.NoError(t, h.VerifyChecksum(payload))
	err := h.VerifyChecksum([]byte("the quick brown fix"))
	assert.True(t, errors.Is(errors.Integrity, err), "%v", err)
}

func TestChunkSignature(t *testing.T) {
	priv := ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize))
	pub := priv.Public().(ed25519.PublicKey)
	stored := []byte("compressed and encrypted bytes")
	var sig header.Signature
	copy(sig[:], ed25519.Sign(priv, stored))

	h := header.NewChunkHeader(1, 3).Finalize(uint64(len(stored)), 0, &sig)
	got, _, err := header.DecodeChunkHeader(h.Encode())
	require.NoError(t, err)
	require.NoError(t, got.VerifySignature(pub, stored))

	err = got.VerifySignature(pub, stored[1:])
	assert.True(t, errors.Is(errors.Integrity, err), "%v", err)
	err = header.NewChunkHeader(1, 3).VerifySignature(pub, stored)
	assert.True(t, errors.Is(errors.Integrity, err), "%v", err)
	err = got.VerifySignature(pub[:5], stored)
	assert.True(t, errors.Is(errors.Invalid, err), "%v", err)
}

func TestChunkSequence(t *testing.T) {
	first := header.NewChunkHeader(1, 1)
	require.NoError(t, header.CheckSequence(first, first.Advance()))
	err := header.CheckSequence(first, first)
	assert.True(t, errors.Is(errors.Integrity, err), "repeat: %v", err)
	err = header.CheckSequence(first, first.Advance().Advance())
	assert.True(t, errors.Is(errors.Integrity, err), "gap: %v", err)

	var s header.ChunkSequencer
	_, ok := s.Next()
	assert.False(t, ok)
	h := header.NewChunkHeader(1, 40)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Check(h))
		h = h.Advance()
	}
	next, ok := s.Next()
	assert.True(t, ok)
	assert.EqualValues(t, 45, next)
	err = s.Check(h.Advance())
	assert.True(t, errors.Is(errors.Integrity, err), "%v", err)
}
