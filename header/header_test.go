// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package header_test

import (
	"fmt"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/grailbio/zff/codec"
	"github.com/grailbio/zff/errors"
	"github.com/grailbio/zff/header"
	nocgozstd "github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressionHeaderEncoding(t *testing.T) {
	h := header.NewCompressionHeader(1, header.CompressionZstd, 5)
	b := h.Encode()
	require.Equal(t, []byte{
		0x7a, 0x66, 0x66, 0x63,
		3, 0, 0, 0, 0, 0, 0, 0,
		1, 1, 5,
	}, b)

	got, n, err := header.DecodeCompressionHeader(b)
	require.NoError(t, err)
	assert.Equal(t, 15, n)
	assert.Equal(t, h, got)
	assert.EqualValues(t, 1, got.Version())
	assert.Equal(t, header.CompressionZstd, got.Algorithm())
	assert.EqualValues(t, 5, got.Level())
}

func TestCompressionHeaderRoundTrip(t *testing.T) {
	fz := fuzz.New()
	for i := 0; i < 100; i++ {
		var version, level uint8
		fz.Fuzz(&version)
		fz.Fuzz(&level)
		algo := header.CompressionAlgorithm(i % 2)
		h := header.NewCompressionHeader(version, algo, level)
		got, _, err := header.DecodeCompressionHeader(h.Encode())
		require.NoError(t, err)
		require.Equal(t, h, got)
	}
}

func TestCompressionUnknownAlgorithm(t *testing.T) {
	b := codec.EncodeEnvelope(header.CompressionHeaderIdentifier, codec.BodyOnly, []byte{1, 2, 5})
	_, _, err := header.DecodeCompressionHeader(b)
	require.Error(t, err)
	assert.True(t, errors.Is(errors.UnknownCode, err), "%v", err)

	for code := 0; code < 256; code++ {
		_, err := header.ParseCompressionAlgorithm(uint8(code))
		assert.Equal(t, code < 2, err == nil, "code %d", code)
	}
}

func TestCompressionZstdOptions(t *testing.T) {
	opts, err := header.NewCompressionHeader(1, header.CompressionNone, 9).ZstdOptions()
	require.NoError(t, err)
	assert.Nil(t, opts)

	opts, err = header.NewCompressionHeader(1, header.CompressionZstd, 5).ZstdOptions()
	require.NoError(t, err)
	enc, err := nocgozstd.NewWriter(nil, opts...)
	require.NoError(t, err)
	require.NoError(t, enc.Close())

	_, err = header.NewCompressionHeader(1, header.CompressionZstd, 200).ZstdOptions()
	assert.True(t, errors.Is(errors.Invalid, err), "%v", err)
}

func TestSegmentHeaderRoundTrip(t *testing.T) {
	fz := fuzz.New()
	for i := 0; i < 100; i++ {
		var (
			version        uint8
			uid            int64
			number, length uint64
		)
		fz.Fuzz(&version)
		fz.Fuzz(&uid)
		fz.Fuzz(&number)
		fz.Fuzz(&length)
		h := header.NewSegmentHeader(version, uid, number, length)
		b := h.Encode()
		require.Len(t, b, codec.PrefixLen+25)
		got, n, err := header.DecodeSegmentHeader(b)
		require.NoError(t, err)
		require.Equal(t, len(b), n)
		// Equal only compares numbers; check every field.
		require.Equal(t, h, got)
	}
}

func TestSegmentHeaderLifecycle(t *testing.T) {
	uid, err := header.NewUniqueIdentifier()
	require.NoError(t, err)
	h := header.NewSegmentHeader(1, uid, 1, 0)
	h.PatchLength(1 << 30)
	assert.EqualValues(t, 1<<30, h.Length())

	next := h.Next()
	assert.EqualValues(t, 2, next.Number())
	assert.Equal(t, uid, next.UniqueIdentifier())
	assert.EqualValues(t, 1, next.Version())
	assert.Zero(t, next.Length())
	assert.EqualValues(t, 1<<30, h.Length())
}

// Segment headers are equal when their numbers are, whatever their
// identifiers and lengths. This is the on-disk format's notion of
// segment identity; callers that must match acquisitions compare
// UniqueIdentifier themselves.
func TestSegmentHeaderEqual(t *testing.T) {
	a := header.NewSegmentHeader(1, 100, 3, 0)
	b := header.NewSegmentHeader(2, -7, 3, 4096)
	assert.True(t, a.Equal(b))
	assert.True(t, b.Equal(a))

	fz := fuzz.New()
	for i := 0; i < 100; i++ {
		var uid int64
		var length uint64
		fz.Fuzz(&uid)
		fz.Fuzz(&length)
		c := header.NewSegmentHeader(1, uid, 4, length)
		assert.False(t, a.Equal(c))
		assert.True(t, c.Equal(header.NewSegmentHeader(1, 100, 4, 0)))
	}
}

func TestNewUniqueIdentifier(t *testing.T) {
	seen := make(map[int64]bool)
	for i := 0; i < 100; i++ {
		uid, err := header.NewUniqueIdentifier()
		require.NoError(t, err)
		require.False(t, seen[uid])
		seen[uid] = true
	}
}

func TestIdentifierRejection(t *testing.T) {
	sig := header.Signature{}
	records := map[string][]byte{
		"chunk":       header.NewChunkHeader(1, 1).Finalize(1, 1, &sig).Encode(),
		"compression": header.NewCompressionHeader(1, header.CompressionZstd, 3).Encode(),
		"segment":     header.NewSegmentHeader(1, 1, 1, 0).Encode(),
		"description": header.DescriptionHeader{Version: 1, Examiner: "x"}.Encode(),
		"encryption":  testEncryptionHeader(t).Encode(),
		"pbe":         testEncryptionHeader(t).PBE.Encode(),
	}
	decoders := map[string]func([]byte) error{
		"chunk": func(b []byte) error {
			_, _, err := header.DecodeChunkHeader(b)
			return err
		},
		"compression": func(b []byte) error {
			_, _, err := header.DecodeCompressionHeader(b)
			return err
		},
		"segment": func(b []byte) error {
			_, _, err := header.DecodeSegmentHeader(b)
			return err
		},
		"description": func(b []byte) error {
			_, _, err := header.DecodeDescriptionHeader(b)
			return err
		},
		"encryption": func(b []byte) error {
			_, _, err := header.DecodeEncryptionHeader(b)
			return err
		},
		"pbe": func(b []byte) error {
			_, _, err := header.DecodePBEHeader(b)
			return err
		},
	}
	for dname, decode := range decoders {
		for rname, b := range records {
			t.Run(fmt.Sprintf("%s/%s", dname, rname), func(t *testing.T) {
				err := decode(b)
				if dname == rname {
					require.NoError(t, err)
					return
				}
				require.Error(t, err)
				assert.True(t, errors.Is(errors.IdentifierMismatch, err), "%v", err)
			})
		}
	}
}

func TestCodes(t *testing.T) {
	coded := []header.Coded{
		header.CompressionZstd,
		header.AES256GCMSIV,
		header.KDFPBKDF2SHA256,
		header.PBEAES256CBC,
	}
	for i, want := range []uint8{1, 1, 0, 1} {
		assert.Equal(t, want, coded[i].Code(), "%v", coded[i])
	}
	assert.Equal(t, "CompressionAlgorithm(9)", header.CompressionAlgorithm(9).String())
}
