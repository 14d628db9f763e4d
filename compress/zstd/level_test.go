// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package zstd_test

import (
	"testing"

	"github.com/grailbio/zff/compress/zstd"
	nocgozstd "github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncoderLevel(t *testing.T) {
	for _, c := range []struct {
		level int
		want  nocgozstd.EncoderLevel
	}{
		{0, nocgozstd.SpeedDefault},
		{1, nocgozstd.SpeedFastest},
		{5, nocgozstd.SpeedDefault},
		{7, nocgozstd.SpeedBetterCompression},
		{19, nocgozstd.SpeedBestCompression},
	} {
		assert.Equal(t, c.want, zstd.EncoderLevel(c.level), "level %d", c.level)
	}
}

func TestValidLevel(t *testing.T) {
	assert.True(t, zstd.ValidLevel(0))
	assert.True(t, zstd.ValidLevel(zstd.MaxLevel))
	assert.False(t, zstd.ValidLevel(zstd.MaxLevel+1))
	assert.False(t, zstd.ValidLevel(-1))
}

func TestEncoderOptions(t *testing.T) {
	enc, err := nocgozstd.NewWriter(nil, zstd.EncoderOptions(5)...)
	require.NoError(t, err)
	out := enc.EncodeAll([]byte("chunk chunk chunk chunk"), nil)
	require.NoError(t, enc.Close())

	dec, err := nocgozstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()
	in, err := dec.DecodeAll(out, nil)
	require.NoError(t, err)
	assert.Equal(t, "chunk chunk chunk chunk", string(in))
}
