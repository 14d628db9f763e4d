// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package zstd maps the compression level stored in a zff compression
// header onto github.com/klauspost/compress/zstd encoder settings, so
// that the payload compressor and the header agree on what a level means.
// Levels follow the reference zstd scale.
package zstd

import (
	nocgozstd "github.com/klauspost/compress/zstd"
)

const (
	// MinLevel is the fastest level.
	MinLevel = 1
	// MaxLevel is the strongest level.
	MaxLevel = 22
	// DefaultLevel is used when a header stores level 0.
	DefaultLevel = 3
)

// ValidLevel tells whether level is 0 (default) or within
// [MinLevel, MaxLevel].
func ValidLevel(level int) bool {
	return level == 0 || (level >= MinLevel && level <= MaxLevel)
}

// EncoderLevel returns the encoder speed matching level.
func EncoderLevel(level int) nocgozstd.EncoderLevel {
	if level == 0 {
		level = DefaultLevel
	}
	return nocgozstd.EncoderLevelFromZstd(level)
}

// EncoderOptions returns the encoder options for level.
func EncoderOptions(level int) []nocgozstd.EOption {
	return []nocgozstd.EOption{
		nocgozstd.WithEncoderLevel(EncoderLevel(level)),
	}
}
