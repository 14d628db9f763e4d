// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package header

import (
	"fmt"

	"github.com/grailbio/zff/codec"
	"github.com/grailbio/zff/compress/zstd"
	"github.com/grailbio/zff/errors"
	nocgozstd "github.com/klauspost/compress/zstd"
)

// CompressionAlgorithm is the compressor applied to chunk payloads.
type CompressionAlgorithm uint8

const (
	// CompressionNone stores payloads as is.
	CompressionNone CompressionAlgorithm = 0
	// CompressionZstd compresses payloads with zstd.
	CompressionZstd CompressionAlgorithm = 1
)

// ParseCompressionAlgorithm returns the algorithm stored as code.
func ParseCompressionAlgorithm(code uint8) (CompressionAlgorithm, error) {
	switch a := CompressionAlgorithm(code); a {
	case CompressionNone, CompressionZstd:
		return a, nil
	}
	return 0, unknownCode("compression algorithm", code)
}

// Code implements Coded.
func (a CompressionAlgorithm) Code() uint8 { return uint8(a) }

// String implements fmt.Stringer.
func (a CompressionAlgorithm) String() string {
	switch a {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("CompressionAlgorithm(%d)", uint8(a))
	}
}

// CompressionHeader describes how chunk payloads are compressed. The
// level is interpreted by the algorithm and ignored for CompressionNone.
type CompressionHeader struct {
	version   uint8
	algorithm CompressionAlgorithm
	level     uint8
}

// NewCompressionHeader returns a compression header.
func NewCompressionHeader(version uint8, algorithm CompressionAlgorithm, level uint8) CompressionHeader {
	return CompressionHeader{version: version, algorithm: algorithm, level: level}
}

// Version returns the header version.
func (h CompressionHeader) Version() uint8 { return h.version }

// Algorithm returns the compression algorithm.
func (h CompressionHeader) Algorithm() CompressionAlgorithm { return h.algorithm }

// Level returns the compression level.
func (h CompressionHeader) Level() uint8 { return h.level }

// ZstdOptions returns the encoder options a zstd payload compressor
// should use for this header. It returns nil for CompressionNone.
func (h CompressionHeader) ZstdOptions() ([]nocgozstd.EOption, error) {
	switch h.algorithm {
	case CompressionNone:
		return nil, nil
	case CompressionZstd:
		if !zstd.ValidLevel(int(h.level)) {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("zstd level %d", h.level))
		}
		return zstd.EncoderOptions(int(h.level)), nil
	}
	return nil, errors.E(errors.NotSupported, fmt.Sprintf("%v is not zstd", h.algorithm))
}

// Identifier implements codec.Identified.
func (CompressionHeader) Identifier() codec.Identifier { return CompressionHeaderIdentifier }

// LengthRule implements codec.Identified.
func (CompressionHeader) LengthRule() codec.LengthRule { return codec.BodyOnly }

// EncodeBody implements codec.Record.
func (h CompressionHeader) EncodeBody(e *codec.Encoder) {
	e.PutUint8(h.version)
	e.PutUint8(h.algorithm.Code())
	e.PutUint8(h.level)
}

// Encode returns h in its envelope.
func (h CompressionHeader) Encode() []byte {
	return codec.Encode(h)
}

func (h *CompressionHeader) decodeBody(d *codec.Decoder) (err error) {
	h.version = d.Uint8()
	code := d.Uint8()
	h.level = d.Uint8()
	if err = d.Err(); err != nil {
		return err
	}
	h.algorithm, err = ParseCompressionAlgorithm(code)
	return err
}

// DecodeCompressionHeader decodes the compression header at the start of
// data and returns it with the number of bytes it occupies.
func DecodeCompressionHeader(data []byte) (CompressionHeader, int, error) {
	var h CompressionHeader
	n, err := codec.DecodeAndValidate(data, CompressionHeaderIdentifier, codec.BodyOnly, h.decodeBody)
	if err != nil {
		return CompressionHeader{}, 0, errors.E("decode compression header", err)
	}
	return h, n, nil
}
