// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package header

// Chunk header body layout:
//
//   version   [1B]
//   number    [8B]
//   size      [8B]  stored (compressed/encrypted) payload size
//   checksum  [4B]  CRC32 (IEEE) of the decoded payload
//   signature [64B] ed25519 signature, only in signed containers
//
// The envelope length of a chunk header counts the 12 prefix bytes as
// well as the body.

import (
	"crypto/ed25519"
	"fmt"
	"hash/crc32"

	"github.com/grailbio/zff/codec"
	"github.com/grailbio/zff/errors"
	"github.com/grailbio/zff/log"
)

// SignatureLen is the size of a chunk signature.
const SignatureLen = ed25519.SignatureSize

// Signature is an ed25519 signature over a chunk's stored payload.
type Signature [SignatureLen]byte

// ChunkHeader describes one chunk. Size, checksum and signature are not
// known until the chunk's payload is produced; they are set with
// Finalize. ChunkHeader values are immutable.
type ChunkHeader struct {
	version   uint8
	number    uint64
	size      uint64
	checksum  uint32
	signature Signature
	signed    bool
}

// NewChunkHeader returns the header of the first chunk of a stream,
// numbered start, with its payload fields unset.
func NewChunkHeader(version uint8, start uint64) ChunkHeader {
	return ChunkHeader{version: version, number: start}
}

// Version returns the header version.
func (h ChunkHeader) Version() uint8 { return h.version }

// Number returns the chunk number.
func (h ChunkHeader) Number() uint64 { return h.number }

// Size returns the size of the stored payload.
func (h ChunkHeader) Size() uint64 { return h.size }

// Checksum returns the CRC32 of the decoded payload.
func (h ChunkHeader) Checksum() uint32 { return h.checksum }

// Signature returns the chunk's signature and whether it has one.
func (h ChunkHeader) Signature() (Signature, bool) { return h.signature, h.signed }

// Finalize returns h with its payload fields set. sig is nil for
// unsigned containers.
func (h ChunkHeader) Finalize(size uint64, checksum uint32, sig *Signature) ChunkHeader {
	h.size = size
	h.checksum = checksum
	h.signature, h.signed = Signature{}, false
	if sig != nil {
		h.signature, h.signed = *sig, true
	}
	return h
}

// Advance returns the header of the next chunk: the number is
// incremented and the payload fields are unset.
func (h ChunkHeader) Advance() ChunkHeader {
	return NewChunkHeader(h.version, h.number+1)
}

// Identifier implements codec.Identified.
func (ChunkHeader) Identifier() codec.Identifier { return ChunkHeaderIdentifier }

// LengthRule implements codec.Identified.
func (ChunkHeader) LengthRule() codec.LengthRule { return codec.IncludesPrefix }

// EncodeBody implements codec.Record.
func (h ChunkHeader) EncodeBody(e *codec.Encoder) {
	e.PutUint8(h.version)
	e.PutUint64(h.number)
	e.PutUint64(h.size)
	e.PutUint32(h.checksum)
	if h.signed {
		e.PutArray(h.signature[:])
	}
}

// Encode returns h in its envelope.
func (h ChunkHeader) Encode() []byte {
	return codec.Encode(h)
}

func (h *ChunkHeader) decodeBody(d *codec.Decoder) error {
	h.version = d.Uint8()
	h.number = d.Uint64()
	h.size = d.Uint64()
	h.checksum = d.Uint32()
	if err := d.Err(); err != nil {
		return err
	}
	switch n := d.Remaining(); n {
	case 0:
	case SignatureLen:
		d.ReadFull(h.signature[:])
		h.signed = true
	default:
		return errors.E(errors.MalformedLength,
			fmt.Sprintf("chunk header body has %d bytes after the fixed fields, want 0 or %d", n, SignatureLen))
	}
	return d.Err()
}

// DecodeChunkHeader decodes the chunk header at the start of data and
// returns it with the number of bytes it occupies. A body holding
// neither zero nor SignatureLen bytes past the fixed fields fails with
// errors.MalformedLength.
func DecodeChunkHeader(data []byte) (ChunkHeader, int, error) {
	var h ChunkHeader
	n, err := codec.DecodeAndValidate(data, ChunkHeaderIdentifier, codec.IncludesPrefix, h.decodeBody)
	if err != nil {
		return ChunkHeader{}, 0, errors.E("decode chunk header", err)
	}
	return h, n, nil
}

// PayloadChecksum returns the checksum stored for a decoded payload.
func PayloadChecksum(decoded []byte) uint32 {
	return crc32.ChecksumIEEE(decoded)
}

// VerifyChecksum checks decoded, the chunk's payload after decryption
// and decompression, against the stored checksum.
func (h ChunkHeader) VerifyChecksum(decoded []byte) error {
	if got := PayloadChecksum(decoded); got != h.checksum {
		log.Debug.Printf("header: chunk %d checksum %08x, stored %08x", h.number, got, h.checksum)
		return errors.E(errors.Integrity, errors.Fatal,
			fmt.Sprintf("chunk %d: checksum %08x does not match stored %08x", h.number, got, h.checksum))
	}
	return nil
}

// VerifySignature checks the chunk's signature over stored, the payload
// as written to the segment, against pub. An unsigned chunk fails.
func (h ChunkHeader) VerifySignature(pub ed25519.PublicKey, stored []byte) error {
	if !h.signed {
		return errors.E(errors.Integrity, fmt.Sprintf("chunk %d is not signed", h.number))
	}
	if len(pub) != ed25519.PublicKeySize {
		return errors.E(errors.Invalid, fmt.Sprintf("public key is %d bytes, want %d", len(pub), ed25519.PublicKeySize))
	}
	if !ed25519.Verify(pub, stored, h.signature[:]) {
		return errors.E(errors.Integrity, errors.Fatal, fmt.Sprintf("chunk %d: bad signature", h.number))
	}
	return nil
}

// CheckSequence checks that next directly follows prev. A gap or a
// repeated number means chunks were lost or duplicated.
func CheckSequence(prev, next ChunkHeader) error {
	if prev.number == ^uint64(0) || next.number != prev.number+1 {
		return errors.E(errors.Integrity, errors.Fatal,
			fmt.Sprintf("chunk %d follows chunk %d", next.number, prev.number))
	}
	return nil
}

// ChunkSequencer checks the numbering of a stream of chunk headers as a
// reader meets them. The zero value accepts any first chunk.
type ChunkSequencer struct {
	prev    ChunkHeader
	started bool
}

// Check accepts h if it directly follows the previous header.
func (s *ChunkSequencer) Check(h ChunkHeader) error {
	if s.started {
		if err := CheckSequence(s.prev, h); err != nil {
			return err
		}
	}
	s.prev, s.started = h, true
	return nil
}

// Next returns the number the next chunk must carry, and false if no
// chunk was checked yet.
func (s *ChunkSequencer) Next() (uint64, bool) {
	return s.prev.number + 1, s.started
}
