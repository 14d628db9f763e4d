// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package header implements the self-describing records that frame a zff
// container: chunk, compression, encryption (with its nested PBE
// descriptor), segment and description headers.
//
// Every header is encoded as a codec envelope whose identifier is fixed
// per header type. Decoders reject any other identifier with
// errors.IdentifierMismatch, so a reader may try decoders in turn.
// Enumerated fields (compression algorithm, encryption algorithm, KDF and
// PBE schemes) form closed sets: an unknown numeric code always fails
// with errors.UnknownCode and is never mapped to a default.
package header

import (
	"fmt"

	"github.com/grailbio/zff/codec"
	"github.com/grailbio/zff/errors"
	"github.com/grailbio/zff/log"
)

// Record identifiers. On disk they read as "zffC", "zffc" and so on.
const (
	ChunkHeaderIdentifier       codec.Identifier = 0x7A666643
	CompressionHeaderIdentifier codec.Identifier = 0x7A666663
	DescriptionHeaderIdentifier codec.Identifier = 0x7A666664
	EncryptionHeaderIdentifier  codec.Identifier = 0x7A666665
	PBEHeaderIdentifier         codec.Identifier = 0x7A666670
	SegmentHeaderIdentifier     codec.Identifier = 0x7A666673
	// PBKDF2ParametersIdentifier frames the parameters of the
	// PBKDF2-HMAC-SHA256 key derivation ("kdfp").
	PBKDF2ParametersIdentifier codec.Identifier = 0x6B646670
)

// Coded is implemented by every enumerated field: it returns the stable
// numeric code the value is stored as.
type Coded interface {
	Code() uint8
}

// unknownCode returns the error for a code outside the closed set named
// by what.
func unknownCode(what string, code uint8) error {
	log.Debug.Printf("header: unknown %s code %d", what, code)
	return errors.E(errors.UnknownCode, errors.Fatal, fmt.Sprintf("%s %d", what, code))
}
