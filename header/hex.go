// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package header

import (
	"encoding/hex"
	"fmt"
)

// HexBytes is a byte slice that marshals to JSON as a hex encoded
// string. Headers use it to report salts, nonces and wrapped keys.
type HexBytes []byte

// MarshalJSON marshals b as a hex encoded string.
func (b HexBytes) MarshalJSON() ([]byte, error) {
	if len(b) == 0 {
		return []byte(`""`), nil
	}
	dst := make([]byte, hex.EncodedLen(len(b))+2)
	hex.Encode(dst[1:], b)
	// need to supply leading/trailing double quotes.
	dst[0], dst[len(dst)-1] = '"', '"'
	return dst, nil
}

// UnmarshalJSON unmarshals a hex encoded string into b.
func (b *HexBytes) UnmarshalJSON(data []byte) error {
	// need to strip leading and trailing double quotes
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("hex bytes are not quoted")
	}
	data = data[1 : len(data)-1]
	*b = make([]byte, hex.DecodedLen(len(data)))
	_, err := hex.Decode(*b, data)
	return err
}
