// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package header

import (
	"fmt"
	"time"

	"github.com/grailbio/zff/codec"
	"github.com/grailbio/zff/errors"
	"github.com/grailbio/zff/log"
	"github.com/grailbio/zff/must"
)

// Keys of the description header's keyed fields.
const (
	keyCaseNumber       = "cn"
	keyEvidenceNumber   = "ev"
	keyExaminer         = "ex"
	keyNotes            = "no"
	keyDescriptionNotes = "dn"
	keyAcquisitionStart = "as"
	keyAcquisitionEnd   = "ae"
)

// DescriptionHeader holds the free-form case metadata of an acquisition.
// Its body is the version followed by keyed values; empty fields are not
// stored and unknown keys, objects included, are skipped. Acquisition
// times have a resolution of one second.
type DescriptionHeader struct {
	Version          uint8
	CaseNumber       string
	EvidenceNumber   string
	Examiner         string
	Notes            string
	DescriptionNotes string
	AcquisitionStart time.Time
	AcquisitionEnd   time.Time
}

// Identifier implements codec.Identified.
func (DescriptionHeader) Identifier() codec.Identifier { return DescriptionHeaderIdentifier }

// LengthRule implements codec.Identified.
func (DescriptionHeader) LengthRule() codec.LengthRule { return codec.BodyOnly }

// EncodeBody implements codec.Record.
func (h DescriptionHeader) EncodeBody(e *codec.Encoder) {
	e.PutUint8(h.Version)
	for _, f := range []struct{ key, val string }{
		{keyCaseNumber, h.CaseNumber},
		{keyEvidenceNumber, h.EvidenceNumber},
		{keyExaminer, h.Examiner},
		{keyNotes, h.Notes},
		{keyDescriptionNotes, h.DescriptionNotes},
	} {
		if f.val != "" {
			must.Nil(e.PutKeyValue(f.key, f.val), "put ", f.key)
		}
	}
	if !h.AcquisitionStart.IsZero() {
		must.Nil(e.PutKeyValue(keyAcquisitionStart, uint64(h.AcquisitionStart.Unix())), "put ", keyAcquisitionStart)
	}
	if !h.AcquisitionEnd.IsZero() {
		must.Nil(e.PutKeyValue(keyAcquisitionEnd, uint64(h.AcquisitionEnd.Unix())), "put ", keyAcquisitionEnd)
	}
}

// Encode returns h in its envelope.
func (h DescriptionHeader) Encode() []byte {
	return codec.Encode(h)
}

func (h *DescriptionHeader) decodeBody(d *codec.Decoder) error {
	h.Version = d.Uint8()
	for d.Err() == nil && d.Remaining() > 0 {
		kv := d.KeyValue()
		if d.Err() != nil {
			break
		}
		var err error
		switch kv.Key {
		case keyCaseNumber:
			h.CaseNumber, err = stringValue(kv)
		case keyEvidenceNumber:
			h.EvidenceNumber, err = stringValue(kv)
		case keyExaminer:
			h.Examiner, err = stringValue(kv)
		case keyNotes:
			h.Notes, err = stringValue(kv)
		case keyDescriptionNotes:
			h.DescriptionNotes, err = stringValue(kv)
		case keyAcquisitionStart:
			h.AcquisitionStart, err = timeValue(kv)
		case keyAcquisitionEnd:
			h.AcquisitionEnd, err = timeValue(kv)
		default:
			log.Debug.Printf("header: skipping unknown description key %q", kv.Key)
		}
		if err != nil {
			return err
		}
	}
	return d.Err()
}

func stringValue(kv codec.KeyValue) (string, error) {
	s, ok := kv.Value.(string)
	if !ok {
		return "", errors.E(errors.NotSupported, fmt.Sprintf("key %q holds a %v, want a string", kv.Key, kv.Kind))
	}
	return s, nil
}

func timeValue(kv codec.KeyValue) (time.Time, error) {
	sec, ok := kv.Value.(uint64)
	if !ok {
		return time.Time{}, errors.E(errors.NotSupported, fmt.Sprintf("key %q holds a %v, want a uint64", kv.Key, kv.Kind))
	}
	return time.Unix(int64(sec), 0).UTC(), nil
}

// DecodeDescriptionHeader decodes the description header at the start of
// data and returns it with the number of bytes it occupies. Keys it does
// not know are skipped.
func DecodeDescriptionHeader(data []byte) (DescriptionHeader, int, error) {
	var h DescriptionHeader
	n, err := codec.DecodeAndValidate(data, DescriptionHeaderIdentifier, codec.BodyOnly, h.decodeBody)
	if err != nil {
		return DescriptionHeader{}, 0, errors.E("decode description header", err)
	}
	return h, n, nil
}
