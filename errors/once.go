// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package errors

import "sync/atomic"

// Once captures at most one error. The codec's decoders record the
// first failure in a Once and turn every later read into a no-op, so
// composite decoders can chain reads and check Err a single time.
//
// A zero Once is ready to use.
//
// Example:
// 	var e errors.Once
// 	e.Set(errors.New("test error 0"))
type Once struct {
	err atomic.Pointer[error]
}

// Err returns the first non-nil error passed to Set.
func (e *Once) Err() error {
	p := e.err.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Set sets this instance's error to err. Only the first error
// is set; subsequent calls are ignored.
func (e *Once) Set(err error) {
	if err == nil {
		return
	}
	e.err.CompareAndSwap(nil, &err)
}
