// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package must expresses assertions whose failure is a programming
// error rather than bad input: the codec uses it where an encoder is
// handed a value that no well-formed record can produce, such as a
// buffer too long for its length prefix or a keyed field with a
// constant key that does not fit. Decoders never use must; malformed
// bytes are always reported as errors.
package must

import (
	"fmt"

	"github.com/grailbio/zff/log"
)

// Func is called to report a failed assertion. It is passed the call
// depth of the caller of the must function. The default logs the
// message with github.com/grailbio/zff/log at the Error level and then
// panics. Tests may replace it.
var Func func(int, ...interface{}) = func(depth int, v ...interface{}) {
	s := fmt.Sprint(v...)
	_ = log.Output(depth+1, log.Error, s)
	panic(s)
}

// Nil asserts that v, typically an error, is nil. Otherwise it calls
// Func with args, formatted in the manner of fmt.Sprint, followed by v.
func Nil(v interface{}, args ...interface{}) {
	if v == nil {
		return
	}
	if len(args) == 0 {
		Func(2, v)
		return
	}
	Func(2, fmt.Sprint(args...), ": ", v)
}

// Truef asserts that b is true. Otherwise it calls Func with a message
// formatted in the manner of fmt.Sprintf.
func Truef(b bool, format string, v ...interface{}) {
	if b {
		return
	}
	Func(2, fmt.Sprintf(format, v...))
}
