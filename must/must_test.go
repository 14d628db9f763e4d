// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package must_test

import (
	"errors"
	"fmt"
	"runtime"
	"testing"

	"github.com/grailbio/zff/must"
	"github.com/stretchr/testify/assert"
)

// TestDepth verifies that the depth passed to Func locates the caller of
// the must function.
func TestDepth(t *testing.T) {
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("could not determine current file")
	}
	old := must.Func
	defer func() { must.Func = old }()
	var calls int
	must.Func = func(depth int, v ...interface{}) {
		calls++
		_, file, _, ok := runtime.Caller(depth)
		if !ok {
			t.Fatal("could not determine caller of Func")
		}
		assert.Equal(t, thisFile, file, "caller at depth %d", depth)
	}
	must.Truef(false, "")
	must.Nil(struct{}{})
	must.Nil(nil)
	must.Truef(true, "")
	assert.Equal(t, 2, calls)
}

func TestPanics(t *testing.T) {
	assert.PanicsWithValue(t, "encode: key too long", func() {
		must.Nil(errors.New("key too long"), "encode")
	})
	assert.NotPanics(t, func() { must.Truef(true, "unreachable") })
}

func Example() {
	old := must.Func
	defer func() { must.Func = old }()
	must.Func = func(depth int, v ...interface{}) {
		fmt.Print(v...)
		fmt.Print("\n")
	}

	must.Nil(errors.New("unexpected condition"))
	must.Nil(nil)
	must.Nil(errors.New("i/o error"), "put key")
	must.Truef(false, "buffer of %d bytes", 1<<33)

	// Output:
	// unexpected condition
	// put key: i/o error
	// buffer of 8589934592 bytes
}
