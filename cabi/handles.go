// Copyright 2025 The pravaha Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

/*
#include <stdint.h>
*/
import "C"

import (
	"runtime/cgo"

	"github.com/rhythmcache/pravaha"
)

// newHandle, lookupFilesystem/lookupFile, and deleteHandle wrap
// runtime/cgo.Handle as the opaque handle mechanism: an integer that
// is meaningless to the C side but uniquely
// identifies a Go value on this side, safe to hand across the cgo
// boundary without exposing a real pointer.
func newHandle(v any) cgo.Handle {
	return cgo.NewHandle(v)
}

func lookupFilesystem(h C.uintptr_t) (*pravaha.Filesystem, bool) {
	fs, ok := cgo.Handle(h).Value().(*pravaha.Filesystem)
	return fs, ok
}

func lookupFile(h C.uintptr_t) (*pravaha.File, bool) {
	f, ok := cgo.Handle(h).Value().(*pravaha.File)
	return f, ok
}

func deleteHandle(h C.uintptr_t) {
	cgo.Handle(h).Delete()
}
