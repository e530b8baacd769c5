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

// Command cabi is pravaha's foreign-function boundary: a cgo-exported
// C ABI built as a C shared/archive library
// (`go build -buildmode=c-shared` or `c-archive`) — opaque handles, a
// stable numeric error code enum, "r"/"rb" modes, and a thread-local
// last-error string.
//
// Opaque handles ride on runtime/cgo.Handle. The per-thread last-error
// slot is a mutex-protected map keyed by the calling OS thread id,
// approximating a true thread-local the conventional cgo way, since Go
// has no first-class thread-local storage and goroutines may migrate
// between OS threads between calls.
package main

/*
#include <stdint.h>
#include <stdlib.h>
*/
import "C"

import (
	"context"
	"io"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/rhythmcache/pravaha"
	"github.com/rhythmcache/pravaha/cfg"
	"github.com/rhythmcache/pravaha/common"
)

func main() {}

// Error codes, stable numeric values.
const (
	Success             C.int = 0
	ErrNetwork          C.int = 1
	ErrProtocol         C.int = 2
	ErrIO               C.int = 3
	ErrFileClosed       C.int = 4
	ErrUnsupportedProto C.int = 5
	ErrInvalidArgument  C.int = 6
	ErrUnknown          C.int = 99
)

// Version is the boundary's version string, returned by
// pravaha_version for callers that want to assert ABI compatibility.
const Version = "0.1.0"

var (
	lastErrMu   sync.Mutex
	lastErrText = make(map[int]string)
	lastErrCStr = make(map[int]*C.char)
)

func setLastError(msg string) {
	tid := unix.Gettid()
	lastErrMu.Lock()
	lastErrText[tid] = msg
	lastErrMu.Unlock()
}

func clearLastError() {
	setLastError("")
}

func errorCode(err error) C.int {
	switch common.KindOf(err) {
	case common.Network:
		return ErrNetwork
	case common.Protocol:
		return ErrProtocol
	case common.IO:
		return ErrIO
	case common.FileClosed:
		return ErrFileClosed
	case common.UnsupportedProtocol:
		return ErrUnsupportedProto
	case common.InvalidArgument:
		return ErrInvalidArgument
	default:
		return ErrUnknown
	}
}

//export pravaha_version
func pravaha_version() *C.char {
	return C.CString(Version)
}

// pravaha_last_error returns the last error recorded on the calling OS
// thread, or an empty string if the thread's last error-recording call
// succeeded (pravaha_version, pravaha_eof, pravaha_close and
// pravaha_fs_free neither set nor clear it). The returned pointer stays
// valid until the next pravaha_last_error call on the same thread,
// which frees and replaces it.
//
//export pravaha_last_error
func pravaha_last_error() *C.char {
	tid := unix.Gettid()

	lastErrMu.Lock()
	defer lastErrMu.Unlock()

	if old, ok := lastErrCStr[tid]; ok {
		C.free(unsafe.Pointer(old))
	}
	cstr := C.CString(lastErrText[tid])
	lastErrCStr[tid] = cstr
	return cstr
}

// pravaha_fs_new constructs a Filesystem. chunkSize and cacheMaxBytes
// of 0 select the defaults. Returns 0 on failure; check
// pravaha_last_error.
//
//export pravaha_fs_new
func pravaha_fs_new(chunkSize C.uint64_t, cacheMaxBytes C.uint64_t) C.uintptr_t {
	clearLastError()

	var opts []cfg.Option
	if chunkSize > 0 {
		opts = append(opts, cfg.WithChunkSize(uint64(chunkSize)))
	}
	if cacheMaxBytes > 0 {
		opts = append(opts, cfg.WithCacheMaxBytes(uint64(cacheMaxBytes)))
	}

	fs, err := pravaha.NewFilesystem(opts...)
	if err != nil {
		setLastError(err.Error())
		return 0
	}
	return C.uintptr_t(newHandle(fs))
}

// pravaha_fs_free tears down a Filesystem (joining its prefetch
// worker) and invalidates the handle. Accepts 0 (NULL); double-free is
// undefined.
//
//export pravaha_fs_free
func pravaha_fs_free(h C.uintptr_t) {
	if h == 0 {
		return
	}
	if fs, ok := lookupFilesystem(h); ok {
		fs.Close()
	}
	deleteHandle(h)
}

// pravaha_open opens url in mode ("r" or "rb") against the Filesystem
// identified by fsHandle. Returns 0 on failure; check
// pravaha_last_error.
//
//export pravaha_open
func pravaha_open(fsHandle C.uintptr_t, url *C.char, mode *C.char) C.uintptr_t {
	clearLastError()

	if fsHandle == 0 || url == nil || mode == nil {
		setLastError("invalid argument")
		return 0
	}
	fs, ok := lookupFilesystem(fsHandle)
	if !ok {
		setLastError("invalid filesystem handle")
		return 0
	}

	f, err := fs.Open(context.Background(), C.GoString(url), C.GoString(mode))
	if err != nil {
		setLastError(err.Error())
		return 0
	}
	return C.uintptr_t(newHandle(f))
}

// pravaha_read copies up to length bytes into buf, advancing the
// handle's position. Returns the number of bytes copied, 0 on EOF, or
// -1 on error.
//
//export pravaha_read
func pravaha_read(fileHandle C.uintptr_t, buf *C.char, length C.size_t) C.int64_t {
	clearLastError()

	f, ok := lookupFile(fileHandle)
	if !ok {
		setLastError("invalid file handle")
		return -1
	}
	if length == 0 {
		return 0
	}

	p := unsafe.Slice((*byte)(unsafe.Pointer(buf)), int(length))
	n, err := f.Read(p)
	if err != nil && err != io.EOF {
		setLastError(err.Error())
		return -1
	}
	return C.int64_t(n)
}

// pravaha_seek repositions the handle. Always succeeds unless the
// handle is closed or invalid.
//
//export pravaha_seek
func pravaha_seek(fileHandle C.uintptr_t, pos C.uint64_t) C.int {
	clearLastError()

	f, ok := lookupFile(fileHandle)
	if !ok {
		setLastError("invalid file handle")
		return ErrInvalidArgument
	}
	if err := f.Seek(uint64(pos)); err != nil {
		setLastError(err.Error())
		return errorCode(err)
	}
	return Success
}

// pravaha_tell returns the handle's current position. 0 is ambiguous
// with an error; callers check pravaha_last_error when 0 is
// unexpected.
//
//export pravaha_tell
func pravaha_tell(fileHandle C.uintptr_t) C.uint64_t {
	clearLastError()

	f, ok := lookupFile(fileHandle)
	if !ok {
		setLastError("invalid file handle")
		return 0
	}
	return C.uint64_t(f.Tell())
}

// pravaha_size sets *hasSize to 1 iff the resource's size is known,
// returning that size (undefined when *hasSize is 0).
//
//export pravaha_size
func pravaha_size(fileHandle C.uintptr_t, hasSize *C.int) C.uint64_t {
	clearLastError()

	f, ok := lookupFile(fileHandle)
	if !ok {
		setLastError("invalid file handle")
		if hasSize != nil {
			*hasSize = 0
		}
		return 0
	}

	size, known := f.Size()
	if hasSize != nil {
		if known {
			*hasSize = 1
		} else {
			*hasSize = 0
		}
	}
	return C.uint64_t(size)
}

// pravaha_eof reports the handle's latched EOF flag.
//
//export pravaha_eof
func pravaha_eof(fileHandle C.uintptr_t) C.int {
	f, ok := lookupFile(fileHandle)
	if !ok {
		return 0
	}
	if f.EOF() {
		return 1
	}
	return 0
}

// pravaha_close closes a file handle and cancels its outstanding
// prefetch submissions. Accepts 0 (NULL); double-free is undefined.
//
//export pravaha_close
func pravaha_close(fileHandle C.uintptr_t) {
	if fileHandle == 0 {
		return
	}
	if f, ok := lookupFile(fileHandle); ok {
		f.Close()
	}
	deleteHandle(fileHandle)
}
