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

package pravaha

import (
	"errors"

	"github.com/rhythmcache/pravaha/common"
	"github.com/rhythmcache/pravaha/internal/transport"
)

// classify maps a transport-layer or cache-layer error onto the one
// error type the core ever returns to a caller: a *common.Error
// carrying one of the six kinds. A nil err passes through
// unchanged so callers can write `return classify("read", err)`
// unconditionally.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if ce, ok := asCommonError(err); ok {
		return ce
	}

	var classified *transport.ClassifiedError
	if errors.As(err, &classified) {
		switch classified.Classification {
		case transport.ClassTransient, transport.ClassPermanent:
			return common.NewError(common.Network, op, err)
		case transport.ClassProtocolViolation:
			return common.NewError(common.Protocol, op, err)
		case transport.ClassShortRead:
			return common.NewError(common.IO, op, err)
		}
	}
	return common.NewError(common.Unknown, op, err)
}

func asCommonError(err error) (*common.Error, bool) {
	var ce *common.Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
