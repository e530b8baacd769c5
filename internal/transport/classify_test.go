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

package transport

import "testing"

func TestClassifyHTTPStatus(t *testing.T) {
	cases := []struct {
		status int
		want   Classification
	}{
		{408, ClassTransient},
		{429, ClassTransient},
		{503, ClassTransient},
		{500, ClassTransient},
		{599, ClassTransient},
		{501, ClassPermanent},
		{400, ClassPermanent},
		{404, ClassPermanent},
		{403, ClassPermanent},
		{200, ClassPermanent},
		{301, ClassPermanent},
	}
	for _, c := range cases {
		if got := ClassifyHTTPStatus(c.status); got != c.want {
			t.Errorf("ClassifyHTTPStatus(%d) = %s, want %s", c.status, got, c.want)
		}
	}
}

func TestClassifiedError_UnwrapsToCause(t *testing.T) {
	cause := errString("boom")
	ce := &ClassifiedError{Classification: ClassTransient, Err: cause}

	if ce.Error() != "boom" {
		t.Errorf("Error() = %q, want %q", ce.Error(), "boom")
	}
	if ce.Unwrap() != cause {
		t.Errorf("Unwrap() did not return the wrapped cause")
	}
}

type errString string

func (e errString) Error() string { return string(e) }
