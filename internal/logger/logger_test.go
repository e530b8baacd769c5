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

package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityNamesReplaceSlogLevels(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, false)
	SetLevel("trace")
	defer SetOutput(os.Stderr, false)

	Infof("hello %s", "world")

	assert.Contains(t, buf.String(), "severity=INFO")
	assert.Contains(t, buf.String(), "hello world")
}

func TestSetLevelFiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, false)
	SetLevel("warning")
	defer SetOutput(os.Stderr, false)

	Infof("should not appear")
	Warnf("should appear")

	out := buf.String()
	assert.NotContains(t, out, "should not appear")
	assert.Contains(t, out, "should appear")
}
