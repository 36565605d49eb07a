/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package ferrors models the error kinds of the request-driving subsystem
// as a small kind-tagged wrapper: enough for a single CLI process to
// classify and report failures without a full cross-subsystem error
// registry.
package ferrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by the subsystem that raised it.
type Kind uint8

const (
	// KindScript is a script evaluation or factory-shape failure. Always
	// fatal at startup.
	KindScript Kind = iota
	// KindTransport is a connection-level I/O failure. Recovered by
	// reconnect during the run; fatal at setup if the first connect fails.
	KindTransport
	// KindParse is a malformed HTTP response. Treated as KindTransport for
	// the owning connection, counted separately.
	KindParse
	// KindConfig is a bad flag value. Always fatal at startup.
	KindConfig
	// KindPoller is an unexpected readiness-poller failure. Always fatal.
	KindPoller
)

func (k Kind) String() string {
	switch k {
	case KindScript:
		return "script"
	case KindTransport:
		return "transport"
	case KindParse:
		return "parse"
	case KindConfig:
		return "config"
	case KindPoller:
		return "poller"
	default:
		return "unknown"
	}
}

type kindError struct {
	kind Kind
	msg  string
	err  error
}

func (e *kindError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *kindError) Unwrap() error { return e.err }

// New builds a Kind-tagged error with an optional wrapped cause.
func New(kind Kind, msg string, cause error) error {
	return &kindError{kind: kind, msg: msg, err: cause}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind == kind
	}
	return false
}
