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

// Package floodwire serializes the script-generated request shape into a
// ready-to-send HTTP/1.1 byte buffer and parses the partial-aware
// HTTP/1.1 response off the wire.
package floodwire

import (
	"bytes"
	"strconv"
)

// HeaderField is a single user-supplied header, order preserved from the
// script object's own key iteration order.
type HeaderField struct {
	Key   string
	Value string
}

// RequestSpec is the validated shape a script factory must return:
// required method/path/headers, optional body and type discriminator.
type RequestSpec struct {
	Method  string
	Path    string
	Headers []HeaderField
	Body    string
	HasBody bool
	Type    int32
}

// dropped headers the core always owns.
func isCoreHeader(key string) bool {
	switch key {
	case "Host", "Connection", "Content-Length":
		return true
	default:
		return false
	}
}

// Serialize renders spec into a fully formed HTTP/1.1 request.
func Serialize(spec RequestSpec, host string) []byte {
	var buf bytes.Buffer
	buf.Grow(256 + len(spec.Body))

	buf.WriteString(spec.Method)
	buf.WriteByte(' ')
	buf.WriteString(spec.Path)
	buf.WriteString(" HTTP/1.1\r\n")
	buf.WriteString("Host: ")
	buf.WriteString(host)
	buf.WriteString("\r\n")
	buf.WriteString("Connection: keep-alive\r\n")

	var hasAccept, hasUserAgent, hasContentType bool
	for _, h := range spec.Headers {
		if isCoreHeader(h.Key) {
			continue
		}
		switch h.Key {
		case "Accept":
			hasAccept = true
		case "User-Agent":
			hasUserAgent = true
		case "Content-Type":
			hasContentType = true
		}
		buf.WriteString(h.Key)
		buf.WriteString(": ")
		buf.WriteString(h.Value)
		buf.WriteString("\r\n")
	}

	if !hasAccept {
		buf.WriteString("Accept: */*\r\n")
	}
	if !hasUserAgent {
		buf.WriteString("User-Agent: flood\r\n")
	}
	if spec.HasBody && !hasContentType {
		buf.WriteString("Content-Type: text/plain\r\n")
	}
	if spec.HasBody {
		buf.WriteString("Content-Length: ")
		buf.WriteString(strconv.Itoa(len(spec.Body)))
		buf.WriteString("\r\n")
	}
	buf.WriteString("\r\n")
	if spec.HasBody {
		buf.WriteString(spec.Body)
	}

	return buf.Bytes()
}
