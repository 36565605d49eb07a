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

package floodwire

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
)

// ErrMalformed is returned by ParseResponse when the buffered bytes are not
// a valid HTTP/1.1 response, as opposed to merely incomplete.
var ErrMalformed = errors.New("floodwire: malformed HTTP response")

// ParsedResponse is the minimal shape the event-loop client needs: the
// status code to classify success/failure.
type ParsedResponse struct {
	StatusCode int
}

// ParseResponse attempts to parse a complete HTTP/1.1 response out of buf.
// done=false means buf is a valid-so-far prefix that needs more bytes, not
// an error - callers keep accumulating and re-parsing on every read.
//
// Only the status code is retained. Headers and body are consumed (to
// find the end of the message) but never inspected beyond the framing
// fields needed to know where the response ends.
func ParseResponse(buf []byte) (resp ParsedResponse, done bool, err error) {
	headerEnd := bytes.Index(buf, []byte("\r\n\r\n"))
	if headerEnd < 0 {
		return resp, false, nil
	}

	head := string(buf[:headerEnd])
	lines := strings.Split(head, "\r\n")
	if len(lines) == 0 {
		return resp, false, ErrMalformed
	}

	statusLine := lines[0]
	parts := strings.SplitN(statusLine, " ", 3)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "HTTP/") {
		return resp, false, ErrMalformed
	}
	code, convErr := strconv.Atoi(parts[1])
	if convErr != nil {
		return resp, false, ErrMalformed
	}
	resp.StatusCode = code

	var contentLength = -1
	var chunked bool
	for _, line := range lines[1:] {
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		switch strings.ToLower(key) {
		case "content-length":
			if n, e := strconv.Atoi(val); e == nil {
				contentLength = n
			}
		case "transfer-encoding":
			if strings.EqualFold(val, "chunked") {
				chunked = true
			}
		}
	}

	bodyStart := headerEnd + 4
	body := buf[bodyStart:]

	switch {
	case chunked:
		n, ok := chunkedBodyComplete(body)
		if !ok {
			return resp, false, nil
		}
		_ = n
		return resp, true, nil
	case contentLength >= 0:
		if len(body) < contentLength {
			return resp, false, nil
		}
		return resp, true, nil
	default:
		// No framing header: connections are kept alive and
		// requests never pipeline concurrently on one socket, so a response
		// with no Content-Length and no chunked encoding is treated as
		// complete as soon as headers arrive (e.g. a HEAD-like 204/304, or
		// a strict echo server in tests).
		return resp, true, nil
	}
}

// chunkedBodyComplete reports whether body contains a fully terminated
// chunked-encoded payload (ending in the zero-length chunk + trailer CRLF).
func chunkedBodyComplete(body []byte) (total int, ok bool) {
	pos := 0
	for {
		lineEnd := bytes.Index(body[pos:], []byte("\r\n"))
		if lineEnd < 0 {
			return 0, false
		}
		sizeLine := body[pos : pos+lineEnd]
		if semi := bytes.IndexByte(sizeLine, ';'); semi >= 0 {
			sizeLine = sizeLine[:semi]
		}
		size, err := strconv.ParseInt(string(bytes.TrimSpace(sizeLine)), 16, 64)
		if err != nil {
			return 0, false
		}
		pos += lineEnd + 2
		if size == 0 {
			if bytes.HasPrefix(body[pos:], []byte("\r\n")) {
				return pos + 2, true
			}
			return 0, false
		}
		need := int(size) + 2 // chunk data + trailing CRLF
		if len(body)-pos < need {
			return 0, false
		}
		pos += need
	}
}
