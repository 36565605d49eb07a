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

package stats

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Sample is one reservoir entry: a request's type tag and its start/finish
// offsets from T0, in microseconds.
type Sample struct {
	Type   int32  `json:"type"`
	Start  uint32 `json:"start"`
	Finish uint32 `json:"finish"`
}

// Trace is the unbounded trace reservoir. Callers size their expectations
// around sample-rate * QPS * duration.
type Trace struct {
	mu      sync.Mutex
	samples []Sample
}

// NewTrace returns an empty reservoir.
func NewTrace() *Trace {
	return &Trace{}
}

// Add appends a sample to the reservoir.
func (t *Trace) Add(s Sample) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.samples = append(t.samples, s)
}

// Len reports the current reservoir size.
func (t *Trace) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.samples)
}

// WriteTo serializes the reservoir as a JSON array streamed through a
// zstd-compressed writer. The write is flush-then-close; there is no
// rename dance for atomicity.
func (t *Trace) WriteTo(w io.Writer) error {
	t.mu.Lock()
	samples := make([]Sample, len(t.samples))
	copy(samples, t.samples)
	t.mu.Unlock()

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(zw)
	if err := enc.Encode(samples); err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}

// ReadTrace reads back a trace file written by WriteTo, for tests and
// offline inspection tooling.
func ReadTrace(r io.Reader) ([]Sample, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var samples []Sample
	if err := json.NewDecoder(zr).Decode(&samples); err != nil {
		return nil, err
	}
	return samples, nil
}
