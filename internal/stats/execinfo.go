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

// Package stats is the observable outcome of a run: counters, a latency
// histogram, and a sampled trace reservoir, all gated by a warm-up
// watermark. The histogram is backed by
// github.com/HdrHistogram/hdrhistogram-go.
package stats

import (
	"math/rand"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/nabbar/flood/internal/logging"
)

const sigFigs = 3

// ExecutionInfo accumulates every observable outcome of a run behind a
// single mutex; the main thread is its only mutator.
type ExecutionInfo struct {
	mu sync.Mutex

	initialTime time.Time
	hasInitial  bool

	hist    *hdrhistogram.Histogram
	histMax int64

	bytesSent   uint64
	bytesRecv   uint64
	requestTot  uint32
	successCnt  uint32
	failureCnt  uint32
	errorCnt    uint32
	parseErrCnt uint32

	trace      *Trace
	sampleRate float64
	rng        *rand.Rand

	log logging.Logger
}

// New builds an ExecutionInfo whose histogram records microsecond
// latencies up to histMax (normally the configured read timeout) at
// sigFigs significant figures. sampleRate is the trace reservoir's
// independent keep probability (0 disables tracing).
func New(histMax time.Duration, sampleRate float64, log logging.Logger) *ExecutionInfo {
	if log == nil {
		log = logging.Discard()
	}
	maxMicros := histMax.Microseconds()
	if maxMicros < 1 {
		maxMicros = 1
	}
	return &ExecutionInfo{
		hist:       hdrhistogram.New(1, maxMicros, sigFigs),
		histMax:    maxMicros,
		trace:      NewTrace(),
		sampleRate: sampleRate,
		rng:        rand.New(rand.NewSource(1)),
		log:        log,
	}
}

// SetInitialTime establishes T0, the warm-up watermark. Events timestamped
// before it are dropped except byte counters, which accumulate
// unconditionally since they describe the transport, not the measurement.
func (e *ExecutionInfo) SetInitialTime(t0 time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.initialTime = t0
	e.hasInitial = true
}

func (e *ExecutionInfo) pastWarmup(t time.Time) bool {
	return e.hasInitial && !t.Before(e.initialTime)
}

// NewRequest records the start of a request issued at start.
func (e *ExecutionInfo) NewRequest(start time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pastWarmup(start) {
		e.requestTot++
	}
}

// RequestFinished records a successfully completed request (the event
// loop calls it for HTTP status 200 only).
func (e *ExecutionInfo) RequestFinished(reqType int32, start, finish time.Time) {
	e.recordCompletion(reqType, start, finish, true)
}

// RequestFailed records a completed request with any status other than 200.
func (e *ExecutionInfo) RequestFailed(reqType int32, start, finish time.Time) {
	e.recordCompletion(reqType, start, finish, false)
}

func (e *ExecutionInfo) recordCompletion(reqType int32, start, finish time.Time, success bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.pastWarmup(start) {
		return
	}
	if success {
		e.successCnt++
	} else {
		e.failureCnt++
	}

	latencyMicros := finish.Sub(start).Microseconds()
	if latencyMicros > e.histMax {
		e.log.Warn("latency exceeds histogram max, dropping sample", logging.Fields{
			"latency_us": latencyMicros,
			"max_us":     e.histMax,
		})
	} else {
		if latencyMicros < 1 {
			latencyMicros = 1
		}
		_ = e.hist.RecordValue(latencyMicros)
	}

	if e.sampleRate > 0 && e.rng.Float64() < e.sampleRate {
		e.trace.Add(Sample{
			Type:   reqType,
			Start:  uint32(start.Sub(e.initialTime).Microseconds()),
			Finish: uint32(finish.Sub(e.initialTime).Microseconds()),
		})
	}
}

// ConnectionError records a transport-level failure (reset, timeout, poller
// error on a socket).
func (e *ExecutionInfo) ConnectionError() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pastWarmup(time.Now()) {
		e.errorCnt++
	}
}

// ParseError records a malformed HTTP response.
func (e *ExecutionInfo) ParseError() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pastWarmup(time.Now()) {
		e.parseErrCnt++
	}
}

// IncBytesSent accumulates bytes written to the wire, unconditionally
// (byte counters describe the transport, not the measurement window).
func (e *ExecutionInfo) IncBytesSent(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bytesSent += uint64(n)
}

// IncBytesRecv accumulates bytes read off the wire, unconditionally.
func (e *ExecutionInfo) IncBytesRecv(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bytesRecv += uint64(n)
}

// Snapshot is a point-in-time, lock-free copy of the accumulated counters
// plus a merged copy of the histogram, safe to hand to a report renderer.
type Snapshot struct {
	BytesSent   uint64
	BytesRecv   uint64
	RequestTot  uint32
	SuccessCnt  uint32
	FailureCnt  uint32
	ErrorCnt    uint32
	ParseErrCnt uint32
	Hist        *hdrhistogram.Histogram
}

// Snapshot takes a consistent copy of the current counters and histogram.
func (e *ExecutionInfo) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		BytesSent:   e.bytesSent,
		BytesRecv:   e.bytesRecv,
		RequestTot:  e.requestTot,
		SuccessCnt:  e.successCnt,
		FailureCnt:  e.failureCnt,
		ErrorCnt:    e.errorCnt,
		ParseErrCnt: e.parseErrCnt,
		Hist:        hdrhistogram.Import(e.hist.Export()),
	}
}

// Trace returns the sampled trace reservoir for persistence.
func (e *ExecutionInfo) Trace() *Trace {
	return e.trace
}
