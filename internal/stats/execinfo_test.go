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

package stats_test

import (
	"time"

	"github.com/nabbar/flood/internal/stats"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ExecutionInfo", func() {
	var t0 time.Time

	BeforeEach(func() {
		t0 = time.Now()
	})

	It("drops events that start before the warm-up watermark", func() {
		e := stats.New(100*time.Millisecond, 0, nil)
		e.SetInitialTime(t0)

		before := t0.Add(-time.Second)
		e.NewRequest(before)
		e.RequestFinished(0, before, before.Add(time.Millisecond))

		snap := e.Snapshot()
		Expect(snap.RequestTot).To(BeZero())
		Expect(snap.SuccessCnt).To(BeZero())
	})

	It("counts requests and records latency after warm-up", func() {
		e := stats.New(100*time.Millisecond, 0, nil)
		e.SetInitialTime(t0)

		start := t0.Add(time.Millisecond)
		finish := start.Add(5 * time.Millisecond)
		e.NewRequest(start)
		e.RequestFinished(0, start, finish)

		snap := e.Snapshot()
		Expect(snap.RequestTot).To(Equal(uint32(1)))
		Expect(snap.SuccessCnt).To(Equal(uint32(1)))
		Expect(snap.Hist.TotalCount()).To(Equal(int64(1)))
	})

	It("counts non-2xx completions separately from successes", func() {
		e := stats.New(100*time.Millisecond, 0, nil)
		e.SetInitialTime(t0)

		start := t0.Add(time.Millisecond)
		e.RequestFailed(0, start, start.Add(time.Millisecond))

		snap := e.Snapshot()
		Expect(snap.FailureCnt).To(Equal(uint32(1)))
		Expect(snap.SuccessCnt).To(BeZero())
	})

	It("accumulates byte counters unconditionally, even pre-warm-up", func() {
		e := stats.New(100*time.Millisecond, 0, nil)
		e.SetInitialTime(t0.Add(time.Hour))

		e.IncBytesSent(100)
		e.IncBytesRecv(200)

		snap := e.Snapshot()
		Expect(snap.BytesSent).To(Equal(uint64(100)))
		Expect(snap.BytesRecv).To(Equal(uint64(200)))
	})

	It("always samples into the trace when sample rate is 1.0", func() {
		e := stats.New(100*time.Millisecond, 1.0, nil)
		e.SetInitialTime(t0)

		start := t0.Add(time.Millisecond)
		for i := 0; i < 10; i++ {
			e.RequestFinished(int32(i), start, start.Add(time.Millisecond))
		}

		Expect(e.Trace().Len()).To(Equal(10))
	})

	It("never samples into the trace when sample rate is 0", func() {
		e := stats.New(100*time.Millisecond, 0, nil)
		e.SetInitialTime(t0)

		start := t0.Add(time.Millisecond)
		e.RequestFinished(0, start, start.Add(time.Millisecond))

		Expect(e.Trace().Len()).To(Equal(0))
	})
})
