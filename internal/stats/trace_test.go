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
	"bytes"

	"github.com/nabbar/flood/internal/stats"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Trace", func() {
	It("round-trips samples through zstd-compressed JSON", func() {
		tr := stats.NewTrace()
		tr.Add(stats.Sample{Type: 1, Start: 10, Finish: 20})
		tr.Add(stats.Sample{Type: 2, Start: 30, Finish: 45})

		var buf bytes.Buffer
		Expect(tr.WriteTo(&buf)).To(Succeed())
		Expect(buf.Len()).To(BeNumerically(">", 0))

		samples, err := stats.ReadTrace(&buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(samples).To(Equal([]stats.Sample{
			{Type: 1, Start: 10, Finish: 20},
			{Type: 2, Start: 30, Finish: 45},
		}))
	})

	It("writes an empty array for an empty reservoir", func() {
		tr := stats.NewTrace()

		var buf bytes.Buffer
		Expect(tr.WriteTo(&buf)).To(Succeed())

		samples, err := stats.ReadTrace(&buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(samples).To(BeEmpty())
	})
})
