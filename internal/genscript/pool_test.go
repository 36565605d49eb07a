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

package genscript_test

import (
	"time"

	"github.com/nabbar/flood/internal/genscript"
	"github.com/nabbar/flood/internal/logging"
	"github.com/nabbar/flood/internal/queue"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Pool", func() {
	It("rejects a script that fails the startup probe", func() {
		q := queue.New(4)
		_, err := genscript.NewPool("example.com", missingKeyScript, 2, q, logging.Discard())
		Expect(err).To(HaveOccurred())
	})

	It("keeps the queue primed and stops cleanly", func() {
		q := queue.New(4)
		p, err := genscript.NewPool("example.com", happyScript, 2, q, logging.Discard())
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Start()).To(Succeed())

		Eventually(q.Len, time.Second).Should(BeNumerically(">", 0))

		item, ok := q.Pop()
		Expect(ok).To(BeTrue())
		Expect(string(item.Buf)).To(ContainSubstring("GET / HTTP/1.1"))

		q.Stop()
		p.Stop()
	})

	It("falls back to synchronous main-thread generation", func() {
		q := queue.New(4)
		p, err := genscript.NewPool("example.com", happyScript, 1, q, logging.Discard())
		Expect(err).NotTo(HaveOccurred())

		item, err := p.Fallback()
		Expect(err).NotTo(HaveOccurred())
		Expect(string(item.Buf)).To(ContainSubstring("Host: example.com"))
	})
})
