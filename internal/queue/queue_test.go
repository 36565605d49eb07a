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

package queue_test

import (
	"sync"
	"time"

	"github.com/nabbar/flood/internal/queue"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Queue", func() {
	It("never exceeds capacity and preserves FIFO order", func() {
		q := queue.New(2)
		Expect(q.Push(queue.Item{Buf: []byte("a")})).To(BeTrue())
		Expect(q.Push(queue.Item{Buf: []byte("b")})).To(BeTrue())
		Expect(q.Len()).To(Equal(2))

		pushed := make(chan bool, 1)
		go func() {
			pushed <- q.Push(queue.Item{Buf: []byte("c")})
		}()

		Consistently(func() int { return q.Len() }, 50*time.Millisecond, 10*time.Millisecond).Should(Equal(2))

		item, ok := q.Pop()
		Expect(ok).To(BeTrue())
		Expect(string(item.Buf)).To(Equal("a"))

		Eventually(pushed, time.Second).Should(Receive(BeTrue()))

		item, ok = q.Pop()
		Expect(ok).To(BeTrue())
		Expect(string(item.Buf)).To(Equal("b"))

		item, ok = q.Pop()
		Expect(ok).To(BeTrue())
		Expect(string(item.Buf)).To(Equal("c"))
	})

	It("Pop never blocks on an empty queue", func() {
		q := queue.New(4)
		_, ok := q.Pop()
		Expect(ok).To(BeFalse())
	})

	It("wakes blocked producers on Stop without pushing their item", func() {
		q := queue.New(1)
		Expect(q.Push(queue.Item{Buf: []byte("x")})).To(BeTrue())

		var wg sync.WaitGroup
		results := make([]bool, 4)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = q.Push(queue.Item{Buf: []byte("blocked")})
			}(i)
		}

		time.Sleep(20 * time.Millisecond)
		q.Stop()
		wg.Wait()

		for _, r := range results {
			Expect(r).To(BeFalse())
		}
		Expect(q.Len()).To(Equal(1))
	})
})
