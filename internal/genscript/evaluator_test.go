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
	"github.com/nabbar/flood/internal/floodwire"
	"github.com/nabbar/flood/internal/genscript"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const happyScript = `
function newRequest() {
    return {
        method: "GET",
        path: "/",
        headers: {"X-Test": "1"},
    };
}
`

const scriptWithBodyAndType = `
function newRequest() {
    return {
        method: "POST",
        path: "/items",
        headers: {"X-Test": randomString(4)},
        body: "payload",
        type: 3,
    };
}
`

const missingKeyScript = `
function newRequest() {
    return {method: "GET", path: "/"};
}
`

const nonStringMethodScript = `
function newRequest() {
    return {method: 7, path: "/", headers: {}};
}
`

const notAFunctionScript = `
var newRequest = 42;
`

const throwingScript = `
function newRequest() {
    throw new Error("boom");
}
`

var _ = Describe("Evaluator", func() {
	It("accepts a minimal valid factory", func() {
		ev, err := genscript.NewEvaluator(happyScript)
		Expect(err).NotTo(HaveOccurred())

		spec, err := ev.NewRequest()
		Expect(err).NotTo(HaveOccurred())
		Expect(spec.Method).To(Equal("GET"))
		Expect(spec.Path).To(Equal("/"))
		Expect(spec.Headers).To(ConsistOf(floodwire.HeaderField{Key: "X-Test", Value: "1"}))
	})

	It("exposes the embedded helper library to the user script", func() {
		ev, err := genscript.NewEvaluator(scriptWithBodyAndType)
		Expect(err).NotTo(HaveOccurred())

		spec, err := ev.NewRequest()
		Expect(err).NotTo(HaveOccurred())
		Expect(spec.HasBody).To(BeTrue())
		Expect(spec.Body).To(Equal("payload"))
		Expect(spec.Type).To(Equal(int32(3)))
		Expect(spec.Headers[0].Value).To(HaveLen(4))
	})

	It("rejects a script missing a required key", func() {
		_, err := genscript.NewEvaluator(missingKeyScript)
		Expect(err).NotTo(HaveOccurred()) // load succeeds; only the call fails

		ev, _ := genscript.NewEvaluator(missingKeyScript)
		_, err = ev.NewRequest()
		Expect(err).To(HaveOccurred())
	})

	It("rejects a non-string method", func() {
		ev, err := genscript.NewEvaluator(nonStringMethodScript)
		Expect(err).NotTo(HaveOccurred())
		_, err = ev.NewRequest()
		Expect(err).To(HaveOccurred())
	})

	It("rejects a script that doesn't define newRequest as a function", func() {
		_, err := genscript.NewEvaluator(notAFunctionScript)
		Expect(err).To(HaveOccurred())
	})

	It("surfaces a thrown exception as an error", func() {
		ev, err := genscript.NewEvaluator(throwingScript)
		Expect(err).NotTo(HaveOccurred())
		_, err = ev.NewRequest()
		Expect(err).To(HaveOccurred())
	})
})
