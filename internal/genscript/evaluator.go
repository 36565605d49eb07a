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

// Package genscript embeds an ECMAScript request-factory evaluator, built
// on github.com/dop251/goja, and the worker pool that keeps the bounded
// queue primed.
package genscript

import (
	_ "embed"
	"fmt"

	"github.com/dop251/goja"

	"github.com/nabbar/flood/internal/ferrors"
	"github.com/nabbar/flood/internal/floodwire"
)

//go:embed lib.js
var libSource string

// Evaluator owns one thread-local goja runtime, the embedded helper
// library, and a loaded user script's newRequest factory.
type Evaluator struct {
	rt         *goja.Runtime
	newRequest goja.Callable
}

// NewEvaluator creates a fresh runtime, evaluates the embedded helper
// library followed by userScript, and resolves the newRequest factory.
// Returns a ferrors.KindScript error on any evaluation failure or if
// newRequest is missing/not callable.
func NewEvaluator(userScript string) (*Evaluator, error) {
	rt := goja.New()

	if _, err := rt.RunString(libSource); err != nil {
		return nil, ferrors.New(ferrors.KindScript, "failed to load helper library", err)
	}
	if _, err := rt.RunString(userScript); err != nil {
		return nil, ferrors.New(ferrors.KindScript, "failed to load user script", err)
	}

	fnVal := rt.Get("newRequest")
	if fnVal == nil || goja.IsUndefined(fnVal) {
		return nil, ferrors.New(ferrors.KindScript, "user script does not define newRequest()", nil)
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return nil, ferrors.New(ferrors.KindScript, "newRequest is not a function", nil)
	}

	return &Evaluator{rt: rt, newRequest: fn}, nil
}

// NewRequest invokes the factory once and validates its return shape:
// required {method, path, headers}, optional body (string) and type
// (integer). Header order follows the object's own iteration order.
func (e *Evaluator) NewRequest() (floodwire.RequestSpec, error) {
	var spec floodwire.RequestSpec

	result, err := e.newRequest(goja.Undefined())
	if err != nil {
		return spec, ferrors.New(ferrors.KindScript, "newRequest() threw", err)
	}

	obj, ok := result.(*goja.Object)
	if !ok {
		return spec, ferrors.New(ferrors.KindScript, "newRequest() must return an object", nil)
	}

	method, ok := asString(obj.Get("method"))
	if !ok {
		return spec, ferrors.New(ferrors.KindScript, "`method` must be a string", nil)
	}
	path, ok := asString(obj.Get("path"))
	if !ok {
		return spec, ferrors.New(ferrors.KindScript, "`path` must be a string", nil)
	}

	headersVal := obj.Get("headers")
	headersObj, ok := headersVal.(*goja.Object)
	if !ok {
		return spec, ferrors.New(ferrors.KindScript, "`headers` must be an object", nil)
	}
	keys := headersObj.Keys()
	headers := make([]floodwire.HeaderField, 0, len(keys))
	for _, k := range keys {
		v, ok := asString(headersObj.Get(k))
		if !ok {
			return spec, ferrors.New(ferrors.KindScript, fmt.Sprintf("header %q value must be a string", k), nil)
		}
		headers = append(headers, floodwire.HeaderField{Key: k, Value: v})
	}

	spec.Method = method
	spec.Path = path
	spec.Headers = headers

	if bodyVal := obj.Get("body"); bodyVal != nil && !goja.IsUndefined(bodyVal) {
		body, ok := asString(bodyVal)
		if !ok {
			return spec, ferrors.New(ferrors.KindScript, "`body` must be a string", nil)
		}
		spec.Body = body
		spec.HasBody = true
	}

	if typeVal := obj.Get("type"); typeVal != nil && !goja.IsUndefined(typeVal) {
		n, ok := asInt(typeVal)
		if !ok {
			return spec, ferrors.New(ferrors.KindScript, "`type` must be an integer", nil)
		}
		spec.Type = n
	}

	return spec, nil
}

func asString(v goja.Value) (string, bool) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return "", false
	}
	s, ok := v.Export().(string)
	return s, ok
}

func asInt(v goja.Value) (int32, bool) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return 0, false
	}
	switch n := v.Export().(type) {
	case int64:
		return int32(n), true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int32(n), true
	default:
		return 0, false
	}
}
