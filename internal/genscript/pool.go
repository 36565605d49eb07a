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

package genscript

import (
	"sync"

	"github.com/nabbar/flood/internal/ferrors"
	"github.com/nabbar/flood/internal/floodwire"
	"github.com/nabbar/flood/internal/logging"
	"github.com/nabbar/flood/internal/queue"
)

// Pool runs N generator workers, each with its own thread-local Evaluator,
// feeding serialized requests into a shared bounded Queue. It also exposes
// a non-worker Evaluator for the main thread's empty-queue fallback
// generation.
type Pool struct {
	host    string
	script  string
	queue   *queue.Queue
	log     logging.Logger
	workers int

	wg       sync.WaitGroup
	fallback *Evaluator
}

// Validate probes the script once in a throwaway evaluator: any evaluator
// exception or missing required field aborts startup with a KindScript
// error.
func Validate(script string) error {
	ev, err := NewEvaluator(script)
	if err != nil {
		return err
	}
	if _, err := ev.NewRequest(); err != nil {
		return err
	}
	return nil
}

// NewPool validates the script, builds the main thread's fallback
// evaluator, and returns a Pool ready to Start workers worker goroutines.
func NewPool(host, script string, workers int, q *queue.Queue, log logging.Logger) (*Pool, error) {
	if err := Validate(script); err != nil {
		return nil, err
	}
	fb, err := NewEvaluator(script)
	if err != nil {
		return nil, err
	}
	return &Pool{
		host:     host,
		script:   script,
		queue:    q,
		log:      log,
		workers:  workers,
		fallback: fb,
	}, nil
}

// Start launches the worker goroutines. Each worker owns a fresh
// Evaluator (thread-local, no shared state) and loops: call the factory,
// serialize, push, until the queue is stopped.
func (p *Pool) Start() error {
	evaluators := make([]*Evaluator, p.workers)
	for i := range evaluators {
		ev, err := NewEvaluator(p.script)
		if err != nil {
			return err
		}
		evaluators[i] = ev
	}

	for _, ev := range evaluators {
		p.wg.Add(1)
		go p.run(ev)
	}
	return nil
}

func (p *Pool) run(ev *Evaluator) {
	defer p.wg.Done()
	for {
		spec, err := ev.NewRequest()
		if err != nil {
			// steady-state malformed object is fatal to this worker only,
			// surfaced through the log. The queue is not stopped and the
			// run continues: the other workers and the main thread's
			// Fallback evaluator keep generating.
			p.log.Error("generator worker terminating: malformed script output", err, nil)
			return
		}
		item := queue.Item{Buf: floodwire.Serialize(spec, p.host), Type: spec.Type}
		if !p.queue.Push(item) {
			return
		}
	}
}

// Fallback synchronously generates one serialized request in the main
// thread's own evaluator, for use when Pop finds the queue empty.
func (p *Pool) Fallback() (queue.Item, error) {
	spec, err := p.fallback.NewRequest()
	if err != nil {
		return queue.Item{}, ferrors.New(ferrors.KindScript, "fallback generation failed", err)
	}
	return queue.Item{Buf: floodwire.Serialize(spec, p.host), Type: spec.Type}, nil
}

// Stop joins every worker goroutine. Callers must have already stopped
// the shared queue so Push calls return instead of blocking forever.
func (p *Pool) Stop() {
	p.wg.Wait()
}
