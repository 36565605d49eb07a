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

// Package config validates the command-line surface into an Options
// value the rest of flood is built against.
package config

import (
	"net"
	"time"

	"github.com/nabbar/flood/internal/ferrors"
	"github.com/nabbar/flood/internal/logging"
)

// ArrivalProcess selects how inter-request intervals are drawn.
type ArrivalProcess uint8

const (
	ArrivalUniform ArrivalProcess = iota
	ArrivalPoisson
)

// Options is the fully validated, resolved configuration for one run.
type Options struct {
	Host              string
	ScriptPath        string
	Duration          time.Duration
	WarmupFraction    float64
	QPS               int
	Connections       int
	ConnectTimeout    time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	Arrival           ArrivalProcess
	GeneratorThreads  int
	RequestQueueSize  int
	TraceSavePath     string
	TraceSampleRatio  float64
	LogLevel          logging.Level

	// ResolvedAddr is the DNS-resolved target, filled in by Resolve.
	ResolvedAddr *net.TCPAddr
}

// Defaults returns the CLI's documented default values.
func Defaults() Options {
	return Options{
		Host:             "127.0.0.1:8080",
		Duration:         30 * time.Second,
		WarmupFraction:   0.2,
		QPS:              100,
		Connections:      16,
		ConnectTimeout:   100 * time.Millisecond,
		ReadTimeout:      100 * time.Millisecond,
		WriteTimeout:     100 * time.Millisecond,
		Arrival:          ArrivalPoisson,
		GeneratorThreads: 2,
		RequestQueueSize: 128,
		TraceSampleRatio: 1.0,
		LogLevel:         logging.InfoLevel,
	}
}

// Validate checks the fields that a bad flag value can break, returning a
// KindConfig ferrors.Kind error on the first problem found.
func (o *Options) Validate() error {
	switch {
	case o.ScriptPath == "":
		return ferrors.New(ferrors.KindConfig, "SCRIPT path is required", nil)
	case o.WarmupFraction < 0 || o.WarmupFraction > 1:
		return ferrors.New(ferrors.KindConfig, "warmup-fraction must be in [0,1]", nil)
	case o.QPS <= 0:
		return ferrors.New(ferrors.KindConfig, "qps must be positive", nil)
	case o.Connections <= 0:
		return ferrors.New(ferrors.KindConfig, "conn must be positive", nil)
	case o.GeneratorThreads <= 0:
		return ferrors.New(ferrors.KindConfig, "js-threads must be positive", nil)
	case o.RequestQueueSize <= 0:
		return ferrors.New(ferrors.KindConfig, "request-qsize must be positive", nil)
	case o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1:
		return ferrors.New(ferrors.KindConfig, "trace-sample-ratio must be in [0,1]", nil)
	}
	return nil
}

// WarmupDuration is the run's warm-up length, i.e. the offset of T0 from
// the moment the run starts.
func (o *Options) WarmupDuration() time.Duration {
	return time.Duration(float64(o.Duration) * o.WarmupFraction)
}

// Resolve performs DNS resolution of Host into ResolvedAddr. A failure
// here is fatal at startup.
func (o *Options) Resolve() error {
	addr, err := net.ResolveTCPAddr("tcp", o.Host)
	if err != nil {
		return ferrors.New(ferrors.KindConfig, "failed to resolve host "+o.Host, err)
	}
	o.ResolvedAddr = addr
	return nil
}

// ParseArrivalProcess maps the --arrival-process flag value.
func ParseArrivalProcess(s string) (ArrivalProcess, error) {
	switch s {
	case "uniform":
		return ArrivalUniform, nil
	case "poisson":
		return ArrivalPoisson, nil
	default:
		return 0, ferrors.New(ferrors.KindConfig, "unknown arrival-process: "+s, nil)
	}
}

func (a ArrivalProcess) String() string {
	if a == ArrivalUniform {
		return "uniform"
	}
	return "poisson"
}
