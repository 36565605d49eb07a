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

package config

import (
	"github.com/nabbar/flood/internal/ferrors"
	"github.com/spf13/cobra"
)

// FlagSet is the raw, unvalidated string/primitive form of every CLI
// flag, bound directly to cobra pflag storage.
type FlagSet struct {
	host             string
	duration         string
	warmupFraction   float64
	qps              int
	conn             int
	connectTimeout   string
	readTimeout      string
	writeTimeout     string
	arrivalProcess   string
	jsThreads        int
	requestQSize     int
	traceSavePath    string
	traceSampleRatio float64
	logLevel         string
}

// BindFlags registers every CLI flag on cmd and returns the raw holder
// that Resolve will later turn into validated Options.
func BindFlags(cmd *cobra.Command) *FlagSet {
	d := Defaults()
	f := &FlagSet{}

	cmd.Flags().StringVar(&f.host, "host", d.Host, "target host:port")
	cmd.Flags().StringVar(&f.duration, "duration", "30s", "run length, e.g. 1m30s")
	cmd.Flags().Float64Var(&f.warmupFraction, "warmup-fraction", d.WarmupFraction, "fraction of duration excluded as warm-up")
	cmd.Flags().IntVar(&f.qps, "qps", d.QPS, "target requests dispatched per second")
	cmd.Flags().IntVar(&f.conn, "conn", d.Connections, "number of persistent connections")
	cmd.Flags().StringVar(&f.connectTimeout, "connect-timeout", "100ms", "TCP connect timeout")
	cmd.Flags().StringVar(&f.readTimeout, "read-timeout", "100ms", "socket read timeout")
	cmd.Flags().StringVar(&f.writeTimeout, "write-timeout", "100ms", "socket write timeout")
	cmd.Flags().StringVar(&f.arrivalProcess, "arrival-process", "poisson", "uniform or poisson")
	cmd.Flags().IntVar(&f.jsThreads, "js-threads", d.GeneratorThreads, "number of request-generator worker threads")
	cmd.Flags().IntVar(&f.requestQSize, "request-qsize", d.RequestQueueSize, "bounded request queue capacity")
	cmd.Flags().StringVar(&f.traceSavePath, "trace-save-path", "", "optional path to write a sampled trace file")
	cmd.Flags().Float64Var(&f.traceSampleRatio, "trace-sample-ratio", d.TraceSampleRatio, "probability a completed request is traced")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "info", "debug, info, warn, or error")

	return f
}

// Resolve parses and validates the raw flag values (plus the positional
// SCRIPT argument) into Options. Any failure here is a config error and
// fatal at startup.
func (f *FlagSet) Resolve(scriptPath string) (Options, error) {
	o := Defaults()
	o.Host = f.host
	o.ScriptPath = scriptPath
	o.WarmupFraction = f.warmupFraction
	o.QPS = f.qps
	o.Connections = f.conn
	o.GeneratorThreads = f.jsThreads
	o.RequestQueueSize = f.requestQSize
	o.TraceSavePath = f.traceSavePath
	o.TraceSampleRatio = f.traceSampleRatio

	var err error
	if o.Duration, err = parseDuration(f.duration); err != nil {
		return o, err
	}
	if o.ConnectTimeout, err = parseDuration(f.connectTimeout); err != nil {
		return o, err
	}
	if o.ReadTimeout, err = parseDuration(f.readTimeout); err != nil {
		return o, err
	}
	if o.WriteTimeout, err = parseDuration(f.writeTimeout); err != nil {
		return o, err
	}
	if o.Arrival, err = ParseArrivalProcess(f.arrivalProcess); err != nil {
		return o, err
	}
	lvl, ok := parseLevel(f.logLevel)
	if !ok {
		return o, ferrors.New(ferrors.KindConfig, "unknown log-level: "+f.logLevel, nil)
	}
	o.LogLevel = lvl

	if err = o.Validate(); err != nil {
		return o, err
	}
	return o, nil
}
