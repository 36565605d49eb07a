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

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nabbar/flood/internal/config"
	"github.com/nabbar/flood/internal/evloop"
	"github.com/nabbar/flood/internal/ferrors"
	"github.com/nabbar/flood/internal/genscript"
	"github.com/nabbar/flood/internal/logging"
	"github.com/nabbar/flood/internal/queue"
	"github.com/nabbar/flood/internal/stats"
)

func main() {
	os.Exit(run())
}

func run() int {
	var flags *config.FlagSet

	cmd := &cobra.Command{
		Use:   "flood SCRIPT",
		Short: "an open-loop HTTP/1.1 load generator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(flags, args[0])
		},
		SilenceUsage: true,
	}
	flags = config.BindFlags(cmd)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeFor(err)
	}
	return 0
}

func execute(flags *config.FlagSet, scriptPath string) error {
	opts, err := flags.Resolve(scriptPath)
	if err != nil {
		return err
	}

	log := logging.New(os.Stderr, opts.LogLevel)

	if err := opts.Resolve(); err != nil {
		return err
	}

	scriptBody, err := os.ReadFile(opts.ScriptPath)
	if err != nil {
		return ferrors.New(ferrors.KindConfig, "failed to read script "+opts.ScriptPath, err)
	}

	q := queue.New(opts.RequestQueueSize)
	gen, err := genscript.NewPool(opts.Host, string(scriptBody), opts.GeneratorThreads, q, log)
	if err != nil {
		return err
	}
	if err := gen.Start(); err != nil {
		return err
	}
	defer func() {
		q.Stop()
		gen.Stop()
	}()

	exec := stats.New(opts.ReadTimeout, opts.TraceSampleRatio, log)
	client := evloop.New(opts, gen, q, exec, log)

	if err := client.Run(); err != nil {
		return err
	}

	snap := exec.Snapshot()
	stats.Report(os.Stdout, opts.Host, opts.Connections, opts.Duration, snap)

	if opts.TraceSavePath != "" {
		if err := writeTrace(opts.TraceSavePath, exec.Trace()); err != nil {
			log.Error("failed to write trace file", err, nil)
		}
	}

	return nil
}

func writeTrace(path string, tr *stats.Trace) error {
	f, err := os.Create(path)
	if err != nil {
		return ferrors.New(ferrors.KindConfig, "failed to create trace file "+path, err)
	}
	defer f.Close()
	return tr.WriteTo(f)
}

// exitCodeFor maps the config, script, transport and poller kinds to
// distinct process exit codes, so scripts driving flood can distinguish a
// bad flag from a transport failure without scraping stderr. Any other
// error, including KindParse and untagged errors, exits with 1.
func exitCodeFor(err error) int {
	switch {
	case ferrors.Is(err, ferrors.KindConfig):
		return 2
	case ferrors.Is(err, ferrors.KindScript):
		return 3
	case ferrors.Is(err, ferrors.KindTransport):
		return 4
	case ferrors.Is(err, ferrors.KindPoller):
		return 5
	default:
		return 1
	}
}
