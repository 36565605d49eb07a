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

package stats

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
)

var reportPercentiles = []float64{50, 75, 90, 99, 99.9, 99.99, 99.999, 100}

// Report renders the stdout summary: per-connection count, the percentile
// table, the full percentile spectrum, totals, and throughput, with
// warnings and headers colorized via github.com/fatih/color.
func Report(w io.Writer, host string, connections int, duration time.Duration, snap Snapshot) {
	bold := color.New(color.Bold)
	bold.Fprintf(w, "Running %s test @ %s\n", duration, host)
	fmt.Fprintf(w, "  %d connections\n", connections)

	if snap.Hist != nil && snap.Hist.TotalCount() > 0 {
		bold.Fprintln(w, "  Latency Distribution (HdrHistogram)")
		for _, p := range reportPercentiles {
			fmt.Fprintf(w, "%8.3f%%  %s\n", p, formatLatency(snap.Hist.ValueAtQuantile(p)))
		}
		fmt.Fprintln(w)
		bold.Fprintln(w, "  Detailed Percentile spectrum:")
		fmt.Fprintln(w, "       Value   Percentile   TotalCount 1/(1-Percentile)")
		fmt.Fprintln(w)

		total := snap.Hist.TotalCount()
		var accum int64
		for _, bar := range snap.Hist.Distribution() {
			if bar.Count == 0 {
				continue
			}
			accum += bar.Count
			percentile := float64(accum) / float64(total)
			inv := "inf"
			if percentile < 1 {
				inv = fmt.Sprintf("%.2f", 1/(1-percentile))
			}
			fmt.Fprintf(w, "  %10.3f  %10.6f  %10d  %10s\n",
				float64(bar.To)/1000.0, percentile, accum, inv)
		}
		fmt.Fprintln(w, "----------------------------------------------------------")
	}

	fmt.Fprintln(w)
	totalRequests := snap.SuccessCnt + snap.FailureCnt
	fmt.Fprintf(w, "  %d requests in %s, %s read\n", totalRequests, duration, formatBytes(float64(snap.BytesRecv)))
	if snap.FailureCnt > 0 {
		color.New(color.FgYellow).Fprintf(w, "  Non-2xx responses: %d\n", snap.FailureCnt)
	}
	if snap.ErrorCnt > 0 {
		color.New(color.FgRed).Fprintf(w, "  Connection errors: %d\n", snap.ErrorCnt)
	}
	if snap.ParseErrCnt > 0 {
		color.New(color.FgRed).Fprintf(w, "  Parse errors: %d\n", snap.ParseErrCnt)
	}

	secs := duration.Seconds()
	fmt.Fprintf(w, "Requests/sec: %10.2f\n", float64(totalRequests)/secs)
	fmt.Fprintf(w, "Transfer/sec: %s\n", formatBytes(float64(snap.BytesSent)/secs))
}

// formatLatency scales a microsecond latency to the largest whole unit
// it comfortably fits (µs/ms/s/m).
func formatLatency(micro int64) string {
	switch {
	case micro < 1000:
		return fmt.Sprintf("%6.2fµs", float64(micro))
	case micro < 1_000_000:
		return fmt.Sprintf("%6.2fms", float64(micro)/1000.0)
	case micro < 60_000_000:
		return fmt.Sprintf("%6.2fs", float64(micro)/1_000_000.0)
	default:
		return fmt.Sprintf("%6.2fm", float64(micro)/60_000_000.0)
	}
}

// formatBytes scales a byte count to the largest whole unit it
// comfortably fits (B/KB/MB/GB).
func formatBytes(bytes float64) string {
	const unit = 1024.0
	switch {
	case bytes < unit:
		return fmt.Sprintf("%6.2fB", bytes)
	case bytes < unit*unit:
		return fmt.Sprintf("%6.2fKB", bytes/unit)
	case bytes < unit*unit*unit:
		return fmt.Sprintf("%6.2fMB", bytes/unit/unit)
	default:
		return fmt.Sprintf("%6.2fGB", bytes/unit/unit/unit)
	}
}
