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

//go:build linux

package evloop_test

import (
	"bufio"
	"net"
	"time"

	"github.com/nabbar/flood/internal/config"
	"github.com/nabbar/flood/internal/evloop"
	"github.com/nabbar/flood/internal/genscript"
	"github.com/nabbar/flood/internal/logging"
	"github.com/nabbar/flood/internal/queue"
	"github.com/nabbar/flood/internal/stats"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const echoScript = `
function newRequest() {
	return {method: "GET", path: "/", headers: {}};
}
`

func startEchoServer() (*net.TCPListener, chan struct{}) {
	ln, _ := net.ListenTCP("tcp", &net.TCPAddr{IP: net.ParseIP("127.0.0.1")})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveEchoConn(conn)
		}
	}()
	return ln, done
}

func serveEchoConn(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		if _, err := r.ReadString('\n'); err != nil {
			return
		}
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			if line == "\r\n" {
				break
			}
		}
		if _, err := conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok")); err != nil {
			return
		}
	}
}

var _ = Describe("Client", func() {
	It("drives real requests through a live connection pool and records them", func() {
		ln, done := startEchoServer()
		defer ln.Close()

		opts := config.Defaults()
		opts.ResolvedAddr = ln.Addr().(*net.TCPAddr)
		opts.Duration = 200 * time.Millisecond
		opts.WarmupFraction = 0
		opts.QPS = 200
		opts.Connections = 2
		opts.Arrival = config.ArrivalUniform
		opts.ConnectTimeout = 500 * time.Millisecond
		opts.ReadTimeout = 500 * time.Millisecond
		opts.WriteTimeout = 500 * time.Millisecond

		q := queue.New(8)
		gen, err := genscript.NewPool(opts.Host, echoScript, 1, q, logging.Discard())
		Expect(err).NotTo(HaveOccurred())
		Expect(gen.Start()).To(Succeed())
		defer func() {
			q.Stop()
			gen.Stop()
		}()

		exec := stats.New(opts.ReadTimeout, 0, logging.Discard())
		client := evloop.New(opts, gen, q, exec, logging.Discard())

		Expect(client.Run()).To(Succeed())

		snap := exec.Snapshot()
		Expect(snap.SuccessCnt).To(BeNumerically(">", 0))
		Expect(snap.BytesRecv).To(BeNumerically(">", 0))

		ln.Close()
		<-done
	})
})
