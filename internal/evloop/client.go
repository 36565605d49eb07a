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

package evloop

import (
	"encoding/binary"
	"math"
	"math/rand"
	"time"

	"golang.org/x/sys/unix"

	"github.com/nabbar/flood/internal/config"
	"github.com/nabbar/flood/internal/ferrors"
	"github.com/nabbar/flood/internal/floodwire"
	"github.com/nabbar/flood/internal/genscript"
	"github.com/nabbar/flood/internal/logging"
	"github.com/nabbar/flood/internal/queue"
	"github.com/nabbar/flood/internal/stats"
)

const (
	pollTimeoutMillis  = 100
	initialTimerDelay  = 100 * time.Millisecond
	maxEpollEventBatch = 1024
)

// timerToken is a sentinel fd value used to mark the timer registration in
// the epoll event list (it shares the fd namespace with real sockets, so
// -1 can never collide with a valid socket fd).
const timerToken int32 = -1

// Client is the event-loop HTTP/1.1 client: a fixed connection pool
// driven single-threaded by epoll readiness and a timerfd-paced dispatch
// tick.
type Client struct {
	opts config.Options
	gen  *genscript.Pool
	q    *queue.Queue
	exec *stats.ExecutionInfo
	log  logging.Logger

	epfd    int
	timerfd int

	conns map[int32]*Connection
	idle  []int32

	rng *rand.Rand
}

// New builds a Client ready to Run. The connection pool is created lazily
// in Run, since socket creation can fail and Run is where errors already
// propagate to the caller's exit-code mapping.
func New(opts config.Options, gen *genscript.Pool, q *queue.Queue, exec *stats.ExecutionInfo, log logging.Logger) *Client {
	if log == nil {
		log = logging.Discard()
	}
	return &Client{
		opts:  opts,
		gen:   gen,
		q:     q,
		exec:  exec,
		log:   log,
		conns: make(map[int32]*Connection),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run drives the event loop for opts.Duration (plus warm-up): it runs
// while wall-clock <= T0 + run_duration, with no effort to drain
// in-flight requests beyond finishing the current poll batch.
func (c *Client) Run() error {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return ferrors.New(ferrors.KindPoller, "epoll_create1 failed", err)
	}
	c.epfd = epfd
	defer unix.Close(c.epfd)

	if err := c.createConnections(c.opts.Connections); err != nil {
		return err
	}
	defer c.closeAllConnections()

	if err := c.armTimer(); err != nil {
		return err
	}
	defer unix.Close(c.timerfd)

	now := time.Now()
	startTime := now.Add(c.opts.WarmupDuration())
	finishTime := startTime.Add(c.opts.Duration)
	c.exec.SetInitialTime(startTime)

	events := make([]unix.EpollEvent, maxEpollEventBatch)
	for time.Now().Before(finishTime) || time.Now().Equal(finishTime) {
		n, err := unix.EpollWait(c.epfd, events, pollTimeoutMillis)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return ferrors.New(ferrors.KindPoller, "epoll_wait failed", err)
		}
		for i := 0; i < n; i++ {
			c.handleEvent(events[i], startTime)
		}
	}
	return nil
}

func (c *Client) createConnections(n int) error {
	for i := 0; i < n; i++ {
		if err := c.createConnection(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) createConnection() error {
	conn, err := dial(c.opts.ResolvedAddr, c.opts.ConnectTimeout, c.opts.ReadTimeout, c.opts.WriteTimeout)
	if err != nil {
		return err
	}
	fd := int32(conn.fd)
	if err := unix.EpollCtl(c.epfd, unix.EPOLL_CTL_ADD, conn.fd, &unix.EpollEvent{
		Events: unix.EPOLLOUT,
		Fd:     fd,
	}); err != nil {
		conn.close()
		return ferrors.New(ferrors.KindPoller, "epoll_ctl ADD failed", err)
	}
	c.conns[fd] = conn
	c.log.Debug("created connection", logging.Fields{"total": len(c.conns)})
	return nil
}

// connectionFailed tears down fd's connection and replaces it with a
// freshly dialed one so the pool stays at its configured size.
func (c *Client) connectionFailed(fd int32) {
	if conn, ok := c.conns[fd]; ok {
		unix.EpollCtl(c.epfd, unix.EPOLL_CTL_DEL, conn.fd, nil)
		conn.close()
		delete(c.conns, fd)
	}
	c.removeFromIdle(fd)
	if err := c.createConnection(); err != nil {
		c.log.Error("failed to recreate connection after failure", err, nil)
	}
}

func (c *Client) removeFromIdle(fd int32) {
	for i, v := range c.idle {
		if v == fd {
			c.idle = append(c.idle[:i], c.idle[i+1:]...)
			return
		}
	}
}

func (c *Client) closeAllConnections() {
	for fd, conn := range c.conns {
		unix.EpollCtl(c.epfd, unix.EPOLL_CTL_DEL, conn.fd, nil)
		conn.close()
		delete(c.conns, fd)
	}
}

func (c *Client) reregister(conn *Connection, events uint32) error {
	return unix.EpollCtl(c.epfd, unix.EPOLL_CTL_MOD, conn.fd, &unix.EpollEvent{
		Events: events,
		Fd:     int32(conn.fd),
	})
}

// armTimer creates the timerfd and arms it: a 100ms initial delay, then
// periodic at 1/QPS for uniform arrival or a re-armed one-shot for
// Poisson arrival.
func (c *Client) armTimer() error {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, 0)
	if err != nil {
		return ferrors.New(ferrors.KindPoller, "timerfd_create failed", err)
	}
	c.timerfd = fd

	spec := unix.ItimerSpec{
		Value: durationToTimespec(initialTimerDelay),
	}
	if c.opts.Arrival == config.ArrivalUniform {
		spec.Interval = durationToTimespec(time.Second / time.Duration(c.opts.QPS))
	}
	if err := unix.TimerfdSettime(c.timerfd, 0, &spec, nil); err != nil {
		unix.Close(c.timerfd)
		return ferrors.New(ferrors.KindPoller, "timerfd_settime failed", err)
	}

	return unix.EpollCtl(c.epfd, unix.EPOLL_CTL_ADD, c.timerfd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     timerToken,
	})
}

// rearmPoissonTimer draws the next inter-arrival interval from an
// exponential distribution and re-arms the timer as a one-shot:
// -ln(U)/QPS with U drawn uniformly from (0,1) (zero draws are rejected).
func (c *Client) rearmPoissonTimer() error {
	u := c.rng.Float64()
	for u == 0 {
		u = c.rng.Float64()
	}
	interval := -math.Log(u) / float64(c.opts.QPS)
	d := time.Duration(interval * float64(time.Second))
	spec := unix.ItimerSpec{Value: durationToTimespec(d)}
	return unix.TimerfdSettime(c.timerfd, 0, &spec, nil)
}

func durationToTimespec(d time.Duration) unix.Timespec {
	return unix.NsecToTimespec(d.Nanoseconds())
}

func (c *Client) handleEvent(ev unix.EpollEvent, startTime time.Time) {
	if ev.Fd == timerToken {
		c.handleTimerTick(startTime)
		return
	}

	conn, ok := c.conns[ev.Fd]
	if !ok {
		return
	}

	if ev.Events&(unix.EPOLLERR|unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		if !time.Now().Before(startTime) {
			c.log.Error("connection closed unexpectedly", nil, logging.Fields{"fd": ev.Fd, "state": conn.state.String()})
		}
		c.exec.ConnectionError()
		c.connectionFailed(ev.Fd)
		return
	}

	if ev.Events&unix.EPOLLIN != 0 {
		c.handleReadable(conn, ev.Fd)
	}
	if ev.Events&unix.EPOLLOUT != 0 {
		c.handleWritable(conn, ev.Fd, startTime)
	}
}

func (c *Client) handleTimerTick(startTime time.Time) {
	var buf [8]byte
	n, err := unix.Read(c.timerfd, buf[:])
	if err != nil || n != 8 {
		return
	}
	expirations := binary.LittleEndian.Uint64(buf[:])
	if expirations > 1 {
		c.log.Warn("missed timer expirations", logging.Fields{"missed": expirations - 1})
	}

	if c.opts.Arrival == config.ArrivalPoisson {
		if err := c.rearmPoissonTimer(); err != nil {
			c.log.Error("failed to rearm poisson timer", err, nil)
		}
	}

	dispatched := c.dispatchOne()
	if !dispatched && time.Now().After(startTime) {
		c.log.Warn("cannot find an idle connection", nil)
	}
}

// dispatchOne pops idle-FIFO entries until it finds one still bound to a
// live, still-Idle connection and drives it through a full request issue.
// A level-triggered EPOLLOUT keeps re-signaling an idle, unburdened socket
// on every poll, so the FIFO can carry stale duplicates of an fd that was
// already dispatched on an earlier tick (or torn down); those are
// discarded here rather than re-dispatched. Ordering guarantee: at most
// one dispatch per tick.
func (c *Client) dispatchOne() bool {
	for len(c.idle) > 0 {
		fd := c.idle[0]
		c.idle = c.idle[1:]

		conn, ok := c.conns[fd]
		if !ok {
			continue
		}
		conn.inIdle = false
		if conn.state != StateIdle {
			continue
		}
		c.issueRequest(conn, fd)
		return true
	}
	return false
}

func (c *Client) issueRequest(conn *Connection, fd int32) {
	item, ok := c.q.Pop()
	if !ok {
		fb, err := c.gen.Fallback()
		if err != nil {
			c.log.Error("fallback generation failed", err, nil)
			return
		}
		c.log.Warn("request queue empty, generating synchronously", nil)
		item = fb
	}

	now := time.Now()
	conn.beginSend(item.Buf, item.Type, now)
	c.exec.NewRequest(now)

	complete, n, err := conn.writeRequest()
	c.exec.IncBytesSent(n)
	if err != nil {
		c.log.Error("write failed", err, logging.Fields{"fd": fd})
		c.exec.ConnectionError()
		c.connectionFailed(fd)
		return
	}
	if complete {
		conn.state = StateReceiving
		if err := c.reregister(conn, unix.EPOLLIN); err != nil {
			c.log.Error("reregister failed", err, nil)
		}
	}
}

func (c *Client) handleWritable(conn *Connection, fd int32, startTime time.Time) {
	switch conn.state {
	case StateIdle:
		if !conn.inIdle {
			conn.inIdle = true
			c.idle = append(c.idle, fd)
		}
	case StateSending:
		complete, n, err := conn.writeRequest()
		c.exec.IncBytesSent(n)
		if err != nil {
			c.log.Error("write failed", err, logging.Fields{"fd": fd})
			c.exec.ConnectionError()
			c.connectionFailed(fd)
			return
		}
		if complete {
			conn.state = StateReceiving
			if err := c.reregister(conn, unix.EPOLLIN); err != nil {
				c.log.Error("reregister failed", err, nil)
			}
		}
	default:
		c.log.Warn("writable event in unexpected state", logging.Fields{"fd": fd, "state": conn.state.String()})
	}
}

func (c *Client) handleReadable(conn *Connection, fd int32) {
	if conn.state != StateReceiving {
		c.log.Warn("readable event in unexpected state", logging.Fields{"fd": fd, "state": conn.state.String()})
		return
	}

	n, _, err := conn.readResponse()
	c.exec.IncBytesRecv(n)
	if err != nil {
		c.log.Error("read failed", err, logging.Fields{"fd": fd})
		c.exec.ConnectionError()
		c.connectionFailed(fd)
		return
	}

	resp, done, perr := floodwire.ParseResponse(conn.respBuf)
	if perr != nil {
		c.log.Error("malformed response", perr, logging.Fields{"fd": fd})
		c.exec.ParseError()
		c.connectionFailed(fd)
		return
	}
	if !done {
		return
	}

	now := time.Now()
	if resp.StatusCode == 200 {
		c.exec.RequestFinished(conn.reqType, conn.reqStartTime, now)
	} else {
		c.exec.RequestFailed(conn.reqType, conn.reqStartTime, now)
	}

	conn.finishReceiving()
	if err := c.reregister(conn, unix.EPOLLOUT); err != nil {
		c.log.Error("reregister failed", err, nil)
	}
}
