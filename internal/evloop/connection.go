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

// Package evloop is the event-loop HTTP/1.1 client: a single-threaded
// reactor driving a fixed pool of nonblocking TCP connections through an
// Idle/Sending/Receiving state machine, dispatched by a kernel timer,
// built directly on golang.org/x/sys/unix's raw epoll/timerfd syscalls.
//
// Linux-only: timerfd has no portable equivalent.
package evloop

import (
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/nabbar/flood/internal/ferrors"
)

// State is a connection's position in the Idle/Sending/Receiving cycle.
type State uint8

const (
	StateIdle State = iota
	StateSending
	StateReceiving
)

func (s State) String() string {
	switch s {
	case StateSending:
		return "sending"
	case StateReceiving:
		return "receiving"
	default:
		return "idle"
	}
}

const respBufInitCap = 4096

// Connection is one nonblocking socket plus the request/response framing
// state needed to drive it through one request at a time.
type Connection struct {
	fd    int
	state State

	reqStartTime time.Time
	reqBuf       []byte
	reqWritePos  int
	reqType      int32

	respBuf []byte

	// inIdle mirrors membership in Client.idle: set while this fd sits in
	// the idle FIFO, cleared on pop, so a level-triggered EPOLLOUT firing
	// again on an already-queued idle socket doesn't enqueue it twice.
	inIdle bool
}

// dial opens a nonblocking TCP socket to addr, completing the connect
// within connectTimeout.
func dial(addr *net.TCPAddr, connectTimeout, readTimeout, writeTimeout time.Duration) (*Connection, error) {
	domain := unix.AF_INET
	if addr.IP.To4() == nil {
		domain = unix.AF_INET6
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, ferrors.New(ferrors.KindTransport, "socket() failed", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, ferrors.New(ferrors.KindTransport, "set nonblocking failed", err)
	}

	sa, err := sockaddr(addr)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}

	if err := unix.Connect(fd, sa); err != nil && err != unix.EINPROGRESS {
		unix.Close(fd)
		return nil, ferrors.New(ferrors.KindTransport, "connect() failed", err)
	}

	if err := waitWritableOrTimeout(fd, connectTimeout); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if serr, _ := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR); serr != 0 {
		unix.Close(fd)
		return nil, ferrors.New(ferrors.KindTransport, "connect() failed", unix.Errno(serr))
	}

	setTimeout(fd, unix.SO_RCVTIMEO, readTimeout)
	setTimeout(fd, unix.SO_SNDTIMEO, writeTimeout)

	return &Connection{
		fd:      fd,
		state:   StateIdle,
		respBuf: make([]byte, 0, respBufInitCap),
	}, nil
}

func sockaddr(addr *net.TCPAddr) (unix.Sockaddr, error) {
	if v4 := addr.IP.To4(); v4 != nil {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa.Addr[:], v4)
		return sa, nil
	}
	sa := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa.Addr[:], addr.IP.To16())
	return sa, nil
}

// waitWritableOrTimeout blocks (via a private poll, not the shared epoll
// instance) until fd is writable or timeout elapses - only used during
// the initial nonblocking connect handshake.
func waitWritableOrTimeout(fd int, timeout time.Duration) error {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	n, err := unix.Poll(fds, int(timeout.Milliseconds()))
	if err != nil {
		return ferrors.New(ferrors.KindTransport, "poll() during connect failed", err)
	}
	if n == 0 {
		return ferrors.New(ferrors.KindTransport, "connect() timed out", nil)
	}
	return nil
}

// setTimeout sets SO_RCVTIMEO/SO_SNDTIMEO. These are advisory on a
// nonblocking socket - effective timeout enforcement is the run-level
// deadline - but they're set anyway for parity with a blocking fallback.
func setTimeout(fd, opt int, d time.Duration) {
	tv := unix.NsecToTimeval(d.Nanoseconds())
	_ = unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, opt, &tv)
}

// beginSend transitions Idle -> Sending, arming the request buffer and
// recording the script's type discriminator for this request (0 if unset).
func (c *Connection) beginSend(reqBuf []byte, reqType int32, now time.Time) {
	c.state = StateSending
	c.reqBuf = reqBuf
	c.reqWritePos = 0
	c.reqType = reqType
	c.reqStartTime = now
}

// writeRequest pushes as much of the pending request as the socket will
// currently accept. Returns true once the whole buffer has been written.
func (c *Connection) writeRequest() (complete bool, n int, err error) {
	for {
		written, werr := unix.Write(c.fd, c.reqBuf[c.reqWritePos:])
		if werr != nil {
			if werr == unix.EINTR {
				continue
			}
			if werr == unix.EAGAIN {
				return false, n, nil
			}
			return false, n, werr
		}
		c.reqWritePos += written
		n += written
		break
	}
	return c.reqWritePos == len(c.reqBuf), n, nil
}

// readResponse reads as much as is currently available into respBuf.
// Returns the number of bytes read this call; read-to-EAGAIN is signaled
// by a nil error with drained=true.
func (c *Connection) readResponse() (n int, drained bool, err error) {
	var buf [4096]byte
	for {
		nread, rerr := unix.Read(c.fd, buf[:])
		if rerr != nil {
			if rerr == unix.EINTR {
				continue
			}
			if rerr == unix.EAGAIN {
				return n, true, nil
			}
			return n, false, rerr
		}
		if nread == 0 {
			return n, false, ferrors.New(ferrors.KindTransport, "connection closed by peer", nil)
		}
		c.respBuf = append(c.respBuf, buf[:nread]...)
		n += nread
		if nread < len(buf) {
			return n, true, nil
		}
	}
}

// finishReceiving transitions Receiving -> Idle, clearing per-request state.
func (c *Connection) finishReceiving() {
	c.state = StateIdle
	c.reqBuf = nil
	c.reqWritePos = 0
	c.reqStartTime = time.Time{}
	c.respBuf = c.respBuf[:0]
}

func (c *Connection) close() {
	unix.Close(c.fd)
}
