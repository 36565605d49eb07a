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

package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is the logging contract every flood subsystem is built against.
// Components take a Logger at construction time rather than reaching for
// a package-level global.
type Logger interface {
	SetLevel(lvl Level)
	GetLevel() Level
	Debug(msg string, fields Fields)
	Info(msg string, fields Fields)
	Warn(msg string, fields Fields)
	Error(msg string, err error, fields Fields)
}

type logger struct {
	m sync.RWMutex
	l *logrus.Logger
}

// New returns a Logger writing to w at the given minimum level. Passing a
// nil w defaults to os.Stderr, matching the CLI's normal behavior.
func New(w io.Writer, lvl Level) Logger {
	if w == nil {
		w = os.Stderr
	}
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(lvl.logrus())
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &logger{l: l}
}

func (g *logger) SetLevel(lvl Level) {
	g.m.Lock()
	defer g.m.Unlock()
	g.l.SetLevel(lvl.logrus())
}

func (g *logger) GetLevel() Level {
	g.m.RLock()
	defer g.m.RUnlock()
	switch g.l.GetLevel() {
	case logrus.DebugLevel:
		return DebugLevel
	case logrus.WarnLevel:
		return WarnLevel
	case logrus.ErrorLevel:
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func (g *logger) Debug(msg string, fields Fields) {
	g.l.WithFields(fields.logrus()).Debug(msg)
}

func (g *logger) Info(msg string, fields Fields) {
	g.l.WithFields(fields.logrus()).Info(msg)
}

func (g *logger) Warn(msg string, fields Fields) {
	g.l.WithFields(fields.logrus()).Warn(msg)
}

func (g *logger) Error(msg string, err error, fields Fields) {
	if err != nil {
		fields = fields.Add("error", err.Error())
	}
	g.l.WithFields(fields.logrus()).Error(msg)
}

// Discard returns a Logger that drops everything, useful as a default for
// components constructed without an explicit logger (tests, probes).
func Discard() Logger {
	return New(io.Discard, ErrorLevel)
}
