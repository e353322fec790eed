package liveness

import (
	"flag"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"
)

var (
	debugFlag = flag.Bool("debug", false, "enable debug logging")
	quietFlag = flag.Bool("quiet", false, "disable logging")
)

func TestMain(m *testing.M) {
	flag.Parse()
	os.Exit(m.Run())
}

type testWriter struct {
	t  *testing.T
	mu sync.Mutex
}

func (w *testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.mu.Lock()
	defer w.mu.Unlock()
	w.t.Logf("%s", p)
	return len(p), nil
}

func newTestLogger(t *testing.T) *slog.Logger {
	var w io.Writer
	if *quietFlag {
		w = io.Discard
	} else {
		w = &testWriter{t: t}
	}
	logLevel := slog.LevelInfo
	if *debugFlag {
		logLevel = slog.LevelDebug
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel})
	return slog.New(h)
}

func wait[T any](t *testing.T, ch <-chan T, d time.Duration, name string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(d):
		t.Fatalf("timeout waiting for %s", name)
		var z T
		return z
	}
}

// recordingSender captures frames handed to the transmit adapter. A non-nil
// err makes every Send fail until cleared.
type recordingSender struct {
	mu     sync.Mutex
	frames []*Frame
	err    error
}

func (s *recordingSender) Send(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	f, err := UnmarshalFrame(b)
	if err != nil {
		return err
	}
	s.frames = append(s.frames, f)
	return nil
}

func (s *recordingSender) Close() error { return nil }

func (s *recordingSender) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *recordingSender) count(typ FrameType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := 0
	for _, f := range s.frames {
		if f.Type == typ {
			c++
		}
	}
	return c
}

func (s *recordingSender) all() []*Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Frame(nil), s.frames...)
}
