package streamprobe

import (
	"io"
	"sync"

	"github.com/smallnest/ringbuffer"
)

// echoBuffer carries received audio frames back towards the peer. Read blocks
// until data is available or the buffer is closed.
type echoBuffer struct {
	b      *ringbuffer.RingBuffer
	mu     sync.Mutex
	cond   *sync.Cond
	closed bool
}

func newEchoBuffer(size int) *echoBuffer {
	e := &echoBuffer{
		b: ringbuffer.New(size),
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

func (e *echoBuffer) Write(p []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0, io.ErrClosedPipe
	}

	n, err := e.b.Write(p)
	if n > 0 {
		e.cond.Broadcast()
	}
	return n, err
}

func (e *echoBuffer) Read(p []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for e.b.Length() == 0 && !e.closed {
		e.cond.Wait()
	}

	if e.b.Length() == 0 {
		return 0, io.EOF
	}

	n := min(len(p), e.b.Length())
	if n > 0 {
		_, _ = e.b.Read(p[:n])
	}

	return n, nil
}

func (e *echoBuffer) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.cond.Broadcast()
	return nil
}
