package audiosink

import (
	"io"
	"sync"

	"github.com/xaionaro-go/playback/pkg/player"
)

// pcmBuffer is a fixed-capacity byte ring between the decode worker and
// the audio backend's reader goroutine. The writer side never blocks (it
// reports player.ErrSinkFull instead), the reader side blocks until data
// arrives or the buffer is closed.
type pcmBuffer struct {
	mu       sync.Mutex
	readable sync.Cond
	buf      []byte
	readPos  int
	size     int
	closed   bool
}

func newPCMBuffer(capacity int) *pcmBuffer {
	b := &pcmBuffer{
		buf: make([]byte, capacity),
	}
	b.readable.L = &b.mu
	return b
}

func (b *pcmBuffer) Capacity() int {
	return len(b.buf)
}

// Write enqueues the whole chunk or nothing: a partial write would tear
// a PCM chunk across a drop and produce an audible glitch.
func (b *pcmBuffer) Write(p []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return io.ErrClosedPipe
	}
	if len(b.buf)-b.size < len(p) {
		return player.ErrSinkFull
	}

	writePos := (b.readPos + b.size) % len(b.buf)
	n := copy(b.buf[writePos:], p)
	copy(b.buf, p[n:])
	b.size += len(p)
	b.readable.Signal()
	return nil
}

// Read blocks until at least one byte is available, then drains as much
// as fits into p. After Close it returns io.EOF once the buffer is empty.
func (b *pcmBuffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.size == 0 && !b.closed {
		b.readable.Wait()
	}
	if b.size == 0 {
		return 0, io.EOF
	}

	total := 0
	for total < len(p) && b.size > 0 {
		chunk := len(b.buf) - b.readPos
		if chunk > b.size {
			chunk = b.size
		}
		n := copy(p[total:], b.buf[b.readPos:b.readPos+chunk])
		b.readPos = (b.readPos + n) % len(b.buf)
		b.size -= n
		total += n
	}
	return total, nil
}

func (b *pcmBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

func (b *pcmBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.readable.Broadcast()
}
