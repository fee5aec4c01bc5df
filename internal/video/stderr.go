package video

import (
	"bytes"
	"strings"
	"sync"
)

const maxStderrBytes = 4096

// tailWriter keeps only the last limit bytes written to it. ffmpeg can log
// one warning per frame on damaged input, so stderr is never buffered whole.
type tailWriter struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func newTailWriter() *tailWriter {
	return &tailWriter{limit: maxStderrBytes}
}

func (tw *tailWriter) Write(p []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	n := len(p)
	tw.buf.Write(p)
	if tw.buf.Len() > tw.limit {
		b := tw.buf.Bytes()
		tail := append([]byte(nil), b[len(b)-tw.limit:]...)
		tw.buf.Reset()
		tw.buf.Write(tail)
	}
	return n, nil
}

func (tw *tailWriter) String() string {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return strings.TrimSpace(tw.buf.String())
}

func (tw *tailWriter) Reset() {
	tw.mu.Lock()
	tw.buf.Reset()
	tw.mu.Unlock()
}
