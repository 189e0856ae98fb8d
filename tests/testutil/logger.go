package testutil

import (
	"bytes"
	"sync"
	"testing"

	"github.com/systmms/zligate/internal/logging"
)

// LogBuffer is a goroutine-safe buffer for capturing log output.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Write implements io.Writer.
func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// String returns everything written so far.
func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// NewTestLogger returns a debug logger writing to a buffer. The buffer is
// dumped to the test log when the test fails.
func NewTestLogger(t *testing.T) (*logging.Logger, *LogBuffer) {
	t.Helper()

	buf := &LogBuffer{}
	t.Cleanup(func() {
		if t.Failed() {
			t.Logf("captured log output:\n%s", buf.String())
		}
	})
	return logging.NewWithWriter(buf, true, true), buf
}
