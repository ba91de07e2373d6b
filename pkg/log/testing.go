package log

import (
	"bufio"
	"bytes"
	"encoding/json"
	"sync"
)

// TestLogger captures JSON log lines in memory for assertions.
type TestLogger struct {
	Logger
	provider *ZerologProvider
	buf      *syncBuffer
}

// NewTestLogger returns a Logger writing to an in-memory buffer.
func NewTestLogger(level Level) *TestLogger {
	buf := &syncBuffer{}
	p := NewZerologProviderWithWriter(buf, level)
	return &TestLogger{Logger: p.GetLogger(), provider: p, buf: buf}
}

// Provider exposes the backing provider, e.g. for SetProvider in tests.
func (t *TestLogger) Provider() LoggerProvider {
	return t.provider
}

// Entries decodes every captured line.
func (t *TestLogger) Entries() ([]map[string]any, error) {
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(t.buf.Bytes()))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, sc.Err()
}

// ContainsMessage reports whether any entry has the given message.
func (t *TestLogger) ContainsMessage(msg string) bool {
	entries, err := t.Entries()
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e["message"] == msg {
			return true
		}
	}
	return false
}

// ContainsField reports whether any entry has key == value. Numbers decode
// as float64.
func (t *TestLogger) ContainsField(key string, value any) bool {
	entries, err := t.Entries()
	if err != nil {
		return false
	}
	for _, e := range entries {
		if v, ok := e[key]; ok && v == value {
			return true
		}
	}
	return false
}

// Clear drops captured output.
func (t *TestLogger) Clear() {
	t.buf.Reset()
}

// syncBuffer serialises writes from the tuner's workers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}
