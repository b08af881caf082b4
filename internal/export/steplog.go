package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/forage-sim/internal/engine"
)

// StepLog appends step summaries as zstd-compressed JSON lines.
type StepLog struct {
	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
	n   int
}

// CreateStepLog opens a new step log at path, truncating any existing file.
func CreateStepLog(path string) (*StepLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating step log: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("creating step log encoder: %w", err)
	}
	return &StepLog{f: f, enc: enc, w: bufio.NewWriterSize(enc, 64*1024)}, nil
}

// Write appends one summary.
func (l *StepLog) Write(s engine.StepSummary) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if _, err := l.w.Write(b); err != nil {
		return err
	}
	l.n++
	return l.w.WriteByte('\n')
}

// Len returns the number of summaries written.
func (l *StepLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.n
}

// Close flushes and closes the log. Closing twice is a no-op.
func (l *StepLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return nil
	}
	defer func() { l.f = nil }()

	if err := l.w.Flush(); err != nil {
		_ = l.enc.Close()
		_ = l.f.Close()
		return err
	}
	if err := l.enc.Close(); err != nil {
		_ = l.f.Close()
		return err
	}
	return l.f.Close()
}

// ReadStepLog decodes every summary in a step log.
func ReadStepLog(path string) ([]engine.StepSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening step log: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("opening step log decoder: %w", err)
	}
	defer dec.Close()

	var out []engine.StepSummary
	jd := json.NewDecoder(bufio.NewReader(dec))
	for {
		var s engine.StepSummary
		if err := jd.Decode(&s); err == io.EOF {
			return out, nil
		} else if err != nil {
			return out, fmt.Errorf("decoding step log: %w", err)
		}
		out = append(out, s)
	}
}
