// Package usagelog records the shape of every successful query in an
// append-only line-delimited JSON file. The log feeds the dashboard
// tooling's usage views and the compaction tool's retention decisions.
// Recording is best-effort: a logging failure must never fail the
// query it describes.
package usagelog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowd/internal/knowledge"
)

// FileName is the usage log file inside the storage directory.
const FileName = "usage.jsonl"

// Rotation thresholds. Crossing either rewrites the log to its most
// recent half.
const (
	MaxBytes = 10 * 1024 * 1024
	MaxLines = 10_000
)

// Entry is one recorded query shape.
type Entry struct {
	Time        time.Time              `json:"time"`
	Filters     knowledge.QueryFilters `json:"filters"`
	ResultCount int                    `json:"result_count"`
}

// Logger appends query shapes to the usage log, rotating when the file
// grows past the thresholds.
type Logger struct {
	path   string
	logger *zap.Logger

	// lineCount mirrors the file's line count; initialized lazily on
	// first append so opening a store stays cheap.
	lineCount  int
	countKnown bool
}

// New creates a usage logger writing to dir/usage.jsonl.
func New(dir string, logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{
		path:   filepath.Join(dir, FileName),
		logger: logger,
	}
}

// Path returns the log file location.
func (l *Logger) Path() string {
	return l.path
}

// Record appends one query shape. Errors are returned for visibility
// but callers are expected to ignore them: usage logging never blocks
// or fails a query.
func (l *Logger) Record(entry Entry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	l.bumpCount()
	return l.maybeRotate()
}

func (l *Logger) bumpCount() {
	if !l.countKnown {
		l.lineCount = l.countLines()
		l.countKnown = true
		return
	}
	l.lineCount++
}

func (l *Logger) countLines() int {
	f, err := os.Open(l.path)
	if err != nil {
		return 0
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		count++
	}
	return count
}

// maybeRotate keeps the most recent half of the log once it exceeds
// either threshold.
func (l *Logger) maybeRotate() error {
	info, err := os.Stat(l.path)
	if err != nil {
		return err
	}
	if info.Size() <= MaxBytes && l.lineCount <= MaxLines {
		return nil
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		return err
	}
	lines := bytes.Split(bytes.TrimRight(data, "\n"), []byte("\n"))
	keep := lines[len(lines)/2:]

	var buf bytes.Buffer
	for _, line := range keep {
		buf.Write(line)
		buf.WriteByte('\n')
	}
	if err := atomic.WriteFile(l.path, &buf); err != nil {
		return err
	}

	l.logger.Debug("usage log rotated",
		zap.Int("kept_lines", len(keep)),
		zap.Int("dropped_lines", len(lines)-len(keep)))
	l.lineCount = len(keep)
	return nil
}
