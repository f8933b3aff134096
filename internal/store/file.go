package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowd/internal/knowledge"
)

// RecordFileName is the self-managed line-delimited record file,
// compatible with the bd tracker's export format.
const RecordFileName = "issues.jsonl"

// fileBackend stores records as line-delimited JSON in a single file.
// Creates append; updates rewrite the whole file atomically. Concurrent
// writers are not serialized: two processes racing an update both
// read-modify-write and the later write wins in full. That is the
// documented consistency model, not an oversight.
type fileBackend struct {
	path   string
	logger *zap.Logger
}

// newFileBackend creates a file backend rooted at dir.
func newFileBackend(dir string, logger *zap.Logger) *fileBackend {
	return &fileBackend{
		path:   filepath.Join(dir, RecordFileName),
		logger: logger,
	}
}

func (b *fileBackend) Identity() string {
	return "file:" + b.path
}

func (b *fileBackend) Init(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return knowledge.WrapError(knowledge.KindStorage, "store.file.init", err)
	}
	f, err := os.OpenFile(b.path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return knowledge.WrapError(knowledge.KindStorage, "store.file.init", err)
	}
	return f.Close()
}

func (b *fileBackend) Create(ctx context.Context, rec Record) (string, error) {
	if rec.ID == "" {
		rec.ID = "kn-" + uuid.New().String()[:8]
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return "", knowledge.WrapError(knowledge.KindStorage, "store.file.create", err)
	}

	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return "", knowledge.WrapError(knowledge.KindStorage, "store.file.create", err)
	}
	f, err := os.OpenFile(b.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return "", knowledge.WrapError(knowledge.KindStorage, "store.file.create", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return "", knowledge.WrapError(knowledge.KindStorage, "store.file.create", err)
	}
	return rec.ID, nil
}

func (b *fileBackend) Get(ctx context.Context, id string) (*Record, error) {
	records, err := b.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].ID == id {
			return &records[i], nil
		}
	}
	return nil, nil
}

func (b *fileBackend) List(ctx context.Context) ([]Record, error) {
	f, err := os.Open(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, knowledge.WrapError(knowledge.KindStorage, "store.file.list", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			// One corrupt line must not lose the whole store.
			b.logger.Warn("skipping unreadable record line",
				zap.String("path", b.path),
				zap.Int("line", lineNo),
				zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, knowledge.WrapError(knowledge.KindStorage, "store.file.list", err)
	}
	return records, nil
}

func (b *fileBackend) Update(ctx context.Context, rec Record) error {
	records, err := b.List(ctx)
	if err != nil {
		return err
	}

	found := false
	var buf bytes.Buffer
	for _, existing := range records {
		out := existing
		if existing.ID == rec.ID {
			out = rec
			found = true
		}
		line, err := json.Marshal(out)
		if err != nil {
			return knowledge.WrapError(knowledge.KindStorage, "store.file.update", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	if !found {
		return knowledge.NewError(knowledge.KindStorage, "store.file.update",
			fmt.Sprintf("record %s not found", rec.ID))
	}

	if err := atomic.WriteFile(b.path, &buf); err != nil {
		return knowledge.WrapError(knowledge.KindStorage, "store.file.update", err)
	}
	return nil
}
