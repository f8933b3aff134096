package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowd/internal/knowledge"
	"github.com/fyrsmithlabs/knowd/internal/retry"
)

// DefaultCommand is the external issue-tracking command used as the
// primary backend.
const DefaultCommand = "bd"

// commandTimeout bounds each bd invocation.
const commandTimeout = 30 * time.Second

// beadsBackend shells out to the bd issue tracker. Records map onto bd
// issues: the entry summary is the issue title, facets are labels, and
// the metadata block rides in the issue body.
type beadsBackend struct {
	command string
	dir     string
	logger  *zap.Logger
	retry   retry.Config
}

func newBeadsBackend(command, dir string, logger *zap.Logger) *beadsBackend {
	if command == "" {
		command = DefaultCommand
	}
	return &beadsBackend{
		command: command,
		dir:     dir,
		logger:  logger,
		retry:   retry.CommandConfig(),
	}
}

func (b *beadsBackend) Identity() string {
	return "beads:" + b.dir
}

// bdIssue is the tracker's issue JSON. Timestamps arrive as RFC 3339.
type bdIssue struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Labels    []string  `json:"labels"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (i bdIssue) record() Record {
	return Record{
		ID:        i.ID,
		Title:     i.Title,
		Body:      i.Body,
		Labels:    i.Labels,
		CreatedBy: i.CreatedBy,
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}
}

// run executes one bd invocation with the command retry policy and
// returns stdout.
func (b *beadsBackend) run(ctx context.Context, args ...string) ([]byte, error) {
	var stdout []byte
	op := "store.bd." + args[0]

	err := retry.Do(ctx, op, b.retry, func() error {
		cctx, cancel := context.WithTimeout(ctx, commandTimeout)
		defer cancel()

		cmd := exec.CommandContext(cctx, b.command, args...)
		cmd.Dir = b.dir
		var out, stderr bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = err.Error()
			}
			return fmt.Errorf("%s %s: %s", b.command, args[0], msg)
		}
		stdout = out.Bytes()
		return nil
	})
	if err != nil {
		if knowledge.KindOf(err) != "" {
			return nil, err
		}
		return nil, knowledge.WrapError(knowledge.KindStorage, op, err)
	}
	return stdout, nil
}

func (b *beadsBackend) Init(ctx context.Context) error {
	_, err := b.run(ctx, "init", "--json")
	return err
}

func (b *beadsBackend) Create(ctx context.Context, rec Record) (string, error) {
	args := []string{"create", rec.Title, "--json", "-d", rec.Body}
	for _, label := range rec.Labels {
		args = append(args, "-l", label)
	}
	out, err := b.run(ctx, args...)
	if err != nil {
		return "", err
	}

	var created bdIssue
	if err := json.Unmarshal(out, &created); err != nil {
		return "", knowledge.WrapError(knowledge.KindStorage, "store.bd.create", err)
	}
	if created.ID == "" {
		return "", knowledge.NewError(knowledge.KindStorage, "store.bd.create", "tracker returned no id")
	}
	return created.ID, nil
}

func (b *beadsBackend) Get(ctx context.Context, id string) (*Record, error) {
	out, err := b.run(ctx, "show", id, "--json")
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			return nil, nil
		}
		return nil, err
	}
	var issue bdIssue
	if err := json.Unmarshal(out, &issue); err != nil {
		return nil, knowledge.WrapError(knowledge.KindStorage, "store.bd.show", err)
	}
	rec := issue.record()
	return &rec, nil
}

func (b *beadsBackend) List(ctx context.Context) ([]Record, error) {
	out, err := b.run(ctx, "list", "--json", "--all", "--limit", "0")
	if err != nil {
		return nil, err
	}
	var issues []bdIssue
	if err := json.Unmarshal(out, &issues); err != nil {
		return nil, knowledge.WrapError(knowledge.KindStorage, "store.bd.list", err)
	}
	records := make([]Record, 0, len(issues))
	for _, issue := range issues {
		records = append(records, issue.record())
	}
	return records, nil
}

func (b *beadsBackend) Update(ctx context.Context, rec Record) error {
	args := []string{"update", rec.ID, "--json",
		"--title", rec.Title,
		"-d", rec.Body,
		"--set-labels", strings.Join(rec.Labels, ","),
	}
	_, err := b.run(ctx, args...)
	return err
}

// unavailableMarkers identify a tracker that is not usable for this
// project, which selects the file backend at probe time.
var unavailableMarkers = []string{
	"not initialized",
	"no beads database",
	"executable file not found",
	"command not found",
	"no such file or directory",
}

// probe checks once whether the tracker can serve this project.
func (b *beadsBackend) probe(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, b.command, "list", "--json", "--limit", "1")
	cmd.Dir = b.dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	msg := strings.TrimSpace(stderr.String())
	if msg == "" {
		msg = err.Error()
	}
	return fmt.Errorf("%s probe: %s", b.command, msg)
}

// isUnavailable reports whether a probe failure means "use the file
// backend" rather than a real fault.
func isUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, exec.ErrNotFound) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range unavailableMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
