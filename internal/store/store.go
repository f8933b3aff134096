package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowd/internal/knowledge"
	"github.com/fyrsmithlabs/knowd/internal/secrets"
)

// Options configures a Store.
type Options struct {
	// Dir is the storage directory (holds the record file or the
	// tracker database).
	Dir string

	// Command is the external issue-tracking command. Empty selects
	// DefaultCommand.
	Command string

	// ForceFile skips the tracker probe and uses the file backend.
	ForceFile bool

	// Scanner blocks secret-bearing writes. Nil selects the default
	// rule set.
	Scanner *secrets.Scanner

	// Logger defaults to a nop logger.
	Logger *zap.Logger

	// Now is the clock used for assigned timestamps. Nil means
	// time.Now.
	Now func() time.Time
}

// Store is the persistent log of entries. Writes validate, scan, and
// deduplicate before anything touches the backend; reads decode
// defensively so one corrupt record never fails a query.
//
// Cross-process writers are not serialized. Updates read-modify-write
// the whole record set and the later writer wins in full; this
// last-write-wins model is documented behavior and must not be
// "fixed" with locks.
type Store struct {
	backend Backend
	scanner *secrets.Scanner
	logger  *zap.Logger
	now     func() time.Time
	onWrite []func()
}

// New builds a Store, probing the tracker command once to pick the
// backend. An unusable tracker (missing binary, uninitialized project)
// selects the self-managed file backend; any other probe failure is a
// real fault and propagates.
func New(ctx context.Context, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	scanner := opts.Scanner
	if scanner == nil {
		scanner = secrets.MustNew(nil)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	var backend Backend
	if opts.ForceFile {
		backend = newFileBackend(opts.Dir, logger)
	} else {
		beads := newBeadsBackend(opts.Command, opts.Dir, logger)
		if err := beads.probe(ctx); err != nil {
			if !isUnavailable(err) {
				return nil, knowledge.WrapError(knowledge.KindStorage, "store.probe", err)
			}
			logger.Debug("tracker unavailable, using file backend", zap.Error(err))
			backend = newFileBackend(opts.Dir, logger)
		} else {
			backend = beads
		}
	}

	logger.Debug("store backend selected", zap.String("identity", backend.Identity()))
	return &Store{
		backend: backend,
		scanner: scanner,
		logger:  logger,
		now:     now,
	}, nil
}

// OnWrite registers a hook invoked synchronously after every
// successful write, before the write call returns. The statistics
// cache registers its invalidation here.
func (s *Store) OnWrite(fn func()) {
	s.onWrite = append(s.onWrite, fn)
}

func (s *Store) notifyWrite() {
	for _, fn := range s.onWrite {
		fn()
	}
}

// Identity names the backing storage for cache keying.
func (s *Store) Identity() string {
	return s.backend.Identity()
}

// Init prepares the backing storage.
func (s *Store) Init(ctx context.Context) error {
	return s.backend.Init(ctx)
}

// Create validates, scans, deduplicates, and persists a new entry,
// returning its assigned id. The entry's status defaults to active and
// timestamps are assigned here; a caller-supplied id is ignored.
func (s *Store) Create(ctx context.Context, e *knowledge.Entry) (string, error) {
	if e.Status == "" {
		e.Status = knowledge.StatusActive
	}
	now := s.now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	e.ID = ""

	if result := knowledge.Validate(e); !result.Valid {
		return "", knowledge.NewValidationError("store.create", result.Errors)
	}
	if result := s.scanner.ScanEntry(e); result.HasSecrets {
		return "", &knowledge.Error{
			Kind:    knowledge.KindSecretDetected,
			Op:      "store.create",
			Msg:     "write blocked: entry contains secret material",
			Details: result.Errors,
		}
	}

	// Exact (subject, scope, summary) duplicates are rejected.
	existing, err := s.List(ctx)
	if err != nil {
		return "", err
	}
	for i := range existing {
		if existing[i].Subject == e.Subject &&
			existing[i].Scope == e.Scope &&
			existing[i].Summary == e.Summary {
			return "", knowledge.NewConflictError("store.create", existing[i].ID, e.Subject)
		}
	}

	rec, err := EncodeEntry(e)
	if err != nil {
		return "", err
	}
	id, err := s.backend.Create(ctx, rec)
	if err != nil {
		return "", err
	}
	e.ID = id

	s.logger.Info("entry created",
		zap.String("id", id),
		zap.String("section", string(e.Section)),
		zap.String("scope", string(e.Scope)))
	s.notifyWrite()
	return id, nil
}

// Restore persists an entry under its existing id, preserving its
// timestamps. Used by import, which detects collisions itself; the
// (subject, scope, summary) dedup check is skipped, but validation and
// secret scanning still apply.
func (s *Store) Restore(ctx context.Context, e *knowledge.Entry) (string, error) {
	if result := knowledge.Validate(e); !result.Valid {
		return "", knowledge.NewValidationError("store.restore", result.Errors)
	}
	if result := s.scanner.ScanEntry(e); result.HasSecrets {
		return "", &knowledge.Error{
			Kind:    knowledge.KindSecretDetected,
			Op:      "store.restore",
			Msg:     "write blocked: entry contains secret material",
			Details: result.Errors,
		}
	}

	rec, err := EncodeEntry(e)
	if err != nil {
		return "", err
	}
	id, err := s.backend.Create(ctx, rec)
	if err != nil {
		return "", err
	}
	e.ID = id
	s.notifyWrite()
	return id, nil
}

// Get returns the entry with the given id, or nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*knowledge.Entry, error) {
	rec, err := s.backend.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	e := DecodeRecord(*rec)
	return &e, nil
}

// List returns every entry in the store.
func (s *Store) List(ctx context.Context) ([]knowledge.Entry, error) {
	records, err := s.backend.List(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]knowledge.Entry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, DecodeRecord(rec))
	}
	return entries, nil
}

// UpdateInPlace rewrites an existing entry. The id never changes;
// UpdatedAt is reassigned. The update validates and scans like a
// create but skips deduplication (the entry already exists).
func (s *Store) UpdateInPlace(ctx context.Context, e *knowledge.Entry) error {
	if e.ID == "" {
		return knowledge.NewError(knowledge.KindStorage, "store.update", "entry has no id")
	}
	e.UpdatedAt = s.now()

	if result := knowledge.Validate(e); !result.Valid {
		return knowledge.NewValidationError("store.update", result.Errors)
	}
	if result := s.scanner.ScanEntry(e); result.HasSecrets {
		return &knowledge.Error{
			Kind:    knowledge.KindSecretDetected,
			Op:      "store.update",
			Msg:     "write blocked: entry contains secret material",
			Details: result.Errors,
		}
	}

	rec, err := EncodeEntry(e)
	if err != nil {
		return err
	}
	if err := s.backend.Update(ctx, rec); err != nil {
		return err
	}

	s.logger.Info("entry updated", zap.String("id", e.ID))
	s.notifyWrite()
	return nil
}

// Supersede retires the entry with the given id and persists its
// replacement, linking the two. Returns the replacement's id.
func (s *Store) Supersede(ctx context.Context, id string, replacement *knowledge.Entry) (string, error) {
	old, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if old == nil {
		return "", knowledge.NewError(knowledge.KindStorage, "store.supersede",
			fmt.Sprintf("entry %s not found", id))
	}

	newID, err := s.Create(ctx, replacement)
	if err != nil {
		return "", err
	}

	old.Status = knowledge.StatusSuperseded
	old.SupersededBy = newID
	if err := s.UpdateInPlace(ctx, old); err != nil {
		return "", err
	}
	return newID, nil
}

// Deprecate retires the entry with the given id without a replacement.
func (s *Store) Deprecate(ctx context.Context, id string) error {
	e, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if e == nil {
		return knowledge.NewError(knowledge.KindStorage, "store.deprecate",
			fmt.Sprintf("entry %s not found", id))
	}

	e.Status = knowledge.StatusDeprecated
	e.SupersededBy = ""
	return s.UpdateInPlace(ctx, e)
}
