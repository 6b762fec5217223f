// Package store persists the meeting list as a single pretty-printed JSON
// document on local disk. Every mutation snapshots the current document into
// a rolling backup directory first, so any write that goes wrong leaves a
// recoverable pre-image behind.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/roomboard/internal/meeting"
)

const (
	meetingsFile = "meetings.json"
	backupsDir   = "backups"

	// DefaultMaxBackups is the rolling backup retention applied when no
	// explicit limit is configured.
	DefaultMaxBackups = 10
)

// Options configures a Store.
type Options struct {
	// DataDir is the directory holding meetings.json and the backups/
	// subdirectory.
	DataDir string
	// MaxBackups bounds the rolling backup retention; zero means
	// DefaultMaxBackups.
	MaxBackups int
	// CheckConflicts enables the defense-in-depth overlap check on create and
	// update. Off by default: the client is the authority on conflicts.
	CheckConflicts bool
	// Now supplies the clock; nil means time.Now.
	Now func() time.Time
	// IDGenerator assigns ids to meetings created without one; nil means
	// random UUIDs.
	IDGenerator func() string
	Logger      *slog.Logger
}

// Store is the single source of truth for the meeting list. All access is
// serialized; the document is re-read on every operation so the file remains
// authoritative.
type Store struct {
	mu             sync.Mutex
	dataDir        string
	maxBackups     int
	checkConflicts bool
	now            func() time.Time
	idGenerator    func() string
	logger         *slog.Logger
	version        int64
}

// Open prepares the data directory and takes an eager startup snapshot. A
// missing meeting list is materialized as an empty document first, so every
// mutation, the very first included, has a pre-image to copy into backups/.
func Open(opts Options) (*Store, error) {
	if opts.DataDir == "" {
		return nil, fmt.Errorf("store: data directory is required")
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = DefaultMaxBackups
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.IDGenerator == nil {
		opts.IDGenerator = uuid.NewString
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Join(opts.DataDir, backupsDir), 0o755); err != nil {
		return nil, fmt.Errorf("store: create data directory: %w", err)
	}

	s := &Store{
		dataDir:        opts.DataDir,
		maxBackups:     opts.MaxBackups,
		checkConflicts: opts.CheckConflicts,
		now:            opts.Now,
		idGenerator:    opts.IDGenerator,
		logger:         logger,
		version:        1,
	}

	raw, err := os.ReadFile(s.meetingsPath())
	if os.IsNotExist(err) {
		raw = []byte("[]\n")
		if err := os.WriteFile(s.meetingsPath(), raw, 0o644); err != nil {
			return nil, fmt.Errorf("store: initialize meeting list: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("store: read meeting list: %w", err)
	}
	s.snapshot(raw, "startup-")

	return s, nil
}

func (s *Store) meetingsPath() string {
	return filepath.Join(s.dataDir, meetingsFile)
}

func (s *Store) backupsPath() string {
	return filepath.Join(s.dataDir, backupsDir)
}

// Version returns the monotonic list version. It advances on every mutation
// and lets clients detect that a batch replace would overwrite writes they
// have not seen.
func (s *Store) Version() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// List returns the full meeting list along with the current list version.
func (s *Store) List(ctx context.Context) ([]meeting.Meeting, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, _, err := s.readLocked()
	if err != nil {
		return nil, 0, err
	}
	return list, s.version, nil
}

// Get returns a single meeting by id.
func (s *Store) Get(ctx context.Context, id string) (meeting.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, _, err := s.readLocked()
	if err != nil {
		return meeting.Meeting{}, err
	}
	for _, m := range list {
		if m.ID == id {
			return m, nil
		}
	}
	return meeting.Meeting{}, ErrNotFound
}

// Create appends a meeting, assigning an id and creation timestamp when the
// caller supplied none.
func (s *Store) Create(ctx context.Context, m meeting.Meeting) (meeting.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, raw, err := s.readLocked()
	if err != nil {
		return meeting.Meeting{}, err
	}

	if m.ID == "" {
		m.ID = s.idGenerator()
	}
	if m.State == "" {
		m.State = meeting.StateScheduled
	}
	now := s.now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	if s.checkConflicts {
		if with, ok := meeting.FindConflict(list, m); ok {
			return meeting.Meeting{}, &ConflictError{With: with}
		}
	}

	if err := s.writeLocked(append(list, m), raw); err != nil {
		return meeting.Meeting{}, err
	}
	return m, nil
}

// Update merges a partial patch into the stored meeting. The creation
// timestamp is preserved and the update timestamp refreshed.
func (s *Store) Update(ctx context.Context, id string, patch Patch) (meeting.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, raw, err := s.readLocked()
	if err != nil {
		return meeting.Meeting{}, err
	}

	index := -1
	for i, m := range list {
		if m.ID == id {
			index = i
			break
		}
	}
	if index < 0 {
		return meeting.Meeting{}, ErrNotFound
	}

	merged := patch.applyTo(list[index])
	merged.ID = id
	merged.CreatedAt = list[index].CreatedAt
	merged.UpdatedAt = s.now()

	if s.checkConflicts {
		rest := append(meeting.CloneList(list[:index]), list[index+1:]...)
		if with, ok := meeting.FindConflict(rest, merged); ok {
			return meeting.Meeting{}, &ConflictError{With: with}
		}
	}

	list[index] = merged
	if err := s.writeLocked(list, raw); err != nil {
		return meeting.Meeting{}, err
	}
	return merged, nil
}

// Delete removes a meeting by id and returns the removed record.
func (s *Store) Delete(ctx context.Context, id string) (meeting.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, raw, err := s.readLocked()
	if err != nil {
		return meeting.Meeting{}, err
	}

	for i, m := range list {
		if m.ID == id {
			if err := s.writeLocked(append(list[:i:i], list[i+1:]...), raw); err != nil {
				return meeting.Meeting{}, err
			}
			return m, nil
		}
	}
	return meeting.Meeting{}, ErrNotFound
}

// ReplaceAll swaps the entire document for a new list. A positive ifVersion
// makes the write conditional: when it does not match the current list
// version the replace is rejected with ErrVersionMismatch, so a stale mirror
// cannot silently erase writes that landed in between.
func (s *Store) ReplaceAll(ctx context.Context, list []meeting.Meeting, ifVersion int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ifVersion > 0 && ifVersion != s.version {
		return 0, ErrVersionMismatch
	}

	_, raw, err := s.readLocked()
	if err != nil {
		return 0, err
	}
	if err := s.writeLocked(meeting.CloneList(list), raw); err != nil {
		return 0, err
	}
	return len(list), nil
}

// readLocked loads the document and its raw bytes. A missing file is an
// empty list.
func (s *Store) readLocked() ([]meeting.Meeting, []byte, error) {
	raw, err := os.ReadFile(s.meetingsPath())
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("store: read meeting list: %w", err)
	}
	var list []meeting.Meeting
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, nil, fmt.Errorf("store: decode meeting list: %w", err)
	}
	return list, raw, nil
}

// writeLocked snapshots the pre-image and overwrites the document. A failed
// snapshot is logged and the write proceeds: backups protect data, they never
// block a user operation.
func (s *Store) writeLocked(list []meeting.Meeting, previous []byte) error {
	if previous != nil {
		s.snapshot(previous, "")
	}

	if list == nil {
		list = []meeting.Meeting{}
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode meeting list: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(s.meetingsPath(), data, 0o644); err != nil {
		return fmt.Errorf("store: write meeting list: %w", err)
	}
	s.version++
	return nil
}

func (s *Store) snapshot(raw []byte, label string) {
	name := fmt.Sprintf("meetings-%s%s.json", label, backupStamp(s.now()))
	path := filepath.Join(s.backupsPath(), name)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		s.logger.Error("failed to write backup snapshot", "path", path, "error", err)
		return
	}
	s.rotateBackups()
}

func backupStamp(t time.Time) string {
	utc := t.UTC()
	return fmt.Sprintf("%s-%03dZ", utc.Format("2006-01-02T15-04-05"), utc.Nanosecond()/int(time.Millisecond))
}

// rotateBackups keeps the newest maxBackups snapshots by mtime and deletes
// the rest. Rotation is idempotent and failures are only logged.
func (s *Store) rotateBackups() {
	entries, err := os.ReadDir(s.backupsPath())
	if err != nil {
		s.logger.Error("failed to enumerate backups", "error", err)
		return
	}

	type backup struct {
		name  string
		mtime time.Time
	}
	backups := make([]backup, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !matchesBackupName(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, backup{name: name, mtime: info.ModTime()})
	}

	sort.Slice(backups, func(i, j int) bool {
		if backups[i].mtime.Equal(backups[j].mtime) {
			return backups[i].name > backups[j].name
		}
		return backups[i].mtime.After(backups[j].mtime)
	})

	for _, stale := range backups[min(len(backups), s.maxBackups):] {
		path := filepath.Join(s.backupsPath(), stale.name)
		if err := os.Remove(path); err != nil {
			s.logger.Error("failed to remove stale backup", "path", path, "error", err)
		}
	}
}

func matchesBackupName(name string) bool {
	matched, err := filepath.Match("meetings-*.json", name)
	return err == nil && matched
}
