// Package backgrounds stores the dashboard background images uploaded as
// data URLs, together with the small JSON state file recording which image is
// assigned to which surface.
package backgrounds

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	stateFile = "backgrounds.json"
	filesDir  = "backgrounds"

	// TypeMain is the dashboard background surface.
	TypeMain = "main"
	// TypeSchedule is the schedule-view background surface.
	TypeSchedule = "schedule"
)

var (
	// ErrUnknownType is returned for background types other than main and
	// schedule.
	ErrUnknownType = errors.New("backgrounds: unknown background type")
	// ErrNotFound is returned when the requested image does not exist.
	ErrNotFound = errors.New("backgrounds: not found")
	// ErrBadImage is returned when the uploaded data URL is malformed or of an
	// unsupported media type.
	ErrBadImage = errors.New("backgrounds: unsupported image payload")
	// ErrTooLarge is returned when the decoded image exceeds the configured
	// size cap.
	ErrTooLarge = errors.New("backgrounds: image exceeds size limit")
)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// State records the filename assigned to each background surface.
type State struct {
	MainBackground     *string `json:"mainBackground"`
	ScheduleBackground *string `json:"scheduleBackground"`
}

// Store owns the background state file and image directory.
type Store struct {
	mu       sync.Mutex
	dataDir  string
	maxBytes int64
	now      func() time.Time
}

// Open prepares the image directory under the data root. maxBytes caps the
// decoded image size; zero means 10 MiB.
func Open(dataDir string, maxBytes int64, now func() time.Time) (*Store, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("backgrounds: data directory is required")
	}
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	if now == nil {
		now = time.Now
	}
	if err := os.MkdirAll(filepath.Join(dataDir, filesDir), 0o755); err != nil {
		return nil, fmt.Errorf("backgrounds: create image directory: %w", err)
	}
	return &Store{dataDir: dataDir, maxBytes: maxBytes, now: now}, nil
}

// Current returns the background assignment state.
func (s *Store) Current() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

// Upload decodes a data URL, persists the image, assigns it to the given
// surface, and removes the image it replaced. The stored filename is
// returned.
func (s *Store) Upload(bgType, dataURL string) (string, error) {
	if bgType != TypeMain && bgType != TypeSchedule {
		return "", ErrUnknownType
	}

	payload, ext, err := decodeDataURL(dataURL)
	if err != nil {
		return "", err
	}
	if int64(len(payload)) > s.maxBytes {
		return "", ErrTooLarge
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.readLocked()
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s-%d%s", bgType, s.now().UnixMilli(), ext)
	if err := os.WriteFile(filepath.Join(s.dataDir, filesDir, name), payload, 0o644); err != nil {
		return "", fmt.Errorf("backgrounds: write image: %w", err)
	}

	previous := state.assigned(bgType)
	state.assign(bgType, &name)
	if err := s.writeLocked(state); err != nil {
		return "", err
	}
	if previous != nil {
		// Best effort; an orphaned file is harmless.
		os.Remove(filepath.Join(s.dataDir, filesDir, *previous))
	}
	return name, nil
}

// Resolve returns the on-disk path for a stored image filename. Path
// components are stripped so the lookup cannot escape the image directory.
func (s *Store) Resolve(filename string) (string, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", ErrNotFound
	}
	path := filepath.Join(s.dataDir, filesDir, name)
	if _, err := os.Stat(path); err != nil {
		return "", ErrNotFound
	}
	return path, nil
}

// Remove clears the assignment for a surface and deletes its image file.
func (s *Store) Remove(bgType string) error {
	if bgType != TypeMain && bgType != TypeSchedule {
		return ErrUnknownType
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.readLocked()
	if err != nil {
		return err
	}
	assigned := state.assigned(bgType)
	if assigned == nil {
		return ErrNotFound
	}
	state.assign(bgType, nil)
	if err := s.writeLocked(state); err != nil {
		return err
	}
	os.Remove(filepath.Join(s.dataDir, filesDir, *assigned))
	return nil
}

func (s *State) assigned(bgType string) *string {
	if bgType == TypeMain {
		return s.MainBackground
	}
	return s.ScheduleBackground
}

func (s *State) assign(bgType string, name *string) {
	if bgType == TypeMain {
		s.MainBackground = name
		return
	}
	s.ScheduleBackground = name
}

func (s *Store) readLocked() (State, error) {
	raw, err := os.ReadFile(filepath.Join(s.dataDir, stateFile))
	if os.IsNotExist(err) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("backgrounds: read state: %w", err)
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return State{}, fmt.Errorf("backgrounds: decode state: %w", err)
	}
	return state, nil
}

func (s *Store) writeLocked(state State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("backgrounds: encode state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dataDir, stateFile), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("backgrounds: write state: %w", err)
	}
	return nil
}

func decodeDataURL(dataURL string) ([]byte, string, error) {
	dataURL = strings.TrimSpace(dataURL)
	if !strings.HasPrefix(dataURL, "data:") {
		return nil, "", ErrBadImage
	}
	meta, encoded, ok := strings.Cut(dataURL[len("data:"):], ",")
	if !ok {
		return nil, "", ErrBadImage
	}
	mediaType, _, _ := strings.Cut(meta, ";")
	ext, supported := extensions[strings.ToLower(strings.TrimSpace(mediaType))]
	if !supported || !strings.Contains(meta, "base64") {
		return nil, "", ErrBadImage
	}
	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", ErrBadImage
	}
	return payload, ext, nil
}
