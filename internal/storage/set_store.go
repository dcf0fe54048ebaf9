package storage

import (
	"flagwatch/backend/internal/models"
	"os"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

// SetOptions control how values are normalized and validated before they reach a set.
type SetOptions struct {
	Normalize func(string) string
	Validate  func(string) error
}

// IDSet is used for the watchlist and the ignored communities.
var IDSet = SetOptions{
	Normalize: strings.TrimSpace,
	Validate:  models.ValidateID,
}

// PhraseSet is used for the blacklist and keyword suggestions.
var PhraseSet = SetOptions{
	Normalize: func(s string) string { return strings.ToLower(strings.TrimSpace(s)) },
	Validate: func(s string) error {
		if s == "" {
			return ErrEmptyValue
		}
		return nil
	},
}

// FileSetStore is a JSON array on disk fronted by an in-memory copy.
// The copy is revalidated against the file on every access, so writes from another
// process (the admin CLI) are picked up, and read-modify-write always starts from disk.
type FileSetStore struct {
	path   string
	opts   SetOptions
	logger *logrus.Logger

	mu     sync.Mutex
	values []string
	loaded bool
	// stat of the file the cache was built from; nil when the file did not exist.
	stat os.FileInfo
}

// NewFileSetStore creates a store backed by path. The file is created on first write.
func NewFileSetStore(path string, opts SetOptions, logger *logrus.Logger) *FileSetStore {
	return &FileSetStore{path: path, opts: opts, logger: logger}
}

func (s *FileSetStore) normalize(v string) (string, error) {
	if s.opts.Normalize != nil {
		v = s.opts.Normalize(v)
	}
	if s.opts.Validate != nil {
		if err := s.opts.Validate(v); err != nil {
			return "", err
		}
	}
	return v, nil
}

func sameFile(a, b os.FileInfo) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return os.SameFile(a, b) && a.ModTime().Equal(b.ModTime()) && a.Size() == b.Size()
}

func (s *FileSetStore) statFile() (os.FileInfo, error) {
	info, err := os.Stat(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", s.path)
	}
	return info, nil
}

// ensureLoaded reloads the cache when the file changed since it was read. Must be called with mu held.
func (s *FileSetStore) ensureLoaded() error {
	info, err := s.statFile()
	if err != nil {
		return err
	}
	if s.loaded && sameFile(info, s.stat) {
		return nil
	}
	var raw []string
	if _, err := loadJSON(s.path, &raw, s.logger); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(raw))
	values := make([]string, 0, len(raw))
	for _, v := range raw {
		if s.opts.Normalize != nil {
			v = s.opts.Normalize(v)
		}
		if _, dup := seen[v]; dup || v == "" {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	s.values = values
	s.loaded = true
	// A quarantined file is gone after loadJSON, so stat again.
	s.stat, err = s.statFile()
	return err
}

// commit writes next and records the new file as the cache source. Must be called with mu held.
func (s *FileSetStore) commit(next []string) error {
	if err := writeJSONAtomic(s.path, next); err != nil {
		return err
	}
	s.values = next
	info, err := s.statFile()
	if err != nil {
		s.loaded = false
		return nil
	}
	s.stat = info
	return nil
}

func (s *FileSetStore) indexOf(v string) int {
	for i, existing := range s.values {
		if existing == v {
			return i
		}
	}
	return -1
}

// List implements SetStore. Entries keep insertion order.
func (s *FileSetStore) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	out := make([]string, len(s.values))
	copy(out, s.values)
	return out, nil
}

// Contains implements SetStore. Values that fail validation are reported absent.
func (s *FileSetStore) Contains(value string) (bool, error) {
	v, err := s.normalize(value)
	if err != nil {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return false, err
	}
	return s.indexOf(v) >= 0, nil
}

// Add implements SetStore.
func (s *FileSetStore) Add(value string) (bool, error) {
	v, err := s.normalize(value)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return false, err
	}
	if s.indexOf(v) >= 0 {
		return false, nil
	}
	next := append(append([]string{}, s.values...), v)
	if err := s.commit(next); err != nil {
		return false, err
	}
	return true, nil
}

// Remove implements SetStore.
func (s *FileSetStore) Remove(value string) (bool, error) {
	v, err := s.normalize(value)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return false, err
	}
	i := s.indexOf(v)
	if i < 0 {
		return false, nil
	}
	next := make([]string, 0, len(s.values)-1)
	next = append(next, s.values[:i]...)
	next = append(next, s.values[i+1:]...)
	if err := s.commit(next); err != nil {
		return false, err
	}
	return true, nil
}
