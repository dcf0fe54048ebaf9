package storage

import (
	"flagwatch/backend/internal/models"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

// FileCaseLedger keeps one JSON array per author under an active and an archive directory.
// Every mutation rewrites the whole file atomically while holding the author's lock.
type FileCaseLedger struct {
	activeDir  string
	archiveDir string
	locks      *keyedMutex
	logger     *logrus.Logger
}

// NewFileCaseLedger creates both directories if needed.
func NewFileCaseLedger(activeDir, archiveDir string, logger *logrus.Logger) (*FileCaseLedger, error) {
	for _, dir := range []string{activeDir, archiveDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create %s", dir)
		}
	}
	return &FileCaseLedger{
		activeDir:  activeDir,
		archiveDir: archiveDir,
		locks:      newKeyedMutex(),
		logger:     logger,
	}, nil
}

func (l *FileCaseLedger) activePath(authorID string) string {
	return filepath.Join(l.activeDir, authorID+".json")
}

func (l *FileCaseLedger) archivePath(authorID string) string {
	return filepath.Join(l.archiveDir, authorID+".json")
}

func (l *FileCaseLedger) load(path string) ([]models.ClassifiedEvent, bool, error) {
	var events []models.ClassifiedEvent
	found, err := loadJSON(path, &events, l.logger)
	if err != nil || !found {
		return nil, found, err
	}
	if events == nil {
		events = []models.ClassifiedEvent{}
	}
	return events, true, nil
}

// Append implements CaseLedger.
func (l *FileCaseLedger) Append(authorID string, ev models.ClassifiedEvent) (int, error) {
	if err := models.ValidateID(authorID); err != nil {
		return 0, err
	}
	unlock := l.locks.Lock(authorID)
	defer unlock()

	events, _, err := l.load(l.activePath(authorID))
	if err != nil {
		return 0, err
	}
	events = append(events, ev)
	if err := writeJSONAtomic(l.activePath(authorID), events); err != nil {
		return 0, errors.Wrapf(err, "append case for %s", authorID)
	}
	return len(events), nil
}

// Read implements CaseLedger.
func (l *FileCaseLedger) Read(authorID string) ([]models.ClassifiedEvent, error) {
	if err := models.ValidateID(authorID); err != nil {
		return nil, err
	}
	unlock := l.locks.Lock(authorID)
	defer unlock()

	events, found, err := l.load(l.activePath(authorID))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Wrapf(ErrNotFound, "case %s", authorID)
	}
	return events, nil
}

// Query implements CaseLedger.
func (l *FileCaseLedger) Query(authorID string, f Filter) ([]models.ClassifiedEvent, error) {
	events, err := l.Read(authorID)
	if err != nil {
		return nil, err
	}
	return f.Apply(events), nil
}

// Delete implements CaseLedger.
func (l *FileCaseLedger) Delete(authorID string) error {
	if err := models.ValidateID(authorID); err != nil {
		return err
	}
	unlock := l.locks.Lock(authorID)
	defer unlock()

	err := os.Remove(l.activePath(authorID))
	if errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(ErrNotFound, "case %s", authorID)
	}
	return errors.Wrapf(err, "delete case %s", authorID)
}

// Archive implements CaseLedger. Events already archived for the author are kept
// and the active events are appended after them.
func (l *FileCaseLedger) Archive(authorID string) error {
	if err := models.ValidateID(authorID); err != nil {
		return err
	}
	unlock := l.locks.Lock(authorID)
	defer unlock()

	active, found, err := l.load(l.activePath(authorID))
	if err != nil {
		return err
	}
	if !found {
		return errors.Wrapf(ErrNotFound, "case %s", authorID)
	}

	archived, _, err := l.load(l.archivePath(authorID))
	if err != nil {
		return err
	}
	if err := writeJSONAtomic(l.archivePath(authorID), append(archived, active...)); err != nil {
		return errors.Wrapf(err, "archive case %s", authorID)
	}
	if err := os.Remove(l.activePath(authorID)); err != nil {
		return errors.Wrapf(err, "remove archived case %s", authorID)
	}
	return nil
}

// Lookup implements CaseLedger.
func (l *FileCaseLedger) Lookup(authorID string) ([]models.ClassifiedEvent, bool, error) {
	events, err := l.Read(authorID)
	if err == nil {
		return events, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	unlock := l.locks.Lock(authorID)
	defer unlock()
	archived, found, err := l.load(l.archivePath(authorID))
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, errors.Wrapf(ErrNotFound, "case %s", authorID)
	}
	return archived, true, nil
}

// Authors implements CaseLedger.
func (l *FileCaseLedger) Authors() ([]string, error) {
	return listIDs(l.activeDir)
}

func listIDs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", dir)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		if models.ValidateID(id) != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Summaries implements CaseLedger.
func (l *FileCaseLedger) Summaries(includeArchived bool) ([]models.CaseSummary, error) {
	out, err := l.summarize(l.activeDir, false)
	if err != nil {
		return nil, err
	}
	if includeArchived {
		archived, err := l.summarize(l.archiveDir, true)
		if err != nil {
			return nil, err
		}
		out = append(out, archived...)
	}
	return out, nil
}

func (l *FileCaseLedger) summarize(dir string, archived bool) ([]models.CaseSummary, error) {
	ids, err := listIDs(dir)
	if err != nil {
		return nil, err
	}
	out := make([]models.CaseSummary, 0, len(ids))
	for _, id := range ids {
		events, _, err := l.load(filepath.Join(dir, id+".json"))
		if err != nil {
			l.logger.WithError(err).WithField("author_id", id).Warn("Skipping unreadable case file")
			continue
		}
		s := models.CaseSummary{AuthorID: id, DisplayName: "Unknown", Count: len(events), Archived: archived}
		if n := len(events); n > 0 && events[n-1].AuthorDisplayName != "" {
			s.DisplayName = events[n-1].AuthorDisplayName
		}
		out = append(out, s)
	}
	return out, nil
}

// TopByCount sorts summaries by event count, highest first, and keeps at most n.
func TopByCount(summaries []models.CaseSummary, n int) []models.CaseSummary {
	sorted := make([]models.CaseSummary, len(summaries))
	copy(sorted, summaries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Count > sorted[j].Count })
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
