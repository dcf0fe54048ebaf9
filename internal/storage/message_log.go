package storage

import (
	"flagwatch/backend/internal/models"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

const messageLogName = "messages.txt"

var unsafeFolderChars = regexp.MustCompile(`[^a-z0-9]`)

// MessageLog appends every observed guild message to a per-community text file.
// Messages sent before the process started are never present.
type MessageLog struct {
	dir    string
	locks  *keyedMutex
	logger *logrus.Logger
}

// NewMessageLog creates the root log directory.
func NewMessageLog(dir string, logger *logrus.Logger) (*MessageLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create %s", dir)
	}
	return &MessageLog{dir: dir, locks: newKeyedMutex(), logger: logger}, nil
}

// FolderName is the per-community directory: the lowercased name with every
// non-alphanumeric replaced by '_', then '_' and the community ID.
func FolderName(communityName, communityID string) string {
	safe := unsafeFolderChars.ReplaceAllString(strings.ToLower(communityName), "_")
	return safe + "_" + communityID
}

// FormatLine renders one log line.
func FormatLine(msg models.InboundMessage) string {
	return fmt.Sprintf("[%s] %s (%s): %s\n",
		msg.ReceivedAt.Format("2006-01-02 15:04:05"), msg.AuthorDisplayName, msg.AuthorID, msg.Content)
}

// Append writes msg to its community log. DMs and automated messages are skipped.
func (l *MessageLog) Append(msg models.InboundMessage) error {
	if !msg.InCommunity() || msg.IsAutomated {
		return nil
	}
	folder := filepath.Join(l.dir, FolderName(msg.CommunityName, msg.CommunityID))

	unlock := l.locks.Lock(folder)
	defer unlock()

	if err := os.MkdirAll(folder, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", folder)
	}
	f, err := os.OpenFile(filepath.Join(folder, messageLogName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "open message log")
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLine(msg)); err != nil {
		return errors.Wrap(err, "write message log")
	}
	return nil
}

// Communities lists the log folders.
func (l *MessageLog) Communities() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", l.dir)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// Resolve finds a folder by case-insensitive name and returns its log path.
func (l *MessageLog) Resolve(folder string) (string, error) {
	folders, err := l.Communities()
	if err != nil {
		return "", err
	}
	for _, f := range folders {
		if strings.EqualFold(f, strings.TrimSpace(folder)) {
			path := filepath.Join(l.dir, f, messageLogName)
			if _, err := os.Stat(path); err != nil {
				return "", errors.Wrapf(ErrNotFound, "log %s", folder)
			}
			return path, nil
		}
	}
	return "", errors.Wrapf(ErrNotFound, "log %s", folder)
}
