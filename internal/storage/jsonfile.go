package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

// loadJSON decodes path into v. A missing or blank file leaves v untouched and reports found=false.
// A file that does not parse is renamed aside with a .corrupt suffix and treated as missing.
func loadJSON(path string, v any, logger *logrus.Logger) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "read %s", path)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		quarantined := fmt.Sprintf("%s.corrupt-%d", path, time.Now().UnixNano())
		if rerr := os.Rename(path, quarantined); rerr != nil {
			logger.WithError(rerr).WithField("path", path).Error("Failed to quarantine malformed store")
		}
		logger.WithFields(logrus.Fields{
			"path":        path,
			"quarantined": quarantined,
			"error":       errors.Mark(err, ErrMalformed).Error(),
		}).Warn("Malformed store treated as empty")
		return false, nil
	}
	return true, nil
}

// writeJSONAtomic replaces path with the JSON encoding of v via a temp file and rename.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode store")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "write %s", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "sync %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", tmpName)
	}
	return errors.Wrapf(os.Rename(tmpName, path), "replace %s", path)
}
