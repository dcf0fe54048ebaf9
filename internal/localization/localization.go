// Package localization provides the reply catalog for operator commands.
// Catalogs are JSON files named by language code (e.g. "en.json") embedded in the binary.
package localization

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
)

// DefaultLanguage is used when a key is missing from the requested language.
const DefaultLanguage = "en"

//go:embed locales/*.json
var embedded embed.FS

// Localizer resolves reply keys per language.
type Localizer struct {
	translations map[string]map[string]string
	mu           sync.RWMutex
}

// NewLocalizer loads the embedded catalogs.
func NewLocalizer() (*Localizer, error) {
	sub, err := fs.Sub(embedded, "locales")
	if err != nil {
		return nil, errors.Wrap(err, "open embedded catalogs")
	}
	return NewLocalizerFS(sub)
}

// NewLocalizerFS loads every *.json file at the root of fsys, keyed by file name without
// the extension. The DefaultLanguage catalog must be present.
func NewLocalizerFS(fsys fs.FS) (*Localizer, error) {
	names, err := fs.Glob(fsys, "*.json")
	if err != nil {
		return nil, errors.Wrap(err, "list catalogs")
	}

	l := &Localizer{translations: make(map[string]map[string]string, len(names))}
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, errors.Wrapf(err, "read catalog %s", name)
		}
		var catalog map[string]string
		if err := json.Unmarshal(data, &catalog); err != nil {
			return nil, errors.Wrapf(err, "parse catalog %s", name)
		}
		l.translations[strings.TrimSuffix(name, ".json")] = catalog
	}

	if _, ok := l.translations[DefaultLanguage]; !ok {
		return nil, errors.Newf("no %s.json catalog", DefaultLanguage)
	}
	return l, nil
}

// GetString returns the localized string for a given key and language.
// If the language or the key is not found, it returns the key itself as a fallback.
func (l *Localizer) GetString(lang, key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if langTranslations, ok := l.translations[lang]; ok {
		if value, ok := langTranslations[key]; ok {
			return value
		}
	}

	if lang != DefaultLanguage {
		if enTranslations, ok := l.translations[DefaultLanguage]; ok {
			if value, ok := enTranslations[key]; ok {
				return value
			}
		}
	}

	return key
}

// T formats the default-language string for key with args.
func (l *Localizer) T(key string, args ...any) string {
	format := l.GetString(DefaultLanguage, key)
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
