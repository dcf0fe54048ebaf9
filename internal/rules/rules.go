// Package rules holds the keyword tiers and ignore patterns consulted by the classifier.
package rules

import (
	"os"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultIgnorePatterns suppress classification when present anywhere in a message.
// They cut the most common false positives (media links, URLs, abbreviations).
var DefaultIgnorePatterns = []string{"gif", ".com", "nigg", "l."}

// RuleSet is an immutable snapshot of the keyword tiers. All terms are lowercase.
type RuleSet struct {
	Low    []string `yaml:"low"`
	Medium []string `yaml:"medium"`
	High   []string `yaml:"high"`
	Ignore []string `yaml:"ignore"`
}

// Default returns the built-in rule set used when no rules file is configured.
func Default() RuleSet {
	return Normalize(RuleSet{
		Low:    []string{"spam", "stupid", "idiot", "shut up"},
		Medium: []string{"scam", "hate you", "dox", "free nitro"},
		High:   []string{"threat", "kill you", "kys", "bomb", "shoot up"},
		Ignore: DefaultIgnorePatterns,
	})
}

// Normalize lowercases and trims every term, drops blanks and duplicates, and keeps
// the tiers disjoint: a term listed in a higher tier is removed from the lower ones.
func Normalize(rs RuleSet) RuleSet {
	seen := make(map[string]struct{})
	high := clean(rs.High, seen)
	medium := clean(rs.Medium, seen)
	low := clean(rs.Low, seen)

	ignore := clean(rs.Ignore, make(map[string]struct{}))
	if rs.Ignore == nil {
		ignore = clean(DefaultIgnorePatterns, make(map[string]struct{}))
	}
	return RuleSet{Low: low, Medium: medium, High: high, Ignore: ignore}
}

func clean(terms []string, seen map[string]struct{}) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// LoadFile parses a YAML rules file. A file without an ignore key gets the default patterns.
func LoadFile(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, errors.Wrapf(err, "read rules file %s", path)
	}
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return RuleSet{}, errors.Wrapf(err, "parse rules file %s", path)
	}
	return Normalize(rs), nil
}

// Store serves the current rule set to concurrent readers.
type Store struct {
	mu     sync.RWMutex
	rules  RuleSet
	path   string
	logger *logrus.Logger
}

// NewStore loads rules from path, or uses Default when path is empty.
func NewStore(path string, logger *logrus.Logger) (*Store, error) {
	s := &Store{path: path, logger: logger, rules: Default()}
	if path == "" {
		return s, nil
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStaticStore wraps a fixed rule set.
func NewStaticStore(rs RuleSet) *Store {
	return &Store{rules: Normalize(rs), logger: logrus.StandardLogger()}
}

// Current returns the rule set in effect at call time.
func (s *Store) Current() RuleSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules
}

// Reload re-reads the rules file. On failure the previous rules stay in effect.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	rs, err := LoadFile(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.rules = rs
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"path":   s.path,
		"low":    len(rs.Low),
		"medium": len(rs.Medium),
		"high":   len(rs.High),
	}).Info("Loaded keyword rules")
	return nil
}
