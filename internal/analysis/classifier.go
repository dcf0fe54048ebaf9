// Package analysis classifies message text against the keyword rules.
// Matching is deterministic case-insensitive substring containment, not tokenized word matching.
package analysis

import (
	"flagwatch/backend/internal/models"
	"flagwatch/backend/internal/rules"
	"strings"

	"github.com/sirupsen/logrus"
)

// BlacklistMode selects how blacklist phrases suppress a message.
type BlacklistMode string

const (
	// BlacklistExact suppresses a message only when it equals a phrase after normalization.
	BlacklistExact BlacklistMode = "exact"
	// BlacklistContains suppresses a message that contains any phrase.
	BlacklistContains BlacklistMode = "contains"
)

// Verdict is the classifier output.
type Verdict struct {
	Matched []string        `json:"matched"`
	Risk    models.RiskTier `json:"risk"`
}

// Flagged reports whether any rule matched.
func (v Verdict) Flagged() bool {
	return len(v.Matched) > 0
}

var clean = Verdict{Matched: []string{}, Risk: models.RiskNone}

// Classify is a pure function of its inputs. Evaluation order: empty text, blacklist,
// ignore patterns, then all three tiers. Matches are returned high tier first.
func Classify(text string, rs rules.RuleSet, blacklist []string, mode BlacklistMode) Verdict {
	msg := strings.ToLower(strings.TrimSpace(text))
	if msg == "" {
		return clean
	}

	for _, phrase := range blacklist {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase == "" {
			continue
		}
		if phrase == msg || (mode == BlacklistContains && strings.Contains(msg, phrase)) {
			return clean
		}
	}

	for _, p := range rs.Ignore {
		if p != "" && strings.Contains(msg, p) {
			return clean
		}
	}

	high := matchTier(msg, rs.High)
	medium := matchTier(msg, rs.Medium)
	low := matchTier(msg, rs.Low)

	risk := models.RiskNone
	switch {
	case len(high) > 0:
		risk = models.RiskHigh
	case len(medium) > 0:
		risk = models.RiskMedium
	case len(low) > 0:
		risk = models.RiskLow
	}

	matched := make([]string, 0, len(high)+len(medium)+len(low))
	matched = append(matched, high...)
	matched = append(matched, medium...)
	matched = append(matched, low...)
	return Verdict{Matched: matched, Risk: risk}
}

func matchTier(msg string, terms []string) []string {
	var hits []string
	for _, term := range terms {
		if term != "" && strings.Contains(msg, term) {
			hits = append(hits, term)
		}
	}
	return hits
}

// BlacklistSource supplies the current blacklist phrases.
type BlacklistSource interface {
	List() ([]string, error)
}

// Classifier binds Classify to live rule and blacklist stores.
type Classifier struct {
	Rules     *rules.Store
	Blacklist BlacklistSource
	Mode      BlacklistMode
	logger    *logrus.Logger
}

// NewClassifier creates a classifier. An unknown mode falls back to exact matching.
func NewClassifier(rs *rules.Store, bl BlacklistSource, mode BlacklistMode, logger *logrus.Logger) *Classifier {
	if mode != BlacklistContains {
		mode = BlacklistExact
	}
	return &Classifier{Rules: rs, Blacklist: bl, Mode: mode, logger: logger}
}

// Classify reads the rule store and blacklist at call time. A blacklist read failure is
// logged and classification continues without suppression.
func (c *Classifier) Classify(text string) Verdict {
	var phrases []string
	if c.Blacklist != nil {
		list, err := c.Blacklist.List()
		if err != nil {
			c.logger.WithError(err).Error("Failed to read blacklist, classifying without it")
		} else {
			phrases = list
		}
	}
	return Classify(text, c.Rules.Current(), phrases, c.Mode)
}
