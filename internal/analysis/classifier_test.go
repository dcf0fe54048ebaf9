package analysis_test

import (
	"errors"
	"flagwatch/backend/internal/analysis"
	"flagwatch/backend/internal/models"
	"flagwatch/backend/internal/rules"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func testRules() rules.RuleSet {
	return rules.Normalize(rules.RuleSet{
		Low:    []string{"spam", "ass"},
		Medium: []string{"scam"},
		High:   []string{"threat"},
		Ignore: rules.DefaultIgnorePatterns,
	})
}

func TestClassify_TierPrecedenceAndOrdering(t *testing.T) {
	v := analysis.Classify("this is a scam threat", testRules(), nil, analysis.BlacklistExact)

	assert.Equal(t, []string{"threat", "scam"}, v.Matched)
	assert.Equal(t, models.RiskHigh, v.Risk)
	assert.True(t, v.Flagged())
}

func TestClassify_HighWinsRegardlessOfCount(t *testing.T) {
	v := analysis.Classify("spam spam scam, a threat", testRules(), nil, analysis.BlacklistExact)

	assert.Equal(t, models.RiskHigh, v.Risk)
	assert.Equal(t, []string{"threat", "scam", "spam"}, v.Matched)
}

func TestClassify_Cases(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		blacklist []string
		mode      analysis.BlacklistMode
		matched   []string
		risk      models.RiskTier
	}{
		{"empty", "", nil, analysis.BlacklistExact, []string{}, models.RiskNone},
		{"whitespace only", "   \t\n", nil, analysis.BlacklistExact, []string{}, models.RiskNone},
		{"no match", "hello there", nil, analysis.BlacklistExact, []string{}, models.RiskNone},
		{"low only", "SPAM!!", nil, analysis.BlacklistExact, []string{"spam"}, models.RiskLow},
		{"substring not word", "they tried to assassinate him", nil, analysis.BlacklistExact, []string{"ass"}, models.RiskLow},
		{"blacklist exact normalized", "  All Good Here ", []string{"all good here"}, analysis.BlacklistExact, []string{}, models.RiskNone},
		{"blacklist beats high tier", "Threat Level", []string{"THREAT LEVEL"}, analysis.BlacklistExact, []string{}, models.RiskNone},
		{"exact mode ignores containment", "a scam here", []string{"scam"}, analysis.BlacklistExact, []string{"scam"}, models.RiskMedium},
		{"contains mode suppresses", "a scam here", []string{"scam"}, analysis.BlacklistContains, []string{}, models.RiskNone},
		{"ignore pattern", "threat.gif", nil, analysis.BlacklistExact, []string{}, models.RiskNone},
		{"ignore url", "scam at example.com", nil, analysis.BlacklistExact, []string{}, models.RiskNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := analysis.Classify(tt.text, testRules(), tt.blacklist, tt.mode)
			assert.Equal(t, tt.matched, v.Matched)
			assert.Equal(t, tt.risk, v.Risk)
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	rs := testRules()
	first := analysis.Classify("scam threat spam", rs, []string{"x"}, analysis.BlacklistExact)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, analysis.Classify("scam threat spam", rs, []string{"x"}, analysis.BlacklistExact))
	}
}

type MockBlacklist struct {
	mock.Mock
}

func (m *MockBlacklist) List() ([]string, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func TestClassifier_ReadsBlacklistAtCallTime(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	bl := new(MockBlacklist)
	bl.On("List").Return([]string{"scam threat"}, nil).Once()
	bl.On("List").Return(nil, errors.New("disk gone")).Once()

	c := analysis.NewClassifier(rules.NewStaticStore(testRules()), bl, "bogus", logger)
	assert.Equal(t, analysis.BlacklistExact, c.Mode)

	assert.False(t, c.Classify("scam threat").Flagged())
	// read failure classifies without suppression
	assert.Equal(t, models.RiskHigh, c.Classify("scam threat").Risk)
	bl.AssertExpectations(t)
}
