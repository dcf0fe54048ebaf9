package models_test

import (
	"encoding/json"
	"flagwatch/backend/internal/models"
	"reflect"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRiskTierRank verifies the precedence high > medium > low > none.
func TestRiskTierRank(t *testing.T) {
	assert.Greater(t, models.RiskHigh.Rank(), models.RiskMedium.Rank())
	assert.Greater(t, models.RiskMedium.Rank(), models.RiskLow.Rank())
	assert.Greater(t, models.RiskLow.Rank(), models.RiskNone.Rank())
	assert.Equal(t, 0, models.RiskTier("bogus").Rank())
}

func TestParseRiskTier(t *testing.T) {
	tests := []struct {
		in   string
		want models.RiskTier
	}{
		{"hi", models.RiskHigh},
		{"HIGH", models.RiskHigh},
		{"med", models.RiskMedium},
		{" medium ", models.RiskMedium},
		{"low", models.RiskLow},
		{"", models.RiskNone},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := models.ParseRiskTier(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := models.ParseRiskTier("critical")
	assert.True(t, errors.Is(err, models.ErrUnknownRiskTier))
	assert.Contains(t, err.Error(), `"critical"`)
}

// TestNewClassifiedEvent verifies link construction and that the matched slice is copied.
func TestNewClassifiedEvent(t *testing.T) {
	// Arrange
	received := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("EET", 2*3600))
	msg := models.InboundMessage{
		CommunityID:       "111111111111111111",
		CommunityName:     "Test Guild",
		AuthorID:          "222222222222222222",
		AuthorDisplayName: "alice",
		Content:           "a threat",
		MessageID:         "333333333333333333",
		ChannelID:         "444444444444444444",
		ReceivedAt:        received,
	}
	matched := []string{"threat"}

	// Act
	ev := models.NewClassifiedEvent(msg, matched, models.RiskHigh)
	matched[0] = "mutated"

	// Assert
	assert.Equal(t, "https://discord.com/channels/111111111111111111/444444444444444444/333333333333333333", ev.Link)
	assert.Equal(t, []string{"threat"}, ev.MatchedTerms)
	assert.Equal(t, time.UTC, ev.Timestamp.Location())
	assert.True(t, ev.Timestamp.Equal(received))
	assert.Equal(t, "111111111111111111/444444444444444444/333333333333333333", ev.Fingerprint())
}

// TestClassifiedEventJSONKeys guards the on-disk case file format.
func TestClassifiedEventJSONKeys(t *testing.T) {
	ev := models.ClassifiedEvent{AuthorID: "1", Risk: models.RiskLow, MatchedTerms: []string{"spam"}}

	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	for _, key := range []string{"guildId", "guildName", "userId", "username", "timestamp", "content", "matched", "risk", "link"} {
		assert.Contains(t, fields, key)
	}
	assert.NotContains(t, fields, "messageId", "empty message ID is omitted")

	typ := reflect.TypeOf(ev)
	f, ok := typ.FieldByName("MatchedTerms")
	require.True(t, ok)
	assert.Equal(t, "matched", f.Tag.Get("json"))
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		valid bool
	}{
		{"17 digits", "12345678901234567", true},
		{"19 digits", "1234567890123456789", true},
		{"too short", "1234", false},
		{"too long", "12345678901234567890", false},
		{"letters", "abcdefghijklmnopq", false},
		{"signed", "-1234567890123456", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := models.ValidateID(tt.id)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, models.ErrInvalidID))
		})
	}
}
