package discord

import (
	"context"
	"flagwatch/backend/internal/models"
	"io"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stateClient(t *testing.T, guilds ...*discordgo.Guild) *Client {
	t.Helper()
	st := discordgo.NewState()
	for _, g := range guilds {
		require.NoError(t, st.GuildAdd(g))
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &Client{Session: &discordgo.Session{State: st}, logger: logger}
}

func TestCommunities_SortedByID(t *testing.T) {
	c := stateClient(t,
		&discordgo.Guild{ID: "900000000000000002", Name: "Two"},
		&discordgo.Guild{ID: "1000000000000000001", Name: "Long"},
		&discordgo.Guild{ID: "900000000000000001", Name: "One"},
	)

	got, err := c.Communities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.Community{
		{ID: "900000000000000001", Name: "One"},
		{ID: "900000000000000002", Name: "Two"},
		{ID: "1000000000000000001", Name: "Long"},
	}, got)

	assert.Equal(t, "Two", c.CommunityName("900000000000000002"))
	assert.Equal(t, "", c.CommunityName("900000000000000009"))
}

func TestCommunities_HonoursCancelledContext(t *testing.T) {
	c := stateClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Communities(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
