// Package discord adapts a discordgo gateway session to the pipeline, the command router and
// the mutual-community scanner.
package discord

import (
	"context"
	"flagwatch/backend/internal/models"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

// Intents needed to read guild and direct messages and to see guild membership.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsDirectMessages |
	discordgo.IntentMessageContent

// Client wraps the gateway session. It is the scanner's Directory and the command router's
// Replier and Names.
type Client struct {
	Session *discordgo.Session
	logger  *logrus.Logger
}

// NewClient prepares a bot session; nothing is opened until Open.
func NewClient(token string, logger *logrus.Logger) (*Client, error) {
	if !strings.HasPrefix(token, "Bot ") {
		token = "Bot " + token
	}
	s, err := discordgo.New(token)
	if err != nil {
		return nil, errors.Wrap(err, "create discord session")
	}
	s.Identify.Intents = Intents
	s.StateEnabled = true
	return &Client{Session: s, logger: logger}, nil
}

// Open connects to the gateway.
func (c *Client) Open() error {
	if err := c.Session.Open(); err != nil {
		return errors.Wrap(err, "open discord gateway")
	}
	c.logger.WithField("account", c.Session.State.User.String()).Info("Discord session opened")
	return nil
}

// Close disconnects from the gateway.
func (c *Client) Close() error {
	return c.Session.Close()
}

// SelfID is the observing account.
func (c *Client) SelfID() string {
	if c.Session.State == nil || c.Session.State.User == nil {
		return ""
	}
	return c.Session.State.User.ID
}

// Communities lists the guilds in the session state ordered by ID.
func (c *Client) Communities(ctx context.Context) ([]models.Community, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st := c.Session.State
	st.RLock()
	out := make([]models.Community, 0, len(st.Guilds))
	for _, g := range st.Guilds {
		out = append(out, models.Community{ID: g.ID, Name: g.Name})
	}
	st.RUnlock()

	sort.Slice(out, func(i, j int) bool { return lessID(out[i].ID, out[j].ID) })
	return out, nil
}

// lessID orders snowflakes numerically without parsing them.
func lessID(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// ProbeMembership fetches the guild member. A 404 means the user is not in the guild.
func (c *Client) ProbeMembership(ctx context.Context, communityID, userID string) (models.Member, bool, error) {
	m, err := c.Session.GuildMember(communityID, userID, discordgo.WithContext(ctx))
	if err != nil {
		if IsNotFound(err) {
			return models.Member{}, false, nil
		}
		return models.Member{}, false, errors.Wrapf(err, "guild member %s/%s", communityID, userID)
	}
	return models.Member{UserID: userID, DisplayName: memberTag(m)}, true, nil
}

// IsNotFound reports whether err is a REST 404.
func IsNotFound(err error) bool {
	var rest *discordgo.RESTError
	return errors.As(err, &rest) && rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound
}

func memberTag(m *discordgo.Member) string {
	if m == nil || m.User == nil {
		return ""
	}
	return m.User.String()
}

// Send posts text to a channel.
func (c *Client) Send(channelID, text string) error {
	_, err := c.Session.ChannelMessageSend(channelID, text)
	return errors.Wrapf(err, "send to channel %s", channelID)
}

// SendFile uploads the file at path to a channel.
func (c *Client) SendFile(channelID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	_, err = c.Session.ChannelFileSend(channelID, filepath.Base(path), f)
	return errors.Wrapf(err, "upload %s to channel %s", path, channelID)
}

// DirectMessage opens (or reuses) the DM channel with userID and posts text.
func (c *Client) DirectMessage(userID, text string) error {
	ch, err := c.Session.UserChannelCreate(userID)
	if err != nil {
		return errors.Wrapf(err, "open DM with %s", userID)
	}
	return c.Send(ch.ID, text)
}

// CommunityName returns the cached guild name, or "".
func (c *Client) CommunityName(communityID string) string {
	g, err := c.Session.State.Guild(communityID)
	if err != nil {
		return ""
	}
	return g.Name
}

// UserTag fetches the user's tag, or "" when the lookup fails.
func (c *Client) UserTag(ctx context.Context, userID string) string {
	u, err := c.Session.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		c.logger.WithError(err).WithField("user_id", userID).Debug("User lookup failed")
		return ""
	}
	return u.String()
}
