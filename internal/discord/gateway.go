package discord

import (
	"context"
	"flagwatch/backend/internal/commands"
	"flagwatch/backend/internal/models"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

// Submitter is satisfied by *pipeline.Service.
type Submitter interface {
	Submit(ctx context.Context, msg models.InboundMessage) error
}

// CommandHandler is satisfied by *commands.Router.
type CommandHandler interface {
	Handle(ctx context.Context, req commands.Request) (commands.Response, bool)
}

// Responder posts command output.
type Responder interface {
	Send(channelID, text string) error
	SendFile(channelID, path string) error
}

// Gateway turns MessageCreate events into commands and pipeline submissions.
type Gateway struct {
	Pipeline  Submitter
	Commands  CommandHandler
	Responder Responder
	// GuildName resolves guild names for the message log and alerts.
	GuildName func(guildID string) string
	// SelfID returns the observing account, whose own messages are skipped.
	SelfID func() string

	ctx    context.Context
	logger *logrus.Logger
}

// NewGateway Constructor. ctx bounds pipeline submissions.
func NewGateway(ctx context.Context, p Submitter, cmds CommandHandler, r Responder, logger *logrus.Logger) *Gateway {
	return &Gateway{
		Pipeline:  p,
		Commands:  cmds,
		Responder: r,
		GuildName: func(string) string { return "" },
		SelfID:    func() string { return "" },
		ctx:       ctx,
		logger:    logger,
	}
}

// Attach registers the gateway on c's session and wires name lookups to its state.
func (g *Gateway) Attach(c *Client) {
	g.GuildName = c.CommunityName
	g.SelfID = c.SelfID
	c.Session.AddHandler(g.onMessageCreate)
}

func (g *Gateway) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil {
		return
	}
	g.HandleMessage(m.Message)
}

// HandleMessage routes one message: commands are answered, everything else goes to the pipeline.
func (g *Gateway) HandleMessage(m *discordgo.Message) {
	if m.Author == nil || m.Author.ID == g.SelfID() {
		return
	}

	if resp, ok := g.Commands.Handle(g.ctx, ToRequest(m)); ok {
		g.respond(m.ChannelID, resp)
		return
	}

	msg := ToInbound(m, g.GuildName(m.GuildID))
	if err := g.Pipeline.Submit(g.ctx, msg); err != nil {
		g.logger.WithError(err).WithField("message_id", m.ID).Warn("Dropped message, pipeline is shutting down")
	}
}

func (g *Gateway) respond(channelID string, resp commands.Response) {
	log := g.logger.WithField("channel_id", channelID)
	for _, text := range resp.Messages {
		if err := g.Responder.Send(channelID, text); err != nil {
			log.WithError(err).Error("Failed to send command reply")
			return
		}
	}
	if resp.FilePath != "" {
		if err := g.Responder.SendFile(channelID, resp.FilePath); err != nil {
			log.WithError(err).Error("Failed to upload file")
		}
	}
}

// ToInbound strips the platform types from a message.
func ToInbound(m *discordgo.Message, guildName string) models.InboundMessage {
	msg := models.InboundMessage{
		CommunityID:   m.GuildID,
		CommunityName: guildName,
		Content:       m.Content,
		MessageID:     m.ID,
		ChannelID:     m.ChannelID,
		IsAutomated:   m.WebhookID != "",
		ReceivedAt:    time.Now().UTC(),
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
		msg.AuthorDisplayName = m.Author.String()
		msg.IsAutomated = msg.IsAutomated || m.Author.Bot
	}
	return msg
}

// ToRequest builds the command request for a message.
func ToRequest(m *discordgo.Message) commands.Request {
	req := commands.Request{
		CommunityID: m.GuildID,
		ChannelID:   m.ChannelID,
		Text:        m.Content,
	}
	if m.Author != nil {
		req.AuthorID = m.Author.ID
		req.AuthorName = m.Author.String()
	}
	if m.Member != nil {
		req.RoleIDs = m.Member.Roles
	}
	return req
}
