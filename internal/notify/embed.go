package notify

import (
	"flagwatch/backend/internal/config"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
)

// Truncate shortens s to at most limit characters, ending in "..." when cut.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-3]) + "..."
}

// BuildEmbed renders an alert as a Discord embed.
func BuildEmbed(alert Alert) *discordgo.MessageEmbed {
	ev := alert.Event

	server := ev.CommunityName
	if server == "" {
		server = "Unknown"
	}
	matched := strings.Join(ev.MatchedTerms, ", ")
	if matched == "" {
		matched = "None"
	}
	content := Truncate(ev.Content, config.EmbedFieldLimit)
	if content == "" {
		content = "*Empty*"
	}

	embed := &discordgo.MessageEmbed{
		Color:     config.RiskColors[string(alert.Channel)],
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "User", Value: fmt.Sprintf("%s (%s)", ev.AuthorDisplayName, ev.AuthorID), Inline: true},
		{Name: "Server", Value: server, Inline: true},
		{Name: "Time", Value: fmt.Sprintf("<t:%d:F>", ev.Timestamp.Unix()), Inline: true},
	}
	if alert.Channel == ChannelWatchlist {
		embed.Title = "👁️ Watchlist Alert"
	} else {
		embed.Title = "⚠️ Flagged Message"
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Risk Level", Value: strings.ToUpper(string(ev.Risk)), Inline: true})
	}
	fields = append(fields,
		&discordgo.MessageEmbedField{Name: "Matched Keywords", Value: Truncate(matched, config.EmbedFieldLimit)},
		&discordgo.MessageEmbedField{Name: "Message Content", Value: content},
		&discordgo.MessageEmbedField{Name: "Jump Link", Value: fmt.Sprintf("[Click to view](%s)", ev.Link)},
	)
	if alert.Channel == ChannelWatchlist {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Note", Value: "User is on the Watchlist."})
	}
	embed.Fields = fields
	return embed
}

// BuildWebhookParams wraps the embed in a webhook execute payload.
func BuildWebhookParams(alert Alert) *discordgo.WebhookParams {
	return &discordgo.WebhookParams{Embeds: []*discordgo.MessageEmbed{BuildEmbed(alert)}}
}
