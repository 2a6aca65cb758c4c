package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/signalbox/internal/models"
)

// Embed colors by event kind.
const (
	embedNewRelease = 0x36a64f
	embedRepublish  = 0xf2c744
	embedTest       = 0x439fe0
)

// executeWebhook is swappable in tests.
type executeWebhook func(ctx context.Context, id, token string, params *discordgo.WebhookParams) error

// DiscordSender delivers release events through a Discord webhook. The
// webhook id and token are parsed from the configured URL.
type DiscordSender struct {
	execute executeWebhook
}

// Send executes the webhook with one embed.
func (s *DiscordSender) Send(ctx context.Context, notifier models.Notifier, event Event) error {
	execute := s.execute
	if execute == nil {
		execute = executeDiscordWebhook
	}

	id, token, err := parseDiscordWebhookURL(notifier.URL)
	if err != nil {
		return fmt.Errorf("discord %s: %w", notifier.Name, err)
	}

	params := &discordgo.WebhookParams{Embeds: []*discordgo.MessageEmbed{discordEmbed(event)}}
	if err := execute(ctx, id, token, params); err != nil {
		return fmt.Errorf("discord %s: execute webhook: %w", notifier.Name, err)
	}
	return nil
}

// executeDiscordWebhook is the production path through discordgo. Webhook
// execution needs no bot token, so the session is unauthenticated.
func executeDiscordWebhook(ctx context.Context, id, token string, params *discordgo.WebhookParams) error {
	session, err := discordgo.New("")
	if err != nil {
		return err
	}
	_, err = session.WebhookExecute(id, token, true, params, discordgo.WithContext(ctx))
	return err
}

// parseDiscordWebhookURL extracts the webhook id and token from a
// .../api/webhooks/{id}/{token} URL.
func parseDiscordWebhookURL(rawURL string) (id, token string, err error) {
	const marker = "/webhooks/"
	idx := strings.Index(rawURL, marker)
	if idx < 0 {
		return "", "", fmt.Errorf("url %q is not a discord webhook", rawURL)
	}
	rest := strings.Trim(rawURL[idx+len(marker):], "/")
	id, token, ok := strings.Cut(rest, "/")
	if !ok || id == "" || token == "" {
		return "", "", fmt.Errorf("url %q is missing the webhook id or token", rawURL)
	}
	if slash := strings.IndexByte(token, '/'); slash >= 0 {
		token = token[:slash]
	}
	return id, token, nil
}

// discordEmbed formats an event as a message embed.
func discordEmbed(event Event) *discordgo.MessageEmbed {
	rel := event.Release

	var title string
	var color int
	switch event.Kind {
	case EventRepublish:
		title = fmt.Sprintf("Republished: %s %s", rel.TrackerName, rel.TagName)
		color = embedRepublish
	case EventTest:
		title = "Signalbox test notification"
		color = embedTest
	default:
		title = fmt.Sprintf("New release: %s %s", rel.TrackerName, rel.TagName)
		color = embedNewRelease
	}

	embed := &discordgo.MessageEmbed{
		Title: title,
		URL:   rel.URL,
		Color: color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Tracker", Value: rel.TrackerName, Inline: true},
			{Name: "Version", Value: rel.TagName, Inline: true},
		},
	}
	if rel.ChannelName != "" {
		embed.Fields = append(embed.Fields,
			&discordgo.MessageEmbedField{Name: "Channel", Value: rel.ChannelName, Inline: true})
	}
	return embed
}
