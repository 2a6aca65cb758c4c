package notify

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/signalbox/internal/models"
)

// Attachment colors by event kind.
const (
	colorNewRelease = "#36a64f"
	colorRepublish  = "#f2c744"
	colorTest       = "#439fe0"
)

// postWebhook is swappable in tests.
type postWebhook func(ctx context.Context, url string, msg *slackapi.WebhookMessage) error

// SlackSender delivers release events to a Slack incoming webhook.
type SlackSender struct {
	post postWebhook
}

// Send posts one formatted webhook message.
func (s *SlackSender) Send(ctx context.Context, notifier models.Notifier, event Event) error {
	post := s.post
	if post == nil {
		post = slackapi.PostWebhookContext
	}

	if err := post(ctx, notifier.URL, slackMessage(event)); err != nil {
		return fmt.Errorf("slack %s: post webhook: %w", notifier.Name, err)
	}
	return nil
}

// slackMessage formats an event as a webhook message with one attachment.
func slackMessage(event Event) *slackapi.WebhookMessage {
	rel := event.Release

	var title, color string
	switch event.Kind {
	case EventRepublish:
		title = fmt.Sprintf("Republished: %s %s", rel.TrackerName, rel.TagName)
		color = colorRepublish
	case EventTest:
		title = "Signalbox test notification"
		color = colorTest
	default:
		title = fmt.Sprintf("New release: %s %s", rel.TrackerName, rel.TagName)
		color = colorNewRelease
	}

	attachment := slackapi.Attachment{
		Color:     color,
		Title:     title,
		TitleLink: rel.URL,
		Fields: []slackapi.AttachmentField{
			{Title: "Tracker", Value: rel.TrackerName, Short: true},
			{Title: "Version", Value: rel.TagName, Short: true},
		},
	}
	if rel.ChannelName != "" {
		attachment.Fields = append(attachment.Fields,
			slackapi.AttachmentField{Title: "Channel", Value: rel.ChannelName, Short: true})
	}
	if rel.Prerelease {
		attachment.Fields = append(attachment.Fields,
			slackapi.AttachmentField{Title: "Prerelease", Value: "yes", Short: true})
	}

	return &slackapi.WebhookMessage{Attachments: []slackapi.Attachment{attachment}}
}
