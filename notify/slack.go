// Package notify announces saved contacts to the team.
package notify

import (
	"context"
	"fmt"
	"strings"

	intake "github.com/phbpx/contact-intake"
	"github.com/slack-go/slack"
)

// SlackAPI is the part of the Slack client the notifier uses.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Slack posts one message per contact to a channel.
type Slack struct {
	client  SlackAPI
	channel string
}

// NewSlack returns intake.ErrNotConfigured when token or channel is missing.
func NewSlack(token, channel string) (*Slack, error) {
	if token == "" || channel == "" {
		return nil, fmt.Errorf("slack notifier: %w", intake.ErrNotConfigured)
	}
	return NewSlackWithClient(slack.New(token), channel), nil
}

// NewSlackWithClient uses an existing client.
func NewSlackWithClient(client SlackAPI, channel string) *Slack {
	return &Slack{
		client:  client,
		channel: channel,
	}
}

func (s *Slack) Notify(ctx context.Context, c intake.Contact) error {
	_, _, err := s.client.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(fallbackText(c), false),
		slack.MsgOptionBlocks(contactBlocks(c)...),
	)
	if err != nil {
		return fmt.Errorf("posting contact %s to slack: %w", c.ID, err)
	}
	return nil
}

func fallbackText(c intake.Contact) string {
	return escape(fmt.Sprintf("New %s inquiry from %s (%s)", c.InquiryType, c.Name, c.Email))
}

func contactBlocks(c intake.Contact) []slack.Block {
	fields := []*slack.TextBlockObject{
		mrkdwn(fmt.Sprintf("*Name:*\n%s", escape(c.Name))),
		mrkdwn(fmt.Sprintf("*Email:*\n%s", escape(c.Email))),
		mrkdwn(fmt.Sprintf("*Inquiry:*\n%s", escape(c.InquiryType))),
		mrkdwn(fmt.Sprintf("*Submitted:*\n%s", c.CreatedAt.Format("January 2, 2006 at 3:04 PM MST"))),
	}
	if c.Organization != "" {
		fields = append(fields, mrkdwn(fmt.Sprintf("*Organization:*\n%s", escape(c.Organization))))
	}
	if c.Role != "" {
		fields = append(fields, mrkdwn(fmt.Sprintf("*Role:*\n%s", escape(c.Role))))
	}

	return []slack.Block{
		slack.NewHeaderBlock(
			slack.NewTextBlockObject(slack.PlainTextType, "📩 New contact submission", false, false),
		),
		slack.NewSectionBlock(nil, fields, nil),
		slack.NewDividerBlock(),
		slack.NewSectionBlock(
			mrkdwn(fmt.Sprintf(">>> %s", escape(c.Message))),
			nil, nil,
		),
		slack.NewContextBlock("",
			mrkdwn(fmt.Sprintf("Contact ID: `%s`", c.ID)),
		),
	}
}

func mrkdwn(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}

// escape neutralises the characters Slack treats as control sequences.
func escape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}
