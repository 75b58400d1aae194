package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	intake "github.com/phbpx/contact-intake"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSlack struct {
	channels []string
	err      error
}

func (f *fakeSlack) PostMessageContext(_ context.Context, channelID string, _ ...slack.MsgOption) (string, string, error) {
	f.channels = append(f.channels, channelID)
	return channelID, "1700000000.000100", f.err
}

func contact() intake.Contact {
	return intake.Contact{
		ID:            "id-1",
		Name:          "Jane <Doe>",
		Email:         "jane@example.com",
		Organization:  "IEM",
		InquiryType:   "clinical-demo",
		Message:       "Interested in a demo",
		AgreedToTerms: true,
		CreatedAt:     time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNewSlack_NotConfigured(t *testing.T) {
	_, err := NewSlack("", "#leads")
	assert.ErrorIs(t, err, intake.ErrNotConfigured)

	_, err = NewSlack("xoxb-token", "")
	assert.ErrorIs(t, err, intake.ErrNotConfigured)
}

func TestSlack_Notify(t *testing.T) {
	fake := &fakeSlack{}
	n := NewSlackWithClient(fake, "C0LEADS")

	require.NoError(t, n.Notify(context.Background(), contact()))
	assert.Equal(t, []string{"C0LEADS"}, fake.channels)

	fake.err = errors.New("channel_not_found")
	assert.ErrorContains(t, n.Notify(context.Background(), contact()), "channel_not_found")
}

func TestContactBlocks(t *testing.T) {
	blocks := contactBlocks(contact())
	require.Len(t, blocks, 5)

	section, ok := blocks[1].(*slack.SectionBlock)
	require.True(t, ok)
	require.Len(t, section.Fields, 5, "role is left out when empty")
	assert.Equal(t, "*Name:*\nJane &lt;Doe&gt;", section.Fields[0].Text)
	assert.Equal(t, "*Organization:*\nIEM", section.Fields[4].Text)

	assert.Equal(t, "New clinical-demo inquiry from Jane &lt;Doe&gt; (jane@example.com)", fallbackText(contact()))
}
