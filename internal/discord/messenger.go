package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"hll/contentbot/internal/domain"
	"hll/contentbot/internal/entrypoint"
)

// Messenger implements the coordinator's message persistence boundary on top
// of the gateway session.
type Messenger struct {
	session *discordgo.Session
}

func NewMessenger(session *discordgo.Session) *Messenger {
	return &Messenger{session: session}
}

var _ entrypoint.Messenger = (*Messenger)(nil)

func (m *Messenger) PostBrowser(ctx context.Context, channelID string, view domain.MenuView, customID string) (string, error) {
	msg, err := m.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{buildEmbed(view)},
		Components: entryComponents(view, customID),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to send browser message to channel %s: %w", channelID, err)
	}
	return msg.ID, nil
}

func (m *Messenger) EditBrowser(ctx context.Context, channelID, messageID string, view domain.MenuView, customID string) error {
	embeds := []*discordgo.MessageEmbed{buildEmbed(view)}
	components := entryComponents(view, customID)

	edit := discordgo.NewMessageEdit(channelID, messageID)
	edit.Embeds = &embeds
	edit.Components = &components

	_, err := m.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to edit browser message %s in channel %s: %w", messageID, channelID, err)
	}
	return nil
}

// MessageExists distinguishes "deleted" from transport failure: unknown
// message/channel answers false, anything else propagates as an error.
func (m *Messenger) MessageExists(ctx context.Context, channelID, messageID string) (bool, error) {
	_, err := m.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err == nil {
		return true, nil
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeUnknownMessage, discordgo.ErrCodeUnknownChannel:
			return false, nil
		}
	}
	return false, fmt.Errorf("failed to fetch message %s in channel %s: %w", messageID, channelID, err)
}
