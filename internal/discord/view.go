package discord

import (
	"os"
	"strings"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"hll/contentbot/internal/assets"
	"hll/contentbot/internal/domain"
	"hll/contentbot/internal/render"
)

const embedColor = 0x5865F2

// buildEmbed translates a MenuView into the platform's embed shape.
func buildEmbed(view domain.MenuView) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       view.Title,
		Description: view.Prompt,
		Color:       embedColor,
	}

	if view.Detail != nil {
		embed.Title = view.Detail.Title
		for _, f := range view.Detail.Fields {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name:   f.Name,
				Value:  f.Value,
				Inline: f.Inline,
			})
		}
		if view.Detail.ImageURL != "" {
			embed.Image = &discordgo.MessageEmbedImage{URL: view.Detail.ImageURL}
		}
	}
	return embed
}

func selectOptions(options []domain.MenuOption) []discordgo.SelectMenuOption {
	out := make([]discordgo.SelectMenuOption, 0, len(options))
	for _, o := range options {
		opt := discordgo.SelectMenuOption{
			Label:       o.Label,
			Value:       o.ID,
			Description: o.Description,
		}
		if o.Emoji != "" {
			opt.Emoji = &discordgo.ComponentEmoji{Name: o.Emoji}
		}
		out = append(out, opt)
	}
	return out
}

// entryComponents builds the static dropdown of a persistent browser
// message. The custom id never changes; every use spawns a fresh private
// session.
func entryComponents(view domain.MenuView, customID string) []discordgo.MessageComponent {
	if len(view.Options) == 0 {
		return nil
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					CustomID:    customID,
					Placeholder: "🎯 Select an entry to start a personal browser...",
					Options:     selectOptions(view.Options),
				},
			},
		},
	}
}

// sessionComponents builds the navigation controls of a private session
// view: the option dropdown plus back/close buttons.
func sessionComponents(view domain.MenuView, kind domain.CatalogKind, key domain.SessionKey) []discordgo.MessageComponent {
	if view.Closed {
		return nil
	}

	var rows []discordgo.MessageComponent
	if len(view.Options) > 0 && !view.Terminal {
		rows = append(rows, discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					CustomID:    render.NavCustomID(kind, key),
					Placeholder: "Choose an entry...",
					Options:     selectOptions(view.Options),
				},
			},
		})
	}

	buttons := []discordgo.MessageComponent{}
	if !view.AtRoot {
		buttons = append(buttons, discordgo.Button{
			Label:    "Back",
			Style:    discordgo.SecondaryButton,
			CustomID: render.BackCustomID(kind, key),
			Emoji:    &discordgo.ComponentEmoji{Name: "◀️"},
		})
	}
	buttons = append(buttons, discordgo.Button{
		Label:    "Close",
		Style:    discordgo.DangerButton,
		CustomID: render.CloseCustomID(kind, key),
		Emoji:    &discordgo.ComponentEmoji{Name: "✖️"},
	})
	rows = append(rows, discordgo.ActionsRow{Components: buttons})

	return rows
}

// attachmentFiles opens the local asset behind an attachment:// image
// reference, if any. External URLs need no upload.
func attachmentFiles(view domain.MenuView, resolver *assets.Resolver) []*discordgo.File {
	if view.Detail == nil || view.Detail.ImageURL == "" {
		return nil
	}
	name, ok := strings.CutPrefix(view.Detail.ImageURL, "attachment://")
	if !ok {
		return nil
	}
	path, ok := resolver.LocalPath(name)
	if !ok {
		log.Warnf("⚠️ Image %s referenced but not cached", name)
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		log.Errorf("❌ Failed to open asset %s: %v", path, err)
		return nil
	}
	return []*discordgo.File{{Name: name, Reader: f}}
}
