package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"hll/contentbot/internal/assets"
	"hll/contentbot/internal/config"
	"hll/contentbot/internal/domain"
	"hll/contentbot/internal/entrypoint"
	"hll/contentbot/internal/render"
	"hll/contentbot/internal/service"
)

// Bot is the gateway integration: it registers the slash commands, routes
// interactions to the browse service and the coordinator, and answers every
// user action with an ephemeral response.
type Bot struct {
	session     *discordgo.Session
	svc         *service.Service
	coordinator *entrypoint.Coordinator
	assets      *assets.Resolver
	cfg         config.DiscordConfig
}

func New(cfg config.DiscordConfig, assets *assets.Resolver) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	b := &Bot{
		session: session,
		assets:  assets,
		cfg:     cfg,
	}

	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		log.Infof("✅ Logged in as %s, connected to %d guilds", r.User.String(), len(r.Guilds))
	})
	session.AddHandler(b.onInteraction)

	return b, nil
}

// SetService and SetCoordinator break the construction cycle: both need the
// messenger built on this bot's gateway session, while the bot routes
// interactions back to them.
func (b *Bot) SetService(svc *service.Service) {
	b.svc = svc
}

func (b *Bot) SetCoordinator(c *entrypoint.Coordinator) {
	b.coordinator = c
}

// Session exposes the underlying gateway session for the messenger.
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

var commands = []*discordgo.ApplicationCommand{
	{
		Name:        "maps",
		Description: "View tactical maps (personal, temporary)",
	},
	{
		Name:        "tanks",
		Description: "View tank guides and tactical information",
	},
	{
		Name:        "browser-setup",
		Description: "Create a persistent content browser in a channel",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "catalog",
				Description: "Which catalog the browser presents",
				Required:    true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "Tactical Maps", Value: string(domain.CatalogMaps)},
					{Name: "Tank Guides", Value: string(domain.CatalogTanks)},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionChannel,
				Name:        "channel",
				Description: "Channel to post the browser in (defaults to current channel)",
				Required:    false,
			},
		},
	},
	{
		Name:        "browser-refresh",
		Description: "Re-render persistent browsers against the loaded catalog",
	},
}

// Open connects to the gateway and registers the slash commands.
func (b *Bot) Open() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open gateway connection: %w", err)
	}

	appID := b.session.State.User.ID
	for _, cmd := range commands {
		if _, err := b.session.ApplicationCommandCreate(appID, b.cfg.GuildID, cmd); err != nil {
			return fmt.Errorf("failed to register command %s: %w", cmd.Name, err)
		}
	}
	log.Infof("✅ Registered %d commands", len(commands))
	return nil
}

func (b *Bot) Close() error {
	return b.session.Close()
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.onCommand(i)
	case discordgo.InteractionMessageComponent:
		b.onComponent(i)
	}
}

func (b *Bot) onCommand(i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	log.Infof("🚀 /%s triggered by %s", data.Name, interactionUserID(i))

	switch data.Name {
	case "maps":
		b.startBrowser(i, domain.CatalogMaps)
	case "tanks":
		b.startBrowser(i, domain.CatalogTanks)
	case "browser-setup":
		b.setupBrowser(i)
	case "browser-refresh":
		b.refreshBrowsers(i)
	default:
		b.respondText(i, "❌ Unknown command.")
	}
}

// startBrowser opens a fresh private session at the root menu of a catalog.
// The key binds the user to this exact invocation, so running the command
// twice gives two independent browsers.
func (b *Bot) startBrowser(i *discordgo.InteractionCreate, kind domain.CatalogKind) {
	key := domain.NewSessionKey(interactionUserID(i), i.ID)
	view := b.svc.StartSession(key, kind)
	b.respondView(i, view, kind, key, false)
}

func (b *Bot) setupBrowser(i *discordgo.InteractionCreate) {
	var (
		kind      domain.CatalogKind
		channelID = i.ChannelID
	)
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "catalog":
			kind = domain.CatalogKind(opt.StringValue())
		case "channel":
			channelID = opt.ChannelValue(nil).ID
		}
	}
	if !kind.Valid() {
		b.respondText(i, "❌ Unknown catalog.")
		return
	}

	ep, err := b.coordinator.Setup(context.Background(), channelID, kind, canManageBrowsers(i))
	if err != nil {
		if errors.Is(err, domain.ErrPermissionDenied) {
			b.respondText(i, "❌ You need the Manage Messages permission to set up persistent browsers.")
			return
		}
		log.Errorf("❌ Browser setup failed: %v", err)
		b.respondText(i, "❌ Could not create the persistent browser. Please try again later.")
		return
	}

	b.respondText(i, fmt.Sprintf(
		"✅ **Persistent %s browser created** in <#%s>!\n"+
			"• Always available to every member\n"+
			"• Personal responses only, no interference between users\n"+
			"💡 Tip: pin the message for easy access.",
		ep.Catalog.GetCatalogName(), ep.ChannelID))
}

func (b *Bot) refreshBrowsers(i *discordgo.InteractionCreate) {
	if !canManageBrowsers(i) {
		b.respondText(i, "❌ You need the Manage Messages permission to refresh browsers.")
		return
	}

	queued, err := b.coordinator.RequestRefresh(context.Background())
	if err != nil {
		log.Errorf("❌ Browser refresh failed: %v", err)
		b.respondText(i, "❌ Could not queue the refresh. Please try again later.")
		return
	}
	b.respondText(i, fmt.Sprintf("🔄 Queued refresh for %d persistent browsers.", queued))
}

func (b *Bot) onComponent(i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()
	if !render.IsBrowserComponent(data.CustomID) {
		return
	}

	// A pick on a persistent entry point spawns a fresh private session and
	// immediately descends into the chosen entry.
	if render.IsEntryPointComponent(data.CustomID) {
		_, kind, err := render.ParseEntryPointID(data.CustomID)
		if err != nil || len(data.Values) == 0 {
			log.Warnf("⚠️ Malformed entry-point interaction: %v", err)
			b.respondText(i, "❌ Could not open that entry. Please try again.")
			return
		}

		sess := b.coordinator.OnInteraction(kind, interactionUserID(i), i.ID)
		view, err := b.svc.HandleSelection(domain.SelectionEvent{
			Key:      sess.Key,
			Catalog:  kind,
			Action:   domain.ActionSelect,
			ChoiceID: data.Values[0],
		})
		if err != nil {
			b.respondBusy(i)
			return
		}
		b.respondView(i, view, kind, sess.Key, false)
		return
	}

	ev, err := render.DecodeSelection(data.CustomID, data.Values)
	if err != nil {
		log.Warnf("⚠️ Malformed component interaction: %v", err)
		b.respondText(i, "❌ Could not process that selection. Please try again.")
		return
	}

	view, err := b.svc.HandleSelection(ev)
	if err != nil {
		b.respondBusy(i)
		return
	}
	b.respondView(i, view, ev.Catalog, ev.Key, true)
}

// respondView answers with an ephemeral rendering of the view; update edits
// the existing ephemeral message in place.
func (b *Bot) respondView(i *discordgo.InteractionCreate, view domain.MenuView, kind domain.CatalogKind, key domain.SessionKey, update bool) {
	responseType := discordgo.InteractionResponseChannelMessageWithSource
	if update {
		responseType = discordgo.InteractionResponseUpdateMessage
	}

	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: responseType,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{buildEmbed(view)},
			Components: sessionComponents(view, kind, key),
			Files:      attachmentFiles(view, b.assets),
			Flags:      discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Errorf("❌ Failed to respond to interaction: %v", err)
	}
}

func (b *Bot) respondText(i *discordgo.InteractionCreate, msg string) {
	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Errorf("❌ Failed to respond to interaction: %v", err)
	}
}

func (b *Bot) respondBusy(i *discordgo.InteractionCreate) {
	b.respondText(i, "⏳ That browser is still working on your last action. Please try again in a moment.")
}

// interactionUserID works in guild channels (Member) and DMs (User).
func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// canManageBrowsers is the single capability check of the system: persistent
// browsers are managed by members who can manage messages.
func canManageBrowsers(i *discordgo.InteractionCreate) bool {
	return i.Member != nil && i.Member.Permissions&discordgo.PermissionManageMessages != 0
}
