package render

import (
	"fmt"

	"hll/contentbot/internal/catalog"
	"hll/contentbot/internal/domain"
	"hll/contentbot/internal/navigation"
)

// Option and text limits of the menu transport. These mirror the component
// limits of the chat platform; the renderer enforces them so no caller has
// to.
const (
	MaxOptions   = 25
	MaxLabelLen  = 100
	MaxDescLen   = 100
	MaxFieldLen  = 1024
	MaxMenuItems = 12 // listed by name on the persistent browser message
)

// Renderer turns a machine's current state into a transport-agnostic
// MenuView. assetURL resolves an image file reference to a URL
// (attachment:// or external).
type Renderer struct {
	store    *catalog.Store
	assetURL func(string) string
}

func NewRenderer(store *catalog.Store, assetURL func(string) string) *Renderer {
	if assetURL == nil {
		assetURL = func(name string) string { return "attachment://" + name }
	}
	return &Renderer{store: store, assetURL: assetURL}
}

// Render produces the view for the machine's current position.
func (r *Renderer) Render(m *navigation.Machine) domain.MenuView {
	if m.Closed() {
		return r.ClosedView()
	}

	current, ok := m.Current()
	if !ok {
		return r.rootView(m.Catalog(), m.Options())
	}

	view := domain.MenuView{
		Title:   current.DisplayName,
		Options: r.options(m.Options()),
	}
	if current.Payload.Title != "" {
		view.Title = current.Payload.Title
	}

	switch current.Kind {
	case domain.KindFaction:
		view.Prompt = fmt.Sprintf("Choose from %s:", current.DisplayName)
	case domain.KindCategory:
		view.Prompt = fmt.Sprintf("Browse %s:", current.DisplayName)
	case domain.KindItem:
		view.Prompt = "Choose a variant below to view detailed tactical information."
	case domain.KindDetail:
		view.Terminal = true
		view.Options = nil
		view.Detail = r.detail(current)
	}
	return view
}

// Root renders the top-level menu of a catalog without a session, for the
// persistent browser message.
func (r *Renderer) Root(kind domain.CatalogKind) domain.MenuView {
	return r.rootView(kind, r.store.Roots(kind))
}

// ClosedView is what a user sees after close or expiry.
func (r *Renderer) ClosedView() domain.MenuView {
	return domain.MenuView{
		Title:    "Browser closed",
		Prompt:   "This browsing session has ended. Start a new one any time.",
		Closed:   true,
		Terminal: true,
	}
}

func (r *Renderer) rootView(kind domain.CatalogKind, roots []*domain.CatalogEntry) domain.MenuView {
	return domain.MenuView{
		Title:   fmt.Sprintf("🧭 %s Browser", kind.GetCatalogName()),
		Prompt:  fmt.Sprintf("**%d entries available** • Select one below to get started", len(roots)),
		Options: r.options(roots),
		AtRoot:  true,
	}
}

func (r *Renderer) options(entries []*domain.CatalogEntry) []domain.MenuOption {
	if len(entries) > MaxOptions {
		entries = entries[:MaxOptions]
	}
	options := make([]domain.MenuOption, 0, len(entries))
	for _, e := range entries {
		options = append(options, domain.MenuOption{
			ID:          e.ID,
			Label:       truncate(e.DisplayName, MaxLabelLen),
			Description: truncate(e.Payload.ShortDescription, MaxDescLen),
			Emoji:       e.Payload.Emoji,
		})
	}
	return options
}

func (r *Renderer) detail(e *domain.CatalogEntry) *domain.DetailView {
	d := &domain.DetailView{Title: e.Payload.Title}
	if d.Title == "" {
		d.Title = e.DisplayName
	}
	for _, f := range e.Payload.Fields {
		d.Fields = append(d.Fields, domain.Field{
			Name:   f.Name,
			Value:  truncate(f.Value, MaxFieldLen),
			Inline: f.Inline,
		})
	}
	if e.Payload.ImageFile != "" {
		d.ImageURL = r.assetURL(e.Payload.ImageFile)
	}
	return d
}

// truncate limits s to limit characters. The cut counts runes, not bytes;
// slicing bytes could split a multibyte character and emit invalid UTF-8.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}
