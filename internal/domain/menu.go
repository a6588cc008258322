package domain

// MenuOption is one selectable row of a rendered menu.
type MenuOption struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Emoji       string `json:"emoji,omitempty"`
}

// DetailView is the terminal payload rendered for a Detail entry.
type DetailView struct {
	Title    string  `json:"title"`
	Fields   []Field `json:"fields,omitempty"`
	ImageURL string  `json:"image_url,omitempty"`
}

// MenuView is the transport-agnostic rendering of a session's current state.
// Options preserve the catalog's declared order. Terminal means no further
// descent is offered.
type MenuView struct {
	Title    string       `json:"title"`
	Prompt   string       `json:"prompt,omitempty"`
	Options  []MenuOption `json:"options,omitempty"`
	Detail   *DetailView  `json:"detail,omitempty"`
	AtRoot   bool         `json:"at_root"`
	Terminal bool         `json:"terminal"`
	Closed   bool         `json:"closed"`
}

type Action string

const (
	ActionSelect Action = "select"
	ActionBack   Action = "back"
	ActionClose  Action = "close"
)

// SelectionEvent is one decoded user input routed to a session. Catalog
// rides along so a vanished session can restart at the right root.
type SelectionEvent struct {
	Key      SessionKey  `json:"key"`
	Catalog  CatalogKind `json:"catalog"`
	Action   Action      `json:"action"`
	ChoiceID string      `json:"choice_id,omitempty"`
}
