package domain

type Kind string

func (k Kind) String() string {
	return string(k)
}

const (
	KindFaction  Kind = "faction"
	KindCategory Kind = "category"
	KindItem     Kind = "item"
	KindDetail   Kind = "detail"
)

var Kinds = []Kind{
	KindFaction,
	KindCategory,
	KindItem,
	KindDetail,
}

// Navigable reports whether selecting an entry of this kind offers further
// descent. Detail entries render terminal-style: the only way out is back or
// close.
func (k Kind) Navigable() bool {
	switch k {
	case KindFaction, KindCategory, KindItem:
		return true
	case KindDetail:
		return false
	default:
		return false
	}
}

type CatalogKind string

func (c CatalogKind) String() string {
	return string(c)
}

const (
	CatalogMaps  CatalogKind = "maps"
	CatalogTanks CatalogKind = "tanks"
)

var CatalogKinds = []CatalogKind{
	CatalogMaps,
	CatalogTanks,
}

func (c CatalogKind) GetCatalogName() string {
	switch c {
	case CatalogMaps:
		return "Tactical Maps"
	case CatalogTanks:
		return "Tank Guides"
	default:
		return "Unknown"
	}
}

func (c CatalogKind) Valid() bool {
	for _, k := range CatalogKinds {
		if c == k {
			return true
		}
	}
	return false
}

// Field is one rendered name/value block of a detail payload, in declared
// order.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Payload carries the kind-specific presentation data of a catalog entry.
type Payload struct {
	Title            string  `json:"title,omitempty"`
	ShortDescription string  `json:"short_description,omitempty"`
	Emoji            string  `json:"emoji,omitempty"`
	ImageFile        string  `json:"image_file,omitempty"`
	Fields           []Field `json:"fields,omitempty"`
}

// CatalogEntry is an immutable node in the content forest. ID is unique
// across the whole store (child ids are derived from the parent id), ParentID
// is empty only for roots.
type CatalogEntry struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"display_name"`
	Kind        Kind        `json:"kind"`
	ParentID    string      `json:"parent_id,omitempty"`
	Catalog     CatalogKind `json:"catalog"`
	Payload     Payload     `json:"payload"`
}
