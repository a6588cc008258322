package catalog

import (
	"fmt"
	"strings"
	"unicode"

	"hll/contentbot/internal/domain"
)

// MapVariant describes one rendered variant of a tactical map. The suffix
// selects the asset file (<MapName>_<Suffix>.png).
type MapVariant struct {
	ID     string
	Label  string
	Suffix string
	Emoji  string
}

// DefaultMapVariants mirrors the variant set shipped with the map assets.
var DefaultMapVariants = []MapVariant{
	{ID: "grid", Label: "Grid", Suffix: "Grid", Emoji: "🗺️"},
	{ID: "nogrid", Label: "No Grid", Suffix: "NoGrid", Emoji: "🌍"},
	{ID: "sp-nohq", Label: "SP No HQ", Suffix: "SP_NoHQ", Emoji: "⚔️"},
	{ID: "garries", Label: "Default Garries", Suffix: "defaultgarries", Emoji: "🏠"},
}

// Asset filenames that don't follow the Title() convention of their map key.
var mapAssetNameFixes = map[string]string{
	"sme":       "SME",
	"elalamein": "ElAlamein",
	"hurtgen":   "HurtgenV2",
	"phl":       "PHL",
	"smdmv2":    "SMDMV2",
	"elsenborn": "ElsenbornRidge",
}

// Pretty display names for map keys that are abbreviations.
var mapDisplayNames = map[string]string{
	"sme":       "Sainte-Mère-Église",
	"phl":       "Purple Heart Lane",
	"smdmv2":    "Saint-Marie-du-Mont V2",
	"elalamein": "El Alamein",
}

type factionInfo struct {
	name  string
	emoji string
}

var factionDisplay = map[string]factionInfo{
	"us":      {name: "United States", emoji: "🇺🇸"},
	"german":  {name: "Germany", emoji: "🇩🇪"},
	"soviet":  {name: "Soviet Union", emoji: "🇷🇺"},
	"ussr":    {name: "Soviet Union", emoji: "🇷🇺"},
	"british": {name: "United Kingdom", emoji: "🇬🇧"},
}

// normalizeMaps turns the flat maps file ({key: briefing}) into
// map items with one Detail child per variant.
func normalizeMaps(b *builder, data []byte, variants []MapVariant) error {
	root, err := decodeObject(data)
	if err != nil {
		return fmt.Errorf("maps: %w", err)
	}

	briefingFields := []struct {
		key  string
		name string
	}{
		{"terrain", "🌍 Terrain"},
		{"points", "🎯 Key Points"},
		{"infantry", "👥 Infantry Strategy"},
		{"armor", "🚗 Armor Strategy"},
	}

	for _, key := range root.keys {
		raw, _ := root.get(key)
		info, err := decodeObject(raw)
		if err != nil {
			return fmt.Errorf("maps: entry %q: %w", key, err)
		}

		display := mapDisplayName(key)
		fields := make([]domain.Field, 0, len(briefingFields))
		for _, f := range briefingFields {
			if v := info.getString(f.key); v != "" {
				fields = append(fields, domain.Field{Name: f.name, Value: v})
			}
		}

		itemID := entryID(string(domain.CatalogMaps), key)
		if err := b.add(&domain.CatalogEntry{
			ID:          itemID,
			DisplayName: display,
			Kind:        domain.KindItem,
			Catalog:     domain.CatalogMaps,
			Payload: domain.Payload{
				Title:            info.getString("title"),
				ShortDescription: info.getString("terrain"),
				Emoji:            "🗺️",
				Fields:           fields,
			},
		}); err != nil {
			return err
		}

		assetName := mapAssetName(key)
		for _, v := range variants {
			if err := b.add(&domain.CatalogEntry{
				ID:          entryID(itemID, v.ID),
				DisplayName: v.Label,
				Kind:        domain.KindDetail,
				ParentID:    itemID,
				Catalog:     domain.CatalogMaps,
				Payload: domain.Payload{
					Title:     fmt.Sprintf("%s — %s", display, v.Label),
					Emoji:     v.Emoji,
					ImageFile: fmt.Sprintf("%s_%s.png", assetName, v.Suffix),
					Fields:    fields,
				},
			}); err != nil {
				return err
			}
		}
	}

	return nil
}

// normalizeTanks turns the nested tanks file ({faction: {key: item}}) into
// Faction roots with Detail children.
func normalizeTanks(b *builder, data []byte) error {
	root, err := decodeObject(data)
	if err != nil {
		return fmt.Errorf("tanks: %w", err)
	}

	for _, faction := range root.keys {
		raw, _ := root.get(faction)
		items, err := decodeObject(raw)
		if err != nil {
			return fmt.Errorf("tanks: faction %q: %w", faction, err)
		}

		display, emoji := factionDisplayName(faction)
		factionID := entryID(string(domain.CatalogTanks), faction)
		if err := b.add(&domain.CatalogEntry{
			ID:          factionID,
			DisplayName: display,
			Kind:        domain.KindFaction,
			Catalog:     domain.CatalogTanks,
			Payload: domain.Payload{
				Title: display,
				Emoji: emoji,
			},
		}); err != nil {
			return err
		}

		for _, key := range items.keys {
			itemRaw, _ := items.get(key)
			item, err := decodeObject(itemRaw)
			if err != nil {
				return fmt.Errorf("tanks: item %q: %w", key, err)
			}

			if err := b.add(&domain.CatalogEntry{
				ID:          entryID(factionID, key),
				DisplayName: item.getString("display_name"),
				Kind:        domain.KindDetail,
				ParentID:    factionID,
				Catalog:     domain.CatalogTanks,
				Payload: domain.Payload{
					Title:            item.getString("title"),
					ShortDescription: item.getString("short_description"),
					Emoji:            item.getString("emoji"),
					ImageFile:        assetFileName(item.getString("thumbnail")),
					Fields:           itemFields(item),
				},
			}); err != nil {
				return err
			}
		}
	}

	return nil
}

// itemFields collects field_* keys in declared order, honoring the matching
// field_*_inline flags.
func itemFields(item *rawObject) []domain.Field {
	var fields []domain.Field
	for _, key := range item.keys {
		if !strings.HasPrefix(key, "field_") || strings.HasSuffix(key, "_inline") {
			continue
		}
		name := strings.ReplaceAll(strings.TrimPrefix(key, "field_"), "_", " ")
		fields = append(fields, domain.Field{
			Name:   titleCase(name),
			Value:  item.getString(key),
			Inline: item.getBool(key + "_inline"),
		})
	}
	return fields
}

func entryID(parts ...string) string {
	return strings.Join(parts, "/")
}

func mapDisplayName(key string) string {
	if name, ok := mapDisplayNames[strings.ToLower(key)]; ok {
		return name
	}
	return titleCase(strings.ReplaceAll(key, "_", " "))
}

func mapAssetName(key string) string {
	if name, ok := mapAssetNameFixes[strings.ToLower(key)]; ok {
		return name
	}
	return titleCase(key)
}

func factionDisplayName(key string) (string, string) {
	if info, ok := factionDisplay[strings.ToLower(key)]; ok {
		return info.name, info.emoji
	}
	return titleCase(key), ""
}

// titleCase uppercases the first letter of every word; any non-letter
// separates words. Replaces the deprecated strings.Title.
func titleCase(s string) string {
	runes := []rune(s)
	inWord := false
	for i, r := range runes {
		if unicode.IsLetter(r) {
			if !inWord {
				runes[i] = unicode.ToUpper(r)
			}
			inWord = true
		} else {
			inWord = false
		}
	}
	return string(runes)
}

// assetFileName strips the attachment:// prefix the source data sometimes
// carries on thumbnail references.
func assetFileName(ref string) string {
	return strings.TrimPrefix(ref, "attachment://")
}
