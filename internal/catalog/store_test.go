package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hll/contentbot/internal/domain"
)

const testMaps = `{
  "utah": {
    "title": "Utah Beach — Tactical Map Briefing",
    "terrain": "Open beachhead with inland flooding",
    "points": "Hold the causeways",
    "infantry": "Push through the draws",
    "armor": "Screen the inland roads"
  },
  "foy": {
    "title": "Foy — Tactical Map Briefing",
    "terrain": "Snowbound fields and treelines"
  }
}`

const testTanks = `{
  "german": {
    "panzer4": {
      "display_name": "Panzer IV",
      "title": "Panzer IV — Tank Guide",
      "short_description": "Workhorse medium tank",
      "field_class": "Medium Tank",
      "field_crew": "3",
      "field_crew_inline": true
    },
    "tiger": {
      "display_name": "Tiger",
      "title": "Tiger — Tank Guide",
      "thumbnail": "attachment://tiger.png"
    }
  },
  "us": {
    "sherman": {
      "display_name": "Sherman M4A3",
      "title": "Sherman — Tank Guide"
    }
  }
}`

func loadTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Load(map[domain.CatalogKind][]byte{
		domain.CatalogMaps:  []byte(testMaps),
		domain.CatalogTanks: []byte(testTanks),
	}, nil)
	require.NoError(t, err)
	return store
}

func TestLoad_BuildsForest(t *testing.T) {
	store := loadTestStore(t)

	t.Run("map roots keep declared order", func(t *testing.T) {
		roots := store.Roots(domain.CatalogMaps)
		require.Len(t, roots, 2)
		assert.Equal(t, "maps/utah", roots[0].ID)
		assert.Equal(t, "maps/foy", roots[1].ID)
		assert.Equal(t, domain.KindItem, roots[0].Kind)
	})

	t.Run("map items get one detail child per variant", func(t *testing.T) {
		children := store.ChildrenOf("maps/utah")
		require.Len(t, children, len(DefaultMapVariants))
		assert.Equal(t, "maps/utah/grid", children[0].ID)
		assert.Equal(t, domain.KindDetail, children[0].Kind)
		assert.Equal(t, "Utah_Grid.png", children[0].Payload.ImageFile)
	})

	t.Run("tank factions keep declared order", func(t *testing.T) {
		roots := store.Roots(domain.CatalogTanks)
		require.Len(t, roots, 2)
		assert.Equal(t, "tanks/german", roots[0].ID)
		assert.Equal(t, "Germany", roots[0].DisplayName)
		assert.Equal(t, domain.KindFaction, roots[0].Kind)
		assert.Equal(t, "United States", roots[1].DisplayName)
	})

	t.Run("tank details carry ordered fields", func(t *testing.T) {
		e, err := store.Get("tanks/german/panzer4")
		require.NoError(t, err)
		assert.Equal(t, domain.KindDetail, e.Kind)
		require.Len(t, e.Payload.Fields, 2)
		assert.Equal(t, "Class", e.Payload.Fields[0].Name)
		assert.Equal(t, "Crew", e.Payload.Fields[1].Name)
		assert.True(t, e.Payload.Fields[1].Inline)
	})

	t.Run("thumbnail prefix stripped", func(t *testing.T) {
		e, err := store.Get("tanks/german/tiger")
		require.NoError(t, err)
		assert.Equal(t, "tiger.png", e.Payload.ImageFile)
	})

	t.Run("version is stable and short", func(t *testing.T) {
		assert.Len(t, store.Version(), 12)
		again := loadTestStore(t)
		assert.Equal(t, store.Version(), again.Version())
	})
}

func TestLoad_Failures(t *testing.T) {
	t.Run("duplicate sibling keys", func(t *testing.T) {
		raw := map[domain.CatalogKind][]byte{
			domain.CatalogMaps: []byte(`{"utah": {"title": "A"}, "utah": {"title": "B"}}`),
		}
		_, err := Load(raw, nil)
		var loadErr *domain.CatalogLoadError
		require.ErrorAs(t, err, &loadErr)
		assert.Equal(t, domain.CatalogMaps, loadErr.Catalog)
	})

	t.Run("schema violation", func(t *testing.T) {
		raw := map[domain.CatalogKind][]byte{
			domain.CatalogTanks: []byte(`{"german": {"tiger": {"title": "no display name"}}}`),
		}
		_, err := Load(raw, nil)
		var loadErr *domain.CatalogLoadError
		require.ErrorAs(t, err, &loadErr)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		raw := map[domain.CatalogKind][]byte{
			domain.CatalogMaps: []byte(`{`),
		}
		_, err := Load(raw, nil)
		var loadErr *domain.CatalogLoadError
		require.ErrorAs(t, err, &loadErr)
	})

	t.Run("no data at all", func(t *testing.T) {
		_, err := Load(map[domain.CatalogKind][]byte{}, nil)
		var loadErr *domain.CatalogLoadError
		require.ErrorAs(t, err, &loadErr)
	})
}

func TestStore_Lookups(t *testing.T) {
	store := loadTestStore(t)

	t.Run("get unknown id", func(t *testing.T) {
		_, err := store.Get("maps/nowhere")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("children of unknown id degrade to empty", func(t *testing.T) {
		assert.Empty(t, store.ChildrenOf("maps/nowhere"))
	})

	t.Run("children of leaf are empty", func(t *testing.T) {
		assert.Empty(t, store.ChildrenOf("tanks/german/tiger"))
	})

	t.Run("roots of missing catalog are empty", func(t *testing.T) {
		assert.Empty(t, store.Roots(domain.CatalogKind("planes")))
	})
}

func TestStore_AuditAssets(t *testing.T) {
	store := loadTestStore(t)

	missing := store.AuditAssets(func(name string) bool { return name == "tiger.png" })
	// Every map variant image is missing, the tiger thumbnail is not.
	assert.Len(t, missing, 2*len(DefaultMapVariants))
	for _, m := range missing {
		assert.NotContains(t, m, "tiger.png")
	}

	assert.Empty(t, store.AuditAssets(func(string) bool { return true }))
}

func TestStore_ImageRefs(t *testing.T) {
	store := loadTestStore(t)
	refs := store.ImageRefs()
	assert.Contains(t, refs, "Utah_Grid.png")
	assert.Contains(t, refs, "tiger.png")
	// 2 maps x 4 variants + 1 thumbnail
	assert.Len(t, refs, 2*len(DefaultMapVariants)+1)
}

func TestNormalize_TitleCasing(t *testing.T) {
	store, err := Load(map[domain.CatalogKind][]byte{
		domain.CatalogMaps: []byte(`{"purple_heart": {"title": "Purple Heart — Briefing"}}`),
		domain.CatalogTanks: []byte(`{"british": {"firefly": {
			"display_name": "Sherman Firefly",
			"title": "Firefly — Tank Guide",
			"field_top_speed": "40 km/h"
		}}}`),
	}, nil)
	require.NoError(t, err)

	t.Run("map keys become spaced title-case names", func(t *testing.T) {
		roots := store.Roots(domain.CatalogMaps)
		require.Len(t, roots, 1)
		assert.Equal(t, "Purple Heart", roots[0].DisplayName)
	})

	t.Run("asset names keep underscores, words capitalized", func(t *testing.T) {
		children := store.ChildrenOf("maps/purple_heart")
		require.NotEmpty(t, children)
		assert.Equal(t, "Purple_Heart_Grid.png", children[0].Payload.ImageFile)
	})

	t.Run("field keys become title-case names", func(t *testing.T) {
		tank, err := store.Get("tanks/british/firefly")
		require.NoError(t, err)
		require.Len(t, tank.Payload.Fields, 1)
		assert.Equal(t, "Top Speed", tank.Payload.Fields[0].Name)
	})
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Utah", titleCase("utah"))
	assert.Equal(t, "Purple Heart", titleCase("purple heart"))
	assert.Equal(t, "Foo_Bar", titleCase("foo_bar"))
	assert.Equal(t, "Église", titleCase("église"))
	assert.Equal(t, "", titleCase(""))
}

func TestDecodeObject_PreservesOrder(t *testing.T) {
	obj, err := decodeObject([]byte(`{"b": 1, "a": 2, "c": {"nested": true}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, obj.keys)
}
