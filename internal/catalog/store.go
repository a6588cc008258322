package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	log "github.com/sirupsen/logrus"

	"hll/contentbot/internal/domain"
)

// Store is the immutable, read-only view of the content forest. After Load it
// is shared by every session without locking.
type Store struct {
	entries  map[string]*domain.CatalogEntry
	children map[string][]string
	roots    map[domain.CatalogKind][]string
	version  string
}

// builder accumulates entries during normalization and rejects duplicates as
// they appear.
type builder struct {
	store *Store
}

func (b *builder) add(e *domain.CatalogEntry) error {
	if _, exists := b.store.entries[e.ID]; exists {
		return fmt.Errorf("duplicate entry id %q", e.ID)
	}
	b.store.entries[e.ID] = e
	if e.ParentID == "" {
		b.store.roots[e.Catalog] = append(b.store.roots[e.Catalog], e.ID)
	} else {
		b.store.children[e.ParentID] = append(b.store.children[e.ParentID], e.ID)
	}
	return nil
}

// Load validates and normalizes the raw catalog files into a Store. Any
// schema or forest violation fails the load; the process must not serve menus
// from a broken catalog.
func Load(raw map[domain.CatalogKind][]byte, variants []MapVariant) (*Store, error) {
	if len(variants) == 0 {
		variants = DefaultMapVariants
	}

	store := &Store{
		entries:  make(map[string]*domain.CatalogEntry),
		children: make(map[string][]string),
		roots:    make(map[domain.CatalogKind][]string),
	}
	b := &builder{store: store}

	hash := sha256.New()
	loaded := 0
	for _, kind := range domain.CatalogKinds {
		data, ok := raw[kind]
		if !ok {
			log.Warnf("⚠️ No data for catalog %s, skipping", kind)
			continue
		}

		if err := validateSchema(kind, data); err != nil {
			return nil, &domain.CatalogLoadError{Catalog: kind, Problems: []string{err.Error()}}
		}

		var err error
		switch kind {
		case domain.CatalogMaps:
			err = normalizeMaps(b, data, variants)
		case domain.CatalogTanks:
			err = normalizeTanks(b, data)
		default:
			err = fmt.Errorf("no normalizer for catalog %s", kind)
		}
		if err != nil {
			return nil, &domain.CatalogLoadError{Catalog: kind, Problems: []string{err.Error()}}
		}

		hash.Write([]byte(kind))
		hash.Write(data)
		loaded++
	}

	if loaded == 0 {
		return nil, &domain.CatalogLoadError{Problems: []string{"no catalog data supplied"}}
	}

	if problems := store.verify(); len(problems) > 0 {
		return nil, &domain.CatalogLoadError{Problems: problems}
	}

	store.version = hex.EncodeToString(hash.Sum(nil))[:12]
	log.Infof("✅ Catalog loaded: %d entries, version %s", len(store.entries), store.version)
	return store, nil
}

// verify checks the forest invariant on the built store: every parent
// reference resolves, parent chains terminate at a root, no cycles.
func (s *Store) verify() []string {
	var problems []string
	for id, e := range s.entries {
		seen := map[string]bool{id: true}
		cur := e
		for cur.ParentID != "" {
			parent, ok := s.entries[cur.ParentID]
			if !ok {
				problems = append(problems, fmt.Sprintf("entry %q references missing parent %q", id, cur.ParentID))
				break
			}
			if seen[parent.ID] {
				problems = append(problems, fmt.Sprintf("cycle in parent chain of %q", id))
				break
			}
			seen[parent.ID] = true
			cur = parent
		}
	}
	return problems
}

// Get resolves an entry id.
func (s *Store) Get(id string) (*domain.CatalogEntry, error) {
	e, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("entry %q: %w", id, domain.ErrNotFound)
	}
	return e, nil
}

// ChildrenOf returns the children of id in declared order. Unknown or leaf
// ids yield an empty slice, not an error: a stale path degrades gracefully.
func (s *Store) ChildrenOf(id string) []*domain.CatalogEntry {
	return s.resolve(s.children[id])
}

// Roots returns the top-level entries of a catalog in declared order.
func (s *Store) Roots(kind domain.CatalogKind) []*domain.CatalogEntry {
	return s.resolve(s.roots[kind])
}

// Version identifies the loaded catalog snapshot. Persistent browser messages
// record the version they rendered so refreshes only touch outdated ones.
func (s *Store) Version() string {
	return s.version
}

// Len returns the total number of entries.
func (s *Store) Len() int {
	return len(s.entries)
}

func (s *Store) resolve(ids []string) []*domain.CatalogEntry {
	entries := make([]*domain.CatalogEntry, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.entries[id]; ok {
			entries = append(entries, e)
		}
	}
	return entries
}

// AuditAssets reports image references that the resolver cannot serve. The
// audit warns, it never fails a load: a missing picture should not take the
// whole catalog down.
func (s *Store) AuditAssets(has func(string) bool) []string {
	var missing []string
	for _, kind := range domain.CatalogKinds {
		s.walk(kind, func(e *domain.CatalogEntry) {
			if e.Payload.ImageFile != "" && !has(e.Payload.ImageFile) {
				missing = append(missing, fmt.Sprintf("%s: %s", e.ID, e.Payload.ImageFile))
			}
		})
	}
	return missing
}

// ImageRefs returns every distinct image reference in the catalog, in walk
// order.
func (s *Store) ImageRefs() []string {
	seen := make(map[string]bool)
	var refs []string
	for _, kind := range domain.CatalogKinds {
		s.walk(kind, func(e *domain.CatalogEntry) {
			if img := e.Payload.ImageFile; img != "" && !seen[img] {
				seen[img] = true
				refs = append(refs, img)
			}
		})
	}
	return refs
}

func (s *Store) walk(kind domain.CatalogKind, fn func(*domain.CatalogEntry)) {
	var visit func(entries []*domain.CatalogEntry)
	visit = func(entries []*domain.CatalogEntry) {
		for _, e := range entries {
			fn(e)
			visit(s.ChildrenOf(e.ID))
		}
	}
	visit(s.Roots(kind))
}
