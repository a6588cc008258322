package navigation

import (
	"fmt"

	"github.com/google/uuid"

	"hll/contentbot/internal/catalog"
	"hll/contentbot/internal/domain"
)

// Machine is one session's cursor through the catalog forest. It holds the
// path from a root to the current node; an empty path is the root menu. A
// machine is never shared: the owning session serializes all access.
type Machine struct {
	id      string
	key     domain.SessionKey
	catalog domain.CatalogKind
	store   *catalog.Store
	path    []string
	closed  bool
}

func New(store *catalog.Store, kind domain.CatalogKind, key domain.SessionKey) *Machine {
	return &Machine{
		id:      uuid.NewString(),
		key:     key,
		catalog: kind,
		store:   store,
	}
}

func (m *Machine) ID() string {
	return m.id
}

func (m *Machine) Key() domain.SessionKey {
	return m.key
}

func (m *Machine) Catalog() domain.CatalogKind {
	return m.catalog
}

// Path returns a copy of the current path.
func (m *Machine) Path() []string {
	path := make([]string, len(m.path))
	copy(path, m.path)
	return path
}

func (m *Machine) AtRoot() bool {
	return len(m.path) == 0
}

func (m *Machine) Closed() bool {
	return m.closed
}

// Current returns the entry at the end of the path, or false at the root
// menu.
func (m *Machine) Current() (*domain.CatalogEntry, bool) {
	if len(m.path) == 0 {
		return nil, false
	}
	e, err := m.store.Get(m.path[len(m.path)-1])
	if err != nil {
		return nil, false
	}
	return e, true
}

// Options lists the selectable entries at the current position, in the
// store's declared order.
func (m *Machine) Options() []*domain.CatalogEntry {
	if len(m.path) == 0 {
		return m.store.Roots(m.catalog)
	}
	return m.store.ChildrenOf(m.path[len(m.path)-1])
}

// Select descends into childID. The id must be a declared child of the
// current node (or a root when at the root menu); anything else leaves the
// state unchanged and returns ErrInvalidTransition so the caller re-renders.
func (m *Machine) Select(childID string) error {
	if m.closed {
		return domain.ErrSessionClosed
	}
	for _, option := range m.Options() {
		if option.ID == childID {
			m.path = append(m.path, childID)
			return nil
		}
	}
	return fmt.Errorf("select %q: %w", childID, domain.ErrInvalidTransition)
}

// Back pops one path element. At the root menu it reports false and does
// nothing; that is not an error.
func (m *Machine) Back() (bool, error) {
	if m.closed {
		return false, domain.ErrSessionClosed
	}
	if len(m.path) == 0 {
		return false, nil
	}
	m.path = m.path[:len(m.path)-1]
	return true, nil
}

// Close is terminal and idempotent. Select and Back fail on a closed machine;
// Close never does.
func (m *Machine) Close() {
	m.closed = true
}
